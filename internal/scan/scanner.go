// Package scan implements the best-effort subnet sweep that looks for other
// reachable service instances on the local /24.
package scan

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lanhub/lanhub/internal/logging"
	"github.com/lanhub/lanhub/internal/metrics"
)

// DefaultPorts are the candidate ports probed on each host.
var DefaultPorts = []int{80, 8000, 8080, 3000, 5000}

// DefaultTimeout bounds each individual connection attempt.
const DefaultTimeout = 100 * time.Millisecond

// DefaultConcurrency is how many hosts are probed at a time. At the default
// timeout a full 254-host sweep finishes within a few seconds.
const DefaultConcurrency = 32

// Peer is one reachable endpoint found by a sweep. Any listening TCP port
// counts as a hit; there is no guarantee the peer is a compatible service.
type Peer struct {
	Address string `json:"address"` // "host:port"
}

// Scanner runs discovery sweeps. A sweep reports its complete result set
// once, atomically; overlapping sweeps resolve last-writer-wins.
type Scanner struct {
	Ports       []int
	Timeout     time.Duration
	Concurrency int

	mu      sync.Mutex
	peers   []Peer
	started uint64 // generation of the most recently started sweep
	applied uint64 // generation of the sweep whose results are current
}

// NewScanner creates a scanner with the given probe settings. Zero values
// fall back to the defaults.
func NewScanner(ports []int, timeout time.Duration) *Scanner {
	if len(ports) == 0 {
		ports = DefaultPorts
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Scanner{Ports: ports, Timeout: timeout, Concurrency: DefaultConcurrency}
}

// LocalIP returns the machine's LAN-facing IPv4 address. The UDP dial never
// sends a packet; it just selects the outbound interface. Falls back to
// interface enumeration, then loopback.
func LocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err == nil {
		defer conn.Close()
		return conn.LocalAddr().(*net.UDPAddr).IP.String()
	}

	addrs, _ := net.InterfaceAddrs()
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ip4 := ipnet.IP.To4(); ip4 != nil && !strings.HasPrefix(ip4.String(), "169.254.") {
				return ip4.String()
			}
		}
	}
	return "127.0.0.1"
}

// Start runs a sweep on a background goroutine so the caller stays
// responsive. Results replace the previous snapshot when the sweep
// completes; a sweep superseded by a newer one is abandoned silently.
func (s *Scanner) Start(localIP string) {
	s.mu.Lock()
	s.started++
	gen := s.started
	s.mu.Unlock()

	go func() {
		start := time.Now()
		peers, err := s.Sweep(localIP)
		if err != nil {
			logging.Warn("discovery sweep failed", zap.Error(err))
			return
		}

		s.mu.Lock()
		if gen > s.applied {
			s.applied = gen
			s.peers = peers
		}
		s.mu.Unlock()

		metrics.RecordScan(time.Since(start), len(peers))
		logging.Info("discovery sweep finished",
			zap.Int("peers", len(peers)),
			zap.Duration("duration", time.Since(start)))
	}()
}

// Peers returns the result set of the most recently completed sweep.
func (s *Scanner) Peers() []Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Peer, len(s.peers))
	copy(out, s.peers)
	return out
}

// Sweep probes every host on the local /24 except this machine and returns
// the reachable peers. Per-host failures are the expected case and are not
// logged or surfaced individually.
func (s *Scanner) Sweep(localIP string) ([]Peer, error) {
	prefix, self, err := subnetPrefix(localIP)
	if err != nil {
		return nil, err
	}

	hosts := make([]string, 0, 253)
	for i := 1; i <= 254; i++ {
		if i == self {
			continue
		}
		hosts = append(hosts, fmt.Sprintf("%s.%d", prefix, i))
	}
	return s.sweepHosts(hosts), nil
}

// sweepHosts probes the given hosts with a bounded worker pool. Result
// order follows completion and is not part of the contract.
func (s *Scanner) sweepHosts(hosts []string) []Peer {
	workers := s.Concurrency
	if workers <= 0 {
		workers = DefaultConcurrency
	}

	jobs := make(chan string)
	results := make(chan Peer)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for host := range jobs {
				if addr, ok := s.probeHost(host); ok {
					results <- Peer{Address: addr}
				}
			}
		}()
	}

	go func() {
		for _, h := range hosts {
			jobs <- h
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	var peers []Peer
	for p := range results {
		peers = append(peers, p)
	}
	return peers
}

// probeHost tries each candidate port in order and stops at the first that
// accepts a TCP connection. Closed, filtered and absent hosts all look the
// same: not found.
func (s *Scanner) probeHost(host string) (string, bool) {
	for _, port := range s.Ports {
		addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
		conn, err := net.DialTimeout("tcp", addr, s.Timeout)
		if err != nil {
			continue
		}
		conn.Close()
		return addr, true
	}
	return "", false
}

// subnetPrefix splits an IPv4 address into its /24 prefix and host suffix.
func subnetPrefix(ip string) (string, int, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.To4() == nil {
		return "", 0, fmt.Errorf("not an IPv4 address: %q", ip)
	}
	v4 := parsed.To4()
	return fmt.Sprintf("%d.%d.%d", v4[0], v4[1], v4[2]), int(v4[3]), nil
}
