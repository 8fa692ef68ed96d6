// Package service wires the components together behind the process
// boundary the desktop control surface talks to: start/stop the embedded
// server, mutate the shared directory, trigger discovery and poll status.
package service

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lanhub/lanhub/internal/api"
	"github.com/lanhub/lanhub/internal/chat"
	"github.com/lanhub/lanhub/internal/config"
	"github.com/lanhub/lanhub/internal/huberr"
	"github.com/lanhub/lanhub/internal/hubfs"
	"github.com/lanhub/lanhub/internal/logging"
	"github.com/lanhub/lanhub/internal/presence"
	"github.com/lanhub/lanhub/internal/scan"
)

// Status is the read-only feed the control surface polls (~every 2s).
type Status struct {
	Addr       string `json:"addr"`
	Users      int    `json:"users"`
	Messages   uint64 `json:"messages"`
	Files      int    `json:"files"`
	TotalBytes int64  `json:"total_bytes"`
}

// Service owns the component graph and the listening socket.
type Service struct {
	cfg      *config.Config
	store    *hubfs.Store
	registry *presence.Registry
	chat     *chat.Broadcaster
	scanner  *scan.Scanner

	httpSrv *http.Server
	addr    string
}

// New builds the component graph from configuration. Nothing listens yet.
func New(cfg *config.Config) (*Service, error) {
	store, err := hubfs.New(cfg.SharedDir)
	if err != nil {
		return nil, err
	}

	registry := presence.NewRegistry()
	broadcaster := chat.NewBroadcaster(cfg.ChatHistory)
	scanner := scan.NewScanner(cfg.ScanPorts, time.Duration(cfg.ScanTimeoutMs)*time.Millisecond)

	svc := &Service{
		cfg:      cfg,
		store:    store,
		registry: registry,
		chat:     broadcaster,
		scanner:  scanner,
	}
	server := api.NewServer(store, registry, broadcaster, scanner, cfg.MaxUploadSize)
	svc.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return svc, nil
}

// Start binds the listening socket and begins serving. A bind failure is
// returned once and aborts the start; it is the only startup error the
// control surface sees.
func (s *Service) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return huberr.Network("bind "+s.cfg.ListenAddr, err)
	}
	s.addr = ln.Addr().String()

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logging.Error("server stopped", zap.Error(err))
		}
	}()

	logging.Info("server started",
		zap.String("addr", s.addr),
		zap.String("shared_dir", s.store.Dir()))
	return nil
}

// Stop releases the listening socket, lets in-flight requests finish and
// tears down an ephemeral shared directory.
func (s *Service) Stop(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)
	s.store.Teardown()
	logging.Info("server stopped")
	return err
}

// Addr returns the bound address after Start.
func (s *Service) Addr() string { return s.addr }

// AddFiles copies local files into the shared directory and announces each
// one on the real-time channel, same as an upload.
func (s *Service) AddFiles(paths ...string) []hubfs.SharedFile {
	added := s.store.AddLocal(paths...)
	for _, sf := range added {
		s.chat.Announce(chat.EventFileUploaded, sf)
	}
	return added
}

// ClearFiles removes all shared files.
func (s *Service) ClearFiles() {
	s.store.Clear()
}

// TriggerScan starts a discovery sweep in the background.
func (s *Service) TriggerScan() {
	s.scanner.Start(scan.LocalIP())
}

// Peers returns the result of the most recent completed sweep.
func (s *Service) Peers() []scan.Peer {
	return s.scanner.Peers()
}

// Status returns the current counters for the control surface.
func (s *Service) Status() Status {
	files, bytes := s.store.Stats()
	return Status{
		Addr:       s.addr,
		Users:      s.registry.ActiveCount(),
		Messages:   s.chat.TotalPosted(),
		Files:      files,
		TotalBytes: bytes,
	}
}
