package service

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lanhub/lanhub/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		ListenAddr:    "127.0.0.1:0",
		SharedDir:     t.TempDir(),
		MaxUploadSize: 1 << 20,
		ChatHistory:   50,
		ScanTimeoutMs: 50,
	}
}

func TestStartServeStop(t *testing.T) {
	svc, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := svc.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if svc.Addr() == "" {
		t.Fatal("expected a bound address")
	}

	resp, err := http.Get("http://" + svc.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}

	if _, err := http.Get("http://" + svc.Addr() + "/healthz"); err == nil {
		t.Error("expected requests to fail after Stop")
	}
}

func TestStartBindFailureSurfacesOnce(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := testConfig(t)
	cfg.ListenAddr = ln.Addr().String()
	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := svc.Start(); err == nil {
		t.Fatal("expected bind failure")
	}
}

func TestAddClearAndStatus(t *testing.T) {
	src := t.TempDir()
	path := filepath.Join(src, "doc.txt")
	if err := os.WriteFile(path, []byte("twelve bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	svc, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	added := svc.AddFiles(path)
	if len(added) != 1 || added[0].Name != "doc.txt" {
		t.Fatalf("unexpected AddFiles result: %+v", added)
	}

	st := svc.Status()
	if st.Files != 1 || st.TotalBytes != 12 {
		t.Errorf("unexpected status: %+v", st)
	}
	if st.Users != 0 || st.Messages != 0 {
		t.Errorf("expected zero users and messages, got %+v", st)
	}

	svc.ClearFiles()
	if st := svc.Status(); st.Files != 0 || st.TotalBytes != 0 {
		t.Errorf("expected empty store after ClearFiles, got %+v", st)
	}
}
