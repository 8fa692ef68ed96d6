package api

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lanhub/lanhub/internal/chat"
	"github.com/lanhub/lanhub/internal/huberr"
	"github.com/lanhub/lanhub/internal/hubfs"
	"github.com/lanhub/lanhub/internal/logging"
	"github.com/lanhub/lanhub/internal/metrics"
	"github.com/lanhub/lanhub/internal/presence"
	"github.com/lanhub/lanhub/internal/scan"
	"github.com/lanhub/lanhub/webapp"
)

const nameCookie = "lanhub_name"

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	serveShell(w, "index.html")
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	serveShell(w, "login.html")
}

func serveShell(w http.ResponseWriter, name string) {
	page, err := webapp.Assets.ReadFile(name)
	if err != nil {
		writeError(w, fmt.Errorf("load %s: %w", name, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// handleLogin is the display-name handshake: a valid 1-20 character name is
// remembered in a cookie and the browser is sent to the shared space.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, huberr.Validation("form", err.Error()))
		return
	}
	name := strings.TrimSpace(r.PostFormValue("name"))
	if err := presence.ValidateName(name); err != nil {
		writeError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:  nameCookie,
		Value: url.QueryEscape(name),
		Path:  "/",
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleUpload stores every multipart part carrying a filename. Parts are
// streamed straight into the store, so a malformed body never leaves a
// partially visible file behind.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)

	mr, err := r.MultipartReader()
	if err != nil {
		metrics.RecordUpload("error", 0)
		writeError(w, huberr.Transfer("parse multipart", err))
		return
	}

	var uploaded []hubfs.SharedFile
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			metrics.RecordUpload("error", 0)
			writeError(w, huberr.Transfer("parse multipart", err))
			return
		}
		if part.FileName() == "" {
			part.Close()
			continue
		}

		sf, err := s.store.Put(part.FileName(), part)
		part.Close()
		if err != nil {
			metrics.RecordUpload("error", 0)
			writeError(w, err)
			return
		}
		uploaded = append(uploaded, sf)
		metrics.RecordUpload("ok", sf.Size)
		logging.Info("file uploaded",
			zap.String("name", sf.Name),
			zap.Int64("size", sf.Size),
			zap.String("remote", r.RemoteAddr))
		s.chat.Announce(chat.EventFileUploaded, sf)
	}

	if len(uploaded) == 0 {
		writeError(w, huberr.Validation("upload", "no file parts in request"))
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		names := make([]string, len(uploaded))
		for i, f := range uploaded {
			names[i] = f.Name
		}
		writeJSON(w, http.StatusOK, map[string]any{"uploaded": names})
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleDownload streams a shared file as an attachment with its exact
// length. Missing names and traversal attempts both look like 404.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	rc, meta, err := s.store.Get(name)
	if err != nil {
		metrics.RecordDownload("error", 0)
		writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", meta.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))

	n, err := io.Copy(w, rc)
	if err != nil {
		// Headers are gone; all we can do is log and count it.
		logging.Warn("download interrupted",
			zap.String("name", meta.Name),
			zap.Error(err))
		metrics.RecordDownload("error", n)
		return
	}
	metrics.RecordDownload("ok", n)
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// handleStatus serves the control surface's poll target: the file list in
// the original envelope plus the live counters.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.List()
	if err != nil {
		writeError(w, err)
		return
	}
	type statusFile struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	}
	out := make([]statusFile, len(files))
	for i, f := range files {
		out[i] = statusFile{Name: f.Name, Size: f.Size}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"files":    out,
		"users":    s.registry.ActiveCount(),
		"messages": s.chat.TotalPosted(),
	})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	s.scanner.Start(scan.LocalIP())
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scanning"})
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scanner.Peers())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().Format(time.RFC3339)})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, fmt.Errorf("%s: %w", r.URL.Path, huberr.ErrNotFound))
}
