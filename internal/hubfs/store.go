// Package hubfs manages the shared directory used as the file exchange point.
package hubfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/lanhub/lanhub/internal/huberr"
	"github.com/lanhub/lanhub/internal/logging"
	"github.com/lanhub/lanhub/internal/metrics"
)

// SharedFile is the metadata for one file in the shared directory.
type SharedFile struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Store owns one flat shared directory. All names pass through Sanitize
// before touching the filesystem, so nothing is ever written outside the
// directory. Per-file operations need no cross-file locking: the whole-file
// temp+rename overwrite makes the file name the natural sharding key.
type Store struct {
	dir       string
	ephemeral bool // created by us, removed entirely on Teardown
}

// New opens a store rooted at dir, creating it if needed. An empty dir
// creates a fresh temporary directory that Teardown removes completely.
func New(dir string) (*Store, error) {
	if dir == "" {
		tmp, err := os.MkdirTemp("", "lanhub-shared-")
		if err != nil {
			return nil, fmt.Errorf("create shared dir: %w", err)
		}
		return &Store{dir: tmp, ephemeral: true}, nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, fmt.Errorf("create shared dir %s: %w", dir, mkErr)
			}
			return &Store{dir: dir}, nil
		}
		return nil, fmt.Errorf("stat shared dir %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("shared dir %s is not a directory", dir)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the shared directory path.
func (s *Store) Dir() string { return s.dir }

// Put writes body to the shared directory under the sanitized name,
// overwriting any existing file of the same name. The write goes to a temp
// file first and is renamed into place, so concurrent readers see either
// the old content or the new, never a partial file.
func (s *Store) Put(name string, body io.Reader) (SharedFile, error) {
	clean, err := Sanitize(name)
	if err != nil {
		return SharedFile{}, err
	}

	tmp, err := os.CreateTemp(s.dir, ".lanhub-*.tmp")
	if err != nil {
		return SharedFile{}, huberr.Transfer("save "+clean, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return SharedFile{}, huberr.Transfer("save "+clean, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return SharedFile{}, huberr.Transfer("save "+clean, err)
	}

	dst := filepath.Join(s.dir, clean)
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return SharedFile{}, huberr.Transfer("save "+clean, err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return SharedFile{}, huberr.Transfer("stat "+clean, err)
	}
	s.updateGauge()
	return SharedFile{Name: clean, Size: info.Size(), Modified: info.ModTime()}, nil
}

// AddLocal copies files from local paths into the shared directory,
// byte-exact, through the same sanitize path as uploads. It returns the
// metadata of every file that was copied; individual failures are logged
// and skipped rather than aborting the batch.
func (s *Store) AddLocal(paths ...string) []SharedFile {
	var added []SharedFile
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			logging.Warn("skipping local file", zap.String("path", p), zap.Error(err))
			continue
		}
		sf, err := s.Put(filepath.Base(p), f)
		f.Close()
		if err != nil {
			logging.Warn("skipping local file", zap.String("path", p), zap.Error(err))
			continue
		}
		added = append(added, sf)
	}
	return added
}

// List enumerates regular files in the shared directory. Order follows
// directory enumeration and is not part of the contract.
func (s *Store) List() ([]SharedFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read shared dir: %w", err)
	}

	files := make([]SharedFile, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, SharedFile{
			Name:     e.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	metrics.SetSharedFiles(len(files))
	return files, nil
}

// Get opens the named file for reading and returns its metadata.
// Returns huberr.ErrNotFound when the sanitized name does not resolve to a
// regular file inside the shared directory.
func (s *Store) Get(name string) (io.ReadCloser, SharedFile, error) {
	clean, err := Sanitize(name)
	if err != nil {
		return nil, SharedFile{}, huberr.ErrNotFound
	}

	path := filepath.Join(s.dir, clean)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, SharedFile{}, huberr.ErrNotFound
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, SharedFile{}, huberr.Transfer("open "+clean, err)
	}
	return f, SharedFile{Name: clean, Size: info.Size(), Modified: info.ModTime()}, nil
}

// Stats returns the number of shared files and their total size in bytes.
func (s *Store) Stats() (count int, totalBytes int64) {
	files, err := s.List()
	if err != nil {
		return 0, 0
	}
	for _, f := range files {
		totalBytes += f.Size
	}
	return len(files), totalBytes
}

// Clear removes all regular files in the shared directory, leaving
// subdirectories untouched. Best-effort: removal failures are logged and
// skipped.
func (s *Store) Clear() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		logging.Warn("clear shared dir", zap.Error(err))
		return
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			logging.Warn("remove shared file", zap.String("name", e.Name()), zap.Error(err))
		}
	}
	s.updateGauge()
}

// Teardown removes the shared directory if the store created it. Called
// once at process shutdown; failures are swallowed.
func (s *Store) Teardown() {
	if !s.ephemeral {
		return
	}
	_ = os.RemoveAll(s.dir)
}

func (s *Store) updateGauge() {
	n, _ := s.Stats()
	metrics.SetSharedFiles(n)
}
