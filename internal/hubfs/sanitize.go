package hubfs

import (
	"path/filepath"
	"strings"

	"github.com/lanhub/lanhub/internal/huberr"
)

// Sanitize reduces a client-supplied file name to its base component.
// Path separators (both kinds) and parent references are stripped; a name
// that reduces to nothing is rejected. The result is always safe to join
// under the shared directory.
func Sanitize(name string) (string, error) {
	if name == "" {
		return "", huberr.Validation("filename", "empty")
	}

	// Browsers on Windows send backslash-separated paths.
	s := strings.ReplaceAll(name, "\\", "/")
	s = filepath.Base(filepath.FromSlash(s))

	switch s {
	case "", ".", "..", string(filepath.Separator):
		return "", huberr.Validation("filename", "no usable base name")
	}
	return s, nil
}
