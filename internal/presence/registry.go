// Package presence tracks connected chat sessions and their display names.
package presence

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/lanhub/lanhub/internal/huberr"
	"github.com/lanhub/lanhub/internal/metrics"
)

// Display name length bounds, in runes.
const (
	MinNameLen = 1
	MaxNameLen = 20
)

// Session is one live connection bound to a display name.
type Session struct {
	Name     string
	JoinedAt time.Time
}

// Registry tracks sessions keyed by an opaque connection handle. Display
// names are not unique: two connections named "Alice" are two sessions and
// are never merged. All reads return copies, so snapshots stay consistent
// while connection lifecycle events mutate the registry.
type Registry struct {
	mu       sync.RWMutex
	sessions map[any]Session
	order    []any // handles in join order
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[any]Session)}
}

// ValidateName checks the 1-20 rune display name constraint.
func ValidateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < MinNameLen {
		return huberr.Validation("display name", "empty")
	}
	if n > MaxNameLen {
		return huberr.Validation("display name", "longer than 20 characters")
	}
	return nil
}

// Join registers a session for the given connection handle. Joining twice
// with the same handle replaces the earlier session.
func (r *Registry) Join(name string, handle any) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	r.mu.Lock()
	if _, exists := r.sessions[handle]; !exists {
		r.order = append(r.order, handle)
	}
	r.sessions[handle] = Session{Name: name, JoinedAt: time.Now()}
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.SetSessionsActive(n)
	return nil
}

// Leave removes the session for the handle. Unknown handles are a no-op:
// a disconnect may race an earlier removal.
func (r *Registry) Leave(handle any) {
	r.mu.Lock()
	if _, ok := r.sessions[handle]; ok {
		delete(r.sessions, handle)
		for i, h := range r.order {
			if h == handle {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.SetSessionsActive(n)
}

// Name returns the display name bound to a handle, if any.
func (r *Registry) Name(handle any) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[handle]
	return s.Name, ok
}

// ActiveCount returns the number of connected sessions.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Names returns the display names of all sessions in join order. Duplicate
// names appear once per session.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.order))
	for _, h := range r.order {
		if s, ok := r.sessions[h]; ok {
			names = append(names, s.Name)
		}
	}
	return names
}
