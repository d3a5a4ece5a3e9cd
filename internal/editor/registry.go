package editor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ironsheep/easy-token-mcp/internal/entity"
)

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = errors.New("editor session not found")

// idPrefix starts every session id.
const idPrefix = "easy-token-editor-"

// SessionID derives the session identity from its target.
func SessionID(t entity.Target) string {
	return idPrefix + t.Key()
}

// Registry holds the open sessions, at most one per target.
type Registry struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session

	install sync.Once
}

// NewRegistry creates an empty registry. deps are shared by every session.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:     deps.withDefaults(),
		sessions: make(map[string]*Session),
	}
}

// Open returns the session for ref, creating it if needed. focused is true
// when a session for the same target was already open and is returned
// instead of a new one.
func (r *Registry) Open(ctx context.Context, ref string) (s *Session, focused bool, err error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	target, err := r.deps.Entities.Resolve(ref)
	if err != nil {
		return nil, false, err
	}
	id := SessionID(target)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[id]; ok {
		return existing, true, nil
	}

	s, err = newSession(id, target, r.deps)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open editor for %s: %w", ref, err)
	}
	s.onClosed = r.remove
	r.sessions[id] = s
	r.deps.Logger.Printf("editor %s: opened", id)
	return s, false, nil
}

// Get returns an open session.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Close closes and forgets a session.
func (r *Registry) Close(id string) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	s.Close()
	return nil
}

// CloseAll closes every open session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	open := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		open = append(open, s)
	}
	r.mu.Unlock()

	for _, s := range open {
		s.Close()
	}
}

// IDs lists the open session ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[s.id] == s {
		delete(r.sessions, s.id)
		r.deps.Logger.Printf("editor %s: closed", s.id)
	}
}

// HeaderButton is the entry point the editor adds to actor sheets.
type HeaderButton struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
	Class string `json:"class"`

	// OnClick opens or focuses the editor for an actor or token reference.
	OnClick func(ctx context.Context, ref string) (*Session, bool, error) `json:"-"`
}

// Host is the application the editor plugs into.
type Host interface {
	AddSheetHeaderButton(b HeaderButton)
}

// Install registers the sheet header button with host. Only the first
// call has an effect.
func (r *Registry) Install(host Host) {
	r.install.Do(func() {
		host.AddSheetHeaderButton(HeaderButton{
			Label:   "Easy-Token",
			Icon:    "fas fa-image",
			Class:   "lvk-easy-token",
			OnClick: r.Open,
		})
	})
}
