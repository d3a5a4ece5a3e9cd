// Package entity holds the actors and tokens whose images the editor
// updates.
//
// Actors carry an avatar image and a prototype token image. Tokens placed
// on scenes reference an actor; a linked token shares the actor's data, an
// unlinked token is edited on its own.
package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned when an actor, scene or token does not exist.
var ErrNotFound = errors.New("entity not found")

// PrototypeToken is the token configuration new tokens copy from.
type PrototypeToken struct {
	Name string `json:"name,omitempty"`
	Img  string `json:"img,omitempty"`
}

// Actor is a character or creature.
type Actor struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Type  string         `json:"type"`
	Img   string         `json:"img,omitempty"`
	Token PrototypeToken `json:"prototype_token"`
}

// Token is an actor placed on a scene.
type Token struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ActorID   string `json:"actor_id"`
	ActorLink bool   `json:"actor_link"`
	Img       string `json:"img,omitempty"`
}

// Scene groups placed tokens.
type Scene struct {
	ID     string  `json:"id"`
	Name   string  `json:"name,omitempty"`
	Tokens []Token `json:"tokens,omitempty"`
}

// TokenRef identifies a placed token.
type TokenRef struct {
	SceneID string `json:"scene_id"`
	TokenID string `json:"token_id"`
}

// String formats the reference the way Resolve accepts it.
func (r TokenRef) String() string {
	return "Scene." + r.SceneID + ".Token." + r.TokenID
}

// Target is what an editor session edits: an actor, or an unlinked token
// acting as its own actor.
type Target struct {
	Actor Actor     `json:"actor"`
	Token *TokenRef `json:"token,omitempty"`

	// TokenName is the placed token's name for token targets.
	TokenName string `json:"token_name,omitempty"`
}

// IsToken reports whether the target is an unlinked token.
func (t Target) IsToken() bool { return t.Token != nil }

// Key identifies the target uniquely. Token targets are keyed by token so
// they do not collide with their base actor.
func (t Target) Key() string {
	if t.Token != nil {
		return t.Actor.ID + "-" + t.Token.TokenID
	}
	return t.Actor.ID
}

// data is the JSON file layout.
type data struct {
	Actors []Actor `json:"actors"`
	Scenes []Scene `json:"scenes"`
}

// Store is an in-memory entity database, optionally backed by a file.
type Store struct {
	path string

	mu     sync.RWMutex
	actors map[string]*Actor
	order  []string
	scenes []*Scene
}

// NewStore creates a store holding copies of actors and scenes.
func NewStore(actors []Actor, scenes []Scene) *Store {
	s := &Store{actors: make(map[string]*Actor)}
	for _, a := range actors {
		a := a
		if _, dup := s.actors[a.ID]; !dup {
			s.order = append(s.order, a.ID)
		}
		s.actors[a.ID] = &a
	}
	for _, sc := range scenes {
		sc := sc
		sc.Tokens = append([]Token(nil), sc.Tokens...)
		s.scenes = append(s.scenes, &sc)
	}
	return s
}

// Load reads a store from a JSON file. Updates are written back to it.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read entities: %w", err)
	}
	var d data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to parse entities %s: %w", path, err)
	}
	s := NewStore(d.Actors, d.Scenes)
	s.path = path
	return s, nil
}

// Actors lists every actor in load order.
func (s *Store) Actors() []Actor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Actor, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.actors[id])
	}
	return out
}

// Actor returns a copy of the actor with id.
func (s *Store) Actor(id string) (Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actors[id]
	if !ok {
		return Actor{}, fmt.Errorf("%w: actor %s", ErrNotFound, id)
	}
	return *a, nil
}

// Token returns a copy of a placed token.
func (s *Store) Token(ref TokenRef) (Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.token(ref)
	if err != nil {
		return Token{}, err
	}
	return *t, nil
}

func (s *Store) token(ref TokenRef) (*Token, error) {
	for _, sc := range s.scenes {
		if sc.ID != ref.SceneID {
			continue
		}
		for i := range sc.Tokens {
			if sc.Tokens[i].ID == ref.TokenID {
				return &sc.Tokens[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: token %s", ErrNotFound, ref)
}

// ParseRef accepts "<actorID>" or "Scene.<sceneID>.Token.<tokenID>".
func ParseRef(ref string) (actorID string, token *TokenRef, err error) {
	parts := strings.Split(ref, ".")
	switch {
	case len(parts) == 1 && parts[0] != "":
		return parts[0], nil, nil
	case len(parts) == 4 && parts[0] == "Scene" && parts[2] == "Token" && parts[1] != "" && parts[3] != "":
		return "", &TokenRef{SceneID: parts[1], TokenID: parts[3]}, nil
	default:
		return "", nil, fmt.Errorf("invalid target reference %q", ref)
	}
}

// Resolve turns a reference into an editor target. A linked token
// resolves to its actor; an unlinked one becomes a token target.
func (s *Store) Resolve(ref string) (Target, error) {
	actorID, tref, err := ParseRef(ref)
	if err != nil {
		return Target{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if tref == nil {
		a, ok := s.actors[actorID]
		if !ok {
			return Target{}, fmt.Errorf("%w: actor %s", ErrNotFound, actorID)
		}
		return Target{Actor: *a}, nil
	}

	tok, err := s.token(*tref)
	if err != nil {
		return Target{}, err
	}
	a, ok := s.actors[tok.ActorID]
	if !ok {
		return Target{}, fmt.Errorf("%w: actor %s of token %s", ErrNotFound, tok.ActorID, tref)
	}
	if tok.ActorLink {
		return Target{Actor: *a}, nil
	}
	return Target{Actor: *a, Token: tref, TokenName: tok.Name}, nil
}

// LinkedTokens lists the placed tokens linked to an actor, across all
// scenes.
func (s *Store) LinkedTokens(actorID string) []TokenRef {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var refs []TokenRef
	for _, sc := range s.scenes {
		for _, t := range sc.Tokens {
			if t.ActorID == actorID && t.ActorLink {
				refs = append(refs, TokenRef{SceneID: sc.ID, TokenID: t.ID})
			}
		}
	}
	return refs
}

// UpdateActorImage sets an actor's avatar image.
func (s *Store) UpdateActorImage(actorID, img string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[actorID]
	if !ok {
		return fmt.Errorf("%w: actor %s", ErrNotFound, actorID)
	}
	a.Img = img
	return s.persist()
}

// UpdatePrototypeTokenImage sets the image new tokens of an actor get.
func (s *Store) UpdatePrototypeTokenImage(actorID, img string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[actorID]
	if !ok {
		return fmt.Errorf("%w: actor %s", ErrNotFound, actorID)
	}
	a.Token.Img = img
	return s.persist()
}

// UpdateTokenImage sets the image of one placed token.
func (s *Store) UpdateTokenImage(ref TokenRef, img string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.token(ref)
	if err != nil {
		return err
	}
	t.Img = img
	return s.persist()
}

// persist writes the store back to its file. Callers hold the write lock.
func (s *Store) persist() error {
	if s.path == "" {
		return nil
	}

	d := data{Actors: make([]Actor, 0, len(s.order))}
	for _, id := range s.order {
		d.Actors = append(d.Actors, *s.actors[id])
	}
	for _, sc := range s.scenes {
		d.Scenes = append(d.Scenes, *sc)
	}

	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode entities: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create entities directory: %w", err)
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write entities: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace entities: %w", err)
	}
	return nil
}

// Types lists the distinct actor types, sorted.
func (s *Store) Types() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var types []string
	for _, a := range s.actors {
		if a.Type != "" && !seen[a.Type] {
			seen[a.Type] = true
			types = append(types, a.Type)
		}
	}
	sort.Strings(types)
	return types
}
