// Package settings stores where exported images are uploaded.
//
// Settings live in one JSON file. The store keeps the decoded value in
// memory and rewrites the whole file on every change.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Source is a storage backend name.
type Source string

const (
	// Data is the host's own data directory.
	Data Source = "data"

	// S3 is an object store. Its paths are not nested under the world.
	S3 Source = "s3"
)

// Category is the kind of exported image.
type Category string

const (
	Avatar Category = "avatar"
	Token  Category = "token"
)

// DefaultWorld is used when no world is configured.
const DefaultWorld = "default"

// CategoryPaths holds per-category upload directories for one actor type.
// Empty values fall back to the default path.
type CategoryPaths struct {
	Avatar string `json:"avatar,omitempty"`
	Token  string `json:"token,omitempty"`
}

func (p CategoryPaths) get(cat Category) string {
	if cat == Avatar {
		return p.Avatar
	}
	return p.Token
}

// Settings is the persisted configuration.
type Settings struct {
	Source Source `json:"source"`

	// Paths maps an actor type to its upload directories.
	Paths map[string]CategoryPaths `json:"paths,omitempty"`

	// Buckets lists the configured S3 buckets. The first one is used.
	Buckets []string `json:"buckets,omitempty"`

	// World scopes data-source paths under worlds/<world>/.
	World string `json:"world,omitempty"`

	// ActorTypes lists the actor types offered in the directories view.
	ActorTypes []string `json:"actor_types,omitempty"`

	// AvatarFormat and TokenFormat name the export encodings.
	AvatarFormat string `json:"avatar_format,omitempty"`
	TokenFormat  string `json:"token_format,omitempty"`

	// JPEGQuality and WebPQuality apply to exports in that format.
	JPEGQuality int `json:"jpeg_quality,omitempty"`
	WebPQuality int `json:"webp_quality,omitempty"`
}

// Defaults returns the settings used when no file exists yet.
func Defaults() Settings {
	return Settings{
		Source:       Data,
		Paths:        map[string]CategoryPaths{},
		World:        DefaultWorld,
		ActorTypes:   []string{"character", "npc"},
		AvatarFormat: "webp",
		TokenFormat:  "webp",
		JPEGQuality:  90,
		WebPQuality:  80,
	}
}

// Validate checks the fields a caller can get wrong.
func (s Settings) Validate() error {
	switch s.Source {
	case Data, S3:
	default:
		return fmt.Errorf("invalid source %q (use data or s3)", s.Source)
	}
	if s.JPEGQuality < 0 || s.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be between 0 and 100, got %d", s.JPEGQuality)
	}
	if s.WebPQuality < 0 || s.WebPQuality > 100 {
		return fmt.Errorf("webp_quality must be between 0 and 100, got %d", s.WebPQuality)
	}
	for typ, p := range s.Paths {
		for _, dir := range []string{p.Avatar, p.Token} {
			if strings.Contains(dir, "..") {
				return fmt.Errorf("path for %s must not contain '..': %q", typ, dir)
			}
		}
	}
	return nil
}

// DefaultPath is the upload directory used when none is configured:
// images/<cat>s/<type>s, under worlds/<world>/ unless the source is S3.
func DefaultPath(source Source, world, actorType string, cat Category) string {
	key := path.Join("images", string(cat)+"s", actorType+"s")
	if source == S3 {
		return key
	}
	if world == "" {
		world = DefaultWorld
	}
	return path.Join("worlds", world, key)
}

// UploadPath resolves the upload directory for an actor type and category.
func (s Settings) UploadPath(source Source, actorType string, cat Category) string {
	if p := s.Paths[actorType].get(cat); p != "" {
		return p
	}
	return DefaultPath(source, s.World, actorType, cat)
}

// Bucket returns the bucket to upload to, or "" for sources without
// buckets.
func (s Settings) Bucket(source Source) string {
	if source != S3 || len(s.Buckets) == 0 {
		return ""
	}
	return s.Buckets[0]
}

// Directory is one row of the directories view: the configured value and
// the default it falls back to.
type Directory struct {
	Type              string `json:"type"`
	Avatar            string `json:"avatar"`
	AvatarPlaceholder string `json:"avatar_placeholder"`
	Token             string `json:"token"`
	TokenPlaceholder  string `json:"token_placeholder"`
}

// Directories lists the upload directories of every known actor type,
// including types that only appear in Paths.
func (s Settings) Directories() []Directory {
	seen := make(map[string]bool)
	var types []string
	for _, t := range s.ActorTypes {
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	var extra []string
	for t := range s.Paths {
		if !seen[t] {
			seen[t] = true
			extra = append(extra, t)
		}
	}
	sort.Strings(extra)
	types = append(types, extra...)

	dirs := make([]Directory, 0, len(types))
	for _, t := range types {
		p := s.Paths[t]
		dirs = append(dirs, Directory{
			Type:              t,
			Avatar:            p.Avatar,
			AvatarPlaceholder: DefaultPath(s.Source, s.World, t, Avatar),
			Token:             p.Token,
			TokenPlaceholder:  DefaultPath(s.Source, s.World, t, Token),
		})
	}
	return dirs
}

// Store loads and saves Settings from a JSON file.
type Store struct {
	path string

	mu       sync.RWMutex
	settings Settings
}

// Open reads the settings file at p. A missing file yields defaults and is
// created on the first Update.
func Open(p string) (*Store, error) {
	s := &Store{path: p, settings: Defaults()}

	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	loaded := Defaults()
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", p, err)
	}
	if loaded.Paths == nil {
		loaded.Paths = map[string]CategoryPaths{}
	}
	if err := loaded.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", p, err)
	}
	s.settings = loaded
	return s, nil
}

// Path returns the settings file location.
func (s *Store) Path() string { return s.path }

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.clone()
}

// Update applies fn to a copy of the settings, validates the result and
// saves it. On error nothing changes.
func (s *Store) Update(fn func(*Settings)) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings.clone()
	fn(&next)
	if err := next.Validate(); err != nil {
		return s.settings.clone(), err
	}
	if err := s.write(next); err != nil {
		return s.settings.clone(), err
	}
	s.settings = next
	return next.clone(), nil
}

// SetDirectories replaces source and paths the way the directories form
// submits them: empty values are dropped.
func (s *Store) SetDirectories(source Source, paths map[string]CategoryPaths) (Settings, error) {
	return s.Update(func(st *Settings) {
		st.Source = source
		st.Paths = make(map[string]CategoryPaths)
		for t, p := range paths {
			p.Avatar = strings.TrimSpace(p.Avatar)
			p.Token = strings.TrimSpace(p.Token)
			if p.Avatar != "" || p.Token != "" {
				st.Paths[t] = p
			}
		}
	})
}

func (s *Store) write(st Settings) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace settings: %w", err)
	}
	return nil
}

func (s Settings) clone() Settings {
	c := s
	c.Paths = make(map[string]CategoryPaths, len(s.Paths))
	for k, v := range s.Paths {
		c.Paths[k] = v
	}
	c.Buckets = append([]string(nil), s.Buckets...)
	c.ActorTypes = append([]string(nil), s.ActorTypes...)
	return c
}
