// Package assets resolves the logical asset names used by the editor
// (borders, the token background and the drop placeholder) to textures.
//
// A directory can override any asset with a file named after it. Names
// that the directory does not provide fall back to built-in assets drawn
// at startup, so the editor works without any files on disk.
package assets

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/ironsheep/easy-token-mcp/internal/viewport"
)

// Logical names of the fixed assets.
const (
	DefaultBorder = "token_001"
	Background    = "background"
	Placeholder   = "drop"
)

// BorderPrefix marks border assets.
const BorderPrefix = "token_"

// ErrUnknownAsset is returned for a name that neither the override
// directory nor the built-ins provide.
var ErrUnknownAsset = errors.New("unknown asset")

// extensions are tried in order when looking a name up in the directory.
var extensions = []string{".webp", ".png", ".jpg", ".jpeg"}

// Resolver maps asset names to textures. Decoded textures are cached.
type Resolver struct {
	dir fs.FS

	mu       sync.Mutex
	textures map[string]*viewport.Texture
}

// NewResolver creates a resolver. dir may be nil to use only built-ins.
func NewResolver(dir fs.FS) *Resolver {
	return &Resolver{
		dir:      dir,
		textures: make(map[string]*viewport.Texture),
	}
}

// Name strips any directory and extension from a file reference, so
// "modules/x/images/token_002.webp" resolves like "token_002".
func Name(ref string) string {
	base := path.Base(ref)
	return strings.TrimSuffix(base, path.Ext(base))
}

// Texture returns the texture for name.
func (r *Resolver) Texture(name string) (*viewport.Texture, error) {
	name = Name(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if tex, ok := r.textures[name]; ok {
		return tex, nil
	}

	data, source, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	tex, err := viewport.DecodeTexture(bytes.NewReader(data), source)
	if err != nil {
		return nil, fmt.Errorf("failed to decode asset %s: %w", name, err)
	}
	r.textures[name] = tex
	return tex, nil
}

// Bytes returns the encoded asset, for hosts that display it directly.
func (r *Resolver) Bytes(name string) ([]byte, error) {
	data, _, err := r.lookup(Name(name))
	return data, err
}

func (r *Resolver) lookup(name string) ([]byte, string, error) {
	if r.dir != nil {
		for _, ext := range extensions {
			data, err := fs.ReadFile(r.dir, name+ext)
			if err == nil {
				return data, name + ext, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, "", fmt.Errorf("failed to read asset %s: %w", name+ext, err)
			}
		}
	}

	data, err := builtin(name)
	if err != nil {
		return nil, "", err
	}
	return data, "builtin:" + name, nil
}

// Names lists every resolvable asset, sorted.
func (r *Resolver) Names() []string {
	seen := make(map[string]bool)
	for name := range generators {
		seen[name] = true
	}
	if r.dir != nil {
		entries, _ := fs.ReadDir(r.dir, ".")
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ext := strings.ToLower(path.Ext(e.Name()))
			for _, known := range extensions {
				if ext == known {
					seen[Name(e.Name())] = true
					break
				}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Borders lists the assets that can be used as a token border.
func (r *Resolver) Borders() []string {
	var borders []string
	for _, name := range r.Names() {
		if strings.HasPrefix(name, BorderPrefix) {
			borders = append(borders, name)
		}
	}
	return borders
}
