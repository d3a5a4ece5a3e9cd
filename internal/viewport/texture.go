package viewport

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// ErrEmptyTexture is returned when a decoded image has no pixels.
var ErrEmptyTexture = errors.New("viewport: image has no pixels")

// ErrTooLarge is returned for a fetched image larger than MaxFetchSize.
var ErrTooLarge = errors.New("viewport: image exceeds fetch limit")

// MaxFetchSize caps the body read from an image URL. It matches the largest
// request line the MCP server accepts for a dropped file.
const MaxFetchSize = 64 << 20

// Texture is an immutable handle to decoded pixel data.
//
// The same Texture is shared by the editor and preview sprites; each sprite
// keeps its own transform.
type Texture struct {
	img    image.Image
	width  int
	height int
	source string
}

// NewTexture wraps an already decoded image.
func NewTexture(img image.Image, source string) *Texture {
	b := img.Bounds()
	return &Texture{img: img, width: b.Dx(), height: b.Dy(), source: source}
}

// DecodeTexture decodes PNG, JPEG, GIF or WebP data from r.
// EXIF orientation is honoured so phone photos are not rotated.
func DecodeTexture(r io.Reader, source string) (*Texture, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyTexture
	}
	return NewTexture(img, source), nil
}

// Image returns the decoded pixels.
func (t *Texture) Image() image.Image { return t.img }

// Width returns the native width in pixels.
func (t *Texture) Width() int { return t.width }

// Height returns the native height in pixels.
func (t *Texture) Height() int { return t.height }

// Source returns the URL, path or name the texture was created from.
func (t *Texture) Source() string { return t.source }

// TextureLoader creates textures from URLs, data URIs, stored file paths and
// raw buffers. Textures loaded by URL or path are cached by their source
// string, so reloading the same avatar does not fetch or decode it again.
//
// TextureLoader is safe for concurrent use.
type TextureLoader struct {
	mu       sync.RWMutex
	textures map[string]*Texture
	files    fs.FS
	client   *http.Client
	maxFetch int64
}

// NewTextureLoader creates a loader. Relative paths are opened from files,
// which may be nil when only URLs and buffers are used.
func NewTextureLoader(files fs.FS) *TextureLoader {
	return &TextureLoader{
		textures: make(map[string]*Texture),
		files:    files,
		client:   http.DefaultClient,
		maxFetch: MaxFetchSize,
	}
}

// Load resolves src into a texture.
//
// Supported sources:
//   - "data:" URIs (base64 or percent-encoded payload); never cached
//   - "http://" and "https://" URLs
//   - paths relative to the loader's file system; a trailing "?query"
//     cache buster is ignored
func (l *TextureLoader) Load(ctx context.Context, src string) (*Texture, error) {
	if strings.HasPrefix(src, "data:") {
		return FromDataURI(src)
	}

	key := src
	l.mu.RLock()
	if t, ok := l.textures[key]; ok {
		l.mu.RUnlock()
		return t, nil
	}
	l.mu.RUnlock()

	var (
		t   *Texture
		err error
	)
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		t, err = l.fetch(ctx, src)
	} else {
		t, err = l.open(src)
	}
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.textures[key] = t
	l.mu.Unlock()

	return t, nil
}

// FromBytes decodes a raw file buffer such as a dropped or uploaded file.
func (l *TextureLoader) FromBytes(data []byte, name string) (*Texture, error) {
	return DecodeTexture(bytes.NewReader(data), name)
}

// Evict removes a cached texture.
func (l *TextureLoader) Evict(src string) {
	l.mu.Lock()
	delete(l.textures, src)
	l.mu.Unlock()
}

// Clear removes all cached textures.
func (l *TextureLoader) Clear() {
	l.mu.Lock()
	l.textures = make(map[string]*Texture)
	l.mu.Unlock()
}

func (l *TextureLoader) fetch(ctx context.Context, src string) (*Texture, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxFetch+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > l.maxFetch {
		return nil, fmt.Errorf("%w: %s is over %d bytes", ErrTooLarge, src, l.maxFetch)
	}
	return DecodeTexture(bytes.NewReader(data), src)
}

func (l *TextureLoader) open(src string) (*Texture, error) {
	if l.files == nil {
		return nil, fmt.Errorf("failed to open image %q: no file system configured", src)
	}
	p := src
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimPrefix(path.Clean("/"+p), "/")

	f, err := l.files.Open(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	return DecodeTexture(f, src)
}

// FromDataURI decodes an RFC 2397 data URI such as the result of reading a
// dropped file in a browser.
func FromDataURI(uri string) (*Texture, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI: missing ','")
	}

	var data []byte
	if strings.HasSuffix(meta, ";base64") {
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode data URI: %w", err)
		}
		data = b
	} else {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode data URI: %w", err)
		}
		data = []byte(s)
	}

	return DecodeTexture(bytes.NewReader(data), "data:"+meta)
}
