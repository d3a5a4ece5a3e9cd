// Package export turns the editor stage into encoded images.
//
// Rasterizing reads session state and must run while the caller holds the
// session lock. Encoding only touches the rasterized copy and runs on its
// own goroutine.
package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"

	"github.com/ironsheep/easy-token-mcp/internal/viewport"
)

// ErrNoImage is returned when an export is requested before an image is
// loaded. Callers treat it as a no-op.
var ErrNoImage = errors.New("no image loaded")

// Lossy quality used when a target does not set one.
const (
	DefaultQuality     = 90
	DefaultWebPQuality = 80
)

// webpMethod trades encode speed for size, 0 (fast) to 6 (small).
const webpMethod = 4

// Source selects what is rasterized.
type Source string

const (
	// Avatar is the loaded image at its native resolution.
	Avatar Source = "avatar"

	// Token is the circular token composite.
	Token Source = "token"
)

// Format is an output encoding.
type Format string

const (
	WEBP Format = "webp"
	JPEG Format = "jpeg"
	PNG  Format = "png"
)

// Formats lists the supported encodings, default first.
var Formats = []Format{WEBP, JPEG, PNG}

// ParseFormat accepts a format name or file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "webp":
		return WEBP, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (use webp, jpeg or png)", s)
	}
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string {
	if f == JPEG {
		return "jpg"
	}
	return string(f)
}

// MimeType returns the content type of the encoded bytes.
func (f Format) MimeType() string {
	return "image/" + string(f)
}

// Target describes one export.
type Target struct {
	Source Source `json:"source"`

	// Size is the side of the token output. Zero keeps the stage token size.
	// Avatars are always exported at native resolution.
	Size int `json:"size,omitempty"`

	Format Format `json:"format"`

	// Quality applies to the lossy formats. Zero means the format's
	// default.
	Quality int `json:"quality,omitempty"`
}

// AvatarTarget is the default avatar export.
func AvatarTarget() Target {
	return Target{Source: Avatar, Format: WEBP, Quality: DefaultWebPQuality}
}

// TokenTarget is the default token export. WebP keeps the alpha channel,
// so the corners outside the token circle stay transparent.
func TokenTarget() Target {
	return Target{Source: Token, Format: WEBP, Quality: DefaultWebPQuality}
}

// Scene is the part of the stage an export reads.
type Scene interface {
	Texture() *viewport.Texture
	RenderToken() *image.RGBA
}

// Rasterize produces the pixels for t. The result does not alias scene
// state and can be handed to another goroutine.
func Rasterize(scene Scene, t Target) (image.Image, error) {
	tex := scene.Texture()
	if tex == nil {
		return nil, ErrNoImage
	}

	switch t.Source {
	case Avatar:
		return imaging.Clone(tex.Image()), nil
	case Token:
		img := scene.RenderToken()
		if t.Size > 0 && t.Size != img.Bounds().Dx() {
			return imaging.Resize(img, t.Size, t.Size, imaging.Lanczos), nil
		}
		return img, nil
	default:
		return nil, fmt.Errorf("unknown export source %q", t.Source)
	}
}

// Encoded holds compressed image bytes.
type Encoded struct {
	Data     []byte `json:"-"`
	Format   Format `json:"format"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	MimeType string `json:"mime_type"`
}

// Base64 returns the bytes for embedding in a JSON response.
func (e *Encoded) Base64() string {
	return base64.StdEncoding.EncodeToString(e.Data)
}

// Encode compresses img in the target format.
func Encode(img image.Image, t Target) (*Encoded, error) {
	var buf bytes.Buffer
	var err error

	switch t.Format {
	case WEBP:
		q := t.Quality
		if q <= 0 {
			q = DefaultWebPQuality
		}
		err = webp.Encode(&buf, img, webp.Options{Quality: q, Method: webpMethod})
	case JPEG:
		q := t.Quality
		if q <= 0 {
			q = DefaultQuality
		}
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q))
	case PNG:
		err = imaging.Encode(&buf, img, imaging.PNG)
	default:
		return nil, fmt.Errorf("unsupported export format %q", t.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", t.Format, err)
	}

	b := img.Bounds()
	return &Encoded{
		Data:     buf.Bytes(),
		Format:   t.Format,
		Width:    b.Dx(),
		Height:   b.Dy(),
		MimeType: t.Format.MimeType(),
	}, nil
}

// Result is delivered by EncodeAsync.
type Result struct {
	Encoded *Encoded
	Err     error
}

// EncodeAsync encodes img on a new goroutine. The channel receives exactly
// one Result and is then closed.
func EncodeAsync(ctx context.Context, img image.Image, t Target) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		if err := ctx.Err(); err != nil {
			out <- Result{Err: err}
			return
		}
		enc, err := Encode(img, t)
		out <- Result{Encoded: enc, Err: err}
	}()
	return out
}
