package editor

import (
	"math"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/easy-token-mcp/internal/export"
	"github.com/ironsheep/easy-token-mcp/internal/palette"
	"github.com/ironsheep/easy-token-mcp/internal/vec"
)

// paletteSize bounds the image scanned for dominant colours.
const paletteSize = 256

// Palette returns up to count dominant colours of the loaded image.
func (s *Session) Palette(count int) ([]palette.Swatch, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	tex := s.stage.Texture()
	s.mu.Unlock()

	if tex == nil {
		return nil, export.ErrNoImage
	}
	img := tex.Image()
	if b := img.Bounds(); b.Dx() > paletteSize || b.Dy() > paletteSize {
		img = imaging.Fit(img, paletteSize, paletteSize, imaging.Box)
	}
	return palette.Dominant(img, count), nil
}

// SampleColor picks the colour shown at a stage point, like an eyedropper.
func (s *Session) SampleColor(p vec.Vec2) (palette.Color, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return palette.Color{}, ErrSessionClosed
	}
	img := s.stage.RenderStage()
	s.mu.Unlock()

	return palette.Sample(img, int(math.Floor(p.X)), int(math.Floor(p.Y)))
}
