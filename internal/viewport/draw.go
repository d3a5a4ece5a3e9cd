package viewport

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/anthonynsimon/bild/adjust"
	colorful "github.com/lucasb-eyer/go-colorful"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ironsheep/easy-token-mcp/internal/vec"
)

// White is the neutral tint.
const White uint32 = 0xFFFFFF

// Black is used for the preview frame outline.
const Black uint32 = 0x000000

// ParseTint converts a colour input value such as "#ff8800" or "#f80" into a
// 24-bit tint.
func ParseTint(hex string) (uint32, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return 0, fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b), nil
}

// TintHex formats a 24-bit tint as "#rrggbb".
func TintHex(tint uint32) string {
	return colorful.Color{
		R: float64(tint>>16&0xFF) / 255,
		G: float64(tint>>8&0xFF) / 255,
		B: float64(tint&0xFF) / 255,
	}.Hex()
}

// tintImage multiplies every channel by the tint and the alpha factor.
// The pixels are premultiplied, so scaling all four channels by alpha and the
// colour channels by the tint keeps them valid.
func tintImage(img image.Image, tint uint32, alpha float64) image.Image {
	tr := float64(tint>>16&0xFF) / 255
	tg := float64(tint>>8&0xFF) / 255
	tb := float64(tint&0xFF) / 255

	return adjust.Apply(img, func(c color.RGBA) color.RGBA {
		return color.RGBA{
			R: uint8(math.Round(float64(c.R) * tr * alpha)),
			G: uint8(math.Round(float64(c.G) * tg * alpha)),
			B: uint8(math.Round(float64(c.B) * tb * alpha)),
			A: uint8(math.Round(float64(c.A) * alpha)),
		}
	})
}

// renderer carries per-frame state: the target surface, the mapping from
// global coordinates to it, and masks rasterized for this frame.
type renderer struct {
	dst   *image.RGBA
	toDst f64.Aff3
	masks map[Mask]*image.Alpha
}

func (r *renderer) mask(m Mask) *image.Alpha {
	if a, ok := r.masks[m]; ok {
		return a
	}
	a := m.rasterize(r.dst.Bounds(), r.toDst)
	r.masks[m] = a
	return a
}

// renderTree draws root and its descendants into a transparent w×h surface.
// toDst maps global coordinates onto the surface.
func renderTree(root Node, w, h int, toDst f64.Aff3) *image.RGBA {
	r := &renderer{
		dst:   image.NewRGBA(image.Rect(0, 0, w, h)),
		toDst: toDst,
		masks: make(map[Mask]*image.Alpha),
	}
	root.render(r, mul(toDst, root.base().worldMatrix()))
	return r.dst
}

// prepared returns the texture with tint and alpha applied, reusing the
// previous result while none of them changed.
func (s *Sprite) prepared() image.Image {
	img := s.texture.Image()
	if s.tint == White && s.Alpha >= 1 {
		return img
	}
	if s.cache != nil && s.cacheTex == s.texture && s.cacheTint == s.tint && s.cacheAlpha == s.Alpha {
		return s.cache
	}
	s.cache = tintImage(img, s.tint, s.Alpha)
	s.cacheTex, s.cacheTint, s.cacheAlpha = s.texture, s.tint, s.Alpha
	return s.cache
}

func (s *Sprite) render(r *renderer, m f64.Aff3) {
	if !s.Visible || s.texture == nil || s.Alpha <= 0 {
		return
	}
	lo, _, _ := s.localBounds()
	src := s.prepared()
	sb := src.Bounds()

	s2d := mul(m, translate(lo.X-float64(sb.Min.X), lo.Y-float64(sb.Min.Y)))

	var opts *xdraw.Options
	if s.Mask != nil {
		opts = &xdraw.Options{DstMask: r.mask(s.Mask)}
	}
	xdraw.BiLinear.Transform(r.dst, s2d, src, sb, xdraw.Over, opts)
}

func (g *Graphics) render(r *renderer, m f64.Aff3) {
	if !g.Visible {
		return
	}
	p0 := apply(m, vec.Vec2{})
	p1 := apply(m, g.Rect)
	x0, y0 := int(math.Round(p0.X)), int(math.Round(p0.Y))
	x1, y1 := int(math.Round(p1.X)), int(math.Round(p1.Y))

	c := image.NewUniform(color.RGBA{
		R: uint8(g.LineColor >> 16),
		G: uint8(g.LineColor >> 8),
		B: uint8(g.LineColor),
		A: 0xFF,
	})
	edges := []image.Rectangle{
		image.Rect(x0, y0, x1+1, y0+1),
		image.Rect(x0, y1, x1+1, y1+1),
		image.Rect(x0, y0, x0+1, y1+1),
		image.Rect(x1, y0, x1+1, y1+1),
	}
	for _, e := range edges {
		draw.Draw(r.dst, e, c, image.Point{}, draw.Over)
	}
}
