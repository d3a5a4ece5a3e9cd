package assets

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// size is the side of every built-in asset.
const size = 256

// Built-in assets are drawn in white so the tint alone decides their
// colour on the token.
var generators = map[string]func() image.Image{
	"token_001": func() image.Image { return ring(128, 116) },
	"token_002": func() image.Image { return union(ring(128, 122), ring(116, 112)) },
	"token_003": func() image.Image { return dashedRing(114, 12, []float64{24, 12}) },
	"token_004": squareFrame,
	Background:  func() image.Image { return disc(127) },
	Placeholder: dropTarget,
}

var (
	builtinMu    sync.Mutex
	builtinCache = make(map[string][]byte)
)

// builtin returns the PNG encoding of a built-in asset.
func builtin(name string) ([]byte, error) {
	gen, ok := generators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, name)
	}

	builtinMu.Lock()
	defer builtinMu.Unlock()
	if data, ok := builtinCache[name]; ok {
		return data, nil
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, gen(), imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode built-in asset %s: %w", name, err)
	}
	builtinCache[name] = buf.Bytes()
	return buf.Bytes(), nil
}

// kappa places cubic control points so four segments approximate a circle.
const kappa = 0.5522847498307936

// circle adds a closed circle path centred on the asset. Clockwise and
// counter-clockwise circles cancel, which is how rings get their hole.
func circle(z *vector.Rasterizer, r float32, clockwise bool) {
	c := float32(size) / 2
	k := r * kappa
	if clockwise {
		z.MoveTo(c+r, c)
		z.CubeTo(c+r, c+k, c+k, c+r, c, c+r)
		z.CubeTo(c-k, c+r, c-r, c+k, c-r, c)
		z.CubeTo(c-r, c-k, c-k, c-r, c, c-r)
		z.CubeTo(c+k, c-r, c+r, c-k, c+r, c)
	} else {
		z.MoveTo(c+r, c)
		z.CubeTo(c+r, c-k, c+k, c-r, c, c-r)
		z.CubeTo(c-k, c-r, c-r, c-k, c-r, c)
		z.CubeTo(c-r, c+k, c-k, c+r, c, c+r)
		z.CubeTo(c+k, c+r, c+r, c+k, c+r, c)
	}
	z.ClosePath()
}

func fill(z *vector.Rasterizer) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	z.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{})
	return dst
}

func ring(outer, inner float32) image.Image {
	z := vector.NewRasterizer(size, size)
	circle(z, outer, true)
	circle(z, inner, false)
	return fill(z)
}

func disc(r float32) image.Image {
	z := vector.NewRasterizer(size, size)
	circle(z, r, true)
	return fill(z)
}

// dashedRing strokes a circle of radius r with the given dash pattern.
func dashedRing(r, width float64, dashes []float64) image.Image {
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, dst, dst.Bounds())
	d := rasterx.NewDasher(size, size, scanner)
	d.SetStroke(fixed.Int26_6(width*64), fixed.Int26_6(4*64), rasterx.ButtCap, nil, nil, rasterx.Round, dashes, 0)
	rasterx.AddCircle(size/2, size/2, r, d)
	d.SetColor(color.White)
	d.Draw()
	return dst
}

func union(a, b image.Image) image.Image {
	dst := imaging.Clone(a)
	draw.Draw(dst, dst.Bounds(), b, image.Point{}, draw.Over)
	return dst
}

func squareFrame() image.Image {
	const w = 10
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	white := image.NewUniform(color.White)
	for _, r := range []image.Rectangle{
		image.Rect(0, 0, size, w),
		image.Rect(0, size-w, size, size),
		image.Rect(0, 0, w, size),
		image.Rect(size-w, 0, size, size),
	} {
		draw.Draw(dst, r, white, image.Point{}, draw.Src)
	}
	return dst
}

// dropLabel is printed under the plus sign of the placeholder.
const dropLabel = "DROP IMAGE"

// dropTarget is a grey disc with a plus sign, shown until an image is
// dropped.
func dropTarget() image.Image {
	z := vector.NewRasterizer(size, size)
	circle(z, 120, true)
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	z.Draw(dst, dst.Bounds(), image.NewUniform(color.NRGBA{0x80, 0x80, 0x80, 0xC0}), image.Point{})

	const arm, thick = 60, 8
	c := size / 2
	plus := image.NewUniform(color.NRGBA{0xF0, 0xF0, 0xF0, 0xFF})
	draw.Draw(dst, image.Rect(c-arm, c-thick, c+arm, c+thick), plus, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(c-thick, c-arm, c+thick, c+arm), plus, image.Point{}, draw.Src)

	d := &font.Drawer{Dst: dst, Src: plus, Face: basicfont.Face7x13}
	w := d.MeasureString(dropLabel).Ceil()
	d.Dot = fixed.P(c-w/2, c+arm+24)
	d.DrawString(dropLabel)
	return dst
}
