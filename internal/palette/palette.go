// Package palette reads colours out of editor images so a client can pick
// border and background tints that match the artwork.
package palette

import (
	"fmt"
	"image"
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Color is one colour in the forms a colour picker needs.
type Color struct {
	Hex string `json:"hex"`
	R   uint8  `json:"r"`
	G   uint8  `json:"g"`
	B   uint8  `json:"b"`
	A   uint8  `json:"a"`

	// H is in degrees, S and L in [0, 1].
	H float64 `json:"h"`
	S float64 `json:"s"`
	L float64 `json:"l"`
}

// NewColor builds a Color from 8-bit components.
func NewColor(r, g, b, a uint8) Color {
	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	h, s, l := c.Hsl()
	return Color{Hex: c.Hex(), R: r, G: g, B: b, A: a, H: h, S: s, L: l}
}

// Sample returns the colour at (x, y). Premultiplied colour is converted
// back to straight alpha so a half-transparent red still reads as red.
func Sample(img image.Image, x, y int) (Color, error) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return Color{}, fmt.Errorf("point (%d,%d) outside image bounds %v", x, y, img.Bounds())
	}
	r, g, b, a := img.At(x, y).RGBA()
	if a == 0 {
		return NewColor(0, 0, 0, 0), nil
	}
	return NewColor(
		uint8(r*0xFFFF/a>>8),
		uint8(g*0xFFFF/a>>8),
		uint8(b*0xFFFF/a>>8),
		uint8(a>>8),
	), nil
}

// Swatch is a colour and its share of the counted pixels.
type Swatch struct {
	Color
	Percentage float64 `json:"percentage"`
}

// minAlpha is the 16-bit alpha below which a pixel is not counted.
const minAlpha = 0x8000

// Dominant returns up to count colours, most common first. Colours are
// quantized to steps of 16 per channel so near shades group together.
// Mostly transparent pixels are skipped.
func Dominant(img image.Image, count int) []Swatch {
	counts := make(map[uint32]int)
	total := 0

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if a < minAlpha {
				continue
			}
			r8 := uint32(r*0xFFFF/a>>8) &^ 0x0F
			g8 := uint32(g*0xFFFF/a>>8) &^ 0x0F
			b8 := uint32(bl*0xFFFF/a>>8) &^ 0x0F
			counts[r8<<16|g8<<8|b8]++
			total++
		}
	}
	if total == 0 {
		return nil
	}

	swatches := make([]Swatch, 0, len(counts))
	for key, n := range counts {
		swatches = append(swatches, Swatch{
			Color:      NewColor(uint8(key>>16), uint8(key>>8), uint8(key), 0xFF),
			Percentage: float64(n) / float64(total) * 100,
		})
	}
	sort.Slice(swatches, func(i, j int) bool {
		if swatches[i].Percentage != swatches[j].Percentage {
			return swatches[i].Percentage > swatches[j].Percentage
		}
		return swatches[i].Hex < swatches[j].Hex
	})

	if count > 0 && len(swatches) > count {
		swatches = swatches[:count]
	}
	return swatches
}
