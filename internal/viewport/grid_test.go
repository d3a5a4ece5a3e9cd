package viewport

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
)

func TestDrawGrid(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 120))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	DrawGrid(img, 50, color.RGBA{R: 0xFF, A: 0xFF})

	tests := []struct {
		name    string
		x, y    int
		wantRed bool
	}{
		{"vertical line", 50, 110, true},
		{"horizontal line", 190, 100, true},
		{"between lines", 25, 25, false},
		{"left edge has no line", 0, 25, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _, _ := rgbaAt(t, img, tt.x, tt.y)
			if got := r == 0xFF; got != tt.wantRed {
				t.Errorf("pixel (%d,%d) red = %v, want %v", tt.x, tt.y, got, tt.wantRed)
			}
		})
	}

	// The "50,50" label is drawn in white just inside the crossing.
	white := false
	for y := 52; y < 52+13 && !white; y++ {
		for x := 52; x < 52+5*7; x++ {
			if r, g, b, _ := rgbaAt(t, img, x, y); r == 0xFF && g == 0xFF && b == 0xFF {
				white = true
				break
			}
		}
	}
	if !white {
		t.Error("no label text found at the 50,50 crossing")
	}
}

func TestDrawGrid_ZeroSpacing(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	DrawGrid(img, 0, GridColor)
	if _, _, _, a := rgbaAt(t, img, 5, 5); a != 0 {
		t.Error("zero spacing should draw nothing")
	}
}
