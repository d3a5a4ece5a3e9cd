package viewport

import (
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// GridColor is the default colour of coordinate grid lines.
var GridColor = color.RGBA{R: 0xFF, A: 0x80}

var (
	gridLabelFG = image.NewUniform(color.White)
	gridLabelBG = image.NewUniform(color.RGBA{A: 0xB4})
)

// DrawGrid draws grid lines every spacing pixels over img, labelling each
// crossing with its "x,y" coordinate. Rendered stages carry the grid so a
// client can read off pointer coordinates.
func DrawGrid(img *image.RGBA, spacing int, c color.Color) {
	if spacing <= 0 {
		return
	}
	b := img.Bounds()
	line := image.NewUniform(c)

	for x := b.Min.X + spacing; x < b.Max.X; x += spacing {
		draw.Draw(img, image.Rect(x, b.Min.Y, x+1, b.Max.Y), line, image.Point{}, draw.Over)
	}
	for y := b.Min.Y + spacing; y < b.Max.Y; y += spacing {
		draw.Draw(img, image.Rect(b.Min.X, y, b.Max.X, y+1), line, image.Point{}, draw.Over)
	}

	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: gridLabelFG, Face: face}
	for y := b.Min.Y + spacing; y < b.Max.Y; y += spacing {
		for x := b.Min.X + spacing; x < b.Max.X; x += spacing {
			label := strconv.Itoa(x-b.Min.X) + "," + strconv.Itoa(y-b.Min.Y)
			w := d.MeasureString(label).Ceil()
			box := image.Rect(x+1, y+1, x+3+w, y+3+face.Height)
			draw.Draw(img, box, gridLabelBG, image.Point{}, draw.Over)

			d.Dot = fixed.P(x+2, y+2+face.Ascent)
			d.DrawString(label)
		}
	}
}
