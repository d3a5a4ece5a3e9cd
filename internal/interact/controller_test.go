package interact

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"testing"

	"github.com/ironsheep/easy-token-mcp/internal/vec"
	"github.com/ironsheep/easy-token-mcp/internal/viewport"
)

const eps = 1e-9

// newLoadedStage returns a default stage showing a w×h solid image.
func newLoadedStage(t *testing.T, w, h int) *viewport.Stage {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{200, 100, 50, 255}), image.Point{}, draw.Src)

	s := viewport.NewStage(viewport.DefaultLayout())
	s.SetTexture(viewport.NewTexture(img, "test"))
	return s
}

func TestDrag_MovesBothImagesByTheSameDelta(t *testing.T) {
	s := newLoadedStage(t, 200, 200)
	s.PreviewImage().SetPosition(vec.Vec2{X: -7, Y: 11})
	c := NewController(s)

	editorStart := s.EditorImage().Position
	previewStart := s.PreviewImage().Position

	if !c.PointerDown(vec.Vec2{X: 400, Y: 400}) {
		t.Fatal("pointer down on the image should start a drag")
	}
	if c.State() != Dragging {
		t.Fatalf("state: got %v, want dragging", c.State())
	}

	c.PointerMove(vec.Vec2{X: 430, Y: 410})
	c.PointerMove(vec.Vec2{X: 465, Y: 426})
	c.PointerUp(vec.Vec2{X: 465, Y: 426})

	editorDelta := vec.Subtract(s.EditorImage().Position, vec.Of(editorStart))
	previewDelta := vec.Subtract(s.PreviewImage().Position, vec.Of(previewStart))

	if !vec.ApproxEqual(editorDelta, previewDelta, eps) {
		t.Errorf("deltas differ: editor %v, preview %v", editorDelta, previewDelta)
	}

	// The pointer moved (65,26) globally; the editor view is magnified 1.3x.
	want := vec.Vec2{X: 65 / 1.3, Y: 26 / 1.3}
	if !vec.ApproxEqual(editorDelta, want, eps) {
		t.Errorf("editor delta: got %v, want %v", editorDelta, want)
	}
	if c.Dragging() {
		t.Error("pointer up should end the drag")
	}
}

func TestDrag_IgnoresMoveWhenIdle(t *testing.T) {
	s := newLoadedStage(t, 200, 200)
	c := NewController(s)

	c.PointerMove(vec.Vec2{X: 500, Y: 500})
	if s.EditorImage().Position != (vec.Vec2{}) {
		t.Errorf("idle move changed position: %v", s.EditorImage().Position)
	}
	if p, ok := c.Pointer(); !ok || p != (vec.Vec2{X: 500, Y: 500}) {
		t.Errorf("pointer not tracked while idle: %v %v", p, ok)
	}
}

func TestPointerDown_Misses(t *testing.T) {
	tests := []struct {
		name string
		size int
		p    vec.Vec2
	}{
		{"outside image bounds", 100, vec.Vec2{X: 10, Y: 10}},
		{"inside preview corner", 2000, vec.Vec2{X: 900, Y: 600}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(newLoadedStage(t, tt.size, tt.size))
			if c.PointerDown(tt.p) {
				t.Errorf("PointerDown(%v) should not start a drag", tt.p)
			}
		})
	}
}

func TestPointerUp_OutsideImageEndsDrag(t *testing.T) {
	s := newLoadedStage(t, 200, 200)
	c := NewController(s)
	c.PointerDown(vec.Vec2{X: 362, Y: 384})
	c.PointerUp(vec.Vec2{X: -100, Y: -100})
	if c.Dragging() {
		t.Error("drag should end on pointer up anywhere")
	}
}

func TestWheel_AnchorStaysUnderCursor(t *testing.T) {
	starts := []float64{0.1, 0.35, 1, 2.5}
	anchors := []vec.Vec2{{X: 362, Y: 384}, {X: 300, Y: 250}, {X: 500, Y: 600}}

	for _, z := range starts {
		for _, a := range anchors {
			for _, delta := range []float64{120, -120} {
				s := newLoadedStage(t, 400, 400)
				c := NewController(s)
				c.SetZoom(z)
				s.EditorImage().SetPosition(vec.Vec2{X: 13, Y: -21})
				s.PreviewImage().SetPosition(vec.Vec2{X: 13, Y: -21})

				editor := s.EditorImage()
				before := editor.ToLocal(a)
				previewBefore := s.PreviewImage().Position
				editorBefore := editor.Position

				c.Wheel(a, delta)

				if got := editor.ToGlobal(before); !vec.ApproxEqual(got, a, 1e-6) {
					t.Errorf("zoom %v anchor %v delta %v: point moved to %v", z, a, delta, got)
				}

				ed := vec.Subtract(editor.Position, vec.Of(editorBefore))
				pd := vec.Subtract(s.PreviewImage().Position, vec.Of(previewBefore))
				if !vec.ApproxEqual(ed, pd, eps) {
					t.Errorf("zoom %v anchor %v: shifts differ editor %v preview %v", z, a, ed, pd)
				}
				if s.PreviewImage().Scale != editor.Scale {
					t.Errorf("scales differ: editor %v preview %v", editor.Scale, s.PreviewImage().Scale)
				}
			}
		}
	}
}

func TestWheel_StepBySignOnly(t *testing.T) {
	tests := []struct {
		name   string
		deltas []float64
		want   float64
	}{
		{"scroll down zooms out", []float64{120}, 0.95},
		{"magnitude ignored", []float64{3}, 0.95},
		{"zero zooms out", []float64{0}, 0.95},
		{"scroll up zooms in", []float64{-50}, 1.05},
		{"two steps in", []float64{-1, -1000}, 1.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newLoadedStage(t, 100, 100)
			c := NewController(s)
			var got float64
			for _, d := range tt.deltas {
				got = c.Wheel(vec.Vec2{X: 362, Y: 384}, d)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("zoom: got %v, want %v", got, tt.want)
			}
			if math.Abs(s.Zoom()-tt.want) > 1e-12 {
				t.Errorf("stage zoom: got %v, want %v", s.Zoom(), tt.want)
			}
		})
	}
}

func TestWheel_ClampsAtMinimum(t *testing.T) {
	s := newLoadedStage(t, 100, 100)
	c := NewController(s)

	for i := 0; i < 40; i++ {
		c.Wheel(vec.Vec2{X: 300, Y: 300}, 120)
		if s.Zoom() < MinZoom {
			t.Fatalf("step %d: zoom %v below minimum", i, s.Zoom())
		}
	}
	if s.Zoom() != MinZoom {
		t.Errorf("zoom: got %v, want %v", s.Zoom(), MinZoom)
	}

	if got := c.SetZoom(-3); got != MinZoom {
		t.Errorf("SetZoom(-3): got %v, want %v", got, MinZoom)
	}
}

func TestZoom_InertWithoutImage(t *testing.T) {
	s := viewport.NewStage(viewport.DefaultLayout())
	c := NewController(s)

	if got := c.Wheel(vec.Vec2{X: 362, Y: 384}, -120); got != 1 {
		t.Errorf("Wheel without image: got zoom %v, want 1", got)
	}
	if got := c.SetZoom(3); got != 1 {
		t.Errorf("SetZoom without image: got zoom %v, want 1", got)
	}
	if s.EditorImage().Position != (vec.Vec2{}) {
		t.Errorf("position changed: %v", s.EditorImage().Position)
	}
	if c.PointerDown(vec.Vec2{X: 362, Y: 384}) {
		t.Error("drag should not start without an image")
	}
}

func TestSetZoom_DefaultsToEditorCentre(t *testing.T) {
	s := newLoadedStage(t, 100, 100)
	c := NewController(s)

	if got := c.SetZoom(2); got != 2 {
		t.Fatalf("SetZoom: got %v, want 2", got)
	}
	// The image is centred on the editor origin, so zooming there keeps it put.
	if !vec.ApproxEqual(s.EditorImage().Position, vec.Vec2{}, eps) {
		t.Errorf("position: got %v, want origin", s.EditorImage().Position)
	}
}
