package viewport

import (
	"image"

	"github.com/ironsheep/easy-token-mcp/internal/vec"
)

// Layout fixes the stage geometry for the lifetime of a session.
type Layout struct {
	// Width and Height are the stage size in pixels.
	Width  int `json:"width"`
	Height int `json:"height"`

	// PreviewSize is the side of the square preview in the bottom-right corner.
	PreviewSize int `json:"preview_size"`

	// TokenSize is the side of the exported token and of the border and
	// background overlays.
	TokenSize int `json:"token_size"`

	// EditorScale magnifies the editor view relative to the token.
	EditorScale float64 `json:"editor_scale"`

	// BorderAlpha is the opacity of the border drawn over the editor view.
	BorderAlpha float64 `json:"border_alpha"`
}

// DefaultLayout is the 1024x768 editor with a 300px preview corner.
func DefaultLayout() Layout {
	return Layout{
		Width:       1024,
		Height:      768,
		PreviewSize: 300,
		TokenSize:   256,
		EditorScale: 1.3,
		BorderAlpha: 0.4,
	}
}

// Stage owns the editor and preview viewports.
//
// Both viewports show the same texture. The editor image and the preview
// image keep independent transforms, which the interaction controller moves
// in lockstep.
type Stage struct {
	layout Layout
	root   *Container

	editor  *Container
	preview *Container
	token   *Container

	editorImage       *Sprite
	editorBorder      *Sprite
	previewImage      *Sprite
	previewBorder     *Sprite
	previewBackground *Sprite

	editorMask *PolygonMask
	tokenMask  *CircleMask

	texture        *Texture
	borderTint     uint32
	backgroundTint uint32
}

// NewStage builds both viewports. The editor starts non-interactive until a
// texture is set.
func NewStage(l Layout) *Stage {
	s := &Stage{
		layout:         l,
		root:           NewContainer(),
		borderTint:     White,
		backgroundTint: White,
	}
	s.addEditor()
	s.addPreview()
	return s
}

// editorMaskPoints outlines the whole stage minus the preview corner.
func (s *Stage) editorMaskPoints() []vec.Vec2 {
	w := float64(s.layout.Width)
	h := float64(s.layout.Height)
	p := float64(s.layout.PreviewSize)
	return []vec.Vec2{
		{X: 0, Y: 0},
		{X: w, Y: 0},
		{X: w, Y: h - p},
		{X: w - p, Y: h - p},
		{X: w - p, Y: h},
		{X: 0, Y: h},
	}
}

func (s *Stage) addEditor() {
	l := s.layout
	t := float64(l.TokenSize)

	s.editor = NewContainer()
	s.editor.SetScale(l.EditorScale)
	s.editor.SetPosition(vec.Vec2{
		X: float64(l.Width-l.PreviewSize) / 2,
		Y: float64(l.Height) / 2,
	})

	s.editorMask = NewPolygonMask(nil, s.editorMaskPoints()...)

	s.editorImage = NewSprite(nil)
	s.editorImage.Mask = s.editorMask

	s.editorBorder = NewSprite(nil)
	s.editorBorder.SetSize(t, t)
	s.editorBorder.Alpha = l.BorderAlpha

	s.editor.AddChild(s.editorImage)
	s.editor.AddChild(s.editorBorder)
	s.root.AddChild(s.editor)
}

func (s *Stage) addPreview() {
	l := s.layout
	p := float64(l.PreviewSize)
	t := float64(l.TokenSize)

	s.preview = NewContainer()
	s.preview.SetPosition(vec.Vec2{
		X: float64(l.Width) - p - 1,
		Y: float64(l.Height) - p - 1,
	})

	s.token = NewContainer()
	s.token.SetPosition(vec.Vec2{X: p / 2, Y: p / 2})

	s.tokenMask = NewCircleMask(s.token, vec.Vec2{}, (t-2)/2)

	s.previewBackground = NewSprite(nil)
	s.previewBackground.SetSize(t, t)

	s.previewImage = NewSprite(nil)
	s.previewImage.Mask = s.tokenMask

	s.previewBorder = NewSprite(nil)
	s.previewBorder.SetSize(t, t)

	s.token.AddChild(s.previewBackground)
	s.token.AddChild(s.previewImage)
	s.token.AddChild(s.previewBorder)

	s.preview.AddChild(NewRectOutline(p, p, Black))
	s.preview.AddChild(s.token)
	s.root.AddChild(s.preview)
}

// Layout returns the stage geometry.
func (s *Stage) Layout() Layout { return s.layout }

// EditorImage is the draggable image in the editor view.
func (s *Stage) EditorImage() *Sprite { return s.editorImage }

// PreviewImage is the mirrored image inside the token preview.
func (s *Stage) PreviewImage() *Sprite { return s.previewImage }

// EditorMask is the notch-shaped clip of the editor view.
func (s *Stage) EditorMask() *PolygonMask { return s.editorMask }

// TokenMask is the circular clip of the token preview.
func (s *Stage) TokenMask() *CircleMask { return s.tokenMask }

// Texture returns the user image, or nil before one is loaded.
func (s *Stage) Texture() *Texture { return s.texture }

// Interactive reports whether an image has been loaded.
func (s *Stage) Interactive() bool { return s.editorImage.Interactive }

// Zoom is the shared scale of the editor and preview images.
func (s *Stage) Zoom() float64 { return s.editorImage.Scale.X }

// BorderTint returns the tint of the token border.
func (s *Stage) BorderTint() uint32 { return s.borderTint }

// BackgroundTint returns the tint of the token background.
func (s *Stage) BackgroundTint() uint32 { return s.backgroundTint }

// SetPlaceholder shows tex in the editor until a user image is loaded.
func (s *Stage) SetPlaceholder(tex *Texture) {
	if s.texture != nil {
		return
	}
	s.editorImage.SetTexture(tex)
}

// SetTexture replaces the user image. Zoom returns to 1, both images move
// back to the origin and the editor becomes interactive.
func (s *Stage) SetTexture(tex *Texture) {
	s.texture = tex
	for _, sp := range []*Sprite{s.editorImage, s.previewImage} {
		sp.SetScale(1)
		sp.SetTexture(tex)
		sp.SetPosition(vec.Vec2{})
	}
	s.editorImage.Interactive = true
}

// SetBorder swaps the border texture on both views. Geometry and tint are
// unaffected.
func (s *Stage) SetBorder(tex *Texture) {
	s.editorBorder.SetTexture(tex)
	s.previewBorder.SetTexture(tex)
}

// SetBackground swaps the token background texture.
func (s *Stage) SetBackground(tex *Texture) {
	s.previewBackground.SetTexture(tex)
}

// SetBorderTint tints the preview border. The editor border keeps its
// texture colours so the crop guide stays readable.
func (s *Stage) SetBorderTint(c uint32) {
	s.borderTint = c & White
	s.previewBorder.SetTint(c)
}

// SetBackgroundTint tints the token background.
func (s *Stage) SetBackgroundTint(c uint32) {
	s.backgroundTint = c & White
	s.previewBackground.SetTint(c)
}

// RenderStage rasterizes the whole stage: editor view and preview.
func (s *Stage) RenderStage() *image.RGBA {
	return renderTree(s.root, s.layout.Width, s.layout.Height, identity)
}

// RenderToken rasterizes the token composite at TokenSize x TokenSize,
// independent of the on-screen preview size.
func (s *Stage) RenderToken() *image.RGBA {
	t := float64(s.layout.TokenSize)
	toDst := mul(translate(t/2, t/2), invert(s.token.worldMatrix()))
	return renderTree(s.token, s.layout.TokenSize, s.layout.TokenSize, toDst)
}
