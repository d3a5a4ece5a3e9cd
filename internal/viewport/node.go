package viewport

import (
	"image"

	"golang.org/x/image/math/f64"

	"github.com/ironsheep/easy-token-mcp/internal/vec"
)

// Transform places a node inside its parent. Rotation is not needed by the
// editor, so the transform is a per-axis scale followed by a translation.
type Transform struct {
	Position vec.Vec2 `json:"position"`
	Scale    vec.Vec2 `json:"scale"`
}

// identityTransform has unit scale at the origin.
func identityTransform() Transform {
	return Transform{Scale: vec.Vec2{X: 1, Y: 1}}
}

func (t Transform) matrix() f64.Aff3 {
	return f64.Aff3{
		t.Scale.X, 0, t.Position.X,
		0, t.Scale.Y, t.Position.Y,
	}
}

var identity = f64.Aff3{1, 0, 0, 0, 1, 0}

// mul returns a*b, i.e. b applied first.
func mul(a, b f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		a[0]*b[0] + a[1]*b[3],
		a[0]*b[1] + a[1]*b[4],
		a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3],
		a[3]*b[1] + a[4]*b[4],
		a[3]*b[2] + a[4]*b[5] + a[5],
	}
}

func invert(m f64.Aff3) f64.Aff3 {
	det := m[0]*m[4] - m[1]*m[3]
	a := m[4] / det
	b := -m[1] / det
	d := -m[3] / det
	e := m[0] / det
	return f64.Aff3{
		a, b, -(a*m[2] + b*m[5]),
		d, e, -(d*m[2] + e*m[5]),
	}
}

func apply(m f64.Aff3, p vec.Vec2) vec.Vec2 {
	return vec.Vec2{
		X: m[0]*p.X + m[1]*p.Y + m[2],
		Y: m[3]*p.X + m[4]*p.Y + m[5],
	}
}

func translate(x, y float64) f64.Aff3 {
	return f64.Aff3{1, 0, x, 0, 1, y}
}

// Node is an element of the stage scene.
type Node interface {
	base() *node
	render(r *renderer, m f64.Aff3)
}

type node struct {
	Transform
	parent  *Container
	Visible bool
}

func newNode() node {
	return node{Transform: identityTransform(), Visible: true}
}

func (n *node) base() *node { return n }

// Parent returns the containing node, or nil at the root.
func (n *node) Parent() *Container { return n.parent }

// SetPosition moves the node within its parent.
func (n *node) SetPosition(p vec.Vec2) { n.Position = p }

// SetScale sets a uniform scale.
func (n *node) SetScale(s float64) { n.Scale = vec.Vec2{X: s, Y: s} }

// worldMatrix maps local coordinates to global coordinates.
func (n *node) worldMatrix() f64.Aff3 {
	m := n.matrix()
	for p := n.parent; p != nil; p = p.parent {
		m = mul(p.matrix(), m)
	}
	return m
}

// ToGlobal converts a point in this node's local space to global space.
func (n *node) ToGlobal(local vec.Vec2) vec.Vec2 {
	return apply(n.worldMatrix(), local)
}

// ToLocal converts a global point into this node's local space.
func (n *node) ToLocal(global vec.Vec2) vec.Vec2 {
	return apply(invert(n.worldMatrix()), global)
}

// Container groups children under a shared transform.
type Container struct {
	node
	children []Node
}

// NewContainer returns an empty container at the origin.
func NewContainer() *Container {
	return &Container{node: newNode()}
}

// AddChild appends child on top of the existing children.
func (c *Container) AddChild(child Node) {
	b := child.base()
	if b.parent != nil {
		b.parent.RemoveChild(child)
	}
	b.parent = c
	c.children = append(c.children, child)
}

// RemoveChild detaches child if present.
func (c *Container) RemoveChild(child Node) {
	for i, ch := range c.children {
		if ch == child {
			c.children = append(c.children[:i], c.children[i+1:]...)
			child.base().parent = nil
			return
		}
	}
}

// Children returns the children in paint order.
func (c *Container) Children() []Node { return c.children }

func (c *Container) render(r *renderer, m f64.Aff3) {
	if !c.Visible {
		return
	}
	for _, ch := range c.children {
		b := ch.base()
		ch.render(r, mul(m, b.matrix()))
	}
}

// Sprite draws a texture centred on its anchor.
type Sprite struct {
	node

	// Anchor is the normalized texture point placed at Position.
	Anchor vec.Vec2

	// Alpha is the opacity multiplier in [0,1].
	Alpha float64

	// Mask clips the sprite when non-nil.
	Mask Mask

	// Interactive gates pointer handling.
	Interactive bool

	texture *Texture
	tint    uint32
	size    *vec.Vec2

	cache      image.Image
	cacheTex   *Texture
	cacheTint  uint32
	cacheAlpha float64
}

// NewSprite creates a sprite anchored at its centre.
func NewSprite(tex *Texture) *Sprite {
	return &Sprite{
		node:    newNode(),
		Anchor:  vec.Vec2{X: 0.5, Y: 0.5},
		Alpha:   1,
		texture: tex,
		tint:    White,
	}
}

// Texture returns the current texture, which may be nil.
func (s *Sprite) Texture() *Texture { return s.texture }

// SetTexture swaps the texture. A sprite with a fixed display size keeps it.
func (s *Sprite) SetTexture(tex *Texture) {
	s.texture = tex
	s.applySize()
}

// SetSize fixes the display size; the scale follows the texture size.
func (s *Sprite) SetSize(w, h float64) {
	s.size = &vec.Vec2{X: w, Y: h}
	s.applySize()
}

func (s *Sprite) applySize() {
	if s.size == nil || s.texture == nil {
		return
	}
	s.Scale = vec.Vec2{
		X: s.size.X / float64(s.texture.Width()),
		Y: s.size.Y / float64(s.texture.Height()),
	}
}

// Tint returns the 24-bit multiplicative colour.
func (s *Sprite) Tint() uint32 { return s.tint }

// SetTint sets the 24-bit multiplicative colour; White disables tinting.
func (s *Sprite) SetTint(c uint32) { s.tint = c & White }

// localBounds returns the texture rectangle in the sprite's local space.
func (s *Sprite) localBounds() (lo, hi vec.Vec2, ok bool) {
	if s.texture == nil {
		return vec.Vec2{}, vec.Vec2{}, false
	}
	w, h := float64(s.texture.Width()), float64(s.texture.Height())
	lo = vec.Vec2{X: -s.Anchor.X * w, Y: -s.Anchor.Y * h}
	hi = vec.Vec2{X: lo.X + w, Y: lo.Y + h}
	return lo, hi, true
}

// ContainsGlobal reports whether a global point falls on the sprite's
// texture rectangle and inside its mask.
func (s *Sprite) ContainsGlobal(global vec.Vec2) bool {
	lo, hi, ok := s.localBounds()
	if !ok {
		return false
	}
	p := s.ToLocal(global)
	if p.X < lo.X || p.X >= hi.X || p.Y < lo.Y || p.Y >= hi.Y {
		return false
	}
	if s.Mask != nil && !s.Mask.ContainsGlobal(global) {
		return false
	}
	return true
}

// Graphics draws a stroked rectangle, used for the preview frame.
type Graphics struct {
	node
	Rect      vec.Vec2 // width and height, origin at local (0,0)
	LineColor uint32
}

// NewRectOutline creates a 1px outline of the given size.
func NewRectOutline(w, h float64, c uint32) *Graphics {
	return &Graphics{node: newNode(), Rect: vec.Vec2{X: w, Y: h}, LineColor: c}
}
