package viewport

import (
	"image"

	"golang.org/x/image/math/f64"
	"golang.org/x/image/vector"

	"github.com/ironsheep/easy-token-mcp/internal/vec"
)

// Mask is a static clip region. Its geometry is expressed in the local space
// of a frame container (nil meaning the stage) and never changes after
// construction.
type Mask interface {
	// ContainsGlobal reports whether a global point lies inside the mask.
	ContainsGlobal(p vec.Vec2) bool

	// rasterize renders the mask coverage into an alpha image covering
	// bounds; toDst maps global coordinates to bounds' coordinates.
	rasterize(bounds image.Rectangle, toDst f64.Aff3) *image.Alpha
}

func frameWorld(frame *Container) f64.Aff3 {
	if frame == nil {
		return identity
	}
	return frame.worldMatrix()
}

// CircleMask is a filled circle.
type CircleMask struct {
	Center vec.Vec2
	Radius float64
	Frame  *Container
}

// NewCircleMask creates a circle mask in frame's local space.
func NewCircleMask(frame *Container, center vec.Vec2, radius float64) *CircleMask {
	return &CircleMask{Center: center, Radius: radius, Frame: frame}
}

// ContainsGlobal implements Mask.
func (c *CircleMask) ContainsGlobal(p vec.Vec2) bool {
	local := apply(invert(frameWorld(c.Frame)), p)
	dx := local.X - c.Center.X
	dy := local.Y - c.Center.Y
	return dx*dx+dy*dy <= c.Radius*c.Radius
}

// kappa places cubic control points so four segments approximate a circle.
const kappa = 0.5522847498307936

func (c *CircleMask) rasterize(bounds image.Rectangle, toDst f64.Aff3) *image.Alpha {
	m := mul(toDst, frameWorld(c.Frame))
	ctr := apply(m, c.Center)
	ctr.X -= float64(bounds.Min.X)
	ctr.Y -= float64(bounds.Min.Y)
	rx := float32(c.Radius * m[0])
	ry := float32(c.Radius * m[4])
	cx, cy := float32(ctr.X), float32(ctr.Y)
	kx, ky := rx*kappa, ry*kappa

	z := vector.NewRasterizer(bounds.Dx(), bounds.Dy())
	z.MoveTo(cx+rx, cy)
	z.CubeTo(cx+rx, cy+ky, cx+kx, cy+ry, cx, cy+ry)
	z.CubeTo(cx-kx, cy+ry, cx-rx, cy+ky, cx-rx, cy)
	z.CubeTo(cx-rx, cy-ky, cx-kx, cy-ry, cx, cy-ry)
	z.CubeTo(cx+kx, cy-ry, cx+rx, cy-ky, cx+rx, cy)
	z.ClosePath()

	mask := image.NewAlpha(bounds)
	z.Draw(mask, bounds, image.Opaque, image.Point{})
	return mask
}

// PolygonMask is a filled simple polygon; it need not be convex.
type PolygonMask struct {
	Points []vec.Vec2
	Frame  *Container
}

// NewPolygonMask creates a polygon mask in frame's local space.
func NewPolygonMask(frame *Container, points ...vec.Vec2) *PolygonMask {
	pts := make([]vec.Vec2, len(points))
	copy(pts, points)
	return &PolygonMask{Points: pts, Frame: frame}
}

// ContainsGlobal implements Mask using the even-odd crossing rule.
func (pm *PolygonMask) ContainsGlobal(p vec.Vec2) bool {
	n := len(pm.Points)
	if n < 3 {
		return false
	}
	local := apply(invert(frameWorld(pm.Frame)), p)

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := pm.Points[i], pm.Points[j]
		if (a.Y > local.Y) != (b.Y > local.Y) {
			x := a.X + (local.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if local.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

func (pm *PolygonMask) rasterize(bounds image.Rectangle, toDst f64.Aff3) *image.Alpha {
	mask := image.NewAlpha(bounds)
	if len(pm.Points) < 3 {
		return mask
	}
	m := mul(toDst, frameWorld(pm.Frame))
	ox, oy := float64(bounds.Min.X), float64(bounds.Min.Y)

	z := vector.NewRasterizer(bounds.Dx(), bounds.Dy())
	for i, p := range pm.Points {
		q := apply(m, p)
		x, y := float32(q.X-ox), float32(q.Y-oy)
		if i == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()
	z.Draw(mask, bounds, image.Opaque, image.Point{})
	return mask
}
