// Package vec provides the small amount of 2D point arithmetic the editor
// needs for converting between stage, container and sprite coordinates.
//
// Every operation takes an original vector and an Operand. An Operand is
// either a scalar broadcast to both components or a vector whose components
// may be individually absent. An absent component falls back to the identity
// of the operation: 1 for Multiply and Divide, 0 for Add and Subtract.
//
// None of the functions mutate their inputs. Division by zero follows IEEE-754
// semantics and yields ±Inf or NaN rather than an error.
package vec

import "math"

// Vec2 is a 2D point or displacement.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Operand is the right-hand side of an arithmetic operation.
type Operand struct {
	x, y       float64
	hasX, hasY bool
}

// Scalar broadcasts s to both components.
func Scalar(s float64) Operand {
	return Operand{x: s, y: s, hasX: true, hasY: true}
}

// XY builds a full vector operand.
func XY(x, y float64) Operand {
	return Operand{x: x, y: y, hasX: true, hasY: true}
}

// Of converts v into a full vector operand.
func Of(v Vec2) Operand {
	return XY(v.X, v.Y)
}

// X builds an operand with only the X component set.
func X(x float64) Operand {
	return Operand{x: x, hasX: true}
}

// Y builds an operand with only the Y component set.
func Y(y float64) Operand {
	return Operand{y: y, hasY: true}
}

func (o Operand) resolve(identity float64) (float64, float64) {
	x, y := identity, identity
	if o.hasX {
		x = o.x
	}
	if o.hasY {
		y = o.y
	}
	return x, y
}

// Add returns original + o.
func Add(original Vec2, o Operand) Vec2 {
	x, y := o.resolve(0)
	return Vec2{X: original.X + x, Y: original.Y + y}
}

// Subtract returns original - o.
func Subtract(original Vec2, o Operand) Vec2 {
	x, y := o.resolve(0)
	return Vec2{X: original.X - x, Y: original.Y - y}
}

// Multiply returns original * o per component.
func Multiply(original Vec2, o Operand) Vec2 {
	x, y := o.resolve(1)
	return Vec2{X: original.X * x, Y: original.Y * y}
}

// Divide returns original / o per component.
func Divide(original Vec2, o Operand) Vec2 {
	x, y := o.resolve(1)
	return Vec2{X: original.X / x, Y: original.Y / y}
}

// ApproxEqual reports whether a and b differ by at most eps on each axis.
func ApproxEqual(a, b Vec2, eps float64) bool {
	return math.Abs(a.X-b.X) <= eps && math.Abs(a.Y-b.Y) <= eps
}
