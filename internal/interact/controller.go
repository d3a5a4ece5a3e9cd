// Package interact turns pointer and wheel input into transform updates on
// a viewport.Stage.
//
// The editor image and the preview image are moved together: a drag applies
// the same delta to both and a zoom step applies the same scale and the same
// anchor correction to both.
package interact

import (
	"math"

	"github.com/ironsheep/easy-token-mcp/internal/vec"
	"github.com/ironsheep/easy-token-mcp/internal/viewport"
)

const (
	// ZoomStep is the zoom change per wheel event.
	ZoomStep = 0.05

	// MinZoom is the smallest zoom a wheel event or SetZoom can reach.
	MinZoom = 0.1
)

// State is the drag gesture state.
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Controller owns the drag state machine for one stage. It is not safe for
// concurrent use; the editor session serializes calls.
type Controller struct {
	stage *viewport.Stage
	state State

	editorOffset  vec.Vec2
	previewOffset vec.Vec2

	pointer    vec.Vec2
	hasPointer bool
}

// NewController creates an idle controller for stage.
func NewController(stage *viewport.Stage) *Controller {
	return &Controller{stage: stage}
}

// State returns the current gesture state.
func (c *Controller) State() State { return c.state }

// Dragging reports whether a drag is in progress.
func (c *Controller) Dragging() bool { return c.state == Dragging }

// Pointer returns the last known pointer position in global coordinates.
func (c *Controller) Pointer() (vec.Vec2, bool) { return c.pointer, c.hasPointer }

// PointerDown starts a drag when global hits the visible part of the editor
// image. It reports whether the drag started.
func (c *Controller) PointerDown(global vec.Vec2) bool {
	c.track(global)

	img := c.stage.EditorImage()
	if !c.stage.Interactive() || !img.ContainsGlobal(global) {
		return false
	}

	local := img.Parent().ToLocal(global)
	c.editorOffset = vec.Subtract(local, vec.Of(img.Position))
	c.previewOffset = vec.Subtract(local, vec.Of(c.stage.PreviewImage().Position))
	c.state = Dragging
	return true
}

// PointerMove follows the pointer while dragging. The position is always
// recorded as the anchor for the next zoom step.
func (c *Controller) PointerMove(global vec.Vec2) {
	c.track(global)
	if c.state != Dragging {
		return
	}

	editor := c.stage.EditorImage()
	local := editor.Parent().ToLocal(global)
	editor.SetPosition(vec.Subtract(local, vec.Of(c.editorOffset)))
	c.stage.PreviewImage().SetPosition(vec.Subtract(local, vec.Of(c.previewOffset)))
}

// PointerUp ends any drag. Releasing outside the image still ends it.
func (c *Controller) PointerUp(global vec.Vec2) {
	c.track(global)
	c.state = Idle
}

// Cancel ends any drag without moving the pointer.
func (c *Controller) Cancel() {
	c.state = Idle
}

func (c *Controller) track(global vec.Vec2) {
	c.pointer = global
	c.hasPointer = true
}

// Wheel applies one zoom step anchored at global. Only the sign of deltaY
// matters: zero or positive zooms out, negative zooms in. It returns the
// resulting zoom.
func (c *Controller) Wheel(global vec.Vec2, deltaY float64) float64 {
	c.track(global)

	step := ZoomStep
	if deltaY >= 0 {
		step = -ZoomStep
	}
	return c.zoomAt(global, c.stage.Zoom()+step)
}

// SetZoom sets the zoom anchored at the last pointer position, or at the
// editor centre before any pointer input.
func (c *Controller) SetZoom(value float64) float64 {
	anchor := c.pointer
	if !c.hasPointer {
		anchor = c.stage.EditorImage().Parent().ToGlobal(vec.Vec2{})
	}
	return c.zoomAt(anchor, value)
}

// zoomAt scales both images to value while keeping the point under anchor
// fixed. It is a no-op until an image is loaded.
func (c *Controller) zoomAt(anchor vec.Vec2, value float64) float64 {
	editor := c.stage.EditorImage()
	if !c.stage.Interactive() {
		return c.stage.Zoom()
	}
	if math.IsNaN(value) || value < MinZoom {
		value = MinZoom
	}

	old := editor.Scale.X
	local := editor.ToLocal(anchor)
	scaled := vec.Multiply(vec.Divide(local, vec.Scalar(old)), vec.Scalar(value))
	moved := editor.ToGlobal(scaled)

	// The displacement is measured globally but positions live in the
	// parent's space, which is scaled by the editor magnification.
	parent := editor.Parent()
	shift := vec.Subtract(parent.ToLocal(moved), vec.Of(parent.ToLocal(anchor)))

	preview := c.stage.PreviewImage()
	editor.SetPosition(vec.Subtract(editor.Position, vec.Of(shift)))
	preview.SetPosition(vec.Subtract(preview.Position, vec.Of(shift)))
	editor.SetScale(value)
	preview.SetScale(value)

	return value
}
