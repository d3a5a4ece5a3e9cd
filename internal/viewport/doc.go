// Package viewport renders the token editor's two synchronized views.
//
// A Stage holds a small retained scene: containers and sprites positioned
// with a translate+scale transform, clipped by static masks and composited
// onto an RGBA surface. Two views share one image texture:
//
//   - The editor view (1024x768 by default) shows the full draggable image
//     behind a translucent border, clipped by a notch-shaped mask that leaves
//     the bottom-right preview corner free.
//   - The preview view (300x300) shows the token composite: background,
//     circle-clipped image and border, each 256x256.
//
// # Coordinate System
//
// Global (stage) coordinates have their origin at the top-left of the stage,
// X increasing rightward and Y increasing downward. Every node converts
// between its own local space and the global space through ToLocal and
// ToGlobal, composing the transforms of all its parents.
//
// # Rendering
//
// Sprites are rasterized with golang.org/x/image/draw affine transforms.
// Masks are rasterized with golang.org/x/image/vector into alpha clip masks.
// Tint and alpha are applied to a cached copy of the sprite texture using
// github.com/anthonynsimon/bild/adjust.
//
// # Thread Safety
//
// Stage and its nodes are not safe for concurrent use; the owning editor
// session serializes access. Textures are immutable and may be shared.
package viewport
