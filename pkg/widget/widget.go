// Package widget implements the small, fixed set of retained widgets used by
// the control surface overlay.
//
// Widgets draw into a straight-alpha raster only when one of their bound
// state values changed for their own observer key. A widget that reports
// "no draw" from Render has touched nothing, which lets the layout skip the
// plane upload for unchanged frames.
//
// Rectangles are relative to the parent: top-level widgets are positioned in
// screen space by the layout, children of a VBox relative to the box.
package widget

import (
	"image"

	"github.com/mncam/surface/pkg/state"
)

// Widget is implemented by every element of the tree.
type Widget interface {
	// Bounds returns the rectangle assigned by the parent.
	Bounds() image.Rectangle
	// SetBounds assigns the rectangle and forces a repaint.
	SetBounds(r image.Rectangle)
	// Size returns the declared width and height. Zero means "fill".
	Size() image.Point
	// Render draws the widget if it is dirty and reports whether it drew.
	Render(ctx *Context) bool
	// Tap and DoubleTap receive points in the widget's local space.
	Tap(p image.Point)
	DoubleTap(p image.Point)
	// MarkDirty forces the next Render to draw.
	MarkDirty()
}

// base carries the state every widget shares: its rectangle, declared size
// and observer key.
type base struct {
	key    state.Key
	rect   image.Rectangle
	size   image.Point
	forced bool
}

func newBase(width, height int) base {
	return base{key: state.NewKey(), size: image.Pt(width, height)}
}

func (b *base) Bounds() image.Rectangle { return b.rect }

func (b *base) SetBounds(r image.Rectangle) {
	b.rect = r
	b.forced = true
}

func (b *base) Size() image.Point { return b.size }

func (b *base) MarkDirty() { b.forced = true }

func (b *base) Tap(image.Point) {}

func (b *base) DoubleTap(image.Point) {}

// Key returns the observer key the widget uses with its state values.
func (b *base) Key() state.Key { return b.key }

// dirty consumes the widget's notifications on every tracker plus any forced
// repaint.
func (b *base) dirty(trackers ...state.Tracker) bool {
	d := state.AnyChanged(b.key, trackers...)
	if b.forced {
		b.forced = false
		d = true
	}
	return d
}

// local returns the widget rectangle translated to its own origin.
func (b *base) local() image.Rectangle {
	return image.Rect(0, 0, b.rect.Dx(), b.rect.Dy())
}
