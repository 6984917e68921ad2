package widget

import (
	"image"
	"image/color"

	"github.com/mncam/surface/pkg/state"
)

// VBox stacks its children vertically. It is the container used for detail
// pages in the middle of the screen.
type VBox struct {
	base

	// Background fills the box (and everything children clear) when set.
	Background color.Color
	// Expand stretches every child to the width of the box.
	Expand  bool
	Padding int

	children []Widget
	shown    *state.Value[bool]
}

// NewVBox returns a visible box of the given declared width.
func NewVBox(width int, children ...Widget) *VBox {
	return &VBox{
		base:     newBase(width, 0),
		Padding:  rowPadding,
		children: children,
		shown:    state.NewValue(true),
	}
}

// Add appends a child. Bounds are recomputed on the next SetBounds.
func (b *VBox) Add(w Widget) {
	b.children = append(b.children, w)
}

// Children returns the children in declaration order.
func (b *VBox) Children() []Widget {
	return b.children
}

// SetVisible shows or hides the box.
func (b *VBox) SetVisible(v bool) {
	b.shown.Set(v)
}

// Visible reports whether the box is shown.
func (b *VBox) Visible() bool {
	return b.shown.Get()
}

func (b *VBox) SetBounds(r image.Rectangle) {
	b.base.SetBounds(r)
	b.arrange()
}

func (b *VBox) arrange() {
	y := b.Padding
	inner := b.rect.Dx() - 2*b.Padding
	for _, c := range b.children {
		sz := c.Size()
		w := sz.X
		if b.Expand || w == 0 || w > inner {
			w = inner
		}
		c.SetBounds(image.Rect(b.Padding, y, b.Padding+w, y+sz.Y))
		y += sz.Y + b.Padding
	}
}

func (b *VBox) Render(ctx *Context) bool {
	drew := false
	if b.dirty(b.shown) {
		ctx.Clear(b.rect)
		drew = true
		if b.shown.Get() {
			if b.Background != nil {
				ctx.Fill(b.rect, b.Background)
			}
			for _, c := range b.children {
				c.MarkDirty()
			}
		}
	}
	if !b.shown.Get() {
		return drew
	}
	sub := ctx.Sub(b.rect).WithBackground(b.Background)
	for _, c := range b.children {
		if c.Render(sub) {
			drew = true
		}
	}
	return drew
}

func (b *VBox) child(p image.Point) (Widget, image.Point, bool) {
	if !b.shown.Get() {
		return nil, p, false
	}
	for _, c := range b.children {
		if p.In(c.Bounds()) {
			return c, p.Sub(c.Bounds().Min), true
		}
	}
	return nil, p, false
}

func (b *VBox) Tap(p image.Point) {
	if c, lp, ok := b.child(p); ok {
		c.Tap(lp)
	}
}

func (b *VBox) DoubleTap(p image.Point) {
	if c, lp, ok := b.child(p); ok {
		c.DoubleTap(lp)
	}
}
