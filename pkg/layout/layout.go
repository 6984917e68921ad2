// Package layout places top-level widgets into fixed attachment regions of
// one screen and renders them into a single raster sized to the output.
//
// Six attachments run along the top and bottom bars. The seventh, Middle,
// is a stack of mutually exclusive pages that share the interior between
// the bars; a page selector value decides which one is shown.
package layout

import (
	"image"

	"github.com/mncam/surface/pkg/state"
	"github.com/mncam/surface/pkg/widget"
)

// Attachment names a region of the screen.
type Attachment int

const (
	TopLeft Attachment = iota
	TopMiddle
	TopRight
	BottomLeft
	BottomMiddle
	BottomRight
	Middle

	numAttachments
)

var attachmentNames = [...]string{
	TopLeft:      "top-left",
	TopMiddle:    "top-middle",
	TopRight:     "top-right",
	BottomLeft:   "bottom-left",
	BottomMiddle: "bottom-middle",
	BottomRight:  "bottom-right",
	Middle:       "middle",
}

func (a Attachment) String() string {
	if a >= 0 && a < numAttachments {
		return attachmentNames[a]
	}
	return "attachment(?)"
}

const (
	// BarHeight is the height of the top and bottom bars.
	BarHeight = 64
	// Padding separates widgets packed into a bar.
	Padding = 10
)

// Visibility is implemented by page widgets that need to know when they are
// shown or hidden, such as VBox.
type Visibility interface {
	SetVisible(bool)
}

type page struct {
	name string
	w    widget.Widget
}

// Layout owns the screen raster and the attachment lists.
type Layout struct {
	width  int
	height int
	buf    *image.NRGBA
	theme  *widget.Theme

	bars  [Middle][]widget.Widget
	pages []page

	selector *state.Value[string]
	key      state.Key
}

// New returns an empty layout for a width x height screen.
func New(width, height int) *Layout {
	return &Layout{
		width:  width,
		height: height,
		buf:    image.NewNRGBA(image.Rect(0, 0, width, height)),
		theme:  widget.DefaultTheme(),
		key:    state.NewKey(),
	}
}

// SetTheme replaces the drawing theme.
func (l *Layout) SetTheme(th *widget.Theme) {
	l.theme = th
}

// Size returns the screen size.
func (l *Layout) Size() image.Point {
	return image.Pt(l.width, l.height)
}

// Add attaches w to one of the bars. Middle attachments go through AddPage.
func (l *Layout) Add(at Attachment, w widget.Widget) {
	if at == Middle {
		l.AddPage("", w)
		return
	}
	l.bars[at] = append(l.bars[at], w)
}

// AddPage attaches w to the middle region as the page called name.
func (l *Layout) AddPage(name string, w widget.Widget) {
	l.pages = append(l.pages, page{name: name, w: w})
}

// SetPageSelector binds the value that picks the visible page. Without a
// selector every middle widget is shown.
func (l *Layout) SetPageSelector(v *state.Value[string]) {
	l.selector = v
}

// Interior returns the rectangle between the bars shared by all pages.
func (l *Layout) Interior() image.Rectangle {
	return image.Rect(0, BarHeight, l.width, l.height-BarHeight)
}

// Compute assigns rectangles to every attached widget. It must run after
// widgets are added and before the first Render.
func (l *Layout) Compute() {
	for at := TopLeft; at < Middle; at++ {
		ws := l.bars[at]
		y := 0
		if at >= BottomLeft {
			y = l.height - BarHeight
		}

		offset := 0
		for _, w := range ws {
			offset += w.Size().X + Padding
		}
		total := offset - Padding

		x := 0
		switch at {
		case TopLeft, BottomLeft:
			x = Padding
		case TopMiddle, BottomMiddle:
			x = l.width/2 - total/2
		case TopRight, BottomRight:
			x = l.width - total - Padding
		}
		for _, w := range ws {
			sz := w.Size()
			w.SetBounds(image.Rect(x, y, x+sz.X, y+BarHeight))
			x += sz.X + Padding
		}
	}

	interior := l.Interior()
	for _, p := range l.pages {
		p.w.SetBounds(interior)
	}
}

func (l *Layout) shown(p page) bool {
	if l.selector == nil {
		return true
	}
	return p.name == l.selector.Get()
}

// Render draws every dirty widget and returns the raster, or nil when
// nothing changed and no upload is needed.
func (l *Layout) Render() *image.NRGBA {
	ctx := widget.NewContext(l.buf, l.theme)

	for at := TopLeft; at < Middle; at++ {
		for _, w := range l.bars[at] {
			w.Render(ctx)
		}
	}

	if l.selector != nil && l.selector.Changed(l.key) {
		for _, p := range l.pages {
			visible := l.shown(p)
			if v, ok := p.w.(Visibility); ok {
				v.SetVisible(visible)
			}
			if visible {
				p.w.MarkDirty()
			}
		}
		ctx.Clear(l.Interior())
	}

	// Hidden pages first: they clear the shared interior, the visible page
	// then paints over it.
	for _, p := range l.pages {
		if !l.shown(p) {
			if _, ok := p.w.(Visibility); ok {
				p.w.Render(ctx)
			}
		}
	}
	for _, p := range l.pages {
		if l.shown(p) {
			p.w.Render(ctx)
		}
	}

	if ctx.Drew() {
		return l.buf
	}
	return nil
}

// Buffer returns the raster regardless of whether anything changed.
func (l *Layout) Buffer() *image.NRGBA {
	return l.buf
}

// Invalidate forces every widget to repaint on the next Render.
func (l *Layout) Invalidate() {
	for at := TopLeft; at < Middle; at++ {
		for _, w := range l.bars[at] {
			w.MarkDirty()
		}
	}
	for _, p := range l.pages {
		if l.shown(p) {
			p.w.MarkDirty()
		}
	}
}

// hit finds the widget under p in layout order.
func (l *Layout) hit(p image.Point) (widget.Widget, bool) {
	for at := TopLeft; at < Middle; at++ {
		for _, w := range l.bars[at] {
			if p.In(w.Bounds()) {
				return w, true
			}
		}
	}
	for _, pg := range l.pages {
		if l.shown(pg) && p.In(pg.w.Bounds()) {
			return pg.w, true
		}
	}
	return nil, false
}

// Tap dispatches a tap at screen point p and reports whether a widget
// received it.
func (l *Layout) Tap(p image.Point) bool {
	w, ok := l.hit(p)
	if ok {
		w.Tap(p.Sub(w.Bounds().Min))
	}
	return ok
}

// DoubleTap dispatches a double tap at screen point p.
func (l *Layout) DoubleTap(p image.Point) bool {
	w, ok := l.hit(p)
	if ok {
		w.DoubleTap(p.Sub(w.Bounds().Min))
	}
	return ok
}
