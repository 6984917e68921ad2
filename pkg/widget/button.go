package widget

import (
	"fmt"
	"image"
	"log"

	"github.com/mncam/surface/pkg/state"
)

const iconSize = 24

// Button is a tappable cell in one of the bars. Its highlight comes either
// from a boolean value or from a comparator closure over any other value,
// which lets a single page selector drive several mutually exclusive
// buttons.
type Button struct {
	base

	Text     string
	TextFunc func() string
	Icon     []byte

	active   func() bool
	onTap    func()
	trackers []state.Tracker
}

// NewButton returns a button that redraws whenever one of trackers changes.
// active may be nil for a button that is never highlighted.
func NewButton(width int, text string, active func() bool, onTap func(), trackers ...state.Tracker) *Button {
	return &Button{
		base:     newBase(width, 0),
		Text:     text,
		active:   active,
		onTap:    onTap,
		trackers: trackers,
	}
}

// NewToggleButton binds a button to a boolean value. Tapping calls handler
// with the negated value; the handler decides whether to store it.
func NewToggleButton(width int, text string, v *state.Value[bool], handler func(bool)) *Button {
	return NewButton(width, text, v.Get, func() {
		if handler != nil {
			handler(!v.Get())
		}
	}, v)
}

// NewPageButton returns a button highlighted while v equals want. Tapping
// calls handler with want.
func NewPageButton[T comparable](width int, text string, v *state.Value[T], want T, handler func(T)) *Button {
	return NewButton(width, text, func() bool { return v.Get() == want }, func() {
		if handler != nil {
			handler(want)
		}
	}, v)
}

func (b *Button) label() string {
	if b.TextFunc != nil {
		return b.TextFunc()
	}
	return b.Text
}

// Active reports whether the button is currently highlighted.
func (b *Button) Active() bool {
	return b.active != nil && b.active()
}

func (b *Button) Render(ctx *Context) bool {
	if !b.dirty(b.trackers...) {
		return false
	}
	th := ctx.Theme()
	r := b.rect
	ctx.Clear(r)
	if b.Active() {
		ctx.Fill(r, th.Active)
	}

	text := b.label()
	w := MeasureText(th.Value, text)
	if b.Icon != nil {
		w += iconSize + 6
	}
	x := r.Min.X + (r.Dx()-w)/2
	y := r.Max.Y - 46
	if b.Icon != nil {
		ir := image.Rect(x, y, x+iconSize, y+iconSize)
		if err := ctx.Icon(ir, b.Icon, th.Foreground); err != nil {
			log.Printf("widget: button %q icon: %v", text, err)
		}
		x += iconSize + 6
	}
	ctx.Text(image.Pt(x, y), text, th.Value, th.Foreground)
	return true
}

func (b *Button) Tap(image.Point) {
	if b.onTap == nil {
		log.Printf("widget: button %q pressed without handler", b.label())
		return
	}
	b.onTap()
}

// Displayable is a tracked value that can format itself.
type Displayable interface {
	state.Tracker
	fmt.Stringer
}

// Label shows a small heading above a formatted value.
type Label struct {
	base

	Title string

	format   func() string
	onTap    func()
	trackers []state.Tracker
}

// NewLabel displays v with its own String method.
func NewLabel(width int, title string, v Displayable) *Label {
	return NewLabelFunc(width, title, v.String, v)
}

// NewLabelFunc displays the result of format, redrawing when any of
// trackers changes.
func NewLabelFunc(width int, title string, format func() string, trackers ...state.Tracker) *Label {
	return &Label{
		base:     newBase(width, 0),
		Title:    title,
		format:   format,
		trackers: trackers,
	}
}

// OnTap installs a tap handler. Labels ignore taps by default.
func (l *Label) OnTap(fn func()) *Label {
	l.onTap = fn
	return l
}

func (l *Label) Render(ctx *Context) bool {
	if !l.dirty(l.trackers...) {
		return false
	}
	th := ctx.Theme()
	r := l.rect
	ctx.Clear(r)
	ctx.Text(image.Pt(r.Min.X+1, r.Min.Y+10), l.Title, th.Heading, th.Foreground)
	ctx.Text(image.Pt(r.Min.X+1, r.Min.Y+24), l.format(), th.Value, th.Foreground)
	return true
}

func (l *Label) Tap(image.Point) {
	if l.onTap != nil {
		l.onTap()
	}
}
