package widget

import (
	"image"

	"github.com/mncam/surface/pkg/state"
)

const (
	rowHeight    = 60
	rowPadding   = 10
	titleWidth   = 220
	optionPad    = 24
	switchWidth  = 60
	switchHeight = 28
)

// ToggleRow is a titled on/off switch used on detail pages.
type ToggleRow struct {
	base

	Title string

	value   *state.Value[bool]
	handler func(bool)
}

// NewToggleRow returns a row bound to v. Taps call handler with the negated
// value.
func NewToggleRow(title string, v *state.Value[bool], handler func(bool)) *ToggleRow {
	return &ToggleRow{
		base:    newBase(0, rowHeight),
		Title:   title,
		value:   v,
		handler: handler,
	}
}

func (t *ToggleRow) Render(ctx *Context) bool {
	if !t.dirty(t.value) {
		return false
	}
	th := ctx.Theme()
	r := t.rect
	ctx.Clear(r)
	ctx.Text(image.Pt(r.Min.X+rowPadding, r.Min.Y+(r.Dy()-26)/2), t.Title, th.Value, th.Foreground)

	sw := t.switchRect().Add(r.Min)
	knob := image.Rect(0, 0, switchHeight-4, switchHeight-4)
	if t.value.Get() {
		ctx.Fill(sw, th.Active)
		knob = knob.Add(image.Pt(sw.Max.X-knob.Dx()-2, sw.Min.Y+2))
	} else {
		ctx.Fill(sw, th.Inactive)
		knob = knob.Add(image.Pt(sw.Min.X+2, sw.Min.Y+2))
	}
	ctx.Fill(knob, th.Foreground)
	return true
}

func (t *ToggleRow) switchRect() image.Rectangle {
	x := t.rect.Dx() - rowPadding - switchWidth
	y := (t.rect.Dy() - switchHeight) / 2
	return image.Rect(x, y, x+switchWidth, y+switchHeight)
}

func (t *ToggleRow) Tap(image.Point) {
	if t.handler != nil {
		t.handler(!t.value.Get())
	}
}

// RadioRow offers a fixed set of string options, one of which is selected.
type RadioRow struct {
	base

	Title   string
	Options []string

	value   *state.Value[string]
	handler func(string)
	regions []image.Rectangle
}

// NewRadioRow returns a row bound to v. Tapping an option calls handler
// with it.
func NewRadioRow(title string, options []string, v *state.Value[string], handler func(string)) *RadioRow {
	return &RadioRow{
		base:    newBase(0, rowHeight),
		Title:   title,
		Options: options,
		value:   v,
		handler: handler,
	}
}

// Regions returns the per-option hit rectangles in local space, left to
// right, in the order of Options.
func (r *RadioRow) Regions() []image.Rectangle {
	if r.regions == nil {
		r.layoutOptions(DefaultTheme())
	}
	return r.regions
}

func (r *RadioRow) SetBounds(rect image.Rectangle) {
	r.base.SetBounds(rect)
	r.regions = nil
}

func (r *RadioRow) layoutOptions(th *Theme) {
	r.regions = make([]image.Rectangle, len(r.Options))
	x := titleWidth
	for i, opt := range r.Options {
		w := MeasureText(th.Value, opt) + optionPad
		r.regions[i] = image.Rect(x, 0, x+w, r.rect.Dy())
		x += w
	}
}

func (r *RadioRow) Render(ctx *Context) bool {
	if !r.dirty(r.value) {
		return false
	}
	th := ctx.Theme()
	if r.regions == nil {
		r.layoutOptions(th)
	}
	rect := r.rect
	ctx.Clear(rect)
	ctx.Text(image.Pt(rect.Min.X+rowPadding, rect.Min.Y+(rect.Dy()-26)/2), r.Title, th.Value, th.Foreground)
	for i, opt := range r.Options {
		reg := r.regions[i].Add(rect.Min)
		if opt == r.value.Get() {
			ctx.Fill(reg.Inset(2), th.Active)
		}
		ctx.Text(image.Pt(reg.Min.X+optionPad/2, reg.Min.Y+(reg.Dy()-26)/2), opt, th.Value, th.Foreground)
	}
	return true
}

func (r *RadioRow) Tap(p image.Point) {
	for i, reg := range r.Regions() {
		if p.In(reg) {
			if r.handler != nil {
				r.handler(r.Options[i])
			}
			return
		}
	}
}
