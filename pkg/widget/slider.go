package widget

import (
	"fmt"
	"image"

	"github.com/mncam/surface/pkg/state"
)

const (
	sliderPad    = 20
	knobWidth    = 16
	knobHeight   = 24
	trackTop     = 40
	trackThick   = 4
	sliderHeight = 64
)

// Slider maps a horizontal track onto a continuous value range. The slider
// does not clamp: taps outside the track produce values outside [Min, Max]
// and the handler decides what to do with them.
type Slider struct {
	base

	Title   string
	Min     float64
	Max     float64
	Default float64
	Format  func(float64) string

	value   *state.Value[float64]
	handler func(float64)
}

// NewSlider returns a slider over [min, max] bound to v.
func NewSlider(title string, lo, hi float64, v *state.Value[float64], handler func(float64)) *Slider {
	return &Slider{
		base:    newBase(0, sliderHeight),
		Title:   title,
		Min:     lo,
		Max:     hi,
		Default: v.Get(),
		value:   v,
		handler: handler,
	}
}

// Track returns the track rectangle in local space.
func (s *Slider) Track() image.Rectangle {
	return image.Rect(sliderPad, trackTop, s.rect.Dx()-sliderPad, trackTop+trackThick)
}

// KnobX returns the knob centre, in local space, for value v. An empty
// range puts the knob at the start of the track.
func (s *Slider) KnobX(v float64) int {
	tr := s.Track()
	if s.Max == s.Min {
		return tr.Min.X
	}
	return tr.Min.X + int((v-s.Min)/(s.Max-s.Min)*float64(tr.Dx()))
}

// ValueAt maps a local x coordinate back into the slider's domain.
func (s *Slider) ValueAt(x int) float64 {
	tr := s.Track()
	if tr.Dx() <= 0 || s.Max == s.Min {
		return s.Min
	}
	return s.Min + float64(x-tr.Min.X)/float64(tr.Dx())*(s.Max-s.Min)
}

func (s *Slider) text() string {
	if s.Format != nil {
		return s.Format(s.value.Get())
	}
	return fmt.Sprintf("%.2f", s.value.Get())
}

func (s *Slider) Render(ctx *Context) bool {
	if !s.dirty(s.value) {
		return false
	}
	th := ctx.Theme()
	r := s.rect
	ctx.Clear(r)
	ctx.Text(image.Pt(r.Min.X+sliderPad, r.Min.Y+6), s.Title, th.Heading, th.Foreground)
	val := s.text()
	vw := MeasureText(th.Heading, val)
	ctx.Text(image.Pt(r.Max.X-sliderPad-vw, r.Min.Y+6), val, th.Heading, th.Foreground)

	tr := s.Track().Add(r.Min)
	ctx.Fill(tr, th.Inactive)
	kx := r.Min.X + s.KnobX(s.value.Get())
	fill := image.Rect(tr.Min.X, tr.Min.Y, kx, tr.Max.Y)
	ctx.Fill(fill.Intersect(tr), th.Active)
	top := tr.Min.Y - (knobHeight-trackThick)/2
	knob := image.Rect(kx-knobWidth/2, top, kx+knobWidth/2, top+knobHeight)
	ctx.Fill(knob.Intersect(r), th.Foreground)
	return true
}

func (s *Slider) Tap(p image.Point) {
	if s.handler != nil {
		s.handler(s.ValueAt(p.X))
	}
}

// DoubleTap resets the slider to the value it was created with.
func (s *Slider) DoubleTap(image.Point) {
	if s.handler != nil {
		s.handler(s.Default)
	}
}
