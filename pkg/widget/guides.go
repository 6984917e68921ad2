package widget

import (
	"github.com/mncam/surface/pkg/state"
)

// Guide styles understood by Guides.
const (
	GuidesNone   = "none"
	GuidesThirds = "thirds"
	GuidesCenter = "center"
)

// Guides draws framing lines over the picture area. It is decorative and
// ignores taps.
type Guides struct {
	base
	value *state.Value[string]
}

// NewGuides returns a guide overlay bound to v.
func NewGuides(v *state.Value[string]) *Guides {
	return &Guides{base: newBase(0, 0), value: v}
}

func (g *Guides) Render(ctx *Context) bool {
	if !g.dirty(g.value) {
		return false
	}
	col := ctx.Theme().Guide
	r := g.rect
	ctx.Clear(r)
	w, h := r.Dx(), r.Dy()
	switch g.value.Get() {
	case GuidesThirds:
		for i := 1; i <= 2; i++ {
			ctx.VLine(r.Min.X+w*i/3, r.Min.Y, r.Max.Y, col)
			ctx.HLine(r.Min.X, r.Max.X, r.Min.Y+h*i/3, col)
		}
	case GuidesCenter:
		cx, cy := r.Min.X+w/2, r.Min.Y+h/2
		ctx.HLine(cx-40, cx+41, cy, col)
		ctx.VLine(cx, cy-40, cy+41, col)
	}
	return true
}
