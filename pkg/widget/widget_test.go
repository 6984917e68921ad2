package widget

import (
	"image"
	"math"
	"testing"

	"github.com/mncam/surface/pkg/state"
	"golang.org/x/exp/shiny/materialdesign/icons"
)

func newCtx() (*Context, *image.NRGBA) {
	img := image.NewNRGBA(image.Rect(0, 0, 800, 480))
	return NewContext(img, DefaultTheme()), img
}

func TestButtonRendersOnlyWhenDirty(t *testing.T) {
	v := state.NewValue(false)
	b := NewToggleButton(120, "Zebra", v, v.Set)
	b.SetBounds(image.Rect(10, 416, 130, 480))

	ctx, _ := newCtx()
	if !b.Render(ctx) {
		t.Fatalf("first Render() = false, want true")
	}
	if !ctx.Drew() {
		t.Fatalf("context did not record drawing")
	}

	ctx2, _ := newCtx()
	if b.Render(ctx2) {
		t.Fatalf("second Render() = true with no change")
	}
	if ctx2.Drew() {
		t.Fatalf("clean render touched the context")
	}

	b.Tap(image.Point{})
	if !v.Get() {
		t.Fatalf("toggle tap did not set value")
	}
	ctx3, _ := newCtx()
	if !b.Render(ctx3) {
		t.Fatalf("Render() after change = false")
	}
}

func TestActiveFillUsesThemeColour(t *testing.T) {
	v := state.NewValue(true)
	b := NewToggleButton(120, "Focus", v, nil)
	b.SetBounds(image.Rect(0, 0, 120, 64))
	ctx, img := newCtx()
	b.Render(ctx)
	if got, want := img.NRGBAAt(1, 1), DefaultTheme().Active; got != want {
		t.Fatalf("corner pixel = %v, want %v", got, want)
	}
}

func TestPageButtonsShareOneSelector(t *testing.T) {
	page := state.NewValue("")
	shutter := NewPageButton(120, "Shutter", page, "shutter", page.Set)
	gain := NewPageButton(120, "Gain", page, "gain", page.Set)

	if shutter.Active() || gain.Active() {
		t.Fatalf("buttons active before any page is selected")
	}
	gain.Tap(image.Point{})
	if !gain.Active() || shutter.Active() {
		t.Fatalf("gain=%v shutter=%v after selecting gain", gain.Active(), shutter.Active())
	}

	// Both buttons observe the selector independently.
	shutter.SetBounds(image.Rect(0, 0, 120, 64))
	gain.SetBounds(image.Rect(130, 0, 250, 64))
	ctx, _ := newCtx()
	shutter.Render(ctx)
	gain.Render(ctx)
	page.Set("shutter")
	ctx, _ = newCtx()
	if !shutter.Render(ctx) || !gain.Render(ctx) {
		t.Fatalf("a button missed the page change")
	}
}

func TestLabelFormatsValue(t *testing.T) {
	v := state.NewValue(50)
	calls := 0
	l := NewLabelFunc(100, "Shutter", func() string {
		calls++
		return "1/" + v.String()
	}, v)
	l.SetBounds(image.Rect(10, 0, 110, 64))
	ctx, _ := newCtx()
	if !l.Render(ctx) || calls != 1 {
		t.Fatalf("label did not format on first render (calls=%d)", calls)
	}
	ctx, _ = newCtx()
	if l.Render(ctx) || calls != 1 {
		t.Fatalf("label formatted without a change (calls=%d)", calls)
	}
}

func TestRadioRowHitRegions(t *testing.T) {
	v := state.NewValue("25")
	var picked string
	r := NewRadioRow("FPS", []string{"24", "25", "30", "50"}, v, func(s string) { picked = s })
	r.SetBounds(image.Rect(0, 0, 760, 60))

	regions := r.Regions()
	if len(regions) != 4 {
		t.Fatalf("len(Regions()) = %d, want 4", len(regions))
	}
	for i := 1; i < len(regions); i++ {
		if regions[i].Min.X != regions[i-1].Max.X {
			t.Fatalf("region %d starts at %d, previous ends at %d", i, regions[i].Min.X, regions[i-1].Max.X)
		}
	}
	face := DefaultTheme().Value
	if want := MeasureText(face, "30") + optionPad; regions[2].Dx() != want {
		t.Fatalf("region width = %d, want %d", regions[2].Dx(), want)
	}

	r.Tap(image.Pt(regions[2].Min.X+1, 30))
	if picked != "30" {
		t.Fatalf("picked %q, want 30", picked)
	}

	picked = ""
	r.Tap(image.Pt(5, 30))
	if picked != "" {
		t.Fatalf("tap on title picked %q", picked)
	}
}

func TestSliderMapping(t *testing.T) {
	lo, hi := 1.0/8000, 1.0/30
	v := state.NewValue(lo)
	var got float64
	s := NewSlider("Shutter", lo, hi, v, func(x float64) { got = x })
	s.SetBounds(image.Rect(10, 10, 770, 74))

	tr := s.Track()
	if tr.Dx() != 720 {
		t.Fatalf("track length = %d, want 720", tr.Dx())
	}
	s.Tap(image.Pt(tr.Min.X+tr.Dx()/2, 30))
	if want := (lo + hi) / 2; math.Abs(got-want) > 1e-12 {
		t.Fatalf("midpoint tap = %v, want %v", got, want)
	}

	if x := s.KnobX(hi); x != tr.Max.X {
		t.Fatalf("KnobX(max) = %d, want %d", x, tr.Max.X)
	}
	if x := s.KnobX(lo); x != tr.Min.X {
		t.Fatalf("KnobX(min) = %d, want %d", x, tr.Min.X)
	}

	// Outside the track the slider reports out-of-range values untouched.
	s.Tap(image.Pt(0, 30))
	if got >= lo {
		t.Fatalf("tap left of track = %v, want < %v", got, lo)
	}

	s.DoubleTap(image.Point{})
	if got != lo {
		t.Fatalf("double tap reset to %v, want %v", got, lo)
	}
}

func TestSliderKnobSitsOnTrack(t *testing.T) {
	v := state.NewValue(0.5)
	s := NewSlider("Gain", 0, 1, v, nil)
	s.SetBounds(image.Rect(10, 100, 770, 164))
	ctx, img := newCtx()
	if !s.Render(ctx) {
		t.Fatalf("Render() = false")
	}

	tr := s.Track().Add(s.Bounds().Min)
	kx := s.Bounds().Min.X + s.KnobX(0.5)
	fg := DefaultTheme().Foreground
	for _, y := range []int{tr.Min.Y - 5, tr.Min.Y + 1, tr.Max.Y + 5} {
		if got := img.NRGBAAt(kx, y); got != fg {
			t.Fatalf("knob pixel at (%d,%d) = %v, want %v", kx, y, got, fg)
		}
	}
	if got := img.NRGBAAt(kx, s.Bounds().Max.Y-1); got == fg {
		t.Fatalf("knob reaches the bottom of the slider")
	}
}

func TestSliderEmptyRange(t *testing.T) {
	v := state.NewValue(3.0)
	s := NewSlider("Fixed", 3, 3, v, nil)
	s.SetBounds(image.Rect(0, 0, 400, 64))
	if x := s.KnobX(3); x != s.Track().Min.X {
		t.Fatalf("KnobX = %d, want track start %d", x, s.Track().Min.X)
	}
	if got := s.ValueAt(200); got != 3 {
		t.Fatalf("ValueAt = %v, want 3", got)
	}
	ctx, _ := newCtx()
	s.Render(ctx)
}

func TestVBoxRevealRepaintsChildren(t *testing.T) {
	on := state.NewValue(false)
	row := NewToggleRow("Zebra", on, on.Set)
	box := NewVBox(0, row)
	box.Expand = true
	box.SetBounds(image.Rect(0, 64, 800, 416))

	if rb := row.Bounds(); rb.Min != image.Pt(10, 10) || rb.Dx() != 780 {
		t.Fatalf("child bounds = %v", rb)
	}

	ctx, _ := newCtx()
	if !box.Render(ctx) {
		t.Fatalf("first render did not draw")
	}
	ctx, _ = newCtx()
	if box.Render(ctx) {
		t.Fatalf("clean box redrew")
	}

	box.SetVisible(false)
	ctx, _ = newCtx()
	if !box.Render(ctx) {
		t.Fatalf("hiding did not clear")
	}
	box.Tap(image.Pt(20, 20))
	if on.Get() {
		t.Fatalf("hidden box dispatched a tap")
	}

	box.SetVisible(true)
	ctx, _ = newCtx()
	if !box.Render(ctx) {
		t.Fatalf("reveal did not repaint")
	}
	// The row was clean but must be repainted after the reveal; rendering
	// again shows it consumed the forced flag.
	ctx, _ = newCtx()
	if row.Render(ctx.Sub(box.Bounds())) {
		t.Fatalf("row still dirty after reveal render")
	}

	box.Tap(image.Pt(20, 20))
	if !on.Get() {
		t.Fatalf("tap inside visible box was not dispatched to the row")
	}
}

func TestVBoxDrawsChildrenInBoxSpace(t *testing.T) {
	on := state.NewValue(true)
	row := NewToggleRow("Focus", on, nil)
	box := NewVBox(0, row)
	box.SetBounds(image.Rect(100, 100, 500, 300))

	ctx, img := newCtx()
	box.Render(ctx)

	sw := row.switchRect().Add(row.Bounds().Min).Add(box.Bounds().Min)
	if got := img.NRGBAAt(sw.Min.X+1, sw.Min.Y+1); got != DefaultTheme().Active {
		t.Fatalf("switch pixel = %v, want active colour", got)
	}
}

func TestGuidesThirds(t *testing.T) {
	v := state.NewValue(GuidesThirds)
	g := NewGuides(v)
	g.SetBounds(image.Rect(0, 64, 600, 364))
	ctx, img := newCtx()
	g.Render(ctx)
	if got := img.NRGBAAt(200, 100); got != DefaultTheme().Guide {
		t.Fatalf("thirds line pixel = %v", got)
	}

	v.Set(GuidesNone)
	ctx = NewContext(img, nil)
	if !g.Render(ctx) {
		t.Fatalf("guides did not redraw on change")
	}
	if got := img.NRGBAAt(200, 100); got.A != 0 {
		t.Fatalf("line not cleared: %v", got)
	}
}

func TestButtonIcon(t *testing.T) {
	b := NewButton(120, "Assist", nil, func() {})
	b.Icon = icons.ActionSettings
	b.SetBounds(image.Rect(0, 0, 120, 64))
	ctx, img := newCtx()
	if !b.Render(ctx) {
		t.Fatalf("Render() = false")
	}

	// The icon sits left of the text, 46px above the bottom edge.
	x := (120 - MeasureText(DefaultTheme().Value, "Assist") - iconSize - 6) / 2
	painted := 0
	for y := 64 - 46; y < 64-46+iconSize; y++ {
		for dx := 0; dx < iconSize; dx++ {
			if img.NRGBAAt(x+dx, y).A != 0 {
				painted++
			}
		}
	}
	if painted == 0 {
		t.Fatalf("no icon pixels drawn")
	}
}
