package layout

import (
	"image"
	"testing"

	"github.com/mncam/surface/pkg/state"
	"github.com/mncam/surface/pkg/widget"
)

// recorder is a minimal widget recording what reaches it.
type recorder struct {
	rect    image.Rectangle
	width   int
	dirty   bool
	taps    []image.Point
	doubles []image.Point
	renders int
}

func newRecorder(width int) *recorder { return &recorder{width: width, dirty: true} }

func (p *recorder) Bounds() image.Rectangle     { return p.rect }
func (p *recorder) SetBounds(r image.Rectangle) { p.rect = r; p.dirty = true }
func (p *recorder) Size() image.Point           { return image.Pt(p.width, 0) }
func (p *recorder) Tap(pt image.Point)          { p.taps = append(p.taps, pt) }
func (p *recorder) DoubleTap(pt image.Point)    { p.doubles = append(p.doubles, pt) }
func (p *recorder) MarkDirty()                  { p.dirty = true }
func (p *recorder) Render(ctx *widget.Context) bool {
	if !p.dirty {
		return false
	}
	p.dirty = false
	p.renders++
	ctx.Fill(p.rect, widget.DefaultTheme().Active)
	return true
}

func TestComputePlacesBars(t *testing.T) {
	l := New(1280, 720)
	a, b := newRecorder(100), newRecorder(200)
	l.Add(TopLeft, a)
	l.Add(TopLeft, b)
	c := newRecorder(120)
	l.Add(TopRight, c)
	d, e := newRecorder(100), newRecorder(100)
	l.Add(BottomMiddle, d)
	l.Add(BottomMiddle, e)
	l.Compute()

	cases := []struct {
		name string
		got  image.Rectangle
		want image.Rectangle
	}{
		{"top-left first", a.rect, image.Rect(10, 0, 110, 64)},
		{"top-left second", b.rect, image.Rect(120, 0, 320, 64)},
		{"top-right", c.rect, image.Rect(1150, 0, 1270, 64)},
		// Row of 100+10+100 = 210 centred on 640.
		{"bottom-middle first", d.rect, image.Rect(535, 656, 635, 720)},
		{"bottom-middle second", e.rect, image.Rect(645, 656, 745, 720)},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("%s = %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}

func TestRenderReturnsNilWhenClean(t *testing.T) {
	l := New(640, 480)
	p := newRecorder(100)
	l.Add(BottomLeft, p)
	l.Compute()

	if l.Render() == nil {
		t.Fatalf("first Render() = nil, want raster")
	}
	if img := l.Render(); img != nil {
		t.Fatalf("clean Render() returned a raster")
	}
	p.MarkDirty()
	if l.Render() == nil {
		t.Fatalf("Render() after MarkDirty = nil")
	}
}

func TestTapDispatchesInLocalSpace(t *testing.T) {
	l := New(1280, 720)
	a, b := newRecorder(100), newRecorder(100)
	l.Add(TopLeft, a)
	l.Add(BottomRight, b)
	l.Compute()

	if !l.Tap(image.Pt(50, 30)) {
		t.Fatalf("Tap inside a returned false")
	}
	if len(a.taps) != 1 || a.taps[0] != image.Pt(40, 30) {
		t.Fatalf("a taps = %v, want [(40,30)]", a.taps)
	}

	pt := b.rect.Min.Add(image.Pt(5, 6))
	l.DoubleTap(pt)
	if len(b.doubles) != 1 || b.doubles[0] != image.Pt(5, 6) {
		t.Fatalf("b double taps = %v", b.doubles)
	}

	if l.Tap(image.Pt(640, 360)) {
		t.Fatalf("tap on empty interior was dispatched")
	}
}

func TestPagesAreMutuallyExclusive(t *testing.T) {
	l := New(800, 480)
	sel := state.NewValue("")
	l.SetPageSelector(sel)

	on := state.NewValue(false)
	shutter := widget.NewVBox(0, widget.NewToggleRow("Auto", on, on.Set))
	gainPage := newRecorder(0)
	l.AddPage("shutter", shutter)
	l.AddPage("gain", gainPage)
	l.Compute()

	interior := l.Interior()
	if shutter.Bounds() != interior || gainPage.rect != interior {
		t.Fatalf("pages not given the interior: %v %v", shutter.Bounds(), gainPage.rect)
	}

	l.Render()
	if shutter.Visible() {
		t.Fatalf("shutter page visible with empty selector")
	}
	inside := interior.Min.Add(image.Pt(30, 30))
	if l.Tap(inside) {
		t.Fatalf("tap reached a page while none is selected")
	}

	sel.Set("gain")
	before := gainPage.renders
	if l.Render() == nil {
		t.Fatalf("page switch produced no raster")
	}
	if gainPage.renders != before+1 {
		t.Fatalf("gain page was not repainted")
	}
	l.Tap(inside)
	if len(gainPage.taps) != 1 || on.Get() {
		t.Fatalf("tap went to the wrong page")
	}

	sel.Set("shutter")
	l.Render()
	if !shutter.Visible() {
		t.Fatalf("shutter page hidden after selecting it")
	}
	l.Tap(inside)
	if !on.Get() {
		t.Fatalf("tap did not reach the shutter page row")
	}
	if len(gainPage.taps) != 1 {
		t.Fatalf("hidden page received a tap")
	}
}

func TestNoSelectorShowsAllMiddle(t *testing.T) {
	l := New(640, 480)
	p := newRecorder(0)
	l.Add(Middle, p)
	l.Compute()
	if l.Render() == nil || p.renders != 1 {
		t.Fatalf("middle widget without selector not rendered")
	}
	if !l.Tap(image.Pt(320, 240)) {
		t.Fatalf("middle widget without selector not hit")
	}
}

func TestEarlierSiblingWins(t *testing.T) {
	l := New(640, 480)
	a := newRecorder(100)
	b := newRecorder(100)
	l.Add(TopLeft, a)
	l.Add(TopLeft, b)
	l.Compute()
	// Force an overlap to check declaration order decides.
	b.rect = a.rect
	l.Tap(a.rect.Min.Add(image.Pt(1, 1)))
	if len(a.taps) != 1 || len(b.taps) != 0 {
		t.Fatalf("overlap dispatched to a=%d b=%d", len(a.taps), len(b.taps))
	}
}
