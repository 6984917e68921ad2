// Package desktop shows simulated display outputs in a window so the
// control surface can be exercised without a camera or a DRM device.
// Mouse presses on the first output are fed into the touch input queue.
package desktop

import (
	"image"
	"image/color"
	"log"
	"os"
	"time"

	"gioui.org/app"
	"gioui.org/f32"
	"gioui.org/io/event"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"

	"github.com/mncam/surface/pkg/input"
	"github.com/mncam/surface/pkg/kms"
)

const (
	frameInterval = 33 * time.Millisecond
	gap           = 10
	device        = "desktop"
)

var background = color.NRGBA{R: 24, G: 24, B: 28, A: 255}

// Viewer draws outputs of a simulated device. The first output is shown
// at its native size and receives presses; the others are scaled to the
// same height next to it.
type Viewer struct {
	Window  *app.Window
	Sim     *kms.Sim
	Outputs []string
	Queue   *input.Queue

	rec    input.Recognizer
	ops    op.Ops
	failed map[string]bool
}

// NewViewer returns a viewer for outputs of sim. Presses go to q.
func NewViewer(w *app.Window, sim *kms.Sim, q *input.Queue, outputs ...string) *Viewer {
	return &Viewer{Window: w, Sim: sim, Outputs: outputs, Queue: q, failed: make(map[string]bool)}
}

// Run processes window events until the window is closed.
func (v *Viewer) Run() error {
	for {
		switch e := v.Window.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&v.ops, e)
			v.layout(gtx)
			e.Frame(gtx.Ops)
		}
	}
}

func (v *Viewer) press(at time.Time, pos f32.Point) {
	p := image.Pt(int(pos.X), int(pos.Y))
	if v.Queue != nil {
		v.Queue.Push(v.rec.Press(at, p, device))
	}
}

func (v *Viewer) layout(gtx layout.Context) layout.Dimensions {
	for {
		ev, ok := gtx.Event(pointer.Filter{Target: v, Kinds: pointer.Press})
		if !ok {
			break
		}
		if pe, ok := ev.(pointer.Event); ok && pe.Buttons == pointer.ButtonPrimary {
			v.press(gtx.Now, pe.Position)
		}
	}

	paint.Fill(gtx.Ops, background)

	x, height := 0, 0
	for i, name := range v.Outputs {
		img, err := v.Sim.Snapshot(name)
		if err != nil {
			if !v.failed[name] {
				log.Printf("desktop: %s: %v", name, err)
			}
			v.failed[name] = true
			continue
		}
		delete(v.failed, name)
		size := img.Bounds().Size()
		scale := float32(1)
		if i == 0 {
			height = size.Y
			area := clip.Rect{Max: size}.Push(gtx.Ops)
			event.Op(gtx.Ops, v)
			area.Pop()
		} else if size.Y > 0 && height > 0 {
			scale = float32(height) / float32(size.Y)
		}
		tr := f32.Affine2D{}.Scale(f32.Point{}, f32.Pt(scale, scale)).Offset(f32.Pt(float32(x), 0))
		stack := op.Affine(tr).Push(gtx.Ops)
		drawImage(gtx.Ops, img)
		stack.Pop()
		x += int(float32(size.X)*scale) + gap
	}

	gtx.Execute(op.InvalidateCmd{At: gtx.Now.Add(frameInterval)})
	return layout.Dimensions{Size: gtx.Constraints.Max}
}

func drawImage(ops *op.Ops, img *image.NRGBA) {
	defer clip.Rect(img.Bounds()).Push(ops).Pop()
	paint.NewImageOp(img).Add(ops)
	paint.PaintOp{}.Add(ops)
}

// Main opens a window for v's outputs and runs the platform event loop.
// It does not return; the process exits when the window closes.
func Main(title string, size image.Point, sim *kms.Sim, q *input.Queue, outputs ...string) {
	go func() {
		w := new(app.Window)
		w.Option(app.Title(title), app.Size(unit.Dp(size.X), unit.Dp(size.Y)))
		if err := NewViewer(w, sim, q, outputs...).Run(); err != nil {
			log.Printf("desktop: %v", err)
		}
		os.Exit(0)
	}()
	app.Main()
}
