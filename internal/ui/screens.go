package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mncam/surface/pkg/layout"
	"github.com/mncam/surface/pkg/state"
	"github.com/mncam/surface/pkg/widget"
	"golang.org/x/exp/shiny/materialdesign/icons"
)

// Detail pages shown between the bars.
const (
	PageNone    = ""
	PageShutter = "shutter"
	PageGain    = "gain"
	PageFPS     = "fps"
	PageEV      = "ev"
	PageAssist  = "assist"
)

func (s *Surface) guidesScreen() *layout.Layout {
	l := layout.New(s.opts.Size.X, s.opts.Size.Y)
	l.Add(layout.Middle, widget.NewGuides(s.Guides))
	l.Compute()
	return l
}

func (s *Surface) mainScreen() *layout.Layout {
	l := layout.New(s.opts.Size.X, s.opts.Size.Y)

	fps := widget.NewLabelFunc(80, "FPS", func() string {
		return fmt.Sprintf("%.0f", s.FPS.Get())
	}, s.FPS)
	shutter := widget.NewLabelFunc(100, "Shutter", func() string {
		return fmt.Sprintf("1/%d", shutterDenominator(s.Shutter.Get()))
	}, s.Shutter)
	gain := widget.NewLabelFunc(80, "Gain", func() string {
		return fmt.Sprintf("%.0f dB", s.Gain.Get())
	}, s.Gain)
	ev := widget.NewLabelFunc(70, "EV", func() string {
		return fmt.Sprintf("%+.1f", s.EV.Get())
	}, s.EV)
	for _, p := range []struct {
		label *widget.Label
		page  string
	}{{fps, PageFPS}, {shutter, PageShutter}, {gain, PageGain}, {ev, PageEV}} {
		page := p.page
		l.Add(layout.TopLeft, p.label.OnTap(func() { s.togglePage(page) }))
	}

	l.Add(layout.TopRight, widget.NewLabel(110, "TC", s.Timecode))
	wb := widget.NewLabelFunc(90, "WB", func() string {
		if s.WhiteBalance.Get() <= 0 {
			return "-"
		}
		if s.AutoWB.Get() {
			return fmt.Sprintf("A %dK", s.WhiteBalance.Get())
		}
		return fmt.Sprintf("%dK", s.WhiteBalance.Get())
	}, s.WhiteBalance, s.AutoWB)
	// Tapping the white balance locks it to the current scene.
	l.Add(layout.TopRight, wb.OnTap(logErr0(s.OneShotWhiteBalance)))
	l.Add(layout.TopRight, widget.NewLabel(70, "Camera", s.CameraID))

	l.Add(layout.BottomLeft, widget.NewToggleButton(120, "Zebra", s.Zebra, s.EnableZebra))
	l.Add(layout.BottomLeft, widget.NewToggleButton(120, "Focus", s.FocusAssist, s.EnableFocusAssist))
	l.Add(layout.BottomLeft, widget.NewToggleButton(120, "Exposure", s.FalseColor, s.EnableFalseColor))
	guides := widget.NewButton(120, "Guides", func() bool {
		return s.Guides.Get() != widget.GuidesNone
	}, s.cycleGuides, s.Guides)
	guides.TextFunc = func() string {
		if g := s.Guides.Get(); g != widget.GuidesNone {
			return strings.ToUpper(g[:1]) + g[1:]
		}
		return "Guides"
	}
	guides.Icon = icons.ImageGridOn
	l.Add(layout.BottomLeft, guides)
	assist := widget.NewButton(120, "Assist", func() bool {
		return s.Page.Get() == PageAssist
	}, func() { s.togglePage(PageAssist) }, s.Page)
	assist.Icon = icons.ActionSettings
	l.Add(layout.BottomRight, assist)

	l.AddPage(PageShutter, detailPage(
		s.slider("Shutter", MinShutter, MaxShutter, s.Shutter, s.SetShutter, func(v float64) string {
			return fmt.Sprintf("1/%d", shutterDenominator(v))
		}),
		widget.NewToggleRow("Auto exposure", s.AutoExposure, logErr(s.EnableAutoExposure)),
	))
	gr := s.gainRange()
	l.AddPage(PageGain, detailPage(
		s.slider("Gain", gr.Min, gr.Max, s.Gain, s.SetGain, func(v float64) string {
			return fmt.Sprintf("%.0f dB", v)
		}),
		widget.NewToggleRow("Auto exposure", s.AutoExposure, logErr(s.EnableAutoExposure)),
	))
	fr := s.fpsRange()
	l.AddPage(PageFPS, detailPage(
		s.slider("Frame rate", fr.Min, fr.Max, s.FPS, s.SetFPS, func(v float64) string {
			return fmt.Sprintf("%.0f fps", v)
		}),
		widget.NewRadioRow("Preset", fpsPresets, s.fpsPreset, logErr(func(v string) error {
			fps, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			return s.SetFPS(float64(fps))
		})),
	))
	er := s.evRange()
	l.AddPage(PageEV, detailPage(
		s.slider("Exposure compensation", er.Min, er.Max, s.EV, s.SetEV, func(v float64) string {
			return fmt.Sprintf("%+.1f EV", v)
		}),
		widget.NewToggleRow("Auto exposure", s.AutoExposure, logErr(s.EnableAutoExposure)),
	))
	l.AddPage(PageAssist, detailPage(
		widget.NewToggleRow("Auto white balance", s.AutoWB, logErr(s.EnableAutoWhiteBalance)),
		widget.NewToggleRow("HDMI overlay", s.HDMIOverlay, s.EnableHDMIOverlay),
		widget.NewToggleRow("Focus zoom", s.FocusZoom, s.EnableFocusZoom),
		widget.NewRadioRow("Guides", guideStyles, s.Guides, logErr(s.SetGuides)),
	))
	l.SetPageSelector(s.Page)
	l.Compute()
	return l
}

func detailPage(children ...widget.Widget) *widget.VBox {
	b := widget.NewVBox(0, children...)
	b.Expand = true
	b.Background = widget.DefaultTheme().Panel
	return b
}

func (s *Surface) slider(title string, lo, hi float64, v *state.Value[float64], set func(float64) error, format func(float64) string) *widget.Slider {
	sl := widget.NewSlider(title, lo, hi, v, logErr(set))
	sl.Format = format
	return sl
}
