package preview

import (
	"image"

	"github.com/mncam/surface/pkg/kms"
)

// OutputConfig selects a connector and how it is driven.
type OutputConfig struct {
	// Name is the connector name, e.g. "HDMI-A-1".
	Name string

	// Width, Height and Refresh pick a mode. When zero the current mode
	// is kept, or the preferred mode is set if the CRTC is idle.
	Width   int
	Height  int
	Refresh int

	// Layers is the number of overlay layers stacked above the video.
	Layers int

	// Video is where the video is fitted. Empty means the whole output.
	Video image.Rectangle
}

// Output is one reserved display output.
type Output struct {
	Name string

	conn   *kms.Connector
	crtc   *kms.CRTC
	size   image.Point
	video  image.Rectangle
	vplane *kms.Plane
	layers []*layer
}

// Size returns the active mode size.
func (o *Output) Size() image.Point { return o.size }

// Layers returns the number of overlay layers.
func (o *Output) Layers() int { return len(o.layers) }

// layer is an overlay plane with its current buffer.
type layer struct {
	plane   *kms.Plane
	buf     *kms.DumbBuffer
	retired []*kms.DumbBuffer
	rect    image.Rectangle
	alpha   uint64
	fresh   bool
	dirty   bool
}

func opacityToAlpha(opacity float64) uint64 {
	switch {
	case opacity <= 0:
		return 0
	case opacity >= 1:
		return 0xffff
	}
	return uint64(float64(0xffff) * opacity)
}
