// Package preview composites camera video and UI overlays onto display
// outputs through hardware planes.
//
// Every output gets one video plane and a stack of overlay layers. Overlay
// uploads only mark layers dirty; the commit that shows them is issued by
// RenderFrame on the camera frame cadence, or by Commit when no video is
// running. Both take the compositor mutex, so a frame callback and an
// overlay upload never interleave inside one atomic request.
package preview

import (
	"errors"
	"fmt"
	"image"

	"github.com/mncam/surface/pkg/kms"
)

var (
	// ErrUnsupportedFormat is returned when the negotiated video format has
	// no plane format. It is fatal for the output.
	ErrUnsupportedFormat = errors.New("preview: unsupported video format")

	// ErrPlaneReservation is returned when no plane can carry the video or
	// an overlay layer.
	ErrPlaneReservation = errors.New("preview: plane reservation failed")

	// ErrPreviewNotReady is returned when overlays are set before the
	// stream is configured, or the buffer pool is too small to keep a
	// frame on screen while the next one is captured.
	ErrPreviewNotReady = errors.New("preview: not ready")
)

// OverlayFormat is the format of every overlay layer: straight alpha with
// R, G, B, A byte order, the layout of image.NRGBA.
var OverlayFormat = kms.FormatABGR8888

var videoFormats = map[string]kms.Format{
	"RGB888":   kms.FormatRGB888,
	"BGR888":   kms.FormatBGR888,
	"XRGB8888": kms.FormatXRGB8888,
	"XBGR8888": kms.FormatXBGR8888,
	"YUV420":   kms.FormatYUV420,
	"YVU420":   kms.FormatYVU420,
}

// VideoFormat maps a camera pixel format name to its plane format.
func VideoFormat(name string) (kms.Format, error) {
	f, ok := videoFormats[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
	return f, nil
}

// Fit returns the largest rectangle with the aspect ratio of src that fits
// in dst, centred along the axis that has room to spare.
func Fit(src image.Point, dst image.Rectangle) image.Rectangle {
	if src.X <= 0 || src.Y <= 0 {
		return dst
	}
	x, y, w, h := dst.Min.X, dst.Min.Y, dst.Dx(), dst.Dy()
	if src.X*h > w*src.Y {
		nh := w * src.Y / src.X
		y += (h - nh) / 2
		h = nh
	} else {
		nw := h * src.X / src.Y
		x += (w - nw) / 2
		w = nw
	}
	return image.Rect(x, y, x+w, y+h)
}

// dmabufSpec describes a frame buffer of the given stream. Planar 4:2:0
// formats keep both chroma planes after the luma plane in the same buffer.
func dmabufSpec(fd, width, height, stride int, format kms.Format) kms.DmabufSpec {
	spec := kms.DmabufSpec{FD: fd, Width: width, Height: height, Format: format}
	spec.Pitches[0] = uint32(stride)
	if format == kms.FormatYUV420 || format == kms.FormatYVU420 {
		cs := stride / 2
		size := height * stride
		spec.Pitches[1] = uint32(cs)
		spec.Pitches[2] = uint32(cs)
		spec.Offsets[1] = uint32(size)
		spec.Offsets[2] = uint32(size + height/2*cs)
	}
	return spec
}
