package input

import (
	"fmt"
	"image"
)

// Transform maps raw touch coordinates into screen space. Rotation is
// applied first (clockwise, in degrees), then the flips, then scaling from
// the rotated touch resolution to the screen size.
type Transform struct {
	Rotate int
	FlipX  bool
	FlipY  bool

	// Width and Height are the raw touch resolution.
	Width  int
	Height int

	// ScreenWidth and ScreenHeight, when set, scale the result.
	ScreenWidth  int
	ScreenHeight int
}

// Validate checks the rotation is one of the supported right angles.
func (t Transform) Validate() error {
	switch t.Rotate {
	case 0, 90, 180, 270:
		return nil
	}
	return fmt.Errorf("input: unsupported touchscreen rotation %d", t.Rotate)
}

// Apply maps a raw coordinate.
func (t Transform) Apply(x, y int) image.Point {
	w, h := t.Width, t.Height
	switch t.Rotate {
	case 90:
		x, y = h-1-y, x
		w, h = h, w
	case 180:
		x, y = w-1-x, h-1-y
	case 270:
		x, y = y, w-1-x
		w, h = h, w
	}
	if t.FlipX {
		x = w - 1 - x
	}
	if t.FlipY {
		y = h - 1 - y
	}
	if t.ScreenWidth > 0 && w > 0 && t.ScreenWidth != w {
		x = x * t.ScreenWidth / w
	}
	if t.ScreenHeight > 0 && h > 0 && t.ScreenHeight != h {
		y = y * t.ScreenHeight / h
	}
	return image.Pt(x, y)
}
