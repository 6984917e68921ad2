package widget

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/exp/shiny/iconvg"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Context is handed to Render. It draws into a straight-alpha raster at an
// origin that accumulates as containers hand sub-contexts to children.
type Context struct {
	dst    *image.NRGBA
	origin image.Point
	bg     image.Image
	theme  *Theme
	drew   *bool
}

// NewContext returns a context drawing into dst.
func NewContext(dst *image.NRGBA, theme *Theme) *Context {
	if theme == nil {
		theme = DefaultTheme()
	}
	return &Context{
		dst:   dst,
		bg:    image.Transparent,
		theme: theme,
		drew:  new(bool),
	}
}

// Theme returns the theme in use.
func (c *Context) Theme() *Theme { return c.theme }

// Drew reports whether anything was drawn through this context or any
// context derived from it.
func (c *Context) Drew() bool { return *c.drew }

// Origin returns the absolute position of the context's (0,0).
func (c *Context) Origin() image.Point { return c.origin }

// Sub returns a context whose origin is r.Min in the current space.
func (c *Context) Sub(r image.Rectangle) *Context {
	sub := *c
	sub.origin = c.origin.Add(r.Min)
	return &sub
}

// WithBackground returns a context whose Clear fills with col instead of
// transparency. A nil colour keeps the current background.
func (c *Context) WithBackground(col color.Color) *Context {
	if col == nil {
		return c
	}
	sub := *c
	sub.bg = image.NewUniform(col)
	return &sub
}

func (c *Context) abs(r image.Rectangle) image.Rectangle {
	return r.Add(c.origin).Intersect(c.dst.Rect)
}

// Clear resets r to the context background.
func (c *Context) Clear(r image.Rectangle) {
	draw.Draw(c.dst, c.abs(r), c.bg, image.Point{}, draw.Src)
	*c.drew = true
}

// Fill replaces the pixels in r with col.
func (c *Context) Fill(r image.Rectangle, col color.Color) {
	draw.Draw(c.dst, c.abs(r), image.NewUniform(col), image.Point{}, draw.Src)
	*c.drew = true
}

// HLine draws a one pixel horizontal line from x0 to x1 (exclusive).
func (c *Context) HLine(x0, x1, y int, col color.Color) {
	c.Fill(image.Rect(x0, y, x1, y+1), col)
}

// VLine draws a one pixel vertical line from y0 to y1 (exclusive).
func (c *Context) VLine(x, y0, y1 int, col color.Color) {
	c.Fill(image.Rect(x, y0, x+1, y1), col)
}

// Text draws s with its top-left corner at p, with a one pixel outline in
// the theme's outline colour so it stays readable over video.
func (c *Context) Text(p image.Point, s string, face font.Face, col color.Color) {
	ascent := face.Metrics().Ascent.Ceil()
	at := c.origin.Add(p)
	d := font.Drawer{Dst: c.dst, Face: face}

	d.Src = image.NewUniform(c.theme.Outline)
	for _, off := range [...]image.Point{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		d.Dot = fixed.P(at.X+off.X, at.Y+ascent+off.Y)
		d.DrawString(s)
	}

	d.Src = image.NewUniform(col)
	d.Dot = fixed.P(at.X, at.Y+ascent)
	d.DrawString(s)
	*c.drew = true
}

// Icon rasterises IconVG data (for example a material design icon) into r,
// recolouring the icon's first palette entry with col.
func (c *Context) Icon(r image.Rectangle, data []byte, col color.Color) error {
	var z iconvg.Rasterizer
	z.SetDstImage(c.dst, r.Add(c.origin), draw.Over)
	pal := iconvg.DefaultPalette
	pal[0] = color.RGBAModel.Convert(col).(color.RGBA)
	*c.drew = true
	return iconvg.Decode(&z, data, &iconvg.DecodeOptions{Palette: &pal})
}
