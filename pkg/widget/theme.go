package widget

import (
	"image/color"
	"log"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

// Theme bundles the faces and colours used when drawing.
type Theme struct {
	Heading font.Face
	Value   font.Face

	Foreground color.NRGBA
	Outline    color.NRGBA
	Active     color.NRGBA
	Inactive   color.NRGBA
	Panel      color.NRGBA
	Guide      color.NRGBA
}

var (
	defaultTheme     *Theme
	defaultThemeOnce sync.Once
)

// DefaultTheme returns the shared theme built on Go Bold. If the embedded
// font cannot be parsed the 7x13 bitmap face is used instead.
func DefaultTheme() *Theme {
	defaultThemeOnce.Do(func() {
		defaultTheme = &Theme{
			Heading:    loadFace(15),
			Value:      loadFace(26),
			Foreground: color.NRGBA{255, 255, 255, 255},
			Outline:    color.NRGBA{0, 0, 0, 255},
			Active:     color.NRGBA{0, 128, 255, 200},
			Inactive:   color.NRGBA{80, 80, 80, 200},
			Panel:      color.NRGBA{0, 0, 0, 160},
			Guide:      color.NRGBA{128, 128, 128, 128},
		}
	})
	return defaultTheme
}

func loadFace(size float64) font.Face {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		log.Printf("widget: parse gobold: %v", err)
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		log.Printf("widget: gobold face %.0fpt: %v", size, err)
		return basicfont.Face7x13
	}
	return face
}

// MeasureText returns the advance width of s in whole pixels.
func MeasureText(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}
