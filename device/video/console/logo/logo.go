// Package logo contains logos that can be used with a framebuffer console.
package logo

import "image/color"

// ConsoleLogo defines the logo used by framebuffer consoles. If set to nil
// then no logo will be displayed.
var ConsoleLogo *Image

// availableLogos holds every logo variant cmd/genassets generated,
// populated by the generated asset file's init().
var availableLogos []*Image

// Alignment defines the supported horizontal alignments for a console logo.
type Alignment uint8

const (
	// AlignLeft aligns the logo to the left side of the console.
	AlignLeft Alignment = iota

	// AlignCenter aligns the logo to the center of the console.
	AlignCenter

	// AlignRight aligns the logo to the right side of the console.
	AlignRight
)

// Image describes an 8bpp image with
type Image struct {
	// The width and height of the logo in pixels.
	Width  uint32
	Height uint32

	// Align specifies the horizontal alignment for the logo.
	Align Alignment

	// TransparentIndex defines a color index that will be treated as
	// transparent when drawing the logo.
	TransparentIndex uint8

	// The palette for the logo. The console remaps the palette
	// entries to the end of its own palette.
	Palette []color.RGBA

	// The logo data comprises of Width*Height bytes where each byte
	// represents an index in the logo palette.
	Data []uint8
}

// BestFit returns the logo from availableLogos whose own dimensions are
// closest to the console's, mirroring font.BestFit's nearest-match
// selection.
func BestFit(consoleWidth, consoleHeight uint32) *Image {
	var (
		best                           *Image
		bestDelta                      uint32
		absDeltaW, absDeltaH, absDelta uint32
	)

	for _, img := range availableLogos {
		if img.Width > consoleWidth {
			absDeltaW = img.Width - consoleWidth
		} else {
			absDeltaW = consoleWidth - img.Width
		}

		if img.Height > consoleHeight {
			absDeltaH = img.Height - consoleHeight
		} else {
			absDeltaH = consoleHeight - img.Height
		}

		absDelta = absDeltaW + absDeltaH

		if best == nil || absDelta < bestDelta {
			best = img
			bestDelta = absDelta
		}
	}

	return best
}
