// Command genassets turns a TrueType font and a PNG logo into the Go
// source files that device/video/console/font and
// device/video/console/logo embed as their builtin assets.
//
// It runs on the host (ordinary GOOS/GOARCH, ordinary Go runtime) and
// its output is checked in rather than regenerated on every build, the
// same way a prebuilt VGA font table would be: a bootloader build has
// no filesystem to read a .ttf or .png from at boot time.
//
//	go run ./cmd/genassets -font NotoSansMono.ttf -logo gopher.png
package main

import (
	"bytes"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	stddraw "image/draw"
	_ "image/png"
	"log"
	"os"

	"github.com/fogleman/gg"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	xdraw "golang.org/x/image/draw"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

func main() {
	var (
		fontPath    = flag.String("font", "", "path to a TrueType font file")
		fontOut     = flag.String("font-out", "device/video/console/font/font_builtin.go", "output path for the generated font source")
		fontName    = flag.String("font-name", "builtin8x16", "name assigned to the generated font")
		glyphWidth  = flag.Uint("glyph-width", 8, "glyph width in pixels")
		glyphHeight = flag.Uint("glyph-height", 16, "glyph height in pixels")
		recWidth    = flag.Uint("rec-width", 640, "recommended console width for this font")
		recHeight   = flag.Uint("rec-height", 480, "recommended console height for this font")
		fontPrio    = flag.Uint("font-priority", 0, "font priority; lower is preferred")

		logoPath      = flag.String("logo", "", "path to a PNG logo")
		logoOut       = flag.String("logo-out", "device/video/console/logo/logo_builtin.go", "output path for the generated logo source")
		logoWidth     = flag.Uint("logo-width", 0, "logo width after scaling; 0 keeps the source width")
		logoHeight    = flag.Uint("logo-height", 0, "logo height after scaling; 0 keeps the source height")
		logoTransIdx  = flag.Uint("logo-transparent-index", 0, "palette index treated as transparent")
		logoSetActive = flag.Bool("logo-set-active", true, "assign the generated logo to logo.ConsoleLogo")
	)
	flag.Parse()

	if *fontPath != "" {
		if err := generateFont(*fontPath, *fontOut, *fontName, uint32(*glyphWidth), uint32(*glyphHeight), uint32(*recWidth), uint32(*recHeight), uint32(*fontPrio)); err != nil {
			log.Fatalf("genassets: font: %v", err)
		}
	}

	if *logoPath != "" {
		if err := generateLogo(*logoPath, *logoOut, uint32(*logoWidth), uint32(*logoHeight), uint8(*logoTransIdx), *logoSetActive); err != nil {
			log.Fatalf("genassets: logo: %v", err)
		}
	}

	if *fontPath == "" && *logoPath == "" {
		flag.Usage()
		os.Exit(2)
	}
}

// generateFont rasterizes codepoints 0x00-0xff of the font at fontPath
// into a fixed-size glyph grid matching font.Font's layout (BytesPerRow
// bytes per glyph row, one bit per pixel, MSB first) and writes the
// result as a Go source file that registers it with the font package.
func generateFont(fontPath, outPath, name string, glyphWidth, glyphHeight, recWidth, recHeight, priority uint32) error {
	raw, err := os.ReadFile(fontPath)
	if err != nil {
		return fmt.Errorf("reading font: %w", err)
	}

	ttf, err := freetype.ParseFont(raw)
	if err != nil {
		return fmt.Errorf("parsing font: %w", err)
	}

	bytesPerRow := (glyphWidth + 7) / 8
	data := make([]byte, 0, 256*bytesPerRow*glyphHeight)

	ctx := freetype.NewContext()
	ctx.SetDPI(72)
	ctx.SetFont(ttf)
	ctx.SetFontSize(float64(glyphHeight) * 0.8)
	ctx.SetHinting(xfont.HintingFull)

	for ch := 0; ch < 256; ch++ {
		glyph := rasterizeGlyph(ctx, ttf, rune(ch), glyphWidth, glyphHeight)
		data = append(data, packGlyph(glyph, glyphWidth, glyphHeight, bytesPerRow)...)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "// Code generated by cmd/genassets from %s. DO NOT EDIT.\n\n", fontPath)
	fmt.Fprintf(&buf, "package font\n\n")
	fmt.Fprintf(&buf, "func init() {\n")
	fmt.Fprintf(&buf, "\tavailableFonts = append(availableFonts, &Font{\n")
	fmt.Fprintf(&buf, "\t\tName:              %q,\n", name)
	fmt.Fprintf(&buf, "\t\tGlyphWidth:        %d,\n", glyphWidth)
	fmt.Fprintf(&buf, "\t\tGlyphHeight:       %d,\n", glyphHeight)
	fmt.Fprintf(&buf, "\t\tRecommendedWidth:  %d,\n", recWidth)
	fmt.Fprintf(&buf, "\t\tRecommendedHeight: %d,\n", recHeight)
	fmt.Fprintf(&buf, "\t\tPriority:          %d,\n", priority)
	fmt.Fprintf(&buf, "\t\tBytesPerRow:       %d,\n", bytesPerRow)
	fmt.Fprintf(&buf, "\t\tData:              %sData,\n", name)
	fmt.Fprintf(&buf, "\t})\n}\n\n")
	fmt.Fprintf(&buf, "var %sData = []byte{\n", name)
	writeByteRows(&buf, data)
	fmt.Fprintf(&buf, "}\n")

	return os.WriteFile(outPath, buf.Bytes(), 0o644)
}

// rasterizeGlyph renders a single codepoint into a glyphWidth x
// glyphHeight alpha mask using the freetype rasterizer.
func rasterizeGlyph(ctx *freetype.Context, ttf *truetype.Font, ch rune, glyphWidth, glyphHeight uint32) *image.Alpha {
	dst := image.NewAlpha(image.Rect(0, 0, int(glyphWidth), int(glyphHeight)))
	ctx.SetClip(dst.Bounds())
	ctx.SetDst(dst)
	ctx.SetSrc(image.Opaque)

	baseline := fixed.P(0, int(glyphHeight)-int(glyphHeight)/4)
	_, _ = ctx.DrawString(string(ch), baseline)

	return dst
}

// packGlyph converts an alpha mask into the bit-packed row format the
// console driver expects: one bit per pixel, MSB first, padded to a
// whole number of bytes per row.
func packGlyph(mask *image.Alpha, glyphWidth, glyphHeight, bytesPerRow uint32) []byte {
	out := make([]byte, bytesPerRow*glyphHeight)

	for y := uint32(0); y < glyphHeight; y++ {
		for x := uint32(0); x < glyphWidth; x++ {
			if mask.AlphaAt(int(x), int(y)).A < 0x80 {
				continue
			}
			rowOff := y * bytesPerRow
			out[rowOff+x/8] |= 0x80 >> (x % 8)
		}
	}

	return out
}

// generateLogo decodes a PNG, optionally rescales it with a
// high-quality resampler, flattens it against a black background with
// gg, quantizes it to an 8bpp palette and writes the result as a Go
// source file that registers it with the logo package.
func generateLogo(logoPath, outPath string, targetWidth, targetHeight uint32, transparentIndex uint8, setActive bool) error {
	f, err := os.Open(logoPath)
	if err != nil {
		return fmt.Errorf("opening logo: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decoding logo: %w", err)
	}

	bounds := src.Bounds()
	width, height := uint32(bounds.Dx()), uint32(bounds.Dy())
	if targetWidth == 0 {
		targetWidth = width
	}
	if targetHeight == 0 {
		targetHeight = height
	}

	scaled := image.NewRGBA(image.Rect(0, 0, int(targetWidth), int(targetHeight)))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), src, bounds, xdraw.Over, nil)

	flattened := gg.NewContext(int(targetWidth), int(targetHeight))
	flattened.SetColor(color.Black)
	flattened.DrawRectangle(0, 0, float64(targetWidth), float64(targetHeight))
	flattened.Fill()
	flattened.DrawImage(scaled, 0, 0)

	pal := append(palette.Plan9[:255:255], color.RGBA{})
	quantized := image.NewPaletted(flattened.Image().Bounds(), pal)
	stddraw.Draw(quantized, quantized.Bounds(), flattened.Image(), image.Point{}, stddraw.Src)

	rgbaPalette := make([]color.RGBA, len(pal))
	for i, c := range pal {
		r, g, b, _ := c.RGBA()
		rgbaPalette[i] = color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "// Code generated by cmd/genassets from %s. DO NOT EDIT.\n\n", logoPath)
	fmt.Fprintf(&buf, "package logo\n\n")
	fmt.Fprintf(&buf, "import \"image/color\"\n\n")
	fmt.Fprintf(&buf, "func init() {\n")
	fmt.Fprintf(&buf, "\tbuiltinLogo := &Image{\n")
	fmt.Fprintf(&buf, "\t\tWidth:            %d,\n", targetWidth)
	fmt.Fprintf(&buf, "\t\tHeight:           %d,\n", targetHeight)
	fmt.Fprintf(&buf, "\t\tAlign:            AlignCenter,\n")
	fmt.Fprintf(&buf, "\t\tTransparentIndex: %d,\n", transparentIndex)
	fmt.Fprintf(&buf, "\t\tPalette:          builtinLogoPalette,\n")
	fmt.Fprintf(&buf, "\t\tData:             builtinLogoData,\n")
	fmt.Fprintf(&buf, "\t}\n")
	fmt.Fprintf(&buf, "\tavailableLogos = append(availableLogos, builtinLogo)\n")
	if setActive {
		fmt.Fprintf(&buf, "\tConsoleLogo = builtinLogo\n")
	}
	fmt.Fprintf(&buf, "}\n\n")

	fmt.Fprintf(&buf, "var builtinLogoPalette = []color.RGBA{\n")
	for _, c := range rgbaPalette {
		fmt.Fprintf(&buf, "\t{R: %#02x, G: %#02x, B: %#02x},\n", c.R, c.G, c.B)
	}
	fmt.Fprintf(&buf, "}\n\n")

	fmt.Fprintf(&buf, "var builtinLogoData = []byte{\n")
	writeByteRows(&buf, quantized.Pix)
	fmt.Fprintf(&buf, "}\n")

	return os.WriteFile(outPath, buf.Bytes(), 0o644)
}

// writeByteRows emits data as a sequence of hex-literal rows, twelve
// values per line, matching the layout of hand-written byte tables
// elsewhere in the tree.
func writeByteRows(buf *bytes.Buffer, data []byte) {
	const perLine = 12
	for i := 0; i < len(data); i += perLine {
		end := i + perLine
		if end > len(data) {
			end = len(data)
		}
		buf.WriteByte('\t')
		for _, b := range data[i:end] {
			fmt.Fprintf(buf, "0x%02x, ", b)
		}
		buf.WriteByte('\n')
	}
}
