package console

import (
	"image/color"
	"io"
	"reflect"
	"unsafe"

	"github.com/uefiboot/uefiboot/device/video/console/font"
	"github.com/uefiboot/uefiboot/device/video/console/logo"
	"github.com/uefiboot/uefiboot/firmware"
	"github.com/uefiboot/uefiboot/kernel"
	"github.com/uefiboot/uefiboot/kernel/kfmt"
)

// bytesPerPixel is fixed at 4: every GOP pixel format this console
// drives (PixelFormatRGB, PixelFormatBGR) is a packed 32-bit pixel with
// an unused high byte. There is no 8/15/16bpp VESA path to support —
// the firmware boundary never reports one (see validateGraphicsMode).
const bytesPerPixel = 4

// VesaFbConsole renders text onto the linear framebuffer the firmware
// reports through its graphics-output protocol. It is used for the
// panic path and early log lines while the bootloader still owns
// execution; the kernel gets its own copy of the mapping via
// bootinfo.FramebufferInfo and is free to replace this console
// entirely once it boots.
type VesaFbConsole struct {
	format     firmware.PixelFormat
	fbPhysAddr uintptr
	fb         []uint8

	width  uint32
	height uint32

	// offsetY is the pixel row at which text begins; rows above it are
	// reserved for the boot logo, if one is drawn.
	offsetY uint32

	// pitch is the byte length of one scanline.
	pitch uint32

	font          *font.Font
	widthInChars  uint32
	heightInChars uint32

	palette   color.Palette
	defaultFg uint8
	defaultBg uint8
}

// NewVesaFbConsole constructs a console over the framebuffer described
// by mode. mode.Format must be PixelFormatRGB or PixelFormatBGR;
// callers are expected to have rejected anything else already (see
// lifecycle.validateGraphicsMode).
func NewVesaFbConsole(mode firmware.GraphicsMode) *VesaFbConsole {
	return &VesaFbConsole{
		format:     mode.Format,
		fbPhysAddr: uintptr(mode.FrameBufferBase),
		width:      mode.Width,
		height:     mode.Height,
		pitch:      mode.PixelsPerScanLine * bytesPerPixel,
		// light gray text on black background
		defaultFg: 7,
		defaultBg: 0,
	}
}

// SetFont selects a bitmap font to be used by the console.
func (cons *VesaFbConsole) SetFont(f *font.Font) {
	if f == nil {
		return
	}

	cons.font = f
	cons.widthInChars = cons.width / uint32(f.GlyphWidth)
	cons.heightInChars = (cons.height - cons.offsetY) / uint32(f.GlyphHeight)
}

// SetLogo blits img at the top of the framebuffer and reserves the
// rows it occupies from the text grid, remapping img's palette onto
// the unused tail of the console's own 256-color palette as logo.Image
// documents. Must be called before SetFont so heightInChars accounts
// for the reserved rows.
func (cons *VesaFbConsole) SetLogo(img *logo.Image) {
	if img == nil || cons.fb == nil {
		return
	}

	remapBase := uint8(256 - len(img.Palette))
	for i, c := range img.Palette {
		cons.SetPaletteColor(remapBase+uint8(i), c)
	}

	var startX uint32
	switch img.Align {
	case logo.AlignCenter:
		startX = (cons.width - img.Width) / 2
	case logo.AlignRight:
		startX = cons.width - img.Width
	}

	for y := uint32(0); y < img.Height; y++ {
		rowOffset := cons.fbOffset(startX, y)
		for x := uint32(0); x < img.Width; x, rowOffset = x+1, rowOffset+bytesPerPixel {
			idx := img.Data[y*img.Width+x]
			if idx == img.TransparentIndex {
				continue
			}
			comp := cons.packColor(remapBase + idx)
			cons.fb[rowOffset] = comp[0]
			cons.fb[rowOffset+1] = comp[1]
			cons.fb[rowOffset+2] = comp[2]
		}
	}

	cons.offsetY = img.Height
}

// Dimensions returns the console width and height in the specified dimension.
func (cons *VesaFbConsole) Dimensions(dim Dimension) (uint32, uint32) {
	switch dim {
	case Characters:
		return cons.widthInChars, cons.heightInChars
	default:
		return cons.width, cons.height
	}
}

// DefaultColors returns the default foreground and background colors
// used by this console.
func (cons *VesaFbConsole) DefaultColors() (fg uint8, bg uint8) {
	return cons.defaultFg, cons.defaultBg
}

// Fill sets the contents of the specified rectangular region to the requested
// color. Both x and y coordinates are 1-based.
func (cons *VesaFbConsole) Fill(x, y, width, height uint32, _, bg uint8) {
	if cons.font == nil {
		return
	}

	// clip rectangle
	if x == 0 {
		x = 1
	} else if x >= cons.widthInChars {
		x = cons.widthInChars
	}

	if y == 0 {
		y = 1
	} else if y >= cons.heightInChars {
		y = cons.heightInChars
	}

	if x+width-1 > cons.widthInChars {
		width = cons.widthInChars - x + 1
	}

	if y+height-1 > cons.heightInChars {
		height = cons.heightInChars - y + 1
	}

	pX := (x - 1) * cons.font.GlyphWidth
	pY := (y - 1) * cons.font.GlyphHeight
	pW := width * cons.font.GlyphWidth
	pH := height * cons.font.GlyphHeight

	comp := cons.packColor(bg)
	fbRowOffset := cons.fbOffset(pX, pY)
	for ; pH > 0; pH, fbRowOffset = pH-1, fbRowOffset+cons.pitch {
		for fbOffset := fbRowOffset; fbOffset < fbRowOffset+pW*bytesPerPixel; fbOffset += bytesPerPixel {
			cons.fb[fbOffset] = comp[0]
			cons.fb[fbOffset+1] = comp[1]
			cons.fb[fbOffset+2] = comp[2]
		}
	}
}

// Scroll the console contents to the specified direction. The caller
// is responsible for updating (e.g. clear or replace) the contents of
// the region that was scrolled.
func (cons *VesaFbConsole) Scroll(dir ScrollDir, lines uint32) {
	if cons.font == nil || lines == 0 || lines > cons.heightInChars {
		return
	}

	offset := cons.fbOffset(0, lines*cons.font.GlyphHeight-cons.offsetY)

	switch dir {
	case ScrollDirUp:
		startOffset := cons.fbOffset(0, 0)
		endOffset := cons.fbOffset(0, cons.height-lines*cons.font.GlyphHeight-cons.offsetY)
		for i := startOffset; i < endOffset; i++ {
			cons.fb[i] = cons.fb[i+offset]
		}
	case ScrollDirDown:
		startOffset := cons.fbOffset(0, lines*cons.font.GlyphHeight)
		for i := uint32(len(cons.fb) - 1); i >= startOffset; i-- {
			cons.fb[i] = cons.fb[i-offset]
		}
	}
}

// Write a char to the specified location. If fg or bg exceed the supported
// colors for this console, they will be set to their default value. Both x and
// y coordinates are 1-based
func (cons *VesaFbConsole) Write(ch byte, fg, bg uint8, x, y uint32) {
	if x < 1 || x > cons.widthInChars || y < 1 || y > cons.heightInChars || cons.font == nil {
		return
	}

	pX := (x - 1) * cons.font.GlyphWidth
	pY := (y - 1) * cons.font.GlyphHeight

	var (
		fontOffset  = uint32(ch) * cons.font.BytesPerRow * cons.font.GlyphHeight
		fbRowOffset = cons.fbOffset(pX, pY)
		fbOffset    uint32
		gx, gy      uint32
		mask        uint8
		fgComp      = cons.packColor(fg)
		bgComp      = cons.packColor(bg)
	)

	for gy = 0; gy < cons.font.GlyphHeight; gy, fbRowOffset, fontOffset = gy+1, fbRowOffset+cons.pitch, fontOffset+1 {
		fbOffset = fbRowOffset
		fontRowData := cons.font.Data[fontOffset]
		mask = 1 << 7
		for gx = 0; gx < cons.font.GlyphWidth; gx, fbOffset, mask = gx+1, fbOffset+bytesPerPixel, mask>>1 {
			// If mask becomes zero while we are still in this loop
			// then the font uses > 1 byte per row. We need to
			// fetch the next byte and reset the mask.
			if mask == 0 {
				fontOffset++
				fontRowData = cons.font.Data[fontOffset]
				mask = 1 << 7
			}

			comp := bgComp
			if (fontRowData & mask) != 0 {
				comp = fgComp
			}
			cons.fb[fbOffset] = comp[0]
			cons.fb[fbOffset+1] = comp[1]
			cons.fb[fbOffset+2] = comp[2]
		}
	}
}

// fbOffset returns the linear offset into the framebuffer that corresponds to
// the pixel at (x,y) of the text area, whose row 0 is offsetY pixel rows
// below the top of the framebuffer (just below any logo).
func (cons *VesaFbConsole) fbOffset(x, y uint32) uint32 {
	return ((y + cons.offsetY) * cons.pitch) + (x * bytesPerPixel)
}

// packColor encodes a palette color into the firmware's reported byte
// order. PixelFormatRGB lays out (R,G,B,_) per pixel; PixelFormatBGR
// lays out (B,G,R,_). There is no mask/shift negotiation to do beyond
// that — unlike VESA's arbitrary bitmask modes, GOP's two supported
// formats are always 8 bits per channel at a fixed byte position.
func (cons *VesaFbConsole) packColor(colorIndex uint8) [3]uint8 {
	c := cons.palette[colorIndex].(color.RGBA)
	if cons.format == firmware.PixelFormatBGR {
		return [3]uint8{c.B, c.G, c.R}
	}
	return [3]uint8{c.R, c.G, c.B}
}

// Palette returns the active color palette for this console.
func (cons *VesaFbConsole) Palette() color.Palette {
	return cons.palette
}

// SetPaletteColor updates the color definition for the specified
// palette index. Passing a color index greated than the number of
// supported colors should be a no-op.
func (cons *VesaFbConsole) SetPaletteColor(index uint8, rgba color.RGBA) {
	oldColor := cons.palette[index]

	if oldColor != nil && oldColor.(color.RGBA) == rgba {
		return
	}

	cons.palette[index] = rgba

	if oldColor == nil || cons.fb == nil {
		return
	}

	old := oldColor.(color.RGBA)
	srcComp := [3]uint8{old.R, old.G, old.B}
	if cons.format == firmware.PixelFormatBGR {
		srcComp = [3]uint8{old.B, old.G, old.R}
	}
	dstComp := cons.packColor(index)
	for fbOffset := uint32(0); fbOffset < uint32(len(cons.fb)); fbOffset += bytesPerPixel {
		if cons.fb[fbOffset] == srcComp[0] &&
			cons.fb[fbOffset+1] == srcComp[1] &&
			cons.fb[fbOffset+2] == srcComp[2] {
			cons.fb[fbOffset] = dstComp[0]
			cons.fb[fbOffset+1] = dstComp[1]
			cons.fb[fbOffset+2] = dstComp[2]
		}
	}
}

// loadDefaultPalette is called during driver initialization to setup the
// console palette. Regardless of the framebuffer depth, the console always
// uses a 256-color palette.
func (cons *VesaFbConsole) loadDefaultPalette() {
	cons.palette = make(color.Palette, 256)

	egaPalette := []color.RGBA{
		{R: 0, G: 0, B: 0},       /* black */
		{R: 0, G: 0, B: 128},     /* blue */
		{R: 0, G: 128, B: 1},     /* green */
		{R: 0, G: 128, B: 128},   /* cyan */
		{R: 128, G: 0, B: 1},     /* red */
		{R: 128, G: 0, B: 128},   /* magenta */
		{R: 64, G: 64, B: 1},     /* brown */
		{R: 128, G: 128, B: 128}, /* light gray */
		{R: 64, G: 64, B: 64},    /* dark gray */
		{R: 0, G: 0, B: 255},     /* light blue */
		{R: 0, G: 255, B: 1},     /* light green */
		{R: 0, G: 255, B: 255},   /* light cyan */
		{R: 255, G: 0, B: 1},     /* light red */
		{R: 255, G: 0, B: 255},   /* light magenta */
		{R: 255, G: 255, B: 1},   /* yellow */
		{R: 255, G: 255, B: 255}, /* white */
	}

	// Load default EGA palette for colors 0-15
	var index int
	for ; index < len(egaPalette); index++ {
		cons.SetPaletteColor(uint8(index), egaPalette[index])
	}

	// Set all other colors to black
	for ; index < len(cons.palette); index++ {
		cons.SetPaletteColor(uint8(index), egaPalette[0])
	}
}

// DriverName returns the name of this driver.
func (cons *VesaFbConsole) DriverName() string {
	return "gop_fb_console"
}

// DriverVersion returns the version of this driver.
func (cons *VesaFbConsole) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit initializes this driver. The framebuffer is identity
// mapped by the firmware for as long as boot services remain active,
// so this reads cons.fbPhysAddr directly rather than going through a
// vmm.Mapper — the one the lifecycle controller builds for the kernel
// is a different, later concern (bootinfo.FramebufferInfo).
func (cons *VesaFbConsole) DriverInit(w io.Writer) *kernel.Error {
	fbSize := int(cons.pitch) * int(cons.height)
	cons.fb = *(*[]uint8)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  fbSize,
		Cap:  fbSize,
		Data: cons.fbPhysAddr,
	}))

	kfmt.Fprintf(w, "framebuffer console at 0x%x (%dx%d)\n", cons.fbPhysAddr, cons.width, cons.height)

	cons.loadDefaultPalette()

	return nil
}
