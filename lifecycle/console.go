package lifecycle

import (
	"github.com/uefiboot/uefiboot/device/tty"
	"github.com/uefiboot/uefiboot/device/video/console"
	"github.com/uefiboot/uefiboot/device/video/console/font"
	"github.com/uefiboot/uefiboot/device/video/console/logo"
	"github.com/uefiboot/uefiboot/firmware"
	"github.com/uefiboot/uefiboot/kernel/kfmt"
)

// attachConsole builds a framebuffer console for mode, attaches the
// best-fit builtin logo and font for its resolution, and wires it up
// as kfmt's output sink through a VT100-style terminal. This is the
// single-console equivalent of the teacher's hal.go
// onConsoleInit/linkTTYToConsole flow: with the UEFI GOP framebuffer
// as the only possible console source, there is no multi-driver
// priority arbitration left to do.
//
// Failures here are non-fatal: RunBoot continues with kfmt's ring
// buffer sink if no console can be attached.
func attachConsole(mode firmware.GraphicsMode) {
	cons := console.NewVesaFbConsole(mode)
	if err := cons.DriverInit(nil); err != nil {
		return
	}

	consW, consH := cons.Dimensions(console.Pixels)
	cons.SetLogo(logo.BestFit(consW, consH))
	cons.SetFont(font.BestFit(consW, consH))
	if cols, rows := cons.Dimensions(console.Characters); cols == 0 || rows == 0 {
		return
	}

	vt := tty.NewVT(tty.DefaultTabWidth, tty.DefaultScrollback)
	vt.AttachTo(cons)
	vt.SetState(tty.StateActive)
	kfmt.SetOutputSink(vt)
}
