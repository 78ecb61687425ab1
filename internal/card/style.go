package card

import "image/color"

// Palette
var (
	ColorBlack      = color.NRGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff}
	ColorText       = color.NRGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}
	ColorTextDim    = color.NRGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xed}
	ColorAddress    = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	ColorAvatarSlot = color.NRGBA{R: 0x1a, G: 0x1a, B: 0x1a, A: 0xff}
	IgnitionStart   = color.NRGBA{R: 0xff, G: 0x3a, B: 0x33, A: 0xff}
	IgnitionEnd     = color.NRGBA{R: 0xff, G: 0xe5, B: 0x00, A: 0xff}
)

// GlowRadius is the spread of the high-volume glow in layout units
const GlowRadius = 20

// Gradient is a top-to-bottom linear color ramp. From == To means a flat fill.
type Gradient struct {
	From color.NRGBA
	To   color.NRGBA
}

// Flat reports whether the gradient is a single color
func (g Gradient) Flat() bool {
	return g.From == g.To
}

// Glow is a soft halo around the frame; a zero Radius disables it
type Glow struct {
	Color  color.NRGBA
	Radius float64
}

// Enabled reports whether the glow is drawn
func (g Glow) Enabled() bool {
	return g.Radius > 0
}

// Style is the visual treatment selected by the volume variant.
// Its three effects are always derived together.
type Style struct {
	Frame      Gradient
	VolumeFill Gradient
	Glow       Glow
}

func styleFor(highVolume bool) Style {
	if highVolume {
		return Style{
			Frame:      Gradient{From: IgnitionStart, To: IgnitionEnd},
			VolumeFill: Gradient{From: IgnitionStart, To: IgnitionEnd},
			Glow:       Glow{Color: IgnitionStart, Radius: GlowRadius},
		}
	}

	return Style{
		Frame:      Gradient{From: ColorBlack, To: ColorText},
		VolumeFill: Gradient{From: ColorText, To: ColorText},
	}
}
