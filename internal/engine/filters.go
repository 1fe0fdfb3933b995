package engine

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// filterFuncs holds the preset color filters, keyed by the wire filter name.
// The presets reproduce the channel offsets of the photon reference filters.
var filterFuncs = map[string]func(image.Image) image.Image{
	"oceanic": channelOffset(0, 89, 173),
	"islands": channelOffset(0, 24, 95),
	"marine":  channelOffset(0, 14, 119),
}

// channelOffset builds a filter that adds fixed offsets to the green and blue
// channels, clamping at 255.
func channelOffset(r, g, b uint16) func(image.Image) image.Image {
	return func(img image.Image) image.Image {
		return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			return color.NRGBA{
				R: clampAdd(c.R, r),
				G: clampAdd(c.G, g),
				B: clampAdd(c.B, b),
				A: c.A,
			}
		})
	}
}

func clampAdd(v uint8, d uint16) uint8 {
	sum := uint16(v) + d
	if sum > 255 {
		return 255
	}
	return uint8(sum)
}
