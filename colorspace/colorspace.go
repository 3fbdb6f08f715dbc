// Package colorspace converts colors between companded sRGB, linear RGB,
// CIE XYZ, CIE L*a*b*, YCbCr and CMYK.
//
// Every type clamps its components to a documented range at construction.
// Round trips go through floating point, so comparisons must use
// ApproxEqual rather than ==.
package colorspace

import (
	"math"

	"github.com/gen2brain/imagecodec"
)

// Epsilon is the tolerance used by every ApproxEqual method.
const Epsilon = 0.001

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= Epsilon
}

// RGB is a companded sRGB color with components in [0, 1].
type RGB struct {
	R, G, B float64
}

// NewRGB returns a clamped RGB color.
func NewRGB(r, g, b float64) RGB {
	return RGB{R: clamp(r, 0, 1), G: clamp(g, 0, 1), B: clamp(b, 0, 1)}
}

// ApproxEqual reports whether c and o differ by at most Epsilon per component.
func (c RGB) ApproxEqual(o RGB) bool {
	return near(c.R, o.R) && near(c.G, o.G) && near(c.B, o.B)
}

// FromBgra32 returns the color part of p. Alpha is discarded.
func FromBgra32(p imagecodec.Bgra32) RGB {
	return RGB{R: float64(p.R) / 255, G: float64(p.G) / 255, B: float64(p.B) / 255}
}

// Bgra32 packs c with the given alpha, rounding to the nearest byte.
func (c RGB) Bgra32(alpha uint8) imagecodec.Bgra32 {
	return imagecodec.Bgra32{B: to8(c.B), G: to8(c.G), R: to8(c.R), A: alpha}
}

func to8(v float64) uint8 {
	return uint8(clamp(v*255+0.5, 0, 255))
}

// LinearRGB is an sRGB color with the transfer curve removed, components in [0, 1].
type LinearRGB struct {
	R, G, B float64
}

// NewLinearRGB returns a clamped linear RGB color.
func NewLinearRGB(r, g, b float64) LinearRGB {
	return LinearRGB{R: clamp(r, 0, 1), G: clamp(g, 0, 1), B: clamp(b, 0, 1)}
}

// ApproxEqual reports whether c and o differ by at most Epsilon per component.
func (c LinearRGB) ApproxEqual(o LinearRGB) bool {
	return near(c.R, o.R) && near(c.G, o.G) && near(c.B, o.B)
}

// Expand removes the sRGB transfer curve from a single component.
func Expand(v float64) float64 {
	if v <= 0.04045 {
		return v / 12.92
	}

	return math.Pow((v+0.055)/1.055, 2.4)
}

// Compress applies the sRGB transfer curve to a single linear component.
func Compress(v float64) float64 {
	if v <= 0.0031308 {
		return v * 12.92
	}

	return 1.055*math.Pow(v, 1/2.4) - 0.055
}

// ToLinear expands c.
func (c RGB) ToLinear() LinearRGB {
	return NewLinearRGB(Expand(c.R), Expand(c.G), Expand(c.B))
}

// ToRGB compands c.
func (c LinearRGB) ToRGB() RGB {
	return NewRGB(Compress(c.R), Compress(c.G), Compress(c.B))
}
