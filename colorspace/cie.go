package colorspace

import "math"

// CIE constants for the L*a*b* transform.
const (
	// CIEEpsilon is the linear/cube-root threshold (216/24389 rounded).
	CIEEpsilon = 0.008856
	// CIEKappa is the slope of the linear segment (24389/27 rounded).
	CIEKappa = 903.3
)

// D65 is the reference white used for L*a*b*.
var D65 = CieXyz{X: 0.95047, Y: 1, Z: 1.08883}

// sRGB (D65) to XYZ. Rows give X, Y and Z.
var rgbToXyz = [3][3]float64{
	{0.4124, 0.3576, 0.1805},
	{0.2126, 0.7152, 0.0722},
	{0.0193, 0.1192, 0.9505},
}

// xyzToRgb is the exact inverse of rgbToXyz so round trips stay within Epsilon.
var xyzToRgb = invert3(rgbToXyz)

func invert3(m [3][3]float64) [3][3]float64 {
	a, b, c := m[0][0], m[0][1], m[0][2]
	d, e, f := m[1][0], m[1][1], m[1][2]
	g, h, i := m[2][0], m[2][1], m[2][2]

	det := a*(e*i-f*h) - b*(d*i-f*g) + c*(d*h-e*g)

	return [3][3]float64{
		{(e*i - f*h) / det, (c*h - b*i) / det, (b*f - c*e) / det},
		{(f*g - d*i) / det, (a*i - c*g) / det, (c*d - a*f) / det},
		{(d*h - e*g) / det, (b*g - a*h) / det, (a*e - b*d) / det},
	}
}

// CieXyz is a CIE 1931 XYZ color. Components are clamped to [0, 1.5].
type CieXyz struct {
	X, Y, Z float64
}

// NewCieXyz returns a clamped XYZ color.
func NewCieXyz(x, y, z float64) CieXyz {
	return CieXyz{X: clamp(x, 0, 1.5), Y: clamp(y, 0, 1.5), Z: clamp(z, 0, 1.5)}
}

// ApproxEqual reports whether c and o differ by at most Epsilon per component.
func (c CieXyz) ApproxEqual(o CieXyz) bool {
	return near(c.X, o.X) && near(c.Y, o.Y) && near(c.Z, o.Z)
}

// ToXyz applies the sRGB D65 matrix to a linear color.
func (c LinearRGB) ToXyz() CieXyz {
	m := &rgbToXyz

	return NewCieXyz(
		m[0][0]*c.R+m[0][1]*c.G+m[0][2]*c.B,
		m[1][0]*c.R+m[1][1]*c.G+m[1][2]*c.B,
		m[2][0]*c.R+m[2][1]*c.G+m[2][2]*c.B,
	)
}

// ToLinearRGB applies the inverse matrix. Out of gamut results are clamped.
func (c CieXyz) ToLinearRGB() LinearRGB {
	m := &xyzToRgb

	return NewLinearRGB(
		m[0][0]*c.X+m[0][1]*c.Y+m[0][2]*c.Z,
		m[1][0]*c.X+m[1][1]*c.Y+m[1][2]*c.Z,
		m[2][0]*c.X+m[2][1]*c.Y+m[2][2]*c.Z,
	)
}

// ToXyz converts a companded color to XYZ.
func (c RGB) ToXyz() CieXyz { return c.ToLinear().ToXyz() }

// ToRGB converts an XYZ color to companded sRGB.
func (c CieXyz) ToRGB() RGB { return c.ToLinearRGB().ToRGB() }

// CieLab is a CIE L*a*b* color relative to D65. L is clamped to [0, 100],
// a and b to [-128, 127].
type CieLab struct {
	L, A, B float64
}

// NewCieLab returns a clamped L*a*b* color.
func NewCieLab(l, a, b float64) CieLab {
	return CieLab{L: clamp(l, 0, 100), A: clamp(a, -128, 127), B: clamp(b, -128, 127)}
}

// ApproxEqual reports whether c and o differ by at most Epsilon per component.
func (c CieLab) ApproxEqual(o CieLab) bool {
	return near(c.L, o.L) && near(c.A, o.A) && near(c.B, o.B)
}

func labF(t float64) float64 {
	if t > CIEEpsilon {
		return math.Cbrt(t)
	}

	return (CIEKappa*t + 16) / 116
}

// ToLab converts c to L*a*b* using the D65 white point.
func (c CieXyz) ToLab() CieLab {
	fx := labF(c.X / D65.X)
	fy := labF(c.Y / D65.Y)
	fz := labF(c.Z / D65.Z)

	l := 116*fy - 16
	if l < 0 {
		l = 0
	}

	return NewCieLab(l, 500*(fx-fy), 200*(fy-fz))
}

// ToXyz converts c back to XYZ.
func (c CieLab) ToXyz() CieXyz {
	fy := (c.L + 16) / 116
	fx := c.A/500 + fy
	fz := fy - c.B/200

	fx3 := fx * fx * fx
	xr := fx3
	if fx3 <= CIEEpsilon {
		xr = (116*fx - 16) / CIEKappa
	}

	yr := c.L / CIEKappa
	if c.L > CIEKappa*CIEEpsilon {
		yr = fy * fy * fy
	}

	fz3 := fz * fz * fz
	zr := fz3
	if fz3 <= CIEEpsilon {
		zr = (116*fz - 16) / CIEKappa
	}

	return NewCieXyz(xr*D65.X, yr*D65.Y, zr*D65.Z)
}

// ToLab converts a companded color to L*a*b*.
func (c RGB) ToLab() CieLab { return c.ToXyz().ToLab() }

// ToRGB converts an L*a*b* color to companded sRGB.
func (c CieLab) ToRGB() RGB { return c.ToXyz().ToRGB() }
