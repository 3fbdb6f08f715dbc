package colorspace

// YCbCr is a full-range ITU-R BT.601 color with components in [0, 255].
type YCbCr struct {
	Y, Cb, Cr float64
}

// NewYCbCr returns a clamped YCbCr color.
func NewYCbCr(y, cb, cr float64) YCbCr {
	return YCbCr{Y: clamp(y, 0, 255), Cb: clamp(cb, 0, 255), Cr: clamp(cr, 0, 255)}
}

// ApproxEqual reports whether c and o differ by at most Epsilon per component.
func (c YCbCr) ApproxEqual(o YCbCr) bool {
	return near(c.Y, o.Y) && near(c.Cb, o.Cb) && near(c.Cr, o.Cr)
}

// ToYCbCr converts a companded color.
func (c RGB) ToYCbCr() YCbCr {
	r, g, b := c.R*255, c.G*255, c.B*255

	return NewYCbCr(
		0.299*r+0.587*g+0.114*b,
		128-0.168736*r-0.331264*g+0.5*b,
		128+0.5*r-0.418688*g-0.081312*b,
	)
}

// ToRGB converts c back to companded sRGB.
func (c YCbCr) ToRGB() RGB {
	cb := c.Cb - 128
	cr := c.Cr - 128

	return NewRGB(
		(c.Y+1.402*cr)/255,
		(c.Y-0.344136*cb-0.714136*cr)/255,
		(c.Y+1.772*cb)/255,
	)
}

// Cmyk is a subtractive color with components in [0, 1].
type Cmyk struct {
	C, M, Y, K float64
}

// NewCmyk returns a clamped CMYK color.
func NewCmyk(c, m, y, k float64) Cmyk {
	return Cmyk{C: clamp(c, 0, 1), M: clamp(m, 0, 1), Y: clamp(y, 0, 1), K: clamp(k, 0, 1)}
}

// ApproxEqual reports whether c and o differ by at most Epsilon per component.
func (c Cmyk) ApproxEqual(o Cmyk) bool {
	return near(c.C, o.C) && near(c.M, o.M) && near(c.Y, o.Y) && near(c.K, o.K)
}

// ToCmyk converts a companded color. Colors with k within Epsilon of 1 are
// returned as pure black.
func (c RGB) ToCmyk() Cmyk {
	cc, m, y := 1-c.R, 1-c.G, 1-c.B
	k := min(cc, m, y)

	if near(k, 1) {
		return Cmyk{K: 1}
	}

	s := 1 - k

	return NewCmyk((cc-k)/s, (m-k)/s, (y-k)/s, k)
}

// ToRGB converts c back to companded sRGB.
func (c Cmyk) ToRGB() RGB {
	s := 1 - c.K

	return NewRGB((1-c.C)*s, (1-c.M)*s, (1-c.Y)*s)
}
