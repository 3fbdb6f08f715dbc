package imagecodec

import (
	"image"
	"image/color"
)

// Bgra32 is a non-premultiplied 32-bit color stored in B, G, R, A order.
type Bgra32 struct {
	B, G, R, A uint8
}

// Empty is the fully transparent black pixel.
var Empty = Bgra32{}

// RGBA implements color.Color.
func (c Bgra32) RGBA() (r, g, b, a uint32) {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}.RGBA()
}

// BGRAModel converts any color to Bgra32.
var BGRAModel = color.ModelFunc(bgraModel)

func bgraModel(c color.Color) color.Color {
	if b, ok := c.(Bgra32); ok {
		return b
	}

	n := color.NRGBAModel.Convert(c).(color.NRGBA)

	return Bgra32{B: n.B, G: n.G, R: n.R, A: n.A}
}

// BGRA is an in-memory image whose pixels are Bgra32 values. It is the
// canonical pixel buffer produced by the BMP, ICO and ANI decoders.
type BGRA struct {
	// Pix holds the pixels in B, G, R, A order. The pixel at (x, y) starts
	// at Pix[(y-Rect.Min.Y)*Stride + (x-Rect.Min.X)*4].
	Pix []uint8
	// Stride is the Pix stride (in bytes) between vertically adjacent pixels.
	Stride int
	// Rect is the image's bounds.
	Rect image.Rectangle
}

// NewBGRA returns a new BGRA image with the given bounds.
func NewBGRA(r image.Rectangle) *BGRA {
	w, h := r.Dx(), r.Dy()

	return &BGRA{
		Pix:    make([]uint8, 4*w*h),
		Stride: 4 * w,
		Rect:   r,
	}
}

func (p *BGRA) ColorModel() color.Model { return BGRAModel }

func (p *BGRA) Bounds() image.Rectangle { return p.Rect }

func (p *BGRA) At(x, y int) color.Color {
	return p.BGRAAt(x, y)
}

// BGRAAt returns the pixel at (x, y), or Empty outside the bounds.
func (p *BGRA) BGRAAt(x, y int) Bgra32 {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return Empty
	}

	i := p.PixOffset(x, y)
	s := p.Pix[i : i+4 : i+4]

	return Bgra32{B: s[0], G: s[1], R: s[2], A: s[3]}
}

// PixOffset returns the index of the first element of Pix that corresponds to the pixel at (x, y).
func (p *BGRA) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*4
}

func (p *BGRA) Set(x, y int, c color.Color) {
	p.SetBGRA(x, y, bgraModel(c).(Bgra32))
}

// SetBGRA sets the pixel at (x, y); points outside the bounds are ignored.
func (p *BGRA) SetBGRA(x, y int, c Bgra32) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}

	i := p.PixOffset(x, y)
	s := p.Pix[i : i+4 : i+4]
	s[0] = c.B
	s[1] = c.G
	s[2] = c.R
	s[3] = c.A
}

// Opaque scans the entire image and reports whether it is fully opaque.
func (p *BGRA) Opaque() bool {
	if p.Rect.Empty() {
		return true
	}

	i0, i1 := 3, p.Rect.Dx()*4
	for y := p.Rect.Min.Y; y < p.Rect.Max.Y; y++ {
		for i := i0; i < i1; i += 4 {
			if p.Pix[i] != 0xff {
				return false
			}
		}

		i0 += p.Stride
		i1 += p.Stride
	}

	return true
}

// ToBGRA returns img as a *BGRA with its origin at (0, 0). A *BGRA that
// already starts at the origin is returned as is; anything else is copied.
func ToBGRA(img image.Image) *BGRA {
	b := img.Bounds()
	if p, ok := img.(*BGRA); ok && b.Min == (image.Point{}) {
		return p
	}

	dst := NewBGRA(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			s := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			d := dst.Pix[y*dst.Stride:]
			for x := 0; x < b.Dx(); x++ {
				d[x*4+0] = s[x*4+2]
				d[x*4+1] = s[x*4+1]
				d[x*4+2] = s[x*4+0]
				d[x*4+3] = s[x*4+3]
			}
		}
	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				dst.SetBGRA(x, y, bgraModel(img.At(b.Min.X+x, b.Min.Y+y)).(Bgra32))
			}
		}
	}

	return dst
}
