// Package tiff implements a decoder and encoder for baseline TIFF images
// with the common compression extensions.
//
// The decoder reads the first image file directory. Images stored in strips
// are supported, tiled and planar images are not. Images with 16 bits per
// sample decode to *image.NRGBA64, all others to *imagecodec.BGRA.
package tiff

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/gen2brain/imagecodec"
	"github.com/gen2brain/imagecodec/bitio"
	"github.com/gen2brain/imagecodec/colorspace"
	"github.com/gen2brain/imagecodec/internal/binio"
	"github.com/gen2brain/imagecodec/internal/parallel"
)

// Options specifies decoding parameters.
type Options struct {
	// Limits bounds the accepted canvas. The zero value uses imagecodec.DefaultMaxDimension.
	imagecodec.Limits
}

// Info describes the first image of a TIFF file.
type Info struct {
	ByteOrder       binary.ByteOrder
	Width, Height   int
	BitsPerSample   int
	SamplesPerPixel int
	Photometric     int
	Compression     int
	Predictor       int
	RowsPerStrip    int
	XResolution     float64
	YResolution     float64
	Software        string
}

type decoder struct {
	data  []byte
	ifd   *ifd
	order binary.ByteOrder

	width, height int
	bps, spp      int
	rowBytes      int
	rowsPerStrip  int

	photometric uint
	compression uint
	predictor   uint
	fillOrder   uint
	alpha       uint // ExtraSamples value of the alpha channel, if any.
	hasAlpha    bool

	palette []imagecodec.Bgra32
}

func limitsOf(opts []*Options) imagecodec.Limits {
	if len(opts) > 0 && opts[0] != nil {
		return opts[0].Limits
	}

	return imagecodec.Limits{}
}

func readIFD(data []byte) (*ifd, error) {
	r, offset, err := newIFDReader(data)
	if err != nil {
		return nil, err
	}

	fields, err := r.parseIFD(offset)
	if err != nil {
		return nil, err
	}

	return &ifd{fields: fields, order: r.order}, nil
}

// newDecoder parses the first IFD and validates everything needed to decode
// its pixels. It does not allocate the image.
func newDecoder(data []byte) (*decoder, error) {
	dir, err := readIFD(data)
	if err != nil {
		return nil, err
	}

	d := &decoder{
		data:         data,
		ifd:          dir,
		order:        dir.order,
		width:        toInt(dir.firstVal(tImageWidth, 0)),
		height:       toInt(dir.firstVal(tImageLength, 0)),
		spp:          toInt(dir.firstVal(tSamplesPerPixel, 1)),
		compression:  dir.firstVal(tCompression, cNone),
		predictor:    dir.firstVal(tPredictor, prNone),
		fillOrder:    dir.firstVal(tFillOrder, 1),
		rowsPerStrip: toInt(dir.firstVal(tRowsPerStrip, 0)),
	}

	if !dir.has(tPhotometricInterpretation) {
		return nil, imagecodec.FormatError("tiff: missing PhotometricInterpretation")
	}
	d.photometric = dir.firstVal(tPhotometricInterpretation, 0)

	bps := dir.vals(tBitsPerSample)
	if len(bps) == 0 {
		bps = []uint{1}
	}

	d.bps = toInt(bps[0])
	if d.bps < 1 {
		return nil, imagecodec.FormatError("tiff: %d bits per sample", d.bps)
	}

	for _, b := range bps[1:] {
		if b != bps[0] {
			return nil, imagecodec.UnsupportedError("tiff: mixed BitsPerSample %v", bps)
		}
	}

	if dir.has(tTileWidth) || dir.has(tTileOffsets) {
		return nil, imagecodec.UnsupportedError("tiff: tiled images")
	}

	if dir.firstVal(tPlanarConfiguration, 1) != 1 {
		return nil, imagecodec.UnsupportedError("tiff: planar configuration %d", dir.firstVal(tPlanarConfiguration, 1))
	}

	if f := dir.firstVal(tSampleFormat, 1); f != 1 {
		return nil, imagecodec.UnsupportedError("tiff: sample format %d", f)
	}

	if d.fillOrder != 1 && d.fillOrder != 2 {
		return nil, imagecodec.FormatError("tiff: fill order %d", d.fillOrder)
	}

	switch d.compression {
	case cNone, cLZW, cPackBits, cDeflate, cDeflateOld, cZstd, cG3, cG4:
	default:
		return nil, imagecodec.UnsupportedError("tiff: compression %d", d.compression)
	}

	if d.predictor != prNone && (d.predictor != prHorizontal || d.bps < 8) {
		return nil, imagecodec.UnsupportedError("tiff: predictor %d with %d bits per sample", d.predictor, d.bps)
	}

	if err := d.checkLayout(); err != nil {
		return nil, err
	}

	if d.width <= 0 || d.height <= 0 {
		return nil, imagecodec.FormatError("tiff: invalid dimensions %dx%d", d.width, d.height)
	}

	d.rowBytes = (d.width*d.spp*d.bps + 7) / 8
	if d.rowsPerStrip <= 0 || d.rowsPerStrip > d.height {
		d.rowsPerStrip = d.height
	}

	return d, nil
}

// checkLayout validates the photometric interpretation against the sample
// layout and loads the color map.
func (d *decoder) checkLayout() error {
	colors := 0
	switch d.photometric {
	case pWhiteIsZero, pBlackIsZero:
		colors = 1
		switch d.bps {
		case 1, 2, 4:
			if d.spp != 1 {
				return imagecodec.UnsupportedError("tiff: %d-bit gray with %d samples", d.bps, d.spp)
			}
		case 8, 16:
		default:
			return imagecodec.UnsupportedError("tiff: %d-bit gray", d.bps)
		}
	case pRGB:
		colors = 3
		if d.bps != 8 && d.bps != 16 {
			return imagecodec.UnsupportedError("tiff: %d-bit RGB", d.bps)
		}
	case pPaletted:
		colors = 1
		if d.spp != 1 || d.bps > 8 || d.bps&(d.bps-1) != 0 {
			return imagecodec.UnsupportedError("tiff: %d-bit paletted with %d samples", d.bps, d.spp)
		}

		if err := d.loadPalette(); err != nil {
			return err
		}
	case pCMYK:
		colors = 4
		if d.bps != 8 {
			return imagecodec.UnsupportedError("tiff: %d-bit CMYK", d.bps)
		}

		if ink := d.ifd.firstVal(tInkSet, 1); ink != 1 {
			return imagecodec.UnsupportedError("tiff: ink set %d", ink)
		}
	case pYCbCr:
		colors = 3
		if d.bps != 8 {
			return imagecodec.UnsupportedError("tiff: %d-bit YCbCr", d.bps)
		}

		sub := d.ifd.vals(tYCbCrSubSampling)
		if len(sub) != 2 || sub[0] != 1 || sub[1] != 1 {
			return imagecodec.UnsupportedError("tiff: YCbCr subsampling %v", sub)
		}
	case pCIELab:
		colors = 3
		if d.bps != 8 {
			return imagecodec.UnsupportedError("tiff: %d-bit CIELab", d.bps)
		}
	default:
		return imagecodec.UnsupportedError("tiff: photometric interpretation %d", d.photometric)
	}

	switch d.spp - colors {
	case 0:
	case 1:
		if d.photometric == pPaletted || d.photometric == pCMYK {
			return imagecodec.UnsupportedError("tiff: extra sample with photometric %d", d.photometric)
		}

		d.hasAlpha = true
		d.alpha = d.ifd.firstVal(tExtraSamples, esUnspecified)
	default:
		return imagecodec.UnsupportedError("tiff: %d samples for photometric %d", d.spp, d.photometric)
	}

	if (d.compression == cG3 || d.compression == cG4) && (d.bps != 1 || d.spp != 1 || colors != 1 || d.photometric == pPaletted) {
		return imagecodec.FormatError("tiff: CCITT compression needs bilevel gray")
	}

	return nil
}

func (d *decoder) loadPalette() error {
	cmap := d.ifd.vals(tColorMap)
	n := 1 << d.bps
	if len(cmap) != 3*n {
		return imagecodec.FormatError("tiff: color map has %d values, want %d", len(cmap), 3*n)
	}

	d.palette = make([]imagecodec.Bgra32, n)
	for i := range d.palette {
		d.palette[i] = imagecodec.Bgra32{
			R: uint8(cmap[i] >> 8),
			G: uint8(cmap[i+n] >> 8),
			B: uint8(cmap[i+2*n] >> 8),
			A: 255,
		}
	}

	return nil
}

// strips returns the compressed strips in image order.
func (d *decoder) strips() ([]strip, error) {
	offsets := d.ifd.vals(tStripOffsets)
	counts := d.ifd.vals(tStripByteCounts)

	n := (d.height + d.rowsPerStrip - 1) / d.rowsPerStrip
	if len(offsets) < n {
		return nil, imagecodec.FormatError("tiff: %d strip offsets for %d strips", len(offsets), n)
	}

	if len(counts) < n {
		// A single uncompressed strip may omit its byte count.
		if n != 1 || d.compression != cNone {
			return nil, imagecodec.FormatError("tiff: %d strip byte counts for %d strips", len(counts), n)
		}

		counts = []uint{uint(d.rowBytes * d.height)}
	}

	out := make([]strip, n)
	for i := range out {
		off, cnt := offsets[i], counts[i]
		if off > uint(len(d.data)) || cnt > uint(len(d.data))-off {
			return nil, imagecodec.OutOfData(fmt.Sprintf("tiff strip %d at offset %d", i, off), nil)
		}

		out[i] = strip{
			raw:  d.data[off : off+cnt],
			rows: min(d.rowsPerStrip, d.height-i*d.rowsPerStrip),
		}
	}

	return out, nil
}

// Decode reads a TIFF image from r. 16-bit images are returned as
// *image.NRGBA64, all others as *imagecodec.BGRA.
func Decode(r io.Reader, opts ...*Options) (image.Image, error) {
	data, err := binio.ReadAll(r)
	if err != nil {
		return nil, err
	}

	d, err := newDecoder(data)
	if err != nil {
		return nil, err
	}

	if err := limitsOf(opts).Check(d.width, d.height); err != nil {
		return nil, err
	}

	strips, err := d.strips()
	if err != nil {
		return nil, err
	}

	var (
		img  image.Image
		emit func(y int, row []byte)
	)

	rect := image.Rect(0, 0, d.width, d.height)
	if d.bps == 16 {
		m := image.NewNRGBA64(rect)
		img = m
		emit = func(y int, row []byte) { d.row16(m.Pix[y*m.Stride:y*m.Stride+d.width*8], row) }
	} else {
		m := imagecodec.NewBGRA(rect)
		img = m
		emit = func(y int, row []byte) { d.row8(m.Pix[y*m.Stride:y*m.Stride+d.width*4], row) }
	}

	err = parallel.RowsErr(len(strips), func(s0, s1 int) error {
		var buf []byte
		for i := s0; i < s1; i++ {
			s := strips[i]

			size := s.rows * d.rowBytes
			if cap(buf) < size {
				buf = make([]byte, size)
			}
			buf = buf[:size]
			clear(buf)

			if err := d.decompress(buf, s); err != nil {
				return fmt.Errorf("tiff: strip %d: %w", i, err)
			}

			y0 := i * d.rowsPerStrip
			for y := 0; y < s.rows; y++ {
				emit(y0+y, buf[y*d.rowBytes:(y+1)*d.rowBytes])
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return img, nil
}

// unpremultiply converts an associated-alpha sample in [0, max] to straight alpha.
func unpremultiply(v, a, maxVal uint32) uint32 {
	if a == 0 {
		return 0
	}

	return min((v*maxVal+a/2)/a, maxVal)
}

// row8 converts one row of 1, 2, 4 or 8-bit samples into B, G, R, A quads.
func (d *decoder) row8(dst, src []byte) {
	w := d.width
	assoc := d.hasAlpha && d.alpha == esAssociated

	switch d.photometric {
	case pWhiteIsZero, pBlackIsZero:
		if d.bps < 8 {
			maxVal := uint32(1)<<d.bps - 1
			br := bitio.NewReader(src)
			for x := 0; x < w; x++ {
				v, err := br.ReadBits(d.bps)
				if err != nil {
					return
				}

				if d.photometric == pWhiteIsZero {
					v = maxVal - v
				}

				g := uint8(v * 255 / maxVal)
				dst[x*4+0], dst[x*4+1], dst[x*4+2], dst[x*4+3] = g, g, g, 255
			}

			return
		}

		for x := 0; x < w; x++ {
			g, a := uint32(src[x*d.spp]), uint32(255)
			if d.hasAlpha {
				a = uint32(src[x*d.spp+1])
			}

			if d.photometric == pWhiteIsZero {
				g = 255 - g
			}

			if assoc {
				g = unpremultiply(g, a, 255)
			}

			dst[x*4+0], dst[x*4+1], dst[x*4+2], dst[x*4+3] = uint8(g), uint8(g), uint8(g), uint8(a)
		}
	case pRGB:
		for x := 0; x < w; x++ {
			s := src[x*d.spp:]
			r, g, b, a := uint32(s[0]), uint32(s[1]), uint32(s[2]), uint32(255)
			if d.hasAlpha {
				a = uint32(s[3])
			}

			if assoc {
				r, g, b = unpremultiply(r, a, 255), unpremultiply(g, a, 255), unpremultiply(b, a, 255)
			}

			dst[x*4+0], dst[x*4+1], dst[x*4+2], dst[x*4+3] = uint8(b), uint8(g), uint8(r), uint8(a)
		}
	case pPaletted:
		br := bitio.NewReader(src)
		for x := 0; x < w; x++ {
			idx, err := br.ReadBits(d.bps)
			if err != nil {
				return
			}

			p := d.palette[idx]
			dst[x*4+0], dst[x*4+1], dst[x*4+2], dst[x*4+3] = p.B, p.G, p.R, p.A
		}
	case pCMYK:
		colorspace.CmykToBGRA(dst, src[:w*4])
	case pYCbCr:
		if !d.hasAlpha {
			colorspace.YCbCrToBGRA(dst, src[:w*3])

			return
		}

		var ycc [3]byte
		for x := 0; x < w; x++ {
			copy(ycc[:], src[x*4:x*4+3])
			colorspace.YCbCrToBGRA(dst[x*4:x*4+4], ycc[:])
			dst[x*4+3] = src[x*4+3]
		}
	case pCIELab:
		for x := 0; x < w; x++ {
			s := src[x*d.spp:]
			l := float64(s[0]) * 100 / 255
			a := float64(int8(s[1]))
			b := float64(int8(s[2]))

			alpha := uint8(255)
			if d.hasAlpha {
				alpha = s[3]
			}

			p := colorspace.NewCieLab(l, a, b).ToRGB().Bgra32(alpha)
			dst[x*4+0], dst[x*4+1], dst[x*4+2], dst[x*4+3] = p.B, p.G, p.R, p.A
		}
	}
}

// row16 converts one row of 16-bit gray or RGB samples into big-endian
// R, G, B, A words.
func (d *decoder) row16(dst, src []byte) {
	assoc := d.hasAlpha && d.alpha == esAssociated
	sample := func(x, c int) uint32 {
		return uint32(d.order.Uint16(src[(x*d.spp+c)*2:]))
	}

	for x := 0; x < d.width; x++ {
		var r, g, b uint32
		a := uint32(0xffff)

		switch d.photometric {
		case pRGB:
			r, g, b = sample(x, 0), sample(x, 1), sample(x, 2)
			if d.hasAlpha {
				a = sample(x, 3)
			}
		default:
			r = sample(x, 0)
			if d.photometric == pWhiteIsZero {
				r = 0xffff - r
			}

			if d.hasAlpha {
				a = sample(x, 1)
			}

			g, b = r, r
		}

		if assoc {
			r, g, b = unpremultiply(r, a, 0xffff), unpremultiply(g, a, 0xffff), unpremultiply(b, a, 0xffff)
		}

		p := dst[x*8 : x*8+8]
		binary.BigEndian.PutUint16(p[0:], uint16(r))
		binary.BigEndian.PutUint16(p[2:], uint16(g))
		binary.BigEndian.PutUint16(p[4:], uint16(b))
		binary.BigEndian.PutUint16(p[6:], uint16(a))
	}
}

// DecodeConfig returns the color model and dimensions of a TIFF image
// without decoding the strips.
func DecodeConfig(r io.Reader) (image.Config, error) {
	data, err := binio.ReadAll(r)
	if err != nil {
		return image.Config{}, err
	}

	d, err := newDecoder(data)
	if err != nil {
		return image.Config{}, err
	}

	var model color.Model = imagecodec.BGRAModel
	if d.bps == 16 {
		model = color.NRGBA64Model
	}

	return image.Config{
		ColorModel: model,
		Width:      d.width,
		Height:     d.height,
	}, nil
}

// DecodeInfo returns the layout and descriptive tags of the first image.
// Unlike DecodeConfig it also describes images whose pixels cannot be decoded.
func DecodeInfo(r io.Reader) (*Info, error) {
	data, err := binio.ReadAll(r)
	if err != nil {
		return nil, err
	}

	dir, err := readIFD(data)
	if err != nil {
		return nil, err
	}

	width := toInt(dir.firstVal(tImageWidth, 0))
	height := toInt(dir.firstVal(tImageLength, 0))

	return &Info{
		ByteOrder:       dir.order,
		Width:           width,
		Height:          height,
		BitsPerSample:   toInt(dir.firstVal(tBitsPerSample, 1)),
		SamplesPerPixel: toInt(dir.firstVal(tSamplesPerPixel, 1)),
		Photometric:     toInt(dir.firstVal(tPhotometricInterpretation, 0)),
		Compression:     toInt(dir.firstVal(tCompression, cNone)),
		Predictor:       toInt(dir.firstVal(tPredictor, prNone)),
		RowsPerStrip:    toInt(dir.firstVal(tRowsPerStrip, uint(height))),
		XResolution:     dir.rational(tXResolution),
		YResolution:     dir.rational(tYResolution),
		Software:        dir.str(tSoftware),
	}, nil
}

// init registers the TIFF format with the standard library's image package.
func init() {
	decodeWrapper := func(r io.Reader) (image.Image, error) {
		return Decode(r)
	}

	image.RegisterFormat("tiff", leHeader, decodeWrapper, DecodeConfig)
	image.RegisterFormat("tiff", beHeader, decodeWrapper, DecodeConfig)
}
