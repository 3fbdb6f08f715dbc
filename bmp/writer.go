package bmp

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"

	"github.com/gen2brain/imagecodec"
	"github.com/gen2brain/imagecodec/bitio"
	"github.com/gen2brain/imagecodec/internal/binio"
	"github.com/gen2brain/imagecodec/internal/parallel"
	"github.com/gen2brain/imagecodec/quantize"
)

// 72 DPI.
const defaultPelsPerMeter = 2835

// EncoderOptions specifies encoding parameters.
type EncoderOptions struct {
	// BitsPerPixel is 1, 4, 8, 16, 24 or 32. Zero means 24.
	// Indexed depths build their palette with the Wu quantizer, at most
	// MaxPaletteColors entries. 16 bits stores 5 bits per channel.
	BitsPerPixel int
	// TopDown stores the top row first and writes a negative height.
	TopDown bool
}

// Encode writes img to w in BMP format.
func Encode(w io.Writer, img image.Image, opts ...*EncoderOptions) error {
	bpp, topDown := 24, false
	if len(opts) > 0 && opts[0] != nil {
		if opts[0].BitsPerPixel != 0 {
			bpp = opts[0].BitsPerPixel
		}

		topDown = opts[0].TopDown
	}

	switch bpp {
	case 1, 4, 8, 16, 24, 32:
	default:
		return imagecodec.UnsupportedError("bmp: cannot encode %d bits per pixel", bpp)
	}

	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if err := (imagecodec.Limits{}).Check(width, height); err != nil {
		return err
	}

	src := imagecodec.ToBGRA(img)
	stride := RowStride(width, bpp)
	pix := make([]byte, stride*height)

	// storedRow maps an image row to its position in the file.
	storedRow := func(y int) []byte {
		if !topDown {
			y = height - 1 - y
		}

		return pix[y*stride : (y+1)*stride]
	}

	var palette []byte
	if bpp <= 8 {
		res := quantize.Wu{}.Quantize(src, min(1<<bpp, MaxPaletteColors))

		palette = make([]byte, len(res.Palette)*4)
		for i, c := range res.Palette {
			palette[i*4+0] = c.B
			palette[i*4+1] = c.G
			palette[i*4+2] = c.R
		}

		parallel.Rows(height, func(y0, y1 int) {
			for y := y0; y < y1; y++ {
				bw := bitio.NewWriter(stride)
				for _, idx := range res.Pix[y*width : (y+1)*width] {
					bw.WriteBits(uint32(idx), bpp)
				}

				copy(storedRow(y), bw.Bytes())
			}
		})
	} else {
		parallel.Rows(height, func(y0, y1 int) {
			for y := y0; y < y1; y++ {
				packRow(storedRow(y), src.Pix[y*src.Stride:y*src.Stride+width*4], bpp)
			}
		})
	}

	offset := FileHeaderSize + InfoHeaderSize + len(palette)

	h := int32(height)
	if topDown {
		h = -h
	}

	fh := FileHeader{
		Type:     [2]byte{'B', 'M'},
		FileSize: uint32(offset + len(pix)),
		Offset:   uint32(offset),
	}

	ih := InfoHeader{
		HeaderSize:    InfoHeaderSize,
		Width:         int32(width),
		Height:        h,
		Planes:        1,
		BitsPerPixel:  uint16(bpp),
		Compression:   CompressionRGB,
		ImageSize:     uint32(len(pix)),
		XPelsPerMeter: defaultPelsPerMeter,
		YPelsPerMeter: defaultPelsPerMeter,
		ClrUsed:       uint32(len(palette) / 4),
	}

	hdr := binio.NewBuilder(binary.LittleEndian, offset)
	fh.put(hdr)
	ih.put(hdr)
	hdr.PutBytes(palette)

	if _, err := hdr.WriteTo(w); err != nil {
		return err
	}

	if _, err := w.Write(pix); err != nil {
		return fmt.Errorf("bmp: writing pixel data: %w", err)
	}

	return nil
}

// packRow stores one row of B, G, R, A pixels at 16, 24 or 32 bits.
func packRow(d, s []byte, bpp int) {
	w := len(s) / 4

	switch bpp {
	case 16:
		for x := 0; x < w; x++ {
			v := uint16(s[x*4+2]>>3)<<10 | uint16(s[x*4+1]>>3)<<5 | uint16(s[x*4+0]>>3)
			d[x*2] = byte(v)
			d[x*2+1] = byte(v >> 8)
		}
	case 24:
		for x := 0; x < w; x++ {
			d[x*3+0] = s[x*4+0]
			d[x*3+1] = s[x*4+1]
			d[x*3+2] = s[x*4+2]
		}
	case 32:
		copy(d, s)
	}
}
