package bmp

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/gen2brain/imagecodec"
	"github.com/gen2brain/imagecodec/bitio"
	"github.com/gen2brain/imagecodec/internal/binio"
	"github.com/gen2brain/imagecodec/internal/parallel"
)

// Options specifies decoding parameters.
type Options struct {
	// Limits bounds the accepted canvas. The zero value uses imagecodec.DefaultMaxDimension.
	imagecodec.Limits
}

func limitsOf(opts []*Options) imagecodec.Limits {
	if len(opts) > 0 && opts[0] != nil {
		return opts[0].Limits
	}

	return imagecodec.Limits{}
}

// Decode reads a BMP image from r and returns it as an *imagecodec.BGRA.
func Decode(r io.Reader, opts ...*Options) (image.Image, error) {
	data, err := binio.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return decode(data, limitsOf(opts))
}

func decode(data []byte, limits imagecodec.Limits) (*imagecodec.BGRA, error) {
	rd := bytes.NewReader(data)

	fh, err := ReadFileHeader(rd)
	if err != nil {
		return nil, err
	}

	ih, err := ReadInfoHeader(rd)
	if err != nil {
		return nil, err
	}

	if err := ih.Validate(limits); err != nil {
		return nil, err
	}

	var palette []byte
	if ih.BitsPerPixel <= 8 {
		palette, err = ReadPalette(rd, ih.PaletteLen())
		if err != nil {
			return nil, err
		}
	}

	offset := int(fh.Offset)
	if offset == 0 {
		offset = FileHeaderSize + InfoHeaderSize + len(palette)
	}

	if offset > len(data) {
		return nil, imagecodec.OutOfData(fmt.Sprintf("bmp pixel data at offset %d", offset), nil)
	}

	w, h := ih.Dimensions()
	img := imagecodec.NewBGRA(image.Rect(0, 0, w, h))

	if err := UnpackRows(img, data[offset:], int(ih.BitsPerPixel), palette, ih.TopDown()); err != nil {
		return nil, err
	}

	return img, nil
}

// DecodeConfig returns the color model and dimensions of a BMP image without
// decoding the pixel data.
func DecodeConfig(r io.Reader) (image.Config, error) {
	if _, err := ReadFileHeader(r); err != nil {
		return image.Config{}, err
	}

	ih, err := ReadInfoHeader(r)
	if err != nil {
		return image.Config{}, err
	}

	if err := ih.checkFormat(); err != nil {
		return image.Config{}, err
	}

	w, h := ih.Dimensions()

	return image.Config{
		ColorModel: imagecodec.BGRAModel,
		Width:      w,
		Height:     h,
	}, nil
}

// UnpackRows converts stored rows of bpp bits per pixel into dst, which
// supplies the width and height. Rows are 4-byte aligned. Bottom-up rows
// are flipped so that row 0 of dst is the top row. Indexed pixels take
// their colour from palette with alpha forced to 255; indices past the
// palette end read as black.
func UnpackRows(dst *imagecodec.BGRA, src []byte, bpp int, palette []byte, topDown bool) error {
	w, h := dst.Rect.Dx(), dst.Rect.Dy()
	if h == 0 || w == 0 {
		return nil
	}

	stride := RowStride(w, bpp)
	rowBytes := (w*bpp + 7) / 8

	// The last row may omit its padding.
	if need := stride*(h-1) + rowBytes; len(src) < need {
		return imagecodec.OutOfData(fmt.Sprintf("bmp pixel data (%d of %d bytes)", len(src), need), nil)
	}

	var pal [256 * 4]byte
	copy(pal[:], palette)

	parallel.Rows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			out := y
			if !topDown {
				out = h - y - 1
			}

			i := dst.PixOffset(dst.Rect.Min.X, dst.Rect.Min.Y+out)
			unpackRow(dst.Pix[i:i+w*4], src[y*stride:y*stride+rowBytes], bpp, &pal)
		}
	})

	return nil
}

func unpackRow(d, row []byte, bpp int, pal *[256 * 4]byte) {
	w := len(d) / 4

	switch bpp {
	case 1, 4, 8:
		br := bitio.NewReader(row)
		for x := 0; x < w; x++ {
			idx, err := br.ReadBits(bpp)
			if err != nil {
				return
			}

			p := pal[idx*4 : idx*4+3 : idx*4+3]
			d[x*4+0] = p[0]
			d[x*4+1] = p[1]
			d[x*4+2] = p[2]
			d[x*4+3] = 255
		}
	case 16:
		for x := 0; x < w; x++ {
			v := uint16(row[x*2]) | uint16(row[x*2+1])<<8

			d[x*4+0] = byte((v & 0x001F) * 8)
			d[x*4+1] = byte(((v & 0x03E0) >> 5) * 4)
			d[x*4+2] = byte(((v & 0x7C00) >> 10) * 8)
			d[x*4+3] = 255
		}
	case 24:
		for x := 0; x < w; x++ {
			d[x*4+0] = row[x*3+0]
			d[x*4+1] = row[x*3+1]
			d[x*4+2] = row[x*3+2]
			d[x*4+3] = 255
		}
	case 32:
		copy(d, row[:w*4])
	}
}

// init registers the BMP format with the standard library's image package.
func init() {
	decodeWrapper := func(r io.Reader) (image.Image, error) {
		return Decode(r)
	}

	image.RegisterFormat("bmp", "BM????\x00\x00\x00\x00", decodeWrapper, DecodeConfig)
}
