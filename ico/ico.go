// Package ico decodes Windows icon (ICO) and cursor (CUR) files.
//
// Each directory entry holds either a PNG stream or a DIB: a BMP info
// header with doubled height followed by the colour rows and a 1-bit
// transparency mask.
package ico

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/gen2brain/imagecodec"
	"github.com/gen2brain/imagecodec/bmp"
	"github.com/gen2brain/imagecodec/internal/binio"
)

// Resource types in the directory header.
const (
	TypeIcon   = 1
	TypeCursor = 2
)

const (
	dirSize   = 6
	entrySize = 16
	maxCount  = 1024
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// Options specifies decoding parameters.
type Options struct {
	// Limits bounds every embedded image.
	imagecodec.Limits
}

// Entry is one ICONDIRENTRY.
type Entry struct {
	Width, Height int
	Colors        int
	// Planes and BitCount hold the hotspot for cursors.
	Planes, BitCount int
	Size, Offset     uint32
}

// Hotspot returns the cursor hotspot stored in the planes and bit count fields.
func (e Entry) Hotspot() image.Point {
	return image.Point{X: e.Planes, Y: e.BitCount}
}

// Icon is a decoded icon or cursor file.
type Icon struct {
	Type    int
	Entries []Entry
	// Images are in directory order.
	Images []*imagecodec.BGRA
}

// Largest returns the image with the largest area; ties keep the first.
func (ic *Icon) Largest() *imagecodec.BGRA {
	var best *imagecodec.BGRA
	for _, img := range ic.Images {
		if best == nil || img.Rect.Dx()*img.Rect.Dy() > best.Rect.Dx()*best.Rect.Dy() {
			best = img
		}
	}

	return best
}

func limitsOf(opts []*Options) imagecodec.Limits {
	if len(opts) > 0 && opts[0] != nil {
		return opts[0].Limits
	}

	return imagecodec.Limits{}
}

func readDir(r io.Reader) (int, []Entry, error) {
	f, err := binio.ReadHeader(r, dirSize, binary.LittleEndian)
	if err != nil {
		return 0, nil, err
	}

	reserved, typ, count := f.U16(), int(f.U16()), int(f.U16())
	if reserved != 0 || (typ != TypeIcon && typ != TypeCursor) {
		return 0, nil, imagecodec.FormatError("ico: bad directory header")
	}

	if count == 0 || count > maxCount {
		return 0, nil, imagecodec.FormatError("ico: %d directory entries", count)
	}

	entries := make([]Entry, count)
	for i := range entries {
		f, err := binio.ReadHeader(r, entrySize, binary.LittleEndian)
		if err != nil {
			return 0, nil, err
		}

		e := Entry{
			Width:  int(f.U8()),
			Height: int(f.U8()),
			Colors: int(f.U8()),
		}
		f.Skip(1)
		e.Planes = int(f.U16())
		e.BitCount = int(f.U16())
		e.Size = f.U32()
		e.Offset = f.U32()

		if e.Width == 0 {
			e.Width = 256
		}

		if e.Height == 0 {
			e.Height = 256
		}

		entries[i] = e
	}

	return typ, entries, nil
}

// DecodeAll reads every image of an icon or cursor file.
func DecodeAll(r io.Reader, opts ...*Options) (*Icon, error) {
	data, err := binio.ReadAll(r)
	if err != nil {
		return nil, err
	}

	typ, entries, err := readDir(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	limits := limitsOf(opts)
	icon := &Icon{Type: typ, Entries: entries, Images: make([]*imagecodec.BGRA, len(entries))}

	for i, e := range entries {
		start, end := int64(e.Offset), int64(e.Offset)+int64(e.Size)
		if end > int64(len(data)) {
			return nil, imagecodec.OutOfData(fmt.Sprintf("ico entry %d (%d bytes at %d)", i, e.Size, e.Offset), nil)
		}

		img, err := decodeEntry(data[start:end], limits)
		if err != nil {
			return nil, fmt.Errorf("ico: entry %d: %w", i, err)
		}

		icon.Images[i] = img
	}

	return icon, nil
}

// Decode returns the largest image of an icon or cursor file.
func Decode(r io.Reader, opts ...*Options) (image.Image, error) {
	icon, err := DecodeAll(r, opts...)
	if err != nil {
		return nil, err
	}

	return icon.Largest(), nil
}

// DecodeConfig returns the dimensions of the largest directory entry.
func DecodeConfig(r io.Reader) (image.Config, error) {
	_, entries, err := readDir(r)
	if err != nil {
		return image.Config{}, err
	}

	best := entries[0]
	for _, e := range entries[1:] {
		if e.Width*e.Height > best.Width*best.Height {
			best = e
		}
	}

	return image.Config{ColorModel: imagecodec.BGRAModel, Width: best.Width, Height: best.Height}, nil
}

func decodeEntry(data []byte, limits imagecodec.Limits) (*imagecodec.BGRA, error) {
	if bytes.HasPrefix(data, pngMagic) {
		return decodePNG(data, limits)
	}

	return decodeDIB(data, limits)
}

func decodePNG(data []byte, limits imagecodec.Limits) (*imagecodec.BGRA, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, imagecodec.FormatError("embedded png: %w", err)
	}

	if err := limits.Check(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, imagecodec.FormatError("embedded png: %w", err)
	}

	return imagecodec.ToBGRA(img), nil
}

// decodeDIB decodes a headerless bitmap with an AND mask.
func decodeDIB(data []byte, limits imagecodec.Limits) (*imagecodec.BGRA, error) {
	rd := bytes.NewReader(data)

	ih, err := bmp.ReadInfoHeader(rd)
	if err != nil {
		return nil, err
	}

	// The stored height covers the colour rows and the mask.
	ih.Height /= 2
	if err := ih.Validate(limits); err != nil {
		return nil, err
	}

	var palette []byte
	if ih.BitsPerPixel <= 8 {
		palette, err = bmp.ReadPalette(rd, ih.PaletteLen())
		if err != nil {
			return nil, err
		}
	}

	w, h := ih.Dimensions()
	bpp := int(ih.BitsPerPixel)
	img := imagecodec.NewBGRA(image.Rect(0, 0, w, h))

	pix := data[len(data)-rd.Len():]
	if err := bmp.UnpackRows(img, pix, bpp, palette, ih.TopDown()); err != nil {
		return nil, err
	}

	maskOffset := bmp.RowStride(w, bpp) * h
	if bpp == 32 && !allTransparent(img) {
		return img, nil
	}

	// Icons without a mask are fully opaque.
	if maskOffset >= len(pix) {
		return img, nil
	}

	applyMask(img, pix[maskOffset:], ih.TopDown())

	return img, nil
}

func allTransparent(img *imagecodec.BGRA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			return false
		}
	}

	return true
}

// applyMask sets alpha from the 1-bit AND mask: a set bit is transparent.
func applyMask(img *imagecodec.BGRA, mask []byte, topDown bool) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	stride := bmp.RowStride(w, 1)

	for y := 0; y < h; y++ {
		out := y
		if !topDown {
			out = h - y - 1
		}

		row := mask[min(y*stride, len(mask)):]
		for x := 0; x < w; x++ {
			alpha := byte(255)
			if x/8 < len(row) && row[x/8]&(0x80>>(x%8)) != 0 {
				alpha = 0
			}

			img.Pix[out*img.Stride+x*4+3] = alpha
		}
	}
}

// init registers the icon and cursor formats with the standard library's image package.
func init() {
	decodeWrapper := func(r io.Reader) (image.Image, error) {
		return Decode(r)
	}

	image.RegisterFormat("ico", "\x00\x00\x01\x00", decodeWrapper, DecodeConfig)
	image.RegisterFormat("cur", "\x00\x00\x02\x00", decodeWrapper, DecodeConfig)
}
