// Package bmp implements a decoder and encoder for Windows BMP images
// with a 40-byte BITMAPINFOHEADER.
//
// Uncompressed 1, 4, 8, 16, 24 and 32 bits per pixel are supported. RLE
// and bit field compression are reported as imagecodec.ErrUnsupported.
package bmp

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gen2brain/imagecodec"
	"github.com/gen2brain/imagecodec/internal/binio"
)

// Header sizes in bytes.
const (
	FileHeaderSize = 14
	InfoHeaderSize = 40
)

// MaxPaletteSize is the largest palette in bytes: 255 B, G, R, A quads.
const MaxPaletteSize = 255 * 4

// MaxPaletteColors is the largest palette the encoder writes.
const MaxPaletteColors = MaxPaletteSize / 4

// Compression is the biCompression field of the info header.
type Compression uint32

// Compression modes. Only CompressionRGB is decoded.
const (
	CompressionRGB       Compression = 0
	CompressionRLE8      Compression = 1
	CompressionRLE4      Compression = 2
	CompressionBitFields Compression = 3
	CompressionJPEG      Compression = 4
	CompressionPNG       Compression = 5
)

func (c Compression) String() string {
	switch c {
	case CompressionRGB:
		return "RGB"
	case CompressionRLE8:
		return "RLE8"
	case CompressionRLE4:
		return "RLE4"
	case CompressionBitFields:
		return "BitFields"
	case CompressionJPEG:
		return "JPEG"
	case CompressionPNG:
		return "PNG"
	}

	return fmt.Sprintf("Compression(%d)", uint32(c))
}

// FileHeader is the 14-byte BITMAPFILEHEADER.
type FileHeader struct {
	Type     [2]byte
	FileSize uint32
	Reserved uint32
	// Offset is the position of the pixel data from the start of the file.
	Offset uint32
}

// InfoHeader is the 40-byte BITMAPINFOHEADER.
type InfoHeader struct {
	HeaderSize uint32
	Width      int32
	// Height is negative for top-down images.
	Height        int32
	Planes        uint16
	BitsPerPixel  uint16
	Compression   Compression
	ImageSize     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

// TopDown reports whether the first stored row is the top row.
func (h *InfoHeader) TopDown() bool { return h.Height < 0 }

// Dimensions returns the width and the absolute height.
func (h *InfoHeader) Dimensions() (int, int) {
	height := int(h.Height)
	if height < 0 {
		height = -height
	}

	return int(h.Width), height
}

// PaletteLen returns the number of palette entries that follow the header.
func (h *InfoHeader) PaletteLen() int {
	if h.ClrUsed != 0 {
		return int(min(h.ClrUsed, 1<<16))
	}

	if h.BitsPerPixel <= 8 {
		return 1 << h.BitsPerPixel
	}

	return 0
}

// Validate rejects headers this package cannot decode. The limits are
// checked against the absolute height.
func (h *InfoHeader) Validate(limits imagecodec.Limits) error {
	if err := h.checkFormat(); err != nil {
		return err
	}

	w, ht := h.Dimensions()

	return limits.Check(w, ht)
}

func (h *InfoHeader) checkFormat() error {
	if h.HeaderSize != InfoHeaderSize {
		return imagecodec.UnsupportedError("bmp: info header size %d", h.HeaderSize)
	}

	if h.Compression != CompressionRGB {
		return imagecodec.UnsupportedError("bmp: compression %s", h.Compression)
	}

	switch h.BitsPerPixel {
	case 1, 4, 8, 16, 24, 32:
	default:
		return imagecodec.UnsupportedError("bmp: %d bits per pixel", h.BitsPerPixel)
	}

	return nil
}

// ReadFileHeader reads and checks the BM signature.
func ReadFileHeader(r io.Reader) (FileHeader, error) {
	f, err := binio.ReadHeader(r, FileHeaderSize, binary.LittleEndian)
	if err != nil {
		return FileHeader{}, err
	}

	var fh FileHeader
	fh.Type[0], fh.Type[1] = f.U8(), f.U8()
	fh.FileSize = f.U32()
	fh.Reserved = f.U32()
	fh.Offset = f.U32()

	if fh.Type != [2]byte{'B', 'M'} {
		return fh, imagecodec.FormatError("bmp: bad signature %q", fh.Type[:])
	}

	return fh, f.Err()
}

// ReadInfoHeader reads the 40-byte info header. Larger header variants
// parse but fail Validate.
func ReadInfoHeader(r io.Reader) (InfoHeader, error) {
	f, err := binio.ReadHeader(r, InfoHeaderSize, binary.LittleEndian)
	if err != nil {
		return InfoHeader{}, err
	}

	h := InfoHeader{
		HeaderSize:    f.U32(),
		Width:         f.I32(),
		Height:        f.I32(),
		Planes:        f.U16(),
		BitsPerPixel:  f.U16(),
		Compression:   Compression(f.U32()),
		ImageSize:     f.U32(),
		XPelsPerMeter: f.I32(),
		YPelsPerMeter: f.I32(),
		ClrUsed:       f.U32(),
		ClrImportant:  f.U32(),
	}

	return h, f.Err()
}

// ReadPalette reads n B, G, R, A entries. More than MaxPaletteSize bytes
// is a format error.
func ReadPalette(r io.Reader, n int) ([]byte, error) {
	size := n * 4
	if size > MaxPaletteSize {
		return nil, imagecodec.FormatError("bmp: palette size %d exceeds maximum %d", size, MaxPaletteSize)
	}

	palette := make([]byte, size)
	if _, err := io.ReadFull(r, palette); err != nil {
		return nil, imagecodec.OutOfData("bmp palette", err)
	}

	return palette, nil
}

// RowStride returns the 4-byte aligned length of a stored row.
func RowStride(width, bpp int) int {
	return ((width*bpp + 31) / 32) * 4
}

// put writes h in stored field order.
func (h *InfoHeader) put(b *binio.Builder) {
	b.PutU32(h.HeaderSize)
	b.PutI32(h.Width)
	b.PutI32(h.Height)
	b.PutU16(h.Planes)
	b.PutU16(h.BitsPerPixel)
	b.PutU32(uint32(h.Compression))
	b.PutU32(h.ImageSize)
	b.PutI32(h.XPelsPerMeter)
	b.PutI32(h.YPelsPerMeter)
	b.PutU32(h.ClrUsed)
	b.PutU32(h.ClrImportant)
}

func (fh *FileHeader) put(b *binio.Builder) {
	b.PutBytes(fh.Type[:])
	b.PutU32(fh.FileSize)
	b.PutU32(fh.Reserved)
	b.PutU32(fh.Offset)
}
