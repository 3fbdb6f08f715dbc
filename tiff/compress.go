package tiff

import (
	"bytes"
	"fmt"
	"io"
	"math/bits"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/image/ccitt"

	"github.com/gen2brain/imagecodec"
	"github.com/gen2brain/imagecodec/lzw"
)

// zstdDecoderPool holds single-goroutine decoders used through DecodeAll.
var zstdDecoderPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderLowmem(true))
		if err != nil {
			return err
		}

		return dec
	},
}

// zstdEncoderPool holds single-goroutine encoders used through EncodeAll.
var zstdEncoderPool = sync.Pool{
	New: func() any {
		enc, err := zstd.NewWriter(nil,
			zstd.WithEncoderConcurrency(1),
			zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
			zstd.WithLowerEncoderMem(true),
		)
		if err != nil {
			return err
		}

		return enc
	},
}

func zstdDecode(dst, src []byte) ([]byte, error) {
	v := zstdDecoderPool.Get()
	dec, ok := v.(*zstd.Decoder)
	if !ok {
		return nil, v.(error)
	}
	defer zstdDecoderPool.Put(dec)

	return dec.DecodeAll(src, dst)
}

func zstdEncode(dst, src []byte) ([]byte, error) {
	v := zstdEncoderPool.Get()
	enc, ok := v.(*zstd.Encoder)
	if !ok {
		return nil, v.(error)
	}
	defer zstdEncoderPool.Put(enc)

	return enc.EncodeAll(src, dst), nil
}

// reverseBits returns a copy of p with the bits of each byte reversed.
func reverseBits(p []byte) []byte {
	out := make([]byte, len(p))
	for i, b := range p {
		out[i] = bits.Reverse8(b)
	}

	return out
}

// strip describes the compressed bytes of one strip and the rows it covers.
type strip struct {
	raw  []byte
	rows int
}

// decompress expands s into dst, which has room for exactly s.rows rows.
// LZW and PackBits streams that end early leave the rest of dst zero.
func (d *decoder) decompress(dst []byte, s strip) error {
	// The CCITT reader takes the fill order itself.
	if d.fillOrder == 2 && d.compression != cG3 && d.compression != cG4 {
		s.raw = reverseBits(s.raw)
	}

	switch d.compression {
	case cNone:
		if len(s.raw) < len(dst) {
			return imagecodec.OutOfData(fmt.Sprintf("tiff strip (%d of %d bytes)", len(s.raw), len(dst)), nil)
		}

		copy(dst, s.raw)
	case cLZW:
		dec, err := lzw.NewDecoder(bytes.NewReader(s.raw), lzw.TIFF())
		if err != nil {
			return err
		}

		if _, err := dec.Decode(dst); err != nil {
			return fmt.Errorf("tiff: lzw: %w", err)
		}
	case cPackBits:
		unpackBits(dst, s.raw)
	case cDeflate, cDeflateOld:
		zr, err := zlib.NewReader(bytes.NewReader(s.raw))
		if err != nil {
			return imagecodec.FormatError("tiff: deflate strip: %w", err)
		}
		defer zr.Close()

		if _, err := io.ReadFull(zr, dst); err != nil {
			return imagecodec.OutOfData("tiff deflate strip", err)
		}
	case cZstd:
		out, err := zstdDecode(make([]byte, 0, len(dst)), s.raw)
		if err != nil {
			return imagecodec.FormatError("tiff: zstd strip: %w", err)
		}

		if len(out) < len(dst) {
			return imagecodec.OutOfData(fmt.Sprintf("tiff zstd strip (%d of %d bytes)", len(out), len(dst)), nil)
		}

		copy(dst, out)
	case cG3, cG4:
		sf := ccitt.Group3
		if d.compression == cG4 {
			sf = ccitt.Group4
		}

		order := ccitt.MSB
		if d.fillOrder == 2 {
			order = ccitt.LSB
		}

		cr := ccitt.NewReader(bytes.NewReader(s.raw), order, sf, d.width, s.rows,
			&ccitt.Options{Invert: d.photometric == pWhiteIsZero})
		if _, err := io.ReadFull(cr, dst); err != nil {
			return imagecodec.FormatError("tiff: ccitt strip: %w", err)
		}
	default:
		return imagecodec.UnsupportedError("tiff: compression %d", d.compression)
	}

	if d.predictor == prHorizontal {
		undoHorizontal(dst, d.rowBytes, d.spp, d.bps, d.order)
	}

	return nil
}

// compress encodes one strip of raw rows with the given scheme.
func compress(scheme Compression, raw []byte, rowBytes int) ([]byte, error) {
	switch scheme {
	case None:
		return raw, nil
	case LZW:
		var buf bytes.Buffer
		enc := lzw.NewEncoder(&buf)
		if _, err := enc.Write(raw); err != nil {
			return nil, err
		}

		if err := enc.Close(); err != nil {
			return nil, err
		}

		return buf.Bytes(), nil
	case Deflate:
		var buf bytes.Buffer
		zw, err := zlib.NewWriterLevel(&buf, zlib.DefaultCompression)
		if err != nil {
			return nil, err
		}

		if _, err := zw.Write(raw); err != nil {
			return nil, err
		}

		if err := zw.Close(); err != nil {
			return nil, err
		}

		return buf.Bytes(), nil
	case PackBits:
		out := make([]byte, 0, len(raw)+len(raw)/128+1)
		for off := 0; off < len(raw); off += rowBytes {
			out = packBits(out, raw[off:min(off+rowBytes, len(raw))])
		}

		return out, nil
	case Zstd:
		return zstdEncode(nil, raw)
	}

	return nil, imagecodec.UnsupportedError("tiff: cannot encode compression %d", scheme)
}
