package tiff

import (
	"encoding/binary"
	"image"
	"io"
	"slices"

	"github.com/gen2brain/imagecodec"
	"github.com/gen2brain/imagecodec/internal/binio"
	"github.com/gen2brain/imagecodec/internal/parallel"
)

// Compression is the strip compression scheme used by Encode. The values are
// the TIFF Compression tag values.
type Compression int

// Compression schemes supported by Encode.
const (
	None     Compression = cNone
	LZW      Compression = cLZW
	Deflate  Compression = cDeflate
	PackBits Compression = cPackBits
	Zstd     Compression = cZstd
)

// String returns the name of the scheme.
func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case LZW:
		return "lzw"
	case Deflate:
		return "deflate"
	case PackBits:
		return "packbits"
	case Zstd:
		return "zstd"
	}

	return "unknown"
}

// targetStripSize is the uncompressed strip size used when RowsPerStrip is zero.
const targetStripSize = 8 << 10

// EncoderOptions specifies encoding parameters.
type EncoderOptions struct {
	// Compression is the strip compression. The zero value means None.
	Compression Compression
	// Predictor enables horizontal differencing before compression.
	Predictor bool
	// RowsPerStrip is the strip height. Zero picks strips of about 8 KiB.
	RowsPerStrip int
	// Software is written to the Software tag when not empty.
	Software string
}

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func shorts(v ...uint16) []byte {
	b := make([]byte, 0, 2*len(v))
	for _, x := range v {
		b = binary.LittleEndian.AppendUint16(b, x)
	}

	return b
}

func longs(v ...uint32) []byte {
	b := make([]byte, 0, 4*len(v))
	for _, x := range v {
		b = binary.LittleEndian.AppendUint32(b, x)
	}

	return b
}

// Encode writes img to w as a little-endian TIFF. Opaque images are stored
// as 8-bit RGB, others as RGB with an unassociated alpha sample.
func Encode(w io.Writer, img image.Image, opts ...*EncoderOptions) error {
	var o EncoderOptions
	if len(opts) > 0 && opts[0] != nil {
		o = *opts[0]
	}

	if o.Compression == 0 {
		o.Compression = None
	}

	switch o.Compression {
	case None, LZW, Deflate, PackBits, Zstd:
	default:
		return imagecodec.UnsupportedError("tiff: cannot encode compression %d", o.Compression)
	}

	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if err := (imagecodec.Limits{}).Check(width, height); err != nil {
		return err
	}

	src := imagecodec.ToBGRA(img)

	spp := 3
	if !src.Opaque() {
		spp = 4
	}

	rowBytes := width * spp
	rps := o.RowsPerStrip
	if rps <= 0 {
		rps = max(1, targetStripSize/rowBytes)
	}
	rps = min(rps, height)

	n := (height + rps - 1) / rps
	strips := make([][]byte, n)

	err := parallel.RowsErr(n, func(s0, s1 int) error {
		for i := s0; i < s1; i++ {
			y0 := i * rps
			y1 := min(y0+rps, height)

			raw := make([]byte, (y1-y0)*rowBytes)
			for y := y0; y < y1; y++ {
				row := raw[(y-y0)*rowBytes:]
				pix := src.Pix[src.PixOffset(0, y):]
				for x := 0; x < width; x++ {
					row[x*spp+0] = pix[x*4+2]
					row[x*spp+1] = pix[x*4+1]
					row[x*spp+2] = pix[x*4+0]
					if spp == 4 {
						row[x*spp+3] = pix[x*4+3]
					}
				}
			}

			if o.Predictor {
				applyHorizontal(raw, rowBytes, spp)
			}

			out, err := compress(o.Compression, raw, rowBytes)
			if err != nil {
				return err
			}

			strips[i] = out
		}

		return nil
	})
	if err != nil {
		return err
	}

	offsets := make([]uint32, n)
	counts := make([]uint32, n)
	pos := uint32(headerSize)
	for i, s := range strips {
		offsets[i], counts[i] = pos, uint32(len(s))
		pos += uint32(len(s))
	}

	bits := make([]uint16, spp)
	for i := range bits {
		bits[i] = 8
	}

	entries := []ifdEntry{
		{tImageWidth, dtLong, 1, longs(uint32(width))},
		{tImageLength, dtLong, 1, longs(uint32(height))},
		{tBitsPerSample, dtShort, uint32(spp), shorts(bits...)},
		{tCompression, dtShort, 1, shorts(uint16(o.Compression))},
		{tPhotometricInterpretation, dtShort, 1, shorts(pRGB)},
		{tStripOffsets, dtLong, uint32(n), longs(offsets...)},
		{tSamplesPerPixel, dtShort, 1, shorts(uint16(spp))},
		{tRowsPerStrip, dtLong, 1, longs(uint32(rps))},
		{tStripByteCounts, dtLong, uint32(n), longs(counts...)},
		{tXResolution, dtRational, 1, longs(72, 1)},
		{tYResolution, dtRational, 1, longs(72, 1)},
		{tPlanarConfiguration, dtShort, 1, shorts(1)},
		{tResolutionUnit, dtShort, 1, shorts(resPerInch)},
	}

	if o.Predictor {
		entries = append(entries, ifdEntry{tPredictor, dtShort, 1, shorts(prHorizontal)})
	}

	if spp == 4 {
		entries = append(entries, ifdEntry{tExtraSamples, dtShort, 1, shorts(esUnassociated)})
	}

	if o.Software != "" {
		s := append([]byte(o.Software), 0)
		entries = append(entries, ifdEntry{tSoftware, dtASCII, uint32(len(s)), s})
	}

	slices.SortFunc(entries, func(a, b ifdEntry) int { return int(a.tag) - int(b.tag) })

	ifdOffset := pos + pos&1
	bw := binio.NewBuilder(binary.LittleEndian, int(ifdOffset)+2+len(entries)*entryLen+4)
	bw.PutBytes([]byte(leHeader))
	bw.PutU32(ifdOffset)
	for _, s := range strips {
		bw.PutBytes(s)
	}

	if pos&1 != 0 {
		bw.PutU8(0)
	}

	// Values longer than four bytes follow the IFD.
	ext := ifdOffset + 2 + uint32(len(entries)*entryLen) + 4
	var extra []byte

	bw.PutU16(uint16(len(entries)))
	for _, e := range entries {
		bw.PutU16(e.tag)
		bw.PutU16(e.typ)
		bw.PutU32(e.count)

		if len(e.data) <= 4 {
			var inline [4]byte
			copy(inline[:], e.data)
			bw.PutBytes(inline[:])

			continue
		}

		bw.PutU32(ext + uint32(len(extra)))
		extra = append(extra, e.data...)
		if len(extra)&1 != 0 {
			extra = append(extra, 0)
		}
	}

	bw.PutU32(0)
	bw.PutBytes(extra)

	_, err = bw.WriteTo(w)

	return err
}
