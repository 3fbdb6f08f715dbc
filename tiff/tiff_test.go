package tiff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"slices"
	"testing"

	"github.com/gen2brain/imagecodec"
	"github.com/gen2brain/imagecodec/bitio"
	"github.com/gen2brain/imagecodec/internal/binio"
)

type tag struct {
	id   uint16
	typ  uint16
	vals []uint32
}

// rawTIFF assembles a single-IFD file with the strips stored after the
// header. StripOffsets and StripByteCounts are added when strips are given.
// A later tag replaces an earlier one with the same id.
func rawTIFF(order binary.AppendByteOrder, tags []tag, strips ...[]byte) []byte {
	b := binio.NewBuilder(order, 256)
	if order == binary.BigEndian {
		b.PutBytes([]byte(beHeader))
	} else {
		b.PutBytes([]byte(leHeader))
	}
	b.PutU32(0)

	var offsets, counts []uint32
	for _, s := range strips {
		offsets = append(offsets, uint32(b.Len()))
		counts = append(counts, uint32(len(s)))
		b.PutBytes(s)
	}

	if b.Len()&1 != 0 {
		b.PutU8(0)
	}

	if len(strips) > 0 {
		tags = append(slices.Clone(tags), tag{tStripOffsets, dtLong, offsets}, tag{tStripByteCounts, dtLong, counts})
	}

	byID := make(map[uint16]tag)
	for _, t := range tags {
		byID[t.id] = t
	}

	ids := make([]uint16, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	ifdOffset := b.Len()
	ext := ifdOffset + 2 + len(ids)*entryLen + 4
	extra := binio.NewBuilder(order, 64)

	b.PutU16(uint16(len(ids)))
	for _, id := range ids {
		t := byID[id]

		v := binio.NewBuilder(order, 16)
		count := len(t.vals)
		for _, x := range t.vals {
			switch t.typ {
			case dtByte, dtASCII, dtUndefined:
				v.PutU8(uint8(x))
			case dtShort:
				v.PutU16(uint16(x))
			default:
				v.PutU32(x)
			}
		}

		if t.typ == dtRational {
			count /= 2
		}

		b.PutU16(t.id)
		b.PutU16(t.typ)
		b.PutU32(uint32(count))

		if v.Len() <= 4 {
			var inline [4]byte
			copy(inline[:], v.Bytes())
			b.PutBytes(inline[:])

			continue
		}

		b.PutU32(uint32(ext + extra.Len()))
		extra.PutBytes(v.Bytes())
	}

	b.PutU32(0)
	b.PutBytes(extra.Bytes())

	data := b.Bytes()
	order.(binary.ByteOrder).PutUint32(data[4:], uint32(ifdOffset))

	return data
}

// base returns the tags of a w x h image with one BitsPerSample value per sample.
func base(w, h int, photometric uint32, bps ...uint32) []tag {
	return []tag{
		{tImageWidth, dtLong, []uint32{uint32(w)}},
		{tImageLength, dtLong, []uint32{uint32(h)}},
		{tBitsPerSample, dtShort, bps},
		{tSamplesPerPixel, dtShort, []uint32{uint32(len(bps))}},
		{tPhotometricInterpretation, dtShort, []uint32{photometric}},
	}
}

// testImage returns an image with varied colour and alpha.
func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x*37 + y*11),
				G: uint8(x*5 + y*71),
				B: uint8(x*y + 13),
				A: uint8(255 - x*5 - y*3),
			})
		}
	}

	return img
}

func opaque(img *image.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 255
	}

	return out
}

// sameImage compares two images as non-premultiplied 16-bit colours.
func sameImage(t *testing.T, got, want image.Image) {
	t.Helper()

	if got.Bounds().Size() != want.Bounds().Size() {
		t.Fatalf("size = %v, want %v", got.Bounds().Size(), want.Bounds().Size())
	}

	gb, wb := got.Bounds(), want.Bounds()
	for y := 0; y < wb.Dy(); y++ {
		for x := 0; x < wb.Dx(); x++ {
			g := color.NRGBA64Model.Convert(got.At(gb.Min.X+x, gb.Min.Y+y)).(color.NRGBA64)
			w := color.NRGBA64Model.Convert(want.At(wb.Min.X+x, wb.Min.Y+y)).(color.NRGBA64)
			if g != w {
				t.Fatalf("pixel (%d, %d) = %+v, want %+v", x, y, g, w)
			}
		}
	}
}

func decodeBGRA(t *testing.T, data []byte) *imagecodec.BGRA {
	t.Helper()

	img, err := Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	m, ok := img.(*imagecodec.BGRA)
	if !ok {
		t.Fatalf("Decode returned %T, want *imagecodec.BGRA", img)
	}

	return m
}

func TestRoundTrip(t *testing.T) {
	src := testImage(13, 9)

	for _, c := range []Compression{None, LZW, Deflate, PackBits, Zstd} {
		for _, predictor := range []bool{false, true} {
			for _, rps := range []int{0, 2} {
				for name, img := range map[string]*image.NRGBA{"RGBA": src, "RGB": opaque(src)} {
					opts := &EncoderOptions{Compression: c, Predictor: predictor, RowsPerStrip: rps}

					var buf bytes.Buffer
					if err := Encode(&buf, img, opts); err != nil {
						t.Fatalf("%s %v: Encode failed: %v", name, c, err)
					}

					got := decodeBGRA(t, buf.Bytes())
					sameImage(t, got, img)
				}
			}
		}
	}
}

func TestRoundTripManyStrips(t *testing.T) {
	src := opaque(testImage(64, 96))

	var buf bytes.Buffer
	if err := Encode(&buf, src, &EncoderOptions{Compression: LZW, Predictor: true, RowsPerStrip: 1}); err != nil {
		t.Fatal(err)
	}

	sameImage(t, decodeBGRA(t, buf.Bytes()), src)
}

func TestEncodeSubImage(t *testing.T) {
	src := opaque(testImage(10, 10))
	sub := src.SubImage(image.Rect(3, 2, 8, 9))

	var buf bytes.Buffer
	if err := Encode(&buf, sub); err != nil {
		t.Fatal(err)
	}

	sameImage(t, decodeBGRA(t, buf.Bytes()), sub)
}

func TestGrayBits(t *testing.T) {
	const w, h = 11, 3

	for _, bps := range []int{1, 2, 4, 8} {
		for _, photometric := range []uint32{pBlackIsZero, pWhiteIsZero} {
			maxVal := uint32(1)<<bps - 1

			values := make([]uint32, w*h)
			bw := bitio.NewWriter((w*bps + 7) / 8 * h)
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					v := uint32(x*3+y) & maxVal
					values[y*w+x] = v
					bw.WriteBits(v, bps)
				}
				bw.NextRow()
			}

			data := rawTIFF(binary.LittleEndian, base(w, h, photometric, uint32(bps)), bw.Bytes())
			img := decodeBGRA(t, data)

			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					v := values[y*w+x]
					if photometric == pWhiteIsZero {
						v = maxVal - v
					}

					g := uint8(v * 255 / maxVal)
					want := imagecodec.Bgra32{B: g, G: g, R: g, A: 255}
					if got := img.BGRAAt(x, y); got != want {
						t.Fatalf("bps %d photometric %d: pixel (%d, %d) = %+v, want %+v", bps, photometric, x, y, got, want)
					}
				}
			}
		}
	}
}

func TestFillOrder(t *testing.T) {
	const w, h = 13, 2

	bw := bitio.NewWriter((w + 7) / 8 * h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bw.WriteBits(uint32(x+y)&1, 1)
		}
		bw.NextRow()
	}
	msb := bw.Bytes()
	want := decodeBGRA(t, rawTIFF(binary.LittleEndian, base(w, h, pBlackIsZero, 1), msb))

	lsb := reverseBits(msb)
	fill := append(base(w, h, pBlackIsZero, 1), tag{tFillOrder, dtShort, []uint32{2}})

	testCases := []struct {
		name  string
		tags  []tag
		strip []byte
	}{
		{"None", fill, lsb},
		{"PackBits", append(slices.Clone(fill), tag{tCompression, dtShort, []uint32{cPackBits}}), packBits(nil, lsb)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := decodeBGRA(t, rawTIFF(binary.LittleEndian, tc.tags, tc.strip))
			if !bytes.Equal(got.Pix, want.Pix) {
				t.Errorf("Pix = %v, want %v", got.Pix, want.Pix)
			}
		})
	}
}

func TestBigEndian16(t *testing.T) {
	pix := []byte{0x12, 0x34, 0xff, 0xff, 0x00, 0x80, 0x00, 0x01}

	testCases := []struct {
		photometric uint32
		want        []uint16
	}{
		{pBlackIsZero, []uint16{0x1234, 0xffff, 0x0080, 0x0001}},
		{pWhiteIsZero, []uint16{0xedcb, 0x0000, 0xff7f, 0xfffe}},
	}

	for _, tc := range testCases {
		data := rawTIFF(binary.BigEndian, base(2, 2, tc.photometric, 16), pix)

		img, err := Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}

		m, ok := img.(*image.NRGBA64)
		if !ok {
			t.Fatalf("Decode returned %T, want *image.NRGBA64", img)
		}

		for i, v := range tc.want {
			want := color.NRGBA64{R: v, G: v, B: v, A: 0xffff}
			if got := m.NRGBA64At(i%2, i/2); got != want {
				t.Errorf("photometric %d: pixel %d = %+v, want %+v", tc.photometric, i, got, want)
			}
		}
	}
}

func TestRGB16Predictor(t *testing.T) {
	// Two pixels, the second stored as a difference from the first.
	pix := binary.LittleEndian.AppendUint16(nil, 1000)
	pix = binary.LittleEndian.AppendUint16(pix, 2000)
	pix = binary.LittleEndian.AppendUint16(pix, 3000)
	pix = binary.LittleEndian.AppendUint16(pix, 5)
	pix = binary.LittleEndian.AppendUint16(pix, 0xffff)
	pix = binary.LittleEndian.AppendUint16(pix, 100)

	tags := append(base(2, 1, pRGB, 16, 16, 16), tag{tPredictor, dtShort, []uint32{prHorizontal}})

	img, err := Decode(bytes.NewReader(rawTIFF(binary.LittleEndian, tags, pix)))
	if err != nil {
		t.Fatal(err)
	}

	m := img.(*image.NRGBA64)
	want := []color.NRGBA64{
		{R: 1000, G: 2000, B: 3000, A: 0xffff},
		{R: 1005, G: 1999, B: 3100, A: 0xffff},
	}

	for x, w := range want {
		if got := m.NRGBA64At(x, 0); got != w {
			t.Errorf("pixel %d = %+v, want %+v", x, got, w)
		}
	}
}

func TestPaletted(t *testing.T) {
	cmap := make([]uint32, 3*4)
	colors := []color.RGBA{{R: 255, A: 255}, {G: 255, A: 255}, {B: 255, A: 255}, {R: 10, G: 20, B: 30, A: 255}}
	for i, c := range colors {
		cmap[i] = uint32(c.R) * 0x101
		cmap[i+4] = uint32(c.G) * 0x101
		cmap[i+8] = uint32(c.B) * 0x101
	}

	tags := append(base(5, 1, pPaletted, 2), tag{tColorMap, dtShort, cmap})
	// Indices 3 2 1 0 3.
	img := decodeBGRA(t, rawTIFF(binary.LittleEndian, tags, []byte{0b11100100, 0b11000000}))

	for x, idx := range []int{3, 2, 1, 0, 3} {
		c := colors[idx]
		want := imagecodec.Bgra32{B: c.B, G: c.G, R: c.R, A: 255}
		if got := img.BGRAAt(x, 0); got != want {
			t.Errorf("pixel %d = %+v, want %+v", x, got, want)
		}
	}
}

func TestColorSpaces(t *testing.T) {
	testCases := []struct {
		name string
		tags []tag
		pix  []byte
		want []imagecodec.Bgra32
	}{
		{
			"CMYK",
			base(2, 1, pCMYK, 8, 8, 8, 8),
			[]byte{0, 255, 255, 0, 0, 0, 0, 255},
			[]imagecodec.Bgra32{{B: 0, G: 0, R: 255, A: 255}, {B: 0, G: 0, R: 0, A: 255}},
		},
		{
			"YCbCr",
			append(base(2, 1, pYCbCr, 8, 8, 8), tag{tYCbCrSubSampling, dtShort, []uint32{1, 1}}),
			[]byte{255, 128, 128, 0, 128, 128},
			[]imagecodec.Bgra32{{B: 255, G: 255, R: 255, A: 255}, {B: 0, G: 0, R: 0, A: 255}},
		},
		{
			"CIELab",
			base(2, 1, pCIELab, 8, 8, 8),
			[]byte{255, 0, 0, 0, 0, 0},
			[]imagecodec.Bgra32{{B: 255, G: 255, R: 255, A: 255}, {B: 0, G: 0, R: 0, A: 255}},
		},
		{
			"AssociatedAlpha",
			append(base(1, 1, pRGB, 8, 8, 8, 8), tag{tExtraSamples, dtShort, []uint32{esAssociated}}),
			[]byte{64, 32, 0, 128},
			[]imagecodec.Bgra32{{B: 0, G: 64, R: 128, A: 128}},
		},
		{
			"UnassociatedAlpha",
			append(base(1, 1, pRGB, 8, 8, 8, 8), tag{tExtraSamples, dtShort, []uint32{esUnassociated}}),
			[]byte{64, 32, 0, 128},
			[]imagecodec.Bgra32{{B: 0, G: 32, R: 64, A: 128}},
		},
		{
			"GrayAlpha",
			append(base(1, 1, pBlackIsZero, 8, 8), tag{tExtraSamples, dtShort, []uint32{esUnassociated}}),
			[]byte{200, 7},
			[]imagecodec.Bgra32{{B: 200, G: 200, R: 200, A: 7}},
		},
	}

	isClose := func(a, b uint8) bool {
		d := int(a) - int(b)
		return d >= -1 && d <= 1
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			img := decodeBGRA(t, rawTIFF(binary.LittleEndian, tc.tags, tc.pix))

			for x, want := range tc.want {
				got := img.BGRAAt(x, 0)
				if !isClose(got.B, want.B) || !isClose(got.G, want.G) || !isClose(got.R, want.R) || got.A != want.A {
					t.Errorf("pixel %d = %+v, want %+v", x, got, want)
				}
			}
		})
	}
}

func TestCCITT(t *testing.T) {
	// Eight all-white rows are eight V0 codes, then EOFB.
	g4 := []byte{0xff, 0x00, 0x10, 0x01}

	for _, photometric := range []uint32{pWhiteIsZero, pBlackIsZero} {
		tags := append(base(16, 8, photometric, 1), tag{tCompression, dtShort, []uint32{cG4}})
		img := decodeBGRA(t, rawTIFF(binary.LittleEndian, tags, g4))

		white := imagecodec.Bgra32{B: 255, G: 255, R: 255, A: 255}
		for y := 0; y < 8; y++ {
			for x := 0; x < 16; x++ {
				if got := img.BGRAAt(x, y); got != white {
					t.Fatalf("photometric %d: pixel (%d, %d) = %+v, want white", photometric, x, y, got)
				}
			}
		}
	}
}

func TestLZWCorruptStrip(t *testing.T) {
	// A clear code followed by an undefined code.
	tags := append(base(64, 1, pBlackIsZero, 8), tag{tCompression, dtShort, []uint32{cLZW}})
	img := decodeBGRA(t, rawTIFF(binary.LittleEndian, tags, []byte("\x80@\x8d0 ")))

	black := imagecodec.Bgra32{A: 255}
	for x := 0; x < 64; x++ {
		if got := img.BGRAAt(x, 0); got != black {
			t.Fatalf("pixel (%d, 0) = %+v, want black", x, got)
		}
	}
}

func TestPackBits(t *testing.T) {
	// The PackBits example from TIFF 6.0, section 9.
	packed := []byte{0xfe, 0xaa, 0x02, 0x80, 0x00, 0x2a, 0xfd, 0xaa, 0x03, 0x80, 0x00, 0x2a, 0x22, 0xf7, 0xaa}
	want := []byte{
		0xaa, 0xaa, 0xaa, 0x80, 0x00, 0x2a, 0xaa, 0xaa, 0xaa, 0xaa, 0x80, 0x00, 0x2a, 0x22,
		0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa,
	}

	got := make([]byte, len(want))
	if n := unpackBits(got, packed); n != len(want) || !bytes.Equal(got, want) {
		t.Fatalf("unpackBits = %x (%d bytes), want %x", got[:n], n, want)
	}

	long := bytes.Repeat([]byte{7}, 300)
	mixed := make([]byte, 500)
	for i := range mixed {
		mixed[i] = byte(i * i / 7)
	}

	inputs := map[string][]byte{
		"Empty":   {},
		"One":     {42},
		"Pair":    {1, 1},
		"Run":     long,
		"Mixed":   mixed,
		"Example": want,
		"Triple":  {1, 2, 3, 3, 3, 4},
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			enc := packBits(nil, in)
			dec := make([]byte, len(in))
			if n := unpackBits(dec, enc); n != len(in) || !bytes.Equal(dec, in) {
				t.Errorf("round trip = %v, want %v", dec[:n], in)
			}
		})
	}
}

func TestUnpackBitsTruncated(t *testing.T) {
	dst := make([]byte, 8)

	if n := unpackBits(dst, []byte{0x05, 1, 2}); n != 2 {
		t.Errorf("short literal wrote %d bytes, want 2", n)
	}

	if n := unpackBits(dst, []byte{0xfe}); n != 0 {
		t.Errorf("run without value wrote %d bytes, want 0", n)
	}

	if n := unpackBits(dst, []byte{0x80, 0xf0, 9}); n != 8 {
		t.Errorf("clamped run wrote %d bytes, want 8", n)
	}
}

func TestHorizontalPredictor(t *testing.T) {
	row := []byte{10, 20, 30, 11, 22, 33, 250, 5, 0}
	buf := slices.Clone(row)

	applyHorizontal(buf, 9, 3)
	if want := []byte{10, 20, 30, 1, 2, 3, 239, 239, 223}; !bytes.Equal(buf, want) {
		t.Fatalf("applyHorizontal = %v, want %v", buf, want)
	}

	undoHorizontal(buf, 9, 3, 8, binary.LittleEndian)
	if !bytes.Equal(buf, row) {
		t.Errorf("undoHorizontal = %v, want %v", buf, row)
	}
}

func TestDecodeConfig(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, testImage(7, 5)); err != nil {
		t.Fatal(err)
	}

	cfg, err := DecodeConfig(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Width != 7 || cfg.Height != 5 || cfg.ColorModel != imagecodec.BGRAModel {
		t.Errorf("DecodeConfig = %dx%d %v", cfg.Width, cfg.Height, cfg.ColorModel)
	}

	cfg, err = DecodeConfig(bytes.NewReader(rawTIFF(binary.BigEndian, base(3, 2, pBlackIsZero, 16), make([]byte, 12))))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ColorModel != color.NRGBA64Model {
		t.Errorf("16-bit color model = %v, want NRGBA64Model", cfg.ColorModel)
	}
}

func TestDecodeInfo(t *testing.T) {
	var buf bytes.Buffer
	opts := &EncoderOptions{Compression: LZW, Predictor: true, RowsPerStrip: 2, Software: "imgconv"}
	if err := Encode(&buf, testImage(6, 5), opts); err != nil {
		t.Fatal(err)
	}

	info, err := DecodeInfo(&buf)
	if err != nil {
		t.Fatal(err)
	}

	want := Info{
		ByteOrder:       binary.LittleEndian,
		Width:           6,
		Height:          5,
		BitsPerSample:   8,
		SamplesPerPixel: 4,
		Photometric:     pRGB,
		Compression:     cLZW,
		Predictor:       prHorizontal,
		RowsPerStrip:    2,
		XResolution:     72,
		YResolution:     72,
		Software:        "imgconv",
	}

	if *info != want {
		t.Errorf("DecodeInfo = %+v, want %+v", *info, want)
	}
}

func TestDecodeErrors(t *testing.T) {
	gray := base(2, 2, pBlackIsZero, 8)
	pix := []byte{1, 2, 3, 4}

	valid := rawTIFF(binary.LittleEndian, gray, pix)
	badOffset := slices.Clone(valid)
	binary.LittleEndian.PutUint32(badOffset[4:], 1<<20)

	stripPastEnd := rawTIFF(binary.LittleEndian, append(slices.Clone(gray),
		tag{tStripOffsets, dtLong, []uint32{1 << 20}},
		tag{tStripByteCounts, dtLong, []uint32{4}},
	))

	testCases := []struct {
		name string
		data []byte
		want error
	}{
		{"Empty", nil, imagecodec.ErrFormat},
		{"BadMarker", []byte("XX*\x00\x08\x00\x00\x00"), imagecodec.ErrFormat},
		{"BadIFDOffset", badOffset, imagecodec.ErrFormat},
		{"MissingPhotometric", rawTIFF(binary.LittleEndian, gray[:4], pix), imagecodec.ErrFormat},
		{"ZeroWidth", rawTIFF(binary.LittleEndian, base(0, 2, pBlackIsZero, 8), pix), imagecodec.ErrFormat},
		{"Tiled", rawTIFF(binary.LittleEndian, append(slices.Clone(gray), tag{tTileWidth, dtShort, []uint32{16}}), pix), imagecodec.ErrUnsupported},
		{"Planar", rawTIFF(binary.LittleEndian, append(slices.Clone(gray), tag{tPlanarConfiguration, dtShort, []uint32{2}}), pix), imagecodec.ErrUnsupported},
		{"JPEG", rawTIFF(binary.LittleEndian, append(slices.Clone(gray), tag{tCompression, dtShort, []uint32{cJPEG}}), pix), imagecodec.ErrUnsupported},
		{"FloatPredictor", rawTIFF(binary.LittleEndian, append(slices.Clone(gray), tag{tPredictor, dtShort, []uint32{3}}), pix), imagecodec.ErrUnsupported},
		{"Gray12", rawTIFF(binary.LittleEndian, base(2, 2, pBlackIsZero, 12), pix), imagecodec.ErrUnsupported},
		{"YCbCrSubsampled", rawTIFF(binary.LittleEndian, base(2, 2, pYCbCr, 8, 8, 8), pix), imagecodec.ErrUnsupported},
		{"TransparencyMask", rawTIFF(binary.LittleEndian, base(2, 2, 4, 8), pix), imagecodec.ErrUnsupported},
		{"ShortColorMap", rawTIFF(binary.LittleEndian, append(base(2, 2, pPaletted, 8), tag{tColorMap, dtShort, []uint32{1, 2, 3}}), pix), imagecodec.ErrFormat},
		{"CCITTOnRGB", rawTIFF(binary.LittleEndian, append(base(2, 2, pRGB, 8, 8, 8), tag{tCompression, dtShort, []uint32{cG4}}), pix), imagecodec.ErrFormat},
		{"TooWide", rawTIFF(binary.LittleEndian, base(1<<16, 1, pBlackIsZero, 8), pix), imagecodec.ErrOutOfRange},
		{"TruncatedStrip", rawTIFF(binary.LittleEndian, gray, pix[:3]), imagecodec.ErrOutOfData},
		{"StripPastEnd", stripPastEnd, imagecodec.ErrOutOfData},
		{"BadFillOrder", rawTIFF(binary.LittleEndian, append(slices.Clone(gray), tag{tFillOrder, dtShort, []uint32{3}}), pix), imagecodec.ErrFormat},
		{"MissingStrips", rawTIFF(binary.LittleEndian, gray), imagecodec.ErrFormat},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tc.data))
			if !errors.Is(err, tc.want) {
				t.Errorf("Decode error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestLimits(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, testImage(5, 3)); err != nil {
		t.Fatal(err)
	}

	_, err := Decode(bytes.NewReader(buf.Bytes()), &Options{imagecodec.Limits{MaxWidth: 4}})
	if !errors.Is(err, imagecodec.ErrOutOfRange) {
		t.Errorf("Decode error = %v, want ErrOutOfRange", err)
	}
}

func TestEncodeErrors(t *testing.T) {
	var buf bytes.Buffer

	if err := Encode(&buf, testImage(2, 2), &EncoderOptions{Compression: Compression(cJPEG)}); !errors.Is(err, imagecodec.ErrUnsupported) {
		t.Errorf("JPEG compression error = %v, want ErrUnsupported", err)
	}

	if err := Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 0, 0))); !errors.Is(err, imagecodec.ErrFormat) {
		t.Errorf("empty image error = %v, want ErrFormat", err)
	}
}

func TestCompressionString(t *testing.T) {
	for c, want := range map[Compression]string{None: "none", LZW: "lzw", Deflate: "deflate", PackBits: "packbits", Zstd: "zstd", 7: "unknown"} {
		if got := c.String(); got != want {
			t.Errorf("Compression(%d).String() = %q, want %q", int(c), got, want)
		}
	}
}

func TestRegisterFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, testImage(3, 3)); err != nil {
		t.Fatal(err)
	}

	_, format, err := image.Decode(&buf)
	if err != nil {
		t.Fatalf("image.Decode failed: %v", err)
	}

	if format != "tiff" {
		t.Errorf("format = %q, want tiff", format)
	}
}

// FuzzDecode tests the Decode function for panics with a variety of inputs.
func FuzzDecode(f *testing.F) {
	for _, c := range []Compression{None, LZW, Deflate, PackBits, Zstd} {
		var buf bytes.Buffer
		if err := Encode(&buf, testImage(5, 3), &EncoderOptions{Compression: c, Predictor: true, RowsPerStrip: 2}); err == nil {
			f.Add(buf.Bytes())
		}
	}

	f.Add(rawTIFF(binary.BigEndian, base(3, 2, pBlackIsZero, 16), make([]byte, 12)))
	f.Add(rawTIFF(binary.LittleEndian, append(base(64, 1, pBlackIsZero, 8), tag{tCompression, dtShort, []uint32{cLZW}}), []byte("\x80@\x8d0 ")))

	opts := &Options{imagecodec.Limits{MaxWidth: 1024, MaxHeight: 1024}}

	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = Decode(bytes.NewReader(data), opts)
		_, _ = DecodeConfig(bytes.NewReader(data))
		_, _ = DecodeInfo(bytes.NewReader(data))
	})
}
