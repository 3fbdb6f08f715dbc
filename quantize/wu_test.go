package quantize

import (
	"image"
	"image/color"
	"testing"

	"github.com/gen2brain/imagecodec"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}

	return img
}

// gradient returns an image with many distinct histogram cells.
func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / (w - 1)),
				G: uint8(y * 255 / (h - 1)),
				B: uint8((x + y) * 127 / (w + h - 2)),
				A: uint8(255 - (x*y)%96),
			})
		}
	}

	return img
}

func TestGetPaletteIndex(t *testing.T) {
	for _, c := range [][4]int{{0, 0, 0, 0}, {1, 0, 0, 0}, {1, 2, 3, 4}, {64, 64, 64, 8}, {17, 40, 63, 5}} {
		r, g, b, a := c[0], c[1], c[2], c[3]
		want := r*IndexCount*IndexCount*IndexAlphaCount + g*IndexCount*IndexAlphaCount + b*IndexAlphaCount + a
		if got := GetPaletteIndex(r, g, b, a); got != want {
			t.Errorf("GetPaletteIndex(%d, %d, %d, %d) = %d, want %d", r, g, b, a, got, want)
		}
	}

	if last := GetPaletteIndex(IndexCount-1, IndexCount-1, IndexCount-1, IndexAlphaCount-1); last != TableLength-1 {
		t.Errorf("last index = %d, want %d", last, TableLength-1)
	}
}

func TestQuantizeSolidRed(t *testing.T) {
	res := Wu{}.Quantize(solid(2, 2, color.NRGBA{R: 255, A: 255}), 1)

	if len(res.Palette) != 1 {
		t.Fatalf("palette length = %d, want 1", len(res.Palette))
	}

	want := imagecodec.Bgra32{B: 0, G: 0, R: 255, A: 255}
	if res.Palette[0] != want {
		t.Errorf("palette[0] = %+v, want %+v", res.Palette[0], want)
	}

	for i, idx := range res.Pix {
		if idx != 0 {
			t.Errorf("pixel %d index = %d, want 0", i, idx)
		}
	}

	if res.TransparentIndex != -1 {
		t.Errorf("TransparentIndex = %d, want -1", res.TransparentIndex)
	}

	if res.Width != 2 || res.Height != 2 || len(res.Pix) != 4 {
		t.Errorf("result geometry %dx%d with %d indices", res.Width, res.Height, len(res.Pix))
	}
}

// TestQuantizeColorCeiling uses 16 colours in distinct histogram cells.
func TestQuantizeColorCeiling(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 16; x++ {
			v := uint8(x * 16)
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: 255 - v, B: v / 2, A: 255})
		}
	}

	testCases := []struct {
		maxColors int
		want      int
	}{
		{1, 1},
		{2, 2},
		{4, 4},
		{7, 7},
		{16, 16},
		{256, 16},
	}

	for _, tc := range testCases {
		res := Wu{}.Quantize(img, tc.maxColors)
		if len(res.Palette) != tc.want {
			t.Errorf("maxColors %d: palette length = %d, want %d", tc.maxColors, len(res.Palette), tc.want)
		}

		for i, idx := range res.Pix {
			if int(idx) >= len(res.Palette) {
				t.Fatalf("maxColors %d: pixel %d index %d outside palette", tc.maxColors, i, idx)
			}
		}
	}

	// With a box per cell every pixel maps back to its own colour.
	res := Wu{}.Quantize(img, 16)
	for y := 0; y < 4; y++ {
		for x := 0; x < 16; x++ {
			c := img.NRGBAAt(x, y)
			got := res.Palette[res.Pix[y*16+x]]
			if got.R != c.R || got.G != c.G || got.B != c.B || got.A != c.A {
				t.Errorf("pixel (%d, %d) = %+v, want %+v", x, y, got, c)
			}
		}
	}
}

func TestQuantizeMonotonic(t *testing.T) {
	img := gradient(48, 40)

	prev := -1.0
	for _, k := range []int{1, 2, 3, 4, 8, 16, 32, 64, 128, 256} {
		res := Wu{}.Quantize(img, k)
		if len(res.Palette) > k {
			t.Fatalf("k=%d: palette length %d", k, len(res.Palette))
		}

		if prev >= 0 && res.Variance > prev*(1+1e-9)+1e-6 {
			t.Errorf("k=%d: variance %v exceeds %v", k, res.Variance, prev)
		}

		prev = res.Variance
	}
}

func TestQuantizeClamp(t *testing.T) {
	img := gradient(32, 32)

	if res := (Wu{}).Quantize(img, 0); len(res.Palette) != 1 {
		t.Errorf("maxColors 0: palette length = %d, want 1", len(res.Palette))
	}

	if res := (Wu{}).Quantize(img, -5); len(res.Palette) != 1 {
		t.Errorf("maxColors -5: palette length = %d, want 1", len(res.Palette))
	}

	if res := (Wu{}).Quantize(img, 1000); len(res.Palette) > MaxColors {
		t.Errorf("maxColors 1000: palette length = %d, want <= %d", len(res.Palette), MaxColors)
	}
}

func TestQuantizeTransparentIndex(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if x < 2 {
				img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
			}
		}
	}

	res := Wu{}.Quantize(img, 2)
	if len(res.Palette) != 2 {
		t.Fatalf("palette length = %d, want 2", len(res.Palette))
	}

	ti := res.TransparentIndex
	if ti < 0 || res.Palette[ti] != imagecodec.Empty {
		t.Fatalf("TransparentIndex = %d, palette %v", ti, res.Palette)
	}

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			idx := int(res.Pix[y*4+x])
			if (x >= 2) != (idx == ti) {
				t.Errorf("pixel (%d, %d) index = %d, transparent index %d", x, y, idx, ti)
			}
		}
	}
}

func TestQuantizeEmptyImage(t *testing.T) {
	res := Wu{}.Quantize(image.NewNRGBA(image.Rectangle{}), 16)

	if len(res.Palette) != 1 || res.Palette[0] != imagecodec.Empty {
		t.Errorf("palette = %v, want [Empty]", res.Palette)
	}

	if res.TransparentIndex != 0 {
		t.Errorf("TransparentIndex = %d, want 0", res.TransparentIndex)
	}

	if len(res.Pix) != 0 {
		t.Errorf("len(Pix) = %d, want 0", len(res.Pix))
	}
}

func TestResultPaletted(t *testing.T) {
	img := gradient(20, 10)
	res := Wu{}.Quantize(img, 8)
	p := res.Paletted()

	if p.Bounds() != img.Bounds() {
		t.Fatalf("bounds = %v, want %v", p.Bounds(), img.Bounds())
	}

	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			want := res.Palette[res.Pix[y*20+x]]
			got := color.NRGBAModel.Convert(p.At(x, y)).(color.NRGBA)
			if got.A != want.A || (want.A != 0 && (got.R != want.R || got.G != want.G || got.B != want.B)) {
				t.Errorf("At(%d, %d) = %+v, want %+v", x, y, got, want)
			}
		}
	}
}

func BenchmarkQuantize(b *testing.B) {
	img := gradient(256, 256)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		Wu{}.Quantize(img, 256)
	}
}
