// Package quantize reduces an image to a bounded palette with Xiaolin Wu's
// variance-minimizing colour quantizer, extended with an alpha axis.
package quantize

import (
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/gen2brain/imagecodec"
	"github.com/gen2brain/imagecodec/internal/parallel"
)

// Histogram geometry. Each of R, G and B keeps IndexBits bits, alpha keeps
// IndexAlphaBits. Every axis gets one extra zero cell for the prefix sums.
const (
	IndexBits       = 6
	IndexAlphaBits  = 3
	IndexCount      = 1<<IndexBits + 1
	IndexAlphaCount = 1<<IndexAlphaBits + 1
	TableLength     = IndexCount * IndexCount * IndexCount * IndexAlphaCount
)

// MaxColors is the largest palette Quantize produces.
const MaxColors = 256

// weightEpsilon gates the division when computing a box mean.
const weightEpsilon = 0.001

// Axis identifiers, in tie-break priority order.
const (
	axisRed = iota
	axisGreen
	axisBlue
	axisAlpha
)

// GetPaletteIndex returns the table index of a histogram cell.
func GetPaletteIndex(r, g, b, a int) int {
	return (r << ((IndexBits * 2) + IndexAlphaBits)) +
		(r << (IndexBits + IndexAlphaBits + 1)) +
		(g << (IndexBits + IndexAlphaBits)) +
		(r << (IndexBits * 2)) +
		(r << (IndexBits + 1)) +
		(g << IndexBits) +
		((r + g + b) << IndexAlphaBits) +
		r + g + b + a
}

// Box is a half-open range (R0, R1] x (G0, G1] x (B0, B1] x (A0, A1] of
// histogram cells.
type Box struct {
	R0, R1 int
	G0, G1 int
	B0, B1 int
	A0, A1 int
	// Volume is the number of cells in the box.
	Volume int
}

func (b *Box) updateVolume() {
	b.Volume = (b.R1 - b.R0) * (b.G1 - b.G0) * (b.B1 - b.B0) * (b.A1 - b.A0)
}

// lo and hi return the bounds of the box on an axis.
func (b *Box) lo(axis int) int {
	switch axis {
	case axisRed:
		return b.R0
	case axisGreen:
		return b.G0
	case axisBlue:
		return b.B0
	default:
		return b.A0
	}
}

func (b *Box) hi(axis int) int {
	switch axis {
	case axisRed:
		return b.R1
	case axisGreen:
		return b.G1
	case axisBlue:
		return b.B1
	default:
		return b.A1
	}
}

// Result is a quantized image. Pix holds one palette index per pixel, row
// major, Width per row.
type Result struct {
	Width, Height int
	Palette       []imagecodec.Bgra32
	Pix           []uint8
	// TransparentIndex is the first fully transparent palette entry, or -1.
	TransparentIndex int
	// Variance is the summed within-box variance of the final partition.
	Variance float64
}

// Paletted converts r to a standard library paletted image.
func (r *Result) Paletted() *image.Paletted {
	pal := make(color.Palette, len(r.Palette))
	for i, c := range r.Palette {
		pal[i] = color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
	}

	return &image.Paletted{
		Pix:     r.Pix,
		Stride:  r.Width,
		Rect:    image.Rect(0, 0, r.Width, r.Height),
		Palette: pal,
	}
}

// moments is the working set of a single quantization run. It is threaded
// through the histogram, moment and partition phases in that order.
type moments struct {
	vwt, vmr, vmg, vmb, vma []int64
	m2                      []float64
	tag                     []uint8
}

var momentsPool = sync.Pool{
	New: func() any {
		return &moments{
			vwt: make([]int64, TableLength),
			vmr: make([]int64, TableLength),
			vmg: make([]int64, TableLength),
			vmb: make([]int64, TableLength),
			vma: make([]int64, TableLength),
			m2:  make([]float64, TableLength),
			tag: make([]uint8, TableLength),
		}
	},
}

func (m *moments) reset() {
	clear(m.vwt)
	clear(m.vmr)
	clear(m.vmg)
	clear(m.vmb)
	clear(m.vma)
	clear(m.m2)
	clear(m.tag)
}

// Wu is the Wu colour quantizer. The zero value is ready to use.
type Wu struct{}

// Quantize reduces img to at most maxColors colours. maxColors is clamped
// to [1, MaxColors]. The palette can be shorter than requested when the
// image has fewer distinct histogram cells.
func (Wu) Quantize(img image.Image, maxColors int) *Result {
	maxColors = max(1, min(maxColors, MaxColors))

	src := imagecodec.ToBGRA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()

	m := momentsPool.Get().(*moments)
	defer momentsPool.Put(m)
	m.reset()

	m.buildHistogram(src)
	m.buildMoments()

	boxes := m.partition(maxColors)

	res := &Result{
		Width:            w,
		Height:           h,
		Palette:          make([]imagecodec.Bgra32, len(boxes)),
		Pix:              make([]uint8, w*h),
		TransparentIndex: -1,
	}

	for k := range boxes {
		m.mark(&boxes[k], uint8(k))
		res.Palette[k] = m.mean(&boxes[k])
		res.Variance += m.variance(&boxes[k])

		if res.TransparentIndex < 0 && res.Palette[k] == imagecodec.Empty {
			res.TransparentIndex = k
		}
	}

	parallel.Rows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+w*4]
			dst := res.Pix[y*w : (y+1)*w]
			for x := range dst {
				p := row[x*4 : x*4+4 : x*4+4]
				dst[x] = m.tag[cellIndex(p[2], p[1], p[0], p[3])]
			}
		}
	})

	return res
}

// cellIndex maps a colour to its histogram cell.
func cellIndex(r, g, b, a uint8) int {
	return GetPaletteIndex(
		int(r>>(8-IndexBits))+1,
		int(g>>(8-IndexBits))+1,
		int(b>>(8-IndexBits))+1,
		int(a>>(8-IndexAlphaBits))+1,
	)
}

func (m *moments) buildHistogram(src *imagecodec.BGRA) {
	w, h := src.Rect.Dx(), src.Rect.Dy()

	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for x := 0; x < w; x++ {
			b, g, r, a := row[x*4], row[x*4+1], row[x*4+2], row[x*4+3]
			i := cellIndex(r, g, b, a)

			m.vwt[i]++
			m.vmr[i] += int64(r)
			m.vmg[i] += int64(g)
			m.vmb[i] += int64(b)
			m.vma[i] += int64(a)

			fr, fg, fb, fa := float64(r), float64(g), float64(b), float64(a)
			m.m2[i] += fr*fr + fg*fg + fb*fb + fa*fa
		}
	}
}

// buildMoments converts the histogram into cumulative moments in place.
func (m *moments) buildMoments() {
	var vol, volR, volG, volB, volA [IndexCount * IndexAlphaCount]int64
	var vol2 [IndexCount * IndexAlphaCount]float64
	var area, areaR, areaG, areaB, areaA [IndexAlphaCount]int64
	var area2 [IndexAlphaCount]float64

	redStride := GetPaletteIndex(1, 0, 0, 0)

	for r := 1; r < IndexCount; r++ {
		clear(vol[:])
		clear(volR[:])
		clear(volG[:])
		clear(volB[:])
		clear(volA[:])
		clear(vol2[:])

		for g := 1; g < IndexCount; g++ {
			clear(area[:])
			clear(areaR[:])
			clear(areaG[:])
			clear(areaB[:])
			clear(areaA[:])
			clear(area2[:])

			for b := 1; b < IndexCount; b++ {
				var line, lineR, lineG, lineB, lineA int64
				var line2 float64

				for a := 1; a < IndexAlphaCount; a++ {
					ind1 := GetPaletteIndex(r, g, b, a)

					line += m.vwt[ind1]
					lineR += m.vmr[ind1]
					lineG += m.vmg[ind1]
					lineB += m.vmb[ind1]
					lineA += m.vma[ind1]
					line2 += m.m2[ind1]

					area[a] += line
					areaR[a] += lineR
					areaG[a] += lineG
					areaB[a] += lineB
					areaA[a] += lineA
					area2[a] += line2

					inv := b*IndexAlphaCount + a
					vol[inv] += area[a]
					volR[inv] += areaR[a]
					volG[inv] += areaG[a]
					volB[inv] += areaB[a]
					volA[inv] += areaA[a]
					vol2[inv] += area2[a]

					ind2 := ind1 - redStride
					m.vwt[ind1] = m.vwt[ind2] + vol[inv]
					m.vmr[ind1] = m.vmr[ind2] + volR[inv]
					m.vmg[ind1] = m.vmg[ind2] + volG[inv]
					m.vmb[ind1] = m.vmb[ind2] + volB[inv]
					m.vma[ind1] = m.vma[ind2] + volA[inv]
					m.m2[ind1] = m.m2[ind2] + vol2[inv]
				}
			}
		}
	}
}

// corner returns the table index of a box corner where axis is fixed to pos
// and the other three axes take their low bound when the matching bit of
// lows is set.
func corner(b *Box, axis, pos, lows int) int {
	c := [4]int{b.R1, b.G1, b.B1, b.A1}
	lo := [4]int{b.R0, b.G0, b.B0, b.A0}

	bit := 0
	for i := 0; i < 4; i++ {
		if i == axis {
			c[i] = pos
			continue
		}

		if lows&(1<<bit) != 0 {
			c[i] = lo[i]
		}
		bit++
	}

	return GetPaletteIndex(c[0], c[1], c[2], c[3])
}

// cornerSum adds the eight corners of the box face at axis = pos with
// inclusion-exclusion signs over the remaining three axes.
func cornerSum[T int64 | float64](b *Box, axis, pos int, moment []T) T {
	var sum T
	for lows := 0; lows < 8; lows++ {
		v := moment[corner(b, axis, pos, lows)]

		// Odd number of low bounds subtracts.
		if (lows&1)^(lows>>1&1)^(lows>>2&1) != 0 {
			sum -= v
		} else {
			sum += v
		}
	}

	return sum
}

// volume sums moment over the box with 16-term inclusion-exclusion.
func volume[T int64 | float64](b *Box, moment []T) T {
	return cornerSum(b, axisRed, b.R1, moment) - cornerSum(b, axisRed, b.R0, moment)
}

// bottom is the part of volume that does not depend on the cut position.
func bottom[T int64 | float64](b *Box, axis int, moment []T) T {
	return -cornerSum(b, axis, b.lo(axis), moment)
}

// top is the part of volume at the cut position pos.
func top[T int64 | float64](b *Box, axis, pos int, moment []T) T {
	return cornerSum(b, axis, pos, moment)
}

func (m *moments) variance(b *Box) float64 {
	w := float64(volume(b, m.vwt))
	if w == 0 {
		return 0
	}

	dr := float64(volume(b, m.vmr))
	dg := float64(volume(b, m.vmg))
	db := float64(volume(b, m.vmb))
	da := float64(volume(b, m.vma))
	xx := volume(b, m.m2)

	return xx - (dr*dr+dg*dg+db*db+da*da)/w
}

// maximize finds the cut position on axis that maximizes the summed
// squared means of the two halves. cut is -1 when no position splits the
// weight.
func (m *moments) maximize(b *Box, axis int, whole [5]float64) (float64, int) {
	baseR := float64(bottom(b, axis, m.vmr))
	baseG := float64(bottom(b, axis, m.vmg))
	baseB := float64(bottom(b, axis, m.vmb))
	baseA := float64(bottom(b, axis, m.vma))
	baseW := float64(bottom(b, axis, m.vwt))

	best, cut := 0.0, -1
	for i := b.lo(axis) + 1; i < b.hi(axis); i++ {
		halfR := baseR + float64(top(b, axis, i, m.vmr))
		halfG := baseG + float64(top(b, axis, i, m.vmg))
		halfB := baseB + float64(top(b, axis, i, m.vmb))
		halfA := baseA + float64(top(b, axis, i, m.vma))
		halfW := baseW + float64(top(b, axis, i, m.vwt))

		if halfW == 0 {
			continue
		}

		temp := (halfR*halfR + halfG*halfG + halfB*halfB + halfA*halfA) / halfW

		halfR = whole[0] - halfR
		halfG = whole[1] - halfG
		halfB = whole[2] - halfB
		halfA = whole[3] - halfA
		halfW = whole[4] - halfW

		if halfW == 0 {
			continue
		}

		temp += (halfR*halfR + halfG*halfG + halfB*halfB + halfA*halfA) / halfW

		if temp > best {
			best, cut = temp, i
		}
	}

	return best, cut
}

// cut splits set1 in place and stores the carved out part in set2. It
// reports false when the box cannot be split.
func (m *moments) cut(set1, set2 *Box) bool {
	whole := [5]float64{
		float64(volume(set1, m.vmr)),
		float64(volume(set1, m.vmg)),
		float64(volume(set1, m.vmb)),
		float64(volume(set1, m.vma)),
		float64(volume(set1, m.vwt)),
	}

	maxR, cutR := m.maximize(set1, axisRed, whole)
	maxG, cutG := m.maximize(set1, axisGreen, whole)
	maxB, cutB := m.maximize(set1, axisBlue, whole)
	maxA, cutA := m.maximize(set1, axisAlpha, whole)

	*set2 = Box{R1: set1.R1, G1: set1.G1, B1: set1.B1, A1: set1.A1}

	switch {
	case maxR >= maxG && maxR >= maxB && maxR >= maxA:
		if cutR < 0 {
			return false
		}

		set2.R0, set1.R1 = cutR, cutR
		set2.G0, set2.B0, set2.A0 = set1.G0, set1.B0, set1.A0
	case maxG >= maxR && maxG >= maxB && maxG >= maxA:
		set2.G0, set1.G1 = cutG, cutG
		set2.R0, set2.B0, set2.A0 = set1.R0, set1.B0, set1.A0
	case maxB >= maxR && maxB >= maxG && maxB >= maxA:
		set2.B0, set1.B1 = cutB, cutB
		set2.R0, set2.G0, set2.A0 = set1.R0, set1.G0, set1.A0
	default:
		set2.A0, set1.A1 = cutA, cutA
		set2.R0, set2.G0, set2.B0 = set1.R0, set1.G0, set1.B0
	}

	set1.updateVolume()
	set2.updateVolume()

	return true
}

// partition splits the full histogram into at most colorCount boxes,
// always cutting the box with the largest variance next.
func (m *moments) partition(colorCount int) []Box {
	boxes := make([]Box, colorCount)
	vv := make([]float64, colorCount)

	boxes[0] = Box{R1: IndexCount - 1, G1: IndexCount - 1, B1: IndexCount - 1, A1: IndexAlphaCount - 1}
	boxes[0].updateVolume()

	next := 0
	for i := 1; i < colorCount; i++ {
		if m.cut(&boxes[next], &boxes[i]) {
			vv[next] = m.boxVariance(&boxes[next])
			vv[i] = m.boxVariance(&boxes[i])
		} else {
			vv[next] = 0
			i--
		}

		next = 0
		temp := vv[0]
		for k := 1; k <= i; k++ {
			if vv[k] > temp {
				temp, next = vv[k], k
			}
		}

		if temp <= 0 {
			return boxes[:i+1]
		}
	}

	return boxes
}

// boxVariance is the variance used to rank boxes; single cells cannot be cut.
func (m *moments) boxVariance(b *Box) float64 {
	if b.Volume > 1 {
		return m.variance(b)
	}

	return 0
}

// mark paints every cell of the box with label.
func (m *moments) mark(b *Box, label uint8) {
	for r := b.R0 + 1; r <= b.R1; r++ {
		for g := b.G0 + 1; g <= b.G1; g++ {
			for bl := b.B0 + 1; bl <= b.B1; bl++ {
				for a := b.A0 + 1; a <= b.A1; a++ {
					m.tag[GetPaletteIndex(r, g, bl, a)] = label
				}
			}
		}
	}
}

// mean returns the weighted average colour of the box, or Empty when the
// box holds no weight.
func (m *moments) mean(b *Box) imagecodec.Bgra32 {
	w := float64(volume(b, m.vwt))
	if math.Abs(w) <= weightEpsilon {
		return imagecodec.Empty
	}

	return imagecodec.Bgra32{
		B: round8(float64(volume(b, m.vmb)) / w),
		G: round8(float64(volume(b, m.vmg)) / w),
		R: round8(float64(volume(b, m.vmr)) / w),
		A: round8(float64(volume(b, m.vma)) / w),
	}
}

func round8(v float64) uint8 {
	return uint8(max(0, min(255, math.Round(v))))
}
