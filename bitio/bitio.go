// Package bitio extracts and packs arbitrary bit-width fields, most
// significant bit first within each byte.
package bitio

import (
	"fmt"

	"github.com/gen2brain/imagecodec"
)

// BitReader reads fields from a borrowed byte slice. The zero value reads
// from an empty slice.
type BitReader struct {
	data      []byte
	offset    int  // Index of the byte holding the next bit.
	bitOffset uint // Bits already consumed from data[offset], in [0, 8).
}

// NewReader returns a reader positioned at the first bit of data.
func NewReader(data []byte) *BitReader {
	return &BitReader{data: data}
}

// ReadBits extracts the next n bits (1 <= n <= 32).
func (br *BitReader) ReadBits(n int) (uint32, error) {
	if n < 1 || n > 32 {
		return 0, fmt.Errorf("bitio: invalid bit count %d", n)
	}

	avail := (len(br.data)-br.offset)*8 - int(br.bitOffset)
	if n > avail {
		return 0, imagecodec.OutOfData(fmt.Sprintf("%d bits at byte %d", n, br.offset), nil)
	}

	// Fast path for byte-aligned 8-bit reads.
	if n == 8 && br.bitOffset == 0 {
		v := br.data[br.offset]
		br.offset++

		return uint32(v), nil
	}

	var v uint32
	for n > 0 {
		left := 8 - int(br.bitOffset)
		take := min(left, n)
		shift := left - take
		bits := (uint32(br.data[br.offset]) >> shift) & (1<<take - 1)
		v = v<<take | bits

		n -= take
		br.bitOffset += uint(take)
		if br.bitOffset == 8 {
			br.bitOffset = 0
			br.offset++
		}
	}

	return v, nil
}

// NextRow discards any partial byte so the next read starts on a byte boundary.
func (br *BitReader) NextRow() {
	if br.bitOffset != 0 {
		br.bitOffset = 0
		br.offset++
	}
}

// Offset returns the index of the byte holding the next bit.
func (br *BitReader) Offset() int { return br.offset }

// BitWriter packs fields into a growing byte slice.
type BitWriter struct {
	buf  []byte
	acc  byte
	nbit uint // Bits already used in acc, in [0, 8).
}

// NewWriter returns a writer with the given capacity hint in bytes.
func NewWriter(size int) *BitWriter {
	return &BitWriter{buf: make([]byte, 0, size)}
}

// WriteBits appends the low n bits of v (1 <= n <= 32).
func (bw *BitWriter) WriteBits(v uint32, n int) {
	for n > 0 {
		space := 8 - int(bw.nbit)
		take := min(space, n)
		bits := byte(v>>(n-take)) & byte(1<<take-1)
		bw.acc |= bits << (space - take)

		n -= take
		bw.nbit += uint(take)
		if bw.nbit == 8 {
			bw.buf = append(bw.buf, bw.acc)
			bw.acc, bw.nbit = 0, 0
		}
	}
}

// NextRow pads the current byte with zero bits.
func (bw *BitWriter) NextRow() {
	if bw.nbit != 0 {
		bw.buf = append(bw.buf, bw.acc)
		bw.acc, bw.nbit = 0, 0
	}
}

// Bytes flushes any partial byte and returns the packed data.
func (bw *BitWriter) Bytes() []byte {
	bw.NextRow()

	return bw.buf
}
