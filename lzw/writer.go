package lzw

import (
	"bufio"
	"io"
)

// tableFull is the dictionary size at which the encoder emits a clear code.
// Two codes below MaxStackSize keeps early-change readers at 12 bits.
const tableFull = MaxStackSize - 2

// Encoder compresses a byte stream as TIFF LZW: MSB first, early change,
// 8-bit literals.
type Encoder struct {
	w     *bufio.Writer
	table map[uint32]int

	acc   uint32
	nbits int
	width int
	next  int
	code  int // Pending prefix code, -1 when empty.
	err   error
}

// NewEncoder returns an encoder writing to w. Close must be called to flush
// the stream.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{
		w:     bufio.NewWriter(w),
		table: make(map[uint32]int, MaxStackSize),
		code:  -1,
	}
	e.reset()
	e.emit(1 << 8)

	return e
}

func (e *Encoder) reset() {
	clear(e.table)
	e.width = 9
	e.next = 1<<8 + 2
}

func (e *Encoder) emit(code int) {
	e.acc = e.acc<<e.width | uint32(code)
	e.nbits += e.width

	for e.nbits >= 8 {
		e.nbits -= 8
		if e.err == nil {
			e.err = e.w.WriteByte(byte(e.acc >> e.nbits))
		}
	}

	e.acc &= 1<<e.nbits - 1
}

// grow advances the code counter the way an early-change reader does.
func (e *Encoder) grow() {
	e.next++
	if e.next == 1<<e.width && e.width < maxCodeWidth {
		e.width++
	}
}

// Write implements io.Writer.
func (e *Encoder) Write(p []byte) (int, error) {
	for _, c := range p {
		if e.code < 0 {
			e.code = int(c)

			continue
		}

		key := uint32(e.code)<<8 | uint32(c)
		if code, ok := e.table[key]; ok {
			e.code = code

			continue
		}

		e.emit(e.code)
		e.table[key] = e.next
		e.grow()

		if e.next == tableFull {
			e.emit(1 << 8)
			e.reset()
		}

		e.code = int(c)
	}

	return len(p), e.err
}

// Close flushes the pending code and the end-of-information code.
func (e *Encoder) Close() error {
	if e.code >= 0 {
		e.emit(e.code)
		e.grow()
		e.code = -1
	}

	e.emit(1<<8 + 1)
	if e.nbits > 0 && e.err == nil {
		e.err = e.w.WriteByte(byte(e.acc << (8 - e.nbits)))
	}

	if e.err != nil {
		return e.err
	}

	return e.w.Flush()
}
