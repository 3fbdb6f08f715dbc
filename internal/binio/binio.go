// Package binio reads and writes fixed-layout binary headers.
package binio

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gen2brain/imagecodec"
)

// Fields is a cursor over a fixed-size header. Reads never go past the
// header size; a read beyond it returns zero and marks the cursor as overrun.
type Fields struct {
	data    []byte
	order   binary.ByteOrder
	off     int
	overrun bool
}

// ReadHeader reads exactly size bytes from r. A short stream is reported as
// ErrFormat.
func ReadHeader(r io.Reader, size int, order binary.ByteOrder) (*Fields, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}

		return nil, imagecodec.FormatError("header shorter than %d bytes: %w", size, err)
	}

	return NewFields(buf, order), nil
}

// NewFields wraps an already read header.
func NewFields(data []byte, order binary.ByteOrder) *Fields {
	return &Fields{data: data, order: order}
}

func (f *Fields) take(n int) []byte {
	if f.off+n > len(f.data) {
		f.overrun = true
		f.off = len(f.data)

		return nil
	}

	b := f.data[f.off : f.off+n]
	f.off += n

	return b
}

// U8 reads an unsigned byte.
func (f *Fields) U8() uint8 {
	b := f.take(1)
	if b == nil {
		return 0
	}

	return b[0]
}

// U16 reads an unsigned 16-bit field.
func (f *Fields) U16() uint16 {
	b := f.take(2)
	if b == nil {
		return 0
	}

	return f.order.Uint16(b)
}

// U32 reads an unsigned 32-bit field.
func (f *Fields) U32() uint32 {
	b := f.take(4)
	if b == nil {
		return 0
	}

	return f.order.Uint32(b)
}

// I16 reads a signed 16-bit field.
func (f *Fields) I16() int16 { return int16(f.U16()) }

// I32 reads a signed 32-bit field.
func (f *Fields) I32() int32 { return int32(f.U32()) }

// FourCC reads a four-character code.
func (f *Fields) FourCC() [4]byte {
	var c [4]byte
	copy(c[:], f.take(4))

	return c
}

// Skip advances the cursor by n bytes.
func (f *Fields) Skip(n int) { f.take(n) }

// Remaining returns the number of unread header bytes.
func (f *Fields) Remaining() int { return len(f.data) - f.off }

// Err reports whether a field read ran past the header size.
func (f *Fields) Err() error {
	if f.overrun {
		return imagecodec.FormatError("field read past %d-byte header", len(f.data))
	}

	return nil
}

// Builder writes a fixed-layout header. Fields are written in call order
// with fixed widths; nothing is padded.
type Builder struct {
	buf   []byte
	order binary.AppendByteOrder
}

// NewBuilder returns a builder with the given byte order and capacity hint.
func NewBuilder(order binary.AppendByteOrder, size int) *Builder {
	return &Builder{buf: make([]byte, 0, size), order: order}
}

// PutU8 appends a byte.
func (b *Builder) PutU8(v uint8) { b.buf = append(b.buf, v) }

// PutU16 appends an unsigned 16-bit field.
func (b *Builder) PutU16(v uint16) { b.buf = b.order.AppendUint16(b.buf, v) }

// PutU32 appends an unsigned 32-bit field.
func (b *Builder) PutU32(v uint32) { b.buf = b.order.AppendUint32(b.buf, v) }

// PutI16 appends a signed 16-bit field.
func (b *Builder) PutI16(v int16) { b.PutU16(uint16(v)) }

// PutI32 appends a signed 32-bit field.
func (b *Builder) PutI32(v int32) { b.PutU32(uint32(v)) }

// PutBytes appends raw bytes.
func (b *Builder) PutBytes(p []byte) { b.buf = append(b.buf, p...) }

// Len returns the number of bytes written so far.
func (b *Builder) Len() int { return len(b.buf) }

// Bytes returns the built header.
func (b *Builder) Bytes() []byte { return b.buf }

// WriteTo writes the built header to w.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.buf)
	if err != nil {
		return int64(n), fmt.Errorf("writing header: %w", err)
	}

	return int64(n), nil
}
