// Package imagecodec holds the types shared by the format packages: the BGRA
// pixel buffer, the error taxonomy and the dimension limits that every
// decoder checks before allocating pixel memory.
package imagecodec

import (
	"errors"
	"fmt"
	"io"
)

// Standard error types for decoding and encoding.
var (
	// ErrFormat reports a malformed or unrecognized header.
	ErrFormat = errors.New("invalid format")
	// ErrUnsupported reports a recognized but unimplemented feature.
	ErrUnsupported = errors.New("unsupported format")
	// ErrOutOfRange reports dimensions above the configured maximum.
	ErrOutOfRange = errors.New("dimensions out of range")
	// ErrOutOfData reports a stream that ended before a fixed-size read completed.
	ErrOutOfData = errors.New("out of data")
)

// DefaultMaxDimension is used for zero fields of Limits.
const DefaultMaxDimension = 1 << 15

// FormatError returns an error wrapping ErrFormat with a formatted message.
// A trailing error argument matched by %w stays in the chain.
func FormatError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrFormat}, args...)...)
}

// UnsupportedError returns an error wrapping ErrUnsupported with a formatted message.
func UnsupportedError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUnsupported}, args...)...)
}

// OutOfData wraps a short read. io.EOF is normalized to io.ErrUnexpectedEOF
// because the caller expected more bytes.
func OutOfData(what string, err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}

	return fmt.Errorf("%w: reading %s: %w", ErrOutOfData, what, err)
}

// Limits bounds the canvas a decoder is willing to allocate.
type Limits struct {
	// MaxWidth is the largest accepted width in pixels. Zero means DefaultMaxDimension.
	MaxWidth int
	// MaxHeight is the largest accepted height in pixels. Zero means DefaultMaxDimension.
	MaxHeight int
}

// Check validates the dimensions of an image before any pixel buffer is allocated.
func (l Limits) Check(width, height int) error {
	maxW, maxH := l.MaxWidth, l.MaxHeight
	if maxW <= 0 {
		maxW = DefaultMaxDimension
	}

	if maxH <= 0 {
		maxH = DefaultMaxDimension
	}

	if width <= 0 || height <= 0 {
		return FormatError("invalid dimensions %dx%d", width, height)
	}

	if width > maxW || height > maxH {
		return fmt.Errorf("%w: %dx%d exceeds maximum %dx%d", ErrOutOfRange, width, height, maxW, maxH)
	}

	return nil
}
