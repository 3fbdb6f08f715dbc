package binio

import (
	"fmt"
	"io"
)

// Interface to check if a reader knows its remaining length.
type readerWithLen interface {
	Len() int
}

// ReadAll reads data from r, pre-allocating if the size is known.
func ReadAll(r io.Reader) ([]byte, error) {
	if rl, ok := r.(readerWithLen); ok {
		size := rl.Len()
		if size > 0 {
			data := make([]byte, size)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, fmt.Errorf("failed to read image data: %w", err)
			}

			return data, nil
		}
	}

	// Readers without Len (os.File, network streams) fall back to io.ReadAll.
	return io.ReadAll(r)
}
