// Package riff walks the chunks of a Resource Interchange File Format
// container held in memory.
//
// Every walk is bounded by an explicit Region. A chunk body is clamped to
// the smaller of its declared size and the end of the enclosing region, so
// a corrupt length can never move the cursor past the container.
package riff

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gen2brain/imagecodec"
)

// Chunk header sizes in bytes.
const (
	HeaderSize = 8
	// FormHeaderSize covers "RIFF", the size and the form type.
	FormHeaderSize = 12
)

// FourCC is a four-character chunk identifier.
type FourCC [4]byte

// Well-known identifiers.
var (
	RIFF = FourCC{'R', 'I', 'F', 'F'}
	LIST = FourCC{'L', 'I', 'S', 'T'}
)

func (c FourCC) String() string { return string(c[:]) }

// Region is the half-open byte range [Start, End) of a container body.
type Region struct {
	Start, End int
}

// Len returns the number of bytes in the region.
func (r Region) Len() int { return r.End - r.Start }

// Chunk is one chunk seen by Walk.
type Chunk struct {
	ID FourCC
	// Size is the declared body size, which may exceed Data.
	Size uint32
	// ListType is set for LIST chunks with at least four body bytes.
	ListType FourCC
	// Data is the clamped body. For LIST chunks it starts after the list type.
	Data []byte
	// Offset is the position of the chunk header.
	Offset int
	// Body is the region of Data. LIST chunks are walked by passing it to Walk.
	Body Region
}

// IsList reports whether the chunk is a LIST with the given type.
func (c *Chunk) IsList(listType FourCC) bool {
	return c.ID == LIST && c.ListType == listType
}

// Truncated reports whether the declared size ran past the enclosing region.
func (c *Chunk) Truncated() bool {
	declared := int64(c.Size)
	if c.ID == LIST {
		declared -= 4
	}

	return int64(len(c.Data)) < declared
}

// ErrStop can be returned by a visit function to end the walk without error.
var ErrStop = errors.New("riff: stop walk")

// ReadForm parses the RIFF header at the start of data. It returns the form
// type and the body region, clamped to len(data).
func ReadForm(data []byte) (FourCC, Region, error) {
	if len(data) < FormHeaderSize {
		return FourCC{}, Region{}, imagecodec.FormatError("riff: %d bytes is shorter than the form header", len(data))
	}

	if FourCC(data[0:4]) != RIFF {
		return FourCC{}, Region{}, imagecodec.FormatError("riff: bad signature %q", data[0:4])
	}

	size := int64(binary.LittleEndian.Uint32(data[4:8]))
	end := min(int64(HeaderSize)+size, int64(len(data)))
	if end < FormHeaderSize {
		return FourCC{}, Region{}, imagecodec.FormatError("riff: declared size %d is shorter than the form type", size)
	}

	return FourCC(data[8:12]), Region{Start: FormHeaderSize, End: int(end)}, nil
}

// Walk reads consecutive chunk headers in region and calls visit for each.
// It returns the cursor after the last chunk, which never exceeds
// region.End. A visit error other than ErrStop ends the walk and is returned.
func Walk(data []byte, region Region, visit func(c *Chunk) error) (int, error) {
	if region.Start < 0 || region.Start > region.End {
		return region.Start, fmt.Errorf("riff: invalid region [%d, %d)", region.Start, region.End)
	}

	end := min(region.End, len(data))
	pos := region.Start

	for pos+HeaderSize <= end {
		c := &Chunk{
			ID:     FourCC(data[pos : pos+4]),
			Size:   binary.LittleEndian.Uint32(data[pos+4 : pos+8]),
			Offset: pos,
		}

		bodyStart := pos + HeaderSize
		bodyEnd := int(min(int64(bodyStart)+int64(c.Size), int64(end)))
		next := int(min(int64(bodyStart)+int64(c.Size)+int64(c.Size&1), int64(end)))

		c.Body = Region{Start: bodyStart, End: bodyEnd}
		if c.ID == LIST && bodyEnd-bodyStart >= 4 {
			c.ListType = FourCC(data[bodyStart : bodyStart+4])
			c.Body.Start += 4
		}

		c.Data = data[c.Body.Start:c.Body.End:c.Body.End]

		if err := visit(c); err != nil {
			if errors.Is(err, ErrStop) {
				return next, nil
			}

			return pos, err
		}

		pos = next
	}

	return pos, nil
}
