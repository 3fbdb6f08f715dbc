package tiff

import (
	"encoding/binary"
	"math"

	"github.com/gen2brain/imagecodec"
)

// maxEntries bounds the entry count of a single IFD.
const maxEntries = 4096

// field is one IFD entry with its value bytes resolved.
type field struct {
	typ   uint16
	count uint32
	raw   []byte
}

// ifdReader wraps the file with helper functions for reading different data types.
type ifdReader struct {
	data  []byte
	order binary.ByteOrder
}

func (r *ifdReader) uint16(offset int) uint16 {
	if offset < 0 || offset+2 > len(r.data) {
		return 0
	}

	return r.order.Uint16(r.data[offset:])
}

func (r *ifdReader) uint32(offset int) uint32 {
	if offset < 0 || offset+4 > len(r.data) {
		return 0
	}

	return r.order.Uint32(r.data[offset:])
}

// typeSize returns the size in bytes of one value of a field type.
func typeSize(dataType uint16) int {
	switch dataType {
	case dtByte, dtSByte, dtASCII, dtUndefined:
		return 1
	case dtShort, dtSShort:
		return 2
	case dtLong, dtSLong, dtFloat:
		return 4
	case dtRational, dtSRational, dtDouble:
		return 8
	}

	return 0
}

// newIFDReader checks the header and returns the reader with the offset of
// the first IFD.
func newIFDReader(data []byte) (*ifdReader, int, error) {
	if len(data) < headerSize {
		return nil, 0, imagecodec.FormatError("tiff: %d bytes is shorter than the header", len(data))
	}

	r := &ifdReader{data: data}

	switch string(data[0:4]) {
	case leHeader:
		r.order = binary.LittleEndian
	case beHeader:
		r.order = binary.BigEndian
	default:
		return nil, 0, imagecodec.FormatError("tiff: bad byte order marker %q", data[0:4])
	}

	offset := int(r.uint32(4))
	if offset < headerSize || offset+2 > len(data) {
		return nil, 0, imagecodec.FormatError("tiff: invalid IFD offset %d", offset)
	}

	return r, offset, nil
}

// parseIFD reads the entries of the IFD at offset. Entries with an unknown
// type or a value outside the file are skipped.
func (r *ifdReader) parseIFD(offset int) (map[uint16]field, error) {
	numEntries := int(r.uint16(offset))
	if numEntries == 0 || numEntries > maxEntries {
		return nil, imagecodec.FormatError("tiff: IFD has %d entries", numEntries)
	}

	offset += 2
	if offset+numEntries*entryLen > len(r.data) {
		return nil, imagecodec.OutOfData("tiff IFD entries", nil)
	}

	fields := make(map[uint16]field, numEntries)
	for i := 0; i < numEntries; i++ {
		entryOffset := offset + i*entryLen

		tag := r.uint16(entryOffset)
		dataType := r.uint16(entryOffset + 2)
		count := r.uint32(entryOffset + 4)

		size := typeSize(dataType)
		if size == 0 {
			continue
		}

		dataSize := int64(size) * int64(count)
		valueOffset := int64(entryOffset + 8)

		// For values > 4 bytes, the value field contains an offset.
		if dataSize > 4 {
			valueOffset = int64(r.uint32(entryOffset + 8))
		}

		if valueOffset+dataSize > int64(len(r.data)) {
			continue
		}

		fields[tag] = field{typ: dataType, count: count, raw: r.data[valueOffset : valueOffset+dataSize]}
	}

	return fields, nil
}

// uints returns the integer values of an unsigned field. Rationals and
// floats are not integer fields and yield nil.
func (f field) uints(order binary.ByteOrder) []uint {
	out := make([]uint, 0, f.count)

	switch f.typ {
	case dtByte, dtUndefined:
		for _, b := range f.raw {
			out = append(out, uint(b))
		}
	case dtShort:
		for i := 0; i+2 <= len(f.raw); i += 2 {
			out = append(out, uint(order.Uint16(f.raw[i:])))
		}
	case dtLong:
		for i := 0; i+4 <= len(f.raw); i += 4 {
			out = append(out, uint(order.Uint32(f.raw[i:])))
		}
	default:
		return nil
	}

	return out
}

// rational returns the first value of a RATIONAL field.
func (f field) rational(order binary.ByteOrder) float64 {
	if f.typ != dtRational || len(f.raw) < 8 {
		return 0
	}

	num, den := order.Uint32(f.raw), order.Uint32(f.raw[4:])
	if den == 0 {
		return 0
	}

	return float64(num) / float64(den)
}

// str returns an ASCII field up to its first NUL.
func (f field) str() string {
	if f.typ != dtASCII {
		return ""
	}

	for i, b := range f.raw {
		if b == 0 {
			return string(f.raw[:i])
		}
	}

	return string(f.raw)
}

// ifd is a parsed directory with typed accessors.
type ifd struct {
	fields map[uint16]field
	order  binary.ByteOrder
}

func (d *ifd) has(tag uint16) bool {
	_, ok := d.fields[tag]

	return ok
}

func (d *ifd) vals(tag uint16) []uint {
	f, ok := d.fields[tag]
	if !ok {
		return nil
	}

	return f.uints(d.order)
}

// firstVal returns the first value of tag, or def when the tag is missing.
func (d *ifd) firstVal(tag uint16, def uint) uint {
	v := d.vals(tag)
	if len(v) == 0 {
		return def
	}

	return v[0]
}

func (d *ifd) rational(tag uint16) float64 {
	return d.fields[tag].rational(d.order)
}

func (d *ifd) str(tag uint16) string {
	return d.fields[tag].str()
}

// toInt converts an unsigned field value, saturating at MaxInt32.
func toInt(v uint) int {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}

	return int(v)
}
