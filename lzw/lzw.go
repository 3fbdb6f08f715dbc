// Package lzw implements the dynamic-dictionary Lempel-Ziv-Welch variant
// used by GIF image data and TIFF strips.
//
// GIF packs codes least significant bit first and widens the code one code
// late. TIFF packs codes most significant bit first and widens one code
// early. Both are selected through Options.
package lzw

import (
	"errors"
	"io"
)

// MaxStackSize is the size of the dictionary: codes are at most 12 bits.
const MaxStackSize = 4096

const maxCodeWidth = 12

// Order specifies the bit ordering in an LZW data stream.
type Order int

const (
	// LSB means Least Significant Bits first, as used in the GIF file format.
	LSB Order = iota
	// MSB means Most Significant Bits first, as used in the TIFF file format.
	MSB
)

// ErrLitWidth reports an initial code size outside [2, 8].
var ErrLitWidth = errors.New("lzw: literal width out of range")

// Options selects the stream flavour.
type Options struct {
	// Order is the bit packing order of codes.
	Order Order
	// LitWidth is the initial code size: 8 for TIFF, 2..8 for GIF.
	LitWidth int
	// EarlyChange widens the code one code earlier (TIFF).
	EarlyChange bool
}

// GIF returns the options for GIF image data with the given minimum code size.
func GIF(litWidth int) Options {
	return Options{Order: LSB, LitWidth: litWidth}
}

// TIFF returns the options for TIFF LZW strips.
func TIFF() Options {
	return Options{Order: MSB, LitWidth: 8, EarlyChange: true}
}

// Decoder holds the dictionary for one stream. A Decoder is not safe for
// concurrent use.
type Decoder struct {
	src  io.ByteReader
	opts Options

	prefix     [MaxStackSize]int
	suffix     [MaxStackSize]byte
	pixelStack [MaxStackSize + 1]byte
}

// NewDecoder returns a decoder reading codes from src.
func NewDecoder(src io.ByteReader, opts Options) (*Decoder, error) {
	if opts.LitWidth < 2 || opts.LitWidth > 8 {
		return nil, ErrLitWidth
	}

	return &Decoder{src: src, opts: opts}, nil
}

// Decode fills dst with decoded bytes and returns how many were written.
// Decoding stops early, without an error, on the end code, on a code beyond
// the dictionary, or when the source runs dry. Only source errors other than
// io.EOF are returned.
func (d *Decoder) Decode(dst []byte) (int, error) {
	dataSize := d.opts.LitWidth
	clearCode := 1 << dataSize
	endCode := clearCode + 1
	codeSize := dataSize + 1
	codeMask := 1<<codeSize - 1
	availableCode := clearCode + 2
	oldCode := -1
	first := 0

	early := 0
	if d.opts.EarlyChange {
		early = 1
	}

	for i := 0; i < clearCode; i++ {
		d.prefix[i] = 0
		d.suffix[i] = byte(i)
	}

	var (
		data uint64
		bits int
		top  int
		n    int
	)

	for n < len(dst) {
		if top == 0 {
			if bits < codeSize {
				// Load bytes until there are enough bits for a code.
				b, err := d.src.ReadByte()
				if err != nil {
					if errors.Is(err, io.EOF) {
						break
					}

					return n, err
				}

				if d.opts.Order == LSB {
					data |= uint64(b) << bits
				} else {
					data = data<<8 | uint64(b)
				}
				bits += 8

				continue
			}

			var code int
			if d.opts.Order == LSB {
				code = int(data) & codeMask
				data >>= codeSize
			} else {
				code = int(data>>(bits-codeSize)) & codeMask
			}
			bits -= codeSize
			if d.opts.Order == MSB {
				data &= 1<<bits - 1
			}

			if code > availableCode || code == endCode {
				break
			}

			if code == clearCode {
				codeSize = dataSize + 1
				codeMask = 1<<codeSize - 1
				availableCode = clearCode + 2
				oldCode = -1

				continue
			}

			if oldCode == -1 {
				// Only a literal may follow a clear code.
				if code > clearCode {
					break
				}

				d.pixelStack[top] = d.suffix[code]
				top++
				oldCode = code
				first = code

				continue
			}

			inCode := code
			if code == availableCode {
				d.pixelStack[top] = byte(first)
				top++
				code = oldCode
			}

			for code > clearCode {
				if top >= MaxStackSize {
					return n, nil
				}
				d.pixelStack[top] = d.suffix[code]
				top++
				code = d.prefix[code]
			}

			first = int(d.suffix[code])
			d.pixelStack[top] = d.suffix[code]
			top++

			// A full dictionary keeps decoding at 12 bits until the
			// encoder sends its (possibly deferred) clear code.
			if availableCode < MaxStackSize {
				d.prefix[availableCode] = oldCode
				d.suffix[availableCode] = byte(first)
				availableCode++

				if availableCode+early == codeMask+1 && codeSize < maxCodeWidth {
					codeSize++
					codeMask = 1<<codeSize - 1
				}
			}

			oldCode = inCode
		}

		top--
		dst[n] = d.pixelStack[top]
		n++
	}

	return n, nil
}

// BlockReader presents GIF data sub-blocks (a length byte followed by that
// many bytes, terminated by a zero length) as a byte stream.
type BlockReader struct {
	r         io.ByteReader
	remaining int
	done      bool
}

// NewBlockReader returns a reader over the sub-blocks in r.
func NewBlockReader(r io.ByteReader) *BlockReader {
	return &BlockReader{r: r}
}

// ReadByte implements io.ByteReader. It returns io.EOF after the terminator block.
func (b *BlockReader) ReadByte() (byte, error) {
	for b.remaining == 0 {
		if b.done {
			return 0, io.EOF
		}

		n, err := b.r.ReadByte()
		if err != nil {
			return 0, err
		}

		if n == 0 {
			b.done = true

			return 0, io.EOF
		}

		b.remaining = int(n)
	}

	b.remaining--

	return b.r.ReadByte()
}
