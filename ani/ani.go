// Package ani decodes Windows animated cursors (RIFF form type ACON).
//
// An animation holds an anih header, optional seq and rate arrays, a
// LIST/fram of icon chunks and an optional LIST/INFO with the title and
// author. Each icon chunk is a complete ICO, CUR or BMP stream.
package ani

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gen2brain/imagecodec"
	"github.com/gen2brain/imagecodec/bmp"
	"github.com/gen2brain/imagecodec/ico"
	"github.com/gen2brain/imagecodec/internal/binio"
	"github.com/gen2brain/imagecodec/riff"
)

// HeaderSize is the size of the anih chunk body.
const HeaderSize = 36

// Header flags.
const (
	// FlagIcon marks frames stored as ICO/CUR data rather than raw bitmaps.
	FlagIcon = 1
	// FlagSequence marks the presence of a seq chunk.
	FlagSequence = 2
)

// maxFrames bounds the frame and step counts taken from the header.
const maxFrames = 1 << 16

// Chunk identifiers.
var (
	formACON = riff.FourCC{'A', 'C', 'O', 'N'}
	idAnih   = riff.FourCC{'a', 'n', 'i', 'h'}
	idSeq    = riff.FourCC{'s', 'e', 'q', ' '}
	idRate   = riff.FourCC{'r', 'a', 't', 'e'}
	idIcon   = riff.FourCC{'i', 'c', 'o', 'n'}
	idName   = riff.FourCC{'I', 'N', 'A', 'M'}
	idArtist = riff.FourCC{'I', 'A', 'R', 'T'}
	listFram = riff.FourCC{'f', 'r', 'a', 'm'}
	listInfo = riff.FourCC{'I', 'N', 'F', 'O'}
)

var (
	icoMagic = []byte{0, 0, 1, 0}
	curMagic = []byte{0, 0, 2, 0}
)

// Header is the anih chunk.
type Header struct {
	Size     uint32
	Frames   uint32
	Steps    uint32
	Width    uint32
	Height   uint32
	BitCount uint32
	Planes   uint32
	// DisplayRate is the default frame duration in jiffies (1/60 s).
	DisplayRate uint32
	Flags       uint32
}

// IsIcon reports whether frames are ICO/CUR streams.
func (h Header) IsIcon() bool { return h.Flags&FlagIcon != 0 }

// HasSequence reports whether the file declares a seq chunk.
func (h Header) HasSequence() bool { return h.Flags&FlagSequence != 0 }

// SkippedFrame records an icon chunk that failed to decode.
type SkippedFrame struct {
	// Index is the position of the chunk in LIST/fram.
	Index int
	// Offset is the position of the chunk header in the file.
	Offset int
	Err    error
}

// Animation is a decoded animated cursor.
type Animation struct {
	Header Header
	// Frames are in storage order. A frame that failed to decode is nil
	// and listed in Skipped.
	Frames []*imagecodec.BGRA
	// Sequence lists frame indices in display order.
	Sequence []int
	// Rates holds one duration in jiffies per Sequence step.
	Rates   []uint32
	Name    string
	Artist  string
	Skipped []SkippedFrame
}

// Frame returns the frame shown at step, or nil when the step or its frame
// index is out of range.
func (a *Animation) Frame(step int) *imagecodec.BGRA {
	if step < 0 || step >= len(a.Sequence) {
		return nil
	}

	i := a.Sequence[step]
	if i < 0 || i >= len(a.Frames) {
		return nil
	}

	return a.Frames[i]
}

// Delay returns the display duration of step.
func (a *Animation) Delay(step int) time.Duration {
	if step < 0 || step >= len(a.Rates) {
		return 0
	}

	return time.Duration(a.Rates[step]) * time.Second / 60
}

// Options specifies decoding parameters.
type Options struct {
	// Limits bounds every frame.
	imagecodec.Limits
	// Logger receives warnings about skipped or malformed frames. Nil disables logging.
	Logger *slog.Logger
}

type decoder struct {
	data   []byte
	limits imagecodec.Limits
	log    *slog.Logger

	anim       Animation
	haveHeader bool
	frameIndex int
}

func (d *decoder) warn(msg string, args ...any) {
	if d.log != nil {
		d.log.Warn(msg, args...)
	}
}

// DecodeAll reads every frame of an animated cursor.
func DecodeAll(r io.Reader, opts ...*Options) (*Animation, error) {
	data, err := binio.ReadAll(r)
	if err != nil {
		return nil, err
	}

	d := &decoder{data: data}
	if len(opts) > 0 && opts[0] != nil {
		d.limits = opts[0].Limits
		d.log = opts[0].Logger
	}

	body, err := readForm(data)
	if err != nil {
		return nil, err
	}

	if _, err := riff.Walk(data, body, d.visit); err != nil {
		return nil, err
	}

	if !d.haveHeader {
		return nil, imagecodec.FormatError("ani: missing anih chunk")
	}

	d.finish()

	return &d.anim, nil
}

// Decode returns the first displayed frame of an animated cursor.
func Decode(r io.Reader, opts ...*Options) (image.Image, error) {
	anim, err := DecodeAll(r, opts...)
	if err != nil {
		return nil, err
	}

	if f := anim.Frame(0); f != nil {
		return f, nil
	}

	for _, f := range anim.Frames {
		if f != nil {
			return f, nil
		}
	}

	return nil, imagecodec.FormatError("ani: no decodable frames")
}

func readForm(data []byte) (riff.Region, error) {
	form, body, err := riff.ReadForm(data)
	if err != nil {
		return riff.Region{}, err
	}

	if form != formACON {
		return riff.Region{}, imagecodec.FormatError("ani: form type %q", form)
	}

	return body, nil
}

func (d *decoder) visit(c *riff.Chunk) error {
	switch {
	case c.ID == idAnih:
		if d.haveHeader {
			d.warn("ani: ignoring duplicate anih chunk", "offset", c.Offset)
			return nil
		}

		h, err := parseHeader(c.Data)
		if err != nil {
			return err
		}

		d.anim.Header = h
		d.haveHeader = true
	case c.ID == idSeq:
		d.anim.Sequence = make([]int, len(c.Data)/4)
		for i := range d.anim.Sequence {
			d.anim.Sequence[i] = int(int32(binary.LittleEndian.Uint32(c.Data[i*4:])))
		}
	case c.ID == idRate:
		d.anim.Rates = make([]uint32, len(c.Data)/4)
		for i := range d.anim.Rates {
			d.anim.Rates[i] = binary.LittleEndian.Uint32(c.Data[i*4:])
		}
	case c.IsList(listFram):
		if _, err := riff.Walk(d.data, c.Body, d.visitFrame); err != nil {
			return err
		}
	case c.IsList(listInfo):
		if _, err := riff.Walk(d.data, c.Body, d.visitInfo); err != nil {
			return err
		}
	}

	return nil
}

func parseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, imagecodec.FormatError("ani: anih chunk is %d bytes, want %d", len(data), HeaderSize)
	}

	f := binio.NewFields(data[:HeaderSize], binary.LittleEndian)
	h := Header{
		Size:        f.U32(),
		Frames:      f.U32(),
		Steps:       f.U32(),
		Width:       f.U32(),
		Height:      f.U32(),
		BitCount:    f.U32(),
		Planes:      f.U32(),
		DisplayRate: f.U32(),
		Flags:       f.U32(),
	}

	if h.Frames > maxFrames || h.Steps > maxFrames {
		return Header{}, imagecodec.FormatError("ani: %d frames and %d steps", h.Frames, h.Steps)
	}

	return h, f.Err()
}

func (d *decoder) visitFrame(c *riff.Chunk) error {
	if c.ID != idIcon {
		return nil
	}

	index := d.frameIndex
	d.frameIndex++

	if c.Truncated() {
		d.warn("ani: frame extends past its list", "index", index, "declared", c.Size, "available", len(c.Data))
	}

	img, used, err := decodeFrame(c.Data, d.limits)
	if err != nil {
		d.anim.Frames = append(d.anim.Frames, nil)
		d.anim.Skipped = append(d.anim.Skipped, SkippedFrame{Index: index, Offset: c.Offset, Err: err})
		d.warn("ani: skipping frame", "index", index, "offset", c.Offset, "error", err)

		return nil
	}

	// The walker resumes at the declared end regardless of what the frame decoder used.
	if used < len(c.Data) {
		d.warn("ani: frame decoder under-consumed its chunk", "index", index, "declared", len(c.Data), "used", used)
	}

	d.anim.Frames = append(d.anim.Frames, img)

	return nil
}

func (d *decoder) visitInfo(c *riff.Chunk) error {
	switch c.ID {
	case idName:
		d.anim.Name = cString(c.Data)
	case idArtist:
		d.anim.Artist = cString(c.Data)
	}

	return nil
}

func cString(b []byte) string {
	s, _, _ := strings.Cut(string(b), "\x00")

	return s
}

// decodeFrame decodes an embedded ICO, CUR or BMP stream. It also returns
// the number of bytes the stream declares for itself.
func decodeFrame(data []byte, limits imagecodec.Limits) (*imagecodec.BGRA, int, error) {
	switch {
	case bytes.HasPrefix(data, icoMagic), bytes.HasPrefix(data, curMagic):
		icon, err := ico.DecodeAll(bytes.NewReader(data), &ico.Options{Limits: limits})
		if err != nil {
			return nil, 0, err
		}

		used := 0
		for _, e := range icon.Entries {
			used = max(used, int(e.Offset)+int(e.Size))
		}

		return icon.Largest(), used, nil
	case bytes.HasPrefix(data, []byte("BM")):
		img, err := bmp.Decode(bytes.NewReader(data), &bmp.Options{Limits: limits})
		if err != nil {
			return nil, 0, err
		}

		used := len(data)
		if fh, err := bmp.ReadFileHeader(bytes.NewReader(data)); err == nil && fh.FileSize != 0 {
			used = int(fh.FileSize)
		}

		return img.(*imagecodec.BGRA), used, nil
	}

	return nil, 0, imagecodec.UnsupportedError("ani: unrecognized frame payload")
}

// finish fills in the default sequence and rates.
func (d *decoder) finish() {
	a := &d.anim

	if a.Sequence == nil {
		n := int(a.Header.Frames)
		if n == 0 {
			n = len(a.Frames)
		}

		a.Sequence = make([]int, n)
		for i := range a.Sequence {
			a.Sequence[i] = i
		}
	}

	if a.Rates == nil {
		a.Rates = make([]uint32, len(a.Sequence))
		for i := range a.Rates {
			a.Rates[i] = a.Header.DisplayRate
		}
	}

	if len(a.Frames) != int(a.Header.Frames) {
		d.warn("ani: frame count differs from header", "header", a.Header.Frames, "found", len(a.Frames))
	}
}

// DecodeConfig returns the dimensions of the first frame without decoding
// the rest of the animation.
func DecodeConfig(r io.Reader) (image.Config, error) {
	data, err := binio.ReadAll(r)
	if err != nil {
		return image.Config{}, err
	}

	body, err := readForm(data)
	if err != nil {
		return image.Config{}, err
	}

	var (
		cfg        image.Config
		found      bool
		haveHeader bool
	)

	_, err = riff.Walk(data, body, func(c *riff.Chunk) error {
		switch {
		case c.ID == idAnih:
			if _, err := parseHeader(c.Data); err != nil {
				return err
			}
			haveHeader = true
		case c.IsList(listFram) && !found:
			_, err := riff.Walk(data, c.Body, func(ic *riff.Chunk) error {
				if ic.ID != idIcon {
					return nil
				}

				var err error
				if cfg, err = frameConfig(ic.Data); err != nil {
					return fmt.Errorf("ani: first frame: %w", err)
				}
				found = true

				return riff.ErrStop
			})
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return image.Config{}, err
	}

	if !haveHeader {
		return image.Config{}, imagecodec.FormatError("ani: missing anih chunk")
	}

	if !found {
		return image.Config{}, imagecodec.FormatError("ani: no frames")
	}

	return cfg, nil
}

func frameConfig(data []byte) (image.Config, error) {
	switch {
	case bytes.HasPrefix(data, icoMagic), bytes.HasPrefix(data, curMagic):
		return ico.DecodeConfig(bytes.NewReader(data))
	case bytes.HasPrefix(data, []byte("BM")):
		return bmp.DecodeConfig(bytes.NewReader(data))
	}

	return image.Config{}, imagecodec.UnsupportedError("ani: unrecognized frame payload")
}

// init registers the ANI format with the standard library's image package.
func init() {
	decodeWrapper := func(r io.Reader) (image.Image, error) {
		return Decode(r)
	}

	image.RegisterFormat("ani", "RIFF????ACON", decodeWrapper, DecodeConfig)
}
