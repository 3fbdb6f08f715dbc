// Command imgconv converts between BMP, ICO/CUR, ANI, TIFF, PNG and QOI
// images, optionally resizing and reducing the palette on the way.
//
// Usage:
//
//	imgconv [flags] input output
//	imgconv -info input
//
// The output format follows the output file extension: .bmp, .tif, .tiff,
// .png or .qoi.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/disintegration/gift"

	"github.com/gen2brain/imagecodec"
	"github.com/gen2brain/imagecodec/tiff"
)

type config struct {
	input, output string

	info    bool
	verbose bool
	maxDim  int
	frame   int

	resize string
	filter gift.Resampling
	gray   bool
	colors int

	bpp         int
	compression tiff.Compression
	predictor   bool
}

var resamplings = map[string]gift.Resampling{
	"nearest": gift.NearestNeighborResampling,
	"box":     gift.BoxResampling,
	"linear":  gift.LinearResampling,
	"cubic":   gift.CubicResampling,
	"lanczos": gift.LanczosResampling,
}

func parseCompression(s string) (tiff.Compression, error) {
	for _, c := range []tiff.Compression{tiff.None, tiff.LZW, tiff.Deflate, tiff.PackBits, tiff.Zstd} {
		if strings.EqualFold(s, c.String()) {
			return c, nil
		}
	}

	return 0, fmt.Errorf("unknown compression %q", s)
}

// parseSize parses WxH. Either side may be 0 to keep the aspect ratio.
func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid size %q, want WxH", s)
	}

	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid width in %q: %w", s, err)
	}

	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid height in %q: %w", s, err)
	}

	if w < 0 || h < 0 || (w == 0 && h == 0) {
		return 0, 0, fmt.Errorf("invalid size %q", s)
	}

	return w, h, nil
}

func parseFlags(args []string, stderr io.Writer) (*config, error) {
	cfg := &config{}

	fs := flag.NewFlagSet("imgconv", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: imgconv [flags] input output\n       imgconv -info input\n\nFlags:\n")
		fs.PrintDefaults()
	}

	var filter, compression string

	fs.BoolVar(&cfg.info, "info", false, "print image information and exit")
	fs.BoolVar(&cfg.verbose, "v", false, "log debug messages")
	fs.IntVar(&cfg.maxDim, "max", imagecodec.DefaultMaxDimension, "maximum accepted width and height")
	fs.IntVar(&cfg.frame, "frame", 0, "animation step to convert")
	fs.StringVar(&cfg.resize, "resize", "", "resize to `WxH`, 0 keeps the aspect ratio")
	fs.StringVar(&filter, "filter", "lanczos", "resampling filter: nearest, box, linear, cubic or lanczos")
	fs.BoolVar(&cfg.gray, "gray", false, "convert to grayscale")
	fs.IntVar(&cfg.colors, "colors", 0, "reduce to at most `n` colors (1-256)")
	fs.IntVar(&cfg.bpp, "bpp", 0, "BMP bits per pixel: 1, 4, 8, 16, 24 or 32")
	fs.StringVar(&compression, "compression", "lzw", "TIFF compression: none, lzw, deflate, packbits or zstd")
	fs.BoolVar(&cfg.predictor, "predictor", false, "TIFF horizontal predictor")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var ok bool
	if cfg.filter, ok = resamplings[strings.ToLower(filter)]; !ok {
		return nil, fmt.Errorf("unknown filter %q", filter)
	}

	var err error
	if cfg.compression, err = parseCompression(compression); err != nil {
		return nil, err
	}

	if cfg.resize != "" {
		if _, _, err := parseSize(cfg.resize); err != nil {
			return nil, err
		}
	}

	if cfg.colors < 0 || cfg.colors > 256 {
		return nil, fmt.Errorf("colors %d out of range 1-256", cfg.colors)
	}

	switch {
	case cfg.info && fs.NArg() == 1:
		cfg.input = fs.Arg(0)
	case !cfg.info && fs.NArg() == 2:
		cfg.input, cfg.output = fs.Arg(0), fs.Arg(1)
		if _, err := outputFormat(cfg.output); err != nil {
			return nil, err
		}
	default:
		fs.Usage()

		return nil, errors.New("wrong number of arguments")
	}

	return cfg, nil
}

func main() {
	cfg, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}

		fmt.Fprintf(os.Stderr, "imgconv: %v\n", err)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(cfg, logger, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "imgconv: %v\n", err)
		os.Exit(1)
	}
}
