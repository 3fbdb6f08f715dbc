package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/gift"
	_ "github.com/gen2brain/jpegn"
	"github.com/xfmoulet/qoi"

	"github.com/gen2brain/imagecodec"
	"github.com/gen2brain/imagecodec/ani"
	"github.com/gen2brain/imagecodec/bmp"
	"github.com/gen2brain/imagecodec/ico"
	"github.com/gen2brain/imagecodec/quantize"
	"github.com/gen2brain/imagecodec/tiff"
)

func outputFormat(name string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".bmp":
		return "bmp", nil
	case ".tif", ".tiff":
		return "tiff", nil
	case ".png":
		return "png", nil
	case ".qoi":
		return "qoi", nil
	default:
		return "", fmt.Errorf("%w: cannot write %q files", imagecodec.ErrUnsupported, ext)
	}
}

func run(cfg *config, log *slog.Logger, stdout io.Writer) error {
	data, err := os.ReadFile(cfg.input)
	if err != nil {
		return err
	}

	if cfg.info {
		return describe(stdout, data)
	}

	img, format, err := decode(data, cfg, log)
	if err != nil {
		return fmt.Errorf("%s: %w", cfg.input, err)
	}

	log.Debug("decoded", "file", cfg.input, "format", format, "size", img.Bounds().Size())

	img = transform(img, cfg)

	var buf bytes.Buffer
	if err := encode(&buf, img, cfg); err != nil {
		return fmt.Errorf("%s: %w", cfg.output, err)
	}

	if err := os.WriteFile(cfg.output, buf.Bytes(), 0o644); err != nil {
		return err
	}

	log.Debug("encoded", "file", cfg.output, "size", img.Bounds().Size(), "bytes", buf.Len())

	return nil
}

// decode sniffs the format through the image registry and decodes with the
// format's own options where there are any.
func decode(data []byte, cfg *config, log *slog.Logger) (image.Image, string, error) {
	ic, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}

	limits := imagecodec.Limits{MaxWidth: cfg.maxDim, MaxHeight: cfg.maxDim}
	r := bytes.NewReader(data)

	var img image.Image
	switch format {
	case "bmp":
		img, err = bmp.Decode(r, &bmp.Options{Limits: limits})
	case "ico", "cur":
		img, err = ico.Decode(r, &ico.Options{Limits: limits})
	case "tiff":
		img, err = tiff.Decode(r, &tiff.Options{Limits: limits})
	case "ani":
		var anim *ani.Animation
		anim, err = ani.DecodeAll(r, &ani.Options{Limits: limits, Logger: log})
		if err != nil {
			break
		}

		frame := anim.Frame(cfg.frame)
		if frame == nil {
			return nil, format, fmt.Errorf("no frame at step %d of %d", cfg.frame, len(anim.Sequence))
		}

		img = frame
	default:
		if err := limits.Check(ic.Width, ic.Height); err != nil {
			return nil, format, err
		}

		img, _, err = image.Decode(r)
	}

	if err != nil {
		return nil, format, err
	}

	return img, format, nil
}

func transform(img image.Image, cfg *config) image.Image {
	var filters []gift.Filter
	if cfg.resize != "" {
		w, h, _ := parseSize(cfg.resize)
		filters = append(filters, gift.Resize(w, h, cfg.filter))
	}

	if cfg.gray {
		filters = append(filters, gift.Grayscale())
	}

	if len(filters) > 0 {
		g := gift.New(filters...)
		dst := image.NewNRGBA(g.Bounds(img.Bounds()))
		g.Draw(dst, img)
		img = dst
	}

	if cfg.colors > 0 {
		img = quantize.Wu{}.Quantize(img, cfg.colors).Paletted()
	}

	return img
}

func encode(w io.Writer, img image.Image, cfg *config) error {
	format, err := outputFormat(cfg.output)
	if err != nil {
		return err
	}

	switch format {
	case "bmp":
		return bmp.Encode(w, img, &bmp.EncoderOptions{BitsPerPixel: cfg.bpp})
	case "tiff":
		return tiff.Encode(w, img, &tiff.EncoderOptions{
			Compression: cfg.compression,
			Predictor:   cfg.predictor,
			Software:    "imgconv",
		})
	case "png":
		return png.Encode(w, img)
	default:
		return qoi.Encode(w, img)
	}
}

func modelName(m color.Model) string {
	switch m {
	case imagecodec.BGRAModel:
		return "BGRA"
	case color.NRGBA64Model:
		return "NRGBA64"
	case color.NRGBAModel:
		return "NRGBA"
	case color.RGBAModel:
		return "RGBA"
	case color.GrayModel:
		return "Gray"
	case color.Gray16Model:
		return "Gray16"
	case color.YCbCrModel:
		return "YCbCr"
	}

	if _, ok := m.(color.Palette); ok {
		return "Paletted"
	}

	return "Unknown"
}

// describe prints the format, dimensions and format specific details.
func describe(w io.Writer, data []byte) error {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "format: %s\nsize: %dx%d\nmodel: %s\n", format, cfg.Width, cfg.Height, modelName(cfg.ColorModel))

	switch format {
	case "tiff":
		info, err := tiff.DecodeInfo(bytes.NewReader(data))
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "byte order: %v\nsamples: %d x %d bits\nphotometric: %d\ncompression: %d\npredictor: %d\nrows per strip: %d\n",
			info.ByteOrder, info.SamplesPerPixel, info.BitsPerSample, info.Photometric, info.Compression, info.Predictor, info.RowsPerStrip)

		if info.XResolution > 0 {
			fmt.Fprintf(w, "resolution: %gx%g\n", info.XResolution, info.YResolution)
		}

		if info.Software != "" {
			fmt.Fprintf(w, "software: %s\n", info.Software)
		}
	case "ico", "cur":
		icon, err := ico.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return err
		}

		for i, e := range icon.Entries {
			fmt.Fprintf(w, "entry %d: %dx%d", i, e.Width, e.Height)
			if icon.Type == ico.TypeCursor {
				fmt.Fprintf(w, " hotspot %v", e.Hotspot())
			}
			fmt.Fprintln(w)
		}
	case "ani":
		anim, err := ani.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "frames: %d\nsteps: %d\n", len(anim.Frames), len(anim.Sequence))

		if anim.Name != "" {
			fmt.Fprintf(w, "name: %s\n", anim.Name)
		}

		if anim.Artist != "" {
			fmt.Fprintf(w, "artist: %s\n", anim.Artist)
		}

		for _, s := range anim.Skipped {
			fmt.Fprintf(w, "skipped frame %d: %v\n", s.Index, s.Err)
		}
	}

	return nil
}
