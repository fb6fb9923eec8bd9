package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"

	_ "image/gif"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

type Options struct {
	MaxDimension int
	// JPEGQuality is 1-100.
	JPEGQuality int
	// MaxPixels caps width*height as declared in the image header; larger
	// images are rejected before any pixel data is decoded.
	MaxPixels int64
}

func DefaultOptions() Options {
	return Options{MaxDimension: 1024, JPEGQuality: 80, MaxPixels: 40_000_000}
}

type Result struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
	Resized  bool
}

var (
	ErrEmptyImage    = errors.New("empty image")
	ErrImageTooLarge = errors.New("image too large")
)

// Prepare bounds an uploaded image before it is sent upstream. The longer
// side is scaled down to MaxDimension; PNG stays PNG, anything else is
// re-encoded as JPEG.
func Prepare(data []byte, mimeType string, opts Options) (Result, error) {
	if len(data) == 0 {
		return Result{}, ErrEmptyImage
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = DefaultOptions().MaxDimension
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = DefaultOptions().JPEGQuality
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultOptions().MaxPixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("decode image: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > opts.MaxPixels {
		return Result{}, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), opts.MaxDimension)
	resized := w != b.Dx() || h != b.Dy()

	keepPNG := format == "png" || strings.EqualFold(mimeType, "image/png")
	if !resized && (format == "jpeg" || format == "png") {
		outMime := "image/jpeg"
		if format == "png" {
			outMime = "image/png"
		}
		return Result{Data: data, MimeType: outMime, Width: w, Height: h}, nil
	}

	var src image.Image = img
	if resized {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		src = dst
	}

	var out bytes.Buffer
	if keepPNG {
		if err := png.Encode(&out, src); err != nil {
			return Result{}, fmt.Errorf("encode png: %w", err)
		}
		return Result{Data: out.Bytes(), MimeType: "image/png", Width: w, Height: h, Resized: resized}, nil
	}

	if err := jpeg.Encode(&out, flatten(src), &jpeg.Options{Quality: opts.JPEGQuality}); err != nil {
		return Result{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return Result{Data: out.Bytes(), MimeType: "image/jpeg", Width: w, Height: h, Resized: resized}, nil
}

func fitWithin(w, h, max int) (int, int) {
	if w <= max && h <= max {
		return w, h
	}
	if w >= h {
		nh := h * max / w
		if nh < 1 {
			nh = 1
		}
		return max, nh
	}
	nw := w * max / h
	if nw < 1 {
		nw = 1
	}
	return nw, max
}

// flatten paints the image onto white so transparent regions do not turn
// black in JPEG output.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}
