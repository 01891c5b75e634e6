package density

import (
	"context"
	"errors"
	"image"
	"image/color"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/ocrcheck/internal/raster"
)

const (
	// DefaultSamplePages is the number of leading pages rendered per document.
	DefaultSamplePages = 5

	// MaxSamplePages caps the sample regardless of configuration.
	MaxSamplePages = 10

	// InkThreshold splits ink from background; luminance at or below it is ink.
	InkThreshold = 127
)

// Estimator measures how much of the leading pages is covered by ink.
type Estimator struct {
	Backend raster.Backend
	DPI     float64
	Timeout time.Duration
}

// New creates an Estimator for the given backend.
func New(b raster.Backend, dpi float64, timeout time.Duration) *Estimator {
	return &Estimator{Backend: b, DPI: dpi, Timeout: timeout}
}

// Available reports whether the estimator can render anything at all.
func (e *Estimator) Available() bool {
	return e != nil && e.Backend != nil && e.Backend.Available()
}

// SampleSize returns min(n, total, MaxSamplePages), with n <= 0 meaning the default.
// A negative total means the page count is unknown.
func SampleSize(n, total int) int {
	if n <= 0 {
		n = DefaultSamplePages
	}
	if n > MaxSamplePages {
		n = MaxSamplePages
	}
	if total >= 0 && total < n {
		n = total
	}
	return n
}

// Estimate returns the mean ink fraction over the first min(n, totalPages, 10)
// pages of pdfPath; a negative totalPages means the count is unknown.
// It never fails: a missing backend, render error or timeout yields 0.0.
func (e *Estimator) Estimate(ctx context.Context, pdfPath string, n, totalPages int) float64 {
	if !e.Available() {
		log.Warn().Str("file", pdfPath).Msg("raster backend unavailable; skipping visual density (density=0)")
		return 0
	}

	k := SampleSize(n, totalPages)
	if k == 0 {
		return 0
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	dpi := e.DPI
	if dpi <= 0 {
		dpi = raster.DefaultDPI
	}

	images, err := e.Backend.Rasterize(ctx, pdfPath, k, dpi)
	if err != nil {
		ev := log.Warn().Err(err).Str("file", pdfPath).Str("backend", e.Backend.Name())
		if errors.Is(err, context.DeadlineExceeded) {
			ev = ev.Dur("timeout", e.Timeout)
		}
		ev.Msg("visual density analysis failed (density=0)")
		return 0
	}
	if len(images) > k {
		images = images[:k]
	}

	d := Mean(images)
	for i, img := range images {
		log.Debug().Str("file", pdfPath).Int("page", i+1).Float64("density", PageDensity(img)).Msg("page density")
	}
	log.Debug().Str("file", pdfPath).Int("pages", len(images)).Float64("density", d).Msg("visual density")
	return d
}

// Mean averages PageDensity over images; no images yields 0.
func Mean(images []image.Image) float64 {
	if len(images) == 0 {
		return 0
	}
	sum := 0.0
	for _, img := range images {
		sum += PageDensity(img)
	}
	return clamp(sum / float64(len(images)))
}

// PageDensity is the fraction of pixels whose luminance is at or below InkThreshold.
func PageDensity(img image.Image) float64 {
	if img == nil {
		return 0
	}
	gray := toGrayscale(img)
	b := gray.Bounds()
	total := b.Dx() * b.Dy()
	if total <= 0 {
		return 0
	}
	ink := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := gray.Pix[(y-b.Min.Y)*gray.Stride : (y-b.Min.Y)*gray.Stride+b.Dx()]
		for _, v := range row {
			if v <= InkThreshold {
				ink++
			}
		}
	}
	return clamp(float64(ink) / float64(total))
}

// toGrayscale converts an image to 8-bit luminance.
// color.GrayModel uses the BT.601 weights (0.299, 0.587, 0.114).
func toGrayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.SetGray(x-bounds.Min.X, y-bounds.Min.Y, color.GrayModel.Convert(img.At(x, y)).(color.Gray))
		}
	}
	return gray
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
