package density

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
	"time"
)

type fakeBackend struct {
	available bool
	images    []image.Image
	err       error
	gotPages  int
	gotDPI    float64
	block     bool
}

func (f *fakeBackend) Name() string    { return "fake" }
func (f *fakeBackend) Available() bool { return f.available }

func (f *fakeBackend) Rasterize(ctx context.Context, _ string, pages int, dpi float64) ([]image.Image, error) {
	f.gotPages = pages
	f.gotDPI = dpi
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if pages < len(f.images) {
		return f.images[:pages], nil
	}
	return f.images, nil
}

// page builds a 10x10 image whose first inkPixels pixels are black.
func page(inkPixels int) image.Image {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range img.Pix {
		if i < inkPixels {
			img.Pix[i] = 0
		} else {
			img.Pix[i] = 255
		}
	}
	return img
}

func TestPageDensityThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		shade uint8
		want  float64
	}{
		{name: "black", shade: 0, want: 1},
		{name: "at threshold counts as ink", shade: 127, want: 1},
		{name: "just above threshold", shade: 128, want: 0},
		{name: "white", shade: 255, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			img := image.NewGray(image.Rect(0, 0, 4, 4))
			for i := range img.Pix {
				img.Pix[i] = tc.shade
			}
			if got := PageDensity(img); got != tc.want {
				t.Errorf("PageDensity = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPageDensityColor(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(5, 5, 7, 7))
	// Pure red: luminance ~76, ink.
	img.Set(5, 5, color.RGBA{R: 255, A: 255})
	// Pure green: luminance ~150, background.
	img.Set(6, 5, color.RGBA{G: 255, A: 255})
	img.Set(5, 6, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img.Set(6, 6, color.RGBA{A: 255})

	if got := PageDensity(img); got != 0.5 {
		t.Errorf("PageDensity = %v, want 0.5", got)
	}
}

func TestPageDensityEmpty(t *testing.T) {
	t.Parallel()

	if got := PageDensity(image.NewGray(image.Rect(0, 0, 0, 0))); got != 0 {
		t.Errorf("empty image density = %v", got)
	}
	if got := PageDensity(nil); got != 0 {
		t.Errorf("nil image density = %v", got)
	}
}

func TestMean(t *testing.T) {
	t.Parallel()

	if got := Mean(nil); got != 0 {
		t.Errorf("Mean(nil) = %v", got)
	}
	got := Mean([]image.Image{page(10), page(30)})
	if math.Abs(got-0.2) > 1e-12 {
		t.Errorf("Mean = %v, want 0.2", got)
	}
}

func TestSampleSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n, total, want int
	}{
		{n: 0, total: 100, want: 5},
		{n: 5, total: 3, want: 3},
		{n: 50, total: 100, want: 10},
		{n: 7, total: -1, want: 7},
		{n: 5, total: 0, want: 0},
		{n: -2, total: 2, want: 2},
	}
	for _, tc := range tests {
		if got := SampleSize(tc.n, tc.total); got != tc.want {
			t.Errorf("SampleSize(%d, %d) = %d, want %d", tc.n, tc.total, got, tc.want)
		}
	}
}

func TestEstimate(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{available: true, images: []image.Image{page(10), page(20), page(30), page(40), page(50), page(60)}}
	e := &Estimator{Backend: b, DPI: 100}

	got := e.Estimate(context.Background(), "a.pdf", 5, 3)
	if b.gotPages != 3 {
		t.Errorf("rendered %d pages, want 3", b.gotPages)
	}
	if b.gotDPI != 100 {
		t.Errorf("dpi = %v, want 100", b.gotDPI)
	}
	if math.Abs(got-0.2) > 1e-12 {
		t.Errorf("Estimate = %v, want 0.2", got)
	}
}

func TestEstimateCapsAtTen(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{available: true, images: []image.Image{page(1)}}
	e := &Estimator{Backend: b}
	e.Estimate(context.Background(), "a.pdf", 40, -1)
	if b.gotPages != MaxSamplePages {
		t.Errorf("rendered %d pages, want %d", b.gotPages, MaxSamplePages)
	}
	if b.gotDPI != 100 {
		t.Errorf("default dpi = %v, want 100", b.gotDPI)
	}
}

func TestEstimateDegradesToZero(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		e     *Estimator
		total int
	}{
		{name: "nil estimator", e: nil, total: 4},
		{name: "no backend", e: &Estimator{}, total: 4},
		{name: "backend unavailable", e: &Estimator{Backend: &fakeBackend{available: false, images: []image.Image{page(100)}}}, total: 4},
		{name: "render error", e: &Estimator{Backend: &fakeBackend{available: true, err: errors.New("boom")}}, total: 4},
		{name: "zero pages", e: &Estimator{Backend: &fakeBackend{available: true, images: []image.Image{page(100)}}}, total: 0},
		{name: "timeout", e: &Estimator{Backend: &fakeBackend{available: true, block: true}, Timeout: 10 * time.Millisecond}, total: 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.e.Estimate(context.Background(), "a.pdf", 5, tc.total); got != 0 {
				t.Errorf("Estimate = %v, want 0", got)
			}
		})
	}
}
