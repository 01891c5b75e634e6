package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
)

// DefaultDPI is low on purpose; density analysis does not need fine detail.
const DefaultDPI = 100.0

// ErrBackendUnavailable is returned when the rendering backend cannot run here.
var ErrBackendUnavailable = errors.New("raster backend unavailable")

// Backend renders the leading pages of a PDF to images.
type Backend interface {
	Name() string
	Available() bool
	// Rasterize renders pages 1..pages of pdfPath at dpi.
	Rasterize(ctx context.Context, pdfPath string, pages int, dpi float64) ([]image.Image, error)
}

// Backend names accepted by New.
const (
	BackendPoppler = "pdftoppm"
	BackendMuPDF   = "mupdf"
	BackendNone    = "none"
)

// New returns the backend registered under name.
func New(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendPoppler, "poppler":
		return NewPoppler(), nil
	case BackendMuPDF, "fitz":
		return NewMuPDF(), nil
	case BackendNone, "off":
		return None{}, nil
	default:
		return nil, fmt.Errorf("unknown raster backend %q", name)
	}
}

// None is a backend that is never available.
type None struct{}

func (None) Name() string    { return BackendNone }
func (None) Available() bool { return false }

func (None) Rasterize(context.Context, string, int, float64) ([]image.Image, error) {
	return nil, ErrBackendUnavailable
}
