package raster

import (
	"context"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// MuPDF renders pages in-process with go-fitz.
type MuPDF struct{}

// NewMuPDF creates a go-fitz backed renderer.
func NewMuPDF() *MuPDF { return &MuPDF{} }

func (m *MuPDF) Name() string { return BackendMuPDF }

// Available always returns true since go-fitz is embedded.
func (m *MuPDF) Available() bool { return true }

// Rasterize renders up to pages leading pages, checking ctx between pages.
func (m *MuPDF) Rasterize(ctx context.Context, pdfPath string, pages int, dpi float64) ([]image.Image, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if n := doc.NumPage(); pages > n {
		pages = n
	}

	out := make([]image.Image, 0, pages)
	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// go-fitz uses 0-based indexing
		img, err := doc.ImageDPI(i, dpi)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", i+1, err)
		}
		b := img.Bounds()
		log.Debug().Int("page", i+1).Int("width", b.Dx()).Int("height", b.Dy()).Msg("rendered page")
		out = append(out, img)
	}
	return out, nil
}
