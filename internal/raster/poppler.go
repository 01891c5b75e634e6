package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/tiff"
)

// Poppler renders pages with the pdftoppm binary found on PATH.
type Poppler struct {
	Binary   string
	LookPath func(string) (string, error)
	TempDir  string
}

// NewPoppler creates a Poppler backend using exec.LookPath for discovery.
func NewPoppler() *Poppler {
	return &Poppler{Binary: "pdftoppm", LookPath: exec.LookPath}
}

func (p *Poppler) Name() string { return BackendPoppler }

// Path returns the resolved pdftoppm path or an error if it is not on PATH.
func (p *Poppler) Path() (string, error) {
	lookPath := p.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	bin := p.Binary
	if bin == "" {
		bin = "pdftoppm"
	}
	path, err := lookPath(bin)
	if err != nil {
		return "", fmt.Errorf("%w: %s not found in PATH", ErrBackendUnavailable, bin)
	}
	return path, nil
}

// Available checks if pdftoppm is on PATH.
func (p *Poppler) Available() bool {
	_, err := p.Path()
	return err == nil
}

// Rasterize runs pdftoppm into a private temp dir and decodes the grayscale TIFFs it writes.
func (p *Poppler) Rasterize(ctx context.Context, pdfPath string, pages int, dpi float64) ([]image.Image, error) {
	if pages <= 0 {
		return nil, nil
	}
	bin, err := p.Path()
	if err != nil {
		return nil, err
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	dir, err := os.MkdirTemp(p.TempDir, "ocrcheck-raster-")
	if err != nil {
		return nil, fmt.Errorf("create raster dir: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, uuid.NewString())
	args := popplerArgs(pdfPath, prefix, pages, dpi)
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Debug().Str("cmd", bin+" "+strings.Join(args, " ")).Msg("pdftoppm command")

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("pdftoppm: %w", ctxErr)
		}
		return nil, fmt.Errorf("pdftoppm failed: %v: %s", err, strings.TrimSpace(stderr.String()))
	}

	return readPages(dir)
}

func popplerArgs(pdfPath, prefix string, pages int, dpi float64) []string {
	return []string{
		"-r", strconv.FormatFloat(dpi, 'f', -1, 64),
		"-f", "1",
		"-l", strconv.Itoa(pages),
		"-gray",
		"-tiff",
		pdfPath,
		prefix,
	}
}

// readPages decodes every TIFF in dir in page order.
// pdftoppm zero-pads the page suffix to the width of the last page number,
// so a lexical sort of the names is page order.
func readPages(dir string) ([]image.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read raster dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".tif" || ext == ".tiff" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	images := make([]image.Image, 0, len(names))
	for _, name := range names {
		img, err := decodeTIFF(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

func decodeTIFF(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open page image: %w", err)
	}
	defer f.Close()
	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
