package raster

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"

	"golang.org/x/image/tiff"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: BackendPoppler},
		{in: "pdftoppm", want: BackendPoppler},
		{in: "Poppler", want: BackendPoppler},
		{in: "mupdf", want: BackendMuPDF},
		{in: "fitz", want: BackendMuPDF},
		{in: "none", want: BackendNone},
		{in: "ghostscript", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			b, err := New(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("New(%q) expected error", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%q): %v", tc.in, err)
			}
			if b.Name() != tc.want {
				t.Errorf("New(%q).Name() = %q, want %q", tc.in, b.Name(), tc.want)
			}
		})
	}
}

func TestNoneBackend(t *testing.T) {
	t.Parallel()

	var b Backend = None{}
	if b.Available() {
		t.Fatal("None backend must be unavailable")
	}
	if _, err := b.Rasterize(context.Background(), "x.pdf", 3, 100); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrBackendUnavailable", err)
	}
}

func TestPopplerMissingBinary(t *testing.T) {
	t.Parallel()

	p := &Poppler{Binary: "pdftoppm", LookPath: func(string) (string, error) {
		return "", errors.New("executable file not found in $PATH")
	}}
	if p.Available() {
		t.Fatal("Available() = true with missing binary")
	}
	_, err := p.Rasterize(context.Background(), "x.pdf", 2, 100)
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrBackendUnavailable", err)
	}
}

func TestPopplerZeroPages(t *testing.T) {
	t.Parallel()

	p := &Poppler{LookPath: func(string) (string, error) { return "", errors.New("unused") }}
	imgs, err := p.Rasterize(context.Background(), "x.pdf", 0, 100)
	if err != nil || len(imgs) != 0 {
		t.Fatalf("Rasterize(0 pages) = %d images, %v", len(imgs), err)
	}
}

func TestPopplerArgs(t *testing.T) {
	t.Parallel()

	got := popplerArgs("/docs/a.pdf", "/tmp/x/p", 5, 100)
	want := []string{"-r", "100", "-f", "1", "-l", "5", "-gray", "-tiff", "/docs/a.pdf", "/tmp/x/p"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("popplerArgs = %v, want %v", got, want)
	}
}

func writeTIFF(t *testing.T, path string, shade uint8, w, h int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := tiff.Encode(f, img, nil); err != nil {
		t.Fatal(err)
	}
}

func TestReadPagesOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeTIFF(t, filepath.Join(dir, "p-02.tif"), 20, 2, 2)
	writeTIFF(t, filepath.Join(dir, "p-01.tif"), 10, 2, 2)
	writeTIFF(t, filepath.Join(dir, "p-10.tif"), 100, 2, 2)
	if err := os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	imgs, err := readPages(dir)
	if err != nil {
		t.Fatalf("readPages: %v", err)
	}
	if len(imgs) != 3 {
		t.Fatalf("got %d images, want 3", len(imgs))
	}
	wantShades := []uint8{10, 20, 100}
	for i, img := range imgs {
		got := color.GrayModel.Convert(img.At(0, 0)).(color.Gray).Y
		if got != wantShades[i] {
			t.Errorf("page %d shade = %d, want %d", i+1, got, wantShades[i])
		}
	}
}

func TestReadPagesCorrupt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "p-1.tif"), []byte("not a tiff"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readPages(dir); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestPopplerCommandFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub needs a POSIX shell")
	}
	dir := t.TempDir()
	stub := filepath.Join(dir, "pdftoppm")
	script := "#!/bin/sh\necho 'Syntax Error: Couldn'\"'\"'t read xref table' >&2\nexit 1\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	p := &Poppler{Binary: stub, LookPath: func(s string) (string, error) { return s, nil }, TempDir: dir}
	if !p.Available() {
		t.Fatal("stub should be available")
	}
	if _, err := p.Rasterize(context.Background(), filepath.Join(dir, "a.pdf"), 1, 100); err == nil {
		t.Fatal("expected error from failing pdftoppm")
	}
}
