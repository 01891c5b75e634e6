package textlayer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/local/ocrcheck/internal/pdftest"
)

func TestAnalyzeRealDocument(t *testing.T) {
	dir := t.TempDir()
	path := pdftest.Write(t, dir, "mixed.pdf", "Hello world", "", "Second text page")

	m, err := Analyze(path)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if m.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", m.TotalPages)
	}
	if m.PagesWithText != 2 {
		t.Errorf("PagesWithText = %d, want 2", m.PagesWithText)
	}
	// MuPDF may split words differently but never invents glyphs.
	want := len("Hello world") + len("Second text page")
	if m.TotalTextLength < want-4 || m.TotalTextLength > want+4 {
		t.Errorf("TotalTextLength = %d, want about %d", m.TotalTextLength, want)
	}
}

func TestAnalyzeRealBlankDocument(t *testing.T) {
	path := pdftest.Write(t, t.TempDir(), "blank.pdf", "", "")

	m, err := Analyze(path)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if m.TotalPages != 2 || m.HasTextLayer() {
		t.Errorf("metrics = %+v, want 2 textless pages", m)
	}
}

func TestAnalyzeRealCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Analyze(path); !errors.Is(err, ErrDocumentOpen) {
		t.Fatalf("err = %v, want ErrDocumentOpen", err)
	}
	if _, err := Analyze(filepath.Join(dir, "missing.pdf")); !errors.Is(err, ErrDocumentOpen) {
		t.Fatalf("err = %v, want ErrDocumentOpen", err)
	}
}

func TestFitzDocText(t *testing.T) {
	path := pdftest.Write(t, t.TempDir(), "one.pdf", "Only page")
	d, err := DefaultOpener().Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	text, err := d.Text(0)
	if err != nil || !strings.Contains(text, "Only") {
		t.Errorf("Text(0) = %q, %v", text, err)
	}
	if _, err := d.Text(5); err == nil {
		t.Error("Text past the last page returned no error")
	}
}

func TestFitzDocTextRecoversPanic(t *testing.T) {
	t.Parallel()

	// A zero document makes go-fitz dereference nil.
	_, err := fitzDoc{}.Text(2)
	if err == nil || !strings.HasPrefix(err.Error(), "page 3:") {
		t.Errorf("err = %v, want recovered page 3 error", err)
	}
}
