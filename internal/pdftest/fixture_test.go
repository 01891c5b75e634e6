package pdftest

import (
	"bytes"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

func TestBuildIsValidPDF(t *testing.T) {
	t.Parallel()

	path := Write(t, t.TempDir(), "fixture.pdf", "Hello (world)", "", "Third page")
	n, err := api.PageCountFile(path)
	if err != nil {
		t.Fatalf("pdfcpu rejected fixture: %v", err)
	}
	if n != 3 {
		t.Errorf("page count = %d, want 3", n)
	}
}

func TestBuildEscapesText(t *testing.T) {
	t.Parallel()

	if !bytes.Contains(Build(`a(b)\c`), []byte(`(a\(b\)\\c) Tj`)) {
		t.Error("text operand not escaped")
	}
}
