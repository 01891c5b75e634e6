package density

import (
	"context"
	"os/exec"
	"testing"

	"github.com/local/ocrcheck/internal/pdftest"
	"github.com/local/ocrcheck/internal/raster"
)

func estimateReal(t *testing.T, b raster.Backend) {
	t.Helper()
	dir := t.TempDir()
	inked := pdftest.Write(t, dir, "inked.pdf", "Scanned invoice", "Page two")
	blank := pdftest.Write(t, dir, "blank.pdf", "", "")

	e := New(b, 0, 0)
	d := e.Estimate(context.Background(), inked, 5, 2)
	// The fixture's bar alone covers 24% of each page.
	if d <= 0.2 || d > 1 {
		t.Errorf("%s: inked density = %v, want in (0.2, 1]", b.Name(), d)
	}
	if got := e.Estimate(context.Background(), blank, 5, 2); got != 0 {
		t.Errorf("%s: blank density = %v, want 0", b.Name(), got)
	}
}

func TestEstimateMuPDF(t *testing.T) {
	estimateReal(t, raster.NewMuPDF())
}

func TestEstimatePoppler(t *testing.T) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		t.Skip("pdftoppm not installed")
	}
	estimateReal(t, raster.NewPoppler())
}
