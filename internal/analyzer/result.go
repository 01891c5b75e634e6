package analyzer

import (
	"os"
	"path/filepath"
)

// FileMetrics holds the basic file attributes used by the rules.
type FileMetrics struct {
	Filename string  `json:"filename" yaml:"filename"`
	SizeMB   float64 `json:"file_size_mb" yaml:"file_size_mb"`
}

// Result is the per-document OCR decision record.
// It is built once per document and not modified afterwards.
type Result struct {
	Filename       string   `json:"filename" yaml:"filename"`
	Path           string   `json:"path,omitempty" yaml:"path,omitempty"`
	HasTextLayer   bool     `json:"has_text_layer" yaml:"has_text_layer"`
	TextPagesRatio float64  `json:"text_pages_ratio" yaml:"text_pages_ratio"`
	AvgTextDensity float64  `json:"avg_text_density" yaml:"avg_text_density"`
	OCRRequired    bool     `json:"ocr_required" yaml:"ocr_required"`
	FileSizeMB     float64  `json:"file_size_mb" yaml:"file_size_mb"`
	TotalPages     int      `json:"total_pages" yaml:"total_pages"`
	PagesWithText  int      `json:"pages_with_text" yaml:"pages_with_text"`
	AvgTextPerPage float64  `json:"avg_text_per_page" yaml:"avg_text_per_page"`
	Rules          []string `json:"rules,omitempty" yaml:"rules,omitempty"`
	DensitySkipped bool     `json:"density_skipped,omitempty" yaml:"density_skipped,omitempty"`
	Fingerprint    string   `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	Error          string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed reports whether the document could not be analyzed.
func (r Result) Failed() bool { return r.Error != "" }

// ErrorResult builds the conservative record for a document that could not be analyzed:
// OCR is assumed to be required and no pages are reported.
func ErrorResult(path string, err error) Result {
	r := Result{
		Filename:    filepath.Base(path),
		Path:        path,
		OCRRequired: true,
		TotalPages:  0,
		Error:       "unknown error",
	}
	if err != nil && err.Error() != "" {
		r.Error = err.Error()
	}
	if st, serr := os.Stat(path); serr == nil && !st.IsDir() {
		r.FileSizeMB = bytesToMB(st.Size())
	}
	return r
}

func bytesToMB(n int64) float64 {
	return float64(n) / (1024 * 1024)
}
