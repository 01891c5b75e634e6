package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/local/ocrcheck/internal/analyzer"
)

// Output formats for the console report.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Summary aggregates a batch for reporting.
type Summary struct {
	TotalFiles     int               `json:"total_files" yaml:"total_files"`
	WithTextLayer  int               `json:"files_with_text_layer" yaml:"files_with_text_layer"`
	OCRRequired    int               `json:"files_requiring_ocr" yaml:"files_requiring_ocr"`
	OCRNotRequired int               `json:"files_not_requiring_ocr" yaml:"files_not_requiring_ocr"`
	Failed         int               `json:"files_failed" yaml:"files_failed"`
	Results        []analyzer.Result `json:"results" yaml:"results"`
}

// Summarize counts results. The caller is expected to have sorted them.
func Summarize(results []analyzer.Result) Summary {
	s := Summary{TotalFiles: len(results), Results: results}
	for _, r := range results {
		if r.HasTextLayer {
			s.WithTextLayer++
		}
		if r.OCRRequired {
			s.OCRRequired++
		}
		if r.Failed() {
			s.Failed++
		}
	}
	s.OCRNotRequired = s.TotalFiles - s.OCRRequired
	return s
}

// Write renders the summary in the requested format.
func Write(w io.Writer, format string, s Summary) error {
	if isText(format) {
		return WriteText(w, s)
	}
	return encode(w, format, s)
}

// WriteResult renders one result in the requested format.
func WriteResult(w io.Writer, format string, r analyzer.Result) error {
	if isText(format) {
		return WriteDetail(w, r)
	}
	return encode(w, format, r)
}

func isText(format string) bool {
	f := strings.ToLower(format)
	return f == "" || f == FormatText
}

func encode(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// WriteText prints the human readable batch summary.
func WriteText(w io.Writer, s Summary) error {
	p := &printer{w: w}
	p.line(strings.Repeat("=", 80))
	p.line("OCR ANALYSIS SUMMARY")
	p.line(strings.Repeat("=", 80))
	p.printf("Total files:              %d\n", s.TotalFiles)
	p.printf("Files with text layer:    %d\n", s.WithTextLayer)
	p.printf("Files requiring OCR:      %d\n", s.OCRRequired)
	p.printf("Files not requiring OCR:  %d\n", s.OCRNotRequired)
	p.line(strings.Repeat("-", 80))

	for _, r := range s.Results {
		errMark := ""
		if r.Failed() {
			errMark = "  [ERROR]"
		}
		p.printf("%-40s %s%s\n", r.Filename, Status(r.OCRRequired), errMark)
		if r.Failed() {
			p.printf("   Error: %s\n", r.Error)
			continue
		}
		p.printf("   Text layer: %s\n", yesNo(r.HasTextLayer))
		p.printf("   Text density: %s\n", Percent(r.AvgTextDensity, 3))
		p.printf("   Pages with text: %s\n", Percent(r.TextPagesRatio, 1))
	}
	return p.err
}

// WriteDetail prints the step-by-step analysis of one document.
func WriteDetail(w io.Writer, r analyzer.Result) error {
	p := &printer{w: w}
	p.printf("Analyzing PDF: %s\n", r.Filename)
	p.line(strings.Repeat("=", 50))
	if r.Failed() {
		p.printf("Analysis error: %s\n", r.Error)
		p.line(strings.Repeat("=", 50))
		p.printf("RESULT: %s\n", Status(r.OCRRequired))
		return p.err
	}
	p.printf("File size: %.2f MB\n", r.FileSizeMB)
	p.printf("Pages with text: %d/%d\n", r.PagesWithText, r.TotalPages)
	p.printf("Text page ratio: %s\n", Percent(r.TextPagesRatio, 1))
	p.printf("Average text per page: %.0f characters\n", r.AvgTextPerPage)
	if r.DensitySkipped {
		p.line("Visual density: skipped (raster backend not found)")
	} else {
		p.printf("Visual text density: %s\n", Percent(r.AvgTextDensity, 3))
	}
	if len(r.Rules) > 0 {
		p.printf("Rules fired: %s\n", strings.Join(r.Rules, ", "))
	}
	p.line(strings.Repeat("=", 50))
	p.printf("RESULT: %s\n", Status(r.OCRRequired))
	return p.err
}

// Status is the console label for a verdict.
func Status(ocrRequired bool) string {
	if ocrRequired {
		return "OCR REQUIRED"
	}
	return "OCR NOT REQUIRED"
}

// Percent formats a ratio as a percentage with the given decimals, e.g. 0.5 -> "50.0%".
func Percent(v float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, v*100)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// printer keeps the first write error so callers can print unconditionally.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) line(s string) { p.printf("%s\n", s) }
