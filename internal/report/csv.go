package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/local/ocrcheck/internal/analyzer"
)

// ErrNoResults is returned when there is nothing to persist.
var ErrNoResults = errors.New("no results to save")

// CSVHeader is the fixed column order of the persisted report.
var CSVHeader = []string{"filename", "has_text_layer", "avg_text_density", "ocr_required"}

// WriteCSV writes one row per result. Error rows carry only the fields
// that were computed: filename and ocr_required.
func WriteCSV(w io.Writer, results []analyzer.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{r.Filename, "", "", pyBool(r.OCRRequired)}
		if !r.Failed() {
			row[1] = pyBool(r.HasTextLayer)
			row[2] = pyFloat(r.AvgTextDensity)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// EncodeCSV renders the report in memory.
func EncodeCSV(results []analyzer.Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, results); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveCSV writes the report to path, creating parent directories.
// An empty result set writes nothing and returns ErrNoResults.
func SaveCSV(path string, results []analyzer.Result) error {
	if len(results) == 0 {
		return ErrNoResults
	}
	data, err := EncodeCSV(results)
	if err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// pyFloat prints the shortest representation that round-trips, always with
// a fractional part or exponent, e.g. 0 -> "0.0", 0.015 -> "0.015".
func pyFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if strings.ContainsAny(s, ".eIN") {
		return s
	}
	return s + ".0"
}
