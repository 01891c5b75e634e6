package textlayer

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// ErrDocumentOpen is returned when a document cannot be opened or parsed.
var ErrDocumentOpen = errors.New("document open failed")

// Metrics aggregates the text layer of a whole document.
// Derived values are methods so they always agree with the base counts.
type Metrics struct {
	TotalPages      int `json:"total_pages" yaml:"total_pages"`
	PagesWithText   int `json:"pages_with_text" yaml:"pages_with_text"`
	TotalTextLength int `json:"total_text_length" yaml:"total_text_length"`
}

// HasTextLayer reports whether at least one page carries text.
func (m Metrics) HasTextLayer() bool { return m.PagesWithText > 0 }

// TextPagesRatio is PagesWithText / TotalPages, or 0 for an empty document.
func (m Metrics) TextPagesRatio() float64 {
	if m.TotalPages <= 0 {
		return 0
	}
	return float64(m.PagesWithText) / float64(m.TotalPages)
}

// AvgTextPerPage is TotalTextLength / max(PagesWithText, 1).
func (m Metrics) AvgTextPerPage() float64 {
	n := m.PagesWithText
	if n < 1 {
		n = 1
	}
	return float64(m.TotalTextLength) / float64(n)
}

// Doc abstracts a PDF document for text extraction.
type Doc interface {
	NumPage() int
	Text(i int) (string, error)
	Close() error
}

// Opener abstracts opening a PDF path into a Doc.
type Opener interface {
	Open(path string) (Doc, error)
}

// defaultOpener is provided in doc_open_fitz.go using go-fitz.
var defaultOpener Opener

func setDefaultOpener(o Opener) { defaultOpener = o }

// DefaultOpener returns the go-fitz backed opener.
func DefaultOpener() Opener { return defaultOpener }

// Analyze scans every page of pdfPath with the default opener.
func Analyze(pdfPath string) (Metrics, error) {
	return AnalyzeWith(defaultOpener, pdfPath)
}

// AnalyzeWith scans every page in order using the given opener.
// A page counts as having text iff its trimmed text is non-empty.
// Pages whose extraction fails are counted as textless.
func AnalyzeWith(o Opener, pdfPath string) (Metrics, error) {
	if o == nil {
		return Metrics{}, errors.New("no PDF opener configured")
	}

	start := time.Now()
	d, err := o.Open(pdfPath)
	if err != nil {
		return Metrics{}, fmt.Errorf("%w: %s: %v", ErrDocumentOpen, pdfPath, err)
	}
	defer d.Close()

	m := Metrics{TotalPages: d.NumPage()}
	if m.TotalPages < 0 {
		m.TotalPages = 0
	}

	for i := 0; i < m.TotalPages; i++ {
		text, terr := d.Text(i)
		if terr != nil {
			log.Warn().Err(terr).Str("file", pdfPath).Int("page", i+1).Msg("page text extraction failed; treating page as textless")
			continue
		}
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}
		m.PagesWithText++
		m.TotalTextLength += utf8.RuneCountInString(trimmed)
	}

	log.Debug().
		Str("file", pdfPath).
		Int("pages", m.TotalPages).
		Int("pages_with_text", m.PagesWithText).
		Int("chars", m.TotalTextLength).
		Dur("took", time.Since(start)).
		Msg("text layer analyzed")

	return m, nil
}
