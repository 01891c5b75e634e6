package analyzer

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// PageCounter returns the page count of a PDF using a parser other than MuPDF.
type PageCounter func(pdfPath string) (int, error)

const maxDiagnosis = 160

// diagnoseOpen annotates a MuPDF open failure with what pdfcpu makes of the file.
func diagnoseOpen(count PageCounter, path string, openErr error) error {
	if count == nil {
		return openErr
	}
	n, err := safeCount(count, path)
	if err != nil {
		log.Debug().Err(err).Str("file", path).Msg("pdfcpu could not read document either")
		return fmt.Errorf("%w (pdfcpu: %s)", openErr, shorten(err.Error()))
	}
	log.Warn().Str("file", path).Int("pages", n).Msg("pdfcpu reads a document MuPDF rejected")
	return fmt.Errorf("%w (pdfcpu reads %d pages)", openErr, n)
}

// safeCount turns parser panics on malformed input into errors.
func safeCount(count PageCounter, path string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return count(path)
}

func shorten(msg string) string {
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if len(msg) > maxDiagnosis {
		msg = msg[:maxDiagnosis] + "..."
	}
	return msg
}
