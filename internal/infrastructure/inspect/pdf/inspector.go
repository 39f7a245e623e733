package pdf

import (
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// Inspector reads the page count of a PDF without extracting content.
type Inspector struct{}

func New() Inspector {
	return Inspector{}
}

// PageCount recovers from parser panics; malformed files only yield an error.
func (Inspector) PageCount(r io.ReaderAt, size int64) (pages int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = 0, fmt.Errorf("parse pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	return reader.NumPage(), nil
}
