package extraction

import (
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrInvalidDocument marks a file that could not be read as a PDF.
var ErrInvalidDocument = errors.New("invalid document")

// PageCount opens the PDF at path and returns its page count.
func PageCount(path string) (int, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if pdfCtx.PageCount <= 0 {
		return 0, fmt.Errorf("%w: no pages", ErrInvalidDocument)
	}
	return pdfCtx.PageCount, nil
}
