package ocr

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// CountPages opens the PDF and returns its page count.
func CountPages(path string) (n int, err error) {
	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("read pdf: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	n = r.NumPage()
	if n <= 0 {
		return 0, fmt.Errorf("pdf has no pages")
	}
	return n, nil
}
