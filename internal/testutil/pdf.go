// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/go-pdf/fpdf"
)

// WritePDF writes an A4 PDF with the given number of pages into dir and
// returns its path. Each page carries its page number as text.
func WritePDF(t testing.TB, dir, name string, pages int) string {
	t.Helper()

	doc := fpdf.New("P", "mm", "A4", "")
	for i := 1; i <= pages; i++ {
		doc.AddPage()
		doc.SetFont("Helvetica", "", 12)
		doc.Cell(40, 10, fmt.Sprintf("page %d", i))
	}

	path := filepath.Join(dir, name)
	if err := doc.OutputFileAndClose(path); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	return path
}
