package extract

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// PageRange is a 1-based inclusive page window. A nil *PageRange means the
// whole document.
type PageRange struct {
	Start int
	End   int
}

func (r PageRange) String() string {
	if r.Start == r.End {
		return strconv.Itoa(r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Len is the number of pages in the window.
func (r PageRange) Len() int {
	return r.End - r.Start + 1
}

// Validate checks 1 <= Start <= End <= pages.
func (r PageRange) Validate(pages int) error {
	switch {
	case r.Start < 1:
		return fmt.Errorf("page range %s: start must be at least 1", r)
	case r.End < r.Start:
		return fmt.Errorf("page range %d-%d: end before start", r.Start, r.End)
	case r.End > pages:
		return fmt.Errorf("page range %s: document has %d pages", r, pages)
	}
	return nil
}

// RangeFromSelection collapses a set of selected pages into the window
// spanning the lowest and highest page. Gaps are converted too. An empty
// selection yields false: nothing should be loaded.
func RangeFromSelection(pages []int) (PageRange, bool) {
	if len(pages) == 0 {
		return PageRange{}, false
	}
	sorted := append([]int(nil), pages...)
	sort.Ints(sorted)
	return PageRange{Start: sorted[0], End: sorted[len(sorted)-1]}, true
}

// ParsePageSelection parses "3", "3-5", "3,4,5" or "1-2,7" into page numbers.
func ParsePageSelection(s string) ([]int, error) {
	var pages []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid page %q", part)
		}
		end := start
		if isRange {
			if end, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, fmt.Errorf("invalid page %q", part)
			}
		}
		if start < 1 || end < start {
			return nil, fmt.Errorf("invalid page range %q", part)
		}
		for p := start; p <= end; p++ {
			pages = append(pages, p)
		}
	}
	return pages, nil
}

// ExtractedText is the outcome of one load. Failures are reported in the
// value, never as an error.
type ExtractedText struct {
	Success  bool
	Text     string
	Message  string
	Filtered bool // a page range was applied
	Method   string
	Pages    int // pages converted
	Duration time.Duration
}

// DocumentLoader turns a PDF (optionally a page window of it) into text.
type DocumentLoader interface {
	Load(ctx context.Context, path string, pages *PageRange) ExtractedText
}

// ConversionError is how callers surface an unsuccessful ExtractedText.
type ConversionError struct {
	Path   string
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("document conversion failed for %s: %s", e.Path, e.Reason)
}
