package llm

import (
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/joseph-ayodele/trial-screener/constants"
)

var reTruncationMarker = regexp.MustCompile(`\.\.\.\[内容过长已截断，原长度: (\d+) 字符\]$`)

// TruncationMarker is appended to text cut down to its budget.
func TruncationMarker(originalLength int) string {
	return fmt.Sprintf("...[内容过长已截断，原长度: %d 字符]", originalLength)
}

// Truncate cuts text to limit characters (runes) and appends a marker with
// the original length. Text already produced by Truncate for the same limit
// is returned as is, still reported as truncated.
//
// Such text is recognized by shape alone: exactly limit runes followed by a
// well-formed marker whose number exceeds limit. The returned length is then
// the number carried in the marker, not the length of text. Input that
// happens to have that shape, such as a pasted marker, is treated the same
// way.
func Truncate(text string, limit int) (string, bool, int) {
	if limit < 0 {
		limit = 0
	}
	n := utf8.RuneCountInString(text)
	if n <= limit {
		return text, false, n
	}
	if orig, ok := alreadyTruncated(text, limit); ok {
		return text, true, orig
	}
	cut := text
	i := 0
	for pos := range text {
		if i == limit {
			cut = text[:pos]
			break
		}
		i++
	}
	return cut + TruncationMarker(n), true, n
}

func alreadyTruncated(text string, limit int) (int, bool) {
	loc := reTruncationMarker.FindStringSubmatchIndex(text)
	if loc == nil {
		return 0, false
	}
	orig, err := strconv.Atoi(text[loc[2]:loc[3]])
	if err != nil {
		return 0, false
	}
	if utf8.RuneCountInString(text[:loc[0]]) != limit || orig <= limit {
		return 0, false
	}
	return orig, true
}

// TruncationNotice records that a field exceeded its budget on one classify call.
type TruncationNotice struct {
	Field          string `json:"field"`
	OriginalLength int    `json:"original_length"`
	Limit          int    `json:"limit"`
}

func (n TruncationNotice) String() string {
	return fmt.Sprintf("%s text truncated: %d characters, limit %d", n.Field, n.OriginalLength, n.Limit)
}

// Guard applies the per-field budgets used by classification.
type Guard struct {
	CriteriaLimit int
	CaseLimit     int
}

// Apply truncates both texts and returns a notice per truncated field.
func (g Guard) Apply(criteria, caseText string) (string, string, []TruncationNotice) {
	var notices []TruncationNotice
	criteria, cut, n := Truncate(criteria, g.CriteriaLimit)
	if cut {
		notices = append(notices, TruncationNotice{Field: constants.FieldCriteria, OriginalLength: n, Limit: g.CriteriaLimit})
	}
	caseText, cut, n = Truncate(caseText, g.CaseLimit)
	if cut {
		notices = append(notices, TruncationNotice{Field: constants.FieldCase, OriginalLength: n, Limit: g.CaseLimit})
	}
	return criteria, caseText, notices
}
