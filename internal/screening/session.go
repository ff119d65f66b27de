package screening

import (
	"errors"
	"strings"
	"time"

	"github.com/joseph-ayodele/trial-screener/constants"
	"github.com/joseph-ayodele/trial-screener/internal/extract"
	"github.com/joseph-ayodele/trial-screener/internal/llm"
)

var (
	// ErrBusy rejects an action while another one is awaiting the converter or the model.
	ErrBusy = errors.New("another action is still running")
	// ErrEmptyInput is matched by every *EmptyInputError.
	ErrEmptyInput = errors.New("empty input")
	// ErrDeclaredFailure means the model answered, but its reply starts with the failure marker.
	ErrDeclaredFailure = errors.New("model reported the analysis as failed")
)

// EmptyInputError names the slot that was empty when an action needed it.
type EmptyInputError struct {
	Field string
}

func (e *EmptyInputError) Error() string {
	return e.Field + " text is empty"
}

func (e *EmptyInputError) Is(target error) bool {
	return target == ErrEmptyInput
}

// AnalysisResult is the latest classify verdict.
type AnalysisResult struct {
	Success   bool
	Text      string
	Notices   []llm.TruncationNotice
	Model     string
	RequestID string
	At        time.Time
}

// Display renders the result the way it is shown in the result panel:
// truncation notices first, then the verdict.
func (r *AnalysisResult) Display() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, n := range r.Notices {
		b.WriteString("[")
		b.WriteString(n.String())
		b.WriteString("]\n")
	}
	if len(r.Notices) > 0 {
		b.WriteString("\n")
	}
	b.WriteString(r.Text)
	return b.String()
}

func (r *AnalysisResult) clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Notices = append([]llm.TruncationNotice(nil), r.Notices...)
	return &c
}

// Session is the state of one screening: two editable text slots, the
// latest verdict and where the texts came from.
type Session struct {
	Criteria      string
	Case          string
	Result        *AnalysisResult
	CriteriaPath  string
	CriteriaPages *extract.PageRange
	CasePath      string
}

func (s Session) clone() Session {
	c := s
	c.Result = s.Result.clone()
	if s.CriteriaPages != nil {
		p := *s.CriteriaPages
		c.CriteriaPages = &p
	}
	return c
}

// Status is the one-line indicator shown after every action.
type Status struct {
	Kind    constants.StatusKind
	Message string
}

func (s Status) String() string {
	if s.Message == "" {
		return string(s.Kind)
	}
	return string(s.Kind) + ": " + s.Message
}

// DeclaredFailure reports whether the model's reply opens with marker.
// An empty marker disables the check.
func DeclaredFailure(text, marker string) bool {
	if marker == "" {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(text), marker)
}
