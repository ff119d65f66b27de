package utils

import (
	"errors"
	"strings"

	"github.com/joseph-ayodele/trial-screener/internal/entity"
	"github.com/joseph-ayodele/trial-screener/internal/screening"
)

// ErrNothingToSave is returned when the session has no verdict yet.
var ErrNothingToSave = errors.New("nothing to save: run classify first")

// RunFromSession maps the current session onto a storable run.
func RunFromSession(s screening.Session) (*entity.Run, error) {
	if s.Result == nil {
		return nil, ErrNothingToSave
	}
	notices := make([]string, 0, len(s.Result.Notices))
	for _, n := range s.Result.Notices {
		notices = append(notices, n.String())
	}
	pages := ""
	if s.CriteriaPages != nil {
		pages = s.CriteriaPages.String()
	}
	return &entity.Run{
		CriteriaPath:  s.CriteriaPath,
		CriteriaPages: pages,
		CasePath:      s.CasePath,
		Criteria:      s.Criteria,
		Case:          s.Case,
		Verdict:       s.Result.Text,
		Success:       s.Result.Success,
		Notices:       strings.Join(notices, "\n"),
		Model:         s.Result.Model,
		RequestID:     s.Result.RequestID,
		CreatedAt:     s.Result.At.UTC(),
	}, nil
}
