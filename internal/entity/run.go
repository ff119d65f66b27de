package entity

import (
	"time"

	"github.com/google/uuid"
)

// Run is a saved screening: the texts that were compared and the verdict.
type Run struct {
	ID            uuid.UUID `json:"id"`
	CriteriaPath  string    `json:"criteria_path"`
	CriteriaPages string    `json:"criteria_pages,omitempty"` // "3-5", empty for the whole document
	CasePath      string    `json:"case_path"`
	Criteria      string    `json:"criteria"`
	Case          string    `json:"case"`
	Verdict       string    `json:"verdict"`
	Success       bool      `json:"success"`
	Notices       string    `json:"notices,omitempty"` // one truncation notice per line
	Model         string    `json:"model,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
