package server

import (
	"errors"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/trial-screener/internal/common"
	"github.com/joseph-ayodele/trial-screener/internal/entity"
	"github.com/joseph-ayodele/trial-screener/internal/extract"
	"github.com/joseph-ayodele/trial-screener/internal/llm"
	"github.com/joseph-ayodele/trial-screener/internal/screening"
	"github.com/joseph-ayodele/trial-screener/internal/utils"
)

var (
	emptySchema = map[string]any{"type": "object"}
	pathSchema  = map[string]any{
		"type":     "object",
		"required": []string{"path"},
		"properties": map[string]any{
			"path":  map[string]any{"type": "string", "minLength": 1},
			"pages": map[string]any{"type": "string"},
		},
	}
	setTextSchema = map[string]any{
		"type":     "object",
		"required": []string{"target", "text"},
		"properties": map[string]any{
			"target": map[string]any{"type": "string"},
			"text":   map[string]any{"type": "string"},
		},
	}
	limitSchema = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"limit": map[string]any{"type": "number", "minimum": 0},
		},
	}
)

// decode validates the request document against schema and returns it as a map.
func decode(in *structpb.Struct, schema map[string]any) (map[string]any, error) {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return nil, common.InvalidArgumentErrorf("encode request: %v", err)
	}
	if err := llm.ValidateJSONAgainstSchema(schema, raw); err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	return in.AsMap(), nil
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func num(m map[string]any, key string) int {
	f, _ := m[key].(float64)
	return int(f)
}

// pageRange turns the optional "pages" field into a window. Absent means
// the whole document; present but selecting nothing is rejected.
func pageRange(m map[string]any) (*extract.PageRange, error) {
	raw, ok := m["pages"].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	pages, err := extract.ParsePageSelection(raw)
	if err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	r, ok := extract.RangeFromSelection(pages)
	if !ok {
		return nil, common.InvalidArgumentError("no pages selected")
	}
	return &r, nil
}

func sessionStruct(s screening.Session, st screening.Status) (*structpb.Struct, error) {
	m := map[string]any{
		"criteria":      s.Criteria,
		"case":          s.Case,
		"criteria_path": s.CriteriaPath,
		"case_path":     s.CasePath,
		"status": map[string]any{
			"kind":    string(st.Kind),
			"message": st.Message,
		},
	}
	if s.CriteriaPages != nil {
		m["criteria_pages"] = s.CriteriaPages.String()
	}
	if s.Result != nil {
		notices := make([]any, 0, len(s.Result.Notices))
		for _, n := range s.Result.Notices {
			notices = append(notices, map[string]any{
				"field":           n.Field,
				"original_length": n.OriginalLength,
				"limit":           n.Limit,
			})
		}
		m["result"] = map[string]any{
			"success":    s.Result.Success,
			"text":       s.Result.Text,
			"display":    s.Result.Display(),
			"model":      s.Result.Model,
			"request_id": s.Result.RequestID,
			"notices":    notices,
		}
	}
	return structpb.NewStruct(m)
}

func runMap(r *entity.Run) map[string]any {
	return map[string]any{
		"id":             r.ID.String(),
		"created_at":     r.CreatedAt.UTC().Format(time.RFC3339),
		"criteria_path":  r.CriteriaPath,
		"criteria_pages": r.CriteriaPages,
		"case_path":      r.CasePath,
		"verdict":        r.Verdict,
		"success":        r.Success,
		"notices":        r.Notices,
		"model":          r.Model,
	}
}

// toStatus maps workflow errors onto gRPC codes. The message is the one
// shown to the user.
func toStatus(err error) error {
	var (
		empty   *screening.EmptyInputError
		conv    *extract.ConversionError
		failure *llm.Failure
	)
	switch {
	case errors.Is(err, screening.ErrBusy):
		return common.UnavailableError(err.Error())
	case errors.As(err, &empty):
		return common.InvalidArgumentError(empty.Error())
	case errors.As(err, &conv):
		return common.FailedPreconditionError(conv.Error())
	case errors.Is(err, screening.ErrDeclaredFailure):
		return common.AbortedError(err.Error())
	case errors.Is(err, utils.ErrNothingToSave):
		return common.FailedPreconditionError(err.Error())
	case errors.Is(err, common.ErrNotFound):
		return common.NotFoundError(err.Error())
	case errors.As(err, &failure):
		switch failure.Kind {
		case llm.FailureTimeout:
			return common.DeadlineExceededError(failure.UserMessage())
		case llm.FailureConnection, llm.FailureNonSuccessStatus:
			return common.UnavailableError(failure.UserMessage())
		default:
			return common.InternalError(failure.UserMessage())
		}
	}
	return common.InternalError(err.Error())
}
