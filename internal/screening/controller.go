package screening

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/trial-screener/constants"
	"github.com/joseph-ayodele/trial-screener/internal/extract"
	"github.com/joseph-ayodele/trial-screener/internal/llm"
)

// Controller owns one Session and runs the workflow actions against it.
// At most one action runs at a time; a second one fails fast with ErrBusy.
type Controller struct {
	busy sync.Mutex // held for the whole action

	mu      sync.RWMutex // guards session and status
	session Session
	status  Status

	loader   extract.DocumentLoader
	llm      llm.Completer
	cfg      Config
	logger   *slog.Logger
	onStatus func(Status)
	now      func() time.Time
}

type Option func(*Controller)

// WithStatusListener is called on every status change, including "running".
func WithStatusListener(fn func(Status)) Option {
	return func(c *Controller) { c.onStatus = fn }
}

func NewController(loader extract.DocumentLoader, completer llm.Completer, cfg Config, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		loader: loader,
		llm:    completer,
		cfg:    cfg,
		logger: logger,
		status: Status{Kind: constants.StatusIdle},
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Snapshot returns a copy of the session.
func (c *Controller) Snapshot() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.clone()
}

func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Controller) setStatus(kind constants.StatusKind, msg string) {
	st := Status{Kind: kind, Message: msg}
	c.mu.Lock()
	c.status = st
	c.mu.Unlock()
	if c.onStatus != nil {
		c.onStatus(st)
	}
}

func (c *Controller) update(fn func(s *Session)) {
	c.mu.Lock()
	fn(&c.session)
	c.mu.Unlock()
}

// begin takes the busy guard and announces the action.
func (c *Controller) begin(op, msg string) (func(), error) {
	if !c.busy.TryLock() {
		c.logger.Warn("screening.busy", "op", op)
		return nil, ErrBusy
	}
	c.setStatus(constants.StatusRunning, msg)
	return c.busy.Unlock, nil
}

func (c *Controller) fail(op string, err error, msg string, start time.Time) error {
	c.setStatus(constants.StatusFailure, msg)
	c.logger.Error("screening."+op+".failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
	return err
}

// LoadCriteriaDocument converts the protocol (or pages of it) into the
// criteria slot. On failure the slot keeps its previous value.
func (c *Controller) LoadCriteriaDocument(ctx context.Context, path string, pages *extract.PageRange) error {
	done, err := c.begin("load_criteria", "converting "+path)
	if err != nil {
		return err
	}
	defer done()
	start := time.Now()

	res := c.loader.Load(ctx, path, pages)
	if !res.Success {
		return c.fail("load_criteria", &extract.ConversionError{Path: path, Reason: res.Message}, "document conversion failed: "+res.Message, start)
	}
	c.update(func(s *Session) {
		s.Criteria = res.Text
		s.CriteriaPath = path
		s.CriteriaPages = pages
	})
	if res.Filtered {
		c.setStatus(constants.StatusInfo, res.Message+" (filtered)")
	} else {
		c.setStatus(constants.StatusSuccess, res.Message)
	}
	c.logger.Info("screening.load_criteria.ok", "path", path, "chars", len([]rune(res.Text)), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// LoadCaseDocument converts the whole patient case into the case slot.
func (c *Controller) LoadCaseDocument(ctx context.Context, path string) error {
	done, err := c.begin("load_case", "converting "+path)
	if err != nil {
		return err
	}
	defer done()
	start := time.Now()

	res := c.loader.Load(ctx, path, nil)
	if !res.Success {
		return c.fail("load_case", &extract.ConversionError{Path: path, Reason: res.Message}, "document conversion failed: "+res.Message, start)
	}
	c.update(func(s *Session) {
		s.Case = res.Text
		s.CasePath = path
	})
	c.setStatus(constants.StatusSuccess, res.Message)
	c.logger.Info("screening.load_case.ok", "path", path, "chars", len([]rune(res.Text)), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// ExtractCriteria replaces the criteria slot with the model's verbatim copy
// of the inclusion and exclusion sections.
func (c *Controller) ExtractCriteria(ctx context.Context) error {
	return c.rewrite(ctx, constants.OpExtractCriteria, constants.FieldCriteria, "extracting criteria",
		func(s Session) string { return s.Criteria },
		llm.BuildExtractionPrompt, c.cfg.Extract,
		func(s *Session, text string) { s.Criteria = text },
	)
}

// OrganizeCase replaces the case slot with the model's structured version.
func (c *Controller) OrganizeCase(ctx context.Context) error {
	return c.rewrite(ctx, constants.OpOrganizeCase, constants.FieldCase, "organizing case",
		func(s Session) string { return s.Case },
		llm.BuildOrganizePrompt, c.cfg.Organize,
		func(s *Session, text string) { s.Case = text },
	)
}

func (c *Controller) rewrite(
	ctx context.Context,
	op, field, running string,
	read func(Session) string,
	build func(string) llm.Prompt,
	opts llm.Options,
	write func(*Session, string),
) error {
	done, err := c.begin(op, running)
	if err != nil {
		return err
	}
	defer done()
	start := time.Now()

	input := read(c.Snapshot())
	if strings.TrimSpace(input) == "" {
		e := &EmptyInputError{Field: field}
		return c.fail(op, e, e.Error(), start)
	}

	c.logger.Info("screening."+op+".start", "input_chars", len([]rune(input)))
	out, err := c.llm.Complete(ctx, llm.CompletionRequest{Prompt: build(input), Options: opts})
	if err != nil {
		return c.fail(op, err, failureMessage(err), start)
	}
	c.update(func(s *Session) { write(s, out.Text) })
	c.setStatus(constants.StatusSuccess, strings.ReplaceAll(op, "_", " ")+" done")
	c.logger.Info("screening."+op+".ok", "req_id", out.RequestID, "output_chars", len([]rune(out.Text)), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// ClassifyCase asks the model whether the case meets the criteria. Both
// slots are read under the busy guard and never written; only the result
// slot changes. A transport failure or a reply opening with the failure
// marker is stored as an unsuccessful result and returned as an error.
func (c *Controller) ClassifyCase(ctx context.Context) (*AnalysisResult, error) {
	const op = constants.OpClassifyCase
	done, err := c.begin(op, "analyzing")
	if err != nil {
		return nil, err
	}
	defer done()
	start := time.Now()

	snap := c.Snapshot()
	for _, f := range []struct{ name, text string }{
		{constants.FieldCriteria, snap.Criteria},
		{constants.FieldCase, snap.Case},
	} {
		if strings.TrimSpace(f.text) == "" {
			e := &EmptyInputError{Field: f.name}
			return nil, c.fail(op, e, e.Error(), start)
		}
	}

	criteria, caseText, notices := c.cfg.Guard.Apply(snap.Criteria, snap.Case)
	for _, n := range notices {
		c.logger.Warn("screening.classify.truncated", "field", n.Field, "original_length", n.OriginalLength, "limit", n.Limit)
	}

	out, err := c.llm.Complete(ctx, llm.CompletionRequest{
		Prompt:  llm.BuildClassifyPrompt(criteria, caseText),
		Options: c.cfg.Classify,
	})
	result := &AnalysisResult{Notices: notices, At: c.now()}
	switch {
	case err != nil:
		result.Text = failureMessage(err)
	case DeclaredFailure(out.Text, c.cfg.FailureMarker):
		result.Text, result.Model, result.RequestID = out.Text, out.Model, out.RequestID
		err = ErrDeclaredFailure
	default:
		result.Success = true
		result.Text, result.Model, result.RequestID = out.Text, out.Model, out.RequestID
	}
	c.update(func(s *Session) { s.Result = result })

	if err != nil {
		return result.clone(), c.fail(op, err, result.Text, start)
	}
	if len(notices) > 0 {
		c.setStatus(constants.StatusInfo, fmt.Sprintf("analysis done, %d field(s) truncated", len(notices)))
	} else {
		c.setStatus(constants.StatusSuccess, "analysis done")
	}
	c.logger.Info("screening.classify.ok", "req_id", out.RequestID, "notices", len(notices), "elapsed_ms", time.Since(start).Milliseconds())
	return result.clone(), nil
}

// SetCriteria replaces the criteria slot with user-edited text.
func (c *Controller) SetCriteria(text string) error {
	return c.edit("edit_criteria", func(s *Session) { s.Criteria = text })
}

// SetCase replaces the case slot with user-edited text.
func (c *Controller) SetCase(text string) error {
	return c.edit("edit_case", func(s *Session) { s.Case = text })
}

func (c *Controller) edit(op string, fn func(*Session)) error {
	if !c.busy.TryLock() {
		c.logger.Warn("screening.busy", "op", op)
		return ErrBusy
	}
	defer c.busy.Unlock()
	c.update(fn)
	return nil
}

// Reset clears every slot and cached path. Calling it twice is the same as once.
func (c *Controller) Reset() error {
	if !c.busy.TryLock() {
		c.logger.Warn("screening.busy", "op", "reset")
		return ErrBusy
	}
	defer c.busy.Unlock()
	c.update(func(s *Session) { *s = Session{} })
	c.setStatus(constants.StatusIdle, "")
	c.logger.Info("screening.reset")
	return nil
}

func failureMessage(err error) string {
	var f *llm.Failure
	if errors.As(err, &f) {
		return f.UserMessage()
	}
	return err.Error()
}
