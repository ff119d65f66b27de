package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/trial-screener/internal/common"
	"github.com/joseph-ayodele/trial-screener/internal/llm"
)

const maxLoggedBody = 2 << 10

// Complete implements llm.Completer with a single chat/completions call.
// There are no retries; every error is an *llm.Failure.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	rid := uuid.New().String()
	ctx = common.WithRequestID(ctx, rid)
	start := time.Now()

	model := req.Options.Model
	if model == "" {
		model = c.cfg.Model
	}
	timeout := req.Options.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c.logger.Info("llm.complete.start",
		"req_id", rid,
		"op", req.Prompt.Operation,
		"model", model,
		"messages", len(req.Prompt.Messages),
		"prompt_len", len(req.Prompt.UserText()),
		"timeout_ms", timeout.Milliseconds(),
	)

	body := map[string]any{
		"model":    model,
		"messages": req.Prompt.Messages,
	}
	if req.Options.Temperature != nil {
		body["temperature"] = *req.Options.Temperature
	}
	if req.Options.MaxTokens > 0 {
		body["max_tokens"] = req.Options.MaxTokens
	}

	header := http.Header{"Authorization": {"Bearer " + c.cfg.APIKey}}
	resp, err := llm.PostJSON(ctx, c.http, c.Endpoint(), body, header, c.logger)
	if err != nil {
		f := classify(ctx, err)
		c.logger.Error("llm.complete.failed",
			"req_id", rid,
			"op", req.Prompt.Operation,
			"kind", f.Kind,
			"status", f.StatusCode,
			"error", err,
			"body", f.Body,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Completion{}, f
	}

	raw := resp.Body
	if err := llm.ValidateChatCompletion(raw); err != nil {
		c.logger.Error("llm.complete.schema_validation_failed",
			"req_id", rid, "error", err, "raw", capBody(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Completion{}, &llm.Failure{Kind: llm.FailureMalformedResponse, Body: capBody(raw), Err: err}
	}

	var cc struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.complete.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Completion{}, &llm.Failure{Kind: llm.FailureMalformedResponse, Body: capBody(raw), Err: err}
	}

	text := strings.TrimSpace(cc.Choices[0].Message.Content)
	if text == "" {
		c.logger.Error("llm.complete.empty_content",
			"req_id", rid, "op", req.Prompt.Operation,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Completion{}, &llm.Failure{Kind: llm.FailureMalformedResponse, Body: capBody(raw), Err: errors.New("reply content is blank")}
	}

	out := llm.Completion{
		Text:      text,
		Model:     cc.Model,
		RequestID: rid,
		Elapsed:   time.Since(start),
	}
	if out.Model == "" {
		out.Model = model
	}

	c.logger.Info("llm.complete.ok",
		"req_id", rid,
		"op", req.Prompt.Operation,
		"model", out.Model,
		"text_len", len(out.Text),
		"elapsed_ms", out.Elapsed.Milliseconds(),
	)
	return out, nil
}

func classify(ctx context.Context, err error) *llm.Failure {
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		return &llm.Failure{Kind: llm.FailureNonSuccessStatus, StatusCode: statusErr.Status, Body: capBody(statusErr.Body), Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &llm.Failure{Kind: llm.FailureTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &llm.Failure{Kind: llm.FailureTimeout, Err: err}
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return &llm.Failure{Kind: llm.FailureConnection, Err: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && !errors.Is(err, context.Canceled) {
		return &llm.Failure{Kind: llm.FailureConnection, Err: err}
	}
	return &llm.Failure{Kind: llm.FailureUnknown, Err: err}
}

func capBody(raw []byte) string {
	s := string(raw)
	if len(s) <= maxLoggedBody {
		return s
	}
	return s[:maxLoggedBody] + "...(truncated)"
}
