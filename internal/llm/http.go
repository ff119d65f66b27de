package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/trial-screener/internal/common"
)

const maxResponseBytes = 8 << 20

// Response is a completed HTTP exchange.
type Response struct {
	Status  int
	Body    []byte
	Elapsed time.Duration
}

// StatusError is returned by PostJSON when the server answers outside 2xx.
// The body is kept so callers can surface the provider's own message.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Status)
}

// PostJSON sends payload as a JSON POST and reads at most 8 MiB of the reply.
// It knows nothing about providers; the request id comes from ctx.
func PostJSON(ctx context.Context, client *http.Client, url string, payload any, header http.Header, logger *slog.Logger) (*Response, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = http.DefaultClient
	}
	log := logger.With("req_id", common.RequestIDFromContext(ctx))
	start := time.Now()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	log.Info("llm.http.request", "url", url, "content_length", len(body))
	resp, err := client.Do(req)
	if err != nil {
		log.Error("llm.http.send_failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warn("llm.http.body_close_failed", "error", cerr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	out := &Response{Status: resp.StatusCode, Body: raw, Elapsed: time.Since(start)}
	if err != nil {
		log.Error("llm.http.read_failed", "status", resp.StatusCode, "error", err, "elapsed_ms", out.Elapsed.Milliseconds())
		return out, fmt.Errorf("read body: %w", err)
	}
	log.Info("llm.http.response", "status", resp.StatusCode, "bytes", len(raw), "elapsed_ms", out.Elapsed.Milliseconds())
	log.Debug("llm.http.response_body", "body", string(raw))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, &StatusError{Status: resp.StatusCode, Body: raw}
	}
	return out, nil
}
