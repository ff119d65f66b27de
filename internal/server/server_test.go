package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/trial-screener/constants"
	"github.com/joseph-ayodele/trial-screener/internal/common"
	"github.com/joseph-ayodele/trial-screener/internal/extract"
	"github.com/joseph-ayodele/trial-screener/internal/llm"
	"github.com/joseph-ayodele/trial-screener/internal/repository"
	"github.com/joseph-ayodele/trial-screener/internal/screening"
)

type stubLoader struct {
	mu    sync.Mutex
	texts map[string]string
	pages *extract.PageRange
}

func (s *stubLoader) Load(_ context.Context, path string, pages *extract.PageRange) extract.ExtractedText {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = pages
	text, ok := s.texts[path]
	if !ok {
		return extract.ExtractedText{Message: "file not found: " + path}
	}
	return extract.ExtractedText{Success: true, Text: text, Message: "converted 1 of 1 pages", Filtered: pages != nil}
}

type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Complete(_ context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	if s.err != nil {
		return llm.Completion{}, s.err
	}
	if req.Prompt.Operation == constants.OpClassifyCase {
		return llm.Completion{Text: s.reply, Model: "deepseek-chat", RequestID: "req-9"}, nil
	}
	return llm.Completion{Text: "rewritten " + req.Prompt.Operation, Model: "deepseek-chat"}, nil
}

type harness struct {
	client *Client
	loader *stubLoader
	llm    *stubCompleter
	cc     *grpc.ClientConn
}

func newHarness(t *testing.T, withStore bool) *harness {
	t.Helper()
	loader := &stubLoader{texts: map[string]string{
		"protocol.pdf": "Inclusion Criteria: age 18-75",
		"case.pdf":     "Male, 54, ALT 40 U/L",
	}}
	comp := &stubCompleter{reply: "1. 符合的条目：年龄\n结论：符合"}
	ctrl := screening.NewController(loader, comp, screening.DefaultConfig(), nil)

	var store *Store
	if withStore {
		db, err := repository.Open(context.Background(), repository.Config{DSN: "file:" + filepath.Join(t.TempDir(), "runs.db")}, nil)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close(nil) })
		store = NewStore(repository.NewRunRepository(db, nil), nil)
	}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(nil)))
	RegisterScreeningServer(srv, NewScreeningService(ctrl, store, nil))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })

	return &harness{client: NewClient(cc), loader: loader, llm: comp, cc: cc}
}

func (h *harness) call(t *testing.T, method string, req map[string]any) map[string]any {
	t.Helper()
	out, err := h.client.Call(context.Background(), method, req)
	require.NoError(t, err, method)
	return out
}

func codeOf(err error) codes.Code {
	return status.Code(err)
}

func TestHealth(t *testing.T) {
	h := newHarness(t, false)
	resp, err := healthpb.NewHealthClient(h.cc).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestWorkflowOverGRPC(t *testing.T) {
	h := newHarness(t, true)

	out := h.call(t, "LoadCriteria", map[string]any{"path": "protocol.pdf", "pages": "3-5"})
	assert.Equal(t, "Inclusion Criteria: age 18-75", out["criteria"])
	assert.Equal(t, "3-5", out["criteria_pages"])
	require.NotNil(t, h.loader.pages)
	assert.Equal(t, extract.PageRange{Start: 3, End: 5}, *h.loader.pages)
	st := out["status"].(map[string]any)
	assert.Equal(t, "INFO", st["kind"])
	assert.Contains(t, st["message"], "(filtered)")

	out = h.call(t, "ExtractCriteria", nil)
	assert.Equal(t, "rewritten extract_criteria", out["criteria"])

	out = h.call(t, "LoadCase", map[string]any{"path": "case.pdf"})
	assert.Equal(t, "Male, 54, ALT 40 U/L", out["case"])
	assert.Nil(t, h.loader.pages)

	out = h.call(t, "ClassifyCase", nil)
	result := out["result"].(map[string]any)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, "1. 符合的条目：年龄\n结论：符合", result["text"])
	assert.Equal(t, "rewritten extract_criteria", out["criteria"], "classify never touches the slots")

	saved := h.call(t, "SaveRun", nil)["run"].(map[string]any)
	assert.Equal(t, "3-5", saved["criteria_pages"])
	assert.NotEmpty(t, saved["id"])

	runs := h.call(t, "ListRuns", map[string]any{"limit": 10})["runs"].([]any)
	require.Len(t, runs, 1)
	assert.Equal(t, saved["id"], runs[0].(map[string]any)["id"])

	exp := h.call(t, "ExportRuns", nil)
	data, err := base64.StdEncoding.DecodeString(exp["xlsx"].(string))
	require.NoError(t, err)
	assert.Equal(t, "PK", string(data[:2]))
	assert.EqualValues(t, len(data), exp["bytes"])

	out = h.call(t, "Reset", nil)
	assert.Empty(t, out["criteria"])
	assert.Empty(t, out["case"])
	assert.Nil(t, out["result"])
	assert.Equal(t, "IDLE", out["status"].(map[string]any)["kind"])
}

func TestSetTextAndGetSession(t *testing.T) {
	h := newHarness(t, false)
	h.call(t, "SetText", map[string]any{"target": "case", "text": "edited case"})
	out := h.call(t, "GetSession", nil)
	assert.Equal(t, "edited case", out["case"])
	assert.Empty(t, out["criteria"])
}

func TestRequestValidation(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	cases := map[string]struct {
		method string
		req    map[string]any
	}{
		"missing path":    {"LoadCriteria", map[string]any{}},
		"empty path":      {"LoadCase", map[string]any{"path": ""}},
		"bad target":      {"SetText", map[string]any{"target": "result", "text": "x"}},
		"missing text":    {"SetText", map[string]any{"target": "case"}},
		"reversed range":  {"LoadCriteria", map[string]any{"path": "protocol.pdf", "pages": "5-3"}},
		"empty selection": {"LoadCriteria", map[string]any{"path": "protocol.pdf", "pages": ","}},
	}
	for name, tc := range cases {
		_, err := h.client.Call(ctx, tc.method, tc.req)
		assert.Equal(t, codes.InvalidArgument, codeOf(err), name)
	}

	_, err := h.client.Call(ctx, "SetText", map[string]any{"target": "verdict", "text": "x"})
	assert.Contains(t, status.Convert(err).Message(), "target must be one of criteria, case")
}

func TestErrorCodes(t *testing.T) {
	ctx := context.Background()

	t.Run("empty input", func(t *testing.T) {
		h := newHarness(t, false)
		_, err := h.client.Call(ctx, "ClassifyCase", nil)
		assert.Equal(t, codes.InvalidArgument, codeOf(err))
		assert.Nil(t, h.call(t, "GetSession", nil)["result"])
	})

	t.Run("conversion failure", func(t *testing.T) {
		h := newHarness(t, false)
		_, err := h.client.Call(ctx, "LoadCase", map[string]any{"path": "missing.pdf"})
		assert.Equal(t, codes.FailedPrecondition, codeOf(err))
		assert.Equal(t, "FAILURE", h.call(t, "GetSession", nil)["status"].(map[string]any)["kind"])
	})

	t.Run("declared failure is stored", func(t *testing.T) {
		h := newHarness(t, false)
		h.llm.reply = "分析失败：病历信息不足"
		h.call(t, "SetText", map[string]any{"target": "criteria", "text": "c"})
		h.call(t, "SetText", map[string]any{"target": "case", "text": "p"})
		_, err := h.client.Call(ctx, "ClassifyCase", nil)
		assert.Equal(t, codes.Aborted, codeOf(err))
		result := h.call(t, "GetSession", nil)["result"].(map[string]any)
		assert.Equal(t, false, result["success"])
		assert.Equal(t, "分析失败：病历信息不足", result["text"])
	})

	t.Run("model timeout", func(t *testing.T) {
		h := newHarness(t, false)
		h.llm.err = &llm.Failure{Kind: llm.FailureTimeout, Err: context.DeadlineExceeded}
		h.call(t, "SetText", map[string]any{"target": "case", "text": "p"})
		_, err := h.client.Call(ctx, "OrganizeCase", nil)
		assert.Equal(t, codes.DeadlineExceeded, codeOf(err))
	})

	t.Run("no store", func(t *testing.T) {
		h := newHarness(t, false)
		for _, m := range []string{"SaveRun", "ListRuns", "ExportRuns"} {
			_, err := h.client.Call(ctx, m, nil)
			assert.Equal(t, codes.FailedPrecondition, codeOf(err), m)
		}
	})

	t.Run("nothing to save", func(t *testing.T) {
		h := newHarness(t, true)
		_, err := h.client.Call(ctx, "SaveRun", nil)
		assert.Equal(t, codes.FailedPrecondition, codeOf(err))
	})
}

func TestToStatus(t *testing.T) {
	cases := map[codes.Code]error{
		codes.Unavailable:      screening.ErrBusy,
		codes.Internal:         &llm.Failure{Kind: llm.FailureMalformedResponse},
		codes.NotFound:         fmt.Errorf("run x: %w", common.ErrNotFound),
		codes.DeadlineExceeded: &llm.Failure{Kind: llm.FailureTimeout},
	}
	for want, err := range cases {
		assert.Equal(t, want, codeOf(toStatus(err)), err.Error())
	}
	assert.Equal(t, codes.Unavailable, codeOf(toStatus(&llm.Failure{Kind: llm.FailureNonSuccessStatus, StatusCode: 502})))
}

func TestMethods(t *testing.T) {
	assert.Len(t, Methods(), 11)
	assert.Contains(t, Methods(), "ClassifyCase")
}
