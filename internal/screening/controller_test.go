package screening

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/trial-screener/constants"
	"github.com/joseph-ayodele/trial-screener/internal/extract"
	"github.com/joseph-ayodele/trial-screener/internal/llm"
	"github.com/joseph-ayodele/trial-screener/internal/llm/openai"
)

type fakeLoader struct {
	result extract.ExtractedText
	path   string
	pages  *extract.PageRange
	calls  int
}

func (f *fakeLoader) Load(_ context.Context, path string, pages *extract.PageRange) extract.ExtractedText {
	f.calls++
	f.path, f.pages = path, pages
	return f.result
}

type fakeCompleter struct {
	mu       sync.Mutex
	text     string
	err      error
	requests []llm.CompletionRequest
	started  chan struct{}
	release  chan struct{}
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	return llm.Completion{Text: f.text, Model: "deepseek-chat", RequestID: "req-1"}, nil
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newController(loader extract.DocumentLoader, completer llm.Completer) *Controller {
	return NewController(loader, completer, DefaultConfig(), nil)
}

func seed(t *testing.T, c *Controller, criteria, caseText string) {
	t.Helper()
	require.NoError(t, c.SetCriteria(criteria))
	require.NoError(t, c.SetCase(caseText))
}

func TestLoadCriteriaDocumentWithRange(t *testing.T) {
	loader := &fakeLoader{result: extract.ExtractedText{Success: true, Text: "Inclusion: age ≥ 18...", Message: "converted pages 3-5 of 9", Filtered: true}}
	c := newController(loader, &fakeCompleter{})

	pages := &extract.PageRange{Start: 3, End: 5}
	require.NoError(t, c.LoadCriteriaDocument(context.Background(), "trial.pdf", pages))

	s := c.Snapshot()
	assert.Equal(t, "Inclusion: age ≥ 18...", s.Criteria)
	assert.Equal(t, "trial.pdf", s.CriteriaPath)
	assert.Equal(t, pages, s.CriteriaPages)
	assert.Equal(t, "trial.pdf", loader.path)
	assert.Equal(t, pages, loader.pages)
	assert.Equal(t, constants.StatusInfo, c.Status().Kind)
	assert.Contains(t, c.Status().Message, "filtered")

	loader.result.Filtered = false
	require.NoError(t, c.LoadCriteriaDocument(context.Background(), "trial.pdf", nil))
	assert.Equal(t, constants.StatusSuccess, c.Status().Kind)
	assert.NotContains(t, c.Status().Message, "filtered")
}

func TestLoadFailureLeavesSlotUnchanged(t *testing.T) {
	loader := &fakeLoader{result: extract.ExtractedText{Success: false, Message: "no text recognized"}}
	c := newController(loader, &fakeCompleter{})
	seed(t, c, "old criteria", "old case")

	err := c.LoadCriteriaDocument(context.Background(), "bad.pdf", nil)
	var convErr *extract.ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, "bad.pdf", convErr.Path)

	err = c.LoadCaseDocument(context.Background(), "bad.pdf")
	require.Error(t, err)

	s := c.Snapshot()
	assert.Equal(t, "old criteria", s.Criteria)
	assert.Equal(t, "old case", s.Case)
	assert.Empty(t, s.CriteriaPath)
	assert.Equal(t, constants.StatusFailure, c.Status().Kind)
	assert.Contains(t, c.Status().Message, "no text recognized")
}

func TestLoadCaseDocumentReadsWholeDocument(t *testing.T) {
	loader := &fakeLoader{result: extract.ExtractedText{Success: true, Text: "Patient age 45"}}
	c := newController(loader, &fakeCompleter{})
	require.NoError(t, c.LoadCaseDocument(context.Background(), "case.pdf"))

	assert.Nil(t, loader.pages)
	assert.Equal(t, "Patient age 45", c.Snapshot().Case)
	assert.Equal(t, "case.pdf", c.Snapshot().CasePath)
}

func TestExtractCriteriaReplacesSlot(t *testing.T) {
	fc := &fakeCompleter{text: "Inclusion Criteria\n1. Age ≥ 18"}
	c := newController(&fakeLoader{}, fc)
	seed(t, c, "full protocol text", "")

	require.NoError(t, c.ExtractCriteria(context.Background()))
	assert.Equal(t, "Inclusion Criteria\n1. Age ≥ 18", c.Snapshot().Criteria)
	require.Equal(t, 1, fc.calls())
	assert.Equal(t, constants.OpExtractCriteria, fc.requests[0].Prompt.Operation)
	assert.Nil(t, fc.requests[0].Options.Temperature)
	assert.Contains(t, fc.requests[0].Prompt.UserText(), "full protocol text")
}

func TestExtractCriteriaFailureKeepsSlot(t *testing.T) {
	fc := &fakeCompleter{err: &llm.Failure{Kind: llm.FailureNonSuccessStatus, StatusCode: 502, Body: "bad gateway"}}
	c := newController(&fakeLoader{}, fc)
	seed(t, c, "full protocol text", "")

	err := c.ExtractCriteria(context.Background())
	assert.Equal(t, llm.FailureNonSuccessStatus, llm.KindOf(err))
	assert.Equal(t, "full protocol text", c.Snapshot().Criteria)
	assert.Equal(t, constants.StatusFailure, c.Status().Kind)
	assert.Contains(t, c.Status().Message, "502")
}

func TestBlankModelReplyKeepsSlots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  \n"}}]}`))
	}))
	defer srv.Close()

	client := openai.NewClient(openai.Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "deepseek-chat", Timeout: time.Second}, nil)
	c := newController(&fakeLoader{}, client)
	seed(t, c, "full protocol text", "patient notes")

	err := c.ExtractCriteria(context.Background())
	assert.Equal(t, llm.FailureMalformedResponse, llm.KindOf(err))
	err = c.OrganizeCase(context.Background())
	assert.Equal(t, llm.FailureMalformedResponse, llm.KindOf(err))

	s := c.Snapshot()
	assert.Equal(t, "full protocol text", s.Criteria)
	assert.Equal(t, "patient notes", s.Case)
	assert.Equal(t, constants.StatusFailure, c.Status().Kind)
}

func TestOrganizeCase(t *testing.T) {
	fc := &fakeCompleter{text: "血常规: WBC 6.1"}
	c := newController(&fakeLoader{}, fc)

	err := c.OrganizeCase(context.Background())
	var empty *EmptyInputError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "case", empty.Field)
	assert.Equal(t, 0, fc.calls())

	seed(t, c, "", "raw case")
	require.NoError(t, c.OrganizeCase(context.Background()))
	assert.Equal(t, "血常规: WBC 6.1", c.Snapshot().Case)
	opts := fc.requests[0].Options
	require.NotNil(t, opts.Temperature)
	assert.InDelta(t, 0.3, *opts.Temperature, 1e-6)
	assert.Equal(t, 2000, opts.MaxTokens)
}

func TestClassifySuccessStoresVerdictVerbatim(t *testing.T) {
	verdict := "1. 符合的条目：age ≥ 18\n2. ...\n3. 总体结论：符合"
	fc := &fakeCompleter{text: verdict}
	c := newController(&fakeLoader{}, fc)
	seed(t, c, "age ≥ 18", "Patient age 45")

	res, err := c.ClassifyCase(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, verdict, res.Text)
	assert.Empty(t, res.Notices)

	s := c.Snapshot()
	require.NotNil(t, s.Result)
	assert.Equal(t, verdict, s.Result.Text)
	assert.Equal(t, "age ≥ 18", s.Criteria)
	assert.Equal(t, "Patient age 45", s.Case)
	assert.Equal(t, constants.StatusSuccess, c.Status().Kind)

	opts := fc.requests[0].Options
	assert.InDelta(t, 0.7, *opts.Temperature, 1e-6)
	assert.Equal(t, 5000, opts.MaxTokens)
	assert.Equal(t, 120*time.Second, opts.Timeout)
}

func TestClassifyEmptyInputMakesNoCall(t *testing.T) {
	fc := &fakeCompleter{text: "unused"}
	c := newController(&fakeLoader{}, fc)
	seed(t, c, "age ≥ 18", "")

	res, err := c.ClassifyCase(context.Background())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrEmptyInput)
	var empty *EmptyInputError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "case", empty.Field)
	assert.Equal(t, 0, fc.calls())
	assert.Nil(t, c.Snapshot().Result)

	require.NoError(t, c.SetCriteria("   "))
	require.NoError(t, c.SetCase("case"))
	_, err = c.ClassifyCase(context.Background())
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "criteria", empty.Field)
	assert.Equal(t, 0, fc.calls())
}

func TestClassifyNeverMutatesTextSlots(t *testing.T) {
	outcomes := []*fakeCompleter{
		{text: "3. 总体结论：符合"},
		{text: "分析失败：无法判断"},
		{err: &llm.Failure{Kind: llm.FailureTimeout}},
	}
	longCase := strings.Repeat("病", 30000)
	for _, fc := range outcomes {
		c := newController(&fakeLoader{}, fc)
		seed(t, c, "age ≥ 18", longCase)
		_, _ = c.ClassifyCase(context.Background())
		s := c.Snapshot()
		assert.Equal(t, "age ≥ 18", s.Criteria)
		assert.Equal(t, longCase, s.Case)
		assert.NotNil(t, s.Result)
	}
}

func TestClassifyOversizedCase(t *testing.T) {
	fc := &fakeCompleter{text: "3. 总体结论：不符合"}
	c := newController(&fakeLoader{}, fc)
	seed(t, c, "age ≥ 18", strings.Repeat("x", 25000))

	res, err := c.ClassifyCase(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Notices, 1)
	assert.Equal(t, llm.TruncationNotice{Field: "case", OriginalLength: 25000, Limit: 20000}, res.Notices[0])
	assert.Equal(t, constants.StatusInfo, c.Status().Kind)

	prompt := fc.requests[0].Prompt.UserText()
	guarded := strings.Repeat("x", 20000) + llm.TruncationMarker(25000)
	assert.Contains(t, prompt, "患者病例：\n"+guarded+"\n")
	assert.NotContains(t, prompt, strings.Repeat("x", 20001))
	assert.Equal(t, 20000+utf8.RuneCountInString(llm.TruncationMarker(25000)), utf8.RuneCountInString(guarded))
	assert.True(t, strings.HasPrefix(res.Display(), "[case text truncated: 25000 characters, limit 20000]"))
}

func TestClassifyDeclaredFailure(t *testing.T) {
	fc := &fakeCompleter{text: "分析失败：病例信息不足"}
	c := newController(&fakeLoader{}, fc)
	seed(t, c, "age ≥ 18", "Patient age 45")

	res, err := c.ClassifyCase(context.Background())
	assert.ErrorIs(t, err, ErrDeclaredFailure)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, "分析失败：病例信息不足", res.Text)
	assert.False(t, c.Snapshot().Result.Success)
	assert.Equal(t, constants.StatusFailure, c.Status().Kind)
}

func TestClassifyTransportFailureStoredAsResult(t *testing.T) {
	fc := &fakeCompleter{err: &llm.Failure{Kind: llm.FailureConnection, Err: errors.New("dial tcp: connection refused")}}
	c := newController(&fakeLoader{}, fc)
	seed(t, c, "age ≥ 18", "Patient age 45")

	res, err := c.ClassifyCase(context.Background())
	assert.Equal(t, llm.FailureConnection, llm.KindOf(err))
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, (&llm.Failure{Kind: llm.FailureConnection}).UserMessage(), res.Text)
}

func TestDeclaredFailure(t *testing.T) {
	assert.True(t, DeclaredFailure("分析失败", "分析失败"))
	assert.True(t, DeclaredFailure("\n 分析失败: timeout", "分析失败"))
	assert.False(t, DeclaredFailure("结论：分析失败的原因不在病例", "分析失败"))
	assert.False(t, DeclaredFailure("分析失败", ""))
}

func TestResetClearsEverything(t *testing.T) {
	fc := &fakeCompleter{text: "3. 总体结论：符合"}
	loader := &fakeLoader{result: extract.ExtractedText{Success: true, Text: "criteria"}}
	c := newController(loader, fc)

	require.NoError(t, c.Reset())
	assert.Equal(t, Session{}, c.Snapshot())

	require.NoError(t, c.LoadCriteriaDocument(context.Background(), "trial.pdf", &extract.PageRange{Start: 1, End: 2}))
	require.NoError(t, c.SetCase("case"))
	_, err := c.ClassifyCase(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Reset())
	require.NoError(t, c.Reset())
	s := c.Snapshot()
	assert.Equal(t, "", s.Criteria)
	assert.Equal(t, "", s.Case)
	assert.Nil(t, s.Result)
	assert.Empty(t, s.CriteriaPath)
	assert.Nil(t, s.CriteriaPages)
	assert.Equal(t, constants.StatusIdle, c.Status().Kind)
}

func TestSecondActionWhileBusy(t *testing.T) {
	fc := &fakeCompleter{text: "ok", started: make(chan struct{}), release: make(chan struct{})}
	var statuses []Status
	var mu sync.Mutex
	c := NewController(&fakeLoader{}, fc, DefaultConfig(), nil, WithStatusListener(func(s Status) {
		mu.Lock()
		statuses = append(statuses, s)
		mu.Unlock()
	}))
	seed(t, c, "criteria", "case")

	done := make(chan error, 1)
	go func() {
		_, err := c.ClassifyCase(context.Background())
		done <- err
	}()
	<-fc.started

	assert.Equal(t, constants.StatusRunning, c.Status().Kind)
	assert.ErrorIs(t, c.OrganizeCase(context.Background()), ErrBusy)
	assert.ErrorIs(t, c.SetCase("edited"), ErrBusy)
	assert.ErrorIs(t, c.Reset(), ErrBusy)
	_, err := c.ClassifyCase(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, "case", c.Snapshot().Case)

	close(fc.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, fc.calls())

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(statuses), 2)
	assert.Equal(t, constants.StatusRunning, statuses[0].Kind)
	assert.Equal(t, constants.StatusSuccess, statuses[len(statuses)-1].Kind)
}
