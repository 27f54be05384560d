package formatter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/jackzampolin/wordfmt/internal/aiformat"
	"github.com/jackzampolin/wordfmt/internal/cache"
	"github.com/jackzampolin/wordfmt/internal/document"
	"github.com/jackzampolin/wordfmt/internal/metrics"
	"github.com/jackzampolin/wordfmt/internal/providers"
	"github.com/jackzampolin/wordfmt/internal/rules"
)

const reportReply = "```json\n" + `{
  "formattingRules": {
    "fontFamily": "Times New Roman",
    "fontSize": "12pt",
    "headingStyles": {"h1": {"fontSize": "16pt", "fontWeight": "bold", "alignment": "center"}},
    "paragraphSpacing": "12pt",
    "lineSpacing": "2",
    "alignment": "justify",
    "margins": {"top": "1in", "right": "1in", "bottom": "1in", "left": "1in"},
    "indentation": "0.5in"
  },
  "tableOfContents": null,
  "formattedContent": "<h1>Report</h1><p>intro text</p>",
  "summary": "Applied Times New Roman 12pt, double spacing"
}` + "\n```"

type harness struct {
	svc     *Service
	mock    *providers.MockClient
	store   cache.Store
	writes  chan error
	metrics *metrics.Recorder
}

func newHarness(t *testing.T, store cache.Store) *harness {
	t.Helper()

	mock := providers.NewMockClient()
	mock.ResponseText = reportReply

	ai, err := aiformat.New(aiformat.Config{LLM: mock})
	if err != nil {
		t.Fatalf("aiformat.New() error = %v", err)
	}

	if store == nil {
		store = cache.NewMemoryStore(16)
	}
	writes := make(chan error, 16)
	writer := cache.NewWriter(cache.WriterConfig{
		Store:   store,
		OnWrite: func(_ string, err error) { writes <- err },
	})
	writer.Start(context.Background())
	t.Cleanup(writer.Stop)

	rec := metrics.NewRecorder(metrics.Config{})
	svc, err := New(Config{AI: ai, Store: store, Writer: writer, Metrics: rec})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &harness{svc: svc, mock: mock, store: store, writes: writes, metrics: rec}
}

func (h *harness) waitWrite(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.writes:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("cache write did not happen")
		return nil
	}
}

var reportRequest = Request{
	DocumentContent:        "<h1>Report</h1><p>intro text</p>",
	FormattingInstructions: "Times New Roman 12pt, double spaced, justified",
	TOCEnabled:             false,
}

func TestFormat_MissThenHit(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	res, err := h.svc.Format(ctx, reportRequest)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if !res.Success || res.Cached {
		t.Errorf("first call: success=%v cached=%v", res.Success, res.Cached)
	}
	if h.mock.RequestCount() != 1 {
		t.Errorf("AI calls = %d, want 1", h.mock.RequestCount())
	}

	doc := res.Document
	if doc == nil {
		t.Fatal("Document is nil on a miss")
	}
	if doc.FontFamily != "Times New Roman" {
		t.Errorf("FontFamily = %q", doc.FontFamily)
	}
	if len(doc.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(doc.Blocks))
	}
	if doc.Blocks[0].Kind != document.KindHeading || doc.Blocks[0].Text() != "Report" {
		t.Errorf("block 0 = %+v", doc.Blocks[0])
	}
	body := doc.Blocks[1]
	if body.Kind != document.KindParagraph || body.Text() != "intro text" {
		t.Errorf("block 1 = %+v", body)
	}
	if body.Style.LineSpacing != 2 || body.Style.Alignment != rules.AlignJustify {
		t.Errorf("body style = %+v", body.Style)
	}
	if doc.IndexOf(document.KindTOCHeading) != -1 {
		t.Error("TOC blocks present with toc disabled")
	}

	wantStates := []State{StateReceived, StateHashing, StateCacheLookup, StateCacheMiss,
		StatePrompting, StateAICalling, StateParsing, StateRebuilding, StateCacheWrite, StateDone}
	if !slices.Equal(res.States, wantStates) {
		t.Errorf("States = %v, want %v", res.States, wantStates)
	}

	if err := h.waitWrite(t); err != nil {
		t.Fatalf("cache write error = %v", err)
	}

	again, err := h.svc.Format(ctx, reportRequest)
	if err != nil {
		t.Fatalf("second Format() error = %v", err)
	}
	if !again.Cached {
		t.Error("second call should be cached")
	}
	if h.mock.RequestCount() != 1 {
		t.Errorf("AI calls after hit = %d, want 1", h.mock.RequestCount())
	}
	if again.Summary != res.Summary+CachedSuffix {
		t.Errorf("Summary = %q, want %q", again.Summary, res.Summary+CachedSuffix)
	}
	if again.FormattedContent != res.FormattedContent {
		t.Errorf("FormattedContent = %q", again.FormattedContent)
	}
	if again.Document != nil {
		t.Error("hit should not rebuild eagerly")
	}
	if built := again.Build(reportRequest.TOC()); len(built.Blocks) != 2 {
		t.Errorf("Build() blocks = %d, want 2", len(built.Blocks))
	}
	wantHit := []State{StateReceived, StateHashing, StateCacheLookup, StateCacheHit, StateDone}
	if !slices.Equal(again.States, wantHit) {
		t.Errorf("hit States = %v, want %v", again.States, wantHit)
	}

	if s := h.metrics.Stats(metrics.Filter{}); s.Count != 1 || s.SuccessCount != 1 {
		t.Errorf("recorded calls = %+v", s)
	}
}

func TestFormat_KeyChangesMissAgain(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if _, err := h.svc.Format(ctx, reportRequest); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	h.waitWrite(t)

	changed := reportRequest
	changed.TOCEnabled = true
	res, err := h.svc.Format(ctx, changed)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if res.Cached || h.mock.RequestCount() != 2 {
		t.Errorf("cached=%v calls=%d, want a fresh miss", res.Cached, h.mock.RequestCount())
	}
	if res.Document.IndexOf(document.KindTOCHeading) != 0 {
		t.Error("TOC should lead the document")
	}
}

func TestFormat_InvalidInput(t *testing.T) {
	h := newHarness(t, nil)

	for _, content := range []string{"", "   \n"} {
		_, err := h.svc.Format(context.Background(), Request{DocumentContent: content})
		var invalid *InvalidInputError
		if !errors.As(err, &invalid) {
			t.Fatalf("Format(%q) error = %v, want InvalidInputError", content, err)
		}
		if invalid.Message != MsgDocumentRequired {
			t.Errorf("Message = %q", invalid.Message)
		}
		if StatusCode(err) != http.StatusBadRequest {
			t.Errorf("StatusCode() = %d, want 400", StatusCode(err))
		}
	}
	if h.mock.RequestCount() != 0 {
		t.Errorf("AI calls = %d, want 0", h.mock.RequestCount())
	}
}

func TestFormat_ServiceError(t *testing.T) {
	h := newHarness(t, nil)
	h.mock.ShouldFail = true
	h.mock.FailErr = &providers.StatusError{Provider: "mock", StatusCode: 429, Body: `{"error":"rate limited"}`}

	_, err := h.svc.Format(context.Background(), reportRequest)
	var svcErr *aiformat.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("Format() error = %v, want ServiceError", err)
	}
	if svcErr.StatusCode != 429 || !strings.Contains(svcErr.Body, "rate limited") {
		t.Errorf("ServiceError = %+v", svcErr)
	}
	if StatusCode(err) != http.StatusBadGateway {
		t.Errorf("StatusCode() = %d, want 502", StatusCode(err))
	}
	if PublicMessage(err) != MsgFormatFailed {
		t.Errorf("PublicMessage() = %q", PublicMessage(err))
	}
	if h.mock.RequestCount() != 1 {
		t.Errorf("AI calls = %d, want 1 (no retry)", h.mock.RequestCount())
	}
	if _, err := h.store.Get(context.Background(), reportRequest.CacheKey()); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("failed result was cached: %v", err)
	}
	if got := h.metrics.ErrorsByType(metrics.Filter{}); got["service"] != 1 {
		t.Errorf("ErrorsByType() = %v", got)
	}
}

func TestFormat_ParseError(t *testing.T) {
	h := newHarness(t, nil)
	h.mock.ResponseText = "Sorry, I can't produce JSON today."

	_, err := h.svc.Format(context.Background(), reportRequest)
	var parseErr *aiformat.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Format() error = %v, want ParseError", err)
	}
	if !strings.Contains(parseErr.Snippet, "Sorry") {
		t.Errorf("Snippet = %q", parseErr.Snippet)
	}
	if StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("StatusCode() = %d, want 500", StatusCode(err))
	}
	if PublicMessage(err) != MsgFormatFailed {
		t.Errorf("PublicMessage() = %q", PublicMessage(err))
	}

	select {
	case <-h.writes:
		t.Error("parse failure must not be cached")
	case <-time.After(50 * time.Millisecond):
	}
}

// brokenStore fails every operation.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (*cache.Entry, error) {
	return nil, errors.New("connection refused")
}
func (brokenStore) Put(context.Context, *cache.Entry) error { return errors.New("read-only") }
func (brokenStore) Ping(context.Context) error              { return errors.New("down") }
func (brokenStore) Name() string                            { return "broken" }
func (brokenStore) Close() error                            { return nil }

func TestFormat_CacheFailuresAreNotFatal(t *testing.T) {
	h := newHarness(t, brokenStore{})

	res, err := h.svc.Format(context.Background(), reportRequest)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if !res.Success || res.Cached {
		t.Errorf("result = %+v", res)
	}

	if err := h.waitWrite(t); err == nil {
		t.Fatal("expected the background write to fail")
	}
}

func TestFormat_ConcurrentMissesShareOneCall(t *testing.T) {
	h := newHarness(t, nil)
	h.mock.Latency = 100 * time.Millisecond

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Format(context.Background(), reportRequest)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Format() error = %v", err)
		}
	}
	if h.mock.RequestCount() != 1 {
		t.Errorf("AI calls = %d, want 1", h.mock.RequestCount())
	}
}

func TestFormat_CallerCancel(t *testing.T) {
	h := newHarness(t, nil)
	h.mock.Latency = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := h.svc.Format(ctx, reportRequest); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Format() error = %v, want DeadlineExceeded", err)
	}
}

func TestRequest_CacheKey(t *testing.T) {
	base := Request{DocumentContent: "<p>x</p>", TOCEnabled: true, TOCPosition: "beginning", TOCHeadingLevels: []int{1, 2, 3}}

	same := base
	same.TOCHeadingLevels = []int{3, 2, 1, 1}
	if base.CacheKey() != same.CacheKey() {
		t.Error("reordered heading levels should share a key")
	}

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"document", func(r *Request) { r.DocumentContent = "<p>y</p>" }},
		{"instructions", func(r *Request) { r.FormattingInstructions = "APA" }},
		{"requirement", func(r *Request) { r.RequirementContent = "MLA" }},
		{"toc disabled", func(r *Request) { r.TOCEnabled = false }},
		{"position", func(r *Request) { r.TOCPosition = "after-title" }},
		{"empty position", func(r *Request) { r.TOCPosition = "" }},
		{"no levels", func(r *Request) { r.TOCHeadingLevels = nil }},
		{"extra level", func(r *Request) { r.TOCHeadingLevels = []int{1, 2, 3, 4} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed := base
			tt.mutate(&changed)
			if base.CacheKey() == changed.CacheKey() {
				t.Errorf("changing %s did not change the key", tt.name)
			}
		})
	}
}

func TestRequest_ValidateLevels(t *testing.T) {
	for _, levels := range [][]int{{1, 2, 3, 5}, {0}, {6}} {
		req := Request{DocumentContent: "<p>x</p>", TOCEnabled: true, TOCHeadingLevels: levels}
		err := req.Validate()
		var invalid *InvalidInputError
		if !errors.As(err, &invalid) {
			t.Fatalf("Validate(%v) error = %v, want InvalidInputError", levels, err)
		}
		if invalid.Message != MsgHeadingLevels || StatusCode(err) != http.StatusBadRequest {
			t.Errorf("Validate(%v) = %q status %d", levels, invalid.Message, StatusCode(err))
		}
	}
	ok := Request{DocumentContent: "<p>x</p>", TOCHeadingLevels: []int{1, 4}}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFormat_LogsStateTimings(t *testing.T) {
	h := newHarness(t, nil)
	var logs lockedBuffer
	h.svc.logger = slog.New(slog.NewJSONHandler(&logs, nil))

	if _, err := h.svc.Format(context.Background(), reportRequest); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	var line map[string]any
	for _, l := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var rec map[string]any
		if err := json.Unmarshal([]byte(l), &rec); err != nil {
			t.Fatalf("log line %q: %v", l, err)
		}
		if rec["msg"] == "format complete" {
			line = rec
		}
	}
	if line == nil {
		t.Fatalf("no format complete log in %s", logs.String())
	}
	timings, ok := line["timings"].(map[string]any)
	if !ok {
		t.Fatalf("timings = %v, want a group", line["timings"])
	}
	for _, st := range []State{StateCacheLookup, StateAICalling, StateRebuilding} {
		if _, ok := timings[string(st)]; !ok {
			t.Errorf("timings missing %s: %v", st, timings)
		}
	}
}

func TestMachine_Transitions(t *testing.T) {
	machine, err := newMachine()
	if err != nil {
		t.Fatalf("newMachine() error = %v", err)
	}

	tr := newTracker(machine)
	if tr.current() != StateReceived {
		t.Fatalf("initial state = %s", tr.current())
	}
	for _, ev := range []statekit.EventType{evHash, evLookup, evMiss, evPrompt, evCall, evFail} {
		if err := tr.advance(ev); err != nil {
			t.Fatalf("advance(%s) error = %v", ev, err)
		}
	}
	if tr.current() != StateAIFailure || !tr.done() {
		t.Errorf("state = %s done=%v, want final ai_failure", tr.current(), tr.done())
	}
	if _, ok := tr.run.timings[StateCacheLookup]; !ok {
		t.Error("missing timing for cache_lookup")
	}
}
