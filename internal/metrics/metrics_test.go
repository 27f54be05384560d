package metrics

import (
	"errors"
	"io"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder(Config{})

	done := r.Begin()
	done(OutcomeMiss)
	r.Begin()(OutcomeHit)
	r.RecordCacheLookup("memory", true)
	r.RecordCacheLookup("memory", false)
	r.RecordCacheWrite(nil)
	r.RecordCacheWrite(errors.New("disk full"))
	r.RecordLLMCall(Metric{Provider: "openrouter", Model: "m", Success: true, PromptTokens: 10, CompletionTokens: 5, ExecutionSeconds: 1.5})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		`wordfmt_format_requests_total{outcome="miss"} 1`,
		`wordfmt_format_requests_total{outcome="hit"} 1`,
		`wordfmt_format_in_flight 0`,
		`wordfmt_cache_lookups_total{backend="memory",result="hit"} 1`,
		`wordfmt_cache_writes_total{status="error"} 1`,
		`wordfmt_llm_calls_total{model="m",provider="openrouter",status="success"} 1`,
		`wordfmt_llm_tokens_total{model="m",type="prompt"} 10`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	r.Begin()(OutcomeHit)
	r.RecordCacheLookup("memory", true)
	r.RecordCacheWrite(nil)
	r.RecordLLMCall(Metric{})
	if got := r.List(Filter{}, 0); got != nil {
		t.Errorf("List() = %v, want nil", got)
	}
	if s := r.Stats(Filter{}); s.Count != 0 {
		t.Errorf("Stats().Count = %d, want 0", s.Count)
	}
}

func TestRecorder_ListRing(t *testing.T) {
	r := NewRecorder(Config{History: 3})
	for i := range 5 {
		r.RecordLLMCall(Metric{RequestID: string(rune('a' + i)), Success: true})
	}

	got := r.List(Filter{}, 0)
	if len(got) != 3 {
		t.Fatalf("List() returned %d, want 3", len(got))
	}
	ids := got[0].RequestID + got[1].RequestID + got[2].RequestID
	if ids != "edc" {
		t.Errorf("List() order = %q, want newest first %q", ids, "edc")
	}
	if got := r.List(Filter{}, 2); len(got) != 2 {
		t.Errorf("List(limit 2) returned %d", len(got))
	}
}

func TestFilter(t *testing.T) {
	r := NewRecorder(Config{})
	now := time.Now()
	r.RecordLLMCall(Metric{Provider: "openrouter", Model: "a", Success: true, CreatedAt: now.Add(-time.Hour)})
	r.RecordLLMCall(Metric{Provider: "openai", Model: "b", Success: false, ErrorType: "parse", CreatedAt: now})

	ok := true
	tests := []struct {
		name string
		f    Filter
		want int
	}{
		{"all", Filter{}, 2},
		{"provider", Filter{Provider: "openai"}, 1},
		{"model", Filter{Model: "a"}, 1},
		{"success", Filter{Success: &ok}, 1},
		{"after", Filter{After: now.Add(-time.Minute)}, 1},
		{"before", Filter{Before: now.Add(-time.Minute)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(r.List(tt.f, 0)); got != tt.want {
				t.Errorf("List() returned %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStats(t *testing.T) {
	r := NewRecorder(Config{})
	r.RecordLLMCall(Metric{Provider: "p", Model: "a", CostUSD: 0.01, TotalTokens: 100, ExecutionSeconds: 1, Success: true})
	r.RecordLLMCall(Metric{Provider: "p", Model: "a", CostUSD: 0.03, TotalTokens: 300, ExecutionSeconds: 3, Success: true})
	r.RecordLLMCall(Metric{Provider: "q", Model: "b", ExecutionSeconds: 2, ErrorType: "service"})

	s := r.Stats(Filter{})
	if s.Count != 3 || s.SuccessCount != 2 || s.ErrorCount != 1 {
		t.Errorf("counts = %d/%d/%d", s.Count, s.SuccessCount, s.ErrorCount)
	}
	if math.Abs(s.TotalCostUSD-0.04) > 1e-9 {
		t.Errorf("TotalCostUSD = %v, want 0.04", s.TotalCostUSD)
	}
	if s.LatencyMin != 1 || s.LatencyMax != 3 || s.LatencyP50 != 2 || s.LatencyAvg != 2 {
		t.Errorf("latency = %+v", s)
	}

	if got := r.CostByModel(Filter{}); math.Abs(got["a"]-0.04) > 1e-9 || got["b"] != 0 {
		t.Errorf("CostByModel() = %v", got)
	}
	if got := r.CostByProvider(Filter{}); len(got) != 2 {
		t.Errorf("CostByProvider() = %v", got)
	}
	if got := r.StatsByModel(Filter{}); got["a"].Count != 2 || got["b"].ErrorCount != 1 {
		t.Errorf("StatsByModel() = %v", got)
	}
	if got := r.ErrorsByType(Filter{}); got["service"] != 1 || len(got) != 1 {
		t.Errorf("ErrorsByType() = %v", got)
	}
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		in   []float64
		p    float64
		want float64
	}{
		{nil, 50, 0},
		{[]float64{4}, 99, 4},
		{[]float64{1, 2, 3, 4, 5}, 50, 3},
		{[]float64{1, 2}, 50, 1.5},
		{[]float64{1, 2, 3}, 100, 3},
	}
	for _, tt := range tests {
		if got := percentile(tt.in, tt.p); got != tt.want {
			t.Errorf("percentile(%v, %v) = %v, want %v", tt.in, tt.p, got, tt.want)
		}
	}
}
