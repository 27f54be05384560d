package metrics

import (
	"slices"
)

// Stats summarizes a set of recorded calls.
type Stats struct {
	Count        int `json:"count"`
	SuccessCount int `json:"success_count"`
	ErrorCount   int `json:"error_count"`

	TotalCostUSD float64 `json:"total_cost_usd"`
	AvgCostUSD   float64 `json:"avg_cost_usd"`

	TotalPromptTokens     int     `json:"total_prompt_tokens"`
	TotalCompletionTokens int     `json:"total_completion_tokens"`
	TotalTokens           int     `json:"total_tokens"`
	AvgTotalTokens        float64 `json:"avg_total_tokens"`

	// Latency in seconds.
	LatencyAvg float64 `json:"latency_avg"`
	LatencyP50 float64 `json:"latency_p50"`
	LatencyP95 float64 `json:"latency_p95"`
	LatencyP99 float64 `json:"latency_p99"`
	LatencyMin float64 `json:"latency_min"`
	LatencyMax float64 `json:"latency_max"`
}

// Stats aggregates the recorded calls matching f.
func (r *Recorder) Stats(f Filter) *Stats {
	return aggregate(r.List(f, 0))
}

func aggregate(metrics []Metric) *Stats {
	s := &Stats{Count: len(metrics)}
	if len(metrics) == 0 {
		return s
	}

	var latencies []float64
	for _, m := range metrics {
		s.TotalCostUSD += m.CostUSD
		if m.Success {
			s.SuccessCount++
		} else {
			s.ErrorCount++
		}
		s.TotalPromptTokens += m.PromptTokens
		s.TotalCompletionTokens += m.CompletionTokens
		s.TotalTokens += m.TotalTokens
		if m.ExecutionSeconds > 0 {
			latencies = append(latencies, m.ExecutionSeconds)
		}
	}

	count := float64(s.Count)
	s.AvgCostUSD = s.TotalCostUSD / count
	s.AvgTotalTokens = float64(s.TotalTokens) / count

	if len(latencies) > 0 {
		slices.Sort(latencies)
		s.LatencyMin = latencies[0]
		s.LatencyMax = latencies[len(latencies)-1]

		var sum float64
		for _, l := range latencies {
			sum += l
		}
		s.LatencyAvg = sum / float64(len(latencies))

		s.LatencyP50 = percentile(latencies, 50)
		s.LatencyP95 = percentile(latencies, 95)
		s.LatencyP99 = percentile(latencies, 99)
	}
	return s
}

// percentile interpolates the p-th percentile of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}

	idx := (p / 100.0) * float64(len(sorted)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
