package metrics

import (
	"time"
)

// Filter selects recorded calls. Zero fields match everything.
type Filter struct {
	Provider  string
	Model     string
	Success   *bool
	After     time.Time
	Before    time.Time
	InputHash string
}

func (f Filter) match(m Metric) bool {
	if f.Provider != "" && m.Provider != f.Provider {
		return false
	}
	if f.Model != "" && m.Model != f.Model {
		return false
	}
	if f.InputHash != "" && m.InputHash != f.InputHash {
		return false
	}
	if f.Success != nil && m.Success != *f.Success {
		return false
	}
	if !f.After.IsZero() && !m.CreatedAt.After(f.After) {
		return false
	}
	if !f.Before.IsZero() && !m.CreatedAt.Before(f.Before) {
		return false
	}
	return true
}

// List returns recorded calls matching f, newest first. A positive limit
// bounds the result.
func (r *Recorder) List(f Filter, limit int) []Metric {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.next
	if r.full {
		n = len(r.history)
	}
	var out []Metric
	for i := 1; i <= n; i++ {
		m := r.history[(r.next-i+len(r.history))%len(r.history)]
		if !f.match(m) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
