package metrics

// CostByModel returns total cost per model.
func (r *Recorder) CostByModel(f Filter) map[string]float64 {
	breakdown := make(map[string]float64)
	for _, m := range r.List(f, 0) {
		breakdown[m.Model] += m.CostUSD
	}
	return breakdown
}

// CostByProvider returns total cost per provider.
func (r *Recorder) CostByProvider(f Filter) map[string]float64 {
	breakdown := make(map[string]float64)
	for _, m := range r.List(f, 0) {
		breakdown[m.Provider] += m.CostUSD
	}
	return breakdown
}

// StatsByModel groups the matching calls by model.
func (r *Recorder) StatsByModel(f Filter) map[string]*Stats {
	byModel := make(map[string][]Metric)
	for _, m := range r.List(f, 0) {
		byModel[m.Model] = append(byModel[m.Model], m)
	}
	out := make(map[string]*Stats, len(byModel))
	for model, ms := range byModel {
		out[model] = aggregate(ms)
	}
	return out
}

// ErrorsByType counts failed calls per error type.
func (r *Recorder) ErrorsByType(f Filter) map[string]int {
	counts := make(map[string]int)
	for _, m := range r.List(f, 0) {
		if !m.Success {
			counts[m.ErrorType]++
		}
	}
	return counts
}
