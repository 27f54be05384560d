// Package metrics records formatting outcomes and LLM usage. Counters are
// exported in Prometheus format; recent calls are kept in memory for the
// summary endpoints.
package metrics

import "time"

// Outcome is the terminal result of a formatting request.
type Outcome string

const (
	OutcomeHit          Outcome = "hit"
	OutcomeMiss         Outcome = "miss"
	OutcomeInvalid      Outcome = "invalid_input"
	OutcomeServiceError Outcome = "service_error"
	OutcomeParseError   Outcome = "parse_error"
)

// Metric is a single recorded AI call.
type Metric struct {
	RequestID string `json:"request_id,omitempty"`
	InputHash string `json:"input_hash,omitempty"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	CostUSD          float64 `json:"cost_usd,omitempty"`
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
	TotalTokens      int     `json:"total_tokens,omitempty"`

	ExecutionSeconds float64 `json:"execution_seconds,omitempty"`

	Success   bool   `json:"success"`
	ErrorType string `json:"error_type,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
