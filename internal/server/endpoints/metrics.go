package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/wordfmt/internal/api"
	"github.com/jackzampolin/wordfmt/internal/metrics"
	"github.com/jackzampolin/wordfmt/internal/svcctx"
)

const defaultMetricsLimit = 100

// MetricsListResponse is the response for GET /api/metrics.
type MetricsListResponse struct {
	Metrics []metrics.Metric `json:"metrics"`
}

// MetricsSummaryResponse is the response for GET /api/metrics/summary.
type MetricsSummaryResponse struct {
	*metrics.Stats
	CostByModel    map[string]float64 `json:"cost_by_model,omitempty"`
	CostByProvider map[string]float64 `json:"cost_by_provider,omitempty"`
	ErrorsByType   map[string]int     `json:"errors_by_type,omitempty"`
}

// parseFilter builds a metrics filter from query params.
func parseFilter(q url.Values) (metrics.Filter, error) {
	f := metrics.Filter{
		Provider:  q.Get("provider"),
		Model:     q.Get("model"),
		InputHash: q.Get("input_hash"),
	}
	if s := q.Get("success"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return f, fmt.Errorf("invalid success value %q", s)
		}
		f.Success = &b
	}
	if s := q.Get("since"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return f, fmt.Errorf("invalid since value %q", s)
		}
		f.After = time.Now().Add(-d)
	}
	return f, nil
}

// ListMetricsEndpoint handles GET /api/metrics.
type ListMetricsEndpoint struct{}

func (e *ListMetricsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/metrics", e.handler
}

func (e *ListMetricsEndpoint) RequiresInit() bool { return false }

func (e *ListMetricsEndpoint) Group() string { return "metrics" }

// handler godoc
//
//	@Summary		List recent LLM calls
//	@Tags			metrics
//	@Produce		json
//	@Param			provider	query		string	false	"Filter by provider"
//	@Param			model		query		string	false	"Filter by model"
//	@Param			success		query		bool	false	"Filter by outcome"
//	@Param			since		query		string	false	"Only calls within this duration, e.g. 1h"
//	@Param			limit		query		int		false	"Maximum results (default 100)"
//	@Success		200			{object}	MetricsListResponse
//	@Failure		400			{object}	ErrorResponse
//	@Router			/api/metrics [get]
func (e *ListMetricsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	rec := svcctx.MetricsFrom(r.Context())
	if rec == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics not initialized")
		return
	}

	q := r.URL.Query()
	f, err := parseFilter(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := defaultMetricsLimit
	if s := q.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
	}

	list := rec.List(f, limit)
	if list == nil {
		list = []metrics.Metric{}
	}
	writeJSON(w, http.StatusOK, MetricsListResponse{Metrics: list})
}

func (e *ListMetricsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		fl    metricsFlags
		limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent LLM calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := fl.values()
			q.Set("limit", strconv.Itoa(limit))

			client := api.NewClient(getServerURL())
			var resp MetricsListResponse
			if err := client.Get(cmd.Context(), "/api/metrics?"+q.Encode(), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	fl.bind(cmd)
	cmd.Flags().IntVar(&limit, "limit", defaultMetricsLimit, "Maximum results")
	return cmd
}

// MetricsSummaryEndpoint handles GET /api/metrics/summary.
type MetricsSummaryEndpoint struct{}

func (e *MetricsSummaryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/metrics/summary", e.handler
}

func (e *MetricsSummaryEndpoint) RequiresInit() bool { return false }

func (e *MetricsSummaryEndpoint) Group() string { return "metrics" }

// handler godoc
//
//	@Summary		Summarize LLM usage
//	@Description	Cost, token and latency aggregates over recorded calls
//	@Tags			metrics
//	@Produce		json
//	@Param			provider	query		string	false	"Filter by provider"
//	@Param			model		query		string	false	"Filter by model"
//	@Param			since		query		string	false	"Only calls within this duration, e.g. 1h"
//	@Success		200			{object}	MetricsSummaryResponse
//	@Failure		400			{object}	ErrorResponse
//	@Router			/api/metrics/summary [get]
func (e *MetricsSummaryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	rec := svcctx.MetricsFrom(r.Context())
	if rec == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics not initialized")
		return
	}

	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, MetricsSummaryResponse{
		Stats:          rec.Stats(f),
		CostByModel:    rec.CostByModel(f),
		CostByProvider: rec.CostByProvider(f),
		ErrorsByType:   rec.ErrorsByType(f),
	})
}

func (e *MetricsSummaryEndpoint) Command(getServerURL func() string) *cobra.Command {
	var fl metricsFlags
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize LLM usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp MetricsSummaryResponse
			if err := client.Get(cmd.Context(), "/api/metrics/summary?"+fl.values().Encode(), &resp); err != nil {
				return err
			}
			if api.GetOutputFormat() != api.OutputFormatText || resp.Stats == nil {
				return api.Output(resp)
			}

			fmt.Printf("Metrics Summary\n")
			fmt.Printf("===============\n")
			fmt.Printf("  Calls:        %d (%d ok, %d failed)\n", resp.Count, resp.SuccessCount, resp.ErrorCount)
			fmt.Printf("  Total Cost:   $%.4f\n", resp.TotalCostUSD)
			fmt.Printf("  Avg Cost:     $%.6f\n", resp.AvgCostUSD)
			fmt.Printf("  Total Tokens: %d\n", resp.TotalTokens)
			fmt.Printf("  Latency p50:  %.2fs\n", resp.LatencyP50)
			fmt.Printf("  Latency p95:  %.2fs\n", resp.LatencyP95)
			for model, cost := range resp.CostByModel {
				fmt.Printf("  %-30s $%.4f\n", model, cost)
			}
			return nil
		},
	}
	fl.bind(cmd)
	return cmd
}

type metricsFlags struct {
	provider string
	model    string
	since    string
}

func (f *metricsFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.provider, "provider", "", "Filter by provider")
	cmd.Flags().StringVar(&f.model, "model", "", "Filter by model")
	cmd.Flags().StringVar(&f.since, "since", "", "Only calls within this duration, e.g. 1h")
}

func (f *metricsFlags) values() url.Values {
	q := url.Values{}
	if f.provider != "" {
		q.Set("provider", f.provider)
	}
	if f.model != "" {
		q.Set("model", f.model)
	}
	if f.since != "" {
		q.Set("since", f.since)
	}
	return q
}
