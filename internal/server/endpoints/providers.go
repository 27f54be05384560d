package endpoints

import (
	"net/http"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/wordfmt/internal/api"
	"github.com/jackzampolin/wordfmt/internal/svcctx"
)

// ProviderInfo describes one configured LLM provider. API keys are never
// returned.
type ProviderInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Model      string `json:"model"`
	Enabled    bool   `json:"enabled"`
	Registered bool   `json:"registered"`
	Default    bool   `json:"default"`
}

// ProvidersResponse lists configured providers.
type ProvidersResponse struct {
	Engine    string         `json:"engine"`
	Providers []ProviderInfo `json:"providers"`
}

// ListProvidersEndpoint handles GET /api/providers.
type ListProvidersEndpoint struct{}

func (e *ListProvidersEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/providers", e.handler
}

func (e *ListProvidersEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		List LLM providers
//	@Tags			providers
//	@Produce		json
//	@Success		200	{object}	ProvidersResponse
//	@Router			/api/providers [get]
func (e *ListProvidersEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := ProvidersResponse{Providers: []ProviderInfo{}}

	var registered []string
	if reg := svcctx.RegistryFrom(ctx); reg != nil {
		registered = reg.ListLLM()
	}

	if mgr := svcctx.ConfigManagerFrom(ctx); mgr != nil {
		cfg := mgr.Get()
		resp.Engine = cfg.Engine()
		for name, p := range cfg.LLMProviders {
			resp.Providers = append(resp.Providers, ProviderInfo{
				Name:       name,
				Type:       p.Type,
				Model:      p.Model,
				Enabled:    p.Enabled,
				Registered: slices.Contains(registered, name),
				Default:    name == cfg.Defaults.LLMProvider,
			})
		}
	}
	slices.SortFunc(resp.Providers, func(a, b ProviderInfo) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListProvidersEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured LLM providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ProvidersResponse
			if err := client.Get(cmd.Context(), "/api/providers", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
