package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/wordfmt/internal/api"
	"github.com/jackzampolin/wordfmt/internal/prompts"
)

// PromptsListResponse contains all prompt templates.
type PromptsListResponse struct {
	Prompts []prompts.Template `json:"prompts"`
}

// ListPromptsEndpoint handles GET /api/prompts.
type ListPromptsEndpoint struct{}

func (e *ListPromptsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts", e.handler
}

func (e *ListPromptsEndpoint) RequiresInit() bool { return false }

func (e *ListPromptsEndpoint) Group() string { return "prompts" }

// handler godoc
//
//	@Summary		List prompt templates
//	@Description	The embedded templates used to build formatting prompts
//	@Tags			prompts
//	@Produce		json
//	@Success		200	{object}	PromptsListResponse
//	@Router			/api/prompts [get]
func (e *ListPromptsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PromptsListResponse{Prompts: prompts.Templates()})
}

func (e *ListPromptsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List prompt templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp PromptsListResponse
			if err := client.Get(cmd.Context(), "/api/prompts", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetPromptEndpoint handles GET /api/prompts/{key}.
type GetPromptEndpoint struct{}

func (e *GetPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts/{key}", e.handler
}

func (e *GetPromptEndpoint) RequiresInit() bool { return false }

func (e *GetPromptEndpoint) Group() string { return "prompts" }

// handler godoc
//
//	@Summary		Get a prompt template
//	@Tags			prompts
//	@Produce		json
//	@Param			key	path		string	true	"Prompt key"
//	@Success		200	{object}	prompts.Template
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/prompts/{key} [get]
func (e *GetPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	for _, t := range prompts.Templates() {
		if t.Key == key {
			writeJSON(w, http.StatusOK, t)
			return
		}
	}
	writeError(w, http.StatusNotFound, "prompt not found: "+key)
}

func (e *GetPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var textOnly bool
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Show a prompt template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var t prompts.Template
			if err := client.Get(cmd.Context(), "/api/prompts/"+args[0], &t); err != nil {
				return err
			}
			if textOnly {
				return api.OutputTo(cmd.OutOrStdout(), api.OutputFormatText, t.Text)
			}
			return api.Output(t)
		},
	}
	cmd.Flags().BoolVar(&textOnly, "text", false, "Print only the template text")
	return cmd
}
