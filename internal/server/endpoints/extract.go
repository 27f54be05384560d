package endpoints

import (
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/wordfmt/internal/api"
	"github.com/jackzampolin/wordfmt/internal/extract"
	"github.com/jackzampolin/wordfmt/internal/svcctx"
)

// ExtractResponse is an extracted upload.
type ExtractResponse struct {
	*extract.Result
	Markdown string `json:"markdown,omitempty"`
}

// ExtractEndpoint handles POST /api/extract.
type ExtractEndpoint struct{}

func (e *ExtractEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/extract", e.handler
}

func (e *ExtractEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Extract text from a file
//	@Description	Returns HTML for documents, or plain text when mode=reference
//	@Tags			format
//	@Accept			mpfd
//	@Produce		json
//	@Param			file		formData	file	true	"File to extract"
//	@Param			mode		formData	string	false	"document (default) or reference"
//	@Param			markdown	formData	bool	false	"Also return the HTML as Markdown"
//	@Success		200	{object}	ExtractResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		413	{object}	ErrorResponse
//	@Router			/api/extract [post]
func (e *ExtractEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ex := svcctx.ExtractorFrom(r.Context())
	if ex == nil {
		writeError(w, http.StatusServiceUnavailable, "extractor not initialized")
		return
	}

	form, ok := parseUpload(w, r)
	if !ok {
		return
	}
	defer form.RemoveAll()

	name, data, err := formFile(form, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}

	var res *extract.Result
	switch formValue(form, "mode") {
	case "", "document":
		res, err = ex.Document(r.Context(), name, data)
	case "reference":
		res, err = ex.Reference(r.Context(), name, data)
	default:
		writeError(w, http.StatusBadRequest, "mode must be document or reference")
		return
	}
	if err != nil {
		writeExtractError(w, err)
		return
	}

	resp := ExtractResponse{Result: res}
	if md, _ := strconv.ParseBool(formValue(form, "markdown")); md && res.HTML != "" {
		if resp.Markdown, err = extract.Markdown(res.HTML); err != nil {
			svcctx.LoggerFrom(r.Context()).Warn("markdown conversion failed", "file", name, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ExtractEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		reference bool
		markdown  bool
	)
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract text from a file on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := "document"
			if reference {
				mode = "reference"
			}
			client := api.NewClient(getServerURL())
			var resp ExtractResponse
			err := client.PostMultipart(cmd.Context(), "/api/extract",
				map[string]string{"mode": mode, "markdown": strconv.FormatBool(markdown)},
				[]api.UploadFile{{Field: "file", Path: args[0]}},
				&resp)
			if err != nil {
				return err
			}
			if markdown && resp.Markdown != "" {
				return api.OutputTo(cmd.OutOrStdout(), api.OutputFormatText, resp.Markdown)
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().BoolVar(&reference, "reference", false, "Extract as reference material (plain text)")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Print the extracted HTML as Markdown")
	return cmd
}
