package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/wordfmt/internal/api"
	"github.com/jackzampolin/wordfmt/internal/document"
	"github.com/jackzampolin/wordfmt/internal/extract"
	"github.com/jackzampolin/wordfmt/internal/formatter"
	"github.com/jackzampolin/wordfmt/internal/svcctx"
)

// maxFormatBody bounds JSON request bodies.
const maxFormatBody = 32 << 20

// FormatEndpoint handles POST /api/format.
type FormatEndpoint struct{}

var _ api.Endpoint = (*FormatEndpoint)(nil)

func (e *FormatEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/format", e.handler
}

func (e *FormatEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Format a document
//	@Description	Derive formatting rules with the model and return reformatted HTML
//	@Tags			format
//	@Accept			json
//	@Produce		json
//	@Param			request	body		formatter.Request	true	"Document and formatting options"
//	@Success		200		{object}	formatter.Result
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/api/format [post]
func (e *FormatEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req formatter.Request
	r.Body = http.MaxBytesReader(w, r.Body, maxFormatBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	svc := svcctx.FormatterFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "formatter not initialized")
		return
	}

	res, err := svc.Format(r.Context(), req)
	if err != nil {
		writeFormatError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// writeFormatError maps a formatter error to its status and public message.
// Details of upstream failures stay in the log.
func writeFormatError(r *http.Request, w http.ResponseWriter, err error) {
	status := formatter.StatusCode(err)
	if r.Context().Err() != nil {
		// Client went away; nobody reads the body.
		status = http.StatusServiceUnavailable
	}
	if status >= 500 {
		svcctx.LoggerFrom(r.Context()).Error("format request failed", "status", status, "error", err)
	}
	writeError(w, status, formatter.PublicMessage(err))
}

func (e *FormatEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		opts     formatOptions
		markdown bool
	)
	cmd := &cobra.Command{
		Use:   "format <file>",
		Short: "Format a document and print the result",
		Long: `Format a document through the running server.

The file is extracted locally (.docx, .html, .pdf or plain text) and sent as
HTML. Use --requirement to format to a reference requirements document, or
--instructions for free-form rules.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			req, err := opts.request(cmd, args[0])
			if err != nil {
				return err
			}

			client := api.NewClient(getServerURL())
			var res formatter.Result
			if err := client.Post(ctx, "/api/format", req, &res); err != nil {
				return err
			}

			if markdown {
				md, err := extract.Markdown(res.FormattedContent)
				if err != nil {
					return err
				}
				fmt.Println(md)
				return nil
			}
			return api.Output(res)
		},
	}
	opts.bind(cmd)
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Print the formatted content as Markdown")
	return cmd
}

// formatOptions are the flags shared by the format commands.
type formatOptions struct {
	instructions string
	requirement  string
	toc          bool
	tocPosition  string
	tocLevels    string
}

func (o *formatOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.instructions, "instructions", "", "Free-form formatting instructions")
	cmd.Flags().StringVar(&o.requirement, "requirement", "", "Reference requirements document")
	cmd.Flags().BoolVar(&o.toc, "toc", false, "Insert a table of contents")
	cmd.Flags().StringVar(&o.tocPosition, "toc-position", "beginning", "TOC position: beginning or after-title")
	cmd.Flags().StringVar(&o.tocLevels, "toc-levels", "1,2,3", "Comma-separated heading levels in the TOC")
}

// request extracts the document and optional requirement file locally.
func (o *formatOptions) request(cmd *cobra.Command, path string) (formatter.Request, error) {
	ctx := cmd.Context()
	ex := extract.New(extract.Config{Logger: svcctx.LoggerFrom(ctx)})

	data, err := os.ReadFile(path)
	if err != nil {
		return formatter.Request{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := ex.Document(ctx, filepath.Base(path), data)
	if err != nil {
		return formatter.Request{}, err
	}

	levels, err := ParseLevels(o.tocLevels)
	if err != nil {
		return formatter.Request{}, err
	}
	req := formatter.Request{
		DocumentContent:        doc.HTML,
		FormattingInstructions: o.instructions,
		TOCEnabled:             o.toc,
		TOCPosition:            o.tocPosition,
		TOCHeadingLevels:       levels,
	}

	if o.requirement != "" {
		data, err := os.ReadFile(o.requirement)
		if err != nil {
			return formatter.Request{}, fmt.Errorf("failed to read %s: %w", o.requirement, err)
		}
		ref, err := ex.Reference(ctx, filepath.Base(o.requirement), data)
		if err != nil {
			return formatter.Request{}, err
		}
		req.RequirementContent = ref.Text
	}
	return req, nil
}

// ParseLevels parses "1,2,3" into heading levels. Empty input yields nil.
func ParseLevels(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var levels []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 || n > document.MaxTOCLevel {
			return nil, fmt.Errorf("invalid heading level %q", part)
		}
		levels = append(levels, n)
	}
	return levels, nil
}
