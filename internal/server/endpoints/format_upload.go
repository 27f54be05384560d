package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/wordfmt/internal/api"
	"github.com/jackzampolin/wordfmt/internal/docx"
	"github.com/jackzampolin/wordfmt/internal/downloads"
	"github.com/jackzampolin/wordfmt/internal/extract"
	"github.com/jackzampolin/wordfmt/internal/formatter"
	"github.com/jackzampolin/wordfmt/internal/rules"
	"github.com/jackzampolin/wordfmt/internal/svcctx"
)

// UploadResponse is returned when an uploaded document has been formatted
// and written as .docx.
type UploadResponse struct {
	Success         bool            `json:"success"`
	Cached          bool            `json:"cached"`
	DownloadID      string          `json:"downloadId"`
	DownloadURL     string          `json:"downloadUrl"`
	Filename        string          `json:"filename"`
	ExpiresAt       time.Time       `json:"expiresAt"`
	Message         string          `json:"message"`
	Summary         string          `json:"summary"`
	FormattingRules rules.Rules     `json:"formattingRules"`
	TableOfContents json.RawMessage `json:"tableOfContents,omitempty"`
	Source          UploadSource    `json:"source"`
}

// UploadSource describes how the upload was read.
type UploadSource struct {
	Filename string         `json:"filename"`
	Format   extract.Format `json:"format"`
	Pages    int            `json:"pages,omitempty"`
	Fallback bool           `json:"fallback,omitempty"`
}

// FormatUploadEndpoint handles POST /api/format/upload with multipart file upload.
type FormatUploadEndpoint struct{}

var _ api.Endpoint = (*FormatUploadEndpoint)(nil)

func (e *FormatUploadEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/format/upload", e.handler
}

func (e *FormatUploadEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Format an uploaded document
//	@Description	Extract, format and rebuild an uploaded file as a downloadable .docx
//	@Tags			format
//	@Accept			mpfd
//	@Produce		json
//	@Param			document		formData	file	true	"Document to format (.docx, .html, .pdf, .txt)"
//	@Param			requirement		formData	file	false	"Reference requirements document"
//	@Param			instructions	formData	string	false	"Free-form formatting instructions"
//	@Param			toc_enabled		formData	bool	false	"Insert a table of contents"
//	@Param			toc_position	formData	string	false	"beginning or after-title"
//	@Param			toc_levels		formData	string	false	"Comma-separated heading levels"
//	@Success		200		{object}	UploadResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		413		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/api/format/upload [post]
func (e *FormatUploadEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	services := svcctx.ServicesFrom(ctx)
	if services == nil || services.Formatter == nil || services.Extractor == nil || services.Downloads == nil {
		writeError(w, http.StatusServiceUnavailable, "formatter not initialized")
		return
	}
	logger := svcctx.LoggerFrom(ctx)

	form, ok := parseUpload(w, r)
	if !ok {
		return
	}
	defer form.RemoveAll()

	name, data, err := formFile(form, "document")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	doc, err := services.Extractor.Document(ctx, name, data)
	if err != nil {
		writeExtractError(w, err)
		return
	}

	levels, err := ParseLevels(formValue(form, "toc_levels"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tocEnabled, _ := strconv.ParseBool(formValue(form, "toc_enabled"))
	req := formatter.Request{
		DocumentContent:        doc.HTML,
		FormattingInstructions: formValue(form, "instructions"),
		TOCEnabled:             tocEnabled,
		TOCPosition:            formValue(form, "toc_position"),
		TOCHeadingLevels:       levels,
	}

	if refName, refData, err := formFile(form, "requirement"); err == nil {
		ref, err := services.Extractor.Reference(ctx, refName, refData)
		if err != nil {
			writeExtractError(w, err)
			return
		}
		req.RequirementContent = ref.Text
	}

	res, err := services.Formatter.Format(ctx, req)
	if err != nil {
		writeFormatError(r, w, err)
		return
	}

	out, err := docx.NewWriter(res.Build(req.TOC()), docx.Properties{Creator: "wordfmt"}).Bytes()
	if err != nil {
		logger.Error("failed to write docx", "error", err)
		writeError(w, http.StatusInternalServerError, formatter.MsgFormatFailed)
		return
	}
	file, err := services.Downloads.Save(downloads.FormattedName(name), docx.ContentType, out)
	if err != nil {
		logger.Error("failed to store download", "error", err)
		writeError(w, http.StatusInternalServerError, formatter.MsgFormatFailed)
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Success:         true,
		Cached:          res.Cached,
		DownloadID:      file.ID,
		DownloadURL:     downloadPath(file.ID),
		Filename:        file.Name,
		ExpiresAt:       file.ExpiresAt,
		Message:         fmt.Sprintf("Formatting successful. File will be deleted in %d minutes.", int(time.Until(file.ExpiresAt).Round(time.Minute).Minutes())),
		Summary:         res.Summary,
		FormattingRules: res.FormattingRules,
		TableOfContents: res.TableOfContents,
		Source: UploadSource{
			Filename: doc.Filename,
			Format:   doc.Format,
			Pages:    doc.Pages,
			Fallback: doc.Fallback,
		},
	})
}

// parseUpload reads a multipart body within the configured upload limit.
func parseUpload(w http.ResponseWriter, r *http.Request) (*multipart.Form, bool) {
	limit := int64(extract.DefaultMaxBytes)
	if mgr := svcctx.ConfigManagerFrom(r.Context()); mgr != nil && mgr.Get().Uploads.MaxBytes > 0 {
		limit = mgr.Get().Uploads.MaxBytes
	}
	// Room for a requirement file and form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, 2*limit+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d MB", limit>>20))
			return nil, false
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return nil, false
	}
	return r.MultipartForm, true
}

// formValue returns the first value under field, or "".
func formValue(form *multipart.Form, field string) string {
	return url.Values(form.Value).Get(field)
}

// formFile returns the first file under field.
func formFile(form *multipart.Form, field string) (string, []byte, error) {
	files := form.File[field]
	if len(files) == 0 {
		return "", nil, http.ErrMissingFile
	}
	fh := files[0]
	src, err := fh.Open()
	if err != nil {
		return "", nil, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return "", nil, err
	}
	return fh.Filename, data, nil
}

func writeExtractError(w http.ResponseWriter, err error) {
	if errors.Is(err, extract.ErrTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read file: %v", err))
}

func downloadPath(id string) string {
	return "/api/downloads/" + id
}

func (e *FormatUploadEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		opts      formatOptions
		outputDir string
	)
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document, format it and download the .docx",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())

			files := []api.UploadFile{{Field: "document", Path: args[0]}}
			if opts.requirement != "" {
				files = append(files, api.UploadFile{Field: "requirement", Path: opts.requirement})
			}
			fields := map[string]string{
				"instructions": opts.instructions,
				"toc_enabled":  strconv.FormatBool(opts.toc),
				"toc_position": opts.tocPosition,
				"toc_levels":   opts.tocLevels,
			}

			var resp UploadResponse
			if err := client.PostMultipart(ctx, "/api/format/upload", fields, files, &resp); err != nil {
				return err
			}

			data, name, err := client.GetRaw(ctx, resp.DownloadURL)
			if err != nil {
				return err
			}
			if name == "" {
				name = resp.Filename
			}
			outPath := filepath.Join(outputDir, downloads.SafeName(name))
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}

			fmt.Printf("Summary:    %s\n", resp.Summary)
			fmt.Printf("Downloaded: %s\n", outPath)
			return nil
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVarP(&outputDir, "dir", "d", ".", "Directory for the formatted .docx")
	return cmd
}
