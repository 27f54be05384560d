package endpoints

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/wordfmt/internal/api"
	"github.com/jackzampolin/wordfmt/internal/downloads"
	"github.com/jackzampolin/wordfmt/internal/svcctx"
)

// GetDownloadEndpoint handles GET /api/downloads/{id}.
type GetDownloadEndpoint struct{}

func (e *GetDownloadEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/downloads/{id}", e.handler
}

func (e *GetDownloadEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Download a formatted document
//	@Description	Files are removed once their retention period ends
//	@Tags			downloads
//	@Produce		application/vnd.openxmlformats-officedocument.wordprocessingml.document
//	@Param			id	path		string	true	"Download ID"
//	@Success		200	{file}		file
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/downloads/{id} [get]
func (e *GetDownloadEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.DownloadsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "downloads not initialized")
		return
	}

	f, err := store.Get(r.PathValue("id"))
	switch {
	case errors.Is(err, downloads.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "invalid download id")
		return
	case err != nil:
		writeError(w, http.StatusNotFound, "file not found or expired")
		return
	}

	if f.ContentType != "" {
		w.Header().Set("Content-Type", f.ContentType)
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	http.ServeFile(w, r, f.Path())
}

func (e *GetDownloadEndpoint) Command(getServerURL func() string) *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a formatted document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			data, name, err := client.GetRaw(cmd.Context(), downloadPath(args[0]))
			if err != nil {
				return err
			}

			if outputPath == "" {
				outputPath = downloads.SafeName(name)
				if name == "" {
					outputPath = args[0] + ".docx"
				}
			}
			if err := os.WriteFile(outputPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}

			fmt.Printf("Downloaded to: %s\n", filepath.Clean(outputPath))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputPath, "file", "f", "", "Output file path")
	return cmd
}

// ListDownloadsResponse lists the files currently available.
type ListDownloadsResponse struct {
	Downloads []downloads.File `json:"downloads"`
}

// ListDownloadsEndpoint handles GET /api/downloads.
type ListDownloadsEndpoint struct{}

func (e *ListDownloadsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/downloads", e.handler
}

func (e *ListDownloadsEndpoint) RequiresInit() bool { return true }

func (e *ListDownloadsEndpoint) Group() string { return "downloads" }

func (e *ListDownloadsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.DownloadsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "downloads not initialized")
		return
	}
	writeJSON(w, http.StatusOK, ListDownloadsResponse{Downloads: store.List()})
}

func (e *ListDownloadsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List formatted documents awaiting download",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListDownloadsResponse
			if err := client.Get(cmd.Context(), "/api/downloads", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
