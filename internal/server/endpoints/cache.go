package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/wordfmt/internal/api"
	"github.com/jackzampolin/wordfmt/internal/cache"
	"github.com/jackzampolin/wordfmt/internal/svcctx"
)

// GetCacheEntryEndpoint handles GET /api/cache/{hash}.
type GetCacheEntryEndpoint struct{}

func (e *GetCacheEntryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/cache/{hash}", e.handler
}

func (e *GetCacheEntryEndpoint) RequiresInit() bool { return true }

func (e *GetCacheEntryEndpoint) Group() string { return "cache" }

// handler godoc
//
//	@Summary		Inspect a cached result
//	@Tags			cache
//	@Produce		json
//	@Param			hash	path		string	true	"Input hash"
//	@Success		200		{object}	cache.Entry
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/cache/{hash} [get]
func (e *GetCacheEntryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	if !validHash(hash) {
		writeError(w, http.StatusBadRequest, "hash must be 64 hex characters")
		return
	}

	svc := svcctx.FormatterFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "formatter not initialized")
		return
	}

	entry, err := svc.Lookup(r.Context(), hash)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		writeError(w, http.StatusNotFound, "cache entry not found")
		return
	case err != nil:
		svcctx.LoggerFrom(r.Context()).Error("cache lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "cache lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func validHash(h string) bool {
	if len(h) != 64 {
		return false
	}
	for _, c := range h {
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}

func (e *GetCacheEntryEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <hash>",
		Short: "Show a cached formatting result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var entry cache.Entry
			if err := client.Get(cmd.Context(), "/api/cache/"+args[0], &entry); err != nil {
				return err
			}
			return api.Output(entry)
		},
	}
}
