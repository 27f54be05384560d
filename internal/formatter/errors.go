package formatter

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackzampolin/wordfmt/internal/aiformat"
)

// User-facing messages.
const (
	MsgDocumentRequired = "Document content is required"
	MsgFormatFailed     = "Failed to format document. Please try again."
	MsgHeadingLevels    = "Table of contents heading levels must be between 1 and 4"
)

// InvalidInputError reports a request that fails validation. It is raised
// before any external call.
type InvalidInputError struct {
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Message)
}

// StatusCode maps a Format error to an HTTP status.
func StatusCode(err error) int {
	var invalid *InvalidInputError
	var svc *aiformat.ServiceError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &svc):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message shown to callers for err. Upstream and
// parse details stay in the server log.
func PublicMessage(err error) string {
	var invalid *InvalidInputError
	if errors.As(err, &invalid) {
		return invalid.Message
	}
	return MsgFormatFailed
}
