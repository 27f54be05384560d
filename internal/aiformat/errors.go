package aiformat

import (
	"errors"
	"fmt"
)

// SnippetLen bounds the response excerpt carried by ParseError.
const SnippetLen = 500

// ErrEmptyCompletion is wrapped by ServiceError when the model returned no text.
var ErrEmptyCompletion = errors.New("no response from AI")

// ServiceError reports a failed call to the completion service: a transport
// failure, a non-2xx status, or an empty completion.
type ServiceError struct {
	StatusCode int    // 0 when no HTTP status was received
	Body       string // raw response body for non-2xx replies
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("AI API request failed (status %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("AI API request failed: %v", e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ParseError reports a completion that is not a usable JSON object.
type ParseError struct {
	Snippet string // first SnippetLen bytes of the cleaned response
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse formatting response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func snippet(s string) string {
	if len(s) <= SnippetLen {
		return s
	}
	// Do not split a UTF-8 sequence.
	cut := SnippetLen
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
