package formatter

import (
	"encoding/json"
	"strings"

	"github.com/jackzampolin/wordfmt/internal/cache"
	"github.com/jackzampolin/wordfmt/internal/document"
	"github.com/jackzampolin/wordfmt/internal/prompts"
	"github.com/jackzampolin/wordfmt/internal/rebuild"
	"github.com/jackzampolin/wordfmt/internal/rules"
)

// Request is a formatting request.
type Request struct {
	DocumentContent        string `json:"documentContent"`
	FormattingInstructions string `json:"formattingInstructions,omitempty"`
	RequirementContent     string `json:"requirementContent,omitempty"`
	TOCEnabled             bool   `json:"tocEnabled"`
	TOCPosition            string `json:"tocPosition,omitempty"`
	TOCHeadingLevels       []int  `json:"tocHeadingLevels,omitempty"`
}

// Validate reports a missing document or an out-of-range TOC heading
// level as *InvalidInputError.
func (r Request) Validate() error {
	if strings.TrimSpace(r.DocumentContent) == "" {
		return &InvalidInputError{Field: "documentContent", Message: MsgDocumentRequired}
	}
	for _, l := range r.TOCHeadingLevels {
		if l < 1 || l > document.MaxTOCLevel {
			return &InvalidInputError{Field: "tocHeadingLevels", Message: MsgHeadingLevels}
		}
	}
	return nil
}

// TOC returns the normalized table of contents options.
func (r Request) TOC() document.TOCOptions {
	return document.TOCOptions{
		Enabled:  r.TOCEnabled,
		Position: document.TOCPosition(r.TOCPosition),
		Levels:   r.TOCHeadingLevels,
	}.Normalized()
}

// CacheKey returns the content hash of the request. Fields are hashed as
// given; TOC defaults apply only when building the prompt and document.
func (r Request) CacheKey() string {
	return cache.Key(cache.KeyInput{
		DocumentContent:        r.DocumentContent,
		FormattingInstructions: r.FormattingInstructions,
		RequirementContent:     r.RequirementContent,
		TOCEnabled:             r.TOCEnabled,
		TOCPosition:            r.TOCPosition,
		TOCHeadingLevels:       r.TOCHeadingLevels,
	})
}

func (r Request) promptRequest() prompts.Request {
	return prompts.Request{
		DocumentContent:        r.DocumentContent,
		FormattingInstructions: r.FormattingInstructions,
		RequirementContent:     r.RequirementContent,
		TOC:                    r.TOC(),
	}
}

// Result is a successful formatting response.
type Result struct {
	Success          bool            `json:"success"`
	Cached           bool            `json:"cached"`
	FormattingRules  rules.Rules     `json:"formattingRules"`
	TableOfContents  json.RawMessage `json:"tableOfContents,omitempty"`
	FormattedContent string          `json:"formattedContent"`
	Summary          string          `json:"summary"`

	InputHash string `json:"-"`
	// Document is the rebuilt document. It is nil for cache hits; use Build.
	Document *document.Document `json:"-"`
	// States lists the pipeline states visited, in order.
	States []State `json:"-"`
}

// Build returns the rebuilt document, rebuilding from the cached content
// when the result came from the cache.
func (r *Result) Build(toc document.TOCOptions) *document.Document {
	if r.Document != nil {
		return r.Document
	}
	return rebuild.Rebuild(r.FormattedContent, r.FormattingRules, toc)
}

func (r *Result) clone() *Result {
	c := *r
	c.States = append([]State(nil), r.States...)
	return &c
}
