package rules

// ResponseSchema is the JSON schema for the formatting response envelope.
// Only the envelope is checked; field-level defects inside formattingRules are
// defaulted by the accessors on Rules instead of failing the response.
var ResponseSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"formattingRules": map[string]any{
			"description": "Extracted or interpreted typography rules",
		},
		"tableOfContents": map[string]any{
			"description": "HTML string of the TOC or null if disabled",
		},
		"formattedContent": map[string]any{
			"type":        []any{"string", "null"},
			"description": "The complete formatted document as HTML",
		},
		"summary": map[string]any{
			"description": "Brief description of formatting changes applied",
		},
	},
}
