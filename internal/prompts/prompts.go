// Package prompts renders the instructions sent to the formatting model.
//
// Templates are embedded .tmpl files. The user prompt picks exactly one
// formatting source, in order of precedence:
//  1. a reference requirement document
//  2. free-form formatting instructions
//  3. the default academic policy
//
// Table of contents instructions are always appended, either describing the
// requested TOC or explicitly asking for none.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/jackzampolin/wordfmt/internal/document"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

//go:embed sections.tmpl
var sectionsTmpl string

// Prompt keys
const (
	SystemPromptKey   = "formatter.system"
	UserPromptKey     = "formatter.user"
	SectionsPromptKey = "formatter.sections"
)

var funcs = template.FuncMap{
	"join":     joinLevels,
	"position": describePosition,
}

var userTemplate = template.Must(
	template.Must(template.New("user").Funcs(funcs).Parse(userPromptTmpl)).Parse(sectionsTmpl),
)

// SystemPrompt returns the system message that pins the model to JSON output.
func SystemPrompt() string {
	return strings.TrimSpace(systemPrompt)
}

// Request is the input to Build.
type Request struct {
	DocumentContent        string
	FormattingInstructions string
	RequirementContent     string
	TOC                    document.TOCOptions
}

// Source identifies which formatting source a request selects.
type Source string

const (
	SourceRequirement  Source = "requirement"
	SourceInstructions Source = "instructions"
	SourceDefault      Source = "default"
)

// SourceOf reports which formatting source Build will use for req.
// Whitespace-only fields count as absent.
func SourceOf(req Request) Source {
	switch {
	case strings.TrimSpace(req.RequirementContent) != "":
		return SourceRequirement
	case strings.TrimSpace(req.FormattingInstructions) != "":
		return SourceInstructions
	default:
		return SourceDefault
	}
}

// Build renders the user prompt for req.
func Build(req Request) (string, error) {
	data := req
	data.TOC = req.TOC.Normalized()
	switch SourceOf(req) {
	case SourceRequirement:
		data.FormattingInstructions = ""
	case SourceInstructions:
		data.RequirementContent = ""
	default:
		data.RequirementContent = ""
		data.FormattingInstructions = ""
	}

	var buf bytes.Buffer
	if err := userTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}

// Template describes one embedded prompt template.
type Template struct {
	Key       string   `json:"key"`
	Text      string   `json:"text"`
	Variables []string `json:"variables,omitempty"`
	Hash      string   `json:"hash"`
}

// Templates returns the embedded templates with their variables and hashes,
// in a stable order.
func Templates() []Template {
	raw := []struct{ key, text string }{
		{SystemPromptKey, systemPrompt},
		{UserPromptKey, userPromptTmpl},
		{SectionsPromptKey, sectionsTmpl},
	}
	out := make([]Template, 0, len(raw))
	for _, r := range raw {
		out = append(out, Template{
			Key:       r.key,
			Text:      r.text,
			Variables: ExtractVariables(r.text),
			Hash:      HashText(r.text),
		})
	}
	return out
}

func joinLevels(levels []int) string {
	parts := make([]string, len(levels))
	for i, l := range levels {
		parts[i] = strconv.Itoa(l)
	}
	return strings.Join(parts, ", ")
}

func describePosition(p document.TOCPosition) string {
	if p == document.TOCAfterTitle {
		return "After the title page"
	}
	return "At the very beginning of the document"
}
