package prompts

import (
	"strings"
	"testing"

	"github.com/jackzampolin/wordfmt/internal/document"
)

func TestBuild_SourcePrecedence(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		want    []string
		notWant []string
	}{
		{
			name: "requirement wins over instructions",
			req: Request{
				DocumentContent:        "<p>body</p>",
				FormattingInstructions: "Use Arial",
				RequirementContent:     "APA 7th edition: double spacing",
			},
			want: []string{
				"The user has provided a formatting requirement document with these specifications:",
				"\"\"\"\nAPA 7th edition: double spacing\n\"\"\"",
				"Analyze these requirements and extract the formatting rules.",
			},
			notWant: []string{"Use Arial", "Apply professional academic standards"},
		},
		{
			name: "instructions when no requirement",
			req: Request{
				DocumentContent:        "<p>body</p>",
				FormattingInstructions: "Times New Roman 12pt, double spaced, justified",
			},
			want: []string{
				"The user has provided these formatting instructions:",
				"\"\"\"\nTimes New Roman 12pt, double spaced, justified\n\"\"\"",
				"Interpret these instructions and create appropriate formatting rules.",
			},
			notWant: []string{"formatting requirement document", "Apply professional academic standards"},
		},
		{
			name: "default academic policy",
			req:  Request{DocumentContent: "<p>body</p>", RequirementContent: "   "},
			want: []string{
				"No specific formatting instructions were provided. Apply professional academic standards:",
				"- Font: Times New Roman, 12pt",
				"- Line spacing: 1.5 or double",
				"- Margins: 1 inch all around",
				"- Headings: Bold, appropriately sized",
				"- Paragraphs: Justified alignment",
				"- First-line indentation: 0.5 inch",
			},
			notWant: []string{"formatting requirement document", "these formatting instructions"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Build(tt.req)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			for _, s := range tt.want {
				if !strings.Contains(got, s) {
					t.Errorf("prompt missing %q", s)
				}
			}
			for _, s := range tt.notWant {
				if strings.Contains(got, s) {
					t.Errorf("prompt unexpectedly contains %q", s)
				}
			}
		})
	}
}

func TestBuild_TOCInstructions(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		got, err := Build(Request{DocumentContent: "<p>x</p>"})
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if !strings.Contains(got, "Do not include a Table of Contents.") {
			t.Error("disabled TOC not stated")
		}
		if strings.Contains(got, "Generate a Table of Contents") {
			t.Error("disabled TOC still requested")
		}
	})

	t.Run("beginning", func(t *testing.T) {
		got, err := Build(Request{
			DocumentContent: "<p>x</p>",
			TOC:             document.TOCOptions{Enabled: true, Position: document.TOCBeginning, Levels: []int{2, 1, 3}},
		})
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		for _, s := range []string{
			"Generate a Table of Contents with the following settings:",
			"- Include heading levels: 1, 2, 3",
			"- Position: At the very beginning of the document",
			"- Use dot leaders between titles and page numbers",
			"- Make entries clickable/linked to their sections",
		} {
			if !strings.Contains(got, s) {
				t.Errorf("prompt missing %q", s)
			}
		}
	})

	t.Run("after title", func(t *testing.T) {
		got, err := Build(Request{
			DocumentContent: "<p>x</p>",
			TOC:             document.TOCOptions{Enabled: true, Position: document.TOCAfterTitle, Levels: []int{1, 2}},
		})
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if !strings.Contains(got, "- Position: After the title page") {
			t.Error("after-title position not described")
		}
		if !strings.Contains(got, "- Include heading levels: 1, 2\n") {
			t.Error("heading levels not listed")
		}
	})
}

func TestBuild_DocumentAndSchema(t *testing.T) {
	doc := `<h1>Report</h1><p>intro & "quoted" <b>text</b></p>`
	got, err := Build(Request{DocumentContent: doc})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if !strings.HasPrefix(got, "You are a professional document formatter. Your task is to format a Word document") {
		t.Errorf("unexpected prompt opening: %q", got[:80])
	}
	if !strings.Contains(got, "\"\"\"\n"+doc+"\n\"\"\"") {
		t.Error("document content was not embedded verbatim")
	}
	for _, field := range []string{`"formattingRules"`, `"tableOfContents"`, `"formattedContent"`, `"summary"`, `"citationStyle"`} {
		if !strings.Contains(got, field) {
			t.Errorf("schema missing %s", field)
		}
	}
	if strings.Contains(got, "{{") {
		t.Error("unrendered template action in prompt")
	}
}

func TestSystemPrompt(t *testing.T) {
	want := "You are a professional document formatter. Always respond with valid JSON only, no markdown code blocks."
	if got := SystemPrompt(); got != want {
		t.Errorf("SystemPrompt() = %q, want %q", got, want)
	}
}

func TestTemplates(t *testing.T) {
	tmpls := Templates()
	if len(tmpls) != 3 {
		t.Fatalf("Templates() returned %d templates, want 3", len(tmpls))
	}
	for _, tmpl := range tmpls {
		if len(tmpl.Hash) != 64 {
			t.Errorf("%s hash = %q", tmpl.Key, tmpl.Hash)
		}
	}

	user := tmpls[1]
	if user.Key != UserPromptKey {
		t.Fatalf("Templates()[1].Key = %q", user.Key)
	}
	if len(user.Variables) != 1 || user.Variables[0] != "DocumentContent" {
		t.Errorf("user variables = %v, want [DocumentContent]", user.Variables)
	}
}

func TestExtractVariables(t *testing.T) {
	got := ExtractVariables(`{{if .TOC.Enabled -}}{{.Title}} {{join .TOC.Levels}}{{end}}{{.Title}}{{template "x" .}}`)
	want := []string{"TOC.Enabled", "TOC.Levels", "Title"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ExtractVariables() = %v, want %v", got, want)
	}
}
