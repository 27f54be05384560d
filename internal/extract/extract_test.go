package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackzampolin/wordfmt/internal/docx"
	"github.com/jackzampolin/wordfmt/internal/document"
	"github.com/jackzampolin/wordfmt/internal/rebuild"
	"github.com/jackzampolin/wordfmt/internal/rules"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		want Format
	}{
		{"report.docx", FormatDocx},
		{"REPORT.DOCX", FormatDocx},
		{"page.htm", FormatHTML},
		{"page.html", FormatHTML},
		{"scan.pdf", FormatPDF},
		{"notes.txt", FormatText},
		{"notes.md", FormatText},
		{"noext", FormatText},
	}
	for _, tt := range tests {
		if got := Detect(tt.name); got != tt.want {
			t.Errorf("Detect(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDocument_Docx(t *testing.T) {
	doc := rebuild.Rebuild("<h1>Title</h1><p>Body <strong>bold</strong></p>", rules.Rules{}, document.TOCOptions{})
	data, err := docx.NewWriter(doc, docx.Properties{}).Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	res, err := New(Config{}).Document(context.Background(), "in/report.docx", data)
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	if res.Filename != "report.docx" || res.Format != FormatDocx || res.Fallback {
		t.Errorf("result = %+v", res)
	}
	if want := "<h1>Title</h1>\n<p>Body <strong>bold</strong></p>\n"; res.HTML != want {
		t.Errorf("HTML = %q, want %q", res.HTML, want)
	}
	if res.Text != "Title\n\nBody bold" {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestDocument_BrokenDocxFallsBack(t *testing.T) {
	res, err := New(Config{}).Document(context.Background(), "broken.docx", []byte("plain words"))
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	if !res.Fallback {
		t.Error("expected fallback")
	}
	if res.Text != "plain words" || res.HTML != "<p>plain words</p>\n" {
		t.Errorf("result = %+v", res)
	}
}

func TestDocument_HTMLSanitized(t *testing.T) {
	src := `<h2 onclick="x()">Heading</h2><script>alert(1)</script><p style="color:red">Text <b>bold</b><img src=x></p>`
	res, err := New(Config{}).Document(context.Background(), "page.html", []byte(src))
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	for _, bad := range []string{"onclick", "script", "alert", "style=", "<img"} {
		if strings.Contains(res.HTML, bad) {
			t.Errorf("HTML should not contain %q: %s", bad, res.HTML)
		}
	}
	if !strings.Contains(res.HTML, "<h2>Heading</h2>") || !strings.Contains(res.HTML, "<b>bold</b>") {
		t.Errorf("HTML lost structure: %s", res.HTML)
	}
	if res.Text != "Heading\nText bold" {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestDocument_Text(t *testing.T) {
	src := "\xef\xbb\xbfFirst line\nsecond <line>\r\n\r\nNext para"
	res, err := New(Config{}).Document(context.Background(), "notes.txt", []byte(src))
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	want := "<p>First line<br>second &lt;line&gt;</p>\n<p>Next para</p>\n"
	if res.HTML != want {
		t.Errorf("HTML = %q, want %q", res.HTML, want)
	}
}

func TestReference_DropsHTML(t *testing.T) {
	res, err := New(Config{}).Reference(context.Background(), "rules.html", []byte("<p>Use APA</p>"))
	if err != nil {
		t.Fatalf("Reference() error = %v", err)
	}
	if res.HTML != "" || res.Text != "Use APA" {
		t.Errorf("result = %+v", res)
	}
}

func TestExtract_InvalidPDFFallsBack(t *testing.T) {
	res, err := New(Config{}).Reference(context.Background(), "guide.pdf", []byte("%PDF-1.4 not really"))
	if err != nil {
		t.Fatalf("Reference() error = %v", err)
	}
	if !res.Fallback || res.Text != "%PDF-1.4 not really" {
		t.Errorf("result = %+v", res)
	}
}

func TestExtract_Limits(t *testing.T) {
	e := New(Config{MaxBytes: 4})
	if _, err := e.Document(context.Background(), "a.txt", []byte("12345")); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Document() error = %v, want ErrTooLarge", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Document(ctx, "a.txt", []byte("1")); !errors.Is(err, context.Canceled) {
		t.Errorf("Document() error = %v, want context.Canceled", err)
	}
}

func TestRawText(t *testing.T) {
	if got := rawText([]byte("a\x00b\xffc ")); got != "abc" {
		t.Errorf("rawText() = %q, want %q", got, "abc")
	}
}

func TestMarkdown(t *testing.T) {
	md, err := Markdown("<h1>Title</h1><p>Some <strong>bold</strong> text</p>")
	if err != nil {
		t.Fatalf("Markdown() error = %v", err)
	}
	if !strings.Contains(md, "# Title") || !strings.Contains(md, "**bold**") {
		t.Errorf("Markdown() = %q", md)
	}
}

func TestHTMLText(t *testing.T) {
	got := HTMLText("<h1>A</h1><p>b  <br>c</p><ul><li>d</li><li>e</li></ul><style>x{}</style>")
	if got != "A\nb\nc\nd\ne" {
		t.Errorf("HTMLText() = %q", got)
	}
}
