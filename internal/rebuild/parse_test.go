package rebuild

import (
	"testing"

	"github.com/jackzampolin/wordfmt/internal/document"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		html string
		want []Element
	}{
		{
			name: "headings and paragraphs",
			html: "<h1>Report</h1>\n<h2>Background</h2>\n<p>intro text</p>",
			want: []Element{
				{Kind: ElementHeading, Level: 1, Runs: []document.Run{{Text: "Report"}}},
				{Kind: ElementHeading, Level: 2, Runs: []document.Run{{Text: "Background"}}},
				{Kind: ElementParagraph, Runs: []document.Run{{Text: "intro text"}}},
			},
		},
		{
			name: "bold runs",
			html: "<p>plain <strong>strong</strong> and <b>b</b>.</p>",
			want: []Element{
				{Kind: ElementParagraph, Runs: []document.Run{
					{Text: "plain "}, {Text: "strong", Bold: true}, {Text: " and "}, {Text: "b", Bold: true}, {Text: "."},
				}},
			},
		},
		{
			name: "other inline tags are plain text",
			html: `<p>see <em>this</em> <a href="#x">link</a> <span style="color:red">now</span></p>`,
			want: []Element{
				{Kind: ElementParagraph, Runs: []document.Run{{Text: "see this link now"}}},
			},
		},
		{
			name: "whitespace collapses",
			html: "<p>\n   lots \t of\n\n space   </p>",
			want: []Element{
				{Kind: ElementParagraph, Runs: []document.Run{{Text: "lots of space"}}},
			},
		},
		{
			name: "empty elements skipped",
			html: "<h1></h1><p>   </p><h2> </h2><p>kept</p><p></p>",
			want: []Element{
				{Kind: ElementParagraph, Runs: []document.Run{{Text: "kept"}}},
			},
		},
		{
			name: "line breaks survive",
			html: "<p>one<br>two</p><p><br></p><br>",
			want: []Element{
				{Kind: ElementParagraph, Runs: []document.Run{{Text: "one"}, {Break: true}, {Text: "two"}}},
				{Kind: ElementParagraph, Runs: []document.Run{{Break: true}}},
				{Kind: ElementParagraph, Runs: []document.Run{{Break: true}}},
			},
		},
		{
			name: "loose text becomes paragraphs",
			html: "leading text<h1>Title</h1>trailing <b>bold</b>",
			want: []Element{
				{Kind: ElementParagraph, Runs: []document.Run{{Text: "leading text"}}},
				{Kind: ElementHeading, Level: 1, Runs: []document.Run{{Text: "Title"}}},
				{Kind: ElementParagraph, Runs: []document.Run{{Text: "trailing "}, {Text: "bold", Bold: true}}},
			},
		},
		{
			name: "containers split paragraphs",
			html: "<div><ul><li>first</li><li>second</li></ul></div>",
			want: []Element{
				{Kind: ElementParagraph, Runs: []document.Run{{Text: "first"}}},
				{Kind: ElementParagraph, Runs: []document.Run{{Text: "second"}}},
			},
		},
		{
			name: "deep headings clamp to h4",
			html: "<h5>five</h5><h6>six</h6>",
			want: []Element{
				{Kind: ElementHeading, Level: 4, Runs: []document.Run{{Text: "five"}}},
				{Kind: ElementHeading, Level: 4, Runs: []document.Run{{Text: "six"}}},
			},
		},
		{
			name: "scripts and styles ignored",
			html: "<style>p{color:red}</style><p>visible</p><script>alert(1)</script>",
			want: []Element{
				{Kind: ElementParagraph, Runs: []document.Run{{Text: "visible"}}},
			},
		},
		{
			name: "entities decoded",
			html: "<p>Fish &amp; Chips&nbsp;&mdash; &lt;ok&gt;</p>",
			want: []Element{
				{Kind: ElementParagraph, Runs: []document.Run{{Text: "Fish & Chips — <ok>"}}},
			},
		},
		{
			name: "empty input",
			html: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.html)
			if len(got) != len(tt.want) {
				t.Fatalf("Parse() returned %d elements, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				assertElement(t, i, got[i], tt.want[i])
			}
		})
	}
}

func assertElement(t *testing.T, i int, got, want Element) {
	t.Helper()
	if got.Kind != want.Kind || got.Level != want.Level {
		t.Errorf("element %d kind/level = %v/%d, want %v/%d", i, got.Kind, got.Level, want.Kind, want.Level)
	}
	if len(got.Runs) != len(want.Runs) {
		t.Errorf("element %d runs = %+v, want %+v", i, got.Runs, want.Runs)
		return
	}
	for j := range got.Runs {
		if got.Runs[j] != want.Runs[j] {
			t.Errorf("element %d run %d = %+v, want %+v", i, j, got.Runs[j], want.Runs[j])
		}
	}
}
