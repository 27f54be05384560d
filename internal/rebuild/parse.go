package rebuild

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jackzampolin/wordfmt/internal/document"
)

// ElementKind distinguishes parsed block elements.
type ElementKind int

const (
	ElementParagraph ElementKind = iota
	ElementHeading
)

// Element is one block-level unit of the source HTML.
type Element struct {
	Kind  ElementKind
	Level int // 1..4 for headings
	Runs  []document.Run
}

// Text returns the concatenated run text.
func (e Element) Text() string {
	var sb strings.Builder
	for _, r := range e.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Parse splits an HTML fragment into block elements. Headings h1-h4 and
// paragraphs become elements; strong and b mark bold runs; br becomes a
// break run. Text outside any block is gathered into implicit paragraphs.
// Other tags contribute their text only. Elements without text are
// dropped unless they carry a line break.
func Parse(src string) []Element {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		// strings.Reader never fails, but keep the text if the tokenizer does.
		if text := strings.TrimSpace(src); text != "" {
			return []Element{{Kind: ElementParagraph, Runs: []document.Run{{Text: text}}}}
		}
		return nil
	}

	p := &parser{}
	p.walk(root, false)
	p.flush()
	return p.out
}

type parser struct {
	out     []Element
	pending []document.Run
}

func (p *parser) walk(n *html.Node, bold bool) {
	switch n.Type {
	case html.TextNode:
		p.pending = append(p.pending, document.Run{Text: n.Data, Bold: bold})
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Head, atom.Title, atom.Template:
			return
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			p.flush()
			p.emit(Element{Kind: ElementHeading, Level: headingLevel(n.DataAtom), Runs: collectRuns(n, bold)})
			return
		case atom.P:
			p.flush()
			p.emit(Element{Kind: ElementParagraph, Runs: collectRuns(n, bold)})
			return
		case atom.Br:
			p.pending = append(p.pending, document.Run{Break: true})
			return
		case atom.Strong, atom.B:
			bold = true
		default:
			if isBlockContainer(n.DataAtom) {
				p.flush()
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					p.walk(c, bold)
				}
				p.flush()
				return
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c, bold)
	}
}

// flush turns pending inline runs into an implicit paragraph.
func (p *parser) flush() {
	if len(p.pending) == 0 {
		return
	}
	runs := p.pending
	p.pending = nil
	p.emit(Element{Kind: ElementParagraph, Runs: runs})
}

func (p *parser) emit(el Element) {
	el.Runs = normalizeRuns(el.Runs)
	if !hasContent(el.Runs) {
		return
	}
	p.out = append(p.out, el)
}

// collectRuns gathers the inline runs below a block element.
func collectRuns(n *html.Node, bold bool) []document.Run {
	var runs []document.Run
	var walk func(*html.Node, bool)
	walk = func(n *html.Node, bold bool) {
		switch n.Type {
		case html.TextNode:
			runs = append(runs, document.Run{Text: n.Data, Bold: bold})
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			case atom.Br:
				runs = append(runs, document.Run{Break: true})
				return
			case atom.Strong, atom.B:
				bold = true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, bold)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, bold)
	}
	return runs
}

func headingLevel(a atom.Atom) int {
	switch a {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	default:
		return 4 // h5 and h6 render as h4
	}
}

func isBlockContainer(a atom.Atom) bool {
	switch a {
	case atom.Html, atom.Body, atom.Div, atom.Section, atom.Article, atom.Main,
		atom.Header, atom.Footer, atom.Nav, atom.Aside, atom.Blockquote,
		atom.Ul, atom.Ol, atom.Li, atom.Dl, atom.Dt, atom.Dd,
		atom.Table, atom.Thead, atom.Tbody, atom.Tfoot, atom.Tr, atom.Td, atom.Th,
		atom.Pre, atom.Figure, atom.Figcaption, atom.Hr:
		return true
	}
	return false
}

// normalizeRuns collapses HTML whitespace, merges neighbouring runs with the
// same weight and trims the block edges.
func normalizeRuns(in []document.Run) []document.Run {
	var out []document.Run
	for _, r := range in {
		if r.Break {
			out = append(out, r)
			continue
		}
		text := collapseSpace(r.Text)
		if text == "" {
			continue
		}
		// Whitespace at a line start or after whitespace is insignificant.
		if strings.HasPrefix(text, " ") && (len(out) == 0 || endsWithSpace(out[len(out)-1])) {
			text = text[1:]
			if text == "" {
				continue
			}
		}
		if n := len(out); n > 0 && !out[n-1].Break && out[n-1].Bold == r.Bold {
			out[n-1].Text += text
			continue
		}
		out = append(out, document.Run{Text: text, Bold: r.Bold})
	}

	// Trim trailing whitespace before breaks and at the end.
	for i := range out {
		if out[i].Break {
			continue
		}
		if i == len(out)-1 || out[i+1].Break {
			out[i].Text = strings.TrimRightFunc(out[i].Text, unicode.IsSpace)
		}
	}
	return dropEmpty(out)
}

func dropEmpty(runs []document.Run) []document.Run {
	out := runs[:0]
	for _, r := range runs {
		if r.Break || r.Text != "" {
			out = append(out, r)
		}
	}
	return out
}

func endsWithSpace(r document.Run) bool {
	if r.Break {
		return true
	}
	last, _ := utf8.DecodeLastRuneInString(r.Text)
	return last == ' '
}

func collapseSpace(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if s == "" {
			return ""
		}
		return " "
	}
	out := strings.Join(fields, " ")
	if first, _ := utf8.DecodeRuneInString(s); unicode.IsSpace(first) {
		out = " " + out
	}
	if last, _ := utf8.DecodeLastRuneInString(s); unicode.IsSpace(last) {
		out += " "
	}
	return out
}

func hasContent(runs []document.Run) bool {
	for _, r := range runs {
		if r.Break || strings.TrimSpace(r.Text) != "" {
			return true
		}
	}
	return false
}
