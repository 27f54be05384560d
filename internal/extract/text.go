package extract

import (
	"fmt"
	"html"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	xhtml "golang.org/x/net/html"
)

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// Markdown renders formatted HTML as Markdown for terminal previews.
func Markdown(src string) (string, error) {
	md, err := mdConverter.ConvertString(src)
	if err != nil {
		return "", fmt.Errorf("failed to convert html to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}

// TextToHTML wraps blank-line separated blocks of text in paragraphs. Single
// newlines inside a block become line breaks.
func TextToHTML(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var sb strings.Builder
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		for i, l := range lines {
			lines[i] = html.EscapeString(strings.TrimSpace(l))
		}
		sb.WriteString("<p>" + strings.Join(lines, "<br>") + "</p>\n")
	}
	return sb.String()
}

// HTMLText returns the visible text of src with block elements separated by
// newlines.
func HTMLText(src string) string {
	root, err := xhtml.Parse(strings.NewReader(src))
	if err != nil {
		return ""
	}
	var sb strings.Builder
	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		switch n.Type {
		case xhtml.TextNode:
			sb.WriteString(n.Data)
			return
		case xhtml.ElementNode:
			switch n.Data {
			case "script", "style", "head":
				return
			case "br":
				sb.WriteByte('\n')
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == xhtml.ElementNode && isBlock(n.Data) {
			sb.WriteByte('\n')
		}
	}
	walk(root)

	var lines []string
	for _, l := range strings.Split(sb.String(), "\n") {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "section", "article", "li", "tr", "blockquote", "pre",
		"h1", "h2", "h3", "h4", "h5", "h6", "table", "ul", "ol", "hr":
		return true
	}
	return false
}
