package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"
)

// ErrNoDocumentPart is returned when the archive has no word/document.xml.
var ErrNoDocumentPart = errors.New("word/document.xml not found in archive")

// maxPartSize bounds the decompressed main document part.
const maxPartSize = 64 << 20

// Paragraph is a paragraph read from a .docx body.
type Paragraph struct {
	Level int // 1..4 for headings, 0 for body text
	Runs  []TextRun
}

// TextRun is a span of paragraph text.
type TextRun struct {
	Text  string
	Bold  bool
	Break bool
}

// Text concatenates the paragraph's text, rendering breaks as newlines.
func (p Paragraph) Text() string {
	var sb strings.Builder
	for _, r := range p.Runs {
		if r.Break {
			sb.WriteByte('\n')
			continue
		}
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Read parses the body paragraphs of a .docx package. Table of contents
// fields and other field codes are skipped.
func Read(data []byte) ([]Paragraph, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, ErrNoDocumentPart
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	return parseBody(io.LimitReader(rc, maxPartSize))
}

func parseBody(r io.Reader) ([]Paragraph, error) {
	decoder := xml.NewDecoder(r)

	var (
		paragraphs []Paragraph
		cur        *Paragraph
		style      string
		bold       bool
		inRunProps bool
		inParProps bool
		inText     bool
		fieldDepth int
	)

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return paragraphs, fmt.Errorf("decode document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				cur = &Paragraph{}
				style = ""
			case "pStyle":
				if cur != nil {
					style = attr(t, "val")
				}
			case "pPr":
				inParProps = true
			case "r":
				bold = false
			case "rPr":
				inRunProps = true
			case "b":
				if inRunProps {
					v := strings.ToLower(attr(t, "val"))
					bold = v != "0" && v != "false" && v != "off"
				}
			case "fldChar":
				switch attr(t, "fldCharType") {
				case "begin":
					fieldDepth++
				case "end":
					if fieldDepth > 0 {
						fieldDepth--
					}
				}
			case "t":
				inText = cur != nil && fieldDepth == 0
			case "br", "cr":
				if cur != nil && fieldDepth == 0 && attr(t, "type") != "page" {
					cur.Runs = append(cur.Runs, TextRun{Break: true})
				}
			case "tab":
				// Tab stops inside pPr are layout, not text.
				if cur != nil && fieldDepth == 0 && !inParProps {
					cur.Runs = appendText(cur.Runs, "\t", bold)
				}
			}

		case xml.CharData:
			if inText {
				cur.Runs = appendText(cur.Runs, string(t), bold)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "pPr":
				inParProps = false
			case "rPr":
				inRunProps = false
			case "t":
				inText = false
			case "p":
				// A generated TOC title is regenerated on the next format.
				if cur == nil || strings.EqualFold(style, "TOCHeading") {
					cur = nil
					continue
				}
				cur.Level = HeadingLevel(style)
				if strings.TrimSpace(cur.Text()) != "" {
					paragraphs = append(paragraphs, *cur)
				}
				cur = nil
			}
		}
	}
	return paragraphs, nil
}

func appendText(runs []TextRun, text string, bold bool) []TextRun {
	if n := len(runs); n > 0 && !runs[n-1].Break && runs[n-1].Bold == bold {
		runs[n-1].Text += text
		return runs
	}
	return append(runs, TextRun{Text: text, Bold: bold})
}

func attr(e xml.StartElement, local string) string {
	for _, a := range e.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// HeadingLevel maps a paragraph style ID to a heading level, or 0.
// "Heading1" and "Title" are 1, "Subtitle" is 2; levels past 4 are 4.
func HeadingLevel(style string) int {
	lower := strings.ToLower(strings.ReplaceAll(style, " ", ""))

	switch lower {
	case "title":
		return 1
	case "subtitle":
		return 2
	}

	for _, prefix := range []string{"heading", "titre", "überschrift"} {
		if rest, ok := strings.CutPrefix(lower, prefix); ok {
			if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '9' {
				return min(int(rest[0]-'0'), 4)
			}
		}
	}
	return 0
}

// HTML renders paragraphs with the tags the rebuilder understands: h1-h4, p,
// strong and br.
func HTML(paragraphs []Paragraph) string {
	var sb strings.Builder
	for _, p := range paragraphs {
		tag := "p"
		if p.Level > 0 {
			tag = fmt.Sprintf("h%d", p.Level)
		}
		sb.WriteString("<" + tag + ">")
		for _, r := range p.Runs {
			switch {
			case r.Break:
				sb.WriteString("<br>")
			case r.Bold && p.Level == 0:
				sb.WriteString("<strong>" + html.EscapeString(r.Text) + "</strong>")
			default:
				sb.WriteString(html.EscapeString(r.Text))
			}
		}
		sb.WriteString("</" + tag + ">\n")
	}
	return sb.String()
}

// PlainText joins paragraph text with blank lines.
func PlainText(paragraphs []Paragraph) string {
	texts := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		texts = append(texts, strings.TrimSpace(p.Text()))
	}
	return strings.Join(texts, "\n\n")
}
