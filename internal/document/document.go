// Package document is the structural model produced by the rebuilder and
// consumed by output writers.
package document

import (
	"slices"
	"strings"

	"github.com/jackzampolin/wordfmt/internal/rules"
)

// BlockKind identifies the role of a block.
type BlockKind string

const (
	KindHeading        BlockKind = "heading"
	KindParagraph      BlockKind = "paragraph"
	KindTOCHeading     BlockKind = "toc_heading"
	KindTOCPlaceholder BlockKind = "toc_placeholder"
)

// TOCHeadingText is the visible title of the table of contents.
const TOCHeadingText = "Table of Contents"

// Run is a span of text with uniform inline formatting.
type Run struct {
	Text  string `json:"text,omitempty"`
	Bold  bool   `json:"bold,omitempty"`
	Break bool   `json:"break,omitempty"`
}

// Style is the resolved paragraph style of a block.
type Style struct {
	FontSize    float64         `json:"fontSize"`
	Bold        bool            `json:"bold,omitempty"`
	Alignment   rules.Alignment `json:"alignment"`
	LineSpacing float64         `json:"lineSpacing"`
	SpaceAfter  float64         `json:"spaceAfter,omitempty"`
	FirstIndent float64         `json:"firstIndent,omitempty"` // inches
}

// Block is one paragraph-level element.
type Block struct {
	Kind  BlockKind `json:"kind"`
	Level int       `json:"level,omitempty"` // 1..4 for headings
	Runs  []Run     `json:"runs,omitempty"`
	Style Style     `json:"style"`
	// TOCLevels is set on placeholders: the heading depths to include.
	TOCLevels []int `json:"tocLevels,omitempty"`
}

// Text concatenates the block's run text.
func (b Block) Text() string {
	var sb strings.Builder
	for _, r := range b.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// HeaderFooter describes a page header or footer.
type HeaderFooter struct {
	Text       string `json:"text,omitempty"`
	PageNumber bool   `json:"pageNumber,omitempty"`
}

// Document is a rebuilt, styled document.
type Document struct {
	FontFamily string            `json:"fontFamily"`
	Margins    rules.PageMargins `json:"margins"`
	Blocks     []Block           `json:"blocks"`
	Header     HeaderFooter      `json:"header"`
	Footer     HeaderFooter      `json:"footer"`
}

// Headings returns the heading blocks in document order.
func (d *Document) Headings() []Block {
	var out []Block
	for _, b := range d.Blocks {
		if b.Kind == KindHeading {
			out = append(out, b)
		}
	}
	return out
}

// IndexOf returns the index of the first block of the given kind, or -1.
func (d *Document) IndexOf(kind BlockKind) int {
	for i, b := range d.Blocks {
		if b.Kind == kind {
			return i
		}
	}
	return -1
}

// TOCPosition is where the table of contents placeholder is inserted.
type TOCPosition string

const (
	TOCBeginning  TOCPosition = "beginning"
	TOCAfterTitle TOCPosition = "after-title"
)

// ParseTOCPosition maps s onto a known position. Anything other than
// "after-title" is treated as the beginning.
func ParseTOCPosition(s string) TOCPosition {
	if strings.EqualFold(strings.TrimSpace(s), string(TOCAfterTitle)) {
		return TOCAfterTitle
	}
	return TOCBeginning
}

// MaxTOCLevel is the deepest heading a table of contents can list.
const MaxTOCLevel = 4

// DefaultTOCLevels are the heading depths listed when none are requested.
var DefaultTOCLevels = []int{1, 2, 3}

// TOCOptions controls table of contents generation.
type TOCOptions struct {
	Enabled  bool        `json:"enabled"`
	Position TOCPosition `json:"position"`
	Levels   []int       `json:"levels"`
}

// Normalized returns a copy with a known position and levels restricted to
// 1..4, sorted and deduplicated.
func (o TOCOptions) Normalized() TOCOptions {
	out := TOCOptions{Enabled: o.Enabled, Position: ParseTOCPosition(string(o.Position))}
	seen := make(map[int]bool, len(o.Levels))
	for _, l := range o.Levels {
		if l < 1 || l > MaxTOCLevel || seen[l] {
			continue
		}
		seen[l] = true
		out.Levels = append(out.Levels, l)
	}
	slices.Sort(out.Levels)
	if len(out.Levels) == 0 {
		out.Levels = slices.Clone(DefaultTOCLevels)
	}
	return out
}
