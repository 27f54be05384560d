// Package rebuild maps formatted HTML and a rule set onto a styled
// document.Document. Rebuild is total: malformed rules fall back to
// defaults and it never returns an error.
package rebuild

import (
	"github.com/jackzampolin/wordfmt/internal/document"
	"github.com/jackzampolin/wordfmt/internal/rules"
)

// Rebuild parses src and applies r. The table of contents placeholder is
// inserted at the start of the document or directly after the first h1,
// never anywhere else.
func Rebuild(src string, r rules.Rules, toc document.TOCOptions) (doc *document.Document) {
	toc = toc.Normalized()
	b := newBuilder(r, toc)

	defer func() {
		// Totality: a panic below still yields the blocks built so far.
		if rec := recover(); rec != nil {
			doc = b.document()
		}
	}()

	if toc.Enabled && toc.Position == document.TOCBeginning {
		b.appendTOC()
	}
	for _, el := range Parse(src) {
		b.add(el)
	}
	return b.document()
}

type builder struct {
	rules     rules.Rules
	toc       document.TOCOptions
	body      document.Style
	blocks    []document.Block
	titleSeen bool
}

func newBuilder(r rules.Rules, toc document.TOCOptions) *builder {
	return &builder{
		rules: r,
		toc:   toc,
		body: document.Style{
			FontSize:    r.BaseFontSize(),
			Alignment:   r.BodyAlignment(),
			LineSpacing: r.Spacing(),
			SpaceAfter:  r.ParagraphGap(),
			FirstIndent: r.Indent(),
		},
	}
}

func (b *builder) add(el Element) {
	switch el.Kind {
	case ElementHeading:
		b.blocks = append(b.blocks, document.Block{
			Kind:  document.KindHeading,
			Level: el.Level,
			Runs:  el.Runs,
			Style: b.headingStyle(el.Level),
		})
		if el.Level == 1 && !b.titleSeen {
			b.titleSeen = true
			if b.toc.Enabled && b.toc.Position == document.TOCAfterTitle {
				b.appendTOC()
			}
		}
	default:
		style := b.body
		if isBreakOnly(el.Runs) {
			style.FirstIndent = 0
		}
		b.blocks = append(b.blocks, document.Block{
			Kind:  document.KindParagraph,
			Runs:  el.Runs,
			Style: style,
		})
	}
}

func (b *builder) headingStyle(level int) document.Style {
	h := b.rules.Heading(level)
	return document.Style{
		FontSize:    h.FontSize,
		Bold:        h.Bold,
		Alignment:   h.Alignment,
		LineSpacing: b.rules.Spacing(),
		SpaceAfter:  b.rules.ParagraphGap(),
	}
}

func (b *builder) appendTOC() {
	heading := b.headingStyle(1)
	heading.Alignment = rules.AlignCenter
	b.blocks = append(b.blocks,
		document.Block{
			Kind:  document.KindTOCHeading,
			Level: 1,
			Runs:  []document.Run{{Text: document.TOCHeadingText, Bold: heading.Bold}},
			Style: heading,
		},
		document.Block{
			Kind:      document.KindTOCPlaceholder,
			Style:     document.Style{FontSize: b.body.FontSize, Alignment: rules.AlignLeft, LineSpacing: b.body.LineSpacing},
			TOCLevels: b.toc.Levels,
		},
	)
}

func (b *builder) document() *document.Document {
	return &document.Document{
		FontFamily: b.rules.Font(),
		Margins:    b.rules.PageMargins(),
		Blocks:     b.blocks,
		Header:     document.HeaderFooter{},
		Footer:     document.HeaderFooter{PageNumber: true},
	}
}

func isBreakOnly(runs []document.Run) bool {
	for _, r := range runs {
		if !r.Break {
			return false
		}
	}
	return true
}
