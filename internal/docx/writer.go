// Package docx reads and writes WordprocessingML (.docx) packages.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackzampolin/wordfmt/internal/document"
	"github.com/jackzampolin/wordfmt/internal/rules"
)

// ContentType is the MIME type of a .docx file.
const ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Unit conversions used by WordprocessingML.
const (
	twipsPerInch  = 1440
	twipsPerPoint = 20
	lineUnit      = 240 // w:line value of single spacing
)

// Properties are written to docProps/core.xml.
type Properties struct {
	Title     string
	Creator   string
	CreatedAt time.Time
}

// Writer serializes a document.Document into a .docx package.
type Writer struct {
	doc   *document.Document
	props Properties
}

// NewWriter creates a writer for doc.
func NewWriter(doc *document.Document, props Properties) *Writer {
	if doc == nil {
		doc = &document.Document{}
	}
	if props.CreatedAt.IsZero() {
		props.CreatedAt = time.Now()
	}
	if props.Title == "" {
		props.Title = firstHeading(doc)
	}
	return &Writer{doc: doc, props: props}
}

// Build writes the package to outputPath, creating parent directories.
func (w *Writer) Build(outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	return w.Write(f)
}

// Bytes returns the package as a byte slice.
func (w *Writer) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := w.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write writes the package to out.
func (w *Writer) Write(out io.Writer) error {
	zw := zip.NewWriter(out)

	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", packageRelsXML},
		{"docProps/core.xml", w.coreXML()},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/document.xml", w.documentXML()},
		{"word/styles.xml", w.stylesXML()},
		{"word/settings.xml", settingsXML},
		{"word/header1.xml", w.headerXML()},
		{"word/footer1.xml", w.footerXML()},
	}
	for _, p := range parts {
		fw, err := zw.Create(p.name)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", p.name, err)
		}
		if _, err := io.WriteString(fw, p.content); err != nil {
			return fmt.Errorf("failed to write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize docx: %w", err)
	}
	return nil
}

func (w *Writer) documentXML() string {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<w:document xmlns:w="` + nsW + `" xmlns:r="` + nsR + `"><w:body>`)
	for _, b := range w.doc.Blocks {
		w.writeBlock(&sb, b)
	}
	w.writeSection(&sb)
	sb.WriteString(`</w:body></w:document>`)
	return sb.String()
}

func (w *Writer) writeBlock(sb *strings.Builder, b document.Block) {
	sb.WriteString(`<w:p><w:pPr>`)
	switch b.Kind {
	case document.KindHeading:
		fmt.Fprintf(sb, `<w:pStyle w:val="Heading%d"/>`, clampLevel(b.Level))
	case document.KindTOCHeading:
		sb.WriteString(`<w:pStyle w:val="TOCHeading"/>`)
	}
	writeParagraphProps(sb, b.Style)
	sb.WriteString(`</w:pPr>`)

	if b.Kind == document.KindTOCPlaceholder {
		writeTOCField(sb, b.TOCLevels)
		sb.WriteString(`</w:p>`)
		return
	}
	for _, r := range b.Runs {
		w.writeRun(sb, r, b.Style)
	}
	sb.WriteString(`</w:p>`)
}

func writeParagraphProps(sb *strings.Builder, s document.Style) {
	line := s.LineSpacing
	if line <= 0 {
		line = rules.DefaultLineSpacing
	}
	fmt.Fprintf(sb, `<w:spacing w:before="0" w:after="%d" w:line="%d" w:lineRule="auto"/>`,
		round(s.SpaceAfter*twipsPerPoint), round(line*lineUnit))
	if s.FirstIndent > 0 {
		fmt.Fprintf(sb, `<w:ind w:firstLine="%d"/>`, round(s.FirstIndent*twipsPerInch))
	}
	fmt.Fprintf(sb, `<w:jc w:val="%s"/>`, justification(s.Alignment))
}

func (w *Writer) writeRun(sb *strings.Builder, r document.Run, s document.Style) {
	sb.WriteString(`<w:r>`)
	writeRunProps(sb, w.font(), s.FontSize, r.Bold || s.Bold)
	if r.Break {
		sb.WriteString(`<w:br/>`)
	} else {
		sb.WriteString(`<w:t xml:space="preserve">`)
		sb.WriteString(escapeXML(r.Text))
		sb.WriteString(`</w:t>`)
	}
	sb.WriteString(`</w:r>`)
}

func writeRunProps(sb *strings.Builder, font string, size float64, bold bool) {
	sb.WriteString(`<w:rPr>`)
	fmt.Fprintf(sb, `<w:rFonts w:ascii="%[1]s" w:hAnsi="%[1]s" w:cs="%[1]s"/>`, escapeXML(font))
	if bold {
		sb.WriteString(`<w:b/><w:bCs/>`)
	}
	if size <= 0 {
		size = rules.DefaultFontSize
	}
	// Sizes are in half-points.
	fmt.Fprintf(sb, `<w:sz w:val="%[1]d"/><w:szCs w:val="%[1]d"/>`, round(size*2))
	sb.WriteString(`</w:rPr>`)
}

// writeTOCField emits a complex TOC field. Word fills it in when fields are
// updated on open.
func writeTOCField(sb *strings.Builder, levels []int) {
	sb.WriteString(`<w:r><w:fldChar w:fldCharType="begin" w:dirty="true"/></w:r>`)
	sb.WriteString(`<w:r><w:instrText xml:space="preserve"> `)
	sb.WriteString(escapeXML(TOCInstruction(levels)))
	sb.WriteString(` </w:instrText></w:r>`)
	sb.WriteString(`<w:r><w:fldChar w:fldCharType="separate"/></w:r>`)
	sb.WriteString(`<w:r><w:t>Right-click to update the table of contents.</w:t></w:r>`)
	sb.WriteString(`<w:r><w:fldChar w:fldCharType="end"/></w:r>`)
}

// TOCInstruction returns the field code for levels. Outline levels are a
// contiguous range in Word, so the range spans the lowest to highest level.
func TOCInstruction(levels []int) string {
	lo, hi := 0, 0
	for _, l := range levels {
		if l < 1 || l > 4 {
			continue
		}
		if lo == 0 || l < lo {
			lo = l
		}
		if l > hi {
			hi = l
		}
	}
	if lo == 0 {
		lo, hi = 1, 3
	}
	return fmt.Sprintf(`TOC \o "%d-%d" \h \z \u`, lo, hi)
}

func (w *Writer) writeSection(sb *strings.Builder) {
	m := w.doc.Margins
	sb.WriteString(`<w:sectPr>`)
	sb.WriteString(`<w:headerReference w:type="default" r:id="rIdHeader1"/>`)
	sb.WriteString(`<w:footerReference w:type="default" r:id="rIdFooter1"/>`)
	sb.WriteString(`<w:pgSz w:w="12240" w:h="15840"/>`)
	fmt.Fprintf(sb, `<w:pgMar w:top="%d" w:right="%d" w:bottom="%d" w:left="%d" w:header="720" w:footer="720" w:gutter="0"/>`,
		margin(m.Top), margin(m.Right), margin(m.Bottom), margin(m.Left))
	sb.WriteString(`</w:sectPr>`)
}

func (w *Writer) headerXML() string {
	return w.headerFooterXML("hdr", w.doc.Header)
}

func (w *Writer) footerXML() string {
	return w.headerFooterXML("ftr", w.doc.Footer)
}

func (w *Writer) headerFooterXML(root string, hf document.HeaderFooter) string {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	fmt.Fprintf(&sb, `<w:%s xmlns:w="%s" xmlns:r="%s"><w:p><w:pPr><w:jc w:val="center"/></w:pPr>`, root, nsW, nsR)
	if hf.Text != "" {
		sb.WriteString(`<w:r>`)
		writeRunProps(&sb, w.font(), 10, false)
		sb.WriteString(`<w:t xml:space="preserve">`)
		sb.WriteString(escapeXML(hf.Text))
		sb.WriteString(`</w:t></w:r>`)
	}
	if hf.PageNumber {
		sb.WriteString(`<w:r><w:fldChar w:fldCharType="begin"/></w:r>`)
		sb.WriteString(`<w:r><w:instrText xml:space="preserve"> PAGE </w:instrText></w:r>`)
		sb.WriteString(`<w:r><w:fldChar w:fldCharType="separate"/></w:r>`)
		sb.WriteString(`<w:r><w:t>1</w:t></w:r>`)
		sb.WriteString(`<w:r><w:fldChar w:fldCharType="end"/></w:r>`)
	}
	fmt.Fprintf(&sb, `</w:p></w:%s>`, root)
	return sb.String()
}

func (w *Writer) stylesXML() string {
	font := escapeXML(w.font())
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<w:styles xmlns:w="` + nsW + `">`)
	fmt.Fprintf(&sb, `<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="%[1]s" w:hAnsi="%[1]s" w:cs="%[1]s"/><w:sz w:val="24"/></w:rPr></w:rPrDefault></w:docDefaults>`, font)
	sb.WriteString(`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:qFormat/></w:style>`)
	for level := 1; level <= 4; level++ {
		fmt.Fprintf(&sb, `<w:style w:type="paragraph" w:styleId="Heading%[1]d"><w:name w:val="heading %[1]d"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:qFormat/><w:pPr><w:keepNext/><w:outlineLvl w:val="%[2]d"/></w:pPr></w:style>`,
			level, level-1)
	}
	sb.WriteString(`<w:style w:type="paragraph" w:styleId="TOCHeading"><w:name w:val="TOC Heading"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:keepNext/></w:pPr></w:style>`)
	sb.WriteString(`</w:styles>`)
	return sb.String()
}

func (w *Writer) coreXML() string {
	created := w.props.CreatedAt.UTC().Format(time.RFC3339)
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">`)
	if w.props.Title != "" {
		sb.WriteString(`<dc:title>` + escapeXML(w.props.Title) + `</dc:title>`)
	}
	if w.props.Creator != "" {
		sb.WriteString(`<dc:creator>` + escapeXML(w.props.Creator) + `</dc:creator>`)
	}
	sb.WriteString(`<dcterms:created xsi:type="dcterms:W3CDTF">` + created + `</dcterms:created>`)
	sb.WriteString(`</cp:coreProperties>`)
	return sb.String()
}

func (w *Writer) font() string {
	if w.doc.FontFamily != "" {
		return w.doc.FontFamily
	}
	return rules.DefaultFontFamily
}

func firstHeading(doc *document.Document) string {
	for _, b := range doc.Blocks {
		if b.Kind == document.KindHeading {
			return strings.TrimSpace(b.Text())
		}
	}
	return ""
}

func justification(a rules.Alignment) string {
	switch a {
	case rules.AlignCenter:
		return "center"
	case rules.AlignRight:
		return "right"
	case rules.AlignJustify:
		return "both"
	default:
		return "left"
	}
}

func margin(in float64) int {
	if in < 0 || math.IsNaN(in) || math.IsInf(in, 0) {
		in = rules.DefaultMargin
	}
	return round(in * twipsPerInch)
}

func clampLevel(l int) int {
	return min(max(l, 1), 4)
}

func round(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Round(v))
}

func escapeXML(s string) string {
	var buf strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '"':
			buf.WriteString("&quot;")
		case '\'':
			buf.WriteString("&apos;")
		default:
			// Control characters other than tab, LF and CR are illegal in XML 1.0.
			if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
				continue
			}
			buf.WriteRune(r)
		}
	}
	return buf.String()
}
