// Package rules defines the typographic formatting rules returned by the AI
// service and the defensive parsers that turn them into concrete values.
//
// The AI response is not trusted: every field may be missing, mistyped, or
// garbled. Decoding never fails on a field-level defect and every accessor
// resolves to a documented default.
package rules

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Default values applied when a rule is missing or unparseable.
const (
	DefaultFontFamily  = "Times New Roman"
	DefaultFontSize    = 12.0
	DefaultLineSpacing = 1.5
	DefaultMargin      = 1.0
	DefaultIndent      = 0.5
)

// defaultHeadingSizes are used when the AI omits a heading font size.
var defaultHeadingSizes = map[int]float64{1: 24, 2: 18, 3: 14, 4: 12}

// Value is a lenient scalar. It decodes JSON strings, numbers, and booleans
// into their textual form; null, objects, and arrays decode to "".
type Value string

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*v = ""
			return nil
		}
		*v = Value(s)
	case '{', '[':
		*v = ""
	default:
		*v = Value(b)
	}
	return nil
}

// String returns the trimmed textual value.
func (v Value) String() string {
	return strings.TrimSpace(string(v))
}

// HeadingStyle describes the typography of one heading level.
type HeadingStyle struct {
	FontSize   Value `json:"fontSize"`
	FontWeight Value `json:"fontWeight"`
	Alignment  Value `json:"alignment"`
}

// HeadingStyles maps "h1".."h4" to a heading style.
type HeadingStyles map[string]HeadingStyle

// UnmarshalJSON tolerates a non-object value and skips malformed entries.
// An object with no usable entries decodes to nil.
func (h *HeadingStyles) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		*h = nil
		return nil
	}
	out := make(HeadingStyles, len(raw))
	for key, msg := range raw {
		var hs HeadingStyle
		if err := json.Unmarshal(msg, &hs); err != nil {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(key))] = hs
	}
	if len(out) == 0 {
		out = nil
	}
	*h = out
	return nil
}

// Margins holds page margins as string-encoded inch values.
type Margins struct {
	Top    Value `json:"top"`
	Right  Value `json:"right"`
	Bottom Value `json:"bottom"`
	Left   Value `json:"left"`
}

// UnmarshalJSON accepts either an object or a single scalar applied to every side.
func (m *Margins) UnmarshalJSON(b []byte) error {
	type plain Margins
	var p plain
	if err := json.Unmarshal(b, &p); err == nil {
		*m = Margins(p)
		return nil
	}
	var all Value
	_ = all.UnmarshalJSON(b)
	*m = Margins{Top: all, Right: all, Bottom: all, Left: all}
	return nil
}

// Rules is the AI-produced formatting rule set.
type Rules struct {
	FontFamily       Value         `json:"fontFamily"`
	FontSize         Value         `json:"fontSize"`
	HeadingStyles    HeadingStyles `json:"headingStyles,omitempty"`
	ParagraphSpacing Value         `json:"paragraphSpacing"`
	LineSpacing      Value         `json:"lineSpacing"`
	Alignment        Value         `json:"alignment"`
	Margins          Margins       `json:"margins"`
	Indentation      Value         `json:"indentation"`
	CitationStyle    Value         `json:"citationStyle,omitempty"`
}

// UnmarshalJSON decodes an object; anything else yields zero Rules.
func (r *Rules) UnmarshalJSON(b []byte) error {
	type plain Rules
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		*r = Rules{}
		return nil
	}
	*r = Rules(p)
	return nil
}

// PageMargins are resolved margins in inches.
type PageMargins struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// ResolvedHeading is a heading style with every field resolved.
type ResolvedHeading struct {
	FontSize  float64
	Bold      bool
	Alignment Alignment
}

// Font returns the font family, or the default when empty.
func (r Rules) Font() string {
	if f := r.FontFamily.String(); f != "" {
		return f
	}
	return DefaultFontFamily
}

// BaseFontSize returns the body font size in points.
func (r Rules) BaseFontSize() float64 {
	return ParseFontSize(r.FontSize.String())
}

// BodyAlignment returns the body paragraph alignment.
func (r Rules) BodyAlignment() Alignment {
	return ParseAlignment(r.Alignment.String())
}

// Spacing returns the line spacing multiple.
func (r Rules) Spacing() float64 {
	return ParseLineSpacing(r.LineSpacing.String())
}

// ParagraphGap returns the space after paragraphs in points. Zero when unset.
func (r Rules) ParagraphGap() float64 {
	return ParsePoints(r.ParagraphSpacing.String(), 0)
}

// Indent returns the first-line indent in inches.
func (r Rules) Indent() float64 {
	return ParseInches(r.Indentation.String(), DefaultIndent)
}

// PageMargins resolves each side independently.
func (r Rules) PageMargins() PageMargins {
	return PageMargins{
		Top:    ParseInches(r.Margins.Top.String(), DefaultMargin),
		Right:  ParseInches(r.Margins.Right.String(), DefaultMargin),
		Bottom: ParseInches(r.Margins.Bottom.String(), DefaultMargin),
		Left:   ParseInches(r.Margins.Left.String(), DefaultMargin),
	}
}

// Heading resolves the style for heading level 1..4. Levels outside the range
// are clamped.
func (r Rules) Heading(level int) ResolvedHeading {
	if level < 1 {
		level = 1
	}
	if level > 4 {
		level = 4
	}

	hs := r.HeadingStyles[headingKey(level)]
	out := ResolvedHeading{
		FontSize:  defaultHeadingSizes[level],
		Bold:      true,
		Alignment: AlignLeft,
	}
	if s := hs.FontSize.String(); s != "" {
		out.FontSize = ParseFontSize(s)
	}
	if w := hs.FontWeight.String(); w != "" {
		out.Bold = ParseFontWeight(w)
	}
	if a := hs.Alignment.String(); a != "" {
		out.Alignment = ParseAlignment(a)
	}
	return out
}

func headingKey(level int) string {
	return "h" + string(rune('0'+level))
}
