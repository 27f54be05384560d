package rules

import (
	"math"
	"strconv"
	"strings"
)

// Alignment is a paragraph alignment.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
	AlignJustify
)

// String returns the lower-case alignment name.
func (a Alignment) String() string {
	switch a {
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	case AlignJustify:
		return "justify"
	default:
		return "left"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Alignment) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// ParseAlignment matches s case-insensitively against center, right and
// justify. Anything else, including the empty string, is left.
func ParseAlignment(s string) Alignment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "center":
		return AlignCenter
	case "right":
		return AlignRight
	case "justify":
		return AlignJustify
	default:
		return AlignLeft
	}
}

// ParseFontSize strips every character that is not a digit or a dot and
// parses the remainder as points. Unparseable or non-positive input yields
// DefaultFontSize, so "12", "12pt" and "abc" all resolve to a usable size.
func ParseFontSize(s string) float64 {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil || !finitePositive(v) {
		return DefaultFontSize
	}
	return v
}

// ParseLineSpacing parses the leading number of s as a line-spacing multiple.
// Non-numeric or non-positive input yields DefaultLineSpacing.
func ParseLineSpacing(s string) float64 {
	v, _, ok := leadingFloat(s)
	if !ok || !finitePositive(v) {
		return DefaultLineSpacing
	}
	return v
}

// ParseInches parses a length in inches. A trailing unit of cm, mm or pt is
// converted; "in", "inch" and '"' are accepted as-is. Unparseable or negative
// input yields def.
func ParseInches(s string, def float64) float64 {
	v, unit, ok := leadingFloat(s)
	if !ok || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	switch unit {
	case "cm":
		return v / 2.54
	case "mm":
		return v / 25.4
	case "pt":
		return v / 72
	default:
		return v
	}
}

// ParsePoints parses a length in points. Inch, cm and mm units are converted.
func ParsePoints(s string, def float64) float64 {
	v, unit, ok := leadingFloat(s)
	if !ok || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	switch unit {
	case "in", "inch", "inches", `"`:
		return v * 72
	case "cm":
		return v / 2.54 * 72
	case "mm":
		return v / 25.4 * 72
	default:
		return v
	}
}

// ParseFontWeight reports whether a CSS-like weight is bold.
func ParseFontWeight(s string) bool {
	w := strings.ToLower(strings.TrimSpace(s))
	switch w {
	case "bold", "bolder":
		return true
	}
	if n, err := strconv.Atoi(w); err == nil {
		return n >= 600
	}
	return false
}

// leadingFloat parses the numeric prefix of s, like JavaScript parseFloat,
// and returns the lower-cased unit that follows it.
func leadingFloat(s string) (float64, string, bool) {
	s = strings.TrimSpace(s)
	end := 0
	seenDigit, seenDot := false, false
scan:
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
		case r == '.' && !seenDot:
			seenDot = true
		case (r == '-' || r == '+') && i == 0:
		default:
			break scan
		}
		end = i + 1
	}
	if !seenDigit {
		return 0, "", false
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil {
		return 0, "", false
	}
	return v, strings.ToLower(strings.TrimSpace(s[end:])), true
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
