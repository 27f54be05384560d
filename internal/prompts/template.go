package prompts

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"slices"
)

var (
	actionPattern = regexp.MustCompile(`\{\{.*?\}\}`)
	fieldPattern  = regexp.MustCompile(`(?:^|[\s(])\.([A-Za-z_][A-Za-z0-9_.]*)`)
)

// ExtractVariables returns the data fields a template references, sorted and
// deduplicated. Fields used inside control actions count too, so
// "{{if .TOC.Enabled}}{{.Title}}" yields ["TOC.Enabled", "Title"].
func ExtractVariables(text string) []string {
	var vars []string
	for _, action := range actionPattern.FindAllString(text, -1) {
		for _, m := range fieldPattern.FindAllStringSubmatch(action[2:len(action)-2], -1) {
			vars = append(vars, m[1])
		}
	}
	slices.Sort(vars)
	return slices.Compact(vars)
}

// HashText returns a SHA256 hash of the text for change detection.
func HashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
