package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
)

// KeyInput holds the request fields that determine a formatting result.
// Field order is part of the key format.
type KeyInput struct {
	DocumentContent        string `json:"documentContent"`
	FormattingInstructions string `json:"formattingInstructions"`
	RequirementContent     string `json:"requirementContent"`
	TOCEnabled             bool   `json:"tocEnabled"`
	TOCPosition            string `json:"tocPosition"`
	TOCHeadingLevels       []int  `json:"tocHeadingLevels"`
}

// Key returns the SHA-256 hex digest of the canonical JSON encoding of in.
// Heading levels are a set: order and duplicates do not affect the key.
func Key(in KeyInput) string {
	levels := slices.Clone(in.TOCHeadingLevels)
	slices.Sort(levels)
	levels = slices.Compact(levels)
	if levels == nil {
		levels = []int{}
	}
	in.TOCHeadingLevels = levels

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// KeyInput contains only strings, bools and ints; encoding cannot fail.
	_ = enc.Encode(in)

	sum := sha256.Sum256(bytes.TrimSpace(buf.Bytes()))
	return hex.EncodeToString(sum[:])
}
