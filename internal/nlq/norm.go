// Package nlq turns free-form chat text into ledger queries. The pipeline
// is rule-based end to end: router (text -> intent), resolver (aliases),
// executor (intent -> localized answer). No generative model is involved.
package nlq

import (
	"regexp"
	"strings"
)

var (
	nonWordRe    = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	multiSpaceRe = regexp.MustCompile(`\s+`)
)

// Norm flattens text for matching: lowercase, punctuation to spaces,
// collapsed whitespace.
func Norm(s string) string {
	t := strings.ToLower(strings.TrimSpace(s))
	t = strings.ReplaceAll(t, "_", " ")
	t = nonWordRe.ReplaceAllString(t, " ")
	t = multiSpaceRe.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}
