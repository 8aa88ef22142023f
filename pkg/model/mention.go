package model

import (
	"regexp"
	"strings"
)

// mentionRe matches an @handle token: 1-40 chars of letters, digits,
// dot, dash or underscore.
var mentionRe = regexp.MustCompile(`@([A-Za-z0-9_.\-]{1,40})`)

// Mentions returns every @handle token in text, without the @.
func Mentions(text string) []string {
	var out []string
	for _, m := range mentionRe.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

// HasMention reports whether text mentions handle (case-insensitive).
func HasMention(text, handle string) bool {
	for _, h := range Mentions(text) {
		if strings.EqualFold(h, handle) {
			return true
		}
	}
	return false
}

// TrailingMention returns the partial handle the user is currently
// typing at the end of text, for autocomplete. ok is false when the
// text does not end in an @token.
func TrailingMention(text string) (partial string, start int, ok bool) {
	loc := mentionRe.FindAllStringSubmatchIndex(text, -1)
	if len(loc) == 0 {
		return "", 0, false
	}
	last := loc[len(loc)-1]
	if last[1] != len(text) {
		return "", 0, false
	}
	return text[last[2]:last[3]], last[0], true
}
