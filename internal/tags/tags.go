// Package tags parses free-text tag input.
package tags

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxTagLength bounds a single tag name, in characters.
const MaxTagLength = 100

// ParseTags splits raw into distinct, sorted tag names. Input containing a
// comma is split on commas; otherwise on whitespace. Double quotes group
// words into one tag.
func ParseTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	words := splitQuoted(raw)
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		w = truncate(w, MaxTagLength)
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// truncate cuts s to at most n characters without splitting a rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func splitQuoted(raw string) []string {
	var (
		words   []string
		current strings.Builder
		quoted  bool
	)
	commaMode := strings.Contains(raw, ",")

	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}

	for _, r := range raw {
		switch {
		case r == '"':
			if quoted {
				flush()
			}
			quoted = !quoted
		case quoted:
			current.WriteRune(r)
		case commaMode && r == ',':
			flush()
		case !commaMode && isSpace(r):
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return words
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// LastToken returns the final whitespace-delimited token of raw, or "".
func LastToken(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
