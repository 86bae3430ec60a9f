package tracker

import (
	"strings"
)

var (
	inflectionSuffixes = []string{"s", "ed", "ing", "y"}
	contextWords       = []string{"slang", "means", "as in"}
)

// Expand turns a tracked phrase into search queries, in a fixed order:
// the phrase, its hashtag, hyphen/space variants, naive inflections, and a
// context-qualified query. Every phrase is quoted for exact matching.
func Expand(term string) []string {
	base := NormalizeTerm(term)
	if base == "" {
		return nil
	}

	queries := make([]string, 0, 5+len(inflectionSuffixes))
	queries = append(queries, quote(base))
	queries = append(queries, quote(Hashtag(base)))

	if strings.Contains(base, " ") {
		queries = append(queries, quote(strings.ReplaceAll(base, " ", "-")))
	}
	if strings.Contains(base, "-") {
		queries = append(queries, quote(strings.ReplaceAll(base, "-", " ")))
	}

	for _, suffix := range inflectionSuffixes {
		queries = append(queries, quote(base+suffix))
	}

	context := make([]string, 0, len(contextWords))
	for _, word := range contextWords {
		context = append(context, quote(word))
	}
	queries = append(queries, quote(base)+" AND ("+strings.Join(context, " OR ")+")")

	return queries
}

// Hashtag is the phrase with whitespace removed and a leading '#'.
func Hashtag(term string) string {
	return "#" + strings.Join(strings.Fields(strings.ToLower(term)), "")
}

// Unquote strips the exact-phrase quotes Expand adds.
func Unquote(query string) string {
	return strings.Trim(strings.TrimSpace(query), `"`)
}

func quote(s string) string {
	return `"` + s + `"`
}
