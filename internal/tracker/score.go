package tracker

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	pointsExactMatch   = 50
	pointsHashtagMatch = 40
	pointsRawSubstring = 30
	pointsFuzzyWord    = 15
	pointsContext      = 10
	pointsSourceNews   = 10
	pointsSourceForum  = 5
	pointsFreshWeek    = 10
	pointsFreshMonth   = 5
	penaltyCollision   = 25

	minFuzzyWordLength = 3
	maxScore           = 100
)

var (
	contextPattern   = regexp.MustCompile(`(?i)\b(slang|means|as in|definition|refers to)\b`)
	collisionPattern = regexp.MustCompile(`(?i)\b(dictionary|definition|brand|company|trademark)\b`)
	newsClassPattern = regexp.MustCompile(`(?i)news|blog|article`)
	forumPattern     = regexp.MustCompile(`(?i)forum|reddit|discussion`)
)

// Score rates how strongly a hit evidences the term, in [0,100]. now anchors
// the freshness bonus so the result depends only on the inputs.
func Score(hit RawHit, term string, now time.Time) int {
	text := strings.ToLower(hit.Title + " " + hit.Snippet)
	base := NormalizeTerm(term)

	score := matchQuality(text, base)

	if contextPattern.MatchString(text) {
		score += pointsContext
	}

	class := hit.Source + " " + hit.MatchType
	switch {
	case newsClassPattern.MatchString(class):
		score += pointsSourceNews
	case forumPattern.MatchString(class):
		score += pointsSourceForum
	}

	if hit.PublishedAt != nil {
		age := now.Sub(*hit.PublishedAt)
		switch {
		case age < 0:
			// Future dates come from skewed or bogus provider metadata.
		case age <= 7*24*time.Hour:
			score += pointsFreshWeek
		case age <= 30*24*time.Hour:
			score += pointsFreshMonth
		}
	}

	if collisionPattern.MatchString(text) {
		score -= penaltyCollision
	}

	return clamp(score, 0, maxScore)
}

func matchQuality(text, term string) int {
	if term == "" {
		return 0
	}
	switch {
	case containsPhrase(text, term):
		return pointsExactMatch
	case strings.Contains(text, Hashtag(term)):
		return pointsHashtagMatch
	case strings.Contains(text, term):
		return pointsRawSubstring
	case fuzzyWordMatch(text, term):
		return pointsFuzzyWord
	default:
		return 0
	}
}

// containsPhrase reports whether term occurs in text bounded by non-word
// characters on both sides.
func containsPhrase(text, term string) bool {
	for offset := 0; offset < len(text); {
		idx := strings.Index(text[offset:], term)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(term)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if !isWordRune(before) && !isWordRune(after) {
			return true
		}
		offset = start + 1
	}
	return false
}

// isWordRune is false for utf8.RuneError, which the decoders return at the
// ends of text.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// fuzzyWordMatch reports whether any word of the term (three letters or more)
// appears in text within one edit.
func fuzzyWordMatch(text, term string) bool {
	words := tokenize(text)
	if len(words) == 0 {
		return false
	}
	for _, want := range strings.Fields(term) {
		if len([]rune(want)) < minFuzzyWordLength {
			continue
		}
		for _, got := range words {
			if withinOneEdit(want, got) {
				return true
			}
		}
	}
	return false
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '\''
	})
}

// withinOneEdit reports a Levenshtein distance of at most one.
func withinOneEdit(a, b string) bool {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(rb)-len(ra) > 1 {
		return false
	}

	i, j, edits := 0, 0, 0
	for i < len(ra) && j < len(rb) {
		if ra[i] == rb[j] {
			i++
			j++
			continue
		}
		edits++
		if edits > 1 {
			return false
		}
		if len(ra) == len(rb) {
			i++
		}
		j++
	}
	return edits+(len(rb)-j)+(len(ra)-i) <= 1
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
