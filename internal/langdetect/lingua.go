// Package langdetect tags sightings with the language of their title and
// snippet.
package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

const minLetters = 12

// Languages sightings are expected to arrive in.
var candidateLanguages = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.Portuguese,
	lingua.French,
	lingua.German,
	lingua.Italian,
	lingua.Dutch,
	lingua.Tagalog,
	lingua.Indonesian,
}

var detector = sync.OnceValue(func() lingua.LanguageDetector {
	return lingua.NewLanguageDetectorBuilder().
		FromLanguages(candidateLanguages...).
		WithMinimumRelativeDistance(0.1).
		Build()
})

// DetectISO6391 returns a two-letter code, or "" when the text is too short
// or no candidate language is a confident fit.
func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if !hasLetters(sample, minLetters) {
		return ""
	}

	language, exists := detector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

// hasLetters reports whether s has at least n letters. Hashtags, handles and
// URLs alone are too short to classify.
func hasLetters(s string, n int) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			n--
			if n <= 0 {
				return true
			}
		}
	}
	return false
}
