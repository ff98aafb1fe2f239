package canon

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText returns s in Unicode NFC, lower-cased and trimmed.
func NormalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(s)))
}

// Tokens splits text into lower-case word tokens. Hyphens and apostrophes
// stay inside a word so "self-determined" and "don't" remain single tokens.
func Tokens(s string) []string {
	return strings.FieldsFunc(NormalizeText(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '\''
	})
}

// ContainsPhrase reports whether phrase occurs in tokens as a contiguous
// word sequence.
func ContainsPhrase(tokens []string, phrase string) bool {
	want := Tokens(phrase)
	if len(want) == 0 || len(want) > len(tokens) {
		return false
	}
	for i := 0; i+len(want) <= len(tokens); i++ {
		match := true
		for j, w := range want {
			if tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// MatchesWord reports whether token is word or a simple inflection of it
// ("preserve" matches "preserves", "preserved" and "preserving").
func MatchesWord(token, word string) bool {
	if token == word {
		return true
	}
	stem := strings.TrimSuffix(word, "e")
	for _, suffix := range []string{"s", "es", "d", "ed", "ing"} {
		if token == word+suffix || token == stem+suffix {
			return true
		}
	}
	return false
}

func containsWord(tokens []string, word string) bool {
	for _, t := range tokens {
		if MatchesWord(t, word) {
			return true
		}
	}
	return false
}
