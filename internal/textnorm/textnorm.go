// Package textnorm canonicalizes listing and query text into comparable forms.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinStemLength is the shortest stem Stem is allowed to leave behind.
const MinStemLength = 4

// stemSuffixes are tried longest first; only one is stripped.
var stemSuffixes = []string{"ioni", "ione", "ini", "ine", "i", "e", "a", "o", "s"}

var quoteReplacer = strings.NewReplacer(
	"’", "'", "‘", "'", "`", "'", "´", "'", "ʼ", "'",
	"“", `"`, "”", `"`, "«", `"`, "»", `"`,
)

// Normalize lowercases, unifies quote variants and squeezes whitespace.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = quoteReplacer.Replace(strings.ToLower(s))
	return strings.Join(strings.Fields(s), " ")
}

// Tokenize splits normalized text on every rune that is not a letter or digit.
func Tokenize(s string) []string {
	n := Normalize(s)
	if n == "" {
		return nil
	}
	return strings.FieldsFunc(n, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// TokenizeStemmed is Tokenize followed by Stem on every token.
func TokenizeStemmed(s string) []string {
	tokens := Tokenize(s)
	for i, t := range tokens {
		tokens[i] = Stem(t)
	}
	return tokens
}

// Stem strips one known inflectional ending when the remaining stem keeps
// at least MinStemLength runes.
func Stem(token string) string {
	for _, suffix := range stemSuffixes {
		if !strings.HasSuffix(token, suffix) {
			continue
		}
		stem := strings.TrimSuffix(token, suffix)
		if utf8.RuneCountInString(stem) >= MinStemLength {
			return stem
		}
		return token
	}
	return token
}

// Phrase returns the canonical phrase form: tokens joined by a single space.
func Phrase(s string) string {
	return strings.Join(Tokenize(s), " ")
}

// ContainsPhrase reports whether phrase (canonical form) occurs in tokens as
// whole consecutive tokens.
func ContainsPhrase(tokens []string, phrase string) bool {
	if phrase == "" || len(tokens) == 0 {
		return false
	}
	want := strings.Split(phrase, " ")
	if len(want) > len(tokens) {
		return false
	}
outer:
	for i := 0; i+len(want) <= len(tokens); i++ {
		for j, w := range want {
			if tokens[i+j] != w {
				continue outer
			}
		}
		return true
	}
	return false
}

// Unique drops duplicates while keeping first-seen order.
func Unique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
