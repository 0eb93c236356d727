package text

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinKeywordLength is the shortest word-character run counted as a keyword.
const MinKeywordLength = 3

var (
	annotationRegex     = regexp.MustCompile(`\[.*?\]`)
	removeEmojiRegex    = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\p{P}\p{Z}\p{Sm}\p{Sc}\s]`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
	markdownMarkers     = strings.NewReplacer("**", "", "__", "", "~~", "", "`", "", "*", "", "#", "")
)

// StripAnnotations removes every bracketed span such as "[laughs]" and trims
// the result. Spans do not cross newlines.
func StripAnnotations(s string) string {
	return strings.TrimSpace(annotationRegex.ReplaceAllString(s, ""))
}

// IsWordRune reports whether r belongs to a word: letters, digits and '_'.
func IsWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// Keywords returns the set of lowercase word-character runs of at least
// MinKeywordLength runes.
func Keywords(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return !IsWordRune(r) }) {
		if utf8.RuneCountInString(w) >= MinKeywordLength {
			out[w] = struct{}{}
		}
	}
	return out
}

// NormalizeForSpeech drops markdown markers and emoji and collapses whitespace
// so a synthesizer does not read them aloud.
func NormalizeForSpeech(s string) string {
	s = markdownMarkers.Replace(s)
	s = removeEmojiRegex.ReplaceAllString(s, "")
	s = multipleSpacesRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
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
