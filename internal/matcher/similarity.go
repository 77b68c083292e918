package matcher

import (
	"strings"
	"unicode"
)

// NormalizeTitle lowercases a market title and strips punctuation so that
// "Will BTC close above $100k?" and "will btc close above 100k" compare
// equal. Digits survive normalization; they are usually the strongest signal
// in a title.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			// Punctuation becomes a separator, not nothing: "btc/usd"
			// should yield two words.
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// TitleSimilarity is the Jaccard similarity of the two titles' word sets
// after normalization.
func TitleSimilarity(a, b string) float64 {
	wordsA := wordSet(NormalizeTitle(a))
	wordsB := wordSet(NormalizeTitle(b))
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
