package tag

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"unicode"
)

// tokenRe matches word tokens: ASCII letters, Latin-1 accented letters,
// digits and hyphens.
var tokenRe = regexp.MustCompile(`[a-zA-ZÀ-ÿ0-9-]+`)

// stopwords are Dutch and English function words excluded from keyword
// candidates. Overlapping words appear once.
var stopwords = map[string]struct{}{
	// Dutch
	"de": {}, "het": {}, "een": {}, "en": {}, "of": {}, "dat": {}, "die": {},
	"voor": {}, "met": {}, "zonder": {}, "op": {}, "tot": {}, "van": {},
	"in": {}, "uit": {}, "bij": {}, "aan": {}, "als": {}, "te": {},
	"door": {}, "per": {}, "naar": {}, "om": {}, "is": {}, "zijn": {},
	"wordt": {}, "worden": {}, "kan": {}, "kunnen": {}, "moet": {},
	"moeten": {}, "mag": {}, "mogen": {}, "niet": {}, "wel": {},
	// English
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "for": {}, "to": {}, "on": {},
	"at": {}, "by": {}, "from": {}, "with": {}, "without": {}, "are": {},
	"be": {}, "been": {}, "being": {}, "this": {}, "that": {}, "these": {},
	"those": {}, "as": {}, "it": {}, "its": {}, "into": {}, "over": {},
}

// StatCandidates extracts frequency-weighted n-gram keyword candidates from
// text. Tokens are lowercased; stopwords and tokens shorter than three
// characters are dropped. Unigrams weigh 1.0 per occurrence, bigrams 1.5,
// trigrams 2.0. Returns at most 2n candidates ordered by descending weight;
// equal weights keep first-seen order, so the ranking is deterministic.
func StatCandidates(text string, n int) []string {
	if n <= 0 {
		return nil
	}

	raw := tokenRe.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if _, stop := stopwords[t]; stop {
			continue
		}
		if len([]rune(t)) <= 2 {
			continue
		}
		tokens = append(tokens, t)
	}

	weights := make(map[string]float64, len(tokens))
	order := make([]string, 0, len(tokens))
	add := func(term string, w float64) {
		if _, seen := weights[term]; !seen {
			order = append(order, term)
		}
		weights[term] += w
	}
	for _, t := range tokens {
		add(t, 1.0)
	}
	for i := 0; i+1 < len(tokens); i++ {
		add(tokens[i]+" "+tokens[i+1], 1.5)
	}
	for i := 0; i+2 < len(tokens); i++ {
		add(tokens[i]+" "+tokens[i+1]+" "+tokens[i+2], 2.0)
	}

	slices.SortStableFunc(order, func(a, b string) int {
		return cmp.Compare(weights[b], weights[a])
	})
	if len(order) > 2*n {
		order = order[:2*n]
	}
	return order
}

// Normalize canonicalizes a tag candidate: lowercase, non-word characters
// stripped (letters, digits, underscore and hyphen survive), whitespace runs
// collapsed to single spaces, outer whitespace trimmed.
func Normalize(s string) string {
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
