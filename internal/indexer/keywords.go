package indexer

import (
	"regexp"
	"sort"
	"strings"
)

const maxKeywords = 10

var wordPattern = regexp.MustCompile(`\b[a-zA-Z]{3,}\b`)

var keywordStopwords = func() map[string]struct{} {
	words := strings.Fields(`
		the and for are but not you all any can had her was one our out has have him his how its may new
		now own see she than that their them then there these they this those use using very way were what
		when where which while who why will with would your from into also been being each more most much
		must only other some such just like make does did get got should could about after before over under
		again once here both few same too off because until between through during above below down always
		never`)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}()

// keywordExtractor picks the salient words of a chunk. Allowlisted terms come first, then the
// most frequent remaining words, each group ordered by frequency and then alphabetically.
type keywordExtractor struct {
	allow map[string]struct{}
}

func newKeywordExtractor(allowlist []string) *keywordExtractor {
	allow := make(map[string]struct{}, len(allowlist))
	for _, w := range allowlist {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			allow[w] = struct{}{}
		}
	}
	return &keywordExtractor{allow: allow}
}

// Extract returns at most maxKeywords keywords of text.
func (k *keywordExtractor) Extract(text string) []string {
	counts := make(map[string]int)
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if _, stop := keywordStopwords[w]; stop {
			continue
		}
		counts[w]++
	}

	var allowed, other []string
	for w := range counts {
		if _, ok := k.allow[w]; ok {
			allowed = append(allowed, w)
		} else {
			other = append(other, w)
		}
	}
	byFrequency := func(words []string) {
		sort.Slice(words, func(i, j int) bool {
			if counts[words[i]] != counts[words[j]] {
				return counts[words[i]] > counts[words[j]]
			}
			return words[i] < words[j]
		})
	}
	byFrequency(allowed)
	byFrequency(other)

	out := append(allowed, other...)
	if len(out) > maxKeywords {
		out = out[:maxKeywords]
	}
	return out
}
