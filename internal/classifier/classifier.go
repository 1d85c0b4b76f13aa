// Package classifier scores text against keyword taxonomies.
package classifier

import (
	"sort"
	"strings"
)

// General is the category returned when nothing matches.
const General = "general"

// Intent is a classification result.
type Intent struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Classifier assigns a category to text. Retrieval depends only on this contract.
type Classifier interface {
	Classify(text string) Intent
}

type category struct {
	name     string
	keywords []string
}

// KeywordClassifier scores each category by the share of its keywords present in the text.
type KeywordClassifier struct {
	categories []category
}

var _ Classifier = (*KeywordClassifier)(nil)

// NewKeywordClassifier builds a classifier from category -> keyword phrases.
// Keywords are lowercased and de-duplicated; empty categories are ignored.
func NewKeywordClassifier(categories map[string][]string) *KeywordClassifier {
	c := &KeywordClassifier{}
	for name, keywords := range categories {
		set := normalizePhrases(keywords)
		if len(set) == 0 {
			continue
		}
		c.categories = append(c.categories, category{name: name, keywords: set})
	}
	sort.Slice(c.categories, func(i, j int) bool {
		return c.categories[i].name < c.categories[j].name
	})
	return c
}

// Classify returns the category with the highest nonzero confidence, or (General, 0).
// Ties go to the alphabetically first category.
func (c *KeywordClassifier) Classify(text string) Intent {
	lower := strings.ToLower(text)
	best := Intent{Category: General}
	for _, cat := range c.categories {
		hits := 0
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		conf := float64(hits) / float64(len(cat.keywords))
		if conf > best.Confidence {
			best = Intent{Category: cat.name, Confidence: conf}
		}
	}
	return best
}

// Matches reports whether any keyword of any category occurs in text.
func (c *KeywordClassifier) Matches(text string) bool {
	lower := strings.ToLower(text)
	for _, cat := range c.categories {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// Categories returns the category names in order.
func (c *KeywordClassifier) Categories() []string {
	names := make([]string, len(c.categories))
	for i, cat := range c.categories {
		names[i] = cat.name
	}
	return names
}

func normalizePhrases(phrases []string) []string {
	seen := make(map[string]bool, len(phrases))
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func containsAny(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
