package classifier

import (
	"regexp"
	"sort"
)

var listMarker = regexp.MustCompile(`(?m)^\s*(\d+\.|[*+-])\s`)

type bodyRule struct {
	name    string
	phrases []string
}

// ChunkTyper assigns a chunk_type to ingested knowledge.
type ChunkTyper struct {
	titles   *KeywordClassifier
	body     []bodyRule
	listType string
	fallback string
}

// ChunkTyper builds the chunk typer from t.
func (t *Taxonomy) ChunkTyper() *ChunkTyper {
	titleKeywords := make(map[string][]string, len(t.ChunkTypes.Categories))
	var body []bodyRule
	for name, rule := range t.ChunkTypes.Categories {
		titleKeywords[name] = rule.TitleKeywords
		if phrases := normalizePhrases(rule.BodyPhrases); len(phrases) > 0 {
			body = append(body, bodyRule{name: name, phrases: phrases})
		}
	}
	sort.Slice(body, func(i, j int) bool { return body[i].name < body[j].name })

	return &ChunkTyper{
		titles:   NewKeywordClassifier(titleKeywords),
		body:     body,
		listType: t.ChunkTypes.ListType,
		fallback: t.ChunkTypes.Fallback,
	}
}

// Type classifies a chunk by its section title, then body phrases, then list structure.
func (c *ChunkTyper) Type(title, body string) string {
	if intent := c.titles.Classify(title); intent.Category != General {
		return intent.Category
	}
	for _, rule := range c.body {
		if containsAny(body, rule.phrases) {
			return rule.name
		}
	}
	if c.listType != "" && listMarker.MatchString(body) {
		return c.listType
	}
	return c.fallback
}

// Fallback returns the type used when nothing matches.
func (c *ChunkTyper) Fallback() string {
	return c.fallback
}
