package rag

import (
	"strings"
	"unicode"

	"semantic-memory/internal/classifier"
	"semantic-memory/internal/config"
	"semantic-memory/internal/vectorstore"
)

// decisionGuide is the chunk type that earns a smaller boost for any confident intent.
const decisionGuide = "decision_guide"

var lexicalStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "was": {}, "were": {}, "with": {},
}

// Rescorer adjusts cosine similarity of knowledge chunks using metadata signals.
type Rescorer struct {
	classifier classifier.Classifier
	boosts     config.Boosts
}

// NewRescorer creates a Rescorer. A nil classifier disables the category boosts.
func NewRescorer(c classifier.Classifier, boosts config.Boosts) *Rescorer {
	return &Rescorer{classifier: c, boosts: boosts}
}

// queryScorer holds what a single query contributes to rescoring.
type queryScorer struct {
	boosts config.Boosts
	intent classifier.Intent
	tokens map[string]struct{}
}

// For returns the rescoring function for query. The result depends only on the query and the
// record it is applied to.
func (r *Rescorer) For(query string) func(vectorstore.Record, float64) float64 {
	qs := r.scorer(query)
	return qs.score
}

// Intent classifies query with the configured classifier.
func (r *Rescorer) Intent(query string) classifier.Intent {
	if r.classifier == nil {
		return classifier.Intent{Category: classifier.General}
	}
	return r.classifier.Classify(query)
}

func (r *Rescorer) scorer(query string) *queryScorer {
	tokens := make(map[string]struct{})
	for _, tok := range filterStopwords(tokenize(query)) {
		tokens[tok] = struct{}{}
	}
	return &queryScorer{boosts: r.boosts, intent: r.Intent(query), tokens: tokens}
}

func (q *queryScorer) score(rec vectorstore.Record, similarity float64) float64 {
	if rec.Metadata.Provenance != vectorstore.ProvenanceKnowledge {
		return similarity
	}
	score := similarity
	md := rec.Metadata

	if q.intent.Category != classifier.General && q.intent.Confidence > q.boosts.ConfidenceFloor {
		switch md.ChunkType {
		case q.intent.Category:
			score += q.boosts.Category
		case decisionGuide:
			score += q.boosts.DecisionGuide
		}
	}

	if matches := q.keywordMatches(md.Keywords); matches > 0 {
		score += min(q.boosts.KeywordCap, float64(matches)*q.boosts.Keyword)
	}

	if md.SectionLevel <= 2 {
		score += q.boosts.Level
	}

	return min(score, 1.0)
}

// keywordMatches counts distinct chunk keywords that appear among the query tokens.
func (q *queryScorer) keywordMatches(keywords []string) int {
	seen := make(map[string]struct{}, len(keywords))
	n := 0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		if _, ok := q.tokens[kw]; ok {
			n++
		}
	}
	return n
}

func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	tokens := strings.Fields(builder.String())
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

func filterStopwords(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}

	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := lexicalStopwords[token]; isStop {
			continue
		}
		result = append(result, token)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
