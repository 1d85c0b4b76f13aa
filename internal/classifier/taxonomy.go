package classifier

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

// Taxonomy is the keyword data behind intent detection, long-term gating and chunk typing.
type Taxonomy struct {
	Intents          map[string][]string `yaml:"intents"`
	HistoryPhrases   []string            `yaml:"history_phrases"`
	KnowledgePhrases []string            `yaml:"knowledge_phrases"`
	ChunkTypes       ChunkTypes          `yaml:"chunk_types"`
	Keywords         []string            `yaml:"keywords"`
}

// ChunkTypes describes how ingested chunks are typed.
type ChunkTypes struct {
	Categories map[string]ChunkTypeRule `yaml:"categories"`
	ListType   string                   `yaml:"list_type"`
	Fallback   string                   `yaml:"fallback"`
}

// ChunkTypeRule lists the title keywords and body phrases of one chunk type.
type ChunkTypeRule struct {
	TitleKeywords []string `yaml:"title_keywords"`
	BodyPhrases   []string `yaml:"body_phrases"`
}

// DefaultTaxonomy returns the embedded taxonomy.
func DefaultTaxonomy() (*Taxonomy, error) {
	return ParseTaxonomy(defaultTaxonomy)
}

// LoadTaxonomy reads a taxonomy from path, or the embedded default when path is empty.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	if path == "" {
		return DefaultTaxonomy()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy: %w", err)
	}
	return ParseTaxonomy(data)
}

// ParseTaxonomy decodes and validates YAML taxonomy data.
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy: %w", err)
	}
	if len(t.Intents) == 0 {
		return nil, fmt.Errorf("taxonomy has no intents")
	}
	if t.ChunkTypes.Fallback == "" {
		t.ChunkTypes.Fallback = "general_guide"
	}
	return &t, nil
}

// IntentClassifier builds the query intent classifier.
func (t *Taxonomy) IntentClassifier() *KeywordClassifier {
	return NewKeywordClassifier(t.Intents)
}

// HistoryDetector decides whether a query needs cross-day retrieval.
type HistoryDetector struct {
	history   []string
	knowledge []string
	topics    *KeywordClassifier
}

// HistoryDetector builds the long-term gate from t.
func (t *Taxonomy) HistoryDetector() *HistoryDetector {
	return &HistoryDetector{
		history:   normalizePhrases(t.HistoryPhrases),
		knowledge: normalizePhrases(t.KnowledgePhrases),
		topics:    t.IntentClassifier(),
	}
}

// NeedsLongTerm is true when text refers to the past, or asks for knowledge about a known topic.
func (d *HistoryDetector) NeedsLongTerm(text string) bool {
	if containsAny(text, d.history) {
		return true
	}
	return containsAny(text, d.knowledge) && d.topics.Matches(text)
}
