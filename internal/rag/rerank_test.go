package rag

import (
	"math"
	"testing"

	"semantic-memory/internal/classifier"
	"semantic-memory/internal/config"
	"semantic-memory/internal/vectorstore"
)

type fixedClassifier classifier.Intent

func (f fixedClassifier) Classify(string) classifier.Intent { return classifier.Intent(f) }

func knowledge(chunkType string, level int, keywords ...string) vectorstore.Record {
	return vectorstore.Record{
		Text: "chunk",
		Metadata: vectorstore.Metadata{
			Provenance:   vectorstore.ProvenanceKnowledge,
			SourceID:     "guide",
			ChunkType:    chunkType,
			SectionLevel: level,
			Keywords:     keywords,
		},
	}
}

func TestRescorer(t *testing.T) {
	confident := fixedClassifier{Category: "crafting", Confidence: 0.5}
	weak := fixedClassifier{Category: "crafting", Confidence: 0.2}

	tests := []struct {
		name  string
		cls   classifier.Classifier
		query string
		rec   vectorstore.Record
		sim   float64
		want  float64
	}{
		{
			name:  "summary keeps raw similarity",
			cls:   confident,
			query: "craft a pickaxe",
			rec:   vectorstore.Record{Metadata: vectorstore.Metadata{Provenance: vectorstore.ProvenanceSummary}},
			sim:   0.4,
			want:  0.4,
		},
		{
			name:  "category match with confident intent",
			cls:   confident,
			query: "zzz",
			rec:   knowledge("crafting", 3),
			sim:   0.4,
			want:  0.6,
		},
		{
			name:  "category match below confidence floor",
			cls:   weak,
			query: "zzz",
			rec:   knowledge("crafting", 3),
			sim:   0.4,
			want:  0.4,
		},
		{
			name:  "decision guide boost",
			cls:   confident,
			query: "zzz",
			rec:   knowledge("decision_guide", 3),
			sim:   0.4,
			want:  0.5,
		},
		{
			name:  "keyword overlap",
			cls:   nil,
			query: "Diamond pickaxe please",
			rec:   knowledge("general_guide", 3, "diamond", "pickaxe", "iron"),
			sim:   0.4,
			want:  0.5,
		},
		{
			name:  "keyword overlap capped",
			cls:   nil,
			query: "diamond pickaxe iron gold stone",
			rec:   knowledge("general_guide", 3, "diamond", "pickaxe", "iron", "gold", "stone"),
			sim:   0.4,
			want:  0.55,
		},
		{
			name:  "top level section",
			cls:   nil,
			query: "zzz",
			rec:   knowledge("general_guide", 2),
			sim:   0.4,
			want:  0.45,
		},
		{
			name:  "clamped to one",
			cls:   confident,
			query: "diamond pickaxe iron",
			rec:   knowledge("crafting", 1, "diamond", "pickaxe", "iron"),
			sim:   0.95,
			want:  1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRescorer(tt.cls, config.DefaultBoosts())
			got := r.For(tt.query)(tt.rec, tt.sim)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRescorerIsDeterministic(t *testing.T) {
	tax, err := classifier.DefaultTaxonomy()
	if err != nil {
		t.Fatalf("DefaultTaxonomy() error = %v", err)
	}
	r := NewRescorer(tax.IntentClassifier(), config.DefaultBoosts())
	rec := knowledge("combat", 1, "zombie", "sword")

	first := r.For("how do I fight a zombie with a sword")(rec, 0.42)
	for range 10 {
		if got := r.For("how do I fight a zombie with a sword")(rec, 0.42); got != first {
			t.Fatalf("score changed between calls: %v then %v", first, got)
		}
	}
}

func TestTokenizeAndStopwords(t *testing.T) {
	got := filterStopwords(tokenize("The Diamond-Pickaxe, and IRON!"))
	want := []string{"diamond", "pickaxe", "iron"}
	if len(got) != len(want) {
		t.Fatalf("tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tokens[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if filterStopwords(tokenize("the and of")) != nil {
		t.Error("only stopwords should produce nil")
	}
}

func TestTitleCase(t *testing.T) {
	tests := map[string]string{
		"decision_guide": "Decision Guide",
		"crafting":       "Crafting",
		"":               "Guide",
	}
	for in, want := range tests {
		if got := titleCase(in); got != want {
			t.Errorf("titleCase(%q) = %q, want %q", in, got, want)
		}
	}
}
