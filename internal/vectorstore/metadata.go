package vectorstore

import (
	"encoding/json"
	"strings"
)

type summaryMetadataJSON struct {
	ConversationDate string     `json:"conversation_date"`
	Provenance       Provenance `json:"provenance"`
}

type knowledgeMetadataJSON struct {
	Provenance       Provenance `json:"provenance"`
	SourceID         string     `json:"source_id"`
	ChunkType        string     `json:"chunk_type"`
	ContextPath      string     `json:"context_path"`
	SectionLevel     int        `json:"section_level"`
	Keywords         []string   `json:"keywords"`
	CharCount        int        `json:"char_count"`
	MainSectionTitle string     `json:"main_section_title,omitempty"`
}

// MarshalJSON writes only the fields that belong to the record's provenance.
func (m Metadata) MarshalJSON() ([]byte, error) {
	if m.Provenance == ProvenanceSummary {
		return json.Marshal(summaryMetadataJSON{
			ConversationDate: m.ConversationDate,
			Provenance:       m.Provenance,
		})
	}
	keywords := m.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return json.Marshal(knowledgeMetadataJSON{
		Provenance:       m.Provenance,
		SourceID:         m.SourceID,
		ChunkType:        m.ChunkType,
		ContextPath:      m.ContextPath,
		SectionLevel:     m.SectionLevel,
		Keywords:         keywords,
		CharCount:        m.CharCount,
		MainSectionTitle: m.MainSectionTitle,
	})
}

// metadataJSON is the permissive decode shape. entry_type, source_type and source_file are
// older aliases still found in existing stores.
type metadataJSON struct {
	Provenance       Provenance `json:"provenance"`
	EntryType        string     `json:"entry_type"`
	SourceType       string     `json:"source_type"`
	ConversationDate string     `json:"conversation_date"`
	SourceID         string     `json:"source_id"`
	SourceFile       string     `json:"source_file"`
	ChunkType        string     `json:"chunk_type"`
	ContextPath      string     `json:"context_path"`
	SectionLevel     int        `json:"section_level"`
	Keywords         []string   `json:"keywords"`
	CharCount        int        `json:"char_count"`
	MainSectionTitle string     `json:"main_section_title"`
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw metadataJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	prov := raw.Provenance
	if prov == "" {
		switch {
		case raw.EntryType == string(ProvenanceSummary), raw.EntryType == "conversation_summary":
			prov = ProvenanceSummary
		case raw.SourceType == "base_memory", raw.SourceType == "knowledge":
			prov = ProvenanceKnowledge
		}
	}
	sourceID := raw.SourceID
	if sourceID == "" && raw.SourceFile != "" {
		sourceID = sourceIDFromFile(raw.SourceFile)
	}

	*m = Metadata{
		Provenance:       prov,
		ConversationDate: raw.ConversationDate,
		SourceID:         sourceID,
		ChunkType:        raw.ChunkType,
		ContextPath:      raw.ContextPath,
		SectionLevel:     raw.SectionLevel,
		Keywords:         raw.Keywords,
		CharCount:        raw.CharCount,
		MainSectionTitle: raw.MainSectionTitle,
	}
	return nil
}

// sourceIDFromFile derives a source id from a file name such as "guide_embeddings.json".
func sourceIDFromFile(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".json")
	return strings.TrimSuffix(name, "_embeddings")
}
