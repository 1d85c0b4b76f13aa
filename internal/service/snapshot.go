package service

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"semantic-memory/internal/convlog"
	"semantic-memory/internal/memerr"
	"semantic-memory/internal/vectorstore"
)

// SnapshotVersion is written to every export.
const SnapshotVersion = 1

//go:embed snapshot_schema.json
var snapshotSchemaJSON []byte

var (
	snapshotSchemaOnce sync.Once
	snapshotSchema     *gojsonschema.Schema
	snapshotSchemaErr  error
)

// Snapshot is the portable export of personal memory: the conversation log and the daily
// summaries. Knowledge records are only counted.
type Snapshot struct {
	Version                int                  `json:"version"`
	ExportTimestamp        string               `json:"export_timestamp"`
	Timezone               string               `json:"timezone"`
	ChatEntries            []convlog.Record     `json:"chat_entries"`
	DailySummaryEmbeddings []vectorstore.Record `json:"daily_summary_embeddings"`
	BaseEmbeddingsCount    int                  `json:"base_embeddings_count"`
	CurrentDayEntries      int                  `json:"current_day_entries"`
	PastDayEntries         int                  `json:"past_day_entries"`
}

// ImportResult reports what an import replaced memory with.
type ImportResult struct {
	Entries   int `json:"entries"`
	Summaries int `json:"summaries"`
}

// snapshotInput accepts the current keys and the older "memory", "summary_embeddings" and
// "embeddings" names.
type snapshotInput struct {
	ChatEntries            []convlog.Record  `json:"chat_entries"`
	Memory                 []convlog.Record  `json:"memory"`
	DailySummaryEmbeddings []json.RawMessage `json:"daily_summary_embeddings"`
	SummaryEmbeddings      []json.RawMessage `json:"summary_embeddings"`
	Embeddings             []json.RawMessage `json:"embeddings"`
}

func (in snapshotInput) entries() []convlog.Record {
	if in.ChatEntries != nil {
		return in.ChatEntries
	}
	return in.Memory
}

func (in snapshotInput) summaries() []json.RawMessage {
	switch {
	case in.DailySummaryEmbeddings != nil:
		return in.DailySummaryEmbeddings
	case in.SummaryEmbeddings != nil:
		return in.SummaryEmbeddings
	default:
		return in.Embeddings
	}
}

func loadSnapshotSchema() (*gojsonschema.Schema, error) {
	snapshotSchemaOnce.Do(func() {
		snapshotSchema, snapshotSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(snapshotSchemaJSON))
	})
	return snapshotSchema, snapshotSchemaErr
}

// validateSnapshotShape checks data against the snapshot schema.
func validateSnapshotShape(data []byte) error {
	schema, err := loadSnapshotSchema()
	if err != nil {
		return fmt.Errorf("invalid snapshot schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return memerr.Validation("snapshot", "not valid JSON: %v", err)
	}
	if result.Valid() {
		return nil
	}

	errs := result.Errors()
	msgs := make([]string, 0, min(len(errs), 3))
	for _, desc := range errs {
		if len(msgs) == 3 {
			break
		}
		msgs = append(msgs, desc.String())
	}
	if len(errs) > 3 {
		msgs = append(msgs, fmt.Sprintf("... and %d more", len(errs)-3))
	}
	return memerr.Validation("snapshot", "%s", strings.Join(msgs, "; "))
}

// decodeSnapshot validates data and converts it to log entries and summary records.
// Nothing is written; dimension checks happen when the summaries are stored.
func decodeSnapshot(data []byte, loc *time.Location) ([]convlog.Entry, []vectorstore.Record, error) {
	if err := validateSnapshotShape(data); err != nil {
		return nil, nil, err
	}

	var in snapshotInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, nil, memerr.Validation("snapshot", "%v", err)
	}

	records := in.entries()
	entries := make([]convlog.Entry, 0, len(records))
	for i, rec := range records {
		e, err := convlog.DecodeRecord(rec, loc)
		if err != nil {
			return nil, nil, memerr.Validation(fmt.Sprintf("chat_entries[%d]", i), "%v", err)
		}
		entries = append(entries, e)
	}

	raws := in.summaries()
	summaries := make([]vectorstore.Record, 0, len(raws))
	for i, raw := range raws {
		rec, err := vectorstore.DecodeRecord(raw)
		if err != nil {
			return nil, nil, memerr.Validation(fmt.Sprintf("daily_summary_embeddings[%d]", i), "%v", err)
		}
		if rec.Metadata.Provenance == "" {
			rec.Metadata.Provenance = vectorstore.ProvenanceSummary
		}
		if rec.Metadata.Provenance != vectorstore.ProvenanceSummary {
			return nil, nil, memerr.Validation(fmt.Sprintf("daily_summary_embeddings[%d].metadata.provenance", i),
				"want %s, got %s", vectorstore.ProvenanceSummary, rec.Metadata.Provenance)
		}
		if _, err := convlog.ParseDate(rec.Metadata.ConversationDate); err != nil {
			return nil, nil, memerr.Validation(fmt.Sprintf("daily_summary_embeddings[%d].metadata.conversation_date", i), "%v", err)
		}
		summaries = append(summaries, rec)
	}
	return entries, summaries, nil
}
