package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"semantic-memory/internal/memerr"
)

// recordJSON accepts both the current record shape and flattened chunk files where the chunk
// fields sit beside text and embedding instead of under metadata.
type recordJSON struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	Metadata  *Metadata `json:"metadata"`
	Timestamp string    `json:"timestamp"`

	ChunkType        string   `json:"chunk_type"`
	ContextPath      string   `json:"context_path"`
	SectionLevel     int      `json:"section_level"`
	Keywords         []string `json:"keywords"`
	CharCount        int      `json:"char_count"`
	MainSectionTitle string   `json:"main_section_title"`
}

func (r recordJSON) toRecord() Record {
	rec := Record{Text: r.Text, Embedding: r.Embedding, Timestamp: r.Timestamp}
	if r.Metadata != nil {
		rec.Metadata = *r.Metadata
	}
	md := &rec.Metadata
	if md.ChunkType == "" {
		md.ChunkType = r.ChunkType
	}
	if md.ContextPath == "" {
		md.ContextPath = r.ContextPath
	}
	if md.SectionLevel == 0 {
		md.SectionLevel = r.SectionLevel
	}
	if md.Keywords == nil {
		md.Keywords = r.Keywords
	}
	if md.CharCount == 0 {
		md.CharCount = r.CharCount
	}
	if md.MainSectionTitle == "" {
		md.MainSectionTitle = r.MainSectionTitle
	}
	return rec
}

// DecodeRecords splits a store file into raw elements. It accepts a bare JSON array or an
// object wrapping the array under "embeddings" or "data".
func DecodeRecords(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, err
		}
		return raw, nil
	}

	var wrapper struct {
		Embeddings []json.RawMessage `json:"embeddings"`
		Data       []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Embeddings != nil {
		return wrapper.Embeddings, nil
	}
	if wrapper.Data != nil {
		return wrapper.Data, nil
	}
	return nil, errors.New("expected an array or an object with an embeddings or data list")
}

// DecodeRecord decodes one raw element. It does not check dimensionality.
func DecodeRecord(raw json.RawMessage) (Record, error) {
	var rj recordJSON
	if err := json.Unmarshal(raw, &rj); err != nil {
		return Record{}, err
	}
	rec := rj.toRecord()
	if strings.TrimSpace(rec.Text) == "" {
		return Record{}, errors.New("missing text")
	}
	if len(rec.Embedding) == 0 {
		return Record{}, errors.New("missing embedding")
	}
	return rec, nil
}

// loadFile reads one store file, dropping malformed records. prepare may fix up or reject a
// decoded record.
func loadFile(ctx context.Context, logger *slog.Logger, path string, prepare func(Record) (Record, error)) ([]Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	raws, err := DecodeRecords(data)
	if err != nil {
		return nil, &memerr.ParseError{Source: path, Index: -1, Err: err}
	}

	recs := make([]Record, 0, len(raws))
	for i, raw := range raws {
		rec, err := DecodeRecord(raw)
		if err == nil {
			rec, err = prepare(rec)
		}
		if err != nil {
			logger.WarnContext(ctx, "dropping malformed embedding record",
				"error", &memerr.ParseError{Source: path, Index: i, Err: err})
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// knowledgeFiles lists the JSON files of dir in name order.
func knowledgeFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
