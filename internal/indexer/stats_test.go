package indexer

import (
	"context"
	"path/filepath"
	"testing"
)

func TestComputeCharStats(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   ChunkCharStats
	}{
		{"empty", nil, ChunkCharStats{}},
		{"single", []int{42}, ChunkCharStats{Count: 1, Min: 42, Max: 42, Mean: 42, P95: 42}},
		{"unsorted", []int{300, 100, 200}, ChunkCharStats{Count: 3, Min: 100, Max: 300, Mean: 200, P95: 300}},
		{
			"twenty values",
			[]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20},
			ChunkCharStats{Count: 20, Min: 1, Max: 20, Mean: 10.5, P95: 19},
		},
		{"rounded mean", []int{1, 1, 2}, ChunkCharStats{Count: 3, Min: 1, Max: 2, Mean: 1.33, P95: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeCharStats(tt.counts); got != tt.want {
				t.Errorf("computeCharStats() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestIndexVersion(t *testing.T) {
	cfg := DefaultChunkerConfig()
	v1 := indexVersion("model-a", cfg)
	if len(v1) != 16 {
		t.Errorf("indexVersion() length = %d, want 16", len(v1))
	}
	if v1 != indexVersion("model-a", cfg) {
		t.Error("indexVersion() is not deterministic")
	}
	if v1 == indexVersion("model-b", cfg) {
		t.Error("indexVersion() ignores the embedding model")
	}
	cfg.Overlap = 0
	if v1 == indexVersion("model-a", cfg) {
		t.Error("indexVersion() ignores the chunker config")
	}
}

func TestScanSources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Mining Basics.md"), "# x")
	writeFile(t, filepath.Join(dir, "notes", "farm.TXT"), "y")
	writeFile(t, filepath.Join(dir, "data.json"), "{}")
	writeFile(t, filepath.Join(dir, ".draft.md"), "z")
	writeFile(t, filepath.Join(dir, ".obsidian", "conf.md"), "z")

	files, err := ScanSources(context.Background(), dir)
	if err != nil {
		t.Fatalf("ScanSources() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("ScanSources() returned %d files, want 2: %+v", len(files), files)
	}
	if files[0].RelPath != "Mining Basics.md" || files[0].SourceID != "Mining_Basics" {
		t.Errorf("files[0] = %+v", files[0])
	}
	if files[1].RelPath != "notes/farm.TXT" || files[1].SourceID != "farm" {
		t.Errorf("files[1] = %+v", files[1])
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ScanSources(ctx, dir); err != context.Canceled {
		t.Errorf("ScanSources() with cancelled context error = %v, want context.Canceled", err)
	}
}

func TestSourceIDFor(t *testing.T) {
	tests := map[string]string{
		"guide.md":            "guide",
		"/a/b/My Guide!.txt":  "My_Guide",
		"..md":                "source",
		"crafting-v2.1.md":    "crafting-v2.1",
		"__private__notes.md": "private__notes",
	}
	for in, want := range tests {
		if got := SourceIDFor(in); got != want {
			t.Errorf("SourceIDFor(%q) = %q, want %q", in, got, want)
		}
	}
}
