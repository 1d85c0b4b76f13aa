package indexer

// Section is one heading and the body text up to the next heading.
// Text before the first heading forms a level-0 section with no title.
type Section struct {
	Level int
	Title string
	Body  string
}

// Chunk is a piece of a knowledge document ready to be embedded.
type Chunk struct {
	Index            int      // position within the source, starts at 0
	Text             string   // chunk text, heading lines included
	MainSectionTitle string   // title of the first section in the chunk
	SectionLevel     int      // heading level of the first section
	ContextPath      string   // Format: "Guide > Mining"
	ChunkType        string   // taxonomy chunk type
	Keywords         []string // at most maxKeywords salient terms
	CharCount        int      // rune count of Text
}

// ChunkerConfig sets the chunk size budget, all in characters.
type ChunkerConfig struct {
	ChunkSize    int
	Overlap      int
	MinChunkSize int
}

// DefaultChunkerConfig returns the default size budget.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{ChunkSize: 1200, Overlap: 150, MinChunkSize: 200}
}
