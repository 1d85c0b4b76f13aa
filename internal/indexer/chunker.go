package indexer

import (
	"bytes"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"semantic-memory/internal/classifier"
)

// GoldmarkChunker splits knowledge documents into section-aware chunks using goldmark.
type GoldmarkChunker struct {
	parser   goldmark.Markdown
	cfg      ChunkerConfig
	typer    *classifier.ChunkTyper
	keywords *keywordExtractor
}

// NewGoldmarkChunker creates a chunker typing chunks with the taxonomy's chunk types and
// preferring its keyword allowlist.
func NewGoldmarkChunker(tax *classifier.Taxonomy, cfg ChunkerConfig) *GoldmarkChunker {
	def := DefaultChunkerConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.ChunkSize {
		cfg.Overlap = min(def.Overlap, cfg.ChunkSize/4)
	}
	if cfg.MinChunkSize < 0 {
		cfg.MinChunkSize = def.MinChunkSize
	}
	return &GoldmarkChunker{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
		cfg:      cfg,
		typer:    tax.ChunkTyper(),
		keywords: newKeywordExtractor(tax.Keywords),
	}
}

// Config returns the size budget in use.
func (c *GoldmarkChunker) Config() ChunkerConfig {
	return c.cfg
}

type headingSpan struct {
	level      int
	title      string
	start, end int // byte offsets of the heading line(s)
}

// Sections parses content into its top-level sections in document order.
func (c *GoldmarkChunker) Sections(content []byte) []Section {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil
	}

	doc := c.parser.Parser().Parse(text.NewReader(content))

	var spans []headingSpan
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Lines().Len() == 0 {
			continue
		}
		start, end := headingBounds(heading, content)
		spans = append(spans, headingSpan{
			level: heading.Level,
			title: extractTextFromNode(heading, content),
			start: start,
			end:   end,
		})
	}

	if len(spans) == 0 {
		return []Section{{Level: 0, Body: strings.TrimSpace(string(content))}}
	}

	var sections []Section
	if pre := strings.TrimSpace(string(content[:spans[0].start])); pre != "" {
		sections = append(sections, Section{Level: 0, Body: pre})
	}
	for i, sp := range spans {
		bodyEnd := len(content)
		if i+1 < len(spans) {
			bodyEnd = spans[i+1].start
		}
		body := ""
		if sp.end < bodyEnd {
			body = strings.TrimSpace(string(content[sp.end:bodyEnd]))
		}
		sections = append(sections, Section{Level: sp.level, Title: sp.title, Body: body})
	}
	return sections
}

// headingBounds returns the byte range covering a heading's source lines, including the
// underline of a setext heading.
func headingBounds(h *ast.Heading, content []byte) (int, int) {
	lines := h.Lines()
	first := lines.At(0)
	last := lines.At(lines.Len() - 1)

	start := bytes.LastIndexByte(content[:first.Start], '\n') + 1
	end := lineEnd(content, last.Stop)

	if content[start] != '#' && end < len(content) {
		next := lineEnd(content, end)
		if underline := bytes.TrimSpace(content[end:next]); len(underline) > 0 &&
			len(bytes.Trim(underline, "=-")) == 0 {
			end = next
		}
	}
	return start, end
}

// lineEnd returns the offset just past the newline ending the line containing pos.
func lineEnd(content []byte, pos int) int {
	if pos >= len(content) {
		return len(content)
	}
	if i := bytes.IndexByte(content[pos:], '\n'); i >= 0 {
		return pos + i + 1
	}
	return len(content)
}

// Chunk splits a document into chunks. Documents without headings fall back to fixed-size
// windows broken on sentence or word boundaries.
func (c *GoldmarkChunker) Chunk(content []byte) []Chunk {
	sections := c.Sections(content)
	if len(sections) == 0 {
		return nil
	}
	if len(sections) == 1 && sections[0].Level == 0 {
		return c.basicChunks(sections[0].Body)
	}

	var chunks []Chunk
	i := 0
	for i < len(sections) {
		first := sections[i]
		parts := []string{renderSection(first)}
		length := runeLen(parts[0])

		j := i + 1
		for j < len(sections) && length < c.cfg.ChunkSize {
			next := sections[j]
			nextText := renderSection(next)
			potential := length + 1 + runeLen(nextText)
			if potential > c.cfg.ChunkSize && !c.absorbs(first, next) {
				break
			}
			parts = append(parts, nextText)
			length = potential
			j++
		}

		chunkText := strings.TrimSpace(strings.Join(parts, "\n"))
		if chunkText != "" {
			contextPath := contextPathFor(sections, i)
			chunkType := c.typer.Type(first.Title, chunkText)
			pieces := []string{chunkText}
			if j == i+1 {
				pieces = c.split(chunkText)
			}
			for _, piece := range pieces {
				chunks = append(chunks, c.newChunk(len(chunks), piece, first.Title, first.Level, contextPath, chunkType))
			}
		}
		i = j
	}
	return chunks
}

// absorbs reports whether next is a small subsection that belongs with first even past the
// size budget. Chunks built from several sections are never split.
func (c *GoldmarkChunker) absorbs(first, next Section) bool {
	return next.Level > first.Level && runeLen(next.Body) < c.cfg.MinChunkSize
}

func (c *GoldmarkChunker) basicChunks(body string) []Chunk {
	if body == "" {
		return nil
	}
	chunkType := c.typer.Type("", body)
	pieces := c.split(body)
	chunks := make([]Chunk, 0, len(pieces))
	for _, piece := range pieces {
		title := "Full Document"
		if len(pieces) > 1 {
			title = "Chunk " + strconv.Itoa(len(chunks)+1)
		}
		chunks = append(chunks, c.newChunk(len(chunks), piece, title, 1, "", chunkType))
	}
	return chunks
}

func (c *GoldmarkChunker) newChunk(index int, chunkText, title string, level int, contextPath, chunkType string) Chunk {
	return Chunk{
		Index:            index,
		Text:             chunkText,
		MainSectionTitle: title,
		SectionLevel:     level,
		ContextPath:      contextPath,
		ChunkType:        chunkType,
		Keywords:         c.keywords.Extract(chunkText),
		CharCount:        runeLen(chunkText),
	}
}

// split cuts s into pieces of at most ChunkSize runes. Each piece after the first starts with
// the last Overlap runes of the previous one. Cuts prefer a paragraph break, then a sentence
// end, then a space, as long as the piece keeps at least half the budget.
func (c *GoldmarkChunker) split(s string) []string {
	runes := []rune(s)
	size := c.cfg.ChunkSize
	if len(runes) <= size {
		return []string{s}
	}

	var pieces []string
	start := 0
	for start < len(runes) {
		end := min(start+size, len(runes))
		if end < len(runes) {
			end = breakPoint(runes, start, end)
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			pieces = append(pieces, piece)
		}
		if end >= len(runes) {
			break
		}
		next := end - c.cfg.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return pieces
}

// breakPoint picks where a window [start, end) should be cut.
func breakPoint(runes []rune, start, end int) int {
	floor := start + (end-start)/2
	for i := end - 1; i > floor; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i > floor; i-- {
		if (runes[i] == '.' || runes[i] == '!' || runes[i] == '?') && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			return i + 1
		}
	}
	for i := end - 1; i > floor; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return end
}

// contextPathFor builds the breadcrumb of section i from the nearest strictly shallower
// titled heading at each level above it.
func contextPathFor(sections []Section, i int) string {
	var parts []string
	level := sections[i].Level
	for k := i - 1; k >= 0 && level > 1; k-- {
		prev := sections[k]
		if prev.Title == "" || prev.Level >= level {
			continue
		}
		parts = append([]string{prev.Title}, parts...)
		level = prev.Level
	}
	return strings.Join(parts, " > ")
}

func renderSection(s Section) string {
	if s.Title == "" {
		return s.Body
	}
	heading := strings.Repeat("#", s.Level) + " " + s.Title
	if s.Body == "" {
		return heading
	}
	return heading + "\n" + s.Body
}

// DocumentTitle returns the first level-1 heading, else the first level-2 heading, else a
// title derived from the file name.
func (c *GoldmarkChunker) DocumentTitle(sections []Section, filename string) string {
	var h2 string
	for _, s := range sections {
		if s.Level == 1 && s.Title != "" {
			return s.Title
		}
		if s.Level == 2 && h2 == "" {
			h2 = s.Title
		}
	}
	if h2 != "" {
		return h2
	}
	return extractTitleFromFilename(filename)
}

// extractTextFromNode extracts plain text from an AST node.
func extractTextFromNode(n ast.Node, content []byte) string {
	var textBuilder strings.Builder

	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := node.(type) {
		case *ast.Text:
			textBuilder.Write(v.Segment.Value(content))
			if v.SoftLineBreak() {
				textBuilder.WriteByte(' ')
			}
		case *ast.String:
			textBuilder.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(textBuilder.String())
}

// extractTitleFromFilename turns "mining_basics.md" into "Mining Basics".
func extractTitleFromFilename(filename string) string {
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)

	words := strings.Fields(name)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func runeLen(s string) int {
	return len([]rune(s))
}
