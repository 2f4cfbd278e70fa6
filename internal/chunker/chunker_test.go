package chunker

import (
	"strings"
	"testing"
)

func genParagraphs(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("This is sentence one. This is sentence two! Is this sentence three? Yes it is.")
	}
	return b.String()
}

// TestChunkCover covers universal invariant 9 from spec.md §8: the
// concatenation of chunks, deduplicating overlap regions, equals the
// original text character-for-character.
func TestChunkCover(t *testing.T) {
	text := genParagraphs(50)
	c := New(Options{ChunkSize: 200, MinChunkSize: 50, MaxChunkSize: 400, BaseOverlap: 20, AdaptiveOverlap: true, PreserveSentences: true})
	chunks := c.Chunk(text)
	if len(chunks) == 0 {
		t.Fatalf("expected at least one chunk")
	}
	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0].Content)
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		skip := 0
		if prev.EndPos > cur.StartPos {
			skip = prev.EndPos - cur.StartPos
		}
		if skip > len(cur.Content) {
			skip = len(cur.Content)
		}
		rebuilt.WriteString(cur.Content[skip:])
	}
	if rebuilt.String() != text {
		t.Fatalf("chunk cover mismatch: rebuilt length %d, original length %d", rebuilt.Len(), len(text))
	}
}

func TestChunkRespectsHardStop(t *testing.T) {
	text := strings.Repeat("a", 50)
	c := New(Options{ChunkSize: 1, MinChunkSize: 1, MaxChunkSize: 1, BaseOverlap: 0})
	chunks := c.Chunk(text)
	if len(chunks) > 10000 {
		t.Fatalf("expected hard stop at 10000 chunks, got %d", len(chunks))
	}
}

func TestMergeChunksPreservesContent(t *testing.T) {
	text := genParagraphs(10)
	c := New(Options{ChunkSize: 100, MinChunkSize: 30, MaxChunkSize: 200, BaseOverlap: 10, AdaptiveOverlap: true, PreserveSentences: true})
	chunks := c.Chunk(text)
	merged := MergeChunks(chunks, 500, 100)
	if len(merged) == 0 {
		t.Fatalf("expected merged chunks")
	}
	if len(merged) > len(chunks) {
		t.Fatalf("merge should not increase chunk count: got %d from %d", len(merged), len(chunks))
	}
}
