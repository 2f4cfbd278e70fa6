// Package chunker implements the structure-aware AdaptiveChunker (spec.md
// §4.4): variable overlap scaled to sentence density, boundary preference
// for paragraphs, then sentences, then whitespace.
package chunker

import (
	"regexp"
)

var (
	sentenceBoundaryRe = regexp.MustCompile(`[.!?]+\s+`)
	paragraphBoundaryRe = regexp.MustCompile(`\n\s*\n`)
)

// Chunk is one produced span of the original text (spec.md §4.4).
type Chunk struct {
	ChunkID       int
	Content       string
	StartPos      int
	EndPos        int
	OverlapBefore int
	OverlapAfter  int
	Metadata      map[string]string
}

// Options are the AdaptiveChunker's tunable parameters (spec.md §4.4).
type Options struct {
	ChunkSize         int
	MinChunkSize      int
	MaxChunkSize      int
	BaseOverlap       int
	AdaptiveOverlap   bool
	PreserveSentences bool
}

// DefaultOptions mirrors sane defaults seen across the retrieved pack's
// chunkers (~512-token targets translated to the spec's char-based sizing).
func DefaultOptions() Options {
	return Options{
		ChunkSize:         1200,
		MinChunkSize:      400,
		MaxChunkSize:      2000,
		BaseOverlap:       100,
		AdaptiveOverlap:   true,
		PreserveSentences: true,
	}
}

// Chunker produces structure-preserving chunks per spec.md §4.4.
type Chunker struct {
	opt Options
}

func New(opt Options) *Chunker {
	if opt.ChunkSize <= 0 {
		opt.ChunkSize = DefaultOptions().ChunkSize
	}
	if opt.MinChunkSize <= 0 {
		opt.MinChunkSize = opt.ChunkSize / 3
	}
	if opt.MaxChunkSize <= 0 {
		opt.MaxChunkSize = opt.ChunkSize * 2
	}
	if opt.BaseOverlap < 0 {
		opt.BaseOverlap = 0
	}
	return &Chunker{opt: opt}
}

type boundaries struct {
	sentences  []int
	paragraphs []int
}

// precomputeBoundaries finds every sentence and paragraph boundary
// position, including text start and end (spec.md §4.4 "Boundary
// detection").
func precomputeBoundaries(text string) boundaries {
	b := boundaries{sentences: []int{0}, paragraphs: []int{0}}
	for _, m := range sentenceBoundaryRe.FindAllStringIndex(text, -1) {
		b.sentences = append(b.sentences, m[1])
	}
	for _, m := range paragraphBoundaryRe.FindAllStringIndex(text, -1) {
		b.paragraphs = append(b.paragraphs, m[1])
	}
	b.sentences = append(b.sentences, len(text))
	b.paragraphs = append(b.paragraphs, len(text))
	return b
}

// Chunk runs the spec.md §4.4 algorithm: walk cur_pos forward, pick the
// best boundary within [cur_pos, min(target_end+200,len)], clamp to
// [min,max] chunk size, compute adaptive overlap, emit, and advance.
func (c *Chunker) Chunk(text string) []Chunk {
	if text == "" {
		return nil
	}
	bounds := precomputeBoundaries(text)
	n := len(text)

	var chunks []Chunk
	curPos := 0
	prevOverlap := 0
	const hardStop = 10000

	for curPos < n && len(chunks) < hardStop {
		targetEnd := curPos + c.opt.ChunkSize
		searchEnd := targetEnd + 200
		if searchEnd > n {
			searchEnd = n
		}
		chunkEnd := c.findBoundary(bounds, curPos, targetEnd, searchEnd, text, n)
		chunkEnd = clamp(chunkEnd, curPos+c.opt.MinChunkSize, curPos+c.opt.MaxChunkSize)
		if chunkEnd > n {
			chunkEnd = n
		}
		if chunkEnd <= curPos {
			chunkEnd = min(n, curPos+1)
		}

		content := text[curPos:chunkEnd]
		overlap := c.computeOverlap(content)

		chunks = append(chunks, Chunk{
			ChunkID:       len(chunks),
			Content:       content,
			StartPos:      curPos,
			EndPos:        chunkEnd,
			OverlapBefore: prevOverlap,
			OverlapAfter:  overlap,
		})

		if chunkEnd >= n {
			break
		}
		next := chunkEnd - overlap
		if next <= curPos {
			next = chunkEnd
		}
		prevOverlap = overlap
		curPos = next
	}
	return chunks
}

// findBoundary prefers, in order: nearest paragraph within 100 chars of
// target_end, nearest sentence within 150 chars (if PreserveSentences),
// else nearest whitespace boundary (spec.md §4.4 step 2).
func (c *Chunker) findBoundary(bounds boundaries, curPos, targetEnd, searchEnd int, text string, n int) int {
	if p, ok := nearestWithin(bounds.paragraphs, targetEnd, 100, curPos, searchEnd); ok {
		return p
	}
	if c.opt.PreserveSentences {
		if s, ok := nearestWithin(bounds.sentences, targetEnd, 150, curPos, searchEnd); ok {
			return s
		}
	}
	if ws, ok := nearestWhitespace(text, targetEnd, curPos, searchEnd); ok {
		return ws
	}
	if targetEnd > n {
		return n
	}
	return targetEnd
}

func nearestWithin(positions []int, target, tolerance, lo, hi int) (int, bool) {
	best := -1
	bestDist := tolerance + 1
	for _, p := range positions {
		if p < lo || p > hi {
			continue
		}
		d := abs(p - target)
		if d <= tolerance && d < bestDist {
			best = p
			bestDist = d
		}
	}
	return best, best >= 0
}

func nearestWhitespace(text string, target, lo, hi int) (int, bool) {
	if target > len(text) {
		target = len(text)
	}
	for radius := 0; radius < 200; radius++ {
		fwd := target + radius
		if fwd <= hi && fwd < len(text) && isSpace(text[fwd]) {
			return fwd, true
		}
		back := target - radius
		if back >= lo && back >= 0 && back < len(text) && isSpace(text[back]) {
			return back, true
		}
	}
	return 0, false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// computeOverlap scales overlap by sentence density when AdaptiveOverlap is
// set (spec.md §4.4 step 4), capped at min(chunk_size/3, 200).
func (c *Chunker) computeOverlap(content string) int {
	cap := c.opt.ChunkSize / 3
	if cap > 200 {
		cap = 200
	}
	if !c.opt.AdaptiveOverlap {
		return clampInt(c.opt.BaseOverlap, 0, cap)
	}
	sentences := len(sentenceBoundaryRe.FindAllString(content, -1))
	var overlap int
	switch {
	case sentences <= 2:
		overlap = c.opt.BaseOverlap / 2
	case sentences <= 5:
		overlap = c.opt.BaseOverlap
	default:
		overlap = int(float64(c.opt.BaseOverlap) * 1.5)
	}
	return clampInt(overlap, 0, cap)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	return clamp(v, lo, hi)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
