package chunker

// MergeChunks greedily concatenates adjacent chunks while the running size
// stays <= max_size and the chunk being built is still under chunk_size,
// preserving the outer overlaps of the merged span (spec.md §4.4
// "MergeChunks").
func MergeChunks(chunks []Chunk, maxSize int, chunkSize int) []Chunk {
	if len(chunks) == 0 {
		return nil
	}
	var out []Chunk
	cur := chunks[0]
	for i := 1; i < len(chunks); i++ {
		next := chunks[i]
		mergedLen := len(cur.Content) + len(next.Content) - overlapOf(cur, next)
		if mergedLen <= maxSize && len(cur.Content) < chunkSize {
			cur = Chunk{
				ChunkID:       cur.ChunkID,
				Content:       joinWithOverlap(cur, next),
				StartPos:      cur.StartPos,
				EndPos:        next.EndPos,
				OverlapBefore: cur.OverlapBefore,
				OverlapAfter:  next.OverlapAfter,
			}
			continue
		}
		out = append(out, cur)
		cur = next
	}
	out = append(out, cur)
	for i := range out {
		out[i].ChunkID = i
	}
	return out
}

func overlapOf(a, b Chunk) int {
	if a.EndPos > b.StartPos {
		return a.EndPos - b.StartPos
	}
	return 0
}

// joinWithOverlap concatenates a and b's content, deduplicating the region
// where they overlap in the original text.
func joinWithOverlap(a, b Chunk) string {
	ov := overlapOf(a, b)
	if ov <= 0 || ov > len(b.Content) {
		return a.Content + b.Content
	}
	return a.Content + b.Content[ov:]
}
