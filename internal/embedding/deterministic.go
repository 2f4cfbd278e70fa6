package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// Deterministic is a dependency-free hash-based embedder (SPEC_FULL.md
// §4.12), grounded on the teacher's rag/embedder deterministicEmbedder: it
// hashes byte 3-grams into a fixed-size vector and optionally L2-normalizes.
// Used in tests and as the zero-config default so the HybridRetriever's
// semantic path always has something to call.
type Deterministic struct {
	dim       int
	normalize bool
	seed      uint64
}

func NewDeterministic(dim int, normalize bool, seed uint64) *Deterministic {
	if dim <= 0 {
		dim = 64
	}
	return &Deterministic{dim: dim, normalize: normalize, seed: seed}
}

func (d *Deterministic) Dimension() int { return d.dim }

func (d *Deterministic) Embed(_ context.Context, text string) ([]float32, error) {
	return d.embedOne(text), nil
}

func (d *Deterministic) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = d.embedOne(t)
	}
	return out, nil
}

func (d *Deterministic) embedOne(s string) []float32 {
	v := make([]float32, d.dim)
	if len(s) == 0 {
		return v
	}
	b := []byte(s)
	if len(b) < 3 {
		d.add(b, v)
	} else {
		for i := 0; i <= len(b)-3; i++ {
			d.add(b[i:i+3], v)
		}
	}
	if d.normalize {
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		if sum > 0 {
			inv := float32(1.0 / math.Sqrt(sum))
			for i := range v {
				v[i] *= inv
			}
		}
	}
	return v
}

func (d *Deterministic) add(gram []byte, v []float32) {
	h := fnv.New64a()
	if d.seed != 0 {
		var tmp [8]byte
		for i := 0; i < 8; i++ {
			tmp[i] = byte(d.seed >> (8 * i))
		}
		_, _ = h.Write(tmp[:])
	}
	_, _ = h.Write(gram)
	hv := h.Sum64()
	idx := int(hv % uint64(len(v)))
	w := float32(int32(hv>>32)) / float32(1<<31)
	v[idx] += w
}
