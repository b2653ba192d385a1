package embed

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/trovedb/trove/distance"
)

// Hash is a deterministic local embedder. Tokens are hashed into a fixed
// number of buckets and the result is L2-normalized, so equal texts
// always produce equal vectors and token overlap produces nearby vectors.
//
// It exists for offline runs and tests; retrieval quality is far below a
// learned model.
type Hash struct {
	dim int
}

var _ Embedder = (*Hash)(nil)

// NewHash creates a hashing embedder with the given output dimension.
func NewHash(dim int) *Hash {
	return &Hash{dim: dim}
}

// Embed returns the embedding for a single text.
func (h *Hash) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, ErrEmptyInput
	}

	vec := make([]float32, h.dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		f := fnv.New32a()
		f.Write([]byte(tok))
		sum := f.Sum32()
		bucket := int(sum % uint32(h.dim))
		// The next hash bit decides the sign, which keeps unrelated
		// tokens from only ever adding up.
		if sum&(1<<31) != 0 {
			vec[bucket] -= 1
		} else {
			vec[bucket] += 1
		}
	}
	distance.NormalizeL2InPlace(vec)
	return vec, nil
}

// EmbedBatch returns embeddings for multiple texts.
func (h *Hash) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimension returns the output vector dimensionality.
func (h *Hash) Dimension() int {
	return h.dim
}
