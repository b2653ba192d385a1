// Package embed provides a text embedding interface and implementations.
//
// An Embedder converts product description text into dense vectors for
// similarity search. Two implementations are provided:
//
//   - [OpenAI]: the OpenAI embeddings API, or any OpenAI-compatible
//     provider via WithBaseURL
//   - [Hash]: a deterministic local embedder for offline use and tests
//
// # Quick Start
//
//	e := embed.NewOpenAI("sk-xxx", embed.WithDimension(384))
//	vec, err := e.Embed(ctx, "stainless steel water bottle")
//
//	vecs, err := e.EmbedBatch(ctx, descriptions)
package embed

import (
	"context"
	"errors"
)

// Embedder converts text into dense float32 vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embedding vectors for multiple texts.
	// Implementations may split large batches into smaller API calls
	// transparently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int
}

// Common errors.
var (
	// ErrEmptyInput is returned when the input text is empty.
	ErrEmptyInput = errors.New("embed: empty input")
)
