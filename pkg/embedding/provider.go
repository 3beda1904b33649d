package embedding

import "context"

// EmbeddingProvider turns texts into vectors. The result has one vector per
// input, in input order, all of the same dimension.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedOne is a convenience for single queries.
func EmbedOne(ctx context.Context, p EmbeddingProvider, text string) ([]float32, error) {
	vectors, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, ErrCountMismatch
	}
	return vectors[0], nil
}
