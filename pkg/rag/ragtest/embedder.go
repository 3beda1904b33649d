// Package ragtest provides deterministic providers for engine tests.
package ragtest

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"

	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/utils"
)

var ErrInjected = errors.New("injected provider failure")

var _ embedding.EmbeddingProvider = (*HashEmbedder)(nil)

// HashEmbedder maps each lower-cased word to a dimension with FNV and
// normalizes the counts, so texts sharing words are similar. Vectors can be
// pinned per text to control similarity exactly.
type HashEmbedder struct {
	Dim int

	mu       sync.Mutex
	pinned   map[string][]float32
	failNext int
	calls    int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{Dim: dim, pinned: make(map[string][]float32)}
}

// Pin makes Embed return v for text.
func (e *HashEmbedder) Pin(text string, v []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pinned[text] = v
}

// FailNext makes the next n Embed calls fail.
func (e *HashEmbedder) FailNext(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failNext = n
}

func (e *HashEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.failNext > 0 {
		e.failNext--
		return nil, ErrInjected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := e.pinned[t]; ok {
			out[i] = append([]float32(nil), v...)
			continue
		}
		out[i] = e.hash(t)
	}
	return out, nil
}

func (e *HashEmbedder) hash(text string) []float32 {
	v := make([]float32, e.Dim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(w, ".,!?;:")))
		v[h.Sum32()%uint32(e.Dim)]++
	}
	return utils.NormalizeVector(v)
}
