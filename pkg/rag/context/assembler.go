package context

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"ai-assistant-be/pkg/store"
)

// minBody is the smallest excerpt worth including after a header.
const minBody = 40

// Assembler turns ranked chunks into prompt context.
type Assembler struct{}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// Format concatenates chunks in rank order, each behind a source marker,
// without exceeding budget characters. A budget of zero or less means no
// limit.
func (a *Assembler) Format(chunks []store.ScoredChunk, budget int) string {
	var b strings.Builder
	used := 0

	for i, hit := range chunks {
		sep := ""
		if i > 0 {
			sep = "\n\n"
		}
		header := fmt.Sprintf("%s%s\n", sep, Marker(i+1, hit))
		body := strings.TrimSpace(hit.Chunk.Text)

		if budget > 0 {
			remaining := budget - used - utf8.RuneCountInString(header)
			if remaining < minBody && remaining < utf8.RuneCountInString(body) {
				break
			}
			body = truncateRunes(body, remaining)
		}

		b.WriteString(header)
		b.WriteString(body)
		used += utf8.RuneCountInString(header) + utf8.RuneCountInString(body)
	}

	return b.String()
}

// Marker labels a chunk as it appears in prompts and citations.
func Marker(n int, hit store.ScoredChunk) string {
	return fmt.Sprintf("[Source %d | doc %s #%d | score %.2f]", n, hit.Chunk.DocumentId, hit.Chunk.SequenceIndex, hit.Similarity)
}

// Sources lists the "document#sequence" references of chunks, in rank order.
func Sources(chunks []store.ScoredChunk) []string {
	out := make([]string, len(chunks))
	for i, hit := range chunks {
		out[i] = fmt.Sprintf("%s#%d", hit.Chunk.DocumentId, hit.Chunk.SequenceIndex)
	}
	return out
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
