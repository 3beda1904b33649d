package utils

import (
	"errors"
	"strings"
	"unicode"
)

var ErrInvalidConfig = errors.New("invalid chunker config")

// MaxChunkSlack is how far (as a fraction of chunkSize) a chunk may grow
// past chunkSize to end on a word or sentence boundary.
const MaxChunkSlack = 0.2

// SplitText splits text into overlapping chunks of roughly chunkSize runes.
//
// Consecutive chunks share exactly `overlap` runes, so JoinChunks rebuilds
// the trimmed input. Chunk ends prefer a sentence end, then whitespace,
// searched outward from chunkSize within the slack window.
func SplitText(text string, chunkSize int, overlap int) ([]string, error) {
	if chunkSize <= 0 || overlap < 0 || overlap >= chunkSize {
		return nil, ErrInvalidConfig
	}

	runes := []rune(strings.TrimSpace(text))
	total := len(runes)
	if total == 0 {
		return nil, nil
	}
	if total <= chunkSize {
		return []string{string(runes)}, nil
	}

	slack := int(float64(chunkSize) * MaxChunkSlack)

	var chunks []string
	start := 0
	for {
		// Remainder fits inside the slack window: emit it whole.
		if total-start <= chunkSize+slack {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		target := start + chunkSize
		floor := start + chunkSize - slack
		if floor <= start+overlap {
			floor = start + overlap + 1
		}
		limit := target + slack

		end := findBoundary(runes, target, floor, limit)
		chunks = append(chunks, string(runes[start:end]))
		start = end - overlap
	}

	return chunks, nil
}

// JoinChunks reverses SplitText by dropping the shared prefix of every
// chunk after the first.
func JoinChunks(chunks []string, overlap int) string {
	var sb strings.Builder
	for i, c := range chunks {
		if i == 0 {
			sb.WriteString(c)
			continue
		}
		r := []rune(c)
		if overlap < len(r) {
			sb.WriteString(string(r[overlap:]))
		}
	}
	return sb.String()
}

// findBoundary returns an exclusive end index in [floor, limit].
func findBoundary(runes []rune, target, floor, limit int) int {
	if end, ok := nearest(target, floor, limit, func(i int) (int, bool) {
		if i+1 >= len(runes) {
			return 0, false
		}
		if isSentenceEnd(runes[i]) && unicode.IsSpace(runes[i+1]) {
			return i + 1, true
		}
		return 0, false
	}); ok {
		return end
	}

	if end, ok := nearest(target, floor, limit, func(i int) (int, bool) {
		if i < len(runes) && unicode.IsSpace(runes[i]) {
			return i, true
		}
		return 0, false
	}); ok {
		return end
	}

	// No boundary inside the window (one very long token); hard cut.
	return target
}

// nearest probes positions outward from target, forward first.
func nearest(target, floor, limit int, probe func(i int) (int, bool)) (int, bool) {
	for d := 0; target+d <= limit || target-d >= floor; d++ {
		if i := target + d; i <= limit {
			if end, ok := probe(i); ok && end >= floor && end <= limit {
				return end, true
			}
		}
		if i := target - d; d > 0 && i >= floor {
			if end, ok := probe(i); ok && end >= floor && end <= limit {
				return end, true
			}
		}
	}
	return 0, false
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}
