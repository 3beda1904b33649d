// Package extractor turns uploaded documents into plain text for chunking.
package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"ai-assistant-be/pkg/rag"
)

const (
	MimePlain    = "text/plain"
	MimeMarkdown = "text/markdown"
	MimeHTML     = "text/html"
)

type File struct {
	Name     string
	MimeType string
	Content  []byte
}

type Extractor interface {
	Extract(ctx context.Context, file File) (string, error)
}

// Registry picks an extractor by mime type.
type Registry struct {
	byMime map[string]Extractor
}

func NewRegistry() *Registry {
	return &Registry{byMime: map[string]Extractor{
		MimePlain:    PlainText{},
		MimeMarkdown: Markdown{},
		MimeHTML:     HTML{},
		MimeLexical:  Lexical{},
	}}
}

// Extract fails with rag.ErrExtractionFailed for unsupported types, invalid
// UTF-8 and documents without any text.
func (r *Registry) Extract(ctx context.Context, file File) (string, error) {
	mime := file.MimeType
	if mime == "" {
		mime = MimePlain
	}
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}

	ex, ok := r.byMime[mime]
	if !ok {
		return "", fmt.Errorf("%w: unsupported mime type %q", rag.ErrExtractionFailed, file.MimeType)
	}
	if !utf8.Valid(file.Content) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", rag.ErrExtractionFailed, file.Name)
	}

	text, err := ex.Extract(ctx, file)
	if err != nil {
		return "", fmt.Errorf("%w: %v", rag.ErrExtractionFailed, err)
	}
	text = normalize(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s has no text", rag.ErrExtractionFailed, file.Name)
	}
	return text, nil
}

type PlainText struct{}

func (PlainText) Extract(ctx context.Context, file File) (string, error) {
	return string(file.Content), nil
}

var blankLines = regexp.MustCompile(`\n{3,}`)

// normalize unifies line endings, trims trailing spaces and collapses runs
// of blank lines so chunk boundaries do not depend on source formatting.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLines.ReplaceAllString(s, "\n\n"))
}
