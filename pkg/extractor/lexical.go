package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// MimeLexical is the editor state exported by Lexical based rich text editors.
const MimeLexical = "application/vnd.lexical+json"

type lexicalRoot struct {
	Root lexicalNode `json:"root"`
}

type lexicalNode struct {
	Type     string        `json:"type"`
	Children []lexicalNode `json:"children,omitempty"`
	Text     string        `json:"text,omitempty"`
	Tag      string        `json:"tag,omitempty"`
	URL      string        `json:"url,omitempty"`
	ListType string        `json:"listType,omitempty"`
	Start    int           `json:"start,omitempty"`
	Checked  bool          `json:"checked,omitempty"`
}

// Lexical flattens an editor state into plain text, one block per paragraph.
// List items keep their markers and table rows stay on one line.
type Lexical struct{}

func (Lexical) Extract(ctx context.Context, file File) (string, error) {
	var root lexicalRoot
	if err := json.Unmarshal(file.Content, &root); err != nil {
		return "", fmt.Errorf("invalid lexical state: %w", err)
	}
	if root.Root.Type != "root" {
		return "", fmt.Errorf("invalid lexical state: missing root node")
	}

	var b strings.Builder
	for _, child := range root.Root.Children {
		writeLexicalBlock(&b, child, 0)
	}
	return b.String(), nil
}

func writeLexicalBlock(b *strings.Builder, node lexicalNode, depth int) {
	switch node.Type {
	case "list":
		writeLexicalList(b, node, depth)
		if depth == 0 {
			b.WriteString("\n")
		}
	case "table":
		writeLexicalTable(b, node)
	case "horizontalrule":
		b.WriteString("---\n\n")
	default:
		writeLexicalInline(b, node.Children)
		if node.Text != "" {
			b.WriteString(node.Text)
		}
		b.WriteString("\n\n")
	}
}

func writeLexicalInline(b *strings.Builder, nodes []lexicalNode) {
	for _, n := range nodes {
		switch n.Type {
		case "linebreak":
			b.WriteString("\n")
		case "tab":
			b.WriteString("\t")
		case "link", "autolink":
			writeLexicalInline(b, n.Children)
			if n.URL != "" {
				b.WriteString(" (" + n.URL + ")")
			}
		default:
			b.WriteString(n.Text)
			writeLexicalInline(b, n.Children)
		}
	}
}

func writeLexicalList(b *strings.Builder, list lexicalNode, depth int) {
	index := 1
	if list.Start > 0 {
		index = list.Start
	}

	for _, item := range list.Children {
		if item.Type != "listitem" {
			continue
		}

		// A nested list is a listitem whose only child is the list.
		var inline []lexicalNode
		var nested []lexicalNode
		for _, c := range item.Children {
			if c.Type == "list" {
				nested = append(nested, c)
			} else {
				inline = append(inline, c)
			}
		}

		if len(inline) > 0 {
			b.WriteString(strings.Repeat("  ", depth))
			switch list.ListType {
			case "number":
				fmt.Fprintf(b, "%d. ", index)
				index++
			case "check":
				if item.Checked {
					b.WriteString("- [x] ")
				} else {
					b.WriteString("- [ ] ")
				}
			default:
				b.WriteString("- ")
			}
			writeLexicalInline(b, inline)
			b.WriteString("\n")
		}
		for _, n := range nested {
			writeLexicalList(b, n, depth+1)
		}
	}
}

// writeLexicalTable writes one line per row with cells joined by " | ".
func writeLexicalTable(b *strings.Builder, table lexicalNode) {
	for _, row := range table.Children {
		if row.Type != "tablerow" {
			continue
		}
		cells := make([]string, 0, len(row.Children))
		for _, cell := range row.Children {
			var cb strings.Builder
			for _, content := range cell.Children {
				writeLexicalInline(&cb, content.Children)
				cb.WriteString(" ")
			}
			cells = append(cells, strings.Join(strings.Fields(cb.String()), " "))
		}
		b.WriteString(strings.Join(cells, " | ") + "\n")
	}
	b.WriteString("\n")
}
