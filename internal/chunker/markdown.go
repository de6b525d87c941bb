package chunker

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// Section is a markdown region delimited by H1/H2 headings.
// HeaderPath carries the heading hierarchy, e.g. "# Setup > ## Install".
type Section struct {
	HeaderPath string
	Content    string
}

// MarkdownSplitter cuts markdown documents at heading boundaries before
// size-bounded chunking, so each chunk keeps its section context.
type MarkdownSplitter struct {
	parser goldmark.Markdown
}

// NewMarkdownSplitter returns a splitter backed by a goldmark parser.
func NewMarkdownSplitter() *MarkdownSplitter {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &MarkdownSplitter{parser: md}
}

// Sections splits markdown source at H1 and H2 boundaries. A document
// without headings comes back as a single section with an empty path.
func (m *MarkdownSplitter) Sections(source []byte) ([]Section, error) {
	reader := text.NewReader(source)
	doc := m.parser.Parser().Parse(reader)

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	if len(tree.Items) == 0 {
		return []Section{{Content: string(source)}}, nil
	}

	var sections []Section
	m.collect(doc, source, tree.Items, nil, &sections)
	return sections, nil
}

// collect walks TOC items recursively, slicing section bodies out of
// the source between heading boundaries.
func (m *MarkdownSplitter) collect(doc ast.Node, source []byte, items toc.Items, ancestors []string, sections *[]Section) {
	for i, item := range items {
		path := append(append([]string(nil), ancestors...), string(item.Title))

		headNode := headingByID(doc, string(item.ID))
		if headNode == nil {
			continue
		}

		start := headNode.Lines().At(0)

		// The body runs to the next heading in document order: the
		// first child if any, otherwise the next sibling, otherwise
		// the next same-or-higher-level heading.
		var end text.Segment
		switch {
		case len(item.Items) > 0:
			if child := headingByID(doc, string(item.Items[0].ID)); child != nil {
				end = child.Lines().At(0)
			}
		case i+1 < len(items):
			if next := headingByID(doc, string(items[i+1].ID)); next != nil {
				end = next.Lines().At(0)
			}
		default:
			end = nextBoundary(doc, headNode, headNode.(*ast.Heading).Level)
		}

		var body string
		if end.Start == 0 && end.Stop == 0 {
			body = string(source[start.Stop:])
		} else {
			body = string(source[start.Stop:lineStart(source, end.Start)])
		}

		*sections = append(*sections, Section{
			HeaderPath: headerPath(path),
			Content:    strings.TrimSpace(body),
		})

		if len(item.Items) > 0 {
			m.collect(doc, source, item.Items, path, sections)
		}
	}
}

// headerPath renders a heading hierarchy.
// ["Setup", "Install"] becomes "# Setup > ## Install".
func headerPath(path []string) string {
	parts := make([]string, len(path))
	for i, segment := range path {
		parts[i] = fmt.Sprintf("%s %s", strings.Repeat("#", i+1), segment)
	}
	return strings.Join(parts, " > ")
}

// lineStart returns the index of the first byte of the line containing
// pos, so a slice ending there excludes the following heading's markers.
func lineStart(source []byte, pos int) int {
	for i := pos - 1; i >= 0; i-- {
		if source[i] == '\n' {
			return i + 1
		}
	}
	return 0
}

// headingByID locates a heading node by its auto-generated ID.
func headingByID(node ast.Node, id string) ast.Node {
	var found ast.Node
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindHeading {
			if v, ok := n.AttributeString("id"); ok && string(v.([]byte)) == id {
				found = n
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}

// nextBoundary finds the first heading after current at the same or a
// higher level. A zero segment means the section runs to EOF.
func nextBoundary(root, current ast.Node, level int) text.Segment {
	var next ast.Node
	seen := false

	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		if !seen {
			if n == current {
				seen = true
			}
			return ast.WalkContinue, nil
		}
		if n.(*ast.Heading).Level <= level {
			next = n
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})

	if next != nil {
		return next.Lines().At(0)
	}
	return text.Segment{}
}
