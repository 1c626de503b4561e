package group

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var linkTextEscaper = strings.NewReplacer(`\`, `\\`, "[", `\[`, "]", `\]`)

// LinksMarkdown renders a group as a markdown heading followed by a bullet
// list of its links. Tabs without a URL are omitted.
func LinksMarkdown(g TabGroup) string {
	var b strings.Builder
	title := g.Title
	if title == "" {
		title = UntitledGroup
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	for _, t := range g.Tabs {
		if t.URL == "" {
			continue
		}
		label := t.Title
		if label == "" {
			label = t.URL
		}
		fmt.Fprintf(&b, "- [%s](<%s>)\n", linkTextEscaper.Replace(label), t.URL)
	}
	return b.String()
}

// ParseMarkdownLinks reads every inline link and autolink from a markdown
// document, in document order. The first heading, if any, becomes the title.
func ParseMarkdownLinks(src []byte) (title string, tabs []Tab) {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if title == "" {
				title = strings.TrimSpace(nodeText(node, src))
			}
			return ast.WalkContinue, nil
		case *ast.Link:
			url := strings.TrimSpace(string(node.Destination))
			if url == "" {
				return ast.WalkSkipChildren, nil
			}
			label := strings.TrimSpace(nodeText(node, src))
			if label == "" {
				label = url
			}
			tabs = append(tabs, Tab{Title: label, URL: url})
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			url := string(node.URL(src))
			tabs = append(tabs, Tab{Title: url, URL: url})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return title, tabs
}

// nodeText concatenates the literal text below n.
func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(util.UnescapePunctuations(t.Segment.Value(src)))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		default:
			b.WriteString(nodeText(c, src))
		}
	}
	return b.String()
}
