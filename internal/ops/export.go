package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/group"
	"github.com/hpungsan/grove/internal/state"
)

// Link export formats.
const (
	FormatURLs     = "urls"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// ExportLinksInput contains parameters for the ExportLinks operation.
type ExportLinksInput struct {
	View   View
	ID     group.ID
	Format string
}

// ExportLinksOutput contains the result of the ExportLinks operation.
type ExportLinksOutput struct {
	Format  string `json:"format"`
	Content string `json:"content"`
}

type linkPayload struct {
	Title    string    `json:"title"`
	Category string    `json:"category"`
	Color    string    `json:"color"`
	Tabs     []linkTab `json:"tabs"`
}

type linkTab struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ExportLinks renders a group's links as newline-separated URLs, a markdown
// list, or a JSON document.
func (c *Coordinator) ExportLinks(ctx context.Context, input ExportLinksInput) (*ExportLinksOutput, error) {
	format := strings.ToLower(strings.TrimSpace(input.Format))
	if format == "" {
		format = FormatURLs
	}
	switch format {
	case FormatURLs, FormatMarkdown, FormatJSON:
	default:
		return nil, errors.NewInvalidRequest("format must be urls, markdown or json")
	}

	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	view, i, err := c.find("export", input.View, input.ID)
	if err != nil {
		return nil, err
	}
	g := c.groups(view)[i]

	out := &ExportLinksOutput{Format: format}
	switch format {
	case FormatURLs:
		urls := g.URLs()
		if len(urls) == 0 {
			return nil, errors.NewInvalidRequest("group has no links")
		}
		out.Content = strings.Join(urls, "\n")
	case FormatMarkdown:
		out.Content = group.LinksMarkdown(g)
	case FormatJSON:
		p := linkPayload{Title: g.Title, Category: g.Category, Color: g.Color, Tabs: make([]linkTab, len(g.Tabs))}
		for j, t := range g.Tabs {
			p.Tabs[j] = linkTab{Title: t.Title, URL: t.URL}
		}
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out.Content = string(data)
	}
	return out, nil
}

// ImportMarkdownInput contains parameters for the ImportMarkdown operation.
// Content takes precedence over Path.
type ImportMarkdownInput struct {
	Path    string
	Content string
	// Title is used when the document has no heading.
	Title string
}

// ImportMarkdownOutput contains the result of the ImportMarkdown operation.
type ImportMarkdownOutput struct {
	ID        group.ID `json:"id"`
	Title     string   `json:"title"`
	Signature string   `json:"signature"`
	Tabs      int      `json:"tabs"`
	Added     bool     `json:"added"`
}

// ImportMarkdown adds a history entry built from the links in a markdown
// document. The first heading names the group, else Title, else the file
// name. A document whose group is already in history adds nothing.
func (c *Coordinator) ImportMarkdown(ctx context.Context, input ImportMarkdownInput) (*ImportMarkdownOutput, error) {
	src := []byte(input.Content)
	if input.Content == "" {
		if strings.TrimSpace(input.Path) == "" {
			return nil, errors.NewInvalidRequest("path or content is required")
		}
		data, err := os.ReadFile(input.Path)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("read %s: %v", input.Path, err))
		}
		src = data
	}
	heading, tabs := group.ParseMarkdownLinks(src)
	if len(tabs) == 0 {
		return nil, errors.NewInvalidRequest("document contains no links")
	}
	title := heading
	if title == "" {
		title = strings.TrimSpace(input.Title)
	}
	if title == "" && input.Path != "" {
		base := filepath.Base(input.Path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if title == "" {
		title = group.UntitledGroup
	}

	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ts := nowMillis(c.now)
	g := group.WithSignature(group.TabGroup{
		ID:        group.ID(fmt.Sprintf("markdown-%d", ts)),
		Title:     title,
		Color:     NewGroupColor,
		UpdatedAt: ts,
		Tabs:      tabs,
	})
	g.Category = c.resolveCategory(g.Signature, group.CategoryHistory)

	merged := c.withCategories(group.Merge([]group.TabGroup{g}, c.model.Closed))
	added := len(merged) > len(c.model.Closed)
	if added {
		if err := c.store.SaveClosed(ctx, merged); err != nil {
			return nil, c.persistErr(state.KeyClosedGroups, err)
		}
		c.model.Closed = merged
	}
	return &ImportMarkdownOutput{ID: g.ID, Title: title, Signature: g.Signature, Tabs: len(tabs), Added: added}, nil
}
