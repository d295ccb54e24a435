package tracker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"taigent/internal/taiga"
	"taigent/internal/tools"
)

// summaryLimit is the rune length of descriptions in list results.
const summaryLimit = 100

func idProperty(description string) tools.Property {
	return tools.Property{Type: tools.TypeInteger, Description: description}
}

func tagsProperty() tools.Property {
	return tools.Property{
		Type:        tools.TypeArray,
		Description: "Tags to attach",
		Items:       &tools.PropertyItems{Type: tools.TypeString},
		Default:     []any{},
	}
}

// checkUpdates rejects an empty update set and any attempt to change
// fields the tracker owns.
func checkUpdates(updates map[string]any) error {
	if len(updates) == 0 {
		return fmt.Errorf("%w: updates must name at least one field", tools.ErrInvalidArguments)
	}
	for key := range updates {
		if taiga.IsProtectedField(key) {
			return fmt.Errorf("%w: updates may not change %q", tools.ErrInvalidArguments, key)
		}
	}
	return nil
}

// summarize reduces a description to plain text of at most summaryLimit
// runes, marking truncation with "...".
func summarize(description string) string {
	text := plainText(description)
	if utf8.RuneCountInString(text) <= summaryLimit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:summaryLimit])) + "..."
}

// plainText strips markup and collapses whitespace.
func plainText(s string) string {
	if !strings.ContainsRune(s, '<') {
		return strings.Join(strings.Fields(s), " ")
	}
	root, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func projectSummary(p *taiga.Project) map[string]any {
	return map[string]any{"id": p.ID, "name": p.Name, "slug": p.Slug}
}

func epicSummary(e *taiga.Epic) map[string]any {
	return map[string]any{"id": e.ID, "subject": e.Subject, "url": e.Permalink}
}

func storySummary(s *taiga.UserStory) map[string]any {
	return map[string]any{"id": s.ID, "subject": s.Subject, "url": s.Permalink}
}

func deleted(kind string, id int64) map[string]any {
	return map[string]any{"deleted": map[string]any{"type": kind, "id": id}}
}
