package extract

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-slug"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var sectionAttributes = []string{"id", "data-section", "data-section-id"}

// HTMLExtractor reads field values from a rendered HTML snapshot. Regions are
// located by id, data-section or data-section-id. Elements marked with
// data-field or data-content-key win over the heuristic names.
type HTMLExtractor struct {
	mu   sync.RWMutex
	root *html.Node
}

// NewHTMLExtractor parses document once. A document that fails to parse
// produces an extractor that returns empty maps.
func NewHTMLExtractor(document []byte) *HTMLExtractor {
	root, err := html.Parse(bytes.NewReader(document))
	if err != nil {
		root = nil
	}
	return &HTMLExtractor{root: root}
}

// Reload swaps the snapshot, e.g. after a fresh server render.
func (e *HTMLExtractor) Reload(document []byte) {
	root, err := html.Parse(bytes.NewReader(document))
	if err != nil {
		root = nil
	}
	e.mu.Lock()
	e.root = root
	e.mu.Unlock()
}

func (e *HTMLExtractor) Extract(sectionID string) (out map[string]string) {
	out = map[string]string{}
	defer func() {
		if recover() != nil {
			out = map[string]string{}
		}
	}()

	sectionID = strings.TrimSpace(sectionID)
	if sectionID == "" {
		return out
	}
	e.mu.RLock()
	root := e.root
	e.mu.RUnlock()
	if root == nil {
		return out
	}

	region := findRegion(root, sectionID)
	if region == nil {
		return out
	}

	h := &heuristics{values: map[string]string{}}
	explicit := map[string]string{}
	walk(region, func(n *html.Node) bool {
		if name := explicitName(n); name != "" {
			if _, seen := explicit[name]; !seen {
				if n.DataAtom == atom.Img {
					explicit[name] = attr(n, "src")
					if alt := attr(n, "alt"); alt != "" {
						explicit[name+AltSuffix] = alt
					}
				} else {
					explicit[name] = text(n)
				}
			}
			return false
		}
		h.visit(n)
		return true
	})

	for k, v := range h.values {
		if v != "" {
			out[k] = v
		}
	}
	for k, v := range explicit {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

type heuristics struct {
	values     map[string]string
	headings   int
	paragraphs int
	image      bool
	button     bool
}

func (h *heuristics) visit(n *html.Node) {
	if n.Type != html.ElementNode {
		return
	}
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		h.headings++
		switch h.headings {
		case 1:
			h.values["title"] = text(n)
		case 2:
			h.values["subtitle"] = text(n)
		}
	case atom.P:
		value := text(n)
		if value == "" {
			return
		}
		h.paragraphs++
		if h.paragraphs == 1 {
			h.values["description"] = value
		} else {
			h.values[fmt.Sprintf("paragraph_%d", h.paragraphs)] = value
		}
	case atom.Img:
		if !h.image {
			h.image = true
			h.values[FieldImage] = attr(n, "src")
			h.values[FieldImageAlt] = attr(n, "alt")
		}
	default:
		if !h.button && isButton(n) {
			h.button = true
			h.values["button_text"] = text(n)
		}
	}
}

func isButton(n *html.Node) bool {
	if n.DataAtom == atom.Button || attr(n, "role") == "button" {
		return true
	}
	if n.DataAtom == atom.A {
		for _, class := range strings.Fields(attr(n, "class")) {
			if class == "button" || class == "btn" {
				return true
			}
		}
	}
	return false
}

func findRegion(root *html.Node, sectionID string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode {
			for _, name := range sectionAttributes {
				if attr(n, name) == sectionID {
					found = n
					return false
				}
			}
		}
		return true
	})
	return found
}

func explicitName(n *html.Node) string {
	if n.Type != html.ElementNode {
		return ""
	}
	raw := attr(n, "data-field")
	if raw == "" {
		raw = attr(n, "data-content-key")
	}
	if raw == "" {
		return ""
	}
	return fieldName(raw)
}

func fieldName(raw string) string {
	normalized, err := slug.Normalize(raw)
	if err != nil || normalized == "" {
		return ""
	}
	return strings.ReplaceAll(normalized, "-", "_")
}

// walk visits n and its descendants depth first. Returning false from fn
// skips the node's children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
		return c.DataAtom != atom.Script && c.DataAtom != atom.Style
	})
	return strings.Join(strings.Fields(b.String()), " ")
}
