package parser

import (
	"strings"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"golang.org/x/net/html"
)

// document is an alert body reduced to its visible text and its two-column table rows.
type document struct {
	// labels maps folded, lowercased row labels to the first value seen for them.
	labels map[string]string
	text   string
}

// readDocument parses body as HTML. Plain-text bodies come out as a single text node,
// so they need no separate path.
func readDocument(body string) document {
	doc := document{labels: map[string]string{}}

	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		doc.text = body
		return doc
	}

	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "head":
				return
			case "tr":
				doc.addRow(cellTexts(n))
			}
		}
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	doc.text = strings.Join(parts, "\n")
	return doc
}

func (d document) addRow(texts []string) {
	if len(texts) < 2 {
		return
	}
	label := labelKey(texts[0])
	if _, seen := d.labels[label]; !seen && label != "" {
		d.labels[label] = texts[1]
	}
}

// label returns the value of the first of keys present in the table.
func (d document) label(keys ...string) string {
	for _, k := range keys {
		if v, ok := d.labels[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

func labelKey(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), ":")
	return strings.ToLower(common.FoldAccents(common.CollapseSpace(s)))
}

// cellTexts returns the non-empty text strings under n in document order.
func cellTexts(n *html.Node) []string {
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := common.CollapseSpace(n.Data); s != "" {
				out = append(out, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}
