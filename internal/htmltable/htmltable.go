// Package htmltable extracts tabular data from HTML documents. The scraped
// disclosure sites publish their data as plain <table> markup with no stable
// ids, so extraction works positionally: parse every table, then let the
// caller select by class or by size.
package htmltable

import (
	"bytes"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// Cell is one <td> or <th>. Text holds the flattened text content with <br>
// rendered as a newline, so compound cells can be split back into lines.
// Links holds the href of every anchor inside the cell, in document order.
type Cell struct {
	Text  string
	Links []string
}

// Table is the extracted content of one <table> element.
type Table struct {
	// Class is the value of the table's class attribute, if any.
	Class string
	Rows  [][]Cell
}

// Header returns the first row's cell texts, or nil for an empty table.
func (t *Table) Header() []string {
	if len(t.Rows) == 0 {
		return nil
	}
	out := make([]string, len(t.Rows[0]))
	for i, c := range t.Rows[0] {
		out[i] = c.Text
	}
	return out
}

// HeaderIndex maps lowercased header names to their column positions.
func (t *Table) HeaderIndex() map[string]int {
	idx := make(map[string]int)
	for i, h := range t.Header() {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

// Body returns all rows after the header row.
func (t *Table) Body() [][]Cell {
	if len(t.Rows) < 2 {
		return nil
	}
	return t.Rows[1:]
}

// Parse extracts every table from an HTML document.
func Parse(body []byte) ([]*Table, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "parse html")
	}
	var tables []*Table
	walk(doc, func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "table" {
			tables = append(tables, extractTable(n))
		}
	})
	return tables, nil
}

// FindByClass returns the first table whose class attribute contains the
// given class name, or nil.
func FindByClass(tables []*Table, class string) *Table {
	for _, t := range tables {
		for _, c := range strings.Fields(t.Class) {
			if c == class {
				return t
			}
		}
	}
	return nil
}

// Largest returns the table with the most body rows, or nil when the
// document has no tables. Useful for pages whose main data table carries no
// identifying attributes.
func Largest(tables []*Table) *Table {
	var best *Table
	for _, t := range tables {
		if best == nil || len(t.Rows) > len(best.Rows) {
			best = t
		}
	}
	return best
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func extractTable(table *html.Node) *Table {
	t := &Table{Class: attr(table, "class")}
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "tr":
				t.Rows = append(t.Rows, extractRow(n))
				return
			case "table":
				if n != table {
					// Nested tables are extracted separately by Parse.
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(table)
	return t
}

func extractRow(tr *html.Node) []Cell {
	var cells []Cell
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
			cells = append(cells, extractCell(c))
		}
	}
	return cells
}

func extractCell(td *html.Node) Cell {
	var cell Cell
	var sb strings.Builder
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			sb.WriteString("\n")
		case n.Type == html.ElementNode && n.Data == "a":
			if href := attr(n, "href"); href != "" {
				cell.Links = append(cell.Links, href)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(td)
	cell.Text = normalizeSpace(sb.String())
	return cell
}

// normalizeSpace collapses runs of spaces and tabs but preserves the
// newlines that stand in for <br>, trimming each resulting line.
func normalizeSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
