// Package render turns article HTML into plain text for terminal output.
package render

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PlainText strips markup from fragment and collapses whitespace. When max is
// positive the result is cut to at most max runes, ending in "...".
func PlainText(fragment string, max int) string {
	root := &html.Node{Type: html.ElementNode, DataAtom: atom.Div, Data: "div"}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), root)
	if err != nil {
		return truncate(collapse(fragment), max)
	}

	var b strings.Builder
	for _, node := range nodes {
		writeText(&b, node)
	}
	return truncate(collapse(b.String()), max)
}

func writeText(b *strings.Builder, node *html.Node) {
	switch node.Type {
	case html.TextNode:
		b.WriteString(node.Data)
		return
	case html.ElementNode:
		switch node.DataAtom {
		case atom.Script, atom.Style, atom.Head, atom.Noscript:
			return
		case atom.Br:
			b.WriteByte(' ')
			return
		case atom.Img:
			if alt := attr(node, "alt"); alt != "" {
				b.WriteString(" [" + alt + "] ")
			}
			return
		}
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		writeText(b, child)
	}

	if node.Type == html.ElementNode && isBlock(node.DataAtom) {
		b.WriteByte(' ')
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Li, atom.Ul, atom.Ol, atom.Blockquote, atom.Pre,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Tr, atom.Td, atom.Th, atom.Table, atom.Figure, atom.Figcaption:
		return true
	}
	return false
}

func attr(node *html.Node, key string) string {
	for _, a := range node.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 3 {
		return string([]rune(s)[:max])
	}
	cut := []rune(s)[:max-3]
	return strings.TrimRight(string(cut), " ") + "..."
}
