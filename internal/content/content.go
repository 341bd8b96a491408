// Package content normalises minutes HTML: it strips markup that is not
// allowed in a stored document and derives the plain-text statistics shown
// alongside it.
package content

import (
	"bytes"
	"fmt"
	"math"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const wordsPerMinute = 200

// Document is sanitized HTML plus its derived text statistics.
type Document struct {
	HTML              string
	PlainText         string
	WordCount         int
	EstimatedReadTime int
}

var allowedTags = map[atom.Atom]bool{
	atom.P: true, atom.Br: true, atom.Hr: true, atom.Div: true, atom.Span: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Strong: true, atom.B: true, atom.Em: true, atom.I: true, atom.U: true, atom.S: true,
	atom.Sub: true, atom.Sup: true, atom.Blockquote: true, atom.Pre: true, atom.Code: true,
	atom.Ul: true, atom.Ol: true, atom.Li: true, atom.A: true,
	atom.Table: true, atom.Thead: true, atom.Tbody: true, atom.Tr: true, atom.Th: true, atom.Td: true,
}

// dropped together with everything inside them
var droppedTags = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Iframe: true, atom.Object: true,
	atom.Embed: true, atom.Template: true, atom.Noscript: true, atom.Form: true,
	atom.Svg: true, atom.Math: true, atom.Head: true, atom.Title: true,
}

var blockTags = map[atom.Atom]bool{
	atom.P: true, atom.Br: true, atom.Hr: true, atom.Div: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Pre: true, atom.Table: true, atom.Ul: true, atom.Ol: true,
}

// Normalize sanitizes raw HTML and computes the plain-text statistics.
func Normalize(raw string) (Document, error) {
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(raw), root)
	if err != nil {
		return Document{}, fmt.Errorf("parse content: %w", err)
	}

	var out bytes.Buffer
	for _, n := range nodes {
		clean := sanitize(n)
		for _, c := range clean {
			if err := html.Render(&out, c); err != nil {
				return Document{}, fmt.Errorf("render content: %w", err)
			}
		}
	}

	text := PlainText(nodes)
	words := WordCount(text)
	return Document{
		HTML:              out.String(),
		PlainText:         text,
		WordCount:         words,
		EstimatedReadTime: ReadTime(words),
	}, nil
}

// sanitize returns the allowed rendition of n. Unknown elements are
// unwrapped, so their allowed children survive in place.
func sanitize(n *html.Node) []*html.Node {
	switch n.Type {
	case html.TextNode:
		return []*html.Node{{Type: html.TextNode, Data: n.Data}}
	case html.ElementNode:
	default:
		return nil
	}
	if droppedTags[n.DataAtom] {
		return nil
	}

	var children []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, sanitize(c)...)
	}
	if !allowedTags[n.DataAtom] {
		return children
	}

	clean := &html.Node{Type: html.ElementNode, Data: n.Data, DataAtom: n.DataAtom}
	if n.DataAtom == atom.A {
		for _, attr := range n.Attr {
			if attr.Namespace == "" && attr.Key == "href" && safeHref(attr.Val) {
				clean.Attr = append(clean.Attr, html.Attribute{Key: "href", Val: attr.Val})
			}
		}
	}
	for _, c := range children {
		clean.AppendChild(c)
	}
	return []*html.Node{clean}
}

func safeHref(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "mailto":
		return true
	default:
		return false
	}
}

// PlainText flattens parsed nodes into whitespace-normalised text. Block
// elements break words apart.
func PlainText(nodes []*html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if droppedTags[n.DataAtom] {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTags[n.DataAtom] {
			b.WriteByte(' ')
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return strings.Join(strings.FieldsFunc(b.String(), unicode.IsSpace), " ")
}

func WordCount(text string) int {
	return len(strings.FieldsFunc(text, unicode.IsSpace))
}

// ReadTime is the estimated reading time in whole minutes, rounded up.
func ReadTime(words int) int {
	if words <= 0 {
		return 0
	}
	return int(math.Ceil(float64(words) / wordsPerMinute))
}
