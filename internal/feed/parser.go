// Package feed turns raw RSS 2.0 / Atom 1.0 XML into normalized entries.
package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"

	"feedcache/internal/model"
)

const noTitle = "(no title)"

// node is a minimal element-tree view of the document. Only local names
// are kept: RSS and Atom producers disagree wildly on namespace
// declarations, so every lookup ignores prefixes and URIs.
type node struct {
	name     string
	attrs    []xml.Attr
	text     string
	children []*node
}

func (n *node) child(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (n *node) childrenNamed(name string) []*node {
	var out []*node
	for _, c := range n.children {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func (n *node) childText(name string) string {
	c := n.child(name)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.text)
}

func (n *node) attr(name string) string {
	for _, a := range n.attrs {
		if a.Name.Local == name {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

func parseTree(data []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	var root *node
	var stack []*node
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local, attrs: append([]xml.Attr(nil), t.Attr...)}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			} else if root == nil {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text += string(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("no root element")
	}
	return root, nil
}

// Parse extracts entries from feed XML, in document order. The dialect
// is chosen by the root element's local name: rss is RSS 2.0, feed is
// Atom, anything else degrades to a best-effort scan collecting item
// and entry elements anywhere in the tree.
func Parse(data []byte) ([]model.Entry, error) {
	root, err := parseTree(data)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var raw []*node
	switch root.name {
	case "rss":
		if channel := root.child("channel"); channel != nil {
			raw = channel.childrenNamed("item")
		}
	case "feed":
		raw = root.childrenNamed("entry")
	default:
		raw = scanEntries(root)
	}

	entries := make([]model.Entry, 0, len(raw))
	for _, n := range raw {
		if n.name == "entry" {
			entries = append(entries, atomEntry(n))
		} else {
			entries = append(entries, rssEntry(n))
		}
	}
	return entries, nil
}

func rssEntry(n *node) model.Entry {
	title := StripHTML(n.childText("title"))
	if title == "" {
		title = noTitle
	}
	return model.Entry{
		Title:     title,
		Link:      n.childText("link"),
		Published: n.childText("pubDate"),
		EntryID:   n.childText("guid"),
	}
}

func atomEntry(n *node) model.Entry {
	title := StripHTML(n.childText("title"))
	if title == "" {
		title = noTitle
	}
	published := n.childText("published")
	if published == "" {
		published = n.childText("updated")
	}
	return model.Entry{
		Title:     title,
		Link:      atomLink(n),
		Published: published,
		EntryID:   n.childText("id"),
	}
}

// atomLink picks an entry link: prefer one with rel="alternate" or no
// rel at all that carries an href, then fall back to the first link
// with any href. No usable link yields the empty string.
func atomLink(entry *node) string {
	links := entry.childrenNamed("link")
	for _, l := range links {
		rel, href := l.attr("rel"), l.attr("href")
		if href != "" && (rel == "alternate" || rel == "") {
			return href
		}
	}
	for _, l := range links {
		if href := l.attr("href"); href != "" {
			return href
		}
	}
	return ""
}

func scanEntries(root *node) []*node {
	var out []*node
	var walk func(*node)
	walk = func(n *node) {
		if n.name == "item" || n.name == "entry" {
			out = append(out, n)
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(root)
	return out
}
