// Package xmlnode builds XML documents from slash-separated paths.
//
// Jenkins job definitions are deep, repetitive XML trees. Building them
// node-by-node drowns the interesting structure, so this package lets a
// caller address elements by path, creating intermediate elements on demand:
//
//	n := xmlnode.New("project")
//	n.SetText("scm/branches/branchSpec/name", "master")
//	n.SetText("builders/shell+/command", "make")   // "+" always appends a new element
//	n.Set("scm@class", "hudson.plugins.git.GitSCM") // "@" addresses an attribute
//
// Output is deterministic: attributes are sorted, indentation is fixed, and
// repeated serialization of the same tree is byte-identical, which the
// publisher relies on to diff against deployed jobs.
package xmlnode

import (
	"io"
	"sort"
	"strings"
)

// Node is one XML element.
type Node struct {
	Tag      string
	Children []*Node

	attrs   map[string]string
	text    string
	hasText bool
}

// New returns a childless element with the given tag.
func New(tag string) *Node {
	return &Node{Tag: tag}
}

// Path returns the element addressed by the slash-separated path, creating
// every missing element along the way. A part ending in "+" appends a fresh
// element even when a sibling with that tag exists. The empty path returns
// the node itself.
func (n *Node) Path(path string) *Node {
	if path == "" {
		return n
	}
	current := n
	for _, part := range strings.Split(path, "/") {
		if forced := strings.TrimSuffix(part, "+"); forced != part {
			current = current.appendChild(forced)
			continue
		}
		if found := current.Find(part); found != nil {
			current = found
			continue
		}
		current = current.appendChild(part)
	}
	return current
}

// Set assigns text or, when the path contains "@", an attribute:
// "a/b" sets the text of element a/b, "a/b@class" sets b's class attribute.
// It returns the addressed element.
func (n *Node) Set(path, value string) *Node {
	if elemPath, attr, ok := strings.Cut(path, "@"); ok {
		elem := n.Path(elemPath)
		if elem.attrs == nil {
			elem.attrs = map[string]string{}
		}
		elem.attrs[attr] = value
		return elem
	}
	return n.SetText(path, value)
}

// SetText assigns the text content of the element at path.
func (n *Node) SetText(path, value string) *Node {
	elem := n.Path(path)
	elem.text = value
	elem.hasText = true
	return elem
}

// Text returns the element's text content.
func (n *Node) Text() string {
	return n.text
}

// Find returns the first direct child with the given tag, or nil.
func (n *Node) Find(tag string) *Node {
	for _, child := range n.Children {
		if child.Tag == tag {
			return child
		}
	}
	return nil
}

// Remove detaches the first direct child with the given tag and returns it,
// or nil when absent.
func (n *Node) Remove(tag string) *Node {
	for i, child := range n.Children {
		if child.Tag == tag {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			return child
		}
	}
	return nil
}

// Append attaches an existing element as the last child.
func (n *Node) Append(child *Node) {
	n.Children = append(n.Children, child)
}

// ClearAttrs drops every attribute of the element.
func (n *Node) ClearAttrs() {
	n.attrs = nil
}

func (n *Node) appendChild(tag string) *Node {
	child := New(tag)
	n.Children = append(n.Children, child)
	return child
}

const indentUnit = "  "

// Contents serializes the tree. With header, the XML declaration is
// prepended the way Jenkins emits it.
func (n *Node) Contents(header bool) string {
	var b strings.Builder
	if header {
		b.WriteString("<?xml version=\"1.0\" ?>\n")
	}
	n.write(&b, 0)
	return b.String()
}

// WriteTo serializes the tree without the XML declaration.
func (n *Node) WriteTo(w io.Writer) error {
	var b strings.Builder
	n.write(&b, 0)
	_, err := io.WriteString(w, b.String())
	return err
}

func (n *Node) write(b *strings.Builder, depth int) {
	indent := strings.Repeat(indentUnit, depth)
	b.WriteString(indent)
	b.WriteByte('<')
	b.WriteString(n.Tag)

	names := make([]string, 0, len(n.attrs))
	for name := range n.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteByte(' ')
		b.WriteString(name)
		b.WriteString(`="`)
		b.WriteString(escape(n.attrs[name], false))
		b.WriteByte('"')
	}

	if len(n.Children) == 0 && !n.hasText {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')

	for _, child := range n.Children {
		b.WriteByte('\n')
		child.write(b, depth+1)
	}

	if n.hasText {
		b.WriteString(escape(n.text, true))
	} else {
		b.WriteByte('\n')
		b.WriteString(indent)
	}
	b.WriteString("</")
	b.WriteString(n.Tag)
	b.WriteByte('>')
}

// escape encodes the XML special characters. Carriage returns in text become
// the "&#xd;" entity: Jenkins stores batch commands with CRLF endings and
// loses the CR on round-trips otherwise.
func escape(s string, text bool) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '\r':
			if text {
				b.WriteString("&#xd;")
			} else {
				b.WriteRune(r)
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
