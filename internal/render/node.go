// Package render turns view data into HTML fragments. Every function is
// pure: it only builds golang.org/x/net/html nodes and never does I/O.
package render

import (
	"bytes"
	"io"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// El creates an element. attrs are key/value pairs.
func El(tag string, attrs ...string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

// ElText creates an element holding a single text child.
func ElText(tag, text string, attrs ...string) *html.Node {
	return Append(El(tag, attrs...), Text(text))
}

func Text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// Append adds children to parent, skipping nils, and returns parent.
func Append(parent *html.Node, children ...*html.Node) *html.Node {
	for _, c := range children {
		if c != nil {
			parent.AppendChild(c)
		}
	}
	return parent
}

// SetAttr sets or replaces an attribute.
func SetAttr(n *html.Node, key, val string) *html.Node {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return n
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	return n
}

// Clone returns a detached deep copy of n, so a cached fragment can be
// attached to more than one page.
func Clone(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(Clone(child))
	}
	return c
}

// Hidden is a hidden form input.
func Hidden(name, value string) *html.Node {
	return El("input", "type", "hidden", "name", name, "value", value)
}

// Render writes n and its subtree to w.
func Render(w io.Writer, n *html.Node) error {
	return html.Render(w, n)
}

// String renders n to a string. Rendering a well-formed tree never fails,
// so errors are dropped.
func String(n *html.Node) string {
	var buf bytes.Buffer
	_ = html.Render(&buf, n)
	return buf.String()
}
