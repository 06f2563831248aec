package document

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Node is one element in the parsed XML tree. Names are local names with
// any namespace stripped, matching how the source schema variants are
// addressed regardless of the namespace URI a producer chose.
type Node struct {
	Name     string
	Attrs    map[string]string
	Text     string
	children []*Node
}

// Children returns child elements with the given local name, in document
// order. An empty name returns all children.
func (n *Node) Children(name string) []*Node {
	if name == "" {
		return n.children
	}
	var out []*Node
	for _, c := range n.children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Child returns the first child with the given local name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildText returns the trimmed text of the first child with the given
// name, or "" when absent.
func (n *Node) ChildText(name string) string {
	if c := n.Child(name); c != nil {
		return strings.TrimSpace(c.Text)
	}
	return ""
}

// XMLDocument is the addressable view over an XML document.
type XMLDocument struct {
	root      *Node
	signature Signature
	counts    map[string]int
}

// NewXML parses raw XML bytes into an addressable document. Malformed XML
// returns an error wrapping ErrUnaddressable.
func NewXML(raw []byte) (*XMLDocument, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	sig := newSignatureBuilder()
	counts := make(map[string]int)

	var root *Node
	var stack []*Node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: malformed xml: %v", ErrUnaddressable, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			node := &Node{Name: t.Name.Local}
			if len(t.Attr) > 0 {
				node.Attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					node.Attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("%w: multiple root elements", ErrUnaddressable)
				}
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, node)
			}
			sig.push(t.Name.Local, len(stack))
			counts[t.Name.Local]++
			stack = append(stack, node)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrUnaddressable)
	}
	return &XMLDocument{root: root, signature: sig.sum(), counts: counts}, nil
}

// Root returns the local name of the root element.
func (d *XMLDocument) Root() string {
	return d.root.Name
}

// RootNode exposes the parsed tree for structured traversal, e.g. walking
// reading sessions and region contours.
func (d *XMLDocument) RootNode() *Node {
	return d.root
}

// ElementCounts returns how many times each local element name occurs.
func (d *XMLDocument) ElementCounts() map[string]int {
	return d.counts
}

// LeafPaths returns the slash-separated path of every leaf element,
// deduplicated and sorted. Used for extra-field validation.
func (d *XMLDocument) LeafPaths() []string {
	seen := map[string]bool{}
	var walk func(n *Node, prefix string)
	walk = func(n *Node, prefix string) {
		if len(n.children) == 0 {
			seen[prefix] = true
			return
		}
		for _, c := range n.children {
			p := c.Name
			if prefix != "" {
				p = prefix + "/" + c.Name
			}
			walk(c, p)
		}
	}
	walk(d.root, "")
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the text (or attribute) values at a slash-separated path
// of local names relative to the root element. Repeated elements fan out,
// so "readingSession/servicingRadiologistID" over a four-session document
// yields four values. A final "@name" segment selects an attribute.
func (d *XMLDocument) Resolve(path string) (Value, bool) {
	elemPath, attr := splitAttr(path)
	nodes := d.match(elemPath)
	if len(nodes) == 0 {
		return Value{}, false
	}
	var raw []string
	for _, n := range nodes {
		if attr != "" {
			v, ok := n.Attrs[attr]
			if !ok {
				continue
			}
			raw = append(raw, v)
			continue
		}
		raw = append(raw, strings.TrimSpace(n.Text))
	}
	if len(raw) == 0 {
		return Value{}, false
	}
	return Value{raw: raw}, true
}

// Exists reports whether path matches at least one node (attribute paths
// require the attribute to be present).
func (d *XMLDocument) Exists(path string) bool {
	_, ok := d.Resolve(path)
	if ok {
		return true
	}
	// Elements with no text still exist structurally.
	elemPath, attr := splitAttr(path)
	return attr == "" && len(d.match(elemPath)) > 0
}

// Count returns the number of nodes matching path.
func (d *XMLDocument) Count(path string) int {
	elemPath, _ := splitAttr(path)
	return len(d.match(elemPath))
}

// Signature returns the structural skeleton hash.
func (d *XMLDocument) Signature() Signature {
	return d.signature
}

// Format reports FormatXML.
func (d *XMLDocument) Format() Format {
	return FormatXML
}

// match walks a slash-separated path from the root, fanning out over
// repeated elements at every level.
func (d *XMLDocument) match(path string) []*Node {
	if path == "" || path == "/" {
		return []*Node{d.root}
	}
	segs := strings.Split(strings.Trim(path, "/"), "/")
	frontier := []*Node{d.root}
	for _, seg := range segs {
		var next []*Node
		for _, n := range frontier {
			next = append(next, n.Children(seg)...)
		}
		if len(next) == 0 {
			return nil
		}
		frontier = next
	}
	return frontier
}

func splitAttr(path string) (elemPath, attr string) {
	if i := strings.LastIndex(path, "@"); i >= 0 {
		return strings.TrimSuffix(path[:i], "/"), path[i+1:]
	}
	return path, ""
}
