package domstream

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NodeKind classifies a mirrored node for blocking and preload decisions.
// The dispatch is closed: every node falls into exactly one kind.
type NodeKind int

const (
	KindGeneric NodeKind = iota
	KindScript
	KindLink
	KindStyle
	KindImage
	KindText
	KindComment
)

// Kind returns the classification of a parse- or live-tree node.
func Kind(n *html.Node) NodeKind {
	switch n.Type {
	case html.TextNode:
		return KindText
	case html.CommentNode:
		return KindComment
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script:
			return KindScript
		case atom.Link:
			return KindLink
		case atom.Style:
			return KindStyle
		case atom.Img, atom.Source:
			return KindImage
		}
	}
	return KindGeneric
}

// attrVal returns the value of the named attribute, or "".
func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// hasAttr reports attribute presence regardless of value, which is how
// boolean attributes like async and defer work.
func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// setAttr replaces or adds an attribute value.
func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// removeAttr deletes an attribute if present.
func removeAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// isClassicScript reports whether a script's type attribute denotes classic
// JavaScript rather than a module or a data block.
func isClassicScript(n *html.Node) bool {
	switch strings.TrimSpace(strings.ToLower(attrVal(n, "type"))) {
	case "", "text/javascript", "application/javascript",
		"application/ecmascript", "text/ecmascript":
		return true
	}
	return false
}

// isInlineHost reports whether live children of n accumulate as inline text:
// a script without an external source, or a style element.
func isInlineHost(n *html.Node) bool {
	switch Kind(n) {
	case KindScript:
		return attrVal(n, "src") == ""
	case KindStyle:
		return true
	}
	return false
}

// relContains reports whether a link's space-separated rel list contains the
// given token, ASCII case-insensitively.
func relContains(n *html.Node, token string) bool {
	for _, r := range strings.Fields(strings.ToLower(attrVal(n, "rel"))) {
		if r == token {
			return true
		}
	}
	return false
}

// isBlocking reports whether a freshly mirrored node must finish loading
// before mirroring continues: a classic external synchronous script, or an
// applicable stylesheet link.
func (s *Session) isBlocking(n *html.Node) bool {
	switch Kind(n) {
	case KindScript:
		return attrVal(n, "src") != "" &&
			isClassicScript(n) &&
			!hasAttr(n, "async") &&
			!hasAttr(n, "defer") &&
			!hasAttr(n, "nomodule")
	case KindLink:
		return relContains(n, "stylesheet") &&
			!hasAttr(n, "disabled") &&
			s.matchMedia(attrVal(n, "media"))
	}
	return false
}

// cloneShallow copies a node without its descendants.
func cloneShallow(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = append([]html.Attribute(nil), n.Attr...)
	}
	return c
}

// defaultMatchMedia is the media matcher used when the caller supplies none:
// only the universal media apply.
func defaultMatchMedia(media string) bool {
	switch strings.TrimSpace(strings.ToLower(media)) {
	case "", "all", "screen":
		return true
	}
	return false
}
