package domstream

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// scheduleLookahead scans parse-tree nodes strictly ahead of the blocked
// node for loadable resources and inserts a self-removing preload hint for
// each. The scanner keeps its own cursor, distinct from the walker's, and
// never re-inspects a node: cache warming continues monotonically across
// successive blocks. Structure is never mirrored here. Lock must be held.
func (s *Session) scheduleLookahead() {
	if s.blocked == nil {
		return
	}
	if s.lookahead == nil {
		s.lookahead = s.blockedParse
	} else if _, mirrored := s.shadow[s.lookahead]; mirrored {
		// The walker caught up with and passed the old scan position during
		// an unblocked stretch; restart strictly after the new block.
		s.lookahead = s.blockedParse
	}

	root := s.provider.Root()
	for {
		n := successor(s.lookahead, root)
		if n == nil {
			return
		}
		s.lookahead = n
		if n.Type != html.ElementNode {
			continue
		}
		if hint := s.preloadHint(n); hint != nil {
			s.insertHint(hint)
			s.watchLater(hint, true)
		}
	}
}

// successor is the pre-order traversal step used by the lookahead cursor.
func successor(n, root *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for ; n != nil && n != root; n = n.Parent {
		if n.NextSibling != nil {
			return n.NextSibling
		}
	}
	return nil
}

// preloadHint builds a transient link node warming the resource referenced
// by n, or nil when n references nothing loadable. Integrity and crossorigin
// attributes carry over so the warmed cache entry is actually usable.
func (s *Session) preloadHint(n *html.Node) *html.Node {
	var as, href, srcset, sizes string

	switch Kind(n) {
	case KindScript:
		href = attrVal(n, "src")
		as = "script"
	case KindLink:
		if !relContains(n, "stylesheet") || !s.matchMedia(attrVal(n, "media")) {
			return nil
		}
		href = attrVal(n, "href")
		as = "style"
	case KindImage:
		href = attrVal(n, "src")
		srcset = attrVal(n, "srcset")
		sizes = attrVal(n, "sizes")
		as = "image"
	default:
		return nil
	}
	if href == "" && srcset == "" {
		return nil
	}

	hint := &html.Node{Type: html.ElementNode, Data: "link", DataAtom: atom.Link}
	setAttr(hint, "rel", "preload")
	setAttr(hint, "as", as)
	if href != "" {
		setAttr(hint, "href", href)
	}
	if srcset != "" {
		setAttr(hint, "imagesrcset", srcset)
	}
	if sizes != "" {
		setAttr(hint, "imagesizes", sizes)
	}
	for _, key := range []string{"integrity", "crossorigin"} {
		if v := attrVal(n, key); v != "" {
			setAttr(hint, key, v)
		}
	}
	return hint
}

// insertHint places a hint ahead of the session's fixed insertion point. A
// hint is never registered in the shadow mapping; it is not part of the
// mirrored structure and removes itself on its own load or error.
func (s *Session) insertHint(hint *html.Node) {
	if s.before != nil {
		s.target.InsertBefore(hint, s.before)
	} else {
		s.target.AppendChild(hint)
	}
	s.obsInserted(hint, s.target, s.before)
}
