package domstream

import (
	"golang.org/x/net/html"
)

// walk advances the mirror over every parse-tree node that has become
// available since the last pass, in document (pre-order) order. It returns
// early when a blocking node suspends the session; the cursor is retained so
// the next pass resumes exactly where this one paused, which keeps mirrored
// order identical to parse order across pauses. Lock must be held.
func (s *Session) walk() {
	for s.err == nil {
		n := s.nextParseNode()
		if n == nil {
			break
		}
		s.cursor = n

		switch n.Type {
		case html.TextNode:
			// Not attached yet: a later chunk may extend the logical run,
			// and inline script text must be complete before evaluation.
			s.pendingText = n

		case html.CommentNode:
			// Comments close the current inline scope like elements do,
			// otherwise a buffered text sibling would be mirrored after
			// the comment and break ordering.
			s.flushPending()
			if s.err != nil {
				return
			}
			s.mirrorComment(n)

		case html.ElementNode:
			s.flushPending()
			if s.err != nil {
				return
			}
			if s.mirrorElement(n) {
				s.scheduleLookahead()
				return
			}
		}
	}
	if s.err != nil {
		return
	}
	if s.closing && s.blocked == nil {
		// close() was called while content was still draining; the drain is
		// done now, so signal the completion waiter.
		s.finish()
	}
}

// nextParseNode returns the pre-order successor of the cursor among the
// currently available parse nodes, or nil when traversal is exhausted.
func (s *Session) nextParseNode() *html.Node {
	root := s.provider.Root()
	if s.cursor == nil {
		return root.FirstChild
	}
	if s.cursor.FirstChild != nil {
		return s.cursor.FirstChild
	}
	for n := s.cursor; n != nil && n != root; n = n.Parent {
		if n.NextSibling != nil {
			return n.NextSibling
		}
	}
	return nil
}

// mirrorElement clones an element into the live tree and reports whether it
// suspended the session.
func (s *Session) mirrorElement(n *html.Node) (blocked bool) {
	parent, ok := s.shadow[n.Parent]
	if !ok {
		// Pre-order guarantees the parent was processed first; a missing
		// entry means the parent itself was unresolvable. Skip.
		return false
	}

	clone := cloneShallow(n)
	s.shadow[n] = clone

	if isInlineHost(parent) {
		// Markup produced an element as a structural child of a script or
		// style element. Inline hosts accumulate only text, so the new
		// element becomes the inline-host candidate and is not inserted.
		// Documented stream quirk, deliberately not corrected.
		s.inlineHost = clone
		return false
	}

	s.insertNode(clone, parent)

	if isInlineHost(clone) {
		// Evaluation (for scripts) waits until the scope closes and the
		// inline text has been flushed.
		s.inlineHost = clone
		return false
	}

	if Kind(clone) == KindScript && attrVal(clone, "src") != "" {
		// External script: evaluation starts the fetch. Insertion itself
		// never executes anything.
		s.evaluate(clone)
		if s.err != nil {
			return false
		}
	}

	if s.isBlocking(clone) {
		s.blocked = clone
		s.blockedParse = n
		s.watchLater(clone, false)
		return true
	}
	return false
}

func (s *Session) mirrorComment(n *html.Node) {
	parent, ok := s.shadow[n.Parent]
	if !ok {
		return
	}
	clone := cloneShallow(n)
	s.shadow[n] = clone
	s.insertNode(clone, parent)
}

// flushPending attaches the open text run to its live parent and, if that
// closes an inline script scope, evaluates the script. Each pending buffer
// is flushed exactly once; each inline script is evaluated exactly once.
// Lock must be held.
func (s *Session) flushPending() {
	if t := s.pendingText; t != nil {
		s.pendingText = nil
		if parent, ok := s.shadow[t.Parent]; ok {
			txt := &html.Node{Type: html.TextNode, Data: t.Data}
			s.shadow[t] = txt
			s.insertNode(txt, parent)
		}
	}
	if host := s.inlineHost; host != nil {
		s.inlineHost = nil
		if Kind(host) == KindScript {
			s.evaluate(host)
		}
	}
}

// insertNode places a mirrored node in the live tree: before the session's
// fixed insertion point when the parent is the target root, else as the
// parent's last child. Scripts go through the suppressed-execution path.
func (s *Session) insertNode(n, parent *html.Node) {
	var before *html.Node
	if parent == s.target && s.before != nil {
		before = s.before
	}
	if Kind(n) == KindScript {
		s.insertScript(n, parent, before)
	} else if before != nil {
		parent.InsertBefore(n, before)
	} else {
		parent.AppendChild(n)
	}
	s.obsInserted(n, parent, before)
}
