package domstream

import (
	"sync"

	"golang.org/x/net/html"
)

// inertScriptType marks a script as non-executable for the duration of its
// insertion, so a host tree with implicit auto-execution machinery cannot
// fire it out of order. Evaluation is always triggered explicitly by the
// walker.
const inertScriptType = "streaming/inert"

// insertScript inserts a script element without triggering execution. An
// ExecContext exposing a ScriptInserter primitive handles that directly;
// otherwise the script's type is swapped to an inert marker around the
// insertion and restored immediately after.
func (s *Session) insertScript(n, parent, before *html.Node) {
	if si, ok := s.exec.(ScriptInserter); ok {
		si.InsertScript(n, parent, before)
		return
	}

	orig, had := "", false
	for _, a := range n.Attr {
		if a.Key == "type" {
			orig, had = a.Val, true
			break
		}
	}
	setAttr(n, "type", inertScriptType)
	if before != nil {
		parent.InsertBefore(n, before)
	} else {
		parent.AppendChild(n)
	}
	if had {
		setAttr(n, "type", orig)
	} else {
		removeAttr(n, "type")
	}
}

// evaluate runs a mirrored script element in the execution context. For
// classic inline scripts the context's currentScript override is installed
// for the duration of evaluation and restored on both the completion and the
// failure path. Module and external scripts get no currentScript emulation;
// that asymmetry mirrors host behavior and is a documented limitation.
func (s *Session) evaluate(script *html.Node) {
	clone := cloneForExec(script)
	external := attrVal(script, "src") != ""

	if external || !isClassicScript(script) {
		s.exec.RunScript(clone, func(error) {})
		return
	}

	ctrl, ok := s.exec.(CurrentScriptController)
	if !ok {
		s.fail(ErrNoCurrentScript)
		return
	}

	prev := ctrl.CurrentScript()
	ctrl.SetCurrentScript(clone)
	var once sync.Once
	restore := func() {
		once.Do(func() { ctrl.SetCurrentScript(prev) })
	}
	s.exec.RunScript(clone, func(error) { restore() })
}

// cloneForExec copies a script and its assembled inline text for relocation
// into the execution context. The live node stays in the target; the context
// runs its own copy, since detached trees may not execute scripts reliably.
func cloneForExec(script *html.Node) *html.Node {
	clone := cloneShallow(script)
	for c := script.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			clone.AppendChild(&html.Node{Type: html.TextNode, Data: c.Data})
		}
	}
	return clone
}

// ScriptText returns the assembled inline source of a script or style node.
func ScriptText(n *html.Node) string {
	var text string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			text += c.Data
		}
	}
	return text
}
