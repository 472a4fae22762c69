package domstream

import "golang.org/x/net/html"

// ExecContext is the execution-capable document context scripts are relocated
// into. The detached parse tree and the mirrored target are both inert; actual
// evaluation always goes through this collaborator.
type ExecContext interface {
	// RunScript evaluates a relocated script clone. For external scripts the
	// context is expected to fetch the source itself. done must be called
	// exactly once, on success or failure; it may be called synchronously.
	RunScript(script *html.Node, done func(err error))
}

// CurrentScriptController is the document.currentScript override point. An
// ExecContext that can emulate the "currently executing script" for classic
// inline scripts implements it; one that cannot will cause evaluation of such
// scripts to fail with ErrNoCurrentScript.
type CurrentScriptController interface {
	CurrentScript() *html.Node
	SetCurrentScript(script *html.Node)
}

// ScriptInserter is an optional ExecContext capability: insert a script
// element into the live tree without triggering any implicit execution the
// host tree may have. Contexts without it get the internal attribute-swap
// fallback instead.
type ScriptInserter interface {
	InsertScript(script, parent, before *html.Node)
}

// Loader reports resource load completion for nodes the session inserts.
// Implementations call fn exactly once per Watch, with loaded=false on error.
// Load and error are mutually exclusive; either one resumes a blocked
// session.
type Loader interface {
	Watch(n *html.Node, fn func(loaded bool))
}

// Observer receives live-tree mutations as the session performs them.
// Callbacks run synchronously while the session holds its internal lock and
// must not call back into the session.
type Observer interface {
	NodeInserted(n, parent, before *html.Node)
	NodeRemoved(n *html.Node)
}

// NopExecContext is the default execution context: scripts are relocated but
// never actually evaluated, which is the correct behavior for server-side
// mirroring where no script host exists. It still honors the currentScript
// discipline so inline scripts do not fail the session.
type NopExecContext struct {
	current *html.Node
}

// RunScript completes immediately without evaluating anything.
func (c *NopExecContext) RunScript(script *html.Node, done func(err error)) {
	done(nil)
}

// CurrentScript returns the installed override, if any.
func (c *NopExecContext) CurrentScript() *html.Node { return c.current }

// SetCurrentScript installs the override.
func (c *NopExecContext) SetCurrentScript(script *html.Node) { c.current = script }

// EagerLoader is the default Loader: every watched node reports a successful
// load synchronously. With it, blocking nodes never actually pause the
// session, which suits hosts that do no real fetching.
type EagerLoader struct{}

// Watch fires fn immediately.
func (EagerLoader) Watch(n *html.Node, fn func(loaded bool)) { fn(true) }
