// Package jsexec provides an execution-capable document context backed by a
// goja JavaScript runtime. Relocated scripts are actually evaluated: inline
// sources run directly, external sources are fetched first. The runtime sees
// a minimal document object whose currentScript reflects the override
// installed by the session around each classic inline evaluation.
package jsexec

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/dop251/goja"
	"golang.org/x/net/html"

	"github.com/livefir/domstream"
)

// Fetcher retrieves the source of an external script.
type Fetcher func(url string) (string, error)

// Context implements domstream.ExecContext and
// domstream.CurrentScriptController on a goja runtime. All evaluation is
// serialized by an internal mutex; goja runtimes are not goroutine-safe.
type Context struct {
	// vmMu serializes runtime entry; csMu guards the currentScript pointer
	// separately, because scripts read document.currentScript while vmMu is
	// already held.
	vmMu    sync.Mutex
	csMu    sync.Mutex
	vm      *goja.Runtime
	fetch   Fetcher
	current *html.Node
}

// Option configures a Context.
type Option func(*Context)

// WithFetcher replaces the HTTP fetcher used for external script sources.
func WithFetcher(f Fetcher) Option {
	return func(c *Context) { c.fetch = f }
}

// New creates a Context with a fresh runtime and a document global.
func New(opts ...Option) (*Context, error) {
	c := &Context{
		vm:    goja.New(),
		fetch: httpFetch,
	}
	for _, opt := range opts {
		opt(c)
	}

	doc := c.vm.NewObject()
	if err := doc.DefineAccessorProperty("currentScript",
		c.vm.ToValue(func(goja.FunctionCall) goja.Value { return c.currentScriptValue() }),
		nil, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
		return nil, fmt.Errorf("failed to define currentScript: %w", err)
	}
	if err := c.vm.Set("document", doc); err != nil {
		return nil, fmt.Errorf("failed to expose document: %w", err)
	}
	return c, nil
}

// Runtime exposes the underlying goja runtime so callers can install
// additional globals before streaming begins.
func (c *Context) Runtime() *goja.Runtime {
	return c.vm
}

// RunScript evaluates a relocated script clone. done is called exactly once
// with the evaluation or fetch error.
func (c *Context) RunScript(script *html.Node, done func(err error)) {
	src := attrVal(script, "src")
	source := domstream.ScriptText(script)

	if src != "" {
		fetched, err := c.fetch(src)
		if err != nil {
			done(fmt.Errorf("failed to fetch script %s: %w", src, err))
			return
		}
		source = fetched
	}

	c.vmMu.Lock()
	_, err := c.vm.RunString(source)
	c.vmMu.Unlock()
	done(err)
}

// CurrentScript returns the installed currentScript override.
func (c *Context) CurrentScript() *html.Node {
	c.csMu.Lock()
	defer c.csMu.Unlock()
	return c.current
}

// SetCurrentScript installs or clears the currentScript override.
func (c *Context) SetCurrentScript(script *html.Node) {
	c.csMu.Lock()
	defer c.csMu.Unlock()
	c.current = script
}

// currentScriptValue builds the JS-visible view of the current script: an
// object with src and text properties, or null when no override is set.
func (c *Context) currentScriptValue() goja.Value {
	c.csMu.Lock()
	n := c.current
	c.csMu.Unlock()
	if n == nil {
		return goja.Null()
	}
	obj := c.vm.NewObject()
	_ = obj.Set("tagName", "SCRIPT")
	_ = obj.Set("src", attrVal(n, "src"))
	_ = obj.Set("text", domstream.ScriptText(n))
	attrs := c.vm.NewObject()
	for _, a := range n.Attr {
		_ = attrs.Set(a.Key, a.Val)
	}
	_ = obj.Set("attributes", attrs)
	return obj
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// httpFetch is the default Fetcher.
func httpFetch(url string) (string, error) {
	resp, err := http.Get(url)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
