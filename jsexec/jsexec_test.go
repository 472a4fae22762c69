package jsexec

import (
	"context"
	"fmt"
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/livefir/domstream"
)

func stream(t *testing.T, ctx *Context, chunks ...string) {
	t.Helper()
	target := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	s, err := domstream.New(target, domstream.WithExecContext(ctx))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for _, c := range chunks {
		if _, err := s.WriteString(c); err != nil {
			t.Fatalf("Write(%q) error = %v", c, err)
		}
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestInlineScriptRuns(t *testing.T) {
	ctx, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stream(t, ctx, `<script>var x = 1 + 2;</script><p>done</p>`)

	if got := ctx.Runtime().Get("x"); got == nil || got.ToInteger() != 3 {
		t.Errorf("x = %v, want 3", got)
	}
}

func TestInlineScriptAssembledAcrossChunks(t *testing.T) {
	ctx, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stream(t, ctx, `<script>var words = "he`, `llo";</script>`)

	if got := ctx.Runtime().Get("words"); got == nil || got.String() != "hello" {
		t.Errorf("words = %v, want hello", got)
	}
}

func TestCurrentScriptVisible(t *testing.T) {
	// The running script observes itself as document.currentScript, and the
	// override is cleared once evaluation completed.
	ctx, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stream(t, ctx,
		`<script data-name="me">var seen = document.currentScript.attributes["data-name"];</script><p>x</p>`)

	if got := ctx.Runtime().Get("seen"); got == nil || got.String() != "me" {
		t.Errorf("seen = %v, want me", got)
	}
	if ctx.CurrentScript() != nil {
		t.Error("currentScript override not restored after evaluation")
	}
}

func TestExternalScriptFetched(t *testing.T) {
	var fetched []string
	ctx, err := New(WithFetcher(func(url string) (string, error) {
		fetched = append(fetched, url)
		return "var remote = true;", nil
	}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stream(t, ctx, `<script src="https://cdn.example/app.js" async></script>`)

	if len(fetched) != 1 || fetched[0] != "https://cdn.example/app.js" {
		t.Fatalf("fetched = %v", fetched)
	}
	if got := ctx.Runtime().Get("remote"); got == nil || !got.ToBoolean() {
		t.Errorf("remote = %v, want true", got)
	}
}

func TestFetchFailureDoesNotPoisonRuntime(t *testing.T) {
	ctx, err := New(WithFetcher(func(url string) (string, error) {
		return "", fmt.Errorf("unreachable")
	}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	// Load failure is a normal completion for the stream; later scripts
	// still run.
	stream(t, ctx,
		`<script src="gone.js" async></script><script>var after = 1;</script>`)

	if got := ctx.Runtime().Get("after"); got == nil || got.ToInteger() != 1 {
		t.Errorf("after = %v, want 1", got)
	}
}
