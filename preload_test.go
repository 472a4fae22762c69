package domstream

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

// hintsIn collects the rel=preload links currently in the target.
func hintsIn(target *html.Node) []*html.Node {
	var hints []*html.Node
	for c := target.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "link" && relContains(c, "preload") {
			hints = append(hints, c)
		}
	}
	return hints
}

func TestPreloadLookahead(t *testing.T) {
	target, marker := newTarget()
	loader := newManualLoader()
	s, err := New(target, WithInsertBefore(marker), WithLoader(loader))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	chunk := `<script src="block.js"></script>` +
		`<img src="pic.png">` +
		`<link rel="stylesheet" href="style.css">` +
		`<script src="mod.js" type="module"></script>`
	if _, err := s.WriteString(chunk); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !s.Blocked() {
		t.Fatal("expected block on block.js")
	}

	hints := hintsIn(target)
	if len(hints) != 3 {
		t.Fatalf("got %d preload hints, want 3 (image, style, module script)", len(hints))
	}
	wantAs := map[string]string{
		"pic.png":   "image",
		"style.css": "style",
		"mod.js":    "script",
	}
	for _, h := range hints {
		href := attrVal(h, "href")
		if as, ok := wantAs[href]; !ok || attrVal(h, "as") != as {
			t.Errorf("hint href=%q as=%q unexpected", href, attrVal(h, "as"))
		}
		delete(wantAs, href)
	}

	// Each hint removes itself on its own completion, independent of the
	// main block.
	for _, h := range hints {
		loader.fire(t, h, false)
	}
	if left := hintsIn(target); len(left) != 0 {
		t.Fatalf("%d hints left after self-removal", len(left))
	}

	// Resume; the stylesheet blocks next, but nothing is re-scanned, so no
	// duplicate hints appear.
	loader.fire(t, loader.watched[0], true)
	if !s.Blocked() {
		t.Fatal("expected block on style.css")
	}
	if len(hintsIn(target)) != 0 {
		t.Error("lookahead re-scanned already-scanned nodes")
	}

	for _, n := range loader.pending() {
		loader.fire(t, n, true)
	}
	mustClose(t, s)

	got := region(t, target, marker)
	if strings.Contains(got, "preload") {
		t.Errorf("preload hint leaked into final structure: %q", got)
	}
	for _, want := range []string{"block.js", "pic.png", "style.css", "mod.js"} {
		if !strings.Contains(got, want) {
			t.Errorf("final structure missing %q: %q", want, got)
		}
	}
}

func TestPreloadDuringLaterWrites(t *testing.T) {
	// Content written while blocked is not mirrored, but the lookahead
	// still advances over it and warms its resources.
	target, marker := newTarget()
	loader := newManualLoader()
	s, err := New(target, WithInsertBefore(marker), WithLoader(loader))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := s.WriteString(`<script src="block.js"></script>`); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := s.WriteString(`<img src="late.png"><p>text</p>`); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if got := region(t, target, marker); strings.Contains(got, "img") {
		t.Fatalf("mirrored structure advanced while blocked: %q", got)
	}
	hints := hintsIn(target)
	if len(hints) != 1 || attrVal(hints[0], "href") != "late.png" {
		t.Fatalf("late resource not preloaded, hints = %v", hints)
	}

	loader.fire(t, loader.watched[0], true)
	loader.fire(t, hints[0], true)
	mustClose(t, s)
	if got := region(t, target, marker); !strings.Contains(got, `<p>text</p>`) {
		t.Errorf("content after block missing: %q", got)
	}
}

func TestPreloadAttributesCopied(t *testing.T) {
	target, marker := newTarget()
	loader := newManualLoader()
	s, err := New(target, WithInsertBefore(marker), WithLoader(loader))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	chunk := `<script src="block.js"></script>` +
		`<script src="sub.js" integrity="sha384-abc" crossorigin="anonymous"></script>` +
		`<img srcset="a.png 1x, b.png 2x" sizes="100vw">`
	if _, err := s.WriteString(chunk); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	hints := hintsIn(target)
	if len(hints) != 2 {
		t.Fatalf("hints = %d, want 2", len(hints))
	}
	script, img := hints[0], hints[1]
	if attrVal(script, "integrity") != "sha384-abc" || attrVal(script, "crossorigin") != "anonymous" {
		t.Errorf("integrity/crossorigin not copied: %v", script.Attr)
	}
	if attrVal(img, "imagesrcset") != "a.png 1x, b.png 2x" || attrVal(img, "imagesizes") != "100vw" {
		t.Errorf("responsive attributes not copied: %v", img.Attr)
	}

	// A print-only stylesheet ahead of the cursor gets no hint.
	if _, err := s.WriteString(`<link rel="stylesheet" media="print" href="p.css">`); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if len(hintsIn(target)) != 2 {
		t.Error("inapplicable stylesheet received a preload hint")
	}
}
