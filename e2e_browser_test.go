package domstream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// TestE2EBrowserRenderedRegion streams a fragment server-side, serves the
// mirrored region as a page and verifies a real browser renders it. Skipped
// in short mode; requires a local Chrome.
func TestE2EBrowserRenderedRegion(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping e2e browser test in short mode")
	}

	target := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	setAttr(target, "id", "app")
	s, err := New(target)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	chunks := []string{
		`<h1 id="title">Stre`,
		`amed</h1><p id="body">arrived in `,
		`pieces</p>`,
	}
	for _, c := range chunks {
		if _, err := s.WriteString(c); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	regionHTML, err := RenderRegion(target)
	if err != nil {
		t.Fatalf("RenderRegion() error = %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<!DOCTYPE html><html><body><div id="app">%s</div></body></html>`, regionHTML)
	}))
	defer srv.Close()

	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()
	ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var title, body string
	err = chromedp.Run(ctx,
		chromedp.Navigate(srv.URL),
		chromedp.WaitVisible("#app", chromedp.ByID),
		chromedp.Text("#title", &title),
		chromedp.Text("#body", &body),
	)
	if err != nil {
		t.Fatalf("browser run failed: %v", err)
	}
	if title != "Streamed" {
		t.Errorf("title = %q, want %q", title, "Streamed")
	}
	if !strings.Contains(body, "arrived in pieces") {
		t.Errorf("body = %q", body)
	}
}
