package domstream

import (
	"bytes"
	"fmt"

	"golang.org/x/net/html"
)

// RenderRegion serializes the children of parent back to HTML. It is the
// snapshot counterpart of the incremental mirror: after a session drains,
// rendering the target region reproduces the transplanted markup.
func RenderRegion(parent *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("failed to render node: %w", err)
		}
	}
	return buf.String(), nil
}
