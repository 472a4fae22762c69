// Package parse builds a persistent HTML fragment tree from incrementally
// appended markup text. Unlike html.Parse it never re-parses earlier input:
// each append tokenizes only the bytes that have not been consumed yet, so
// node identity is stable across appends and a consumer can traverse the
// growing tree between chunks.
package parse

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// voidElements are elements that never take children and never appear on the
// open-element stack.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// rawTextElements hold raw (unparsed) text content. When a chunk boundary
// falls inside one of these, the next tokenizer pass must resume in raw-text
// mode, which fragment tokenization provides.
var rawTextElements = map[string]bool{
	"script": true, "style": true, "title": true, "textarea": true,
	"iframe": true, "noembed": true, "noframes": true, "xmp": true,
}

// Provider incrementally parses markup fragments into a persistent node tree.
//
// Appends are synchronous: by the time Append returns, every token completed
// by the new bytes has been applied to the tree. A trailing partial token
// (an unfinished tag, or text that the next chunk could extend) stays
// buffered so that chunk boundaries never split a token in the tree. Script
// and style elements are kept verbatim, never stripped or relocated, which
// is what makes this tree usable as a source for mirroring.
type Provider struct {
	root *html.Node
	// open is the stack of open elements; root is always at index 0.
	open []*html.Node
	// buf holds input bytes not yet consumed by a completed token.
	buf []byte
	// text is the node receiving consecutive text runs, nil when the last
	// applied token was not text.
	text *html.Node
}

// NewProvider returns an empty provider rooted at a document node.
func NewProvider() *Provider {
	root := &html.Node{Type: html.DocumentNode}
	return &Provider{
		root: root,
		open: []*html.Node{root},
	}
}

// Root returns the tree root. The root itself is never content; appended
// markup becomes its descendants.
func (p *Provider) Root() *html.Node {
	return p.root
}

// Append feeds more markup text and grows the tree with every token the
// accumulated input now completes.
func (p *Provider) Append(text []byte) {
	p.buf = append(p.buf, text...)
	p.drain(false)
}

// Finish flushes buffered trailing text into the tree. An unterminated tag
// left in the buffer is dropped, matching how browsers treat end-of-input
// inside a tag. The provider must not be appended to afterwards.
func (p *Provider) Finish() {
	p.drain(true)
}

// drain tokenizes the unconsumed buffer and applies completed tokens.
// Text and comment tokens that end exactly at the buffer boundary are
// withheld unless final, because a later chunk could extend them.
func (p *Provider) drain(final bool) {
	if len(p.buf) == 0 {
		return
	}

	z := html.NewTokenizerFragment(bytes.NewReader(p.buf), p.rawContext())
	consumed := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF: the remainder is an incomplete token.
			break
		}
		end := consumed + len(z.Raw())
		if end == len(p.buf) && !final && growable(tt) {
			// The token reaches the end of the input; more bytes could
			// still extend it. Keep it buffered.
			break
		}
		p.apply(tt, z)
		consumed = end
	}
	p.buf = p.buf[consumed:]
	if final {
		p.buf = nil
	}
}

// growable reports whether a later chunk could extend a token of this type.
// Tags are complete once their closing '>' is seen; text and comments are
// only bounded by what follows them.
func growable(tt html.TokenType) bool {
	switch tt {
	case html.TextToken, html.CommentToken, html.DoctypeToken:
		return true
	}
	return false
}

// rawContext returns the fragment-tokenization context for resuming inside a
// raw-text element, or "" when the parse position is regular markup.
func (p *Provider) rawContext() string {
	top := p.open[len(p.open)-1]
	if top.Type == html.ElementNode && rawTextElements[top.Data] {
		return top.Data
	}
	return ""
}

func (p *Provider) top() *html.Node {
	return p.open[len(p.open)-1]
}

// apply mutates the tree for one completed token.
func (p *Provider) apply(tt html.TokenType, z *html.Tokenizer) {
	switch tt {
	case html.TextToken:
		p.appendText(string(z.Text()))

	case html.StartTagToken, html.SelfClosingTagToken:
		p.closeText()
		name, hasAttr := z.TagName()
		n := &html.Node{
			Type:     html.ElementNode,
			Data:     string(name),
			DataAtom: atom.Lookup(name),
		}
		for hasAttr {
			var k, v []byte
			k, v, hasAttr = z.TagAttr()
			n.Attr = append(n.Attr, html.Attribute{Key: string(k), Val: string(v)})
		}
		p.top().AppendChild(n)
		if tt == html.StartTagToken && !voidElements[n.Data] {
			p.open = append(p.open, n)
		}

	case html.EndTagToken:
		p.closeText()
		name, _ := z.TagName()
		p.pop(string(name))

	case html.CommentToken:
		p.closeText()
		p.top().AppendChild(&html.Node{
			Type: html.CommentNode,
			Data: string(z.Text()),
		})

	case html.DoctypeToken:
		// Fragments carry no doctype of interest.
		p.closeText()
	}
}

// appendText adds a text run, coalescing with an immediately preceding run so
// that logically contiguous text is always a single node.
func (p *Provider) appendText(s string) {
	if s == "" {
		return
	}
	if p.text != nil {
		p.text.Data += s
		return
	}
	n := &html.Node{Type: html.TextNode, Data: s}
	p.top().AppendChild(n)
	p.text = n
}

func (p *Provider) closeText() {
	p.text = nil
}

// pop closes the innermost open element matching name. An end tag with no
// matching open element is ignored; elements left open by the mismatch are
// closed implicitly, as a forgiving fragment parser does.
func (p *Provider) pop(name string) {
	name = strings.ToLower(name)
	for i := len(p.open) - 1; i > 0; i-- {
		if p.open[i].Data == name {
			p.open = p.open[:i]
			return
		}
	}
}
