// Package relay serializes live-tree mutations performed by a domstream
// session into JSON update records and pushes them over a websocket, so a
// thin browser client can apply the same transplant to its own DOM.
package relay

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/net/html"
)

// Action identifies the kind of DOM update.
type Action string

const (
	ActionInsert Action = "insert"
	ActionRemove Action = "remove"
)

// Update is one serialized live-tree mutation. Node identity travels as
// relay-assigned IDs; PreviousID names the preceding sibling ("" inserts at
// the parent's insertion point) and ParentID is "" for the target root.
type Update struct {
	Action     Action            `json:"action"`
	NodeID     string            `json:"nodeId"`
	ParentID   string            `json:"parentId,omitempty"`
	PreviousID string            `json:"previousId,omitempty"`
	NodeType   string            `json:"nodeType"`           // "element", "text", "comment"
	Tag        string            `json:"tag,omitempty"`      // element tag name
	Attrs      map[string]string `json:"attrs,omitempty"`    // element attributes
	Text       string            `json:"text,omitempty"`     // text or comment content
	BeforeID   string            `json:"beforeId,omitempty"` // fixed insertion-point marker, if known
}

// Relay implements domstream.Observer over a websocket connection. Writes
// are serialized by a mutex because gorilla/websocket allows only one
// concurrent writer.
type Relay struct {
	mu   sync.Mutex
	conn *websocket.Conn

	ids  map[*html.Node]string
	next int
	err  error
}

// New creates a Relay sending updates over conn.
func New(conn *websocket.Conn) *Relay {
	return &Relay{
		conn: conn,
		ids:  make(map[*html.Node]string),
	}
}

// Err returns the first send failure, if any. The relay stops sending after
// a failure but keeps absorbing observer callbacks so the session is not
// disturbed.
func (r *Relay) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// NodeInserted sends an insert record for n.
func (r *Relay) NodeInserted(n, parent, before *html.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := Update{
		Action:     ActionInsert,
		NodeID:     r.id(n),
		ParentID:   r.knownID(parent),
		PreviousID: r.knownID(n.PrevSibling),
		BeforeID:   r.knownID(before),
	}
	switch n.Type {
	case html.ElementNode:
		u.NodeType = "element"
		u.Tag = n.Data
		if len(n.Attr) > 0 {
			u.Attrs = make(map[string]string, len(n.Attr))
			for _, a := range n.Attr {
				u.Attrs[a.Key] = a.Val
			}
		}
	case html.TextNode:
		u.NodeType = "text"
		u.Text = n.Data
	case html.CommentNode:
		u.NodeType = "comment"
		u.Text = n.Data
	default:
		return
	}
	r.send(u)
}

// NodeRemoved sends a remove record for n.
func (r *Relay) NodeRemoved(n *html.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.ids[n]
	if !ok {
		return
	}
	delete(r.ids, n)
	r.send(Update{Action: ActionRemove, NodeID: id, NodeType: nodeTypeName(n)})
}

// id returns n's relay ID, assigning one on first sight.
func (r *Relay) id(n *html.Node) string {
	if id, ok := r.ids[n]; ok {
		return id
	}
	r.next++
	id := strconv.Itoa(r.next)
	r.ids[n] = id
	return id
}

// knownID returns the ID previously assigned to n, or "" when n is nil or
// was never announced (the target root, or a node outside the relay's view).
func (r *Relay) knownID(n *html.Node) string {
	if n == nil {
		return ""
	}
	return r.ids[n]
}

func (r *Relay) send(u Update) {
	if r.err != nil {
		return
	}
	payload, err := json.Marshal(u)
	if err != nil {
		r.err = fmt.Errorf("failed to marshal update: %w", err)
		return
	}
	if err := r.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		r.err = fmt.Errorf("failed to send update: %w", err)
	}
}

func nodeTypeName(n *html.Node) string {
	switch n.Type {
	case html.ElementNode:
		return "element"
	case html.TextNode:
		return "text"
	case html.CommentNode:
		return "comment"
	}
	return "node"
}
