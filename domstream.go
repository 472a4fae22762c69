// Package domstream grafts a stream of HTML markup fragments into a live
// position inside an already-built document tree, producing the same
// structure and script-execution effects as if the markup had been present
// from the start, while content is still arriving chunk by chunk.
//
// A Session parses written chunks into a detached tree and mirrors every
// newly parsed node into the target in document order. Render-affecting
// resources (classic synchronous external scripts, applicable stylesheet
// links) pause mirroring until their load or error signal; while paused, a
// lookahead scanner issues preload hints for resources further down the
// stream. Script evaluation is always explicit and ordered, never left to
// the host tree.
package domstream

import (
	"context"
	"sync"

	"golang.org/x/net/html"

	"github.com/livefir/domstream/internal/parse"
)

// Session is one streaming transplant operation into a fixed position of a
// live tree. It implements io.Writer; chunks written to it are parsed and
// mirrored synchronously. A Session is safe for use with Loader and
// ExecContext callbacks arriving from other goroutines, but Write, Close and
// Abort themselves must not be called concurrently with each other.
type Session struct {
	mu sync.Mutex

	provider *parse.Provider
	target   *html.Node
	// before is the fixed insertion-point sibling. Content mirrored into the
	// target root always lands before it, never at a moving end, so later
	// appends to the target by other code stay correctly ordered.
	before *html.Node

	// shadow maps each parse-tree node to its live clone. Seeded with the
	// parse root so top-level nodes resolve the target as their parent.
	shadow map[*html.Node]*html.Node

	// cursor is the last parse node the walker processed.
	cursor *html.Node
	// pendingText is a parsed text node not yet attached; at most one is
	// open at a time and it is flushed exactly once.
	pendingText *html.Node
	// inlineHost is the live node currently accumulating inline script or
	// style text.
	inlineHost *html.Node

	// blocked is the live node whose resource the session is waiting on,
	// with blockedParse its parse-tree source. Nil when idle.
	blocked      *html.Node
	blockedParse *html.Node
	// lookahead is the last parse node the preload scanner inspected.
	lookahead *html.Node

	exec       ExecContext
	loader     Loader
	matchMedia func(media string) bool
	obs        Observer

	// watches accumulate while the lock is held and are installed after it
	// is released, so a Loader firing synchronously cannot deadlock.
	watches []watchRequest

	closing  bool
	finished bool
	err      error
	done     chan struct{}
}

type watchRequest struct {
	node    *html.Node
	preload bool
}

// Option configures a Session.
type Option func(*Session) error

// WithInsertBefore fixes the insertion point: mirrored top-level content is
// inserted before sibling, which must be a child of the target.
func WithInsertBefore(sibling *html.Node) Option {
	return func(s *Session) error {
		s.before = sibling
		return nil
	}
}

// WithExecContext sets the execution-capable document context used to
// evaluate relocated scripts. Default: NopExecContext.
func WithExecContext(ec ExecContext) Option {
	return func(s *Session) error {
		if ec == nil {
			return errValue("nil exec context")
		}
		s.exec = ec
		return nil
	}
}

// WithLoader sets the resource load signaling collaborator. Default:
// EagerLoader.
func WithLoader(l Loader) Option {
	return func(s *Session) error {
		if l == nil {
			return errValue("nil loader")
		}
		s.loader = l
		return nil
	}
}

// WithMediaMatcher sets the predicate deciding whether a stylesheet link's
// media attribute applies to the host environment.
func WithMediaMatcher(match func(media string) bool) Option {
	return func(s *Session) error {
		if match == nil {
			return errValue("nil media matcher")
		}
		s.matchMedia = match
		return nil
	}
}

// WithObserver registers a live-tree mutation observer.
func WithObserver(o Observer) Option {
	return func(s *Session) error {
		s.obs = o
		return nil
	}
}

// New creates a Session mirroring into target. Without WithInsertBefore,
// content is appended at the target's end.
func New(target *html.Node, opts ...Option) (*Session, error) {
	if target == nil {
		return nil, errValue("nil target")
	}
	s := &Session{
		provider:   parse.NewProvider(),
		target:     target,
		shadow:     make(map[*html.Node]*html.Node),
		exec:       &NopExecContext{},
		loader:     EagerLoader{},
		matchMedia: defaultMatchMedia,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.before != nil && s.before.Parent != target {
		return nil, errValue("insertion-point sibling is not a child of target")
	}
	s.shadow[s.provider.Root()] = target
	return s, nil
}

// Write feeds a chunk of markup. Completed markup is mirrored before Write
// returns unless the session is blocked on a resource, in which case only
// the preload lookahead advances.
func (s *Session) Write(p []byte) (int, error) {
	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return 0, err
	}
	if s.closing {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	s.provider.Append(p)
	if s.blocked == nil {
		s.walk()
	} else {
		s.scheduleLookahead()
	}
	err := s.err
	watches := s.takeWatches()
	s.mu.Unlock()

	s.installWatches(watches)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteString is Write for a string chunk.
func (s *Session) WriteString(chunk string) (int, error) {
	return s.Write([]byte(chunk))
}

// Close finalizes the stream: buffered trailing text is flushed, a trailing
// inline script is evaluated, and Close returns once every outstanding
// resource block has cleared. If ctx expires first, Close returns ctx.Err()
// without aborting; the caller decides whether to Abort.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.finished {
		err := s.err
		s.mu.Unlock()
		return err
	}
	if !s.closing {
		s.closing = true
		s.provider.Finish()
		if s.blocked == nil {
			s.walk()
		} else {
			s.scheduleLookahead()
		}
	}
	watches := s.takeWatches()
	s.mu.Unlock()

	s.installWatches(watches)
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the session has fully drained, aborted or failed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Abort cancels an outstanding resource block: the blocked live node is
// removed from the target as if it had never been mirrored, already-mirrored
// siblings stay untouched, and the session terminates with reason. Calling
// Abort while not blocked is a no-op.
func (s *Session) Abort(reason error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished || s.blocked == nil {
		return
	}
	n := s.blocked
	s.blocked, s.blockedParse = nil, nil
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
		s.obsRemoved(n)
	}
	if reason == nil {
		reason = ErrAborted
	}
	s.fail(reason)
}

// Blocked reports whether the session is currently waiting on a resource.
func (s *Session) Blocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocked != nil
}

// fail terminates the session with err. Lock must be held.
func (s *Session) fail(err error) {
	if s.err == nil {
		s.err = err
	}
	if !s.finished {
		s.finished = true
		close(s.done)
	}
}

// finish signals completion after a full drain. Lock must be held.
func (s *Session) finish() {
	s.flushPending()
	if !s.finished {
		s.finished = true
		close(s.done)
	}
}

// unblock is the one-shot load/error observer for a blocking node. Error is
// not distinguished from success here: either way the resource wait is over
// and the walk resumes from the retained cursor.
func (s *Session) unblock(n *html.Node) {
	s.mu.Lock()
	if s.blocked != n {
		// Aborted, or a stale observer; nothing to resume.
		s.mu.Unlock()
		return
	}
	s.blocked, s.blockedParse = nil, nil
	if s.err == nil {
		s.walk()
	}
	watches := s.takeWatches()
	s.mu.Unlock()
	s.installWatches(watches)
}

// removeHint detaches a preload hint after its own load or error fired.
func (s *Session) removeHint(n *html.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
		s.obsRemoved(n)
	}
}

// watchLater queues a one-shot load/error observation to be installed once
// the session lock is released.
func (s *Session) watchLater(n *html.Node, preload bool) {
	s.watches = append(s.watches, watchRequest{node: n, preload: preload})
}

func (s *Session) takeWatches() []watchRequest {
	w := s.watches
	s.watches = nil
	return w
}

func (s *Session) installWatches(ws []watchRequest) {
	for _, w := range ws {
		node := w.node
		if w.preload {
			s.loader.Watch(node, func(bool) { s.removeHint(node) })
		} else {
			s.loader.Watch(node, func(bool) { s.unblock(node) })
		}
	}
}

func (s *Session) obsInserted(n, parent, before *html.Node) {
	if s.obs != nil {
		s.obs.NodeInserted(n, parent, before)
	}
}

func (s *Session) obsRemoved(n *html.Node) {
	if s.obs != nil {
		s.obs.NodeRemoved(n)
	}
}

// errValue builds a configuration error.
type configError string

func (e configError) Error() string { return "domstream: " + string(e) }

func errValue(msg string) error { return configError(msg) }
