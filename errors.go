package domstream

import "errors"

var (
	// ErrClosed is returned by Write after Close has been called.
	ErrClosed = errors.New("domstream: session closed")

	// ErrAborted is returned by Write and Close after the session was
	// aborted.
	ErrAborted = errors.New("domstream: session aborted")

	// ErrNoCurrentScript reports an incompatible execution context: a classic
	// inline script reached evaluation but the context does not expose a
	// currentScript override point. This is an invariant violation, not a
	// recoverable condition; the session terminates.
	ErrNoCurrentScript = errors.New("domstream: execution context has no currentScript override point")
)
