// Package engine defines the web-rendering engine consumed by the shell.
// The engine is an opaque, resource-heavy capability: the shell never reaches
// into rendering internals, it only loads URLs, navigates history, captures
// snapshots and observes load-state changes.
package engine

import "context"

// LoadState is the engine's last-reported view of a page load.
type LoadState struct {
	URL          string
	Title        string
	Loading      bool
	Progress     float64
	CanGoBack    bool
	CanGoForward bool
}

// Instance is one live rendering session. Instances are owned exclusively by
// the engine cache; everything else refers to them by tab id.
//
// Snapshot may fail or never resolve on its own; callers bound it with the
// supplied context. Close tears down the underlying session and must be
// called exactly once.
type Instance interface {
	Load(ctx context.Context, url string) error
	Back(ctx context.Context) error
	Forward(ctx context.Context) error
	Reload(ctx context.Context) error
	State() LoadState
	Snapshot(ctx context.Context) ([]byte, error)
	InteractionState() []byte
	FaviconURL(ctx context.Context) (string, error)
	Close() error
}

// Options configures a new instance. Callbacks are bound to the instance at
// creation time — the engine never resolves its owner through any global
// registry. Both callbacks arrive on engine-internal goroutines; the caller
// is responsible for redispatching onto its own loop.
type Options struct {
	// URL to load immediately, if non-empty.
	URL string

	// InteractionState resumes a previously suspended session, if non-nil.
	// It takes precedence over URL.
	InteractionState []byte

	// OnChange is invoked whenever the load state changes.
	OnChange func(LoadState)

	// OnOpenPage is invoked when page script opens a new window. The new
	// instance is already live; the shell decides whether to adopt it as a
	// child tab or close it.
	OnOpenPage func(Instance, string)
}

// Factory creates live instances.
type Factory interface {
	New(ctx context.Context, opts Options) (Instance, error)
}
