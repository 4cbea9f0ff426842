// Package enginetest provides a controllable in-memory engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgnsrekt/tabdeck/internal/engine"
)

// Fake implements engine.Instance with scripted behavior. Snapshot resolution
// can be held and released from the test to exercise both orderings of the
// snapshot/timeout race.
type Fake struct {
	mu         sync.Mutex
	state      engine.LoadState
	closed     bool
	loads      []string
	onChange   func(engine.LoadState)
	onOpenPage func(engine.Instance, string)

	// Image is returned by Snapshot when snapshots are not held.
	Image []byte

	holdCh chan snapshotResult
}

type snapshotResult struct {
	data []byte
	err  error
}

func NewFake() *Fake {
	return &Fake{Image: []byte("fake-image")}
}

// HoldSnapshots makes Snapshot block until ReleaseSnapshot is called or the
// caller's context expires.
func (f *Fake) HoldSnapshots() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holdCh = make(chan snapshotResult, 1)
}

// ReleaseSnapshot resolves one held Snapshot call.
func (f *Fake) ReleaseSnapshot(data []byte, err error) {
	f.mu.Lock()
	ch := f.holdCh
	f.mu.Unlock()
	ch <- snapshotResult{data: data, err: err}
}

// SetOnChange binds the change callback, mirroring engine.Options.OnChange.
func (f *Fake) SetOnChange(fn func(engine.LoadState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onChange = fn
}

// OpenPage simulates page script opening a new window owned by this
// instance. The spawned instance is returned so tests can inspect it.
func (f *Fake) OpenPage(url string) *Fake {
	f.mu.Lock()
	fn := f.onOpenPage
	f.mu.Unlock()
	child := NewFake()
	child.mu.Lock()
	child.loads = append(child.loads, url)
	child.state.URL = url
	child.mu.Unlock()
	if fn != nil {
		fn(child, url)
	}
	return child
}

// ReportState simulates an asynchronous engine load notification.
func (f *Fake) ReportState(s engine.LoadState) {
	f.mu.Lock()
	f.state = s
	fn := f.onChange
	f.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (f *Fake) Load(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, url)
	f.state.URL = url
	return nil
}

func (f *Fake) Back(context.Context) error    { return nil }
func (f *Fake) Forward(context.Context) error { return nil }
func (f *Fake) Reload(context.Context) error  { return nil }

func (f *Fake) State() engine.LoadState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Fake) Snapshot(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	ch := f.holdCh
	img := f.Image
	f.mu.Unlock()

	if ch == nil {
		return img, nil
	}
	select {
	case res := <-ch:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Fake) InteractionState() []byte { return []byte(`{"fake":true}`) }

func (f *Fake) FaviconURL(context.Context) (string, error) {
	return "https://example.com/favicon.ico", nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("fake engine closed twice")
	}
	f.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Loads returns the URLs passed to Load, in order.
func (f *Fake) Loads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.loads))
	copy(out, f.loads)
	return out
}

// Factory implements engine.Factory, handing out Fakes and recording them.
type Factory struct {
	mu   sync.Mutex
	made []*Fake
	opts []engine.Options
	Err  error // returned by New when set
}

func NewFactory() *Factory { return &Factory{} }

func (fa *Factory) New(_ context.Context, opts engine.Options) (engine.Instance, error) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	if fa.Err != nil {
		return nil, fa.Err
	}
	f := NewFake()
	f.onChange = opts.OnChange
	f.onOpenPage = opts.OnOpenPage
	if opts.URL != "" {
		f.loads = append(f.loads, opts.URL)
		f.state.URL = opts.URL
	}
	fa.made = append(fa.made, f)
	fa.opts = append(fa.opts, opts)
	return f, nil
}

// Made returns every fake the factory has created, in creation order.
func (fa *Factory) Made() []*Fake {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	out := make([]*Fake, len(fa.made))
	copy(out, fa.made)
	return out
}

// Options returns the options the i-th New call received.
func (fa *Factory) Options(i int) engine.Options {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return fa.opts[i]
}
