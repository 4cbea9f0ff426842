// Package chromium implements the rendering engine on top of a Chromium
// browser reached over the DevTools protocol. Each engine instance owns one
// browser page target; the shell never sees chromedp types.
package chromium

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/tabdeck/internal/engine"
)

const opTimeout = 30 * time.Second

// Factory dials a running Chromium's CDP endpoint once and spawns page
// targets from the shared allocator.
type Factory struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewFactory connects to the browser at cdpURL (ws://host:port) and verifies
// the connection with a throwaway target.
func NewFactory(ctx context.Context, cdpURL string) (*Factory, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), cdpURL)

	probeCtx, probeCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(probeCtx); err != nil {
		probeCancel()
		allocCancel()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	probeCancel()

	slog.Info("connected to chromium", "cdp_url", cdpURL)
	return &Factory{allocCtx: allocCtx, allocCancel: allocCancel}, nil
}

// Close drops the allocator. Pages spawned from it are torn down by their
// own instances.
func (f *Factory) Close() error {
	f.allocCancel()
	return nil
}

// New spawns a page target and binds the shell's callbacks to it.
func (f *Factory) New(ctx context.Context, opts engine.Options) (engine.Instance, error) {
	tabCtx, tabCancel := chromedp.NewContext(f.allocCtx)

	inst := &Instance{
		factory:    f,
		ctx:        tabCtx,
		cancel:     tabCancel,
		onChange:   opts.OnChange,
		onOpenPage: opts.OnOpenPage,
	}

	runCtx, runCancel := mergeTimeout(ctx, tabCtx)
	defer runCancel()
	if err := chromedp.Run(runCtx, page.Enable()); err != nil {
		tabCancel()
		return nil, fmt.Errorf("enable page domain: %w", err)
	}

	chromedp.ListenTarget(tabCtx, inst.handleEvent)
	if opts.OnOpenPage != nil {
		inst.watchSpawnedTargets()
	}

	// Stashed interaction state wins over the record's URL: it carries the
	// history position the page was suspended at.
	startURL := resumeURL(opts.InteractionState)
	if startURL == "" {
		startURL = opts.URL
	}
	if startURL != "" {
		if err := chromedp.Run(runCtx, chromedp.Navigate(startURL)); err != nil {
			tabCancel()
			return nil, fmt.Errorf("navigate %s: %w", startURL, err)
		}
		inst.mu.Lock()
		inst.state.URL = startURL
		inst.state.Loading = true
		inst.mu.Unlock()
	}
	return inst, nil
}

// adopt wraps an already-live target spawned by page script.
func (f *Factory) adopt(targetID target.ID, url string) (*Instance, error) {
	tabCtx, tabCancel := chromedp.NewContext(f.allocCtx, chromedp.WithTargetID(targetID))
	inst := &Instance{factory: f, ctx: tabCtx, cancel: tabCancel}
	inst.state.URL = url
	inst.state.Loading = true

	runCtx, runCancel := context.WithTimeout(tabCtx, opTimeout)
	defer runCancel()
	if err := chromedp.Run(runCtx, page.Enable()); err != nil {
		tabCancel()
		return nil, fmt.Errorf("attach to spawned target: %w", err)
	}
	chromedp.ListenTarget(tabCtx, inst.handleEvent)
	return inst, nil
}

// interactionState is the suspend/resume payload: enough to put a fresh
// page back where the user left off.
type interactionState struct {
	URL          string `json:"url"`
	CurrentIndex int64  `json:"current_index"`
	EntryCount   int    `json:"entry_count"`
}

func resumeURL(blob []byte) string {
	if len(blob) == 0 {
		return ""
	}
	var st interactionState
	if err := json.Unmarshal(blob, &st); err != nil {
		slog.Warn("interaction state unreadable, resuming blank", "error", err)
		return ""
	}
	return st.URL
}

// Instance is one live page target.
type Instance struct {
	factory    *Factory
	ctx        context.Context
	cancel     context.CancelFunc
	onChange   func(engine.LoadState)
	onOpenPage func(engine.Instance, string)

	mu    sync.Mutex
	state engine.LoadState
}

func (i *Instance) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *page.EventFrameNavigated:
		if e.Frame.ParentID != "" {
			return
		}
		i.setState(func(s *engine.LoadState) {
			s.URL = e.Frame.URL
			s.Loading = true
			s.Progress = 0
		})
	case *page.EventNavigatedWithinDocument:
		i.setState(func(s *engine.LoadState) {
			s.URL = e.URL
		})
	case *page.EventLoadEventFired:
		// Title and history arrive via CDP calls; those cannot run inside
		// the event handler, so finish on a goroutine.
		go i.settleLoad()
	}
}

func (i *Instance) settleLoad() {
	ctx, cancel := context.WithTimeout(i.ctx, 10*time.Second)
	defer cancel()

	var title string
	canBack, canForward := false, false
	err := chromedp.Run(ctx,
		chromedp.Title(&title),
		chromedp.ActionFunc(func(ctx context.Context) error {
			idx, entries, histErr := page.GetNavigationHistory().Do(ctx)
			if histErr != nil {
				return histErr
			}
			canBack = idx > 0
			canForward = int(idx) < len(entries)-1
			return nil
		}),
	)
	if err != nil {
		slog.Debug("load settle query failed", "error", err)
	}
	i.setState(func(s *engine.LoadState) {
		s.Loading = false
		s.Progress = 1
		if title != "" {
			s.Title = title
		}
		s.CanGoBack = canBack
		s.CanGoForward = canForward
	})
}

func (i *Instance) setState(mut func(*engine.LoadState)) {
	i.mu.Lock()
	mut(&i.state)
	st := i.state
	fn := i.onChange
	i.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

// watchSpawnedTargets adopts page targets opened by this page's script
// (window.open, target=_blank) and hands them to the shell.
func (i *Instance) watchSpawnedTargets() {
	self := chromedp.FromContext(i.ctx)
	chromedp.ListenBrowser(i.ctx, func(ev interface{}) {
		e, ok := ev.(*target.EventTargetCreated)
		if !ok || e.TargetInfo.Type != "page" {
			return
		}
		if self.Target == nil || e.TargetInfo.OpenerID != self.Target.TargetID {
			return
		}
		id, url := e.TargetInfo.TargetID, e.TargetInfo.URL
		go func() {
			child, err := i.factory.adopt(id, url)
			if err != nil {
				slog.Warn("spawned page adoption failed", "target", id, "error", err)
				return
			}
			i.onOpenPage(child, url)
		}()
	})
}

// SetOnChange is used by the shell when adopting a spawned page: the child
// instance exists before its owning tab does, so the callback arrives late.
func (i *Instance) SetOnChange(fn func(engine.LoadState)) {
	i.mu.Lock()
	i.onChange = fn
	i.mu.Unlock()
}

func (i *Instance) Load(ctx context.Context, url string) error {
	runCtx, cancel := mergeTimeout(ctx, i.ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (i *Instance) Back(ctx context.Context) error {
	runCtx, cancel := mergeTimeout(ctx, i.ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.NavigateBack())
}

func (i *Instance) Forward(ctx context.Context) error {
	runCtx, cancel := mergeTimeout(ctx, i.ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.NavigateForward())
}

func (i *Instance) Reload(ctx context.Context) error {
	runCtx, cancel := mergeTimeout(ctx, i.ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Reload())
}

func (i *Instance) State() engine.LoadState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Snapshot captures a viewport screenshot. The caller bounds it with ctx;
// the capture itself is never aborted mid-protocol, a late result is simply
// returned to a caller who may no longer want it.
func (i *Instance) Snapshot(ctx context.Context) ([]byte, error) {
	runCtx, cancel := mergeTimeout(ctx, i.ctx)
	defer cancel()
	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

// InteractionState serializes what is needed to resume this session cold.
func (i *Instance) InteractionState() []byte {
	ctx, cancel := context.WithTimeout(i.ctx, 5*time.Second)
	defer cancel()

	st := interactionState{URL: i.State().URL}
	_ = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		idx, entries, err := page.GetNavigationHistory().Do(ctx)
		if err != nil {
			return err
		}
		st.CurrentIndex = idx
		st.EntryCount = len(entries)
		if idx >= 0 && int(idx) < len(entries) {
			st.URL = entries[idx].URL
		}
		return nil
	}))
	blob, err := json.Marshal(st)
	if err != nil {
		return nil
	}
	return blob
}

const faviconJS = `(() => {
	const links = [...document.querySelectorAll('link[rel~="icon"]')];
	if (links.length === 0) return "";
	links.sort((a, b) => {
		const size = l => parseInt((l.getAttribute('sizes') || '0').split('x')[0], 10) || 0;
		return size(b) - size(a);
	});
	return new URL(links[0].href, document.baseURI).href;
})()`

// FaviconURL asks the page for its best icon candidate. Empty with nil error
// means the page declares none; callers fall back to /favicon.ico.
func (i *Instance) FaviconURL(ctx context.Context) (string, error) {
	runCtx, cancel := mergeTimeout(ctx, i.ctx)
	defer cancel()
	var href string
	if err := chromedp.Run(runCtx, chromedp.Evaluate(faviconJS, &href)); err != nil {
		return "", fmt.Errorf("favicon query: %w", err)
	}
	return href, nil
}

// Close tears down the page target.
func (i *Instance) Close() error {
	err := chromedp.Cancel(i.ctx)
	i.cancel()
	if err != nil {
		return fmt.Errorf("close page target: %w", err)
	}
	return nil
}

// mergeTimeout derives a run context from the instance's own context,
// bounded by the caller's deadline when it has one and opTimeout otherwise.
func mergeTimeout(caller, own context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := caller.Deadline(); ok {
		return context.WithDeadline(own, deadline)
	}
	return context.WithTimeout(own, opTimeout)
}
