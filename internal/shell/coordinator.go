// Package shell is the presentation coordinator: the glue that keeps the tab
// store, the engine cache and the card grid in agreement while user actions
// and asynchronous engine callbacks arrive concurrently.
//
// The coordinator owns a single run-loop goroutine. Every operation —
// user-initiated or engine callback — executes as a task on that loop, so
// the store, grid and cache are mutated by exactly one goroutine and need no
// locking of their own. Engine callbacks arriving on other goroutines are
// redispatched with post before touching any state.
package shell

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dgnsrekt/tabdeck/internal/cardgrid"
	"github.com/dgnsrekt/tabdeck/internal/engine"
	"github.com/dgnsrekt/tabdeck/internal/enginecache"
	"github.com/dgnsrekt/tabdeck/internal/persist"
	"github.com/dgnsrekt/tabdeck/internal/tabs"
)

// DefaultSnapshotTimeout bounds the thumbnail capture race.
const DefaultSnapshotTimeout = 200 * time.Millisecond

const taskQueueSize = 256

// faviconMaxBytes caps favicon downloads.
const faviconMaxBytes = 256 * 1024

// Config wires the coordinator's collaborators. Factory is required;
// Persister and Blobs may be nil for ephemeral (test) configurations.
type Config struct {
	Factory         engine.Factory
	Persister       *persist.Persister
	Blobs           *persist.BlobStore
	MaxEngines      int
	SnapshotTimeout time.Duration
	StaleAfter      time.Duration
	SearchEndpoint  string
	Viewport        cardgrid.Viewport
	Hooks           cardgrid.Hooks // CaptureThumbnail is owned by the coordinator and overwritten
	OnChange        func(tabs.Change)
	Now             func() time.Time
	HTTPClient      *http.Client // favicon downloads; defaults to http.DefaultClient
}

// Coordinator reconciles user actions across the tab store, engine cache and
// card grid, and drives the zoom transition.
type Coordinator struct {
	cfg   Config
	store *tabs.Store
	cache *enginecache.Cache
	grid  *cardgrid.Model
	now   func() time.Time

	tasks chan func()
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once

	// Loop-confined state below; never touched off the run loop.
	incognito bool
	suppress  bool
}

func New(cfg Config) (*Coordinator, error) {
	if cfg.Factory == nil {
		return nil, fmt.Errorf("shell: engine factory is required")
	}
	if cfg.MaxEngines <= 0 {
		cfg.MaxEngines = enginecache.DefaultMaxCount
	}
	if cfg.SnapshotTimeout <= 0 {
		cfg.SnapshotTimeout = DefaultSnapshotTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	c := &Coordinator{
		cfg:   cfg,
		store: tabs.NewStore(),
		now:   cfg.Now,
		tasks: make(chan func(), taskQueueSize),
		done:  make(chan struct{}),
	}
	c.cache = enginecache.New(cfg.MaxEngines, func() tabs.TabID {
		return c.activeSection().Selected()
	})
	// Eviction runs on the loop; the engine is still live here, so its
	// resumable state can be captured before teardown.
	c.cache.OnEvict(c.stashInteractionState)

	hooks := cfg.Hooks
	hooks.CaptureThumbnail = c.captureForeground
	c.grid = cardgrid.NewModel(cfg.Now, cfg.StaleAfter, hooks)
	c.grid.SetViewport(cfg.Viewport)

	// Store events fan out synchronously on the run loop: grid derivation in
	// emission order, persistence snapshots, then the external feed.
	c.store.Subscribe(func(ch tabs.Change) {
		snap := c.store.Section(ch.Incognito).Snapshot()
		if ch.Incognito == c.incognito {
			c.grid.Apply(ch, snap)
		}
		if c.cfg.Persister != nil {
			c.cfg.Persister.RecordChange(ch, snap)
		}
		if c.cfg.OnChange != nil {
			c.cfg.OnChange(ch)
		}
	})

	c.wg.Add(1)
	go c.run()
	return c, nil
}

func (c *Coordinator) run() {
	defer c.wg.Done()
	for {
		select {
		case fn := <-c.tasks:
			fn()
		case <-c.done:
			return
		}
	}
}

// Close stops the run loop and tears down every live engine. The persister,
// if any, is flushed so the final state is durable.
func (c *Coordinator) Close() error {
	c.once.Do(func() { close(c.done) })
	c.wg.Wait()
	c.cache.Close()
	if c.cfg.Persister != nil {
		if err := c.cfg.Persister.Flush(); err != nil {
			slog.Warn("final snapshot flush failed", "error", err)
		}
	}
	return nil
}

// do runs fn on the loop and waits for its result.
func (c *Coordinator) do(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case c.tasks <- func() { reply <- fn() }:
	case <-c.done:
		return newError(CodeClosed, "shell is shut down", nil)
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return newError(CodeClosed, "shell is shut down", nil)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post schedules fn on the loop without waiting. Used by engine callbacks.
func (c *Coordinator) post(fn func()) {
	select {
	case c.tasks <- fn:
	case <-c.done:
	}
}

func (c *Coordinator) activeSection() *tabs.Section {
	return c.store.Section(c.incognito)
}

// realize attaches a live engine to rec, inserting it into the keep-alive
// cache. adopt reuses an already-live instance (script-spawned pages);
// otherwise a new instance is created, resuming from interaction state
// stashed at eviction time when there is any, else from the record's URL.
// Attach failure leaves the tab cold on its last-known data.
func (c *Coordinator) realize(rec tabs.TabRecord, incog bool, adopt engine.Instance) (engine.Instance, error) {
	inst := adopt
	if inst == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		var err error
		inst, err = c.cfg.Factory.New(ctx, engine.Options{
			URL:              rec.URL,
			InteractionState: c.loadInteractionState(rec.ID),
			OnChange:         c.engineChanged(rec.ID, incog),
			OnOpenPage:       c.pageOpened(rec.ID, incog),
		})
		if err != nil {
			return nil, newError(CodeEngineUnavailable, "engine attach failed", err)
		}
	}
	c.cache.Insert(rec.ID, rec.OpenerID, inst)
	return inst, nil
}

// engineChanged returns the load-state callback bound to one tab. The engine
// invokes it on its own goroutines; it redispatches onto the run loop and
// checks the tab still exists before applying anything.
func (c *Coordinator) engineChanged(id tabs.TabID, incog bool) func(engine.LoadState) {
	return func(st engine.LoadState) {
		c.post(func() {
			sec := c.store.Section(incog)
			rec, ok := sec.Get(id)
			if !ok {
				return // closed while the event was in flight
			}
			if st.URL != "" && st.URL != rec.URL {
				if err := sec.SetURL(id, st.URL); err != nil {
					slog.Warn("engine url update failed", "tab", id, "error", err)
				}
			}
			if st.Title != "" {
				if err := sec.SetTitle(id, st.Title); err != nil {
					slog.Warn("engine title update failed", "tab", id, "error", err)
				}
			}
			if !st.Loading {
				c.fetchFavicon(id, incog)
			}
		})
	}
}

// pageOpened returns the script-initiated new-window callback bound to one
// opener tab. The new instance is adopted as a child tab inserted right
// after its opener, selected, and the grid is exited if showing.
func (c *Coordinator) pageOpened(opener tabs.TabID, incog bool) func(engine.Instance, string) {
	return func(inst engine.Instance, pageURL string) {
		c.post(func() {
			sec := c.store.Section(incog)
			if sec.IndexOf(opener) < 0 {
				// Opener already closed; nothing can own the page.
				if err := inst.Close(); err != nil {
					slog.Warn("orphan page teardown failed", "error", err)
				}
				return
			}
			rec := tabs.TabRecord{ID: tabs.NewID(), URL: pageURL, OpenerID: opener}
			if err := sec.InsertTab(rec, opener); err != nil {
				slog.Warn("child tab insert failed", "opener", opener, "error", err)
				_ = inst.Close()
				return
			}
			// An adopted page predates its tab record; late-bind the
			// load-state callback now that the id exists.
			if binder, ok := inst.(interface{ SetOnChange(func(engine.LoadState)) }); ok {
				binder.SetOnChange(c.engineChanged(rec.ID, incog))
			}
			c.foreground(sec, rec.ID)
			c.cache.Insert(rec.ID, opener, inst)
			slog.Info("child tab adopted", "tab", rec.ID, "opener", opener, "url", pageURL)
		})
	}
}

// focus selects id in sec, stamps last-accessed and refreshes engine
// recency. Grid visibility is untouched; close-path promotion relies on
// that.
func (c *Coordinator) focus(sec *tabs.Section, id tabs.TabID) {
	if err := sec.SelectTab(id); err != nil {
		slog.Warn("foreground select failed", "tab", id, "error", err)
		return
	}
	if err := sec.Touch(id, c.now()); err != nil {
		slog.Warn("foreground touch failed", "tab", id, "error", err)
	}
	c.cache.Touch(id)
}

// foreground is focus plus exiting the grid when it is showing. Used by the
// open and switch paths, where landing full-screen is part of the gesture.
func (c *Coordinator) foreground(sec *tabs.Section, id tabs.TabID) {
	c.focus(sec, id)
	if sec == c.activeSection() && c.grid.ShowGrid() {
		c.grid.ZoomIn()
	}
}

// stateKey names the blob holding a tab's stashed interaction state. It is
// distinct from the thumbnail key, which is the bare tab id.
func stateKey(id tabs.TabID) string {
	return "state:" + string(id)
}

// stashInteractionState preserves an evicted engine's resumable state so a
// later cold switch picks up where the session left off.
func (c *Coordinator) stashInteractionState(id tabs.TabID, inst engine.Instance) {
	if c.cfg.Blobs == nil {
		return
	}
	blob := inst.InteractionState()
	if len(blob) == 0 {
		return
	}
	if err := c.cfg.Blobs.Save(stateKey(id), blob); err != nil {
		slog.Warn("interaction state stash failed", "tab", id, "error", err)
	}
}

// loadInteractionState returns the stashed state for id, or nil.
func (c *Coordinator) loadInteractionState(id tabs.TabID) []byte {
	if c.cfg.Blobs == nil {
		return nil
	}
	blob, err := c.cfg.Blobs.Read(stateKey(id))
	if err != nil {
		return nil
	}
	return blob
}

// dropInteractionState discards the stashed state when the tab is gone.
func (c *Coordinator) dropInteractionState(id tabs.TabID) {
	if c.cfg.Blobs == nil {
		return
	}
	c.cfg.Blobs.Delete(stateKey(id))
}

// fetchFavicon asks the live engine for the page's best favicon candidate,
// downloads it into the blob store off-loop, then records the reference.
func (c *Coordinator) fetchFavicon(id tabs.TabID, incog bool) {
	if c.cfg.Blobs == nil {
		return
	}
	inst := c.cache.Lookup(id)
	if inst == nil {
		return
	}
	sec := c.store.Section(incog)
	rec, ok := sec.Get(id)
	if !ok {
		return
	}
	pageURL := rec.URL

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		iconURL, err := inst.FaviconURL(ctx)
		if err != nil || iconURL == "" {
			iconURL = fallbackFavicon(pageURL)
			if iconURL == "" {
				return
			}
		}
		data, err := fetchBytes(ctx, c.cfg.HTTPClient, iconURL, faviconMaxBytes)
		if err != nil {
			slog.Debug("favicon fetch failed", "tab", id, "url", iconURL, "error", err)
			return
		}
		if err := c.cfg.Blobs.Save(iconURL, data); err != nil {
			slog.Warn("favicon blob save failed", "tab", id, "error", err)
			return
		}
		c.post(func() {
			s := c.store.Section(incog)
			if s.IndexOf(id) < 0 {
				return
			}
			if err := s.SetFavicon(id, iconURL); err != nil {
				slog.Warn("favicon ref update failed", "tab", id, "error", err)
			}
		})
	}()
}

func fallbackFavicon(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/favicon.ico"
}

func fetchBytes(ctx context.Context, client *http.Client, rawURL string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status=%d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// captureForeground is the grid's thumbnail hook: refresh the foreground
// tab's thumbnail, bounded by the snapshot race, then call done so the
// shrink animation can start. User input that would conflict is suppressed
// for the duration of the race.
func (c *Coordinator) captureForeground(done func()) {
	id := c.activeSection().Selected()
	var inst engine.Instance
	if id != "" {
		inst = c.cache.Lookup(id)
	}
	if inst == nil {
		done()
		return
	}

	incog := c.incognito
	c.suppress = true
	race := &raceCell{}

	finish := func(applied bool, ref string) {
		c.suppress = false
		if applied {
			sec := c.store.Section(incog)
			if sec.IndexOf(id) >= 0 {
				if err := sec.SetThumbnail(id, ref); err != nil {
					slog.Warn("thumbnail ref update failed", "tab", id, "error", err)
				}
			}
		}
		done()
	}

	timer := time.AfterFunc(c.cfg.SnapshotTimeout, func() {
		if !race.settle() {
			return
		}
		c.post(func() {
			slog.Debug("thumbnail capture timed out", "tab", id)
			finish(false, "")
		})
	})

	go func() {
		// Deliberately unbounded: on timeout the result is discarded, the
		// engine operation itself is never aborted.
		data, err := inst.Snapshot(context.Background())
		if !race.settle() {
			slog.Debug("late thumbnail discarded", "tab", id)
			return
		}
		timer.Stop()
		if err != nil || len(data) == 0 {
			slog.Debug("thumbnail capture failed", "tab", id, "error", err)
			c.post(func() { finish(false, "") })
			return
		}
		ref := string(id)
		if c.cfg.Blobs != nil {
			if saveErr := c.cfg.Blobs.Save(ref, data); saveErr != nil {
				slog.Warn("thumbnail blob save failed", "tab", id, "error", saveErr)
				c.post(func() { finish(false, "") })
				return
			}
		}
		c.post(func() { finish(true, ref) })
	}()
}
