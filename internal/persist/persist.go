// Package persist decouples durable-storage I/O from the synchronous tab
// store. Section snapshots are serialized on one background goroutine with a
// debounce window; image payloads live in the blob side-store and the
// structured document holds references only.
package persist

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgnsrekt/tabdeck/internal/tabs"
)

// DefaultDebounce is the observed coalescing window for snapshot writes.
const DefaultDebounce = 500 * time.Millisecond

const documentVersion = 1

// document is the on-disk shape of the structured snapshot. The incognito
// section is intentionally never part of it.
type document struct {
	Version int                  `json:"version"`
	SavedAt time.Time            `json:"saved_at"`
	Default tabs.SectionSnapshot `json:"default"`
}

// Persister serializes default-section snapshots to a JSON document.
// RecordChange is cheap and non-blocking; the write happens on the
// background goroutine after the debounce window closes, always with the
// latest pending snapshot. Flush forces an immediate synchronous write for
// call sites that need durability before proceeding.
type Persister struct {
	path     string
	debounce time.Duration

	mu      sync.Mutex
	pending *tabs.SectionSnapshot

	writeMu sync.Mutex // serializes file writes between loop and Flush
	writes  int

	kick chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a Persister writing to path and starts its background loop.
func New(path string, debounce time.Duration) (*Persister, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("persist: mkdir %s: %w", filepath.Dir(path), err)
	}
	p := &Persister{
		path:     path,
		debounce: debounce,
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	p.wg.Add(1)
	go p.loop()
	return p, nil
}

// RecordChange notes that the section mutated. Incognito snapshots are
// dropped here; nothing ephemeral ever reaches disk. The change itself is
// not stored — persistence works on whole snapshots, and a burst of changes
// inside one debounce window collapses into a single write of the last one.
func (p *Persister) RecordChange(c tabs.Change, snap tabs.SectionSnapshot) {
	if snap.Incognito {
		return
	}
	p.mu.Lock()
	p.pending = &snap
	p.mu.Unlock()

	select {
	case p.kick <- struct{}{}:
	default:
	}
	slog.Debug("persist change queued", "kind", c.Kind, "tabs", len(snap.Tabs))
}

// Flush drains the pending snapshot synchronously. Safe to call from any
// goroutine; returns once the write completed (or there was nothing to do).
func (p *Persister) Flush() error {
	return p.writePending()
}

// Close flushes pending state and stops the background loop.
func (p *Persister) Close() error {
	close(p.done)
	p.wg.Wait()
	return p.writePending()
}

// Writes reports how many snapshot writes have completed. Used for stats
// logging and by tests.
func (p *Persister) Writes() int {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.writes
}

func (p *Persister) loop() {
	defer p.wg.Done()

	var window <-chan time.Time
	for {
		select {
		case <-p.kick:
			// Open a window on the first change of a burst; later changes
			// ride the same window rather than extending it.
			if window == nil {
				window = time.After(p.debounce)
			}
		case <-window:
			window = nil
			if err := p.writePending(); err != nil {
				slog.Warn("snapshot write failed, will retry on next change", "error", err)
			}
		case <-p.done:
			return
		}
	}
}

// writePending atomically takes the pending snapshot and writes it. Failures
// are recoverable: the next debounced write naturally retries.
func (p *Persister) writePending() error {
	p.mu.Lock()
	snap := p.pending
	p.pending = nil
	p.mu.Unlock()

	if snap == nil {
		return nil
	}

	doc := document{Version: documentVersion, SavedAt: time.Now().UTC(), Default: *snap}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("persist: marshal snapshot: %w", err)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("persist: write snapshot: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("persist: rename snapshot: %w", err)
	}
	p.writes++
	slog.Debug("snapshot written", "path", p.path, "tabs", len(snap.Tabs))
	return nil
}

// Load reads the last snapshot. Missing or unparseable state is a fresh
// start, never an error: the previous session is simply gone.
func Load(path string) (tabs.SectionSnapshot, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("snapshot read failed, starting fresh", "path", path, "error", err)
		}
		return tabs.SectionSnapshot{}, false
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("snapshot parse failed, starting fresh", "path", path, "error", err)
		return tabs.SectionSnapshot{}, false
	}
	return doc.Default, true
}
