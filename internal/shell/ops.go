package shell

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgnsrekt/tabdeck/internal/cardgrid"
	"github.com/dgnsrekt/tabdeck/internal/tabs"
)

// State is a point-in-time view of the shell for the API layer.
type State struct {
	Incognito   bool             `json:"incognito"`
	ShowGrid    bool             `json:"show_grid"`
	Selected    tabs.TabID       `json:"selected,omitempty"`
	Tabs        []tabs.TabRecord `json:"tabs"`
	Cards       []cardgrid.Card  `json:"cards"`
	LiveEngines []tabs.TabID     `json:"live_engines"`
	Suppressed  bool             `json:"suppressed"`
}

// State reports the active section's tabs, the derived card sequence and
// which tabs currently hold a live engine.
func (c *Coordinator) State(ctx context.Context) (State, error) {
	var st State
	err := c.do(ctx, func() error {
		sec := c.activeSection()
		snap := sec.Snapshot()
		st = State{
			Incognito:   c.incognito,
			ShowGrid:    c.grid.ShowGrid(),
			Selected:    snap.Selected,
			Tabs:        snap.Tabs,
			Cards:       c.grid.Cards(),
			LiveEngines: c.cache.IDs(),
			Suppressed:  c.suppress,
		}
		return nil
	})
	return st, err
}

// OpenTab creates a new tab in the active section from free-form address
// input, attaches an engine, selects it and exits the grid if showing.
func (c *Coordinator) OpenTab(ctx context.Context, input string) (tabs.TabRecord, error) {
	var rec tabs.TabRecord
	err := c.do(ctx, func() error {
		var opErr error
		rec, opErr = c.openTab(input, "")
		return opErr
	})
	return rec, err
}

// OpenChildTab creates a tab inserted immediately after its opener, carrying
// the opener relation. A missing opener degrades to a plain append.
func (c *Coordinator) OpenChildTab(ctx context.Context, input string, opener tabs.TabID) (tabs.TabRecord, error) {
	var rec tabs.TabRecord
	err := c.do(ctx, func() error {
		var opErr error
		rec, opErr = c.openTab(input, opener)
		return opErr
	})
	return rec, err
}

func (c *Coordinator) openTab(input string, opener tabs.TabID) (tabs.TabRecord, error) {
	if err := c.checkSuppressed(); err != nil {
		return tabs.TabRecord{}, err
	}
	sec := c.activeSection()
	rec := tabs.TabRecord{ID: tabs.NewID(), URL: ResolveInput(input, c.cfg.SearchEndpoint)}

	if opener != "" && sec.IndexOf(opener) >= 0 {
		rec.OpenerID = opener
		if err := sec.InsertTab(rec, opener); err != nil {
			return tabs.TabRecord{}, codeStoreErr(err)
		}
	} else {
		if err := sec.AppendTab(rec); err != nil {
			return tabs.TabRecord{}, codeStoreErr(err)
		}
	}

	// Select before realizing so the eviction pass sees the new tab as
	// current and never tears down the engine it is about to hand out.
	c.foreground(sec, rec.ID)
	if _, err := c.realize(rec, c.incognito, nil); err != nil {
		// The record stays; the tab is cold until the next switch retries.
		slog.Warn("engine attach failed on open", "tab", rec.ID, "error", err)
	}

	out, _ := sec.Get(rec.ID)
	return out, nil
}

// CloseTab removes a tab and tears down its engine immediately. Closing the
// selected tab promotes a deterministic replacement: the tab now occupying
// the closed tab's index, clamped to the last tab. Closing the last tab
// leaves the section empty and forces the grid.
func (c *Coordinator) CloseTab(ctx context.Context, id tabs.TabID) error {
	return c.do(ctx, func() error {
		if err := c.checkSuppressed(); err != nil {
			return err
		}
		sec := c.activeSection()
		i := sec.IndexOf(id)
		if i < 0 {
			return newError(CodeTabNotFound, "tab not found", tabs.ErrNotFound)
		}
		wasSelected := sec.Selected() == id

		c.cache.Remove(id)
		c.dropInteractionState(id)
		if err := sec.RemoveTab(id); err != nil {
			return codeStoreErr(err)
		}
		if !wasSelected {
			return nil
		}
		if sec.Len() == 0 {
			c.grid.ForceGrid()
			return nil
		}
		j := i
		if j >= sec.Len() {
			j = sec.Len() - 1
		}
		// Closing only promotes; whichever of grid or content was showing
		// stays showing.
		return c.promote(sec, sec.At(j).ID)
	})
}

// CloseAllTabs empties the active section and tears down every engine it
// owned. The grid is forced visible.
func (c *Coordinator) CloseAllTabs(ctx context.Context) error {
	return c.do(ctx, func() error {
		if err := c.checkSuppressed(); err != nil {
			return err
		}
		sec := c.activeSection()
		for i := 0; i < sec.Len(); i++ {
			c.cache.Remove(sec.At(i).ID)
			c.dropInteractionState(sec.At(i).ID)
		}
		sec.RemoveAllTabs()
		c.grid.ForceGrid()
		return nil
	})
}

// SelectCard foregrounds the tab behind a grid card and zooms in. Group
// cards cannot be selected directly; pass a member tab's id.
func (c *Coordinator) SelectCard(ctx context.Context, id tabs.TabID) error {
	return c.do(ctx, func() error {
		if err := c.checkSuppressed(); err != nil {
			return err
		}
		return c.switchTo(c.activeSection(), id)
	})
}

// SwitchTab foregrounds an arbitrary tab in the active section, realizing a
// cold tab's engine on demand.
func (c *Coordinator) SwitchTab(ctx context.Context, id tabs.TabID) error {
	return c.do(ctx, func() error {
		if err := c.checkSuppressed(); err != nil {
			return err
		}
		return c.switchTo(c.activeSection(), id)
	})
}

// switchTo makes id the foreground tab and exits the grid when it is
// showing: resume the live engine when cached, otherwise realize a fresh one.
func (c *Coordinator) switchTo(sec *tabs.Section, id tabs.TabID) error {
	if err := c.promote(sec, id); err != nil {
		return err
	}
	if sec == c.activeSection() && c.grid.ShowGrid() {
		c.grid.ZoomIn()
	}
	return nil
}

// promote selects id and attaches an engine if needed, without changing grid
// visibility. Engine attach failure still selects the tab on its last-known
// data.
func (c *Coordinator) promote(sec *tabs.Section, id tabs.TabID) error {
	rec, ok := sec.Get(id)
	if !ok {
		return newError(CodeTabNotFound, "tab not found", tabs.ErrNotFound)
	}
	c.focus(sec, id)
	if c.cache.Lookup(id) == nil {
		if _, err := c.realize(rec, sec.IsIncognito(), nil); err != nil {
			slog.Warn("engine attach failed on switch", "tab", id, "error", err)
		}
	}
	return nil
}

// BackToOpener navigates from a child tab back to its opener. A broken
// opener link is dropped silently and the call is a no-op.
func (c *Coordinator) BackToOpener(ctx context.Context, id tabs.TabID) (tabs.TabID, error) {
	var opener tabs.TabID
	err := c.do(ctx, func() error {
		if err := c.checkSuppressed(); err != nil {
			return err
		}
		sec := c.activeSection()
		if sec.IndexOf(id) < 0 {
			return newError(CodeTabNotFound, "tab not found", tabs.ErrNotFound)
		}
		rec, ok := sec.ResolveOpener(id)
		if !ok {
			sec.ClearOpener(id)
			slog.Debug("opener link broken", "tab", id)
			return nil
		}
		opener = rec.ID
		return c.switchTo(sec, rec.ID)
	})
	return opener, err
}

// Navigate loads new address input in an existing tab. The record's URL is
// updated optimistically; engine load-state events correct it as the load
// progresses.
func (c *Coordinator) Navigate(ctx context.Context, id tabs.TabID, input string) error {
	return c.do(ctx, func() error {
		if err := c.checkSuppressed(); err != nil {
			return err
		}
		sec := c.activeSection()
		rec, ok := sec.Get(id)
		if !ok {
			return newError(CodeTabNotFound, "tab not found", tabs.ErrNotFound)
		}
		target := ResolveInput(input, c.cfg.SearchEndpoint)
		if target == "" {
			return nil
		}
		inst := c.cache.Lookup(id)
		if inst == nil {
			rec.URL = target
			if _, err := c.realize(rec, c.incognito, nil); err != nil {
				return err
			}
		} else {
			go func() {
				if err := inst.Load(context.Background(), target); err != nil {
					slog.Warn("navigation failed", "tab", id, "url", target, "error", err)
				}
			}()
		}
		return sec.SetURL(id, target)
	})
}

// HistoryBack steps the tab's engine one entry back in its own history.
func (c *Coordinator) HistoryBack(ctx context.Context, id tabs.TabID) error {
	return c.historyOp(ctx, id, "back")
}

// HistoryForward steps the tab's engine one entry forward.
func (c *Coordinator) HistoryForward(ctx context.Context, id tabs.TabID) error {
	return c.historyOp(ctx, id, "forward")
}

// Reload reloads the tab's current page.
func (c *Coordinator) Reload(ctx context.Context, id tabs.TabID) error {
	return c.historyOp(ctx, id, "reload")
}

func (c *Coordinator) historyOp(ctx context.Context, id tabs.TabID, op string) error {
	return c.do(ctx, func() error {
		if err := c.checkSuppressed(); err != nil {
			return err
		}
		sec := c.activeSection()
		if sec.IndexOf(id) < 0 {
			return newError(CodeTabNotFound, "tab not found", tabs.ErrNotFound)
		}
		inst := c.cache.Lookup(id)
		if inst == nil {
			return newError(CodeEngineUnavailable, "tab has no live engine", nil)
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			var err error
			switch op {
			case "back":
				err = inst.Back(ctx)
			case "forward":
				err = inst.Forward(ctx)
			case "reload":
				err = inst.Reload(ctx)
			}
			if err != nil {
				slog.Warn("history operation failed", "tab", id, "op", op, "error", err)
			}
		}()
		return nil
	})
}

// ShowGridView zooms out to the grid overview, refreshing the foreground
// thumbnail first.
func (c *Coordinator) ShowGridView(ctx context.Context) error {
	return c.do(ctx, func() error {
		if err := c.checkSuppressed(); err != nil {
			return err
		}
		c.grid.ZoomOut()
		return nil
	})
}

// HideGridView zooms in on the selected tab. With no selection or an empty
// section the grid stays.
func (c *Coordinator) HideGridView(ctx context.Context) error {
	return c.do(ctx, func() error {
		if err := c.checkSuppressed(); err != nil {
			return err
		}
		sec := c.activeSection()
		if sec.Len() == 0 || sec.Selected() == "" {
			return nil
		}
		c.grid.ZoomIn()
		return nil
	})
}

// MoveCard shifts a single-tab card one grid step in the given direction.
// Group cards do not move; out-of-range moves are silent no-ops.
func (c *Coordinator) MoveCard(ctx context.Context, id tabs.TabID, dir cardgrid.Direction) error {
	return c.do(ctx, func() error {
		if err := c.checkSuppressed(); err != nil {
			return err
		}
		cards := c.grid.Cards()
		idx := c.grid.CardIndex(id)
		if idx < 0 {
			return newError(CodeTabNotFound, "no card for tab", tabs.ErrNotFound)
		}
		if cards[idx].Group {
			slog.Debug("group cards do not move", "card", id)
			return nil
		}
		target, ok := cardgrid.MoveTarget(idx, len(cards), dir, c.grid.Viewport())
		if !ok {
			return nil
		}
		from := tabOffset(cards, idx)
		rest := append(append([]cardgrid.Card(nil), cards[:idx]...), cards[idx+1:]...)
		to := tabOffset(rest, target)
		return codeStoreErr(c.activeSection().MoveTab(from, to))
	})
}

// tabOffset converts a card index to the underlying tab index by expanding
// stale groups to their member counts.
func tabOffset(cards []cardgrid.Card, cardIdx int) int {
	off := 0
	for i := 0; i < cardIdx && i < len(cards); i++ {
		if cards[i].Group {
			off += len(cards[i].Members)
		} else {
			off++
		}
	}
	return off
}

// ToggleIncognito swaps the active section. Selection and cards come from
// the target section's own state; an empty target forces the grid.
func (c *Coordinator) ToggleIncognito(ctx context.Context) (bool, error) {
	var on bool
	err := c.do(ctx, func() error {
		if err := c.checkSuppressed(); err != nil {
			return err
		}
		c.incognito = !c.incognito
		on = c.incognito
		sec := c.activeSection()
		c.grid.Rebuild(sec.Snapshot())
		if sec.Len() == 0 {
			c.grid.ForceGrid()
		}
		slog.Info("section swapped", "incognito", on, "tabs", sec.Len())
		return nil
	})
	return on, err
}

// RestoreSession replaces the default section from a persisted snapshot and
// eagerly realizes only the selected tab's engine; everything else resumes
// cold on demand.
func (c *Coordinator) RestoreSession(ctx context.Context, snap tabs.SectionSnapshot) error {
	return c.do(ctx, func() error {
		c.store.Restore(snap)
		sec := c.store.Default()
		if !c.incognito {
			c.grid.Rebuild(sec.Snapshot())
		}
		sel := sec.Selected()
		if sel == "" {
			return nil
		}
		rec, _ := sec.Get(sel)
		if _, err := c.realize(rec, false, nil); err != nil {
			slog.Warn("engine attach failed on session restore", "tab", sel, "error", err)
		}
		c.cache.Touch(sel)
		return nil
	})
}

// checkSuppressed rejects user interaction during the thumbnail capture
// race window.
func (c *Coordinator) checkSuppressed() error {
	if c.suppress {
		return newError(CodeSuppressed, "interaction suppressed during capture", nil)
	}
	return nil
}
