package cardgrid

import (
	"log/slog"
	"time"

	"github.com/dgnsrekt/tabdeck/internal/tabs"
)

// Hooks are the presentation layer's entry points for the zoom transition.
// The model calls them synchronously from its own methods; the done callbacks
// may arrive later from the animation layer and must be invoked exactly once.
// Nil hooks are no-ops, which is what headless and test configurations use.
type Hooks struct {
	// HideOverlay hides content-overlay chrome. Called synchronously before
	// a transition starts so decorations never pop mid-animation.
	HideOverlay func()

	// ShowOverlay reveals content-overlay chrome. Called only after the
	// zoom-in animation reports completion.
	ShowOverlay func()

	// Animate runs the zoom animation and must call done exactly once when
	// it completes.
	Animate func(zoomIn bool, done func())

	// CaptureThumbnail refreshes the foreground tab's thumbnail before the
	// grid is shown. The coordinator bounds it with the snapshot/timeout
	// race and calls done whether the capture applied or timed out.
	CaptureThumbnail func(done func())
}

// Viewport describes the grid geometry used for directional moves.
type Viewport struct {
	Width        float64
	Spacing      float64
	MinCardWidth float64
}

// Columns computes the grid's column count.
func (v Viewport) Columns() int {
	if v.Spacing+v.MinCardWidth <= 0 {
		return 1
	}
	n := int((v.Width - v.Spacing) / (v.Spacing + v.MinCardWidth))
	if n < 1 {
		return 1
	}
	return n
}

// Direction is a requested card move within the grid.
type Direction string

const (
	MoveUp    Direction = "up"
	MoveDown  Direction = "down"
	MoveLeft  Direction = "left"
	MoveRight Direction = "right"
)

// MoveTarget resolves a directional move of the card at index within a grid
// of count cards to the card's final index, or false for a no-op. The move
// semantics are remove-then-insert-before-target, so a raw target right of
// the source lands one short of it.
//
// The rightward raw offset is +2 against leftward's -1. That asymmetry is a
// characterized behavior of the original collection model (a pre-increment:
// with insert-before semantics +2 nets a one-column move) and is preserved
// exactly; see the companion test.
func MoveTarget(index, count int, dir Direction, v Viewport) (int, bool) {
	if index < 0 || index >= count {
		return 0, false
	}
	ncols := v.Columns()

	var raw int
	switch dir {
	case MoveUp:
		raw = index - ncols
		if raw < 0 {
			return 0, false
		}
	case MoveDown:
		raw = index + ncols
		if raw >= count-1 {
			return 0, false
		}
	case MoveLeft:
		if index%ncols == 0 {
			return 0, false
		}
		raw = index - 1
	case MoveRight:
		if index%ncols == ncols-1 {
			return 0, false
		}
		raw = index + 2
		if raw > count {
			return 0, false
		}
	default:
		return 0, false
	}

	final := raw
	if raw > index {
		final = raw - 1
	}
	if final == index {
		return 0, false
	}
	return final, true
}

// Model is the grid presentation state machine: whether the grid overview is
// visible, which card is focused, and the derived card sequence.
type Model struct {
	now        func() time.Time
	staleAfter time.Duration
	hooks      Hooks

	cards    []Card
	showGrid bool
	selected tabs.TabID
	viewport Viewport

	transitioning bool

	// hideDecorations is ephemeral UI-only state, reset whenever the card
	// set is rebuilt. Never persisted.
	hideDecorations bool
}

func NewModel(now func() time.Time, staleAfter time.Duration, hooks Hooks) *Model {
	if now == nil {
		now = time.Now
	}
	if staleAfter <= 0 {
		staleAfter = StaleAfter
	}
	return &Model{now: now, staleAfter: staleAfter, hooks: hooks, showGrid: true}
}

func (m *Model) SetViewport(v Viewport) { m.viewport = v }
func (m *Model) Viewport() Viewport     { return m.viewport }

// Cards returns the current derived card sequence.
func (m *Model) Cards() []Card { return m.cards }

func (m *Model) ShowGrid() bool            { return m.showGrid }
func (m *Model) Selected() tabs.TabID      { return m.selected }
func (m *Model) Transitioning() bool       { return m.transitioning }
func (m *Model) HideDecorations() bool     { return m.hideDecorations }
func (m *Model) SetHideDecorations(v bool) { m.hideDecorations = v }

// Rebuild re-derives the full card set from a section snapshot and resets
// ephemeral card state. Used at startup and when sections are swapped.
func (m *Model) Rebuild(snap tabs.SectionSnapshot) {
	m.cards = Derive(snap, m.now(), m.staleAfter)
	m.selected = snap.Selected
	m.hideDecorations = false
	if len(m.cards) == 0 {
		// Nothing to show full-screen.
		m.showGrid = true
	}
}

// Apply folds one store change event into the card set. Events must be
// applied in emission order with no reordering or dropping; coalescing
// happens only in persistence, never here.
func (m *Model) Apply(c tabs.Change, snap tabs.SectionSnapshot) {
	switch c.Kind {
	case tabs.ChangeSelected:
		m.selected = c.ID
	case tabs.ChangeRemoved, tabs.ChangeRemovedAll:
		m.cards = Derive(snap, m.now(), m.staleAfter)
		m.selected = snap.Selected
		if len(m.cards) == 0 {
			m.showGrid = true
		}
	case tabs.ChangeAppended, tabs.ChangeInserted, tabs.ChangeSwapped:
		m.cards = Derive(snap, m.now(), m.staleAfter)
	case tabs.ChangeUpdated:
		switch c.Field {
		case tabs.FieldTitle, tabs.FieldFavicon, tabs.FieldThumbnail, tabs.FieldLastAccessed:
			m.cards = Derive(snap, m.now(), m.staleAfter)
		}
	}
}

// CardIndex returns the position of the card with id, or -1. For group cards
// the group's own id matches, not its members'.
func (m *Model) CardIndex(id tabs.TabID) int {
	for i, c := range m.cards {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// ZoomIn transitions from the grid overview to the focused full-screen tab:
// overlay chrome is hidden synchronously, the animation runs, and the overlay
// is revealed only once the animation's completion callback fires.
func (m *Model) ZoomIn() {
	if !m.showGrid || m.transitioning {
		return
	}
	m.transitioning = true
	if m.hooks.HideOverlay != nil {
		m.hooks.HideOverlay()
	}
	m.showGrid = false
	m.animate(true, func() {
		m.transitioning = false
		if m.hooks.ShowOverlay != nil {
			m.hooks.ShowOverlay()
		}
	})
}

// ZoomOut transitions from the full-screen tab to the grid overview. While
// content is showing, a fresh thumbnail is requested first (bounded by the
// coordinator's snapshot race) and the shrink animation starts only once
// that capture completes or times out.
func (m *Model) ZoomOut() {
	if m.showGrid || m.transitioning {
		return
	}
	m.transitioning = true
	if m.hooks.HideOverlay != nil {
		m.hooks.HideOverlay()
	}
	start := func() {
		m.showGrid = true
		m.animate(false, func() {
			m.transitioning = false
		})
	}
	if m.hooks.CaptureThumbnail != nil {
		m.hooks.CaptureThumbnail(start)
		return
	}
	start()
}

// ForceGrid makes the grid visible without animating. Used when a section
// swap lands on an empty section.
func (m *Model) ForceGrid() {
	m.showGrid = true
	m.transitioning = false
}

func (m *Model) animate(zoomIn bool, done func()) {
	if m.hooks.Animate == nil {
		done()
		return
	}
	var fired bool
	m.hooks.Animate(zoomIn, func() {
		if fired {
			slog.Warn("zoom animation completion fired twice", "zoom_in", zoomIn)
			return
		}
		fired = true
		done()
	})
}
