// Package cardgrid derives the display-ready card sequence from the tab
// store and owns grid-visibility, selection and zoom-transition state.
//
// Like the tab store, the model is confined to the shell coordinator's run
// loop and is not safe for concurrent use.
package cardgrid

import (
	"time"

	"github.com/dgnsrekt/tabdeck/internal/tabs"
)

const (
	// StaleAfter is how long a tab can go unvisited before it is collapsed
	// into an archived group card.
	StaleAfter = 5 * 24 * time.Hour

	// groupPreviewMax bounds the thumbnail previews shown on a group card.
	groupPreviewMax = 3
)

// Card is a display-only projection of one tab, or of a collapsed run of
// stale tabs. A group card's ID is the first member's tab id, which keeps ids
// unique across the displayed sequence. Cards are never persisted.
type Card struct {
	ID           tabs.TabID `json:"id"`
	Group        bool       `json:"group,omitempty"`
	Title        string     `json:"title,omitempty"`
	URL          string     `json:"url,omitempty"`
	FaviconRef   string     `json:"favicon_ref,omitempty"`
	ThumbnailRef string     `json:"thumbnail_ref,omitempty"`

	// Group fields.
	Previews []string     `json:"previews,omitempty"` // up to groupPreviewMax thumbnail refs
	Overflow int          `json:"overflow,omitempty"` // members beyond the previews: max(0, n-3)
	Members  []tabs.TabID `json:"members,omitempty"`  // all member tab ids, in section order
}

// Stale reports whether a record is eligible for archive grouping at now.
// A tab that was never foregrounded counts as stale.
func Stale(rec tabs.TabRecord, now time.Time, staleAfter time.Duration) bool {
	if rec.LastAccessed.IsZero() {
		return true
	}
	return now.Sub(rec.LastAccessed) > staleAfter
}

// Derive projects a section snapshot into cards: one card per fresh tab, and
// one group card per maximal run of consecutive stale tabs. Single
// left-to-right pass, order preserving, and idempotent for an unchanged
// snapshot.
func Derive(snap tabs.SectionSnapshot, now time.Time, staleAfter time.Duration) []Card {
	cards := make([]Card, 0, len(snap.Tabs))
	var run []tabs.TabRecord

	flush := func() {
		if len(run) == 0 {
			return
		}
		g := Card{
			ID:    run[0].ID,
			Group: true,
			Title: run[0].Title,
		}
		for _, r := range run {
			g.Members = append(g.Members, r.ID)
			if len(g.Previews) < groupPreviewMax && r.ThumbnailRef != "" {
				g.Previews = append(g.Previews, r.ThumbnailRef)
			}
		}
		if n := len(run); n > groupPreviewMax {
			g.Overflow = n - groupPreviewMax
		}
		cards = append(cards, g)
		run = nil
	}

	for _, rec := range snap.Tabs {
		if Stale(rec, now, staleAfter) {
			run = append(run, rec)
			continue
		}
		flush()
		cards = append(cards, Card{
			ID:           rec.ID,
			Title:        rec.Title,
			URL:          rec.URL,
			FaviconRef:   rec.FaviconRef,
			ThumbnailRef: rec.ThumbnailRef,
		})
	}
	flush()
	return cards
}
