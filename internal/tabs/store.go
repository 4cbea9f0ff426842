// Package tabs holds the authoritative, section-partitioned tab store.
//
// The store is not safe for concurrent use. All access is confined to the
// shell coordinator's run loop; see internal/shell.
package tabs

import (
	"fmt"
	"log/slog"
	"time"
)

// Sentinel errors for programmer-error cases. The API layer maps these to
// stable coded errors; nothing here is user-fatal.
var (
	ErrNotFound    = fmt.Errorf("tab not found")
	ErrDuplicateID = fmt.Errorf("duplicate tab id")
)

// Store owns exactly two sections: the persistent default section and the
// ephemeral incognito section.
type Store struct {
	def       *Section
	incognito *Section
	subs      []func(Change)
}

// Section is one ordered partition of tabs with at most one selection.
type Section struct {
	store     *Store
	incognito bool
	records   []*TabRecord
	selected  TabID
}

func NewStore() *Store {
	s := &Store{}
	s.def = &Section{store: s}
	s.incognito = &Section{store: s, incognito: true}
	return s
}

// Default returns the persistent section.
func (s *Store) Default() *Section { return s.def }

// Incognito returns the ephemeral section. It is never persisted.
func (s *Store) Incognito() *Section { return s.incognito }

// Section returns the section for the given mode.
func (s *Store) Section(incognito bool) *Section {
	if incognito {
		return s.incognito
	}
	return s.def
}

// Subscribe registers a change listener. Events are delivered synchronously,
// in mutation order, before each mutating call returns. Subscribers must not
// mutate the store re-entrantly.
func (s *Store) Subscribe(fn func(Change)) {
	s.subs = append(s.subs, fn)
}

func (s *Store) emit(c Change) {
	for _, fn := range s.subs {
		fn(c)
	}
}

// Restore replaces the default section's contents from a persisted snapshot.
// It emits no events; callers re-derive downstream state explicitly.
func (s *Store) Restore(snap SectionSnapshot) {
	sec := s.def
	sec.records = make([]*TabRecord, 0, len(snap.Tabs))
	for i := range snap.Tabs {
		rec := snap.Tabs[i]
		sec.records = append(sec.records, &rec)
	}
	sec.selected = ""
	if snap.Selected != "" && sec.indexOf(snap.Selected) >= 0 {
		sec.selected = snap.Selected
	}
}

// Incognito reports which section this is.
func (sec *Section) IsIncognito() bool { return sec.incognito }

// Len returns the number of tabs in the section.
func (sec *Section) Len() int { return len(sec.records) }

// Selected returns the selected tab id, or "" when nothing is selected.
func (sec *Section) Selected() TabID { return sec.selected }

// Get returns a copy of the record for id.
func (sec *Section) Get(id TabID) (TabRecord, bool) {
	i := sec.indexOf(id)
	if i < 0 {
		return TabRecord{}, false
	}
	return *sec.records[i], true
}

// At returns a copy of the record at position i.
func (sec *Section) At(i int) TabRecord { return *sec.records[i] }

// IndexOf returns the position of id, or -1.
func (sec *Section) IndexOf(id TabID) int { return sec.indexOf(id) }

func (sec *Section) indexOf(id TabID) int {
	for i, r := range sec.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// Snapshot returns a deep copy of the section's state.
func (sec *Section) Snapshot() SectionSnapshot {
	snap := SectionSnapshot{
		Incognito: sec.incognito,
		Tabs:      make([]TabRecord, len(sec.records)),
		Selected:  sec.selected,
	}
	for i, r := range sec.records {
		snap.Tabs[i] = *r
	}
	return snap
}

// SelectTab sets the section's selection and emits ChangeSelected.
func (sec *Section) SelectTab(id TabID) error {
	i := sec.indexOf(id)
	if i < 0 {
		return fmt.Errorf("select %s: %w", id, ErrNotFound)
	}
	sec.selected = id
	sec.store.emit(Change{Kind: ChangeSelected, Incognito: sec.incognito, ID: id, Index: i, Other: -1})
	return nil
}

// AppendTab adds a record at the end of the section.
func (sec *Section) AppendTab(rec TabRecord) error {
	if sec.indexOf(rec.ID) >= 0 {
		return fmt.Errorf("append %s: %w", rec.ID, ErrDuplicateID)
	}
	r := rec
	sec.records = append(sec.records, &r)
	sec.store.emit(Change{Kind: ChangeAppended, Incognito: sec.incognito, ID: rec.ID, Index: len(sec.records) - 1, Other: -1})
	return nil
}

// InsertTab adds a record immediately after afterID.
func (sec *Section) InsertTab(rec TabRecord, afterID TabID) error {
	if sec.indexOf(rec.ID) >= 0 {
		return fmt.Errorf("insert %s: %w", rec.ID, ErrDuplicateID)
	}
	at := sec.indexOf(afterID)
	if at < 0 {
		return fmt.Errorf("insert after %s: %w", afterID, ErrNotFound)
	}
	r := rec
	pos := at + 1
	sec.records = append(sec.records, nil)
	copy(sec.records[pos+1:], sec.records[pos:])
	sec.records[pos] = &r
	sec.store.emit(Change{Kind: ChangeInserted, Incognito: sec.incognito, ID: rec.ID, Index: pos, Other: -1})
	return nil
}

// RemoveTab removes a record. If the removed tab was selected the selection
// becomes empty; the store never auto-selects a replacement, that is the
// coordinator's job.
func (sec *Section) RemoveTab(id TabID) error {
	i := sec.indexOf(id)
	if i < 0 {
		return fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	sec.records = append(sec.records[:i], sec.records[i+1:]...)
	if sec.selected == id {
		sec.selected = ""
	}
	sec.store.emit(Change{Kind: ChangeRemoved, Incognito: sec.incognito, ID: id, Index: i, Other: -1})
	return nil
}

// RemoveAllTabs clears the section.
func (sec *Section) RemoveAllTabs() {
	sec.records = sec.records[:0]
	sec.selected = ""
	sec.store.emit(Change{Kind: ChangeRemovedAll, Incognito: sec.incognito, Index: -1, Other: -1})
}

// SetURL updates a tab's url. Redundant updates still emit; see package rule
// on suppression below.
func (sec *Section) SetURL(id TabID, url string) error {
	return sec.update(id, FieldURL, func(r *TabRecord) bool {
		r.URL = url
		return true
	})
}

// SetTitle updates a tab's title. Title updates arrive on every engine load
// notification, so an identical value is suppressed (no event, no
// persistence churn). URL, thumbnail and last-accessed updates always emit.
func (sec *Section) SetTitle(id TabID, title string) error {
	return sec.update(id, FieldTitle, func(r *TabRecord) bool {
		if r.Title == title {
			return false
		}
		r.Title = title
		return true
	})
}

// SetFavicon updates a tab's favicon blob reference. Identical values are
// suppressed, same rule as SetTitle.
func (sec *Section) SetFavicon(id TabID, ref string) error {
	return sec.update(id, FieldFavicon, func(r *TabRecord) bool {
		if r.FaviconRef == ref {
			return false
		}
		r.FaviconRef = ref
		return true
	})
}

// SetThumbnail updates a tab's thumbnail blob reference.
func (sec *Section) SetThumbnail(id TabID, ref string) error {
	return sec.update(id, FieldThumbnail, func(r *TabRecord) bool {
		r.ThumbnailRef = ref
		return true
	})
}

// Touch records that the tab became the foreground tab at t.
func (sec *Section) Touch(id TabID, t time.Time) error {
	return sec.update(id, FieldLastAccessed, func(r *TabRecord) bool {
		r.LastAccessed = t
		return true
	})
}

func (sec *Section) update(id TabID, field Field, apply func(*TabRecord) bool) error {
	i := sec.indexOf(id)
	if i < 0 {
		return fmt.Errorf("update %s %s: %w", field, id, ErrNotFound)
	}
	if !apply(sec.records[i]) {
		slog.Debug("tab update suppressed", "field", field, "tab", id)
		return nil
	}
	sec.store.emit(Change{Kind: ChangeUpdated, Incognito: sec.incognito, ID: id, Field: field, Index: i, Other: -1})
	return nil
}

// SwapTabs reorders two tabs in place.
func (sec *Section) SwapTabs(i, j int) error {
	if i < 0 || j < 0 || i >= len(sec.records) || j >= len(sec.records) {
		return fmt.Errorf("swap %d,%d of %d: %w", i, j, len(sec.records), ErrNotFound)
	}
	sec.records[i], sec.records[j] = sec.records[j], sec.records[i]
	sec.store.emit(Change{Kind: ChangeSwapped, Incognito: sec.incognito, ID: sec.records[j].ID, Index: i, Other: j})
	return nil
}

// MoveTab removes the tab at from and re-inserts it so it ends up at
// position to. Used by directional card moves.
func (sec *Section) MoveTab(from, to int) error {
	n := len(sec.records)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("move %d->%d of %d: %w", from, to, n, ErrNotFound)
	}
	if from == to {
		return nil
	}
	r := sec.records[from]
	sec.records = append(sec.records[:from], sec.records[from+1:]...)
	sec.records = append(sec.records, nil)
	copy(sec.records[to+1:], sec.records[to:])
	sec.records[to] = r
	sec.store.emit(Change{Kind: ChangeSwapped, Incognito: sec.incognito, ID: r.ID, Index: to, Other: from})
	return nil
}

// ResolveOpener resolves a tab's opener relation against this section.
// It returns false once the opener record is gone; callers drop the
// reference and carry on (broken opener links are never fatal).
func (sec *Section) ResolveOpener(id TabID) (TabRecord, bool) {
	i := sec.indexOf(id)
	if i < 0 {
		return TabRecord{}, false
	}
	opener := sec.records[i].OpenerID
	if opener == "" {
		return TabRecord{}, false
	}
	j := sec.indexOf(opener)
	if j < 0 {
		return TabRecord{}, false
	}
	return *sec.records[j], true
}

// ClearOpener drops a broken opener reference. No event; the opener relation
// is not a watched display field.
func (sec *Section) ClearOpener(id TabID) {
	if i := sec.indexOf(id); i >= 0 {
		sec.records[i].OpenerID = ""
	}
}
