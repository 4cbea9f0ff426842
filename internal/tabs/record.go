package tabs

import (
	"time"

	"github.com/google/uuid"
)

// TabID identifies one open web session. IDs are generated at creation and
// never reused for the lifetime of the process or any persisted snapshot.
type TabID string

// NewID returns a fresh string-UUID tab id.
func NewID() TabID {
	return TabID(uuid.NewString())
}

// TabRecord is the authoritative metadata for one open web session. The
// record never holds a live engine handle; it carries only ids and blob
// references so a cold tab can still be displayed from last-known data.
type TabRecord struct {
	ID           TabID     `json:"id"`
	URL          string    `json:"url,omitempty"`
	Title        string    `json:"title,omitempty"`
	FaviconRef   string    `json:"favicon_ref,omitempty"`   // blob key: favicon source URL
	ThumbnailRef string    `json:"thumbnail_ref,omitempty"` // blob key: tab id
	LastAccessed time.Time `json:"last_accessed,omitempty"` // zero means never foregrounded
	OpenerID     TabID     `json:"opener_id,omitempty"`     // weak relation, see Store.ResolveOpener
}

// SectionSnapshot is an immutable copy of a section's state, handed to
// persistence and to API consumers.
type SectionSnapshot struct {
	Incognito bool        `json:"-"`
	Tabs      []TabRecord `json:"tabs"`
	Selected  TabID       `json:"selected_tab_id,omitempty"`
}
