package tabs

// ChangeKind enumerates section mutations.
type ChangeKind string

const (
	ChangeSelected   ChangeKind = "selected"
	ChangeAppended   ChangeKind = "appended"
	ChangeInserted   ChangeKind = "inserted"
	ChangeRemoved    ChangeKind = "removed"
	ChangeRemovedAll ChangeKind = "removed_all"
	ChangeUpdated    ChangeKind = "updated"
	ChangeSwapped    ChangeKind = "swapped"
)

// Field names a mutable TabRecord field for ChangeUpdated events.
type Field string

const (
	FieldURL          Field = "url"
	FieldTitle        Field = "title"
	FieldFavicon      Field = "favicon"
	FieldThumbnail    Field = "thumbnail"
	FieldLastAccessed Field = "last_accessed"
)

// Change describes exactly one section mutation. Every mutating Section
// operation emits exactly one Change to all subscribers, synchronously and in
// call order, before the operation returns.
type Change struct {
	Kind      ChangeKind
	Incognito bool  // which section emitted
	ID        TabID // subject tab; empty for ChangeRemovedAll
	Field     Field // set for ChangeUpdated only
	Index     int   // position of the subject tab; -1 when not applicable
	Other     int   // second index for ChangeSwapped; -1 otherwise
}
