package models

// ChangeKind identifies a DatabaseChange variant
type ChangeKind string

const (
	ChangeEntryAdded      ChangeKind = "entry_added"
	ChangeEntryChanged    ChangeKind = "entry_changed"
	ChangeEntryDeleted    ChangeKind = "entry_deleted"
	ChangeStringAdded     ChangeKind = "string_added"
	ChangeStringChanged   ChangeKind = "string_changed"
	ChangeStringDeleted   ChangeKind = "string_deleted"
	ChangeStringRenamed   ChangeKind = "string_renamed"
	ChangeMetadataChanged ChangeKind = "metadata_changed"
	ChangePreambleChanged ChangeKind = "preamble_changed"
)

// DatabaseChange is one difference between two database snapshots.
// The set of implementations is closed; consumers switch over all of them.
type DatabaseChange interface {
	Kind() ChangeKind
	databaseChange()
}

// EntryAdded is an entry present only in the newer snapshot
type EntryAdded struct {
	Entry *Entry
}

// EntryChanged is an entry whose type or fields differ
type EntryChanged struct {
	Old   *Entry
	New   *Entry
	Patch FieldPatch
}

// EntryDeleted is an entry present only in the older snapshot
type EntryDeleted struct {
	Entry *Entry
}

// StringAdded is a new @string constant
type StringAdded struct {
	Name  string
	Value string
}

// StringChanged is a @string constant whose value changed
type StringChanged struct {
	Name     string
	OldValue string
	NewValue string
}

// StringDeleted is a removed @string constant
type StringDeleted struct {
	Name  string
	Value string
}

// StringRenamed is a @string constant that kept its value under a new name
type StringRenamed struct {
	OldName string
	NewName string
	Value   string
}

// MetadataChanged carries the complete old and new metadata maps
type MetadataChanged struct {
	Old map[string]string
	New map[string]string
}

// PreambleChanged is a change to the @preamble
type PreambleChanged struct {
	Old string
	New string
}

func (EntryAdded) Kind() ChangeKind      { return ChangeEntryAdded }
func (EntryChanged) Kind() ChangeKind    { return ChangeEntryChanged }
func (EntryDeleted) Kind() ChangeKind    { return ChangeEntryDeleted }
func (StringAdded) Kind() ChangeKind     { return ChangeStringAdded }
func (StringChanged) Kind() ChangeKind   { return ChangeStringChanged }
func (StringDeleted) Kind() ChangeKind   { return ChangeStringDeleted }
func (StringRenamed) Kind() ChangeKind   { return ChangeStringRenamed }
func (MetadataChanged) Kind() ChangeKind { return ChangeMetadataChanged }
func (PreambleChanged) Kind() ChangeKind { return ChangePreambleChanged }

func (EntryAdded) databaseChange()      {}
func (EntryChanged) databaseChange()    {}
func (EntryDeleted) databaseChange()    {}
func (StringAdded) databaseChange()     {}
func (StringChanged) databaseChange()   {}
func (StringDeleted) databaseChange()   {}
func (StringRenamed) databaseChange()   {}
func (MetadataChanged) databaseChange() {}
func (PreambleChanged) databaseChange() {}
