package models

import "slices"

// ConflictStrategy defines how to handle merge conflicts
type ConflictStrategy string

const (
	ConflictAbort  ConflictStrategy = "abort"  // Default: stop and report conflicts
	ConflictOurs   ConflictStrategy = "ours"   // Prefer the local version
	ConflictTheirs ConflictStrategy = "theirs" // Prefer the remote version
)

// MergeConflictType identifies the type of merge conflict
type MergeConflictType string

const (
	ConflictModifyModify MergeConflictType = "modify-modify" // Both modified the same field differently
	ConflictDeleteModify MergeConflictType = "delete-modify" // Local deleted, remote modified
	ConflictModifyDelete MergeConflictType = "modify-delete" // Local modified, remote deleted
	ConflictAddAdd       MergeConflictType = "add-add"       // Both added the key with clashing fields
)

// ThreeWayEntryConflict represents an entry that base, local and remote
// disagree on irreconcilably. A nil side means the entry is absent there.
type ThreeWayEntryConflict struct {
	Key    string
	Type   MergeConflictType
	Base   *Entry
	Local  *Entry
	Remote *Entry
	Fields []string // colliding field names, sorted; empty for delete conflicts
}

// FieldPatch maps field names to new values. A nil value deletes the field.
type FieldPatch map[string]*string

// Set records a new value for a field
func (p FieldPatch) Set(name, value string) {
	v := value
	p[name] = &v
}

// Delete records a tombstone for a field
func (p FieldPatch) Delete(name string) {
	p[name] = nil
}

// IsDeletion reports whether the patch removes the field
func (p FieldPatch) IsDeletion(name string) bool {
	v, ok := p[name]
	return ok && v == nil
}

// Names returns the patched field names in sorted order
func (p FieldPatch) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// MergePlan is the automatically applicable portion of a three-way merge
type MergePlan struct {
	NewEntries       []*Entry              // entries to insert verbatim
	FieldPatches     map[string]FieldPatch // citation key -> field patch
	DeletedEntryKeys []string              // sorted citation keys to remove
}

// NewMergePlan creates an empty MergePlan
func NewMergePlan() *MergePlan {
	return &MergePlan{
		NewEntries:       []*Entry{},
		FieldPatches:     make(map[string]FieldPatch),
		DeletedEntryKeys: []string{},
	}
}

// IsEmpty reports whether the plan changes nothing
func (p *MergePlan) IsEmpty() bool {
	return len(p.NewEntries) == 0 && len(p.FieldPatches) == 0 && len(p.DeletedEntryKeys) == 0
}

// Touches reports whether a key appears in any mutating section of the plan
func (p *MergePlan) Touches(key string) bool {
	if _, ok := p.FieldPatches[key]; ok {
		return true
	}
	if slices.Contains(p.DeletedEntryKeys, key) {
		return true
	}
	for _, e := range p.NewEntries {
		if e.Key == key {
			return true
		}
	}
	return false
}

// MergeAnalysis pairs the auto plan with the conflicts needing manual resolution
type MergeAnalysis struct {
	AutoPlan  *MergePlan
	Conflicts []*ThreeWayEntryConflict
}

// HasConflicts returns true if manual resolution is required
func (a *MergeAnalysis) HasConflicts() bool {
	return len(a.Conflicts) > 0
}

// ResolutionChoice names the side a conflict was resolved to
type ResolutionChoice string

const (
	ResolveLocal  ResolutionChoice = "local"
	ResolveRemote ResolutionChoice = "remote"
	ResolveManual ResolutionChoice = "manual"
)

// Resolution is the outcome of resolving one conflict. For ResolveManual,
// Entry holds the edited record; a nil Entry removes the key.
type Resolution struct {
	Key    string
	Choice ResolutionChoice
	Entry  *Entry
}
