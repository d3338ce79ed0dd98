package models

import (
	"fmt"
	"maps"
	"slices"
)

// Database represents a parsed bibliographic database at one point in time
type Database struct {
	Entries  []*Entry          `json:"entries"`
	Preamble string            `json:"preamble,omitempty"`
	Strings  map[string]string `json:"strings,omitempty"`  // @string constants by name
	Metadata map[string]string `json:"metadata,omitempty"` // jabref-meta blocks by name
	Comments []string          `json:"comments,omitempty"` // other @comment bodies, in file order
}

// NewDatabase creates a new empty Database
func NewDatabase() *Database {
	return &Database{
		Strings:  make(map[string]string),
		Metadata: make(map[string]string),
	}
}

// Lookup returns the entry with the given citation key, or nil
func (d *Database) Lookup(key string) *Entry {
	if d == nil || key == "" {
		return nil
	}
	for _, e := range d.Entries {
		if e.Key == key {
			return e
		}
	}
	return nil
}

// ByKey indexes all keyed entries by citation key. Entries without a key are skipped.
func (d *Database) ByKey() map[string]*Entry {
	index := make(map[string]*Entry)
	if d == nil {
		return index
	}
	for _, e := range d.Entries {
		if !e.HasKey() {
			continue
		}
		if _, exists := index[e.Key]; !exists {
			index[e.Key] = e
		}
	}
	return index
}

// Add appends an entry
func (d *Database) Add(e *Entry) {
	d.Entries = append(d.Entries, e)
}

// Remove deletes the entry with the given key. Returns false if absent.
func (d *Database) Remove(key string) bool {
	for i, e := range d.Entries {
		if e.Key == key && key != "" {
			d.Entries = append(d.Entries[:i], d.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// Replace swaps the entry with the same key for e, appending if absent
func (d *Database) Replace(e *Entry) {
	for i, existing := range d.Entries {
		if existing.Key == e.Key && e.Key != "" {
			d.Entries[i] = e
			return
		}
	}
	d.Entries = append(d.Entries, e)
}

// Validate checks that citation keys are unique
func (d *Database) Validate() error {
	seen := make(map[string]bool, len(d.Entries))
	for _, e := range d.Entries {
		if !e.HasKey() {
			continue
		}
		if seen[e.Key] {
			return fmt.Errorf("duplicate citation key '%s'", e.Key)
		}
		seen[e.Key] = true
	}
	return nil
}

// Clone returns a deep copy of the database
func (d *Database) Clone() *Database {
	if d == nil {
		return NewDatabase()
	}
	out := &Database{
		Entries:  make([]*Entry, 0, len(d.Entries)),
		Preamble: d.Preamble,
		Strings:  maps.Clone(d.Strings),
		Metadata: maps.Clone(d.Metadata),
		Comments: slices.Clone(d.Comments),
	}
	if out.Strings == nil {
		out.Strings = make(map[string]string)
	}
	if out.Metadata == nil {
		out.Metadata = make(map[string]string)
	}
	for _, e := range d.Entries {
		out.Entries = append(out.Entries, e.Clone())
	}
	return out
}
