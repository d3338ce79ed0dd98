// Package models defines the core data structures used throughout bibsync
// including bibliographic entries, database snapshots, and merge results.
package models

import (
	"maps"
	"strings"
)

// TypeField is the pseudo-field carrying the entry type inside a FieldPatch.
const TypeField = "entrytype"

// Entry represents a single bibliographic record
type Entry struct {
	Key    string            `json:"key"`
	Type   string            `json:"type"`
	Fields map[string]string `json:"fields"`
}

// NewEntry creates an entry with a lower-cased type and no fields
func NewEntry(entryType, key string) *Entry {
	return &Entry{
		Key:    key,
		Type:   strings.ToLower(entryType),
		Fields: make(map[string]string),
	}
}

// Set stores a field value under its normalized name
func (e *Entry) Set(name, value string) *Entry {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[NormalizeFieldName(name)] = value
	return e
}

// Get returns the value of a field and whether it is present
func (e *Entry) Get(name string) (string, bool) {
	v, ok := e.Fields[NormalizeFieldName(name)]
	return v, ok
}

// HasKey reports whether the entry can take part in keyed merge logic
func (e *Entry) HasKey() bool {
	return e != nil && e.Key != ""
}

// Clone returns a deep copy of the entry
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	return &Entry{
		Key:    e.Key,
		Type:   e.Type,
		Fields: maps.Clone(e.Fields),
	}
}

// FieldsWithType returns the fields plus the entry type under TypeField
func (e *Entry) FieldsWithType() map[string]string {
	out := make(map[string]string, len(e.Fields)+1)
	for k, v := range e.Fields {
		out[k] = v
	}
	out[TypeField] = strings.ToLower(e.Type)
	return out
}

// NormalizeFieldName returns the canonical (lower-case, trimmed) field name
func NormalizeFieldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
