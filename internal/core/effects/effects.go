// Package effects defines effect types as data structures representing I/O operations.
// This is the foundation of the Functional Core / Imperative Shell pattern.
// Effects are pure data - they describe what should happen, not how.
package effects

import "time"

// Effect is the base interface for all effects.
// Effects represent I/O operations as data that can be interpreted by the shell.
type Effect interface {
	// EffectType returns a string identifier for the effect type.
	EffectType() string
}

// LogEffect represents a logging operation.
type LogEffect struct {
	Level   string
	Message string
	Fields  map[string]any
}

func (e LogEffect) EffectType() string { return "log" }

// InsertVersionEffect persists a new schema version row.
type InsertVersionEffect struct {
	SchemaID     int64
	IDString     string
	Title        string
	Subtitle     string
	Document     []byte
	Unique       bool
	VersionMajor int
	VersionMinor int
	ValidFrom    time.Time
	ValidUntil   *time.Time
}

func (e InsertVersionEffect) EffectType() string { return "insert_version" }

// HideLineageEffect marks every existing row of a lineage as hidden.
// It runs before the insert so the new row stays the only visible one.
type HideLineageEffect struct {
	SchemaID int64
}

func (e HideLineageEffect) EffectType() string { return "hide_lineage" }

// CloseValidityEffect sets valid_until on a predecessor that has none.
type CloseValidityEffect struct {
	PrimaryID int64
	Until     time.Time
}

func (e CloseValidityEffect) EffectType() string { return "close_validity" }

// AppendRootEffect adds a schema id to the root record's subschema arrays if absent.
type AppendRootEffect struct {
	SchemaID int64
}

func (e AppendRootEffect) EffectType() string { return "append_root" }

// NoEffect represents an operation that produces no side effects.
type NoEffect struct{}

func (e NoEffect) EffectType() string { return "none" }

// WriteSubschemaEffect stores a freshly computed subschema set in both the
// editable and the default column.
type WriteSubschemaEffect struct {
	PrimaryID int64
	IDs       []int64
}

func (e WriteSubschemaEffect) EffectType() string { return "write_subschema" }

// WriteChildSchemaEffect stores a freshly computed child set in both columns.
type WriteChildSchemaEffect struct {
	PrimaryID int64
	IDs       []int64
}

func (e WriteChildSchemaEffect) EffectType() string { return "write_child_schema" }

// WriteInheritanceEffect stores inherit_schema, its default and base_schema.
type WriteInheritanceEffect struct {
	PrimaryID  int64
	Inherit    []int64
	BaseSchema int64
}

func (e WriteInheritanceEffect) EffectType() string { return "write_inheritance" }

// WriteRootSetEffect replaces the root record's top-level set.
type WriteRootSetEffect struct {
	PrimaryID int64
	IDs       []int64
}

func (e WriteRootSetEffect) EffectType() string { return "write_root_set" }

// RebuildSearchEffect repopulates the search index.
type RebuildSearchEffect struct{}

func (e RebuildSearchEffect) EffectType() string { return "rebuild_search" }

// EditRelationsEffect overwrites the administrator-editable relationship arrays.
type EditRelationsEffect struct {
	PrimaryID   int64
	Subschema   []int64
	ChildSchema []int64
	Inherit     []int64
}

func (e EditRelationsEffect) EffectType() string { return "edit_relations" }

// EditValidityEffect overwrites a version's validity window.
type EditValidityEffect struct {
	PrimaryID  int64
	ValidFrom  time.Time
	ValidUntil *time.Time
}

func (e EditValidityEffect) EffectType() string { return "edit_validity" }
