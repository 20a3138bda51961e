// Package app contains the application layer - service implementations and effect execution.
package app

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/example/schemareg/internal/core/effects"
	"github.com/example/schemareg/internal/core/lineage"
	"github.com/example/schemareg/internal/core/rootset"
	"github.com/example/schemareg/internal/log"
	"github.com/example/schemareg/internal/ports/secondary"
)

// EffectExecutor interprets and executes effects.
// This is the "Imperative Shell" - the only place I/O happens.
type EffectExecutor interface {
	Execute(ctx context.Context, effs []effects.Effect) error
}

// DefaultEffectExecutor executes effects against one repository, usually an
// open transaction, and records every change in the audit trail.
type DefaultEffectExecutor struct {
	repo  secondary.SchemaRepository
	audit secondary.AuditWriter

	inserted []int64
}

// NewEffectExecutor creates a new DefaultEffectExecutor.
func NewEffectExecutor(repo secondary.SchemaRepository, audit secondary.AuditWriter) *DefaultEffectExecutor {
	return &DefaultEffectExecutor{repo: repo, audit: audit}
}

// Inserted returns the primary ids of rows inserted so far, in order.
func (e *DefaultEffectExecutor) Inserted() []int64 {
	return e.inserted
}

// Execute processes a slice of effects, executing each in sequence.
func (e *DefaultEffectExecutor) Execute(ctx context.Context, effs []effects.Effect) error {
	for _, eff := range effs {
		if err := e.executeOne(ctx, eff); err != nil {
			return fmt.Errorf("failed to execute %s effect: %w", eff.EffectType(), err)
		}
	}
	return nil
}

func (e *DefaultEffectExecutor) executeOne(ctx context.Context, eff effects.Effect) error {
	switch typed := eff.(type) {
	case effects.InsertVersionEffect:
		return e.executeInsert(ctx, typed)
	case effects.HideLineageEffect:
		return e.repo.HideLineage(ctx, typed.SchemaID)
	case effects.CloseValidityEffect:
		return e.executeCloseValidity(ctx, typed)
	case effects.AppendRootEffect:
		return e.executeAppendRoot(ctx, typed)
	case effects.WriteSubschemaEffect:
		return e.executeSubschema(ctx, typed.PrimaryID, typed.IDs)
	case effects.WriteRootSetEffect:
		return e.executeSubschema(ctx, typed.PrimaryID, typed.IDs)
	case effects.WriteChildSchemaEffect:
		return e.executeChildSchema(ctx, typed)
	case effects.WriteInheritanceEffect:
		return e.executeInheritance(ctx, typed)
	case effects.EditRelationsEffect:
		return e.executeEditRelations(ctx, typed)
	case effects.EditValidityEffect:
		return e.executeEditValidity(ctx, typed)
	case effects.RebuildSearchEffect:
		return e.repo.RebuildSearchIndex(ctx)
	case effects.NoEffect:
		return nil
	case effects.LogEffect:
		log.Log(typed.Level, log.CatRelationship, typed.Message, flatten(typed.Fields)...)
		return nil
	default:
		return fmt.Errorf("unknown effect type: %T", eff)
	}
}

func (e *DefaultEffectExecutor) executeInsert(ctx context.Context, eff effects.InsertVersionEffect) error {
	record := &secondary.SchemaRecord{
		SchemaID:     eff.SchemaID,
		IDString:     eff.IDString,
		Title:        eff.Title,
		Subtitle:     eff.Subtitle,
		Document:     eff.Document,
		Unique:       eff.Unique,
		VersionMajor: eff.VersionMajor,
		VersionMinor: eff.VersionMinor,
		ValidFrom:    eff.ValidFrom,
		ValidUntil:   eff.ValidUntil,
	}
	pid, err := e.repo.Insert(ctx, record)
	if err != nil {
		return err
	}
	e.inserted = append(e.inserted, pid)
	return e.audit.LogInsert(ctx, pid, eff.IDString)
}

func (e *DefaultEffectExecutor) executeCloseValidity(ctx context.Context, eff effects.CloseValidityEffect) error {
	if err := e.repo.CloseValidity(ctx, eff.PrimaryID, eff.Until); err != nil {
		return err
	}
	return e.audit.LogUpdate(ctx, eff.PrimaryID, "valid_until", "", eff.Until.Format(lineage.DateLayout))
}

func (e *DefaultEffectExecutor) executeAppendRoot(ctx context.Context, eff effects.AppendRootEffect) error {
	root, err := e.repo.GetRoot(ctx)
	if err != nil {
		return err
	}

	sub, subChanged := rootset.Append(root.Subschema, eff.SchemaID)
	def, defChanged := rootset.Append(root.SubschemaDefault, eff.SchemaID)
	if !subChanged && !defChanged {
		return nil
	}

	if err := e.repo.SetSubschema(ctx, root.PrimaryID, sub, def); err != nil {
		return err
	}
	return e.audit.LogUpdate(ctx, root.PrimaryID, "subschema_default", formatIDs(root.SubschemaDefault), formatIDs(def))
}

func (e *DefaultEffectExecutor) executeSubschema(ctx context.Context, primaryID int64, ids []int64) error {
	current, err := e.repo.GetByPrimaryID(ctx, primaryID)
	if err != nil {
		return err
	}
	if err := e.repo.SetSubschema(ctx, primaryID, ids, ids); err != nil {
		return err
	}
	return e.logChange(ctx, primaryID, "subschema_default", current.SubschemaDefault, ids)
}

func (e *DefaultEffectExecutor) executeChildSchema(ctx context.Context, eff effects.WriteChildSchemaEffect) error {
	current, err := e.repo.GetByPrimaryID(ctx, eff.PrimaryID)
	if err != nil {
		return err
	}
	if err := e.repo.SetChildSchema(ctx, eff.PrimaryID, eff.IDs, eff.IDs); err != nil {
		return err
	}
	return e.logChange(ctx, eff.PrimaryID, "child_schema_default", current.ChildSchemaDefault, eff.IDs)
}

func (e *DefaultEffectExecutor) executeInheritance(ctx context.Context, eff effects.WriteInheritanceEffect) error {
	current, err := e.repo.GetByPrimaryID(ctx, eff.PrimaryID)
	if err != nil {
		return err
	}
	if err := e.repo.SetInheritance(ctx, eff.PrimaryID, eff.Inherit, eff.BaseSchema); err != nil {
		return err
	}
	if err := e.logChange(ctx, eff.PrimaryID, "inherit_schema_default", current.InheritSchemaDefault, eff.Inherit); err != nil {
		return err
	}
	if current.BaseSchema != eff.BaseSchema {
		return e.audit.LogUpdate(ctx, eff.PrimaryID, "base_schema",
			strconv.FormatInt(current.BaseSchema, 10), strconv.FormatInt(eff.BaseSchema, 10))
	}
	return nil
}

func (e *DefaultEffectExecutor) executeEditRelations(ctx context.Context, eff effects.EditRelationsEffect) error {
	current, err := e.repo.GetByPrimaryID(ctx, eff.PrimaryID)
	if err != nil {
		return err
	}
	if err := e.repo.SetEditableRelations(ctx, eff.PrimaryID, eff.Subschema, eff.ChildSchema, eff.Inherit); err != nil {
		return err
	}
	for _, c := range []struct {
		field    string
		from, to []int64
	}{
		{"subschema", current.Subschema, eff.Subschema},
		{"child_schema", current.ChildSchema, eff.ChildSchema},
		{"inherit_schema", current.InheritSchema, eff.Inherit},
	} {
		if err := e.logChange(ctx, eff.PrimaryID, c.field, c.from, c.to); err != nil {
			return err
		}
	}
	return nil
}

func (e *DefaultEffectExecutor) executeEditValidity(ctx context.Context, eff effects.EditValidityEffect) error {
	current, err := e.repo.GetByPrimaryID(ctx, eff.PrimaryID)
	if err != nil {
		return err
	}
	if err := e.repo.UpdateValidity(ctx, eff.PrimaryID, eff.ValidFrom, eff.ValidUntil); err != nil {
		return err
	}

	oldFrom, newFrom := current.ValidFrom.Format(lineage.DateLayout), eff.ValidFrom.Format(lineage.DateLayout)
	if oldFrom != newFrom {
		if err := e.audit.LogUpdate(ctx, eff.PrimaryID, "valid_from", oldFrom, newFrom); err != nil {
			return err
		}
	}
	oldUntil, newUntil := lineage.FormatDate(current.ValidUntil), lineage.FormatDate(eff.ValidUntil)
	if oldUntil != newUntil {
		return e.audit.LogUpdate(ctx, eff.PrimaryID, "valid_until", oldUntil, newUntil)
	}
	return nil
}

// logChange records an id list update, skipping writes that changed nothing.
func (e *DefaultEffectExecutor) logChange(ctx context.Context, primaryID int64, field string, from, to []int64) error {
	before, after := formatIDs(from), formatIDs(to)
	if before == after {
		return nil
	}
	return e.audit.LogUpdate(ctx, primaryID, field, before, after)
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// flatten turns log effect fields into sorted key/value pairs.
func flatten(fields map[string]any) []any {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kv := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		kv = append(kv, k, fields[k])
	}
	return kv
}

var _ EffectExecutor = (*DefaultEffectExecutor)(nil)
