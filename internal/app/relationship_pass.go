package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/schemareg/internal/core/effects"
	"github.com/example/schemareg/internal/core/relationship"
	"github.com/example/schemareg/internal/core/rootset"
	"github.com/example/schemareg/internal/core/schemapath"
	"github.com/example/schemareg/internal/ingest"
	"github.com/example/schemareg/internal/log"
	"github.com/example/schemareg/internal/ports/secondary"
)

// PassResult summarizes one relationship pass.
type PassResult struct {
	Targets      int
	UpdatedCount int
	RootChanged  bool
}

// RelationshipPass recomputes stored relationship columns from the declared
// patterns of every target row, then refreshes the root set and search index.
type RelationshipPass struct {
	matcher *relationship.Matcher
	tracer  trace.Tracer
}

// NewRelationshipPass creates a RelationshipPass sharing matcher's regex cache.
func NewRelationshipPass(matcher *relationship.Matcher, tracer trace.Tracer) *RelationshipPass {
	return &RelationshipPass{matcher: matcher, tracer: tracer}
}

// Run executes the pass against repo. all targets historical rows as well as
// the valid ones.
func (p *RelationshipPass) Run(ctx context.Context, repo secondary.SchemaRepository, exec EffectExecutor, all bool) (PassResult, error) {
	ctx, span := p.tracer.Start(ctx, "relationship.pass", trace.WithAttributes(attribute.Bool("pass.all", all)))
	defer span.End()

	valid, err := repo.ListValid(ctx)
	if err != nil {
		return PassResult{}, fmt.Errorf("failed to list valid schemas: %w", err)
	}

	var root *secondary.SchemaRecord
	records := make([]relationship.Record, 0, len(valid))
	for _, row := range valid {
		if row.SchemaID == relationship.RootSchemaID {
			root = row
			continue
		}
		rec, err := toRelationshipRecord(row)
		if err != nil {
			return PassResult{}, err
		}
		records = append(records, rec)
	}
	if root == nil {
		if root, err = repo.GetRoot(ctx); err != nil {
			return PassResult{}, fmt.Errorf("failed to get root schema: %w", err)
		}
	}

	resolver := relationship.NewResolver(records, p.matcher)

	targets := valid
	if all {
		if targets, err = repo.ListAll(ctx); err != nil {
			return PassResult{}, fmt.Errorf("failed to list schemas: %w", err)
		}
	}

	stored := make([]relationship.StoredRow, 0, len(targets))
	for _, row := range targets {
		if row.SchemaID == relationship.RootSchemaID {
			continue
		}
		rec, err := toRelationshipRecord(row)
		if err != nil {
			return PassResult{}, err
		}
		stored = append(stored, relationship.StoredRow{
			PrimaryID:            row.PrimaryID,
			Record:               rec,
			SubschemaDefault:     row.SubschemaDefault,
			ChildSchemaDefault:   row.ChildSchemaDefault,
			InheritSchemaDefault: row.InheritSchemaDefault,
			BaseSchema:           row.BaseSchema,
		})
	}

	plan := relationship.PlanPass(resolver, stored)
	if err := exec.Execute(ctx, plan.Effects); err != nil {
		return PassResult{}, err
	}

	result := PassResult{Targets: len(stored), UpdatedCount: plan.Changed}

	rootEffect, changed := rootset.Plan(root.PrimaryID, root.SubschemaDefault, records)
	if changed {
		if err := exec.Execute(ctx, []effects.Effect{rootEffect}); err != nil {
			return PassResult{}, err
		}
		result.RootChanged = true
	}

	if err := exec.Execute(ctx, []effects.Effect{effects.RebuildSearchEffect{}}); err != nil {
		return PassResult{}, err
	}

	span.SetAttributes(
		attribute.Int("pass.indexed", resolver.Len()),
		attribute.Int("pass.targets", result.Targets),
		attribute.Int("pass.updated", result.UpdatedCount),
	)
	log.Info(log.CatRelationship, "relationship pass complete",
		"all", all, "indexed", resolver.Len(), "targets", result.Targets, "updated", result.UpdatedCount,
		"root_changed", result.RootChanged, "patterns_cached", p.matcher.Cached())

	return result, nil
}

// toRelationshipRecord re-reads the declared patterns from a stored document.
func toRelationshipRecord(row *secondary.SchemaRecord) (relationship.Record, error) {
	path, err := schemapath.Parse(row.IDString)
	if err != nil {
		return relationship.Record{}, fmt.Errorf("stored schema %d has invalid id %q: %w", row.PrimaryID, row.IDString, err)
	}
	decl, err := ingest.Declarations(row.Document)
	if err != nil {
		return relationship.Record{}, fmt.Errorf("stored schema %s: %w", row.IDString, err)
	}
	return relationship.Record{
		SchemaID:     row.SchemaID,
		Path:         path,
		Unique:       row.Unique,
		Declarations: decl,
	}, nil
}
