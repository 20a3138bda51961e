package app

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/schemareg/internal/core/effects"
	"github.com/example/schemareg/internal/core/graph"
	"github.com/example/schemareg/internal/core/lineage"
	"github.com/example/schemareg/internal/core/relationship"
	"github.com/example/schemareg/internal/core/rootset"
	"github.com/example/schemareg/internal/core/schemapath"
	"github.com/example/schemareg/internal/ctxutil"
	"github.com/example/schemareg/internal/ingest"
	"github.com/example/schemareg/internal/log"
	"github.com/example/schemareg/internal/ports/primary"
	"github.com/example/schemareg/internal/ports/secondary"
)

// SchemaServiceImpl implements the SchemaService interface.
type SchemaServiceImpl struct {
	store          secondary.SchemaStore
	pass           *RelationshipPass
	tracer         trace.Tracer
	alwaysFullPass bool
}

// NewSchemaService creates a new SchemaService with injected dependencies.
// alwaysFullPass makes every ingest recompute historical versions.
func NewSchemaService(store secondary.SchemaStore, matcher *relationship.Matcher, tracer trace.Tracer, alwaysFullPass bool) *SchemaServiceImpl {
	return &SchemaServiceImpl{
		store:          store,
		pass:           NewRelationshipPass(matcher, tracer),
		tracer:         tracer,
		alwaysFullPass: alwaysFullPass,
	}
}

// Ingest inserts a batch of documents and recomputes relationships.
// Rejected documents are reported in the result; any store error rolls the
// whole batch back and returns ErrTransactionFailed.
func (s *SchemaServiceImpl) Ingest(ctx context.Context, req primary.IngestRequest) (*primary.IngestResult, error) {
	batchID := uuid.NewString()
	ctx = s.withActor(ctxutil.WithBatchID(ctx, batchID), req.Actor)

	ctx, span := s.tracer.Start(ctx, "schema.ingest", trace.WithAttributes(
		attribute.String("batch.id", batchID),
		attribute.Int("batch.documents", len(req.Documents)),
	))
	defer span.End()

	batch := ingest.Prepare(req.Documents)
	result := &primary.IngestResult{BatchID: batchID}
	for _, err := range batch.Errors {
		s.reject(result, err)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, s.fail(span, err)
	}
	defer func() { _ = tx.Rollback() }()

	exec := NewEffectExecutor(tx, NewAuditWriter(tx))
	for _, entry := range batch.Entries {
		err := s.insertVersion(ctx, tx, exec, entry.Candidate)
		var verr *lineage.ValidationError
		if errors.As(err, &verr) {
			s.reject(result, verr)
			continue
		}
		if err != nil {
			return nil, s.fail(span, err)
		}
		result.Inserted++
	}

	result.FullRelationshipPass = batch.RepeatedLineage || req.ForceFullPass || s.alwaysFullPass
	passResult, err := s.pass.Run(ctx, tx, exec, result.FullRelationshipPass)
	if err != nil {
		return nil, s.fail(span, err)
	}
	result.UpdatedCount = passResult.UpdatedCount

	if err := tx.Commit(); err != nil {
		return nil, s.fail(span, err)
	}

	span.SetAttributes(
		attribute.Int("batch.inserted", result.Inserted),
		attribute.Int("batch.rejected", len(result.Errors)),
	)
	log.Info(log.CatIngest, "batch committed",
		"batch", batchID, "inserted", result.Inserted, "rejected", len(result.Errors),
		"updated", result.UpdatedCount, "full_pass", result.FullRelationshipPass)

	return result, nil
}

func (s *SchemaServiceImpl) insertVersion(ctx context.Context, repo secondary.SchemaRepository, exec *DefaultEffectExecutor, c lineage.Candidate) error {
	idString := c.IDString
	if p, err := schemapath.Parse(idString); err == nil {
		idString = p.String()
	}

	records, err := repo.ListLineage(ctx, idString)
	if err != nil {
		return fmt.Errorf("failed to list lineage %s: %w", idString, err)
	}
	maxID, err := repo.MaxSchemaID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get max schema id: %w", err)
	}

	rows := make([]lineage.Row, len(records))
	for i, r := range records {
		rows[i] = toLineageRow(r)
	}

	plan, err := lineage.GenerateInsertPlan(lineage.InsertPlanInput{
		Candidate:   c,
		Rows:        rows,
		MaxSchemaID: maxID,
	})
	if err != nil {
		return err
	}

	if err := exec.Execute(ctx, plan.Effects); err != nil {
		return err
	}

	fields := []any{"id", idString, "schema_id", plan.SchemaID, "version", plan.Version.String(),
		"valid_from", plan.ValidFrom.Format(lineage.DateLayout)}
	if pids := exec.Inserted(); len(pids) > 0 {
		fields = append(fields, "primary_id", pids[len(pids)-1])
	}
	if plan.Predecessor != nil {
		fields = append(fields, "closed", plan.Predecessor.Version.String())
	}
	log.Info(log.CatVersion, "inserted version", fields...)
	return nil
}

// Relink runs the relationship pass in its own transaction.
func (s *SchemaServiceImpl) Relink(ctx context.Context, req primary.RelinkRequest) (*primary.RelinkResult, error) {
	batchID := uuid.NewString()
	ctx = s.withActor(ctxutil.WithBatchID(ctx, batchID), req.Actor)

	ctx, span := s.tracer.Start(ctx, "schema.relink", trace.WithAttributes(attribute.String("batch.id", batchID)))
	defer span.End()

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, s.fail(span, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := s.pass.Run(ctx, tx, NewEffectExecutor(tx, NewAuditWriter(tx)), req.All)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, s.fail(span, err)
	}

	return &primary.RelinkResult{BatchID: batchID, UpdatedCount: res.UpdatedCount, RootChanged: res.RootChanged}, nil
}

// BuildTree materializes the relationship forest from the valid rows.
func (s *SchemaServiceImpl) BuildTree(ctx context.Context, roots []int64) (*primary.Tree, error) {
	ctx, span := s.tracer.Start(ctx, "schema.build_tree")
	defer span.End()

	valid, err := s.store.ListValid(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list valid schemas: %w", err)
	}

	records := make(map[int64]graph.Record, len(valid))
	var rootSet []int64
	for _, row := range valid {
		if row.SchemaID == relationship.RootSchemaID {
			rootSet = row.Subschema
			continue
		}
		records[row.SchemaID] = graph.Record{
			SchemaID:      row.SchemaID,
			IDString:      row.IDString,
			Version:       versionOf(row).String(),
			Title:         row.Title,
			Subtitle:      row.Subtitle,
			Subschema:     row.Subschema,
			ChildSchema:   row.ChildSchema,
			InheritSchema: row.InheritSchema,
		}
	}
	if len(roots) == 0 {
		roots = rootSet
	}

	tree := graph.BuildTree(records, roots)
	for _, d := range tree.Diagnostics {
		log.Warn(log.CatGraph, d.Message, "schema_id", d.SchemaID)
	}
	span.SetAttributes(
		attribute.Int("tree.roots", len(tree.Forest)),
		attribute.Int("tree.blacklisted", len(tree.Blacklist)),
	)

	return &tree, nil
}

// GetSchema retrieves the currently valid version of a schema.
func (s *SchemaServiceImpl) GetSchema(ctx context.Context, idString string) (*primary.Schema, error) {
	p, err := schemapath.Parse(idString)
	if err != nil {
		return nil, err
	}
	record, err := s.store.GetValid(ctx, p.String())
	if err != nil {
		return nil, err
	}
	return s.recordToSchema(record), nil
}

// ListVersions retrieves every version of a schema, newest first.
func (s *SchemaServiceImpl) ListVersions(ctx context.Context, idString string) ([]*primary.Schema, error) {
	p, err := schemapath.Parse(idString)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListLineage(ctx, p.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("schema %s: %w", p, secondary.ErrNotFound)
	}

	schemas := make([]*primary.Schema, len(records))
	for i, r := range records {
		schemas[i] = s.recordToSchema(r)
	}
	return schemas, nil
}

// UpdateRelationships overwrites the editable relationship arrays of one version.
// The system-computed defaults are left alone.
func (s *SchemaServiceImpl) UpdateRelationships(ctx context.Context, req primary.UpdateRelationshipsRequest) error {
	ctx = s.withActor(ctxutil.WithBatchID(ctx, uuid.NewString()), req.Actor)

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	record, err := tx.GetByPrimaryID(ctx, req.PrimaryID)
	if err != nil {
		return err
	}
	all, err := tx.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list schemas: %w", err)
	}
	known := make(map[int64]bool, len(all))
	for _, r := range all {
		known[r.SchemaID] = true
	}

	if r := relationship.CanEditRelations(relationship.EditRelationsContext{
		PrimaryID:     req.PrimaryID,
		SchemaID:      record.SchemaID,
		Subschema:     req.Subschema,
		ChildSchema:   req.ChildSchema,
		InheritSchema: req.InheritSchema,
		Known:         known,
	}); !r.Allowed {
		return r.Error()
	}

	exec := NewEffectExecutor(tx, NewAuditWriter(tx))
	if err := exec.Execute(ctx, []effects.Effect{effects.EditRelationsEffect{
		PrimaryID:   req.PrimaryID,
		Subschema:   nonNil(req.Subschema),
		ChildSchema: nonNil(req.ChildSchema),
		Inherit:     nonNil(req.InheritSchema),
	}}); err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}

	log.Info(log.CatRelationship, "relationships edited", "id", record.IDString, "primary_id", req.PrimaryID)
	return nil
}

// UpdateValidity overwrites the validity window of one version.
func (s *SchemaServiceImpl) UpdateValidity(ctx context.Context, req primary.UpdateValidityRequest) error {
	ctx = s.withActor(ctxutil.WithBatchID(ctx, uuid.NewString()), req.Actor)

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	record, err := tx.GetByPrimaryID(ctx, req.PrimaryID)
	if err != nil {
		return err
	}
	records, err := tx.ListLineage(ctx, record.IDString)
	if err != nil {
		return fmt.Errorf("failed to list lineage %s: %w", record.IDString, err)
	}
	rows := make([]lineage.Row, len(records))
	for i, r := range records {
		rows[i] = toLineageRow(r)
	}

	effs, err := lineage.PlanValidityEdit(lineage.ValidityEditInput{
		PrimaryID:  req.PrimaryID,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
		Rows:       rows,
	})
	if err != nil {
		return err
	}

	if err := NewEffectExecutor(tx, NewAuditWriter(tx)).Execute(ctx, effs); err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}

	log.Info(log.CatVersion, "validity edited", "id", record.IDString, "version", versionOf(record).String(),
		"valid_from", req.ValidFrom, "valid_until", req.ValidUntil)
	return nil
}

// Search finds valid schemas by id, title or subtitle.
func (s *SchemaServiceImpl) Search(ctx context.Context, term string, limit int) ([]*primary.SearchHit, error) {
	hits, err := s.store.Search(ctx, term, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search schemas: %w", err)
	}

	out := make([]*primary.SearchHit, len(hits))
	for i, h := range hits {
		out[i] = &primary.SearchHit{
			SchemaID:  h.SchemaID,
			PrimaryID: h.PrimaryID,
			IDString:  h.IDString,
			Title:     h.Title,
			Subtitle:  h.Subtitle,
		}
	}
	return out, nil
}

// Check verifies lineage and relationship invariants across the store.
func (s *SchemaServiceImpl) Check(ctx context.Context) (*primary.CheckReport, error) {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}

	report := &primary.CheckReport{Rows: len(all)}

	lineages := make(map[int64][]lineage.Row)
	names := make(map[int64]string)
	var order []int64
	var root *secondary.SchemaRecord
	var valid []relationship.Record

	for _, r := range all {
		if _, seen := lineages[r.SchemaID]; !seen {
			order = append(order, r.SchemaID)
			names[r.SchemaID] = r.IDString
		}
		lineages[r.SchemaID] = append(lineages[r.SchemaID], toLineageRow(r))

		if r.SchemaID == relationship.RootSchemaID {
			root = r
			continue
		}
		if r.Hidden {
			continue
		}
		if overlap := intersect(r.SubschemaDefault, r.ChildSchemaDefault); len(overlap) > 0 {
			report.Violations = append(report.Violations, primary.Violation{
				SchemaID: r.SchemaID,
				Message:  fmt.Sprintf("%s lists %v as both subschema and child schema", r.IDString, overlap),
			})
		}
		rec, err := toRelationshipRecord(r)
		if err != nil {
			report.Violations = append(report.Violations, primary.Violation{SchemaID: r.SchemaID, Message: err.Error()})
			continue
		}
		valid = append(valid, rec)
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	report.Lineages = len(order)
	for _, id := range order {
		for _, v := range lineage.CheckLineage(names[id], lineages[id]) {
			report.Violations = append(report.Violations, primary.Violation{SchemaID: v.SchemaID, Message: v.Message})
		}
	}

	if root == nil {
		report.Violations = append(report.Violations, primary.Violation{Message: "root record is missing"})
	} else if _, changed := rootset.Plan(root.PrimaryID, root.SubschemaDefault, valid); changed {
		report.Violations = append(report.Violations, primary.Violation{
			SchemaID: relationship.RootSchemaID,
			Message:  fmt.Sprintf("root top-level set %v is stale, expected %v", root.SubschemaDefault, rootset.TopLevel(valid)),
		})
	}

	return report, nil
}

// ListAudit retrieves audit trail entries, newest first.
func (s *SchemaServiceImpl) ListAudit(ctx context.Context, filters primary.AuditFilters) ([]*primary.AuditEntry, error) {
	records, err := s.store.ListAudit(ctx, secondary.AuditFilters{
		PrimaryID: filters.PrimaryID,
		BatchID:   filters.BatchID,
		Limit:     filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	entries := make([]*primary.AuditEntry, len(records))
	for i, r := range records {
		entries[i] = &primary.AuditEntry{
			ID:        r.ID,
			BatchID:   r.BatchID,
			Actor:     r.Actor,
			PrimaryID: r.PrimaryID,
			Action:    r.Action,
			FieldName: r.FieldName,
			OldValue:  r.OldValue,
			NewValue:  r.NewValue,
			CreatedAt: r.CreatedAt,
		}
	}
	return entries, nil
}

// Helper methods

func (s *SchemaServiceImpl) withActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return ctxutil.WithActorID(ctx, actor)
}

func (s *SchemaServiceImpl) reject(result *primary.IngestResult, err error) {
	result.Errors = append(result.Errors, err.Error())
	log.Warn(log.CatIngest, "document rejected", "error", err.Error())
}

func (s *SchemaServiceImpl) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	log.ErrorErr(log.CatDB, "batch rolled back", err)
	return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
}

func (s *SchemaServiceImpl) recordToSchema(r *secondary.SchemaRecord) *primary.Schema {
	return &primary.Schema{
		PrimaryID:            r.PrimaryID,
		SchemaID:             r.SchemaID,
		IDString:             r.IDString,
		Title:                r.Title,
		Subtitle:             r.Subtitle,
		Version:              versionOf(r).String(),
		Unique:               r.Unique,
		Hidden:               r.Hidden,
		ValidFrom:            r.ValidFrom.Format(lineage.DateLayout),
		ValidUntil:           lineage.FormatDate(r.ValidUntil),
		Subschema:            r.Subschema,
		SubschemaDefault:     r.SubschemaDefault,
		ChildSchema:          r.ChildSchema,
		ChildSchemaDefault:   r.ChildSchemaDefault,
		InheritSchema:        r.InheritSchema,
		InheritSchemaDefault: r.InheritSchemaDefault,
		BaseSchema:           r.BaseSchema,
		Document:             r.Document,
		CreatedAt:            r.CreatedAt,
	}
}

func toLineageRow(r *secondary.SchemaRecord) lineage.Row {
	return lineage.Row{
		PrimaryID:  r.PrimaryID,
		SchemaID:   r.SchemaID,
		Version:    versionOf(r),
		ValidFrom:  r.ValidFrom,
		ValidUntil: r.ValidUntil,
		Hidden:     r.Hidden,
	}
}

func versionOf(r *secondary.SchemaRecord) lineage.Version {
	return lineage.Version{Major: r.VersionMajor, Minor: r.VersionMinor}
}

func intersect(a, b []int64) []int64 {
	in := make(map[int64]bool, len(a))
	for _, id := range a {
		in[id] = true
	}
	var out []int64
	for _, id := range b {
		if in[id] {
			out = append(out, id)
		}
	}
	return out
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

// Ensure SchemaServiceImpl implements the interface
var _ primary.SchemaService = (*SchemaServiceImpl)(nil)
