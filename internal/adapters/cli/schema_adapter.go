// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle argument parsing, output formatting,
// but delegate business logic to services.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/example/schemareg/internal/core/graph"
	"github.com/example/schemareg/internal/ingest"
	"github.com/example/schemareg/internal/ports/primary"
)

// SchemaAdapter is a thin adapter that translates CLI operations to SchemaService calls.
type SchemaAdapter struct {
	service primary.SchemaService
	out     io.Writer
}

// NewSchemaAdapter creates a new SchemaAdapter with the given service.
func NewSchemaAdapter(service primary.SchemaService, out io.Writer) *SchemaAdapter {
	return &SchemaAdapter{
		service: service,
		out:     out,
	}
}

func okMark() string { return color.New(color.FgGreen).Sprint("✓") }
func warnMark() string { return color.New(color.FgYellow).Sprint("!") }
func failMark() string { return color.New(color.FgRed).Sprint("✗") }

// Ingest uploads a batch of documents. It returns the result so callers can
// decide on an exit status when documents were rejected.
func (a *SchemaAdapter) Ingest(ctx context.Context, docs []ingest.Document, full bool, actor string) (*primary.IngestResult, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("no schema documents found")
	}

	result, err := a.service.Ingest(ctx, primary.IngestRequest{
		Documents:     docs,
		ForceFullPass: full,
		Actor:         actor,
	})
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(a.out, "%s Batch %s: inserted %d of %d document(s), %d relationship row(s) updated\n",
		okMark(), result.BatchID, result.Inserted, len(docs), result.UpdatedCount)
	if result.FullRelationshipPass {
		fmt.Fprintln(a.out, "  full relationship pass (historical versions included)")
	}
	for _, msg := range result.Errors {
		fmt.Fprintf(a.out, "%s %s\n", failMark(), msg)
	}
	return result, nil
}

// Relink runs the relationship pass on demand.
func (a *SchemaAdapter) Relink(ctx context.Context, all bool, actor string) error {
	result, err := a.service.Relink(ctx, primary.RelinkRequest{All: all, Actor: actor})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s Relinked: %d row(s) updated", okMark(), result.UpdatedCount)
	if result.RootChanged {
		fmt.Fprint(a.out, ", root set changed")
	}
	fmt.Fprintln(a.out)
	return nil
}

// Tree prints the relationship forest, as an indented outline or as JSON.
func (a *SchemaAdapter) Tree(ctx context.Context, roots []int64, asJSON bool) error {
	tree, err := a.service.BuildTree(ctx, roots)
	if err != nil {
		return fmt.Errorf("failed to build tree: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(tree)
	}

	if len(tree.Forest) == 0 {
		fmt.Fprintln(a.out, "No schemas to show")
	}
	tree.Walk(a.printNode)

	if len(tree.Diagnostics) > 0 {
		fmt.Fprintln(a.out)
		for _, d := range tree.Diagnostics {
			fmt.Fprintf(a.out, "%s %s\n", warnMark(), d.Message)
		}
	}
	return nil
}

func (a *SchemaAdapter) printNode(n *graph.Node, edge graph.Edge, depth int) {
	indent := strings.Repeat("  ", depth)
	label := ""
	if edge != graph.EdgeNone {
		label = color.New(color.FgCyan).Sprint(string(edge)) + " "
	}
	fmt.Fprintf(a.out, "%s%s%s  %s (v%s) [%d]\n", indent, label, n.IDString, n.Title, n.Version, n.SchemaID)
}

// Show displays the valid version of a schema.
func (a *SchemaAdapter) Show(ctx context.Context, idString string, withDocument bool) error {
	s, err := a.service.GetSchema(ctx, idString)
	if err != nil {
		return fmt.Errorf("failed to get schema: %w", err)
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Schema:\t%s\n", s.IDString)
	fmt.Fprintf(w, "Title:\t%s\n", graph.CombinedTitle(s.Title, s.Subtitle))
	fmt.Fprintf(w, "Schema ID:\t%d\n", s.SchemaID)
	fmt.Fprintf(w, "Primary ID:\t%d\n", s.PrimaryID)
	fmt.Fprintf(w, "Version:\t%s\n", s.Version)
	fmt.Fprintf(w, "Valid:\t%s\n", window(s.ValidFrom, s.ValidUntil))
	fmt.Fprintf(w, "Unique:\t%t\n", s.Unique)
	fmt.Fprintf(w, "Subschema:\t%s\n", relation(s.Subschema, s.SubschemaDefault))
	fmt.Fprintf(w, "Child schema:\t%s\n", relation(s.ChildSchema, s.ChildSchemaDefault))
	fmt.Fprintf(w, "Inherit schema:\t%s\n", relation(s.InheritSchema, s.InheritSchemaDefault))
	fmt.Fprintf(w, "Base schema:\t%d\n", s.BaseSchema)
	if err := w.Flush(); err != nil {
		return err
	}

	if withDocument {
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, string(s.Document))
	}
	return nil
}

// Versions lists every version of a schema, newest first.
func (a *SchemaAdapter) Versions(ctx context.Context, idString string) error {
	versions, err := a.service.ListVersions(ctx, idString)
	if err != nil {
		return fmt.Errorf("failed to list versions: %w", err)
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRIMARY ID\tVERSION\tVALID\tSTATE")
	for _, v := range versions {
		state := color.New(color.FgGreen).Sprint("valid")
		if v.Hidden {
			state = "hidden"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", v.PrimaryID, v.Version, window(v.ValidFrom, v.ValidUntil), state)
	}
	return w.Flush()
}

// Search prints valid schemas matching term.
func (a *SchemaAdapter) Search(ctx context.Context, term string, limit int) error {
	hits, err := a.service.Search(ctx, term, limit)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintf(a.out, "No schemas match %q\n", term)
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCHEMA ID\tID\tTITLE")
	for _, h := range hits {
		fmt.Fprintf(w, "%d\t%s\t%s\n", h.SchemaID, h.IDString, graph.CombinedTitle(h.Title, h.Subtitle))
	}
	return w.Flush()
}

// EditRelations overwrites the editable relationship arrays of a version.
func (a *SchemaAdapter) EditRelations(ctx context.Context, req primary.UpdateRelationshipsRequest) error {
	if err := a.service.UpdateRelationships(ctx, req); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Updated relationships of row %d\n", okMark(), req.PrimaryID)
	return nil
}

// EditValidity overwrites the validity window of a version.
func (a *SchemaAdapter) EditValidity(ctx context.Context, req primary.UpdateValidityRequest) error {
	if err := a.service.UpdateValidity(ctx, req); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Row %d now valid %s\n", okMark(), req.PrimaryID, window(req.ValidFrom, req.ValidUntil))
	return nil
}

// Doctor prints invariant violations and reports whether the store is healthy.
func (a *SchemaAdapter) Doctor(ctx context.Context) (bool, error) {
	report, err := a.service.Check(ctx)
	if err != nil {
		return false, err
	}

	if report.OK() {
		fmt.Fprintf(a.out, "%s %d lineage(s), %d row(s): no problems found\n", okMark(), report.Lineages, report.Rows)
		return true, nil
	}

	fmt.Fprintf(a.out, "%s %d problem(s) in %d lineage(s):\n", failMark(), len(report.Violations), report.Lineages)
	for _, v := range report.Violations {
		fmt.Fprintf(a.out, "  [%d] %s\n", v.SchemaID, v.Message)
	}
	return false, nil
}

// Audit prints audit trail entries.
func (a *SchemaAdapter) Audit(ctx context.Context, filters primary.AuditFilters) error {
	entries, err := a.service.ListAudit(ctx, filters)
	if err != nil {
		return fmt.Errorf("failed to list audit entries: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No audit entries found")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTOR\tROW\tACTION\tFIELD\tCHANGE")
	for _, e := range entries {
		change := e.NewValue
		if e.OldValue != "" {
			change = e.OldValue + " -> " + e.NewValue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Actor, e.PrimaryID, e.Action, e.FieldName, change)
	}
	return w.Flush()
}

// ParseIDs parses a comma separated list of schema ids. An empty string yields
// an empty list.
func ParseIDs(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []int64{}, nil
	}

	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid schema id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func window(from, until string) string {
	if until == "" {
		return from + " .. open"
	}
	return from + " .. " + until
}

func relation(editable, computed []int64) string {
	s := formatIDs(editable)
	if c := formatIDs(computed); c != s {
		s += color.New(color.FgYellow).Sprintf(" (computed %s)", c)
	}
	return s
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
