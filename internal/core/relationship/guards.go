package relationship

import (
	"fmt"
	"sort"
	"strings"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// EditRelationsContext provides context for an administrator relationship edit.
// Known holds every schema_id present in the store.
type EditRelationsContext struct {
	PrimaryID     int64
	SchemaID      int64
	Subschema     []int64
	ChildSchema   []int64
	InheritSchema []int64
	Known         map[int64]bool
}

// CanEditRelations evaluates whether editable relationship arrays may be stored.
// Rules:
// - every referenced id must exist and must not be the root
// - a record may not reference itself
// - subschema and child schema must be disjoint
func CanEditRelations(ctx EditRelationsContext) GuardResult {
	var unknown []string
	seen := make(map[int64]bool)
	for _, list := range [][]int64{ctx.Subschema, ctx.ChildSchema, ctx.InheritSchema} {
		for _, id := range list {
			if seen[id] {
				continue
			}
			seen[id] = true
			if id == RootSchemaID || !ctx.Known[id] {
				unknown = append(unknown, fmt.Sprint(id))
			}
		}
	}
	if len(unknown) > 0 {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("unknown schema id(s): %s", strings.Join(unknown, ", ")),
		}
	}

	if ctx.SchemaID != RootSchemaID && seen[ctx.SchemaID] {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("schema %d cannot reference itself", ctx.SchemaID),
		}
	}

	sub := make(map[int64]bool, len(ctx.Subschema))
	for _, id := range ctx.Subschema {
		sub[id] = true
	}
	var overlap []int64
	for _, id := range ctx.ChildSchema {
		if sub[id] {
			overlap = append(overlap, id)
			delete(sub, id)
		}
	}
	if len(overlap) > 0 {
		sort.Slice(overlap, func(i, j int) bool { return overlap[i] < overlap[j] })
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("schema id(s) %v appear in both subschema and child schema", overlap),
		}
	}

	return GuardResult{Allowed: true}
}
