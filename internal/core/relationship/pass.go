package relationship

import "github.com/example/schemareg/internal/core/effects"

// StoredRow is a persisted version row together with the relationship
// columns it currently holds.
type StoredRow struct {
	PrimaryID            int64
	Record               Record
	SubschemaDefault     []int64
	ChildSchemaDefault   []int64
	InheritSchemaDefault []int64
	BaseSchema           int64
}

// PassPlan is the outcome of planning one relationship pass.
type PassPlan struct {
	Effects []effects.Effect
	Changed int // rows whose relationship columns actually change
}

// PlanPass resolves every target row against r and plans the writes.
// Rules:
// - subschema and child schema are written only when the fresh result differs
//   from the stored default, order-sensitively
// - inheritance and base schema are always written
// - resolution warnings become log effects
func PlanPass(r *Resolver, targets []StoredRow) PassPlan {
	var plan PassPlan

	for _, row := range targets {
		res := r.Resolve(row.Record)
		for _, w := range res.Warnings {
			plan.Effects = append(plan.Effects, w)
		}

		changed := false
		if !EqualIDs(res.Subschema, row.SubschemaDefault) {
			plan.Effects = append(plan.Effects, effects.WriteSubschemaEffect{PrimaryID: row.PrimaryID, IDs: nonNil(res.Subschema)})
			changed = true
		}
		if !EqualIDs(res.ChildSchema, row.ChildSchemaDefault) {
			plan.Effects = append(plan.Effects, effects.WriteChildSchemaEffect{PrimaryID: row.PrimaryID, IDs: nonNil(res.ChildSchema)})
			changed = true
		}
		if !EqualIDs(res.InheritSchema, row.InheritSchemaDefault) || res.BaseSchema != row.BaseSchema {
			changed = true
		}
		plan.Effects = append(plan.Effects, effects.WriteInheritanceEffect{
			PrimaryID:  row.PrimaryID,
			Inherit:    nonNil(res.InheritSchema),
			BaseSchema: res.BaseSchema,
		})

		if changed {
			plan.Changed++
		}
	}

	return plan
}

// EqualIDs compares two id lists element by element. nil equals empty.
func EqualIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
