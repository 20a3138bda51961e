// Package rootset computes the top-level schema set held by the root record.
package rootset

import (
	"sort"

	"github.com/example/schemareg/internal/core/effects"
	"github.com/example/schemareg/internal/core/relationship"
)

// TopLevel returns the schema_ids of valid records that declare no parent,
// ordered by schema_id. The root record itself is never included.
func TopLevel(valid []relationship.Record) []int64 {
	ids := make([]int64, 0, len(valid))
	seen := make(map[int64]bool, len(valid))
	for _, rec := range valid {
		if rec.SchemaID == relationship.RootSchemaID || rec.Path.IsRoot() {
			continue
		}
		if rec.DeclaresParent() || seen[rec.SchemaID] {
			continue
		}
		seen[rec.SchemaID] = true
		ids = append(ids, rec.SchemaID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SameSet reports whether a and b hold the same ids, ignoring order and
// duplicates.
func SameSet(a, b []int64) bool {
	as := toSet(a)
	bs := toSet(b)
	if len(as) != len(bs) {
		return false
	}
	for id := range as {
		if !bs[id] {
			return false
		}
	}
	return true
}

// Append adds id to ids unless already present. The second result is false
// when ids was left unchanged.
func Append(ids []int64, id int64) ([]int64, bool) {
	for _, existing := range ids {
		if existing == id {
			return ids, false
		}
	}
	out := make([]int64, len(ids), len(ids)+1)
	copy(out, ids)
	return append(out, id), true
}

func toSet(ids []int64) map[int64]bool {
	s := make(map[int64]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

// Plan compares the freshly computed top-level set with the root record's
// stored default and returns a write effect only when the sets differ.
func Plan(rootPrimaryID int64, storedDefault []int64, valid []relationship.Record) (effects.Effect, bool) {
	top := TopLevel(valid)
	if SameSet(top, storedDefault) {
		return effects.NoEffect{}, false
	}
	return effects.WriteRootSetEffect{PrimaryID: rootPrimaryID, IDs: top}, true
}
