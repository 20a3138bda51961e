package lineage

import (
	"fmt"
	"sort"
	"time"

	"github.com/example/schemareg/internal/core/effects"
)

// ValidityEditInput contains pre-fetched data for planning a validity edit.
type ValidityEditInput struct {
	PrimaryID  int64
	ValidFrom  string
	ValidUntil string // empty leaves the window open
	Rows       []Row  // every row of the lineage
}

// SortOldestFirst orders rows by version ascending.
func SortOldestFirst(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].Version.Compare(rows[j].Version); c != 0 {
			return c < 0
		}
		return rows[i].PrimaryID < rows[j].PrimaryID
	})
}

// Neighbours returns the row with primaryID and the versions directly before
// and after it.
func Neighbours(rows []Row, primaryID int64) (self, prev, next *Row) {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	SortOldestFirst(sorted)

	for i := range sorted {
		if sorted[i].PrimaryID != primaryID {
			continue
		}
		self = &sorted[i]
		if i > 0 {
			prev = &sorted[i-1]
		}
		if i+1 < len(sorted) {
			next = &sorted[i+1]
		}
		break
	}
	return self, prev, next
}

// PlanValidityEdit validates a new window against the neighbouring versions
// and plans the write.
func PlanValidityEdit(input ValidityEditInput) ([]effects.Effect, error) {
	from, err := ParseDate(input.ValidFrom)
	if err != nil {
		return nil, fmt.Errorf("valid_from: %w", err)
	}
	var until *time.Time
	if input.ValidUntil != "" {
		t, err := ParseDate(input.ValidUntil)
		if err != nil {
			return nil, fmt.Errorf("valid_until: %w", err)
		}
		until = &t
	}

	self, prev, next := Neighbours(input.Rows, input.PrimaryID)
	if self == nil {
		return nil, fmt.Errorf("schema row %d is not part of the lineage", input.PrimaryID)
	}

	if r := CanEditValidity(ValidityEditContext{
		PrimaryID:  input.PrimaryID,
		ValidFrom:  from,
		ValidUntil: until,
		Previous:   prev,
		Next:       next,
	}); !r.Allowed {
		return nil, r.Error()
	}

	return []effects.Effect{effects.EditValidityEffect{PrimaryID: input.PrimaryID, ValidFrom: from, ValidUntil: until}}, nil
}

// Violation describes a broken lineage invariant found by CheckLineage.
type Violation struct {
	SchemaID int64
	Message  string
}

// CheckLineage verifies that exactly one row of a lineage is visible and that
// successive validity windows do not overlap.
func CheckLineage(idString string, rows []Row) []Violation {
	if len(rows) == 0 {
		return nil
	}
	schemaID := rows[0].SchemaID

	var out []Violation
	visible := 0
	for _, r := range rows {
		if !r.Hidden {
			visible++
		}
	}
	if visible != 1 {
		out = append(out, Violation{
			SchemaID: schemaID,
			Message:  fmt.Sprintf("%s has %d visible versions, expected exactly 1", idString, visible),
		})
	}

	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	SortOldestFirst(sorted)
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		end := prev.ValidUntil
		if end == nil || !cur.ValidFrom.After(*end) {
			out = append(out, Violation{
				SchemaID: schemaID,
				Message: fmt.Sprintf("%s version %s (from %s) overlaps version %s (until %s)",
					idString, cur.Version, cur.ValidFrom.Format(DateLayout), prev.Version, untilLabel(end)),
			})
		}
		if !cur.Version.After(prev.Version) {
			out = append(out, Violation{
				SchemaID: schemaID,
				Message:  fmt.Sprintf("%s repeats version %s", idString, cur.Version),
			})
		}
	}
	return out
}

func untilLabel(t *time.Time) string {
	if t == nil {
		return "open"
	}
	return t.Format(DateLayout)
}
