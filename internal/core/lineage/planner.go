package lineage

import (
	"fmt"
	"sort"
	"time"

	"github.com/example/schemareg/internal/core/effects"
	"github.com/example/schemareg/internal/core/schemapath"
)

// Candidate is a parsed document offered for insertion as a new version.
type Candidate struct {
	Name       string // document name used in error messages
	IDString   string
	Title      string
	Subtitle   string
	Version    string
	ValidFrom  string // empty when omitted
	ValidUntil string // empty when omitted
	Unique     bool
	Document   []byte
}

// InsertPlanInput contains pre-fetched data for planning a version insert.
type InsertPlanInput struct {
	Candidate   Candidate
	Rows        []Row // every row of the lineage; order does not matter
	MaxSchemaID int64 // highest schema_id in the store, root included
}

// InsertPlan represents the planned effects for inserting a version.
type InsertPlan struct {
	SchemaID    int64
	NewLineage  bool
	Version     Version
	ValidFrom   time.Time
	ValidUntil  *time.Time
	Predecessor *Row // the row whose valid_until gets closed, if any
	Effects     []effects.Effect
}

// ValidationError reports a document rejected by a lineage rule.
// It skips only that document; the rest of the batch continues.
type ValidationError struct {
	Document string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Document == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Document, e.Reason)
}

func reject(c Candidate, reason string) *ValidationError {
	name := c.Name
	if name == "" {
		name = c.IDString
	}
	return &ValidationError{Document: name, Reason: reason}
}

// SortNewestFirst orders rows by version descending, then primary id descending.
func SortNewestFirst(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].Version.Compare(rows[j].Version); c != 0 {
			return c > 0
		}
		return rows[i].PrimaryID > rows[j].PrimaryID
	})
}

// LatestAndValid returns the newest row and the newest non-hidden row.
func LatestAndValid(rows []Row) (latest, valid *Row) {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	SortNewestFirst(sorted)

	for i := range sorted {
		if latest == nil {
			latest = &sorted[i]
		}
		if valid == nil && !sorted[i].Hidden {
			valid = &sorted[i]
		}
	}
	return latest, valid
}

// GenerateInsertPlan validates a candidate against its lineage and plans the insert.
// This is a pure function - all input data must be pre-fetched.
// A *ValidationError is returned when the candidate breaks a lineage rule.
func GenerateInsertPlan(input InsertPlanInput) (InsertPlan, error) {
	c := input.Candidate

	if r := CheckRequiredFields(RequiredFieldsContext{
		IDString: c.IDString,
		Title:    c.Title,
		Version:  c.Version,
	}); !r.Allowed {
		return InsertPlan{}, reject(c, r.Reason)
	}

	path, err := schemapath.Parse(c.IDString)
	if err != nil {
		return InsertPlan{}, reject(c, err.Error())
	}
	if path.IsRoot() {
		return InsertPlan{}, reject(c, "schema id / is reserved for the root record")
	}
	c.IDString = path.String()

	version, err := ParseVersion(c.Version)
	if err != nil {
		return InsertPlan{}, reject(c, err.Error())
	}

	var explicitFrom, until *time.Time
	if c.ValidFrom != "" {
		t, err := ParseDate(c.ValidFrom)
		if err != nil {
			return InsertPlan{}, reject(c, fmt.Sprintf("valid_from: %v", err))
		}
		explicitFrom = &t
	}
	if c.ValidUntil != "" {
		t, err := ParseDate(c.ValidUntil)
		if err != nil {
			return InsertPlan{}, reject(c, fmt.Sprintf("valid_until: %v", err))
		}
		until = &t
	}

	latest, valid := LatestAndValid(input.Rows)

	plan := InsertPlan{Version: version, ValidUntil: until}
	if latest == nil {
		plan.NewLineage = true
		plan.SchemaID = input.MaxSchemaID + 1
	} else {
		plan.SchemaID = latest.SchemaID
	}

	switch {
	case explicitFrom != nil:
		plan.ValidFrom = *explicitFrom
	case valid != nil:
		plan.ValidFrom = AddDays(valid.ValidFrom, 1)
		// A predecessor with an explicit end hands over the day after it.
		if valid.ValidUntil != nil && !valid.ValidUntil.Before(plan.ValidFrom) {
			plan.ValidFrom = AddDays(*valid.ValidUntil, 1)
		}
	case latest != nil:
		plan.ValidFrom = AddDays(latest.ValidFrom, 1)
	default:
		plan.ValidFrom = Epoch
	}

	if r := CanInsert(InsertContext{
		IDString:      c.IDString,
		Version:       version,
		ValidFrom:     explicitFrom,
		EffectiveFrom: plan.ValidFrom,
		ValidUntil:    until,
		Latest:        latest,
		Valid:         valid,
	}); !r.Allowed {
		return InsertPlan{}, reject(c, r.Reason)
	}

	if !plan.NewLineage {
		plan.Effects = append(plan.Effects, effects.HideLineageEffect{SchemaID: plan.SchemaID})
	}
	if valid != nil && valid.ValidUntil == nil {
		pred := *valid
		plan.Predecessor = &pred
		plan.Effects = append(plan.Effects, effects.CloseValidityEffect{
			PrimaryID: valid.PrimaryID,
			Until:     AddDays(plan.ValidFrom, -1),
		})
	}
	plan.Effects = append(plan.Effects,
		effects.InsertVersionEffect{
			SchemaID:     plan.SchemaID,
			IDString:     c.IDString,
			Title:        c.Title,
			Subtitle:     c.Subtitle,
			Document:     c.Document,
			Unique:       c.Unique,
			VersionMajor: version.Major,
			VersionMinor: version.Minor,
			ValidFrom:    plan.ValidFrom,
			ValidUntil:   until,
		},
		effects.AppendRootEffect{SchemaID: plan.SchemaID},
	)

	return plan, nil
}
