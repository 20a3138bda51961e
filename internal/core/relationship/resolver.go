package relationship

import (
	"fmt"
	"sort"
	"strings"

	"github.com/example/schemareg/internal/core/effects"
	"github.com/example/schemareg/internal/core/schemapath"
)

// RootSchemaID is the schema_id of the synthetic root record. It never takes
// part in resolution.
const RootSchemaID int64 = 0

// Declarations are the raw relationship patterns a document declares.
type Declarations struct {
	Subschema    []string
	ChildSchema  []string
	ParentSchema []string
}

// Record is a schema row as seen by resolution.
type Record struct {
	SchemaID     int64
	Path         schemapath.Path
	Unique       bool
	Declarations Declarations
}

// Resolution is the computed relationship state of one record.
type Resolution struct {
	Subschema     []int64
	ChildSchema   []int64
	InheritSchema []int64
	BaseSchema    int64 // 0 when the record has no ancestor
	Warnings      []effects.LogEffect
}

// Resolver holds the in-memory index of currently valid records for one pass.
type Resolver struct {
	matcher   *Matcher
	records   []Record // sorted by path
	byPath    map[schemapath.Path]*Record
	parentsOf map[int64][]int64 // target schema_id -> schema_ids declaring it as parent
}

// NewResolver indexes the currently valid records. The root record, if
// present, is ignored.
func NewResolver(valid []Record, matcher *Matcher) *Resolver {
	r := &Resolver{
		matcher:   matcher,
		byPath:    make(map[schemapath.Path]*Record, len(valid)),
		parentsOf: make(map[int64][]int64),
	}

	for _, rec := range valid {
		if rec.SchemaID == RootSchemaID || rec.Path.IsRoot() {
			continue
		}
		r.records = append(r.records, rec)
	}
	sort.SliceStable(r.records, func(i, j int) bool {
		return r.records[i].Path < r.records[j].Path
	})
	for i := range r.records {
		r.byPath[r.records[i].Path] = &r.records[i]
	}

	// Reverse index: parentschema contributes the declaring record into its
	// parents' child sets.
	for _, rec := range r.records {
		for _, pattern := range rec.Declarations.ParentSchema {
			for _, target := range r.Match(pattern) {
				r.parentsOf[target] = appendUnique(r.parentsOf[target], rec.SchemaID)
			}
		}
	}

	return r
}

// Match resolves one raw pattern to schema ids, ordered by path.
// Exact patterns yield at most one id.
func (r *Resolver) Match(pattern string) []int64 {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil
	}

	if !IsWildcard(pattern) {
		p, err := schemapath.Parse(pattern)
		if err != nil {
			return nil
		}
		if rec, ok := r.byPath[p]; ok {
			return []int64{rec.SchemaID}
		}
		return nil
	}

	if len(pattern) > 1 {
		pattern = strings.TrimSuffix(pattern, schemapath.Separator)
	}
	re := r.matcher.Compile(pattern)

	var ids []int64
	for _, rec := range r.records {
		if re.MatchString(rec.Path.String()) {
			ids = append(ids, rec.SchemaID)
		}
	}
	return ids
}

// Len is the number of indexed records.
func (r *Resolver) Len() int { return len(r.records) }

// Resolve computes the relationship state of rec against the index. rec may
// be a historical row that is not itself indexed.
func (r *Resolver) Resolve(rec Record) Resolution {
	var (
		res   Resolution
		sub   idList
		child idList
	)

	for _, pattern := range rec.Declarations.Subschema {
		ids := r.Match(pattern)
		if len(ids) == 0 {
			res.Warnings = append(res.Warnings, unmatched(rec, "subschema", pattern))
		}
		sub.add(ids...)
	}

	for _, pattern := range rec.Declarations.ChildSchema {
		ids := r.Match(pattern)
		if len(ids) == 0 {
			res.Warnings = append(res.Warnings, unmatched(rec, "childschema", pattern))
		}
		for _, id := range ids {
			if !sub.has(id) {
				child.add(id)
			}
		}
	}
	for _, id := range r.parentsOf[rec.SchemaID] {
		if !sub.has(id) {
			child.add(id)
		}
	}

	res.Subschema = sub.ids
	res.ChildSchema = child.ids
	res.InheritSchema = r.descendants(rec)

	for _, anc := range rec.Path.Ancestors() {
		base, ok := r.byPath[anc]
		if !ok || base.SchemaID == rec.SchemaID {
			continue
		}
		res.BaseSchema = base.SchemaID
		if base.Unique != rec.Unique {
			res.Warnings = append(res.Warnings, effects.LogEffect{
				Level: "warn",
				Message: fmt.Sprintf("uniqueness of %s (%t) differs from its base %s (%t)",
					rec.Path, rec.Unique, base.Path, base.Unique),
				Fields: map[string]any{"schema_id": rec.SchemaID, "base_schema": base.SchemaID},
			})
		}
		break
	}

	return res
}

// descendants returns every indexed record nested under rec's path. Records
// sharing a prefix are contiguous in path order, so a binary search finds the
// start of the run.
func (r *Resolver) descendants(rec Record) []int64 {
	prefix := rec.Path.DescendantPrefix()
	start := sort.Search(len(r.records), func(i int) bool {
		return r.records[i].Path.String() >= prefix
	})

	var ids []int64
	for i := start; i < len(r.records); i++ {
		cand := r.records[i]
		if !strings.HasPrefix(cand.Path.String(), prefix) {
			break
		}
		if cand.SchemaID != rec.SchemaID {
			ids = append(ids, cand.SchemaID)
		}
	}
	return ids
}

// DeclaresParent reports whether rec names any parent.
func (rec Record) DeclaresParent() bool {
	for _, p := range rec.Declarations.ParentSchema {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}

func unmatched(rec Record, field, pattern string) effects.LogEffect {
	return effects.LogEffect{
		Level:   "debug",
		Message: fmt.Sprintf("%s pattern %q of %s matches no valid schema", field, pattern, rec.Path),
		Fields:  map[string]any{"schema_id": rec.SchemaID},
	}
}

func appendUnique(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// idList is an insertion-ordered set of schema ids.
type idList struct {
	ids  []int64
	seen map[int64]bool
}

func (l *idList) add(ids ...int64) {
	if l.seen == nil {
		l.seen = make(map[int64]bool)
	}
	for _, id := range ids {
		if !l.seen[id] {
			l.seen[id] = true
			l.ids = append(l.ids, id)
		}
	}
}

func (l *idList) has(id int64) bool {
	return l.seen[id]
}
