package ingest

import (
	"sort"

	"github.com/example/schemareg/internal/core/lineage"
	"github.com/example/schemareg/internal/core/schemapath"
)

// Batch is a decoded, insertion-ordered set of documents.
type Batch struct {
	Entries []Entry
	// Errors holds one *lineage.ValidationError per document that failed to decode.
	Errors []error
	// RepeatedLineage is set when one id appears more than once, which makes
	// historical rows of that lineage stale and calls for a full relationship pass.
	RepeatedLineage bool
}

// Prepare decodes docs and sorts them by id, then version ascending.
// Documents whose version does not parse sort after parseable ones of the
// same id so the resolver reports them without blocking their siblings.
func Prepare(docs []Document) Batch {
	var b Batch
	for _, doc := range docs {
		e, err := Decode(doc)
		if err != nil {
			b.Errors = append(b.Errors, err)
			continue
		}
		b.Entries = append(b.Entries, e)
	}

	keys := make([]sortKey, len(b.Entries))
	for i, e := range b.Entries {
		keys[i] = keyOf(e)
	}
	idx := make([]int, len(b.Entries))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return keys[idx[i]].less(keys[idx[j]])
	})

	sorted := make([]Entry, len(b.Entries))
	seen := make(map[string]bool, len(b.Entries))
	for i, k := range idx {
		sorted[i] = b.Entries[k]
		if seen[keys[k].id] {
			b.RepeatedLineage = true
		}
		seen[keys[k].id] = true
	}
	b.Entries = sorted

	return b
}

type sortKey struct {
	id       string
	version  lineage.Version
	parsable bool
}

func keyOf(e Entry) sortKey {
	k := sortKey{id: e.Candidate.IDString}
	if p, err := schemapath.Parse(e.Candidate.IDString); err == nil {
		k.id = p.String()
	}
	if v, err := lineage.ParseVersion(e.Candidate.Version); err == nil {
		k.version = v
		k.parsable = true
	}
	return k
}

func (k sortKey) less(o sortKey) bool {
	if k.id != o.id {
		return k.id < o.id
	}
	if k.parsable != o.parsable {
		return k.parsable
	}
	return k.version.Compare(o.version) < 0
}
