package relationship

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/example/schemareg/internal/core/schemapath"
)

func rec(id int64, path string, decl ...[]string) Record {
	r := Record{SchemaID: id, Path: schemapath.MustParse(path)}
	if len(decl) > 0 {
		r.Declarations.Subschema = decl[0]
	}
	if len(decl) > 1 {
		r.Declarations.ChildSchema = decl[1]
	}
	if len(decl) > 2 {
		r.Declarations.ParentSchema = decl[2]
	}
	return r
}

func newTestResolver(records ...Record) *Resolver {
	return NewResolver(records, NewMatcher(DefaultExpiration, DefaultCleanupInterval))
}

func TestMatcher_Compile(t *testing.T) {
	m := NewMatcher(DefaultExpiration, DefaultCleanupInterval)

	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/root/a/*", "/root/a/x", true},
		{"/root/a/*", "/root/a", false},
		{"/root/a/*", "/root/a/b/z", false},
		{"/root/*/z", "/root/a/z", true},
		{"/root/a.b/*", "/root/aXb/c", false},
		{"/root/x*", "/root/xy", true},
		{"/root/x*", "/root/x", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Compile(tt.pattern).MatchString(tt.path))
		})
	}

	first := m.Compile("/root/a/*")
	assert.Same(t, first, m.Compile("/root/a/*"))
	assert.Equal(t, 4, m.Cached())
}

func TestResolver_WildcardMatchesDirectChildrenOnly(t *testing.T) {
	r := newTestResolver(
		rec(5, "/root/a/y"),
		rec(3, "/root/a/x"),
		rec(4, "/root/a/b/z"),
		rec(2, "/root/a"),
	)

	assert.Equal(t, []int64{3, 5}, r.Match("/root/a/*"))
	assert.Equal(t, []int64{3, 5}, r.Match("/root/a/*/"))
	assert.Equal(t, []int64{4}, r.Match("/root/a/*/z"))
}

func TestResolver_ExactMatch(t *testing.T) {
	r := newTestResolver(rec(2, "/root/a"), rec(3, "/root/a/x"))

	assert.Equal(t, []int64{3}, r.Match("/root/a/x"))
	assert.Equal(t, []int64{3}, r.Match(" /root/a/x/ "))
	assert.Empty(t, r.Match("/root/missing"))
	assert.Empty(t, r.Match(""))
	assert.Empty(t, r.Match("relative"))
}

func TestResolver_RootIsNeverIndexed(t *testing.T) {
	r := newTestResolver(rec(RootSchemaID, "/"), rec(2, "/a"))

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []int64{2}, r.Match("/*"))
	assert.Empty(t, r.Match(schemapath.Root.String()))
}

func TestResolver_Resolve(t *testing.T) {
	parent := rec(1, "/p", []string{"/p/sub"}, []string{"/p/sub", "/p/kid", "/nowhere"})
	sub := rec(2, "/p/sub")
	kid := rec(3, "/p/kid")
	// Declares /p as parent from elsewhere in the tree.
	stray := rec(4, "/other/leaf", nil, nil, []string{"/p"})

	r := newTestResolver(parent, sub, kid, stray, rec(5, "/other"))

	res := r.Resolve(parent)
	assert.Equal(t, []int64{2}, res.Subschema)
	assert.Equal(t, []int64{3, 4}, res.ChildSchema, "sub members are excluded, reverse index appended")
	assert.Equal(t, []int64{3, 2}, res.InheritSchema, "descendants ordered by path")
	assert.Equal(t, int64(0), res.BaseSchema)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "debug", res.Warnings[0].Level)
	assert.Contains(t, res.Warnings[0].Message, "/nowhere")

	for _, id := range res.Subschema {
		assert.NotContains(t, res.ChildSchema, id)
	}

	res = r.Resolve(stray)
	assert.Equal(t, int64(5), res.BaseSchema)
	assert.Empty(t, res.InheritSchema)
}

func TestResolver_BaseIsNearestAncestor(t *testing.T) {
	grand := rec(1, "/g")
	mid := rec(2, "/g/m")
	mid.Unique = true
	leaf := rec(3, "/g/m/l")

	r := newTestResolver(grand, mid, leaf, rec(4, "/g/mm"))

	res := r.Resolve(leaf)
	assert.Equal(t, int64(2), res.BaseSchema)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "warn", res.Warnings[0].Level)
	assert.Contains(t, res.Warnings[0].Message, "uniqueness")

	// "/g/mm" shares a string prefix with "/g/m" but is not nested under it.
	res = r.Resolve(mid)
	assert.Equal(t, []int64{3}, res.InheritSchema)
	assert.Equal(t, int64(1), res.BaseSchema)

	res = r.Resolve(grand)
	assert.Equal(t, []int64{2, 3, 4}, res.InheritSchema)
}

func TestResolver_HistoricalRecordResolvesAgainstValidSet(t *testing.T) {
	r := newTestResolver(rec(2, "/a"), rec(3, "/a/b"))

	old := rec(2, "/a", []string{"/a/*"})
	res := r.Resolve(old)
	assert.Equal(t, []int64{3}, res.Subschema)
	assert.Equal(t, []int64{3}, res.InheritSchema)
}

func TestRecord_DeclaresParent(t *testing.T) {
	assert.False(t, rec(1, "/a").DeclaresParent())
	assert.False(t, rec(1, "/a", nil, nil, []string{"  "}).DeclaresParent())
	assert.True(t, rec(1, "/a", nil, nil, []string{"/b"}).DeclaresParent())
}

func TestResolver_SubAndChildDisjoint(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		paths := []string{"/a", "/a/b", "/a/c", "/a/b/d", "/e", "/e/f"}
		patterns := append([]string{"/a/*", "/*", "/missing"}, paths...)
		n := rapid.IntRange(1, len(paths)).Draw(t, "n")

		var records []Record
		for i := 0; i < n; i++ {
			records = append(records, Record{
				SchemaID: int64(i + 1),
				Path:     schemapath.MustParse(paths[i]),
				Declarations: Declarations{
					Subschema:    rapid.SliceOfN(rapid.SampledFrom(patterns), 0, 3).Draw(t, "sub"),
					ChildSchema:  rapid.SliceOfN(rapid.SampledFrom(patterns), 0, 3).Draw(t, "child"),
					ParentSchema: rapid.SliceOfN(rapid.SampledFrom(paths), 0, 2).Draw(t, "parent"),
				},
			})
		}

		r := newTestResolver(records...)
		for _, rc := range records {
			res := r.Resolve(rc)
			seen := map[int64]bool{}
			for _, id := range res.Subschema {
				if seen[id] {
					t.Fatalf("duplicate %d in subschema of %s", id, rc.Path)
				}
				seen[id] = true
			}
			for _, id := range res.ChildSchema {
				if seen[id] {
					t.Fatalf("%d appears in both subschema and childschema of %s", id, rc.Path)
				}
				seen[id] = true
			}
		}
	})
}
