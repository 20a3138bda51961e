package rootset

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/schemareg/internal/core/effects"
	"github.com/example/schemareg/internal/core/relationship"
	"github.com/example/schemareg/internal/core/schemapath"
)

func TestTopLevel(t *testing.T) {
	valid := []relationship.Record{
		{SchemaID: 0, Path: schemapath.Root},
		{SchemaID: 9, Path: schemapath.MustParse("/z")},
		{SchemaID: 3, Path: schemapath.MustParse("/a")},
		{SchemaID: 4, Path: schemapath.MustParse("/a/b"), Declarations: relationship.Declarations{ParentSchema: []string{"/a"}}},
		// A parent pattern that matches nothing still counts as a declaration.
		{SchemaID: 5, Path: schemapath.MustParse("/c"), Declarations: relationship.Declarations{ParentSchema: []string{"/missing"}}},
	}

	assert.Equal(t, []int64{3, 9}, TopLevel(valid))
	assert.Empty(t, TopLevel(nil))
}

func TestSameSet(t *testing.T) {
	tests := []struct {
		name string
		a, b []int64
		want bool
	}{
		{"both empty", nil, []int64{}, true},
		{"order ignored", []int64{1, 2, 3}, []int64{3, 1, 2}, true},
		{"duplicates ignored", []int64{1, 1, 2}, []int64{2, 1}, true},
		{"missing member", []int64{1, 2}, []int64{1}, false},
		{"different member", []int64{1, 2}, []int64{1, 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameSet(tt.a, tt.b))
		})
	}
}

func TestAppend(t *testing.T) {
	ids, changed := Append([]int64{1, 2}, 3)
	assert.True(t, changed)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	ids, changed = Append(ids, 2)
	assert.False(t, changed)
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestPlan(t *testing.T) {
	valid := []relationship.Record{
		{SchemaID: 2, Path: schemapath.MustParse("/b")},
		{SchemaID: 1, Path: schemapath.MustParse("/a")},
	}

	eff, changed := Plan(7, []int64{2, 1}, valid)
	assert.False(t, changed)
	assert.Equal(t, effects.NoEffect{}, eff)

	eff, changed = Plan(7, []int64{1}, valid)
	assert.True(t, changed)
	assert.Equal(t, effects.WriteRootSetEffect{PrimaryID: 7, IDs: []int64{1, 2}}, eff)
}
