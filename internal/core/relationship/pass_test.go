package relationship

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/schemareg/internal/core/effects"
)

func TestPlanPass_WritesOnlyChangedSets(t *testing.T) {
	parent := rec(1, "/p", []string{"/p/a"}, []string{"/p/b"})
	a := rec(2, "/p/a")
	b := rec(3, "/p/b")
	r := newTestResolver(parent, a, b)

	plan := PlanPass(r, []StoredRow{{PrimaryID: 10, Record: parent}})

	require.Equal(t, 1, plan.Changed)
	assert.Equal(t, []effects.Effect{
		effects.WriteSubschemaEffect{PrimaryID: 10, IDs: []int64{2}},
		effects.WriteChildSchemaEffect{PrimaryID: 10, IDs: []int64{3}},
		effects.WriteInheritanceEffect{PrimaryID: 10, Inherit: []int64{2, 3}, BaseSchema: 0},
	}, plan.Effects)
}

func TestPlanPass_Idempotent(t *testing.T) {
	parent := rec(1, "/p", []string{"/p/a"}, []string{"/p/b"})
	r := newTestResolver(parent, rec(2, "/p/a"), rec(3, "/p/b"))

	stored := StoredRow{
		PrimaryID:            10,
		Record:               parent,
		SubschemaDefault:     []int64{2},
		ChildSchemaDefault:   []int64{3},
		InheritSchemaDefault: []int64{2, 3},
	}
	plan := PlanPass(r, []StoredRow{stored})

	assert.Equal(t, 0, plan.Changed)
	assert.Equal(t, []effects.Effect{
		effects.WriteInheritanceEffect{PrimaryID: 10, Inherit: []int64{2, 3}},
	}, plan.Effects)
}

func TestPlanPass_OrderSensitive(t *testing.T) {
	parent := rec(1, "/p", []string{"/p/b", "/p/a"})
	r := newTestResolver(parent, rec(2, "/p/a"), rec(3, "/p/b"))

	plan := PlanPass(r, []StoredRow{{
		PrimaryID:            10,
		Record:               parent,
		SubschemaDefault:     []int64{2, 3},
		InheritSchemaDefault: []int64{2, 3},
	}})

	assert.Equal(t, 1, plan.Changed)
	assert.Contains(t, plan.Effects, effects.Effect(effects.WriteSubschemaEffect{PrimaryID: 10, IDs: []int64{3, 2}}))
}

func TestPlanPass_BaseChangeCounts(t *testing.T) {
	leaf := rec(3, "/g/m/l")
	r := newTestResolver(rec(1, "/g"), rec(2, "/g/m"), leaf)

	plan := PlanPass(r, []StoredRow{{PrimaryID: 30, Record: leaf, BaseSchema: 1}})
	assert.Equal(t, 1, plan.Changed)
	assert.Equal(t, []effects.Effect{
		effects.WriteInheritanceEffect{PrimaryID: 30, Inherit: []int64{}, BaseSchema: 2},
	}, plan.Effects)
}

func TestPlanPass_ForwardsWarnings(t *testing.T) {
	lonely := rec(1, "/x", []string{"/missing"})
	r := newTestResolver(lonely)

	plan := PlanPass(r, []StoredRow{{PrimaryID: 1, Record: lonely}})
	require.NotEmpty(t, plan.Effects)
	log, ok := plan.Effects[0].(effects.LogEffect)
	require.True(t, ok)
	assert.Equal(t, "debug", log.Level)
	assert.Equal(t, 0, plan.Changed)
}

func TestEqualIDs(t *testing.T) {
	assert.True(t, EqualIDs(nil, []int64{}))
	assert.True(t, EqualIDs([]int64{1, 2}, []int64{1, 2}))
	assert.False(t, EqualIDs([]int64{1, 2}, []int64{2, 1}))
	assert.False(t, EqualIDs([]int64{1}, []int64{1, 2}))
}
