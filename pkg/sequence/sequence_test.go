package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	cases := []struct {
		target, n, want int
	}{
		{-5, 4, 0},
		{0, 4, 0},
		{2, 4, 2},
		{3, 4, 3},
		{999, 4, 3},
		{1, 0, 0},
		{-1, 1, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Clamp(c.target, c.n), "Clamp(%d, %d)", c.target, c.n)
	}
}

func TestMove_Earlier(t *testing.T) {
	// [A,B,C,D] 把 D 移到 1 -> [A,D,B,C]
	got := Move([]int64{1, 2, 3, 4}, 3, 1)
	assert.Equal(t, []int64{1, 4, 2, 3}, got)
}

func TestMove_Later(t *testing.T) {
	got := Move([]int64{1, 2, 3, 4}, 0, 2)
	assert.Equal(t, []int64{2, 3, 1, 4}, got)
}

func TestMove_ClampsTarget(t *testing.T) {
	ids := []int64{10, 20, 30}
	assert.Equal(t, Move(ids, 2, 0), Move(ids, 2, -5))
	assert.Equal(t, Move(ids, 0, 2), Move(ids, 0, 999))
}

func TestMove_DoesNotMutateInput(t *testing.T) {
	ids := []int64{1, 2, 3}
	_ = Move(ids, 0, 2)
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestMove_OutOfRangeSource(t *testing.T) {
	assert.Equal(t, []int64{1, 2}, Move([]int64{1, 2}, 5, 0))
}

func TestOrdered_TieBreaksByID(t *testing.T) {
	slots := []Slot{{ID: 9, Index: 1}, {ID: 3, Index: 1}, {ID: 7, Index: 0}, {ID: 1, Index: 5}}
	assert.Equal(t, []int64{7, 3, 9, 1}, Ordered(slots))
}

func TestAssign(t *testing.T) {
	assert.Equal(t, []Slot{{30, 0}, {10, 1}, {20, 2}}, Assign([]int64{30, 10, 20}))
	assert.Empty(t, Assign(nil))
}

func TestChanged_OnlyMovedRows(t *testing.T) {
	current := []Slot{{1, 0}, {2, 1}, {3, 2}, {4, 3}}
	desired := Assign(Move([]int64{1, 2, 3, 4}, 3, 1))

	assert.Equal(t, []Slot{{4, 1}, {2, 2}, {3, 3}}, Changed(current, desired))
	assert.Empty(t, Changed(current, current))
}

func TestPositionAndDuplicates(t *testing.T) {
	assert.Equal(t, 1, Position([]int64{5, 6, 7}, 6))
	assert.Equal(t, -1, Position([]int64{5, 6, 7}, 8))

	assert.True(t, HasDuplicates([]int64{1, 2, 1}))
	assert.False(t, HasDuplicates([]int64{1, 2, 3}))
}
