package service_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"fittrack/internal/infrastructure/metrics"
	"fittrack/internal/model"
	"fittrack/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertDense order_index 恰好为 {0..n-1}
func assertDense(t *testing.T, e *env, sessionID int64) {
	t.Helper()
	order := e.order(t, sessionID)
	indexes := make([]int, 0, len(order))
	want := make([]int, 0, len(order))
	for _, idx := range order {
		indexes = append(indexes, idx)
		want = append(want, len(want))
	}
	assert.ElementsMatch(t, want, indexes, "order_index not dense: %v", order)
}

func TestOrdering_AddEntryAppends(t *testing.T) {
	e := newEnv(t)
	sid, entries := e.session(t, "append", 3)

	order := e.order(t, sid)
	for i, id := range entries {
		assert.Equal(t, i, order[id])
	}
}

func TestOrdering_AddEntryExplicitIndexIsTrusted(t *testing.T) {
	e := newEnv(t)
	sid, _ := e.session(t, "explicit", 2)
	ex := &model.Exercise{Title: "extra"}
	require.NoError(t, e.db.Create(ex).Error)

	v, err := e.ordering.AddEntry(context.Background(), &service.AddEntryRequest{
		SessionID:  sid,
		ExerciseID: ex.ID,
		Weight:     decimal.NewNullDecimal(decimal.RequireFromString("62.5")),
		Reps:       ptr(10),
		OrderIndex: ptr(7),
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v.OrderIndex)
	assert.Equal(t, "extra", v.Exercise.Title)
	assert.True(t, decimal.RequireFromString("62.5").Equal(v.Weight.Decimal))
}

func TestOrdering_AddEntryErrors(t *testing.T) {
	e := newEnv(t)
	sid, _ := e.session(t, "errs", 0)
	ctx := context.Background()

	_, err := e.ordering.AddEntry(ctx, &service.AddEntryRequest{SessionID: sid})
	assert.ErrorIs(t, err, service.ErrMissingExerciseID)

	_, err = e.ordering.AddEntry(ctx, &service.AddEntryRequest{SessionID: sid, ExerciseID: 999})
	assert.ErrorIs(t, err, service.ErrExerciseNotFound)

	_, err = e.ordering.AddEntry(ctx, &service.AddEntryRequest{SessionID: 999, ExerciseID: 1})
	assert.ErrorIs(t, err, service.ErrSessionNotFound)

	_, err = e.ordering.AddEntry(ctx, &service.AddEntryRequest{SessionID: sid, ExerciseID: 1, Reps: ptr(-1)})
	assert.ErrorIs(t, err, service.ErrInvalidReps)
}

func TestOrdering_UpdateEntry(t *testing.T) {
	e := newEnv(t)
	sid, entries := e.session(t, "update", 2)
	ctx := context.Background()

	_, err := e.ordering.UpdateEntry(ctx, &service.UpdateEntryRequest{SessionID: sid, EntryID: entries[0]})
	assert.ErrorIs(t, err, service.ErrNoFields)

	v, err := e.ordering.UpdateEntry(ctx, &service.UpdateEntryRequest{
		SessionID: sid,
		EntryID:   entries[0],
		SetWeight: true,
		Weight:    decimal.NewNullDecimal(decimal.NewFromInt(80)),
		SetReps:   true,
		Reps:      ptr(5),
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(80).Equal(v.Weight.Decimal))
	assert.Equal(t, 5, *v.Reps)

	// 置空
	v, err = e.ordering.UpdateEntry(ctx, &service.UpdateEntryRequest{SessionID: sid, EntryID: entries[0], SetWeight: true})
	require.NoError(t, err)
	assert.False(t, v.Weight.Valid)

	// 直接写 order_index 不修复连续性
	_, err = e.ordering.UpdateEntry(ctx, &service.UpdateEntryRequest{SessionID: sid, EntryID: entries[1], OrderIndex: ptr(9)})
	require.NoError(t, err)
	assert.Equal(t, 9, e.order(t, sid)[entries[1]])

	other, _ := e.session(t, "other", 1)
	_, err = e.ordering.UpdateEntry(ctx, &service.UpdateEntryRequest{SessionID: other, EntryID: entries[0], Reps: ptr(1), SetReps: true})
	assert.ErrorIs(t, err, service.ErrEntryNotFound)
}

func TestOrdering_DeleteEntry(t *testing.T) {
	e := newEnv(t)
	sid, entries := e.session(t, "delete", 3)
	ctx := context.Background()

	require.NoError(t, e.ordering.DeleteEntry(ctx, sid, entries[1]))
	assert.Len(t, e.order(t, sid), 2)

	assert.ErrorIs(t, e.ordering.DeleteEntry(ctx, sid, entries[1]), service.ErrEntryNotFound)
}

func TestOrdering_ReorderScenario(t *testing.T) {
	// GIVEN [A:0, B:1, C:2]
	e := newEnv(t)
	sid, entries := e.session(t, "reorder", 3)
	a, b, c := entries[0], entries[1], entries[2]

	// WHEN reorder([C, A, B])
	views, err := e.ordering.Reorder(context.Background(), sid, []int64{c, a, b})

	// THEN [C:0, A:1, B:2]
	require.NoError(t, err)
	assert.Equal(t, []int64{c, a, b}, ids(views))
	assert.Equal(t, []int{0, 1, 2}, indices(views))
	assert.Equal(t, map[int64]int{c: 0, a: 1, b: 2}, e.order(t, sid))
}

func TestOrdering_ReorderValidation(t *testing.T) {
	e := newEnv(t)
	sid, entries := e.session(t, "validate", 3)
	otherSID, other := e.session(t, "foreign", 1)
	ctx := context.Background()
	before := e.order(t, sid)

	_, err := e.ordering.Reorder(ctx, sid, nil)
	assert.ErrorIs(t, err, service.ErrEmptyOrder)

	_, err = e.ordering.Reorder(ctx, sid, []int64{entries[0], entries[0], entries[1]})
	assert.ErrorIs(t, err, service.ErrDuplicatedIDs)

	// 缺一个条目
	_, err = e.ordering.Reorder(ctx, sid, []int64{entries[2], entries[0]})
	assert.ErrorIs(t, err, service.ErrMismatchCount)

	_, err = e.ordering.Reorder(ctx, sid, []int64{entries[2], entries[0], other[0]})
	assert.ErrorIs(t, err, service.ErrIDNotInSession)

	_, err = e.ordering.Reorder(ctx, 999, []int64{1})
	assert.ErrorIs(t, err, service.ErrSessionNotFound)

	assert.Equal(t, before, e.order(t, sid))
	assert.Equal(t, 0, e.order(t, otherSID)[other[0]])
}

func TestOrdering_MoveScenario(t *testing.T) {
	// GIVEN 4 个条目 0..3
	e := newEnv(t)
	sid, entries := e.session(t, "move", 4)

	// WHEN 把位置 3 的条目移到 1
	views, err := e.ordering.Move(context.Background(), sid, entries[3], 1)

	// THEN 它到 1，原来的 1、2 变成 2、3
	require.NoError(t, err)
	assert.Equal(t, []int64{entries[0], entries[3], entries[1], entries[2]}, ids(views))
	assert.Equal(t, []int{0, 1, 2, 3}, indices(views))
}

func TestOrdering_MoveLater(t *testing.T) {
	e := newEnv(t)
	sid, entries := e.session(t, "later", 4)

	views, err := e.ordering.Move(context.Background(), sid, entries[0], 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{entries[1], entries[2], entries[0], entries[3]}, ids(views))
	assertDense(t, e, sid)
}

func TestOrdering_MoveClampsTarget(t *testing.T) {
	ctx := context.Background()

	for _, c := range []struct{ far, near int }{{-5, 0}, {999, 3}} {
		e1 := newEnv(t)
		sid1, entries1 := e1.session(t, "clamp", 4)
		got, err := e1.ordering.Move(ctx, sid1, entries1[2], c.far)
		require.NoError(t, err)

		e2 := newEnv(t)
		sid2, entries2 := e2.session(t, "clamp", 4)
		want, err := e2.ordering.Move(ctx, sid2, entries2[2], c.near)
		require.NoError(t, err)

		// 两个库的 id 分配相同
		assert.Equal(t, ids(want), ids(got))
		assert.Equal(t, indices(want), indices(got))
	}
}

func TestOrdering_MoveToSamePositionIsNoop(t *testing.T) {
	e := newEnv(t)
	sid, entries := e.session(t, "noop", 3)

	before := e.order(t, sid)

	views, err := e.ordering.Move(context.Background(), sid, entries[1], 1)
	require.NoError(t, err)
	assert.Equal(t, entries, ids(views))
	assert.Equal(t, before, e.order(t, sid))
}

func TestOrdering_MoveForeignEntry(t *testing.T) {
	e := newEnv(t)
	sid, _ := e.session(t, "mine", 2)
	_, foreign := e.session(t, "theirs", 1)

	_, err := e.ordering.Move(context.Background(), sid, foreign[0], 0)
	assert.ErrorIs(t, err, service.ErrEntryNotFound)
}

func TestOrdering_CompactRepairsDriftAndIsIdempotent(t *testing.T) {
	e := newEnv(t)
	sid, entries := e.session(t, "compact", 4)
	ctx := context.Background()

	// 制造空洞和重复：[0]=5, [1]=5, [2]=9, [3]=0
	for id, idx := range map[int64]int{entries[0]: 5, entries[1]: 5, entries[2]: 9, entries[3]: 0} {
		require.NoError(t, e.db.Model(&model.SessionExercise{}).Where("id = ?", id).Update("order_index", idx).Error)
	}

	require.NoError(t, e.ordering.Compact(ctx, sid))
	want := map[int64]int{entries[3]: 0, entries[0]: 1, entries[1]: 2, entries[2]: 3}
	assert.Equal(t, want, e.order(t, sid))

	require.NoError(t, e.ordering.Compact(ctx, sid))
	assert.Equal(t, want, e.order(t, sid))

	assert.ErrorIs(t, e.ordering.Compact(ctx, 999), service.ErrSessionNotFound)
}

func TestOrdering_ReorderMapPartial(t *testing.T) {
	e := newEnv(t)
	sid, entries := e.session(t, "map", 3)
	ctx := context.Background()

	views, err := e.ordering.ReorderMap(ctx, sid, []service.OrderItem{
		{ID: entries[0], OrderIndex: 2},
		{ID: entries[2], OrderIndex: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{entries[2], entries[1], entries[0]}, ids(views))
	assert.Equal(t, map[int64]int{entries[2]: 0, entries[1]: 1, entries[0]: 2}, e.order(t, sid))
}

func TestOrdering_ReorderMapToleratesInconsistentMap(t *testing.T) {
	e := newEnv(t)
	sid, entries := e.session(t, "loose", 3)

	_, err := e.ordering.ReorderMap(context.Background(), sid, []service.OrderItem{{ID: entries[0], OrderIndex: 1}})
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{entries[0]: 1, entries[1]: 1, entries[2]: 2}, e.order(t, sid))
}

func TestOrdering_ReorderMapValidation(t *testing.T) {
	e := newEnv(t)
	sid, entries := e.session(t, "mapv", 2)
	_, foreign := e.session(t, "mapf", 1)
	ctx := context.Background()
	before := e.order(t, sid)

	cases := []struct {
		items []service.OrderItem
		want  error
	}{
		{nil, service.ErrEmptyOrder},
		{[]service.OrderItem{{ID: 0, OrderIndex: 0}}, service.ErrInvalidID},
		{[]service.OrderItem{{ID: entries[0], OrderIndex: -1}}, service.ErrInvalidOrderIndex},
		{[]service.OrderItem{{ID: entries[0], OrderIndex: 0}, {ID: entries[0], OrderIndex: 1}}, service.ErrDuplicatedIDs},
		{[]service.OrderItem{{ID: entries[0], OrderIndex: 1}, {ID: foreign[0], OrderIndex: 0}}, service.ErrIDNotInSession},
	}
	for _, c := range cases {
		_, err := e.ordering.ReorderMap(ctx, sid, c.items)
		assert.ErrorIs(t, err, c.want)
	}
	assert.Equal(t, before, e.order(t, sid))
}

func TestOrdering_ConcurrentMutationsStayDense(t *testing.T) {
	e := newEnv(t)
	sid, entries := e.session(t, "busy", 6)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < 10; i++ {
				id := entries[r.Intn(len(entries))]
				if r.Intn(2) == 0 {
					_, err := e.ordering.Move(ctx, sid, id, r.Intn(8)-1)
					assert.NoError(t, err)
					continue
				}
				shuffled := append([]int64(nil), entries...)
				r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
				_, err := e.ordering.Reorder(ctx, sid, shuffled)
				assert.NoError(t, err)
			}
		}(int64(w))
	}
	wg.Wait()

	assertDense(t, e, sid)
}

func TestOrdering_RecordsMetrics(t *testing.T) {
	e := newEnv(t)
	sid, entries := e.session(t, "metrics", 2)
	ctx := context.Background()

	_, err := e.ordering.Move(ctx, sid, entries[1], 0)
	require.NoError(t, err)
	_, err = e.ordering.Reorder(ctx, sid, []int64{entries[0]})
	require.Error(t, err)

	families, err := e.metrics.Registry().Gather()
	require.NoError(t, err)
	got := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "fittrack_ordering_operations_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			key := ""
			for _, l := range m.GetLabel() {
				key += l.GetName() + "=" + l.GetValue() + ","
			}
			got[key] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, got["op="+service.OpMove+",result="+metrics.ResultOK+","])
	assert.Equal(t, 1.0, got["op="+service.OpReorder+",result="+metrics.ResultRejected+","])
}
