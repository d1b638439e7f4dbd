package workpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	id   int
	used int
}

func TestMap_PreservesOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3, 9, 7}
	var ticks atomic.Int32

	results, errs := Map(context.Background(), items, 3, Resource[struct{}]{},
		func(_ context.Context, _ struct{}, n int) (int, error) {
			return n * n, nil
		},
		func() { ticks.Add(1) },
	)

	assert.Nil(t, errs)
	assert.Equal(t, []int{25, 1, 16, 4, 9, 81, 49}, results)
	assert.Equal(t, int32(len(items)), ticks.Load())
}

func TestMap_Empty(t *testing.T) {
	results, errs := Map(context.Background(), []string(nil), 4, Resource[int]{},
		func(context.Context, int, string) (int, error) { return 0, nil }, nil)
	assert.Nil(t, results)
	assert.Nil(t, errs)
}

func TestMap_ResourcesPerWorker(t *testing.T) {
	var mu sync.Mutex
	var created, closed []*counter
	res := Resource[*counter]{
		Init: func() (*counter, error) {
			mu.Lock()
			defer mu.Unlock()
			c := &counter{id: len(created)}
			created = append(created, c)
			return c, nil
		},
		Close: func(c *counter) {
			mu.Lock()
			defer mu.Unlock()
			closed = append(closed, c)
		},
	}

	items := make([]string, 20)
	for i := range items {
		items[i] = string(rune('a' + i))
	}
	_, errs := Map(context.Background(), items, 4, res,
		func(_ context.Context, c *counter, _ string) (int, error) {
			c.used++
			return c.id, nil
		}, nil)

	require.Nil(t, errs)
	assert.Len(t, created, 4)
	assert.Len(t, closed, 4)
	total := 0
	for _, c := range created {
		total += c.used
	}
	assert.Equal(t, 20, total)
}

func TestMap_WorkersCappedByItems(t *testing.T) {
	var inits atomic.Int32
	res := Resource[int]{Init: func() (int, error) { inits.Add(1); return 0, nil }}

	_, errs := Map(context.Background(), []string{"a", "b"}, 16, res,
		func(context.Context, int, string) (int, error) { return 1, nil }, nil)

	assert.Nil(t, errs)
	assert.Equal(t, int32(2), inits.Load())
}

func TestMap_CollectsErrors(t *testing.T) {
	boom := errors.New("boom")
	results, errs := Map(context.Background(), []string{"ok", "bad", "ok2"}, 2, Resource[int]{},
		func(_ context.Context, _ int, s string) (string, error) {
			if s == "bad" {
				return "", boom
			}
			return s + "!", nil
		}, nil)

	require.NotNil(t, errs)
	require.Len(t, errs.Errors, 1)
	assert.Equal(t, 1, errs.Errors[0].Index)
	assert.Equal(t, "bad", errs.Errors[0].Item)
	assert.ErrorIs(t, errs.Errors[0], boom)
	assert.Equal(t, []string{"ok!", "", "ok2!"}, results)
	assert.Contains(t, errs.Error(), "bad: boom")
}

func TestMap_InitFailure(t *testing.T) {
	initErr := errors.New("no parser")
	res := Resource[int]{Init: func() (int, error) { return 0, initErr }}

	_, errs := Map(context.Background(), []string{"a", "b"}, 1, res,
		func(context.Context, int, string) (int, error) { return 1, nil }, nil)

	require.NotNil(t, errs)
	assert.Len(t, errs.Errors, 2)
	assert.ErrorIs(t, errs.Errors[0], initErr)
}

func TestMap_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	_, errs := Map(ctx, []string{"a", "b", "c"}, 2, Resource[int]{},
		func(context.Context, int, string) (int, error) {
			calls.Add(1)
			return 1, nil
		}, nil)

	require.NotNil(t, errs)
	assert.Len(t, errs.Errors, 3)
	assert.ErrorIs(t, errs.Errors[0], context.Canceled)
	assert.Zero(t, calls.Load())
}

func TestErrors_Error(t *testing.T) {
	e := &Errors{}
	assert.Equal(t, "no errors", e.Error())
	assert.False(t, e.HasErrors())

	e.Add(0, "x", errors.New("one"))
	e.Add(1, "y", errors.New("two"))
	assert.True(t, e.HasErrors())
	assert.Equal(t, "2 items failed (first: x: one)", e.Error())
}
