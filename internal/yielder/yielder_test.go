package yielder

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, y *Yielder, timeout time.Duration) []Result {
	t.Helper()
	var out []Result
	deadline := time.After(timeout)
	for {
		select {
		case r, ok := <-y.Results():
			if !ok {
				return out
			}
			out = append(out, r)
		case <-deadline:
			t.Fatal("timed out waiting for yielder results")
			return nil
		}
	}
}

func TestSynchronousRunsInPriorityOrder(t *testing.T) {
	y := New(context.Background(), Config{Threaded: false})

	var order []int
	submit := func(n, level int) {
		y.Submit(func(y *Yielder) ([]any, error) {
			order = append(order, n)
			return []any{n}, nil
		}, level)
	}

	submit(3, 2)
	submit(1, 0)
	submit(2, 1)

	results := drain(t, y, time.Second)
	require.Len(t, results, 3)
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestSynchronousSubmitWithinTaskRunsAfterQueuedSiblings(t *testing.T) {
	y := New(context.Background(), Config{Threaded: false})

	var order []string
	y.Submit(func(y *Yielder) ([]any, error) {
		order = append(order, "parent")
		y.Submit(func(y *Yielder) ([]any, error) {
			order = append(order, "child")
			return nil, nil
		}, 1)
		return nil, nil
	}, 0)
	y.Submit(func(y *Yielder) ([]any, error) {
		order = append(order, "sibling")
		return nil, nil
	}, 0)

	drain(t, y, time.Second)
	assert.Equal(t, []string{"parent", "sibling", "child"}, order)
}

func TestSynchronousErrorAborts(t *testing.T) {
	y := New(context.Background(), Config{Threaded: false})

	boom := errors.New("boom")
	y.Submit(func(y *Yielder) ([]any, error) {
		return nil, boom
	}, 0)
	y.Submit(func(y *Yielder) ([]any, error) {
		t.Error("second task should not run after cancellation")
		return nil, nil
	}, 1)

	results := drain(t, y, time.Second)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, boom)
}

func TestYieldListEmitsWholeSliceAsOneResult(t *testing.T) {
	y := New(context.Background(), Config{Threaded: false, YieldList: true})

	y.Submit(func(y *Yielder) ([]any, error) {
		return []any{1, 2, 3}, nil
	}, 0)

	results := drain(t, y, time.Second)
	require.Len(t, results, 1)
	assert.Equal(t, []any{1, 2, 3}, results[0].Value)
}

func TestThreadedCollectsAllResults(t *testing.T) {
	y := New(context.Background(), Config{Threaded: true, MaxThreadpoolSize: 4})

	for i := 0; i < 10; i++ {
		n := i
		y.Submit(func(y *Yielder) ([]any, error) {
			return []any{n}, nil
		}, 0)
	}

	results := drain(t, y, 2*time.Second)
	require.Len(t, results, 10)

	var seen []int
	for _, r := range results {
		require.NoError(t, r.Err)
		seen = append(seen, r.Value.(int))
	}
	sort.Ints(seen)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen)
}

func TestThreadedRecursiveSubmitCompletes(t *testing.T) {
	y := New(context.Background(), Config{Threaded: true, MaxThreadpoolSize: 2})

	var submit func(depth int) Task
	submit = func(depth int) Task {
		return func(y *Yielder) ([]any, error) {
			if depth == 0 {
				return []any{"leaf"}, nil
			}
			y.Submit(submit(depth-1), depth)
			return nil, nil
		}
	}
	y.Submit(submit(3), 0)

	results := drain(t, y, 2*time.Second)
	require.Len(t, results, 1)
	assert.Equal(t, "leaf", results[0].Value)
}

func TestCloseStopsNewTaskAdmission(t *testing.T) {
	y := New(context.Background(), Config{Threaded: false})
	y.Close()

	y.Submit(func(y *Yielder) ([]any, error) {
		t.Error("should never run: yielder was closed before submit")
		return nil, nil
	}, 0)
}
