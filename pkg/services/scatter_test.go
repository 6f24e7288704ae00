package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScatter_RunsAllTasks(t *testing.T) {
	tasks := make([]ScatterTask[int], 10)
	for i := range tasks {
		value := i
		tasks[i] = ScatterTask[int]{
			Name:    fmt.Sprintf("task-%d", i),
			Execute: func(ctx context.Context) (int, error) { return value * 2, nil },
		}
	}

	results, complete := Scatter(context.Background(), ScatterConfig{MaxConcurrent: 4}, tasks)

	assert.True(t, complete)
	require.Len(t, results, 10)

	// Completion order is arbitrary; correlate through Index.
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, i*2, r.Result)
		require.NoError(t, r.Err)
	}
}

func TestScatter_BoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	active, maxActive := 0, 0

	tasks := make([]ScatterTask[struct{}], 12)
	for i := range tasks {
		tasks[i] = ScatterTask[struct{}]{
			Execute: func(ctx context.Context) (struct{}, error) {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return struct{}{}, nil
			},
		}
	}

	_, complete := Scatter(context.Background(), ScatterConfig{MaxConcurrent: 3}, tasks)

	assert.True(t, complete)
	assert.LessOrEqual(t, maxActive, 3)
}

func TestScatter_FailedTaskDoesNotStopSiblings(t *testing.T) {
	boom := errors.New("boom")
	tasks := []ScatterTask[string]{
		{Name: "ok", Execute: func(ctx context.Context) (string, error) { return "fine", nil }},
		{Name: "bad", Execute: func(ctx context.Context) (string, error) { return "", boom }},
		{Name: "ok2", Execute: func(ctx context.Context) (string, error) { return "also fine", nil }},
	}

	results, complete := Scatter(context.Background(), ScatterConfig{MaxConcurrent: 2}, tasks)

	assert.True(t, complete)
	require.Len(t, results, 3)

	failures := 0
	for _, r := range results {
		if r.Err != nil {
			failures++
			assert.Equal(t, "bad", r.Name)
			assert.ErrorIs(t, r.Err, boom)
		}
	}
	assert.Equal(t, 1, failures)
}

func TestScatter_ItemTimeoutCutsSlowTask(t *testing.T) {
	tasks := []ScatterTask[string]{
		{Name: "fast", Execute: func(ctx context.Context) (string, error) { return "done", nil }},
		{Name: "slow", Execute: func(ctx context.Context) (string, error) {
			select {
			case <-time.After(2 * time.Second):
				return "too late", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}},
	}

	results, complete := Scatter(context.Background(), ScatterConfig{
		MaxConcurrent: 2,
		ItemTimeout:   20 * time.Millisecond,
	}, tasks)

	// The fan-out itself completes; only the slow slot carries an error.
	assert.True(t, complete)
	require.Len(t, results, 2)
	for _, r := range results {
		if r.Name == "slow" {
			assert.ErrorIs(t, r.Err, context.DeadlineExceeded)
		} else {
			require.NoError(t, r.Err)
		}
	}
}

func TestScatter_ParentCancellationReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	tasks := []ScatterTask[int]{
		{Execute: func(ctx context.Context) (int, error) { return 1, nil }},
		{Execute: func(ctx context.Context) (int, error) {
			<-ctx.Done()
			time.Sleep(50 * time.Millisecond)
			return 0, ctx.Err()
		}},
	}

	results, complete := Scatter(ctx, ScatterConfig{MaxConcurrent: 2}, tasks)

	assert.False(t, complete)
	// The fast task's result was gathered before the deadline.
	assert.NotEmpty(t, results)
}

func TestScatter_NoTasks(t *testing.T) {
	results, complete := Scatter(context.Background(), ScatterConfig{}, []ScatterTask[int]{})
	assert.True(t, complete)
	assert.Empty(t, results)
}
