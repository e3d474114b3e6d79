package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/log"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-outcome/outcomes"
	"github.com/ethereum-optimism/infra/op-outcome/requirements"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

func rollup(results ...types.Result) *requirements.RequirementsOutcomes {
	var tests []*types.TestOutcome
	for i, r := range results {
		id := fmt.Sprintf("test-%d", i)
		root := types.NewStepGroup(id, []*types.StepOutcome{types.NewStepLeaf("s", r, nil, 0)}, types.ResultSuccess, nil, 0)
		tests = append(tests, types.NewTestOutcome(id, id, root, []types.Tag{types.NewTag("feature", "Checkout")}, time.Time{}, 0))
	}
	tree := &requirements.Tree{Types: []string{"feature"}, Roots: []*requirements.Requirement{{Name: "Checkout"}}}
	return requirements.Build(tree, outcomes.New(tests), requirements.WithLogger(log.NewLogger(log.DiscardHandler())))
}

func newHistory(store Store) *History {
	clock := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return New(Config{
		Log:   log.NewLogger(log.DiscardHandler()),
		Store: store,
		Clock: func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		},
	})
}

func stores(t *testing.T) map[string]Store {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "nested", "history.jsonl")),
		"redis":  NewRedisStoreFromClient(client, WithKey("test:history")),
	}
}

func TestHistory_Contract(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			h := newHistory(store)

			snaps, err := h.Get(ctx)
			require.NoError(t, err)
			assert.Empty(t, snaps)

			for i := 1; i <= 3; i++ {
				results := make([]types.Result, i)
				_, err := h.Append(ctx, fmt.Sprintf("run-%d", i), rollup(results...))
				require.NoError(t, err)
			}

			snaps, err = h.Get(ctx)
			require.NoError(t, err)
			require.Len(t, snaps, 3)
			for i, snap := range snaps {
				assert.Equal(t, fmt.Sprintf("run-%d", i+1), snap.RunID, "snapshots keep call order")
				assert.Equal(t, i+1, snap.Overall.Total)
			}
			assert.True(t, snaps[0].Time.Before(snaps[1].Time))

			require.NoError(t, h.Clear(ctx))
			snaps, err = h.Get(ctx)
			require.NoError(t, err)
			assert.Empty(t, snaps)

			_, err = h.Append(ctx, "fresh", rollup(types.ResultFailure))
			require.NoError(t, err)
			snaps, err = h.Get(ctx)
			require.NoError(t, err)
			require.Len(t, snaps, 1)
			assert.Equal(t, "fresh", snaps[0].RunID)
		})
	}
}

func TestHistory_PreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	times := []time.Time{
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	i := 0
	h := New(Config{
		Log:   log.NewLogger(log.DiscardHandler()),
		Store: store,
		Clock: func() time.Time {
			at := times[i]
			i++
			return at
		},
	})
	for range times {
		_, err := h.Append(ctx, "", rollup(types.ResultSuccess))
		require.NoError(t, err)
	}

	snaps, err := h.Get(ctx)
	require.NoError(t, err)
	for j, snap := range snaps {
		assert.True(t, times[j].Equal(snap.Time), "snapshot %d was reordered", j)
	}
}

func TestHistory_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	h := newHistory(NewFileStore(filepath.Join(t.TempDir(), "history.jsonl")))
	ro := rollup(types.ResultSuccess, types.ResultPending)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Append(ctx, "concurrent", ro)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snaps, err := h.Get(ctx)
	require.NoError(t, err)
	assert.Len(t, snaps, 20)
}

func TestNewSnapshot(t *testing.T) {
	ro := rollup(types.ResultSuccess, types.ResultFailure, types.ResultError, types.ResultSkipped, types.ResultPending)
	at := time.Date(2024, 2, 2, 10, 0, 0, 0, time.FixedZone("CET", 3600))

	snap := NewSnapshot(at, ro)
	assert.Equal(t, time.UTC, snap.Time.Location())
	assert.Equal(t, Counts{Total: 5, Passing: 1, Failing: 2, Pending: 2}, snap.Overall)
	assert.Equal(t, snap.Overall, snap.RequirementTypes["feature"])
	assert.Equal(t, snap.Overall, snap.TagTypes["feature"])
}

func TestFileStore_InvalidLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"time\":\"2024-01-01T00:00:00Z\"}\n\nnot json\n"), 0644))

	_, err := NewFileStore(path).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestRedisStore_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	store := NewRedisStore(mr.Addr(), "", 0)
	require.NoError(t, store.Ping(context.Background()))
	mr.Close()

	h := newHistory(store)
	_, err = h.Append(context.Background(), "r", rollup())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis history")
	require.NoError(t, store.Close())
}
