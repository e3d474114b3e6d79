package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-outcome/types"
)

func outcome(title string, result types.Result) *types.TestOutcome {
	root := types.NewStepGroup(title, []*types.StepOutcome{
		types.NewStepGroup("setup", []*types.StepOutcome{types.NewStepLeaf("connect", types.ResultSuccess, nil, time.Millisecond)}, types.ResultSuccess, nil, 0),
		types.NewStepLeaf("check", result, nil, 0),
	}, types.ResultSuccess, nil, 0)
	return types.NewTestOutcome(title, "Suite."+title, root, []types.Tag{types.NewTag("feature", "Checkout")}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)
}

func TestFileSink_RoundTrip(t *testing.T) {
	base := t.TempDir()
	sink, err := NewFileSink(base, "run-1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "testrun-run-1"), sink.Dir())

	results := []types.Result{types.ResultSuccess, types.ResultFailure, types.ResultPending, types.ResultIgnored}
	for i, r := range results {
		require.NoError(t, sink.Consume(outcome(fmt.Sprintf("Test %d", i), r)))
	}

	collection, err := LoadDir(context.Background(), base, 3)
	require.NoError(t, err)
	require.Equal(t, len(results), collection.Total())
	for i, o := range collection.Outcomes() {
		assert.Equal(t, fmt.Sprintf("Suite.Test %d", i), o.Identity(), "files load in the order they were written")
		assert.Equal(t, results[i], o.Result())
		assert.Equal(t, 2, o.StepCount())
	}
	assert.Equal(t, 1, collection.WithTag("checkout").FailingTests().Total())
}

func TestLoadDir_SkipsOtherFiles(t *testing.T) {
	base := t.TempDir()
	sink, err := NewFileSink(base, "r")
	require.NoError(t, err)
	require.NoError(t, sink.Consume(outcome("only", types.ResultSuccess)))
	require.NoError(t, os.WriteFile(filepath.Join(base, "notes.json"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "summary.txt"), []byte("x"), 0644))

	collection, err := LoadDir(context.Background(), base, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, collection.Total())
}

func TestLoadDir_Errors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := LoadDir(context.Background(), filepath.Join(t.TempDir(), "nope"), 1)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid outcome", func(t *testing.T) {
		base := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(base, "00001-bad"+OutcomeFileSuffix), []byte(`{"steps": null}`), 0644))
		_, err := LoadDir(context.Background(), base, 2)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid outcome file")
	})

	t.Run("null step child", func(t *testing.T) {
		base := t.TempDir()
		sink, err := NewFileSink(base, "r")
		require.NoError(t, err)
		require.NoError(t, sink.Consume(outcome("fine", types.ResultSuccess)))
		corrupt := `{"title": "t", "steps": {"name": "root", "kind": "group", "children": [null]}}`
		require.NoError(t, os.WriteFile(filepath.Join(sink.Dir(), "00099-corrupt"+OutcomeFileSuffix), []byte(corrupt), 0644))

		require.NotPanics(t, func() {
			_, err = LoadDir(context.Background(), base, 2)
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "00099-corrupt")
	})
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "CheckoutTest.buyABook", want: "checkouttest-buyabook"},
		{in: "  Pay / Refund!! ", want: "pay-refund"},
		{in: "???", want: "outcome"},
		{in: "a-" + strings.Repeat("0", 70), want: "a-" + strings.Repeat("0", 62)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, slug(tt.in))
		})
	}
}
