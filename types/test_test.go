package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStepGroup_DerivesResult(t *testing.T) {
	tests := []struct {
		name     string
		children []Result
		explicit Result
		want     Result
	}{
		{name: "no children", want: ResultSuccess},
		{name: "success and ignored", children: []Result{ResultSuccess, ResultIgnored}, want: ResultIgnored},
		{name: "only skipped", children: []Result{ResultSkipped}, want: ResultSkipped},
		{name: "mixed with failure", children: []Result{ResultSuccess, ResultPending, ResultFailure}, want: ResultFailure},
		{name: "explicit raises", children: []Result{ResultSuccess}, explicit: ResultPending, want: ResultPending},
		{name: "explicit cannot hide failure", children: []Result{ResultFailure}, explicit: ResultSkipped, want: ResultFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var kids []*StepOutcome
			for i, r := range tt.children {
				kids = append(kids, NewStepLeaf(string(rune('a'+i)), r, nil, 0))
			}
			group := NewStepGroup("group", kids, tt.explicit, nil, 0)
			assert.Equal(t, tt.want, group.Result())
			assert.Equal(t, StepGroup, group.Kind())
			assert.Len(t, group.Children(), len(tt.children))
		})
	}
}

func TestStepOutcome_ChildrenAreCopied(t *testing.T) {
	group := NewStepGroup("g", []*StepOutcome{NewStepLeaf("a", ResultSuccess, nil, 0)}, ResultSuccess, nil, 0)
	kids := group.Children()
	kids[0] = NewStepLeaf("b", ResultError, nil, 0)

	assert.Equal(t, "a", group.Children()[0].Name())
	assert.Equal(t, ResultSuccess, group.Result())
}

func TestStepOutcome_WalkAndFirstError(t *testing.T) {
	inner := NewStepGroup("inner", []*StepOutcome{
		NewStepLeaf("fails", ResultFailure, &StepError{Message: "boom", Assertion: true}, 0),
		NewStepLeaf("errors", ResultError, &StepError{Message: "later"}, 0),
	}, ResultSuccess, nil, 0)
	root := NewStepGroup("root", []*StepOutcome{NewStepLeaf("ok", ResultSuccess, nil, 0), inner}, ResultSuccess, nil, 0)

	var names []string
	var depths []int
	root.Walk(func(step *StepOutcome, depth int) bool {
		names = append(names, step.Name())
		depths = append(depths, depth)
		return true
	})
	assert.Equal(t, []string{"root", "ok", "inner", "fails", "errors"}, names)
	assert.Equal(t, []int{0, 1, 1, 2, 2}, depths)
	assert.Equal(t, 3, root.LeafCount())
	require.NotNil(t, root.FirstError())
	assert.Equal(t, "boom", root.FirstError().Message)
	assert.Equal(t, ResultError, root.Result())
}

func TestNewStepError_StripsEscapes(t *testing.T) {
	se := NewStepError(errors.New("\x1b[31mexpected 1, got 2\x1b[0m"), true)
	require.NotNil(t, se)
	assert.Equal(t, "expected 1, got 2", se.Error())
	assert.True(t, se.Assertion)
	assert.Nil(t, NewStepError(nil, false))
}

func TestNewTestOutcome(t *testing.T) {
	root := NewStepGroup("Checkout", []*StepOutcome{
		NewStepLeaf("add item", ResultSuccess, nil, 0),
		NewStepLeaf("pay", ResultPending, nil, 0),
	}, ResultSuccess, nil, 0)
	tags := []Tag{
		NewTag("feature", "Checkout"),
		NewTag("Feature", "checkout"),
		NewTag(ReleaseTagType, "R1"),
	}

	o := NewTestOutcome("Checkout works", "", root, tags, time.Time{}, time.Second)

	assert.Equal(t, "Checkout works", o.Identity(), "identity falls back to title")
	assert.Equal(t, ResultPending, o.Result())
	assert.Len(t, o.Tags(), 2, "duplicate tags differing only in case are dropped")
	assert.True(t, o.HasTag("CHECKOUT"))
	assert.True(t, o.HasTagType("release"))
	assert.True(t, o.HasTagOf(NewTag("feature", "checkout")))
	assert.False(t, o.HasTag("Search"))
	assert.Equal(t, []Tag{NewTag(ReleaseTagType, "R1")}, o.TagsOfType("release"))
	assert.Equal(t, 2, o.StepCount())
}

func TestNewTestOutcome_NoSteps(t *testing.T) {
	o := NewTestOutcome("empty", "id", nil, nil, time.Time{}, 0)
	assert.Equal(t, ResultSuccess, o.Result())
	require.NotNil(t, o.Steps())
	assert.True(t, o.Steps().IsGroup())
	assert.Empty(t, o.Steps().Children())
}

func TestTestOutcome_JSONRoundTrip(t *testing.T) {
	root := NewStepGroup("root", []*StepOutcome{
		NewStepGroup("login", []*StepOutcome{
			NewStepLeaf("open page", ResultSuccess, nil, 10*time.Millisecond),
		}, ResultSuccess, nil, 0),
		NewStepLeaf("assert", ResultFailure, &StepError{Message: "nope", Assertion: true}, 0),
	}, ResultSuccess, nil, 0)
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	o := NewTestOutcome("Login", "LoginTest.login", root, []Tag{NewTag("story", "Login")}, start, time.Second)

	data, err := json.Marshal(o)
	require.NoError(t, err)

	var restored TestOutcome
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, o.Title(), restored.Title())
	assert.Equal(t, o.Identity(), restored.Identity())
	assert.Equal(t, o.Result(), restored.Result())
	assert.Equal(t, o.Tags(), restored.Tags())
	assert.True(t, o.StartTime().Equal(restored.StartTime()))
	assert.Equal(t, o.StepCount(), restored.StepCount())
	assert.Equal(t, "nope", restored.Steps().FirstError().Message)
}

func TestTestOutcome_UnmarshalRederivesResult(t *testing.T) {
	raw := `{
		"title": "tampered",
		"result": "success",
		"steps": {"name": "root", "kind": "group", "result": "success", "children": [
			{"name": "broken", "kind": "leaf", "result": "error"}
		]}
	}`
	var o TestOutcome
	require.NoError(t, json.Unmarshal([]byte(raw), &o))
	assert.Equal(t, ResultError, o.Result())
	assert.Equal(t, "tampered", o.Identity())
}

func TestTestOutcome_UnmarshalRejectsInvalid(t *testing.T) {
	var o TestOutcome
	assert.Error(t, json.Unmarshal([]byte(`{"steps": null}`), &o))
	assert.Error(t, json.Unmarshal([]byte(`{"title": "x", "steps": {"name": "l", "kind": "leaf", "children": [{"name": "c", "kind": "leaf"}]}}`), &o))
	assert.Error(t, json.Unmarshal([]byte(`{"title": "x", "steps": {"name": "l", "kind": "branch"}}`), &o))
}

func TestTestOutcome_UnmarshalRejectsNullChild(t *testing.T) {
	tests := []string{
		`{"title": "t", "steps": {"kind": "group", "children": [null]}}`,
		`{"title": "t", "steps": {"kind": "group", "children": [{"name": "g", "kind": "group", "children": [{"name": "a", "kind": "leaf"}, null]}]}}`,
		`{"title": "t", "steps": {"kind": "leaf", "children": [null]}}`,
	}
	for _, raw := range tests {
		var o TestOutcome
		require.NotPanics(t, func() {
			err := json.Unmarshal([]byte(raw), &o)
			assert.ErrorContains(t, err, "null child")
		}, raw)
	}
}

func TestParseTag(t *testing.T) {
	tag, err := ParseTag("feature:Checkout")
	require.NoError(t, err)
	assert.Equal(t, NewTag("feature", "Checkout"), tag)
	assert.Equal(t, "feature:Checkout", tag.String())

	tag, err = ParseTag("smoke")
	require.NoError(t, err)
	assert.Equal(t, NewTag("tag", "smoke"), tag)

	_, err = ParseTag(":x")
	assert.Error(t, err)
	_, err = ParseTag("")
	assert.Error(t, err)
}

func TestReleasePath(t *testing.T) {
	releases := map[string]ReleaseConfig{
		"R1":      {Name: "R1"},
		"Sprint1": {Name: "Sprint1", Parent: "R1"},
		"Week1":   {Name: "Week1", Parent: "Sprint1"},
		"Orphan":  {Name: "Orphan", Parent: "Missing"},
		"A":       {Name: "A", Parent: "B"},
		"B":       {Name: "B", Parent: "A"},
	}

	path, err := ReleasePath("Week1", releases)
	require.NoError(t, err)
	assert.Equal(t, []string{"R1", "Sprint1", "Week1"}, path)

	_, err = ReleasePath("Orphan", releases)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-existent parent")

	_, err = ReleasePath("A", releases)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular")

	_, err = ReleasePath("Nope", releases)
	assert.Error(t, err)
}
