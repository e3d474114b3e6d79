package requirements

import (
	"strings"

	"github.com/ethereum-optimism/infra/op-outcome/outcomes"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// tagIndex maps a normalized tag name to the outcomes carrying it. It is
// built once per aggregation pass so matching a node is a map lookup rather
// than a scan of every outcome.
type tagIndex struct {
	byKey map[string][]*types.TestOutcome
	key   func(string) string
}

func newTagIndex(tests *outcomes.Collection, keep func(types.Tag) bool, key func(string) string) tagIndex {
	index := tagIndex{byKey: make(map[string][]*types.TestOutcome), key: key}
	for _, o := range tests.Outcomes() {
		added := make(map[string]bool)
		for _, tag := range o.Tags() {
			if !keep(tag) {
				continue
			}
			k := key(tag.Name)
			if added[k] {
				continue
			}
			added[k] = true
			index.byKey[k] = append(index.byKey[k], o)
		}
	}
	return index
}

// match returns the outcomes tagged with any of names, each once.
func (ix tagIndex) match(names ...string) *outcomes.Collection {
	parts := make([]*outcomes.Collection, 0, len(names))
	for _, name := range names {
		parts = append(parts, outcomes.New(ix.byKey[ix.key(name)]))
	}
	return outcomes.Union(parts...)
}

func requirementTag(t types.Tag) bool { return !t.IsRelease() }

func releaseTag(t types.Tag) bool { return t.IsRelease() }

func requirementKey(name string) string { return strings.ToLower(name) }

func releaseKey(name string) string { return strings.ToLower(normalizeRelease(name)) }
