package outcomes

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// Predicate selects test outcomes.
type Predicate func(*types.TestOutcome) bool

// Collection is an immutable, ordered set of test outcomes. Filtering returns
// a view over the same outcome pointers that is only materialized the first
// time it is queried. Collections are safe for concurrent use.
type Collection struct {
	source *Collection
	pred   Predicate

	once     sync.Once
	outcomes []*types.TestOutcome

	tagsOnce sync.Once
	tags     []types.Tag
	tagTypes []string

	countsOnce sync.Once
	counts     Counts
}

// New builds a collection over outcomes. The slice is copied; the outcomes
// themselves are shared.
func New(outcomes []*types.TestOutcome) *Collection {
	items := make([]*types.TestOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o != nil {
			items = append(items, o)
		}
	}
	return &Collection{outcomes: items}
}

// Empty returns a collection with no outcomes.
func Empty() *Collection {
	return New(nil)
}

// Union merges collections, keeping the first outcome seen for each identity.
func Union(collections ...*Collection) *Collection {
	seen := make(map[string]bool)
	var merged []*types.TestOutcome
	for _, c := range collections {
		if c == nil {
			continue
		}
		for _, o := range c.items() {
			if seen[o.Identity()] {
				continue
			}
			seen[o.Identity()] = true
			merged = append(merged, o)
		}
	}
	return &Collection{outcomes: merged}
}

func (c *Collection) items() []*types.TestOutcome {
	c.once.Do(func() {
		if c.source == nil {
			return
		}
		for _, o := range c.source.items() {
			if c.pred(o) {
				c.outcomes = append(c.outcomes, o)
			}
		}
	})
	return c.outcomes
}

// Filter returns a lazy view of the outcomes matching pred.
func (c *Collection) Filter(pred Predicate) *Collection {
	return &Collection{source: c, pred: pred}
}

// WithTag selects outcomes carrying a tag with the given name, ignoring case.
func (c *Collection) WithTag(name string) *Collection {
	return c.Filter(func(o *types.TestOutcome) bool { return o.HasTag(name) })
}

// WithTagOf selects outcomes carrying exactly this tag.
func (c *Collection) WithTagOf(tag types.Tag) *Collection {
	return c.Filter(func(o *types.TestOutcome) bool { return o.HasTagOf(tag) })
}

// WithTagType selects outcomes carrying any tag of the given type.
func (c *Collection) WithTagType(tagType string) *Collection {
	return c.Filter(func(o *types.TestOutcome) bool { return o.HasTagType(tagType) })
}

// WithResult selects outcomes whose result is r.
func (c *Collection) WithResult(r types.Result) *Collection {
	return c.Filter(func(o *types.TestOutcome) bool { return o.Result() == r })
}

// WithResults selects outcomes whose result is any of rs.
func (c *Collection) WithResults(rs ...types.Result) *Collection {
	return c.Filter(func(o *types.TestOutcome) bool {
		for _, r := range rs {
			if o.Result() == r {
				return true
			}
		}
		return false
	})
}

func (c *Collection) PassingTests() *Collection {
	return c.WithResult(types.ResultSuccess)
}

func (c *Collection) FailingTests() *Collection {
	return c.WithResult(types.ResultFailure)
}

func (c *Collection) ErrorTests() *Collection {
	return c.WithResult(types.ResultError)
}

// PendingTests selects pending, ignored and skipped outcomes.
func (c *Collection) PendingTests() *Collection {
	return c.Filter(func(o *types.TestOutcome) bool { return o.Result().IsIndeterminate() })
}

// Outcomes returns the outcomes in order.
func (c *Collection) Outcomes() []*types.TestOutcome {
	items := c.items()
	out := make([]*types.TestOutcome, len(items))
	copy(out, items)
	return out
}

// Find returns the outcome with the given identity.
func (c *Collection) Find(identity string) (*types.TestOutcome, bool) {
	for _, o := range c.items() {
		if o.Identity() == identity {
			return o, true
		}
	}
	return nil, false
}

func (c *Collection) Total() int {
	return len(c.items())
}

func (c *Collection) IsEmpty() bool {
	return c.Total() == 0
}

// Count returns the number of outcomes with result r.
func (c *Collection) Count(r types.Result) int {
	return c.Counts().Of(r)
}

func (c *Collection) Counts() Counts {
	c.countsOnce.Do(func() {
		c.counts = CountOf(c.items())
	})
	return c.counts
}

// Result derives the collection's overall result; an empty collection is
// successful.
func (c *Collection) Result() types.Result {
	return c.Counts().Result()
}

// Duration sums the durations of every outcome.
func (c *Collection) Duration() time.Duration {
	var total time.Duration
	for _, o := range c.items() {
		total += o.Duration()
	}
	return total
}

// Tags returns the union of all outcome tags in first-seen order.
func (c *Collection) Tags() []types.Tag {
	c.indexTags()
	tags := make([]types.Tag, len(c.tags))
	copy(tags, c.tags)
	return tags
}

// TagTypes returns the distinct tag types in first-seen order.
func (c *Collection) TagTypes() []string {
	c.indexTags()
	tagTypes := make([]string, len(c.tagTypes))
	copy(tagTypes, c.tagTypes)
	return tagTypes
}

// TagsOfType returns the distinct tags of the given type in first-seen order.
func (c *Collection) TagsOfType(tagType string) []types.Tag {
	c.indexTags()
	var tags []types.Tag
	for _, t := range c.tags {
		if t.HasType(tagType) {
			tags = append(tags, t)
		}
	}
	return tags
}

func (c *Collection) indexTags() {
	c.tagsOnce.Do(func() {
		seenTags := make(map[string]bool)
		seenTypes := make(map[string]bool)
		for _, o := range c.items() {
			for _, t := range o.Tags() {
				if !seenTags[t.Key()] {
					seenTags[t.Key()] = true
					c.tags = append(c.tags, t)
				}
				if typ := strings.ToLower(t.Type); !seenTypes[typ] {
					seenTypes[typ] = true
					c.tagTypes = append(c.tagTypes, t.Type)
				}
			}
		}
	})
}

type collectionWire struct {
	Outcomes []*types.TestOutcome `json:"outcomes"`
	Counts   Counts               `json:"counts"`
}

// MarshalJSON writes the materialized outcomes of the collection or view.
func (c *Collection) MarshalJSON() ([]byte, error) {
	items := c.items()
	if items == nil {
		items = []*types.TestOutcome{}
	}
	return json.Marshal(collectionWire{Outcomes: items, Counts: c.Counts()})
}

// Decode restores a collection written by MarshalJSON. Stored counts are
// ignored and recomputed from the outcomes.
func Decode(data []byte) (*Collection, error) {
	var w collectionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return New(w.Outcomes), nil
}
