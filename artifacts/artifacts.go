// Package artifacts persists finalized test outcomes as JSON files and loads
// them back for aggregation.
package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ethereum-optimism/infra/op-outcome/outcomes"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

const (
	RunDirectoryPrefix = "testrun-" // Standardized prefix for run directories
	OutcomeFileSuffix  = ".outcome.json"
	maxSlugLength      = 64
)

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// FileSink writes every outcome it consumes to its own file in a run
// directory. File names are prefixed with a sequence number so loading the
// directory restores finalization order.
type FileSink struct {
	dir string
	seq atomic.Int64
}

// NewFileSink creates the run directory for runID under baseDir.
func NewFileSink(baseDir, runID string) (*FileSink, error) {
	dir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory %s: %w", dir, err)
	}
	return &FileSink{dir: dir}, nil
}

// Dir returns the run directory outcomes are written to.
func (s *FileSink) Dir() string {
	return s.dir
}

// Consume writes outcome as indented JSON.
func (s *FileSink) Consume(outcome *types.TestOutcome) error {
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal outcome %q: %w", outcome.Identity(), err)
	}
	name := fmt.Sprintf("%05d-%s%s", s.seq.Add(1), slug(outcome.Identity()), OutcomeFileSuffix)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write outcome file %s: %w", path, err)
	}
	return nil
}

func slug(s string) string {
	s = strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(s) > maxSlugLength {
		s = strings.TrimRight(s[:maxSlugLength], "-")
	}
	if s == "" {
		return "outcome"
	}
	return s
}

// Find returns every outcome file below dir, sorted by path.
func Find(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), OutcomeFileSuffix) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan results directory %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadDir loads every outcome file below dir into a collection, reading up to
// concurrency files at once.
func LoadDir(ctx context.Context, dir string, concurrency int) (*outcomes.Collection, error) {
	paths, err := Find(dir)
	if err != nil {
		return nil, err
	}
	return LoadFiles(ctx, paths, concurrency)
}

// LoadFiles loads the given outcome files, keeping their order.
func LoadFiles(ctx context.Context, paths []string, concurrency int) (*outcomes.Collection, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	loaded := make([]*types.TestOutcome, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			outcome, err := loadFile(path)
			if err != nil {
				return err
			}
			loaded[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes.New(loaded), nil
}

func loadFile(path string) (*types.TestOutcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read outcome file %s: %w", path, err)
	}
	var outcome types.TestOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, fmt.Errorf("invalid outcome file %s: %w", path, err)
	}
	return &outcome, nil
}
