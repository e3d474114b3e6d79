package registry

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-outcome/requirements"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// Registry holds the project structure outcomes are rolled up against
type Registry struct {
	config  Config
	project types.ProjectConfig
	mu      sync.RWMutex
}

// Config contains registry configuration
type Config struct {
	Log log.Logger
	// ProjectFile is the YAML project description. When empty the project
	// declares nothing and rollups fall back to tag types.
	ProjectFile string
}

// NewRegistry creates a new registry instance
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{
		config: cfg,
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the project file. On error the previous project is kept.
func (r *Registry) Reload() error {
	if r.config.ProjectFile == "" {
		r.config.Log.Info("No project file configured, using an empty project")
		return nil
	}

	project, err := loadConfig(r.config.ProjectFile)
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	if err := r.validateProject(project); err != nil {
		return fmt.Errorf("invalid project %s: %w", r.config.ProjectFile, err)
	}

	r.mu.Lock()
	r.project = *project
	r.mu.Unlock()

	r.config.Log.Debug("Registry loaded",
		"project", project.Name,
		"len(requirement_types)", len(project.RequirementTypes),
		"len(requirements)", len(project.Requirements),
		"len(releases)", len(project.Releases))
	return nil
}

// validateProject checks requirement names and the release tree
func (r *Registry) validateProject(project *types.ProjectConfig) error {
	seen := make(map[string]bool)
	declared := make(map[string]bool)
	for _, t := range project.RequirementTypes {
		declared[strings.ToLower(t)] = true
	}
	var check func(reqs []types.RequirementConfig, path string) error
	check = func(reqs []types.RequirementConfig, path string) error {
		for _, req := range reqs {
			if strings.TrimSpace(req.Name) == "" {
				return fmt.Errorf("requirement under %q has no name", path)
			}
			key := strings.ToLower(req.Name)
			if seen[key] {
				return fmt.Errorf("duplicate requirement %q", req.Name)
			}
			seen[key] = true
			if req.Type != "" && len(declared) > 0 && !declared[strings.ToLower(req.Type)] {
				r.config.Log.Warn("Requirement uses an undeclared type", "requirement", req.Name, "type", req.Type)
			}
			if err := check(req.Children, req.Name); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check(project.Requirements, "/"); err != nil {
		return err
	}

	releaseMap := make(map[string]types.ReleaseConfig)
	for _, rel := range project.Releases {
		if rel.Name == "" {
			return fmt.Errorf("release with empty name")
		}
		if _, dup := releaseMap[rel.Name]; dup {
			return fmt.Errorf("duplicate release %q", rel.Name)
		}
		releaseMap[rel.Name] = rel
	}
	for _, rel := range project.Releases {
		if err := r.checkCircularParent(rel.Name, rel.Parent, releaseMap, make(map[string]bool)); err != nil {
			return fmt.Errorf("invalid release tree: %w", err)
		}
	}
	return nil
}

// checkCircularParent detects missing and circular release parents
func (r *Registry) checkCircularParent(currentID string, parent string, releaseMap map[string]types.ReleaseConfig, visited map[string]bool) error {
	if visited[currentID] {
		return fmt.Errorf("circular parent reference detected at release %s", currentID)
	}
	if parent == "" {
		return nil
	}

	visited[currentID] = true
	defer delete(visited, currentID)

	inherited, exists := releaseMap[parent]
	if !exists {
		return fmt.Errorf("release %s has non-existent parent %s", currentID, parent)
	}
	return r.checkCircularParent(parent, inherited.Parent, releaseMap, visited)
}

// GetProject returns the loaded project
func (r *Registry) GetProject() types.ProjectConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.project
}

// GetRequirementTree returns the project's requirement tree
func (r *Registry) GetRequirementTree() *requirements.Tree {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return requirements.FromConfig(r.project)
}

// GetReleases returns the configured releases
func (r *Registry) GetReleases() []types.ReleaseConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]types.ReleaseConfig(nil), r.project.Releases...)
}

// GetConfig returns the registry configuration
func (r *Registry) GetConfig() Config {
	return r.config
}

// loadConfig loads a project config from a file
func loadConfig(path string) (*types.ProjectConfig, error) {
	log.Debug("Reading project file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project file: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing project file: %w", err)
	}

	return &cfg, nil
}
