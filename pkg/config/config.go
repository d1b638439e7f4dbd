package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for refmine.
type Config struct {
	// Where projects, reports and results live
	Projects ProjectsConfig `koanf:"projects" toml:"projects"`

	// History index construction
	History HistoryConfig `koanf:"history" toml:"history"`

	// Structural metrics extraction
	Structural StructuralConfig `koanf:"structural" toml:"structural"`

	// Worker pool and window settings
	Engine EngineConfig `koanf:"engine" toml:"engine"`

	// Files left out of the metrics table
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`
}

// ProjectsConfig locates cloned repositories and refactoring reports.
type ProjectsConfig struct {
	CloneDir   string `koanf:"clone_dir" toml:"clone_dir"`
	ReportsDir string `koanf:"reports_dir" toml:"reports_dir"`
	OutputDir  string `koanf:"output_dir" toml:"output_dir"`
	List       string `koanf:"list" toml:"list"`
}

// HistoryConfig controls how commits are indexed.
type HistoryConfig struct {
	IncludeMerges bool `koanf:"include_merges" toml:"include_merges"`
	IncludeDiffs  bool `koanf:"include_diffs" toml:"include_diffs"`
}

// StructuralConfig controls the class metrics extractor.
type StructuralConfig struct {
	Enabled     bool  `koanf:"enabled" toml:"enabled"`
	CrossFile   bool  `koanf:"cross_file" toml:"cross_file"`
	MaxFileSize int64 `koanf:"max_file_size" toml:"max_file_size"` // bytes, 0 = no limit
}

// EngineConfig controls the per-project worker pool.
type EngineConfig struct {
	Workers    int `koanf:"workers" toml:"workers"`
	RecentDays int `koanf:"recent_days" toml:"recent_days"`
}

// ExcludeConfig defines file exclusion patterns. It is empty by default so
// every modified file gets a record.
type ExcludeConfig struct {
	Patterns   []string `koanf:"patterns" toml:"patterns"`
	Extensions []string `koanf:"extensions" toml:"extensions"`
	Dirs       []string `koanf:"dirs" toml:"dirs"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format string `koanf:"format" toml:"format"` // json, yaml, toon, markdown, text
	Color  bool   `koanf:"color" toml:"color"`
	SQLite string `koanf:"sqlite" toml:"sqlite"` // database path, empty disables the sink
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Projects: ProjectsConfig{
			CloneDir:   "cloned_repos",
			ReportsDir: "refactoring_results",
			OutputDir:  "metrics_results",
		},
		Structural: StructuralConfig{
			Enabled:     true,
			MaxFileSize: 1 << 20,
		},
		Engine: EngineConfig{
			Workers:    runtime.NumCPU(),
			RecentDays: 30,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".refmine/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format: "json",
			Color:  true,
		},
	}
}

var validFormats = map[string]bool{
	"json":     true,
	"yaml":     true,
	"toon":     true,
	"markdown": true,
	"text":     true,
}

// Validate reports settings no run can use.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.Workers < 1 {
		errs = append(errs, fmt.Errorf("engine.workers must be at least 1, got %d", c.Engine.Workers))
	}
	if c.Engine.RecentDays < 0 {
		errs = append(errs, fmt.Errorf("engine.recent_days must not be negative, got %d", c.Engine.RecentDays))
	}
	if c.Structural.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("structural.max_file_size must not be negative"))
	}
	if !validFormats[c.Output.Format] {
		errs = append(errs, fmt.Errorf("output.format %q is not one of json, yaml, toon, markdown, text", c.Output.Format))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must not be negative"))
	}
	return errors.Join(errs...)
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// configNames are the file names searched for, in order.
var configNames = []string{
	"refmine.toml",
	"refmine.yaml",
	"refmine.yml",
	"refmine.json",
	".refmine.toml",
	".refmine.yaml",
	".refmine.yml",
	".refmine.json",
}

// Find returns the first config file in the current directory or .refmine.
func Find() (string, bool) {
	for _, dir := range []string{".", ".refmine"} {
		for _, name := range configNames {
			p := filepath.Join(dir, name)
			if _, err := os.Stat(p); err == nil {
				return p, true
			}
		}
	}
	return "", false
}

// LoadOrDefault loads the config at path, or from the standard locations
// when path is empty, falling back to defaults when none exists.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		found, ok := Find()
		if !ok {
			return DefaultConfig(), nil
		}
		path = found
	}
	return Load(path)
}

// Empty reports whether no exclusion is configured.
func (c ExcludeConfig) Empty() bool {
	return len(c.Patterns) == 0 && len(c.Extensions) == 0 && len(c.Dirs) == 0
}

// Key identifies the exclusion settings in cache keys.
func (c ExcludeConfig) Key() string {
	if c.Empty() {
		return ""
	}
	return fmt.Sprintf("dirs=%s;ext=%s;patterns=%s",
		strings.Join(c.Dirs, ","), strings.Join(c.Extensions, ","), strings.Join(c.Patterns, ","))
}

// Match checks if a repository path should be left out of the metrics
// table. Paths use forward slashes as in git trees.
func (c ExcludeConfig) Match(p string) bool {
	for _, dir := range c.Dirs {
		if strings.HasPrefix(p, dir+"/") || strings.Contains(p, "/"+dir+"/") {
			return true
		}
	}

	ext := path.Ext(p)
	for _, excludeExt := range c.Extensions {
		if ext == excludeExt {
			return true
		}
	}

	base := path.Base(p)
	for _, pattern := range c.Patterns {
		if matched, _ := path.Match(pattern, base); matched {
			return true
		}
	}

	return false
}
