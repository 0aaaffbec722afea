package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for vscle.
type Config struct {
	// Directories searched for C/C++ sources
	SourceDirs []string `koanf:"source_dirs" toml:"source_dirs"`

	// Address the result socket binds to, e.g. tcp://*:5555
	ZMQURI string `koanf:"zmq_uri" toml:"zmq_uri"`

	// Directory holding topology.json
	OutputPath string `koanf:"output_path" toml:"output_path"`

	// Optional command run once per source file before analysis
	Prebuild string `koanf:"prebuild" toml:"prebuild"`

	// Exported to the prebuild command as WORKING_DIR
	WorkingDir string `koanf:"working_dir" toml:"working_dir"`

	Analyzer  AnalyzerConfig  `koanf:"analyzer" toml:"analyzer"`
	Exclude   ExcludeConfig   `koanf:"exclude" toml:"exclude"`
	Highlight HighlightConfig `koanf:"highlight" toml:"highlight"`
	Cache     CacheConfig     `koanf:"cache" toml:"cache"`
	Output    OutputConfig    `koanf:"output" toml:"output"`
}

// AnalyzerConfig controls how the conflict analyzer is invoked.
type AnalyzerConfig struct {
	// Shell command line; {uri}, {file}, {files} and {output} are expanded.
	Command string `koanf:"command" toml:"command"`
	// How long to wait for an in-flight result after a clean analyzer exit.
	ResultGrace time.Duration `koanf:"result_grace" toml:"result_grace"`
	// Write topology.json after a successful session.
	Persist bool `koanf:"persist" toml:"persist"`
	// Send an acknowledgement frame after receiving the result.
	Ack bool `koanf:"ack" toml:"ack"`
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns" toml:"patterns"`
	Dirs      []string `koanf:"dirs" toml:"dirs"`
	Gitignore bool     `koanf:"gitignore" toml:"gitignore"`
}

// HighlightConfig controls topology highlighting.
type HighlightConfig struct {
	IncludeGlobals bool   `koanf:"include_globals" toml:"include_globals"`
	Alpha          string `koanf:"alpha" toml:"alpha"` // hex alpha appended to each color
}

// CacheConfig controls the parse cache.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format string `koanf:"format" toml:"format"` // text, json, markdown, yaml
	Color  bool   `koanf:"color" toml:"color"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SourceDirs: []string{"."},
		ZMQURI:     "tcp://*:5555",
		OutputPath: ".",
		Analyzer: AnalyzerConfig{
			Command:     "python3 conflict_analyzer.py -z {uri} -f {file} -o {output}",
			ResultGrace: 2 * time.Second,
			Persist:     true,
			Ack:         true,
		},
		// Every C/C++ file under a source dir counts unless excluded here.
		Exclude: ExcludeConfig{
			Dirs: []string{".git"},
		},
		Highlight: HighlightConfig{
			IncludeGlobals: false,
			Alpha:          "30",
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".vscle/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		parser = toml.Parser()
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

	return cfg, nil
}

// configNames are searched, in order, in each of searchDirs.
var configNames = []string{
	"vscle.toml",
	"vscle.yaml",
	"vscle.yml",
	"vscle.json",
	".vscle.toml",
	".vscle.yaml",
	".vscle.yml",
	".vscle.json",
}

var searchDirs = []string{".", ".vscle"}

// LoadResult is a loaded configuration and the file it came from.
// Source is empty when defaults were used.
type LoadResult struct {
	Config *Config
	Source string
}

type loadOptions struct {
	path string
}

// LoadOption customizes LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads from an explicit file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// LoadConfig loads and validates configuration. Without WithPath it searches
// the standard locations and falls back to defaults.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.path != "" {
		cfg, err := Load(o.path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", o.path, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &LoadResult{Config: cfg, Source: o.path}, nil
	}

	if path := findConfigFile(); path != "" {
		cfg, err := Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &LoadResult{Config: cfg, Source: path}, nil
	}

	return &LoadResult{Config: DefaultConfig()}, nil
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	if path := findConfigFile(); path != "" {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	return DefaultConfig()
}

func findConfigFile() string {
	for _, dir := range searchDirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// ValidationError reports an unusable setting.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + e.Field + " " + e.Reason
}

// Validate checks the settings the core components depend on.
func (c *Config) Validate() error {
	if len(c.SourceDirs) == 0 {
		return &ValidationError{Field: "source_dirs", Reason: "must list at least one directory"}
	}
	for _, dir := range c.SourceDirs {
		if strings.TrimSpace(dir) == "" {
			return &ValidationError{Field: "source_dirs", Reason: "must not contain empty entries"}
		}
	}
	if strings.TrimSpace(c.ZMQURI) == "" {
		return &ValidationError{Field: "zmq_uri", Reason: "is required"}
	}
	if strings.TrimSpace(c.Analyzer.Command) == "" {
		return &ValidationError{Field: "analyzer.command", Reason: "is required"}
	}
	if c.Analyzer.ResultGrace < 0 {
		return &ValidationError{Field: "analyzer.result_grace", Reason: "must not be negative"}
	}
	return nil
}

// TopologyPath returns the location of the persisted topology artifact.
func (c *Config) TopologyPath() string {
	return filepath.Join(c.OutputPath, "topology.json")
}

// EffectiveWorkingDir returns WorkingDir, or the process working directory
// when unset.
func (c *Config) EffectiveWorkingDir() string {
	if c.WorkingDir != "" {
		return c.WorkingDir
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// ShouldExcludeDir reports whether a directory name is excluded.
func (c *Config) ShouldExcludeDir(name string) bool {
	for _, dir := range c.Exclude.Dirs {
		if name == dir {
			return true
		}
	}
	return false
}
