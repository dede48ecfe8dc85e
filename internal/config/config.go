package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath   = "refindex.yaml"
	DefaultOutput = "./spreadsheets/project_references.csv"
)

type Config struct {
	Project struct {
		Root           string   `yaml:"root"`
		Extensions     []string `yaml:"extensions"`
		Exclude        []string `yaml:"exclude"`
		FollowSymlinks *bool    `yaml:"follow_symlinks"`
	} `yaml:"project"`
	Index struct {
		Output string `yaml:"output"`
		SQLite string `yaml:"sqlite"` // optional mirror, disabled when empty
	} `yaml:"index"`
	Scan struct {
		Workers int `yaml:"workers"`
	} `yaml:"scan"`
	Watch struct {
		Debounce time.Duration `yaml:"debounce"`
	} `yaml:"watch"`
}

// Follow reports whether symlinks should be followed (default true).
func (c *Config) Follow() bool {
	return c.Project.FollowSymlinks == nil || *c.Project.FollowSymlinks
}

// LoadConfig reads path if it exists, applies defaults, then environment
// overrides. A missing file is not an error; a malformed one is.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config
	var cfg Config
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg.applyDefaults()

	// 3. Override with Environment Variables if present
	if root := os.Getenv("REFINDEX_ROOT"); root != "" {
		cfg.Project.Root = root
	}
	if output := os.Getenv("REFINDEX_OUTPUT"); output != "" {
		cfg.Index.Output = output
	}
	if db := os.Getenv("REFINDEX_SQLITE"); db != "" {
		cfg.Index.SQLite = db
	}
	if workers := os.Getenv("REFINDEX_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("REFINDEX_WORKERS must be a positive integer, got %q", workers)
		}
		cfg.Scan.Workers = n
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Project.Root == "" {
		c.Project.Root = "."
	}
	if len(c.Project.Extensions) == 0 {
		c.Project.Extensions = []string{".rs"}
	}
	if c.Project.Exclude == nil {
		c.Project.Exclude = []string{"target"}
	}
	if c.Index.Output == "" {
		c.Index.Output = DefaultOutput
	}
	if c.Scan.Workers <= 0 {
		c.Scan.Workers = runtime.NumCPU()
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = 500 * time.Millisecond
	}
}
