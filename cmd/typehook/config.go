package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the project file name looked up from the working directory
// upward.
const ConfigFile = "typehook.yaml"

// Config is the typehook.yaml project file. Relative paths resolve
// against the directory the file is in.
type Config struct {
	// Scripts lists the extension scripts loaded for every unit, in order.
	Scripts []string `yaml:"scripts"`

	// ScriptsDir is where relative script paths and script imports resolve.
	ScriptsDir string `yaml:"scripts_dir,omitempty"`

	Debug bool `yaml:"debug,omitempty"`

	// DB is the report database path.
	DB string `yaml:"db,omitempty"`

	// Dir is the directory containing the file. Not read from YAML.
	Dir string `yaml:"-"`
}

// LoadConfig reads and parses a project file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses typehook.yaml content from bytes.
// The path argument is used for error messages and relative paths.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(path)
	return &cfg, nil
}

// FindConfig searches for typehook.yaml starting from dir and walking up
// to parent directories. It returns "" and a nil error when there is none.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func (c *Config) validate(path string) error {
	seen := make(map[string]bool, len(c.Scripts))
	for i, s := range c.Scripts {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s: scripts[%d]: empty path", path, i)
		}
		if seen[s] {
			return fmt.Errorf("%s: scripts[%d]: %q listed twice", path, i, s)
		}
		seen[s] = true
	}
	return nil
}

// resolve turns the file's relative paths into paths usable from the
// working directory.
func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}
