// Package config loads the pattern and run configuration from YAML and
// resolves which file to load via a fixed precedence chain.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// Filename is the default config file name looked up in each
	// candidate directory.
	Filename = "patterns.yaml"

	// EnvVar overrides the discovery chain when set.
	EnvVar = "REDACTKIT_CONFIG"

	appDir  = "redactkit"
	siteDir = "/etc/xdg"
)

// Config is the parsed YAML document. Patterns is the only required field;
// run parameters are optional and overridable from the command line.
type Config struct {
	// Patterns holds grammar sources, each with a `match` entry rule.
	Patterns []string `yaml:"patterns"`

	// DPI used for the initial rasterization pass.
	DPI int `yaml:"dpi,omitempty"`

	// Jobs bounds worker parallelism. Zero selects half the CPUs.
	Jobs int `yaml:"jobs,omitempty"`

	// Languages passed to the recognition engine, e.g. ["eng", "deu"].
	Languages []string `yaml:"languages,omitempty"`

	// Strict makes a zero-redaction document a failure. Nil means on.
	Strict *bool `yaml:"strict,omitempty"`

	// Verify controls the post-redaction recognition pass. Nil means on.
	Verify *bool `yaml:"verify,omitempty"`

	// Output is the default output directory or file path.
	Output string `yaml:"output,omitempty"`
}

// VerifyEnabled reports the effective verify setting; verification is on
// unless the file disables it explicitly.
func (c *Config) VerifyEnabled() bool {
	return c.Verify == nil || *c.Verify
}

// StrictEnabled reports the effective strict setting; strict mode is on
// unless the file disables it explicitly.
func (c *Config) StrictEnabled() bool {
	return c.Strict == nil || *c.Strict
}

// Load reads and parses one config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Candidates returns the discovery chain in precedence order, excluding any
// explicit CLI path: $REDACTKIT_CONFIG, ./patterns.yaml, the user config
// dir, then the site config dir.
func Candidates() []string {
	var paths []string
	if env := os.Getenv(EnvVar); env != "" {
		paths = append(paths, env)
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, Filename))
	}
	if userDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(userDir, appDir, Filename))
	}
	paths = append(paths, filepath.Join(siteDir, appDir, Filename))
	return paths
}

// Find resolves the config file to load. An explicit path wins and must
// exist; otherwise the first existing candidate is used. An empty return
// with nil error means no config file was found anywhere.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}
	for _, cand := range Candidates() {
		if info, err := os.Stat(cand); err == nil && !info.IsDir() {
			return cand, nil
		}
	}
	return "", nil
}
