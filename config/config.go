// Package config loads project configuration for the picodoc CLI.
// Configuration lives in a picodoc.toml (or picodoc.yaml) next to the
// input document; CLI flags override anything set here.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/picodoc/picodoc-go/internal/errors"
)

// Config mirrors the picodoc.toml layout.
type Config struct {
	Env     map[string]string `toml:"env" yaml:"env"`
	CSS     FileList          `toml:"css" yaml:"css"`
	JS      FileList          `toml:"js" yaml:"js"`
	Meta    map[string]string `toml:"meta" yaml:"meta"`
	Filters Filters           `toml:"filters" yaml:"filters"`
}

// FileList is a [css] or [js] section.
type FileList struct {
	Files []string `toml:"files" yaml:"files"`
}

// Filters is the [filters] section.
type Filters struct {
	Paths   []string `toml:"paths" yaml:"paths"`
	Timeout float64  `toml:"timeout" yaml:"timeout"`
}

// Load reads a config file. TOML and YAML are both accepted, chosen
// by file extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.KindConfig, "cannot read config file: "+path)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.New(errors.KindConfig, "invalid config file "+path+": "+err.Error())
		}
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, errors.New(errors.KindConfig, "invalid config file "+path+": "+err.Error())
		}
	}
	return cfg, nil
}

// Discover finds a config file next to the input document. It returns
// the empty string when none exists.
func Discover(inputDir string) string {
	for _, name := range []string{"picodoc.toml", "picodoc.yaml", "picodoc.yml"} {
		candidate := filepath.Join(inputDir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// LoadOrDefault loads the explicit config path when given, otherwise
// auto-discovers one next to the input. A missing discovered file
// yields an empty config.
func LoadOrDefault(explicit, inputDir string) (*Config, error) {
	path := explicit
	if path == "" {
		path = Discover(inputDir)
	}
	if path == "" {
		return &Config{}, nil
	}
	return Load(path)
}
