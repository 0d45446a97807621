// Package config loads the CLI configuration from YAML and vets it
// against an embedded CUE schema before use.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// TLS holds transport security settings for the engine connection.
type TLS struct {
	Enabled bool   `yaml:"enabled"`
	RootCA  string `yaml:"root_ca"`
}

// Query holds default query options applied to every query the CLI runs.
// Nil fields leave the engine's own defaults in place.
type Query struct {
	IncludeInstanceTypes *bool   `yaml:"include_instance_types"`
	PrefetchSize         *uint64 `yaml:"prefetch_size"`
}

// Config is the CLI configuration.
type Config struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	TLS      TLS    `yaml:"tls"`
	Workers  int    `yaml:"workers"`
	Query    Query  `yaml:"query"`
}

// Default returns the compiled-in configuration: a local SQLite-backed
// engine under ./data with the minimum worker count.
func Default() *Config {
	return &Config{
		Address: "sqlite:./data",
		Workers: 2,
	}
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration, vets it against the schema, and
// overlays it on the defaults.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if raw != nil {
		if err := vet(raw); err != nil {
			return nil, err
		}
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// vet unifies the decoded document with the #Config definition. The
// definition is closed, so unknown fields fail here rather than being
// silently dropped by the YAML decoder.
func vet(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("config schema has no #Config: %w", err)
	}
	unified := def.Unify(ctx.Encode(raw))
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
