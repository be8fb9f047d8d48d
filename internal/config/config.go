// Package config carries tenant configuration: where the physical database
// lives, whether tenants share it, and the tenant's table-name prefix.
//
// Configuration is an explicit value threaded through the store factory,
// never process-wide mutable state. Files are YAML, validated against an
// embedded CUE schema before use.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Mode selects the multi-tenancy layout.
type Mode string

const (
	// ModeShared keeps every tenant in one database file, isolated by
	// table-name prefix.
	ModeShared Mode = "shared"

	// ModeSeparate gives each tenant its own database file; tables carry
	// no prefix.
	ModeSeparate Mode = "separate"
)

// Config describes one tenant's database placement.
type Config struct {
	Directory  string `yaml:"directory" json:"directory"`
	Mode       Mode   `yaml:"mode" json:"mode"`
	SharedName string `yaml:"shared_name,omitempty" json:"shared_name,omitempty"`
	Prefix     string `yaml:"prefix" json:"prefix"`
}

// Load reads and validates a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// prefixRE is the sanitized-prefix shape: anything else is rejected, not
// escaped, because the prefix is spliced into SQL identifiers.
var prefixRE = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Validate checks the config against the embedded CUE schema plus the
// prefix sanitation rule.
func (c Config) Validate() error {
	if !prefixRE.MatchString(strings.TrimSuffix(c.Prefix, "_")) {
		return fmt.Errorf("invalid tenant prefix %q: lowercase alphanumerics and underscore only, starting with a letter", c.Prefix)
	}

	cctx := cuecontext.New()
	schema := cctx.CompileString(schemaCUE).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("internal schema error: %w", err)
	}

	val := cctx.Encode(struct {
		Directory  string `json:"directory"`
		Mode       string `json:"mode"`
		SharedName string `json:"shared_name,omitempty"`
		Prefix     string `json:"prefix"`
	}{
		Directory:  c.Directory,
		Mode:       string(c.Mode),
		SharedName: c.SharedName,
		Prefix:     strings.TrimSuffix(c.Prefix, "_"),
	})

	if err := schema.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DatabasePath returns the SQLite file this tenant opens.
func (c Config) DatabasePath() string {
	if c.Mode == ModeSeparate {
		return filepath.Join(c.Directory, strings.TrimSuffix(c.Prefix, "_")+".db")
	}
	return filepath.Join(c.Directory, c.SharedName)
}

// TablePrefix returns the prefix applied to this tenant's table names:
// the sanitized tenant identifier plus a trailing underscore in shared
// mode, empty in separate mode (isolation comes from the file boundary).
func (c Config) TablePrefix() string {
	if c.Mode == ModeSeparate {
		return ""
	}
	return strings.TrimSuffix(c.Prefix, "_") + "_"
}
