// Package config loads the declarative bootstrap file that shapes a
// process's scopes, access grants and bus toggles.
//
// The file is YAML:
//
//	scopes:
//	  - name: plugins
//	    parent: root.core
//	grants:
//	  - identity: renderer
//	    scope: root.core.ui
//	    level: readwrite
//	bus:
//	  priorities: true
//	  async: true
//	  fail_on_unhandled: false
//
// Scopes are created in file order, so a scope may name an earlier entry
// as its parent via its full path.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kestrelworks/relay/internal/access"
	"github.com/kestrelworks/relay/internal/registry"
)

// BootstrapIdentity is the caller identity scopes from the bootstrap file
// are created as.
const BootstrapIdentity = "bootstrap"

// Config is the parsed bootstrap file.
type Config struct {
	Scopes []ScopeSpec `yaml:"scopes"`
	Grants []GrantSpec `yaml:"grants"`
	Bus    BusSpec     `yaml:"bus"`
}

// ScopeSpec declares one runtime-created scope.
type ScopeSpec struct {
	// Name is the scope's own name.
	Name string `yaml:"name"`

	// Parent is the full dotted path of the parent scope.
	Parent string `yaml:"parent"`
}

// GrantSpec declares one access entry.
type GrantSpec struct {
	Identity string `yaml:"identity"`
	Scope    string `yaml:"scope"`
	Level    string `yaml:"level"`
}

// BusSpec declares the toggles applied to every bus the registry builds.
type BusSpec struct {
	Priorities      bool `yaml:"priorities"`
	Async           bool `yaml:"async"`
	FailOnUnhandled bool `yaml:"fail_on_unhandled"`
}

// Load reads and parses the bootstrap file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bootstrap config: %w", err)
	}
	return Parse(data)
}

// Parse parses bootstrap YAML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse bootstrap config: %w", err)
	}
	return &cfg, nil
}

// Apply materializes the config's scopes and grants into the registry.
// Scopes are created as BootstrapIdentity; grants register as written.
func (c *Config) Apply(reg *registry.Registry) error {
	tree := reg.Tree()

	for _, spec := range c.Scopes {
		parent, ok := tree.Find(spec.Parent)
		if !ok {
			return fmt.Errorf("scope %q: unknown parent %q", spec.Name, spec.Parent)
		}
		if _, err := reg.CreateScope(spec.Name, parent, BootstrapIdentity); err != nil {
			return fmt.Errorf("scope %q: %w", spec.Name, err)
		}
	}

	for _, spec := range c.Grants {
		s, ok := tree.Find(spec.Scope)
		if !ok {
			return fmt.Errorf("grant for %q: unknown scope %q", spec.Identity, spec.Scope)
		}
		level, err := access.ParseLevel(spec.Level)
		if err != nil {
			return fmt.Errorf("grant for %q: %w", spec.Identity, err)
		}
		if err := reg.Access().Register(spec.Identity, s, level); err != nil {
			return fmt.Errorf("grant for %q: %w", spec.Identity, err)
		}
	}
	return nil
}
