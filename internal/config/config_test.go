package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelworks/relay/internal/access"
	"github.com/kestrelworks/relay/internal/registry"
	"github.com/kestrelworks/relay/internal/scope"
)

const sample = `
scopes:
  - name: plugins
    parent: root.core
  - name: vim-mode
    parent: root.core.plugins
grants:
  - identity: renderer
    scope: root.core.ui
    level: readwrite
  - identity: metrics
    scope: root
    level: readonly
bus:
  priorities: true
  async: true
  fail_on_unhandled: false
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	require.Len(t, cfg.Scopes, 2)
	assert.Equal(t, ScopeSpec{Name: "plugins", Parent: "root.core"}, cfg.Scopes[0])
	require.Len(t, cfg.Grants, 2)
	assert.Equal(t, GrantSpec{Identity: "renderer", Scope: "root.core.ui", Level: "readwrite"}, cfg.Grants[0])
	assert.True(t, cfg.Bus.Priorities)
	assert.True(t, cfg.Bus.Async)
	assert.False(t, cfg.Bus.FailOnUnhandled)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("scopes: {not a list"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Scopes, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	reg, err := registry.New(scope.NewTree(), access.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, cfg.Apply(reg))

	tree := reg.Tree()
	plugins, ok := tree.Find("root.core.plugins")
	require.True(t, ok)
	_, ok = tree.Find("root.core.plugins.vim-mode")
	require.True(t, ok, "later scopes may nest under earlier ones")

	assert.Equal(t, access.ReadWrite, reg.Access().LevelFor(BootstrapIdentity, plugins))
	ui, _ := tree.Find("root.core.ui")
	assert.Equal(t, access.ReadWrite, reg.Access().LevelFor("renderer", ui))
	assert.Equal(t, access.ReadOnly, reg.Access().LevelFor("metrics", tree.Root()))
}

func TestApply_UnknownParent(t *testing.T) {
	cfg := &Config{Scopes: []ScopeSpec{{Name: "x", Parent: "root.nowhere"}}}
	reg, err := registry.New(scope.NewTree(), access.NewRegistry())
	require.NoError(t, err)

	err = cfg.Apply(reg)
	assert.ErrorContains(t, err, "unknown parent")
}

func TestApply_BadLevel(t *testing.T) {
	cfg := &Config{Grants: []GrantSpec{{Identity: "svc", Scope: "root", Level: "root-access"}}}
	reg, err := registry.New(scope.NewTree(), access.NewRegistry())
	require.NoError(t, err)

	assert.Error(t, cfg.Apply(reg))
}
