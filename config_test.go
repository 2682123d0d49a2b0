// config_test.go
package policyscript

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10_000, cfg.MaxSteps)
	assert.Equal(t, 64, cfg.MaxCallDepth)
	assert.Equal(t, 64*1024, cfg.MaxSourceBytes)
}

func TestConfigZeroFieldsTakeDefaults(t *testing.T) {
	cfg := Config{MaxSteps: 500}.withDefaults()
	assert.Equal(t, 500, cfg.MaxSteps)
	assert.Equal(t, DefaultConfig().MaxCallDepth, cfg.MaxCallDepth)
	assert.Equal(t, DefaultConfig().MaxSourceBytes, cfg.MaxSourceBytes)
}

func TestLoadConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sandbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_steps: 500\nmax_call_depth: 8\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.MaxSteps)
	assert.Equal(t, 8, cfg.MaxCallDepth)
	assert.Equal(t, DefaultConfig().MaxSourceBytes, cfg.MaxSourceBytes)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_steps: [oops\n"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}
