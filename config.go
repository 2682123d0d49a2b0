// config.go: tunable limits for the sandbox.
package policyscript

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config carries the evaluator budgets. The grammar forbids loops, so the
// only unbounded construct is recursion; both meters exist to cap it. Zero
// fields take defaults.
type Config struct {
	// MaxSteps is the per-invocation node-evaluation budget.
	MaxSteps int `yaml:"max_steps"`
	// MaxCallDepth caps recursive self-calls within one invocation.
	MaxCallDepth int `yaml:"max_call_depth"`
	// MaxSourceBytes rejects oversized snippets before parsing.
	MaxSourceBytes int `yaml:"max_source_bytes"`
}

// DefaultConfig returns the stock budgets.
func DefaultConfig() Config {
	return Config{
		MaxSteps:       10_000,
		MaxCallDepth:   64,
		MaxSourceBytes: 64 * 1024,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxSteps <= 0 {
		c.MaxSteps = d.MaxSteps
	}
	if c.MaxCallDepth <= 0 {
		c.MaxCallDepth = d.MaxCallDepth
	}
	if c.MaxSourceBytes <= 0 {
		c.MaxSourceBytes = d.MaxSourceBytes
	}
	return c
}

// LoadConfig reads a YAML config file; absent fields keep their defaults.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c.withDefaults(), nil
}
