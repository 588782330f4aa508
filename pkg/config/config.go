// Package config loads the dispatch control plane's tunables from an
// optional YAML file, following the teacher's yaml.v3-based config
// loading idiom (see cmd/warren/apply.go in the source repo this was
// adapted from). Compiled-in defaults match spec §6.3 exactly.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every constant spec §6.3 allows implementations to expose.
type Config struct {
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	MaxCredits           int           `yaml:"max_credits"`
	QueueTimeout         time.Duration `yaml:"queue_timeout"`
	MaxQueueSize         int           `yaml:"max_queue_size"`
	ModuleCacheCapacity  int           `yaml:"module_cache_capacity"`
	LivenessSweepEnabled bool          `yaml:"liveness_sweep_enabled"`
}

// Default returns the spec §6.3 defaults.
func Default() Config {
	return Config{
		HeartbeatInterval:    500 * time.Millisecond,
		MaxCredits:           1,
		QueueTimeout:         30 * time.Second,
		MaxQueueSize:         10,
		ModuleCacheCapacity:  128,
		LivenessSweepEnabled: true,
	}
}

// LivenessTimeout is 3 × HeartbeatInterval per spec §6.3, derived rather
// than independently configurable so it can never drift out of sync with
// whatever heartbeat interval is actually in effect.
func (c Config) LivenessTimeout() time.Duration {
	return 3 * c.HeartbeatInterval
}

// Load reads a YAML config file and overlays it onto the defaults. A
// missing file is not an error: Load simply returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
