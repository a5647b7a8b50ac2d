// Package engineprofile loads the engine-wide deployment profile: which of
// the three buffer/latency presets a session or oneshot run starts from, and
// the process-wide settings that sit alongside that choice (resource cache
// sizing, the plugin discovery directory, the event replay buffer's
// capacity, and an optional Redis backing store for shared resources). It
// follows internal/config's Loader/FileConfig split: a typed struct with
// defaults, a strict YAML file merge, then environment overrides, then
// validation.
package engineprofile

import (
	"fmt"

	"github.com/streamkit/streamkit/internal/dynamicengine"
	"github.com/streamkit/streamkit/internal/oneshotengine"
)

// Name selects one of the three engine-wide presets. It mirrors
// dynamicengine.ProfileName and oneshotengine.ProfileName exactly; those
// packages own the buffer-size numbers themselves, this package only picks
// which preset a deployment runs with.
type Name string

const (
	LowLatency     Name = "low-latency"
	Balanced       Name = "balanced"
	HighThroughput Name = "high-throughput"
)

func (n Name) valid() bool {
	switch n {
	case LowLatency, Balanced, HighThroughput:
		return true
	default:
		return false
	}
}

// ResourceCacheConfig configures the process-wide shared-resource cache
// (internal/rescache) that plugin-loaded models and shared dictionaries are
// acquired through.
type ResourceCacheConfig struct {
	MaxBytes         int64  `yaml:"max_bytes"`
	KeepModelsLoaded bool   `yaml:"keep_models_loaded"`
	RedisAddr        string `yaml:"redis_addr"`
	RedisPassword    string `yaml:"redis_password"`
	RedisDB          int    `yaml:"redis_db"`
}

// Config is the full engine profile: a Name plus the process-wide settings
// that travel with it.
type Config struct {
	Profile          Name                `yaml:"profile"`
	PluginDir        string              `yaml:"plugin_dir"`
	EventLogCapacity int                 `yaml:"event_log_capacity"`
	ResourceCache    ResourceCacheConfig `yaml:"resource_cache"`
}

// Default returns the "balanced" profile with the package's baseline
// process-wide settings. Every field here has an explicit value so a
// deployment running with no config file at all still gets a sane engine.
func Default() Config {
	return Config{
		Profile:          Balanced,
		PluginDir:        "./plugins",
		EventLogCapacity: 200,
		ResourceCache: ResourceCacheConfig{
			MaxBytes:         512 << 20,
			KeepModelsLoaded: false,
		},
	}
}

// Validate rejects a Config no engine component could act on.
func (c Config) Validate() error {
	if !c.Profile.valid() {
		return fmt.Errorf("engineprofile: unknown profile %q", c.Profile)
	}
	if c.PluginDir == "" {
		return fmt.Errorf("engineprofile: plugin_dir must not be empty")
	}
	if c.EventLogCapacity <= 0 {
		return fmt.Errorf("engineprofile: event_log_capacity must be positive, got %d", c.EventLogCapacity)
	}
	if c.ResourceCache.MaxBytes <= 0 {
		return fmt.Errorf("engineprofile: resource_cache.max_bytes must be positive, got %d", c.ResourceCache.MaxBytes)
	}
	return nil
}

// DynamicProfile resolves c's selected Name to the dynamic engine's preset.
func (c Config) DynamicProfile() dynamicengine.Profile {
	return dynamicengine.Profiles[dynamicengine.ProfileName(c.Profile)]
}

// OneshotProfile resolves c's selected Name to the oneshot engine's preset.
func (c Config) OneshotProfile() oneshotengine.Profile {
	return oneshotengine.Profiles[oneshotengine.ProfileName(c.Profile)]
}
