package engineprofile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/streamkit/streamkit/internal/log"
)

// Env var names a Loader checks after the file merge, highest precedence.
const (
	envProfile          = "STREAMKIT_PROFILE"
	envPluginDir        = "STREAMKIT_PLUGIN_DIR"
	envEventLogCapacity = "STREAMKIT_EVENT_LOG_CAPACITY"
	envCacheMaxBytes    = "STREAMKIT_RESOURCE_CACHE_MAX_BYTES"
	envCacheKeepLoaded  = "STREAMKIT_RESOURCE_CACHE_KEEP_MODELS_LOADED"
	envCacheRedisAddr   = "STREAMKIT_RESOURCE_CACHE_REDIS_ADDR"
)

// Loader loads a Config with precedence ENV > file > defaults, the same
// order internal/config's Loader applies.
type Loader struct {
	configPath string
}

// NewLoader builds a Loader over an optional YAML file. An empty configPath
// skips the file-merge step entirely; defaults plus env overrides still
// apply.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Load resolves the engine profile and validates it before returning.
func (l *Loader) Load() (Config, error) {
	cfg := Default()

	if l.configPath != "" {
		file, err := loadFile(l.configPath)
		if err != nil {
			return Config{}, fmt.Errorf("engineprofile: load config file: %w", err)
		}
		mergeFile(&cfg, file)
	}

	l.mergeEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// fileConfig mirrors Config but with every field a pointer, so the merge
// step can tell "absent from the file" apart from "zero value in the file".
type fileConfig struct {
	Profile          *Name   `yaml:"profile"`
	PluginDir        *string `yaml:"plugin_dir"`
	EventLogCapacity *int    `yaml:"event_log_capacity"`
	ResourceCache    *struct {
		MaxBytes         *int64  `yaml:"max_bytes"`
		KeepModelsLoaded *bool   `yaml:"keep_models_loaded"`
		RedisAddr        *string `yaml:"redis_addr"`
		RedisPassword    *string `yaml:"redis_password"`
		RedisDB          *int    `yaml:"redis_db"`
	} `yaml:"resource_cache"`
}

// loadFile parses path with strict field checking, rejecting typos and
// renamed keys instead of silently ignoring them.
func loadFile(path string) (*fileConfig, error) {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		if err == io.EOF {
			return &fileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fc, nil
}

func mergeFile(cfg *Config, fc *fileConfig) {
	if fc == nil {
		return
	}
	if fc.Profile != nil {
		cfg.Profile = *fc.Profile
	}
	if fc.PluginDir != nil {
		cfg.PluginDir = *fc.PluginDir
	}
	if fc.EventLogCapacity != nil {
		cfg.EventLogCapacity = *fc.EventLogCapacity
	}
	if fc.ResourceCache != nil {
		if fc.ResourceCache.MaxBytes != nil {
			cfg.ResourceCache.MaxBytes = *fc.ResourceCache.MaxBytes
		}
		if fc.ResourceCache.KeepModelsLoaded != nil {
			cfg.ResourceCache.KeepModelsLoaded = *fc.ResourceCache.KeepModelsLoaded
		}
		if fc.ResourceCache.RedisAddr != nil {
			cfg.ResourceCache.RedisAddr = *fc.ResourceCache.RedisAddr
		}
		if fc.ResourceCache.RedisPassword != nil {
			cfg.ResourceCache.RedisPassword = *fc.ResourceCache.RedisPassword
		}
		if fc.ResourceCache.RedisDB != nil {
			cfg.ResourceCache.RedisDB = *fc.ResourceCache.RedisDB
		}
	}
}

// mergeEnv applies the package's environment overrides, logging each one it
// consumes the way internal/config's ParseString/ParseInt/ParseBool do.
func (l *Loader) mergeEnv(cfg *Config) {
	logger := log.WithComponent("engineprofile")

	if v, ok := os.LookupEnv(envProfile); ok && v != "" {
		cfg.Profile = Name(v)
		logger.Debug().Str("key", envProfile).Str("value", v).Msg("using environment variable")
	}
	if v, ok := os.LookupEnv(envPluginDir); ok && v != "" {
		cfg.PluginDir = v
		logger.Debug().Str("key", envPluginDir).Str("value", v).Msg("using environment variable")
	}
	if v, ok := os.LookupEnv(envEventLogCapacity); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EventLogCapacity = n
			logger.Debug().Str("key", envEventLogCapacity).Int("value", n).Msg("using environment variable")
		} else {
			logger.Warn().Str("key", envEventLogCapacity).Str("value", v).Msg("invalid integer in environment variable, keeping prior value")
		}
	}
	if v, ok := os.LookupEnv(envCacheMaxBytes); ok && v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.ResourceCache.MaxBytes = n
			logger.Debug().Str("key", envCacheMaxBytes).Int64("value", n).Msg("using environment variable")
		} else {
			logger.Warn().Str("key", envCacheMaxBytes).Str("value", v).Msg("invalid integer in environment variable, keeping prior value")
		}
	}
	if v, ok := os.LookupEnv(envCacheKeepLoaded); ok && v != "" {
		switch strings.ToLower(v) {
		case "true", "1", "yes":
			cfg.ResourceCache.KeepModelsLoaded = true
			logger.Debug().Str("key", envCacheKeepLoaded).Bool("value", true).Msg("using environment variable")
		case "false", "0", "no":
			cfg.ResourceCache.KeepModelsLoaded = false
			logger.Debug().Str("key", envCacheKeepLoaded).Bool("value", false).Msg("using environment variable")
		default:
			logger.Warn().Str("key", envCacheKeepLoaded).Str("value", v).Msg("invalid boolean in environment variable, keeping prior value")
		}
	}
	if v, ok := os.LookupEnv(envCacheRedisAddr); ok && v != "" {
		cfg.ResourceCache.RedisAddr = v
		logger.Debug().Str("key", envCacheRedisAddr).Msg("using environment variable")
	}
}
