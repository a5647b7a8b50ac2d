package engineprofile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamkit/streamkit/internal/engineprofile"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := engineprofile.NewLoader("").Load()
	require.NoError(t, err)
	require.Equal(t, engineprofile.Balanced, cfg.Profile)
	require.Equal(t, "./plugins", cfg.PluginDir)
	require.Equal(t, 200, cfg.EventLogCapacity)
	require.False(t, cfg.ResourceCache.KeepModelsLoaded)
}

func TestLoadFromYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	yamlContent := `
profile: high-throughput
plugin_dir: /var/lib/streamkit/plugins
event_log_capacity: 500
resource_cache:
  max_bytes: 1073741824
  keep_models_loaded: true
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o600))

	cfg, err := engineprofile.NewLoader(path).Load()
	require.NoError(t, err)
	require.Equal(t, engineprofile.HighThroughput, cfg.Profile)
	require.Equal(t, "/var/lib/streamkit/plugins", cfg.PluginDir)
	require.Equal(t, 500, cfg.EventLogCapacity)
	require.EqualValues(t, 1073741824, cfg.ResourceCache.MaxBytes)
	require.True(t, cfg.ResourceCache.KeepModelsLoaded)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profile: balanced\n"), 0o600))

	t.Setenv("STREAMKIT_PROFILE", "low-latency")
	t.Setenv("STREAMKIT_RESOURCE_CACHE_KEEP_MODELS_LOADED", "true")

	cfg, err := engineprofile.NewLoader(path).Load()
	require.NoError(t, err)
	require.Equal(t, engineprofile.LowLatency, cfg.Profile)
	require.True(t, cfg.ResourceCache.KeepModelsLoaded)
}

func TestUnknownFieldInFileIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profile: balanced\nnonsense_key: 1\n"), 0o600))

	_, err := engineprofile.NewLoader(path).Load()
	require.Error(t, err)
}

func TestValidateRejectsUnknownProfile(t *testing.T) {
	cfg := engineprofile.Default()
	cfg.Profile = "turbo"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveCacheSize(t *testing.T) {
	cfg := engineprofile.Default()
	cfg.ResourceCache.MaxBytes = 0
	require.Error(t, cfg.Validate())
}

func TestDynamicAndOneshotProfileResolveToMatchingPreset(t *testing.T) {
	cfg := engineprofile.Default()
	cfg.Profile = engineprofile.LowLatency

	require.Equal(t, "low-latency", string(cfg.DynamicProfile().Name))
	require.Equal(t, "low-latency", string(cfg.OneshotProfile().Name))
}
