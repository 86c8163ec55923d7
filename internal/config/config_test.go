package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HNSW_SERVER_NAME", "HNSW_LOG_LEVEL", "HNSW_LOG_FORMAT", "HNSW_DATA_DIR",
		"HNSW_MAX_EDGES", "HNSW_DISTRIBUTION_RATE", "HNSW_EF_CONSTRUCTION", "HNSW_EF_SEARCH",
		"HNSW_COLLECTION_SIZE", "HNSW_RANDOM_SEED", "HNSW_ALLOW_REMOVALS",
		"HNSW_ZERO_LAYER_GUARANTEED", "HNSW_HEURISTIC", "HNSW_DISTANCE", "HNSW_CONFIG_FILE",
	} {
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load("test-version")

	assert.Equal(t, "hnswctl", cfg.ServerName)
	assert.Equal(t, "test-version", cfg.Version)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 16, cfg.Index.MaxEdges)
	assert.Equal(t, 100, cfg.Index.EfConstruction)
	assert.Equal(t, 5, cfg.Index.EfSearch)
	assert.True(t, cfg.Index.AllowRemovals)
	assert.True(t, cfg.Index.ZeroLayerGuaranteed)
	assert.Equal(t, "relative_neighborhood", cfg.Index.Heuristic)
	assert.Equal(t, "cosine", cfg.Index.Distance)
	assert.InDelta(t, 1.0/ln16, cfg.Index.DistributionRate, 1e-9)
}

func TestLoadEnvOverride(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.Setenv("HNSW_MAX_EDGES", "32"))
	require.NoError(t, os.Setenv("HNSW_HEURISTIC", "naive_nearest"))
	defer os.Unsetenv("HNSW_MAX_EDGES")
	defer os.Unsetenv("HNSW_HEURISTIC")

	cfg := Load("test-version")

	assert.Equal(t, 32, cfg.Index.MaxEdges)
	assert.Equal(t, "naive_nearest", cfg.Index.Heuristic)
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "hnswctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(""+
		"server_name: custom-name\n"+
		"index:\n"+
		"  max_edges: 48\n"+
		"  heuristic: naive_nearest\n"), 0o644))
	require.NoError(t, os.Setenv("HNSW_CONFIG_FILE", path))
	defer os.Unsetenv("HNSW_CONFIG_FILE")

	cfg := Load("test-version")

	assert.Equal(t, "custom-name", cfg.ServerName)
	assert.Equal(t, 48, cfg.Index.MaxEdges)
	assert.Equal(t, "naive_nearest", cfg.Index.Heuristic)
	// Untouched-by-file fields keep their hard-coded defaults.
	assert.Equal(t, "cosine", cfg.Index.Distance)
}

func TestLoadConfigFileOverriddenByEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "hnswctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index:\n  max_edges: 48\n"), 0o644))
	require.NoError(t, os.Setenv("HNSW_CONFIG_FILE", path))
	require.NoError(t, os.Setenv("HNSW_MAX_EDGES", "64"))
	defer os.Unsetenv("HNSW_CONFIG_FILE")
	defer os.Unsetenv("HNSW_MAX_EDGES")

	cfg := Load("test-version")

	// Env wins over the file per Load's documented precedence.
	assert.Equal(t, 64, cfg.Index.MaxEdges)
}

func TestLoadMissingConfigFileFallsBackToDefaults(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.Setenv("HNSW_CONFIG_FILE", filepath.Join(t.TempDir(), "does-not-exist.yaml")))
	defer os.Unsetenv("HNSW_CONFIG_FILE")

	cfg := Load("test-version")

	assert.Equal(t, 16, cfg.Index.MaxEdges)
}
