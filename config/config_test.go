package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trove.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  dir: /var/lib/trove
embedding:
  provider: openai
  model: text-embedding-3-large
  dimension: 384
http:
  addr: ":9090"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/trove", cfg.Store.Dir)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.Model)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	// untouched sections keep defaults
	assert.Equal(t, 1000, cfg.Ingest.BatchSize)
}

func TestLoadRejectsBadProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trove.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedding:\n  provider: carrier-pigeon\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "embedding.provider")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trove.yaml")

	cfg := DefaultConfig()
	cfg.Store.Compression = true
	cfg.Logging.Level = "debug"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("TROVE_TEST_KEY", "sk-123")
	cfg := EmbeddingConfig{APIKeyEnv: "TROVE_TEST_KEY"}
	assert.Equal(t, "sk-123", cfg.APIKey())
}
