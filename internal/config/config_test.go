package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stocktake/backend/internal/config"
)

func TestLoadConfig(t *testing.T) {
	// Set env var directly to test envconfig logic
	os.Setenv("DB_HOST", "test-host")
	defer os.Unsetenv("DB_HOST")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "test-host", cfg.DBHost)
}

func TestLoadConfig_FromEnvFile(t *testing.T) {
	content := []byte("DB_HOST=loaded-from-file")
	err := os.WriteFile(".env", content, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(".env")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "loaded-from-file", cfg.DBHost)
}

func TestLoadConfig_IngestionDefaults(t *testing.T) {
	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, 1536, cfg.EmbeddingDimension)
	assert.Equal(t, 2000, cfg.ChunkMaxBytes)
	assert.Equal(t, 4, cfg.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.BatchInterval())
	assert.Equal(t, 3, cfg.EmbedRetryAttempts)
	assert.Equal(t, time.Second, cfg.EmbedRetryDelay())
	assert.Equal(t, 5*time.Minute, cfg.LockTTL())
	assert.Equal(t, 30*time.Minute, cfg.ProcessingTimeout())
	assert.Equal(t, "inventory-data", cfg.DefaultResource)
}

func TestLoadConfig_Toggles(t *testing.T) {
	os.Setenv("ENABLE_API", "false")
	os.Setenv("ENABLE_WORKER", "false")
	os.Setenv("EMBEDDING_DIMENSION", "768")
	defer os.Unsetenv("ENABLE_API")
	defer os.Unsetenv("ENABLE_WORKER")
	defer os.Unsetenv("EMBEDDING_DIMENSION")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.False(t, cfg.EnableAPI)
	assert.False(t, cfg.EnableWorker)
	assert.Equal(t, 768, cfg.EmbeddingDimension)
}
