package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
	assert.Equal(t, "./data", cfg.Storage.Root)
	assert.Equal(t, 250, cfg.Study.ChunkSize)
	assert.Equal(t, 25, cfg.Study.ChunkOverlap)
	assert.Equal(t, 5, cfg.Study.RetrievalTopK)
	assert.Equal(t, 0.9, cfg.Study.DedupThreshold)
	assert.True(t, cfg.Study.NoiseFilter)
	assert.Equal(t, "auto", cfg.Embedding.Provider)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.InitialInterval)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("server:\n  port: 9090\nstudy:\n  chunk_size: 100\nadmin:\n  api_key: secret\n")
	require.NoError(t, os.WriteFile(path, body, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Study.ChunkSize)
	assert.Equal(t, "secret", cfg.Admin.APIKey)
	// Untouched keys keep their defaults.
	assert.Equal(t, 25, cfg.Study.ChunkOverlap)
}

func TestLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
