package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.InDelta(t, 0.65, cfg.Dedup.Threshold, 1e-9)
	assert.False(t, cfg.Dedup.FailOpen)
	assert.InDelta(t, 0.3, cfg.Inference.AcceptanceFloor, 1e-9)
	assert.Equal(t, 10, cfg.Inference.FanOutLimit)
	assert.Equal(t, 4, cfg.Concurrency.DocumentWorkers)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = "9090"
mode = "prod"

[llm]
provider = "openai"
model = "gpt-4o"

[storage]
backend = "sqlite"
sqlite_path = "graph.db"

[dedup]
threshold = 0.8
fail_open = true

[inference]
fan_out_limit = 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "prod", cfg.Server.Mode)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "graph.db", cfg.Storage.SQLitePath)
	assert.InDelta(t, 0.8, cfg.Dedup.Threshold, 1e-9)
	assert.True(t, cfg.Dedup.FailOpen)
	assert.Equal(t, 5, cfg.Inference.FanOutLimit)

	// sections the file omits keep their defaults
	assert.InDelta(t, 0.3, cfg.Inference.AcceptanceFloor, 1e-9)
	assert.Equal(t, 4, cfg.Concurrency.DocumentWorkers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport="), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("LLM_PROVIDER", "claude")
	t.Setenv("DEDUP_THRESHOLD", "0.9")
	t.Setenv("DEDUP_FAIL_OPEN", "true")
	t.Setenv("INFERENCE_PAIR_CONCURRENCY", "8")
	t.Setenv("DOCUMENT_WORKERS", "2")

	cfg := FromEnv()
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "claude", cfg.LLM.Provider)
	assert.InDelta(t, 0.9, cfg.Dedup.Threshold, 1e-9)
	assert.True(t, cfg.Dedup.FailOpen)
	assert.Equal(t, 8, cfg.Inference.PairConcurrency)
	assert.Equal(t, 2, cfg.Concurrency.DocumentWorkers)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = \"9090\"\n"), 0o644))
	t.Setenv("PORT", "6060")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "6060", cfg.Server.Port)
}
