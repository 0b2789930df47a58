package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

type ServerConfig struct {
	Port string `toml:"port"`
	Mode string `toml:"mode"` // dev or prod, controls logger output
}

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
}

type StorageConfig struct {
	// Backend is one of memory, sqlite, neo4j.
	Backend       string `toml:"backend"`
	SQLitePath    string `toml:"sqlite_path"`
	Neo4jURI      string `toml:"neo4j_uri"`
	Neo4jUser     string `toml:"neo4j_user"`
	Neo4jPassword string `toml:"neo4j_password"`
}

type DedupConfig struct {
	// Threshold is the minimum cosine similarity at which a candidate is
	// treated as a restatement of an existing node.
	Threshold float64 `toml:"threshold"`
	// FailOpen inserts candidates without a dedup scan when the embedding
	// gateway is down. Default is fail-closed: reject and let the caller
	// retry.
	FailOpen bool `toml:"fail_open"`
}

type InferenceConfig struct {
	// AcceptanceFloor drops proposed relations weaker than this.
	AcceptanceFloor float64 `toml:"acceptance_floor"`
	// FanOutLimit caps relations kept per newly created node.
	FanOutLimit int `toml:"fan_out_limit"`
	// PairConcurrency bounds simultaneous inference calls for one batch.
	PairConcurrency int `toml:"pair_concurrency"`
}

type ConcurrencyConfig struct {
	// DocumentWorkers bounds how many documents are processed in parallel.
	DocumentWorkers int `toml:"document_workers"`
}

type PromptConfig struct {
	Extraction string `toml:"extraction"`
	Inference  string `toml:"inference"`
}

type Config struct {
	Server      ServerConfig      `toml:"server"`
	LLM         LLMConfig         `toml:"llm"`
	Storage     StorageConfig     `toml:"storage"`
	Dedup       DedupConfig       `toml:"dedup"`
	Inference   InferenceConfig   `toml:"inference"`
	Concurrency ConcurrencyConfig `toml:"concurrency"`
	Prompts     PromptConfig      `toml:"prompts"`
}

func Default() *Config {
	return &Config{
		Server:      ServerConfig{Port: "8080", Mode: "dev"},
		Storage:     StorageConfig{Backend: "memory", SQLitePath: "knowledge.db"},
		Dedup:       DedupConfig{Threshold: 0.65},
		Inference:   InferenceConfig{AcceptanceFloor: 0.3, FanOutLimit: 10, PairConcurrency: 4},
		Concurrency: ConcurrencyConfig{DocumentWorkers: 4},
	}
}

// Load reads a TOML file over the defaults and then applies env overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// FromEnv builds a config without a file, for deployments that configure
// everything through the environment.
func FromEnv() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.Mode, "SERVER_MODE")
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.EmbeddingModel, "LLM_EMBEDDING_MODEL")
	setString(&c.LLM.APIKey, "LLM_API_KEY")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")
	setString(&c.Storage.Backend, "STORAGE_BACKEND")
	setString(&c.Storage.SQLitePath, "SQLITE_PATH")
	setString(&c.Storage.Neo4jURI, "NEO4J_URI")
	setString(&c.Storage.Neo4jUser, "NEO4J_USER")
	setString(&c.Storage.Neo4jPassword, "NEO4J_PASSWORD")
	setFloat(&c.Dedup.Threshold, "DEDUP_THRESHOLD")
	if v := os.Getenv("DEDUP_FAIL_OPEN"); v != "" {
		c.Dedup.FailOpen = v == "true" || v == "1"
	}
	setFloat(&c.Inference.AcceptanceFloor, "INFERENCE_ACCEPTANCE_FLOOR")
	setInt(&c.Inference.FanOutLimit, "INFERENCE_FAN_OUT_LIMIT")
	setInt(&c.Inference.PairConcurrency, "INFERENCE_PAIR_CONCURRENCY")
	setInt(&c.Concurrency.DocumentWorkers, "DOCUMENT_WORKERS")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}
