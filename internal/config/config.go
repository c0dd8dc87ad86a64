package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for StudyDesk
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Study     StudyConfig     `mapstructure:"study"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Retry     RetryConfig     `mapstructure:"retry"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// AdminConfig holds admin authentication configuration
type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// StorageConfig holds on-disk layout configuration. The catalog database
// and the per-document index sidecars live under Root.
type StorageConfig struct {
	Root string `mapstructure:"root"`
}

// StudyConfig holds chunking, retrieval and generation tuning
type StudyConfig struct {
	ChunkSize      int     `mapstructure:"chunk_size"`
	ChunkOverlap   int     `mapstructure:"chunk_overlap"`
	RetrievalTopK  int     `mapstructure:"retrieval_top_k"`
	DedupThreshold float64 `mapstructure:"dedup_threshold"`
	NoiseFilter    bool    `mapstructure:"noise_filter"`
}

// EmbeddingConfig selects the embedding backend. Provider "ollama" uses a
// local model; "openai" delegates to the remote API; "auto" probes the
// local server first and falls back to remote.
type EmbeddingConfig struct {
	Provider      string `mapstructure:"provider"`
	OllamaBaseURL string `mapstructure:"ollama_base_url"`
	Model         string `mapstructure:"model"`
	RemoteModel   string `mapstructure:"remote_model"`
}

// LLMConfig holds text/JSON generation configuration
type LLMConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// RetryConfig parameterizes the capped exponential backoff applied to
// transient LLM failures.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	MaxElapsed      time.Duration `mapstructure:"max_elapsed"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("STUDYDESK")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("admin.api_key", "")

	v.SetDefault("storage.root", "./data")

	v.SetDefault("study.chunk_size", 250)
	v.SetDefault("study.chunk_overlap", 25)
	v.SetDefault("study.retrieval_top_k", 5)
	v.SetDefault("study.dedup_threshold", 0.9)
	v.SetDefault("study.noise_filter", true)

	v.SetDefault("embedding.provider", "auto")
	v.SetDefault("embedding.ollama_base_url", "http://localhost:11434")
	v.SetDefault("embedding.model", "nomic-embed-text")
	v.SetDefault("embedding.remote_model", "text-embedding-3-small")

	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")

	v.SetDefault("retry.max_attempts", 4)
	v.SetDefault("retry.initial_interval", time.Second)
	v.SetDefault("retry.max_interval", 10*time.Second)
	v.SetDefault("retry.max_elapsed", time.Minute)
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
