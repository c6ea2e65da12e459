package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the document QA server
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Chunker   ChunkerConfig   `mapstructure:"chunker"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	LLM       LLMConfig       `mapstructure:"llm"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Usage     UsageConfig     `mapstructure:"usage"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// AdminConfig holds the optional API key guarding admin endpoints
type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// StorageConfig holds file and index storage paths
type StorageConfig struct {
	UploadsDir string `mapstructure:"uploads_dir"`
	IndexPath  string `mapstructure:"index_path"`
}

// IngestConfig bounds what a single upload may cost to process
type IngestConfig struct {
	MaxFileSizeMB int `mapstructure:"max_file_size_mb"`
	MaxPages      int `mapstructure:"max_pages"`
}

// ChunkerConfig controls how page text is split into indexed segments
type ChunkerConfig struct {
	ChunkSize     int `mapstructure:"chunk_size"`
	ChunkOverlap  int `mapstructure:"chunk_overlap"`
	MinChunkChars int `mapstructure:"min_chunk_chars"`
	MaxChunks     int `mapstructure:"max_chunks"`
}

// RetrievalConfig controls similarity search behavior
type RetrievalConfig struct {
	TopK                int     `mapstructure:"top_k"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	FallbackK           int     `mapstructure:"fallback_k"`
}

// LLMConfig holds Gemini model configuration
type LLMConfig struct {
	GoogleAPIKey    string        `mapstructure:"google_api_key"`
	ChatModel       string        `mapstructure:"chat_model"`
	EmbedModel      string        `mapstructure:"embed_model"`
	EmbedDimension  int           `mapstructure:"embed_dimension"`
	Temperature     float32       `mapstructure:"temperature"`
	MaxOutputTokens int32         `mapstructure:"max_output_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// RateLimitConfig holds sliding-window and cooldown settings
type RateLimitConfig struct {
	MaxRequestsPerMinute int           `mapstructure:"max_requests_per_minute"`
	Window               time.Duration `mapstructure:"window"`
	Cooldown             time.Duration `mapstructure:"cooldown"`
}

// UsageConfig holds token quota settings
type UsageConfig struct {
	MaxDailyTokens int `mapstructure:"max_daily_tokens"`
}

// CacheConfig holds response cache settings
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: nested keys map to underscores, so
	// llm.google_api_key is DOCQA_LLM_GOOGLE_API_KEY.
	v.SetEnvPrefix("DOCQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("admin.api_key", "")

	v.SetDefault("storage.uploads_dir", "./data/uploads")
	v.SetDefault("storage.index_path", "./data/index.db")

	v.SetDefault("ingest.max_file_size_mb", 50)
	v.SetDefault("ingest.max_pages", 50)

	v.SetDefault("chunker.chunk_size", 1000)
	v.SetDefault("chunker.chunk_overlap", 150)
	v.SetDefault("chunker.min_chunk_chars", 100)
	v.SetDefault("chunker.max_chunks", 100)

	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.similarity_threshold", 1.2)
	v.SetDefault("retrieval.fallback_k", 3)

	v.SetDefault("llm.google_api_key", "")
	v.SetDefault("llm.chat_model", "gemini-2.5-flash")
	v.SetDefault("llm.embed_model", "gemini-embedding-001")
	v.SetDefault("llm.embed_dimension", 768)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_output_tokens", 1000)
	v.SetDefault("llm.timeout", "60s")

	v.SetDefault("rate_limit.max_requests_per_minute", 15)
	v.SetDefault("rate_limit.window", "60s")
	v.SetDefault("rate_limit.cooldown", "5s")

	v.SetDefault("usage.max_daily_tokens", 50000)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "1h")
}

// Validate checks configuration values that have no workable fallback
func (c *Config) Validate() error {
	if c.LLM.GoogleAPIKey == "" {
		return fmt.Errorf("google api key is required (set DOCQA_LLM_GOOGLE_API_KEY or llm.google_api_key)")
	}
	if c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunker.chunk_overlap (%d) must be smaller than chunker.chunk_size (%d)",
			c.Chunker.ChunkOverlap, c.Chunker.ChunkSize)
	}
	return nil
}

// MaxFileSizeBytes returns the upload size limit in bytes
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Ingest.MaxFileSizeMB) * 1024 * 1024
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
