package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	EmbedLLM  LLMConfig       `yaml:"embed_llm"`
	VectorDB  VectorDBConfig  `yaml:"vectordb"`
	Database  DatabaseConfig  `yaml:"database"`
	Partition PartitionConfig `yaml:"partition"`
	Review    ReviewConfig    `yaml:"review"`
	RAG       RAGConfig       `yaml:"rag"`
	Metadata  MetadataConfig  `yaml:"metadata"`
	Trace     TraceConfig     `yaml:"trace"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// LLMConfig describes a chat or embedding model endpoint
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // openai or ollama
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Key         string        `yaml:"key"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	RateLimit   float64       `yaml:"rate_limit"` // requests per second, 0 disables
	BatchSize   int           `yaml:"batch_size"`
}

type VectorDBConfig struct {
	Backend       string `yaml:"backend"` // chromem or postgres
	Path          string `yaml:"path"`
	InMemory      bool   `yaml:"in_memory"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
	ExportDir     string `yaml:"export_dir"`
}

type DatabaseConfig struct {
	DSN       string        `yaml:"dsn"`
	Password  string        `yaml:"password"`
	Schema    string        `yaml:"schema"`
	VectorDim int           `yaml:"vector_dim"`
	Timeout   time.Duration `yaml:"timeout"`
	Debug     bool          `yaml:"debug"`
}

type PartitionConfig struct {
	Service             string        `yaml:"service"` // unstructured or local
	URL                 string        `yaml:"url"`
	APIKey              string        `yaml:"api_key"`
	Strategy            string        `yaml:"strategy"`
	ChunkingStrategy    string        `yaml:"chunking_strategy"`
	CombineUnderNChars  int           `yaml:"combine_under_n_chars"`
	MaxCharacters       int           `yaml:"max_characters"`
	Overlap             int           `yaml:"overlap"`
	Languages           []string      `yaml:"languages"`
	SplitPDFPage        bool          `yaml:"split_pdf_page"`
	SplitPDFAllowFailed bool          `yaml:"split_pdf_allow_failed"`
	SplitPDFConcurrency int           `yaml:"split_pdf_concurrency"`
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	ArtifactDir         string        `yaml:"artifact_dir"`
	Timeout             time.Duration `yaml:"timeout"`
}

type ReviewConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

type RAGConfig struct {
	Queries           int           `yaml:"queries"`
	TopK              int           `yaml:"top_k"`
	Domain            string        `yaml:"domain"`
	Identity          string        `yaml:"identity"` // filename or content_hash
	SearchConcurrency int           `yaml:"search_concurrency"`
	ExpandTimeout     time.Duration `yaml:"expand_timeout"`
	Dedupe            bool          `yaml:"dedupe"`
}

type MetadataConfig struct {
	Enabled  bool `yaml:"enabled"`
	MaxChars int  `yaml:"max_chars"`
}

type TraceConfig struct {
	Sink      string `yaml:"sink"` // log, redis or none
	RedisAddr string `yaml:"redis_addr"`
	Stream    string `yaml:"stream"`
	MaxLen    int64  `yaml:"max_len"`
	Buffer    int    `yaml:"buffer"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
	UploadDir   string `yaml:"upload_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	cfg := base()
	applyDefaults(cfg)
	return cfg
}

// base holds the boolean defaults that yaml cannot tell apart from unset
func base() *Config {
	return &Config{
		Partition: PartitionConfig{
			SplitPDFPage:        true,
			SplitPDFAllowFailed: true,
		},
		Review: ReviewConfig{Enabled: true},
		Log:    LogConfig{Pretty: true},
	}
}

// LoadConfig reads the yaml file at path, merges environment overrides and
// fills unset values with defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := base()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	mergeWithEnv(cfg)
	applyDefaults(cfg)

	return cfg, nil
}
