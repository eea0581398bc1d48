package config

import (
	"os"
	"time"
)

const (
	ServiceUnstructured = "unstructured"
	ServiceLocal        = "local"

	BackendChromem  = "chromem"
	BackendPostgres = "postgres"

	IdentityFilename    = "filename"
	IdentityContentHash = "content_hash"

	SinkLog   = "log"
	SinkRedis = "redis"
	SinkNone  = "none"
)

func applyDefaults(cfg *Config) {
	applyLLMDefaults(&cfg.LLM, "gpt-4o-mini")
	applyLLMDefaults(&cfg.EmbedLLM, "text-embedding-3-small")
	if cfg.EmbedLLM.BatchSize == 0 {
		cfg.EmbedLLM.BatchSize = 64
	}

	if cfg.VectorDB.Backend == "" {
		cfg.VectorDB.Backend = BackendChromem
	}
	if cfg.VectorDB.Path == "" {
		cfg.VectorDB.Path = "./chromemdb"
	}

	if cfg.Database.Schema == "" {
		cfg.Database.Schema = "public"
	}
	if cfg.Database.VectorDim == 0 {
		cfg.Database.VectorDim = 1536
	}
	if cfg.Database.Timeout == 0 {
		cfg.Database.Timeout = 30 * time.Second
	}

	p := &cfg.Partition
	if p.Service == "" {
		p.Service = ServiceLocal
		if p.APIKey != "" {
			p.Service = ServiceUnstructured
		}
	}
	if p.URL == "" {
		p.URL = "https://api.unstructuredapp.io"
	}
	if p.Strategy == "" {
		p.Strategy = "hi_res"
	}
	if p.ChunkingStrategy == "" {
		p.ChunkingStrategy = "by_similarity"
	}
	if p.CombineUnderNChars == 0 {
		p.CombineUnderNChars = 80
	}
	if p.MaxCharacters == 0 {
		p.MaxCharacters = 1000
	}
	if len(p.Languages) == 0 {
		p.Languages = []string{"eng"}
	}
	if p.SplitPDFConcurrency == 0 {
		p.SplitPDFConcurrency = 15
	}
	if p.SimilarityThreshold == 0 {
		p.SimilarityThreshold = 0.5
	}
	if p.Timeout == 0 {
		p.Timeout = 10 * time.Minute
	}

	if cfg.Review.Concurrency == 0 {
		cfg.Review.Concurrency = 20
	}
	if cfg.Review.Timeout == 0 {
		cfg.Review.Timeout = 60 * time.Second
	}

	if cfg.RAG.Queries == 0 {
		cfg.RAG.Queries = 3
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 4
	}
	if cfg.RAG.Domain == "" {
		cfg.RAG.Domain = "scientific paper"
	}
	if cfg.RAG.Identity == "" {
		cfg.RAG.Identity = IdentityFilename
	}
	if cfg.RAG.SearchConcurrency == 0 {
		cfg.RAG.SearchConcurrency = cfg.RAG.Queries
	}
	if cfg.RAG.ExpandTimeout == 0 {
		cfg.RAG.ExpandTimeout = 60 * time.Second
	}

	if cfg.Metadata.MaxChars == 0 {
		cfg.Metadata.MaxChars = 12000
	}

	if cfg.Trace.Sink == "" {
		cfg.Trace.Sink = SinkLog
	}
	if cfg.Trace.Stream == "" {
		cfg.Trace.Stream = "aipatent:traces"
	}
	if cfg.Trace.MaxLen == 0 {
		cfg.Trace.MaxLen = 10000
	}
	if cfg.Trace.Buffer == 0 {
		cfg.Trace.Buffer = 256
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 50
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func applyLLMDefaults(c *LLMConfig, model string) {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.BaseURL == "" && c.Provider == "ollama" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

func mergeWithEnv(cfg *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if cfg.LLM.Key == "" {
			cfg.LLM.Key = key
		}
		if cfg.EmbedLLM.Key == "" {
			cfg.EmbedLLM.Key = key
		}
	}
	if baseURL := os.Getenv("LLM_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if model := os.Getenv("EMBEDDING_MODEL_NAME"); model != "" {
		cfg.EmbedLLM.Model = model
	}
	if key := os.Getenv("UNSTRUCTURED_API_KEY"); key != "" {
		cfg.Partition.APIKey = key
	}
	if u := os.Getenv("UNSTRUCTURED_API_URL"); u != "" {
		cfg.Partition.URL = u
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Trace.RedisAddr = addr
	}
	if level := os.Getenv("AIPATENT_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
}
