package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/h20-studio-tech/aipatent/internal/models"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	add := func(field, msg string) {
		errors = append(errors, ValidationError{Field: field, Message: msg})
	}

	providers := map[string][]string{
		"llm":       {"openai", "ollama"},
		"embed_llm": {"openai", "ollama", "hash"},
	}
	for name, llm := range map[string]LLMConfig{"llm": c.LLM, "embed_llm": c.EmbedLLM} {
		if !slices.Contains(providers[name], llm.Provider) {
			add(name+".provider", "provider must be one of "+strings.Join(providers[name], ", "))
		}
		if llm.Provider == "openai" && llm.Key == "" {
			add(name+".key", "API key is required for the openai provider")
		}
		if llm.Temperature < 0 || llm.Temperature > 2 {
			add(name+".temperature", "temperature must be between 0 and 2")
		}
		if llm.RateLimit < 0 {
			add(name+".rate_limit", "rate_limit must not be negative")
		}
	}

	switch c.VectorDB.Backend {
	case BackendChromem:
		if !c.VectorDB.InMemory && c.VectorDB.Path == "" {
			add("vectordb.path", "path is required for a persistent chromem database")
		}
	case BackendPostgres:
		if c.Database.DSN == "" {
			add("database.dsn", "dsn is required for the postgres backend")
		} else if _, err := url.Parse(c.Database.DSN); err != nil {
			add("database.dsn", "invalid database URL")
		}
		if c.Database.VectorDim < 1 {
			add("database.vector_dim", "vector_dim must be positive")
		}
	default:
		add("vectordb.backend", "backend must be chromem or postgres")
	}

	switch c.Partition.Service {
	case ServiceUnstructured:
		if c.Partition.APIKey == "" {
			add("partition.api_key", "API key is required for the unstructured service")
		}
		if _, err := url.ParseRequestURI(c.Partition.URL); err != nil {
			add("partition.url", "invalid partition service URL")
		}
	case ServiceLocal:
	default:
		add("partition.service", "service must be unstructured or local")
	}
	if !slices.Contains([]string{models.ChunkingBasic, models.ChunkingByPage, models.ChunkingBySimilarity}, c.Partition.ChunkingStrategy) {
		add("partition.chunking_strategy", "chunking_strategy must be basic, by_page or by_similarity")
	}
	if c.Partition.Overlap < 0 || c.Partition.Overlap >= c.Partition.MaxCharacters {
		add("partition.overlap", "overlap must be between 0 and max_characters")
	}
	if c.Partition.SplitPDFConcurrency < 1 {
		add("partition.split_pdf_concurrency", "split_pdf_concurrency must be positive")
	}

	if c.Review.Concurrency < 1 {
		add("review.concurrency", "concurrency must be positive")
	}

	if c.RAG.Queries < 1 {
		add("rag.queries", "queries must be positive")
	}
	if c.RAG.TopK < 1 {
		add("rag.top_k", "top_k must be positive")
	}
	if c.RAG.Identity != IdentityFilename && c.RAG.Identity != IdentityContentHash {
		add("rag.identity", "identity must be filename or content_hash")
	}

	switch c.Trace.Sink {
	case SinkLog, SinkNone:
	case SinkRedis:
		if c.Trace.RedisAddr == "" {
			add("trace.redis_addr", "redis_addr is required for the redis sink")
		}
	default:
		add("trace.sink", "sink must be log, redis or none")
	}

	return errors
}
