package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"

	"github.com/h20-studio-tech/aipatent/internal/chromemdb"
	"github.com/h20-studio-tech/aipatent/internal/config"
	"github.com/h20-studio-tech/aipatent/internal/corpus"
	"github.com/h20-studio-tech/aipatent/internal/db"
	"github.com/h20-studio-tech/aipatent/internal/embedding"
	"github.com/h20-studio-tech/aipatent/internal/expand"
	"github.com/h20-studio-tech/aipatent/internal/llmservice"
	"github.com/h20-studio-tech/aipatent/internal/metadata"
	"github.com/h20-studio-tech/aipatent/internal/parser"
	"github.com/h20-studio-tech/aipatent/internal/partition"
	"github.com/h20-studio-tech/aipatent/internal/rag"
	"github.com/h20-studio-tech/aipatent/internal/review"
	"github.com/h20-studio-tech/aipatent/internal/trace"
	"github.com/h20-studio-tech/aipatent/internal/unstructured"
)

// storage is the corpus side of the app, enough for table maintenance
type storage struct {
	embedder embeddings.Embedder
	manager  *corpus.Manager
	chromem  *chromemdb.VectorDBManager
	bunDB    *bun.DB
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, err
	}

	s := &storage{embedder: embedder}
	var backend corpus.Backend
	switch cfg.VectorDB.Backend {
	case config.BackendPostgres:
		s.bunDB = db.NewDB(db.ConnectDB(&cfg.Database), cfg.Database.Debug)
		store := db.NewStore(s.bunDB, &cfg.Database)
		if err := store.InitDB(ctx); err != nil {
			_ = s.bunDB.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		backend = store
	default:
		s.chromem, err = chromemdb.NewVectorDBManager(&cfg.VectorDB, embedding.ChromemFunc(embedder))
		if err != nil {
			return nil, err
		}
		backend = s.chromem
	}

	s.manager = corpus.NewManager(backend, embedder, cfg.RAG.Identity)
	return s, nil
}

func (s *storage) Close() error {
	if s.bunDB != nil {
		return s.bunDB.Close()
	}
	return nil
}

type app struct {
	*storage
	engine     *rag.Engine
	filter     *review.Filter
	dispatcher *trace.Dispatcher
	redis      *redis.Client
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{storage: st}

	model, err := llmservice.NewModel(&cfg.LLM)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	llm := llmservice.NewClient(model, &cfg.LLM)

	var service partition.Service
	if cfg.Partition.Service == config.ServiceUnstructured {
		service = unstructured.New(&cfg.Partition)
	} else {
		service = parser.New(st.embedder)
	}
	log.Debug().Str("service", cfg.Partition.Service).Str("backend", cfg.VectorDB.Backend).Msg("partition service selected")

	sink, err := a.traceSink(ctx, &cfg.Trace)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	a.dispatcher = trace.NewDispatcher(sink, cfg.Trace.Buffer)

	a.filter = review.NewFilter(llm, &cfg.Review)
	expander := expand.NewExpander(llm, cfg.RAG.Domain, cfg.RAG.ExpandTimeout)
	retriever := rag.NewRetriever(st.manager, expander, a.dispatcher, &cfg.RAG)

	opts := []rag.EngineOption{rag.WithAnswerer(llm)}
	if cfg.Metadata.Enabled {
		opts = append(opts, rag.WithExtractor(metadata.NewExtractor(llm, cfg.Metadata.MaxChars)))
	}
	a.engine = rag.NewEngine(
		partition.NewAdapter(service, st.manager, &cfg.Partition),
		a.filter,
		st.manager,
		retriever,
		cfg.RAG.Queries,
		opts...,
	)
	return a, nil
}

func (a *app) traceSink(ctx context.Context, cfg *config.TraceConfig) (trace.Sink, error) {
	switch cfg.Sink {
	case config.SinkRedis:
		rdb, err := trace.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		a.redis = rdb
		return trace.NewRedisSink(rdb, cfg.Stream, cfg.MaxLen), nil
	case config.SinkNone:
		return trace.NopSink{}, nil
	default:
		return trace.LogSink{}, nil
	}
}

func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if a.dispatcher != nil {
		errs = append(errs, a.dispatcher.Close(ctx))
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.storage.Close())
	return errors.Join(errs...)
}
