// Package server exposes ingestion and retrieval over HTTP.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/h20-studio-tech/aipatent/internal/config"
	"github.com/h20-studio-tech/aipatent/internal/metrics"
	"github.com/h20-studio-tech/aipatent/internal/models"
	"github.com/h20-studio-tech/aipatent/internal/rag"
)

// Engine is the part of rag.Engine served over HTTP
type Engine interface {
	Ingest(ctx context.Context, content []byte, filename string) (*rag.IngestResult, error)
	Query(ctx context.Context, text, target string, step models.GenerationStep) (*rag.SearchResult, error)
	Tables(ctx context.Context) ([]string, error)
	Drop(ctx context.Context, name string) error
}

type Server struct {
	engine Engine
	config *config.ServerConfig
	server *http.Server
}

func NewServer(engine Engine, cfg *config.ServerConfig) *Server {
	return &Server{engine: engine, config: cfg}
}

// Routes builds the router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/documents/", s.handleUpload)
		r.Get("/documents/", s.handleListDocuments)
		r.Delete("/documents/{name}", s.handleDeleteDocument)
		r.Post("/rag/multiquery-search/", s.handleMultiQuerySearch)
	})
	return r
}

// Start serves until the server is stopped
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("addr", s.config.Addr).Msg("starting server")
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
		log.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
