package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/h20-studio-tech/aipatent/internal/corpus"
	"github.com/h20-studio-tech/aipatent/internal/helper"
	"github.com/h20-studio-tech/aipatent/internal/models"
	"github.com/h20-studio-tech/aipatent/internal/partition"
	"github.com/h20-studio-tech/aipatent/internal/rag"
)

const (
	msgUploaded = "File uploaded successfully"
	msgExists   = "file exists in vectorstore, request a search instead"
	msgEmpty    = "file processed but no usable content was found"
)

type uploadResponse struct {
	Filename string           `json:"filename"`
	Message  string           `json:"message"`
	Status   rag.IngestStatus `json:"status"`
	Table    string           `json:"table"`
	Stored   int              `json:"stored"`
}

type searchResponse struct {
	Query     string   `json:"query"`
	Message   string   `json:"message"`
	TraceID   string   `json:"trace_id"`
	Questions []string `json:"questions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.config.MaxUploadMB << 20
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	filename := filepath.Base(header.Filename)
	s.keepUpload(filename, content)

	res, err := s.engine.Ingest(r.Context(), content, filename)
	if err != nil {
		var perr *partition.PartitionError
		if errors.As(err, &perr) {
			log.Error().Err(err).Str("filename", filename).Msg("partition failed")
		} else {
			log.Error().Err(err).Str("filename", filename).Msg("ingest failed")
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	message := msgUploaded
	switch res.Status {
	case rag.StatusAlreadyProcessed:
		message = msgExists
	case rag.StatusEmpty:
		message = msgEmpty
	}
	respondJSON(w, http.StatusOK, uploadResponse{
		Filename: filename,
		Message:  message,
		Status:   res.Status,
		Table:    res.TableName,
		Stored:   res.Stored,
	})
}

// keepUpload stores a copy of the upload when an upload dir is configured
func (s *Server) keepUpload(filename string, content []byte) {
	if s.config.UploadDir == "" {
		return
	}
	if err := helper.CreateFolder(s.config.UploadDir); err != nil {
		log.Warn().Err(err).Msg("failed to create upload dir")
		return
	}
	if err := os.WriteFile(filepath.Join(s.config.UploadDir, filename), content, 0o644); err != nil {
		log.Warn().Err(err).Str("filename", filename).Msg("failed to keep upload")
	}
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	tables, err := s.engine.Tables(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tables == nil {
		tables = []string{}
	}
	respondJSON(w, http.StatusOK, map[string][]string{"response": tables})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.engine.Drop(r.Context(), name); err != nil {
		if errors.Is(err, corpus.ErrTableNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "table": name})
}

func (s *Server) handleMultiQuerySearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("query"))
	target := strings.TrimSpace(q.Get("target_file"))
	if query == "" || target == "" {
		respondError(w, http.StatusBadRequest, "query and target_file are required")
		return
	}
	step, err := models.ParseGenerationStep(q.Get("step"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.engine.Query(r.Context(), query, target, step)
	if err != nil {
		if errors.Is(err, corpus.ErrTableNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Error().Err(err).Str("target", target).Msg("multiquery search failed")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	questions := res.Queries
	if questions == nil {
		questions = []string{}
	}
	respondJSON(w, http.StatusOK, searchResponse{
		Query:     query,
		Message:   res.Text,
		TraceID:   res.TraceID,
		Questions: questions,
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
