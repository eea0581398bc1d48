// Package unstructured is a client for the hosted Unstructured partition API.
package unstructured

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/h20-studio-tech/aipatent/internal/config"
	"github.com/h20-studio-tech/aipatent/internal/models"
)

const partitionPath = "/general/v0/general"

// APIError is returned for non 2xx responses
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("partition request failed: %d, %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(cfg *config.PartitionConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// WithHTTPClient replaces the underlying http client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Partition uploads the document and returns the elements in the order the
// service emits them.
func (c *Client) Partition(ctx context.Context, content []byte, filename string, opts models.PartitionOptions) ([]models.Element, error) {
	body, contentType, err := encodeForm(content, filepath.Base(filename), opts)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+partitionPath, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("unstructured-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call partition service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var elements []models.Element
	if err := json.NewDecoder(resp.Body).Decode(&elements); err != nil {
		return nil, fmt.Errorf("failed to decode partition response: %w", err)
	}
	log.Debug().
		Str("filename", filename).
		Int("elements", len(elements)).
		Dur("took", time.Since(start)).
		Msg("partition service responded")
	return elements, nil
}

func encodeForm(content []byte, filename string, opts models.PartitionOptions) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("files", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}

	fields := [][2]string{
		{"strategy", opts.Strategy},
		{"chunking_strategy", opts.ChunkingStrategy},
	}
	if opts.CombineUnderNChars > 0 {
		fields = append(fields, [2]string{"combine_under_n_chars", strconv.Itoa(opts.CombineUnderNChars)})
	}
	if opts.MaxCharacters > 0 {
		fields = append(fields, [2]string{"max_characters", strconv.Itoa(opts.MaxCharacters)})
	}
	if opts.Overlap > 0 {
		fields = append(fields, [2]string{"overlap", strconv.Itoa(opts.Overlap)})
	}
	if opts.ChunkingStrategy == models.ChunkingBySimilarity && opts.SimilarityThreshold > 0 {
		fields = append(fields, [2]string{"similarity_threshold", strconv.FormatFloat(opts.SimilarityThreshold, 'f', -1, 64)})
	}
	for _, lang := range opts.Languages {
		fields = append(fields, [2]string{"languages", lang})
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
