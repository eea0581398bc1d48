package parser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"github.com/h20-studio-tech/aipatent/internal/models"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoText            = errors.New("no text could be extracted")
)

const defaultPageNumber = 1

// Parser partitions documents in process. It is the local counterpart of
// the hosted partition API and emits the same element shape.
type Parser struct {
	embedder embeddings.Embedder
}

// New returns a parser. The embedder is only needed for by_similarity chunking.
func New(embedder embeddings.Embedder) *Parser {
	return &Parser{embedder: embedder}
}

// Partition extracts elements from content and groups them with the
// configured chunking strategy.
func (p *Parser) Partition(ctx context.Context, content []byte, filename string, opts models.PartitionOptions) ([]models.Element, error) {
	if len(content) == 0 {
		return nil, ErrNoText
	}

	elements, err := p.extract(ctx, content, filename, opts)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, fmt.Errorf("%s: %w", filename, ErrNoText)
	}
	log.Debug().Str("filename", filename).Int("elements", len(elements)).Msg("extracted elements")

	chunks, err := p.chunk(ctx, elements, opts)
	if err != nil {
		return nil, err
	}

	base := filepath.Base(filename)
	for i := range chunks {
		chunks[i].Metadata.Filename = base
		chunks[i].Metadata.Languages = opts.Languages
		chunks[i].ElementID = elementID(base, i, chunks[i])
	}
	return chunks, nil
}

func (p *Parser) extract(ctx context.Context, content []byte, filename string, opts models.PartitionOptions) ([]models.Element, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return parsePDF(ctx, content, opts)
	case ".docx":
		return parseDOCX(content)
	case ".pptx":
		return parsePPTX(content)
	case ".xlsx":
		return parseXLSX(content)
	case ".xlsm", ".xltx", ".xltm":
		return parseExcelize(content)
	case ".md", ".markdown":
		return parseMarkdown(content)
	case ".html", ".htm":
		return parseHTML(content)
	case ".txt", ".text":
		return parseText(content), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// elementID is stable for the same document, position and text
func elementID(filename string, index int, el models.Element) string {
	h := sha256.New()
	h.Write([]byte(filename))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(index)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(el.Metadata.PageNumber)))
	h.Write([]byte{0})
	h.Write([]byte(el.Text))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

func newElement(typ, text string, page int) models.Element {
	return models.Element{
		Type:     typ,
		Text:     text,
		Metadata: models.ElementMetadata{PageNumber: page},
	}
}

// paragraphs splits text on blank lines and collapses inner whitespace
func paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.Join(strings.Fields(block), " ")
		if block != "" {
			out = append(out, block)
		}
	}
	return out
}

// classify labels short unterminated lines as titles
func classify(text string) string {
	if len(text) < 80 && !strings.ContainsAny(text[len(text)-1:], ".:;,") {
		return models.ElementTitle
	}
	return models.ElementNarrativeText
}
