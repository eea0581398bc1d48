package parser

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/h20-studio-tech/aipatent/internal/models"
)

var ErrNoEmbedder = errors.New("by_similarity chunking requires an embedder")

const chunkSeparator = "\n\n"

func (p *Parser) chunk(ctx context.Context, elements []models.Element, opts models.PartitionOptions) ([]models.Element, error) {
	maxChars := opts.MaxCharacters
	if maxChars <= 0 {
		maxChars = 1000
	}
	overlap := opts.Overlap
	if overlap < 0 || overlap >= maxChars {
		overlap = 0
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(maxChars),
		textsplitter.WithChunkOverlap(overlap),
	)

	var chunks []models.Element
	var err error
	switch opts.ChunkingStrategy {
	case models.ChunkingByPage:
		chunks, err = chunkByPage(elements, splitter)
	case models.ChunkingBySimilarity:
		chunks, err = p.chunkBySimilarity(ctx, elements, splitter, maxChars, opts.SimilarityThreshold)
	case models.ChunkingBasic, "":
		chunks, err = splitLong(elements, splitter, maxChars)
	default:
		return nil, fmt.Errorf("unknown chunking strategy: %q", opts.ChunkingStrategy)
	}
	if err != nil {
		return nil, err
	}

	samePage := opts.ChunkingStrategy == models.ChunkingByPage
	return combineUnder(chunks, opts.CombineUnderNChars, maxChars, samePage), nil
}

// splitLong breaks elements longer than maxChars, keeping the rest as is
func splitLong(elements []models.Element, splitter textsplitter.TextSplitter, maxChars int) ([]models.Element, error) {
	var out []models.Element
	for _, el := range elements {
		if len(el.Text) <= maxChars {
			out = append(out, el)
			continue
		}
		parts, err := splitter.SplitText(el.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to split element: %w", err)
		}
		for _, part := range parts {
			out = append(out, newElement(el.Type, part, el.Metadata.PageNumber))
		}
	}
	return out, nil
}

// chunkByPage joins each page's elements and splits the page text
func chunkByPage(elements []models.Element, splitter textsplitter.TextSplitter) ([]models.Element, error) {
	var out []models.Element
	for start := 0; start < len(elements); {
		page := elements[start].Metadata.PageNumber
		end := start
		var texts []string
		for end < len(elements) && elements[end].Metadata.PageNumber == page {
			texts = append(texts, elements[end].Text)
			end++
		}
		parts, err := splitter.SplitText(strings.Join(texts, chunkSeparator))
		if err != nil {
			return nil, fmt.Errorf("failed to split page %d: %w", page, err)
		}
		for _, part := range parts {
			out = append(out, newElement(models.ElementComposite, part, page))
		}
		start = end
	}
	return out, nil
}

// chunkBySimilarity merges neighbouring elements whose embeddings are close
func (p *Parser) chunkBySimilarity(ctx context.Context, elements []models.Element, splitter textsplitter.TextSplitter, maxChars int, threshold float64) ([]models.Element, error) {
	if p.embedder == nil {
		return nil, ErrNoEmbedder
	}
	pieces, err := splitLong(elements, splitter, maxChars)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(pieces))
	for i, el := range pieces {
		texts[i] = el.Text
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed elements: %w", err)
	}
	if len(vectors) != len(pieces) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d elements", len(vectors), len(pieces))
	}

	var out []models.Element
	for i, el := range pieces {
		if len(out) > 0 {
			last := &out[len(out)-1]
			fits := len(last.Text)+len(chunkSeparator)+len(el.Text) <= maxChars
			if fits && cosineSimilarity(vectors[i-1], vectors[i]) >= threshold {
				last.Text += chunkSeparator + el.Text
				continue
			}
		}
		out = append(out, newElement(models.ElementComposite, el.Text, el.Metadata.PageNumber))
	}
	return out, nil
}

// combineUnder folds chunks shorter than n characters into the chunk that follows
func combineUnder(chunks []models.Element, n, maxChars int, samePage bool) []models.Element {
	if n <= 0 {
		return chunks
	}
	var out []models.Element
	for _, el := range chunks {
		if len(out) > 0 {
			last := &out[len(out)-1]
			small := len(last.Text) < n
			fits := len(last.Text)+len(chunkSeparator)+len(el.Text) <= maxChars
			pageOK := !samePage || last.Metadata.PageNumber == el.Metadata.PageNumber
			if small && fits && pageOK {
				last.Text += chunkSeparator + el.Text
				last.Type = models.ElementComposite
				continue
			}
		}
		out = append(out, el)
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
