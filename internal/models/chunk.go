package models

import "strings"

// Chunk represents a partitioned span of document text with its provenance
type Chunk struct {
	ElementID  string `json:"element_id"`
	Text       string `json:"text"`
	PageNumber int    `json:"page_number"`
	Filename   string `json:"filename"`
	ChunkID    int    `json:"chunk_id"`
}

// IsBlank reports whether the chunk has no indexable text
func (c Chunk) IsBlank() bool {
	return strings.TrimSpace(c.Text) == ""
}

// ReviewedChunk is a chunk with the quality filter verdict attached
type ReviewedChunk struct {
	Chunk
	Relevant bool `json:"relevant"`
}

// IndexedRecord is one row of a corpus table
type IndexedRecord struct {
	ElementID  string    `json:"element_id"`
	Text       string    `json:"text"`
	PageNumber int       `json:"page_number"`
	Filename   string    `json:"filename"`
	ChunkID    int       `json:"chunk_id"`
	Vector     []float32 `json:"vector,omitempty"`
}

// NewIndexedRecord copies the chunk fields and attaches the embedding
func NewIndexedRecord(c Chunk, vector []float32) IndexedRecord {
	return IndexedRecord{
		ElementID:  c.ElementID,
		Text:       c.Text,
		PageNumber: c.PageNumber,
		Filename:   c.Filename,
		ChunkID:    c.ChunkID,
		Vector:     vector,
	}
}

// MultiQuery is the structured output of query expansion
type MultiQuery struct {
	Questions []string `json:"questions"`
}

// Extraction holds document level metadata pulled out by the LLM
type Extraction struct {
	Methods               []string `json:"method"`
	HypotheticalQuestions []string `json:"hypothetical_questions"`
	Keywords              []string `json:"keywords"`
}
