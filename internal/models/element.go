package models

// Element types emitted by partition services
const (
	ElementTitle         = "Title"
	ElementNarrativeText = "NarrativeText"
	ElementListItem      = "ListItem"
	ElementTable         = "Table"
	ElementCodeSnippet   = "CodeSnippet"
	ElementComposite     = "CompositeElement"
)

// Element is a single unit returned by a partition service
type Element struct {
	Type      string          `json:"type"`
	ElementID string          `json:"element_id"`
	Text      string          `json:"text"`
	Metadata  ElementMetadata `json:"metadata"`
}

type ElementMetadata struct {
	PageNumber int      `json:"page_number,omitempty"`
	Filename   string   `json:"filename,omitempty"`
	Languages  []string `json:"languages,omitempty"`
}

// PartitionOptions configures a partition service call
type PartitionOptions struct {
	Strategy            string
	ChunkingStrategy    string
	CombineUnderNChars  int
	MaxCharacters       int
	Overlap             int
	Languages           []string
	SplitPDFPage        bool
	SplitPDFAllowFailed bool
	SplitPDFConcurrency int
	SimilarityThreshold float64
}

// chunking strategies
const (
	ChunkingBasic        = "basic"
	ChunkingByPage       = "by_page"
	ChunkingBySimilarity = "by_similarity"
)
