package models

// DocumentType identifies the source format of ingested content
type DocumentType string

const (
	DocumentTypeText     DocumentType = "text"
	DocumentTypeHTML     DocumentType = "html"
	DocumentTypeMarkdown DocumentType = "markdown"
	DocumentTypePDF      DocumentType = "pdf"
)

// SemanticChunk is one retrieval-sized slice of a cleaned document.
// Text may carry a "[Context: a > b]" preamble when title bubbling is
// enabled; WordCount always reflects the un-prefixed payload.
type SemanticChunk struct {
	Text       string                 `json:"text"`
	Title      string                 `json:"title,omitempty"`
	Section    string                 `json:"section,omitempty"`
	Page       int                    `json:"page,omitempty"`
	ChunkIndex int                    `json:"chunk_index"`
	WordCount  int                    `json:"word_count"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// HasTitleContext reports whether a context preamble was prepended
func (c *SemanticChunk) HasTitleContext() bool {
	if c.Metadata == nil {
		return false
	}
	v, ok := c.Metadata["has_title_context"].(bool)
	return ok && v
}

// VectorRecord is the unit of storage in the vector index
type VectorRecord struct {
	ID      string        `json:"id" badgerhold:"key"`
	Vector  []float32     `json:"vector"`
	Payload VectorPayload `json:"payload"`
}

// VectorPayload is the metadata stored alongside each vector
type VectorPayload struct {
	Text            string `json:"text"`
	Page            int    `json:"page,omitempty"`
	ChunkIndex      int    `json:"chunk_index"`
	Title           string `json:"title,omitempty"`
	Section         string `json:"section,omitempty"`
	HasTitleContext bool   `json:"has_title_context"`
}
