package model

import "github.com/google/uuid"

// Chunk is a bounded piece of extracted document text.
// Chunks of all documents are pooled into one ordered sequence,
// PoolIndex is the position inside that pool.
type Chunk struct {
	Content     string    `json:"content"`
	DocumentRID uuid.UUID `json:"document_rid"`
	ChunkIndex  int       `json:"chunk_index"`
	PoolIndex   int       `json:"pool_index"`
}
