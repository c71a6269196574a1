package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/siherrmann/askpdf/helper"
	"github.com/siherrmann/askpdf/model"
)

// ExtractFunc extracts the plain text of a document.
// A document without extractable text returns an empty string and no error.
type ExtractFunc func(content []byte) (string, error)

// ChunkFunc splits text into ordered chunks bounded for the model context.
// It must be deterministic, the same text always yields the same chunks.
type ChunkFunc func(text string) ([]string, error)

// EmbedFunc generates one embedding per input text
type EmbedFunc func(texts []string) ([][]float32, error)

// Pipeline combines text extraction and chunking
type Pipeline struct {
	Extractor ExtractFunc
	Chunker   ChunkFunc
}

// NewPipeline creates a new processing pipeline
func NewPipeline(extractor ExtractFunc, chunker ChunkFunc) *Pipeline {
	return &Pipeline{
		Extractor: extractor,
		Chunker:   chunker,
	}
}

// DefaultPipeline extracts PDF text and chunks it into chunks of at most chunkSize characters.
// Pages that fail to decode are reported to logger.
func DefaultPipeline(chunkSize int, logger *slog.Logger) *Pipeline {
	return NewPipeline(PDFExtractor(logger), TextChunker(chunkSize))
}

// ExtractText extracts the text of the document.
func (p *Pipeline) ExtractText(doc *model.Document) (string, error) {
	if p.Extractor == nil {
		return "", helper.NewError("extract text", fmt.Errorf("extractor not set"))
	}

	text, err := p.Extractor(doc.Content)
	if err != nil {
		return "", helper.NewError("extract text", err)
	}
	return text, nil
}

// ChunkText splits the extracted text of the document into chunks.
// ChunkIndex is the position inside the document, PoolIndex is left to the caller.
func (p *Pipeline) ChunkText(doc *model.Document, text string) ([]*model.Chunk, error) {
	if p.Chunker == nil {
		return nil, helper.NewError("chunk text", fmt.Errorf("chunker not set"))
	}

	contents, err := p.Chunker(text)
	if err != nil {
		return nil, helper.NewError("chunk text", err)
	}

	chunks := make([]*model.Chunk, 0, len(contents))
	for i, content := range contents {
		chunks = append(chunks, &model.Chunk{
			Content:     content,
			DocumentRID: doc.RID,
			ChunkIndex:  i,
		})
	}
	return chunks, nil
}

// Process extracts and chunks the document.
func (p *Pipeline) Process(doc *model.Document) ([]*model.Chunk, error) {
	text, err := p.ExtractText(doc)
	if err != nil {
		return nil, err
	}
	return p.ChunkText(doc, text)
}
