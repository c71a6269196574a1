package pipeline

import (
	"fmt"

	"github.com/knights-analytics/hugot"
	"github.com/siherrmann/askpdf/helper"
)

const defaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"

// DefaultEmbedder creates an embedder using a real sentence transformer model
// Uses the all-MiniLM-L6-v2 model which produces 384-dimensional embeddings
// The returned close function destroys the hugot session.
func DefaultEmbedder() (EmbedFunc, func() error, error) {
	modelPath, err := helper.PrepareModel(defaultEmbeddingModel, "onnx/model.onnx")
	if err != nil {
		return nil, nil, err
	}

	// Initialize hugot session with Go backend
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "semantic-chunker-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	embed := func(texts []string) ([][]float32, error) {
		result, err := sentencePipeline.RunPipeline(texts)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		return result.Embeddings, nil
	}

	return embed, session.Destroy, nil
}

// DefaultSemanticChunker creates a SemanticChunker backed by DefaultEmbedder.
func DefaultSemanticChunker(maxChunkSize int, similarityThreshold float32) (ChunkFunc, func() error, error) {
	embedder, closeFunc, err := DefaultEmbedder()
	if err != nil {
		return nil, nil, helper.NewError("create default embedder", err)
	}
	return SemanticChunker(embedder, maxChunkSize, similarityThreshold), closeFunc, nil
}
