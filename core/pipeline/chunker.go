package pipeline

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// TextChunker packs whitespace separated words into chunks of at most maxChars runes.
// Words are joined with single spaces, a word longer than maxChars is split.
func TextChunker(maxChars int) ChunkFunc {
	return func(text string) ([]string, error) {
		if maxChars <= 0 {
			return nil, fmt.Errorf("max chunk size must be positive")
		}

		var chunks []string
		var current strings.Builder
		currentLen := 0

		flush := func() {
			if currentLen > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
				currentLen = 0
			}
		}

		for _, word := range strings.Fields(text) {
			for _, part := range splitRunes(word, maxChars) {
				partLen := utf8.RuneCountInString(part)

				if currentLen > 0 && currentLen+1+partLen > maxChars {
					flush()
				}
				if currentLen > 0 {
					current.WriteByte(' ')
					currentLen++
				}
				current.WriteString(part)
				currentLen += partLen
			}
		}
		flush()

		return chunks, nil
	}
}

// splitRunes splits s into parts of at most n runes.
func splitRunes(s string, n int) []string {
	if utf8.RuneCountInString(s) <= n {
		return []string{s}
	}

	var parts []string
	runes := []rune(s)
	for start := 0; start < len(runes); start += n {
		end := min(start+n, len(runes))
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}

// WordWindowChunker splits text into overlapping windows of words, using word counts as a proxy for tokens.
func WordWindowChunker(chunkSize int, overlap int) ChunkFunc {
	return func(text string) ([]string, error) {
		if chunkSize <= 0 {
			return nil, fmt.Errorf("chunk size must be positive")
		}
		if overlap < 0 || overlap >= chunkSize {
			return nil, fmt.Errorf("overlap must be between 0 and chunk size")
		}

		words := strings.Fields(text)
		if len(words) == 0 {
			return nil, nil
		}

		step := chunkSize - overlap
		var chunks []string
		for i := 0; i < len(words); i += step {
			end := min(i+chunkSize, len(words))
			chunks = append(chunks, strings.Join(words[i:end], " "))
			if end == len(words) {
				break
			}
		}
		return chunks, nil
	}
}

// SentenceChunker creates a chunker that groups up to maxSentencesPerChunk sentences per chunk
func SentenceChunker(maxSentencesPerChunk int) ChunkFunc {
	return func(text string) ([]string, error) {
		if maxSentencesPerChunk <= 0 {
			return nil, fmt.Errorf("max sentences per chunk must be positive")
		}

		sentences := splitSentences(text)

		var chunks []string
		for start := 0; start < len(sentences); start += maxSentencesPerChunk {
			end := min(start+maxSentencesPerChunk, len(sentences))
			chunks = append(chunks, strings.Join(sentences[start:end], " "))
		}
		return chunks, nil
	}
}

// splitSentences splits on '.', '!' and '?' followed by whitespace.
// Whitespace inside a sentence is collapsed.
func splitSentences(text string) []string {
	words := strings.Fields(text)

	var sentences []string
	var current []string
	for _, word := range words {
		current = append(current, word)
		if strings.HasSuffix(word, ".") || strings.HasSuffix(word, "!") || strings.HasSuffix(word, "?") {
			sentences = append(sentences, strings.Join(current, " "))
			current = nil
		}
	}
	if len(current) > 0 {
		sentences = append(sentences, strings.Join(current, " "))
	}
	return sentences
}

// SemanticChunker groups sentences into chunks, starting a new chunk where the similarity
// of the next sentence to the current chunk drops below similarityThreshold
// or the chunk would grow beyond maxChunkSize characters.
func SemanticChunker(embedder EmbedFunc, maxChunkSize int, similarityThreshold float32) ChunkFunc {
	return func(text string) ([]string, error) {
		if maxChunkSize <= 0 {
			return nil, fmt.Errorf("max chunk size must be positive")
		}
		if embedder == nil {
			return nil, fmt.Errorf("embedder not set")
		}

		sentences := splitSentences(text)
		if len(sentences) == 0 {
			return nil, nil
		}

		embeddings, err := embedder(sentences)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(embeddings) != len(sentences) {
			return nil, fmt.Errorf("embedding count mismatch: got %d embeddings for %d sentences", len(embeddings), len(sentences))
		}
		for i, emb := range embeddings {
			if len(emb) != len(embeddings[0]) {
				return nil, fmt.Errorf("embedding dimension mismatch: sentence %d has %d dimensions, expected %d", i, len(emb), len(embeddings[0]))
			}
		}

		return groupSentences(sentences, embeddings, maxChunkSize, similarityThreshold), nil
	}
}

// groupSentences is the grouping step of SemanticChunker.
// Sentences longer than maxChunkSize are hard split so that no chunk exceeds the bound.
func groupSentences(sentences []string, embeddings [][]float32, maxChunkSize int, similarityThreshold float32) []string {
	var chunks []string
	var current []string
	var currentEmbeddings [][]float32
	currentLength := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
		}
		current = nil
		currentEmbeddings = nil
		currentLength = 0
	}

	for i, sentence := range sentences {
		sentenceLen := utf8.RuneCountInString(sentence)

		if sentenceLen > maxChunkSize {
			flush()
			chunks = append(chunks, splitRunes(sentence, maxChunkSize)...)
			continue
		}

		if len(current) > 0 {
			similarity := cosineSimilarity(meanEmbedding(currentEmbeddings), embeddings[i])
			if similarity < similarityThreshold || currentLength+1+sentenceLen > maxChunkSize {
				flush()
			}
		}

		if len(current) > 0 {
			currentLength++
		}
		current = append(current, sentence)
		currentEmbeddings = append(currentEmbeddings, embeddings[i])
		currentLength += sentenceLen
	}
	flush()

	return chunks
}

func meanEmbedding(embeddings [][]float32) []float32 {
	avg := make([]float32, len(embeddings[0]))
	for _, emb := range embeddings {
		for j := 0; j < len(avg) && j < len(emb); j++ {
			avg[j] += emb[j]
		}
	}
	for j := range avg {
		avg[j] /= float32(len(embeddings))
	}
	return avg
}

// cosineSimilarity calculates the cosine similarity between two embedding vectors
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
