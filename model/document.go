package model

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Document represents a source document handed to the agent.
// Content holds the raw bytes (usually a PDF) and is released after chunking.
type Document struct {
	RID     uuid.UUID `json:"rid"`
	Title   string    `json:"title"`
	Source  string    `json:"source,omitempty"`
	Content []byte    `json:"-"`
}

// NewDocument creates a Document with a fresh RID.
func NewDocument(title string, content []byte) *Document {
	return &Document{
		RID:     uuid.New(),
		Title:   title,
		Content: content,
	}
}

// NewDocumentFromFile reads a file and creates a Document with the file content
// The title defaults to the filename, and source to the file path
func NewDocumentFromFile(filePath string) (*Document, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	// Get filename without extension for default title
	filename := filepath.Base(filePath)
	title := filename[:len(filename)-len(filepath.Ext(filename))]
	if title == "" {
		title = filename
	}

	doc := NewDocument(title, content)
	doc.Source = filePath
	return doc, nil
}

// NewDocumentsFromFiles reads all given files in order.
func NewDocumentsFromFiles(filePaths ...string) ([]*Document, error) {
	docs := make([]*Document, 0, len(filePaths))
	for _, path := range filePaths {
		doc, err := NewDocumentFromFile(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Release drops the document content once it is no longer needed.
func (d *Document) Release() {
	d.Content = nil
}
