package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/google/uuid"
)

// Document is one input file. Index is its position in discovery order. An
// empty ID is filled with DocumentID when the document is processed.
type Document struct {
	Index int
	Path  string
	ID    string
}

// NewDocuments creates documents in the given order. Files are not opened
// here; IDs are assigned when a document is processed.
func NewDocuments(paths []string) []Document {
	docs := make([]Document, len(paths))
	for i, p := range paths {
		docs[i] = Document{Index: i, Path: p}
	}
	return docs
}

// DocumentID returns the hex SHA-256 of the file at path, or a random UUID if
// the file cannot be read.
func DocumentID(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return uuid.NewString()
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(h.Sum(nil))
}
