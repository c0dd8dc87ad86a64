package domain

import (
	"path/filepath"
	"strings"
)

// File type constants for uploaded documents
const (
	FileTypePDF  = "pdf"
	FileTypeDOCX = "docx"
	FileTypePPTX = "pptx"
)

// Document is the persisted record of an ingested file: its ordered page
// texts, the chunk texts sliced from them, and the vector index built over
// the chunks. Pages and chunks are never mutated after upload.
type Document struct {
	ID       string   `json:"id"`
	Filename string   `json:"filename"`
	Pages    []string `json:"pages"`
	Chunks   []string `json:"chunks"`
}

// FileType derives the document's source type from its filename extension.
func (d *Document) FileType() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(d.Filename)), ".")
}

// DocumentInfo is the listing view of a document (no page/chunk payload).
type DocumentInfo struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

// UploadResponse is returned on successful upload.
type UploadResponse struct {
	DocumentID string `json:"document_id"`
	Message    string `json:"message"`
}
