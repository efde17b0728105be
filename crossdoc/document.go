// Package crossdoc computes topical alignment across a set of related
// steering documents and reports consistency issues. Scoring is deterministic
// for identical input document sets.
package crossdoc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DocumentType identifies a steering document.
type DocumentType string

const (
	// DocumentTypeProduct describes product goals and user needs.
	DocumentTypeProduct DocumentType = "product"
	// DocumentTypeStructure describes system structure and components.
	DocumentTypeStructure DocumentType = "structure"
	// DocumentTypeTech describes the technology choices.
	DocumentTypeTech DocumentType = "tech"
)

// Valid reports whether t is a recognized document type.
func (t DocumentType) Valid() bool {
	switch t {
	case DocumentTypeProduct, DocumentTypeStructure, DocumentTypeTech:
		return true
	}
	return false
}

// dependencies maps each document type to the types it builds on.
var dependencies = map[DocumentType][]DocumentType{
	DocumentTypeProduct:   nil,
	DocumentTypeStructure: {DocumentTypeProduct},
	DocumentTypeTech:      {DocumentTypeProduct, DocumentTypeStructure},
}

// Dependencies returns the document types that must accompany t.
func Dependencies(t DocumentType) []DocumentType {
	return append([]DocumentType(nil), dependencies[t]...)
}

// Document is one steering document under cross-validation.
type Document struct {
	Type    DocumentType `json:"type"`
	Content string       `json:"content"`
	Version string       `json:"version,omitempty"`
}

// InferType guesses a document type from a file path.
// Returns "" when the name matches no steering document.
func InferType(path string) DocumentType {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.Contains(name, "product"):
		return DocumentTypeProduct
	case strings.Contains(name, "structure"):
		return DocumentTypeStructure
	case strings.Contains(name, "tech"):
		return DocumentTypeTech
	}
	return ""
}

// LoadDocuments reads steering documents from files, inferring each type
// from its filename. Files that match no steering document type are skipped.
func LoadDocuments(paths []string) ([]Document, error) {
	var docs []Document
	for _, path := range paths {
		docType := InferType(path)
		if docType == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read document %s: %w", path, err)
		}
		docs = append(docs, Document{Type: docType, Content: string(data)})
	}
	return docs, nil
}
