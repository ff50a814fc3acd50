package view

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrInvalidDocument is returned when a document is not JSON.
var ErrInvalidDocument = errors.New("rich text document is not valid JSON")

// RichText is an opaque editor widget holding a serialized document.
type RichText interface {
	Get() string
	Set(doc string) error
	Clear()
}

// Document is a RichText that keeps the document as JSON in memory.
type Document struct {
	raw json.RawMessage
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{}
}

// Get returns the serialized document, "" when empty.
func (d *Document) Get() string {
	return string(d.raw)
}

// Set replaces the document. The value must be JSON.
func (d *Document) Set(doc string) error {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		d.raw = nil
		return nil
	}
	if !json.Valid([]byte(doc)) {
		return ErrInvalidDocument
	}
	d.raw = json.RawMessage(doc)
	return nil
}

// Clear empties the document.
func (d *Document) Clear() {
	d.raw = nil
}
