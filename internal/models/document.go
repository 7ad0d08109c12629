// Package models defines data structures for the docdex metadata store.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Scope is a taxonomy node documents are attached to, e.g. a brand or a
// model within a brand.
type Scope struct {
	ID        surrealmodels.RecordID  `json:"id"`
	Name      string                  `json:"name"`
	Kind      string                  `json:"kind"` // "brand" or "model"
	Parent    *surrealmodels.RecordID `json:"parent,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

// ScopeInput is the input for creating a scope.
type ScopeInput struct {
	Name   string  `json:"name"`
	Kind   string  `json:"kind"`
	Parent *string `json:"parent,omitempty"`
}

// Document is one metadata record describing an indexed file. At most one
// document exists per (scope, title) pair.
type Document struct {
	ID         surrealmodels.RecordID `json:"id"`
	Scope      surrealmodels.RecordID `json:"scope"`
	Title      string                 `json:"title"`
	FileName   string                 `json:"file_name"`
	Pages      int                    `json:"pages"`
	Chunks     int                    `json:"chunks"`
	UploadedAt time.Time              `json:"uploaded_at"`
}

// DocumentInput is the input for creating a document record.
type DocumentInput struct {
	ScopeID  string `json:"scope_id"`
	Title    string `json:"title"`
	FileName string `json:"file_name"`
	Pages    int    `json:"pages"`
	Chunks   int    `json:"chunks"`
}
