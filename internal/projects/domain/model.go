package domain

import "errors"

// Project is one portfolio entry. JSON names match the record file and the
// public API.
type Project struct {
	ID          int64  `json:"id"`
	Title       string `json:"titulo"`
	Description string `json:"descripcion"`
	FileName    string `json:"archivoNombre"`
	FileURL     string `json:"archivoURL"`
	CreatedAt   string `json:"fecha"`
}

// Patch carries the fields of a partial update; nil fields are left as-is.
type Patch struct {
	Title       *string `json:"titulo,omitempty"`
	Description *string `json:"descripcion,omitempty"`
	FileName    *string `json:"archivoNombre,omitempty"`
	FileURL     *string `json:"archivoURL,omitempty"`
	CreatedAt   *string `json:"fecha,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.FileName == nil && p.FileURL == nil && p.CreatedAt == nil
}

// Apply merges the non-nil fields of patch into p. The ID never changes.
func (p *Project) Apply(patch Patch) {
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.FileName != nil {
		p.FileName = *patch.FileName
	}
	if patch.FileURL != nil {
		p.FileURL = *patch.FileURL
	}
	if patch.CreatedAt != nil {
		p.CreatedAt = *patch.CreatedAt
	}
}

// CreatedAtLayout is the layout of Project.CreatedAt.
const CreatedAtLayout = "2006-01-02 15:04:05"

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrCorruptStore    = errors.New("record store is not a valid JSON array")
)
