package file

import (
	"fmt"
	"time"

	"github.com/ganot/perfscan/internal/domain/project"
)

// Status represents the processing state of an uploaded file
type Status string

const (
	StatusPending   Status = "pending"
	StatusAnalyzing Status = "analyzing"
	StatusAnalyzed  Status = "analyzed"
	StatusFailed    Status = "failed"
)

// ProjectFile is a source file uploaded into a project
type ProjectFile struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	Name         string    `json:"name"`
	Content      string    `json:"content,omitempty"`
	DetectedType string    `json:"detected_type,omitempty"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FileRef is a file without its content
type FileRef struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	Name         string    `json:"name"`
	DetectedType string    `json:"detected_type,omitempty"`
	Status       Status    `json:"status"`
	IssueCount   int       `json:"issue_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Transition validates a file status change. Files only move forward:
// pending to analyzing, then analyzing to analyzed or failed.
func Transition(from, to Status) error {
	valid := false
	switch from {
	case StatusPending:
		valid = to == StatusAnalyzing
	case StatusAnalyzing:
		valid = to == StatusAnalyzed || to == StatusFailed
	case StatusAnalyzed, StatusFailed:
		valid = false
	}
	if !valid {
		return fmt.Errorf("%w: file cannot move from %s to %s", project.ErrInvalidState, from, to)
	}
	return nil
}
