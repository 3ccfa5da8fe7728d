package activity

import "time"

// ActivityType represents the type of activity event
type ActivityType string

const (
	TypeProjectCreated   ActivityType = "project_created"
	TypeFileUploaded     ActivityType = "file_uploaded"
	TypeFileAnalyzing    ActivityType = "file_analyzing"
	TypeFileAnalyzed     ActivityType = "file_analyzed"
	TypeFileFailed       ActivityType = "file_failed"
	TypeProjectCompleted ActivityType = "project_completed"
	TypeProjectFailed    ActivityType = "project_failed"
)

// ActivityEntry represents an event in the processing log
type ActivityEntry struct {
	ID           int64        `json:"id"`
	ProjectID    string       `json:"project_id"`
	FileID       *string      `json:"file_id,omitempty"`
	ActivityType ActivityType `json:"type"`
	Summary      string       `json:"summary"`
	CreatedAt    time.Time    `json:"created_at"`
}
