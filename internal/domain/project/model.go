package project

import "time"

// Status represents the processing lifecycle of a project
type Status string

const (
	StatusCreated    Status = "created"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further processing is accepted in this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Project groups uploaded files that are analyzed together
type Project struct {
	ID                 string    `json:"id"`
	ExpectedFileCount  int       `json:"expected_file_count"`
	ProcessedFileCount int       `json:"processed_file_count"`
	Status             Status    `json:"status"`
	ErrorMessage       string    `json:"error_message,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Progress is the processing progress of a project
type Progress struct {
	Processed  int     `json:"files_processed"`
	Expected   int     `json:"total_files"`
	Failed     int     `json:"files_failed"`
	Percentage float64 `json:"percentage"`
}

// Progress returns the current progress, counting failed files separately.
func (p *Project) Progress(failed int) Progress {
	prog := Progress{
		Processed: p.ProcessedFileCount,
		Expected:  p.ExpectedFileCount,
		Failed:    failed,
	}
	if p.ExpectedFileCount > 0 {
		pct := float64(p.ProcessedFileCount) / float64(p.ExpectedFileCount) * 100
		prog.Percentage = float64(int(pct*100+0.5)) / 100
	}
	return prog
}

// ProjectSummary is a lightweight representation for listing
type ProjectSummary struct {
	ID                 string    `json:"id"`
	ExpectedFileCount  int       `json:"expected_file_count"`
	ProcessedFileCount int       `json:"processed_file_count"`
	UploadedFileCount  int       `json:"uploaded_file_count"`
	IssueCount         int       `json:"issue_count"`
	Status             Status    `json:"status"`
	ErrorMessage       string    `json:"error_message,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
