package issue

import "time"

// Type classifies what kind of performance problem an issue describes
type Type string

const (
	TypeMemory         Type = "memory"
	TypeLoopComplexity Type = "loop-complexity"
	TypeIO             Type = "io"
	TypeAlgorithmic    Type = "algorithmic"
	TypeDatabase       Type = "database"
	TypeNetwork        Type = "network"
	TypeConcurrency    Type = "concurrency"
	TypeOther          Type = "other"
)

// Types lists every known issue type.
var Types = []Type{
	TypeMemory,
	TypeLoopComplexity,
	TypeIO,
	TypeAlgorithmic,
	TypeDatabase,
	TypeNetwork,
	TypeConcurrency,
	TypeOther,
}

// Valid reports whether t is a known issue type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Confidence is the certainty tier of an issue
type Confidence string

const (
	ConfidenceConfirmed Confidence = "confirmed"
	ConfidencePotential Confidence = "potential"
)

// Valid reports whether c is a known confidence tier.
func (c Confidence) Valid() bool {
	return c == ConfidenceConfirmed || c == ConfidencePotential
}

// Severity represents how much an issue is expected to hurt
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityRank returns a numeric rank for sorting (higher = more severe).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// LineRange is an inclusive range of 1-based line numbers.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// RawIssue is an unvalidated candidate reported by the analysis provider
type RawIssue struct {
	Type        Type       `json:"type"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description"`
	Lines       *LineRange `json:"line_reference,omitempty"`
	Severity    Severity   `json:"severity"`
	CodeSnippet string     `json:"code_snippet,omitempty"`
	Suggestion  string     `json:"suggestion,omitempty"`
	Certainty   Confidence `json:"certainty"`
}

// Issue is a correlated, persisted performance issue. Issues are never
// modified after insert.
type Issue struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	FileID      string     `json:"file_id"`
	FileName    string     `json:"file_name,omitempty"`
	Type        Type       `json:"type"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Lines       *LineRange `json:"line_reference,omitempty"`
	Severity    Severity   `json:"severity"`
	CodeSnippet string     `json:"code_snippet,omitempty"`
	Suggestion  string     `json:"suggestion,omitempty"`
	Confidence  Confidence `json:"confidence"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Raw converts an issue back into a candidate carrying the same certainty.
func (i Issue) Raw() RawIssue {
	raw := RawIssue{
		Type:        i.Type,
		Title:       i.Title,
		Description: i.Description,
		Severity:    i.Severity,
		CodeSnippet: i.CodeSnippet,
		Suggestion:  i.Suggestion,
		Certainty:   i.Confidence,
	}
	if i.Lines != nil {
		lines := *i.Lines
		raw.Lines = &lines
	}
	return raw
}

// SeverityCounts holds counts by severity level.
type SeverityCounts struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// Statistics summarizes the issues of a project.
type Statistics struct {
	FilesAnalyzed   int            `json:"total_files_analyzed"`
	IssuesFound     int            `json:"total_issues_found"`
	Confirmed       int            `json:"confirmed_issues"`
	Potential       int            `json:"potential_issues"`
	BySeverity      SeverityCounts `json:"by_severity"`
	HighestSeverity Severity       `json:"highest_severity,omitempty"`
	CompletedAt     *time.Time     `json:"analysis_completed_at,omitempty"`
}

// ComputeStatistics calculates issue counts for a finished project.
func ComputeStatistics(issues []Issue, filesAnalyzed int) Statistics {
	s := Statistics{FilesAnalyzed: filesAnalyzed, IssuesFound: len(issues)}
	for _, i := range issues {
		if i.Confidence == ConfidenceConfirmed {
			s.Confirmed++
		} else {
			s.Potential++
		}
		switch i.Severity {
		case SeverityLow:
			s.BySeverity.Low++
		case SeverityMedium:
			s.BySeverity.Medium++
		case SeverityHigh:
			s.BySeverity.High++
		case SeverityCritical:
			s.BySeverity.Critical++
		}
		if SeverityRank(i.Severity) > SeverityRank(s.HighestSeverity) {
			s.HighestSeverity = i.Severity
		}
	}
	return s
}
