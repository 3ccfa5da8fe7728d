package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ganot/perfscan/internal/analysis"
	"github.com/ganot/perfscan/internal/domain/activity"
	"github.com/ganot/perfscan/internal/domain/file"
	"github.com/ganot/perfscan/internal/domain/issue"
	"github.com/ganot/perfscan/internal/domain/project"
	"github.com/ganot/perfscan/internal/processor"
)

// ErrBadRequest indicates a request body or parameter that could not be read.
var ErrBadRequest = errors.New("bad request")

// APIError is the error body returned by the REST API and the MCP tools.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to an API error and HTTP status.
func MapError(err error) (*APIError, int) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, project.ErrProjectNotFound):
		return &APIError{Code: "PROJECT_NOT_FOUND", Message: "project not found", RecoveryHint: "Check the project ID"}, http.StatusNotFound
	case errors.Is(err, file.ErrFileNotFound):
		return &APIError{Code: "FILE_NOT_FOUND", Message: "file not found", RecoveryHint: "List the project files to find valid IDs"}, http.StatusNotFound
	case errors.Is(err, issue.ErrProjectFailed):
		return &APIError{Code: "PROJECT_FAILED", Message: err.Error(), RecoveryHint: "Inspect the project error message and create a new project"}, http.StatusConflict
	case errors.Is(err, file.ErrDuplicateFile):
		return &APIError{Code: "DUPLICATE_FILE", Message: err.Error(), RecoveryHint: "Upload the file under a different name"}, http.StatusConflict
	case errors.Is(err, file.ErrFileLimitReached):
		return &APIError{Code: "FILE_LIMIT_REACHED", Message: err.Error(), RecoveryHint: "Create a project with a larger file count"}, http.StatusConflict
	case errors.Is(err, project.ErrInvalidState):
		return &APIError{Code: "INVALID_STATE", Message: err.Error(), RecoveryHint: "Check the project and file status"}, http.StatusConflict
	case errors.Is(err, file.ErrContentTooLarge), errors.As(err, &maxBytes):
		return &APIError{Code: "CONTENT_TOO_LARGE", Message: err.Error()}, http.StatusRequestEntityTooLarge
	case errors.Is(err, project.ErrInvalidInput),
		errors.Is(err, file.ErrInvalidInput),
		errors.Is(err, activity.ErrInvalidInput),
		errors.Is(err, ErrBadRequest):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}, http.StatusBadRequest
	case errors.Is(err, analysis.ErrProvider):
		return &APIError{Code: "PROVIDER_ERROR", Message: err.Error(), RecoveryHint: "Check the analysis provider configuration and retry with a new project"}, http.StatusBadGateway
	case errors.Is(err, processor.ErrPersistence):
		return &APIError{Code: "PERSISTENCE_ERROR", Message: "failed to store analysis results"}, http.StatusInternalServerError
	default:
		return &APIError{Code: "INTERNAL", Message: "internal error"}, http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	apiErr, status := MapError(err)
	writeJSON(w, status, apiErr)
}
