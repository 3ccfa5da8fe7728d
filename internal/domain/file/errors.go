package file

import "errors"

var (
	// ErrFileNotFound indicates the file doesn't exist or belongs to another project.
	ErrFileNotFound = errors.New("file not found")
	// ErrInvalidInput indicates invalid upload input.
	ErrInvalidInput = errors.New("invalid file input")
	// ErrDuplicateFile indicates a file with the same name was already uploaded.
	ErrDuplicateFile = errors.New("file already uploaded")
	// ErrFileLimitReached indicates the project already holds its expected number of files.
	ErrFileLimitReached = errors.New("expected file count reached")
	// ErrContentTooLarge indicates the file content exceeds the upload limit.
	ErrContentTooLarge = errors.New("file content too large")
)
