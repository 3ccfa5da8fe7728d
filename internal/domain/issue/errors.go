package issue

import "errors"

// ErrProjectFailed indicates results were requested for a failed project.
var ErrProjectFailed = errors.New("project analysis failed")
