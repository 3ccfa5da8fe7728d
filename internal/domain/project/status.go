package project

import "fmt"

// Event is something that happened to one of a project's files.
type Event string

const (
	EventFileStarted  Event = "file_started"
	EventFileAnalyzed Event = "file_analyzed"
	EventFileFailed   Event = "file_failed"
)

// Counts is the file bookkeeping a transition is decided on. Processed must
// already include the file that triggered the event.
type Counts struct {
	Processed int
	Expected  int
	Failed    int
}

// Transition returns the status a project moves to when ev happens in
// status current. Completed and failed projects accept no events.
func Transition(current Status, ev Event, c Counts) (Status, error) {
	switch current {
	case StatusCreated, StatusProcessing:
		switch ev {
		case EventFileStarted:
			return current, nil
		case EventFileAnalyzed:
			if c.Processed > c.Expected {
				return current, fmt.Errorf("%w: processed %d of %d files", ErrInvalidState, c.Processed, c.Expected)
			}
			if c.Processed == c.Expected && c.Failed == 0 {
				return StatusCompleted, nil
			}
			return StatusProcessing, nil
		case EventFileFailed:
			return StatusFailed, nil
		default:
			return current, fmt.Errorf("%w: unknown event %q", ErrInvalidState, ev)
		}
	case StatusCompleted, StatusFailed:
		return current, fmt.Errorf("%w: project is %s", ErrInvalidState, current)
	default:
		return current, fmt.Errorf("%w: unknown status %q", ErrInvalidState, current)
	}
}
