package activity

// ListActivityOptions provides filtering options for listing activity.
type ListActivityOptions struct {
	ProjectID    string
	FileID       *string
	ActivityType *ActivityType
	Limit        int
	Offset       int
}
