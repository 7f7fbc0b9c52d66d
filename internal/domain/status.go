package domain

// Status is the lifecycle state of a test session.
type Status string

const (
	StatusEmpty      Status = "empty"
	StatusCreating   Status = "creating"
	StatusInProgress Status = "in_progress"
	StatusSubmitting Status = "submitting"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Stable reports whether the status is one a failed request can fall back to.
func (s Status) Stable() bool {
	switch s {
	case StatusEmpty, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// SaveStatus reflects the last autosave attempt.
type SaveStatus string

const (
	SaveIdle   SaveStatus = "idle"
	SaveSaving SaveStatus = "saving"
	SaveSaved  SaveStatus = "saved"
	SaveFailed SaveStatus = "error"
)
