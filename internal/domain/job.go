package domain

// JobStatus is the lifecycle state of a generation job.
// pending -> processing -> completed | failed; pending or processing -> cancelled.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is a known status
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// JobMessage is the queue payload published for every accepted generation request
type JobMessage struct {
	JobID string `json:"job_id"`
}

// Pub/sub event names on a user's private channel
const (
	EventJobCompleted = "job:completed"
	EventJobProgress  = "job:progress"
	EventJobFailed    = "job:failed"
)
