package models

import "time"

// JobStatus is the lifecycle state of a Job. Transitions are monotonic:
// queued -> processing -> {completed, failed}. No other transition is
// valid (spec.md §4.8).
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is the unit tracked by JobManager for both sync and async execution.
// Result is set when Status reaches completed; a failed job keeps Result
// nil and carries its error in Err.
type Job struct {
	ID          string
	Request     ScrapeRequest
	Status      JobStatus
	Result      *SuccessResponse
	Err         *ErrorDetail
	CreatedAt   time.Time
	CompletedAt time.Time
}

// ToStatusResponse projects a Job onto the polling shape returned by
// GET /v1/scrape/:jobId while still queued or processing.
func (j *Job) ToStatusResponse() JobStatusResponse {
	return JobStatusResponse{
		JobID:      j.ID,
		Processing: j.Status == JobQueued || j.Status == JobProcessing,
	}
}
