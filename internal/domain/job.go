package domain

import "time"

// JobStatus represents the lifecycle state of a remote analysis job.
// Values include JobStatusQueued, JobStatusRunning, JobStatusSucceeded,
// JobStatusFailed, JobStatusTimedOut, and JobStatusCancelled.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusTimedOut  JobStatus = "TIMED_OUT"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// IsTerminal reports whether the status is a sink state.
// Terminal jobs never transition again as far as callers can observe.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusTimedOut, JobStatusCancelled:
		return true
	}
	return false
}

// Authoritative reports whether the status reflects the remote system's
// own verdict. TIMED_OUT is terminal but non-authoritative: it only means
// this side stopped waiting, and a later poll may still observe the true
// remote outcome.
func (s JobStatus) Authoritative() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// JobInput holds the immutable submission parameters of a job.
type JobInput struct {
	ImageLocator   string `json:"image_locator"`
	ImageName      string `json:"image_name"`
	DebugRequested bool   `json:"debug_requested"`
}

// Job represents one remote analysis attempt.
// The ID is assigned by the remote system at submission and never changes.
// Result and Failure are mutually exclusive: Result is set only on
// SUCCEEDED, Failure only on FAILED or TIMED_OUT; both are absent while
// the job is non-terminal.
type Job struct {
	ID           string     `gorm:"type:text;primaryKey" json:"id"`
	Status       JobStatus  `gorm:"type:text;index:idx_jobs_status" json:"status"`
	Input        JobInput   `gorm:"embedded;embeddedPrefix:input_" json:"input"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	LastPolledAt *time.Time `json:"last_polled_at,omitempty"`
	TerminalAt   *time.Time `json:"terminal_at,omitempty"`
	Result       *Result    `gorm:"type:text" json:"result,omitempty"`
	Failure      *Failure   `gorm:"type:text" json:"failure,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Job.
func (Job) TableName() string {
	return "analysis_jobs"
}

// Clone returns a deep copy of the job.
// The tracker hands copies to callers so a stored terminal record can
// never be mutated after the fact.
func (j *Job) Clone() *Job {
	cp := *j
	if j.LastPolledAt != nil {
		t := *j.LastPolledAt
		cp.LastPolledAt = &t
	}
	if j.TerminalAt != nil {
		t := *j.TerminalAt
		cp.TerminalAt = &t
	}
	if j.Result != nil {
		cp.Result = j.Result.Clone()
	}
	if j.Failure != nil {
		f := *j.Failure
		cp.Failure = &f
	}
	return &cp
}
