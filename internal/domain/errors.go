package domain

import (
	"fmt"
	"time"
)

// Error kinds surfaced to callers. Every failure mode maps to a
// structured {kind, message} object, never a bare transport error.
const (
	ErrKindSubmission      = "SUBMISSION_ERROR"
	ErrKindTransientPoll   = "TRANSIENT_POLL_ERROR"
	ErrKindRemoteFailure   = "REMOTE_FAILURE"
	ErrKindDeadline        = "DEADLINE_EXCEEDED"
	ErrKindNotFound        = "NOT_FOUND"
	ErrKindValidation      = "VALIDATION_ERROR"
	ErrKindArtifactUpload  = "ARTIFACT_UPLOAD_ERROR"
	ErrKindExpiredArtifact = "EXPIRED_ARTIFACT"
)

// SubmissionError means the remote rejected or was unreachable at submit
// time. Submission is never retried automatically: the remote side effect
// is ambiguous, so a blind retry could create a duplicate job. The caller
// may resubmit explicitly.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return "job submission failed: " + e.Err.Error()
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Kind returns the error kind for response envelopes.
func (e *SubmissionError) Kind() string { return ErrKindSubmission }

// TransientPollError is a network or transport failure while polling.
// It is retried with backoff and never converted into a job failure.
type TransientPollError struct {
	JobID string
	Err   error
}

func (e *TransientPollError) Error() string {
	return fmt.Sprintf("transient poll error for job %s: %v", e.JobID, e.Err)
}

func (e *TransientPollError) Unwrap() error { return e.Err }

func (e *TransientPollError) Kind() string { return ErrKindTransientPoll }

// RemoteFailureError means the remote explicitly reported the job failed.
// Terminal; carries the remote-provided message.
type RemoteFailureError struct {
	JobID   string
	Message string
}

func (e *RemoteFailureError) Error() string {
	return fmt.Sprintf("remote job %s failed: %s", e.JobID, e.Message)
}

func (e *RemoteFailureError) Kind() string { return ErrKindRemoteFailure }

// DeadlineExceededError means the sync-mode wait bound elapsed before a
// terminal state was observed. Distinct from RemoteFailureError: the
// remote job may still complete and can be polled later by job id.
type DeadlineExceededError struct {
	JobID   string
	MaxWait time.Duration
}

func (e *DeadlineExceededError) Error() string {
	return fmt.Sprintf("job %s did not reach a terminal state within %s", e.JobID, e.MaxWait)
}

func (e *DeadlineExceededError) Kind() string { return ErrKindDeadline }

// NotFoundError means the remote does not know the polled job id.
// Fatal for that job, not retried.
type NotFoundError struct {
	JobID string
}

func (e *NotFoundError) Error() string {
	return "job not found: " + e.JobID
}

func (e *NotFoundError) Kind() string { return ErrKindNotFound }

// ValidationError reports one malformed finding field. Findings failing
// validation are dropped and counted, never abort assembly.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid finding field %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Kind() string { return ErrKindValidation }

// ArtifactUploadError reports a failed upload of one visualization
// artifact. Non-fatal: the finding data and CSV are still returned.
type ArtifactUploadError struct {
	Artifact string
	Err      error
}

func (e *ArtifactUploadError) Error() string {
	return fmt.Sprintf("failed to upload artifact %s: %v", e.Artifact, e.Err)
}

func (e *ArtifactUploadError) Unwrap() error { return e.Err }

func (e *ArtifactUploadError) Kind() string { return ErrKindArtifactUpload }

// ExpiredArtifactError means a temporary artifact requested for promotion
// no longer exists in the temporary namespace.
type ExpiredArtifactError struct {
	Artifact string
	Key      string
}

func (e *ExpiredArtifactError) Error() string {
	return fmt.Sprintf("temporary artifact %s (key %s) has expired or was never stored", e.Artifact, e.Key)
}

func (e *ExpiredArtifactError) Kind() string { return ErrKindExpiredArtifact }
