package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// Result represents the normalized output of a SUCCEEDED job.
//
// Findings keep the remote detection order. CSVText is always present,
// header-only when there are no findings. VisualizationArtifacts maps a
// fixed artifact name (e.g. "semantic-segmentation") to a temporary-store
// locator and is populated only when the job was submitted with debug
// requested.
type Result struct {
	Findings               []Finding         `json:"findings"`
	NumFindings            int               `json:"num_findings"`
	CSVText                string            `json:"csv_text"`
	VisualizationArtifacts map[string]string `json:"visualization_artifacts,omitempty"`
	PartialArtifactFailure bool              `json:"partial_artifact_failure,omitempty"`
	DroppedFindings        int               `json:"dropped_findings,omitempty"`
}

// Clone returns a deep copy of the result.
func (r *Result) Clone() *Result {
	cp := *r
	if r.Findings != nil {
		cp.Findings = make([]Finding, len(r.Findings))
		copy(cp.Findings, r.Findings)
	}
	if r.VisualizationArtifacts != nil {
		cp.VisualizationArtifacts = make(map[string]string, len(r.VisualizationArtifacts))
		for k, v := range r.VisualizationArtifacts {
			cp.VisualizationArtifacts[k] = v
		}
	}
	return &cp
}

// Value implements the driver.Valuer interface for database serialization.
func (r *Result) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (r *Result) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan Result")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, r)
}

// FailureKind classifies a whole-job failure.
type FailureKind string

const (
	FailureKindSubmission       FailureKind = "SUBMISSION_ERROR"
	FailureKindRemote           FailureKind = "REMOTE_FAILURE"
	FailureKindDeadlineExceeded FailureKind = "DEADLINE_EXCEEDED"
	FailureKindCancelled        FailureKind = "CANCELLED"
)

// Failure carries the reason a job reached FAILED or TIMED_OUT.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Value implements the driver.Valuer interface for database serialization.
func (f *Failure) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (f *Failure) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan Failure")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, f)
}
