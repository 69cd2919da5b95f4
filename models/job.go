package models

import (
	"path"
	"strings"
	"time"
)

type Status string

const (
	StatusSubmitted          Status = "Submitted"
	StatusValidating         Status = "Validating"
	StatusScheduled          Status = "Scheduled"
	StatusInProgress         Status = "InProgress"
	StatusStopping           Status = "Stopping"
	StatusCompleted          Status = "Completed"
	StatusPartiallyCompleted Status = "PartiallyCompleted"
	StatusFailed             Status = "Failed"
	StatusStopped            Status = "Stopped"
	StatusExpired            Status = "Expired"
)

// IsTerminal reports whether no further transition can occur. Unknown
// values are treated as non-terminal so polling keeps going.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusPartiallyCompleted, StatusFailed, StatusStopped, StatusExpired:
		return true
	default:
		return false
	}
}

// IsRetrievable reports whether output artifacts exist for the status.
func (s Status) IsRetrievable() bool {
	return s == StatusCompleted || s == StatusPartiallyCompleted
}

type Job struct {
	Handle         string    `json:"handle"`
	Name           string    `json:"name"`
	Status         Status    `json:"status"`
	Message        string    `json:"message,omitempty"`
	InputLocation  string    `json:"input_location"`
	OutputLocation string    `json:"output_location"`
	SubmittedAt    time.Time `json:"submitted_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Status check methods
func (j *Job) IsTerminal() bool    { return j.Status.IsTerminal() }
func (j *Job) IsRetrievable() bool { return j.Status.IsRetrievable() }
func (j *Job) IsFailed() bool      { return j.IsTerminal() && !j.IsRetrievable() }

// ID returns the trailing segment of the job handle. The batch service
// writes outputs under <output location>/<id>/.
func (j *Job) ID() string {
	if i := strings.LastIndex(j.Handle, "/"); i >= 0 {
		return j.Handle[i+1:]
	}
	return j.Handle
}

// ResourceRef identifies one input object by location.
type ResourceRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Size   int64  `json:"size"`
}

func (r ResourceRef) URI() string {
	return "s3://" + r.Bucket + "/" + r.Key
}

func (r ResourceRef) Name() string {
	return path.Base(r.Key)
}
