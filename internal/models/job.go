package models

import (
	"errors"
	"time"
)

// Job lifecycle states reported to clients.
const (
	StatusPreparing  = "preparing"
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusFail       = "fail"
)

// ErrInvalidTransition is returned when a status update would move a job
// backwards or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid status transition")

var statusRank = map[string]int{
	StatusPreparing:  0,
	StatusQueued:     1,
	StatusProcessing: 2,
	StatusSuccess:    3,
	StatusFail:       3,
}

// IsTerminal reports whether no further transitions may follow status.
func IsTerminal(status string) bool {
	return status == StatusSuccess || status == StatusFail
}

// CanTransition reports whether a job in state from may move to state to.
// Repeating the current non-terminal state is allowed so progress messages
// can be refreshed.
func CanTransition(from, to string) bool {
	if IsTerminal(from) {
		return false
	}
	fr, ok := statusRank[from]
	if !ok {
		return false
	}
	tr, ok := statusRank[to]
	if !ok {
		return false
	}
	return tr >= fr
}

// Job is the status record of a single video generation.
type Job struct {
	ID        string    `json:"task_id"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	TraceID   string    `json:"trace_id"`
	VideoURL  *string   `json:"video_url,omitempty"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transition describes a status change applied to a Job. Empty optional
// fields leave the current values untouched.
type Transition struct {
	Status   string
	Message  string
	VideoURL string
	Error    string
}

// Apply mutates job according to t. Callers must check CanTransition first.
func (t Transition) Apply(job *Job, now time.Time) {
	job.Status = t.Status
	job.Message = t.Message
	job.UpdatedAt = now
	if t.VideoURL != "" {
		v := t.VideoURL
		job.VideoURL = &v
	}
	if t.Error != "" {
		e := t.Error
		job.Error = &e
	}
}

// TaskUpdate is the push message sent to a session on every transition.
type TaskUpdate struct {
	Type   string `json:"type"`
	TaskID string `json:"task_id"`
	Data   Job    `json:"data"`
}

// NewTaskUpdate wraps a job snapshot into a task_update message.
func NewTaskUpdate(job Job) TaskUpdate {
	return TaskUpdate{Type: "task_update", TaskID: job.ID, Data: job}
}
