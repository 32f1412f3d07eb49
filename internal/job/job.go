// Package job defines the shared job record mutated by the server and
// worker processes. All helpers here operate in memory only; persistence
// is the store's concern.
package job

import (
	"encoding/json"
	"fmt"
	"time"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusRunning    Status = "running"
	StatusCancelling Status = "cancelling"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further status transition is permitted.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// TypeOf derives the handler-lookup key for a toolkit operation.
func TypeOf(toolkit, operation string) string {
	return fmt.Sprintf("%s.%s", toolkit, operation)
}

// LogEntry is one append-only progress line. Slice order is authoritative;
// timestamps may collide.
type LogEntry struct {
	At      time.Time `json:"timestamp"`
	Message string    `json:"message"`
}

// Job is the unit of trackable work. ID and Type never change after
// creation.
type Job struct {
	ID           string          `json:"id"`
	Toolkit      string          `json:"toolkit"`
	Module       string          `json:"module"`
	Operation    string          `json:"operation"`
	Type         string          `json:"type"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Status       Status          `json:"status"`
	Progress     int             `json:"progress"`
	Logs         []LogEntry      `json:"logs"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	BrokerTaskID string          `json:"broker_task_id,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// AppendLog adds one log entry timestamped now. The caller persists.
func (j *Job) AppendLog(message string) {
	j.Logs = append(j.Logs, LogEntry{At: time.Now().UTC(), Message: message})
}

// MarkCancelling flips the status and optionally appends a log entry.
// The caller persists.
func (j *Job) MarkCancelling(message string) {
	j.Status = StatusCancelling
	if message != "" {
		j.AppendLog(message)
	}
}

// MarkCancelled flips the status and optionally appends a log entry.
// The caller persists.
func (j *Job) MarkCancelled(message string) {
	j.Status = StatusCancelled
	if message != "" {
		j.AppendLog(message)
	}
}
