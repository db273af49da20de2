package app

import (
	"time"

	"xsched/internal/xs"
)

// Operation tracks one CLI invocation. Its ID tags every log line the
// invocation writes.
type Operation struct {
	ID        string
	Name      string
	Started   time.Time
	Status    string // "success" or "error"
	ErrorKind string
}

// NewOperation creates an operation started at now.
func NewOperation(name string, now time.Time) *Operation {
	return &Operation{
		ID:      now.UTC().Format("20060102T150405Z"),
		Name:    name,
		Started: now,
		Status:  "success",
	}
}

// Fail marks the operation failed with the kind of err.
func (op *Operation) Fail(err error) {
	op.Status = "error"
	op.ErrorKind = xs.Kind(err)
}

// Duration returns the time elapsed since the operation started.
func (op *Operation) Duration(now time.Time) time.Duration {
	return now.Sub(op.Started)
}
