package models

import "time"

// ExecutionStatus is the terminal outcome of one execution attempt.
type ExecutionStatus string

const (
	ExecutionStatusSuccess   ExecutionStatus = "SUCCESS"
	ExecutionStatusFailure   ExecutionStatus = "FAILURE"
	ExecutionStatusCancelled ExecutionStatus = "CANCELLED"
)

// CancelledReturnCode is the sentinel return code for cancelled attempts.
const CancelledReturnCode = -1

// ExecutionRecord is the immutable audit entry for one execution attempt.
// Exactly one record is written per attempt, cancelled attempts included.
type ExecutionRecord struct {
	ID               string          `json:"id"`
	ActionID         string          `json:"action_id"`
	ActionName       string          `json:"action_name"`
	ActionKind       ActionKind      `json:"action_kind"`
	StartedAt        time.Time       `json:"started_at"`
	DurationMs       int64           `json:"duration_ms"`
	Status           ExecutionStatus `json:"status"`
	ReturnCode       int             `json:"return_code"`
	Summary          string          `json:"summary"`
	RequestSnapshot  string          `json:"request_snapshot"`
	ResponseSnapshot string          `json:"response_snapshot"`
}
