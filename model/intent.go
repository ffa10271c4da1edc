package model

import (
	"encoding/json"
	"time"
)

// PendingAction is a proposed side-effecting operation awaiting explicit
// user confirmation. Rows are never deleted, only marked terminal, so the
// table doubles as an audit trail.
type PendingAction struct {
	ID                 int64                  `json:"-"`
	IntentID           string                 `json:"id"`
	SessionID          string                 `json:"session_id"`
	ActionKind         string                 `json:"action_kind"`
	OperationName      string                 `json:"operation_name"`
	Payload            json.RawMessage        `json:"payload,omitempty"`
	PayloadFingerprint string                 `json:"payload_fingerprint"`
	PreviewSummary     string                 `json:"preview_summary"`
	Status             string                 `json:"status"`
	CreatedAt          time.Time              `json:"created_at"`
	ExpiresAt          time.Time              `json:"expires_at"`
	ExecutingSince     *time.Time             `json:"executing_since,omitempty"`
	FinishedAt         *time.Time             `json:"finished_at,omitempty"`
	Notes              string                 `json:"notes,omitempty"`
	MetaData           map[string]interface{} `json:"meta_data,omitempty"`
}

func (intent *PendingAction) ToJSON() ([]byte, error) {
	return json.Marshal(intent)
}

// ConfirmationOutcome is the value returned to the conversational layer
// after a confirmation attempt. Recoverable conditions (races, terminal
// statuses, ambiguity) are outcomes, never errors.
type ConfirmationOutcome struct {
	Result     string           `json:"result"`
	Intent     *PendingAction   `json:"intent,omitempty"`
	Candidates []*PendingAction `json:"candidates,omitempty"`
	Reason     string           `json:"reason,omitempty"`
}

// Confirmation results.
const (
	OutcomeSucceeded       = "succeeded"
	OutcomeFailed          = "failed"
	OutcomeAlreadyExecuted = "already_executed"
	OutcomeInProgress      = "in_progress"
	OutcomeExpired         = "expired"
	OutcomeCancelled       = "cancelled"
	OutcomeSuperseded      = "superseded"
	OutcomeAmbiguous       = "ambiguous"
	OutcomeNonePending     = "none_pending"
)

// OutcomeForStatus maps a non-pending intent status to the confirmation
// result the user should see when they try to confirm it anyway.
func OutcomeForStatus(status string) string {
	switch status {
	case StatusExecuting:
		return OutcomeInProgress
	case StatusExecuted:
		return OutcomeAlreadyExecuted
	case StatusCancelled:
		return OutcomeCancelled
	case StatusExpired:
		return OutcomeExpired
	case StatusSuperseded:
		return OutcomeSuperseded
	}
	return OutcomeFailed
}
