package record

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const pendingIDPrefix = "pending-"

type Status string

const (
	StatusDraft      Status = "draft"
	StatusSubmitting Status = "submitting"
	StatusConfirmed  Status = "confirmed"
	StatusFailed     Status = "failed"
)

// CanTransition reports whether a record may move from status to next.
// Failed -> submitting is a new attempt on the same draft id.
func (status Status) CanTransition(next Status) bool {
	switch status {
	case StatusDraft:
		return next == StatusSubmitting
	case StatusSubmitting:
		return next == StatusConfirmed || next == StatusFailed
	case StatusFailed:
		return next == StatusSubmitting
	default:
		return false
	}
}

// Record is the canonical, flat representation of one logged health event.
type Record struct {
	ID        string
	LogType   LogType
	Timestamp time.Time
	Payload   Payload
	Source    CaptureMode
	Status    Status
}

func NewPendingID() string {
	return pendingIDPrefix + uuid.NewString()
}

func IsPending(id string) bool {
	return strings.HasPrefix(id, pendingIDPrefix)
}

// NewDraft opens an empty draft with a fresh pending id.
func NewDraft(logType LogType, source CaptureMode, now time.Time) Record {
	return Record{
		ID:        NewPendingID(),
		LogType:   logType,
		Timestamp: now.UTC(),
		Payload:   EmptyPayload(logType),
		Source:    source,
		Status:    StatusDraft,
	}
}

// SameEntity compares identity only; source and status never affect equality.
func SameEntity(left Record, right Record) bool {
	return left.ID != "" && left.ID == right.ID
}

// WithStatus returns a copy moved to next, or an error for a backward transition.
func (entry Record) WithStatus(next Status) (Record, error) {
	if !entry.Status.CanTransition(next) {
		return entry, fmt.Errorf("record %s: invalid status transition %s -> %s", entry.ID, entry.Status, next)
	}
	entry.Status = next
	return entry, nil
}

func (entry Record) Summary() string {
	if entry.Payload == nil {
		return entry.LogType.Label()
	}
	return entry.Payload.Summary()
}

type recordJSON struct {
	ID        string          `json:"id"`
	LogType   LogType         `json:"log_type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Source    CaptureMode     `json:"source,omitempty"`
	Status    Status          `json:"status,omitempty"`
}

func (entry Record) MarshalJSON() ([]byte, error) {
	payload := entry.Payload
	if payload == nil {
		payload = EmptyPayload(entry.LogType)
	}
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return json.Marshal(recordJSON{
		ID:        entry.ID,
		LogType:   entry.LogType,
		Timestamp: entry.Timestamp,
		Payload:   rawPayload,
		Source:    entry.Source,
		Status:    entry.Status,
	})
}

func (entry *Record) UnmarshalJSON(data []byte) error {
	decoded := recordJSON{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	logType, err := ParseLogType(string(decoded.LogType))
	if err != nil {
		return fmt.Errorf("record %s: %w", decoded.ID, err)
	}
	payload, err := DecodePayload(logType, decoded.Payload)
	if err != nil {
		return fmt.Errorf("record %s: decode payload: %w", decoded.ID, err)
	}

	*entry = Record{
		ID:        decoded.ID,
		LogType:   logType,
		Timestamp: decoded.Timestamp,
		Payload:   payload,
		Source:    decoded.Source,
		Status:    decoded.Status,
	}
	return nil
}
