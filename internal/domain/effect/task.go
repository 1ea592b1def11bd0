// Package effect models side effects as durable tasks.
//
// A state mutation never calls an external system directly. It enqueues tasks in the
// same transaction as the aggregate write; a processor executes them later with
// at-least-once semantics. Tasks are keyed by (entity_id, effect_type): enqueuing the
// same key again re-arms the existing row instead of inserting a duplicate.
package effect

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tffhost/backend/internal/domain/shared"
)

// Status represents the status of a task
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusDone       Status = "DONE"
	StatusFailed     Status = "FAILED"
	StatusDead       Status = "DEAD"
)

// IsValid checks if the status is a valid value
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusDone, StatusFailed, StatusDead:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// Default retry configuration
const (
	DefaultMaxRetries  = 5
	DefaultBaseBackoff = 30 * time.Second
)

// Task is a queued side effect
type Task struct {
	ID          uuid.UUID
	EntityID    string
	EffectType  Type
	Payload     []byte
	Status      Status
	Generation  int
	RetryCount  int
	MaxRetries  int
	LastError   string
	NextRetryAt *time.Time
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewTask creates a pending task whose payload is the JSON encoding of payload
func NewTask(entityID string, effectType Type, payload any) (*Task, error) {
	if entityID == "" {
		return nil, shared.NewDomainError("INVALID_TASK", "Task entity ID cannot be empty")
	}
	if effectType == "" {
		return nil, shared.NewDomainError("INVALID_TASK", "Task effect type cannot be empty")
	}

	var raw []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", effectType, err)
		}
		raw = b
	}

	now := time.Now()
	return &Task{
		ID:         uuid.New(),
		EntityID:   entityID,
		EffectType: effectType,
		Payload:    raw,
		Status:     StatusPending,
		Generation: 1,
		MaxRetries: DefaultMaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// MustNewTask is NewTask for payloads that always encode; it panics on invalid input
func MustNewTask(entityID string, effectType Type, payload any) *Task {
	t, err := NewTask(entityID, effectType, payload)
	if err != nil {
		panic(err)
	}
	return t
}

// Key returns the idempotency key of the task
func (t *Task) Key() string {
	return Key(t.EntityID, t.EffectType)
}

// ExecutionKey identifies one generation of the task. Two executions with the same
// execution key are the same logical side effect.
func (t *Task) ExecutionKey() string {
	return fmt.Sprintf("%s#%d", t.Key(), t.Generation)
}

// Key builds the idempotency key for an entity and effect type
func Key(entityID string, effectType Type) string {
	return string(effectType) + ":" + entityID
}

// DecodePayload unmarshals the task payload into v
func (t *Task) DecodePayload(v any) error {
	if len(t.Payload) == 0 {
		return errors.New("task has no payload")
	}
	if err := json.Unmarshal(t.Payload, v); err != nil {
		return Permanent(fmt.Errorf("decode %s payload: %w", t.EffectType, err))
	}
	return nil
}

// IsDue reports whether the task can be claimed at the given time
func (t *Task) IsDue(at time.Time) bool {
	switch t.Status {
	case StatusPending:
		return true
	case StatusFailed:
		return t.NextRetryAt == nil || !t.NextRetryAt.After(at)
	}
	return false
}

// MarkProcessing marks the task as being processed
func (t *Task) MarkProcessing() error {
	if t.Status != StatusPending && t.Status != StatusFailed {
		return errors.New("can only mark pending or failed tasks as processing")
	}
	t.Status = StatusProcessing
	t.UpdatedAt = time.Now()
	return nil
}

// MarkDone marks the task as executed. claimedGeneration is the generation observed when
// the task was claimed; when the task was re-armed in the meantime it goes back to
// pending so the newer request is executed too.
func (t *Task) MarkDone(claimedGeneration int) {
	now := time.Now()
	t.UpdatedAt = now
	if t.Generation != claimedGeneration {
		t.Status = StatusPending
		t.RetryCount = 0
		t.NextRetryAt = nil
		return
	}
	t.Status = StatusDone
	t.ProcessedAt = &now
	t.LastError = ""
}

// MarkFailed records a failed execution and schedules the next attempt with
// exponential backoff: base, 2*base, 4*base, ...
// Permanent errors and exhausted retries move the task to the dead letter state.
func (t *Task) MarkFailed(err error) {
	t.RetryCount++
	t.LastError = err.Error()
	t.UpdatedAt = time.Now()

	if IsPermanent(err) || t.RetryCount >= t.MaxRetries {
		t.Status = StatusDead
		t.NextRetryAt = nil
		return
	}
	t.Status = StatusFailed
	next := t.UpdatedAt.Add(Backoff(DefaultBaseBackoff, t.RetryCount))
	t.NextRetryAt = &next
}

// Backoff returns the delay before retry number retry (1-based)
func Backoff(base time.Duration, retry int) time.Duration {
	if retry < 1 {
		return base
	}
	return base * time.Duration(1<<uint(retry-1))
}

// Rearm registers a new request for an existing key
func (t *Task) Rearm(payload []byte) {
	t.Generation++
	if payload != nil {
		t.Payload = payload
	}
	t.UpdatedAt = time.Now()
	switch t.Status {
	case StatusDone, StatusDead:
		t.Status = StatusPending
		t.RetryCount = 0
		t.LastError = ""
		t.NextRetryAt = nil
	}
}

// ResetForRetry resets a dead task for another round of attempts
func (t *Task) ResetForRetry() error {
	if t.Status != StatusDead {
		return errors.New("can only retry dead tasks")
	}
	t.Status = StatusPending
	t.RetryCount = 0
	t.LastError = ""
	t.NextRetryAt = nil
	t.UpdatedAt = time.Now()
	return nil
}

// IsDead returns true if the task is in dead letter status
func (t *Task) IsDead() bool {
	return t.Status == StatusDead
}
