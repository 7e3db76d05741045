// Package core holds cross-cutting operational records: role-addressed
// notifications, follow-up tasks, and dashboard system events. All three are
// written idempotently so workflow re-runs never duplicate them.
package core

import (
	"errors"
	"time"

	"github.com/dgknshn20/yapigraniterp/internal/shared"
)

// Notification is a role-addressed in-app message. Topic plus source
// identify the subject for deduplication.
type Notification struct {
	ID            int64
	RecipientRole shared.Role
	Title         string
	Body          string
	Topic         string
	SourceType    string
	SourceID      int64
	CreatedAt     time.Time
}

// TaskStatus enumerates follow-up task states.
type TaskStatus string

const (
	TaskOpen      TaskStatus = "OPEN"
	TaskDone      TaskStatus = "DONE"
	TaskCancelled TaskStatus = "CANCELLED"
)

// Task is a follow-up item generated by a workflow, keyed by
// (source_type, source_id, title) for idempotent re-creation.
type Task struct {
	ID           int64
	Title        string
	Description  string
	Status       TaskStatus
	DueDate      *time.Time
	AssigneeRole shared.Role
	SourceType   string
	SourceID     int64
}

// SystemEvent is a dashboard counter event, deduplicated forever by
// (event_type, offer_id, metric).
type SystemEvent struct {
	ID        int64
	EventType string
	OfferID   int64
	Metric    string
	Payload   string
	CreatedAt time.Time
}

var (
	// ErrNotificationNotFound indicates no matching notification row.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrTaskNotFound indicates a missing task row.
	ErrTaskNotFound = errors.New("task not found")
	// ErrEventNotFound indicates a missing system event row.
	ErrEventNotFound = errors.New("system event not found")
)
