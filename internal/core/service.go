package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TxStore is the transactional persistence surface for core records.
type TxStore interface {
	LatestNotification(ctx context.Context, n Notification) (*Notification, error)
	CreateNotification(ctx context.Context, n *Notification) error

	GetTask(ctx context.Context, sourceType string, sourceID int64, title string) (*Task, error)
	CreateTask(ctx context.Context, t *Task) error
	UpdateTask(ctx context.Context, t *Task) error

	GetEvent(ctx context.Context, eventType string, offerID int64, metric string) (*SystemEvent, error)
	CreateEvent(ctx context.Context, ev *SystemEvent) error
}

// notifyDedupWindow suppresses repeat notifications about the same subject.
const notifyDedupWindow = 24 * time.Hour

// NotifyOnce creates the notification unless an identical one (same role,
// topic and source) was created within the last 24 hours. Returns whether a
// row was written.
func NotifyOnce(ctx context.Context, store TxStore, n Notification, now time.Time) (bool, error) {
	latest, err := store.LatestNotification(ctx, n)
	switch {
	case err == nil:
		if now.Sub(latest.CreatedAt) < notifyDedupWindow {
			return false, nil
		}
	case errors.Is(err, ErrNotificationNotFound):
	default:
		return false, fmt.Errorf("lookup notification: %w", err)
	}

	n.CreatedAt = now
	if err := store.CreateNotification(ctx, &n); err != nil {
		return false, fmt.Errorf("create notification: %w", err)
	}
	return true, nil
}

// EnsureTask creates the task if no row exists for its source key. An
// existing open task has its due date, assignee and description refreshed;
// done or cancelled tasks are never reopened.
func EnsureTask(ctx context.Context, store TxStore, t Task) (*Task, bool, error) {
	existing, err := store.GetTask(ctx, t.SourceType, t.SourceID, t.Title)
	switch {
	case err == nil:
		if existing.Status != TaskOpen {
			return existing, false, nil
		}
		changed := false
		if t.DueDate != nil && !timePtrEqual(existing.DueDate, t.DueDate) {
			existing.DueDate = t.DueDate
			changed = true
		}
		if t.Description != "" && existing.Description != t.Description {
			existing.Description = t.Description
			changed = true
		}
		if t.AssigneeRole != "" && existing.AssigneeRole != t.AssigneeRole {
			existing.AssigneeRole = t.AssigneeRole
			changed = true
		}
		if changed {
			if err := store.UpdateTask(ctx, existing); err != nil {
				return nil, false, fmt.Errorf("update task %d: %w", existing.ID, err)
			}
		}
		return existing, false, nil

	case errors.Is(err, ErrTaskNotFound):
		t.Status = TaskOpen
		if err := store.CreateTask(ctx, &t); err != nil {
			return nil, false, fmt.Errorf("create task %q: %w", t.Title, err)
		}
		return &t, true, nil

	default:
		return nil, false, fmt.Errorf("lookup task %q: %w", t.Title, err)
	}
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// EmitEventOnce records a dashboard event exactly once per
// (event_type, offer_id, metric). Returns whether a row was written.
func EmitEventOnce(ctx context.Context, store TxStore, ev SystemEvent, now time.Time) (bool, error) {
	_, err := store.GetEvent(ctx, ev.EventType, ev.OfferID, ev.Metric)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, ErrEventNotFound):
	default:
		return false, fmt.Errorf("lookup event: %w", err)
	}

	ev.CreatedAt = now
	if err := store.CreateEvent(ctx, &ev); err != nil {
		return false, fmt.Errorf("create event: %w", err)
	}
	return true, nil
}
