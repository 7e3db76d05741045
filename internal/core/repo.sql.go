package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dgknshn20/yapigraniterp/internal/platform/db"
	"github.com/dgknshn20/yapigraniterp/internal/shared"
)

// PgTxStore implements TxStore on a caller-provided transaction.
type PgTxStore struct {
	tx db.Tx
}

// NewTxStore constructs a PgTxStore.
func NewTxStore(tx db.Tx) *PgTxStore {
	return &PgTxStore{tx: tx}
}

func (s *PgTxStore) LatestNotification(ctx context.Context, n Notification) (*Notification, error) {
	row := s.tx.QueryRow(ctx, `SELECT id, recipient_role, title, body, topic, source_type, source_id, created_at
FROM notifications
WHERE recipient_role = $1 AND topic = $2 AND source_type = $3 AND source_id = $4
ORDER BY created_at DESC LIMIT 1`,
		string(n.RecipientRole), n.Topic, n.SourceType, n.SourceID)
	return scanNotification(row)
}

func (s *PgTxStore) CreateNotification(ctx context.Context, n *Notification) error {
	return s.tx.QueryRow(ctx, `INSERT INTO notifications (recipient_role, title, body, topic, source_type, source_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		string(n.RecipientRole), n.Title, n.Body, n.Topic, n.SourceType, n.SourceID, n.CreatedAt).Scan(&n.ID)
}

func (s *PgTxStore) GetTask(ctx context.Context, sourceType string, sourceID int64, title string) (*Task, error) {
	row := s.tx.QueryRow(ctx, `SELECT id, title, description, status, due_date, assignee_role, source_type, source_id
FROM tasks WHERE source_type = $1 AND source_id = $2 AND title = $3`,
		sourceType, sourceID, title)
	var (
		t      Task
		status string
		role   string
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &t.DueDate, &role, &t.SourceType, &t.SourceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	t.Status = TaskStatus(status)
	t.AssigneeRole = shared.Role(role)
	return &t, nil
}

func (s *PgTxStore) CreateTask(ctx context.Context, t *Task) error {
	return s.tx.QueryRow(ctx, `INSERT INTO tasks (title, description, status, due_date, assignee_role, source_type, source_id)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		t.Title, t.Description, string(t.Status), t.DueDate, string(t.AssigneeRole), t.SourceType, t.SourceID).Scan(&t.ID)
}

func (s *PgTxStore) UpdateTask(ctx context.Context, t *Task) error {
	_, err := s.tx.Exec(ctx, `UPDATE tasks SET description = $2, status = $3, due_date = $4, assignee_role = $5, updated_at = NOW()
WHERE id = $1`, t.ID, t.Description, string(t.Status), t.DueDate, string(t.AssigneeRole))
	return err
}

func (s *PgTxStore) GetEvent(ctx context.Context, eventType string, offerID int64, metric string) (*SystemEvent, error) {
	row := s.tx.QueryRow(ctx, `SELECT id, event_type, offer_id, metric, payload, created_at
FROM system_events WHERE event_type = $1 AND offer_id = $2 AND metric = $3`,
		eventType, offerID, metric)
	var ev SystemEvent
	err := row.Scan(&ev.ID, &ev.EventType, &ev.OfferID, &ev.Metric, &ev.Payload, &ev.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &ev, nil
}

func (s *PgTxStore) CreateEvent(ctx context.Context, ev *SystemEvent) error {
	return s.tx.QueryRow(ctx, `INSERT INTO system_events (event_type, offer_id, metric, payload, created_at)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		ev.EventType, ev.OfferID, ev.Metric, ev.Payload, ev.CreatedAt).Scan(&ev.ID)
}

func scanNotification(row pgx.Row) (*Notification, error) {
	var (
		n    Notification
		role string
	)
	err := row.Scan(&n.ID, &role, &n.Title, &n.Body, &n.Topic, &n.SourceType, &n.SourceID, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	n.RecipientRole = shared.Role(role)
	return &n, nil
}
