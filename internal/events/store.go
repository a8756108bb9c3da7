package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// PublishBatch claims up to limit unpublished events, hands them to publish
// and marks them published in the same transaction. Rows claimed by another
// relay are skipped. If publish fails nothing is marked.
func (s *PgStore) PublishBatch(ctx context.Context, limit int, publish func(ctx context.Context, batch []Event) error) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch, err := fetchUnpublished(ctx, tx, limit)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, tx.Commit(ctx)
	}

	if err := publish(ctx, batch); err != nil {
		return 0, err
	}

	ids := make([]int64, len(batch))
	for i, ev := range batch {
		ids[i] = ev.ID
	}
	if _, err := tx.Exec(ctx, `
		UPDATE event_logs
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids); err != nil {
		return 0, fmt.Errorf("mark published: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(batch), nil
}

func fetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]Event, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_type, owner_id, appointment_id, COALESCE(payload, '{}'::jsonb), created_at
		FROM event_logs
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.OwnerID, &ev.AppointmentID, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
