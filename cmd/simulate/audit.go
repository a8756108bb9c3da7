package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/staff-queue-scheduling/internal/scheduling"
)

// audit checks the scheduling invariants over everything in the database and
// returns one line per violation.
func audit(ctx context.Context, pool *pgxpool.Pool, loc *time.Location, owners []uuid.UUID) ([]string, error) {
	var violations []string

	for _, ownerID := range owners {
		v, err := auditQueue(ctx, pool, ownerID)
		if err != nil {
			return nil, err
		}
		violations = append(violations, v...)
	}

	checks := []struct {
		name  string
		query string
		args  []any
	}{
		{
			name: "overlapping scheduled appointments",
			query: `
				SELECT a.staff_id::text || ': ' || a.id::text || ' overlaps ' || b.id::text
				FROM appointments a
				JOIN appointments b
				  ON a.staff_id = b.staff_id
				 AND a.id < b.id
				 AND a.start_time < b.end_time
				 AND b.start_time < a.end_time
				WHERE a.status = 'SCHEDULED' AND b.status = 'SCHEDULED'`,
		},
		{
			name: "daily capacity exceeded",
			query: `
				SELECT s.id::text || ' has ' || count(*) || ' on ' || (a.start_time AT TIME ZONE $1)::date || ' (capacity ' || s.daily_capacity || ')'
				FROM appointments a
				JOIN staff s ON s.id = a.staff_id
				WHERE a.status = 'SCHEDULED'
				GROUP BY s.id, s.daily_capacity, (a.start_time AT TIME ZONE $1)::date
				HAVING count(*) > s.daily_capacity`,
			args: []any{loc.String()},
		},
		{
			name: "skill mismatch",
			query: `
				SELECT a.id::text || ' needs ' || sv.staff_type || ' but staff is ' || s.service_type
				FROM appointments a
				JOIN staff s ON s.id = a.staff_id
				JOIN services sv ON sv.id = a.service_id
				WHERE a.status = 'SCHEDULED' AND sv.staff_type <> s.service_type`,
		},
		{
			name: "queue position outside WAITING",
			query: `
				SELECT id::text || ' is ' || status || ' at position ' || queue_position
				FROM appointments
				WHERE status <> 'WAITING' AND queue_position IS NOT NULL`,
		},
	}

	for _, c := range checks {
		rows, err := pool.Query(ctx, c.query, c.args...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.name, err)
		}
		for rows.Next() {
			var detail string
			if err := rows.Scan(&detail); err != nil {
				rows.Close()
				return nil, err
			}
			violations = append(violations, c.name+": "+detail)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", c.name, err)
		}
	}

	return violations, nil
}

// auditQueue checks the owner's waiting positions are exactly 1..N in arrival
// order.
func auditQueue(ctx context.Context, pool *pgxpool.Pool, ownerID uuid.UUID) ([]string, error) {
	repo := scheduling.NewPgRepository(pool)

	byPosition, err := repo.ListWaiting(ctx, ownerID, scheduling.OrderByQueuePosition)
	if err != nil {
		return nil, err
	}
	byArrival := slices.Clone(byPosition)
	slices.SortFunc(byArrival, scheduling.CompareArrival)

	var violations []string
	for i, a := range byPosition {
		if a.QueuePosition == nil || *a.QueuePosition != i+1 {
			violations = append(violations, fmt.Sprintf("queue %s: %s expected position %d, has %v", ownerID, a.ID, i+1, positionString(a.QueuePosition)))
			continue
		}
		if byArrival[i].ID != a.ID {
			violations = append(violations, fmt.Sprintf("queue %s: position %d holds %s, arrival order expects %s", ownerID, i+1, a.ID, byArrival[i].ID))
		}
	}
	return violations, nil
}

func positionString(p *int) string {
	if p == nil {
		return "none"
	}
	return fmt.Sprint(*p)
}
