package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queries holds the statements shared by the pool and per-staff transactions.
type queries struct {
	db dbtx
}

type PgRepository struct {
	queries
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{queries: queries{db: pool}, pool: pool}
}

const appointmentColumns = `id, owner_id, customer_name, service_id, staff_id, start_time, end_time, status, queue_position, created_at, updated_at`

// Helpers

func scanStaff(row pgx.Row) (*Staff, error) {
	var s Staff

	err := row.Scan(
		&s.ID,
		&s.OwnerID,
		&s.Name,
		&s.ServiceType,
		&s.DailyCapacity,
		&s.Availability,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaffNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var staffID *uuid.UUID
	var position *int32

	err := row.Scan(
		&a.ID,
		&a.OwnerID,
		&a.CustomerName,
		&a.ServiceID,
		&staffID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&position,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.StaffID = staffID
	if position != nil {
		p := int(*position)
		a.QueuePosition = &p
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// isConcurrencyFailure matches serialization failures, deadlocks and lock
// timeouts.
func isConcurrencyFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}

// Shared statements

func (q queries) GetStaff(ctx context.Context, ownerID, staffID uuid.UUID) (*Staff, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, owner_id, name, service_type, daily_capacity, availability_status, created_at, updated_at
		FROM staff
		WHERE id = $1 AND owner_id = $2
	`, staffID, ownerID)
	return scanStaff(row)
}

func (q queries) CountScheduledForStaff(ctx context.Context, staffID uuid.UUID, dayStart, dayEnd time.Time) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE staff_id = $1
		  AND status = 'SCHEDULED'
		  AND start_time >= $2
		  AND start_time < $3
	`, staffID, dayStart, dayEnd).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (q queries) FindConflictingScheduled(ctx context.Context, staffID uuid.UUID, start, end time.Time) (*Appointment, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE staff_id = $1
		  AND status = 'SCHEDULED'
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
		LIMIT 1
	`, staffID, start, end)
	return scanAppointment(row)
}

func (q queries) ScheduleWaiting(ctx context.Context, ownerID, appointmentID, staffID uuid.UUID) (*Appointment, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'SCHEDULED',
		    staff_id = $3,
		    queue_position = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND owner_id = $2
		  AND status = 'WAITING'
		RETURNING `+appointmentColumns, appointmentID, ownerID, staffID)

	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrStatusChanged
	}
	return a, err
}

func (q queries) CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}

	row := q.db.QueryRow(ctx, `
		INSERT INTO appointments (id, owner_id, customer_name, service_id, staff_id, start_time, end_time, status, queue_position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, now(), now())
		RETURNING `+appointmentColumns,
		appt.ID, appt.OwnerID, appt.CustomerName, appt.ServiceID, appt.StaffID, appt.StartTime, appt.EndTime, appt.Status)

	return scanAppointment(row)
}

func (q queries) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, owner_id, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.OwnerID, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

// Pool-only statements

func (r *PgRepository) GetAppointment(ctx context.Context, ownerID, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	return scanAppointment(row)
}

func (r *PgRepository) GetServiceRequiredType(ctx context.Context, ownerID, serviceID uuid.UUID) (string, error) {
	var staffType string
	err := r.pool.QueryRow(ctx, `
		SELECT staff_type
		FROM services
		WHERE id = $1 AND owner_id = $2
	`, serviceID, ownerID).Scan(&staffType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrServiceNotFound
		}
		return "", err
	}
	return staffType, nil
}

func (r *PgRepository) ListStaff(ctx context.Context, ownerID uuid.UUID) ([]Staff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_id, name, service_type, daily_capacity, availability_status, created_at, updated_at
		FROM staff
		WHERE owner_id = $1
		ORDER BY name, id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListWaiting(ctx context.Context, ownerID uuid.UUID, order WaitingOrder) ([]Appointment, error) {
	orderBy := `queue_position ASC NULLS LAST, start_time ASC, created_at ASC, id ASC`
	if order == OrderByArrival {
		orderBy = `start_time ASC, created_at ASC, id ASC`
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE owner_id = $1 AND status = 'WAITING'
		ORDER BY `+orderBy, ownerID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CountWaiting(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE owner_id = $1 AND status = 'WAITING'
	`, ownerID).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PgRepository) CountInDay(ctx context.Context, ownerID uuid.UUID, status AppointmentStatus, dayStart, dayEnd time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE owner_id = $1
		  AND ($2::text = '' OR status = $2::text)
		  AND start_time >= $3
		  AND start_time < $4
	`, ownerID, string(status), dayStart, dayEnd).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// SetQueuePositions writes positions 1..N in one statement and clears any
// position left on a row that is no longer waiting.
func (r *PgRepository) SetQueuePositions(ctx context.Context, ownerID uuid.UUID, orderedIDs []uuid.UUID) error {
	ids := make([]string, len(orderedIDs))
	for i, id := range orderedIDs {
		ids[i] = id.String()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE appointments AS a
		SET queue_position = o.pos,
		    updated_at = now()
		FROM unnest($2::uuid[]) WITH ORDINALITY AS o(id, pos)
		WHERE a.id = o.id
		  AND a.owner_id = $1
		  AND a.status = 'WAITING'
		  AND a.queue_position IS DISTINCT FROM o.pos
	`, ownerID, ids)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE appointments
		SET queue_position = NULL,
		    updated_at = now()
		WHERE owner_id = $1
		  AND status <> 'WAITING'
		  AND queue_position IS NOT NULL
	`, ownerID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, ownerID, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3,
		    queue_position = CASE WHEN $3 = 'WAITING' THEN queue_position ELSE NULL END,
		    updated_at = now()
		WHERE id = $1
		  AND owner_id = $2
		  AND status = $4
		RETURNING `+appointmentColumns, id, ownerID, to, from)

	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrStatusChanged
	}
	return a, err
}

// WithStaffTx runs fn in a transaction holding the staff row lock, so
// capacity and overlap checks inside fn cannot race another writer for the
// same staff member.
func (r *PgRepository) WithStaffTx(ctx context.Context, ownerID, staffID uuid.UUID, fn func(ctx context.Context, tx StaffTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id
		FROM staff
		WHERE id = $1 AND owner_id = $2
		FOR UPDATE
	`, staffID, ownerID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStaffNotFound
		}
		if isConcurrencyFailure(err) {
			return fmt.Errorf("%w: %w", ErrConflictDuringAssignment, err)
		}
		return fmt.Errorf("lock staff: %w", err)
	}

	if err := fn(ctx, queries{db: tx}); err != nil {
		if isConcurrencyFailure(err) {
			return fmt.Errorf("%w: %w", ErrConflictDuringAssignment, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrConflictDuringAssignment, err)
	}
	return nil
}

func (r *PgRepository) ListRecentEvents(ctx context.Context, ownerID uuid.UUID, limit int) ([]EventLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_type, owner_id, appointment_id, payload, created_at
		FROM event_logs
		WHERE owner_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []EventLog
	for rows.Next() {
		var ev EventLog
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.OwnerID, &ev.AppointmentID, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
