package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type WaitingOrder int

const (
	// OrderByQueuePosition sorts by queue position, then start time for rows
	// whose position is stale or unset.
	OrderByQueuePosition WaitingOrder = iota
	// OrderByArrival is the fairness order: start time, then creation time.
	OrderByArrival
)

// EligibilityReader is the read side the evaluator needs.
type EligibilityReader interface {
	GetStaff(ctx context.Context, ownerID, staffID uuid.UUID) (*Staff, error)
	// CountScheduledForStaff counts SCHEDULED appointments starting in [dayStart, dayEnd).
	CountScheduledForStaff(ctx context.Context, staffID uuid.UUID, dayStart, dayEnd time.Time) (int, error)
	// FindConflictingScheduled returns ErrAppointmentNotFound when nothing overlaps.
	FindConflictingScheduled(ctx context.Context, staffID uuid.UUID, start, end time.Time) (*Appointment, error)
}

// StaffTx is a unit of work serialized per staff member. Reads inside it see
// the staff member's committed SCHEDULED set and no other writer can change it
// until the callback returns.
type StaffTx interface {
	EligibilityReader
	// ScheduleWaiting moves a WAITING appointment to SCHEDULED for staffID.
	// Returns ErrStatusChanged if the appointment is no longer WAITING.
	ScheduleWaiting(ctx context.Context, ownerID, appointmentID, staffID uuid.UUID) (*Appointment, error)
	CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error)
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	EligibilityReader

	GetAppointment(ctx context.Context, ownerID, id uuid.UUID) (*Appointment, error)
	GetServiceRequiredType(ctx context.Context, ownerID, serviceID uuid.UUID) (string, error)
	ListStaff(ctx context.Context, ownerID uuid.UUID) ([]Staff, error)

	// Queue
	ListWaiting(ctx context.Context, ownerID uuid.UUID, order WaitingOrder) ([]Appointment, error)
	SetQueuePositions(ctx context.Context, ownerID uuid.UUID, orderedIDs []uuid.UUID) error

	// Creation and updates
	CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, ownerID, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	WithStaffTx(ctx context.Context, ownerID, staffID uuid.UUID, fn func(ctx context.Context, tx StaffTx) error) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
	// ListRecentEvents returns the owner's newest events first.
	ListRecentEvents(ctx context.Context, ownerID uuid.UUID, limit int) ([]EventLog, error)

	// Dashboard
	// CountInDay counts the owner's appointments starting in [dayStart, dayEnd).
	// An empty status counts every status.
	CountInDay(ctx context.Context, ownerID uuid.UUID, status AppointmentStatus, dayStart, dayEnd time.Time) (int, error)
	CountWaiting(ctx context.Context, ownerID uuid.UUID) (int, error)
}
