package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	redisclient "github.com/hackgods/staff-queue-scheduling/internal/redis"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentQueued    = "APPOINTMENT_QUEUED"
	EventAppointmentAssigned  = "APPOINTMENT_ASSIGNED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventQueueReordered       = "QUEUE_REORDERED"
)

var tracer = otel.Tracer("github.com/hackgods/staff-queue-scheduling/internal/scheduling")

type Service struct {
	repo   Repository
	locker redisclient.Locker
	eval   *Evaluator
	logger *slog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, loc *time.Location, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		eval:   NewEvaluator(loc),
		logger: logger,
	}
}

// AssignFromQueue gives staffID the earliest queued appointment it is eligible
// for. The first eligible candidate wins; no attempt is made to pack the
// staff member's day.
//
// Each candidate is checked once against current state and then again inside
// a per-staff transaction that performs a conditional WAITING -> SCHEDULED
// update. A candidate taken by a concurrent call is skipped and the scan
// continues.
func (s *Service) AssignFromQueue(ctx context.Context, ownerID, staffID uuid.UUID) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "scheduling.AssignFromQueue")
	defer span.End()
	span.SetAttributes(
		attribute.String("owner_id", ownerID.String()),
		attribute.String("staff_id", staffID.String()),
	)

	assigned, err := s.assignFromQueue(ctx, span, ownerID, staffID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return assigned, nil
}

func (s *Service) assignFromQueue(ctx context.Context, span trace.Span, ownerID, staffID uuid.UUID) (*Appointment, error) {
	if _, err := s.repo.GetStaff(ctx, ownerID, staffID); err != nil {
		if errors.Is(err, ErrStaffNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load staff: %w", err)
	}

	waiting, err := s.repo.ListWaiting(ctx, ownerID, OrderByQueuePosition)
	if err != nil {
		return nil, fmt.Errorf("list waiting appointments: %w", err)
	}
	span.SetAttributes(attribute.Int("queue.length", len(waiting)))

	for _, cand := range waiting {
		requiredType, err := s.repo.GetServiceRequiredType(ctx, ownerID, cand.ServiceID)
		if err != nil {
			if errors.Is(err, ErrServiceNotFound) {
				s.logger.WarnContext(ctx, "skipping waiting appointment with missing service",
					"owner_id", ownerID, "appointment_id", cand.ID, "service_id", cand.ServiceID)
				continue
			}
			return nil, fmt.Errorf("resolve service: %w", err)
		}

		iv := cand.Interval()
		if err := s.eval.Evaluate(ctx, s.repo, ownerID, staffID, requiredType, iv); err != nil {
			if IsIneligible(err) {
				s.logger.DebugContext(ctx, "candidate not eligible",
					"appointment_id", cand.ID, "staff_id", staffID, "reason", ReasonCode(err))
				continue
			}
			return nil, err
		}

		assigned, err := s.scheduleCandidate(ctx, ownerID, staffID, cand.ID, requiredType, iv)
		switch {
		case err == nil:
			s.afterAssign(ctx, ownerID, staffID, assigned)
			return assigned, nil
		case errors.Is(err, ErrStatusChanged):
			s.logger.InfoContext(ctx, "candidate taken concurrently, continuing scan",
				"appointment_id", cand.ID, "staff_id", staffID)
			continue
		case IsIneligible(err):
			s.logger.InfoContext(ctx, "candidate became ineligible at write time",
				"appointment_id", cand.ID, "staff_id", staffID, "reason", ReasonCode(err))
			continue
		default:
			return nil, err
		}
	}

	return nil, ErrNoEligibleAppointment
}

// scheduleCandidate re-validates eligibility and performs the conditional
// update inside one per-staff transaction. Concurrency failures arrive already
// marked ErrConflictDuringAssignment by WithStaffTx.
func (s *Service) scheduleCandidate(ctx context.Context, ownerID, staffID, appointmentID uuid.UUID, requiredType string, iv Interval) (*Appointment, error) {
	var assigned *Appointment
	err := s.repo.WithStaffTx(ctx, ownerID, staffID, func(txCtx context.Context, tx StaffTx) error {
		if err := s.eval.Evaluate(txCtx, tx, ownerID, staffID, requiredType, iv); err != nil {
			return err
		}
		a, err := tx.ScheduleWaiting(txCtx, ownerID, appointmentID, staffID)
		if err != nil {
			return err
		}
		assigned = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assigned, nil
}

func (s *Service) afterAssign(ctx context.Context, ownerID, staffID uuid.UUID, assigned *Appointment) {
	s.logger.InfoContext(ctx, "assigned appointment from queue",
		"owner_id", ownerID, "staff_id", staffID, "appointment_id", assigned.ID,
		"start", assigned.StartTime)

	s.logEvent(ctx, ownerID, assigned.ID, EventAppointmentAssigned, map[string]any{
		"staff_id": staffID.String(),
		"start":    assigned.StartTime,
		"end":      assigned.EndTime,
	})

	// Positions may lag briefly if this fails; ListWaiting falls back to start time.
	if err := s.Reorder(ctx, ownerID); err != nil {
		s.logger.ErrorContext(ctx, "reorder after assignment failed", "owner_id", ownerID, "err", err)
	}
}

type BookRequest struct {
	CustomerName string
	ServiceID    uuid.UUID
	Start        time.Time
	End          time.Time
	StaffID      *uuid.UUID
}

type BookResult struct {
	Appointment *Appointment
	// Queued is true when the appointment went to the waiting queue.
	Queued bool
	// Reason explains why the requested staff member was not used.
	Reason     string
	ReasonCode string
}

// Book creates an appointment. With a staff member that passes eligibility it
// is SCHEDULED directly; otherwise it joins the waiting queue.
func (s *Service) Book(ctx context.Context, ownerID uuid.UUID, req BookRequest) (*BookResult, error) {
	ctx, span := tracer.Start(ctx, "scheduling.Book")
	defer span.End()
	span.SetAttributes(attribute.String("owner_id", ownerID.String()))

	res, err := s.book(ctx, ownerID, req)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("queued", res.Queued))
	return res, nil
}

func (s *Service) book(ctx context.Context, ownerID uuid.UUID, req BookRequest) (*BookResult, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.CustomerName == "" {
		return nil, ErrMissingCustomerName
	}
	if !req.End.After(req.Start) {
		return nil, ErrInvalidInterval
	}

	requiredType, err := s.repo.GetServiceRequiredType(ctx, ownerID, req.ServiceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve service: %w", err)
	}

	appt := Appointment{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		CustomerName: req.CustomerName,
		ServiceID:    req.ServiceID,
		StartTime:    req.Start,
		EndTime:      req.End,
	}
	iv := appt.Interval()

	result := &BookResult{}

	if req.StaffID != nil {
		staffID := *req.StaffID
		var created *Appointment
		err := s.repo.WithStaffTx(ctx, ownerID, staffID, func(txCtx context.Context, tx StaffTx) error {
			if err := s.eval.Evaluate(txCtx, tx, ownerID, staffID, requiredType, iv); err != nil {
				return err
			}
			scheduled := appt
			scheduled.Status = StatusScheduled
			scheduled.StaffID = &staffID
			c, err := tx.CreateAppointment(txCtx, scheduled)
			if err != nil {
				return fmt.Errorf("create scheduled appointment: %w", err)
			}
			created = c
			return nil
		})
		if err == nil {
			s.logEvent(ctx, ownerID, created.ID, EventAppointmentBooked, map[string]any{
				"staff_id": staffID.String(),
				"start":    created.StartTime,
				"end":      created.EndTime,
			})
			result.Appointment = created
			return result, nil
		}
		if !IsIneligible(err) {
			return nil, err
		}
		result.Reason = err.Error()
		result.ReasonCode = ReasonCode(err)
	}

	appt.Status = StatusWaiting
	created, err := s.repo.CreateAppointment(ctx, appt)
	if err != nil {
		return nil, fmt.Errorf("create waiting appointment: %w", err)
	}

	s.logEvent(ctx, ownerID, created.ID, EventAppointmentQueued, map[string]any{
		"start":  created.StartTime,
		"end":    created.EndTime,
		"reason": result.ReasonCode,
	})

	if err := s.Reorder(ctx, ownerID); err != nil {
		s.logger.ErrorContext(ctx, "reorder after booking failed", "owner_id", ownerID, "err", err)
	} else if fresh, err := s.repo.GetAppointment(ctx, ownerID, created.ID); err == nil {
		created = fresh
	}

	result.Appointment = created
	result.Queued = true
	return result, nil
}

// Cancel moves a WAITING or SCHEDULED appointment to CANCELLED and compacts
// the queue when a waiting row was removed.
func (s *Service) Cancel(ctx context.Context, ownerID, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status != StatusWaiting && appt.Status != StatusScheduled {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, ownerID, id, appt.Status, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, err
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, ownerID, id, EventAppointmentCancelled, map[string]any{
		"previous_status": string(appt.Status),
	})

	if appt.Status == StatusWaiting {
		if err := s.Reorder(ctx, ownerID); err != nil {
			s.logger.ErrorContext(ctx, "reorder after cancellation failed", "owner_id", ownerID, "err", err)
		}
	}

	return updated, nil
}

// Complete marks a SCHEDULED appointment as COMPLETED.
func (s *Service) Complete(ctx context.Context, ownerID, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status != StatusScheduled {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, ownerID, id, StatusScheduled, StatusCompleted)
	if err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, err
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	s.logEvent(ctx, ownerID, id, EventAppointmentCompleted, map[string]any{})
	return updated, nil
}

// CheckEligibility evaluates staffID against an existing appointment without
// changing anything. nil means eligible.
func (s *Service) CheckEligibility(ctx context.Context, ownerID, staffID, appointmentID uuid.UUID) error {
	appt, err := s.repo.GetAppointment(ctx, ownerID, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("load appointment: %w", err)
	}

	requiredType, err := s.repo.GetServiceRequiredType(ctx, ownerID, appt.ServiceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return err
		}
		return fmt.Errorf("resolve service: %w", err)
	}

	return s.eval.Evaluate(ctx, s.repo, ownerID, staffID, requiredType, appt.Interval())
}

// StaffLoad summarizes each staff member's SCHEDULED count for the owner-local
// day containing day, ordered by name.
func (s *Service) StaffLoad(ctx context.Context, ownerID uuid.UUID, day time.Time) ([]StaffLoad, error) {
	staff, err := s.repo.ListStaff(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}

	dayStart, dayEnd := s.eval.DayBounds(day)
	out := make([]StaffLoad, len(staff))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, st := range staff {
		g.Go(func() error {
			count, err := s.repo.CountScheduledForStaff(gctx, st.ID, dayStart, dayEnd)
			if err != nil {
				return fmt.Errorf("count scheduled for %s: %w", st.ID, err)
			}
			status := LoadOK
			if count >= st.DailyCapacity {
				status = LoadBooked
			}
			out[i] = StaffLoad{
				StaffID:      st.ID,
				Name:         st.Name,
				Scheduled:    count,
				Capacity:     st.DailyCapacity,
				Status:       status,
				Availability: st.Availability,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

const (
	DefaultRecentEvents = 10
	MaxRecentEvents     = 100
)

// DaySummary counts the owner's appointments for the owner-local day
// containing day, alongside the current waiting queue length.
func (s *Service) DaySummary(ctx context.Context, ownerID uuid.UUID, day time.Time) (*DaySummary, error) {
	ctx, span := tracer.Start(ctx, "scheduling.DaySummary")
	defer span.End()
	span.SetAttributes(attribute.String("owner_id", ownerID.String()))

	dayStart, dayEnd := s.eval.DayBounds(day)
	sum := &DaySummary{DayStart: dayStart, DayEnd: dayEnd}

	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int, status AppointmentStatus) {
		g.Go(func() error {
			n, err := s.repo.CountInDay(gctx, ownerID, status, dayStart, dayEnd)
			if err != nil {
				return fmt.Errorf("count %q appointments: %w", status, err)
			}
			*dst = n
			return nil
		})
	}
	count(&sum.Total, "")
	count(&sum.Scheduled, StatusScheduled)
	count(&sum.Completed, StatusCompleted)
	g.Go(func() error {
		n, err := s.repo.CountWaiting(gctx, ownerID)
		if err != nil {
			return fmt.Errorf("count waiting appointments: %w", err)
		}
		sum.Waiting = n
		return nil
	})

	if err := g.Wait(); err != nil {
		recordError(span, err)
		return nil, err
	}
	return sum, nil
}

// RecentEvents returns the owner's latest event log entries, newest first.
// A limit outside 1..MaxRecentEvents falls back to DefaultRecentEvents or is
// capped.
func (s *Service) RecentEvents(ctx context.Context, ownerID uuid.UUID, limit int) ([]EventLog, error) {
	switch {
	case limit <= 0:
		limit = DefaultRecentEvents
	case limit > MaxRecentEvents:
		limit = MaxRecentEvents
	}

	events, err := s.repo.ListRecentEvents(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent events: %w", err)
	}
	return events, nil
}

func (s *Service) logEvent(ctx context.Context, ownerID, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to marshal event payload", "event_type", eventType, "err", err)
		data = nil
	}

	ev := EventLog{
		EventType: eventType,
		OwnerID:   ownerID,
		Payload:   data,
		CreatedAt: time.Now(),
	}
	if appointmentID != uuid.Nil {
		apptID := appointmentID
		ev.AppointmentID = &apptID
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "failed to insert event log",
			"event_type", eventType, "appointment_id", appointmentID, "err", err)
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
