package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Evaluator decides whether a staff member can take an appointment interval.
// It never writes. Checks run in a fixed order and the first failure is the
// reported reason.
type Evaluator struct {
	loc *time.Location
}

func NewEvaluator(loc *time.Location) *Evaluator {
	if loc == nil {
		loc = time.UTC
	}
	return &Evaluator{loc: loc}
}

// DayBounds returns the owner-local calendar day containing t as [start, end).
func (e *Evaluator) DayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.In(e.loc).Date()
	return startOfDate(y, m, d, e.loc), startOfDate(y, m, d+1, e.loc)
}

// startOfDate returns the first instant whose local date is y-m-d. When a
// zone change skips midnight, time.Date can land on the previous evening, so
// the start moves to the end of that zone period.
func startOfDate(y int, m time.Month, d int, loc *time.Location) time.Time {
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	wy, wm, wd := time.Date(y, m, d, 12, 0, 0, 0, loc).Date()
	if sy, sm, sd := start.Date(); sy != wy || sm != wm || sd != wd {
		if _, end := start.ZoneBounds(); !end.IsZero() {
			start = end
		}
	}
	return start
}

// Evaluate runs the eligibility checks against r. A nil result means eligible.
// Ineligibility is reported with the errors matched by IsIneligible; anything
// else is a read failure.
func (e *Evaluator) Evaluate(ctx context.Context, r EligibilityReader, ownerID, staffID uuid.UUID, requiredType string, iv Interval) error {
	staff, err := r.GetStaff(ctx, ownerID, staffID)
	if err != nil {
		if errors.Is(err, ErrStaffNotFound) {
			return ErrStaffNotFound
		}
		return fmt.Errorf("load staff: %w", err)
	}

	if err := checkStaff(staff, ownerID, requiredType); err != nil {
		return err
	}

	dayStart, dayEnd := e.DayBounds(iv.Start)
	count, err := r.CountScheduledForStaff(ctx, staff.ID, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("count scheduled appointments: %w", err)
	}
	if err := checkCapacity(staff, count); err != nil {
		return err
	}

	conflict, err := r.FindConflictingScheduled(ctx, staff.ID, iv.Start, iv.End)
	if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
		return fmt.Errorf("check conflicting appointments: %w", err)
	}
	if conflict != nil {
		return ErrTimeConflict
	}

	return nil
}

// Snapshot is a point-in-time view of everything the checks look at.
// Scheduled holds the staff member's SCHEDULED appointments; other statuses
// and other staff are ignored.
type Snapshot struct {
	Staff        *Staff
	OwnerID      uuid.UUID
	RequiredType string
	Interval     Interval
	Scheduled    []Appointment
}

// EvaluateSnapshot is Evaluate over an in-memory snapshot.
func (e *Evaluator) EvaluateSnapshot(s Snapshot) error {
	if err := checkStaff(s.Staff, s.OwnerID, s.RequiredType); err != nil {
		return err
	}

	dayStart, dayEnd := e.DayBounds(s.Interval.Start)
	count := 0
	for _, a := range s.Scheduled {
		if !isScheduledFor(a, s.Staff.ID) {
			continue
		}
		if !a.StartTime.Before(dayStart) && a.StartTime.Before(dayEnd) {
			count++
		}
	}
	if err := checkCapacity(s.Staff, count); err != nil {
		return err
	}

	for _, a := range s.Scheduled {
		if isScheduledFor(a, s.Staff.ID) && a.Interval().Overlaps(s.Interval) {
			return ErrTimeConflict
		}
	}

	return nil
}

func checkStaff(staff *Staff, ownerID uuid.UUID, requiredType string) error {
	if staff == nil || staff.OwnerID != ownerID {
		return ErrStaffNotFound
	}
	if staff.Availability != Available {
		return ErrStaffUnavailable
	}
	if staff.ServiceType != requiredType {
		return ErrSkillMismatch
	}
	return nil
}

func checkCapacity(staff *Staff, count int) error {
	if count >= staff.DailyCapacity {
		return &CapacityExceededError{
			StaffName: staff.Name,
			Count:     count,
			Capacity:  staff.DailyCapacity,
		}
	}
	return nil
}

func isScheduledFor(a Appointment, staffID uuid.UUID) bool {
	return a.Status == StatusScheduled && a.StaffID != nil && *a.StaffID == staffID
}
