package scheduling

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

var (
	ErrStaffNotFound       = fmt.Errorf("staff %w", ErrNotFound)
	ErrServiceNotFound     = fmt.Errorf("service %w", ErrNotFound)
	ErrAppointmentNotFound = fmt.Errorf("appointment %w", ErrNotFound)
)

// Eligibility failures. They steer the assignment scan and are never returned
// from AssignFromQueue on their own.
var (
	ErrStaffUnavailable = errors.New("staff is on leave")
	ErrSkillMismatch    = errors.New("staff service type mismatch")
	ErrCapacityExceeded = errors.New("staff daily capacity reached")
	ErrTimeConflict     = errors.New("staff already has an appointment at this time")
)

var (
	ErrNoEligibleAppointment    = errors.New("no eligible waiting appointment for this staff")
	ErrConflictDuringAssignment = errors.New("appointment changed during assignment, please retry")
	ErrStatusChanged            = errors.New("appointment status changed concurrently")
	ErrInvalidStatusTransition  = errors.New("invalid status transition")
	ErrInvalidInterval          = errors.New("end time must be after start time")
	ErrMissingCustomerName      = errors.New("customer name is required")
)

type CapacityExceededError struct {
	StaffName string
	Count     int
	Capacity  int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("%s already has %d appointments today (capacity %d)", e.StaffName, e.Count, e.Capacity)
}

func (e *CapacityExceededError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// IsIneligible reports whether err is one of the eligibility outcomes rather
// than an infrastructure failure.
func IsIneligible(err error) bool {
	return errors.Is(err, ErrStaffNotFound) ||
		errors.Is(err, ErrStaffUnavailable) ||
		errors.Is(err, ErrSkillMismatch) ||
		errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrTimeConflict)
}

// ReasonCode maps an engine error to its stable outcome name.
func ReasonCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrStaffUnavailable):
		return "Unavailable"
	case errors.Is(err, ErrSkillMismatch):
		return "SkillMismatch"
	case errors.Is(err, ErrCapacityExceeded):
		return "CapacityExceeded"
	case errors.Is(err, ErrTimeConflict):
		return "TimeConflict"
	case errors.Is(err, ErrNoEligibleAppointment):
		return "NoEligibleAppointment"
	case errors.Is(err, ErrConflictDuringAssignment):
		return "ConflictDuringAssignment"
	case errors.Is(err, ErrStatusChanged):
		return "StatusChanged"
	case errors.Is(err, ErrInvalidStatusTransition):
		return "InvalidStatusTransition"
	default:
		return "Internal"
	}
}
