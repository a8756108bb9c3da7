package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusWaiting   AppointmentStatus = "WAITING"
	StatusScheduled AppointmentStatus = "SCHEDULED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"
)

type AvailabilityStatus string

const (
	Available AvailabilityStatus = "AVAILABLE"
	OnLeave   AvailabilityStatus = "ON_LEAVE"
)

type Staff struct {
	ID            uuid.UUID
	OwnerID       uuid.UUID
	Name          string
	ServiceType   string
	DailyCapacity int
	Availability  AvailabilityStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Offering is a bookable service. StaffType is the skill a staff member needs
// to perform it.
type Offering struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Name      string
	StaffType string
}

// Appointment is a customer booking. QueuePosition is set only while the
// appointment is WAITING.
type Appointment struct {
	ID            uuid.UUID
	OwnerID       uuid.UUID
	CustomerName  string
	ServiceID     uuid.UUID
	StaffID       *uuid.UUID
	StartTime     time.Time
	EndTime       time.Time
	Status        AppointmentStatus
	QueuePosition *int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (a Appointment) Interval() Interval {
	return Interval{Start: a.StartTime, End: a.EndTime}
}

// Interval is a half-open [Start, End) time range.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Overlaps(o Interval) bool {
	return o.Start.Before(i.End) && o.End.After(i.Start)
}

type EventLog struct {
	ID            int64
	EventType     string
	OwnerID       uuid.UUID
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type LoadStatus string

const (
	LoadOK     LoadStatus = "OK"
	LoadBooked LoadStatus = "BOOKED"
)

// StaffLoad is one row of the per-day staff load summary.
type StaffLoad struct {
	StaffID      uuid.UUID
	Name         string
	Scheduled    int
	Capacity     int
	Status       LoadStatus
	Availability AvailabilityStatus
}

// DaySummary is the owner's dashboard view of one owner-local day. Waiting is
// the whole queue, not only the day's rows.
type DaySummary struct {
	DayStart  time.Time
	DayEnd    time.Time
	Total     int
	Scheduled int
	Completed int
	Waiting   int
}
