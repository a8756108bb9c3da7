package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/staff-queue-scheduling/internal/scheduling"
)

type BookAppointmentRequest struct {
	CustomerName string    `json:"customer_name"`
	ServiceID    string    `json:"service_id"`
	StaffID      string    `json:"staff_id,omitempty"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
}

type AssignRequest struct {
	StaffID string `json:"staff_id"`
}

type AppointmentResponse struct {
	ID            uuid.UUID  `json:"id"`
	OwnerID       uuid.UUID  `json:"owner_id"`
	CustomerName  string     `json:"customer_name"`
	ServiceID     uuid.UUID  `json:"service_id"`
	StaffID       *uuid.UUID `json:"staff_id,omitempty"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	Status        string     `json:"status"`
	QueuePosition *int       `json:"queue_position,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type BookResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	Queued      bool                `json:"queued"`
	Reason      string              `json:"reason,omitempty"`
	ReasonCode  string              `json:"reason_code,omitempty"`
}

type QueueResponse struct {
	OwnerID      uuid.UUID             `json:"owner_id"`
	Appointments []AppointmentResponse `json:"appointments"`
}

type EligibilityResponse struct {
	Eligible   bool   `json:"eligible"`
	ReasonCode string `json:"reason_code,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type StaffLoadResponse struct {
	StaffID      uuid.UUID `json:"staff_id"`
	Name         string    `json:"name"`
	Scheduled    int       `json:"scheduled"`
	Capacity     int       `json:"capacity"`
	Status       string    `json:"status"`
	Availability string    `json:"availability"`
}

type DaySummaryResponse struct {
	Date      string `json:"date"`
	Total     int    `json:"total"`
	Scheduled int    `json:"scheduled"`
	Completed int    `json:"completed"`
	Waiting   int    `json:"waiting"`
}

type EventResponse struct {
	ID            int64           `json:"id"`
	EventType     string          `json:"event_type"`
	AppointmentID *uuid.UUID      `json:"appointment_id,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		OwnerID:       a.OwnerID,
		CustomerName:  a.CustomerName,
		ServiceID:     a.ServiceID,
		StaffID:       a.StaffID,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Status:        string(a.Status),
		QueuePosition: a.QueuePosition,
		CreatedAt:     a.CreatedAt,
	}
}

func toEventResponse(ev scheduling.EventLog) EventResponse {
	resp := EventResponse{
		ID:            ev.ID,
		EventType:     ev.EventType,
		AppointmentID: ev.AppointmentID,
		CreatedAt:     ev.CreatedAt,
	}
	if json.Valid(ev.Payload) {
		resp.Payload = ev.Payload
	}
	return resp
}
