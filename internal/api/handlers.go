package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/staff-queue-scheduling/internal/scheduling"
)

type handlers struct {
	svc    SchedulingService
	logger *slog.Logger
	loc    *time.Location
}

func (h *handlers) listQueue(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := uuidParam(w, r, "ownerID")
	if !ok {
		return
	}

	waiting, err := h.svc.ListWaiting(r.Context(), ownerID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp := QueueResponse{OwnerID: ownerID, Appointments: make([]AppointmentResponse, len(waiting))}
	for i := range waiting {
		resp.Appointments[i] = toAppointmentResponse(&waiting[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) assignFromQueue(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := uuidParam(w, r, "ownerID")
	if !ok {
		return
	}

	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	staffID, err := uuid.Parse(req.StaffID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_staff_id", "staff_id must be a valid UUID")
		return
	}

	appt, err := h.svc.AssignFromQueue(r.Context(), ownerID, staffID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) bookAppointment(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := uuidParam(w, r, "ownerID")
	if !ok {
		return
	}

	var req BookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	serviceID, err := uuid.Parse(req.ServiceID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
		return
	}

	bookReq := scheduling.BookRequest{
		CustomerName: req.CustomerName,
		ServiceID:    serviceID,
		Start:        req.StartTime,
		End:          req.EndTime,
	}
	if req.StaffID != "" {
		staffID, err := uuid.Parse(req.StaffID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_staff_id", "staff_id must be a valid UUID")
			return
		}
		bookReq.StaffID = &staffID
	}

	res, err := h.svc.Book(r.Context(), ownerID, bookReq)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, BookResponse{
		Appointment: toAppointmentResponse(res.Appointment),
		Queued:      res.Queued,
		Reason:      res.Reason,
		ReasonCode:  res.ReasonCode,
	})
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Cancel)
}

func (h *handlers) completeAppointment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Complete)
}

func (h *handlers) transition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, ownerID, id uuid.UUID) (*scheduling.Appointment, error)) {
	ownerID, ok := uuidParam(w, r, "ownerID")
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	appt, err := apply(r.Context(), ownerID, id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) checkEligibility(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := uuidParam(w, r, "ownerID")
	if !ok {
		return
	}
	staffID, ok := uuidParam(w, r, "staffID")
	if !ok {
		return
	}
	appointmentID, ok := uuidParam(w, r, "appointmentID")
	if !ok {
		return
	}

	err := h.svc.CheckEligibility(r.Context(), ownerID, staffID, appointmentID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, EligibilityResponse{Eligible: true})
	case errors.Is(err, scheduling.ErrAppointmentNotFound), errors.Is(err, scheduling.ErrServiceNotFound):
		h.handleServiceError(w, r, err)
	case scheduling.IsIneligible(err):
		writeJSON(w, http.StatusOK, EligibilityResponse{
			Eligible:   false,
			ReasonCode: scheduling.ReasonCode(err),
			Reason:     err.Error(),
		})
	default:
		h.handleServiceError(w, r, err)
	}
}

func (h *handlers) staffLoad(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := uuidParam(w, r, "ownerID")
	if !ok {
		return
	}

	day, ok := h.dayParam(w, r)
	if !ok {
		return
	}

	loads, err := h.svc.StaffLoad(r.Context(), ownerID, day)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp := make([]StaffLoadResponse, len(loads))
	for i, l := range loads {
		resp[i] = StaffLoadResponse{
			StaffID:      l.StaffID,
			Name:         l.Name,
			Scheduled:    l.Scheduled,
			Capacity:     l.Capacity,
			Status:       string(l.Status),
			Availability: string(l.Availability),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) daySummary(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := uuidParam(w, r, "ownerID")
	if !ok {
		return
	}
	day, ok := h.dayParam(w, r)
	if !ok {
		return
	}

	sum, err := h.svc.DaySummary(r.Context(), ownerID, day)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, DaySummaryResponse{
		Date:      sum.DayStart.In(h.loc).Format(time.DateOnly),
		Total:     sum.Total,
		Scheduled: sum.Scheduled,
		Completed: sum.Completed,
		Waiting:   sum.Waiting,
	})
}

func (h *handlers) recentEvents(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := uuidParam(w, r, "ownerID")
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := h.svc.RecentEvents(r.Context(), ownerID, limit)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp := make([]EventResponse, len(events))
	for i, ev := range events {
		resp[i] = toEventResponse(ev)
	}
	writeJSON(w, http.StatusOK, resp)
}

// dayParam reads ?date=YYYY-MM-DD in the owner's zone, defaulting to today.
func (h *handlers) dayParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Now().In(h.loc), true
	}
	day, err := time.ParseInLocation(time.DateOnly, raw, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return day, true
}

func (h *handlers) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scheduling.ErrStaffNotFound):
		writeError(w, http.StatusNotFound, "staff_not_found", err.Error())
	case errors.Is(err, scheduling.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrNoEligibleAppointment):
		writeError(w, http.StatusConflict, "no_eligible_appointment", err.Error())
	case errors.Is(err, scheduling.ErrConflictDuringAssignment):
		writeError(w, http.StatusConflict, "conflict_during_assignment", "assignment lost a concurrent update, please retry")
	case errors.Is(err, scheduling.ErrStatusChanged):
		writeError(w, http.StatusConflict, "status_changed", err.Error())
	case errors.Is(err, scheduling.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, scheduling.ErrInvalidInterval), errors.Is(err, scheduling.ErrMissingCustomerName):
		writeError(w, http.StatusBadRequest, "invalid_appointment", err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path, "request_id", GetRequestID(r.Context()), "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// paramFields maps route parameters to the field names used in error codes.
var paramFields = map[string]string{
	"ownerID":       "owner_id",
	"staffID":       "staff_id",
	"appointmentID": "appointment_id",
	"id":            "appointment_id",
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		field := paramFields[name]
		writeError(w, http.StatusBadRequest, "invalid_"+field, field+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
