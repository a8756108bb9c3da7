package scheduling

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo is an in-memory Repository. WithStaffTx holds a per-staff mutex for
// the whole callback, mirroring the row lock the Postgres repository takes.
type memRepo struct {
	mu           sync.Mutex
	staff        map[uuid.UUID]Staff
	services     map[uuid.UUID]Offering
	appointments map[uuid.UUID]*Appointment
	events       []EventLog

	staffMu sync.Map // staff id -> *sync.Mutex

	clock time.Time

	// failSchedule, when set, is returned by ScheduleWaiting.
	failSchedule error
	// beforeSchedule runs inside ScheduleWaiting before the status check.
	beforeSchedule func(appointmentID uuid.UUID)
	setPositionCalls int
}

func newMemRepo() *memRepo {
	return &memRepo{
		staff:        make(map[uuid.UUID]Staff),
		services:     make(map[uuid.UUID]Offering),
		appointments: make(map[uuid.UUID]*Appointment),
		clock:        time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC),
	}
}

func (m *memRepo) addStaff(s Staff) Staff {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Availability == "" {
		s.Availability = Available
	}
	m.staff[s.ID] = s
	return s
}

func (m *memRepo) addService(s Offering) Offering {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	m.services[s.ID] = s
	return s
}

// addAppointment stores a copy; CreatedAt defaults to a strictly increasing clock.
func (m *memRepo) addAppointment(a Appointment) Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = m.tick()
	}
	cp := a
	m.appointments[a.ID] = &cp
	return a
}

func (m *memRepo) get(id uuid.UUID) Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.appointments[id]
}

func (m *memRepo) all() []Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Appointment, 0, len(m.appointments))
	for _, a := range m.appointments {
		out = append(out, *a)
	}
	return out
}

func (m *memRepo) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.EventType
	}
	return out
}

func (m *memRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memRepo) GetStaff(ctx context.Context, ownerID, staffID uuid.UUID) (*Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staff[staffID]
	if !ok || s.OwnerID != ownerID {
		return nil, ErrStaffNotFound
	}
	return &s, nil
}

func (m *memRepo) CountScheduledForStaff(ctx context.Context, staffID uuid.UUID, dayStart, dayEnd time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.appointments {
		if isScheduledFor(*a, staffID) && !a.StartTime.Before(dayStart) && a.StartTime.Before(dayEnd) {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) FindConflictingScheduled(ctx context.Context, staffID uuid.UUID, start, end time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	iv := Interval{Start: start, End: end}
	for _, a := range m.appointments {
		if isScheduledFor(*a, staffID) && a.Interval().Overlaps(iv) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (m *memRepo) GetAppointment(ctx context.Context, ownerID, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.OwnerID != ownerID {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) GetServiceRequiredType(ctx context.Context, ownerID, serviceID uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[serviceID]
	if !ok || s.OwnerID != ownerID {
		return "", ErrServiceNotFound
	}
	return s.StaffType, nil
}

func (m *memRepo) ListStaff(ctx context.Context, ownerID uuid.UUID) ([]Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Staff
	for _, s := range m.staff {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b Staff) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out, nil
}

func (m *memRepo) ListWaiting(ctx context.Context, ownerID uuid.UUID, order WaitingOrder) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appointments {
		if a.OwnerID == ownerID && a.Status == StatusWaiting {
			out = append(out, *a)
		}
	}
	if order == OrderByArrival {
		slices.SortFunc(out, CompareArrival)
	} else {
		slices.SortFunc(out, CompareQueue)
	}
	return out, nil
}

func (m *memRepo) SetQueuePositions(ctx context.Context, ownerID uuid.UUID, orderedIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setPositionCalls++
	for i, id := range orderedIDs {
		a, ok := m.appointments[id]
		if !ok || a.OwnerID != ownerID || a.Status != StatusWaiting {
			continue
		}
		pos := i + 1
		a.QueuePosition = &pos
	}
	for _, a := range m.appointments {
		if a.OwnerID == ownerID && a.Status != StatusWaiting {
			a.QueuePosition = nil
		}
	}
	return nil
}

func (m *memRepo) CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	appt.QueuePosition = nil
	appt.CreatedAt = time.Time{}
	created := m.addAppointment(appt)
	return &created, nil
}

func (m *memRepo) UpdateAppointmentStatus(ctx context.Context, ownerID, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.OwnerID != ownerID || a.Status != from {
		return nil, ErrStatusChanged
	}
	a.Status = to
	if to != StatusWaiting {
		a.QueuePosition = nil
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) ScheduleWaiting(ctx context.Context, ownerID, appointmentID, staffID uuid.UUID) (*Appointment, error) {
	if m.beforeSchedule != nil {
		m.beforeSchedule(appointmentID)
	}
	if m.failSchedule != nil {
		return nil, m.failSchedule
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[appointmentID]
	if !ok || a.OwnerID != ownerID || a.Status != StatusWaiting {
		return nil, ErrStatusChanged
	}
	a.Status = StatusScheduled
	sid := staffID
	a.StaffID = &sid
	a.QueuePosition = nil
	cp := *a
	return &cp, nil
}

func (m *memRepo) WithStaffTx(ctx context.Context, ownerID, staffID uuid.UUID, fn func(ctx context.Context, tx StaffTx) error) error {
	mu, _ := m.staffMu.LoadOrStore(staffID, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	if _, err := m.GetStaff(ctx, ownerID, staffID); err != nil {
		return err
	}
	return fn(ctx, m)
}

func (m *memRepo) InsertEvent(ctx context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}

func (m *memRepo) ListRecentEvents(ctx context.Context, ownerID uuid.UUID, limit int) ([]EventLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EventLog
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].OwnerID == ownerID {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

func (m *memRepo) CountInDay(ctx context.Context, ownerID uuid.UUID, status AppointmentStatus, dayStart, dayEnd time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.appointments {
		if a.OwnerID != ownerID || (status != "" && a.Status != status) {
			continue
		}
		if !a.StartTime.Before(dayStart) && a.StartTime.Before(dayEnd) {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) CountWaiting(ctx context.Context, ownerID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.appointments {
		if a.OwnerID == ownerID && a.Status == StatusWaiting {
			n++
		}
	}
	return n, nil
}
