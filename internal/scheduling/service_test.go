package scheduling

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repo  *memRepo
	svc   *Service
	owner uuid.UUID
	hair  Offering
	nails Offering
}

func newFixture() *fixture {
	repo := newMemRepo()
	owner := uuid.New()
	return &fixture{
		repo:  repo,
		svc:   newTestService(repo),
		owner: owner,
		hair:  repo.addService(Offering{OwnerID: owner, Name: "Cut", StaffType: "HAIR"}),
		nails: repo.addService(Offering{OwnerID: owner, Name: "Manicure", StaffType: "NAILS"}),
	}
}

func (f *fixture) staff(name, skill string, capacity int) Staff {
	return f.repo.addStaff(Staff{OwnerID: f.owner, Name: name, ServiceType: skill, DailyCapacity: capacity})
}

func (f *fixture) queue(service Offering, iv Interval) Appointment {
	return f.repo.addAppointment(waiting(f.owner, service.ID, iv))
}

func (f *fixture) scheduled(staff Staff, service Offering, iv Interval) Appointment {
	a := scheduledFor(staff.ID, iv)
	a.OwnerID = f.owner
	a.ServiceID = service.ID
	return f.repo.addAppointment(a)
}

func (f *fixture) reorder(t *testing.T) {
	t.Helper()
	require.NoError(t, f.svc.Reorder(context.Background(), f.owner))
}

func TestAssignFromQueue_SkipsSkillMismatch(t *testing.T) {
	f := newFixture()
	s := f.staff("Sam", "HAIR", 2)
	a := f.queue(f.hair, slot(9, 0, 9, 30))
	b := f.queue(f.nails, slot(8, 0, 8, 30))
	f.reorder(t)

	got, err := f.svc.AssignFromQueue(context.Background(), f.owner, s.ID)
	require.NoError(t, err)

	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, StatusScheduled, got.Status)
	require.NotNil(t, got.StaffID)
	assert.Equal(t, s.ID, *got.StaffID)
	assert.Nil(t, got.QueuePosition)

	left := f.repo.get(b.ID)
	assert.Equal(t, StatusWaiting, left.Status)
	require.NotNil(t, left.QueuePosition)
	assert.Equal(t, 1, *left.QueuePosition)
	assertDenseQueue(t, f.repo, f.owner)
}

func TestAssignFromQueue_CapacityReached(t *testing.T) {
	f := newFixture()
	s := f.staff("Sam", "HAIR", 2)
	f.scheduled(s, f.hair, slot(8, 0, 8, 30))
	f.scheduled(s, f.hair, slot(9, 0, 9, 30))
	free := f.queue(f.hair, slot(15, 0, 15, 30))
	f.reorder(t)

	_, err := f.svc.AssignFromQueue(context.Background(), f.owner, s.ID)
	assert.ErrorIs(t, err, ErrNoEligibleAppointment)
	assert.Equal(t, StatusWaiting, f.repo.get(free.ID).Status)
}

func TestAssignFromQueue_CapacityIsPerDay(t *testing.T) {
	f := newFixture()
	s := f.staff("Sam", "HAIR", 1)
	f.scheduled(s, f.hair, slot(9, 0, 9, 30))
	today := f.queue(f.hair, slot(10, 0, 10, 30))
	tomorrow := f.queue(f.hair, Interval{Start: at(10, 0).AddDate(0, 0, 1), End: at(10, 30).AddDate(0, 0, 1)})
	f.reorder(t)

	got, err := f.svc.AssignFromQueue(context.Background(), f.owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, tomorrow.ID, got.ID)
	assert.Equal(t, StatusWaiting, f.repo.get(today.ID).Status)
}

func TestAssignFromQueue_PicksEarliestQueuedEligible(t *testing.T) {
	f := newFixture()
	s := f.staff("Sam", "HAIR", 5)
	f.scheduled(s, f.hair, slot(9, 0, 10, 0))

	conflicting := f.queue(f.hair, slot(9, 30, 10, 0))
	first := f.queue(f.hair, slot(11, 0, 11, 30))
	second := f.queue(f.hair, slot(12, 0, 12, 30))
	f.reorder(t)

	got, err := f.svc.AssignFromQueue(context.Background(), f.owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	assert.Equal(t, 1, *f.repo.get(conflicting.ID).QueuePosition)
	assert.Equal(t, 2, *f.repo.get(second.ID).QueuePosition)
}

func TestAssignFromQueue_FollowsQueuePositionOverStartTime(t *testing.T) {
	f := newFixture()
	s := f.staff("Sam", "HAIR", 5)

	one, two := 1, 2
	later := waiting(f.owner, f.hair.ID, slot(14, 0, 14, 30))
	later.QueuePosition = &one
	later = f.repo.addAppointment(later)
	earlier := waiting(f.owner, f.hair.ID, slot(9, 0, 9, 30))
	earlier.QueuePosition = &two
	f.repo.addAppointment(earlier)

	got, err := f.svc.AssignFromQueue(context.Background(), f.owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, later.ID, got.ID)
}

func TestAssignFromQueue_StaffNotFound(t *testing.T) {
	f := newFixture()
	f.queue(f.hair, slot(9, 0, 9, 30))

	_, err := f.svc.AssignFromQueue(context.Background(), f.owner, uuid.New())
	assert.ErrorIs(t, err, ErrStaffNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	other := f.repo.addStaff(Staff{OwnerID: uuid.New(), Name: "Elsewhere", ServiceType: "HAIR", DailyCapacity: 3})
	_, err = f.svc.AssignFromQueue(context.Background(), f.owner, other.ID)
	assert.ErrorIs(t, err, ErrStaffNotFound)
}

func TestAssignFromQueue_StaffOnLeave(t *testing.T) {
	f := newFixture()
	s := f.repo.addStaff(Staff{OwnerID: f.owner, Name: "Sam", ServiceType: "HAIR", DailyCapacity: 3, Availability: OnLeave})
	f.queue(f.hair, slot(9, 0, 9, 30))
	f.reorder(t)

	_, err := f.svc.AssignFromQueue(context.Background(), f.owner, s.ID)
	assert.ErrorIs(t, err, ErrNoEligibleAppointment)
}

func TestAssignFromQueue_SkipsDanglingService(t *testing.T) {
	f := newFixture()
	s := f.staff("Sam", "HAIR", 3)
	dangling := f.repo.addAppointment(waiting(f.owner, uuid.New(), slot(8, 0, 8, 30)))
	ok := f.queue(f.hair, slot(9, 0, 9, 30))
	f.reorder(t)

	got, err := f.svc.AssignFromQueue(context.Background(), f.owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, ok.ID, got.ID)
	assert.Equal(t, StatusWaiting, f.repo.get(dangling.ID).Status)
}

func TestAssignFromQueue_EmptyQueue(t *testing.T) {
	f := newFixture()
	s := f.staff("Sam", "HAIR", 3)

	_, err := f.svc.AssignFromQueue(context.Background(), f.owner, s.ID)
	assert.ErrorIs(t, err, ErrNoEligibleAppointment)
}

func TestAssignFromQueue_ContinuesAfterLostRace(t *testing.T) {
	f := newFixture()
	s := f.staff("Sam", "HAIR", 3)
	rival := f.staff("Rita", "HAIR", 3)
	taken := f.queue(f.hair, slot(9, 0, 9, 30))
	next := f.queue(f.hair, slot(10, 0, 10, 30))
	f.reorder(t)

	// Another handler schedules the first candidate between the pre-check
	// and the conditional update.
	f.repo.beforeSchedule = func(id uuid.UUID) {
		if id != taken.ID {
			return
		}
		f.repo.mu.Lock()
		defer f.repo.mu.Unlock()
		a := f.repo.appointments[id]
		if a.Status == StatusWaiting {
			rid := rival.ID
			a.Status = StatusScheduled
			a.StaffID = &rid
			a.QueuePosition = nil
		}
	}

	got, err := f.svc.AssignFromQueue(context.Background(), f.owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, next.ID, got.ID)
	assert.Equal(t, rival.ID, *f.repo.get(taken.ID).StaffID)
}

func TestAssignFromQueue_SerializationFailureIsConflict(t *testing.T) {
	f := newFixture()
	s := f.staff("Sam", "HAIR", 3)
	a := f.queue(f.hair, slot(9, 0, 9, 30))
	f.reorder(t)

	f.repo.failSchedule = fmt.Errorf("%w: %w", ErrConflictDuringAssignment, errors.New("could not serialize access"))

	_, err := f.svc.AssignFromQueue(context.Background(), f.owner, s.ID)
	assert.ErrorIs(t, err, ErrConflictDuringAssignment)
	assert.Equal(t, "ConflictDuringAssignment", ReasonCode(err))
	assert.Equal(t, StatusWaiting, f.repo.get(a.ID).Status)
}

func TestAssignFromQueue_InfrastructureFailurePassesThrough(t *testing.T) {
	f := newFixture()
	s := f.staff("Sam", "HAIR", 3)
	a := f.queue(f.hair, slot(9, 0, 9, 30))
	f.reorder(t)

	outage := errors.New("connection reset")
	f.repo.failSchedule = outage

	_, err := f.svc.AssignFromQueue(context.Background(), f.owner, s.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, outage)
	assert.NotErrorIs(t, err, ErrConflictDuringAssignment)
	assert.Equal(t, "Internal", ReasonCode(err))
	assert.Equal(t, StatusWaiting, f.repo.get(a.ID).Status)
}

func TestAssignFromQueue_RecordsEvent(t *testing.T) {
	f := newFixture()
	s := f.staff("Sam", "HAIR", 3)
	f.queue(f.hair, slot(9, 0, 9, 30))

	_, err := f.svc.AssignFromQueue(context.Background(), f.owner, s.ID)
	require.NoError(t, err)
	assert.Contains(t, f.repo.eventTypes(), EventAppointmentAssigned)
}

func TestAssignFromQueue_ConcurrentSingleCandidate(t *testing.T) {
	for run := 0; run < 20; run++ {
		f := newFixture()
		s := f.staff("Sam", "HAIR", 3)
		only := f.queue(f.hair, slot(9, 0, 9, 30))
		f.reorder(t)

		results := make([]error, 2)
		assigned := make([]*Appointment, 2)
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				assigned[i], results[i] = f.svc.AssignFromQueue(context.Background(), f.owner, s.ID)
			}()
		}
		close(start)
		wg.Wait()

		successes := 0
		for i, err := range results {
			if err == nil {
				successes++
				assert.Equal(t, only.ID, assigned[i].ID)
				continue
			}
			assert.ErrorIs(t, err, ErrNoEligibleAppointment)
		}
		require.Equal(t, 1, successes, "run %d", run)
		assert.Equal(t, StatusScheduled, f.repo.get(only.ID).Status)
	}
}

func TestAssignFromQueue_ConcurrentStaffInvariants(t *testing.T) {
	f := newFixture()
	rng := rand.New(rand.NewPCG(7, 11))

	var staff []Staff
	for i := 0; i < 4; i++ {
		staff = append(staff, f.staff("hair-"+string(rune('a'+i)), "HAIR", 1+i%3))
	}
	staff = append(staff, f.staff("nails-a", "NAILS", 2))

	for i := 0; i < 60; i++ {
		svc := f.hair
		if rng.IntN(4) == 0 {
			svc = f.nails
		}
		startMin := 8*60 + rng.IntN(10*60)
		length := 15 + rng.IntN(4)*15
		dayOffset := rng.IntN(2)
		start := day.AddDate(0, 0, dayOffset).Add(time.Duration(startMin) * time.Minute)
		f.queue(svc, Interval{Start: start, End: start.Add(time.Duration(length) * time.Minute)})
	}
	f.reorder(t)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				s := staff[(w+i)%len(staff)]
				_, err := f.svc.AssignFromQueue(context.Background(), f.owner, s.ID)
				if err != nil {
					assert.ErrorIs(t, err, ErrNoEligibleAppointment)
				}
			}
		}(w)
	}
	wg.Wait()

	ev := NewEvaluator(time.UTC)
	all := f.repo.all()
	for _, s := range staff {
		var mine []Appointment
		perDay := make(map[time.Time]int)
		for _, a := range all {
			if !isScheduledFor(a, s.ID) {
				continue
			}
			mine = append(mine, a)
			dayStart, _ := ev.DayBounds(a.StartTime)
			perDay[dayStart]++
			assert.Equal(t, s.ServiceType == "HAIR", a.ServiceID == f.hair.ID, "skill mismatch for %s", a.ID)
		}
		for d, n := range perDay {
			assert.LessOrEqual(t, n, s.DailyCapacity, "staff %s over capacity on %s", s.Name, d)
		}
		for i := range mine {
			for j := i + 1; j < len(mine); j++ {
				assert.False(t, mine[i].Interval().Overlaps(mine[j].Interval()),
					"staff %s has overlapping appointments %s and %s", s.Name, mine[i].ID, mine[j].ID)
			}
		}
	}

	assertDenseQueue(t, f.repo, f.owner)
}

func TestCheckEligibility_TimeConflict(t *testing.T) {
	f := newFixture()
	s := f.staff("Sam", "HAIR", 3)
	f.scheduled(s, f.hair, slot(10, 15, 10, 45))
	c := f.queue(f.hair, slot(10, 0, 10, 30))

	err := f.svc.CheckEligibility(context.Background(), f.owner, s.ID, c.ID)
	assert.ErrorIs(t, err, ErrTimeConflict)

	err = f.svc.CheckEligibility(context.Background(), f.owner, s.ID, uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestBook_SchedulesWithEligibleStaff(t *testing.T) {
	f := newFixture()
	s := f.staff("Sam", "HAIR", 3)

	res, err := f.svc.Book(context.Background(), f.owner, BookRequest{
		CustomerName: "  Jo  ",
		ServiceID:    f.hair.ID,
		Start:        at(9, 0),
		End:          at(9, 30),
		StaffID:      &s.ID,
	})
	require.NoError(t, err)

	assert.False(t, res.Queued)
	assert.Equal(t, StatusScheduled, res.Appointment.Status)
	assert.Equal(t, "Jo", res.Appointment.CustomerName)
	assert.Equal(t, s.ID, *res.Appointment.StaffID)
	assert.Nil(t, res.Appointment.QueuePosition)
	assert.Contains(t, f.repo.eventTypes(), EventAppointmentBooked)
}

func TestBook_QueuesWhenStaffIneligible(t *testing.T) {
	f := newFixture()
	s := f.staff("Sam", "HAIR", 3)
	f.scheduled(s, f.hair, slot(9, 0, 10, 0))
	earlier := f.queue(f.hair, slot(8, 0, 8, 30))
	f.reorder(t)

	res, err := f.svc.Book(context.Background(), f.owner, BookRequest{
		CustomerName: "Jo",
		ServiceID:    f.hair.ID,
		Start:        at(9, 30),
		End:          at(10, 0),
		StaffID:      &s.ID,
	})
	require.NoError(t, err)

	assert.True(t, res.Queued)
	assert.Equal(t, "TimeConflict", res.ReasonCode)
	assert.Equal(t, ErrTimeConflict.Error(), res.Reason)
	assert.Equal(t, StatusWaiting, res.Appointment.Status)
	require.NotNil(t, res.Appointment.QueuePosition)
	assert.Equal(t, 2, *res.Appointment.QueuePosition)
	assert.Equal(t, 1, *f.repo.get(earlier.ID).QueuePosition)
	assert.Contains(t, f.repo.eventTypes(), EventAppointmentQueued)
}

func TestBook_QueuesWithoutStaff(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Book(context.Background(), f.owner, BookRequest{
		CustomerName: "Jo",
		ServiceID:    f.nails.ID,
		Start:        at(9, 0),
		End:          at(9, 30),
	})
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.Empty(t, res.ReasonCode)
	assert.Equal(t, 1, *res.Appointment.QueuePosition)
}

func TestBook_UnknownStaffQueues(t *testing.T) {
	f := newFixture()
	missing := uuid.New()

	res, err := f.svc.Book(context.Background(), f.owner, BookRequest{
		CustomerName: "Jo",
		ServiceID:    f.hair.ID,
		Start:        at(9, 0),
		End:          at(9, 30),
		StaffID:      &missing,
	})
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.Equal(t, "NotFound", res.ReasonCode)
}

func TestBook_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Book(ctx, f.owner, BookRequest{CustomerName: " ", ServiceID: f.hair.ID, Start: at(9, 0), End: at(9, 30)})
	assert.ErrorIs(t, err, ErrMissingCustomerName)

	_, err = f.svc.Book(ctx, f.owner, BookRequest{CustomerName: "Jo", ServiceID: f.hair.ID, Start: at(9, 0), End: at(9, 0)})
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = f.svc.Book(ctx, f.owner, BookRequest{CustomerName: "Jo", ServiceID: uuid.New(), Start: at(9, 0), End: at(9, 30)})
	assert.ErrorIs(t, err, ErrServiceNotFound)
}

func TestCancel_WaitingCompactsQueue(t *testing.T) {
	f := newFixture()
	first := f.queue(f.hair, slot(9, 0, 9, 30))
	second := f.queue(f.hair, slot(10, 0, 10, 30))
	third := f.queue(f.hair, slot(11, 0, 11, 30))
	f.reorder(t)

	got, err := f.svc.Cancel(context.Background(), f.owner, second.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Nil(t, got.QueuePosition)

	assert.Equal(t, 1, *f.repo.get(first.ID).QueuePosition)
	assert.Equal(t, 2, *f.repo.get(third.ID).QueuePosition)
	assertDenseQueue(t, f.repo, f.owner)
}

func TestCancel_ScheduledAndTerminal(t *testing.T) {
	f := newFixture()
	s := f.staff("Sam", "HAIR", 3)
	a := f.scheduled(s, f.hair, slot(9, 0, 9, 30))
	ctx := context.Background()

	got, err := f.svc.Cancel(ctx, f.owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)

	_, err = f.svc.Cancel(ctx, f.owner, a.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = f.svc.Cancel(ctx, f.owner, uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestComplete(t *testing.T) {
	f := newFixture()
	s := f.staff("Sam", "HAIR", 3)
	a := f.scheduled(s, f.hair, slot(9, 0, 9, 30))
	w := f.queue(f.hair, slot(10, 0, 10, 30))
	ctx := context.Background()

	got, err := f.svc.Complete(ctx, f.owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	_, err = f.svc.Complete(ctx, f.owner, w.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	// Completed appointments no longer count toward capacity.
	err = f.svc.CheckEligibility(ctx, f.owner, s.ID, w.ID)
	assert.NoError(t, err)
}

func TestStaffLoad(t *testing.T) {
	f := newFixture()
	bea := f.staff("Bea", "HAIR", 1)
	al := f.staff("Al", "NAILS", 3)
	f.scheduled(bea, f.hair, slot(9, 0, 9, 30))
	f.scheduled(al, f.nails, slot(9, 0, 9, 30))
	f.scheduled(al, f.nails, Interval{Start: at(9, 0).AddDate(0, 0, 1), End: at(9, 30).AddDate(0, 0, 1)})

	load, err := f.svc.StaffLoad(context.Background(), f.owner, at(12, 0))
	require.NoError(t, err)
	require.Len(t, load, 2)

	assert.Equal(t, "Al", load[0].Name)
	assert.Equal(t, 1, load[0].Scheduled)
	assert.Equal(t, LoadOK, load[0].Status)

	assert.Equal(t, "Bea", load[1].Name)
	assert.Equal(t, 1, load[1].Scheduled)
	assert.Equal(t, 1, load[1].Capacity)
	assert.Equal(t, LoadBooked, load[1].Status)
}

func TestDaySummary(t *testing.T) {
	f := newFixture()
	bea := f.staff("Bea", "HAIR", 3)
	f.scheduled(bea, f.hair, slot(9, 0, 9, 30))
	done := f.scheduled(bea, f.hair, slot(10, 0, 10, 30))
	_, err := f.svc.Complete(context.Background(), f.owner, done.ID)
	require.NoError(t, err)
	f.queue(f.hair, slot(11, 0, 11, 30))
	f.queue(f.hair, Interval{Start: at(11, 0).AddDate(0, 0, 1), End: at(11, 30).AddDate(0, 0, 1)})
	f.scheduled(bea, f.hair, Interval{Start: at(9, 0).AddDate(0, 0, -1), End: at(9, 30).AddDate(0, 0, -1)})

	sum, err := f.svc.DaySummary(context.Background(), f.owner, at(15, 0))
	require.NoError(t, err)

	assert.Equal(t, day, sum.DayStart)
	assert.Equal(t, day.AddDate(0, 0, 1), sum.DayEnd)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.Scheduled)
	assert.Equal(t, 1, sum.Completed)
	assert.Equal(t, 2, sum.Waiting)
}

type failingCounts struct {
	*memRepo
}

func (failingCounts) CountWaiting(context.Context, uuid.UUID) (int, error) {
	return 0, errors.New("connection reset")
}

func TestDaySummary_CountFailure(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(failingCounts{repo})

	_, err := svc.DaySummary(context.Background(), uuid.New(), at(12, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count waiting appointments")
}

func TestRecentEvents(t *testing.T) {
	f := newFixture()
	s := f.staff("Sam", "HAIR", 3)
	a := f.queue(f.hair, slot(9, 0, 9, 30))
	f.reorder(t)
	_, err := f.svc.AssignFromQueue(context.Background(), f.owner, s.ID)
	require.NoError(t, err)
	_, err = f.svc.Complete(context.Background(), f.owner, a.ID)
	require.NoError(t, err)

	other := uuid.New()
	require.NoError(t, f.repo.InsertEvent(context.Background(), EventLog{EventType: EventAppointmentBooked, OwnerID: other}))

	events, err := f.svc.RecentEvents(context.Background(), f.owner, 0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, EventAppointmentCompleted, events[0].EventType)
	for i, ev := range events {
		assert.Equal(t, f.owner, ev.OwnerID)
		if i > 0 {
			assert.Greater(t, events[i-1].ID, ev.ID)
		}
	}

	events, err = f.svc.RecentEvents(context.Background(), f.owner, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventAppointmentCompleted, events[0].EventType)
}

func TestRecentEvents_LimitBounds(t *testing.T) {
	f := newFixture()
	for i := 0; i < MaxRecentEvents+20; i++ {
		require.NoError(t, f.repo.InsertEvent(context.Background(), EventLog{EventType: EventAppointmentQueued, OwnerID: f.owner}))
	}

	events, err := f.svc.RecentEvents(context.Background(), f.owner, -3)
	require.NoError(t, err)
	assert.Len(t, events, DefaultRecentEvents)

	events, err = f.svc.RecentEvents(context.Background(), f.owner, 500)
	require.NoError(t, err)
	assert.Len(t, events, MaxRecentEvents)
}
