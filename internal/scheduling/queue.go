package scheduling

import (
	"bytes"
	"cmp"
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// CompareArrival orders waiting appointments fairly: earlier start first,
// then earlier creation. The id keeps the order total.
func CompareArrival(a, b Appointment) int {
	if c := a.StartTime.Compare(b.StartTime); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return bytes.Compare(a.ID[:], b.ID[:])
}

// CompareQueue orders by queue position with unset positions last, falling
// back to arrival order.
func CompareQueue(a, b Appointment) int {
	switch {
	case a.QueuePosition != nil && b.QueuePosition != nil:
		if c := cmp.Compare(*a.QueuePosition, *b.QueuePosition); c != 0 {
			return c
		}
	case a.QueuePosition != nil:
		return -1
	case b.QueuePosition != nil:
		return 1
	}
	return CompareArrival(a, b)
}

func queueLockKey(ownerID uuid.UUID) string {
	return "queue:" + ownerID.String()
}

// Reorder renumbers the owner's WAITING appointments 1..N in arrival order.
// Calls for the same owner are serialized through the locker.
func (s *Service) Reorder(ctx context.Context, ownerID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "scheduling.Reorder")
	defer span.End()
	span.SetAttributes(attribute.String("owner_id", ownerID.String()))

	var length int
	err := s.locker.WithLock(ctx, queueLockKey(ownerID), func(lockCtx context.Context) error {
		waiting, err := s.repo.ListWaiting(lockCtx, ownerID, OrderByArrival)
		if err != nil {
			return fmt.Errorf("list waiting appointments: %w", err)
		}

		ids := make([]uuid.UUID, len(waiting))
		for i, a := range waiting {
			ids[i] = a.ID
		}

		if err := s.repo.SetQueuePositions(lockCtx, ownerID, ids); err != nil {
			return fmt.Errorf("set queue positions: %w", err)
		}

		length = len(ids)
		return nil
	})
	if err != nil {
		recordError(span, err)
		return err
	}

	span.SetAttributes(attribute.Int("queue.length", length))
	s.logger.DebugContext(ctx, "queue reordered", "owner_id", ownerID, "waiting", length)
	s.logEvent(ctx, ownerID, uuid.Nil, EventQueueReordered, map[string]any{"waiting": length})
	return nil
}

// ListWaiting returns the owner's waiting queue in display order.
func (s *Service) ListWaiting(ctx context.Context, ownerID uuid.UUID) ([]Appointment, error) {
	waiting, err := s.repo.ListWaiting(ctx, ownerID, OrderByQueuePosition)
	if err != nil {
		return nil, fmt.Errorf("list waiting appointments: %w", err)
	}
	return waiting, nil
}
