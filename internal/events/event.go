package events

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is one row of event_logs awaiting relay.
type Event struct {
	ID            int64
	EventType     string
	OwnerID       uuid.UUID
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

func (e Event) IDString() string {
	return strconv.FormatInt(e.ID, 10)
}

// SplitBrokers parses a comma separated broker list, dropping blanks.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
