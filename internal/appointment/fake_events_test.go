package appointment

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// fakeEventRepository keeps events in memory for assertions.
type fakeEventRepository struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (f *fakeEventRepository) InsertEvent(_ context.Context, ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	ev.ID = int64(len(f.events) + 1)
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEventRepository) ListEvents(_ context.Context, id uuid.UUID) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Event
	for _, ev := range f.events {
		if ev.AppointmentID != nil && *ev.AppointmentID == id {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeEventRepository) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.EventType)
	}
	return out
}

var errEventStoreDown = errors.New("event store down")
