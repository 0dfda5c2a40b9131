package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hackgods/medconnect/internal/beds"
)

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrInvalidPatient          = errors.New("patient handle is required")
	ErrInvalidDuration         = errors.New("bed allocation duration must be positive")
	ErrNotAllocated            = errors.New("appointment has no bed allocated")
	ErrAlreadyAllocated        = errors.New("appointment already holds a bed")
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	ErrUnknownHospital = beds.ErrUnknownHospital
	ErrBedUnavailable  = beds.ErrBedUnavailable
)

// EventRepository stores the lifecycle audit trail of appointments.
type EventRepository interface {
	InsertEvent(ctx context.Context, ev Event) error
	ListEvents(ctx context.Context, appointmentID uuid.UUID) ([]Event, error)
}

// NopEventRepository drops every event. Used when no database is configured.
type NopEventRepository struct{}

func (NopEventRepository) InsertEvent(context.Context, Event) error { return nil }

func (NopEventRepository) ListEvents(context.Context, uuid.UUID) ([]Event, error) {
	return nil, nil
}
