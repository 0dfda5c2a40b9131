package appointment

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending      AppointmentStatus = "pending"
	StatusAccepted     AppointmentStatus = "accepted"
	StatusDeclined     AppointmentStatus = "declined"
	StatusBedAllocated AppointmentStatus = "bed_allocated"
	StatusCompleted    AppointmentStatus = "completed"
	StatusDischarged   AppointmentStatus = "discharged"
)

// BedAllocation is a timed hold on one bed of the appointment's hospital.
type BedAllocation struct {
	BedNumber int
	StartAt   time.Time
	ExpireAt  time.Time
}

type Appointment struct {
	ID        uuid.UUID
	Patient   string
	Hospital  string
	Status    AppointmentStatus
	Report    string
	Bed       *BedAllocation // non-nil only while Status is StatusBedAllocated
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TimeLeft returns how long the bed allocation still has to run at now.
// It is zero when no bed is held or the allocation has lapsed.
func (a Appointment) TimeLeft(now time.Time) time.Duration {
	if a.Bed == nil {
		return 0
	}
	left := a.Bed.ExpireAt.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// HasReport reports whether a doctor attached a non-empty note.
func (a Appointment) HasReport() bool {
	return a.Report != ""
}

// expired reports whether the held bed has lapsed at now.
func (a *Appointment) expired(now time.Time) bool {
	return a.Status == StatusBedAllocated && a.Bed != nil && !a.Bed.ExpireAt.After(now)
}

func (a *Appointment) snapshot() Appointment {
	cp := *a
	if a.Bed != nil {
		bed := *a.Bed
		cp.Bed = &bed
	}
	return cp
}

type Event struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
