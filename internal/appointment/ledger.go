package appointment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hackgods/medconnect/internal/beds"
)

const (
	EventAppointmentRequested = "APPOINTMENT_REQUESTED"
	EventAppointmentAccepted  = "APPOINTMENT_ACCEPTED"
	EventAppointmentDeclined  = "APPOINTMENT_DECLINED"
	EventReportAttached       = "APPOINTMENT_REPORT_ATTACHED"
	EventBedAllocated         = "BED_ALLOCATED"
	EventBedDischarged        = "BED_DISCHARGED"
	EventBedExpired           = "BED_EXPIRED"
)

// Ledger owns every appointment record together with the bed inventory.
// All reads and writes of both go through one mutex, so a sweep can never
// observe a half-applied doctor action. Event log writes happen after the
// mutex is released.
type Ledger struct {
	mu      sync.Mutex
	inv     *beds.Inventory
	records map[uuid.UUID]*Appointment
	order   []uuid.UUID

	events EventRepository
	clock  clockwork.Clock
	log    *zap.Logger
}

func NewLedger(inv *beds.Inventory, events EventRepository, clock clockwork.Clock, log *zap.Logger) *Ledger {
	if events == nil {
		events = NopEventRepository{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		inv:     inv,
		records: make(map[uuid.UUID]*Appointment),
		events:  events,
		clock:   clock,
		log:     log,
	}
}

// Now returns the ledger's current time.
func (l *Ledger) Now() time.Time {
	return l.clock.Now()
}

// Request creates a pending appointment for patient at hospital.
func (l *Ledger) Request(ctx context.Context, patient, hospital string) (Appointment, error) {
	patient = strings.TrimSpace(patient)
	if patient == "" {
		return Appointment{}, ErrInvalidPatient
	}

	l.mu.Lock()
	if !l.inv.HasHospital(hospital) {
		l.mu.Unlock()
		return Appointment{}, ErrUnknownHospital
	}

	now := l.clock.Now()
	appt := &Appointment{
		ID:        uuid.New(),
		Patient:   patient,
		Hospital:  hospital,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	l.records[appt.ID] = appt
	l.order = append(l.order, appt.ID)
	created := appt.snapshot()
	l.mu.Unlock()

	l.logEvent(ctx, created.ID, created.CreatedAt, EventAppointmentRequested, map[string]any{
		"patient":  patient,
		"hospital": hospital,
	})

	return created, nil
}

// Accept marks the appointment accepted. Any earlier status is overwritten,
// including declined, unless the appointment currently holds a bed.
func (l *Ledger) Accept(ctx context.Context, id uuid.UUID) (Appointment, error) {
	return l.setStatus(ctx, id, StatusAccepted, EventAppointmentAccepted)
}

// Decline marks the appointment declined, with the same rules as Accept.
func (l *Ledger) Decline(ctx context.Context, id uuid.UUID) (Appointment, error) {
	return l.setStatus(ctx, id, StatusDeclined, EventAppointmentDeclined)
}

func (l *Ledger) setStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus, eventType string) (Appointment, error) {
	var from AppointmentStatus

	updated, err := l.update(id, func(a *Appointment, _ time.Time) error {
		if a.Bed != nil {
			return ErrInvalidStatusTransition
		}
		from = a.Status
		a.Status = to
		return nil
	})
	if err != nil {
		return Appointment{}, err
	}

	l.logEvent(ctx, id, updated.UpdatedAt, eventType, map[string]any{
		"from": from,
		"to":   to,
	})

	return updated, nil
}

// AttachReport sets the doctor's note. An empty text clears it. The status
// is left untouched.
func (l *Ledger) AttachReport(ctx context.Context, id uuid.UUID, text string) (Appointment, error) {
	updated, err := l.update(id, func(a *Appointment, _ time.Time) error {
		a.Report = text
		return nil
	})
	if err != nil {
		return Appointment{}, err
	}

	l.logEvent(ctx, id, updated.UpdatedAt, EventReportAttached, map[string]any{
		"length": len(text),
	})

	return updated, nil
}

// AllocateBed takes bed out of the hospital's free pool and holds it for
// the appointment until now+duration. On any error nothing is changed.
func (l *Ledger) AllocateBed(ctx context.Context, id uuid.UUID, bed int, duration time.Duration) (Appointment, error) {
	if duration <= 0 {
		return Appointment{}, ErrInvalidDuration
	}

	updated, err := l.update(id, func(a *Appointment, now time.Time) error {
		if a.Bed != nil {
			return ErrAlreadyAllocated
		}
		if err := l.inv.Allocate(a.Hospital, bed); err != nil {
			return err
		}
		a.Bed = &BedAllocation{
			BedNumber: bed,
			StartAt:   now,
			ExpireAt:  now.Add(duration),
		}
		a.Status = StatusBedAllocated
		return nil
	})
	if err != nil {
		return Appointment{}, err
	}

	l.logEvent(ctx, id, updated.UpdatedAt, EventBedAllocated, map[string]any{
		"hospital":   updated.Hospital,
		"bed_number": bed,
		"start_at":   updated.Bed.StartAt,
		"expire_at":  updated.Bed.ExpireAt,
	})

	return updated, nil
}

// DischargeBed releases the held bed early and marks the appointment
// discharged.
func (l *Ledger) DischargeBed(ctx context.Context, id uuid.UUID) (Appointment, error) {
	var bed int

	updated, err := l.update(id, func(a *Appointment, _ time.Time) error {
		if a.Status != StatusBedAllocated || a.Bed == nil {
			return ErrNotAllocated
		}
		bed = a.Bed.BedNumber
		if err := l.inv.Release(a.Hospital, bed); err != nil {
			return fmt.Errorf("release bed %d: %w", bed, err)
		}
		a.Bed = nil
		a.Status = StatusDischarged
		return nil
	})
	if err != nil {
		return Appointment{}, err
	}

	l.logEvent(ctx, id, updated.UpdatedAt, EventBedDischarged, map[string]any{
		"hospital":   updated.Hospital,
		"bed_number": bed,
	})

	return updated, nil
}

// SweepExpired completes every appointment whose bed allocation lapsed at
// or before now and returns the beds to the inventory. It returns how many
// appointments were completed. Running it twice for the same now is a no-op
// the second time.
func (l *Ledger) SweepExpired(ctx context.Context, now time.Time) int {
	type expiry struct {
		id       uuid.UUID
		hospital string
		bed      int
		expireAt time.Time
	}
	var done []expiry

	l.mu.Lock()
	for _, id := range l.order {
		a := l.records[id]
		if !a.expired(now) {
			continue
		}
		if err := l.inv.Release(a.Hospital, a.Bed.BedNumber); err != nil {
			l.log.Error("release expired bed",
				zap.String("appointment_id", id.String()),
				zap.String("hospital", a.Hospital),
				zap.Int("bed_number", a.Bed.BedNumber),
				zap.Error(err),
			)
		}
		done = append(done, expiry{id: id, hospital: a.Hospital, bed: a.Bed.BedNumber, expireAt: a.Bed.ExpireAt})
		a.Bed = nil
		a.Status = StatusCompleted
		a.UpdatedAt = now
	}
	l.mu.Unlock()

	for _, e := range done {
		l.logEvent(ctx, e.id, now, EventBedExpired, map[string]any{
			"hospital":   e.hospital,
			"bed_number": e.bed,
			"expire_at":  e.expireAt,
		})
	}

	return len(done)
}

// Get returns a snapshot of one appointment.
func (l *Ledger) Get(id uuid.UUID) (Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.records[id]
	if !ok {
		return Appointment{}, ErrAppointmentNotFound
	}
	return a.snapshot(), nil
}

// ListAll returns every appointment in creation order.
func (l *Ledger) ListAll() []Appointment {
	return l.filter(func(*Appointment) bool { return true })
}

func (l *Ledger) ListByPatient(patient string) []Appointment {
	return l.filter(func(a *Appointment) bool { return a.Patient == patient })
}

// ListReportsByPatient returns the patient's appointments that carry a report.
func (l *Ledger) ListReportsByPatient(patient string) []Appointment {
	return l.filter(func(a *Appointment) bool { return a.Patient == patient && a.HasReport() })
}

// Hospitals returns the hospitals the ledger accepts requests for.
func (l *Ledger) Hospitals() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inv.Hospitals()
}

// BedCapacity returns the fixed number of beds per hospital.
func (l *Ledger) BedCapacity() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inv.Capacity()
}

// AvailableBeds returns the free bed numbers of hospital in ascending order.
func (l *Ledger) AvailableBeds(hospital string) ([]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inv.Available(hospital)
}

func (l *Ledger) AvailableCount(hospital string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inv.AvailableCount(hospital)
}

// ActiveAllocations counts appointments at hospital currently holding a bed.
func (l *Ledger) ActiveAllocations(hospital string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, a := range l.records {
		if a.Hospital == hospital && a.Bed != nil {
			n++
		}
	}
	return n
}

// Events returns the recorded audit trail of one appointment.
func (l *Ledger) Events(ctx context.Context, id uuid.UUID) ([]Event, error) {
	if _, err := l.Get(id); err != nil {
		return nil, err
	}
	evs, err := l.events.ListEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return evs, nil
}

// update applies fn to one record under the mutex. fn must leave the
// record untouched when it returns an error.
func (l *Ledger) update(id uuid.UUID, fn func(a *Appointment, now time.Time) error) (Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.records[id]
	if !ok {
		return Appointment{}, ErrAppointmentNotFound
	}

	now := l.clock.Now()
	if err := fn(a, now); err != nil {
		return Appointment{}, err
	}
	a.UpdatedAt = now

	return a.snapshot(), nil
}

func (l *Ledger) filter(keep func(*Appointment) bool) []Appointment {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Appointment, 0)
	for _, id := range l.order {
		a := l.records[id]
		if keep(a) {
			out = append(out, a.snapshot())
		}
	}
	return out
}

// logEvent records an audit event stamped with at, the time of the mutation.
func (l *Ledger) logEvent(ctx context.Context, appointmentID uuid.UUID, at time.Time, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		l.log.Warn("marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := Event{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     at,
	}

	if err := l.events.InsertEvent(ctx, ev); err != nil {
		l.log.Warn("insert event log",
			zap.String("event_type", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err),
		)
	}
}
