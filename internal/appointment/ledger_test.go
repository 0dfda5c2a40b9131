package appointment

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/medconnect/internal/beds"
	"github.com/hackgods/medconnect/internal/diagnosis"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T) (*Ledger, *clockwork.FakeClock, *fakeEventRepository) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	events := &fakeEventRepository{}
	inv := beds.NewInventory(diagnosis.Hospitals, beds.DefaultCapacity)
	return NewLedger(inv, events, clock, zap.NewNop()), clock, events
}

func assertBedAccounting(t *testing.T, l *Ledger) {
	t.Helper()
	for _, h := range l.Hospitals() {
		free, err := l.AvailableCount(h)
		require.NoError(t, err)
		assert.Equalf(t, l.BedCapacity(), free+l.ActiveAllocations(h), "bed accounting broken for %s", h)
	}
}

func TestLedger_Request_CreatesPending(t *testing.T) {
	l, _, events := newTestLedger(t)
	ctx := context.Background()

	appt, err := l.Request(ctx, "alice", diagnosis.VijayaHospital)
	require.NoError(t, err)

	got := l.ListByPatient("alice")
	require.Len(t, got, 1)
	assert.Equal(t, appt.ID, got[0].ID)
	assert.Equal(t, StatusPending, got[0].Status)
	assert.Nil(t, got[0].Bed)
	assert.Empty(t, got[0].Report)
	assert.Equal(t, t0, got[0].CreatedAt)
	assert.Equal(t, []string{EventAppointmentRequested}, events.types())
}

func TestLedger_Request_Validation(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Request(ctx, "  ", diagnosis.CareFirst)
	assert.ErrorIs(t, err, ErrInvalidPatient)

	_, err = l.Request(ctx, "bob", "Atlantis General")
	assert.ErrorIs(t, err, ErrUnknownHospital)

	assert.Empty(t, l.ListAll())
}

func TestLedger_AcceptDecline_Overwrite(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	appt, err := l.Request(ctx, "alice", diagnosis.CareFirst)
	require.NoError(t, err)

	got, err := l.Decline(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, got.Status)

	// a declined appointment can be accepted again
	got, err = l.Accept(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, got.Status)

	got, err = l.Accept(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, got.Status)
}

func TestLedger_AcceptDecline_RejectedWhileBedHeld(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	appt, _ := l.Request(ctx, "alice", diagnosis.CareFirst)
	_, err := l.AllocateBed(ctx, appt.ID, 2, time.Minute)
	require.NoError(t, err)

	_, err = l.Accept(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	_, err = l.Decline(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	got, _ := l.Get(appt.ID)
	assert.Equal(t, StatusBedAllocated, got.Status)
	require.NotNil(t, got.Bed)
}

func TestLedger_UnknownID(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := l.Accept(ctx, id)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	_, err = l.Decline(ctx, id)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	_, err = l.AttachReport(ctx, id, "x")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	_, err = l.AllocateBed(ctx, id, 1, time.Second)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	_, err = l.DischargeBed(ctx, id)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	_, err = l.Get(id)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	_, err = l.Events(ctx, id)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestLedger_AttachReport_KeepsStatus(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	appt, _ := l.Request(ctx, "alice", diagnosis.CareFirst)
	_, _ = l.Accept(ctx, appt.ID)

	got, err := l.AttachReport(ctx, appt.ID, "rest and fluids")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, got.Status)
	assert.Equal(t, "rest and fluids", got.Report)
}

func TestLedger_ListReportsByPatient(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	a1, _ := l.Request(ctx, "alice", diagnosis.CareFirst)
	_, _ = l.Request(ctx, "alice", diagnosis.PremaHospitals)
	b1, _ := l.Request(ctx, "bob", diagnosis.CareFirst)

	_, _ = l.AttachReport(ctx, a1.ID, "x-ray clear")
	_, _ = l.AttachReport(ctx, b1.ID, "not alice's")

	reports := l.ListReportsByPatient("alice")
	require.Len(t, reports, 1)
	assert.Equal(t, a1.ID, reports[0].ID)

	// clearing the note removes it from the report list
	_, _ = l.AttachReport(ctx, a1.ID, "")
	assert.Empty(t, l.ListReportsByPatient("alice"))
}

func TestLedger_ListAll_CreationOrder(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	ctx := context.Background()

	var ids []uuid.UUID
	for _, p := range []string{"carol", "alice", "bob"} {
		a, err := l.Request(ctx, p, diagnosis.OrangeHospital)
		require.NoError(t, err)
		ids = append(ids, a.ID)
		clock.Advance(time.Second)
	}

	all := l.ListAll()
	require.Len(t, all, 3)
	for i, a := range all {
		assert.Equal(t, ids[i], a.ID)
	}
}

func TestLedger_Snapshots_AreNotLive(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	appt, _ := l.Request(ctx, "alice", diagnosis.CareFirst)
	allocated, err := l.AllocateBed(ctx, appt.ID, 9, time.Hour)
	require.NoError(t, err)

	allocated.Bed.BedNumber = 1
	allocated.Status = StatusDeclined
	list := l.ListAll()
	list[0].Report = "tampered"

	got, _ := l.Get(appt.ID)
	assert.Equal(t, 9, got.Bed.BedNumber)
	assert.Equal(t, StatusBedAllocated, got.Status)
	assert.Empty(t, got.Report)
}

func TestLedger_AllocateBed(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	appt, _ := l.Request(ctx, "alice", diagnosis.VijayaHospital)
	got, err := l.AllocateBed(ctx, appt.ID, 5, 2*time.Second)
	require.NoError(t, err)

	assert.Equal(t, StatusBedAllocated, got.Status)
	require.NotNil(t, got.Bed)
	assert.Equal(t, 5, got.Bed.BedNumber)
	assert.Equal(t, t0, got.Bed.StartAt)
	assert.Equal(t, t0.Add(2*time.Second), got.Bed.ExpireAt)

	free, _ := l.AvailableBeds(diagnosis.VijayaHospital)
	assert.NotContains(t, free, 5)
	assertBedAccounting(t, l)
}

func TestLedger_AllocateBed_InvalidDuration(t *testing.T) {
	l, _, events := newTestLedger(t)
	ctx := context.Background()

	appt, _ := l.Request(ctx, "alice", diagnosis.VijayaHospital)

	for _, d := range []time.Duration{0, -time.Second} {
		_, err := l.AllocateBed(ctx, appt.ID, 5, d)
		assert.ErrorIs(t, err, ErrInvalidDuration)
	}

	got, _ := l.Get(appt.ID)
	assert.Equal(t, StatusPending, got.Status)
	assert.Nil(t, got.Bed)
	n, _ := l.AvailableCount(diagnosis.VijayaHospital)
	assert.Equal(t, 30, n)
	assert.Equal(t, []string{EventAppointmentRequested}, events.types())
}

func TestLedger_AllocateBed_OccupiedLeavesStateUnchanged(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	first, _ := l.Request(ctx, "alice", diagnosis.VijayaHospital)
	second, _ := l.Request(ctx, "bob", diagnosis.VijayaHospital)
	_, _ = l.Accept(ctx, second.ID)

	_, err := l.AllocateBed(ctx, first.ID, 5, time.Minute)
	require.NoError(t, err)
	before := l.ListAll()
	freeBefore, _ := l.AvailableBeds(diagnosis.VijayaHospital)

	_, err = l.AllocateBed(ctx, second.ID, 5, time.Minute)
	assert.ErrorIs(t, err, ErrBedUnavailable)

	assert.Equal(t, before, l.ListAll())
	freeAfter, _ := l.AvailableBeds(diagnosis.VijayaHospital)
	assert.Equal(t, freeBefore, freeAfter)
	assertBedAccounting(t, l)
}

func TestLedger_AllocateBed_SameNumberOtherHospital(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	a, _ := l.Request(ctx, "alice", diagnosis.VijayaHospital)
	b, _ := l.Request(ctx, "bob", diagnosis.CareFirst)

	_, err := l.AllocateBed(ctx, a.ID, 5, time.Minute)
	require.NoError(t, err)
	_, err = l.AllocateBed(ctx, b.ID, 5, time.Minute)
	require.NoError(t, err)
	assertBedAccounting(t, l)
}

func TestLedger_AllocateBed_AlreadyHoldingBed(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	appt, _ := l.Request(ctx, "alice", diagnosis.VijayaHospital)
	_, err := l.AllocateBed(ctx, appt.ID, 5, time.Minute)
	require.NoError(t, err)

	_, err = l.AllocateBed(ctx, appt.ID, 6, time.Minute)
	assert.ErrorIs(t, err, ErrAlreadyAllocated)

	ok, _ := l.AvailableBeds(diagnosis.VijayaHospital)
	assert.Contains(t, ok, 6)
	assertBedAccounting(t, l)
}

func TestLedger_AllocateThenDischarge(t *testing.T) {
	l, clock, events := newTestLedger(t)
	ctx := context.Background()

	appt, _ := l.Request(ctx, "alice", diagnosis.VijayaHospital)
	_, err := l.AllocateBed(ctx, appt.ID, 12, time.Hour)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	got, err := l.DischargeBed(ctx, appt.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusDischarged, got.Status)
	assert.Nil(t, got.Bed)
	assert.Equal(t, t0.Add(10*time.Minute), got.UpdatedAt)

	free, _ := l.AvailableBeds(diagnosis.VijayaHospital)
	assert.Contains(t, free, 12)
	assert.Len(t, free, 30)
	assertBedAccounting(t, l)

	assert.Equal(t, []string{
		EventAppointmentRequested,
		EventBedAllocated,
		EventBedDischarged,
	}, events.types())
}

func TestLedger_Discharge_NotAllocated(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	appt, _ := l.Request(ctx, "alice", diagnosis.VijayaHospital)

	_, err := l.DischargeBed(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrNotAllocated)

	got, _ := l.Get(appt.ID)
	assert.Equal(t, StatusPending, got.Status)
}

func TestLedger_NewAllocationCycleAfterDischarge(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	appt, _ := l.Request(ctx, "alice", diagnosis.VijayaHospital)
	_, _ = l.AllocateBed(ctx, appt.ID, 1, time.Hour)
	_, _ = l.DischargeBed(ctx, appt.ID)

	got, err := l.AllocateBed(ctx, appt.ID, 1, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, StatusBedAllocated, got.Status)
	assertBedAccounting(t, l)
}

func TestLedger_SweepExpired_AtExpireTime(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	ctx := context.Background()

	appt, _ := l.Request(ctx, "alice", diagnosis.VijayaHospital)
	allocated, err := l.AllocateBed(ctx, appt.ID, 5, 3*time.Second)
	require.NoError(t, err)

	expireAt := allocated.Bed.ExpireAt
	clock.Advance(3 * time.Second)

	assert.Equal(t, 1, l.SweepExpired(ctx, expireAt))

	got, _ := l.Get(appt.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Nil(t, got.Bed)

	free, _ := l.AvailableBeds(diagnosis.VijayaHospital)
	assert.Contains(t, free, 5)

	// second sweep at the same instant changes nothing
	before := l.ListAll()
	assert.Equal(t, 0, l.SweepExpired(ctx, expireAt))
	assert.Equal(t, before, l.ListAll())
	assertBedAccounting(t, l)
}

func TestLedger_SweepExpired_OnlyLapsed(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	short, _ := l.Request(ctx, "alice", diagnosis.CareFirst)
	long, _ := l.Request(ctx, "bob", diagnosis.CareFirst)
	pending, _ := l.Request(ctx, "carol", diagnosis.CareFirst)

	_, _ = l.AllocateBed(ctx, short.ID, 1, time.Second)
	_, _ = l.AllocateBed(ctx, long.ID, 2, time.Hour)

	assert.Equal(t, 1, l.SweepExpired(ctx, t0.Add(time.Minute)))

	got, _ := l.Get(short.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	got, _ = l.Get(long.ID)
	assert.Equal(t, StatusBedAllocated, got.Status)
	got, _ = l.Get(pending.ID)
	assert.Equal(t, StatusPending, got.Status)
	assertBedAccounting(t, l)
}

func TestLedger_TimeLeftScenario(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	ctx := context.Background()

	appt, _ := l.Request(ctx, "alice", diagnosis.VijayaHospital)
	_, err := l.AllocateBed(ctx, appt.ID, 5, 2000*time.Millisecond)
	require.NoError(t, err)

	clock.Advance(1999 * time.Millisecond)
	assert.Equal(t, 0, l.SweepExpired(ctx, l.Now()))

	got, _ := l.Get(appt.ID)
	assert.Equal(t, StatusBedAllocated, got.Status)
	left := got.TimeLeft(l.Now())
	assert.Greater(t, left, time.Duration(0))
	assert.LessOrEqual(t, left, time.Second)

	clock.Advance(2 * time.Millisecond)
	assert.Equal(t, 1, l.SweepExpired(ctx, l.Now()))

	got, _ = l.Get(appt.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Zero(t, got.TimeLeft(l.Now()))

	free, _ := l.AvailableBeds(diagnosis.VijayaHospital)
	assert.Contains(t, free, 5)
}

func TestAppointment_TimeLeft(t *testing.T) {
	a := Appointment{}
	assert.Zero(t, a.TimeLeft(t0))

	a.Bed = &BedAllocation{BedNumber: 1, StartAt: t0, ExpireAt: t0.Add(90 * time.Second)}
	assert.Equal(t, 90*time.Second, a.TimeLeft(t0))
	assert.Equal(t, 30*time.Second, a.TimeLeft(t0.Add(time.Minute)))
	assert.Zero(t, a.TimeLeft(t0.Add(time.Hour)))
}

func TestLedger_EventPayloads(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	appt, _ := l.Request(ctx, "alice", diagnosis.BVRHospitals)
	_, err := l.AllocateBed(ctx, appt.ID, 17, time.Minute)
	require.NoError(t, err)

	evs, err := l.Events(ctx, appt.ID)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, EventBedAllocated, evs[1].EventType)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(evs[1].Payload, &payload))
	assert.Equal(t, diagnosis.BVRHospitals, payload["hospital"])
	assert.EqualValues(t, 17, payload["bed_number"])
}

func TestLedger_EventTimestampsMatchRecord(t *testing.T) {
	l, clock, _ := newTestLedger(t)
	ctx := context.Background()

	appt, err := l.Request(ctx, "alice", diagnosis.PremaHospitals)
	require.NoError(t, err)

	clock.Advance(5 * time.Second)
	accepted, err := l.Accept(ctx, appt.ID)
	require.NoError(t, err)

	clock.Advance(5 * time.Second)
	allocated, err := l.AllocateBed(ctx, appt.ID, 9, time.Minute)
	require.NoError(t, err)

	// sweep at an instant the clock has not reached
	sweptAt := allocated.Bed.ExpireAt.Add(7 * time.Second)
	require.Equal(t, 1, l.SweepExpired(ctx, sweptAt))

	completed, err := l.Get(appt.ID)
	require.NoError(t, err)
	assert.Equal(t, sweptAt, completed.UpdatedAt)

	evs, err := l.Events(ctx, appt.ID)
	require.NoError(t, err)
	require.Len(t, evs, 4)
	assert.Equal(t, appt.CreatedAt, evs[0].CreatedAt)
	assert.Equal(t, accepted.UpdatedAt, evs[1].CreatedAt)
	assert.Equal(t, allocated.UpdatedAt, evs[2].CreatedAt)
	assert.Equal(t, EventBedExpired, evs[3].EventType)
	assert.Equal(t, sweptAt, evs[3].CreatedAt)
	assert.NotEqual(t, clock.Now(), evs[3].CreatedAt)
}

func TestLedger_EventStoreFailureDoesNotFailOperation(t *testing.T) {
	l, _, events := newTestLedger(t)
	events.err = errEventStoreDown
	ctx := context.Background()

	appt, err := l.Request(ctx, "alice", diagnosis.CareFirst)
	require.NoError(t, err)
	_, err = l.Accept(ctx, appt.ID)
	require.NoError(t, err)
}

func TestNewLedger_Defaults(t *testing.T) {
	l := NewLedger(beds.NewInventory([]string{"A"}, 2), nil, nil, nil)

	appt, err := l.Request(context.Background(), "alice", "A")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), appt.CreatedAt, time.Minute)
	assert.Equal(t, 2, l.BedCapacity())
}
