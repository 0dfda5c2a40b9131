package api

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=4,max=72"`
	Role     string `json:"role" validate:"required,oneof=patient doctor"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type SessionResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type DiagnoseRequest struct {
	Symptoms []string `json:"symptoms" validate:"required,min=1"`
}

type DiagnoseResponse struct {
	Diagnoses []string `json:"diagnoses"`
	Hospitals []string `json:"hospitals"`
}

type HospitalResponse struct {
	Name          string `json:"name"`
	AvailableBeds int    `json:"available_beds"`
	TotalBeds     int    `json:"total_beds"`
}

type BedsResponse struct {
	Hospital  string `json:"hospital"`
	Available []int  `json:"available"`
}

type CreateAppointmentRequest struct {
	Hospital string `json:"hospital" validate:"required"`
}

type ReportRequest struct {
	Report string `json:"report" validate:"max=4000"`
}

// AllocateBedRequest takes either duration_ms or the days/hours/minutes/
// seconds breakdown the bed picker offers. duration_ms wins when set.
type AllocateBedRequest struct {
	BedNumber  int   `json:"bed_number" validate:"required,gte=1"`
	DurationMS int64 `json:"duration_ms" validate:"gte=0"`
	Days       int   `json:"days" validate:"gte=0"`
	Hours      int   `json:"hours" validate:"gte=0"`
	Minutes    int   `json:"minutes" validate:"gte=0"`
	Seconds    int   `json:"seconds" validate:"gte=0"`
}

var errDurationOverflow = errors.New("duration is too long")

// Duration converts the request into a stay length. Values that do not fit
// in a time.Duration are rejected instead of wrapping around.
func (r AllocateBedRequest) Duration() (time.Duration, error) {
	if r.DurationMS > 0 {
		return scaleDuration(r.DurationMS, time.Millisecond)
	}

	var total time.Duration
	parts := []struct {
		n    int
		unit time.Duration
	}{
		{r.Days, 24 * time.Hour},
		{r.Hours, time.Hour},
		{r.Minutes, time.Minute},
		{r.Seconds, time.Second},
	}
	for _, p := range parts {
		d, err := scaleDuration(int64(p.n), p.unit)
		if err != nil {
			return 0, err
		}
		if d > math.MaxInt64-total {
			return 0, errDurationOverflow
		}
		total += d
	}
	return total, nil
}

func scaleDuration(n int64, unit time.Duration) (time.Duration, error) {
	if n < 0 || n > math.MaxInt64/int64(unit) {
		return 0, errDurationOverflow
	}
	return time.Duration(n) * unit, nil
}

type BedResponse struct {
	Number          int       `json:"number"`
	StartAt         time.Time `json:"start_at"`
	ExpireAt        time.Time `json:"expire_at"`
	TimeLeftSeconds int64     `json:"time_left_seconds"`
}

type AppointmentResponse struct {
	ID        uuid.UUID    `json:"id"`
	Patient   string       `json:"patient"`
	Hospital  string       `json:"hospital"`
	Status    string       `json:"status"`
	Report    string       `json:"report,omitempty"`
	Bed       *BedResponse `json:"bed,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type EventResponse struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}
