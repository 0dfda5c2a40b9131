package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hackgods/medconnect/internal/appointment"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
// On failure it writes the error response and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "validation_failed",
			Fields: formatValidationErrors(err),
		})
		return false
	}
	return true
}

func formatValidationErrors(err error) map[string]string {
	out := make(map[string]string)

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		out["_"] = err.Error()
		return out
	}

	for _, e := range verrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out[field] = field + " is required"
		case "min":
			out[field] = field + " must be at least " + e.Param()
		case "max":
			out[field] = field + " must be at most " + e.Param()
		case "gte":
			out[field] = field + " must be greater than or equal to " + e.Param()
		case "oneof":
			out[field] = field + " must be one of: " + e.Param()
		default:
			out[field] = field + " is invalid"
		}
	}
	return out
}

func toAppointmentResponse(a appointment.Appointment, now time.Time) AppointmentResponse {
	resp := AppointmentResponse{
		ID:        a.ID,
		Patient:   a.Patient,
		Hospital:  a.Hospital,
		Status:    string(a.Status),
		Report:    a.Report,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if a.Bed != nil {
		resp.Bed = &BedResponse{
			Number:          a.Bed.BedNumber,
			StartAt:         a.Bed.StartAt,
			ExpireAt:        a.Bed.ExpireAt,
			TimeLeftSeconds: int64(a.TimeLeft(now) / time.Second),
		}
	}
	return resp
}

func toAppointmentResponses(list []appointment.Appointment, now time.Time) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAppointmentResponse(a, now))
	}
	return out
}
