package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/medconnect/internal/account"
	"github.com/hackgods/medconnect/internal/appointment"
	"github.com/hackgods/medconnect/internal/diagnosis"
)

func registerHandler(reg *account.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		sess, err := reg.Register(r.Context(), req.Username, req.Password, account.Role(req.Role))
		if err != nil {
			handleAccountError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toSessionResponse(sess))
	}
}

func loginHandler(reg *account.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		sess, err := reg.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			handleAccountError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSessionResponse(sess))
	}
}

func logoutHandler(reg *account.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := reg.Logout(r.Context(), r.Header.Get(sessionHeader)); err != nil {
			handleAccountError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listSymptomsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, diagnosis.Symptoms())
	}
}

func diagnoseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DiagnoseRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		diags := diagnosis.Diagnose(req.Symptoms)
		resp := DiagnoseResponse{
			Diagnoses: make([]string, 0, len(diags)),
			Hospitals: diagnosis.Route(diags),
		}
		for _, d := range diags {
			resp.Diagnoses = append(resp.Diagnoses, string(d))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func listHospitalsHandler(ledger *appointment.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		total := ledger.BedCapacity()
		hospitals := ledger.Hospitals()

		resp := make([]HospitalResponse, 0, len(hospitals))
		for _, h := range hospitals {
			free, err := ledger.AvailableCount(h)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
				return
			}
			resp = append(resp, HospitalResponse{Name: h, AvailableBeds: free, TotalBeds: total})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func availableBedsHandler(ledger *appointment.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, err := url.PathUnescape(chi.URLParam(r, "name"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_hospital", "hospital name is not valid")
			return
		}

		free, err := ledger.AvailableBeds(name)
		if err != nil {
			handleLedgerError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, BedsResponse{Hospital: name, Available: free})
	}
}

func createAppointmentHandler(ledger *appointment.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		user, _ := CurrentUser(r.Context())
		appt, err := ledger.Request(r.Context(), user.Username, req.Hospital)
		if err != nil {
			handleLedgerError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt, ledger.Now()))
	}
}

func myAppointmentsHandler(ledger *appointment.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := CurrentUser(r.Context())
		writeJSON(w, http.StatusOK, toAppointmentResponses(ledger.ListByPatient(user.Username), ledger.Now()))
	}
}

func myReportsHandler(ledger *appointment.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := CurrentUser(r.Context())
		writeJSON(w, http.StatusOK, toAppointmentResponses(ledger.ListReportsByPatient(user.Username), ledger.Now()))
	}
}

func listAppointmentsHandler(ledger *appointment.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := ledger.ListAll()
		if patient := r.URL.Query().Get("patient"); patient != "" {
			list = ledger.ListByPatient(patient)
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(list, ledger.Now()))
	}
}

func getAppointmentHandler(ledger *appointment.Ledger) http.HandlerFunc {
	return withAppointmentID(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
		appt, err := ledger.Get(id)
		if err != nil {
			handleLedgerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, ledger.Now()))
	})
}

func appointmentEventsHandler(ledger *appointment.Ledger) http.HandlerFunc {
	return withAppointmentID(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
		evs, err := ledger.Events(r.Context(), id)
		if err != nil {
			handleLedgerError(w, err)
			return
		}

		resp := make([]EventResponse, 0, len(evs))
		for _, ev := range evs {
			item := EventResponse{Type: ev.EventType, CreatedAt: ev.CreatedAt}
			if len(ev.Payload) > 0 {
				item.Payload = json.RawMessage(ev.Payload)
			}
			resp = append(resp, item)
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

func acceptAppointmentHandler(ledger *appointment.Ledger) http.HandlerFunc {
	return withAppointmentID(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
		respondAppointment(w, ledger)(ledger.Accept(r.Context(), id))
	})
}

func declineAppointmentHandler(ledger *appointment.Ledger) http.HandlerFunc {
	return withAppointmentID(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
		respondAppointment(w, ledger)(ledger.Decline(r.Context(), id))
	})
}

func attachReportHandler(ledger *appointment.Ledger) http.HandlerFunc {
	return withAppointmentID(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
		var req ReportRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		respondAppointment(w, ledger)(ledger.AttachReport(r.Context(), id, req.Report))
	})
}

func allocateBedHandler(ledger *appointment.Ledger) http.HandlerFunc {
	return withAppointmentID(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
		var req AllocateBedRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		duration, err := req.Duration()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_duration", err.Error())
			return
		}
		respondAppointment(w, ledger)(ledger.AllocateBed(r.Context(), id, req.BedNumber, duration))
	})
}

func dischargeBedHandler(ledger *appointment.Ledger) http.HandlerFunc {
	return withAppointmentID(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
		respondAppointment(w, ledger)(ledger.DischargeBed(r.Context(), id))
	})
}

func withAppointmentID(fn func(w http.ResponseWriter, r *http.Request, id uuid.UUID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}
		fn(w, r, id)
	}
}

func respondAppointment(w http.ResponseWriter, ledger *appointment.Ledger) func(appointment.Appointment, error) {
	return func(appt appointment.Appointment, err error) {
		if err != nil {
			handleLedgerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, ledger.Now()))
	}
}

func toSessionResponse(s account.Session) SessionResponse {
	return SessionResponse{
		Token:    s.Token,
		Username: s.User.Username,
		Role:     string(s.User.Role),
	}
}

func handleLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrUnknownHospital):
		writeError(w, http.StatusNotFound, "unknown_hospital", err.Error())
	case errors.Is(err, appointment.ErrInvalidPatient):
		writeError(w, http.StatusBadRequest, "invalid_patient", err.Error())
	case errors.Is(err, appointment.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, "invalid_duration", err.Error())
	case errors.Is(err, appointment.ErrBedUnavailable):
		writeError(w, http.StatusConflict, "bed_unavailable", err.Error())
	case errors.Is(err, appointment.ErrNotAllocated):
		writeError(w, http.StatusConflict, "not_allocated", err.Error())
	case errors.Is(err, appointment.ErrAlreadyAllocated):
		writeError(w, http.StatusConflict, "already_allocated", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleAccountError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, account.ErrUserExists):
		writeError(w, http.StatusConflict, "user_exists", err.Error())
	case errors.Is(err, account.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, "invalid_role", err.Error())
	case errors.Is(err, account.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, account.ErrNoSession):
		writeError(w, http.StatusUnauthorized, "no_session", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
