package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/delcom/healthtrack/internal/domain"
	"github.com/delcom/healthtrack/internal/http/response"
	"github.com/delcom/healthtrack/internal/identity"
	"github.com/delcom/healthtrack/internal/service"
)

// recordDateFormat is the wire format for record dates.
const recordDateFormat = "2006-01-02"

type RecordHandler struct {
	records *service.RecordService
}

func NewRecordHandler(records *service.RecordService) *RecordHandler {
	return &RecordHandler{records: records}
}

type recordRequest struct {
	Date            string   `json:"date"`
	BodyTemperature *float64 `json:"body_temperature"`
	BloodPressure   string   `json:"blood_pressure"`
	HeartRate       *int     `json:"heart_rate"`
	WaterIntake     *int     `json:"water_intake"`
	SleepDuration   *float64 `json:"sleep_duration"`
	StressLevel     *int     `json:"stress_level"`
	Notes           string   `json:"notes"`
}

func (req recordRequest) toInput() (service.RecordInput, error) {
	input := service.RecordInput{
		BodyTemperature: req.BodyTemperature,
		BloodPressure:   req.BloodPressure,
		HeartRate:       req.HeartRate,
		WaterIntake:     req.WaterIntake,
		SleepDuration:   req.SleepDuration,
		StressLevel:     req.StressLevel,
		Notes:           req.Notes,
	}
	if req.Date != "" {
		date, err := time.Parse(recordDateFormat, req.Date)
		if err != nil {
			return service.RecordInput{}, err
		}
		input.Date = date
	}
	return input, nil
}

// requireUser answers the legacy 403 when the middleware did not populate
// an identity. The auth middleware already rejects bad tokens; this guards
// misrouted registrations.
func requireUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	user, ok := identity.UserFromContext(r.Context())
	if !ok {
		response.Fail(w, http.StatusForbidden, "user not authenticated")
		return nil, false
	}
	return user, true
}

func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	input, err := req.toInput()
	if err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}

	record, err := h.records.Create(user.ID, input)
	if err != nil {
		if msg, ok := recordValidationMessage(err); ok {
			response.Fail(w, http.StatusBadRequest, msg)
			return
		}
		slog.ErrorContext(r.Context(), "record create failed", "error", err, "user_id", user.ID.String())
		response.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	response.Created(w, "health record created successfully", map[string]any{"record": record})
}

func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	records, err := h.records.List(user.ID, r.URL.Query().Get("search"))
	if err != nil {
		slog.ErrorContext(r.Context(), "record list failed", "error", err, "user_id", user.ID.String())
		response.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	response.Success(w, "health records retrieved", map[string]any{"records": records})
}

func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Fail(w, http.StatusNotFound, "record not found")
		return
	}
	record, err := h.records.GetByID(user.ID, id)
	if err != nil {
		if errors.Is(err, service.ErrRecordNotFound) {
			response.Fail(w, http.StatusNotFound, "record not found")
			return
		}
		slog.ErrorContext(r.Context(), "record get failed", "error", err, "user_id", user.ID.String())
		response.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	response.Success(w, "health record retrieved", map[string]any{"record": record})
}

func (h *RecordHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Fail(w, http.StatusNotFound, "record not found")
		return
	}
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	input, err := req.toInput()
	if err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}
	if input.BodyTemperature == nil {
		response.Fail(w, http.StatusBadRequest, "body temperature is required")
		return
	}

	record, err := h.records.Update(user.ID, id, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRecordNotFound):
			response.Fail(w, http.StatusNotFound, "record not found")
		default:
			slog.ErrorContext(r.Context(), "record update failed", "error", err, "user_id", user.ID.String())
			response.Error(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	response.Success(w, "health record updated successfully", map[string]any{"record": record})
}

func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Fail(w, http.StatusNotFound, "record not found")
		return
	}
	deleted, err := h.records.Delete(r.Context(), user.ID, id)
	if err != nil {
		slog.ErrorContext(r.Context(), "record delete failed", "error", err, "user_id", user.ID.String())
		response.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !deleted {
		response.Fail(w, http.StatusNotFound, "record not found")
		return
	}
	response.Success(w, "health record deleted successfully", nil)
}

func recordValidationMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, service.ErrTemperatureRequired):
		return "body temperature is required", true
	case errors.Is(err, service.ErrBloodPressureRequired):
		return "blood pressure is required", true
	case errors.Is(err, service.ErrHeartRateRequired):
		return "heart rate is required", true
	}
	return "", false
}
