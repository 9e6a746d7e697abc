package web

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/delcom/healthtrack/internal/identity"
	"github.com/delcom/healthtrack/internal/service"
	"github.com/delcom/healthtrack/internal/storage"
)

const formDateLayout = "2006-01-02"

// RecordWebHandler serves the record list, detail and mutation forms.
type RecordWebHandler struct {
	records  *service.RecordService
	photos   *service.PhotoService
	sessions *SessionManager
}

func NewRecordWebHandler(records *service.RecordService, photos *service.PhotoService, sessions *SessionManager) *RecordWebHandler {
	return &RecordWebHandler{records: records, photos: photos, sessions: sessions}
}

func (h *RecordWebHandler) Home(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.UserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}
	records, err := h.records.List(user.ID, r.URL.Query().Get("search"))
	if err != nil {
		slog.ErrorContext(r.Context(), "record list failed", "error", err, "user_id", user.ID.String())
		http.Redirect(w, r, "/error", http.StatusSeeOther)
		return
	}
	render(w, "home.html", pageData{
		Title:        "Health records",
		UserName:     user.Name,
		FlashError:   h.sessions.Flashes(w, r, "error"),
		FlashSuccess: h.sessions.Flashes(w, r, "success"),
		Data:         records,
	})
}

func (h *RecordWebHandler) Detail(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.UserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.sessions.AddFlash(w, r, "error", "record not found")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	record, err := h.records.GetByID(user.ID, id)
	if err != nil {
		h.sessions.AddFlash(w, r, "error", "record not found")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	render(w, "detail.html", pageData{
		Title:        "Record detail",
		UserName:     user.Name,
		FlashError:   h.sessions.Flashes(w, r, "error"),
		FlashSuccess: h.sessions.Flashes(w, r, "success"),
		Data:         record,
	})
}

func (h *RecordWebHandler) Add(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.UserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}
	input, err := parseRecordForm(r)
	if err != nil {
		h.sessions.AddFlash(w, r, "error", "invalid form submission")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if _, err := h.records.Create(user.ID, input); err != nil {
		h.sessions.AddFlash(w, r, "error", recordFlashMessage(err))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.sessions.AddFlash(w, r, "success", "health record created successfully")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *RecordWebHandler) Edit(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.UserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}
	input, err := parseRecordForm(r)
	if err != nil {
		h.sessions.AddFlash(w, r, "error", "invalid form submission")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	id, err := uuid.Parse(r.PostFormValue("id"))
	if err != nil {
		h.sessions.AddFlash(w, r, "error", "record not found")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if _, err := h.records.Update(user.ID, id, input); err != nil {
		h.sessions.AddFlash(w, r, "error", recordFlashMessage(err))
		http.Redirect(w, r, "/health-records/"+id.String(), http.StatusSeeOther)
		return
	}
	h.sessions.AddFlash(w, r, "success", "health record updated successfully")
	http.Redirect(w, r, "/health-records/"+id.String(), http.StatusSeeOther)
}

func (h *RecordWebHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.UserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}
	id, err := uuid.Parse(r.PostFormValue("id"))
	if err != nil {
		h.sessions.AddFlash(w, r, "error", "record not found")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	deleted, err := h.records.Delete(r.Context(), user.ID, id)
	if err != nil {
		slog.ErrorContext(r.Context(), "record delete failed", "error", err, "user_id", user.ID.String())
		h.sessions.AddFlash(w, r, "error", "something went wrong, please try again")
	} else if !deleted {
		h.sessions.AddFlash(w, r, "error", "record not found")
	} else {
		h.sessions.AddFlash(w, r, "success", "health record deleted successfully")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *RecordWebHandler) EditPhoto(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.UserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}
	if err := r.ParseMultipartForm(service.MaxPhotoBytes + 1<<20); err != nil {
		h.sessions.AddFlash(w, r, "error", "invalid form submission")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	id, err := uuid.Parse(r.PostFormValue("id"))
	if err != nil {
		h.sessions.AddFlash(w, r, "error", "record not found")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	target := "/health-records/" + id.String()

	file, header, err := r.FormFile("photo")
	if err != nil {
		h.sessions.AddFlash(w, r, "error", "photo file must not be empty")
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	defer file.Close()

	if _, err := h.photos.Attach(r.Context(), user.ID, id, header.Filename, header.Header.Get("Content-Type"), header.Size, file); err != nil {
		h.sessions.AddFlash(w, r, "error", photoFlashMessage(err))
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	h.sessions.AddFlash(w, r, "success", "photo uploaded successfully")
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Photo streams a stored photo by filename. The route sits behind the
// session middleware so photos are not publicly reachable.
func (h *RecordWebHandler) Photo(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	reader, err := h.photos.Open(r.Context(), filename)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.ErrorContext(r.Context(), "photo open failed", "error", err, "filename", filename)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer reader.Close()

	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if _, err := io.Copy(w, reader); err != nil {
		slog.ErrorContext(r.Context(), "photo stream failed", "error", err, "filename", filename)
	}
}

func parseRecordForm(r *http.Request) (service.RecordInput, error) {
	if err := r.ParseForm(); err != nil {
		return service.RecordInput{}, err
	}
	input := service.RecordInput{
		BloodPressure: r.PostFormValue("blood_pressure"),
		Notes:         r.PostFormValue("notes"),
	}
	if raw := r.PostFormValue("date"); raw != "" {
		date, err := time.Parse(formDateLayout, raw)
		if err != nil {
			return service.RecordInput{}, err
		}
		input.Date = date
	}
	if v, ok, err := formFloat(r, "body_temperature"); err != nil {
		return service.RecordInput{}, err
	} else if ok {
		input.BodyTemperature = &v
	}
	if v, ok, err := formInt(r, "heart_rate"); err != nil {
		return service.RecordInput{}, err
	} else if ok {
		input.HeartRate = &v
	}
	if v, ok, err := formInt(r, "water_intake"); err != nil {
		return service.RecordInput{}, err
	} else if ok {
		input.WaterIntake = &v
	}
	if v, ok, err := formFloat(r, "sleep_duration"); err != nil {
		return service.RecordInput{}, err
	} else if ok {
		input.SleepDuration = &v
	}
	if v, ok, err := formInt(r, "stress_level"); err != nil {
		return service.RecordInput{}, err
	} else if ok {
		input.StressLevel = &v
	}
	return input, nil
}

func formFloat(r *http.Request, name string) (float64, bool, error) {
	raw := r.PostFormValue(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	return v, err == nil, err
}

func formInt(r *http.Request, name string) (int, bool, error) {
	raw := r.PostFormValue(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	return v, err == nil, err
}

func recordFlashMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrTemperatureRequired):
		return "body temperature is required"
	case errors.Is(err, service.ErrBloodPressureRequired):
		return "blood pressure is required"
	case errors.Is(err, service.ErrHeartRateRequired):
		return "heart rate is required"
	case errors.Is(err, service.ErrRecordNotFound):
		return "record not found"
	}
	return "something went wrong, please try again"
}

func photoFlashMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrPhotoEmpty):
		return "photo file must not be empty"
	case errors.Is(err, service.ErrPhotoType):
		return "file must be a JPG, PNG, GIF or WEBP image"
	case errors.Is(err, service.ErrPhotoTooLarge):
		return "file exceeds the 5 MiB limit"
	case errors.Is(err, service.ErrRecordNotFound):
		return "record not found"
	}
	return "something went wrong, please try again"
}
