package bot

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tazhate/medbot/internal/domain"
	"github.com/tazhate/medbot/internal/service"
)

// API Response types
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type MedicationResponse struct {
	ID                   int64   `json:"id"`
	Name                 string  `json:"name"`
	Time                 string  `json:"time"`
	Grams                string  `json:"grams"`
	Days                 string  `json:"days"`
	Hours                string  `json:"hours"`
	TotalDoses           int     `json:"total_doses"`
	TakenDoses           int     `json:"taken_doses"`
	ExpectedDoses        int     `json:"expected_doses"`
	Completed            bool    `json:"completed"`
	StartDate            string  `json:"start_date"`
	CurrentAlertTime     string  `json:"current_alert_time"`
	LastNotificationTime *string `json:"last_notification_time,omitempty"`
	NextDoseTime         string  `json:"next_dose_time"`
	Delayed              bool    `json:"delayed"`
	Progress             string  `json:"progress"`
}

type CatalogResponse struct {
	Name        string `json:"name"`
	TypicalDose string `json:"typical_dose"`
	Description string `json:"description"`
}

type createMedicationRequest struct {
	Name  string `json:"name"`
	Time  string `json:"time"`
	Grams string `json:"grams"`
	Days  string `json:"days"`
	Hours string `json:"hours"`
}

type updateMedicationRequest struct {
	Grams string `json:"grams"`
	Days  string `json:"days"`
	Hours string `json:"hours"`
}

// SetupAPI registers API routes with Basic Auth
func (b *Bot) SetupAPI() {
	if b.cfg.APIUsername == "" || b.cfg.APIPassword == "" {
		return // API disabled if no credentials
	}

	http.HandleFunc("/api/medications", b.basicAuth(b.apiMedications))
	http.HandleFunc("/api/medication/", b.basicAuth(b.apiMedication))
	http.HandleFunc("/api/catalog", b.basicAuth(b.apiCatalog))

	// Dose calendar
	http.HandleFunc("/api/calendar/sync", b.basicAuth(b.apiCalendarSync))
	http.HandleFunc("/api/calendar/list", b.basicAuth(b.apiCalendarList))
	http.HandleFunc("/api/calendar.ics", b.basicAuth(b.apiCalendarICS))
}

// basicAuth middleware
func (b *Bot) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username != b.cfg.APIUsername || password != b.cfg.APIPassword {
			w.Header().Set("WWW-Authenticate", `Basic realm="MedBot API"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (b *Bot) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func (b *Bot) jsonError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: msg})
}

func (b *Bot) medicationResponse(med *domain.Medication, now time.Time) MedicationResponse {
	total, expected, taken := service.DoseProgress(med, now)
	return MedicationResponse{
		ID:                   med.ID,
		Name:                 med.Name,
		Time:                 med.Time,
		Grams:                med.Grams,
		Days:                 med.Days,
		Hours:                med.Hours,
		TotalDoses:           total,
		TakenDoses:           taken,
		ExpectedDoses:        expected,
		Completed:            med.Completed,
		StartDate:            med.StartDate,
		CurrentAlertTime:     med.CurrentAlertTime,
		LastNotificationTime: med.LastNotificationTime,
		NextDoseTime:         service.NextDoseTime(med),
		Delayed:              med.IsDelayed(),
		Progress:             string(med.Progress()),
	}
}

func (b *Bot) apiMedications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		meds, err := b.medService.List()
		if err != nil {
			b.jsonError(w, http.StatusInternalServerError, err.Error())
			return
		}
		now := time.Now().In(b.cfg.Timezone)
		resp := make([]MedicationResponse, 0, len(meds))
		for _, m := range meds {
			resp = append(resp, b.medicationResponse(m, now))
		}
		b.jsonResponse(w, resp)

	case http.MethodPost:
		var req createMedicationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			b.jsonError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		med, err := b.medService.Create(req.Name, req.Time, req.Grams, req.Days, req.Hours)
		if err != nil {
			var dup *service.DuplicateError
			if errors.As(err, &dup) {
				b.jsonError(w, http.StatusConflict, dup.Error())
				return
			}
			b.jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		b.jsonResponse(w, b.medicationResponse(med, time.Now().In(b.cfg.Timezone)))

	default:
		b.jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (b *Bot) apiMedication(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/medication/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		b.jsonError(w, http.StatusBadRequest, "invalid medication id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		med, err := b.medService.Get(id)
		if err != nil {
			b.jsonError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if med == nil {
			b.jsonError(w, http.StatusNotFound, "medication not found")
			return
		}
		b.jsonResponse(w, b.medicationResponse(med, time.Now().In(b.cfg.Timezone)))

	case http.MethodPut:
		var req updateMedicationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			b.jsonError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		med, err := b.medService.Update(id, req.Grams, req.Days, req.Hours)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				b.jsonError(w, http.StatusNotFound, err.Error())
				return
			}
			b.jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		b.jsonResponse(w, b.medicationResponse(med, time.Now().In(b.cfg.Timezone)))

	case http.MethodDelete:
		if err := b.medService.Delete(id); err != nil {
			b.jsonError(w, http.StatusInternalServerError, err.Error())
			return
		}
		b.jsonResponse(w, map[string]int64{"deleted": id})

	default:
		b.jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (b *Bot) apiCatalog(w http.ResponseWriter, r *http.Request) {
	resp := make([]CatalogResponse, 0, len(domain.Catalog))
	for _, m := range domain.Catalog {
		resp = append(resp, CatalogResponse{
			Name:        m.Name,
			TypicalDose: m.TypicalDose,
			Description: m.Description,
		})
	}
	b.jsonResponse(w, resp)
}

func (b *Bot) apiCalendarSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		b.jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !b.calService.IsConfigured() {
		b.jsonError(w, http.StatusServiceUnavailable, "CalDAV not configured")
		return
	}
	result, err := b.calService.PublishDoseSchedule()
	if err != nil {
		b.jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	b.jsonResponse(w, result)
}

func (b *Bot) apiCalendarList(w http.ResponseWriter, r *http.Request) {
	if !b.calService.IsConfigured() {
		b.jsonError(w, http.StatusServiceUnavailable, "CalDAV not configured")
		return
	}
	cals, err := b.calService.DiscoverCalendars()
	if err != nil {
		b.jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	b.jsonResponse(w, cals)
}

func (b *Bot) apiCalendarICS(w http.ResponseWriter, r *http.Request) {
	feed, err := b.calService.BuildICSFeed(time.Now().In(b.cfg.Timezone))
	if err != nil {
		b.jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Write([]byte(feed))
}
