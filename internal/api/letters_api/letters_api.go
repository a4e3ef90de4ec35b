package letters_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/BearBump/LetterTrack/internal/models"
	"github.com/BearBump/LetterTrack/internal/services/letters"
	"github.com/go-chi/chi/v5"
)

type Engine interface {
	TrackLetter(ctx context.Context, shipmentID string) (string, error)
	TrackAllRegisteredLetters(ctx context.Context) (map[string]string, error)
	TrackLettersUpdatedBetween(ctx context.Context, from, to time.Time) (map[string]string, error)
	CurrentLetter(ctx context.Context, trackingNumber string) (*models.Letter, error)
	Trigger()
	Stats() letters.Stats
}

type LettersAPI struct {
	svc Engine
}

func New(svc Engine) *LettersAPI {
	return &LettersAPI{svc: svc}
}

type trackingResult struct {
	Status string `json:"status"`
}

type batchTrackingResult struct {
	StatusPerShipID map[string]string `json:"status_per_ship_id"`
}

type currentLetter struct {
	TrackingNumber string    `json:"tracking_number"`
	Status         string    `json:"status"`
	IsFinal        bool      `json:"is_final"`
	Updated        time.Time `json:"updated"`
}

func (a *LettersAPI) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/letters/all", a.getAllLettersStatuses)
	r.Get("/letters/by_ship_id/{id}", a.getLetterStatus)
	r.Get("/letters/by_update/{from}/{to}", a.getLettersUpdatedWithin)
	r.Get("/letters/current/{id}", a.getCurrentLetter)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})
	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(a.svc.Stats())
	})
	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		a.svc.Trigger()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"triggered":true}`))
	})

	return r
}

func (a *LettersAPI) getAllLettersStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := a.svc.TrackAllRegisteredLetters(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, batchTrackingResult{StatusPerShipID: statuses})
}

func (a *LettersAPI) getLetterStatus(w http.ResponseWriter, r *http.Request) {
	shipmentID := chi.URLParam(r, "id")

	status, err := a.svc.TrackLetter(r.Context(), shipmentID)
	if err != nil {
		if te, ok := err.(*letters.CannotTrackError); ok {
			http.Error(w, fmt.Sprintf("Cannot track letter due to \"%s\"", te.Reason), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, trackingResult{Status: status})
}

func (a *LettersAPI) getLettersUpdatedWithin(w http.ResponseWriter, r *http.Request) {
	from, err := parseDate(chi.URLParam(r, "from"))
	if err != nil {
		http.Error(w, "Invalid from-date", http.StatusBadRequest)
		return
	}
	to, err := parseDate(chi.URLParam(r, "to"))
	if err != nil {
		http.Error(w, "Invalid to-date", http.StatusBadRequest)
		return
	}

	statuses, err := a.svc.TrackLettersUpdatedBetween(r.Context(), from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, batchTrackingResult{StatusPerShipID: statuses})
}

func (a *LettersAPI) getCurrentLetter(w http.ResponseWriter, r *http.Request) {
	l, err := a.svc.CurrentLetter(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if l == nil {
		http.Error(w, "letter not found", http.StatusNotFound)
		return
	}
	writeJSON(w, currentLetter{
		TrackingNumber: l.TrackingNumber,
		Status:         l.Status,
		IsFinal:        l.Final,
		Updated:        l.Updated,
	})
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
