package letters_api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BearBump/LetterTrack/internal/models"
	"github.com/BearBump/LetterTrack/internal/services/letters"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	trackStatus string
	trackErr    error
	trackedID   string

	statuses map[string]string
	bulkErr  error
	from, to time.Time

	current    *models.Letter
	currentErr error

	triggered int
}

func (f *fakeEngine) TrackLetter(ctx context.Context, shipmentID string) (string, error) {
	f.trackedID = shipmentID
	return f.trackStatus, f.trackErr
}

func (f *fakeEngine) TrackAllRegisteredLetters(ctx context.Context) (map[string]string, error) {
	return f.statuses, f.bulkErr
}

func (f *fakeEngine) TrackLettersUpdatedBetween(ctx context.Context, from, to time.Time) (map[string]string, error) {
	f.from, f.to = from, to
	return f.statuses, f.bulkErr
}

func (f *fakeEngine) CurrentLetter(ctx context.Context, trackingNumber string) (*models.Letter, error) {
	return f.current, f.currentErr
}

func (f *fakeEngine) Trigger() { f.triggered++ }

func (f *fakeEngine) Stats() letters.Stats {
	return letters.Stats{StartedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func doRequest(t *testing.T, e Engine, method, path string) *http.Response {
	t.Helper()
	srv := httptest.NewServer(New(e).Router())
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(method, srv.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestAPI_GetAllLettersStatuses(t *testing.T) {
	e := &fakeEngine{statuses: map[string]string{"S1": "A", "S2": "B"}}
	resp := doRequest(t, e, http.MethodGet, "/letters/all")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		StatusPerShipID map[string]string `json:"status_per_ship_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, map[string]string{"S1": "A", "S2": "B"}, out.StatusPerShipID)
}

func TestAPI_GetAllLettersStatuses_EmptyMapNotNull(t *testing.T) {
	e := &fakeEngine{statuses: map[string]string{}}
	resp := doRequest(t, e, http.MethodGet, "/letters/all")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"status_per_ship_id": {}}`, string(body))
}

func TestAPI_GetLetterStatus(t *testing.T) {
	e := &fakeEngine{trackStatus: "Delivered"}
	resp := doRequest(t, e, http.MethodGet, "/letters/by_ship_id/EX123")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "EX123", e.trackedID)

	var out struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "Delivered", out.Status)
}

func TestAPI_GetLetterStatus_CannotTrackIs422(t *testing.T) {
	e := &fakeEngine{trackErr: &letters.CannotTrackError{ShipmentID: "EX123", Reason: "no tracking event"}}
	resp := doRequest(t, e, http.MethodGet, "/letters/by_ship_id/EX123")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "Cannot track letter due to \"no tracking event\"\n", string(body))
}

func TestAPI_GetLetterStatus_OtherErrorIs500(t *testing.T) {
	e := &fakeEngine{trackErr: errors.New("boom")}
	resp := doRequest(t, e, http.MethodGet, "/letters/by_ship_id/EX123")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestAPI_GetLettersUpdatedWithin(t *testing.T) {
	e := &fakeEngine{statuses: map[string]string{"S1": "A"}}
	resp := doRequest(t, e, http.MethodGet, "/letters/by_update/2025-01-01/2025-02-01T10:00:00Z")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), e.from)
	require.Equal(t, time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC), e.to)
}

func TestAPI_GetLettersUpdatedWithin_BadDates(t *testing.T) {
	e := &fakeEngine{}

	resp := doRequest(t, e, http.MethodGet, "/letters/by_update/not-a-date/2025-02-01")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, "Invalid from-date\n", string(body))

	resp = doRequest(t, e, http.MethodGet, "/letters/by_update/2025-01-01/not-a-date")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body, _ = io.ReadAll(resp.Body)
	require.Equal(t, "Invalid to-date\n", string(body))
}

func TestAPI_GetCurrentLetter(t *testing.T) {
	e := &fakeEngine{current: &models.Letter{
		TrackingNumber: "S1",
		Status:         "A",
		Final:          true,
		Updated:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}}
	resp := doRequest(t, e, http.MethodGet, "/letters/current/S1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		TrackingNumber string `json:"tracking_number"`
		Status         string `json:"status"`
		IsFinal        bool   `json:"is_final"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "S1", out.TrackingNumber)
	require.Equal(t, "A", out.Status)
	require.True(t, out.IsFinal)
}

func TestAPI_GetCurrentLetter_NotFound(t *testing.T) {
	e := &fakeEngine{}
	resp := doRequest(t, e, http.MethodGet, "/letters/current/NOPE")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_ServiceEndpoints(t *testing.T) {
	e := &fakeEngine{}

	resp := doRequest(t, e, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, e, http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, e, http.MethodPost, "/trigger")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, e.triggered)
}
