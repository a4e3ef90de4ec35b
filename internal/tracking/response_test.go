package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParse_SortsEventsMostRecentFirst(t *testing.T) {
	res, err := Parse([]byte(`{
  "shipment": {
    "isFinal": false,
    "event": [
      {"date":"2025-01-01T10:00:00Z","label":"Accepted"},
      {"date":"2025-01-03T10:00:00Z","label":"Out for delivery"},
      {"date":"2025-01-02T10:00:00Z","label":"In transit"}
    ]
  }
}`))
	require.NoError(t, err)
	require.False(t, res.IsFinal)
	require.Len(t, res.Events, 3)
	require.Equal(t, "Out for delivery", res.Events[0].Label)
	require.Equal(t, "In transit", res.Events[1].Label)
	require.Equal(t, "Accepted", res.Events[2].Label)

	status, err := res.LatestStatus()
	require.NoError(t, err)
	require.Equal(t, "Out for delivery", status)
}

func TestParse_EqualDatesKeepProviderOrder(t *testing.T) {
	res, err := Parse([]byte(`{
  "shipment": {
    "isFinal": true,
    "event": [
      {"date":"2025-01-01T10:00:00Z","label":"first"},
      {"date":"2025-01-01T10:00:00Z","label":"second"}
    ]
  }
}`))
	require.NoError(t, err)
	require.True(t, res.IsFinal)

	status, err := res.LatestStatus()
	require.NoError(t, err)
	require.Equal(t, "first", status)
}

func TestParse_MalformedReasons(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		object string
	}{
		{"not json", `not-json`, "shipment"},
		{"no shipment", `{"other": 1}`, "shipment"},
		{"shipment null", `{"shipment": null}`, "shipment"},
		{"no event key", `{"shipment": {"isFinal": false}}`, "event"},
		{"event null", `{"shipment": {"isFinal": false, "event": null}}`, "event"},
		{"event without date", `{"shipment": {"event": [{"label":"x"}]}}`, "event.date"},
		{"event empty date", `{"shipment": {"event": [{"date":"","label":"x"}]}}`, "event.date"},
		{"event bad date", `{"shipment": {"event": [{"date":"not-a-date","label":"x"}]}}`, "event.date"},
		{"event without label", `{"shipment": {"event": [{"date":"2025-01-01T10:00:00Z"}]}}`, "event.label"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Parse([]byte(tc.body))
			require.Nil(t, res)
			var mr *MalformedResponseError
			require.ErrorAs(t, err, &mr)
			require.Equal(t, tc.object, mr.Object)
		})
	}
}

func TestParse_EmptyEventListIsValid(t *testing.T) {
	res, err := Parse([]byte(`{"shipment": {"isFinal": false, "event": []}}`))
	require.NoError(t, err)
	require.Empty(t, res.Events)

	_, err = res.LatestStatus()
	require.ErrorIs(t, err, ErrNoTrackingEvent)
}

func TestParse_DateLayouts(t *testing.T) {
	res, err := Parse([]byte(`{
  "shipment": {
    "event": [
      {"date":"2025-01-02","label":"date only"},
      {"date":"2025-01-02T15:04:05","label":"no zone"},
      {"date":"2025-01-02T15:04:05+02:00","label":"with offset"}
    ]
  }
}`))
	require.NoError(t, err)
	require.Len(t, res.Events, 3)
	// 15:04:05+02:00 — это 13:04:05 UTC, т.е. раньше бесзонного 15:04:05.
	require.Equal(t, "no zone", res.Events[0].Label)
	require.Equal(t, time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC), res.Events[0].Date)
	require.Equal(t, "with offset", res.Events[1].Label)
	require.Equal(t, "date only", res.Events[2].Label)
}
