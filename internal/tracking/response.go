package tracking

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// ErrNoTrackingEvent возвращается из LatestStatus, когда провайдер прислал
// корректный ответ без единого события.
var ErrNoTrackingEvent = errors.New("no tracking event")

// MalformedResponseError — структурно невалидный ответ провайдера.
// Object указывает, какой именно объект отсутствует или сломан:
// "shipment", "event", "event.date", "event.label".
type MalformedResponseError struct {
	Object string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed tracking response: %s", e.Object)
}

type TrackingEvent struct {
	Date  time.Time
	Label string
}

// TrackingResult — нормализованный ответ провайдера.
// События отсортированы по дате по убыванию (самое свежее первым).
type TrackingResult struct {
	IsFinal bool
	Events  []TrackingEvent
}

type rawPayload struct {
	Shipment *rawShipment `json:"shipment"`
}

type rawShipment struct {
	IsFinal bool        `json:"isFinal"`
	Event   *[]rawEvent `json:"event"`
}

type rawEvent struct {
	Date  string `json:"date"`
	Label string `json:"label"`
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Parse разбирает сырой ответ провайдера. Пустой список событий — валидный
// результат; отсутствие самого ключа событий — нет.
func Parse(raw []byte) (*TrackingResult, error) {
	var p rawPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &MalformedResponseError{Object: "shipment"}
	}
	if p.Shipment == nil {
		return nil, &MalformedResponseError{Object: "shipment"}
	}
	if p.Shipment.Event == nil {
		return nil, &MalformedResponseError{Object: "event"}
	}

	events := make([]TrackingEvent, 0, len(*p.Shipment.Event))
	for _, e := range *p.Shipment.Event {
		if e.Date == "" {
			return nil, &MalformedResponseError{Object: "event.date"}
		}
		d, err := parseEventDate(e.Date)
		if err != nil {
			return nil, &MalformedResponseError{Object: "event.date"}
		}
		if e.Label == "" {
			return nil, &MalformedResponseError{Object: "event.label"}
		}
		events = append(events, TrackingEvent{Date: d, Label: e.Label})
	}

	// Стабильная сортировка: при равных датах сохраняем порядок провайдера.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.After(events[j].Date)
	})

	return &TrackingResult{
		IsFinal: p.Shipment.IsFinal,
		Events:  events,
	}, nil
}

func parseEventDate(s string) (time.Time, error) {
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

// LatestStatus возвращает метку самого свежего события.
func (r *TrackingResult) LatestStatus() (string, error) {
	if len(r.Events) == 0 {
		return "", ErrNoTrackingEvent
	}
	return r.Events[0].Label, nil
}
