package fake

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"time"
)

// FakeClient — детерминированная заглушка провайдера для запуска без
// реального ключа API. Отдаёт payload в том же wire-формате, что La Poste,
// статус зависит только от shipment id: часть писем считается доставленной.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Fetch(ctx context.Context, shipmentID string) ([]byte, error) {
	now := time.Now().UTC()

	h := fnv.New32a()
	_, _ = h.Write([]byte(shipmentID))
	v := h.Sum32()

	// 20% писем считаем доставленными
	isFinal := v%5 == 0
	label := "Your parcel is in transit"
	if isFinal {
		label = "Your parcel has been delivered"
	}

	payload := map[string]any{
		"shipment": map[string]any{
			"isFinal": isFinal,
			"event": []map[string]any{
				{
					"date":  now.Add(-24 * time.Hour).Format(time.RFC3339),
					"label": "Your parcel has been accepted",
				},
				{
					"date":  now.Format(time.RFC3339),
					"label": label,
				},
			},
		},
	}
	return json.Marshal(payload)
}
