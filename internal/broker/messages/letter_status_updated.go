package messages

import "time"

// LetterStatusUpdated публикуется после каждого зафиксированного в БД
// изменения статуса письма.
type LetterStatusUpdated struct {
	TrackingNumber string    `json:"tracking_number"`
	Status         string    `json:"status"`
	IsFinal        bool      `json:"is_final"`
	TrackedAt      time.Time `json:"tracked_at"`
}
