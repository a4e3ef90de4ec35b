package models

import "time"

type Letter struct {
	ID             uint64
	TrackingNumber string
	Status         string
	Final          bool
	Updated        time.Time
}

// StatusUpdate — одна запись истории статусов. После вставки не меняется.
type StatusUpdate struct {
	ID               uint64
	LetterID         uint64
	Status           string
	TimestampTracked time.Time
}
