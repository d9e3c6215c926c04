package dto

import "time"

// UpsertEventRequest defines payload for creating/updating an event.
type UpsertEventRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	Venue       string    `json:"venue" validate:"required"`
	StartsAt    time.Time `json:"startsAt" validate:"required"`
	EndsAt      time.Time `json:"endsAt" validate:"required"`
}

// CheckInRequest records a QR scan for a student at an event.
type CheckInRequest struct {
	Code      string `json:"code" validate:"required"`
	StudentID string `json:"studentId" validate:"required"`
}
