package models

import "time"

// Event is a campus event students check into via QR code.
type Event struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Venue       string    `db:"venue" json:"venue"`
	StartsAt    time.Time `db:"starts_at" json:"startsAt"`
	EndsAt      time.Time `db:"ends_at" json:"endsAt"`
	CheckInCode string    `db:"check_in_code" json:"checkInCode"`
	CreatedBy   string    `db:"created_by" json:"createdBy"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// EventAttendance records a single student check-in. One row per
// (event, student); duplicate scans conflict.
type EventAttendance struct {
	ID          string    `db:"id" json:"id"`
	EventID     string    `db:"event_id" json:"eventId"`
	StudentID   string    `db:"student_id" json:"studentId"`
	StudentName string    `db:"student_name" json:"studentName"`
	CheckedInAt time.Time `db:"checked_in_at" json:"checkedInAt"`
	ScannedBy   string    `db:"scanned_by" json:"scannedBy"`
}
