package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campusconnect/campusconnect-api/internal/models"
)

// ErrAlreadyCheckedIn signals a duplicate scan for the same student.
var ErrAlreadyCheckedIn = errors.New("student already checked in to this event")

const eventColumns = `id, title, description, venue, starts_at, ends_at, check_in_code, created_by, active, created_at, updated_at`

// EventRepository persists events and attendance records.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	const query = `INSERT INTO events (` + eventColumns + `)
VALUES (:id, :title, :description, :venue, :starts_at, :ends_at, :check_in_code, :created_by, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// Update writes event detail fields.
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE events SET title = :title, description = :description, venue = :venue,
starts_at = :starts_at, ends_at = :ends_at, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

// GetByID fetches an event by identifier.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// GetByCheckInCode resolves a scanned QR code to its active event.
func (r *EventRepository) GetByCheckInCode(ctx context.Context, code string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE check_in_code = $1 AND active = TRUE`
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, code); err != nil {
		return nil, err
	}
	return &event, nil
}

// List returns events ordered by start time, soonest first.
func (r *EventRepository) List(ctx context.Context, upcomingOnly bool) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE active = TRUE`
	args := make([]interface{}, 0, 1)
	if upcomingOnly {
		args = append(args, time.Now().UTC())
		query += ` AND ends_at >= $1`
	}
	query += ` ORDER BY starts_at ASC`

	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// RecordCheckIn inserts an attendance row. The unique (event, student)
// constraint turns duplicate scans into ErrAlreadyCheckedIn.
func (r *EventRepository) RecordCheckIn(ctx context.Context, attendance *models.EventAttendance) error {
	if attendance.ID == "" {
		attendance.ID = uuid.NewString()
	}
	if attendance.CheckedInAt.IsZero() {
		attendance.CheckedInAt = time.Now().UTC()
	}

	const query = `INSERT INTO event_attendance (id, event_id, student_id, student_name, checked_in_at, scanned_by)
VALUES (:id, :event_id, :student_id, :student_name, :checked_in_at, :scanned_by)`
	if _, err := r.db.NamedExecContext(ctx, query, attendance); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrAlreadyCheckedIn
		}
		return fmt.Errorf("record check-in: %w", err)
	}
	return nil
}

// Attendance lists check-ins for an event in scan order.
func (r *EventRepository) Attendance(ctx context.Context, eventID string) ([]models.EventAttendance, error) {
	const query = `SELECT id, event_id, student_id, student_name, checked_in_at, scanned_by
FROM event_attendance WHERE event_id = $1 ORDER BY checked_in_at ASC`
	var attendance []models.EventAttendance
	if err := r.db.SelectContext(ctx, &attendance, query, eventID); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return attendance, nil
}
