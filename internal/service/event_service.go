package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusconnect/campusconnect-api/internal/dto"
	"github.com/campusconnect/campusconnect-api/internal/models"
	"github.com/campusconnect/campusconnect-api/internal/repository"
	appErrors "github.com/campusconnect/campusconnect-api/pkg/errors"
	"github.com/campusconnect/campusconnect-api/pkg/export"
)

type eventStore interface {
	Create(ctx context.Context, event *models.Event) error
	Update(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	GetByCheckInCode(ctx context.Context, code string) (*models.Event, error)
	List(ctx context.Context, upcomingOnly bool) ([]models.Event, error)
	RecordCheckIn(ctx context.Context, attendance *models.EventAttendance) error
	Attendance(ctx context.Context, eventID string) ([]models.EventAttendance, error)
}

type eventUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// EventService manages campus events and QR check-in.
type EventService struct {
	store  eventStore
	users  eventUserStore
	csv    *export.CSVExporter
	files  exportStorage
	signer exportSigner
	logger *zap.Logger
}

// NewEventService constructs the service.
func NewEventService(store eventStore, users eventUserStore, csv *export.CSVExporter, files exportStorage, signer exportSigner, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{store: store, users: users, csv: csv, files: files, signer: signer, logger: logger}
}

// Create registers a new event with a random check-in code for its QR.
func (s *EventService) Create(ctx context.Context, actorID string, req *dto.UpsertEventRequest) (*models.Event, error) {
	if !req.EndsAt.After(req.StartsAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event must end after it starts")
	}

	code, err := generateCheckInCode()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate check-in code")
	}

	event := &models.Event{
		Title:       req.Title,
		Description: req.Description,
		Venue:       req.Venue,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		CheckInCode: code,
		CreatedBy:   actorID,
		Active:      true,
	}
	if err := s.store.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	return event, nil
}

// Update modifies event details. The check-in code is stable across edits.
func (s *EventService) Update(ctx context.Context, id string, req *dto.UpsertEventRequest) (*models.Event, error) {
	event, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event must end after it starts")
	}

	event.Title = req.Title
	event.Description = req.Description
	event.Venue = req.Venue
	event.StartsAt = req.StartsAt
	event.EndsAt = req.EndsAt
	if err := s.store.Update(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}
	return event, nil
}

// Get loads an event by identifier.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return event, nil
}

// List returns events, optionally only ones that have not ended.
func (s *EventService) List(ctx context.Context, upcomingOnly bool) ([]models.Event, error) {
	events, err := s.store.List(ctx, upcomingOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return events, nil
}

// CheckIn records a scanned QR code for a student. Scans outside the event
// window or duplicate scans are rejected.
func (s *EventService) CheckIn(ctx context.Context, actorID string, req *dto.CheckInRequest) (*models.EventAttendance, error) {
	event, err := s.store.GetByCheckInCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown check-in code")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve check-in code")
	}

	now := time.Now().UTC()
	if now.Before(event.StartsAt) || now.After(event.EndsAt) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "event is not open for check-in")
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only students can check in")
	}

	attendance := &models.EventAttendance{
		EventID:     event.ID,
		StudentID:   student.ID,
		StudentName: student.FullName,
		CheckedInAt: now,
		ScannedBy:   actorID,
	}
	if err := s.store.RecordCheckIn(ctx, attendance); err != nil {
		if errors.Is(err, repository.ErrAlreadyCheckedIn) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student is already checked in")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record check-in")
	}

	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionEventCheckIn,
		Resource:   "event",
		ResourceID: &event.ID,
	}
	if err := s.users.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Sugar().Warnw("failed to write audit log", "action", models.AuditActionEventCheckIn, "error", err)
	}
	return attendance, nil
}

// Attendance lists check-ins for an event in scan order.
func (s *EventService) Attendance(ctx context.Context, eventID string) ([]models.EventAttendance, error) {
	attendance, err := s.store.Attendance(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return attendance, nil
}

// ExportAttendance writes an event's attendance to CSV and returns a signed
// download link.
func (s *EventService) ExportAttendance(ctx context.Context, eventID string) (string, time.Time, error) {
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return "", time.Time{}, err
	}
	attendance, err := s.Attendance(ctx, eventID)
	if err != nil {
		return "", time.Time{}, err
	}

	dataset := export.Dataset{Headers: []string{"Student", "Checked In", "Scanned By"}}
	for _, record := range attendance {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":    record.StudentName,
			"Checked In": record.CheckedInAt.Format(time.RFC3339),
			"Scanned By": record.ScannedBy,
		})
	}

	payload, err := s.csv.Render(dataset)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render attendance")
	}

	exportID := uuid.NewString()
	filename := fmt.Sprintf("events/%s-attendance-%s.csv", event.ID, exportID)
	if _, err := s.files.Save(filename, payload); err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attendance export")
	}

	token, expiresAt, err := s.signer.Generate(exportID, filename)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return token, expiresAt, nil
}

func generateCheckInCode() (string, error) {
	raw := make([]byte, 8)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
