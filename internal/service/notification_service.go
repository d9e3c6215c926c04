package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campusconnect/campusconnect-api/internal/dto"
	"github.com/campusconnect/campusconnect-api/internal/models"
	"github.com/campusconnect/campusconnect-api/internal/ws"
	appErrors "github.com/campusconnect/campusconnect-api/pkg/errors"
	"github.com/campusconnect/campusconnect-api/pkg/jobs"
)

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error)
	AudienceUserIDs(ctx context.Context, notification *models.Notification) ([]string, error)
}

type notificationAuditStore interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

type notificationPusher interface {
	BroadcastToUsers(userIDs []string, event ws.Event)
}

type dispatchQueue interface {
	Enqueue(job jobs.Job) error
}

// TextDrafter produces notification copy from a topic prompt. The default
// implementation is template based; a model-backed drafter can be swapped in
// without touching the service.
type TextDrafter interface {
	Draft(ctx context.Context, topic, tone string, audience models.NotificationAudience) (title, body string, err error)
}

// TemplateDrafter writes serviceable notification copy from fixed templates.
type TemplateDrafter struct{}

// Draft implements TextDrafter.
func (TemplateDrafter) Draft(_ context.Context, topic, tone string, audience models.NotificationAudience) (string, string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", "", fmt.Errorf("topic is required")
	}

	title := topic
	opening := "Please be advised:"
	closing := "For questions, reach out to the student affairs office."
	switch strings.ToLower(tone) {
	case "urgent":
		opening = "Attention, immediate action may be required:"
		closing = "Please respond promptly."
	case "friendly":
		opening = "Hi everyone! Quick update:"
		closing = "Thanks, and see you around campus!"
	}

	scope := "all campus members"
	switch audience {
	case models.AudienceStudents:
		scope = "all students"
	case models.AudienceDepartment:
		scope = "your department"
	case models.AudienceClub:
		scope = "your club"
	}

	body := fmt.Sprintf("%s %s. This notice applies to %s. %s", opening, topic, scope, closing)
	return title, body, nil
}

// NotificationService manages the announcement draft/publish lifecycle and
// fans published notifications out to connected recipients.
type NotificationService struct {
	store   notificationStore
	audits  notificationAuditStore
	pusher  notificationPusher
	queue   dispatchQueue
	drafter TextDrafter
	logger  *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(store notificationStore, audits notificationAuditStore, pusher notificationPusher, queue dispatchQueue, drafter TextDrafter, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if drafter == nil {
		drafter = TemplateDrafter{}
	}
	return &NotificationService{store: store, audits: audits, pusher: pusher, queue: queue, drafter: drafter, logger: logger}
}

// SetQueue attaches the dispatch queue. The queue's handler is this
// service's Dispatch method, so it cannot be passed at construction time.
func (s *NotificationService) SetQueue(queue dispatchQueue) {
	s.queue = queue
}

// DraftCopy asks the drafting collaborator for title and body text. Nothing
// is persisted; the caller reviews and edits before saving.
func (s *NotificationService) DraftCopy(ctx context.Context, req *dto.DraftNotificationRequest) (*dto.DraftNotificationResponse, error) {
	title, body, err := s.drafter.Draft(ctx, req.Topic, req.Tone, req.Audience)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	return &dto.DraftNotificationResponse{Title: title, Body: body}, nil
}

// Create stores a notification in draft state.
func (s *NotificationService) Create(ctx context.Context, actorID string, req *dto.CreateNotificationRequest) (*models.Notification, error) {
	if (req.Audience == models.AudienceDepartment || req.Audience == models.AudienceClub) && req.TargetID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "this audience requires a target")
	}

	notification := &models.Notification{
		Title:     req.Title,
		Body:      req.Body,
		Audience:  req.Audience,
		TargetID:  req.TargetID,
		Status:    models.NotificationDraft,
		CreatedBy: actorID,
	}
	if err := s.store.Create(ctx, notification); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}
	return notification, nil
}

// Publish flips a draft to published and enqueues the push fan-out. A
// notification publishes at most once.
func (s *NotificationService) Publish(ctx context.Context, actorID, notificationID string) (*models.Notification, error) {
	publishedAt := time.Now().UTC()
	if err := s.store.MarkPublished(ctx, notificationID, publishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "notification is missing or already published")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish notification")
	}

	notification, err := s.store.GetByID(ctx, notificationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload notification")
	}

	job := jobs.Job{
		ID:      notification.ID,
		Type:    "notification:dispatch",
		Payload: notification,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Sugar().Errorw("failed to enqueue notification dispatch", "notification_id", notification.ID, "error", err)
	}

	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionNotificationPublish,
		Resource:   "notification",
		ResourceID: &notification.ID,
	}
	if err := s.audits.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Sugar().Warnw("failed to write audit log", "action", models.AuditActionNotificationPublish, "error", err)
	}
	return notification, nil
}

// Dispatch resolves the audience and pushes the notification to every
// connected recipient. Used as the queue handler.
func (s *NotificationService) Dispatch(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(*models.Notification)
	if !ok {
		return fmt.Errorf("unexpected dispatch payload %T", job.Payload)
	}

	recipients, err := s.store.AudienceUserIDs(ctx, notification)
	if err != nil {
		return fmt.Errorf("resolve recipients for %s: %w", notification.ID, err)
	}

	s.pusher.BroadcastToUsers(recipients, ws.Event{Type: "notification:published", Data: notification})
	s.logger.Sugar().Infow("notification dispatched",
		"notification_id", notification.ID,
		"audience", notification.Audience,
		"recipients", len(recipients))
	return nil
}

// List returns notifications matching the filter, newest first.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	notifications, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// Get loads a notification by identifier.
func (s *NotificationService) Get(ctx context.Context, id string) (*models.Notification, error) {
	notification, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	return notification, nil
}
