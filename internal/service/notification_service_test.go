package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusconnect/campusconnect-api/internal/dto"
	"github.com/campusconnect/campusconnect-api/internal/models"
	"github.com/campusconnect/campusconnect-api/pkg/jobs"
)

type mockNotificationStore struct {
	notifications map[string]*models.Notification
	recipients    []string
}

func (m *mockNotificationStore) Create(ctx context.Context, notification *models.Notification) error {
	if m.notifications == nil {
		m.notifications = make(map[string]*models.Notification)
	}
	notification.ID = fmt.Sprintf("notif-%d", len(m.notifications)+1)
	notification.CreatedAt = time.Now().UTC()
	copied := *notification
	m.notifications[notification.ID] = &copied
	return nil
}

func (m *mockNotificationStore) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	if notification, ok := m.notifications[id]; ok {
		copied := *notification
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockNotificationStore) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	notification, ok := m.notifications[id]
	if !ok || notification.Status != models.NotificationDraft {
		return sql.ErrNoRows
	}
	notification.Status = models.NotificationPublished
	notification.PublishedAt = &publishedAt
	return nil
}

func (m *mockNotificationStore) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	var result []models.Notification
	for _, notification := range m.notifications {
		result = append(result, *notification)
	}
	return result, nil
}

func (m *mockNotificationStore) AudienceUserIDs(ctx context.Context, notification *models.Notification) ([]string, error) {
	return m.recipients, nil
}

type mockDispatchQueue struct {
	enqueued []jobs.Job
}

func (m *mockDispatchQueue) Enqueue(job jobs.Job) error {
	m.enqueued = append(m.enqueued, job)
	return nil
}

func newNotificationFixture(t *testing.T) (*NotificationService, *mockNotificationStore, *mockDispatchQueue, *mockPusher) {
	t.Helper()
	store := &mockNotificationStore{recipients: []string{"u1", "u2"}}
	queue := &mockDispatchQueue{}
	pusher := &mockPusher{}
	audits := &mockClearanceUserStore{users: map[string]*models.User{}}
	svc := NewNotificationService(store, audits, pusher, queue, TemplateDrafter{}, zap.NewNop())
	return svc, store, queue, pusher
}

func TestTemplateDrafterTonesAndAudience(t *testing.T) {
	drafter := TemplateDrafter{}

	title, body, err := drafter.Draft(context.Background(), "Enrollment deadline", "urgent", models.AudienceStudents)
	require.NoError(t, err)
	assert.Equal(t, "Enrollment deadline", title)
	assert.Contains(t, body, "immediate action")
	assert.Contains(t, body, "all students")

	_, friendly, err := drafter.Draft(context.Background(), "Intramurals week", "friendly", models.AudienceAll)
	require.NoError(t, err)
	assert.Contains(t, friendly, "Hi everyone!")

	_, _, err = drafter.Draft(context.Background(), "   ", "", models.AudienceAll)
	assert.Error(t, err)
}

func TestCreateRequiresTargetForScopedAudiences(t *testing.T) {
	svc, _, _, _ := newNotificationFixture(t)

	_, err := svc.Create(context.Background(), "admin", &dto.CreateNotificationRequest{
		Title: "Dept meeting", Body: "...", Audience: models.AudienceDepartment,
	})
	assert.Error(t, err)

	target := "dept-1"
	notification, err := svc.Create(context.Background(), "admin", &dto.CreateNotificationRequest{
		Title: "Dept meeting", Body: "...", Audience: models.AudienceDepartment, TargetID: &target,
	})
	require.NoError(t, err)
	assert.Equal(t, models.NotificationDraft, notification.Status)
}

func TestPublishIsOneShot(t *testing.T) {
	svc, _, queue, _ := newNotificationFixture(t)
	notification, err := svc.Create(context.Background(), "admin", &dto.CreateNotificationRequest{
		Title: "Campus closed", Body: "Typhoon signal raised.", Audience: models.AudienceAll,
	})
	require.NoError(t, err)

	published, err := svc.Publish(context.Background(), "admin", notification.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationPublished, published.Status)
	require.NotNil(t, published.PublishedAt)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, "notification:dispatch", queue.enqueued[0].Type)

	_, err = svc.Publish(context.Background(), "admin", notification.ID)
	assert.Error(t, err)
	assert.Len(t, queue.enqueued, 1)
}

func TestDispatchBroadcastsToAudience(t *testing.T) {
	svc, _, _, pusher := newNotificationFixture(t)
	notification := &models.Notification{ID: "notif-1", Title: "Hello", Audience: models.AudienceAll, Status: models.NotificationPublished}

	err := svc.Dispatch(context.Background(), jobs.Job{ID: "notif-1", Type: "notification:dispatch", Payload: notification})
	require.NoError(t, err)
	require.Len(t, pusher.events, 1)
	assert.Equal(t, "notification:published", pusher.events[0].Type)
	assert.Equal(t, []string{"u1", "u2"}, pusher.users[0])
}

func TestDispatchRejectsUnexpectedPayload(t *testing.T) {
	svc, _, _, _ := newNotificationFixture(t)

	err := svc.Dispatch(context.Background(), jobs.Job{ID: "x", Type: "notification:dispatch", Payload: "bogus"})
	assert.Error(t, err)
}
