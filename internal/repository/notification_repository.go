package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campusconnect/campusconnect-api/internal/models"
)

const notificationColumns = `id, title, body, audience, target_id, status, created_by, created_at, published_at`

// NotificationRepository persists announcements.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a new notification in draft state.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO notifications (` + notificationColumns + `)
VALUES (:id, :title, :body, :audience, :target_id, :status, :created_by, :created_at, :published_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// GetByID fetches a notification by identifier.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	var notification models.Notification
	if err := r.db.GetContext(ctx, &notification, query, id); err != nil {
		return nil, err
	}
	return &notification, nil
}

// MarkPublished flips a draft to published exactly once. A notification
// already published (or missing) yields sql.ErrNoRows.
func (r *NotificationRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	const query = `UPDATE notifications SET status = $1, published_at = $2 WHERE id = $3 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, models.NotificationPublished, publishedAt, id, models.NotificationDraft)
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check publish rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns notifications matching the filter, newest first.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 2)
	builder.WriteString(`SELECT ` + notificationColumns + ` FROM notifications`)

	conditions := make([]string, 0, 2)
	if len(filter.Status) > 0 {
		values := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			values[i] = string(status)
		}
		args = append(args, pq.Array(values))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.Audience != "" {
		args = append(args, filter.Audience)
		conditions = append(conditions, fmt.Sprintf("audience = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// AudienceUserIDs resolves the recipient set for a notification.
func (r *NotificationRepository) AudienceUserIDs(ctx context.Context, notification *models.Notification) ([]string, error) {
	query := `SELECT id FROM users WHERE active = TRUE`
	args := make([]interface{}, 0, 1)

	switch notification.Audience {
	case models.AudienceAll:
	case models.AudienceStudents:
		args = append(args, models.RoleStudent)
		query += ` AND role = $1`
	case models.AudienceDepartment:
		if notification.TargetID == nil {
			return nil, fmt.Errorf("department audience requires a target")
		}
		args = append(args, *notification.TargetID)
		query += ` AND department_id = $1`
	case models.AudienceClub:
		if notification.TargetID == nil {
			return nil, fmt.Errorf("club audience requires a target")
		}
		args = append(args, *notification.TargetID)
		query += ` AND id IN (SELECT student_id FROM club_memberships WHERE club_id = $1)`
	default:
		return nil, fmt.Errorf("unknown audience %q", notification.Audience)
	}

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("resolve audience: %w", err)
	}
	return ids, nil
}
