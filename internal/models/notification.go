package models

import "time"

// NotificationAudience scopes who receives a notification.
type NotificationAudience string

const (
	AudienceAll        NotificationAudience = "ALL"
	AudienceStudents   NotificationAudience = "STUDENTS"
	AudienceDepartment NotificationAudience = "DEPARTMENT"
	AudienceClub       NotificationAudience = "CLUB"
)

// NotificationStatus tracks the draft/publish lifecycle.
type NotificationStatus string

const (
	NotificationDraft     NotificationStatus = "DRAFT"
	NotificationPublished NotificationStatus = "PUBLISHED"
)

// Notification is an announcement pushed to an audience on publish.
type Notification struct {
	ID          string               `db:"id" json:"id"`
	Title       string               `db:"title" json:"title"`
	Body        string               `db:"body" json:"body"`
	Audience    NotificationAudience `db:"audience" json:"audience"`
	TargetID    *string              `db:"target_id" json:"targetId,omitempty"`
	Status      NotificationStatus   `db:"status" json:"status"`
	CreatedBy   string               `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time            `db:"created_at" json:"createdAt"`
	PublishedAt *time.Time           `db:"published_at" json:"publishedAt,omitempty"`
}

// NotificationFilter constrains notification listings.
type NotificationFilter struct {
	Status   []NotificationStatus
	Audience NotificationAudience
	Limit    int
	Offset   int
}
