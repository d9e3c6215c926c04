package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusconnect/campusconnect-api/internal/models"
)

const clubColumns = `id, name, description, department_id, active, created_at, updated_at`

// ClubRepository persists clubs, memberships, and point adjustments.
type ClubRepository struct {
	db *sqlx.DB
}

// NewClubRepository constructs the repository.
func NewClubRepository(db *sqlx.DB) *ClubRepository {
	return &ClubRepository{db: db}
}

// Create inserts a new club.
func (r *ClubRepository) Create(ctx context.Context, club *models.Club) error {
	if club.ID == "" {
		club.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	club.CreatedAt = now
	club.UpdatedAt = now

	const query = `INSERT INTO clubs (` + clubColumns + `)
VALUES (:id, :name, :description, :department_id, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, club); err != nil {
		return fmt.Errorf("create club: %w", err)
	}
	return nil
}

// Update writes club profile fields.
func (r *ClubRepository) Update(ctx context.Context, club *models.Club) error {
	club.UpdatedAt = time.Now().UTC()
	const query = `UPDATE clubs SET name = :name, description = :description,
department_id = :department_id, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, club); err != nil {
		return fmt.Errorf("update club: %w", err)
	}
	return nil
}

// GetByID fetches a club by identifier.
func (r *ClubRepository) GetByID(ctx context.Context, id string) (*models.Club, error) {
	query := `SELECT ` + clubColumns + ` FROM clubs WHERE id = $1`
	var club models.Club
	if err := r.db.GetContext(ctx, &club, query, id); err != nil {
		return nil, err
	}
	return &club, nil
}

// List returns all active clubs ordered by name.
func (r *ClubRepository) List(ctx context.Context) ([]models.Club, error) {
	query := `SELECT ` + clubColumns + ` FROM clubs WHERE active = TRUE ORDER BY name ASC`
	var clubs []models.Club
	if err := r.db.SelectContext(ctx, &clubs, query); err != nil {
		return nil, fmt.Errorf("list clubs: %w", err)
	}
	return clubs, nil
}

// AddMember enrolls a student; re-joining an existing membership is a no-op.
func (r *ClubRepository) AddMember(ctx context.Context, membership *models.ClubMembership) error {
	if membership.ID == "" {
		membership.ID = uuid.NewString()
	}
	if membership.JoinedAt.IsZero() {
		membership.JoinedAt = time.Now().UTC()
	}
	const query = `INSERT INTO club_memberships (id, club_id, student_id, points, joined_at)
VALUES (:id, :club_id, :student_id, :points, :joined_at)
ON CONFLICT (club_id, student_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, membership); err != nil {
		return fmt.Errorf("add club member: %w", err)
	}
	return nil
}

// Members lists a club's memberships ordered by points, highest first.
func (r *ClubRepository) Members(ctx context.Context, clubID string) ([]models.ClubMembership, error) {
	const query = `SELECT id, club_id, student_id, points, joined_at
FROM club_memberships WHERE club_id = $1 ORDER BY points DESC, joined_at ASC`
	var members []models.ClubMembership
	if err := r.db.SelectContext(ctx, &members, query, clubID); err != nil {
		return nil, fmt.Errorf("list club members: %w", err)
	}
	return members, nil
}

// GetMembership loads a single membership row.
func (r *ClubRepository) GetMembership(ctx context.Context, clubID, studentID string) (*models.ClubMembership, error) {
	const query = `SELECT id, club_id, student_id, points, joined_at
FROM club_memberships WHERE club_id = $1 AND student_id = $2`
	var membership models.ClubMembership
	if err := r.db.GetContext(ctx, &membership, query, clubID, studentID); err != nil {
		return nil, err
	}
	return &membership, nil
}

// AdjustPoints applies a signed delta to a membership and records the
// adjustment in the same transaction. The returned value is the new balance.
func (r *ClubRepository) AdjustPoints(ctx context.Context, adjustment *models.PointAdjustment) (int, error) {
	if adjustment.ID == "" {
		adjustment.ID = uuid.NewString()
	}
	if adjustment.CreatedAt.IsZero() {
		adjustment.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin points adjustment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var balance int
	const update = `UPDATE club_memberships SET points = points + $1
WHERE club_id = $2 AND student_id = $3 RETURNING points`
	if err := tx.GetContext(ctx, &balance, update, adjustment.Delta, adjustment.ClubID, adjustment.StudentID); err != nil {
		return 0, err
	}

	const insert = `INSERT INTO point_adjustments (id, club_id, student_id, delta, reason, adjusted_by, created_at)
VALUES (:id, :club_id, :student_id, :delta, :reason, :adjusted_by, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, adjustment); err != nil {
		return 0, fmt.Errorf("record points adjustment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit points adjustment: %w", err)
	}
	return balance, nil
}

// PointHistory lists adjustments for a member, newest first.
func (r *ClubRepository) PointHistory(ctx context.Context, clubID, studentID string) ([]models.PointAdjustment, error) {
	const query = `SELECT id, club_id, student_id, delta, reason, adjusted_by, created_at
FROM point_adjustments WHERE club_id = $1 AND student_id = $2 ORDER BY created_at DESC`
	var history []models.PointAdjustment
	if err := r.db.SelectContext(ctx, &history, query, clubID, studentID); err != nil {
		return nil, fmt.Errorf("list point adjustments: %w", err)
	}
	return history, nil
}
