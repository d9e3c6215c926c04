package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campusconnect/campusconnect-api/internal/models"
)

// ErrActiveRequestExists signals the single-active-request guard fired.
var ErrActiveRequestExists = errors.New("student already has a pending clearance request")

const clearanceColumns = `id, student_id, student_name, department_id, department_name, club_id, club_name, requested_at,
club_approval_status, club_approver_id, club_approval_date, club_approval_notes,
department_approval_status, department_approver_id, department_approval_date, department_approval_notes,
ssg_status, ssg_approver_id, ssg_approval_date, ssg_approval_notes,
overall_status, unified_clearance_id`

// ClearanceRepository persists clearance workflow data.
type ClearanceRepository struct {
	db *sqlx.DB
}

// NewClearanceRepository constructs the repository.
func NewClearanceRepository(db *sqlx.DB) *ClearanceRepository {
	return &ClearanceRepository{db: db}
}

// CreateIfNoneActive inserts a new request unless the student already has a
// pending one. The existence check and insert share one transaction; pending
// rows are locked so concurrent initiations serialize.
func (r *ClearanceRepository) CreateIfNoneActive(ctx context.Context, request *models.ClearanceRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clearance create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var existing []string
	const guard = `SELECT id FROM clearance_requests WHERE student_id = $1 AND overall_status = 'Pending' FOR UPDATE`
	if err := tx.SelectContext(ctx, &existing, guard, request.StudentID); err != nil {
		return fmt.Errorf("check active clearance request: %w", err)
	}
	if len(existing) > 0 {
		return ErrActiveRequestExists
	}

	const query = `INSERT INTO clearance_requests (` + clearanceColumns + `)
VALUES (:id, :student_id, :student_name, :department_id, :department_name, :club_id, :club_name, :requested_at,
:club_approval_status, :club_approver_id, :club_approval_date, :club_approval_notes,
:department_approval_status, :department_approver_id, :department_approval_date, :department_approval_notes,
:ssg_status, :ssg_approver_id, :ssg_approval_date, :ssg_approval_notes,
:overall_status, :unified_clearance_id)`
	if _, err := tx.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create clearance request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clearance create: %w", err)
	}
	return nil
}

// GetByID fetches a clearance request by identifier.
func (r *ClearanceRepository) GetByID(ctx context.Context, id string) (*models.ClearanceRequest, error) {
	query := `SELECT ` + clearanceColumns + ` FROM clearance_requests WHERE id = $1`
	var request models.ClearanceRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// DecideStage runs a transactional read-modify-write: the row is locked,
// the mutator applies the stage decision plus derived-state recomputation,
// and the full stage/derived column set is written back atomically.
func (r *ClearanceRepository) DecideStage(ctx context.Context, id string, mutate func(*models.ClearanceRequest) error) (*models.ClearanceRequest, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin stage decision: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `SELECT ` + clearanceColumns + ` FROM clearance_requests WHERE id = $1 FOR UPDATE`
	var request models.ClearanceRequest
	if err := tx.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}

	if err := mutate(&request); err != nil {
		return nil, err
	}

	const update = `UPDATE clearance_requests SET
club_approval_status = :club_approval_status, club_approver_id = :club_approver_id,
club_approval_date = :club_approval_date, club_approval_notes = :club_approval_notes,
department_approval_status = :department_approval_status, department_approver_id = :department_approver_id,
department_approval_date = :department_approval_date, department_approval_notes = :department_approval_notes,
ssg_status = :ssg_status, ssg_approver_id = :ssg_approver_id,
ssg_approval_date = :ssg_approval_date, ssg_approval_notes = :ssg_approval_notes,
overall_status = :overall_status, unified_clearance_id = :unified_clearance_id
WHERE id = :id`
	result, err := tx.NamedExecContext(ctx, update, &request)
	if err != nil {
		return nil, fmt.Errorf("update clearance request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check clearance update rows: %w", err)
	}
	if rows == 0 {
		return nil, sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit stage decision: %w", err)
	}
	return &request, nil
}

// List returns clearance requests matching the filter (latest first).
func (r *ClearanceRepository) List(ctx context.Context, filter models.ClearanceFilter) ([]models.ClearanceRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT ` + clearanceColumns + ` FROM clearance_requests`)

	conditions := make([]string, 0, 4)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if filter.ClubID != "" {
		args = append(args, filter.ClubID)
		conditions = append(conditions, fmt.Sprintf("club_id = $%d", len(args)))
	}
	if len(filter.Overall) > 0 {
		values := make([]string, len(filter.Overall))
		for i, status := range filter.Overall {
			values[i] = string(status)
		}
		args = append(args, pq.Array(values))
		conditions = append(conditions, fmt.Sprintf("overall_status = ANY($%d)", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY requested_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.ClearanceRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list clearance requests: %w", err)
	}
	return requests, nil
}

// Summary aggregates request counts by overall status.
func (r *ClearanceRepository) Summary(ctx context.Context) (*models.ClearanceSummary, error) {
	const query = `SELECT
COUNT(*) FILTER (WHERE overall_status = 'Pending') AS pending,
COUNT(*) FILTER (WHERE overall_status = 'Approved') AS approved,
COUNT(*) FILTER (WHERE overall_status = 'Rejected') AS rejected,
COUNT(*) AS total
FROM clearance_requests`
	var row struct {
		Pending  int `db:"pending"`
		Approved int `db:"approved"`
		Rejected int `db:"rejected"`
		Total    int `db:"total"`
	}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return nil, fmt.Errorf("clearance summary: %w", err)
	}
	return &models.ClearanceSummary{
		Pending:     row.Pending,
		Approved:    row.Approved,
		Rejected:    row.Rejected,
		Total:       row.Total,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// IsSerializationFailure reports whether the error is a retryable
// serialization or deadlock failure (SQLSTATE 40001 / 40P01).
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
