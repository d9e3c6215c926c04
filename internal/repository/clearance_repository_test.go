package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusconnect/campusconnect-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var clearanceColumnNames = []string{
	"id", "student_id", "student_name", "department_id", "department_name", "club_id", "club_name", "requested_at",
	"club_approval_status", "club_approver_id", "club_approval_date", "club_approval_notes",
	"department_approval_status", "department_approver_id", "department_approval_date", "department_approval_notes",
	"ssg_status", "ssg_approver_id", "ssg_approval_date", "ssg_approval_notes",
	"overall_status", "unified_clearance_id",
}

func clearanceRow(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(clearanceColumnNames).AddRow(
		"req-1", "stu-1", "Maria Santos", "dept-1", "College of Engineering", nil, nil, now,
		"not_applicable", nil, nil, nil,
		"pending", nil, nil, nil,
		"pending", nil, nil, nil,
		"Pending", nil,
	)
}

func TestCreateIfNoneActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClearanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM clearance_requests WHERE student_id").
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO clearance_requests").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	request := &models.ClearanceRequest{
		StudentID:                "stu-1",
		StudentName:              "Maria Santos",
		DepartmentID:             "dept-1",
		DepartmentName:           "College of Engineering",
		ClubApprovalStatus:       models.StageNotApplicable,
		DepartmentApprovalStatus: models.StagePending,
		SSGStatus:                models.StagePending,
		OverallStatus:            models.OverallPending,
	}
	err := repo.CreateIfNoneActive(context.Background(), request)
	require.NoError(t, err)
	assert.NotEmpty(t, request.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIfNoneActiveGuardsPendingRequest(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClearanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM clearance_requests WHERE student_id").
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("existing"))
	mock.ExpectRollback()

	err := repo.CreateIfNoneActive(context.Background(), &models.ClearanceRequest{StudentID: "stu-1"})
	assert.ErrorIs(t, err, ErrActiveRequestExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecideStageLocksAndWritesBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClearanceRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM clearance_requests WHERE id = \\$1 FOR UPDATE").
		WithArgs("req-1").
		WillReturnRows(clearanceRow(now))
	mock.ExpectExec("UPDATE clearance_requests SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := repo.DecideStage(context.Background(), "req-1", func(request *models.ClearanceRequest) error {
		request.DepartmentApprovalStatus = models.StageApproved
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.StageApproved, updated.DepartmentApprovalStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecideStageMutatorErrorRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClearanceRepository(db)

	mutatorErr := errors.New("stage has already been decided")
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM clearance_requests WHERE id = \\$1 FOR UPDATE").
		WithArgs("req-1").
		WillReturnRows(clearanceRow(time.Now()))
	mock.ExpectRollback()

	_, err := repo.DecideStage(context.Background(), "req-1", func(*models.ClearanceRequest) error {
		return mutatorErr
	})
	assert.ErrorIs(t, err, mutatorErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListFiltersByOverallStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClearanceRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM clearance_requests WHERE student_id = \\$1 AND overall_status = ANY\\(\\$2\\) ORDER BY requested_at DESC LIMIT 50 OFFSET 0").
		WithArgs("stu-1", pq.Array([]string{"Pending"})).
		WillReturnRows(clearanceRow(time.Now()))

	requests, err := repo.List(context.Background(), models.ClearanceFilter{
		StudentID: "stu-1",
		Overall:   []models.OverallStatus{models.OverallPending},
	})
	require.NoError(t, err)
	assert.Len(t, requests, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryCountsByOverallStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClearanceRepository(db)

	rows := sqlmock.NewRows([]string{"pending", "approved", "rejected", "total"}).AddRow(3, 2, 1, 6)
	mock.ExpectQuery("SELECT (.+) FROM clearance_requests").WillReturnRows(rows)

	summary, err := repo.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Pending)
	assert.Equal(t, 6, summary.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsSerializationFailure(t *testing.T) {
	assert.True(t, IsSerializationFailure(&pq.Error{Code: "40001"}))
	assert.True(t, IsSerializationFailure(&pq.Error{Code: "40P01"}))
	assert.False(t, IsSerializationFailure(&pq.Error{Code: "23505"}))
	assert.False(t, IsSerializationFailure(errors.New("plain")))
}
