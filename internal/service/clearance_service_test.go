package service

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusconnect/campusconnect-api/internal/models"
	"github.com/campusconnect/campusconnect-api/internal/repository"
	"github.com/campusconnect/campusconnect-api/internal/ws"
	"github.com/campusconnect/campusconnect-api/pkg/config"
	appErrors "github.com/campusconnect/campusconnect-api/pkg/errors"
)

type mockClearanceStore struct {
	requests map[string]*models.ClearanceRequest
}

func (m *mockClearanceStore) CreateIfNoneActive(ctx context.Context, request *models.ClearanceRequest) error {
	for _, existing := range m.requests {
		if existing.StudentID == request.StudentID && existing.OverallStatus == models.OverallPending {
			return repository.ErrActiveRequestExists
		}
	}
	if m.requests == nil {
		m.requests = make(map[string]*models.ClearanceRequest)
	}
	if request.ID == "" {
		request.ID = fmt.Sprintf("req%d-1111-0000-0000-000000000000", len(m.requests)+1)
	}
	copied := *request
	m.requests[request.ID] = &copied
	return nil
}

func (m *mockClearanceStore) GetByID(ctx context.Context, id string) (*models.ClearanceRequest, error) {
	if request, ok := m.requests[id]; ok {
		copied := *request
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClearanceStore) DecideStage(ctx context.Context, id string, mutate func(*models.ClearanceRequest) error) (*models.ClearanceRequest, error) {
	request, ok := m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *request
	if err := mutate(&copied); err != nil {
		return nil, err
	}
	m.requests[id] = &copied
	result := copied
	return &result, nil
}

func (m *mockClearanceStore) List(ctx context.Context, filter models.ClearanceFilter) ([]models.ClearanceRequest, error) {
	var result []models.ClearanceRequest
	for _, request := range m.requests {
		if filter.StudentID != "" && request.StudentID != filter.StudentID {
			continue
		}
		if filter.DepartmentID != "" && request.DepartmentID != filter.DepartmentID {
			continue
		}
		if filter.ClubID != "" && (request.ClubID == nil || *request.ClubID != filter.ClubID) {
			continue
		}
		result = append(result, *request)
	}
	return result, nil
}

func (m *mockClearanceStore) Summary(ctx context.Context) (*models.ClearanceSummary, error) {
	summary := &models.ClearanceSummary{GeneratedAt: time.Now().UTC()}
	for _, request := range m.requests {
		summary.Total++
		switch request.OverallStatus {
		case models.OverallPending:
			summary.Pending++
		case models.OverallApproved:
			summary.Approved++
		case models.OverallRejected:
			summary.Rejected++
		}
	}
	return summary, nil
}

type mockClearanceUserStore struct {
	users  map[string]*models.User
	audits []models.AuditLog
}

func (m *mockClearanceUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClearanceUserStore) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	m.audits = append(m.audits, *entry)
	return nil
}

type mockOrgStore struct{}

func (mockOrgStore) GetDepartmentName(ctx context.Context, id string) (string, error) {
	return "College of Engineering", nil
}

func (mockOrgStore) GetClubName(ctx context.Context, id string) (string, error) {
	return "Robotics Club", nil
}

type mockCache struct {
	entries map[string][]byte
	deletes []string
}

func (m *mockCache) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (m *mockCache) Delete(ctx context.Context, keys ...string) error {
	m.deletes = append(m.deletes, keys...)
	return nil
}

type mockPusher struct {
	events []ws.Event
	users  [][]string
}

func (m *mockPusher) BroadcastToUsers(userIDs []string, event ws.Event) {
	m.users = append(m.users, userIDs)
	m.events = append(m.events, event)
}

func newClearanceFixture(t *testing.T) (*ClearanceService, *mockClearanceStore, *mockClearanceUserStore, *mockPusher) {
	t.Helper()
	deptID := "dept-1"
	clubID := "club-1"
	store := &mockClearanceStore{requests: make(map[string]*models.ClearanceRequest)}
	users := &mockClearanceUserStore{users: map[string]*models.User{
		"stu-1": {ID: "stu-1", FullName: "Maria Santos", Role: models.RoleStudent, DepartmentID: &deptID, ClubID: &clubID, Active: true},
		"stu-2": {ID: "stu-2", FullName: "Jose Cruz", Role: models.RoleStudent, DepartmentID: &deptID, Active: true},
		"ca-1":  {ID: "ca-1", FullName: "Club Admin", Role: models.RoleClubAdmin, ClubID: &clubID, Active: true},
		"da-1":  {ID: "da-1", FullName: "Dept Admin", Role: models.RoleDepartmentAdmin, DepartmentID: &deptID, Active: true},
		"ssg-1": {ID: "ssg-1", FullName: "SSG Officer", Role: models.RoleSSGAdmin, Active: true},
	}}
	pusher := &mockPusher{}
	svc := NewClearanceService(store, users, mockOrgStore{}, &mockCache{}, pusher,
		nil, nil, nil, nil, config.ClearanceConfig{DecisionMaxRetries: 3, DecisionRetryDelay: time.Millisecond}, zap.NewNop())
	return svc, store, users, pusher
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent, FullName: "Maria Santos"}
}

func adminClaims(id string, role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: role}
}

func TestInitiateSnapshotsNamesAndStages(t *testing.T) {
	svc, _, _, _ := newClearanceFixture(t)

	request, err := svc.Initiate(context.Background(), studentClaims("stu-1"))
	require.NoError(t, err)
	assert.Equal(t, "Maria Santos", request.StudentName)
	assert.Equal(t, "College of Engineering", request.DepartmentName)
	require.NotNil(t, request.ClubName)
	assert.Equal(t, "Robotics Club", *request.ClubName)
	assert.Equal(t, models.StagePending, request.ClubApprovalStatus)
	assert.Equal(t, models.StagePending, request.DepartmentApprovalStatus)
	assert.Equal(t, models.StagePending, request.SSGStatus)
	assert.Equal(t, models.OverallPending, request.OverallStatus)
	assert.Nil(t, request.UnifiedClearanceID)
}

func TestInitiateWithoutClubSkipsClubStage(t *testing.T) {
	svc, _, _, _ := newClearanceFixture(t)

	request, err := svc.Initiate(context.Background(), studentClaims("stu-2"))
	require.NoError(t, err)
	assert.Equal(t, models.StageNotApplicable, request.ClubApprovalStatus)
	assert.Nil(t, request.ClubID)
}

func TestInitiateRejectsSecondActiveRequest(t *testing.T) {
	svc, _, _, _ := newClearanceFixture(t)

	_, err := svc.Initiate(context.Background(), studentClaims("stu-1"))
	require.NoError(t, err)

	_, err = svc.Initiate(context.Background(), studentClaims("stu-1"))
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Status, appErr.Status)
}

func TestInitiateRejectsNonStudents(t *testing.T) {
	svc, _, _, _ := newClearanceFixture(t)

	_, err := svc.Initiate(context.Background(), adminClaims("ssg-1", models.RoleSSGAdmin))
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErr.Status)
}

func TestDecideStageScopesApproverRoles(t *testing.T) {
	svc, _, _, _ := newClearanceFixture(t)
	request, err := svc.Initiate(context.Background(), studentClaims("stu-1"))
	require.NoError(t, err)

	// A club admin cannot decide the department stage.
	_, err = svc.DecideStage(context.Background(), adminClaims("ca-1", models.RoleClubAdmin), request.ID,
		Decision{Stage: models.StageDepartment, Status: models.StageApproved})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErr.Status)

	// Students cannot decide any stage.
	_, err = svc.DecideStage(context.Background(), studentClaims("stu-1"), request.ID,
		Decision{Stage: models.StageClub, Status: models.StageApproved})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErr.Status)
}

func TestFullApprovalMintsUnifiedID(t *testing.T) {
	svc, _, _, pusher := newClearanceFixture(t)
	request, err := svc.Initiate(context.Background(), studentClaims("stu-1"))
	require.NoError(t, err)

	_, err = svc.DecideStage(context.Background(), adminClaims("ca-1", models.RoleClubAdmin), request.ID,
		Decision{Stage: models.StageClub, Status: models.StageApproved})
	require.NoError(t, err)

	_, err = svc.DecideStage(context.Background(), adminClaims("da-1", models.RoleDepartmentAdmin), request.ID,
		Decision{Stage: models.StageDepartment, Status: models.StageApproved})
	require.NoError(t, err)

	updated, err := svc.DecideStage(context.Background(), adminClaims("ssg-1", models.RoleSSGAdmin), request.ID,
		Decision{Stage: models.StageSSG, Status: models.StageApproved})
	require.NoError(t, err)

	assert.Equal(t, models.OverallApproved, updated.OverallStatus)
	require.NotNil(t, updated.UnifiedClearanceID)
	assert.Regexp(t, regexp.MustCompile(`^UC-\d{4}-[A-Z0-9]{4}$`), *updated.UnifiedClearanceID)

	// Every decision pushed a clearance:updated event at the student.
	require.Len(t, pusher.events, 3)
	for i, event := range pusher.events {
		assert.Equal(t, "clearance:updated", event.Type)
		assert.Equal(t, []string{"stu-1"}, pusher.users[i])
	}
}

func TestOICDecidesSSGStage(t *testing.T) {
	svc, _, _, _ := newClearanceFixture(t)
	request, err := svc.Initiate(context.Background(), studentClaims("stu-2"))
	require.NoError(t, err)

	_, err = svc.DecideStage(context.Background(), adminClaims("da-1", models.RoleDepartmentAdmin), request.ID,
		Decision{Stage: models.StageDepartment, Status: models.StageApproved})
	require.NoError(t, err)

	updated, err := svc.DecideStage(context.Background(), adminClaims("oic-1", models.RoleOIC), request.ID,
		Decision{Stage: models.StageSSG, Status: models.StageApproved})
	require.NoError(t, err)
	assert.Equal(t, models.OverallApproved, updated.OverallStatus)
}

func TestRejectionCascadesToPendingSSGStage(t *testing.T) {
	svc, _, _, _ := newClearanceFixture(t)
	request, err := svc.Initiate(context.Background(), studentClaims("stu-1"))
	require.NoError(t, err)

	updated, err := svc.DecideStage(context.Background(), adminClaims("da-1", models.RoleDepartmentAdmin), request.ID,
		Decision{Stage: models.StageDepartment, Status: models.StageRejected})
	require.NoError(t, err)

	assert.Equal(t, models.OverallRejected, updated.OverallStatus)
	assert.Equal(t, models.StageRejected, updated.SSGStatus)
	require.NotNil(t, updated.SSGApprovalNotes)
	assert.Equal(t, "Auto-rejected due to department rejection", *updated.SSGApprovalNotes)
	assert.Nil(t, updated.UnifiedClearanceID)
	// The untouched club stage keeps its state.
	assert.Equal(t, models.StagePending, updated.ClubApprovalStatus)
}

func TestRejectionNotesCarryToCascadedStage(t *testing.T) {
	svc, _, _, _ := newClearanceFixture(t)
	request, err := svc.Initiate(context.Background(), studentClaims("stu-1"))
	require.NoError(t, err)

	updated, err := svc.DecideStage(context.Background(), adminClaims("da-1", models.RoleDepartmentAdmin), request.ID,
		Decision{Stage: models.StageDepartment, Status: models.StageRejected, Notes: "unreturned equipment"})
	require.NoError(t, err)

	require.NotNil(t, updated.DepartmentApprovalNotes)
	assert.Equal(t, "unreturned equipment", *updated.DepartmentApprovalNotes)
	// Supplied notes replace the auto-rejection text on the closed SSG stage.
	require.NotNil(t, updated.SSGApprovalNotes)
	assert.Equal(t, "unreturned equipment", *updated.SSGApprovalNotes)
}

func TestDecidedStageCannotBeDecidedAgain(t *testing.T) {
	svc, _, _, _ := newClearanceFixture(t)
	request, err := svc.Initiate(context.Background(), studentClaims("stu-1"))
	require.NoError(t, err)

	_, err = svc.DecideStage(context.Background(), adminClaims("ca-1", models.RoleClubAdmin), request.ID,
		Decision{Stage: models.StageClub, Status: models.StageApproved})
	require.NoError(t, err)

	_, err = svc.DecideStage(context.Background(), adminClaims("ca-1", models.RoleClubAdmin), request.ID,
		Decision{Stage: models.StageClub, Status: models.StageRejected})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Status, appErr.Status)
}

func TestNotApplicableStageRejectsDecisions(t *testing.T) {
	svc, _, _, _ := newClearanceFixture(t)
	request, err := svc.Initiate(context.Background(), studentClaims("stu-2"))
	require.NoError(t, err)

	_, err = svc.DecideStage(context.Background(), adminClaims("ca-1", models.RoleClubAdmin), request.ID,
		Decision{Stage: models.StageClub, Status: models.StageApproved})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Status, appErr.Status)
}

func TestTerminalRequestRejectsFurtherDecisions(t *testing.T) {
	svc, _, _, _ := newClearanceFixture(t)
	request, err := svc.Initiate(context.Background(), studentClaims("stu-1"))
	require.NoError(t, err)

	_, err = svc.DecideStage(context.Background(), adminClaims("ssg-1", models.RoleSSGAdmin), request.ID,
		Decision{Stage: models.StageSSG, Status: models.StageRejected})
	require.NoError(t, err)

	_, err = svc.DecideStage(context.Background(), adminClaims("ca-1", models.RoleClubAdmin), request.ID,
		Decision{Stage: models.StageClub, Status: models.StageApproved})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Status, appErr.Status)
}

func TestUnifiedIDMintedOnce(t *testing.T) {
	svc, store, _, _ := newClearanceFixture(t)
	request, err := svc.Initiate(context.Background(), studentClaims("stu-2"))
	require.NoError(t, err)

	// Simulate a pre-assigned identifier surviving the final approval.
	existing := "UC-2024-ABCD"
	store.requests[request.ID].UnifiedClearanceID = &existing
	store.requests[request.ID].DepartmentApprovalStatus = models.StageApproved

	updated, err := svc.DecideStage(context.Background(), adminClaims("ssg-1", models.RoleSSGAdmin), request.ID,
		Decision{Stage: models.StageSSG, Status: models.StageApproved})
	require.NoError(t, err)
	assert.Equal(t, models.OverallApproved, updated.OverallStatus)
	require.NotNil(t, updated.UnifiedClearanceID)
	assert.Equal(t, "UC-2024-ABCD", *updated.UnifiedClearanceID)
}

func TestDecideStageRejectsInvalidStatus(t *testing.T) {
	svc, _, _, _ := newClearanceFixture(t)
	request, err := svc.Initiate(context.Background(), studentClaims("stu-1"))
	require.NoError(t, err)

	_, err = svc.DecideStage(context.Background(), adminClaims("ca-1", models.RoleClubAdmin), request.ID,
		Decision{Stage: models.StageClub, Status: models.StagePending})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Status, appErr.Status)
}

func TestListScopesToCallerRole(t *testing.T) {
	svc, _, _, _ := newClearanceFixture(t)
	_, err := svc.Initiate(context.Background(), studentClaims("stu-1"))
	require.NoError(t, err)
	_, err = svc.Initiate(context.Background(), studentClaims("stu-2"))
	require.NoError(t, err)

	// Students see only their own requests.
	own, err := svc.List(context.Background(), studentClaims("stu-2"), models.ClearanceFilter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "stu-2", own[0].StudentID)

	// Club admins see their club's requests only.
	clubScoped, err := svc.List(context.Background(), adminClaims("ca-1", models.RoleClubAdmin), models.ClearanceFilter{})
	require.NoError(t, err)
	require.Len(t, clubScoped, 1)
	assert.Equal(t, "stu-1", clubScoped[0].StudentID)

	// SSG admins see everything.
	all, err := svc.List(context.Background(), adminClaims("ssg-1", models.RoleSSGAdmin), models.ClearanceFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetBlocksOtherStudentsRequests(t *testing.T) {
	svc, _, _, _ := newClearanceFixture(t)
	request, err := svc.Initiate(context.Background(), studentClaims("stu-1"))
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), studentClaims("stu-2"), request.ID)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErr.Status)
}
