package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusconnect/campusconnect-api/internal/dto"
	"github.com/campusconnect/campusconnect-api/internal/middleware"
	"github.com/campusconnect/campusconnect-api/internal/models"
	"github.com/campusconnect/campusconnect-api/internal/service"
	appErrors "github.com/campusconnect/campusconnect-api/pkg/errors"
)

type clearanceServiceMock struct {
	initiateResp   *models.ClearanceRequest
	initiateErr    error
	decideResp     *models.ClearanceRequest
	decideErr      error
	lastDecision   service.Decision
	lastRequestID  string
	listResp       []models.ClearanceRequest
	lastFilter     models.ClearanceFilter
	summaryResp    *models.ClearanceSummary
	exportToken    string
	decideCalled   bool
	initiateCalled bool
}

func (m *clearanceServiceMock) Initiate(ctx context.Context, claims *models.JWTClaims) (*models.ClearanceRequest, error) {
	m.initiateCalled = true
	return m.initiateResp, m.initiateErr
}

func (m *clearanceServiceMock) DecideStage(ctx context.Context, claims *models.JWTClaims, requestID string, decision service.Decision) (*models.ClearanceRequest, error) {
	m.decideCalled = true
	m.lastRequestID = requestID
	m.lastDecision = decision
	return m.decideResp, m.decideErr
}

func (m *clearanceServiceMock) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.ClearanceRequest, error) {
	return m.decideResp, m.decideErr
}

func (m *clearanceServiceMock) List(ctx context.Context, claims *models.JWTClaims, filter models.ClearanceFilter) ([]models.ClearanceRequest, error) {
	m.lastFilter = filter
	return m.listResp, nil
}

func (m *clearanceServiceMock) Summary(ctx context.Context) (*models.ClearanceSummary, error) {
	return m.summaryResp, nil
}

func (m *clearanceServiceMock) ExportRoster(ctx context.Context, claims *models.JWTClaims, filter models.ClearanceFilter) (string, time.Time, error) {
	return m.exportToken, time.Now().Add(30 * time.Minute), nil
}

func (m *clearanceServiceMock) ExportCertificate(ctx context.Context, claims *models.JWTClaims, requestID string) (string, time.Time, error) {
	return m.exportToken, time.Now().Add(30 * time.Minute), nil
}

func studentContext(w *httptest.ResponseRecorder) (*gin.Context, *models.JWTClaims) {
	c, _ := gin.CreateTestContext(w)
	claims := &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent, FullName: "Maria Santos"}
	c.Set(middleware.ContextUserKey, claims)
	return c, claims
}

func TestClearanceHandlerInitiate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &clearanceServiceMock{initiateResp: &models.ClearanceRequest{ID: "req-1", StudentID: "stu-1"}}
	handler := NewClearanceHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := studentContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/clearance", nil)
	c.Request = req

	handler.Initiate(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.initiateCalled)
}

func TestClearanceHandlerInitiateWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewClearanceHandler(&clearanceServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/clearance", nil)
	c.Request = req

	handler.Initiate(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestClearanceHandlerDecide(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &clearanceServiceMock{decideResp: &models.ClearanceRequest{ID: "req-1"}}
	handler := NewClearanceHandler(mockSvc)

	payload, _ := json.Marshal(dto.DecideStageRequest{Stage: models.StageDepartment, Status: models.StageApproved, Notes: "all good"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "da-1", Role: models.RoleDepartmentAdmin})
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	req, _ := http.NewRequest(http.MethodPost, "/clearance/req-1/decision", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Decide(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.decideCalled)
	assert.Equal(t, "req-1", mockSvc.lastRequestID)
	assert.Equal(t, models.StageDepartment, mockSvc.lastDecision.Stage)
	assert.Equal(t, "all good", mockSvc.lastDecision.Notes)
}

func TestClearanceHandlerDecideInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewClearanceHandler(&clearanceServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "da-1", Role: models.RoleDepartmentAdmin})
	req, _ := http.NewRequest(http.MethodPost, "/clearance/req-1/decision", bytes.NewBufferString(`{"stage":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Decide(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClearanceHandlerDecideServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &clearanceServiceMock{decideErr: appErrors.Clone(appErrors.ErrConflict, "stage has already been decided")}
	handler := NewClearanceHandler(mockSvc)

	payload, _ := json.Marshal(dto.DecideStageRequest{Stage: models.StageClub, Status: models.StageRejected})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "ca-1", Role: models.RoleClubAdmin})
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	req, _ := http.NewRequest(http.MethodPost, "/clearance/req-1/decision", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Decide(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestClearanceHandlerListParsesFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &clearanceServiceMock{}
	handler := NewClearanceHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := studentContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/clearance?overall=Pending,Approved&limit=10", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []models.OverallStatus{models.OverallPending, models.OverallApproved}, mockSvc.lastFilter.Overall)
	assert.Equal(t, 10, mockSvc.lastFilter.Limit)
}

func TestClearanceHandlerExportRosterReturnsSignedLink(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &clearanceServiceMock{exportToken: "signed-token"}
	handler := NewClearanceHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "ssg-1", Role: models.RoleSSGAdmin})
	req, _ := http.NewRequest(http.MethodPost, "/clearance/export", nil)
	c.Request = req

	handler.ExportRoster(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/exports/signed-token")
}
