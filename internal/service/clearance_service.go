package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusconnect/campusconnect-api/internal/models"
	"github.com/campusconnect/campusconnect-api/internal/repository"
	"github.com/campusconnect/campusconnect-api/internal/ws"
	"github.com/campusconnect/campusconnect-api/pkg/config"
	appErrors "github.com/campusconnect/campusconnect-api/pkg/errors"
	"github.com/campusconnect/campusconnect-api/pkg/export"
)

const summaryCacheKey = "clearance:summary"

type clearanceStore interface {
	CreateIfNoneActive(ctx context.Context, request *models.ClearanceRequest) error
	GetByID(ctx context.Context, id string) (*models.ClearanceRequest, error)
	DecideStage(ctx context.Context, id string, mutate func(*models.ClearanceRequest) error) (*models.ClearanceRequest, error)
	List(ctx context.Context, filter models.ClearanceFilter) ([]models.ClearanceRequest, error)
	Summary(ctx context.Context) (*models.ClearanceSummary, error)
}

type clearanceUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

type clearanceOrgStore interface {
	GetDepartmentName(ctx context.Context, id string) (string, error)
	GetClubName(ctx context.Context, id string) (string, error)
}

type clearanceCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type clearancePusher interface {
	BroadcastToUsers(userIDs []string, event ws.Event)
}

type clearanceMetrics interface {
	RecordClearanceDecision(stage, status string)
	RecordCacheOperation(hit bool)
}

type exportStorage interface {
	Save(filename string, data []byte) (string, error)
}

type exportSigner interface {
	Generate(exportID, relPath string) (string, time.Time, error)
}

// ClearanceService runs the multi-stage clearance approval workflow.
type ClearanceService struct {
	store  clearanceStore
	users  clearanceUserStore
	orgs   clearanceOrgStore
	cache  clearanceCache
	pusher clearancePusher
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	files  exportStorage
	signer  exportSigner
	cfg     config.ClearanceConfig
	metrics clearanceMetrics
	logger  *zap.Logger
}

// SetMetrics attaches an optional metrics collector.
func (s *ClearanceService) SetMetrics(metrics clearanceMetrics) {
	s.metrics = metrics
}

// NewClearanceService constructs the service.
func NewClearanceService(
	store clearanceStore,
	users clearanceUserStore,
	orgs clearanceOrgStore,
	cache clearanceCache,
	pusher clearancePusher,
	csv *export.CSVExporter,
	pdf *export.PDFExporter,
	files exportStorage,
	signer exportSigner,
	cfg config.ClearanceConfig,
	logger *zap.Logger,
) *ClearanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClearanceService{
		store:  store,
		users:  users,
		orgs:   orgs,
		cache:  cache,
		pusher: pusher,
		csv:    csv,
		pdf:    pdf,
		files:  files,
		signer: signer,
		cfg:    cfg,
		logger: logger,
	}
}

// Initiate opens a clearance request for the calling student. Department and
// club names are snapshotted at this point and never re-derived. A student
// can hold at most one pending request.
func (s *ClearanceService) Initiate(ctx context.Context, claims *models.JWTClaims) (*models.ClearanceRequest, error) {
	if claims.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can initiate clearance requests")
	}

	student, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.DepartmentID == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student has no department assignment")
	}

	departmentName, err := s.orgs.GetDepartmentName(ctx, *student.DepartmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve department")
	}

	request := &models.ClearanceRequest{
		StudentID:                student.ID,
		StudentName:              student.FullName,
		DepartmentID:             *student.DepartmentID,
		DepartmentName:           departmentName,
		RequestedAt:              time.Now().UTC(),
		ClubApprovalStatus:       models.StageNotApplicable,
		DepartmentApprovalStatus: models.StagePending,
		SSGStatus:                models.StagePending,
		OverallStatus:            models.OverallPending,
	}

	// The club stage only applies to club members.
	if student.ClubID != nil {
		clubName, err := s.orgs.GetClubName(ctx, *student.ClubID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve club")
		}
		request.ClubID = student.ClubID
		request.ClubName = &clubName
		request.ClubApprovalStatus = models.StagePending
	}

	if err := s.store.CreateIfNoneActive(ctx, request); err != nil {
		if errors.Is(err, repository.ErrActiveRequestExists) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a pending clearance request already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create clearance request")
	}

	s.audit(ctx, claims.UserID, models.AuditActionClearanceInitiate, request.ID)
	s.invalidateSummary(ctx)
	return request, nil
}

// DecideStage applies an approver's decision to one stage, recomputes the
// derived overall status, and pushes the updated request to the student. The
// whole update is a locked read-modify-write; serialization failures retry a
// bounded number of times.
func (s *ClearanceService) DecideStage(ctx context.Context, claims *models.JWTClaims, requestID string, decision Decision) (*models.ClearanceRequest, error) {
	if decision.Status != models.StageApproved && decision.Status != models.StageRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be approved or rejected")
	}

	var updated *models.ClearanceRequest
	var err error

	retries := s.cfg.DecisionMaxRetries
	if retries <= 0 {
		retries = 3
	}
	for attempt := 0; attempt < retries; attempt++ {
		updated, err = s.store.DecideStage(ctx, requestID, func(request *models.ClearanceRequest) error {
			return s.applyDecision(claims, request, decision)
		})
		if err == nil || !repository.IsSerializationFailure(err) {
			break
		}
		s.logger.Sugar().Warnw("stage decision conflicted, retrying", "request_id", requestID, "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.DecisionRetryDelay):
		}
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clearance request not found")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply decision")
	}

	if s.metrics != nil {
		s.metrics.RecordClearanceDecision(string(decision.Stage), string(decision.Status))
	}
	s.audit(ctx, claims.UserID, models.AuditActionClearanceDecision, updated.ID)
	s.invalidateSummary(ctx)
	s.pusher.BroadcastToUsers([]string{updated.StudentID}, ws.Event{Type: "clearance:updated", Data: updated})
	return updated, nil
}

// Decision is a single approver action on one stage.
type Decision struct {
	Stage  models.ClearanceStage
	Status models.StageStatus
	Notes  string
}

func (s *ClearanceService) applyDecision(claims *models.JWTClaims, request *models.ClearanceRequest, decision Decision) error {
	if err := s.authorizeStage(claims, request, decision.Stage); err != nil {
		return err
	}
	if request.Terminal() {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "clearance request is already finalised")
	}

	current := request.StageState(decision.Stage)
	switch current {
	case models.StagePending:
	case models.StageNotApplicable:
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "stage does not apply to this request")
	default:
		return appErrors.Clone(appErrors.ErrConflict, "stage has already been decided")
	}

	now := time.Now().UTC()
	notes := strings.TrimSpace(decision.Notes)
	setStage(request, decision.Stage, decision.Status, claims.UserID, now, notes)

	if decision.Status == models.StageRejected {
		// Any rejection ends the workflow; a still-pending SSG stage is
		// closed out so no further decisions can land on it. The approver's
		// own notes carry over when supplied, the auto text is a fallback.
		if decision.Stage != models.StageSSG && request.SSGStatus == models.StagePending {
			cascade := notes
			if cascade == "" {
				cascade = fmt.Sprintf("Auto-rejected due to %s rejection", decision.Stage)
			}
			setStage(request, models.StageSSG, models.StageRejected, claims.UserID, now, cascade)
		}
		request.OverallStatus = models.OverallRejected
		return nil
	}

	request.OverallStatus = deriveOverall(request)
	if request.OverallStatus == models.OverallApproved && request.UnifiedClearanceID == nil {
		unified := fmt.Sprintf("UC-%d-%s", now.Year(), strings.ToUpper(request.ID[:4]))
		request.UnifiedClearanceID = &unified
	}
	return nil
}

func (s *ClearanceService) authorizeStage(claims *models.JWTClaims, request *models.ClearanceRequest, stage models.ClearanceStage) error {
	switch claims.Role {
	case models.RoleSuperAdmin:
		return nil
	case models.RoleClubAdmin:
		if stage != models.StageClub {
			return appErrors.Clone(appErrors.ErrForbidden, "club admins decide the club stage only")
		}
	case models.RoleDepartmentAdmin:
		if stage != models.StageDepartment {
			return appErrors.Clone(appErrors.ErrForbidden, "department admins decide the department stage only")
		}
	case models.RoleSSGAdmin, models.RoleOIC:
		if stage != models.StageSSG {
			return appErrors.Clone(appErrors.ErrForbidden, "SSG officers decide the SSG stage only")
		}
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "role cannot decide clearance stages")
	}
	return nil
}

func setStage(request *models.ClearanceRequest, stage models.ClearanceStage, status models.StageStatus, approverID string, at time.Time, notes string) {
	var notesPtr *string
	if notes != "" {
		notesPtr = &notes
	}
	switch stage {
	case models.StageClub:
		request.ClubApprovalStatus = status
		request.ClubApproverID = &approverID
		request.ClubApprovalDate = &at
		request.ClubApprovalNotes = notesPtr
	case models.StageDepartment:
		request.DepartmentApprovalStatus = status
		request.DepartmentApproverID = &approverID
		request.DepartmentApprovalDate = &at
		request.DepartmentApprovalNotes = notesPtr
	case models.StageSSG:
		request.SSGStatus = status
		request.SSGApproverID = &approverID
		request.SSGApprovalDate = &at
		request.SSGApprovalNotes = notesPtr
	}
}

func deriveOverall(request *models.ClearanceRequest) models.OverallStatus {
	states := []models.StageStatus{
		request.ClubApprovalStatus,
		request.DepartmentApprovalStatus,
		request.SSGStatus,
	}
	allApproved := true
	for _, state := range states {
		switch state {
		case models.StageRejected:
			return models.OverallRejected
		case models.StageApproved, models.StageNotApplicable:
		default:
			allApproved = false
		}
	}
	if allApproved {
		return models.OverallApproved
	}
	return models.OverallPending
}

// Get loads one request, enforcing role-based visibility.
func (s *ClearanceService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.ClearanceRequest, error) {
	request, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clearance request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clearance request")
	}
	if claims.Role == models.RoleStudent && request.StudentID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students can only view their own requests")
	}
	return request, nil
}

// List returns requests scoped to the caller's role. Students see their own;
// club and department admins see their unit's; the rest see everything.
func (s *ClearanceService) List(ctx context.Context, claims *models.JWTClaims, filter models.ClearanceFilter) ([]models.ClearanceRequest, error) {
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load caller")
	}

	switch claims.Role {
	case models.RoleStudent:
		filter.StudentID = claims.UserID
	case models.RoleClubAdmin:
		if user.ClubID == nil {
			return []models.ClearanceRequest{}, nil
		}
		filter.ClubID = *user.ClubID
	case models.RoleDepartmentAdmin:
		if user.DepartmentID == nil {
			return []models.ClearanceRequest{}, nil
		}
		filter.DepartmentID = *user.DepartmentID
	}

	requests, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clearance requests")
	}
	return requests, nil
}

// Summary returns counts by overall status, cached briefly.
func (s *ClearanceService) Summary(ctx context.Context) (*models.ClearanceSummary, error) {
	var cached models.ClearanceSummary
	if err := s.cache.Get(ctx, summaryCacheKey, &cached); err == nil {
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(true)
		}
		return &cached, nil
	} else if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Sugar().Warnw("summary cache read failed", "error", err)
	}
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(false)
	}

	summary, err := s.store.Summary(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate summary")
	}
	if err := s.cache.Set(ctx, summaryCacheKey, summary, s.cfg.SummaryCacheTTL); err != nil {
		s.logger.Sugar().Warnw("summary cache write failed", "error", err)
	}
	return summary, nil
}

// ExportRoster writes the filtered request list to CSV and returns a signed
// download link.
func (s *ClearanceService) ExportRoster(ctx context.Context, claims *models.JWTClaims, filter models.ClearanceFilter) (string, time.Time, error) {
	requests, err := s.List(ctx, claims, filter)
	if err != nil {
		return "", time.Time{}, err
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Department", "Club", "Requested", "Club Stage", "Department Stage", "SSG Stage", "Overall", "Unified ID"},
	}
	for _, request := range requests {
		club := ""
		if request.ClubName != nil {
			club = *request.ClubName
		}
		unified := ""
		if request.UnifiedClearanceID != nil {
			unified = *request.UnifiedClearanceID
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":          request.StudentName,
			"Department":       request.DepartmentName,
			"Club":             club,
			"Requested":        request.RequestedAt.Format(time.RFC3339),
			"Club Stage":       string(request.ClubApprovalStatus),
			"Department Stage": string(request.DepartmentApprovalStatus),
			"SSG Stage":        string(request.SSGStatus),
			"Overall":          string(request.OverallStatus),
			"Unified ID":       unified,
		})
	}

	payload, err := s.csv.Render(dataset)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	exportID := uuid.NewString()
	filename := fmt.Sprintf("clearance/roster-%s.csv", exportID)
	if _, err := s.files.Save(filename, payload); err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store roster")
	}

	token, expiresAt, err := s.signer.Generate(exportID, filename)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return token, expiresAt, nil
}

// ExportCertificate renders a clearance certificate PDF for an approved
// request and returns a signed download link.
func (s *ClearanceService) ExportCertificate(ctx context.Context, claims *models.JWTClaims, requestID string) (string, time.Time, error) {
	request, err := s.Get(ctx, claims, requestID)
	if err != nil {
		return "", time.Time{}, err
	}
	if request.OverallStatus != models.OverallApproved || request.UnifiedClearanceID == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrPreconditionFailed, "certificate requires an approved request")
	}

	fields := []export.CertificateField{
		{Label: "Student", Value: request.StudentName},
		{Label: "Department", Value: request.DepartmentName},
		{Label: "Requested", Value: request.RequestedAt.Format("January 2, 2006")},
	}
	if request.ClubName != nil {
		fields = append(fields, export.CertificateField{Label: "Club", Value: *request.ClubName})
	}
	if request.SSGApprovalDate != nil {
		fields = append(fields, export.CertificateField{Label: "Cleared", Value: request.SSGApprovalDate.Format("January 2, 2006")})
	}

	payload, err := s.pdf.RenderCertificate("Certificate of Clearance", *request.UnifiedClearanceID, fields)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}

	exportID := uuid.NewString()
	filename := fmt.Sprintf("clearance/certificate-%s.pdf", exportID)
	if _, err := s.files.Save(filename, payload); err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store certificate")
	}

	token, expiresAt, err := s.signer.Generate(exportID, filename)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return token, expiresAt, nil
}

func (s *ClearanceService) audit(ctx context.Context, userID, action, resourceID string) {
	entry := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "clearance_request",
		ResourceID: &resourceID,
	}
	if err := s.users.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Sugar().Warnw("failed to write audit log", "action", action, "error", err)
	}
}

func (s *ClearanceService) invalidateSummary(ctx context.Context) {
	if err := s.cache.Delete(ctx, summaryCacheKey); err != nil {
		s.logger.Sugar().Warnw("failed to invalidate summary cache", "error", err)
	}
}
