package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/harsha-e/unipass-api/internal/dto"
	"github.com/harsha-e/unipass-api/internal/models"
	"github.com/harsha-e/unipass-api/internal/repository"
	"github.com/harsha-e/unipass-api/pkg/config"
	appErrors "github.com/harsha-e/unipass-api/pkg/errors"
)

type permissionStore interface {
	Create(ctx context.Context, perm *models.PermissionRequest, history models.HistoryEntry, event models.PermissionEvent) error
	GetByID(ctx context.Context, id string) (*models.PermissionRequest, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.PermissionRequest, error)
	ListPendingTeacher(ctx context.Context) ([]models.PermissionRequest, error)
	ListAll(ctx context.Context) ([]models.PermissionRequest, error)
	FindApprovedByVerifyToken(ctx context.Context, token string) (*models.PermissionRequest, error)
	ApplyTeacherDecision(ctx context.Context, t repository.StageTransition) error
	ApplyHODDecision(ctx context.Context, t repository.StageTransition) error
	ApplyRejection(ctx context.Context, t repository.StageTransition) error
	BlockStudent(ctx context.Context, t repository.StageTransition, studentID, blockedBy, reason string) error
	MarkPDFGenerated(ctx context.Context, permissionID, pdfURL, verifyToken string, event models.PermissionEvent) error
	ListHistory(ctx context.Context, permissionID string) ([]models.HistoryEntry, error)
}

type permissionReasonResolver interface {
	Resolve(ctx context.Context, reasonID string) (*models.PermissionReason, error)
}

type timelineStore interface {
	Timeline(ctx context.Context, permissionID string) ([]models.PermissionEvent, error)
}

type reviewCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// passIssuer schedules pass artifact generation once a request reaches
// final approval.
type passIssuer interface {
	EnqueueRender(permissionID string) error
}

// transitionObserver records workflow transition metrics.
type transitionObserver interface {
	ObserveTransition(eventType string)
}

// cacheMetricsRecorder counts review-queue cache hits and misses.
type cacheMetricsRecorder interface {
	RecordCacheOperation(hit bool)
}

const reviewQueueCacheKey = "perm:queue:hod"

// PermissionService is the workflow engine. It computes legal
// transitions, applies the escalation policy, and commits the new stage
// together with its history entry and event. Precondition violations on
// review calls are silent no-ops: the record was already resolved or is
// not yet eligible, and concurrent reviewers must not crash each other.
type PermissionService struct {
	repo      permissionStore
	reasons   permissionReasonResolver
	events    timelineStore
	cache     reviewCache
	issuer    passIssuer
	observer  transitionObserver
	cacheRec  cacheMetricsRecorder
	workflow  config.WorkflowConfig
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// PermissionServiceOption configures optional collaborators.
type PermissionServiceOption func(*PermissionService)

// WithReviewCache wires the Redis review-queue cache.
func WithReviewCache(cache reviewCache, ttl time.Duration) PermissionServiceOption {
	return func(s *PermissionService) {
		s.cache = cache
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithPassIssuer wires the PDF pipeline trigger.
func WithPassIssuer(issuer passIssuer) PermissionServiceOption {
	return func(s *PermissionService) {
		s.issuer = issuer
	}
}

// WithTransitionObserver wires workflow metrics.
func WithTransitionObserver(observer transitionObserver) PermissionServiceOption {
	return func(s *PermissionService) {
		s.observer = observer
	}
}

// WithCacheMetrics wires cache hit/miss counters for the review queue.
func WithCacheMetrics(rec cacheMetricsRecorder) PermissionServiceOption {
	return func(s *PermissionService) {
		s.cacheRec = rec
	}
}

// NewPermissionService constructs the engine with its injected policy.
func NewPermissionService(repo permissionStore, reasons permissionReasonResolver, events timelineStore, workflow config.WorkflowConfig, validate *validator.Validate, logger *zap.Logger, opts ...PermissionServiceOption) *PermissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if workflow.EscalationThresholdDays <= 0 {
		workflow.EscalationThresholdDays = 2
	}
	svc := &PermissionService{
		repo:      repo,
		reasons:   reasons,
		events:    events,
		workflow:  workflow,
		cacheTTL:  time.Minute,
		validator: validate,
		logger:    logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create submits a new leave request on behalf of a student.
func (s *PermissionService) Create(ctx context.Context, actor *models.Actor, req dto.CreatePermissionRequest) (*models.PermissionRequest, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can request gate passes")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid permission payload")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must not precede start date")
	}

	reason, err := s.reasons.Resolve(ctx, req.ReasonID)
	if err != nil {
		return nil, err
	}
	if reason.IsCustom && req.CustomReason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "custom reason text is required")
	}

	hodStatus := models.StageNotRequired
	if reason.ApprovalType == models.ApprovalTeacherHOD {
		hodStatus = models.StagePending
	}

	perm := &models.PermissionRequest{
		StudentID:         actor.UID,
		StudentEmail:      actor.Email,
		StudentName:       actor.DisplayName,
		StudentRoll:       actor.RollNumber,
		StudentDepartment: actor.Department,
		ReasonID:          reason.ID,
		ReasonLabel:       reason.Label,
		ReasonIsCustom:    reason.IsCustom,
		ApprovalType:      reason.ApprovalType,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		TeacherStatus:     models.StagePending,
		HODStatus:         hodStatus,
		FinalStatus:       models.StagePending,
	}
	if req.CustomReason != "" {
		perm.CustomReason = &req.CustomReason
	}

	history := models.HistoryEntry{
		Step:  models.StepRequested,
		Actor: actor.DisplayName,
		Role:  string(models.RoleStudent),
		Note:  fmt.Sprintf("Requested leave: %s", reason.Label),
	}
	event := s.actorEvent(models.EventRequested, actor)

	if err := s.repo.Create(ctx, perm, history, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create permission request")
	}

	s.afterTransition(ctx, string(models.EventRequested))
	return perm, nil
}

// TeacherDecide applies a teacher verdict to a pending request,
// running the escalation check on approval of TEACHER_HOD requests.
func (s *PermissionService) TeacherDecide(ctx context.Context, actor *models.Actor, permissionID string, decision models.Decision) (*models.PermissionRequest, error) {
	if actor.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can review this stage")
	}
	if !decision.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be approved or rejected")
	}

	perm, err := s.repo.GetByID(ctx, permissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "permission request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load permission request")
	}
	if perm.TeacherStatus != models.StagePending {
		s.logger.Info("teacher decision ignored, stage already resolved",
			zap.String("permission_id", permissionID),
			zap.String("teacher_status", string(perm.TeacherStatus)))
		return perm, nil
	}

	now := time.Now().UTC()
	record := &repository.ApprovalRecord{
		ActorID:    actor.UID,
		ActorName:  actor.DisplayName,
		ActorEmail: actor.Email,
		Decision:   decision,
		DecidedAt:  now,
	}

	teacherStatus := models.StageStatus(decision)
	transition := repository.StageTransition{
		PermissionID:  permissionID,
		TeacherStatus: &teacherStatus,
		Teacher:       record,
	}

	switch {
	case decision == models.DecisionRejected:
		transition.FinalStatus = models.StageRejected
		transition.History = models.HistoryEntry{
			Step:  models.StepRejected,
			Actor: actor.DisplayName,
			Role:  string(models.RoleTeacher),
			Note:  "Request Declined",
		}
		transition.Event = s.actorEvent(models.EventTeacherRejected, actor)

	case perm.ApprovalType == models.ApprovalTeacherOnly:
		transition.FinalStatus = models.StageApproved
		transition.History = models.HistoryEntry{
			Step:  models.StepApproved,
			Actor: actor.DisplayName,
			Role:  string(models.RoleTeacher),
			Note:  "Request Approved (Standard)",
		}
		transition.Event = s.actorEvent(models.EventTeacherApproved, actor)

	default:
		// TEACHER_HOD approval: escalation may force the HOD stage even
		// when the policy left it pending.
		// Escalation is a history fact, not a distinct event type: the
		// timeline records a plain teacher approval either way.
		escalate, why := s.checkEscalation(perm)
		if escalate {
			pending := models.StagePending
			transition.HODStatus = &pending
			transition.FinalStatus = models.StagePending
			transition.History = models.HistoryEntry{
				Step:  models.StepEscalated,
				Actor: actor.DisplayName,
				Role:  string(models.RoleTeacher),
				Note:  "Escalated: " + why,
			}
			transition.Event = s.actorEvent(models.EventTeacherApproved, actor)
		} else {
			transition.FinalStatus = models.StagePending
			transition.History = models.HistoryEntry{
				Step:  models.StepTeacherEndorsed,
				Actor: actor.DisplayName,
				Role:  string(models.RoleTeacher),
				Note:  "Endorsed for HOD review",
			}
			transition.Event = s.actorEvent(models.EventTeacherApproved, actor)
		}
	}

	if err := s.repo.ApplyTeacherDecision(ctx, transition); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			s.logger.Info("teacher decision raced, record already resolved", zap.String("permission_id", permissionID))
			return perm, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply teacher decision")
	}

	s.afterTransition(ctx, string(transition.Event.Type))
	if transition.FinalStatus == models.StageApproved {
		s.enqueuePass(permissionID)
	}
	return s.reload(ctx, permissionID, perm)
}

// HodDecide applies an HOD verdict. Calls against a record whose policy
// is not TEACHER_HOD, whose teacher stage is not approved, or whose HOD
// stage is not pending return without mutation: no history, no event.
func (s *PermissionService) HodDecide(ctx context.Context, actor *models.Actor, permissionID string, decision models.Decision) (*models.PermissionRequest, error) {
	if actor.Role != models.RoleHOD {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the HOD can review this stage")
	}
	if !decision.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be approved or rejected")
	}

	perm, err := s.repo.GetByID(ctx, permissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "permission request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load permission request")
	}
	if perm.ApprovalType != models.ApprovalTeacherHOD || perm.TeacherStatus != models.StageApproved || perm.HODStatus != models.StagePending {
		s.logger.Info("hod decision ignored, record not eligible",
			zap.String("permission_id", permissionID),
			zap.String("approval_type", string(perm.ApprovalType)),
			zap.String("teacher_status", string(perm.TeacherStatus)),
			zap.String("hod_status", string(perm.HODStatus)))
		return perm, nil
	}

	now := time.Now().UTC()
	hodStatus := models.StageStatus(decision)
	eventType := models.EventHODApproved
	note := "Final Approval Granted"
	step := models.StepApproved
	if decision == models.DecisionRejected {
		eventType = models.EventHODRejected
		note = "Request Declined"
		step = models.StepRejected
	}

	transition := repository.StageTransition{
		PermissionID: permissionID,
		HODStatus:    &hodStatus,
		FinalStatus:  models.StageStatus(decision),
		HOD: &repository.ApprovalRecord{
			ActorID:    actor.UID,
			ActorName:  actor.DisplayName,
			ActorEmail: actor.Email,
			Decision:   decision,
			DecidedAt:  now,
		},
		History: models.HistoryEntry{
			Step:  step,
			Actor: actor.DisplayName,
			Role:  string(models.RoleHOD),
			Note:  note,
		},
		Event: s.actorEvent(eventType, actor),
	}

	if err := s.repo.ApplyHODDecision(ctx, transition); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			s.logger.Info("hod decision raced, record already resolved", zap.String("permission_id", permissionID))
			return perm, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply hod decision")
	}

	s.afterTransition(ctx, string(eventType))
	if transition.FinalStatus == models.StageApproved {
		s.enqueuePass(permissionID)
	}
	return s.reload(ctx, permissionID, perm)
}

// Reject declines a non-terminal request from whichever role currently
// holds the pending stage.
func (s *PermissionService) Reject(ctx context.Context, actor *models.Actor, permissionID, reason string) (*models.PermissionRequest, error) {
	if actor.Role != models.RoleTeacher && actor.Role != models.RoleHOD {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only reviewers can reject requests")
	}
	if reason == "" {
		reason = "Request Declined"
	}

	perm, err := s.repo.GetByID(ctx, permissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "permission request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load permission request")
	}
	if perm.Terminal() {
		s.logger.Info("rejection ignored, record already resolved", zap.String("permission_id", permissionID))
		return perm, nil
	}

	now := time.Now().UTC()
	record := &repository.ApprovalRecord{
		ActorID:    actor.UID,
		ActorName:  actor.DisplayName,
		ActorEmail: actor.Email,
		Decision:   models.DecisionRejected,
		DecidedAt:  now,
	}
	eventType := models.EventTeacherRejected
	transition := repository.StageTransition{
		PermissionID: permissionID,
		FinalStatus:  models.StageRejected,
		History: models.HistoryEntry{
			Step:  models.StepRejected,
			Actor: actor.DisplayName,
			Role:  string(actor.Role),
			Note:  reason,
		},
	}
	if actor.Role == models.RoleTeacher {
		transition.Teacher = record
	} else {
		transition.HOD = record
		eventType = models.EventHODRejected
	}
	transition.Event = s.actorEvent(eventType, actor)

	if err := s.repo.ApplyRejection(ctx, transition); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			s.logger.Info("rejection raced, record already resolved", zap.String("permission_id", permissionID))
			return perm, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject permission request")
	}

	s.afterTransition(ctx, string(eventType))
	return s.reload(ctx, permissionID, perm)
}

// BlockStudent atomically rejects the named permission and blocks the
// student's account. Restricted to teacher, HOD and admin roles.
func (s *PermissionService) BlockStudent(ctx context.Context, actor *models.Actor, permissionID, studentID, reason string) error {
	switch actor.Role {
	case models.RoleTeacher, models.RoleHOD, models.RoleAdmin:
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "insufficient privileges to block users")
	}
	if reason == "" {
		return appErrors.Clone(appErrors.ErrValidation, "a block reason is required")
	}

	transition := repository.StageTransition{
		PermissionID: permissionID,
		History: models.HistoryEntry{
			Step:  models.StepBlocked,
			Actor: actor.DisplayName,
			Role:  string(actor.Role),
			Note:  "USER BLOCKED: " + reason,
		},
		Event: s.actorEvent(models.EventBlocked, actor),
	}

	if err := s.repo.BlockStudent(ctx, transition, studentID, actor.UID, reason); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			s.logger.Info("block ignored, permission already resolved", zap.String("permission_id", permissionID))
			return appErrors.Clone(appErrors.ErrAlreadyResolved, "this request was already resolved; use the disciplinary block instead")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to block student")
	}

	s.afterTransition(ctx, string(models.EventBlocked))
	return nil
}

// MarkPDFGenerated records pass issuance for an approved request. The
// approval precondition is not re-checked here; only the PDF pipeline
// calls this, after final approval.
func (s *PermissionService) MarkPDFGenerated(ctx context.Context, permissionID, pdfURL, verifyToken string) error {
	event := models.PermissionEvent{
		Type:      models.EventPDFGenerated,
		ActorRole: "SYSTEM",
	}
	if err := s.repo.MarkPDFGenerated(ctx, permissionID, pdfURL, verifyToken, event); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record pass issuance")
	}
	s.afterTransition(ctx, string(models.EventPDFGenerated))
	return nil
}

// Get returns a single request.
func (s *PermissionService) Get(ctx context.Context, permissionID string) (*models.PermissionRequest, error) {
	perm, err := s.repo.GetByID(ctx, permissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "permission request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load permission request")
	}
	return perm, nil
}

// ListByStudent returns the student's own requests.
func (s *PermissionService) ListByStudent(ctx context.Context, studentID string) ([]models.PermissionRequest, error) {
	perms, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list permission requests")
	}
	return perms, nil
}

// ListPendingTeacher returns the teacher review queue.
func (s *PermissionService) ListPendingTeacher(ctx context.Context) ([]models.PermissionRequest, error) {
	perms, err := s.repo.ListPendingTeacher(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending requests")
	}
	return perms, nil
}

// ListReviewQueue returns the full HOD queue, cached when Redis is
// configured and invalidated on every transition. The second return
// reports whether the queue came from cache.
func (s *PermissionService) ListReviewQueue(ctx context.Context) ([]models.PermissionRequest, bool, error) {
	if s.cache != nil {
		var cached []models.PermissionRequest
		if err := s.cache.Get(ctx, reviewQueueCacheKey, &cached); err == nil {
			s.recordCacheOp(true)
			return cached, true, nil
		}
		s.recordCacheOp(false)
	}
	perms, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list review queue")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, reviewQueueCacheKey, perms, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache review queue", zap.Error(err))
		}
	}
	return perms, false, nil
}

// FindApprovedByToken resolves a verification token for gate staff.
func (s *PermissionService) FindApprovedByToken(ctx context.Context, token string) (*models.PermissionRequest, error) {
	perm, err := s.repo.FindApprovedByVerifyToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no approved pass matches this token")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve pass token")
	}
	return perm, nil
}

// Timeline replays the event stream for a request in creation order.
func (s *PermissionService) Timeline(ctx context.Context, permissionID string) ([]models.PermissionEvent, error) {
	events, err := s.events.Timeline(ctx, permissionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load permission timeline")
	}
	return events, nil
}

// History returns the embedded workflow history of a request.
func (s *PermissionService) History(ctx context.Context, permissionID string) ([]models.HistoryEntry, error) {
	entries, err := s.repo.ListHistory(ctx, permissionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workflow history")
	}
	return entries, nil
}

// checkEscalation reports whether a TEACHER_HOD request must be routed
// to the HOD regardless of the teacher verdict, and why.
func (s *PermissionService) checkEscalation(perm *models.PermissionRequest) (bool, string) {
	duration := perm.DurationDays()
	if duration > s.workflow.EscalationThresholdDays {
		return true, fmt.Sprintf("Duration (%d days) exceeds limit", duration)
	}
	for _, category := range s.workflow.SensitiveCategories {
		if category == perm.ReasonLabel {
			return true, fmt.Sprintf("Sensitive Category (%s)", perm.ReasonLabel)
		}
	}
	return false, ""
}

func (s *PermissionService) actorEvent(eventType models.PermissionEventType, actor *models.Actor) models.PermissionEvent {
	uid := actor.UID
	email := actor.Email
	return models.PermissionEvent{
		Type:       eventType,
		ActorRole:  string(actor.Role),
		ActorID:    &uid,
		ActorEmail: &email,
	}
}

func (s *PermissionService) recordCacheOp(hit bool) {
	if s.cacheRec != nil {
		s.cacheRec.RecordCacheOperation(hit)
	}
}

func (s *PermissionService) afterTransition(ctx context.Context, eventType string) {
	if s.observer != nil {
		s.observer.ObserveTransition(eventType)
	}
	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, "perm:queue:*"); err != nil {
			s.logger.Warn("failed to invalidate review queue cache", zap.Error(err))
		}
	}
}

func (s *PermissionService) enqueuePass(permissionID string) {
	if s.issuer == nil {
		return
	}
	if err := s.issuer.EnqueueRender(permissionID); err != nil {
		s.logger.Error("failed to enqueue pass render", zap.String("permission_id", permissionID), zap.Error(err))
	}
}

func (s *PermissionService) reload(ctx context.Context, permissionID string, fallback *models.PermissionRequest) (*models.PermissionRequest, error) {
	perm, err := s.repo.GetByID(ctx, permissionID)
	if err != nil {
		s.logger.Warn("failed to reload permission after transition", zap.String("permission_id", permissionID), zap.Error(err))
		return fallback, nil
	}
	return perm, nil
}
