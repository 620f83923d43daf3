package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harsha-e/unipass-api/internal/dto"
	"github.com/harsha-e/unipass-api/internal/models"
	"github.com/harsha-e/unipass-api/internal/repository"
	"github.com/harsha-e/unipass-api/pkg/config"
	appErrors "github.com/harsha-e/unipass-api/pkg/errors"
)

type permStoreStub struct {
	perms   map[string]*models.PermissionRequest
	history map[string][]models.HistoryEntry
	events  []models.PermissionEvent
	stale   bool
	blocked map[string]string
}

func newPermStoreStub() *permStoreStub {
	return &permStoreStub{
		perms:   map[string]*models.PermissionRequest{},
		history: map[string][]models.HistoryEntry{},
		blocked: map[string]string{},
	}
}

func (s *permStoreStub) Create(_ context.Context, perm *models.PermissionRequest, history models.HistoryEntry, event models.PermissionEvent) error {
	if perm.ID == "" {
		perm.ID = "perm-" + perm.StudentID
	}
	s.perms[perm.ID] = perm
	s.history[perm.ID] = append(s.history[perm.ID], history)
	event.PermissionID = perm.ID
	s.events = append(s.events, event)
	return nil
}

func (s *permStoreStub) GetByID(_ context.Context, id string) (*models.PermissionRequest, error) {
	perm, ok := s.perms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *perm
	return &clone, nil
}

func (s *permStoreStub) ListByStudent(_ context.Context, studentID string) ([]models.PermissionRequest, error) {
	var out []models.PermissionRequest
	for _, perm := range s.perms {
		if perm.StudentID == studentID {
			out = append(out, *perm)
		}
	}
	return out, nil
}

func (s *permStoreStub) ListPendingTeacher(_ context.Context) ([]models.PermissionRequest, error) {
	var out []models.PermissionRequest
	for _, perm := range s.perms {
		if perm.TeacherStatus == models.StagePending {
			out = append(out, *perm)
		}
	}
	return out, nil
}

func (s *permStoreStub) ListAll(_ context.Context) ([]models.PermissionRequest, error) {
	var out []models.PermissionRequest
	for _, perm := range s.perms {
		out = append(out, *perm)
	}
	return out, nil
}

func (s *permStoreStub) FindApprovedByVerifyToken(_ context.Context, token string) (*models.PermissionRequest, error) {
	for _, perm := range s.perms {
		if perm.VerifyToken != nil && *perm.VerifyToken == token && perm.FinalStatus == models.StageApproved {
			clone := *perm
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *permStoreStub) apply(t repository.StageTransition) error {
	if s.stale {
		return repository.ErrStaleTransition
	}
	perm := s.perms[t.PermissionID]
	if t.TeacherStatus != nil {
		perm.TeacherStatus = *t.TeacherStatus
	}
	if t.HODStatus != nil {
		perm.HODStatus = *t.HODStatus
	}
	perm.FinalStatus = t.FinalStatus
	s.history[t.PermissionID] = append(s.history[t.PermissionID], t.History)
	t.Event.PermissionID = t.PermissionID
	s.events = append(s.events, t.Event)
	return nil
}

func (s *permStoreStub) ApplyTeacherDecision(_ context.Context, t repository.StageTransition) error {
	return s.apply(t)
}

func (s *permStoreStub) ApplyHODDecision(_ context.Context, t repository.StageTransition) error {
	return s.apply(t)
}

func (s *permStoreStub) ApplyRejection(_ context.Context, t repository.StageTransition) error {
	return s.apply(t)
}

func (s *permStoreStub) BlockStudent(_ context.Context, t repository.StageTransition, studentID, _, reason string) error {
	if err := s.apply(t); err != nil {
		return err
	}
	s.blocked[studentID] = reason
	return nil
}

func (s *permStoreStub) MarkPDFGenerated(_ context.Context, permissionID, pdfURL, verifyToken string, event models.PermissionEvent) error {
	perm := s.perms[permissionID]
	perm.PDFGenerated = true
	perm.PDFURL = &pdfURL
	perm.VerifyToken = &verifyToken
	s.events = append(s.events, event)
	return nil
}

func (s *permStoreStub) ListHistory(_ context.Context, permissionID string) ([]models.HistoryEntry, error) {
	return s.history[permissionID], nil
}

func (s *permStoreStub) Timeline(_ context.Context, permissionID string) ([]models.PermissionEvent, error) {
	var out []models.PermissionEvent
	for _, event := range s.events {
		if event.PermissionID == permissionID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *permStoreStub) lastEvent() models.PermissionEvent {
	return s.events[len(s.events)-1]
}

type reasonResolverStub struct {
	reasons map[string]*models.PermissionReason
}

func (s *reasonResolverStub) Resolve(_ context.Context, reasonID string) (*models.PermissionReason, error) {
	reason, ok := s.reasons[reasonID]
	if !ok {
		return nil, appErrors.ErrInvalidReason
	}
	return reason, nil
}

type issuerStub struct {
	enqueued []string
}

func (s *issuerStub) EnqueueRender(permissionID string) error {
	s.enqueued = append(s.enqueued, permissionID)
	return nil
}

type observerStub struct {
	transitions []string
}

func (s *observerStub) ObserveTransition(eventType string) {
	s.transitions = append(s.transitions, eventType)
}

func testWorkflow() config.WorkflowConfig {
	return config.WorkflowConfig{
		EscalationThresholdDays: 2,
		SensitiveCategories:     []string{"Medical", "On-Duty", "Symposium"},
	}
}

func testReasons() *reasonResolverStub {
	return &reasonResolverStub{reasons: map[string]*models.PermissionReason{
		"medical":          {ID: "medical", Label: "Medical", ApprovalType: models.ApprovalTeacherHOD},
		"personal":         {ID: "personal", Label: "Personal", ApprovalType: models.ApprovalTeacherOnly},
		"symposium":        {ID: "symposium", Label: "Symposium", ApprovalType: models.ApprovalTeacherHOD},
		"industrial-visit": {ID: "industrial-visit", Label: "Industrial Visit", ApprovalType: models.ApprovalTeacherHOD},
		"other":            {ID: "other", Label: "Other", ApprovalType: models.ApprovalTeacherHOD, IsCustom: true},
	}}
}

func studentActor() *models.Actor {
	return &models.Actor{UID: "student-1", Email: "student@mvgr.edu.in", DisplayName: "Asha", Role: models.RoleStudent, RollNumber: "21B91A0501", Department: "CSE"}
}

func teacherActor() *models.Actor {
	return &models.Actor{UID: "teacher-1", Email: "teacher@mvgr.edu.in", DisplayName: "Ravi", Role: models.RoleTeacher}
}

func hodActor() *models.Actor {
	return &models.Actor{UID: "hod-1", Email: "hod@mvgr.edu.in", DisplayName: "Prasad", Role: models.RoleHOD}
}

func day(offset int) time.Time {
	return time.Date(2026, time.March, 2+offset, 0, 0, 0, 0, time.UTC)
}

func createRequest(t *testing.T, svc *PermissionService, reasonID string, days int) *models.PermissionRequest {
	t.Helper()
	perm, err := svc.Create(context.Background(), studentActor(), dto.CreatePermissionRequest{
		ReasonID:  reasonID,
		StartDate: day(0),
		EndDate:   day(days - 1),
	})
	require.NoError(t, err)
	return perm
}

func TestPermissionServiceCreate(t *testing.T) {
	store := newPermStoreStub()
	svc := NewPermissionService(store, testReasons(), nil, testWorkflow(), nil, nil)

	perm := createRequest(t, svc, "medical", 1)
	require.Equal(t, models.StagePending, perm.TeacherStatus)
	require.Equal(t, models.StagePending, perm.HODStatus)
	require.Equal(t, models.ApprovalTeacherHOD, perm.ApprovalType)
	require.Equal(t, "21B91A0501", perm.StudentRoll)

	require.Len(t, store.events, 1)
	require.Equal(t, models.EventRequested, store.lastEvent().Type)
	require.Equal(t, "Requested leave: Medical", store.history[perm.ID][0].Note)
}

func TestPermissionServiceCreateTeacherOnlySkipsHOD(t *testing.T) {
	store := newPermStoreStub()
	svc := NewPermissionService(store, testReasons(), nil, testWorkflow(), nil, nil)

	perm := createRequest(t, svc, "personal", 1)
	require.Equal(t, models.StageNotRequired, perm.HODStatus)
}

func TestPermissionServiceCreateRejectsBadInput(t *testing.T) {
	store := newPermStoreStub()
	svc := NewPermissionService(store, testReasons(), nil, testWorkflow(), nil, nil)

	_, err := svc.Create(context.Background(), teacherActor(), dto.CreatePermissionRequest{
		ReasonID: "personal", StartDate: day(0), EndDate: day(0),
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), studentActor(), dto.CreatePermissionRequest{
		ReasonID: "personal", StartDate: day(1), EndDate: day(0),
	})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), studentActor(), dto.CreatePermissionRequest{
		ReasonID: "unknown", StartDate: day(0), EndDate: day(0),
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidReason.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), studentActor(), dto.CreatePermissionRequest{
		ReasonID: "other", StartDate: day(0), EndDate: day(0),
	})
	require.Error(t, err)
	require.Len(t, store.events, 0)
}

func TestPermissionServiceTeacherApproveStandard(t *testing.T) {
	store := newPermStoreStub()
	issuer := &issuerStub{}
	svc := NewPermissionService(store, testReasons(), nil, testWorkflow(), nil, nil, WithPassIssuer(issuer))

	perm := createRequest(t, svc, "personal", 1)
	updated, err := svc.TeacherDecide(context.Background(), teacherActor(), perm.ID, models.DecisionApproved)
	require.NoError(t, err)
	require.Equal(t, models.StageApproved, updated.FinalStatus)
	require.Equal(t, models.StageApproved, updated.TeacherStatus)

	require.Equal(t, models.EventTeacherApproved, store.lastEvent().Type)
	require.Equal(t, "Request Approved (Standard)", store.history[perm.ID][1].Note)
	require.Equal(t, []string{perm.ID}, issuer.enqueued)
}

func TestPermissionServiceTeacherApproveEscalatesSensitive(t *testing.T) {
	store := newPermStoreStub()
	issuer := &issuerStub{}
	svc := NewPermissionService(store, testReasons(), nil, testWorkflow(), nil, nil, WithPassIssuer(issuer))

	perm := createRequest(t, svc, "medical", 1)
	updated, err := svc.TeacherDecide(context.Background(), teacherActor(), perm.ID, models.DecisionApproved)
	require.NoError(t, err)
	require.Equal(t, models.StagePending, updated.FinalStatus)
	require.Equal(t, models.StagePending, updated.HODStatus)

	require.Equal(t, models.EventTeacherApproved, store.lastEvent().Type)
	require.Equal(t, "Escalated: Sensitive Category (Medical)", store.history[perm.ID][1].Note)
	require.Empty(t, issuer.enqueued)
}

func TestPermissionServiceTeacherApproveEscalatesDuration(t *testing.T) {
	store := newPermStoreStub()
	svc := NewPermissionService(store, testReasons(), nil, testWorkflow(), nil, nil)

	perm := createRequest(t, svc, "industrial-visit", 4)
	_, err := svc.TeacherDecide(context.Background(), teacherActor(), perm.ID, models.DecisionApproved)
	require.NoError(t, err)
	require.Equal(t, "Escalated: Duration (4 days) exceeds limit", store.history[perm.ID][1].Note)
}

func TestPermissionServiceTeacherApproveEndorsesShortRequest(t *testing.T) {
	store := newPermStoreStub()
	svc := NewPermissionService(store, testReasons(), nil, testWorkflow(), nil, nil)

	// 2 days is inside the inclusive threshold, the label is not sensitive.
	perm := createRequest(t, svc, "industrial-visit", 2)
	updated, err := svc.TeacherDecide(context.Background(), teacherActor(), perm.ID, models.DecisionApproved)
	require.NoError(t, err)
	require.Equal(t, models.StagePending, updated.FinalStatus)

	require.Equal(t, models.EventTeacherApproved, store.lastEvent().Type)
	require.Equal(t, "Endorsed for HOD review", store.history[perm.ID][1].Note)
}

func TestPermissionServiceTeacherReject(t *testing.T) {
	store := newPermStoreStub()
	svc := NewPermissionService(store, testReasons(), nil, testWorkflow(), nil, nil)

	perm := createRequest(t, svc, "medical", 1)
	updated, err := svc.TeacherDecide(context.Background(), teacherActor(), perm.ID, models.DecisionRejected)
	require.NoError(t, err)
	require.Equal(t, models.StageRejected, updated.FinalStatus)
	require.Equal(t, models.EventTeacherRejected, store.lastEvent().Type)
	require.Equal(t, "Request Declined", store.history[perm.ID][1].Note)
}

func TestPermissionServiceTeacherDecideResolvedIsNoOp(t *testing.T) {
	store := newPermStoreStub()
	svc := NewPermissionService(store, testReasons(), nil, testWorkflow(), nil, nil)

	perm := createRequest(t, svc, "personal", 1)
	_, err := svc.TeacherDecide(context.Background(), teacherActor(), perm.ID, models.DecisionApproved)
	require.NoError(t, err)
	eventCount := len(store.events)

	// A second verdict finds the stage resolved: no history, no event.
	updated, err := svc.TeacherDecide(context.Background(), teacherActor(), perm.ID, models.DecisionRejected)
	require.NoError(t, err)
	require.Equal(t, models.StageApproved, updated.FinalStatus)
	require.Len(t, store.events, eventCount)
	require.Len(t, store.history[perm.ID], 2)
}

func TestPermissionServiceTeacherDecideRacedIsNoOp(t *testing.T) {
	store := newPermStoreStub()
	svc := NewPermissionService(store, testReasons(), nil, testWorkflow(), nil, nil)

	perm := createRequest(t, svc, "personal", 1)
	store.stale = true

	updated, err := svc.TeacherDecide(context.Background(), teacherActor(), perm.ID, models.DecisionApproved)
	require.NoError(t, err)
	require.Equal(t, models.StagePending, updated.TeacherStatus)
	require.Len(t, store.events, 1)
}

func TestPermissionServiceHodApprove(t *testing.T) {
	store := newPermStoreStub()
	issuer := &issuerStub{}
	observer := &observerStub{}
	svc := NewPermissionService(store, testReasons(), nil, testWorkflow(), nil, nil,
		WithPassIssuer(issuer), WithTransitionObserver(observer))

	perm := createRequest(t, svc, "medical", 1)
	_, err := svc.TeacherDecide(context.Background(), teacherActor(), perm.ID, models.DecisionApproved)
	require.NoError(t, err)

	updated, err := svc.HodDecide(context.Background(), hodActor(), perm.ID, models.DecisionApproved)
	require.NoError(t, err)
	require.Equal(t, models.StageApproved, updated.FinalStatus)
	require.Equal(t, models.StageApproved, updated.HODStatus)

	require.Equal(t, models.EventHODApproved, store.lastEvent().Type)
	require.Equal(t, "Final Approval Granted", store.history[perm.ID][2].Note)
	require.Equal(t, []string{perm.ID}, issuer.enqueued)
	require.Equal(t, []string{"REQUESTED", "TEACHER_APPROVED", "HOD_APPROVED"}, observer.transitions)
}

func TestPermissionServiceTimelineReplay(t *testing.T) {
	store := newPermStoreStub()
	svc := NewPermissionService(store, testReasons(), store, testWorkflow(), nil, nil)

	// An escalated approval replays as a plain teacher approval; the
	// escalation shows up only in the workflow history.
	perm := createRequest(t, svc, "medical", 1)
	_, err := svc.TeacherDecide(context.Background(), teacherActor(), perm.ID, models.DecisionApproved)
	require.NoError(t, err)
	_, err = svc.HodDecide(context.Background(), hodActor(), perm.ID, models.DecisionApproved)
	require.NoError(t, err)

	events, err := svc.Timeline(context.Background(), perm.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, want := range []models.PermissionEventType{models.EventRequested, models.EventTeacherApproved, models.EventHODApproved} {
		require.Equal(t, want, events[i].Type)
	}

	history, err := svc.History(context.Background(), perm.ID)
	require.NoError(t, err)
	require.Equal(t, models.StepEscalated, history[1].Step)
}

func TestPermissionServiceHodDecideIneligibleIsNoOp(t *testing.T) {
	store := newPermStoreStub()
	svc := NewPermissionService(store, testReasons(), nil, testWorkflow(), nil, nil)

	// TEACHER_ONLY policy: the HOD has no stage here.
	teacherOnly := createRequest(t, svc, "personal", 1)
	// TEACHER_HOD but the teacher has not endorsed yet.
	notEndorsed := createRequest(t, svc, "medical", 1)

	for _, id := range []string{teacherOnly.ID, notEndorsed.ID} {
		before := len(store.events)
		updated, err := svc.HodDecide(context.Background(), hodActor(), id, models.DecisionApproved)
		require.NoError(t, err)
		require.Equal(t, models.StagePending, updated.FinalStatus)
		require.Len(t, store.events, before)
	}
}

func TestPermissionServiceHodReject(t *testing.T) {
	store := newPermStoreStub()
	issuer := &issuerStub{}
	svc := NewPermissionService(store, testReasons(), nil, testWorkflow(), nil, nil, WithPassIssuer(issuer))

	perm := createRequest(t, svc, "symposium", 1)
	_, err := svc.TeacherDecide(context.Background(), teacherActor(), perm.ID, models.DecisionApproved)
	require.NoError(t, err)

	updated, err := svc.HodDecide(context.Background(), hodActor(), perm.ID, models.DecisionRejected)
	require.NoError(t, err)
	require.Equal(t, models.StageRejected, updated.FinalStatus)
	require.Equal(t, models.EventHODRejected, store.lastEvent().Type)
	require.Empty(t, issuer.enqueued)
}

func TestPermissionServiceRoleGates(t *testing.T) {
	store := newPermStoreStub()
	svc := NewPermissionService(store, testReasons(), nil, testWorkflow(), nil, nil)
	perm := createRequest(t, svc, "medical", 1)

	_, err := svc.TeacherDecide(context.Background(), hodActor(), perm.ID, models.DecisionApproved)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.HodDecide(context.Background(), teacherActor(), perm.ID, models.DecisionApproved)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.TeacherDecide(context.Background(), teacherActor(), perm.ID, models.Decision("maybe"))
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPermissionServiceReject(t *testing.T) {
	store := newPermStoreStub()
	svc := NewPermissionService(store, testReasons(), nil, testWorkflow(), nil, nil)

	perm := createRequest(t, svc, "medical", 1)
	updated, err := svc.Reject(context.Background(), hodActor(), perm.ID, "")
	require.NoError(t, err)
	require.Equal(t, models.StageRejected, updated.FinalStatus)
	require.Equal(t, models.EventHODRejected, store.lastEvent().Type)
	require.Equal(t, "Request Declined", store.history[perm.ID][1].Note)

	_, err = svc.Reject(context.Background(), studentActor(), perm.ID, "")
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// Terminal records are left alone.
	before := len(store.events)
	_, err = svc.Reject(context.Background(), teacherActor(), perm.ID, "changed my mind")
	require.NoError(t, err)
	require.Len(t, store.events, before)
}

func TestPermissionServiceBlockStudent(t *testing.T) {
	store := newPermStoreStub()
	svc := NewPermissionService(store, testReasons(), nil, testWorkflow(), nil, nil)

	perm := createRequest(t, svc, "medical", 1)
	err := svc.BlockStudent(context.Background(), studentActor(), perm.ID, "student-1", "fake request")
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.BlockStudent(context.Background(), teacherActor(), perm.ID, "student-1", "")
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.BlockStudent(context.Background(), teacherActor(), perm.ID, "student-1", "fake request"))
	require.Equal(t, "fake request", store.blocked["student-1"])
	require.Equal(t, models.EventBlocked, store.lastEvent().Type)
	require.Equal(t, "USER BLOCKED: fake request", store.history[perm.ID][1].Note)
}

func TestPermissionServiceBlockStudentResolvedConflicts(t *testing.T) {
	store := newPermStoreStub()
	svc := NewPermissionService(store, testReasons(), nil, testWorkflow(), nil, nil)

	perm := createRequest(t, svc, "medical", 1)
	store.stale = true

	err := svc.BlockStudent(context.Background(), hodActor(), perm.ID, "student-1", "fake request")
	require.Equal(t, appErrors.ErrAlreadyResolved.Code, appErrors.FromError(err).Code)
	require.Empty(t, store.blocked)
}

type reviewCacheStub struct {
	entries     map[string][]models.PermissionRequest
	invalidated int
}

func (s *reviewCacheStub) Get(_ context.Context, key string, dest interface{}) error {
	cached, ok := s.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*dest.(*[]models.PermissionRequest) = cached
	return nil
}

func (s *reviewCacheStub) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.entries[key] = value.([]models.PermissionRequest)
	return nil
}

func (s *reviewCacheStub) DeleteByPattern(_ context.Context, _ string) error {
	s.entries = map[string][]models.PermissionRequest{}
	s.invalidated++
	return nil
}

type cacheMetricsStub struct {
	hits, misses int
}

func (s *cacheMetricsStub) RecordCacheOperation(hit bool) {
	if hit {
		s.hits++
	} else {
		s.misses++
	}
}

func TestPermissionServiceReviewQueueCache(t *testing.T) {
	store := newPermStoreStub()
	cache := &reviewCacheStub{entries: map[string][]models.PermissionRequest{}}
	metrics := &cacheMetricsStub{}
	svc := NewPermissionService(store, testReasons(), nil, testWorkflow(), nil, nil,
		WithReviewCache(cache, time.Minute), WithCacheMetrics(metrics))

	perm := createRequest(t, svc, "medical", 1)

	queue, cacheHit, err := svc.ListReviewQueue(context.Background())
	require.NoError(t, err)
	require.False(t, cacheHit)
	require.Len(t, queue, 1)
	require.Contains(t, cache.entries, "perm:queue:hod")

	_, cacheHit, err = svc.ListReviewQueue(context.Background())
	require.NoError(t, err)
	require.True(t, cacheHit)
	require.Equal(t, 1, metrics.hits)
	require.Equal(t, 1, metrics.misses)

	// Transitions drop the cached queue.
	_, err = svc.TeacherDecide(context.Background(), teacherActor(), perm.ID, models.DecisionApproved)
	require.NoError(t, err)
	require.NotContains(t, cache.entries, "perm:queue:hod")
}
