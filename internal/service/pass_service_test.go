package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harsha-e/unipass-api/internal/models"
	"github.com/harsha-e/unipass-api/pkg/config"
	appErrors "github.com/harsha-e/unipass-api/pkg/errors"
	"github.com/harsha-e/unipass-api/pkg/export"
	"github.com/harsha-e/unipass-api/pkg/jobs"
	"github.com/harsha-e/unipass-api/pkg/storage"
)

type passStoreStub struct {
	perms  map[string]*models.PermissionRequest
	marked []string
	events []models.PermissionEvent
}

func (s *passStoreStub) GetByID(_ context.Context, id string) (*models.PermissionRequest, error) {
	perm, ok := s.perms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return perm, nil
}

func (s *passStoreStub) MarkPDFGenerated(_ context.Context, permissionID, pdfURL, verifyToken string, event models.PermissionEvent) error {
	perm := s.perms[permissionID]
	perm.PDFGenerated = true
	perm.PDFURL = &pdfURL
	perm.VerifyToken = &verifyToken
	s.marked = append(s.marked, permissionID)
	s.events = append(s.events, event)
	return nil
}

type tokenSignerStub struct {
	signed int
}

func (s *tokenSignerStub) Sign(permissionID, studentID string, _ time.Time) (string, error) {
	s.signed++
	return fmt.Sprintf("token-%s-%s", permissionID, studentID), nil
}

func (s *tokenSignerStub) VerificationURL(token string) string {
	return "https://unipass.mvgr.edu.in/verify?token=" + token
}

type renderMetricsStub struct {
	renders int
}

func (s *renderMetricsStub) ObservePassRender() {
	s.renders++
}

func newPassFixture(t *testing.T, perms ...*models.PermissionRequest) (*PassService, *passStoreStub, *tokenSignerStub) {
	t.Helper()
	store := &passStoreStub{perms: map[string]*models.PermissionRequest{}}
	for _, perm := range perms {
		store.perms[perm.ID] = perm
	}
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := &tokenSignerStub{}
	svc := NewPassService(store, signer, export.NewPassRenderer("", ""),
		files, storage.NewSignedURLSigner("download-secret", time.Hour),
		config.PassConfig{}, nil)
	return svc, store, signer
}

func renderJob(permissionID string) jobs.Job {
	return jobs.Job{ID: "job-1", Type: jobTypePassRender, Payload: permissionID}
}

func TestPassServiceRender(t *testing.T) {
	perm := approvedPerm()
	svc, store, signer := newPassFixture(t, perm)

	require.NoError(t, svc.handleRender(context.Background(), renderJob("perm-1")))
	require.True(t, perm.PDFGenerated)
	require.NotNil(t, perm.PDFURL)
	require.Equal(t, 1, signer.signed)
	require.Len(t, store.events, 1)
	require.Equal(t, models.EventPDFGenerated, store.events[0].Type)
	require.Equal(t, "SYSTEM", store.events[0].ActorRole)

	file, err := svc.files.Open(*perm.PDFURL)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	stat, err := file.Stat()
	require.NoError(t, err)
	require.Greater(t, stat.Size(), int64(0))
}

func TestPassServiceRenderIsIdempotent(t *testing.T) {
	perm := approvedPerm()
	svc, store, _ := newPassFixture(t, perm)
	metrics := &renderMetricsStub{}
	svc.WithRenderMetrics(metrics)

	require.NoError(t, svc.handleRender(context.Background(), renderJob("perm-1")))
	require.NoError(t, svc.handleRender(context.Background(), renderJob("perm-1")))
	require.Len(t, store.marked, 1)
	require.Len(t, store.events, 1)
	require.Equal(t, 1, metrics.renders)
}

func TestPassServiceRenderSkips(t *testing.T) {
	pending := approvedPerm()
	pending.ID = "perm-2"
	pending.FinalStatus = models.StagePending
	svc, store, _ := newPassFixture(t, pending)

	// Missing records, unapproved records and garbage payloads are all
	// dropped without error so the queue never retries them.
	require.NoError(t, svc.handleRender(context.Background(), renderJob("missing")))
	require.NoError(t, svc.handleRender(context.Background(), renderJob("perm-2")))
	require.NoError(t, svc.handleRender(context.Background(), jobs.Job{ID: "job-2", Type: jobTypePassRender, Payload: 42}))
	require.Empty(t, store.marked)
}

func TestPassServiceRenderReusesVerifyToken(t *testing.T) {
	perm := approvedPerm()
	existing := "already-issued-token"
	perm.VerifyToken = &existing
	svc, _, signer := newPassFixture(t, perm)

	require.NoError(t, svc.handleRender(context.Background(), renderJob("perm-1")))
	require.Equal(t, 0, signer.signed)
	require.Equal(t, existing, *perm.VerifyToken)
}

func TestPassServiceDownloadRoundTrip(t *testing.T) {
	perm := approvedPerm()
	svc, _, _ := newPassFixture(t, perm)
	require.NoError(t, svc.handleRender(context.Background(), renderJob("perm-1")))

	token, expiresAt, err := svc.DownloadToken(context.Background(), studentActor(), "perm-1")
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	file, filename, err := svc.OpenDownload(token)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	require.Equal(t, "pass-perm-1.pdf", filename)

	_, _, err = svc.OpenDownload(token + "x")
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestPassServiceDownloadGuards(t *testing.T) {
	perm := approvedPerm()
	svc, _, _ := newPassFixture(t, perm)

	// Not rendered yet.
	_, _, err := svc.DownloadToken(context.Background(), studentActor(), "perm-1")
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.handleRender(context.Background(), renderJob("perm-1")))

	other := studentActor()
	other.UID = "student-2"
	_, _, err = svc.DownloadToken(context.Background(), other, "perm-1")
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// Staff may fetch any student's pass.
	_, _, err = svc.DownloadToken(context.Background(), teacherActor(), "perm-1")
	require.NoError(t, err)
}
