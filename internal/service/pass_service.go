package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harsha-e/unipass-api/internal/models"
	"github.com/harsha-e/unipass-api/pkg/config"
	appErrors "github.com/harsha-e/unipass-api/pkg/errors"
	"github.com/harsha-e/unipass-api/pkg/export"
	"github.com/harsha-e/unipass-api/pkg/jobs"
	"github.com/harsha-e/unipass-api/pkg/storage"
)

const jobTypePassRender = "pass_render"

type passRecordStore interface {
	GetByID(ctx context.Context, id string) (*models.PermissionRequest, error)
	MarkPDFGenerated(ctx context.Context, permissionID, pdfURL, verifyToken string, event models.PermissionEvent) error
}

type passTokenSigner interface {
	Sign(permissionID, studentID string, expiry time.Time) (string, error)
	VerificationURL(token string) string
}

type renderMetricsRecorder interface {
	ObservePassRender()
}

// PassService renders approved passes to PDF on a background queue and
// serves them through signed, expiring download links.
type PassService struct {
	store    passRecordStore
	signer   passTokenSigner
	renderer *export.PassRenderer
	files    *storage.LocalStorage
	urls     *storage.SignedURLSigner
	queue    *jobs.Queue
	metrics  renderMetricsRecorder
	logger   *zap.Logger
}

// NewPassService constructs the service and its render queue. Call
// Start before enqueueing and Stop on shutdown.
func NewPassService(store passRecordStore, signer passTokenSigner, renderer *export.PassRenderer, files *storage.LocalStorage, urls *storage.SignedURLSigner, cfg config.PassConfig, logger *zap.Logger) *PassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PassService{
		store:    store,
		signer:   signer,
		renderer: renderer,
		files:    files,
		urls:     urls,
		logger:   logger,
	}
	s.queue = jobs.NewQueue("passes", s.handleRender, jobs.Options{
		Workers:    2,
		MaxRetries: cfg.WorkerRetries,
		RetryDelay: 5 * time.Second,
		Logger:     logger,
	})
	return s
}

// WithRenderMetrics registers a recorder that counts rendered passes.
func (s *PassService) WithRenderMetrics(rec renderMetricsRecorder) *PassService {
	s.metrics = rec
	return s
}

// Start launches the render workers.
func (s *PassService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the render workers.
func (s *PassService) Stop() {
	s.queue.Stop()
}

// EnqueueRender schedules PDF generation for a finally-approved pass.
func (s *PassService) EnqueueRender(permissionID string) error {
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobTypePassRender,
		Payload: permissionID,
	})
}

// handleRender is the queue worker. Rendering is idempotent: a record
// whose PDF already exists, or that is no longer approved, is skipped
// without error so retries never duplicate artifacts.
func (s *PassService) handleRender(ctx context.Context, job jobs.Job) error {
	permissionID, ok := job.Payload.(string)
	if !ok || permissionID == "" {
		s.logger.Error("pass render job with bad payload", zap.String("job_id", job.ID))
		return nil
	}

	perm, err := s.store.GetByID(ctx, permissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("pass render for missing permission", zap.String("permission_id", permissionID))
			return nil
		}
		return fmt.Errorf("load permission %s: %w", permissionID, err)
	}
	if perm.FinalStatus != models.StageApproved {
		s.logger.Info("pass render skipped, request not approved",
			zap.String("permission_id", permissionID),
			zap.String("final_status", string(perm.FinalStatus)))
		return nil
	}
	if perm.PDFGenerated {
		return nil
	}

	token := ""
	if perm.VerifyToken != nil {
		token = *perm.VerifyToken
	}
	if token == "" {
		expiry := perm.EndDate.Add(24 * time.Hour)
		token, err = s.signer.Sign(perm.ID, perm.StudentID, expiry)
		if err != nil {
			return fmt.Errorf("sign verify token for %s: %w", perm.ID, err)
		}
	}

	purpose := perm.ReasonLabel
	if perm.ReasonIsCustom && perm.CustomReason != nil {
		purpose = *perm.CustomReason
	}
	pdf, err := s.renderer.Render(export.PassDocument{
		PermissionID:    perm.ID,
		StudentName:     perm.StudentName,
		RollNumber:      perm.StudentRoll,
		Department:      perm.StudentDepartment,
		Category:        perm.ReasonLabel,
		Purpose:         purpose,
		ValidFrom:       perm.StartDate,
		ValidTo:         perm.EndDate,
		IssuedAt:        time.Now(),
		VerificationURL: s.signer.VerificationURL(token),
	})
	if err != nil {
		return fmt.Errorf("render pass %s: %w", perm.ID, err)
	}

	relPath := fmt.Sprintf("%s/%s.pdf", time.Now().UTC().Format("2006/01"), perm.ID)
	if _, err := s.files.Save(relPath, pdf); err != nil {
		return fmt.Errorf("store pass %s: %w", perm.ID, err)
	}

	event := models.PermissionEvent{Type: models.EventPDFGenerated, ActorRole: "SYSTEM"}
	if err := s.store.MarkPDFGenerated(ctx, perm.ID, relPath, token, event); err != nil {
		return fmt.Errorf("mark pass generated %s: %w", perm.ID, err)
	}

	if s.metrics != nil {
		s.metrics.ObservePassRender()
	}
	s.logger.Info("pass rendered", zap.String("permission_id", perm.ID), zap.String("path", relPath))
	return nil
}

// DownloadToken returns a signed, expiring token for the pass PDF. The
// student may fetch their own pass; staff roles may fetch any.
func (s *PassService) DownloadToken(ctx context.Context, actor *models.Actor, permissionID string) (string, time.Time, error) {
	perm, err := s.store.GetByID(ctx, permissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "permission request not found")
		}
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load permission request")
	}
	if actor.Role == models.RoleStudent && perm.StudentID != actor.UID {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrForbidden, "not your pass")
	}
	if !perm.PDFGenerated || perm.PDFURL == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "pass PDF has not been generated yet")
	}

	token, expiresAt, err := s.urls.Generate(perm.ID, *perm.PDFURL)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return token, expiresAt, nil
}

// OpenDownload validates a signed download token and opens the PDF.
func (s *PassService) OpenDownload(token string) (*os.File, string, error) {
	permissionID, relPath, _, err := s.urls.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "download link is invalid or expired")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "pass file not found")
	}
	return file, fmt.Sprintf("pass-%s.pdf", permissionID), nil
}
