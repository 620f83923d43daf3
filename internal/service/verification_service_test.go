package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harsha-e/unipass-api/internal/dto"
	"github.com/harsha-e/unipass-api/internal/models"
	"github.com/harsha-e/unipass-api/pkg/config"
	appErrors "github.com/harsha-e/unipass-api/pkg/errors"
)

type verifyPermStub struct {
	perms  map[string]*models.PermissionRequest
	tokens map[string]string
}

func (s *verifyPermStub) GetByID(_ context.Context, id string) (*models.PermissionRequest, error) {
	perm, ok := s.perms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return perm, nil
}

func (s *verifyPermStub) SetVerifyToken(_ context.Context, permissionID, token string) error {
	s.tokens[permissionID] = token
	return nil
}

func passConfig() config.PassConfig {
	return config.PassConfig{
		VerifySecret:     "verify-secret",
		ClientAPIKey:     "guard-app-key",
		VerificationBase: "https://unipass.mvgr.edu.in/verify",
	}
}

func approvedPerm() *models.PermissionRequest {
	return &models.PermissionRequest{
		ID:                "perm-1",
		StudentID:         "student-1",
		StudentName:       "Asha",
		StudentRoll:       "21B91A0501",
		StudentDepartment: "CSE",
		ReasonLabel:       "Medical",
		StartDate:         day(0),
		EndDate:           day(1),
		FinalStatus:       models.StageApproved,
	}
}

func newVerificationFixture(perms ...*models.PermissionRequest) (*VerificationService, *verifyPermStub) {
	stub := &verifyPermStub{perms: map[string]*models.PermissionRequest{}, tokens: map[string]string{}}
	for _, perm := range perms {
		stub.perms[perm.ID] = perm
	}
	return NewVerificationService(stub, passConfig(), nil, nil), stub
}

func TestVerificationServiceIssueAndVerify(t *testing.T) {
	svc, stub := newVerificationFixture(approvedPerm())

	resp, err := svc.IssueToken(context.Background(), dto.IssuePassTokenRequest{
		PermissionID: "perm-1",
		StudentID:    "student-1",
		ExpiryDate:   time.Now().Add(time.Hour),
		ClientAPIKey: "guard-app-key",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	require.Equal(t, "https://unipass.mvgr.edu.in/verify?token="+resp.Token, resp.VerificationURL)
	require.Equal(t, resp.Token, stub.tokens["perm-1"])

	facts, err := svc.Verify(context.Background(), resp.Token)
	require.NoError(t, err)
	require.Equal(t, "perm-1", facts.PermissionID)
	require.Equal(t, "21B91A0501", facts.RollNumber)
	require.Equal(t, "Medical", facts.Category)
	require.Equal(t, "approved", facts.FinalStatus)
}

func TestVerificationServiceIssueGuards(t *testing.T) {
	pending := approvedPerm()
	pending.ID = "perm-2"
	pending.FinalStatus = models.StagePending
	svc, _ := newVerificationFixture(approvedPerm(), pending)

	_, err := svc.IssueToken(context.Background(), dto.IssuePassTokenRequest{
		PermissionID: "perm-1",
		StudentID:    "student-1",
		ExpiryDate:   time.Now().Add(time.Hour),
		ClientAPIKey: "wrong-key",
	})
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, err = svc.IssueToken(context.Background(), dto.IssuePassTokenRequest{
		PermissionID: "perm-2",
		StudentID:    "student-1",
		ExpiryDate:   time.Now().Add(time.Hour),
		ClientAPIKey: "guard-app-key",
	})
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.IssueToken(context.Background(), dto.IssuePassTokenRequest{
		PermissionID: "perm-1",
		StudentID:    "someone-else",
		ExpiryDate:   time.Now().Add(time.Hour),
		ClientAPIKey: "guard-app-key",
	})
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVerificationServiceVerifyRejectsTampering(t *testing.T) {
	svc, _ := newVerificationFixture(approvedPerm())

	token, err := svc.Sign("perm-1", "student-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), token+"x")
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	// A token minted with another secret fails even with matching claims.
	other := NewVerificationService(&verifyPermStub{perms: map[string]*models.PermissionRequest{}, tokens: map[string]string{}},
		config.PassConfig{VerifySecret: "other-secret", VerificationBase: "x"}, nil, nil)
	forged, err := other.Sign("perm-1", "student-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = svc.Verify(context.Background(), forged)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestVerificationServiceVerifyRejectsExpired(t *testing.T) {
	svc, _ := newVerificationFixture(approvedPerm())

	token, err := svc.Sign("perm-1", "student-1", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), token)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestVerificationServiceVerifyRechecksRecord(t *testing.T) {
	perm := approvedPerm()
	svc, _ := newVerificationFixture(perm)

	token, err := svc.Sign("perm-1", "student-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	// The record was revoked after the token was minted.
	perm.FinalStatus = models.StageRejected
	_, err = svc.Verify(context.Background(), token)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
