package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/harsha-e/unipass-api/internal/dto"
	"github.com/harsha-e/unipass-api/internal/models"
	"github.com/harsha-e/unipass-api/pkg/config"
	appErrors "github.com/harsha-e/unipass-api/pkg/errors"
)

type verificationPermissionStore interface {
	GetByID(ctx context.Context, id string) (*models.PermissionRequest, error)
	SetVerifyToken(ctx context.Context, permissionID, token string) error
}

// PassClaims is the signed payload embedded in a pass QR code. The
// guard app presents the token back for verification.
type PassClaims struct {
	PermissionID string `json:"pid"`
	StudentID    string `json:"sid"`
	jwt.RegisteredClaims
}

// VerificationService signs and verifies gate-pass tokens. Issuance is
// a machine boundary guarded by a shared client key, not a user session.
type VerificationService struct {
	perms     verificationPermissionStore
	cfg       config.PassConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewVerificationService constructs the service.
func NewVerificationService(perms verificationPermissionStore, cfg config.PassConfig, validate *validator.Validate, logger *zap.Logger) *VerificationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.VerifyIssuer == "" {
		cfg.VerifyIssuer = "mvgr-unipass-secure"
	}
	return &VerificationService{perms: perms, cfg: cfg, validator: validate, logger: logger}
}

// IssueToken signs a verification token for an approved pass.
func (s *VerificationService) IssueToken(ctx context.Context, req dto.IssuePassTokenRequest) (*dto.IssuePassTokenResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid token request")
	}
	if subtle.ConstantTimeCompare([]byte(req.ClientAPIKey), []byte(s.cfg.ClientAPIKey)) != 1 {
		s.logger.Warn("pass token request with bad client key", zap.String("permission_id", req.PermissionID))
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid client key")
	}

	perm, err := s.perms.GetByID(ctx, req.PermissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "permission request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load permission request")
	}
	if perm.FinalStatus != models.StageApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "tokens are only issued for approved passes")
	}
	if perm.StudentID != req.StudentID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "pass does not belong to this student")
	}

	token, err := s.Sign(perm.ID, perm.StudentID, req.ExpiryDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign pass token")
	}
	if err := s.perms.SetVerifyToken(ctx, perm.ID, token); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store pass token")
	}

	return &dto.IssuePassTokenResponse{
		Token:           token,
		VerificationURL: s.VerificationURL(token),
	}, nil
}

// Sign produces the JWT embedded in the pass QR code.
func (s *VerificationService) Sign(permissionID, studentID string, expiry time.Time) (string, error) {
	if expiry.IsZero() {
		expiry = time.Now().Add(24 * time.Hour)
	}
	claims := PassClaims{
		PermissionID: permissionID,
		StudentID:    studentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.VerifyIssuer,
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.VerifySecret))
	if err != nil {
		return "", fmt.Errorf("sign pass token: %w", err)
	}
	return signed, nil
}

// Verify validates a scanned token and returns the pass facts. An
// expired or tampered token fails closed; a token whose record is no
// longer approved fails too, even if the signature is valid.
func (s *VerificationService) Verify(ctx context.Context, tokenString string) (*dto.VerifyPassResponse, error) {
	claims := &PassClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.VerifySecret), nil
	}, jwt.WithIssuer(s.cfg.VerifyIssuer))
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "pass token is invalid or expired")
	}

	perm, err := s.perms.GetByID(ctx, claims.PermissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "pass not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pass")
	}
	if perm.FinalStatus != models.StageApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "pass is not approved")
	}
	if perm.StudentID != claims.StudentID {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "pass token does not match its holder")
	}

	category := perm.ReasonLabel
	if perm.ReasonIsCustom && perm.CustomReason != nil {
		category = *perm.CustomReason
	}
	return &dto.VerifyPassResponse{
		PermissionID: perm.ID,
		StudentID:    perm.StudentID,
		StudentName:  perm.StudentName,
		RollNumber:   perm.StudentRoll,
		Department:   perm.StudentDepartment,
		Category:     category,
		ValidFrom:    perm.StartDate,
		ValidTo:      perm.EndDate,
		FinalStatus:  string(perm.FinalStatus),
	}, nil
}

// VerificationURL is the address the pass QR code encodes.
func (s *VerificationService) VerificationURL(token string) string {
	return fmt.Sprintf("%s?token=%s", s.cfg.VerificationBase, token)
}
