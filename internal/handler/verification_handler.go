package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harsha-e/unipass-api/internal/dto"
	"github.com/harsha-e/unipass-api/internal/service"
	appErrors "github.com/harsha-e/unipass-api/pkg/errors"
	"github.com/harsha-e/unipass-api/pkg/response"
)

// VerificationHandler is the gate boundary: token issuance for the
// guard app and token verification for gate staff. Neither endpoint
// uses a user session.
type VerificationHandler struct {
	service *service.VerificationService
}

// NewVerificationHandler creates a new handler.
func NewVerificationHandler(svc *service.VerificationService) *VerificationHandler {
	return &VerificationHandler{service: svc}
}

// IssueToken godoc
// @Summary Issue a pass verification token
// @Description Machine endpoint for the guard app, authenticated by a shared client key
// @Tags Verification
// @Accept json
// @Produce json
// @Param payload body dto.IssuePassTokenRequest true "Token request"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /verification/tokens [post]
func (h *VerificationHandler) IssueToken(c *gin.Context) {
	var req dto.IssuePassTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid token request"))
		return
	}

	res, err := h.service.IssueToken(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Verify godoc
// @Summary Verify a scanned pass token
// @Tags Verification
// @Produce json
// @Param token query string true "Pass token"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /verification/verify [get]
func (h *VerificationHandler) Verify(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	res, err := h.service.Verify(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}
