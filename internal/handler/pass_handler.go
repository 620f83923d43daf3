package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harsha-e/unipass-api/internal/service"
	appErrors "github.com/harsha-e/unipass-api/pkg/errors"
	"github.com/harsha-e/unipass-api/pkg/response"
)

// PassHandler serves rendered pass PDFs via signed download links.
type PassHandler struct {
	service *service.PassService
}

// NewPassHandler creates a new handler.
func NewPassHandler(svc *service.PassService) *PassHandler {
	return &PassHandler{service: svc}
}

// DownloadLink godoc
// @Summary Get a signed download link for a pass PDF
// @Tags Passes
// @Produce json
// @Param id path string true "Permission id"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /passes/{id}/download-link [get]
func (h *PassHandler) DownloadLink(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrSessionExpired)
		return
	}

	token, expiresAt, err := h.service.DownloadToken(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt,
	}, nil)
}

// Download godoc
// @Summary Download a pass PDF with a signed token
// @Tags Passes
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /passes/download [get]
func (h *PassHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	file, filename, err := h.service.OpenDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	stat, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read pass file"))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.DataFromReader(http.StatusOK, stat.Size(), "application/pdf", file, nil)
}
