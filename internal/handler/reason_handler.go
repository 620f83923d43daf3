package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harsha-e/unipass-api/internal/service"
	"github.com/harsha-e/unipass-api/pkg/response"
)

// ReasonHandler serves the configured leave reasons.
type ReasonHandler struct {
	service *service.ReasonService
}

// NewReasonHandler creates a new handler.
func NewReasonHandler(svc *service.ReasonService) *ReasonHandler {
	return &ReasonHandler{service: svc}
}

// List godoc
// @Summary List leave reasons
// @Tags Reasons
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reasons [get]
func (h *ReasonHandler) List(c *gin.Context) {
	reasons, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reasons, nil)
}
