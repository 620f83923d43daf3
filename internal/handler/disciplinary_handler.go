package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/harsha-e/unipass-api/internal/dto"
	"github.com/harsha-e/unipass-api/internal/models"
	"github.com/harsha-e/unipass-api/internal/service"
	appErrors "github.com/harsha-e/unipass-api/pkg/errors"
	"github.com/harsha-e/unipass-api/pkg/response"
)

// DisciplinaryHandler exposes the behavioral reporting workflow.
type DisciplinaryHandler struct {
	service *service.DisciplinaryService
}

// NewDisciplinaryHandler creates a new handler.
func NewDisciplinaryHandler(svc *service.DisciplinaryService) *DisciplinaryHandler {
	return &DisciplinaryHandler{service: svc}
}

// Report godoc
// @Summary File a disciplinary report
// @Tags Disciplinary
// @Accept json
// @Produce json
// @Param payload body dto.ReportStudentRequest true "Report payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /disciplinary/reports [post]
func (h *DisciplinaryHandler) Report(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrSessionExpired)
		return
	}

	var req dto.ReportStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid report payload"))
		return
	}

	report, err := h.service.Report(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, report)
}

// ExecuteBlock godoc
// @Summary Execute a block for an escalated report
// @Tags Disciplinary
// @Accept json
// @Produce json
// @Param payload body dto.ExecuteBlockRequest true "Block payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /disciplinary/execute-block [post]
func (h *DisciplinaryHandler) ExecuteBlock(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrSessionExpired)
		return
	}

	var req dto.ExecuteBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid block payload"))
		return
	}

	report, err := h.service.ExecuteBlock(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, report, nil)
}

// List godoc
// @Summary List disciplinary reports
// @Tags Disciplinary
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /disciplinary/reports [get]
func (h *DisciplinaryHandler) List(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrSessionExpired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	filter := models.DisciplinaryFilter{
		StudentID: c.Query("student_id"),
		Status:    models.ReportStatus(c.Query("status")),
		Page:      page,
		PageSize:  pageSize,
	}

	reports, total, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, reports, &models.Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	})
}
