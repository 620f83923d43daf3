package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harsha-e/unipass-api/internal/dto"
	"github.com/harsha-e/unipass-api/internal/middleware"
	"github.com/harsha-e/unipass-api/internal/models"
	"github.com/harsha-e/unipass-api/internal/service"
	appErrors "github.com/harsha-e/unipass-api/pkg/errors"
	"github.com/harsha-e/unipass-api/pkg/response"
)

// PermissionHandler exposes the gate-pass workflow over HTTP.
type PermissionHandler struct {
	service *service.PermissionService
}

// NewPermissionHandler creates a new handler.
func NewPermissionHandler(svc *service.PermissionService) *PermissionHandler {
	return &PermissionHandler{service: svc}
}

// Create godoc
// @Summary Submit a gate pass request
// @Tags Permissions
// @Accept json
// @Produce json
// @Param payload body dto.CreatePermissionRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /permissions [post]
func (h *PermissionHandler) Create(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrSessionExpired)
		return
	}

	var req dto.CreatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid permission payload"))
		return
	}

	perm, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, perm)
}

// ListMine godoc
// @Summary List the caller's own requests
// @Tags Permissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /permissions/mine [get]
func (h *PermissionHandler) ListMine(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrSessionExpired)
		return
	}

	perms, err := h.service.ListByStudent(c.Request.Context(), actor.UID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, perms, nil)
}

// PendingTeacher godoc
// @Summary List requests awaiting teacher review
// @Tags Permissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /permissions/pending [get]
func (h *PermissionHandler) PendingTeacher(c *gin.Context) {
	perms, err := h.service.ListPendingTeacher(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, perms, nil)
}

// ReviewQueue godoc
// @Summary List the full review queue
// @Tags Permissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /permissions [get]
func (h *PermissionHandler) ReviewQueue(c *gin.Context) {
	perms, cacheHit, err := h.service.ListReviewQueue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, perms, nil, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Fetch one request
// @Tags Permissions
// @Produce json
// @Param id path string true "Permission id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /permissions/{id} [get]
func (h *PermissionHandler) Get(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrSessionExpired)
		return
	}

	perm, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if actor.Role == models.RoleStudent && perm.StudentID != actor.UID {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "not your request"))
		return
	}

	response.JSON(c, http.StatusOK, perm, nil)
}

// History godoc
// @Summary Workflow history of a request
// @Tags Permissions
// @Produce json
// @Param id path string true "Permission id"
// @Success 200 {object} response.Envelope
// @Router /permissions/{id}/history [get]
func (h *PermissionHandler) History(c *gin.Context) {
	entries, err := h.service.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Timeline godoc
// @Summary Event timeline of a request
// @Tags Permissions
// @Produce json
// @Param id path string true "Permission id"
// @Success 200 {object} response.Envelope
// @Router /permissions/{id}/events [get]
func (h *PermissionHandler) Timeline(c *gin.Context) {
	events, err := h.service.Timeline(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// TeacherDecide godoc
// @Summary Apply a teacher verdict
// @Tags Permissions
// @Accept json
// @Produce json
// @Param id path string true "Permission id"
// @Param payload body dto.DecisionRequest true "Verdict"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /permissions/{id}/teacher-decision [post]
func (h *PermissionHandler) TeacherDecide(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrSessionExpired)
		return
	}

	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	perm, err := h.service.TeacherDecide(c.Request.Context(), actor, c.Param("id"), models.Decision(req.Decision))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, perm, nil)
}

// HodDecide godoc
// @Summary Apply an HOD verdict
// @Tags Permissions
// @Accept json
// @Produce json
// @Param id path string true "Permission id"
// @Param payload body dto.DecisionRequest true "Verdict"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /permissions/{id}/hod-decision [post]
func (h *PermissionHandler) HodDecide(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrSessionExpired)
		return
	}

	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	perm, err := h.service.HodDecide(c.Request.Context(), actor, c.Param("id"), models.Decision(req.Decision))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, perm, nil)
}

// Reject godoc
// @Summary Reject a pending request
// @Tags Permissions
// @Accept json
// @Produce json
// @Param id path string true "Permission id"
// @Param payload body dto.RejectRequest true "Rejection"
// @Success 200 {object} response.Envelope
// @Router /permissions/{id}/reject [post]
func (h *PermissionHandler) Reject(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrSessionExpired)
		return
	}

	var req dto.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reject payload"))
		return
	}

	perm, err := h.service.Reject(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, perm, nil)
}

// Block godoc
// @Summary Reject a request and block its student
// @Tags Permissions
// @Accept json
// @Produce json
// @Param id path string true "Permission id"
// @Param payload body dto.BlockStudentRequest true "Block payload"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /permissions/{id}/block [post]
func (h *PermissionHandler) Block(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrSessionExpired)
		return
	}

	var req dto.BlockStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid block payload"))
		return
	}

	if err := h.service.BlockStudent(c.Request.Context(), actor, c.Param("id"), req.StudentID, req.Reason); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
