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

// UserHandler exposes account management endpoints.
type UserHandler struct {
	service *service.UserService
}

// NewUserHandler creates a new handler.
func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{service: svc}
}

// List godoc
// @Summary List campus accounts
// @Tags Users
// @Produce json
// @Param role query string false "Filter by role"
// @Param approved query bool false "Filter by approval state"
// @Param search query string false "Search email or name"
// @Success 200 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrSessionExpired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filter := models.UserFilter{
		Department: c.Query("department"),
		Search:     c.Query("search"),
		Page:       page,
		PageSize:   pageSize,
	}
	if role := c.Query("role"); role != "" {
		r := models.UserRole(role)
		filter.Role = &r
	}
	if approved := c.Query("approved"); approved != "" {
		v := approved == "true"
		filter.Approved = &v
	}
	if blocked := c.Query("blocked"); blocked != "" {
		v := blocked == "true"
		filter.Blocked = &v
	}

	users, total, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, users, &models.Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Fetch one account
// @Tags Users
// @Produce json
// @Param id path string true "User id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Approve godoc
// @Summary Activate a pending account
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User id"
// @Param payload body dto.ApproveUserRequest true "Role to grant"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/{id}/approve [post]
func (h *UserHandler) Approve(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrSessionExpired)
		return
	}

	var req dto.ApproveUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid approval payload"))
		return
	}

	user, err := h.service.Approve(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}

// Block godoc
// @Summary Block an account
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User id"
// @Param payload body dto.BlockUserRequest true "Block payload"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/{id}/block [post]
func (h *UserHandler) Block(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrSessionExpired)
		return
	}

	var req dto.BlockUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid block payload"))
		return
	}

	if err := h.service.Block(c.Request.Context(), actor, c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Unblock godoc
// @Summary Unblock an account
// @Tags Users
// @Produce json
// @Param id path string true "User id"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/{id}/unblock [post]
func (h *UserHandler) Unblock(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrSessionExpired)
		return
	}

	if err := h.service.Unblock(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// BulkImport godoc
// @Summary Import a roster CSV
// @Tags Users
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Roster CSV"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/import [post]
func (h *UserHandler) BulkImport(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrSessionExpired)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "a roster file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read roster file"))
		return
	}
	defer file.Close() //nolint:errcheck

	summary, err := h.service.BulkImport(c.Request.Context(), actor, file)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}
