package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type leaveService interface {
	Apply(ctx context.Context, req dto.ApplyLeaveRequest, facultyID string) (*models.Leave, error)
	List(ctx context.Context, query dto.LeaveQuery, viewer *models.JWTClaims) ([]models.Leave, *models.Pagination, error)
	Review(ctx context.Context, id string, req dto.ReviewLeaveRequest, reviewer *models.JWTClaims) (*dto.ReviewLeaveResponse, error)
}

// LeaveHandler exposes the leave application workflow.
type LeaveHandler struct {
	service leaveService
}

// NewLeaveHandler constructs the handler.
func NewLeaveHandler(service *service.LeaveService) *LeaveHandler {
	return &LeaveHandler{service: service}
}

// Apply godoc
// @Summary Apply for leave
// @Tags Leaves
// @Accept json
// @Produce json
// @Param payload body dto.ApplyLeaveRequest true "Leave range"
// @Success 201 {object} response.Envelope
// @Router /leaves [post]
func (h *LeaveHandler) Apply(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.ApplyLeaveRequest
	if !bindJSON(c, &req, "invalid leave payload") {
		return
	}
	leave, err := h.service.Apply(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, leave)
}

// List godoc
// @Summary List leave applications visible to the caller
// @Tags Leaves
// @Produce json
// @Param facultyId query string false "Faculty"
// @Param departmentId query string false "Department"
// @Param status query string false "PENDING, APPROVED or REJECTED"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /leaves [get]
func (h *LeaveHandler) List(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var query dto.LeaveQuery
	if !bindQuery(c, &query, "invalid leave query") {
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Review godoc
// @Summary Approve or reject a pending leave
// @Tags Leaves
// @Accept json
// @Produce json
// @Param id path string true "Leave ID"
// @Param payload body dto.ReviewLeaveRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leaves/{id}/review [post]
func (h *LeaveHandler) Review(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.ReviewLeaveRequest
	if !bindJSON(c, &req, "invalid review payload") {
		return
	}
	result, err := h.service.Review(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
