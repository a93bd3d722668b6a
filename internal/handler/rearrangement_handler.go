package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/service"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type rearrangementService interface {
	Create(ctx context.Context, req dto.CreateRearrangementRequest, requesterID string) (*models.RearrangementRequest, error)
	Respond(ctx context.Context, id string, req dto.RespondRearrangementRequest, responderID string) (*models.RearrangementRequest, error)
	Get(ctx context.Context, id string) (*models.RearrangementRequest, error)
	List(ctx context.Context, query dto.RearrangementQuery) ([]models.RearrangementRequest, *models.Pagination, error)
	HandleFullDayAbsence(ctx context.Context, facultyID, date string) (*dto.FullDayAbsenceResult, error)
}

// RearrangementHandler serves substitution requests and full-day absence handling.
type RearrangementHandler struct {
	service rearrangementService
}

// NewRearrangementHandler constructs the handler.
func NewRearrangementHandler(service *service.RearrangementService) *RearrangementHandler {
	return &RearrangementHandler{service: service}
}

// Create godoc
// @Summary Ask a colleague to cover one period
// @Tags Rearrangements
// @Accept json
// @Produce json
// @Param payload body dto.CreateRearrangementRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /rearrangements [post]
func (h *RearrangementHandler) Create(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.CreateRearrangementRequest
	if !bindJSON(c, &req, "invalid rearrangement payload") {
		return
	}
	record, err := h.service.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// List godoc
// @Summary List rearrangement requests
// @Tags Rearrangements
// @Produce json
// @Param departmentId query string false "Department"
// @Param status query string false "pending, accepted or rejected"
// @Param requesterId query string false "Requester faculty"
// @Param substituteId query string false "Substitute faculty"
// @Param date query string false "Date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /rearrangements [get]
func (h *RearrangementHandler) List(c *gin.Context) {
	var query dto.RearrangementQuery
	if !bindQuery(c, &query, "invalid rearrangement query") {
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Rearrangement request by id
// @Tags Rearrangements
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /rearrangements/{id} [get]
func (h *RearrangementHandler) Get(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Respond godoc
// @Summary Accept or reject a request addressed to the caller
// @Tags Rearrangements
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.RespondRearrangementRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rearrangements/{id}/respond [post]
func (h *RearrangementHandler) Respond(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.RespondRearrangementRequest
	if !bindJSON(c, &req, "invalid response payload") {
		return
	}
	record, err := h.service.Respond(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Absence godoc
// @Summary Reassign every period of an absent faculty member for one day
// @Tags Rearrangements
// @Accept json
// @Produce json
// @Param payload body dto.FullDayAbsenceRequest true "Absent faculty and date"
// @Success 200 {object} response.Envelope
// @Router /rearrangements/absence [post]
func (h *RearrangementHandler) Absence(c *gin.Context) {
	var req dto.FullDayAbsenceRequest
	if !bindJSON(c, &req, "invalid absence payload") {
		return
	}
	if req.FacultyID == "" || req.Date == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "facultyId and date are required"))
		return
	}
	result, err := h.service.HandleFullDayAbsence(c.Request.Context(), req.FacultyID, req.Date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
