package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/service"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type timetableService interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
	Publish(ctx context.Context, req dto.PublishTimetableRequest, publishedBy string) (*models.Timetable, error)
	Live(ctx context.Context, query dto.TimetableQuery) (*models.Timetable, bool, error)
	Versions(ctx context.Context, query dto.TimetableQuery) ([]models.Timetable, error)
	Get(ctx context.Context, id string) (*models.Timetable, error)
	FacultyConsolidated(ctx context.Context, query dto.FacultyConsolidatedQuery) (*dto.FacultyConsolidatedResponse, error)
}

// TimetableHandler exposes generation, publishing and timetable lookup endpoints.
type TimetableHandler struct {
	service timetableService
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(service *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{service: service}
}

// Generate godoc
// @Summary Generate ranked timetable candidates for a section
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Section and generation options"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.GenerateTimetableRequest
	if !bindJSON(c, &req, "invalid generate payload") {
		return
	}
	if !departmentAllowed(claims, req.DepartmentID) {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "cannot generate for another department"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Publish godoc
// @Summary Publish a candidate or an edited schedule as the live version
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.PublishTimetableRequest true "Publish payload"
// @Success 201 {object} response.Envelope
// @Router /timetables/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.PublishTimetableRequest
	if !bindJSON(c, &req, "invalid publish payload") {
		return
	}
	if !departmentAllowed(claims, req.DepartmentID) {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "cannot publish for another department"))
		return
	}
	record, err := h.service.Publish(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Live godoc
// @Summary Live timetable of a section
// @Tags Timetables
// @Produce json
// @Param departmentId query string true "Department"
// @Param year query int true "Year"
// @Param semester query int true "Semester"
// @Param section query string true "Section"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/live [get]
func (h *TimetableHandler) Live(c *gin.Context) {
	var query dto.TimetableQuery
	if !bindQuery(c, &query, "invalid timetable query") {
		return
	}
	live, cacheHit, err := h.service.Live(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, live, nil, middleware.ResponseMeta(c))
}

// Versions godoc
// @Summary Every published version of a section, newest first
// @Tags Timetables
// @Produce json
// @Param departmentId query string true "Department"
// @Param year query int true "Year"
// @Param semester query int true "Semester"
// @Param section query string true "Section"
// @Success 200 {object} response.Envelope
// @Router /timetables/versions [get]
func (h *TimetableHandler) Versions(c *gin.Context) {
	var query dto.TimetableQuery
	if !bindQuery(c, &query, "invalid timetable query") {
		return
	}
	versions, err := h.service.Versions(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// Get godoc
// @Summary Timetable version by id
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	timetable, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}

// FacultyConsolidated godoc
// @Summary Merged weekly grid of one faculty member across the department's live timetables
// @Tags Timetables
// @Produce json
// @Param departmentId query string true "Department"
// @Param facultyId query string false "Faculty ID, defaults to the caller"
// @Param facultyName query string false "Faculty name"
// @Success 200 {object} response.Envelope
// @Router /timetables/faculty-consolidated [get]
func (h *TimetableHandler) FacultyConsolidated(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var query dto.FacultyConsolidatedQuery
	if !bindQuery(c, &query, "invalid consolidated query") {
		return
	}
	if query.FacultyID == "" && query.FacultyName == "" {
		query.FacultyID = claims.UserID
	}
	result, err := h.service.FacultyConsolidated(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
