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

type substituteFinder interface {
	FindAvailable(ctx context.Context, departmentID, date, periodID, requesterID string) ([]models.Faculty, error)
}

// SubstituteHandler lists faculty free to cover a dated period.
type SubstituteHandler struct {
	service substituteFinder
}

// NewSubstituteHandler constructs the handler.
func NewSubstituteHandler(service *service.SubstituteService) *SubstituteHandler {
	return &SubstituteHandler{service: service}
}

// Available godoc
// @Summary Faculty free for a period on a date
// @Tags Substitutes
// @Produce json
// @Param departmentId query string true "Department"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param periodId query string true "Period (P1..P7)"
// @Param requesterId query string false "Faculty to exclude, defaults to the caller"
// @Success 200 {object} response.Envelope
// @Router /substitutes [get]
func (h *SubstituteHandler) Available(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var query dto.SubstituteQuery
	if !bindQuery(c, &query, "invalid substitute query") {
		return
	}
	if query.RequesterID == "" {
		query.RequesterID = claims.UserID
	}
	free, err := h.service.FindAvailable(c.Request.Context(), query.DepartmentID, query.Date, query.PeriodID, query.RequesterID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, free, nil)
}
