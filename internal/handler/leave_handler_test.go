package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type leaveServiceMock struct {
	appliedBy string
	viewer    *models.JWTClaims
	query     dto.LeaveQuery
	reviewer  *models.JWTClaims
}

func (m *leaveServiceMock) Apply(ctx context.Context, req dto.ApplyLeaveRequest, facultyID string) (*models.Leave, error) {
	m.appliedBy = facultyID
	return &models.Leave{ID: "leave-1", FacultyID: facultyID, StartDate: req.StartDate, EndDate: req.EndDate, Status: models.LeaveStatusPending}, nil
}

func (m *leaveServiceMock) List(ctx context.Context, query dto.LeaveQuery, viewer *models.JWTClaims) ([]models.Leave, *models.Pagination, error) {
	m.query = query
	m.viewer = viewer
	return []models.Leave{}, &models.Pagination{Page: 1, PageSize: 50}, nil
}

func (m *leaveServiceMock) Review(ctx context.Context, id string, req dto.ReviewLeaveRequest, reviewer *models.JWTClaims) (*dto.ReviewLeaveResponse, error) {
	m.reviewer = reviewer
	if id == "leave-missing" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "leave not found")
	}
	return &dto.ReviewLeaveResponse{Leave: &models.Leave{ID: id, Status: req.Decision}}, nil
}

func TestLeaveHandlerFlow(t *testing.T) {
	svc := &leaveServiceMock{}
	h := &LeaveHandler{service: svc}

	faculty := newTestRouter(facultyClaims("f-rao"))
	faculty.POST("/leaves", h.Apply)
	faculty.GET("/leaves", h.List)

	w := performJSON(faculty, http.MethodPost, "/leaves", map[string]string{"startDate": "2026-10-19", "endDate": "2026-10-20"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "f-rao", svc.appliedBy)

	w = performJSON(faculty, http.MethodGet, "/leaves?status=PENDING", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "f-rao", svc.viewer.UserID)
	assert.Equal(t, "PENDING", svc.query.Status)

	hod := newTestRouter(hodClaims("CSE"))
	hod.POST("/leaves/:id/review", h.Review)
	w = performJSON(hod, http.MethodPost, "/leaves/leave-1/review", map[string]string{"decision": "APPROVED"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RoleHOD, svc.reviewer.Role)

	w = performJSON(hod, http.MethodPost, "/leaves/leave-missing/review", map[string]string{"decision": "APPROVED"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = performJSON(hod, http.MethodPost, "/leaves/leave-1/review", `{"decision":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
