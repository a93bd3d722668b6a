package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/middleware/requestid"
)

type leaveStore interface {
	Create(ctx context.Context, leave *models.Leave) error
	FindByID(ctx context.Context, id string) (*models.Leave, error)
	List(ctx context.Context, filter models.LeaveFilter) ([]models.Leave, error)
	UpdateStatus(ctx context.Context, id string, status models.LeaveStatus, reviewerID string, reviewedAt time.Time) error
}

type facultyFinder interface {
	FindByID(ctx context.Context, id string) (*models.Faculty, error)
}

type absenceHandler interface {
	HandleFullDayAbsence(ctx context.Context, facultyID, date string) (*dto.FullDayAbsenceResult, error)
}

// LeaveService manages leave applications and triggers rearrangement on approval.
type LeaveService struct {
	repo      leaveStore
	faculty   facultyFinder
	absences  absenceHandler
	notifier  Notifier
	validator *validator.Validate
	logger    *zap.Logger
	maxDays   int
	now       func() time.Time
}

// NewLeaveService constructs the service. maxDays bounds the length of one application.
func NewLeaveService(repo leaveStore, faculty facultyFinder, absences absenceHandler, notifier Notifier, validate *validator.Validate, logger *zap.Logger, maxDays int) *LeaveService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxDays <= 0 {
		maxDays = 31
	}
	return &LeaveService{
		repo:      repo,
		faculty:   faculty,
		absences:  absences,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
		maxDays:   maxDays,
		now:       time.Now,
	}
}

// Apply files a pending leave application for the faculty member.
func (s *LeaveService) Apply(ctx context.Context, req dto.ApplyLeaveRequest, facultyID string) (*models.Leave, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leave payload")
	}
	start, _ := time.Parse(DateLayout, req.StartDate)
	end, _ := time.Parse(DateLayout, req.EndDate)
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate must not precede startDate")
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > s.maxDays {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("leave may span at most %d days", s.maxDays))
	}

	member, err := s.faculty.FindByID(ctx, facultyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only faculty members can apply for leave")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}

	leave := &models.Leave{
		FacultyID:    member.ID,
		DepartmentID: member.DepartmentID,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Reason:       strings.TrimSpace(req.Reason),
		Status:       models.LeaveStatusPending,
	}
	if err := s.repo.Create(ctx, leave); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create leave application")
	}

	if s.notifier != nil {
		s.notifier.NotifyRole(ctx, models.RoleHOD, member.DepartmentID, models.Notification{
			Title:     "Leave Request",
			Message:   fmt.Sprintf("%s applied for leave from %s to %s.", member.Name, leave.StartDate, leave.EndDate),
			Type:      models.NotificationTypeRequest,
			Link:      "/leaves",
			RelatedID: leave.ID,
		})
	}
	return leave, nil
}

// List returns leave applications visible to the viewer. Faculty only see their own and HODs
// default to their department.
func (s *LeaveService) List(ctx context.Context, query dto.LeaveQuery, viewer *models.JWTClaims) ([]models.Leave, *models.Pagination, error) {
	if viewer == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.LeaveFilter{FacultyID: query.FacultyID, DepartmentID: query.DepartmentID}
	switch viewer.Role {
	case models.RoleAdmin:
	case models.RoleHOD:
		if filter.DepartmentID == "" {
			filter.DepartmentID = viewer.DepartmentID
		}
	default:
		filter.FacultyID = viewer.UserID
	}
	for _, raw := range splitCSV(query.Status) {
		status := models.LeaveStatus(strings.ToUpper(raw))
		switch status {
		case models.LeaveStatusPending, models.LeaveStatusApproved, models.LeaveStatusRejected:
			filter.Status = append(filter.Status, status)
		default:
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", raw))
		}
	}
	page, size, limit, offset := pageWindow(query.Page, query.PageSize)
	filter.Limit, filter.Offset = limit, offset

	leaves, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list leave applications")
	}
	return leaves, &models.Pagination{Page: page, PageSize: size, TotalCount: len(leaves)}, nil
}

// Review approves or rejects a pending application. Approval rearranges every covered day except Sundays.
func (s *LeaveService) Review(ctx context.Context, id string, req dto.ReviewLeaveRequest, reviewer *models.JWTClaims) (*dto.ReviewLeaveResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	if !reviewer.IsReviewer() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only HOD or admin may review leave")
	}
	leave, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave application")
	}
	if reviewer.Role == models.RoleHOD && reviewer.DepartmentID != "" && reviewer.DepartmentID != leave.DepartmentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "leave belongs to another department")
	}
	if leave.Status != models.LeaveStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "leave application already reviewed")
	}

	reviewedAt := s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, req.Decision, reviewer.UserID, reviewedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "leave application already reviewed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update leave application")
	}
	reviewerID := reviewer.UserID
	leave.Status = req.Decision
	leave.ReviewedBy = &reviewerID
	leave.ReviewedAt = &reviewedAt

	resp := &dto.ReviewLeaveResponse{Leave: leave}
	message := fmt.Sprintf("Your leave for %s to %s has been REJECTED.", leave.StartDate, leave.EndDate)
	if req.Decision == models.LeaveStatusApproved {
		resp.Rearrangements = s.rearrange(ctx, leave)
		message = fmt.Sprintf("Your leave for %s to %s is APPROVED. Classes have been rearranged.", leave.StartDate, leave.EndDate)
	}

	if s.notifier != nil {
		s.notifier.MarkActionTaken(ctx, reviewer.UserID, leave.ID)
		s.notifier.Notify(ctx, models.Notification{
			RecipientID: leave.FacultyID,
			Title:       "Leave " + string(req.Decision),
			Message:     message,
			Type:        models.NotificationTypeResponse,
			Link:        "/leaves",
			RelatedID:   leave.ID,
		})
	}
	return resp, nil
}

// rearrange runs full-day absence handling for each working day of the leave. A failing day
// is logged and skipped so the remaining days are still covered.
func (s *LeaveService) rearrange(ctx context.Context, leave *models.Leave) []dto.FullDayAbsenceResult {
	results := make([]dto.FullDayAbsenceResult, 0)
	if s.absences == nil {
		return results
	}
	for _, date := range leaveDates(leave.StartDate, leave.EndDate) {
		result, err := s.absences.HandleFullDayAbsence(ctx, leave.FacultyID, date)
		if err != nil {
			s.logger.Error("rearrangement for approved leave failed",
				zap.String("leave_id", leave.ID),
				zap.String("date", date),
				requestid.Field(ctx),
				zap.Error(err),
			)
			continue
		}
		results = append(results, *result)
	}
	return results
}

// leaveDates expands an inclusive date range, skipping Sundays.
func leaveDates(start, end string) []string {
	from, err := time.Parse(DateLayout, start)
	if err != nil {
		return nil
	}
	to, err := time.Parse(DateLayout, end)
	if err != nil {
		return nil
	}
	dates := make([]string, 0)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Sunday {
			continue
		}
		dates = append(dates, d.Format(DateLayout))
	}
	return dates
}
