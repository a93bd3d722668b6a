package dto

import "github.com/noah-isme/timetable-api/internal/models"

// ApplyLeaveRequest is submitted by the absent faculty member.
type ApplyLeaveRequest struct {
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
	Reason    string `json:"reason" validate:"omitempty,max=500"`
}

// ReviewLeaveRequest records an HOD or admin decision.
type ReviewLeaveRequest struct {
	Decision models.LeaveStatus `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
}

// LeaveQuery filters leave listings.
type LeaveQuery struct {
	FacultyID    string `form:"facultyId"`
	DepartmentID string `form:"departmentId"`
	Status       string `form:"status"`
	Page         int    `form:"page"`
	PageSize     int    `form:"pageSize"`
}

// ReviewLeaveResponse returns the reviewed leave and any rearrangements it triggered.
type ReviewLeaveResponse struct {
	Leave          *models.Leave          `json:"leave"`
	Rearrangements []FullDayAbsenceResult `json:"rearrangements,omitempty"`
}
