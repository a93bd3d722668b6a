package models

import "time"

// LeaveStatus represents the review state of a leave application.
type LeaveStatus string

const (
	LeaveStatusPending  LeaveStatus = "PENDING"
	LeaveStatusApproved LeaveStatus = "APPROVED"
	LeaveStatusRejected LeaveStatus = "REJECTED"
)

// Leave is a faculty absence request over an inclusive date range (YYYY-MM-DD).
type Leave struct {
	ID           string      `db:"id" json:"id"`
	FacultyID    string      `db:"faculty_id" json:"faculty_id"`
	DepartmentID string      `db:"department_id" json:"department_id"`
	StartDate    string      `db:"start_date" json:"start_date"`
	EndDate      string      `db:"end_date" json:"end_date"`
	Reason       string      `db:"reason" json:"reason"`
	Status       LeaveStatus `db:"status" json:"status"`
	ReviewedBy   *string     `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time  `db:"reviewed_at" json:"reviewed_at,omitempty"`
	AppliedAt    time.Time   `db:"applied_at" json:"applied_at"`
}

// LeaveFilter narrows leave listings.
type LeaveFilter struct {
	FacultyID    string
	DepartmentID string
	Status       []LeaveStatus
	Limit        int
	Offset       int
}
