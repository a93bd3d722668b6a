package models

import "time"

// RearrangementStatus tracks the substitution request lifecycle.
type RearrangementStatus string

const (
	RearrangementStatusPending  RearrangementStatus = "pending"
	RearrangementStatusAccepted RearrangementStatus = "accepted"
	RearrangementStatusRejected RearrangementStatus = "rejected"
)

// IsTerminal reports whether no further transition is allowed.
func (s RearrangementStatus) IsTerminal() bool {
	return s == RearrangementStatusAccepted || s == RearrangementStatusRejected
}

// Placeholder context used when a request cannot be matched to a timetable cell.
const (
	PlaceholderSubjectName = "Subject TBD"
	PlaceholderClassLabel  = "Class"
)

// RearrangementRequest asks a substitute to cover one period for an absent faculty member.
type RearrangementRequest struct {
	ID                    string              `db:"id" json:"id"`
	Date                  string              `db:"date" json:"date"`
	DayOfWeek             string              `db:"day_of_week" json:"day_of_week"`
	SlotID                string              `db:"slot_id" json:"slot_id"`
	DepartmentID          string              `db:"department_id" json:"department_id"`
	RequesterFacultyID    string              `db:"requester_faculty_id" json:"requester_faculty_id"`
	RequesterFacultyName  string              `db:"requester_faculty_name" json:"requester_faculty_name"`
	SubstituteFacultyID   string              `db:"substitute_faculty_id" json:"substitute_faculty_id"`
	SubstituteFacultyName string              `db:"substitute_faculty_name" json:"substitute_faculty_name"`
	SubjectName           string              `db:"subject_name" json:"subject_name"`
	ClassLabel            string              `db:"class_label" json:"class_label"`
	SourceTimetableID     *string             `db:"source_timetable_id" json:"source_timetable_id,omitempty"`
	Status                RearrangementStatus `db:"status" json:"status"`
	CreatedAt             time.Time           `db:"created_at" json:"created_at"`
	RespondedAt           *time.Time          `db:"responded_at" json:"responded_at,omitempty"`
}

// RearrangementFilter narrows request listings.
type RearrangementFilter struct {
	DepartmentID string
	Date         string
	SlotID       string
	RequesterID  string
	SubstituteID string
	Status       []RearrangementStatus
	Limit        int
	Offset       int
}
