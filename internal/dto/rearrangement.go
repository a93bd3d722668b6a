package dto

import "github.com/noah-isme/timetable-api/internal/models"

// SubstituteQuery looks up free faculty for one dated period.
type SubstituteQuery struct {
	DepartmentID string `form:"departmentId" json:"departmentId" validate:"required"`
	Date         string `form:"date" json:"date" validate:"required,datetime=2006-01-02"`
	PeriodID     string `form:"periodId" json:"periodId" validate:"required"`
	RequesterID  string `form:"requesterId" json:"requesterId"`
}

// CreateRearrangementRequest asks a substitute to cover one period.
type CreateRearrangementRequest struct {
	Date                string `json:"date" validate:"required,datetime=2006-01-02"`
	PeriodID            string `json:"periodId" validate:"required"`
	SubstituteFacultyID string `json:"substituteFacultyId" validate:"required"`
	DepartmentID        string `json:"departmentId"`
	SubjectName         string `json:"subjectName"`
	ClassLabel          string `json:"classLabel"`
	TimetableID         string `json:"timetableId"`
}

// RespondRearrangementRequest carries the substitute's decision.
type RespondRearrangementRequest struct {
	Decision models.RearrangementStatus `json:"decision" validate:"required,oneof=accepted rejected"`
}

// RearrangementQuery filters request listings.
type RearrangementQuery struct {
	DepartmentID string `form:"departmentId"`
	Status       string `form:"status"`
	RequesterID  string `form:"requesterId"`
	SubstituteID string `form:"substituteId"`
	Date         string `form:"date" validate:"omitempty,datetime=2006-01-02"`
	Page         int    `form:"page"`
	PageSize     int    `form:"pageSize"`
}

// FullDayAbsenceRequest triggers automatic reassignment for a whole day.
type FullDayAbsenceRequest struct {
	FacultyID string `json:"facultyId" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
}

// Slot outcomes of a full-day absence.
const (
	SlotOutcomeAssigned  = "assigned"
	SlotOutcomeCancelled = "cancelled"
)

// UpdatedSlot describes one cell changed by full-day absence handling.
type UpdatedSlot struct {
	TimetableID           string `json:"timetableId"`
	GroupKey              string `json:"groupKey"`
	ClassLabel            string `json:"classLabel"`
	Day                   string `json:"day"`
	Period                string `json:"period"`
	SubjectName           string `json:"subjectName"`
	SubstituteFacultyID   string `json:"substituteFacultyId,omitempty"`
	SubstituteFacultyName string `json:"substituteFacultyName,omitempty"`
	Outcome               string `json:"outcome"`
}

// FullDayAbsenceResult lists the changed slots and the versions created for them.
type FullDayAbsenceResult struct {
	FacultyID       string        `json:"facultyId"`
	Date            string        `json:"date"`
	Day             string        `json:"day"`
	UpdatedSlots    []UpdatedSlot `json:"updatedSlots"`
	NewTimetableIDs []string      `json:"newTimetableIds"`
}
