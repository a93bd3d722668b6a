package dto

import (
	"time"

	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
)

// GenerateTimetableRequest asks the engine for ranked candidates for one section.
type GenerateTimetableRequest struct {
	DepartmentID        string   `json:"departmentId" validate:"required"`
	Year                int      `json:"year" validate:"required,min=1,max=6"`
	Semester            int      `json:"semester" validate:"required,min=1,max=12"`
	Section             string   `json:"section" validate:"required,max=8"`
	AvailableFacultyIDs []string `json:"availableFacultyIds" validate:"omitempty,dive,required"`
	Candidates          int      `json:"candidates" validate:"omitempty,min=1,max=20"`
	Seed                *int64   `json:"seed"`
}

// GenerateTimetableResponse returns the stored generation and its ranked candidates.
type GenerateTimetableResponse struct {
	GenerationID string                `json:"generationId"`
	GroupKey     string                `json:"groupKey"`
	ExpiresAt    time.Time             `json:"expiresAt"`
	Candidates   []scheduler.Candidate `json:"candidates"`
}

// PublishTimetableRequest promotes a stored candidate, or an inline schedule, to the live version.
type PublishTimetableRequest struct {
	DepartmentID  string          `json:"departmentId" validate:"required"`
	Year          int             `json:"year" validate:"required,min=1,max=6"`
	Semester      int             `json:"semester" validate:"required,min=1,max=12"`
	Section       string          `json:"section" validate:"required,max=8"`
	GenerationID  string          `json:"generationId" validate:"required_with=CandidateID"`
	CandidateID   string          `json:"candidateId" validate:"required_with=GenerationID"`
	Schedule      models.Schedule `json:"schedule"`
	Score         *float64        `json:"score"`
	Regulation    string          `json:"regulation" validate:"omitempty,max=16"`
	RoomNo        string          `json:"roomNo"`
	ClassIncharge string          `json:"classIncharge"`
	Wef           string          `json:"wef" validate:"omitempty,datetime=2006-01-02"`
}

// TimetableQuery identifies one department/year/semester/section group.
type TimetableQuery struct {
	DepartmentID string `form:"departmentId" json:"departmentId" validate:"required"`
	Year         int    `form:"year" json:"year" validate:"required,min=1,max=6"`
	Semester     int    `form:"semester" json:"semester" validate:"required,min=1,max=12"`
	Section      string `form:"section" json:"section" validate:"required"`
}

// FacultyConsolidatedQuery selects whose merged week to build.
type FacultyConsolidatedQuery struct {
	DepartmentID string `form:"departmentId" json:"departmentId" validate:"required"`
	FacultyID    string `form:"facultyId" json:"facultyId"`
	FacultyName  string `form:"facultyName" json:"facultyName"`
}

// ConsolidatedCell is one period in a faculty member's merged week.
type ConsolidatedCell struct {
	SubjectName string          `json:"subjectName"`
	ClassLabel  string          `json:"classLabel"`
	RoomNumber  string          `json:"roomNumber,omitempty"`
	Type        models.SlotType `json:"type"`
}

// FacultyConsolidatedResponse is weekday -> period key -> cell for one faculty member.
type FacultyConsolidatedResponse struct {
	FacultyID   string                                  `json:"facultyId,omitempty"`
	FacultyName string                                  `json:"facultyName,omitempty"`
	Schedule    map[string]map[string]*ConsolidatedCell `json:"schedule"`
	Sources     []string                                `json:"sources"`
}
