package models

// SubjectType classifies how a subject is placed on the weekly grid.
type SubjectType string

const (
	SubjectTypeTheory SubjectType = "Theory"
	SubjectTypeLab    SubjectType = "Lab"
	SubjectTypeFiller SubjectType = "Filler"
)

// LabBlockSize is the fixed number of contiguous periods a lab occupies per week.
const LabBlockSize = 3

// Subject represents a course offered to one department/year/semester.
type Subject struct {
	ID                   string      `db:"id" json:"id"`
	Name                 string      `db:"name" json:"name"`
	Code                 string      `db:"code" json:"code"`
	Type                 SubjectType `db:"type" json:"type"`
	HoursPerWeek         int         `db:"hours_per_week" json:"hours_per_week"`
	DepartmentID         string      `db:"department_id" json:"department_id"`
	Year                 int         `db:"year" json:"year"`
	Semester             int         `db:"semester" json:"semester"`
	FacultyID            string      `db:"faculty_id" json:"faculty_id,omitempty"`
	FacultyName          string      `db:"faculty_name" json:"faculty_name,omitempty"`
	SecondaryFacultyID   string      `db:"secondary_faculty_id" json:"secondary_faculty_id,omitempty"`
	SecondaryFacultyName string      `db:"secondary_faculty_name" json:"secondary_faculty_name,omitempty"`
}

// IsLab reports whether the subject is placed as a contiguous block.
func (s Subject) IsLab() bool {
	return s.Type == SubjectTypeLab
}

// IsTheory reports whether the subject is placed as single periods.
func (s Subject) IsTheory() bool {
	return s.Type == SubjectTypeTheory
}

// HasSecondaryFaculty reports whether the subject is co-taught.
func (s Subject) HasSecondaryFaculty() bool {
	return s.SecondaryFacultyID != "" || s.SecondaryFacultyName != ""
}

// SubjectFilter narrows subject listings for a generation request.
type SubjectFilter struct {
	DepartmentID string
	Year         int
}
