package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Weekdays lists the teaching days in grid order.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// DefaultPeriodsPerDay is the number of periods on a teaching day.
const DefaultPeriodsPerDay = 7

// SlotType tags how a grid entry was produced.
type SlotType string

const (
	SlotTypeTheory      SlotType = "Theory"
	SlotTypeTheoryExtra SlotType = "Theory (Extra)"
	SlotTypeLab         SlotType = "Lab"
	SlotTypeFiller      SlotType = "Filler"
)

// IsAcademic reports whether the slot counts as a taught class.
func (t SlotType) IsAcademic() bool {
	return t == SlotTypeTheory || t == SlotTypeTheoryExtra || t == SlotTypeLab
}

// CancelledFacultyName marks a slot whose owner was absent and had no substitute.
const CancelledFacultyName = "CANCELLED (No Sub)"

// SlotEntry is one occupied (day, period) cell.
type SlotEntry struct {
	SubjectID            string   `json:"subjectId,omitempty" mapstructure:"subjectId"`
	SubjectName          string   `json:"subjectName" mapstructure:"subjectName"`
	SubjectCode          string   `json:"subjectCode,omitempty" mapstructure:"subjectCode"`
	FacultyID            string   `json:"facultyId,omitempty" mapstructure:"facultyId"`
	FacultyName          string   `json:"facultyName" mapstructure:"facultyName"`
	SecondaryFacultyID   string   `json:"secondaryFacultyId,omitempty" mapstructure:"secondaryFacultyId"`
	SecondaryFacultyName string   `json:"secondaryFacultyName,omitempty" mapstructure:"secondaryFacultyName"`
	RoomNumber           string   `json:"roomNumber,omitempty" mapstructure:"roomNumber"`
	Type                 SlotType `json:"type" mapstructure:"type"`
	IsSubstitution       bool     `json:"isSubstitution,omitempty" mapstructure:"isSubstitution"`
	OriginalFaculty      string   `json:"originalFaculty,omitempty" mapstructure:"originalFaculty"`
	OriginalFacultyID    string   `json:"originalFacultyId,omitempty" mapstructure:"originalFacultyId"`
}

// Clone returns a copy safe to mutate.
func (e *SlotEntry) Clone() *SlotEntry {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// TaughtBy reports whether the faculty (by id, falling back to name) teaches this slot.
func (e *SlotEntry) TaughtBy(facultyID, facultyName string) bool {
	if e == nil {
		return false
	}
	if facultyID != "" && (e.FacultyID == facultyID || e.SecondaryFacultyID == facultyID) {
		return true
	}
	if facultyName == "" {
		return false
	}
	return e.FacultyName == facultyName || e.SecondaryFacultyName == facultyName
}

// DaySchedule maps a period key ("P1".."P7") to its entry.
type DaySchedule map[string]*SlotEntry

// Schedule is the persisted timetable shape: weekday -> period key -> entry.
type Schedule map[string]DaySchedule

// PeriodKey renders an ordinal period as "P<n>".
func PeriodKey(period int) string {
	return "P" + strconv.Itoa(period)
}

// ParsePeriodKey accepts "P3" or "3" and returns the ordinal.
func ParsePeriodKey(key string) (int, error) {
	trimmed := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(key)), "P")
	n, err := strconv.Atoi(trimmed)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid period key %q", key)
	}
	return n, nil
}

// WeekdayName returns the English weekday name for the date.
func WeekdayName(date time.Time) string {
	return date.Weekday().String()
}

// Entry returns the entry at day/period key, or nil.
func (s Schedule) Entry(day, periodKey string) *SlotEntry {
	if s == nil {
		return nil
	}
	slots, ok := s[day]
	if !ok {
		return nil
	}
	return slots[periodKey]
}

// Clone deep-copies the schedule.
func (s Schedule) Clone() Schedule {
	if s == nil {
		return nil
	}
	out := make(Schedule, len(s))
	for day, slots := range s {
		copied := make(DaySchedule, len(slots))
		for key, entry := range slots {
			copied[key] = entry.Clone()
		}
		out[day] = copied
	}
	return out
}

// Value implements driver.Valuer.
func (s Schedule) Value() (driver.Value, error) {
	if s == nil {
		return []byte(`{}`), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner, tolerating legacy slot documents.
func (s *Schedule) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported schedule type %T", src)
	}
	if len(raw) == 0 {
		*s = nil
		return nil
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode schedule: %w", err)
	}
	decoded, err := DecodeSchedule(doc)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// TimetableStatus represents lifecycle phases for timetable versions.
type TimetableStatus string

const (
	TimetableStatusDraft     TimetableStatus = "DRAFT"
	TimetableStatusPublished TimetableStatus = "PUBLISHED"
	TimetableStatusArchived  TimetableStatus = "ARCHIVED"
)

// Timetable is one immutable version of a section's weekly grid.
type Timetable struct {
	ID                  string          `db:"id" json:"id"`
	GroupKey            string          `db:"group_key" json:"group_key"`
	DepartmentID        string          `db:"department_id" json:"department_id"`
	Year                int             `db:"year" json:"year"`
	Semester            int             `db:"semester" json:"semester"`
	Section             string          `db:"section" json:"section"`
	Version             int             `db:"version" json:"version"`
	Status              TimetableStatus `db:"status" json:"status"`
	IsLive              bool            `db:"is_live" json:"is_live"`
	Schedule            Schedule        `db:"schedule" json:"schedule"`
	Meta                types.JSONText  `db:"meta" json:"meta"`
	OriginalTimetableID *string         `db:"original_timetable_id" json:"original_timetable_id,omitempty"`
	RearrangedForDate   *string         `db:"rearranged_for_date" json:"rearranged_for_date,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// ClassLabel renders a human readable section label.
func (t Timetable) ClassLabel() string {
	return fmt.Sprintf("%d Year %s - Section %s", t.Year, t.DepartmentID, t.Section)
}

// RearrangementAudit records the slot changes applied for one absence.
type RearrangementAudit struct {
	Date      string    `json:"date"`
	AppliedAt time.Time `json:"appliedAt"`
	FacultyID string    `json:"facultyId"`
	Changes   []string  `json:"changes"`
}

// TimetableMeta is the structured content of Timetable.Meta.
type TimetableMeta struct {
	Score           float64              `json:"score"`
	Subjects        []string             `json:"subjects,omitempty"`
	Regulation      string               `json:"regulation,omitempty"`
	RoomNo          string               `json:"roomNo,omitempty"`
	ClassIncharge   string               `json:"classIncharge,omitempty"`
	Wef             string               `json:"wef,omitempty"`
	PublishedAt     time.Time            `json:"publishedAt"`
	PublishedBy     string               `json:"publishedBy,omitempty"`
	GenerationID    string               `json:"generationId,omitempty"`
	CandidateID     string               `json:"candidateId,omitempty"`
	Conflicts       []string             `json:"conflicts,omitempty"`
	IsRearranged    bool                 `json:"isRearranged,omitempty"`
	AffectedFaculty []RearrangementAudit `json:"affectedFaculty,omitempty"`
}

// DecodeMeta parses the JSON meta column.
func (t Timetable) DecodeMeta() (TimetableMeta, error) {
	var meta TimetableMeta
	if len(t.Meta) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(t.Meta, &meta); err != nil {
		return meta, fmt.Errorf("decode timetable meta: %w", err)
	}
	return meta, nil
}

// EncodeMeta serialises meta into the JSON column.
func (t *Timetable) EncodeMeta(meta TimetableMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode timetable meta: %w", err)
	}
	t.Meta = types.JSONText(raw)
	return nil
}

// TimetableGroupKey identifies the department/year/semester/section a timetable belongs to.
func TimetableGroupKey(departmentID string, year, semester int, section string) string {
	return fmt.Sprintf("tt_%s_Y%d_S%d_Sec%s", departmentID, year, semester, section)
}
