package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultMaxClassesPerDay  = 4
	DefaultMaxClassesPerWeek = 18
)

// Availability maps weekday -> period key -> available flag. Missing keys mean available.
type Availability map[string]map[string]bool

// Blocks reports whether the period is explicitly marked unavailable on the given day.
// Both "3" and "P3" key styles are honoured.
func (a Availability) Blocks(day string, period int) bool {
	if a == nil {
		return false
	}
	slots, ok := a[day]
	if !ok || slots == nil {
		return false
	}
	if available, ok := slots[strconv.Itoa(period)]; ok && !available {
		return true
	}
	if available, ok := slots[PeriodKey(period)]; ok && !available {
		return true
	}
	return false
}

// Value implements driver.Valuer.
func (a Availability) Value() (driver.Value, error) {
	if a == nil {
		return []byte(`{}`), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *Availability) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported availability type %T", src)
	}
	if len(raw) == 0 {
		*a = nil
		return nil
	}
	decoded := Availability{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode availability: %w", err)
	}
	*a = decoded
	return nil
}

// Faculty is a teaching staff member. ID doubles as the member's user account id.
type Faculty struct {
	ID                string       `db:"id" json:"id"`
	Name              string       `db:"name" json:"name"`
	Email             string       `db:"email" json:"email,omitempty"`
	DepartmentID      string       `db:"department_id" json:"department_id"`
	MaxClassesPerDay  int          `db:"max_classes_per_day" json:"max_classes_per_day"`
	MaxClassesPerWeek int          `db:"max_classes_per_week" json:"max_classes_per_week"`
	Availability      Availability `db:"availability" json:"availability,omitempty"`
}

// DailyLimit returns the per-day cap falling back to fallback when unset.
func (f Faculty) DailyLimit(fallback int) int {
	if f.MaxClassesPerDay > 0 {
		return f.MaxClassesPerDay
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultMaxClassesPerDay
}

// WeeklyLimit returns the per-week cap falling back to fallback when unset.
func (f Faculty) WeeklyLimit(fallback int) int {
	if f.MaxClassesPerWeek > 0 {
		return f.MaxClassesPerWeek
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultMaxClassesPerWeek
}

// IsPlaceholder flags imported records whose "name" is really a class label such as "Year 3-A".
func (f Faculty) IsPlaceholder() bool {
	return IsPlaceholderFacultyName(f.Name)
}

// IsPlaceholderFacultyName reports whether name looks like a class label rather than a person.
func IsPlaceholderFacultyName(name string) bool {
	trimmed := strings.TrimSpace(name)
	return trimmed == "" || strings.Contains(strings.ToLower(trimmed), "year")
}

// NormalizePersonName strips honorifics, dots and spaces for fuzzy owner matching.
func NormalizePersonName(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	for _, prefix := range []string{"dr.", "prof.", "mrs.", "mr."} {
		lowered = strings.ReplaceAll(lowered, prefix, "")
	}
	lowered = strings.ReplaceAll(lowered, ".", "")
	lowered = strings.ReplaceAll(lowered, " ", "")
	return lowered
}
