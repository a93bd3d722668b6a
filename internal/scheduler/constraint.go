package scheduler

import "github.com/noah-isme/timetable-api/internal/models"

// ConstraintChecker decides whether a placement is legal. It never mutates the grid.
type ConstraintChecker struct {
	cfg Config
}

// NewConstraintChecker builds a checker for the config.
func NewConstraintChecker(cfg Config) ConstraintChecker {
	return ConstraintChecker{cfg: cfg.withDefaults()}
}

// CanPlace evaluates the hard rules in order, stopping at the first failure:
// empty slot, theory once per day and not after itself, no back-to-back for the
// faculty, daily cap (labs exempt), weekly cap, explicit unavailability.
func (c ConstraintChecker) CanPlace(g *Grid, loads *Loads, day, period int, subject *models.Subject, faculty *models.Faculty, room *models.Classroom) bool {
	if subject == nil || faculty == nil || room == nil {
		return false
	}
	if !g.IsEmpty(day, period) {
		return false
	}

	prev := g.At(day, period-1)
	if subject.IsTheory() {
		if g.HasSubjectOnDay(day, subject.ID) {
			return false
		}
		if prev != nil && prev.SubjectID != "" && prev.SubjectID == subject.ID {
			return false
		}
	}

	if prev != nil && prev.Type != models.SlotTypeFiller && prev.TaughtBy(faculty.ID, faculty.Name) {
		return false
	}

	if !subject.IsLab() && loads.Daily(faculty, day) >= faculty.DailyLimit(c.cfg.MaxClassesPerDay) {
		return false
	}
	if loads.Weekly(faculty) >= faculty.WeeklyLimit(c.cfg.MaxClassesPerWeek) {
		return false
	}

	if faculty.Availability.Blocks(g.days[day], period) {
		return false
	}
	return true
}
