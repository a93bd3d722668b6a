package scheduler

import (
	"fmt"
	"sort"

	"github.com/noah-isme/timetable-api/internal/models"
)

// Penalty weights applied by the evaluator.
const (
	BaseScore               = 100
	PenaltyLowAcademicDay   = 10
	PenaltyDailyOverload    = 15
	PenaltyWeeklyOverload   = 20
	PenaltyHoursMismatch    = 10
	PenaltySameDayDuplicate = 5
	PenaltyPillarCount      = 10
	PenaltyBackToBack       = 5
)

// Evaluator scores a finished grid. It is deterministic for a given grid and roster.
type Evaluator struct {
	cfg Config
}

// NewEvaluator builds an evaluator for the config.
func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg.withDefaults()}
}

type facultyUsage struct {
	name   string
	daily  []int
	weekly int
}

// Evaluate starts from BaseScore and subtracts a penalty per violation, returning a
// readable conflict per penalty. The score may go negative.
func (e *Evaluator) Evaluate(g *Grid, subjects []*models.Subject, faculty []*models.Faculty) (int, []string) {
	score := BaseScore
	conflicts := make([]string, 0)
	penalize := func(points int, format string, args ...interface{}) {
		score -= points
		conflicts = append(conflicts, fmt.Sprintf(format, args...))
	}

	days := g.Days()
	roster := make(map[string]*models.Faculty, len(faculty))
	for _, f := range faculty {
		if f != nil {
			roster[facultyKey(f.ID, f.Name)] = f
		}
	}

	usage := make(map[string]*facultyUsage)
	track := func(id, name string, day int) {
		if id == "" && name == "" {
			return
		}
		key := facultyKey(id, name)
		u, ok := usage[key]
		if !ok {
			u = &facultyUsage{name: name, daily: make([]int, len(days))}
			usage[key] = u
		}
		u.daily[day]++
		u.weekly++
	}

	theoryCount := make(map[string]int)
	perDay := make(map[string][]int)
	pillarCount := make(map[string]int)

	for d, day := range days {
		academic := 0
		for p := 1; p <= g.Periods(); p++ {
			entry := g.At(d, p)
			if entry == nil {
				continue
			}
			if entry.Type == models.SlotTypeFiller {
				pillarCount[entry.SubjectName]++
				continue
			}
			if entry.Type.IsAcademic() {
				academic++
			}
			track(entry.FacultyID, entry.FacultyName, d)
			if entry.SecondaryFacultyID != "" || entry.SecondaryFacultyName != "" {
				track(entry.SecondaryFacultyID, entry.SecondaryFacultyName, d)
			}
			if entry.Type == models.SlotTypeTheory {
				theoryCount[entry.SubjectID]++
			}
			if entry.Type == models.SlotTypeTheory || entry.Type == models.SlotTypeTheoryExtra {
				counts, ok := perDay[entry.SubjectID]
				if !ok {
					counts = make([]int, len(days))
					perDay[entry.SubjectID] = counts
				}
				counts[d]++
			}
		}
		if academic < e.cfg.MinAcademicPerDay {
			penalize(PenaltyLowAcademicDay, "%s has only %d academic periods (minimum %d)", day, academic, e.cfg.MinAcademicPerDay)
		}
	}

	keys := make([]string, 0, len(usage))
	for key := range usage {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		u := usage[key]
		dailyLimit, weeklyLimit := e.cfg.MaxClassesPerDay, e.cfg.MaxClassesPerWeek
		if f, ok := roster[key]; ok {
			dailyLimit = f.DailyLimit(e.cfg.MaxClassesPerDay)
			weeklyLimit = f.WeeklyLimit(e.cfg.MaxClassesPerWeek)
		}
		for d, n := range u.daily {
			if n > dailyLimit {
				penalize(PenaltyDailyOverload, "%s teaches %d periods on %s (limit %d)", u.name, n, days[d], dailyLimit)
			}
		}
		if u.weekly > weeklyLimit {
			penalize(PenaltyWeeklyOverload, "%s teaches %d periods this week (limit %d)", u.name, u.weekly, weeklyLimit)
		}
	}

	theory := make([]*models.Subject, 0, len(subjects))
	for _, s := range subjects {
		if s != nil && s.IsTheory() {
			theory = append(theory, s)
		}
	}
	sort.SliceStable(theory, func(i, j int) bool { return theory[i].ID < theory[j].ID })
	for _, s := range theory {
		want := s.HoursPerWeek
		if want <= 0 {
			want = e.cfg.DefaultTheoryHours
		}
		if got := theoryCount[s.ID]; got != want {
			penalize(PenaltyHoursMismatch, "%s scheduled %d times, requires %d", s.Name, got, want)
		}
		for d, n := range perDay[s.ID] {
			if n > 1 {
				penalize(PenaltySameDayDuplicate, "%s appears %d times on %s", s.Name, n, days[d])
			}
		}
	}

	for _, pillar := range e.cfg.Pillars {
		if n := pillarCount[pillar]; n != 1 {
			penalize(PenaltyPillarCount, "%s scheduled %d times this week (expected 1)", pillar, n)
		}
	}

	for d, day := range days {
		for p := 2; p <= g.Periods(); p++ {
			prev, cur := g.At(d, p-1), g.At(d, p)
			if prev == nil || cur == nil || prev.Type == models.SlotTypeFiller || cur.Type == models.SlotTypeFiller {
				continue
			}
			if prev.Type == models.SlotTypeLab && cur.Type == models.SlotTypeLab && prev.SubjectID == cur.SubjectID {
				continue
			}
			if name, ok := sharedFaculty(prev, cur); ok {
				penalize(PenaltyBackToBack, "%s teaches back-to-back on %s %s-%s", name, day, models.PeriodKey(p-1), models.PeriodKey(p))
			}
		}
	}

	return score, conflicts
}

func sharedFaculty(a, b *models.SlotEntry) (string, bool) {
	if b.TaughtBy(a.FacultyID, a.FacultyName) {
		return a.FacultyName, true
	}
	if (a.SecondaryFacultyID != "" || a.SecondaryFacultyName != "") && b.TaughtBy(a.SecondaryFacultyID, a.SecondaryFacultyName) {
		return a.SecondaryFacultyName, true
	}
	return "", false
}
