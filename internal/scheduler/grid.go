package scheduler

import (
	"github.com/noah-isme/timetable-api/internal/models"
)

// Grid is one candidate's weekly schedule stored as a day-major arena.
// Day indexes are zero-based; periods are one-based ordinals.
type Grid struct {
	days    []string
	periods int
	cells   []*models.SlotEntry
}

// NewGrid allocates an empty grid.
func NewGrid(days []string, periods int) *Grid {
	return &Grid{
		days:    append([]string(nil), days...),
		periods: periods,
		cells:   make([]*models.SlotEntry, len(days)*periods),
	}
}

// GridFromSchedule loads a persisted schedule. Unknown days or period keys are ignored.
func GridFromSchedule(schedule models.Schedule, days []string, periods int) *Grid {
	g := NewGrid(days, periods)
	for d, day := range g.days {
		slots := schedule[day]
		for p := 1; p <= periods; p++ {
			if entry := slots[models.PeriodKey(p)]; entry != nil {
				g.Set(d, p, entry.Clone())
			}
		}
	}
	return g
}

// Days returns the weekday names in order.
func (g *Grid) Days() []string { return g.days }

// Periods returns the number of periods per day.
func (g *Grid) Periods() int { return g.periods }

func (g *Grid) index(day, period int) (int, bool) {
	if day < 0 || day >= len(g.days) || period < 1 || period > g.periods {
		return 0, false
	}
	return day*g.periods + period - 1, true
}

// At returns the entry at (day, period), or nil when empty or out of range.
func (g *Grid) At(day, period int) *models.SlotEntry {
	idx, ok := g.index(day, period)
	if !ok {
		return nil
	}
	return g.cells[idx]
}

// Set writes an entry. Out-of-range coordinates are ignored.
func (g *Grid) Set(day, period int, entry *models.SlotEntry) {
	if idx, ok := g.index(day, period); ok {
		g.cells[idx] = entry
	}
}

// IsEmpty reports whether (day, period) is unoccupied.
func (g *Grid) IsEmpty(day, period int) bool {
	idx, ok := g.index(day, period)
	return ok && g.cells[idx] == nil
}

// HasTypeOnDay reports whether any slot on the day carries the given type.
func (g *Grid) HasTypeOnDay(day int, slotType models.SlotType) bool {
	for p := 1; p <= g.periods; p++ {
		if e := g.At(day, p); e != nil && e.Type == slotType {
			return true
		}
	}
	return false
}

// HasSubjectOnDay reports whether the subject already appears on the day.
func (g *Grid) HasSubjectOnDay(day int, subjectID string) bool {
	if subjectID == "" {
		return false
	}
	for p := 1; p <= g.periods; p++ {
		if e := g.At(day, p); e != nil && e.SubjectID == subjectID {
			return true
		}
	}
	return false
}

// EmptyCount returns the number of unoccupied cells.
func (g *Grid) EmptyCount() int {
	n := 0
	for _, c := range g.cells {
		if c == nil {
			n++
		}
	}
	return n
}

// Schedule exports the grid in its persisted shape. Empty cells are omitted.
func (g *Grid) Schedule() models.Schedule {
	out := make(models.Schedule, len(g.days))
	for d, day := range g.days {
		slots := make(models.DaySchedule, g.periods)
		for p := 1; p <= g.periods; p++ {
			if entry := g.At(d, p); entry != nil {
				slots[models.PeriodKey(p)] = entry.Clone()
			}
		}
		out[day] = slots
	}
	return out
}

// facultyKey identifies a faculty member in load counters.
func facultyKey(id, name string) string {
	if id != "" {
		return id
	}
	return "name:" + name
}

// Loads tracks periods assigned per faculty member per day and per week.
type Loads struct {
	days   int
	daily  map[string][]int
	weekly map[string]int
}

// NewLoads creates empty counters for a week of the given length.
func NewLoads(days int) *Loads {
	return &Loads{days: days, daily: make(map[string][]int), weekly: make(map[string]int)}
}

// Daily returns the periods assigned to the faculty on the day.
func (l *Loads) Daily(f *models.Faculty, day int) int {
	counts, ok := l.daily[facultyKey(f.ID, f.Name)]
	if !ok || day < 0 || day >= len(counts) {
		return 0
	}
	return counts[day]
}

// Weekly returns the periods assigned to the faculty over the week.
func (l *Loads) Weekly(f *models.Faculty) int {
	return l.weekly[facultyKey(f.ID, f.Name)]
}

// Add records n periods for the faculty on the day.
func (l *Loads) Add(f *models.Faculty, day, n int) {
	key := facultyKey(f.ID, f.Name)
	counts, ok := l.daily[key]
	if !ok {
		counts = make([]int, l.days)
		l.daily[key] = counts
	}
	if day >= 0 && day < len(counts) {
		counts[day] += n
	}
	l.weekly[key] += n
}
