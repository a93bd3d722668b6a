package scheduler

import "github.com/noah-isme/timetable-api/internal/models"

// FallbackPolicy controls what happens when a subject's declared faculty cannot be found.
type FallbackPolicy string

const (
	// FallbackDepartment assigns the first eligible faculty of the subject's department.
	FallbackDepartment FallbackPolicy = "department"
	// FallbackNone leaves the subject unplaced and records unfilled demand.
	FallbackNone FallbackPolicy = "none"
)

// Filler is a non-academic activity used to reach full slot density.
type Filler struct {
	Name  string
	Owner string
}

// DefaultFillers is the catalogue used by the gap filler.
var DefaultFillers = []Filler{
	{Name: "Library", Owner: "Librarian"},
	{Name: "PET", Owner: "Physical Director"},
	{Name: "Seminar", Owner: "Dept Faculty"},
	{Name: "Skill Development", Owner: "Trainer"},
	{Name: "Counseling", Owner: "Mentor"},
}

// FillerRoom is the room recorded for filler activities.
const FillerRoom = "Dept Hall"

// Config tunes one generation run.
type Config struct {
	Days               []string
	PeriodsPerDay      int
	LabBlocks          [][]int
	MaxClassesPerDay   int
	MaxClassesPerWeek  int
	MinAcademicPerDay  int
	Pillars            []string
	Fillers            []Filler
	FacultyFallback    FallbackPolicy
	DefaultTheoryHours int
}

// DefaultConfig mirrors the department's standard week.
func DefaultConfig() Config {
	return Config{
		Days:               append([]string(nil), models.Weekdays...),
		PeriodsPerDay:      models.DefaultPeriodsPerDay,
		LabBlocks:          [][]int{{2, 3, 4}, {5, 6, 7}},
		MaxClassesPerDay:   models.DefaultMaxClassesPerDay,
		MaxClassesPerWeek:  models.DefaultMaxClassesPerWeek,
		MinAcademicPerDay:  3,
		Pillars:            []string{"Library", "PET"},
		Fillers:            append([]Filler(nil), DefaultFillers...),
		FacultyFallback:    FallbackDepartment,
		DefaultTheoryHours: 3,
	}
}

// withDefaults fills zero values and drops lab blocks that fall outside the day.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if len(c.Days) == 0 {
		c.Days = def.Days
	}
	if c.PeriodsPerDay <= 0 {
		c.PeriodsPerDay = def.PeriodsPerDay
	}
	if len(c.LabBlocks) == 0 {
		c.LabBlocks = def.LabBlocks
	}
	valid := make([][]int, 0, len(c.LabBlocks))
	for _, block := range c.LabBlocks {
		if blockFits(block, c.PeriodsPerDay) {
			valid = append(valid, block)
		}
	}
	c.LabBlocks = valid
	if c.MaxClassesPerDay <= 0 {
		c.MaxClassesPerDay = def.MaxClassesPerDay
	}
	if c.MaxClassesPerWeek <= 0 {
		c.MaxClassesPerWeek = def.MaxClassesPerWeek
	}
	if c.MinAcademicPerDay < 0 {
		c.MinAcademicPerDay = 0
	}
	if c.Pillars == nil {
		c.Pillars = def.Pillars
	}
	if len(c.Fillers) == 0 {
		c.Fillers = def.Fillers
	}
	if c.FacultyFallback == "" {
		c.FacultyFallback = def.FacultyFallback
	}
	if c.DefaultTheoryHours <= 0 {
		c.DefaultTheoryHours = def.DefaultTheoryHours
	}
	return c
}

func blockFits(block []int, periods int) bool {
	if len(block) != models.LabBlockSize {
		return false
	}
	for i, p := range block {
		if p < 1 || p > periods {
			return false
		}
		if i > 0 && p != block[i-1]+1 {
			return false
		}
	}
	return true
}
