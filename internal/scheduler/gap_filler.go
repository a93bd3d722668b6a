package scheduler

import (
	"math/rand"

	"github.com/samber/lo"

	"github.com/noah-isme/timetable-api/internal/models"
)

// theoryAssignment is a theory subject bound to its resolved faculty and room for one trial.
type theoryAssignment struct {
	subject *models.Subject
	faculty *models.Faculty
	room    *models.Classroom
}

// PillarOwner is recorded for pillars missing from the filler catalogue.
const PillarOwner = "Resident Faculty"

// afternoonPeriods is how many trailing periods a pillar prefers.
const afternoonPeriods = 3

// GapFiller occupies every remaining empty cell.
type GapFiller struct {
	cfg     Config
	placer  *TheoryPlacer
	rng     *rand.Rand
	owners  map[string]string
	fillers []Filler
}

// NewGapFiller builds a filler drawing choices from rng.
func NewGapFiller(cfg Config, rng *rand.Rand) *GapFiller {
	cfg = cfg.withDefaults()
	owners := lo.SliceToMap(cfg.Fillers, func(item Filler) (string, string) { return item.Name, item.Owner })
	fillers := lo.Reject(cfg.Fillers, func(item Filler, _ int) bool { return lo.Contains(cfg.Pillars, item.Name) })
	if len(fillers) == 0 {
		fillers = cfg.Fillers
	}
	return &GapFiller{cfg: cfg, placer: NewTheoryPlacer(cfg), rng: rng, owners: owners, fillers: fillers}
}

// Fill places each pillar once, then tries an extra theory period for each empty cell and
// falls back to a random non-pillar catalogue activity. It returns the number of extra
// theory periods placed. After Fill, the grid has no empty cells.
func (f *GapFiller) Fill(g *Grid, loads *Loads, assignments []theoryAssignment) int {
	f.placePillars(g)

	extras := 0
	for day := range g.Days() {
		for period := 1; period <= g.Periods(); period++ {
			if !g.IsEmpty(day, period) {
				continue
			}
			if f.tryExtra(g, loads, day, period, assignments) {
				extras++
				continue
			}
			filler := f.fillers[f.rng.Intn(len(f.fillers))]
			f.setFiller(g, day, period, filler.Name, filler.Owner)
		}
	}
	return extras
}

// placePillars puts every configured pillar into one random empty cell, preferring the last
// periods of the day. A pillar is skipped when the grid is already full.
func (f *GapFiller) placePillars(g *Grid) {
	for _, pillar := range f.cfg.Pillars {
		var afternoon, anytime [][2]int
		for day := range g.Days() {
			for period := 1; period <= g.Periods(); period++ {
				if !g.IsEmpty(day, period) {
					continue
				}
				cell := [2]int{day, period}
				anytime = append(anytime, cell)
				if period > g.Periods()-afternoonPeriods {
					afternoon = append(afternoon, cell)
				}
			}
		}
		pool := afternoon
		if len(pool) == 0 {
			pool = anytime
		}
		if len(pool) == 0 {
			return
		}
		cell := pool[f.rng.Intn(len(pool))]
		owner, ok := f.owners[pillar]
		if !ok {
			owner = PillarOwner
		}
		f.setFiller(g, cell[0], cell[1], pillar, owner)
	}
}

func (f *GapFiller) setFiller(g *Grid, day, period int, name, owner string) {
	g.Set(day, period, &models.SlotEntry{
		SubjectName: name,
		FacultyName: owner,
		RoomNumber:  FillerRoom,
		Type:        models.SlotTypeFiller,
	})
}

func (f *GapFiller) tryExtra(g *Grid, loads *Loads, day, period int, assignments []theoryAssignment) bool {
	if len(assignments) == 0 {
		return false
	}
	order := f.rng.Perm(len(assignments))
	for _, idx := range order {
		a := assignments[idx]
		if f.placer.PlaceAt(g, loads, day, period, a.subject, a.faculty, a.room, models.SlotTypeTheoryExtra) {
			return true
		}
	}
	return false
}
