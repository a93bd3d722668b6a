package scheduler

import (
	"math/rand"

	"github.com/noah-isme/timetable-api/internal/models"
)

// LabPlacer puts each lab into one contiguous block on a day without another lab.
type LabPlacer struct {
	cfg     Config
	checker ConstraintChecker
	rng     *rand.Rand
}

// NewLabPlacer builds a placer drawing day and block order from rng.
func NewLabPlacer(cfg Config, rng *rand.Rand) *LabPlacer {
	cfg = cfg.withDefaults()
	return &LabPlacer{cfg: cfg, checker: NewConstraintChecker(cfg), rng: rng}
}

// Place tries days and blocks in random order and writes the first legal block.
// secondary may be nil. It returns false when no day/block fits.
func (p *LabPlacer) Place(g *Grid, loads *Loads, lab *models.Subject, primary, secondary *models.Faculty, room *models.Classroom) bool {
	if lab == nil || primary == nil || room == nil {
		return false
	}
	for _, day := range p.rng.Perm(len(g.Days())) {
		if g.HasTypeOnDay(day, models.SlotTypeLab) {
			continue
		}
		blocks := append([][]int(nil), p.cfg.LabBlocks...)
		p.rng.Shuffle(len(blocks), func(i, j int) { blocks[i], blocks[j] = blocks[j], blocks[i] })
		for _, block := range blocks {
			if !p.blockFits(g, loads, day, block, lab, primary, secondary, room) {
				continue
			}
			entry := &models.SlotEntry{
				SubjectID:   lab.ID,
				SubjectName: lab.Name,
				SubjectCode: subjectCode(lab),
				FacultyID:   primary.ID,
				FacultyName: primary.Name,
				RoomNumber:  room.RoomNumber,
				Type:        models.SlotTypeLab,
			}
			if secondary != nil {
				entry.SecondaryFacultyID = secondary.ID
				entry.SecondaryFacultyName = secondary.Name
			}
			for _, period := range block {
				g.Set(day, period, entry.Clone())
			}
			loads.Add(primary, day, len(block))
			if secondary != nil {
				loads.Add(secondary, day, len(block))
			}
			return true
		}
	}
	return false
}

func (p *LabPlacer) blockFits(g *Grid, loads *Loads, day int, block []int, lab *models.Subject, primary, secondary *models.Faculty, room *models.Classroom) bool {
	for _, f := range []*models.Faculty{primary, secondary} {
		if f == nil {
			continue
		}
		if loads.Weekly(f)+len(block) > f.WeeklyLimit(p.cfg.MaxClassesPerWeek) {
			return false
		}
	}
	for _, period := range block {
		if !g.IsEmpty(day, period) {
			return false
		}
		if !p.checker.CanPlace(g, loads, day, period, lab, primary, room) {
			return false
		}
		if secondary != nil && !p.checker.CanPlace(g, loads, day, period, lab, secondary, room) {
			return false
		}
	}
	return true
}

func subjectCode(s *models.Subject) string {
	if s.Code == "" {
		return "N/A"
	}
	return s.Code
}
