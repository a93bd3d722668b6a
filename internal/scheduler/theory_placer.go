package scheduler

import "github.com/noah-isme/timetable-api/internal/models"

// TheoryPlacer places one theory period at the first legal (day, period) in fixed order.
type TheoryPlacer struct {
	checker ConstraintChecker
}

// NewTheoryPlacer builds a placer for the config.
func NewTheoryPlacer(cfg Config) *TheoryPlacer {
	return &TheoryPlacer{checker: NewConstraintChecker(cfg)}
}

// PlaceInstance places a single instance tagged slotType and reports success.
func (p *TheoryPlacer) PlaceInstance(g *Grid, loads *Loads, subject *models.Subject, faculty *models.Faculty, room *models.Classroom, slotType models.SlotType) bool {
	for day := range g.Days() {
		for period := 1; period <= g.Periods(); period++ {
			if !p.checker.CanPlace(g, loads, day, period, subject, faculty, room) {
				continue
			}
			place(g, loads, day, period, subject, faculty, room, slotType)
			return true
		}
	}
	return false
}

// PlaceAt places the instance at a specific cell when legal.
func (p *TheoryPlacer) PlaceAt(g *Grid, loads *Loads, day, period int, subject *models.Subject, faculty *models.Faculty, room *models.Classroom, slotType models.SlotType) bool {
	if !p.checker.CanPlace(g, loads, day, period, subject, faculty, room) {
		return false
	}
	place(g, loads, day, period, subject, faculty, room, slotType)
	return true
}

func place(g *Grid, loads *Loads, day, period int, subject *models.Subject, faculty *models.Faculty, room *models.Classroom, slotType models.SlotType) {
	g.Set(day, period, &models.SlotEntry{
		SubjectID:   subject.ID,
		SubjectName: subject.Name,
		SubjectCode: subjectCode(subject),
		FacultyID:   faculty.ID,
		FacultyName: faculty.Name,
		RoomNumber:  room.RoomNumber,
		Type:        slotType,
	})
	loads.Add(faculty, day, 1)
}
