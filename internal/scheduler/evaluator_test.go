package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
)

func singleDayConfig() Config {
	cfg := DefaultConfig()
	cfg.Days = []string{"Monday"}
	cfg.PeriodsPerDay = 4
	cfg.LabBlocks = [][]int{{1, 2, 3}}
	cfg.Pillars = []string{}
	cfg.MinAcademicPerDay = 0
	return cfg
}

func TestEvaluateCleanGrid(t *testing.T) {
	cfg := singleDayConfig()
	g := NewGrid(cfg.Days, cfg.PeriodsPerDay)
	g.Set(0, 1, &models.SlotEntry{SubjectID: "a", SubjectName: "A", FacultyID: "f1", FacultyName: "F1", Type: models.SlotTypeTheory})
	g.Set(0, 2, &models.SlotEntry{SubjectID: "b", SubjectName: "B", FacultyID: "f2", FacultyName: "F2", Type: models.SlotTypeTheory})
	g.Set(0, 3, &models.SlotEntry{SubjectName: "Library", FacultyName: "Librarian", Type: models.SlotTypeFiller})
	g.Set(0, 4, &models.SlotEntry{SubjectName: "Seminar", FacultyName: "Dept Faculty", Type: models.SlotTypeFiller})

	subjects := []*models.Subject{
		{ID: "a", Name: "A", Type: models.SubjectTypeTheory, HoursPerWeek: 1},
		{ID: "b", Name: "B", Type: models.SubjectTypeTheory, HoursPerWeek: 1},
	}
	score, conflicts := NewEvaluator(cfg).Evaluate(g, subjects, nil)
	assert.Equal(t, BaseScore, score)
	assert.Empty(t, conflicts)
}

func TestEvaluatePenalties(t *testing.T) {
	cfg := singleDayConfig()
	cfg.MinAcademicPerDay = 3
	cfg.Pillars = []string{"Library", "PET"}
	g := NewGrid(cfg.Days, cfg.PeriodsPerDay)
	g.Set(0, 1, &models.SlotEntry{SubjectID: "a", SubjectName: "A", FacultyID: "f1", FacultyName: "F1", Type: models.SlotTypeTheory})
	g.Set(0, 2, &models.SlotEntry{SubjectID: "a", SubjectName: "A", FacultyID: "f1", FacultyName: "F1", Type: models.SlotTypeTheoryExtra})
	g.Set(0, 3, &models.SlotEntry{SubjectName: "Library", FacultyName: "Librarian", Type: models.SlotTypeFiller})
	g.Set(0, 4, &models.SlotEntry{SubjectName: "Library", FacultyName: "Librarian", Type: models.SlotTypeFiller})

	subjects := []*models.Subject{{ID: "a", Name: "A", Type: models.SubjectTypeTheory, HoursPerWeek: 2}}
	faculty := []*models.Faculty{{ID: "f1", Name: "F1", MaxClassesPerDay: 1, MaxClassesPerWeek: 1}}

	score, conflicts := NewEvaluator(cfg).Evaluate(g, subjects, faculty)
	expected := BaseScore -
		PenaltyLowAcademicDay -
		PenaltyDailyOverload -
		PenaltyWeeklyOverload -
		PenaltyHoursMismatch -
		PenaltySameDayDuplicate -
		2*PenaltyPillarCount -
		PenaltyBackToBack
	assert.Equal(t, expected, score)
	assert.Len(t, conflicts, 8)
	assert.Contains(t, conflicts, "A appears 2 times on Monday")
	assert.Contains(t, conflicts, "PET scheduled 0 times this week (expected 1)")
	assert.Contains(t, conflicts, "F1 teaches back-to-back on Monday P1-P2")
}

func TestEvaluateLabBlockIsNotBackToBack(t *testing.T) {
	cfg := singleDayConfig()
	g := NewGrid(cfg.Days, cfg.PeriodsPerDay)
	lab := &models.SlotEntry{SubjectID: "lab", SubjectName: "Lab", FacultyID: "f1", FacultyName: "F1", SecondaryFacultyID: "f2", SecondaryFacultyName: "F2", Type: models.SlotTypeLab}
	for p := 1; p <= 3; p++ {
		g.Set(0, p, lab.Clone())
	}
	g.Set(0, 4, &models.SlotEntry{SubjectID: "x", SubjectName: "X", FacultyID: "f2", FacultyName: "F2", Type: models.SlotTypeTheory})

	faculty := []*models.Faculty{{ID: "f1", Name: "F1"}, {ID: "f2", Name: "F2"}}
	score, conflicts := NewEvaluator(cfg).Evaluate(g, nil, faculty)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "F2 teaches back-to-back on Monday P3-P4", conflicts[0])
	assert.Equal(t, BaseScore-PenaltyBackToBack, score)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	entities := richEntities()
	cfg := DefaultConfig()
	candidates, err := NewGenerator(cfg, false).GenerateCandidates(context.Background(), entities, 1, 99)
	require.NoError(t, err)

	g := GridFromSchedule(candidates[0].Schedule, cfg.Days, cfg.PeriodsPerDay)
	subjects := make([]*models.Subject, 0, len(entities.Subjects))
	for i := range entities.Subjects {
		subjects = append(subjects, &entities.Subjects[i])
	}
	faculty := make([]*models.Faculty, 0, len(entities.Faculty))
	for i := range entities.Faculty {
		faculty = append(faculty, &entities.Faculty[i])
	}

	evaluator := NewEvaluator(cfg)
	firstScore, firstConflicts := evaluator.Evaluate(g, subjects, faculty)
	secondScore, secondConflicts := evaluator.Evaluate(g, subjects, faculty)
	assert.Equal(t, firstScore, secondScore)
	assert.Equal(t, firstConflicts, secondConflicts)
	assert.Equal(t, candidates[0].Score, firstScore)
	assert.Equal(t, candidates[0].Conflicts, firstConflicts)
}
