package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/timetable-api/internal/models"
)

func testRoom() *models.Classroom {
	return &models.Classroom{ID: "room-1", RoomNumber: "A-101", RoomType: models.RoomTypeLecture}
}

func TestCanPlaceRejectsOccupiedSlot(t *testing.T) {
	checker := NewConstraintChecker(DefaultConfig())
	g := NewGrid(models.Weekdays, 7)
	loads := NewLoads(len(models.Weekdays))
	subject := &models.Subject{ID: "s1", Name: "Maths", Type: models.SubjectTypeTheory}
	faculty := &models.Faculty{ID: "f1", Name: "Asha"}

	g.Set(0, 1, &models.SlotEntry{SubjectID: "s2", FacultyID: "f2", Type: models.SlotTypeTheory})
	assert.False(t, checker.CanPlace(g, loads, 0, 1, subject, faculty, testRoom()))
	assert.True(t, checker.CanPlace(g, loads, 0, 3, subject, faculty, testRoom()))
}

func TestCanPlaceTheoryOncePerDay(t *testing.T) {
	checker := NewConstraintChecker(DefaultConfig())
	g := NewGrid(models.Weekdays, 7)
	loads := NewLoads(len(models.Weekdays))
	subject := &models.Subject{ID: "s1", Name: "Maths", Type: models.SubjectTypeTheory}

	g.Set(0, 1, &models.SlotEntry{SubjectID: "s1", FacultyID: "f1", Type: models.SlotTypeTheory})
	assert.False(t, checker.CanPlace(g, loads, 0, 5, subject, &models.Faculty{ID: "f9", Name: "Other"}, testRoom()))
	assert.True(t, checker.CanPlace(g, loads, 1, 5, subject, &models.Faculty{ID: "f9", Name: "Other"}, testRoom()))
}

func TestCanPlaceRejectsBackToBackFaculty(t *testing.T) {
	checker := NewConstraintChecker(DefaultConfig())
	g := NewGrid(models.Weekdays, 7)
	loads := NewLoads(len(models.Weekdays))
	faculty := &models.Faculty{ID: "f1", Name: "Asha"}

	g.Set(2, 3, &models.SlotEntry{SubjectID: "s2", FacultyID: "f1", FacultyName: "Asha", Type: models.SlotTypeTheory})
	subject := &models.Subject{ID: "s1", Type: models.SubjectTypeTheory}
	assert.False(t, checker.CanPlace(g, loads, 2, 4, subject, faculty, testRoom()))
	assert.True(t, checker.CanPlace(g, loads, 2, 5, subject, faculty, testRoom()))

	t.Run("filler does not count", func(t *testing.T) {
		g.Set(3, 3, &models.SlotEntry{SubjectName: "Library", FacultyName: "Asha", Type: models.SlotTypeFiller})
		assert.True(t, checker.CanPlace(g, loads, 3, 4, subject, faculty, testRoom()))
	})

	t.Run("secondary faculty of lab counts", func(t *testing.T) {
		g.Set(4, 3, &models.SlotEntry{SubjectID: "lab", FacultyID: "f7", SecondaryFacultyID: "f1", Type: models.SlotTypeLab})
		assert.False(t, checker.CanPlace(g, loads, 4, 4, subject, faculty, testRoom()))
	})
}

func TestCanPlaceLoadLimits(t *testing.T) {
	checker := NewConstraintChecker(DefaultConfig())
	g := NewGrid(models.Weekdays, 7)
	loads := NewLoads(len(models.Weekdays))
	faculty := &models.Faculty{ID: "f1", Name: "Asha", MaxClassesPerDay: 2, MaxClassesPerWeek: 3}
	theory := &models.Subject{ID: "s1", Type: models.SubjectTypeTheory}
	lab := &models.Subject{ID: "l1", Type: models.SubjectTypeLab}

	loads.Add(faculty, 0, 2)
	assert.False(t, checker.CanPlace(g, loads, 0, 5, theory, faculty, testRoom()), "daily limit reached")
	assert.True(t, checker.CanPlace(g, loads, 0, 5, lab, faculty, testRoom()), "labs bypass the daily check")

	loads.Add(faculty, 1, 1)
	assert.False(t, checker.CanPlace(g, loads, 2, 5, theory, faculty, testRoom()), "weekly limit reached")
	assert.False(t, checker.CanPlace(g, loads, 2, 5, lab, faculty, testRoom()))
}

func TestCanPlaceHonoursAvailability(t *testing.T) {
	checker := NewConstraintChecker(DefaultConfig())
	g := NewGrid(models.Weekdays, 7)
	loads := NewLoads(len(models.Weekdays))
	faculty := &models.Faculty{ID: "f2", Name: "Ravi", Availability: models.Availability{
		"Monday":  {"3": false, "4": true},
		"Tuesday": {"P2": false},
	}}
	subject := &models.Subject{ID: "s1", Type: models.SubjectTypeTheory}

	assert.False(t, checker.CanPlace(g, loads, 0, 3, subject, faculty, testRoom()))
	assert.True(t, checker.CanPlace(g, loads, 0, 4, subject, faculty, testRoom()))
	assert.False(t, checker.CanPlace(g, loads, 1, 2, subject, faculty, testRoom()))
	assert.True(t, checker.CanPlace(g, loads, 2, 3, subject, faculty, testRoom()), "missing keys are available")
}

func TestCanPlaceRequiresAllResources(t *testing.T) {
	checker := NewConstraintChecker(DefaultConfig())
	g := NewGrid(models.Weekdays, 7)
	loads := NewLoads(len(models.Weekdays))
	subject := &models.Subject{ID: "s1", Type: models.SubjectTypeTheory}
	faculty := &models.Faculty{ID: "f1"}

	assert.False(t, checker.CanPlace(g, loads, 0, 1, nil, faculty, testRoom()))
	assert.False(t, checker.CanPlace(g, loads, 0, 1, subject, nil, testRoom()))
	assert.False(t, checker.CanPlace(g, loads, 0, 1, subject, faculty, nil))
}

func TestCanPlaceDoesNotMutate(t *testing.T) {
	checker := NewConstraintChecker(DefaultConfig())
	g := NewGrid(models.Weekdays, 7)
	loads := NewLoads(len(models.Weekdays))
	faculty := &models.Faculty{ID: "f1"}

	assert.True(t, checker.CanPlace(g, loads, 0, 1, &models.Subject{ID: "s1", Type: models.SubjectTypeTheory}, faculty, testRoom()))
	assert.Equal(t, len(models.Weekdays)*7, g.EmptyCount())
	assert.Zero(t, loads.Weekly(faculty))
}
