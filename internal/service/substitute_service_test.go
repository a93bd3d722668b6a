package service

import (
	"context"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// 2026-10-19 is a Monday.
const testMonday = "2026-10-19"

type acceptedStub map[string][]string

func (s acceptedStub) ListAcceptedSubstitutes(ctx context.Context, date, slotID string) ([]string, error) {
	return s[date+"|"+slotID], nil
}

func facultyIDs(members []models.Faculty) []string {
	return lo.Map(members, func(f models.Faculty, _ int) string { return f.ID })
}

func substituteRoster() []models.Faculty {
	return []models.Faculty{
		{ID: "f-rao", Name: "Dr. Rao", DepartmentID: "CSE"},
		{ID: "f-iyer", Name: "Ms. Iyer", DepartmentID: "CSE"},
		{ID: "f-khan", Name: "Mr. Khan", DepartmentID: "CSE"},
		{ID: "f-mehta", Name: "Mrs. Mehta", DepartmentID: "CSE"},
		{ID: "f-das", Name: "Prof. Das", DepartmentID: "CSE"},
		{ID: "f-label", Name: "Year 3-B", DepartmentID: "CSE"},
		{ID: "f-nair", Name: "Dr. Nair", DepartmentID: "ECE"},
	}
}

func TestSubstituteServiceExcludesBusyFaculty(t *testing.T) {
	store := newMemoryTimetableStore(
		models.Timetable{
			ID: "tt-a", DepartmentID: "CSE", Year: 2, Semester: 3, Section: "A", IsLive: true,
			Schedule: models.Schedule{"Monday": models.DaySchedule{"P2": theory("Networks", "f-iyer", "Ms. Iyer")}},
		},
		models.Timetable{
			ID: "tt-b", DepartmentID: "CSE", Year: 2, Semester: 3, Section: "B", IsLive: true,
			Schedule: models.Schedule{"Monday": models.DaySchedule{
				"P2": theory("Maths", "", "MR. KHAN"),
				"P3": theory("Physics", "f-das", "Prof. Das"),
			}},
		},
		models.Timetable{
			ID: "tt-c", DepartmentID: "CSE", Year: 2, Semester: 3, Section: "C", IsLive: true,
			Schedule: models.Schedule{"Monday": models.DaySchedule{"P2": theory("Graphics", "", models.CancelledFacultyName)}},
		},
	)
	accepted := acceptedStub{testMonday + "|P2": {"f-mehta"}}
	svc := NewSubstituteService(facultyDirectoryStub{members: substituteRoster()}, store, accepted, nil)

	free, err := svc.FindAvailable(context.Background(), "CSE", testMonday, "P2", "f-rao")
	require.NoError(t, err)
	assert.Equal(t, []string{"f-das"}, facultyIDs(free))

	// legacy numeric period ids resolve to the same slot
	free, err = svc.FindAvailable(context.Background(), "CSE", testMonday, "2", "f-rao")
	require.NoError(t, err)
	assert.Equal(t, []string{"f-das"}, facultyIDs(free))

	free, err = svc.FindAvailable(context.Background(), "", testMonday, "P3", "f-rao")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"f-iyer", "f-khan", "f-mehta", "f-nair"}, facultyIDs(free))
}

func TestSubstituteServiceFailsOpenWithoutLiveTimetable(t *testing.T) {
	accepted := acceptedStub{testMonday + "|P1": {"f-khan"}}
	svc := NewSubstituteService(facultyDirectoryStub{members: substituteRoster()}, newMemoryTimetableStore(), accepted, nil)

	free, err := svc.FindAvailable(context.Background(), "CSE", testMonday, "P1", "f-rao")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"f-iyer", "f-mehta", "f-das"}, facultyIDs(free))
}

func TestSubstituteServiceValidatesSlot(t *testing.T) {
	svc := NewSubstituteService(facultyDirectoryStub{}, newMemoryTimetableStore(), nil, nil)

	_, err := svc.FindAvailable(context.Background(), "CSE", "19-10-2026", "P1", "f-rao")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.FindAvailable(context.Background(), "CSE", testMonday, "lunch", "f-rao")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
