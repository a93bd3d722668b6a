package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type memoryRearrangementStore struct {
	mu         sync.Mutex
	items      map[string]*models.RearrangementRequest
	seq        int
	lastFilter models.RearrangementFilter
}

func newMemoryRearrangementStore() *memoryRearrangementStore {
	return &memoryRearrangementStore{items: map[string]*models.RearrangementRequest{}}
}

func (m *memoryRearrangementStore) Create(ctx context.Context, req *models.RearrangementRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	req.ID = fmt.Sprintf("rr-%d", m.seq)
	req.CreatedAt = time.Now().UTC()
	stored := *req
	m.items[req.ID] = &stored
	return nil
}

func (m *memoryRearrangementStore) FindByID(ctx context.Context, id string) (*models.RearrangementRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *item
	return &copied, nil
}

func (m *memoryRearrangementStore) List(ctx context.Context, filter models.RearrangementFilter) ([]models.RearrangementRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	out := make([]models.RearrangementRequest, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, *item)
	}
	return out, nil
}

func (m *memoryRearrangementStore) UpdateStatus(ctx context.Context, id string, status models.RearrangementStatus, respondedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok || item.Status != models.RearrangementStatusPending {
		return sql.ErrNoRows
	}
	item.Status = status
	item.RespondedAt = &respondedAt
	return nil
}

func (m *memoryRearrangementStore) ListAcceptedSubstitutes(ctx context.Context, date, slotID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0)
	for _, item := range m.items {
		if item.Date == date && item.SlotID == slotID && item.Status == models.RearrangementStatusAccepted && item.SubstituteFacultyID != "" {
			out = append(out, item.SubstituteFacultyID)
		}
	}
	return out, nil
}

type rearrangementFixture struct {
	service     *RearrangementService
	substitutes *SubstituteService
	repo        *memoryRearrangementStore
	store       *memoryTimetableStore
	notifier    *recordingNotifier
}

func departmentTimetables() []models.Timetable {
	return []models.Timetable{
		{
			ID: "tt-a", DepartmentID: "CSE", Year: 2, Semester: 3, Section: "A", IsLive: true,
			Status: models.TimetableStatusPublished,
			Schedule: models.Schedule{"Monday": models.DaySchedule{
				"P1": theory("Maths", "f-rao", "Dr. Rao"),
				"P2": theory("Networks", "f-iyer", "Ms. Iyer"),
				"P3": {SubjectName: "DBMS Lab", FacultyID: "f-khan", FacultyName: "Mr. Khan", SecondaryFacultyID: "f-rao", SecondaryFacultyName: "Dr. Rao", Type: models.SlotTypeLab},
			}},
		},
		{
			ID: "tt-b", DepartmentID: "CSE", Year: 2, Semester: 3, Section: "B", IsLive: true,
			Status: models.TimetableStatusPublished,
			Schedule: models.Schedule{"Monday": models.DaySchedule{
				"P1": theory("Physics", "f-iyer", "Ms. Iyer"),
				"P2": theory("Maths", "", "Dr. Rao"),
			}},
		},
	}
}

func newRearrangementFixture(t *testing.T, tx txProvider, members []models.Faculty, live []models.Timetable) rearrangementFixture {
	t.Helper()
	repo := newMemoryRearrangementStore()
	store := newMemoryTimetableStore(live...)
	notifier := &recordingNotifier{}
	directory := facultyDirectoryStub{members: members}
	substitutes := NewSubstituteService(directory, store, repo, nil)
	svc := NewRearrangementService(repo, directory, store, substitutes, tx, nil, notifier, NewMetricsService(), nil, zap.NewNop())
	return rearrangementFixture{service: svc, substitutes: substitutes, repo: repo, store: store, notifier: notifier}
}

func rearrangementRoster() []models.Faculty {
	return []models.Faculty{
		{ID: "f-rao", Name: "Dr. Rao", DepartmentID: "CSE"},
		{ID: "f-iyer", Name: "Ms. Iyer", DepartmentID: "CSE"},
		{ID: "f-khan", Name: "Mr. Khan", DepartmentID: "CSE"},
		{ID: "f-nair", Name: "Dr. Nair", DepartmentID: "ECE"},
	}
}

func TestRearrangementServiceCreateResolvesContext(t *testing.T) {
	fx := newRearrangementFixture(t, nil, rearrangementRoster(), departmentTimetables())

	record, err := fx.service.Create(context.Background(), dto.CreateRearrangementRequest{
		Date: testMonday, PeriodID: "P1", SubstituteFacultyID: "f-khan",
	}, "f-rao")
	require.NoError(t, err)
	assert.Equal(t, models.RearrangementStatusPending, record.Status)
	assert.Equal(t, "Monday", record.DayOfWeek)
	assert.Equal(t, "P1", record.SlotID)
	assert.Equal(t, "CSE", record.DepartmentID)
	assert.Equal(t, "Maths", record.SubjectName)
	assert.Equal(t, "2 Year CSE - Section A", record.ClassLabel)
	require.NotNil(t, record.SourceTimetableID)
	assert.Equal(t, "tt-a", *record.SourceTimetableID)

	sent := fx.notifier.to("f-khan")
	require.Len(t, sent, 1)
	assert.Equal(t, models.NotificationTypeRequest, sent[0].Type)
	assert.Equal(t, record.ID, sent[0].RelatedID)
	assert.Equal(t, "/rearrangements/"+record.ID, sent[0].Link)
}

func TestRearrangementServiceCreateFallsBackToPlaceholders(t *testing.T) {
	fx := newRearrangementFixture(t, nil, rearrangementRoster(), departmentTimetables())

	// Tuesday has no slot owned by the requester
	record, err := fx.service.Create(context.Background(), dto.CreateRearrangementRequest{
		Date: "2026-10-20", PeriodID: "P1", SubstituteFacultyID: "f-khan",
	}, "f-rao")
	require.NoError(t, err)
	assert.Equal(t, models.PlaceholderSubjectName, record.SubjectName)
	assert.Equal(t, models.PlaceholderClassLabel, record.ClassLabel)
	assert.Nil(t, record.SourceTimetableID)
}

func TestRearrangementServiceCreateValidation(t *testing.T) {
	fx := newRearrangementFixture(t, nil, rearrangementRoster(), nil)
	ctx := context.Background()

	cases := map[string]struct {
		req       dto.CreateRearrangementRequest
		requester string
		code      string
	}{
		"sunday":             {dto.CreateRearrangementRequest{Date: "2026-10-18", PeriodID: "P1", SubstituteFacultyID: "f-khan"}, "f-rao", appErrors.ErrValidation.Code},
		"self substitute":    {dto.CreateRearrangementRequest{Date: testMonday, PeriodID: "P1", SubstituteFacultyID: "f-rao"}, "f-rao", appErrors.ErrValidation.Code},
		"unknown requester":  {dto.CreateRearrangementRequest{Date: testMonday, PeriodID: "P1", SubstituteFacultyID: "f-khan"}, "admin-1", appErrors.ErrNotFound.Code},
		"unknown substitute": {dto.CreateRearrangementRequest{Date: testMonday, PeriodID: "P1", SubstituteFacultyID: "f-ghost"}, "f-rao", appErrors.ErrNotFound.Code},
		"bad date":           {dto.CreateRearrangementRequest{Date: "tomorrow", PeriodID: "P1", SubstituteFacultyID: "f-khan"}, "f-rao", appErrors.ErrValidation.Code},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := fx.service.Create(ctx, tc.req, tc.requester)
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
	assert.Empty(t, fx.repo.items)
}

func TestRearrangementServiceRespondLifecycle(t *testing.T) {
	fx := newRearrangementFixture(t, nil, rearrangementRoster(), departmentTimetables())
	ctx := context.Background()

	record, err := fx.service.Create(ctx, dto.CreateRearrangementRequest{Date: testMonday, PeriodID: "P1", SubstituteFacultyID: "f-khan"}, "f-rao")
	require.NoError(t, err)

	_, err = fx.service.Respond(ctx, record.ID, dto.RespondRearrangementRequest{Decision: models.RearrangementStatusAccepted}, "f-iyer")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	accepted, err := fx.service.Respond(ctx, record.ID, dto.RespondRearrangementRequest{Decision: models.RearrangementStatusAccepted}, "f-khan")
	require.NoError(t, err)
	assert.Equal(t, models.RearrangementStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.RespondedAt)

	assert.Contains(t, fx.notifier.closed, "f-khan:"+record.ID)
	replies := fx.notifier.to("f-rao")
	require.Len(t, replies, 1)
	assert.Equal(t, models.NotificationTypeResponse, replies[0].Type)
	assert.Contains(t, replies[0].Message, "ACCEPTED")
	hod := fx.notifier.forRole(models.RoleHOD)
	require.Len(t, hod, 1)
	assert.Equal(t, "CSE", hod[0].DepartmentID)
	assert.Len(t, fx.notifier.forRole(models.RoleAdmin), 1)

	_, err = fx.service.Respond(ctx, record.ID, dto.RespondRearrangementRequest{Decision: models.RearrangementStatusRejected}, "f-khan")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	stored, err := fx.repo.FindByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RearrangementStatusAccepted, stored.Status)

	_, err = fx.service.Respond(ctx, "rr-missing", dto.RespondRearrangementRequest{Decision: models.RearrangementStatusAccepted}, "f-khan")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAcceptedSubstituteIsNoLongerAvailable(t *testing.T) {
	fx := newRearrangementFixture(t, nil, rearrangementRoster(), departmentTimetables())
	ctx := context.Background()

	record, err := fx.service.Create(ctx, dto.CreateRearrangementRequest{Date: testMonday, PeriodID: "P2", SubstituteFacultyID: "f-khan"}, "f-iyer")
	require.NoError(t, err)

	// a pending request does not reserve the substitute
	free, err := fx.substitutes.FindAvailable(ctx, "CSE", testMonday, "P2", "f-iyer")
	require.NoError(t, err)
	assert.Equal(t, []string{"f-khan"}, facultyIDs(free))

	_, err = fx.service.Respond(ctx, record.ID, dto.RespondRearrangementRequest{Decision: models.RearrangementStatusAccepted}, "f-khan")
	require.NoError(t, err)

	free, err = fx.substitutes.FindAvailable(ctx, "CSE", testMonday, "P2", "f-iyer")
	require.NoError(t, err)
	assert.Empty(t, free)

	// other dates and periods are unaffected
	free, err = fx.substitutes.FindAvailable(ctx, "CSE", "2026-10-26", "P2", "f-iyer")
	require.NoError(t, err)
	assert.Equal(t, []string{"f-khan"}, facultyIDs(free))
}

func TestRearrangementServiceFullDayAbsenceSkipsAcceptedSubstitute(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newRearrangementFixture(t, tx, rearrangementRoster(), departmentTimetables())
	ctx := context.Background()

	record, err := fx.service.Create(ctx, dto.CreateRearrangementRequest{Date: testMonday, PeriodID: "P2", SubstituteFacultyID: "f-khan"}, "f-iyer")
	require.NoError(t, err)
	_, err = fx.service.Respond(ctx, record.ID, dto.RespondRearrangementRequest{Decision: models.RearrangementStatusAccepted}, "f-khan")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := fx.service.HandleFullDayAbsence(ctx, "f-rao", testMonday)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	byPeriod := map[string]dto.UpdatedSlot{}
	for _, slot := range result.UpdatedSlots {
		byPeriod[slot.Period] = slot
	}
	require.Contains(t, byPeriod, "P2")
	assert.Equal(t, dto.SlotOutcomeAssigned, byPeriod["P2"].Outcome)
	assert.NotEqual(t, "f-khan", byPeriod["P2"].SubstituteFacultyID)
	assert.Equal(t, "f-nair", byPeriod["P2"].SubstituteFacultyID)
	assert.Equal(t, "f-khan", byPeriod["P1"].SubstituteFacultyID)
}

func TestRearrangementServiceRejectSkipsRoleAlerts(t *testing.T) {
	fx := newRearrangementFixture(t, nil, rearrangementRoster(), departmentTimetables())
	ctx := context.Background()

	record, err := fx.service.Create(ctx, dto.CreateRearrangementRequest{Date: testMonday, PeriodID: "P1", SubstituteFacultyID: "f-khan"}, "f-rao")
	require.NoError(t, err)
	rejected, err := fx.service.Respond(ctx, record.ID, dto.RespondRearrangementRequest{Decision: models.RearrangementStatusRejected}, "f-khan")
	require.NoError(t, err)
	assert.Equal(t, models.RearrangementStatusRejected, rejected.Status)
	assert.Empty(t, fx.notifier.roles)
}

func TestRearrangementServiceListFilters(t *testing.T) {
	fx := newRearrangementFixture(t, nil, rearrangementRoster(), nil)

	_, page, err := fx.service.List(context.Background(), dto.RearrangementQuery{DepartmentID: "CSE", Status: "pending, ACCEPTED", Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, []models.RearrangementStatus{models.RearrangementStatusPending, models.RearrangementStatusAccepted}, fx.repo.lastFilter.Status)
	assert.Equal(t, 10, fx.repo.lastFilter.Offset)
	assert.Equal(t, 2, page.Page)

	_, _, err = fx.service.List(context.Background(), dto.RearrangementQuery{Status: "done"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRearrangementServiceFullDayAbsenceAssignsSubstitutes(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newRearrangementFixture(t, tx, rearrangementRoster(), departmentTimetables())
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := fx.service.HandleFullDayAbsence(ctx, "f-rao", testMonday)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "Monday", result.Day)
	require.Len(t, result.UpdatedSlots, 3)
	require.Len(t, result.NewTimetableIDs, 2)

	byKey := map[string]dto.UpdatedSlot{}
	for _, slot := range result.UpdatedSlots {
		byKey[slot.GroupKey+"/"+slot.Period] = slot
		assert.Equal(t, dto.SlotOutcomeAssigned, slot.Outcome)
		assert.NotEmpty(t, slot.TimetableID)
	}
	assert.Equal(t, "f-khan", byKey["tt_CSE_Y2_S3_SecA/P1"].SubstituteFacultyID)
	assert.Equal(t, "f-iyer", byKey["tt_CSE_Y2_S3_SecA/P3"].SubstituteFacultyID)
	assert.Equal(t, "f-khan", byKey["tt_CSE_Y2_S3_SecB/P2"].SubstituteFacultyID)

	liveA := fx.store.live("tt_CSE_Y2_S3_SecA")
	require.NotNil(t, liveA)
	assert.Equal(t, 2, liveA.Version)
	require.NotNil(t, liveA.OriginalTimetableID)
	assert.Equal(t, "tt-a", *liveA.OriginalTimetableID)
	require.NotNil(t, liveA.RearrangedForDate)
	assert.Equal(t, testMonday, *liveA.RearrangedForDate)

	p1 := liveA.Schedule.Entry("Monday", "P1")
	assert.Equal(t, "f-khan", p1.FacultyID)
	assert.True(t, p1.IsSubstitution)
	assert.Equal(t, "Dr. Rao", p1.OriginalFaculty)
	lab := liveA.Schedule.Entry("Monday", "P3")
	assert.Equal(t, "f-khan", lab.FacultyID)
	assert.Equal(t, "f-iyer", lab.SecondaryFacultyID)
	assert.Equal(t, "Ms. Iyer", liveA.Schedule.Entry("Monday", "P2").FacultyName)

	meta, err := liveA.DecodeMeta()
	require.NoError(t, err)
	assert.True(t, meta.IsRearranged)
	require.Len(t, meta.AffectedFaculty, 1)
	assert.Equal(t, "f-rao", meta.AffectedFaculty[0].FacultyID)
	assert.Len(t, meta.AffectedFaculty[0].Changes, 2)

	original, err := fx.store.FindByID(ctx, "tt-a")
	require.NoError(t, err)
	assert.False(t, original.IsLive)
	assert.Equal(t, "f-rao", original.Schedule.Entry("Monday", "P1").FacultyID)

	admins := fx.notifier.forRole(models.RoleAdmin)
	require.Len(t, admins, 1)
	assert.Equal(t, "[ALERT] Rearrangement for 2026-10-19: 3 changes.", admins[0].Notification.Message)
	assert.Equal(t, models.NotificationTypeAlert, admins[0].Notification.Type)
	hods := fx.notifier.forRole(models.RoleHOD)
	require.Len(t, hods, 1)
	assert.Equal(t, "Rearrangement Triggered for 2026-10-19. Check schedule.", hods[0].Notification.Message)
	assert.Len(t, fx.notifier.to("f-khan"), 2)
	assert.Len(t, fx.notifier.to("f-iyer"), 1)
}

func TestRearrangementServiceFullDayAbsenceCancelsWithoutSubstitute(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	members := []models.Faculty{
		{ID: "f-rao", Name: "Dr. Rao", DepartmentID: "CSE"},
		{ID: "f-iyer", Name: "Ms. Iyer", DepartmentID: "CSE"},
	}
	live := []models.Timetable{
		{ID: "tt-a", DepartmentID: "CSE", Year: 2, Semester: 3, Section: "A", IsLive: true,
			Schedule: models.Schedule{"Monday": models.DaySchedule{"P1": theory("Maths", "f-rao", "Dr. Rao")}}},
		{ID: "tt-b", DepartmentID: "CSE", Year: 2, Semester: 3, Section: "B", IsLive: true,
			Schedule: models.Schedule{"Monday": models.DaySchedule{"P1": theory("Physics", "f-iyer", "Ms. Iyer")}}},
	}
	fx := newRearrangementFixture(t, tx, members, live)

	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := fx.service.HandleFullDayAbsence(context.Background(), "f-rao", testMonday)
	require.NoError(t, err)
	require.Len(t, result.UpdatedSlots, 1)
	assert.Equal(t, dto.SlotOutcomeCancelled, result.UpdatedSlots[0].Outcome)
	assert.Empty(t, result.UpdatedSlots[0].SubstituteFacultyID)

	liveA := fx.store.live("tt_CSE_Y2_S3_SecA")
	require.NotNil(t, liveA)
	entry := liveA.Schedule.Entry("Monday", "P1")
	assert.Equal(t, models.CancelledFacultyName, entry.FacultyName)
	assert.Empty(t, entry.FacultyID)
	assert.Equal(t, "f-rao", entry.OriginalFacultyID)
	assert.Empty(t, fx.notifier.direct)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRearrangementServiceFullDayAbsenceSkipsSunday(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newRearrangementFixture(t, tx, rearrangementRoster(), departmentTimetables())

	result, err := fx.service.HandleFullDayAbsence(context.Background(), "f-rao", "2026-10-18")
	require.NoError(t, err)
	assert.Equal(t, "Sunday", result.Day)
	assert.Empty(t, result.UpdatedSlots)
	assert.Empty(t, result.NewTimetableIDs)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = fx.service.HandleFullDayAbsence(context.Background(), "f-ghost", testMonday)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
