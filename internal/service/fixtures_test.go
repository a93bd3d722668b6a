package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// memoryTimetableStore versions timetables in memory; the exec argument is ignored.
type memoryTimetableStore struct {
	mu          sync.Mutex
	rows        map[string]*models.Timetable
	seq         int
	failSetLive bool
}

func newMemoryTimetableStore(seed ...models.Timetable) *memoryTimetableStore {
	store := &memoryTimetableStore{rows: map[string]*models.Timetable{}}
	for i := range seed {
		tt := seed[i]
		if tt.GroupKey == "" {
			tt.GroupKey = models.TimetableGroupKey(tt.DepartmentID, tt.Year, tt.Semester, tt.Section)
		}
		if tt.Version == 0 {
			tt.Version = 1
		}
		store.rows[tt.ID] = &tt
	}
	return store
}

func (m *memoryTimetableStore) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if timetable.GroupKey == "" {
		timetable.GroupKey = models.TimetableGroupKey(timetable.DepartmentID, timetable.Year, timetable.Semester, timetable.Section)
	}
	if timetable.ID == "" {
		m.seq++
		timetable.ID = fmt.Sprintf("tt-new-%d", m.seq)
	}
	if timetable.Status == "" {
		timetable.Status = models.TimetableStatusDraft
	}
	version := 0
	for _, row := range m.rows {
		if row.GroupKey == timetable.GroupKey && row.Version > version {
			version = row.Version
		}
	}
	timetable.Version = version + 1
	stored := *timetable
	m.rows[stored.ID] = &stored
	return nil
}

func (m *memoryTimetableStore) ArchiveLive(ctx context.Context, exec sqlx.ExtContext, groupKey, exceptID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.GroupKey == groupKey && row.IsLive && row.ID != exceptID {
			row.IsLive = false
			row.Status = models.TimetableStatusArchived
		}
	}
	return nil
}

func (m *memoryTimetableStore) SetLive(ctx context.Context, exec sqlx.ExtContext, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || m.failSetLive {
		return sql.ErrNoRows
	}
	row.IsLive = true
	row.Status = models.TimetableStatusPublished
	return nil
}

func (m *memoryTimetableStore) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *row
	copied.Schedule = row.Schedule.Clone()
	return &copied, nil
}

func (m *memoryTimetableStore) FindLive(ctx context.Context, groupKey string) (*models.Timetable, error) {
	for _, row := range m.sorted() {
		if row.GroupKey == groupKey && row.IsLive {
			copied := row
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryTimetableStore) ListLive(ctx context.Context, departmentID string) ([]models.Timetable, error) {
	out := make([]models.Timetable, 0)
	for _, row := range m.sorted() {
		if row.IsLive && (departmentID == "" || row.DepartmentID == departmentID) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memoryTimetableStore) ListByGroup(ctx context.Context, groupKey string) ([]models.Timetable, error) {
	out := make([]models.Timetable, 0)
	for _, row := range m.sorted() {
		if row.GroupKey == groupKey {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (m *memoryTimetableStore) sorted() []models.Timetable {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Timetable, 0, len(m.rows))
	for _, row := range m.rows {
		copied := *row
		copied.Schedule = row.Schedule.Clone()
		out = append(out, copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GroupKey == out[j].GroupKey {
			return out[i].Version < out[j].Version
		}
		return out[i].GroupKey < out[j].GroupKey
	})
	return out
}

func (m *memoryTimetableStore) live(groupKey string) *models.Timetable {
	live, err := m.FindLive(context.Background(), groupKey)
	if err != nil {
		return nil
	}
	return live
}

type facultyDirectoryStub struct {
	members []models.Faculty
}

func (s facultyDirectoryStub) ListByDepartment(ctx context.Context, departmentID string) ([]models.Faculty, error) {
	out := make([]models.Faculty, 0, len(s.members))
	for _, f := range s.members {
		if departmentID == "" || f.DepartmentID == departmentID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s facultyDirectoryStub) FindByID(ctx context.Context, id string) (*models.Faculty, error) {
	for i := range s.members {
		if s.members[i].ID == id {
			member := s.members[i]
			return &member, nil
		}
	}
	return nil, sql.ErrNoRows
}

type roleNotice struct {
	Role         models.UserRole
	DepartmentID string
	Notification models.Notification
}

type recordingNotifier struct {
	mu     sync.Mutex
	direct []models.Notification
	roles  []roleNotice
	closed []string
}

func (r *recordingNotifier) Notify(ctx context.Context, n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct = append(r.direct, n)
}

func (r *recordingNotifier) NotifyRole(ctx context.Context, role models.UserRole, departmentID string, template models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles = append(r.roles, roleNotice{Role: role, DepartmentID: departmentID, Notification: template})
}

func (r *recordingNotifier) MarkActionTaken(ctx context.Context, recipientID, relatedID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, recipientID+":"+relatedID)
}

func (r *recordingNotifier) to(recipientID string) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Notification, 0)
	for _, n := range r.direct {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out
}

func (r *recordingNotifier) forRole(role models.UserRole) []roleNotice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]roleNotice, 0)
	for _, n := range r.roles {
		if n.Role == role {
			out = append(out, n)
		}
	}
	return out
}

func theory(subject, facultyID, facultyName string) *models.SlotEntry {
	return &models.SlotEntry{SubjectName: subject, FacultyID: facultyID, FacultyName: facultyName, Type: models.SlotTypeTheory}
}
