package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/timetable-api/internal/models"
)

const timetableColumns = `id, group_key, department_id, year, semester, section, version, status, is_live, schedule, meta,
       original_timetable_id, rearranged_for_date, created_at, updated_at`

// TimetableRepository persists versioned timetables. Rows are never edited in place apart
// from the live flag and status.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a timetable assigning the next version for its group key.
func (r *TimetableRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error {
	if timetable == nil {
		return fmt.Errorf("timetable payload is nil")
	}
	if timetable.DepartmentID == "" || timetable.Section == "" {
		return fmt.Errorf("department_id and section are required")
	}
	if timetable.GroupKey == "" {
		timetable.GroupKey = models.TimetableGroupKey(timetable.DepartmentID, timetable.Year, timetable.Semester, timetable.Section)
	}
	if timetable.ID == "" {
		timetable.ID = uuid.NewString()
	}
	if timetable.Status == "" {
		timetable.Status = models.TimetableStatusDraft
	}
	if len(timetable.Meta) == 0 {
		timetable.Meta = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if timetable.CreatedAt.IsZero() {
		timetable.CreatedAt = now
	}
	timetable.UpdatedAt = now

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM timetables WHERE group_key = $1`
	if err := sqlx.GetContext(ctx, target, &timetable.Version, nextVersionQuery, timetable.GroupKey); err != nil {
		return fmt.Errorf("compute next timetable version: %w", err)
	}

	const insertQuery = `
INSERT INTO timetables (id, group_key, department_id, year, semester, section, version, status, is_live, schedule, meta,
	original_timetable_id, rearranged_for_date, created_at, updated_at)
VALUES (:id, :group_key, :department_id, :year, :semester, :section, :version, :status, :is_live, :schedule, :meta,
	:original_timetable_id, :rearranged_for_date, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, timetable); err != nil {
		return fmt.Errorf("insert timetable: %w", err)
	}
	return nil
}

// ArchiveLive clears the live flag of the group's current version. It is not an error when
// the group has no live version.
func (r *TimetableRepository) ArchiveLive(ctx context.Context, exec sqlx.ExtContext, groupKey, exceptID string) error {
	const query = `UPDATE timetables SET is_live = FALSE, status = $1, updated_at = $2
WHERE group_key = $3 AND is_live = TRUE AND id <> $4`
	if _, err := r.exec(exec).ExecContext(ctx, query, models.TimetableStatusArchived, time.Now().UTC(), groupKey, exceptID); err != nil {
		return fmt.Errorf("archive live timetable: %w", err)
	}
	return nil
}

// SetLive marks one version live and published.
func (r *TimetableRepository) SetLive(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `UPDATE timetables SET is_live = TRUE, status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.exec(exec).ExecContext(ctx, query, models.TimetableStatusPublished, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set timetable live: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable live rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID loads a timetable version by its identifier.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	query := "SELECT " + timetableColumns + " FROM timetables WHERE id = $1"
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// FindLive returns the live version of a group.
func (r *TimetableRepository) FindLive(ctx context.Context, groupKey string) (*models.Timetable, error) {
	query := "SELECT " + timetableColumns + " FROM timetables WHERE group_key = $1 AND is_live = TRUE ORDER BY version DESC LIMIT 1"
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, groupKey); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// ListLive returns every live timetable of a department; an empty id lists all departments.
func (r *TimetableRepository) ListLive(ctx context.Context, departmentID string) ([]models.Timetable, error) {
	query := "SELECT " + timetableColumns + " FROM timetables WHERE is_live = TRUE"
	args := []interface{}{}
	if departmentID != "" {
		query += " AND department_id = $1"
		args = append(args, departmentID)
	}
	query += " ORDER BY group_key ASC"

	var timetables []models.Timetable
	if err := r.db.SelectContext(ctx, &timetables, query, args...); err != nil {
		return nil, fmt.Errorf("list live timetables: %w", err)
	}
	return timetables, nil
}

// ListByGroup returns all versions of a group, newest first.
func (r *TimetableRepository) ListByGroup(ctx context.Context, groupKey string) ([]models.Timetable, error) {
	query := "SELECT " + timetableColumns + " FROM timetables WHERE group_key = $1 ORDER BY version DESC"
	var timetables []models.Timetable
	if err := r.db.SelectContext(ctx, &timetables, query, groupKey); err != nil {
		return nil, fmt.Errorf("list timetable versions: %w", err)
	}
	return timetables, nil
}
