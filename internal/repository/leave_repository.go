package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

const leaveColumns = `id, faculty_id, department_id, start_date, end_date, COALESCE(reason, '') AS reason, status,
       reviewed_by, reviewed_at, applied_at`

// LeaveRepository persists leave applications.
type LeaveRepository struct {
	db *sqlx.DB
}

// NewLeaveRepository constructs the repository.
func NewLeaveRepository(db *sqlx.DB) *LeaveRepository {
	return &LeaveRepository{db: db}
}

// Create inserts a new leave application.
func (r *LeaveRepository) Create(ctx context.Context, leave *models.Leave) error {
	if leave.ID == "" {
		leave.ID = uuid.NewString()
	}
	if leave.Status == "" {
		leave.Status = models.LeaveStatusPending
	}
	if leave.AppliedAt.IsZero() {
		leave.AppliedAt = time.Now().UTC()
	}
	const query = `INSERT INTO leaves (id, faculty_id, department_id, start_date, end_date, reason, status, reviewed_by, reviewed_at, applied_at)
	VALUES (:id, :faculty_id, :department_id, :start_date, :end_date, :reason, :status, :reviewed_by, :reviewed_at, :applied_at)`
	if _, err := r.db.NamedExecContext(ctx, query, leave); err != nil {
		return fmt.Errorf("create leave: %w", err)
	}
	return nil
}

// FindByID fetches a leave application.
func (r *LeaveRepository) FindByID(ctx context.Context, id string) (*models.Leave, error) {
	query := "SELECT " + leaveColumns + " FROM leaves WHERE id = $1"
	var leave models.Leave
	if err := r.db.GetContext(ctx, &leave, query, id); err != nil {
		return nil, err
	}
	return &leave, nil
}

// List returns leave applications matching the filter (latest first).
func (r *LeaveRepository) List(ctx context.Context, filter models.LeaveFilter) ([]models.Leave, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString("SELECT " + leaveColumns + " FROM leaves")

	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.FacultyID != "" {
		args = append(args, filter.FacultyID)
		conditions = append(conditions, fmt.Sprintf("faculty_id = $%d", len(args)))
	}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY applied_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var leaves []models.Leave
	if err := r.db.SelectContext(ctx, &leaves, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list leaves: %w", err)
	}
	return leaves, nil
}

// UpdateStatus records a review outcome on a pending application. It returns sql.ErrNoRows
// when the application is missing or already reviewed.
func (r *LeaveRepository) UpdateStatus(ctx context.Context, id string, status models.LeaveStatus, reviewerID string, reviewedAt time.Time) error {
	const query = `UPDATE leaves SET status = :status, reviewed_by = :reviewed_by, reviewed_at = :reviewed_at
WHERE id = :id AND status = :pending`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          id,
		"status":      status,
		"reviewed_by": reviewerID,
		"reviewed_at": reviewedAt,
		"pending":     models.LeaveStatusPending,
	})
	if err != nil {
		return fmt.Errorf("update leave status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check leave update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
