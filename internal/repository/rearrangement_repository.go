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

const rearrangementColumns = `id, date, day_of_week, slot_id, department_id, requester_faculty_id, requester_faculty_name,
       substitute_faculty_id, substitute_faculty_name, subject_name, class_label, source_timetable_id, status,
       created_at, responded_at`

// RearrangementRepository persists substitution requests.
type RearrangementRepository struct {
	db *sqlx.DB
}

// NewRearrangementRepository constructs the repository.
func NewRearrangementRepository(db *sqlx.DB) *RearrangementRepository {
	return &RearrangementRepository{db: db}
}

// Create inserts a new request.
func (r *RearrangementRepository) Create(ctx context.Context, req *models.RearrangementRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.RearrangementStatusPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO rearrangements
	(id, date, day_of_week, slot_id, department_id, requester_faculty_id, requester_faculty_name, substitute_faculty_id,
	 substitute_faculty_name, subject_name, class_label, source_timetable_id, status, created_at, responded_at)
	VALUES (:id, :date, :day_of_week, :slot_id, :department_id, :requester_faculty_id, :requester_faculty_name, :substitute_faculty_id,
	 :substitute_faculty_name, :subject_name, :class_label, :source_timetable_id, :status, :created_at, :responded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create rearrangement: %w", err)
	}
	return nil
}

// FindByID fetches a request by identifier.
func (r *RearrangementRepository) FindByID(ctx context.Context, id string) (*models.RearrangementRequest, error) {
	query := "SELECT " + rearrangementColumns + " FROM rearrangements WHERE id = $1"
	var req models.RearrangementRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests matching the filter (latest first).
func (r *RearrangementRepository) List(ctx context.Context, filter models.RearrangementFilter) ([]models.RearrangementRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString("SELECT " + rearrangementColumns + " FROM rearrangements")

	conditions := make([]string, 0, 6)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if filter.Date != "" {
		args = append(args, filter.Date)
		conditions = append(conditions, fmt.Sprintf("date = $%d", len(args)))
	}
	if filter.SlotID != "" {
		args = append(args, filter.SlotID)
		conditions = append(conditions, fmt.Sprintf("slot_id = $%d", len(args)))
	}
	if filter.RequesterID != "" {
		args = append(args, filter.RequesterID)
		conditions = append(conditions, fmt.Sprintf("requester_faculty_id = $%d", len(args)))
	}
	if filter.SubstituteID != "" {
		args = append(args, filter.SubstituteID)
		conditions = append(conditions, fmt.Sprintf("substitute_faculty_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.RearrangementRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list rearrangements: %w", err)
	}
	return requests, nil
}

// ListAcceptedSubstitutes returns substitute ids already accepted for a date and slot.
func (r *RearrangementRepository) ListAcceptedSubstitutes(ctx context.Context, date, slotID string) ([]string, error) {
	const query = `SELECT substitute_faculty_id FROM rearrangements WHERE date = $1 AND slot_id = $2 AND status = $3`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, date, slotID, models.RearrangementStatusAccepted); err != nil {
		return nil, fmt.Errorf("list accepted substitutes: %w", err)
	}
	return ids, nil
}

// UpdateStatus moves a pending request to a terminal status. It returns sql.ErrNoRows when
// the request is missing or already decided.
func (r *RearrangementRepository) UpdateStatus(ctx context.Context, id string, status models.RearrangementStatus, respondedAt time.Time) error {
	const query = `UPDATE rearrangements SET status = $1, responded_at = $2 WHERE id = $3 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, status, respondedAt, id, models.RearrangementStatusPending)
	if err != nil {
		return fmt.Errorf("update rearrangement status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rearrangement update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
