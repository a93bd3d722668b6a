package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

const facultyColumns = `id, name, COALESCE(email, '') AS email, department_id, max_classes_per_day, max_classes_per_week,
       COALESCE(availability, '{}'::jsonb) AS availability`

// FacultyRepository reads the teaching roster.
type FacultyRepository struct {
	db *sqlx.DB
}

// NewFacultyRepository constructs the repository.
func NewFacultyRepository(db *sqlx.DB) *FacultyRepository {
	return &FacultyRepository{db: db}
}

// ListByDepartment returns a department's faculty; an empty id lists every department.
func (r *FacultyRepository) ListByDepartment(ctx context.Context, departmentID string) ([]models.Faculty, error) {
	query := "SELECT " + facultyColumns + " FROM faculty"
	args := []interface{}{}
	if departmentID != "" {
		query += " WHERE department_id = $1"
		args = append(args, departmentID)
	}
	query += " ORDER BY name ASC"

	var faculty []models.Faculty
	if err := r.db.SelectContext(ctx, &faculty, query, args...); err != nil {
		return nil, fmt.Errorf("list faculty: %w", err)
	}
	return faculty, nil
}

// FindByID loads one faculty member.
func (r *FacultyRepository) FindByID(ctx context.Context, id string) (*models.Faculty, error) {
	query := "SELECT " + facultyColumns + " FROM faculty WHERE id = $1"
	var faculty models.Faculty
	if err := r.db.GetContext(ctx, &faculty, query, id); err != nil {
		return nil, err
	}
	return &faculty, nil
}
