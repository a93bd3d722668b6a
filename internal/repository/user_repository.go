package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

const userColumns = `id, email, full_name, role, COALESCE(department_id, '') AS department_id, active`

// UserRepository reads the accounts used to address role-wide notifications.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// ListByRole returns active users holding the role. A non-empty departmentID narrows the
// result to that department.
func (r *UserRepository) ListByRole(ctx context.Context, role models.UserRole, departmentID string) ([]models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE role = $1 AND active = TRUE"
	args := []interface{}{role}
	if departmentID != "" {
		query += " AND department_id = $2"
		args = append(args, departmentID)
	}
	query += " ORDER BY full_name ASC"

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return users, nil
}
