package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens issued by the identity provider.
type JWTClaims struct {
	UserID       string   `json:"user_id"`
	Role         UserRole `json:"role"`
	Email        string   `json:"email"`
	FullName     string   `json:"full_name"`
	DepartmentID string   `json:"department_id,omitempty"`
	jwt.RegisteredClaims
}

// IsReviewer reports whether the caller may act on behalf of a department.
func (c *JWTClaims) IsReviewer() bool {
	return c != nil && (c.Role == RoleAdmin || c.Role == RoleHOD)
}
