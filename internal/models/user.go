package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdministrator UserRole = "Administrator"
	RoleStaff         UserRole = "Staff"
	RoleReviewer      UserRole = "Reviewer"
	RoleAnnotator     UserRole = "Annotator"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdministrator, RoleStaff, RoleReviewer, RoleAnnotator:
		return true
	}
	return false
}

// User represents an application user stored in the users table. The bcrypt hash embeds
// its own salt.
type User struct {
	ID                  uint64     `db:"id" json:"-"`
	Username            string     `db:"username" json:"username"`
	Email               string     `db:"email" json:"email"`
	PasswordHash        string     `db:"password_hash" json:"-"`
	Role                UserRole   `db:"role" json:"role"`
	PasswordResetNeeded bool       `db:"password_reset_needed" json:"passwordResetNeeded"`
	PasswordLastChanged *time.Time `db:"password_last_changed" json:"passwordLastChanged,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"createdAt"`
	DeactivatedAt       *time.Time `db:"deactivated_at" json:"-"`
}

// IsAdministrator reports whether the user holds the Administrator role.
func (u *User) IsAdministrator() bool {
	return u != nil && u.Role == RoleAdministrator
}

// HasRole reports whether the user role is one of roles.
func (u *User) HasRole(roles ...UserRole) bool {
	if u == nil {
		return false
	}
	for _, role := range roles {
		if u.Role == role {
			return true
		}
	}
	return false
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role     *UserRole
	Page     int
	PageSize int
}

// CreateUserRequest is used both for initial setup and for administrator driven creation.
type CreateUserRequest struct {
	Username string   `json:"username" validate:"required,max=150"`
	Email    string   `json:"email" validate:"omitempty,email,max=254"`
	Password string   `json:"password" validate:"required,max=72"`
	Role     UserRole `json:"role" validate:"omitempty,oneof=Administrator Staff Reviewer Annotator"`
}

// AssignRoleRequest changes a user's role.
type AssignRoleRequest struct {
	Role UserRole `json:"role" validate:"required,oneof=Administrator Staff Reviewer Annotator"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
}
