package models

import "time"

// UserRole represents the available roles in the back office.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleManager   UserRole = "MANAGER"
	RoleTeacher   UserRole = "TEACHER"
	RoleStudent   UserRole = "STUDENT"
	RoleApplicant UserRole = "APPLICANT"
)

// ValidRole reports whether the given role is one of the known roles.
func ValidRole(r UserRole) bool {
	switch r {
	case RoleAdmin, RoleManager, RoleTeacher, RoleStudent, RoleApplicant:
		return true
	}
	return false
}

// User represents an application user stored in the users table.
type User struct {
	ID                 string     `db:"id" json:"id"`
	Email              string     `db:"email" json:"email"`
	PasswordHash       string     `db:"password_hash" json:"-"`
	Role               UserRole   `db:"role" json:"role"`
	Superuser          bool       `db:"superuser" json:"superuser"`
	Phone              string     `db:"phone" json:"phone"`
	StudentFullName    string     `db:"student_full_name" json:"student_full_name"`
	ParentFullName     string     `db:"parent_full_name" json:"parent_full_name"`
	ParentPasswordHash string     `db:"parent_password_hash" json:"-"`
	Active             bool       `db:"active" json:"active"`
	LastLogin          *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Roles     []UserRole
	Superuser *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
