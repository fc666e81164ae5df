package user

import (
	"errors"
	"time"
)

// Seeded role ids. Roles are not user-creatable.
const (
	RoleAdminID   = 1
	RoleStudentID = 2

	RoleAdmin   = "Admin"
	RoleStudent = "Student"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
)

type Role struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type User struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	PasswordHash     string    `json:"-"` // never expose hash in JSON
	FullName         string    `json:"fullName"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	RoleID           int       `json:"roleId"`
	RoleName         string    `json:"roleName"`
	IsActive         bool      `json:"isActive"`
	ProfileImagePath *string   `json:"profileImagePath,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

type CreateParams struct {
	Username         string
	PasswordHash     string
	FullName         string
	Email            string
	Phone            string
	RoleID           int
	ProfileImagePath *string
}

// UpdateParams covers the manage-users edit screen: everything but the
// password, which is only changed through the reset flow.
type UpdateParams struct {
	Username string
	FullName string
	Email    string
	Phone    string
	RoleID   int
	IsActive bool

	// nil leaves the stored image untouched; RemoveProfileImage clears it.
	ProfileImagePath   *string
	RemoveProfileImage bool
}
