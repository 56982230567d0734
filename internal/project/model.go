package project

import (
	"time"

	"github.com/google/uuid"
)

// Role is a member's permission level within one project.
type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleMember Role = "Member"
	RoleViewer Role = "Viewer"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// DefaultType is used when a project is created without a type.
const DefaultType = "software"

// Key length bounds, applied after trimming.
const (
	MinKeyLength = 2
	MaxKeyLength = 10
)

// Member is one entry of a project's access list.
type Member struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Project is a named container of issues with its own member list.
// Members are kept in the order they were added.
type Project struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	Description *string   `json:"description"`
	Type        string    `json:"type"`
	Owner       string    `json:"owner"`
	Members     []Member  `json:"members"`
	CreatedAt   time.Time `json:"created_at"`
}

// Input carries the user-editable fields of a project.
type Input struct {
	Name        string  `json:"name"`
	Key         string  `json:"key"`
	Description *string `json:"description"`
	Type        string  `json:"type"`
}
