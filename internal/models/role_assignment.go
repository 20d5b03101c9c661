package models

import "time"

// RoleAssignment links a user to a role, optionally scoped to an organization
// or department. Assignments are soft-deactivated on revocation rather than
// hard-deleted.
type RoleAssignment struct {
	BaseModel

	UserID         string  `gorm:"type:uuid;not null;index:idx_role_assignment_user" json:"user_id"`
	RoleID         string  `gorm:"type:uuid;not null;index" json:"role_id"`
	OrganizationID *string `gorm:"type:uuid;index" json:"organization_id"`
	DepartmentID   *string `gorm:"type:uuid;index" json:"department_id"`

	AssignedBy string    `gorm:"type:uuid" json:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at"`
	IsActive   bool      `gorm:"default:true;index:idx_role_assignment_user" json:"is_active"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role *Role `gorm:"foreignKey:RoleID" json:"role,omitempty"`
}
