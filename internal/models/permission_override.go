package models

import "time"

// PermissionOverride is a per-user exception layered on top of role-derived
// permissions: an explicit grant (IsActive true) or revoke (IsActive false)
// with an optional validity window. At most one row exists per
// (user, permission) pair; a new override supersedes the previous one.
type PermissionOverride struct {
	BaseModel

	UserID       string `gorm:"type:uuid;not null;uniqueIndex:idx_override_user_permission" json:"user_id"`
	PermissionID string `gorm:"not null;uniqueIndex:idx_override_user_permission" json:"permission_id"`

	GrantedBy  string     `gorm:"type:uuid" json:"granted_by"`
	GrantedAt  time.Time  `json:"granted_at"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`
	IsActive   bool       `gorm:"default:true" json:"is_active"`
	Notes      string     `json:"notes"`

	User       *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Permission *Permission `gorm:"foreignKey:PermissionID" json:"permission,omitempty"`
}
