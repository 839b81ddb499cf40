package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleUser      = "user"
	RoleReader    = "reader"
)

type Role struct {
	ID          string    `gorm:"type:uuid;primary_key" json:"id"`
	Name        string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:varchar(255)" json:"description"`
	Permissions string    `gorm:"type:jsonb;default:'[]'" json:"-"`
	IsSystem    bool      `gorm:"default:false" json:"is_system"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate hook to generate UUID
func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

func (Role) TableName() string {
	return "roles"
}

func (r *Role) GetPermissions() []string {
	var perms []string
	if err := json.Unmarshal([]byte(r.Permissions), &perms); err != nil {
		return []string{}
	}
	return perms
}

func (r *Role) MarshalJSON() ([]byte, error) {
	type Alias Role
	return json.Marshal(&struct {
		Permissions []string `json:"permissions"`
		*Alias
	}{
		Permissions: r.GetPermissions(),
		Alias:       (*Alias)(r),
	})
}

// DefaultRoles are created at startup when missing.
func DefaultRoles() []Role {
	return []Role{
		{Name: RoleAdmin, Description: "Administrator with full access", Permissions: `["*"]`, IsSystem: true},
		{Name: RoleUser, Description: "Standard user with basic access", Permissions: `["read:own","write:own"]`, IsSystem: true},
		{Name: RoleModerator, Description: "Moderator with content management access", Permissions: `["read:all","write:own","moderate:content"]`, IsSystem: true},
		{Name: RoleReader, Description: "Can read all content but only modify their own", Permissions: `["read:all","write:own"]`, IsSystem: true},
	}
}
