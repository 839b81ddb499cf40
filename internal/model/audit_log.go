package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AuditRegister       = "register"
	AuditLogin          = "login"
	AuditProfileUpdate  = "profile_update"
	AuditPasswordChange = "password_change"
	AuditRoleChange     = "role_change"
)

// AuditLog is an append-only record of account-level events.
type AuditLog struct {
	ID        string    `gorm:"type:uuid;primary_key" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	ActorID   *string   `gorm:"type:uuid" json:"actor_id,omitempty"`
	Action    string    `gorm:"type:varchar(50);not null;index" json:"action"`
	Details   string    `gorm:"type:jsonb;default:'{}'" json:"details"`
	IPAddress string    `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// BeforeCreate hook to generate UUID
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Details == "" {
		a.Details = "{}"
	}
	return nil
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
