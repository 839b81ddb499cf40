package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reaction is a typed association between a user and a discussion or comment.
// At most one reaction of each type exists per (user, target).
type Reaction struct {
	ID         string    `gorm:"type:uuid;primary_key" json:"id"`
	UserID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_reaction_user_target_type,priority:1" json:"user_id"`
	TargetType string    `gorm:"type:varchar(20);not null;index:idx_reaction_target,priority:1" json:"target_type"`
	TargetID   string    `gorm:"type:uuid;not null;uniqueIndex:idx_reaction_user_target_type,priority:2;index:idx_reaction_target,priority:2" json:"target_id"`
	Type       string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_reaction_user_target_type,priority:3;index:idx_reaction_target,priority:3" json:"type"`
	FlagReason *string   `gorm:"type:text" json:"flag_reason,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate hook to generate UUID
func (r *Reaction) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

func (Reaction) TableName() string {
	return "reactions"
}

const (
	TargetTypeDiscussion = "discussion"
	TargetTypeComment    = "comment"
)

const (
	ReactionLike     = "like"
	ReactionBookmark = "bookmark"
	ReactionFlag     = "flag"
)

// IsValidTargetType reports whether t names a reactable entity.
func IsValidTargetType(t string) bool {
	return t == TargetTypeDiscussion || t == TargetTypeComment
}
