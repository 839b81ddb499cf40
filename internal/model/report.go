package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ReportStatusNew       = "new"
	ReportStatusInProcess = "in_process"
	ReportStatusCompleted = "completed"
	ReportStatusDismissed = "dismissed"
)

const ReportTargetUser = "user"

type Report struct {
	ID          string    `gorm:"type:uuid;primary_key" json:"id"`
	ReporterID  string    `gorm:"type:uuid;not null;index" json:"reporter_id"`
	TargetType  string    `gorm:"type:varchar(20);not null;index:idx_reports_target,priority:1" json:"target_type"`
	TargetID    string    `gorm:"type:uuid;not null;index:idx_reports_target,priority:2" json:"target_id"`
	Reason      string    `gorm:"type:varchar(255);not null" json:"reason"`
	Description string    `gorm:"type:text" json:"description"`
	Status      string    `gorm:"type:varchar(20);not null;default:'new';index" json:"status"`
	AssignedTo  *string   `gorm:"type:uuid" json:"assigned_to,omitempty"`
	Resolution  *string   `gorm:"type:text" json:"resolution,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Reporter *User `gorm:"foreignKey:ReporterID;references:ID" json:"reporter,omitempty"`
	Assignee *User `gorm:"foreignKey:AssignedTo;references:ID" json:"assignee,omitempty"`
}

// BeforeCreate hook to generate UUID
func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = ReportStatusNew
	}
	return nil
}

func (Report) TableName() string {
	return "reports"
}

func IsValidReportStatus(s string) bool {
	switch s {
	case ReportStatusNew, ReportStatusInProcess, ReportStatusCompleted, ReportStatusDismissed:
		return true
	}
	return false
}

func IsValidReportTarget(t string) bool {
	return t == TargetTypeComment || t == TargetTypeDiscussion || t == ReportTargetUser
}
