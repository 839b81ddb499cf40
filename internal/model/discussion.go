package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DiscussionTitleMaxLen = 200

type Discussion struct {
	ID          string    `gorm:"type:uuid;primary_key" json:"id"`
	Title       string    `gorm:"type:varchar(200);not null" json:"title"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	ContentHTML string    `gorm:"type:text" json:"content_html"`
	AuthorID    string    `gorm:"type:uuid;not null;index" json:"author_id"`
	Tags        string    `gorm:"type:jsonb;default:'[]'" json:"-"`
	Views       int64     `gorm:"default:0" json:"views"`
	IsLocked    bool      `gorm:"default:false" json:"is_locked"`
	IsPinned    bool      `gorm:"default:false;index:idx_discussions_listing,priority:1" json:"is_pinned"`
	IsPrivate   bool      `gorm:"default:false" json:"is_private"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index:idx_discussions_listing,priority:2" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Author *User `gorm:"foreignKey:AuthorID;references:ID" json:"author,omitempty"`

	LikesCount    int64 `gorm:"-" json:"likes_count"`
	CommentsCount int64 `gorm:"-" json:"comments_count"`
}

// BeforeCreate hook to generate UUID
func (d *Discussion) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Tags == "" {
		d.Tags = "[]"
	}
	return nil
}

func (Discussion) TableName() string {
	return "discussions"
}

// GetTags returns Tags as a slice of strings
func (d *Discussion) GetTags() []string {
	if d.Tags == "" || d.Tags == "[]" {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal([]byte(d.Tags), &tags); err != nil {
		return []string{}
	}
	return tags
}

// SetTags sets Tags from a slice of strings
func (d *Discussion) SetTags(tags []string) error {
	if len(tags) == 0 {
		d.Tags = "[]"
		return nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	d.Tags = string(b)
	return nil
}

// MarshalJSON exposes Tags as an array
func (d *Discussion) MarshalJSON() ([]byte, error) {
	type Alias Discussion
	aux := &struct {
		Tags []string `json:"tags"`
		*Alias
	}{
		Tags:  d.GetTags(),
		Alias: (*Alias)(d),
	}
	return json.Marshal(aux)
}

// UnmarshalJSON accepts the array form produced by MarshalJSON (used by the cache).
func (d *Discussion) UnmarshalJSON(data []byte) error {
	type Alias Discussion
	aux := &struct {
		Tags []string `json:"tags"`
		*Alias
	}{
		Alias: (*Alias)(d),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	return d.SetTags(aux.Tags)
}
