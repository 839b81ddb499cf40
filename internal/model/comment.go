package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeletedCommentPlaceholder replaces the body of a soft-deleted comment.
const DeletedCommentPlaceholder = "[Comment deleted]"

type Comment struct {
	ID           string    `gorm:"type:uuid;primary_key" json:"id"`
	DiscussionID string    `gorm:"type:uuid;not null;index:idx_comments_discussion_parent,priority:1" json:"discussion_id"`
	AuthorID     string    `gorm:"type:uuid;not null;index" json:"author_id"`
	ParentID     *string   `gorm:"type:uuid;index:idx_comments_discussion_parent,priority:2;index" json:"parent_id"`
	Content      string    `gorm:"type:text;not null" json:"-"`
	IsEdited     bool      `gorm:"default:false" json:"is_edited"`
	IsDeleted    bool      `gorm:"default:false;index" json:"is_deleted"`
	IsFlagged    bool      `gorm:"default:false" json:"is_flagged"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Author *User `gorm:"foreignKey:AuthorID;references:ID" json:"author,omitempty"`
}

// BeforeCreate hook to generate UUID
func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

func (Comment) TableName() string {
	return "comments"
}

// MarshalJSON renders content through Body so a tombstone never leaks its stored text.
func (c *Comment) MarshalJSON() ([]byte, error) {
	type Alias Comment
	aux := &struct {
		Content string `json:"content"`
		*Alias
	}{
		Content: c.Body().Render(),
		Alias:   (*Alias)(c),
	}
	return json.Marshal(aux)
}

// IsRoot reports whether the comment hangs directly off its discussion.
func (c *Comment) IsRoot() bool {
	return c.ParentID == nil
}

// Body returns the renderable content of the comment.
func (c *Comment) Body() CommentBody {
	if c.IsDeleted {
		return DeletedBody{}
	}
	return LiveBody{Text: c.Content}
}

// Tombstone soft-deletes the comment in memory.
func (c *Comment) Tombstone() {
	c.IsDeleted = true
	c.Content = DeletedCommentPlaceholder
}

// CommentBody is either LiveBody or DeletedBody.
type CommentBody interface {
	Render() string
	Deleted() bool
	isCommentBody()
}

type LiveBody struct {
	Text string
}

func (b LiveBody) Render() string { return b.Text }
func (LiveBody) Deleted() bool    { return false }
func (LiveBody) isCommentBody()   {}

type DeletedBody struct{}

func (DeletedBody) Render() string { return DeletedCommentPlaceholder }
func (DeletedBody) Deleted() bool  { return true }
func (DeletedBody) isCommentBody() {}
