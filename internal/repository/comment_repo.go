package repository

import (
	"context"

	"forumhub/internal/model"

	"gorm.io/gorm"
)

// visibleComment keeps live comments and tombstones with at least one live
// descendant. UNION stops the walk on cyclic parent data.
const visibleComment = `(comments.is_deleted = false OR EXISTS (
	WITH RECURSIVE descendants AS (
		SELECT c.id, c.is_deleted FROM comments c WHERE c.parent_id = comments.id
		UNION
		SELECT c.id, c.is_deleted FROM comments c JOIN descendants d ON c.parent_id = d.id
	)
	SELECT 1 FROM descendants WHERE descendants.is_deleted = false
))`

type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	UpdateContent(ctx context.Context, id, content string) error
	Tombstone(ctx context.Context, id string) error
	MarkFlagged(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*model.Comment, error)
	FindRoots(ctx context.Context, discussionID string, limit, offset int) ([]*model.Comment, error)
	CountRoots(ctx context.Context, discussionID string) (int64, error)
	FindChildren(ctx context.Context, discussionID, parentID string, limit, offset int) ([]*model.Comment, error)
	CountChildren(ctx context.Context, discussionID, parentID string) (int64, error)
	FindAllByDiscussion(ctx context.Context, discussionID string) ([]*model.Comment, error)
	CountByDiscussionIDs(ctx context.Context, discussionIDs []string) (map[string]int64, error)
	IDsByDiscussion(ctx context.Context, discussionID string) ([]string, error)
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *model.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// UpdateContent writes an edit. Only content and is_edited are touched so a
// concurrent flag or delete is never overwritten.
func (r *commentRepository) UpdateContent(ctx context.Context, id, content string) error {
	return r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":   content,
			"is_edited": true,
		}).Error
}

func (r *commentRepository) Tombstone(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":    model.DeletedCommentPlaceholder,
			"is_deleted": true,
		}).Error
}

func (r *commentRepository) MarkFlagged(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("id = ?", id).
		UpdateColumn("is_flagged", true).Error
}

func (r *commentRepository) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	var comment model.Comment
	err := r.db.WithContext(ctx).Preload("Author").Where("id = ?", id).First(&comment).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// FindRoots returns a page of visible top-level comments, newest first.
func (r *commentRepository) FindRoots(ctx context.Context, discussionID string, limit, offset int) ([]*model.Comment, error) {
	var comments []*model.Comment
	err := r.db.WithContext(ctx).Preload("Author").
		Where("discussion_id = ? AND parent_id IS NULL", discussionID).
		Where(visibleComment).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *commentRepository) CountRoots(ctx context.Context, discussionID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("discussion_id = ? AND parent_id IS NULL", discussionID).
		Where(visibleComment).
		Count(&count).Error
	return count, err
}

// FindChildren returns a page of visible direct replies, oldest first.
func (r *commentRepository) FindChildren(ctx context.Context, discussionID, parentID string, limit, offset int) ([]*model.Comment, error) {
	var comments []*model.Comment
	err := r.db.WithContext(ctx).Preload("Author").
		Where("discussion_id = ? AND parent_id = ?", discussionID, parentID).
		Where(visibleComment).
		Order("created_at ASC").
		Limit(limit).Offset(offset).
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *commentRepository) CountChildren(ctx context.Context, discussionID, parentID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("discussion_id = ? AND parent_id = ?", discussionID, parentID).
		Where(visibleComment).
		Count(&count).Error
	return count, err
}

// FindAllByDiscussion lists every visible comment in creation order.
func (r *commentRepository) FindAllByDiscussion(ctx context.Context, discussionID string) ([]*model.Comment, error) {
	var comments []*model.Comment
	err := r.db.WithContext(ctx).Preload("Author").
		Where("discussion_id = ?", discussionID).
		Where(visibleComment).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// CountByDiscussionIDs counts live comments for several discussions in one query
func (r *commentRepository) CountByDiscussionIDs(ctx context.Context, discussionIDs []string) (map[string]int64, error) {
	if len(discussionIDs) == 0 {
		return map[string]int64{}, nil
	}
	var results []struct {
		DiscussionID string
		Count        int64
	}
	err := r.db.WithContext(ctx).Model(&model.Comment{}).
		Select("discussion_id, count(*) as count").
		Where("discussion_id IN ? AND is_deleted = ?", discussionIDs, false).
		Group("discussion_id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	m := make(map[string]int64, len(discussionIDs))
	for _, id := range discussionIDs {
		m[id] = 0
	}
	for _, row := range results {
		m[row.DiscussionID] = row.Count
	}
	return m, nil
}

func (r *commentRepository) IDsByDiscussion(ctx context.Context, discussionID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("discussion_id = ?", discussionID).
		Pluck("id", &ids).Error
	return ids, err
}
