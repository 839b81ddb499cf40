package repository

import (
	"context"

	"forumhub/internal/model"

	"gorm.io/gorm"
)

type ReactionRepository interface {
	Create(ctx context.Context, reaction *model.Reaction) error
	Find(ctx context.Context, userID, targetID, reactionType string) (*model.Reaction, error)
	Delete(ctx context.Context, id string) error
	CountByTarget(ctx context.Context, targetType, targetID, reactionType string) (int64, error)
	CountByTargets(ctx context.Context, targetType, reactionType string, targetIDs []string) (map[string]int64, error)
	FindUserReactedTargets(ctx context.Context, userID, targetType, reactionType string, targetIDs []string) (map[string]bool, error)
	FindBookmarksByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Discussion, int64, error)
}

type reactionRepository struct {
	db *gorm.DB
}

func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

func (r *reactionRepository) Create(ctx context.Context, reaction *model.Reaction) error {
	return r.db.WithContext(ctx).Create(reaction).Error
}

func (r *reactionRepository) Find(ctx context.Context, userID, targetID, reactionType string) (*model.Reaction, error) {
	var reaction model.Reaction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND target_id = ? AND type = ?", userID, targetID, reactionType).
		First(&reaction).Error
	if err != nil {
		return nil, err
	}
	return &reaction, nil
}

func (r *reactionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Reaction{}).Error
}

func (r *reactionRepository) CountByTarget(ctx context.Context, targetType, targetID, reactionType string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Reaction{}).
		Where("target_type = ? AND target_id = ? AND type = ?", targetType, targetID, reactionType).
		Count(&count).Error
	return count, err
}

// CountByTargets counts reactions for multiple targets in one query. Every
// requested id is present in the result.
func (r *reactionRepository) CountByTargets(ctx context.Context, targetType, reactionType string, targetIDs []string) (map[string]int64, error) {
	if len(targetIDs) == 0 {
		return map[string]int64{}, nil
	}
	var results []struct {
		TargetID string
		Count    int64
	}
	err := r.db.WithContext(ctx).Model(&model.Reaction{}).
		Select("target_id, count(*) as count").
		Where("target_type = ? AND type = ? AND target_id IN ?", targetType, reactionType, targetIDs).
		Group("target_id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	m := make(map[string]int64, len(targetIDs))
	for _, id := range targetIDs {
		m[id] = 0
	}
	for _, row := range results {
		m[row.TargetID] = row.Count
	}
	return m, nil
}

// FindUserReactedTargets returns which of the targets the user has reacted to
func (r *reactionRepository) FindUserReactedTargets(ctx context.Context, userID, targetType, reactionType string, targetIDs []string) (map[string]bool, error) {
	if len(targetIDs) == 0 {
		return map[string]bool{}, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Reaction{}).
		Where("user_id = ? AND target_type = ? AND type = ? AND target_id IN ?", userID, targetType, reactionType, targetIDs).
		Pluck("target_id", &ids).Error
	if err != nil {
		return nil, err
	}
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m, nil
}

// FindBookmarksByUser lists bookmarked discussions, most recently bookmarked first.
func (r *reactionRepository) FindBookmarksByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Discussion, int64, error) {
	db := r.db.WithContext(ctx)
	base := db.Model(&model.Reaction{}).
		Where("user_id = ? AND target_type = ? AND type = ?", userID, model.TargetTypeDiscussion, model.ReactionBookmark)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var discussions []*model.Discussion
	err := db.Preload("Author").
		Joins("JOIN reactions ON reactions.target_id = discussions.id").
		Where("reactions.user_id = ? AND reactions.target_type = ? AND reactions.type = ?", userID, model.TargetTypeDiscussion, model.ReactionBookmark).
		Order("reactions.created_at DESC").
		Limit(limit).Offset(offset).
		Find(&discussions).Error
	if err != nil {
		return nil, 0, err
	}
	return discussions, total, nil
}
