package repository

import (
	"context"
	"time"

	"forumhub/internal/model"
	"forumhub/internal/util"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type DiscussionFilter struct {
	Tag            string
	IncludePrivate bool
	Limit          int
	Offset         int
}

type DiscussionRepository interface {
	Create(ctx context.Context, discussion *model.Discussion) error
	FindByID(ctx context.Context, id string) (*model.Discussion, error)
	List(ctx context.Context, filter DiscussionFilter) ([]*model.Discussion, int64, error)
	Update(ctx context.Context, discussion *model.Discussion) error
	IncrementViews(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type discussionRepository struct {
	db    *gorm.DB
	redis *util.RedisClient
}

const (
	discussionCachePrefix     = "discussion:"
	discussionCacheExpiration = 15 * time.Minute
)

func NewDiscussionRepository(db *gorm.DB, redis *util.RedisClient) DiscussionRepository {
	return &discussionRepository{
		db:    db,
		redis: redis,
	}
}

func (r *discussionRepository) Create(ctx context.Context, discussion *model.Discussion) error {
	return r.db.WithContext(ctx).Create(discussion).Error
}

// FindByID finds a discussion by ID, checking cache first
func (r *discussionRepository) FindByID(ctx context.Context, id string) (*model.Discussion, error) {
	if r.redis != nil {
		var cached model.Discussion
		if err := r.redis.GetJSON(ctx, discussionCachePrefix+id, &cached); err == nil {
			return &cached, nil
		}
	}

	var discussion model.Discussion
	err := r.db.WithContext(ctx).Preload("Author").Where("id = ?", id).First(&discussion).Error
	if err != nil {
		return nil, err
	}

	if r.redis != nil {
		if err := r.redis.Set(ctx, discussionCachePrefix+id, &discussion, discussionCacheExpiration); err != nil {
			util.Logger.Warn("cache discussion failed", zap.String("discussion_id", id), zap.Error(err))
		}
	}
	return &discussion, nil
}

// List orders pinned discussions first, then newest.
func (r *discussionRepository) List(ctx context.Context, filter DiscussionFilter) ([]*model.Discussion, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Discussion{})
	if !filter.IncludePrivate {
		query = query.Where("is_private = ?", false)
	}
	if filter.Tag != "" {
		query = query.Where("tags @> ?::jsonb", `["`+filter.Tag+`"]`)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var discussions []*model.Discussion
	err := query.Preload("Author").
		Order("is_pinned DESC, created_at DESC").
		Limit(filter.Limit).Offset(filter.Offset).
		Find(&discussions).Error
	if err != nil {
		return nil, 0, err
	}
	return discussions, total, nil
}

func (r *discussionRepository) Update(ctx context.Context, discussion *model.Discussion) error {
	err := r.db.WithContext(ctx).Model(discussion).Select(
		"title", "content", "content_html", "tags", "is_locked", "is_pinned", "is_private",
	).Updates(discussion).Error
	if err != nil {
		return err
	}
	r.invalidate(ctx, discussion.ID)
	return nil
}

func (r *discussionRepository) IncrementViews(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Model(&model.Discussion{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
	if err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// Delete removes the discussion with its comments and every reaction on either.
func (r *discussionRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		commentIDs := tx.Model(&model.Comment{}).Select("id").Where("discussion_id = ?", id)
		if err := tx.Where("target_type = ? AND target_id IN (?)", model.TargetTypeComment, commentIDs).
			Delete(&model.Reaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("target_type = ? AND target_id = ?", model.TargetTypeDiscussion, id).
			Delete(&model.Reaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("discussion_id = ?", id).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&model.Discussion{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *discussionRepository) invalidate(ctx context.Context, id string) {
	if r.redis == nil {
		return
	}
	if err := r.redis.Delete(ctx, discussionCachePrefix+id); err != nil {
		util.Logger.Warn("invalidate discussion cache failed", zap.String("discussion_id", id), zap.Error(err))
	}
}
