package repository

import (
	"context"
	"errors"
	"time"

	"forumhub/internal/model"
	"forumhub/internal/util"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ProfileRepository interface {
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)
	FindOrCreate(ctx context.Context, userID string) (*model.Profile, error)
	Update(ctx context.Context, profile *model.Profile) error
}

type profileRepository struct {
	db    *gorm.DB
	redis *util.RedisClient
}

const (
	profileCachePrefix     = "profile:user:"
	profileCacheExpiration = 30 * time.Minute
)

func NewProfileRepository(db *gorm.DB, redis *util.RedisClient) ProfileRepository {
	return &profileRepository{
		db:    db,
		redis: redis,
	}
}

// FindByUserID finds a profile by user ID, checking cache first
func (r *profileRepository) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	if r.redis != nil {
		var cached model.Profile
		if err := r.redis.GetJSON(ctx, profileCachePrefix+userID, &cached); err == nil {
			return &cached, nil
		}
	}

	var profile model.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, err
	}

	if r.redis != nil {
		if err := r.redis.Set(ctx, profileCachePrefix+userID, &profile, profileCacheExpiration); err != nil {
			util.Logger.Warn("cache profile failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return &profile, nil
}

func (r *profileRepository) FindOrCreate(ctx context.Context, userID string) (*model.Profile, error) {
	profile, err := r.FindByUserID(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	profile = &model.Profile{UserID: userID}
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

func (r *profileRepository) Update(ctx context.Context, profile *model.Profile) error {
	if err := r.db.WithContext(ctx).Save(profile).Error; err != nil {
		return err
	}
	if r.redis != nil {
		if err := r.redis.Delete(ctx, profileCachePrefix+profile.UserID); err != nil {
			util.Logger.Warn("invalidate profile cache failed", zap.String("user_id", profile.UserID), zap.Error(err))
		}
	}
	return nil
}
