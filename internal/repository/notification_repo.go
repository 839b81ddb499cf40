package repository

import (
	"context"
	"strconv"
	"time"

	"forumhub/internal/model"
	"forumhub/internal/util"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *model.Notification) error
	FindByID(ctx context.Context, id string) (*model.Notification, error)
	FindByUserID(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*model.Notification, int64, error)
	CountUnreadByUserID(ctx context.Context, userID string) (int64, error)
	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, id string) error
}

type notificationRepository struct {
	db    *gorm.DB
	redis *util.RedisClient
}

const (
	notificationCountCachePrefix = "notification:count:"
	notificationCacheExpiration  = 10 * time.Minute
)

func NewNotificationRepository(db *gorm.DB, redis *util.RedisClient) NotificationRepository {
	return &notificationRepository{
		db:    db,
		redis: redis,
	}
}

// Create creates a new notification
func (r *notificationRepository) Create(ctx context.Context, notification *model.Notification) error {
	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		return err
	}
	r.invalidateCountCache(ctx, notification.UserID)
	return nil
}

// FindByID finds a notification by ID
func (r *notificationRepository) FindByID(ctx context.Context, id string) (*model.Notification, error) {
	var notification model.Notification
	err := r.db.WithContext(ctx).Preload("Sender").Where("id = ?", id).First(&notification).Error
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

// FindByUserID finds notifications for a user with pagination
func (r *notificationRepository) FindByUserID(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*model.Notification, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []*model.Notification
	err := query.Preload("Sender").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

// CountUnreadByUserID counts unread notifications for a user
func (r *notificationRepository) CountUnreadByUserID(ctx context.Context, userID string) (int64, error) {
	if r.redis != nil {
		if cached, err := r.redis.Get(ctx, notificationCountCachePrefix+userID); err == nil {
			if count, err := strconv.ParseInt(cached, 10, 64); err == nil {
				return count, nil
			}
		}
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	if r.redis != nil {
		if err := r.redis.Set(ctx, notificationCountCachePrefix+userID, strconv.FormatInt(count, 10), notificationCacheExpiration); err != nil {
			util.Logger.Warn("cache unread count failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return count, nil
}

// MarkAsRead marks a notification as read
func (r *notificationRepository) MarkAsRead(ctx context.Context, id string) error {
	var notification model.Notification
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&notification).Error; err != nil {
		return err
	}

	err := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": time.Now(),
		}).Error
	if err != nil {
		return err
	}

	r.invalidateCountCache(ctx, notification.UserID)
	return nil
}

// MarkAllAsRead marks all notifications as read for a user
func (r *notificationRepository) MarkAllAsRead(ctx context.Context, userID string) error {
	err := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": time.Now(),
		}).Error
	if err != nil {
		return err
	}

	r.invalidateCountCache(ctx, userID)
	return nil
}

// Delete deletes a notification
func (r *notificationRepository) Delete(ctx context.Context, id string) error {
	var notification model.Notification
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&notification).Error; err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Delete(&notification).Error; err != nil {
		return err
	}

	r.invalidateCountCache(ctx, notification.UserID)
	return nil
}

func (r *notificationRepository) invalidateCountCache(ctx context.Context, userID string) {
	if r.redis == nil {
		return
	}
	if err := r.redis.Delete(ctx, notificationCountCachePrefix+userID); err != nil {
		util.Logger.Warn("invalidate unread count failed", zap.String("user_id", userID), zap.Error(err))
	}
}
