package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"forumhub/internal/apperr"
	"forumhub/internal/model"
	"forumhub/internal/repository"
	"forumhub/internal/util"

	"go.uber.org/zap"
)

const (
	NotificationQueueName  = "notification_queue"
	NotificationExchange   = "notification_exchange"
	NotificationRoutingKey = "notification"
)

// Publisher is the message broker side used by notification and email delivery.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// UserBroadcaster pushes a payload to every connection of one user.
type UserBroadcaster interface {
	BroadcastToUser(userID string, payload map[string]interface{})
}

type NotificationService interface {
	NotifyCommentReply(ctx context.Context, receiverID, senderID, senderName, commentID, discussionID, content string) error
	NotifyDiscussionComment(ctx context.Context, receiverID, senderID, senderName, commentID, discussionID, content string) error
	NotifyCommentFlagged(ctx context.Context, receiverID, commentID, discussionID string, flagCount int64) error
	NotifyRoleUpdated(ctx context.Context, receiverID, actorID string, roles []string) error
	List(ctx context.Context, requester *Requester, unreadOnly bool, limit, offset int) ([]*model.Notification, int64, error)
	UnreadCount(ctx context.Context, requester *Requester) (int64, error)
	MarkAsRead(ctx context.Context, requester *Requester, notificationID string) error
	MarkAllAsRead(ctx context.Context, requester *Requester) error
	Delete(ctx context.Context, requester *Requester, notificationID string) error
	SetWSHub(hub UserBroadcaster)
}

type notificationService struct {
	notifRepo repository.NotificationRepository
	publisher Publisher
	wsHub     UserBroadcaster
}

// NotificationMessage is the RabbitMQ payload consumed by NotificationWorker
type NotificationMessage struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	SenderID  *string                `json:"sender_id,omitempty"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	TargetID  *string                `json:"target_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	IsRead    bool                   `json:"is_read"`
	Timestamp time.Time              `json:"created_at"`
}

// NewNotificationService builds the service. A nil publisher makes delivery
// go straight to the websocket hub.
func NewNotificationService(notifRepo repository.NotificationRepository, publisher Publisher) NotificationService {
	return &notificationService{
		notifRepo: notifRepo,
		publisher: publisher,
	}
}

// SetWSHub sets the WebSocket hub for realtime notifications
func (s *notificationService) SetWSHub(hub UserBroadcaster) {
	s.wsHub = hub
}

// send saves the notification, then hands it to RabbitMQ or the hub.
func (s *notificationService) send(ctx context.Context, notification *model.Notification, data map[string]interface{}) error {
	if data != nil {
		if dataJSON, err := json.Marshal(data); err == nil {
			notification.Data = string(dataJSON)
		}
	}
	if err := s.notifRepo.Create(ctx, notification); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	msg := NotificationMessage{
		ID:        notification.ID,
		UserID:    notification.UserID,
		SenderID:  notification.SenderID,
		Type:      notification.Type,
		Title:     notification.Title,
		Message:   notification.Message,
		TargetID:  notification.TargetID,
		Data:      data,
		Timestamp: notification.CreatedAt,
	}

	if s.publisher != nil {
		body, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		err = s.publisher.Publish(ctx, NotificationExchange, NotificationRoutingKey, body)
		if err == nil {
			return nil
		}
		util.Logger.Warn("publish notification failed, pushing directly",
			zap.String("notification_id", notification.ID), zap.Error(err))
	}

	if s.wsHub != nil {
		s.wsHub.BroadcastToUser(msg.UserID, msg.payload())
	}
	return nil
}

func (m NotificationMessage) payload() map[string]interface{} {
	p := map[string]interface{}{
		"id":         m.ID,
		"user_id":    m.UserID,
		"type":       m.Type,
		"title":      m.Title,
		"message":    m.Message,
		"is_read":    m.IsRead,
		"created_at": m.Timestamp.Format(time.RFC3339),
	}
	if m.SenderID != nil {
		p["sender_id"] = *m.SenderID
	}
	if m.TargetID != nil {
		p["target_id"] = *m.TargetID
	}
	if m.Data != nil {
		p["data"] = m.Data
	}
	return p
}

func (s *notificationService) NotifyCommentReply(ctx context.Context, receiverID, senderID, senderName, commentID, discussionID, content string) error {
	return s.send(ctx, &model.Notification{
		UserID:   receiverID,
		SenderID: &senderID,
		Type:     model.NotificationTypeCommentReply,
		Title:    "New Reply",
		Message:  fmt.Sprintf("%s replied to your comment", senderName),
		TargetID: &commentID,
	}, map[string]interface{}{
		"comment_id":    commentID,
		"discussion_id": discussionID,
		"sender_name":   senderName,
		"preview":       preview(content),
	})
}

func (s *notificationService) NotifyDiscussionComment(ctx context.Context, receiverID, senderID, senderName, commentID, discussionID, content string) error {
	return s.send(ctx, &model.Notification{
		UserID:   receiverID,
		SenderID: &senderID,
		Type:     model.NotificationTypeDiscussionComment,
		Title:    "New Comment",
		Message:  fmt.Sprintf("%s commented on your discussion", senderName),
		TargetID: &discussionID,
	}, map[string]interface{}{
		"comment_id":    commentID,
		"discussion_id": discussionID,
		"sender_name":   senderName,
		"preview":       preview(content),
	})
}

func (s *notificationService) NotifyCommentFlagged(ctx context.Context, receiverID, commentID, discussionID string, flagCount int64) error {
	return s.send(ctx, &model.Notification{
		UserID:   receiverID,
		Type:     model.NotificationTypeCommentFlagged,
		Title:    "Comment Flagged",
		Message:  "Your comment has been flagged for review by the community",
		TargetID: &commentID,
	}, map[string]interface{}{
		"comment_id":    commentID,
		"discussion_id": discussionID,
		"flag_count":    flagCount,
	})
}

func (s *notificationService) NotifyRoleUpdated(ctx context.Context, receiverID, actorID string, roles []string) error {
	return s.send(ctx, &model.Notification{
		UserID:   receiverID,
		SenderID: &actorID,
		Type:     model.NotificationTypeRoleUpdated,
		Title:    "Roles Updated",
		Message:  "An administrator changed your roles",
	}, map[string]interface{}{
		"roles": roles,
	})
}

func (s *notificationService) List(ctx context.Context, requester *Requester, unreadOnly bool, limit, offset int) ([]*model.Notification, int64, error) {
	if err := requireRequester(requester); err != nil {
		return nil, 0, err
	}
	notifications, total, err := s.notifRepo.FindByUserID(ctx, requester.UserID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, storeErr(err, "notifications")
	}
	return notifications, total, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, requester *Requester) (int64, error) {
	if err := requireRequester(requester); err != nil {
		return 0, err
	}
	count, err := s.notifRepo.CountUnreadByUserID(ctx, requester.UserID)
	if err != nil {
		return 0, storeErr(err, "notifications")
	}
	return count, nil
}

func (s *notificationService) MarkAsRead(ctx context.Context, requester *Requester, notificationID string) error {
	if _, err := s.owned(ctx, requester, notificationID); err != nil {
		return err
	}
	if err := s.notifRepo.MarkAsRead(ctx, notificationID); err != nil {
		return storeErr(err, "notification")
	}
	return nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, requester *Requester) error {
	if err := requireRequester(requester); err != nil {
		return err
	}
	if err := s.notifRepo.MarkAllAsRead(ctx, requester.UserID); err != nil {
		return storeErr(err, "notifications")
	}
	return nil
}

func (s *notificationService) Delete(ctx context.Context, requester *Requester, notificationID string) error {
	if _, err := s.owned(ctx, requester, notificationID); err != nil {
		return err
	}
	if err := s.notifRepo.Delete(ctx, notificationID); err != nil {
		return storeErr(err, "notification")
	}
	return nil
}

// owned loads a notification and hides other users' notifications as not found.
func (s *notificationService) owned(ctx context.Context, requester *Requester, id string) (*model.Notification, error) {
	if err := requireRequester(requester); err != nil {
		return nil, err
	}
	if err := validID(id, "notification"); err != nil {
		return nil, err
	}
	n, err := s.notifRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "notification")
	}
	if n.UserID != requester.UserID {
		return nil, apperr.NotFound("notification not found")
	}
	return n, nil
}

func preview(content string) string {
	const max = 100
	r := []rune(content)
	if len(r) <= max {
		return content
	}
	return string(r[:max]) + "..."
}
