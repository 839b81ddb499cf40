package service

import (
	"context"
	"errors"

	"forumhub/internal/apperr"
	"forumhub/internal/model"
	"forumhub/internal/repository"
	"forumhub/internal/util"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	EventCommentCreated = "comment_created"
	EventCommentUpdated = "comment_updated"
	EventCommentDeleted = "comment_deleted"

	DefaultFlagThreshold = 3
)

// DiscussionBroadcaster pushes an event to every subscriber of a discussion room.
type DiscussionBroadcaster interface {
	BroadcastToDiscussion(discussionID, eventType string, payload interface{})
}

type CommentService interface {
	CreateComment(ctx context.Context, requester *Requester, req CreateCommentRequest) (*model.Comment, error)
	UpdateComment(ctx context.Context, requester *Requester, commentID string, req UpdateCommentRequest) (*model.Comment, error)
	DeleteComment(ctx context.Context, requester *Requester, commentID string) error
	FlagComment(ctx context.Context, requester *Requester, commentID string, req FlagCommentRequest) (*FlagResult, error)
	SetWSHub(hub DiscussionBroadcaster)
}

type CreateCommentRequest struct {
	DiscussionID string  `json:"discussion_id" binding:"required"`
	ParentID     *string `json:"parent_id,omitempty"`
	Content      string  `json:"content" binding:"required"`
}

type UpdateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

type FlagCommentRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type FlagResult struct {
	CommentID string `json:"comment_id"`
	IsFlagged bool   `json:"is_flagged"`
	FlagCount int64  `json:"flag_count"`
}

type commentService struct {
	commentRepo         repository.CommentRepository
	discussionRepo      repository.DiscussionRepository
	reactionRepo        repository.ReactionRepository
	userRepo            repository.UserRepository
	notificationService NotificationService
	wsHub               DiscussionBroadcaster
	flagThreshold       int64
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	discussionRepo repository.DiscussionRepository,
	reactionRepo repository.ReactionRepository,
	userRepo repository.UserRepository,
	notificationService NotificationService,
	flagThreshold int,
) CommentService {
	if flagThreshold <= 0 {
		flagThreshold = DefaultFlagThreshold
	}
	return &commentService{
		commentRepo:         commentRepo,
		discussionRepo:      discussionRepo,
		reactionRepo:        reactionRepo,
		userRepo:            userRepo,
		notificationService: notificationService,
		flagThreshold:       int64(flagThreshold),
	}
}

func (s *commentService) SetWSHub(hub DiscussionBroadcaster) {
	s.wsHub = hub
}

// CreateComment adds a root comment or a reply to a discussion
func (s *commentService) CreateComment(ctx context.Context, requester *Requester, req CreateCommentRequest) (*model.Comment, error) {
	if err := requireRequester(requester); err != nil {
		return nil, err
	}
	content := util.SanitizeText(req.Content)
	if content == "" {
		return nil, apperr.InvalidArgument("comment content is required")
	}

	discussion, err := loadDiscussion(ctx, s.discussionRepo, requester, req.DiscussionID)
	if err != nil {
		return nil, err
	}
	if discussion.IsLocked && !requester.IsStaff() {
		return nil, apperr.Forbidden("discussion is locked")
	}

	var parent *model.Comment
	if req.ParentID != nil && *req.ParentID != "" {
		if err := validID(*req.ParentID, "parent comment"); err != nil {
			return nil, err
		}
		parent, err = s.commentRepo.FindByID(ctx, *req.ParentID)
		if err != nil {
			return nil, storeErr(err, "parent comment")
		}
		if parent.DiscussionID != discussion.ID {
			return nil, apperr.InvalidArgument("parent comment belongs to a different discussion")
		}
	}

	comment := &model.Comment{
		DiscussionID: discussion.ID,
		AuthorID:     requester.UserID,
		Content:      content,
	}
	if parent != nil {
		comment.ParentID = &parent.ID
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, storeErr(err, "comment")
	}

	senderName := requester.Email
	if author, err := s.userRepo.FindByID(ctx, requester.UserID); err == nil {
		comment.Author = author
		senderName = author.FullName()
	}

	s.notifyNewComment(ctx, comment, parent, discussion, senderName)
	s.broadcast(comment, EventCommentCreated)
	return comment, nil
}

func (s *commentService) notifyNewComment(ctx context.Context, comment, parent *model.Comment, discussion *model.Discussion, senderName string) {
	if s.notificationService == nil {
		return
	}
	var err error
	switch {
	case !comment.IsRoot() && parent.AuthorID != comment.AuthorID:
		err = s.notificationService.NotifyCommentReply(ctx, parent.AuthorID, comment.AuthorID, senderName, comment.ID, discussion.ID, comment.Content)
	case comment.IsRoot() && discussion.AuthorID != comment.AuthorID:
		err = s.notificationService.NotifyDiscussionComment(ctx, discussion.AuthorID, comment.AuthorID, senderName, comment.ID, discussion.ID, comment.Content)
	}
	if err != nil {
		util.Logger.Warn("comment notification failed", zap.String("comment_id", comment.ID), zap.Error(err))
	}
}

// UpdateComment replaces the content of a live comment
func (s *commentService) UpdateComment(ctx context.Context, requester *Requester, commentID string, req UpdateCommentRequest) (*model.Comment, error) {
	comment, err := s.loadForMutation(ctx, requester, commentID)
	if err != nil {
		return nil, err
	}
	if !requester.Is(comment.AuthorID) && !requester.IsStaff() {
		return nil, apperr.Forbidden("you can only edit your own comments")
	}
	if !requester.IsStaff() {
		discussion, err := s.discussionRepo.FindByID(ctx, comment.DiscussionID)
		if err != nil {
			return nil, storeErr(err, "discussion")
		}
		if discussion.IsLocked {
			return nil, apperr.Forbidden("discussion is locked")
		}
	}
	if comment.IsDeleted {
		return nil, apperr.InvalidArgument("deleted comments cannot be edited")
	}
	content := util.SanitizeText(req.Content)
	if content == "" {
		return nil, apperr.InvalidArgument("comment content is required")
	}

	if err := s.commentRepo.UpdateContent(ctx, comment.ID, content); err != nil {
		return nil, storeErr(err, "comment")
	}
	comment.Content = content
	comment.IsEdited = true
	s.broadcast(comment, EventCommentUpdated)
	return comment, nil
}

// DeleteComment tombstones the comment and keeps its replies reachable
func (s *commentService) DeleteComment(ctx context.Context, requester *Requester, commentID string) error {
	comment, err := s.loadForMutation(ctx, requester, commentID)
	if err != nil {
		return err
	}
	if !requester.Is(comment.AuthorID) && !requester.IsStaff() {
		return apperr.Forbidden("you can only delete your own comments")
	}
	if comment.IsDeleted {
		return nil
	}

	if err := s.commentRepo.Tombstone(ctx, comment.ID); err != nil {
		return storeErr(err, "comment")
	}
	comment.Tombstone()
	s.broadcast(comment, EventCommentDeleted)
	return nil
}

// FlagComment records a flag and marks the comment once the threshold is reached
func (s *commentService) FlagComment(ctx context.Context, requester *Requester, commentID string, req FlagCommentRequest) (*FlagResult, error) {
	if err := requireRequester(requester); err != nil {
		return nil, err
	}
	reason := util.SanitizeText(req.Reason)
	if reason == "" {
		return nil, apperr.InvalidArgument("flag reason is required")
	}
	comment, err := s.loadForMutation(ctx, requester, commentID)
	if err != nil {
		return nil, err
	}

	_, err = s.reactionRepo.Find(ctx, requester.UserID, comment.ID, model.ReactionFlag)
	switch {
	case err == nil:
		return nil, apperr.Conflict("you have already flagged this comment")
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, storeErr(err, "flag")
	}

	flag := &model.Reaction{
		UserID:     requester.UserID,
		TargetType: model.TargetTypeComment,
		TargetID:   comment.ID,
		Type:       model.ReactionFlag,
		FlagReason: &reason,
	}
	if err := s.reactionRepo.Create(ctx, flag); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("you have already flagged this comment")
		}
		return nil, storeErr(err, "flag")
	}

	count, err := s.reactionRepo.CountByTarget(ctx, model.TargetTypeComment, comment.ID, model.ReactionFlag)
	if err != nil {
		return nil, storeErr(err, "flags")
	}
	if count >= s.flagThreshold && !comment.IsFlagged {
		if err := s.commentRepo.MarkFlagged(ctx, comment.ID); err != nil {
			return nil, storeErr(err, "comment")
		}
		comment.IsFlagged = true
		if s.notificationService != nil {
			if err := s.notificationService.NotifyCommentFlagged(ctx, comment.AuthorID, comment.ID, comment.DiscussionID, count); err != nil {
				util.Logger.Warn("flag notification failed", zap.String("comment_id", comment.ID), zap.Error(err))
			}
		}
	}

	return &FlagResult{CommentID: comment.ID, IsFlagged: comment.IsFlagged, FlagCount: count}, nil
}

func (s *commentService) loadForMutation(ctx context.Context, requester *Requester, commentID string) (*model.Comment, error) {
	if err := requireRequester(requester); err != nil {
		return nil, err
	}
	if err := validID(commentID, "comment"); err != nil {
		return nil, err
	}
	comment, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		return nil, storeErr(err, "comment")
	}
	return comment, nil
}

func (s *commentService) broadcast(comment *model.Comment, event string) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.BroadcastToDiscussion(comment.DiscussionID, event, comment)
}
