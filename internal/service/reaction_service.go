package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"forumhub/internal/apperr"
	"forumhub/internal/model"
	"forumhub/internal/repository"

	"gorm.io/gorm"
)

type ReactionService interface {
	ToggleLike(ctx context.Context, requester *Requester, targetType, targetID string) (*LikeResult, error)
	ToggleBookmark(ctx context.Context, requester *Requester, discussionID string) (*BookmarkResult, error)
	GetReactionStatus(ctx context.Context, requester *Requester, targetType, targetID string) (*ReactionStatus, error)
	GetUserBookmarks(ctx context.Context, requester *Requester, page, limit int) (*BookmarkPage, error)
	GetShareData(ctx context.Context, requester *Requester, discussionID string) (*ShareData, error)
}

type LikeResult struct {
	Liked     bool   `json:"liked"`
	LikeCount int64  `json:"like_count"`
	Message   string `json:"message"`
}

type BookmarkResult struct {
	Bookmarked bool   `json:"bookmarked"`
	Message    string `json:"message"`
}

type ReactionStatus struct {
	Liked      bool `json:"liked"`
	Bookmarked bool `json:"bookmarked"`
}

type BookmarkPage struct {
	Bookmarks   []*model.Discussion `json:"bookmarks"`
	TotalDocs   int64               `json:"total_docs"`
	TotalPages  int64               `json:"total_pages"`
	CurrentPage int                 `json:"current_page"`
	HasNext     bool                `json:"has_next"`
	HasPrev     bool                `json:"has_prev"`
}

type ShareData struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

type reactionService struct {
	reactionRepo   repository.ReactionRepository
	commentRepo    repository.CommentRepository
	discussionRepo repository.DiscussionRepository
	clientURL      string
}

func NewReactionService(
	reactionRepo repository.ReactionRepository,
	commentRepo repository.CommentRepository,
	discussionRepo repository.DiscussionRepository,
	clientURL string,
) ReactionService {
	return &reactionService{
		reactionRepo:   reactionRepo,
		commentRepo:    commentRepo,
		discussionRepo: discussionRepo,
		clientURL:      strings.TrimRight(clientURL, "/"),
	}
}

// resolveTarget returns the discussion that owns the target.
func (s *reactionService) resolveTarget(ctx context.Context, requester *Requester, targetType, targetID string) (*model.Discussion, error) {
	if !model.IsValidTargetType(targetType) {
		return nil, apperr.InvalidArgument("invalid target type")
	}
	if targetType == model.TargetTypeDiscussion {
		return loadDiscussion(ctx, s.discussionRepo, requester, targetID)
	}
	if err := validID(targetID, "comment"); err != nil {
		return nil, err
	}
	comment, err := s.commentRepo.FindByID(ctx, targetID)
	if err != nil {
		return nil, storeErr(err, "comment")
	}
	return loadDiscussion(ctx, s.discussionRepo, requester, comment.DiscussionID)
}

// ToggleLike adds the requester's like or removes it when present
func (s *reactionService) ToggleLike(ctx context.Context, requester *Requester, targetType, targetID string) (*LikeResult, error) {
	if err := requireRequester(requester); err != nil {
		return nil, err
	}
	discussion, err := s.resolveTarget(ctx, requester, targetType, targetID)
	if err != nil {
		return nil, err
	}
	if discussion.IsLocked && !requester.IsStaff() {
		return nil, apperr.Forbidden("discussion is locked")
	}

	liked, err := s.toggle(ctx, requester.UserID, targetType, targetID, model.ReactionLike)
	if err != nil {
		return nil, err
	}
	count, err := s.reactionRepo.CountByTarget(ctx, targetType, targetID, model.ReactionLike)
	if err != nil {
		return nil, storeErr(err, "likes")
	}

	msg := "Like removed"
	if liked {
		msg = "Like added"
	}
	return &LikeResult{Liked: liked, LikeCount: count, Message: msg}, nil
}

func (s *reactionService) ToggleBookmark(ctx context.Context, requester *Requester, discussionID string) (*BookmarkResult, error) {
	if err := requireRequester(requester); err != nil {
		return nil, err
	}
	if _, err := loadDiscussion(ctx, s.discussionRepo, requester, discussionID); err != nil {
		return nil, err
	}
	bookmarked, err := s.toggle(ctx, requester.UserID, model.TargetTypeDiscussion, discussionID, model.ReactionBookmark)
	if err != nil {
		return nil, err
	}
	msg := "Bookmark removed"
	if bookmarked {
		msg = "Bookmark added"
	}
	return &BookmarkResult{Bookmarked: bookmarked, Message: msg}, nil
}

// toggle reports whether the reaction exists after the call.
func (s *reactionService) toggle(ctx context.Context, userID, targetType, targetID, reactionType string) (bool, error) {
	existing, err := s.reactionRepo.Find(ctx, userID, targetID, reactionType)
	if err == nil {
		if err := s.reactionRepo.Delete(ctx, existing.ID); err != nil {
			return false, storeErr(err, reactionType)
		}
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, storeErr(err, reactionType)
	}

	reaction := &model.Reaction{
		UserID:     userID,
		TargetType: targetType,
		TargetID:   targetID,
		Type:       reactionType,
	}
	if err := s.reactionRepo.Create(ctx, reaction); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, apperr.Conflict(reactionType + " is already being recorded")
		}
		return false, storeErr(err, reactionType)
	}
	return true, nil
}

// GetReactionStatus reports the requester's like and bookmark on a target.
// Anonymous callers always see false.
func (s *reactionService) GetReactionStatus(ctx context.Context, requester *Requester, targetType, targetID string) (*ReactionStatus, error) {
	if _, err := s.resolveTarget(ctx, requester, targetType, targetID); err != nil {
		return nil, err
	}
	status := &ReactionStatus{}
	if requester == nil {
		return status, nil
	}

	liked, err := s.reactionRepo.FindUserReactedTargets(ctx, requester.UserID, targetType, model.ReactionLike, []string{targetID})
	if err != nil {
		return nil, storeErr(err, "like status")
	}
	status.Liked = liked[targetID]

	if targetType == model.TargetTypeDiscussion {
		bookmarked, err := s.reactionRepo.FindUserReactedTargets(ctx, requester.UserID, targetType, model.ReactionBookmark, []string{targetID})
		if err != nil {
			return nil, storeErr(err, "bookmark status")
		}
		status.Bookmarked = bookmarked[targetID]
	}
	return status, nil
}

func (s *reactionService) GetUserBookmarks(ctx context.Context, requester *Requester, page, limit int) (*BookmarkPage, error) {
	if err := requireRequester(requester); err != nil {
		return nil, err
	}
	page, limit = normalizePage(page, limit, 10)

	discussions, total, err := s.reactionRepo.FindBookmarksByUser(ctx, requester.UserID, limit, (page-1)*limit)
	if err != nil {
		return nil, storeErr(err, "bookmarks")
	}
	if discussions == nil {
		discussions = []*model.Discussion{}
	}
	return &BookmarkPage{
		Bookmarks:   discussions,
		TotalDocs:   total,
		TotalPages:  (total + int64(limit) - 1) / int64(limit),
		CurrentPage: page,
		HasNext:     int64(page*limit) < total,
		HasPrev:     page > 1,
	}, nil
}

func (s *reactionService) GetShareData(ctx context.Context, requester *Requester, discussionID string) (*ShareData, error) {
	discussion, err := loadDiscussion(ctx, s.discussionRepo, requester, discussionID)
	if err != nil {
		return nil, err
	}
	text := "Check out this discussion"
	if discussion.Author != nil {
		text = fmt.Sprintf("Check out this discussion by %s", discussion.Author.FullName())
	}
	return &ShareData{
		Title: discussion.Title,
		Text:  text,
		URL:   fmt.Sprintf("%s/discussions/%s", s.clientURL, discussion.ID),
	}, nil
}
