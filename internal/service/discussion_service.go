package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"forumhub/internal/apperr"
	"forumhub/internal/model"
	"forumhub/internal/repository"
	"forumhub/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type DiscussionService interface {
	List(ctx context.Context, requester *Requester, page, limit int, tag string) (*DiscussionPage, error)
	Get(ctx context.Context, requester *Requester, id string) (*model.Discussion, error)
	Create(ctx context.Context, requester *Requester, req CreateDiscussionRequest) (*model.Discussion, error)
	Update(ctx context.Context, requester *Requester, id string, req UpdateDiscussionRequest) (*model.Discussion, error)
	Delete(ctx context.Context, requester *Requester, id string) error
	ToggleLock(ctx context.Context, requester *Requester, id string) (*model.Discussion, error)
	TogglePin(ctx context.Context, requester *Requester, id string) (*model.Discussion, error)
}

type CreateDiscussionRequest struct {
	Title     string   `json:"title" binding:"required,max=200"`
	Content   string   `json:"content" binding:"required"`
	Tags      []string `json:"tags"`
	IsPrivate bool     `json:"is_private"`
}

// UpdateDiscussionRequest leaves nil fields untouched.
type UpdateDiscussionRequest struct {
	Title     *string  `json:"title,omitempty" binding:"omitempty,max=200"`
	Content   *string  `json:"content,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	IsPrivate *bool    `json:"is_private,omitempty"`
}

type DiscussionPage struct {
	Discussions []*model.Discussion `json:"discussions"`
	Total       int64               `json:"total"`
	Page        int                 `json:"page"`
	Limit       int                 `json:"limit"`
	HasMore     bool                `json:"has_more"`
}

type discussionService struct {
	discussionRepo repository.DiscussionRepository
	commentRepo    repository.CommentRepository
	reactionRepo   repository.ReactionRepository
}

func NewDiscussionService(
	discussionRepo repository.DiscussionRepository,
	commentRepo repository.CommentRepository,
	reactionRepo repository.ReactionRepository,
) DiscussionService {
	return &discussionService{
		discussionRepo: discussionRepo,
		commentRepo:    commentRepo,
		reactionRepo:   reactionRepo,
	}
}

// List returns pinned discussions first, then newest, with engagement counts.
func (s *discussionService) List(ctx context.Context, requester *Requester, page, limit int, tag string) (*DiscussionPage, error) {
	page, limit = normalizePage(page, limit, 10)
	discussions, total, err := s.discussionRepo.List(ctx, repository.DiscussionFilter{
		Tag:            normalizeTag(tag),
		IncludePrivate: requester != nil,
		Limit:          limit,
		Offset:         (page - 1) * limit,
	})
	if err != nil {
		return nil, storeErr(err, "discussions")
	}
	if discussions == nil {
		discussions = []*model.Discussion{}
	}
	if err := s.fillCounts(ctx, discussions); err != nil {
		return nil, err
	}
	return &DiscussionPage{
		Discussions: discussions,
		Total:       total,
		Page:        page,
		Limit:       limit,
		HasMore:     total > int64(page*limit),
	}, nil
}

// fillCounts loads like and comment counts for the page concurrently.
func (s *discussionService) fillCounts(ctx context.Context, discussions []*model.Discussion) error {
	if len(discussions) == 0 {
		return nil
	}
	ids := make([]string, len(discussions))
	for i, d := range discussions {
		ids[i] = d.ID
	}

	var likes, comments map[string]int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		likes, err = s.reactionRepo.CountByTargets(gctx, model.TargetTypeDiscussion, model.ReactionLike, ids)
		return err
	})
	g.Go(func() error {
		var err error
		comments, err = s.commentRepo.CountByDiscussionIDs(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return storeErr(err, "discussion counts")
	}
	for _, d := range discussions {
		d.LikesCount = likes[d.ID]
		d.CommentsCount = comments[d.ID]
	}
	return nil
}

func (s *discussionService) Get(ctx context.Context, requester *Requester, id string) (*model.Discussion, error) {
	discussion, err := loadDiscussion(ctx, s.discussionRepo, requester, id)
	if err != nil {
		return nil, err
	}
	if err := s.discussionRepo.IncrementViews(ctx, id); err != nil {
		util.Logger.Warn("increment views failed", zap.String("discussion_id", id), zap.Error(err))
	} else {
		discussion.Views++
	}
	if err := s.fillCounts(ctx, []*model.Discussion{discussion}); err != nil {
		return nil, err
	}
	return discussion, nil
}

func (s *discussionService) Create(ctx context.Context, requester *Requester, req CreateDiscussionRequest) (*model.Discussion, error) {
	if err := requireRequester(requester); err != nil {
		return nil, err
	}
	title, err := cleanTitle(req.Title)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperr.InvalidArgument("content is required")
	}

	discussion := &model.Discussion{
		Title:       title,
		Content:     req.Content,
		ContentHTML: util.RenderMarkdown(req.Content),
		AuthorID:    requester.UserID,
		IsPrivate:   req.IsPrivate,
	}
	if err := discussion.SetTags(normalizeTags(req.Tags)); err != nil {
		return nil, apperr.Internal("failed to encode tags", err)
	}
	if err := s.discussionRepo.Create(ctx, discussion); err != nil {
		return nil, storeErr(err, "discussion")
	}
	return discussion, nil
}

// Update edits a discussion. Only the author or an admin may edit, and a
// locked discussion is admin-only.
func (s *discussionService) Update(ctx context.Context, requester *Requester, id string, req UpdateDiscussionRequest) (*model.Discussion, error) {
	discussion, err := s.loadOwned(ctx, requester, id, "update")
	if err != nil {
		return nil, err
	}
	if discussion.IsLocked && !requester.IsAdmin() {
		return nil, apperr.Forbidden("discussion is locked")
	}

	if req.Title != nil {
		title, err := cleanTitle(*req.Title)
		if err != nil {
			return nil, err
		}
		discussion.Title = title
	}
	if req.Content != nil {
		if strings.TrimSpace(*req.Content) == "" {
			return nil, apperr.InvalidArgument("content is required")
		}
		discussion.Content = *req.Content
		discussion.ContentHTML = util.RenderMarkdown(*req.Content)
	}
	if req.Tags != nil {
		if err := discussion.SetTags(normalizeTags(req.Tags)); err != nil {
			return nil, apperr.Internal("failed to encode tags", err)
		}
	}
	if req.IsPrivate != nil {
		discussion.IsPrivate = *req.IsPrivate
	}

	if err := s.discussionRepo.Update(ctx, discussion); err != nil {
		return nil, storeErr(err, "discussion")
	}
	return discussion, nil
}

func (s *discussionService) Delete(ctx context.Context, requester *Requester, id string) error {
	if _, err := s.loadOwned(ctx, requester, id, "delete"); err != nil {
		return err
	}
	if err := s.discussionRepo.Delete(ctx, id); err != nil {
		return storeErr(err, "discussion")
	}
	return nil
}

func (s *discussionService) ToggleLock(ctx context.Context, requester *Requester, id string) (*model.Discussion, error) {
	return s.toggleFlag(ctx, requester, id, func(d *model.Discussion) { d.IsLocked = !d.IsLocked })
}

func (s *discussionService) TogglePin(ctx context.Context, requester *Requester, id string) (*model.Discussion, error) {
	return s.toggleFlag(ctx, requester, id, func(d *model.Discussion) { d.IsPinned = !d.IsPinned })
}

func (s *discussionService) toggleFlag(ctx context.Context, requester *Requester, id string, flip func(*model.Discussion)) (*model.Discussion, error) {
	if err := requireRequester(requester); err != nil {
		return nil, err
	}
	if !requester.IsAdmin() {
		return nil, apperr.Forbidden("admin privileges required")
	}
	discussion, err := loadDiscussion(ctx, s.discussionRepo, requester, id)
	if err != nil {
		return nil, err
	}
	flip(discussion)
	if err := s.discussionRepo.Update(ctx, discussion); err != nil {
		return nil, storeErr(err, "discussion")
	}
	return discussion, nil
}

func (s *discussionService) loadOwned(ctx context.Context, requester *Requester, id, action string) (*model.Discussion, error) {
	if err := requireRequester(requester); err != nil {
		return nil, err
	}
	discussion, err := loadDiscussion(ctx, s.discussionRepo, requester, id)
	if err != nil {
		return nil, err
	}
	if !requester.Is(discussion.AuthorID) && !requester.IsAdmin() {
		return nil, apperr.Forbidden("not authorized to " + action + " this discussion")
	}
	return discussion, nil
}

func cleanTitle(raw string) (string, error) {
	title := util.SanitizeText(raw)
	if title == "" {
		return "", apperr.InvalidArgument("title is required")
	}
	if utf8.RuneCountInString(title) > model.DiscussionTitleMaxLen {
		return "", apperr.InvalidArgument("title must be at most 200 characters")
	}
	return title, nil
}

func normalizeTag(tag string) string {
	return strings.ToLower(util.SanitizeText(tag))
}

// normalizeTags lowercases, trims and de-duplicates tags, keeping first-seen order.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = normalizeTag(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
