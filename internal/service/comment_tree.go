package service

import (
	"context"
	"fmt"
	"time"

	"forumhub/internal/apperr"
	"forumhub/internal/model"
	"forumhub/internal/repository"

	"golang.org/x/sync/errgroup"
)

const (
	// MaxRepliesPerLevel caps the replies embedded under each node.
	MaxRepliesPerLevel = 5

	DefaultCommentPageSize = 10
	DefaultMaxCommentDepth = 100
)

// CommentNode is one comment of an assembled thread.
type CommentNode struct {
	ID             string             `json:"id"`
	Content        string             `json:"content"`
	Author         *model.UserSummary `json:"author"`
	ParentID       *string            `json:"parent_id"`
	IsEdited       bool               `json:"is_edited"`
	IsDeleted      bool               `json:"is_deleted"`
	IsFlagged      bool               `json:"is_flagged"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	Replies        []*CommentNode     `json:"replies"`
	HasMoreReplies bool               `json:"has_more_replies"`
	TotalReplies   int64              `json:"total_replies"`
	LikeCount      int64              `json:"like_count"`
	LikedByMe      bool               `json:"liked_by_me"`
}

type ThreadedComments struct {
	Comments []*CommentNode `json:"comments"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	Limit    int            `json:"limit"`
	HasMore  bool           `json:"has_more"`
}

type RepliesPage struct {
	Replies []*CommentNode `json:"replies"`
	Total   int64          `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
	HasMore bool           `json:"has_more"`
}

type FlatComments struct {
	TotalComments int            `json:"total_comments"`
	Comments      []*CommentNode `json:"comments"`
}

// CommentTreeAssembler builds nested comment threads from the flat comment store.
type CommentTreeAssembler struct {
	comments    repository.CommentRepository
	reactions   repository.ReactionRepository
	discussions repository.DiscussionRepository
	maxDepth    int
}

func NewCommentTreeAssembler(
	comments repository.CommentRepository,
	reactions repository.ReactionRepository,
	discussions repository.DiscussionRepository,
	maxDepth int,
) *CommentTreeAssembler {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxCommentDepth
	}
	return &CommentTreeAssembler{
		comments:    comments,
		reactions:   reactions,
		discussions: discussions,
		maxDepth:    maxDepth,
	}
}

// GetThreadedComments returns one page of root comments, newest first, each
// expanded with up to MaxRepliesPerLevel replies per level.
func (a *CommentTreeAssembler) GetThreadedComments(ctx context.Context, requester *Requester, discussionID string, page, pageSize int) (*ThreadedComments, error) {
	if _, err := loadDiscussion(ctx, a.discussions, requester, discussionID); err != nil {
		return nil, err
	}
	page, pageSize = normalizePage(page, pageSize, DefaultCommentPageSize)

	var (
		roots []*model.Comment
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		roots, err = a.comments.FindRoots(gctx, discussionID, pageSize, (page-1)*pageSize)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = a.comments.CountRoots(gctx, discussionID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storeErr(err, "comments")
	}

	forest, all, err := a.expand(ctx, discussionID, roots)
	if err != nil {
		return nil, err
	}
	if err := a.enrichLikes(ctx, requester, all); err != nil {
		return nil, err
	}

	return &ThreadedComments{
		Comments: forest,
		Total:    total,
		Page:     page,
		Limit:    pageSize,
		HasMore:  total > int64(page*pageSize),
	}, nil
}

// GetMoreReplies pages through the direct replies of parentID. Returned nodes
// carry their own reply counts but no nested replies. A tombstoned parent is
// accepted since its replies stay reachable.
func (a *CommentTreeAssembler) GetMoreReplies(ctx context.Context, requester *Requester, discussionID, parentID string, page, pageSize int) (*RepliesPage, error) {
	if _, err := loadDiscussion(ctx, a.discussions, requester, discussionID); err != nil {
		return nil, err
	}
	if err := validID(parentID, "parent comment"); err != nil {
		return nil, err
	}
	parent, err := a.comments.FindByID(ctx, parentID)
	if err != nil {
		return nil, storeErr(err, "parent comment")
	}
	if parent.DiscussionID != discussionID {
		return nil, apperr.NotFound("parent comment not found")
	}
	page, pageSize = normalizePage(page, pageSize, MaxRepliesPerLevel)

	var (
		children []*model.Comment
		total    int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		children, err = a.comments.FindChildren(gctx, discussionID, parentID, pageSize, (page-1)*pageSize)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = a.comments.CountChildren(gctx, discussionID, parentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storeErr(err, "replies")
	}

	replies := make([]*CommentNode, 0, len(children))
	for _, c := range children {
		n := newCommentNode(c)
		n.TotalReplies, err = a.comments.CountChildren(ctx, discussionID, c.ID)
		if err != nil {
			return nil, storeErr(err, "replies")
		}
		n.HasMoreReplies = n.TotalReplies > 0
		replies = append(replies, n)
	}
	if err := a.enrichLikes(ctx, requester, replies); err != nil {
		return nil, err
	}

	return &RepliesPage{
		Replies: replies,
		Total:   total,
		Page:    page,
		Limit:   pageSize,
		HasMore: total > int64(page*pageSize),
	}, nil
}

// GetFlatComments lists every visible comment of the discussion in creation
// order with like counts. Nodes carry no nested replies.
func (a *CommentTreeAssembler) GetFlatComments(ctx context.Context, requester *Requester, discussionID string) (*FlatComments, error) {
	if _, err := loadDiscussion(ctx, a.discussions, requester, discussionID); err != nil {
		return nil, err
	}
	comments, err := a.comments.FindAllByDiscussion(ctx, discussionID)
	if err != nil {
		return nil, storeErr(err, "comments")
	}
	nodes := make([]*CommentNode, 0, len(comments))
	for _, c := range comments {
		nodes = append(nodes, newCommentNode(c))
	}
	if err := a.enrichLikes(ctx, requester, nodes); err != nil {
		return nil, err
	}
	return &FlatComments{TotalComments: len(nodes), Comments: nodes}, nil
}

type treeFrame struct {
	node  *CommentNode
	depth int
}

// expand walks the forest depth-first with an explicit stack. It returns the
// root nodes and every node of the forest in visit order.
func (a *CommentTreeAssembler) expand(ctx context.Context, discussionID string, roots []*model.Comment) ([]*CommentNode, []*CommentNode, error) {
	forest := make([]*CommentNode, 0, len(roots))
	all := make([]*CommentNode, 0, len(roots))
	visited := make(map[string]struct{}, len(roots))
	stack := make([]treeFrame, 0, len(roots))

	for _, c := range roots {
		if _, seen := visited[c.ID]; seen {
			return nil, nil, integrityErr(fmt.Errorf("root comment %s listed twice", c.ID))
		}
		visited[c.ID] = struct{}{}
		n := newCommentNode(c)
		forest = append(forest, n)
		all = append(all, n)
	}
	for i := len(forest) - 1; i >= 0; i-- {
		stack = append(stack, treeFrame{node: forest[i]})
	}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, nil, apperr.Internal("comment assembly cancelled", err)
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := a.comments.FindChildren(ctx, discussionID, f.node.ID, MaxRepliesPerLevel, 0)
		if err != nil {
			return nil, nil, storeErr(err, "replies")
		}
		total, err := a.comments.CountChildren(ctx, discussionID, f.node.ID)
		if err != nil {
			return nil, nil, storeErr(err, "replies")
		}
		f.node.TotalReplies = total
		f.node.HasMoreReplies = total > MaxRepliesPerLevel
		if len(children) == 0 {
			continue
		}
		if f.depth+1 > a.maxDepth {
			return nil, nil, integrityErr(fmt.Errorf("comment %s exceeds depth %d", f.node.ID, a.maxDepth))
		}

		for _, c := range children {
			if _, seen := visited[c.ID]; seen {
				return nil, nil, integrityErr(fmt.Errorf("comment %s reached twice", c.ID))
			}
			visited[c.ID] = struct{}{}
			n := newCommentNode(c)
			f.node.Replies = append(f.node.Replies, n)
			all = append(all, n)
		}
		// reverse push keeps the oldest reply on top
		for i := len(f.node.Replies) - 1; i >= 0; i-- {
			stack = append(stack, treeFrame{node: f.node.Replies[i], depth: f.depth + 1})
		}
	}
	return forest, all, nil
}

// enrichLikes fills like counts with one aggregate query, plus one more for
// likedByMe when the requester is known.
func (a *CommentTreeAssembler) enrichLikes(ctx context.Context, requester *Requester, nodes []*CommentNode) error {
	if len(nodes) == 0 {
		return nil
	}
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}

	counts, err := a.reactions.CountByTargets(ctx, model.TargetTypeComment, model.ReactionLike, ids)
	if err != nil {
		return storeErr(err, "like counts")
	}
	var liked map[string]bool
	if requester != nil {
		liked, err = a.reactions.FindUserReactedTargets(ctx, requester.UserID, model.TargetTypeComment, model.ReactionLike, ids)
		if err != nil {
			return storeErr(err, "like status")
		}
	}
	for _, n := range nodes {
		n.LikeCount = counts[n.ID]
		n.LikedByMe = liked[n.ID]
	}
	return nil
}

func newCommentNode(c *model.Comment) *CommentNode {
	var author *model.UserSummary
	if c.Author != nil {
		author = c.Author.Summary()
	}
	return &CommentNode{
		ID:        c.ID,
		Content:   c.Body().Render(),
		Author:    author,
		ParentID:  c.ParentID,
		IsEdited:  c.IsEdited,
		IsDeleted: c.IsDeleted,
		IsFlagged: c.IsFlagged,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Replies:   []*CommentNode{},
	}
}

func integrityErr(err error) error {
	return apperr.Internal("comment tree is inconsistent", err)
}

// loadDiscussion resolves a discussion the requester may read.
func loadDiscussion(ctx context.Context, repo repository.DiscussionRepository, requester *Requester, id string) (*model.Discussion, error) {
	if err := validID(id, "discussion"); err != nil {
		return nil, err
	}
	d, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "discussion")
	}
	if d.IsPrivate && requester == nil {
		return nil, apperr.NotFound("discussion not found")
	}
	return d, nil
}
