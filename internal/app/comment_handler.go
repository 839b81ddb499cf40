package app

import (
	"net/http"

	"forumhub/internal/service"
	"forumhub/internal/util"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	commentService service.CommentService
	tree           *service.CommentTreeAssembler
}

func NewCommentHandler(commentService service.CommentService, tree *service.CommentTreeAssembler) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		tree:           tree,
	}
}

// GetThreadedComments returns one page of root comments with their nested replies
// GET /api/v1/discussions/:id/comments?page=&limit=
func (h *CommentHandler) GetThreadedComments(c *gin.Context) {
	result, err := h.tree.GetThreadedComments(c.Request.Context(), requesterFrom(c),
		c.Param("id"), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Comments retrieved successfully", result)
}

// GetMoreReplies returns the next page of direct replies of one comment
// GET /api/v1/discussions/:id/comments/replies?parentId=&page=&limit=
func (h *CommentHandler) GetMoreReplies(c *gin.Context) {
	parentID := c.Query("parentId")
	if parentID == "" {
		parentID = c.Query("parent_id")
	}
	if parentID == "" {
		util.BadRequest(c, "parentId is required")
		return
	}

	result, err := h.tree.GetMoreReplies(c.Request.Context(), requesterFrom(c),
		c.Param("id"), parentID, queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Replies retrieved successfully", result)
}

// GetAllComments returns every comment of a discussion as a flat list
// GET /api/v1/discussions/:id/comments/all
func (h *CommentHandler) GetAllComments(c *gin.Context) {
	result, err := h.tree.GetFlatComments(c.Request.Context(), requesterFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Comments retrieved successfully", result)
}

// CreateComment handles creating a comment or a reply
// POST /api/v1/comments
func (h *CommentHandler) CreateComment(c *gin.Context) {
	var req service.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	comment, err := h.commentService.CreateComment(c.Request.Context(), requesterFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusCreated, "Comment created successfully", gin.H{"comment": comment})
}

// UpdateComment handles editing a comment
// PUT /api/v1/comments/:id
func (h *CommentHandler) UpdateComment(c *gin.Context) {
	var req service.UpdateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	comment, err := h.commentService.UpdateComment(c.Request.Context(), requesterFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Comment updated successfully", gin.H{"comment": comment})
}

// DeleteComment handles deleting a comment
// DELETE /api/v1/comments/:id
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	if err := h.commentService.DeleteComment(c.Request.Context(), requesterFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Comment deleted successfully", nil)
}

// FlagComment handles flagging a comment for moderation
// POST /api/v1/comments/:id/flag
func (h *CommentHandler) FlagComment(c *gin.Context) {
	var req service.FlagCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.commentService.FlagComment(c.Request.Context(), requesterFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Comment flagged successfully", result)
}
