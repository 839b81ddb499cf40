package app

import (
	"net/http"

	"forumhub/internal/service"
	"forumhub/internal/util"

	"github.com/gin-gonic/gin"
)

type DiscussionHandler struct {
	discussionService service.DiscussionService
}

func NewDiscussionHandler(discussionService service.DiscussionService) *DiscussionHandler {
	return &DiscussionHandler{
		discussionService: discussionService,
	}
}

// ListDiscussions
// GET /api/v1/discussions?page=&limit=&tag=
func (h *DiscussionHandler) ListDiscussions(c *gin.Context) {
	page, err := h.discussionService.List(c.Request.Context(), requesterFrom(c),
		queryInt(c, "page"), queryInt(c, "limit"), c.Query("tag"))
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Discussions retrieved successfully", page)
}

// GetDiscussion
// GET /api/v1/discussions/:id
func (h *DiscussionHandler) GetDiscussion(c *gin.Context) {
	discussion, err := h.discussionService.Get(c.Request.Context(), requesterFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Discussion retrieved successfully", gin.H{"discussion": discussion})
}

// CreateDiscussion
// POST /api/v1/discussions
func (h *DiscussionHandler) CreateDiscussion(c *gin.Context) {
	var req service.CreateDiscussionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	discussion, err := h.discussionService.Create(c.Request.Context(), requesterFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusCreated, "Discussion created successfully", gin.H{"discussion": discussion})
}

// UpdateDiscussion
// PUT /api/v1/discussions/:id
func (h *DiscussionHandler) UpdateDiscussion(c *gin.Context) {
	var req service.UpdateDiscussionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	discussion, err := h.discussionService.Update(c.Request.Context(), requesterFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Discussion updated successfully", gin.H{"discussion": discussion})
}

// DeleteDiscussion
// DELETE /api/v1/discussions/:id
func (h *DiscussionHandler) DeleteDiscussion(c *gin.Context) {
	if err := h.discussionService.Delete(c.Request.Context(), requesterFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Discussion deleted successfully", nil)
}

// ToggleLock
// PATCH /api/v1/discussions/:id/lock
func (h *DiscussionHandler) ToggleLock(c *gin.Context) {
	discussion, err := h.discussionService.ToggleLock(c.Request.Context(), requesterFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Discussion unlocked successfully"
	if discussion.IsLocked {
		message = "Discussion locked successfully"
	}
	util.SuccessResponse(c, http.StatusOK, message, gin.H{"discussion": discussion})
}

// TogglePin
// PATCH /api/v1/discussions/:id/pin
func (h *DiscussionHandler) TogglePin(c *gin.Context) {
	discussion, err := h.discussionService.TogglePin(c.Request.Context(), requesterFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Discussion unpinned successfully"
	if discussion.IsPinned {
		message = "Discussion pinned successfully"
	}
	util.SuccessResponse(c, http.StatusOK, message, gin.H{"discussion": discussion})
}
