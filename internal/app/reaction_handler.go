package app

import (
	"net/http"

	"forumhub/internal/service"
	"forumhub/internal/util"

	"github.com/gin-gonic/gin"
)

type ReactionHandler struct {
	reactionService service.ReactionService
}

func NewReactionHandler(reactionService service.ReactionService) *ReactionHandler {
	return &ReactionHandler{
		reactionService: reactionService,
	}
}

// ToggleLike likes or unlikes a comment or discussion
// POST /api/v1/reactions/:targetType/:targetId/like
func (h *ReactionHandler) ToggleLike(c *gin.Context) {
	result, err := h.reactionService.ToggleLike(c.Request.Context(), requesterFrom(c),
		c.Param("targetType"), c.Param("targetId"))
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, result.Message, result)
}

// GetStatus reports whether the caller liked or bookmarked the target
// GET /api/v1/reactions/:targetType/:targetId/status
func (h *ReactionHandler) GetStatus(c *gin.Context) {
	status, err := h.reactionService.GetReactionStatus(c.Request.Context(), requesterFrom(c),
		c.Param("targetType"), c.Param("targetId"))
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Reaction status retrieved successfully", status)
}

// ToggleBookmark
// POST /api/v1/discussions/:id/bookmark
func (h *ReactionHandler) ToggleBookmark(c *gin.Context) {
	result, err := h.reactionService.ToggleBookmark(c.Request.Context(), requesterFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, result.Message, result)
}

// GetBookmarks lists the caller's bookmarked discussions
// GET /api/v1/user/bookmarks?page=&limit=
func (h *ReactionHandler) GetBookmarks(c *gin.Context) {
	page, err := h.reactionService.GetUserBookmarks(c.Request.Context(), requesterFrom(c),
		queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Bookmarks retrieved successfully", page)
}

// GetShareData
// GET /api/v1/share/discussions/:id
func (h *ReactionHandler) GetShareData(c *gin.Context) {
	data, err := h.reactionService.GetShareData(c.Request.Context(), requesterFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Share data retrieved successfully", data)
}
