package app

import (
	"io"
	"net/http"

	"forumhub/internal/service"
	"forumhub/internal/util"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// ListUsers is admin only
// GET /api/v1/admin/users?page=&limit=
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, err := h.userService.ListUsers(c.Request.Context(), requesterFrom(c), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Users retrieved successfully", page)
}

// ListRoles
// GET /api/v1/admin/roles
func (h *UserHandler) ListRoles(c *gin.Context) {
	roles, err := h.userService.ListRoles(c.Request.Context(), requesterFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Roles retrieved successfully", gin.H{"roles": roles})
}

// UpdateUserRoles replaces the roles of a user
// PUT /api/v1/admin/users/:id/roles
func (h *UserHandler) UpdateUserRoles(c *gin.Context) {
	var req service.UpdateRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.userService.UpdateUserRoles(c.Request.Context(), requesterFrom(c), c.Param("id"), req, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "User roles updated successfully", gin.H{"user": user})
}

// GetProfile
// GET /api/v1/user/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	view, err := h.userService.GetProfile(c.Request.Context(), requesterFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Profile retrieved successfully", view)
}

// UpdateProfile
// PUT /api/v1/user/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req service.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	view, err := h.userService.UpdateProfile(c.Request.Context(), requesterFrom(c), req, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Profile updated successfully", view)
}

// UpdateProfilePicture takes a multipart "profile_picture" file
// POST /api/v1/user/profile/picture
func (h *UserHandler) UpdateProfilePicture(c *gin.Context) {
	file, err := c.FormFile("profile_picture")
	if err != nil {
		util.BadRequest(c, "profile_picture file is required")
		return
	}
	if file.Size > service.MaxProfilePictureSize {
		util.BadRequest(c, "Profile picture must be at most 3MB")
		return
	}

	f, err := file.Open()
	if err != nil {
		util.BadRequest(c, "Failed to read uploaded file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, service.MaxProfilePictureSize+1))
	if err != nil {
		util.BadRequest(c, "Failed to read uploaded file")
		return
	}

	url, err := h.userService.UpdateProfilePicture(c.Request.Context(), requesterFrom(c), data)
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Profile picture updated successfully", gin.H{"profile_picture": url})
}

// GetProfilePicture is public
// GET /api/v1/users/:id/profile-picture
func (h *UserHandler) GetProfilePicture(c *gin.Context) {
	url, err := h.userService.GetProfilePicture(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Profile picture retrieved successfully", gin.H{"profile_picture": url})
}

// UpdatePassword
// PUT /api/v1/user/password
func (h *UserHandler) UpdatePassword(c *gin.Context) {
	var req service.UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.userService.UpdatePassword(c.Request.Context(), requesterFrom(c), req, c.ClientIP()); err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Password updated successfully", nil)
}
