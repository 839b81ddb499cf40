package app

import (
	"net/http"
	"strings"

	"forumhub/internal/service"
	"forumhub/internal/util"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService service.AuthService
}

func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusCreated, "Registration successful. Please verify your email.", resp)
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Login successful", resp)
}

// RefreshToken issues a new token for the authenticated user
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	resp, err := h.authService.RefreshToken(c.Request.Context(), requesterFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Token refreshed successfully", resp)
}

func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req service.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.authService.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Email verified successfully", nil)
}

// ForgotPassword answers the same way whether or not the email is registered.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req service.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.authService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "If the email is registered, a reset link has been sent", nil)
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req service.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Password reset successfully", nil)
}

// GetMe returns the current user
func (h *AuthHandler) GetMe(c *gin.Context) {
	user, err := h.authService.Me(c.Request.Context(), requesterFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	util.SuccessResponse(c, http.StatusOK, "User retrieved successfully", user)
}

// AuthMiddleware rejects requests without a valid bearer token.
func (h *AuthHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			util.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		token, ok := bearerToken(authHeader)
		if !ok {
			util.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		requester, err := h.authService.ValidateToken(token)
		if err != nil {
			util.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		setRequester(c, requester)
		c.Next()
	}
}

// OptionalAuth attaches the requester when a valid token is present and
// lets anonymous requests through otherwise.
func (h *AuthHandler) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if requester, err := h.authService.ValidateToken(token); err == nil {
				setRequester(c, requester)
			}
		}
		c.Next()
	}
}

// RequireRoles must run after AuthMiddleware.
func (h *AuthHandler) RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		requester := requesterFrom(c)
		for _, role := range roles {
			if requester.HasRole(role) {
				c.Next()
				return
			}
		}
		util.Forbidden(c, "Insufficient permissions")
		c.Abort()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setRequester(c *gin.Context, requester *service.Requester) {
	c.Set(requesterKey, requester)
	c.Set("userID", requester.UserID)
	c.Set("email", requester.Email)
	c.Set("roles", requester.Roles)
}
