package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"forumhub/internal/apperr"
	"forumhub/internal/model"
	"forumhub/internal/repository"
	"forumhub/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const resetTokenTTL = time.Hour

type AuthService interface {
	Register(ctx context.Context, req RegisterRequest, ip string) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest, ip string) (*AuthResponse, error)
	RefreshToken(ctx context.Context, requester *Requester) (*AuthResponse, error)
	Me(ctx context.Context, requester *Requester) (*model.User, error)
	VerifyEmail(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
	ValidateToken(token string) (*Requester, error)
}

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type authService struct {
	userRepo  repository.UserRepository
	roleRepo  repository.RoleRepository
	auditRepo repository.AuditRepository
	email     EmailSender
	jwtSecret string
	jwtTTL    time.Duration
	clientURL string
}

func NewAuthService(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	auditRepo repository.AuditRepository,
	email EmailSender,
	jwtSecret string,
	jwtTTL time.Duration,
	clientURL string,
) AuthService {
	return &authService{
		userRepo:  userRepo,
		roleRepo:  roleRepo,
		auditRepo: auditRepo,
		email:     email,
		jwtSecret: jwtSecret,
		jwtTTL:    jwtTTL,
		clientURL: strings.TrimRight(clientURL, "/"),
	}
}

func (s *authService) Register(ctx context.Context, req RegisterRequest, ip string) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	firstName := util.SanitizeText(req.FirstName)
	lastName := util.SanitizeText(req.LastName)
	if email == "" || firstName == "" || lastName == "" {
		return nil, apperr.InvalidArgument("email, first name and last name are required")
	}

	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return nil, apperr.Conflict("user already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storeErr(err, "user")
	}

	hash, err := util.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}
	roles, err := s.roleRepo.FindByNames(ctx, []string{model.RoleUser})
	if err != nil {
		return nil, storeErr(err, "roles")
	}

	verifyToken := uuid.NewString()
	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		VerifyToken:  &verifyToken,
		Roles:        roles,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, storeErr(err, "user")
	}

	recordAudit(ctx, s.auditRepo, user.ID, nil, model.AuditRegister, ip, nil)
	s.sendEmail(ctx, EmailJob{
		Type:    EmailTypeVerify,
		To:      user.Email,
		Name:    user.FullName(),
		Subject: "Verify your email",
		Link:    fmt.Sprintf("%s/verify-email?token=%s", s.clientURL, verifyToken),
	})

	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, req LoginRequest, ip string) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthorized("invalid email or password")
		}
		return nil, storeErr(err, "user")
	}
	if !util.CheckPassword(user.PasswordHash, req.Password) {
		return nil, apperr.Unauthorized("invalid email or password")
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		util.Logger.Warn("update last login failed", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		now := time.Now()
		user.LastLogin = &now
	}
	recordAudit(ctx, s.auditRepo, user.ID, nil, model.AuditLogin, ip, nil)

	return s.issue(user)
}

func (s *authService) RefreshToken(ctx context.Context, requester *Requester) (*AuthResponse, error) {
	user, err := s.Me(ctx, requester)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *authService) Me(ctx context.Context, requester *Requester) (*model.User, error) {
	if err := requireRequester(requester); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, requester.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthorized("user not found")
		}
		return nil, storeErr(err, "user")
	}
	return user, nil
}

func (s *authService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return apperr.InvalidArgument("verification token is required")
	}
	user, err := s.userRepo.FindByVerifyToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.InvalidArgument("invalid verification token")
		}
		return storeErr(err, "user")
	}
	user.IsEmailVerified = true
	user.VerifyToken = nil
	if err := s.userRepo.Update(ctx, user); err != nil {
		return storeErr(err, "user")
	}
	return nil
}

// ForgotPassword queues a reset link. Unknown emails succeed silently.
func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return storeErr(err, "user")
	}

	token := uuid.NewString()
	expires := time.Now().Add(resetTokenTTL)
	user.ResetToken = &token
	user.ResetTokenExpireAt = &expires
	if err := s.userRepo.Update(ctx, user); err != nil {
		return storeErr(err, "user")
	}

	s.sendEmail(ctx, EmailJob{
		Type:    EmailTypeReset,
		To:      user.Email,
		Name:    user.FullName(),
		Subject: "Reset your password",
		Link:    fmt.Sprintf("%s/reset-password?token=%s", s.clientURL, token),
	})
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	user, err := s.userRepo.FindByResetToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.InvalidArgument("invalid or expired reset token")
		}
		return storeErr(err, "user")
	}
	hash, err := util.HashPassword(req.NewPassword)
	if err != nil {
		return apperr.Internal("failed to hash password", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return storeErr(err, "user")
	}
	recordAudit(ctx, s.auditRepo, user.ID, nil, model.AuditPasswordChange, "", map[string]interface{}{"via": "reset"})
	return nil
}

// ValidateToken turns a bearer token into a requester.
func (s *authService) ValidateToken(token string) (*Requester, error) {
	claims, err := util.ValidateToken(token, s.jwtSecret)
	if err != nil {
		return nil, apperr.Unauthorized("invalid or expired token")
	}
	return &Requester{UserID: claims.UserID, Email: claims.Email, Roles: claims.Roles}, nil
}

func (s *authService) issue(user *model.User) (*AuthResponse, error) {
	token, err := util.GenerateToken(user.ID, user.Email, user.RoleNames(), s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, apperr.Internal("failed to generate token", err)
	}
	return &AuthResponse{Token: token, User: user}, nil
}

func (s *authService) sendEmail(ctx context.Context, job EmailJob) {
	if s.email == nil {
		return
	}
	if err := s.email.Send(ctx, job); err != nil {
		util.Logger.Warn("queue email failed", zap.String("type", job.Type), zap.String("to", job.To), zap.Error(err))
	}
}
