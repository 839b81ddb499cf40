package service

import (
	"context"
	"errors"

	"forumhub/internal/apperr"
	"forumhub/internal/model"
	"forumhub/internal/repository"
	"forumhub/internal/util"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// MaxProfilePictureSize is the upload limit for profile pictures.
const MaxProfilePictureSize = 3 << 20

var allowedPictureTypes = []string{"image/jpeg", "image/png", "image/gif"}

// AvatarUploader stores profile pictures and returns their public URL.
type AvatarUploader interface {
	UploadAvatar(ctx context.Context, userID string, data []byte, mimeType string) (string, error)
}

type UserService interface {
	ListUsers(ctx context.Context, requester *Requester, page, limit int) (*UserPage, error)
	ListRoles(ctx context.Context, requester *Requester) ([]model.Role, error)
	UpdateUserRoles(ctx context.Context, requester *Requester, userID string, req UpdateRolesRequest, ip string) (*model.User, error)
	GetProfile(ctx context.Context, requester *Requester) (*ProfileView, error)
	UpdateProfile(ctx context.Context, requester *Requester, req UpdateProfileRequest, ip string) (*ProfileView, error)
	UpdateProfilePicture(ctx context.Context, requester *Requester, data []byte) (string, error)
	GetProfilePicture(ctx context.Context, userID string) (string, error)
	UpdatePassword(ctx context.Context, requester *Requester, req UpdatePasswordRequest, ip string) error
}

type UpdateRolesRequest struct {
	Roles []string `json:"roles" binding:"required,min=1"`
}

type UpdateProfileRequest struct {
	FirstName   *string            `json:"first_name,omitempty" binding:"omitempty,max=100"`
	LastName    *string            `json:"last_name,omitempty" binding:"omitempty,max=100"`
	Bio         *string            `json:"bio,omitempty" binding:"omitempty,max=500"`
	Interests   []string           `json:"interests,omitempty"`
	SocialLinks *model.SocialLinks `json:"social_links,omitempty"`
	Theme       *string            `json:"theme,omitempty" binding:"omitempty,oneof=light dark system"`
}

type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6"`
}

type UserPage struct {
	Users      []model.User `json:"users"`
	Total      int64        `json:"total"`
	Page       int          `json:"page"`
	TotalPages int64        `json:"total_pages"`
}

type ProfileView struct {
	User    *model.User    `json:"user"`
	Profile *model.Profile `json:"profile"`
}

type userService struct {
	userRepo            repository.UserRepository
	roleRepo            repository.RoleRepository
	profileRepo         repository.ProfileRepository
	auditRepo           repository.AuditRepository
	notificationService NotificationService
	uploader            AvatarUploader
}

func NewUserService(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	profileRepo repository.ProfileRepository,
	auditRepo repository.AuditRepository,
	notificationService NotificationService,
	uploader AvatarUploader,
) UserService {
	return &userService{
		userRepo:            userRepo,
		roleRepo:            roleRepo,
		profileRepo:         profileRepo,
		auditRepo:           auditRepo,
		notificationService: notificationService,
		uploader:            uploader,
	}
}

func (s *userService) ListUsers(ctx context.Context, requester *Requester, page, limit int) (*UserPage, error) {
	if err := requireAdmin(requester); err != nil {
		return nil, err
	}
	page, limit = normalizePage(page, limit, 20)
	users, total, err := s.userRepo.FindAll(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, storeErr(err, "users")
	}
	if users == nil {
		users = []model.User{}
	}
	return &UserPage{
		Users:      users,
		Total:      total,
		Page:       page,
		TotalPages: (total + int64(limit) - 1) / int64(limit),
	}, nil
}

func (s *userService) ListRoles(ctx context.Context, requester *Requester) ([]model.Role, error) {
	if err := requireAdmin(requester); err != nil {
		return nil, err
	}
	roles, err := s.roleRepo.FindAll(ctx)
	if err != nil {
		return nil, storeErr(err, "roles")
	}
	return roles, nil
}

// UpdateUserRoles replaces the roles of a user. The last admin cannot lose the admin role.
func (s *userService) UpdateUserRoles(ctx context.Context, requester *Requester, userID string, req UpdateRolesRequest, ip string) (*model.User, error) {
	if err := requireAdmin(requester); err != nil {
		return nil, err
	}
	if err := validID(userID, "user"); err != nil {
		return nil, err
	}
	names := dedupe(req.Roles)
	if len(names) == 0 {
		return nil, apperr.InvalidArgument("roles must be a non-empty list")
	}
	roles, err := s.roleRepo.FindByNames(ctx, names)
	if err != nil {
		return nil, storeErr(err, "roles")
	}
	if len(roles) != len(names) {
		return nil, apperr.InvalidArgument("one or more roles do not exist")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	oldRoles := user.RoleNames()

	if user.HasRole(model.RoleAdmin) && !contains(names, model.RoleAdmin) {
		admins, err := s.userRepo.CountByRole(ctx, model.RoleAdmin)
		if err != nil {
			return nil, storeErr(err, "roles")
		}
		if admins <= 1 {
			return nil, apperr.InvalidArgument("cannot remove admin role from the last admin user")
		}
	}

	if err := s.userRepo.ReplaceRoles(ctx, user, roles); err != nil {
		return nil, storeErr(err, "roles")
	}

	actor := requester.UserID
	recordAudit(ctx, s.auditRepo, user.ID, &actor, model.AuditRoleChange, ip, map[string]interface{}{
		"old_roles": oldRoles,
		"new_roles": names,
	})
	if s.notificationService != nil {
		if err := s.notificationService.NotifyRoleUpdated(ctx, user.ID, actor, names); err != nil {
			util.Logger.Warn("role notification failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	return user, nil
}

func (s *userService) GetProfile(ctx context.Context, requester *Requester) (*ProfileView, error) {
	if err := requireRequester(requester); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, requester.UserID)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	profile, err := s.profileRepo.FindOrCreate(ctx, user.ID)
	if err != nil {
		return nil, storeErr(err, "profile")
	}
	return &ProfileView{User: user, Profile: profile}, nil
}

func (s *userService) UpdateProfile(ctx context.Context, requester *Requester, req UpdateProfileRequest, ip string) (*ProfileView, error) {
	view, err := s.GetProfile(ctx, requester)
	if err != nil {
		return nil, err
	}
	user, profile := view.User, view.Profile
	changed := []string{}

	if req.FirstName != nil || req.LastName != nil {
		if req.FirstName != nil {
			if user.FirstName = util.SanitizeText(*req.FirstName); user.FirstName == "" {
				return nil, apperr.InvalidArgument("first name cannot be empty")
			}
			changed = append(changed, "first_name")
		}
		if req.LastName != nil {
			if user.LastName = util.SanitizeText(*req.LastName); user.LastName == "" {
				return nil, apperr.InvalidArgument("last name cannot be empty")
			}
			changed = append(changed, "last_name")
		}
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, storeErr(err, "user")
		}
	}

	if req.Bio != nil {
		bio := util.SanitizeText(*req.Bio)
		profile.Bio = &bio
		changed = append(changed, "bio")
	}
	if req.Interests != nil {
		if err := profile.SetInterests(normalizeTags(req.Interests)); err != nil {
			return nil, apperr.Internal("failed to encode interests", err)
		}
		changed = append(changed, "interests")
	}
	if req.SocialLinks != nil {
		if err := profile.SetSocialLinks(*req.SocialLinks); err != nil {
			return nil, apperr.Internal("failed to encode social links", err)
		}
		changed = append(changed, "social_links")
	}
	if req.Theme != nil {
		if !model.IsValidTheme(*req.Theme) {
			return nil, apperr.InvalidArgument("invalid theme")
		}
		profile.Theme = *req.Theme
		changed = append(changed, "theme")
	}
	if err := s.profileRepo.Update(ctx, profile); err != nil {
		return nil, storeErr(err, "profile")
	}

	recordAudit(ctx, s.auditRepo, user.ID, nil, model.AuditProfileUpdate, ip, map[string]interface{}{
		"fields": changed,
	})
	return view, nil
}

// UpdateProfilePicture validates the image by content and uploads it.
func (s *userService) UpdateProfilePicture(ctx context.Context, requester *Requester, data []byte) (string, error) {
	if err := requireRequester(requester); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", apperr.InvalidArgument("no file uploaded")
	}
	if len(data) > MaxProfilePictureSize {
		return "", apperr.InvalidArgument("profile picture must be at most 3MB")
	}
	mime := mimetype.Detect(data)
	if !mimetype.EqualsAny(mime.String(), allowedPictureTypes...) {
		return "", apperr.InvalidArgument("only JPEG, PNG and GIF images are allowed")
	}
	if s.uploader == nil {
		return "", apperr.Internal("image storage is not configured", errors.New("no uploader"))
	}

	url, err := s.uploader.UploadAvatar(ctx, requester.UserID, data, mime.String())
	if err != nil {
		return "", apperr.Internal("failed to upload profile picture", err)
	}
	profile, err := s.profileRepo.FindOrCreate(ctx, requester.UserID)
	if err != nil {
		return "", storeErr(err, "profile")
	}
	profile.ProfilePicture = &url
	if err := s.profileRepo.Update(ctx, profile); err != nil {
		return "", storeErr(err, "profile")
	}
	return url, nil
}

func (s *userService) GetProfilePicture(ctx context.Context, userID string) (string, error) {
	if err := validID(userID, "user"); err != nil {
		return "", err
	}
	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return "", storeErr(err, "profile")
	}
	if profile.ProfilePicture == nil || *profile.ProfilePicture == "" {
		return "", apperr.NotFound("profile picture not found")
	}
	return *profile.ProfilePicture, nil
}

func (s *userService) UpdatePassword(ctx context.Context, requester *Requester, req UpdatePasswordRequest, ip string) error {
	if err := requireRequester(requester); err != nil {
		return err
	}
	user, err := s.userRepo.FindByID(ctx, requester.UserID)
	if err != nil {
		return storeErr(err, "user")
	}
	if !util.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		return apperr.InvalidArgument("current password is incorrect")
	}
	hash, err := util.HashPassword(req.NewPassword)
	if err != nil {
		return apperr.Internal("failed to hash password", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return storeErr(err, "user")
	}
	recordAudit(ctx, s.auditRepo, user.ID, nil, model.AuditPasswordChange, ip, nil)
	return nil
}

func requireAdmin(requester *Requester) error {
	if err := requireRequester(requester); err != nil {
		return err
	}
	if !requester.IsAdmin() {
		return apperr.Forbidden("admin privileges required")
	}
	return nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
