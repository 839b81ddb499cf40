package service

import (
	"errors"

	"forumhub/internal/apperr"
	"forumhub/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Requester is the authenticated caller of a service operation. A nil
// *Requester is an anonymous caller.
type Requester struct {
	UserID string
	Email  string
	Roles  []string
}

func (r *Requester) HasRole(name string) bool {
	if r == nil {
		return false
	}
	for _, role := range r.Roles {
		if role == name {
			return true
		}
	}
	return false
}

func (r *Requester) IsAdmin() bool {
	return r.HasRole(model.RoleAdmin)
}

// IsStaff reports admin or moderator.
func (r *Requester) IsStaff() bool {
	return r.HasRole(model.RoleAdmin) || r.HasRole(model.RoleModerator)
}

func (r *Requester) Is(userID string) bool {
	return r != nil && r.UserID == userID
}

func requireRequester(r *Requester) error {
	if r == nil || r.UserID == "" {
		return apperr.Unauthorized("authentication required")
	}
	return nil
}

// storeErr maps a repository failure onto an apperr kind.
func storeErr(err error, what string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(what + " not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Conflict(what + " already exists")
	default:
		return apperr.Internal("failed to access "+what, err)
	}
}

func validID(id, what string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.InvalidArgument("invalid " + what + " id")
	}
	return nil
}

// normalizePage applies the default size and the upper bound of 100.
func normalizePage(page, size, defaultSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultSize
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
