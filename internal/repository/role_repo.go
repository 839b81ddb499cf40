package repository

import (
	"context"
	"errors"

	"forumhub/internal/model"

	"gorm.io/gorm"
)

type RoleRepository interface {
	FindAll(ctx context.Context) ([]model.Role, error)
	FindByNames(ctx context.Context, names []string) ([]model.Role, error)
	EnsureDefaults(ctx context.Context) error
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) FindAll(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	err := r.db.WithContext(ctx).Order("name ASC").Find(&roles).Error
	return roles, err
}

func (r *roleRepository) FindByNames(ctx context.Context, names []string) ([]model.Role, error) {
	if len(names) == 0 {
		return []model.Role{}, nil
	}
	var roles []model.Role
	err := r.db.WithContext(ctx).Where("name IN ?", names).Find(&roles).Error
	return roles, err
}

// EnsureDefaults creates the system roles that do not exist yet
func (r *roleRepository) EnsureDefaults(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	for _, role := range model.DefaultRoles() {
		var existing model.Role
		err := db.Where("name = ?", role.Name).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		role := role
		if err := db.Create(&role).Error; err != nil {
			return err
		}
	}
	return nil
}
