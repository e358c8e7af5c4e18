package repository

import (
	"context"

	"rankkings/internal/domain/user/model"
	"rankkings/internal/pkg/apperr"

	"gorm.io/gorm"
)

// UserRepository 接口定义
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	UpdateProfileImage(ctx context.Context, id uint, uri *string) error
	UpdateInterests(ctx context.Context, id uint, interests []string) error
}

// userRepository 实现
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建新的仓库实例
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create 创建用户，ID 为 0 时由数据库分配
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return apperr.Translate(r.db.WithContext(ctx).Create(user).Error)
}

// GetByID 根据ID获取用户
func (r *userRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, apperr.Translate(err)
	}
	return &user, nil
}

// GetByEmail 根据邮箱获取用户
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, apperr.Translate(err)
	}
	return &user, nil
}

// Update 按 ID 整行替换
func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", user.ID).
		Select("*").Omit("id", "created_at").Updates(user)
	if res.Error != nil {
		return apperr.Translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user", user.ID)
	}
	return nil
}

func (r *userRepository) UpdateProfileImage(ctx context.Context, id uint, uri *string) error {
	return r.updateColumn(ctx, id, "profile_image_uri", uri)
}

func (r *userRepository) UpdateInterests(ctx context.Context, id uint, interests []string) error {
	return r.updateColumn(ctx, id, "interests", model.StringList(interests))
}

func (r *userRepository) updateColumn(ctx context.Context, id uint, column string, value interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return apperr.Translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user", id)
	}
	return nil
}
