package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rankkings/internal/domain/user/model"
	"rankkings/internal/domain/user/repository"
	"rankkings/internal/pkg/apperr"
	"rankkings/internal/pkg/remote"
	"rankkings/pkg/cache"
	"rankkings/pkg/logger"
	"rankkings/pkg/security"

	"go.uber.org/zap"
)

// UserService 用户服务接口：本地资料与远端用户目录
type UserService interface {
	GetProfile(ctx context.Context, id uint) (*model.User, error)

	ListDirectory(ctx context.Context) ([]remote.User, error)
	GetDirectoryUser(ctx context.Context, id uint) (*remote.User, error)
	CreateDirectoryUser(ctx context.Context, u remote.User) (*remote.User, error)
	ReplaceDirectoryUser(ctx context.Context, id uint, u remote.User) (*remote.User, error)
	PatchDirectoryUser(ctx context.Context, id uint, u remote.User) (*remote.User, error)
	DeleteDirectoryUser(ctx context.Context, id uint) error
}

// 缓存键常量
const (
	UserCacheKeyPrefix = "user:"
	UserListCacheKey   = "user_list"
	DefaultUserTTL     = 30 * time.Minute
)

// userService 实现
type userService struct {
	repo   repository.UserRepository
	remote remote.UserAPI
	cache  cache.CacheService
	ttl    time.Duration

	email *security.EmailValidator
	name  *security.StringValidator
}

// NewUserService 创建用户服务，cache 为 nil 时使用内存缓存
func NewUserService(repo repository.UserRepository, api remote.UserAPI, c cache.CacheService, ttl time.Duration) UserService {
	if c == nil {
		c = cache.NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = DefaultUserTTL
	}
	return &userService{
		repo:   repo,
		remote: api,
		cache:  c,
		ttl:    ttl,
		email:  security.NewEmailValidator(false),
		name:   security.NewStringValidator("name", 1, 100, false),
	}
}

// GetProfile 获取本地用户资料
func (s *userService) GetProfile(ctx context.Context, id uint) (*model.User, error) {
	return s.repo.GetByID(ctx, id)
}

// getUserCacheKey 获取用户缓存键
func getUserCacheKey(id uint) string {
	return fmt.Sprintf("%s%d", UserCacheKeyPrefix, id)
}

// ListDirectory 远端用户列表，结果缓存
func (s *userService) ListDirectory(ctx context.Context) ([]remote.User, error) {
	var users []remote.User
	if err := s.cache.Get(ctx, UserListCacheKey, &users); err == nil {
		return users, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		logger.L().Warn("user cache read failed", zap.Error(err))
	}

	users, err := s.remote.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, UserListCacheKey, users)
	return users, nil
}

// GetDirectoryUser 先查缓存，未命中再请求远端
func (s *userService) GetDirectoryUser(ctx context.Context, id uint) (*remote.User, error) {
	var u remote.User
	key := getUserCacheKey(id)
	if err := s.cache.Get(ctx, key, &u); err == nil {
		return &u, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		logger.L().Warn("user cache read failed", zap.Uint("user_id", id), zap.Error(err))
	}

	got, err := s.remote.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, got)
	return got, nil
}

func (s *userService) CreateDirectoryUser(ctx context.Context, u remote.User) (*remote.User, error) {
	if strings.TrimSpace(u.Name) == "" || strings.TrimSpace(u.Email) == "" {
		return nil, apperr.Validation("name and email are required")
	}
	if err := s.validate(&u); err != nil {
		return nil, err
	}

	created, err := s.remote.CreateUser(ctx, u)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, created.ID)
	return created, nil
}

func (s *userService) ReplaceDirectoryUser(ctx context.Context, id uint, u remote.User) (*remote.User, error) {
	if strings.TrimSpace(u.Name) == "" || strings.TrimSpace(u.Email) == "" {
		return nil, apperr.Validation("name and email are required")
	}
	if err := s.validate(&u); err != nil {
		return nil, err
	}

	updated, err := s.remote.UpdateUser(ctx, id, u)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return updated, nil
}

func (s *userService) PatchDirectoryUser(ctx context.Context, id uint, u remote.User) (*remote.User, error) {
	if err := s.validate(&u); err != nil {
		return nil, err
	}

	updated, err := s.remote.PatchUser(ctx, id, u)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return updated, nil
}

func (s *userService) DeleteDirectoryUser(ctx context.Context, id uint) error {
	if err := s.remote.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// validate 只校验提供了的字段
func (s *userService) validate(u *remote.User) error {
	u.Name = s.name.Sanitize(u.Name)
	u.Email = s.email.Sanitize(u.Email)
	if err := s.name.Validate(u.Name); err != nil {
		return apperr.Validation(err.Error())
	}
	if err := s.email.Validate(u.Email); err != nil {
		return apperr.Validation(err.Error())
	}
	return nil
}

func (s *userService) store(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		logger.L().Warn("user cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// invalidate 清除单个用户与列表缓存
func (s *userService) invalidate(ctx context.Context, id uint) {
	if err := s.cache.Delete(ctx, getUserCacheKey(id)); err != nil {
		logger.L().Warn("failed to invalidate user cache", zap.Uint("user_id", id), zap.Error(err))
	}
	if err := s.cache.Delete(ctx, UserListCacheKey); err != nil {
		logger.L().Warn("failed to invalidate user list cache", zap.Error(err))
	}
}
