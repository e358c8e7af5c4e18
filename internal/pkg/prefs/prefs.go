package prefs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 持久化的会话键
const (
	KeyUserID    = "user_id"
	KeyAuthToken = "auth_token"
)

// ErrMissing 键不存在
var ErrMissing = errors.New("preference not set")

// WelcomeKey 每个用户独立的欢迎页标记
func WelcomeKey(userID uint) string {
	return "welcome_shown_user_" + strconv.FormatUint(uint64(userID), 10)
}

// Store 小型持久化键值存储，保存会话与本地偏好
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Preference 本地库中的键值行
type Preference struct {
	Key       string `gorm:"primaryKey;column:pref_key"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore 基于本地库的实现
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Get(ctx context.Context, key string) (string, error) {
	var p Preference
	if err := s.db.WithContext(ctx).Where("pref_key = ?", key).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrMissing
		}
		return "", err
	}
	return p.Value, nil
}

func (s *gormStore) Set(ctx context.Context, key, value string) error {
	p := Preference{Key: key, Value: value}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pref_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&p).Error
}

func (s *gormStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("pref_key IN ?", keys).Delete(&Preference{}).Error
}

type redisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore 基于 Redis 的实现，键统一加前缀
func NewRedisStore(rdb *redis.Client, prefix string) Store {
	return &redisStore{rdb: rdb, prefix: prefix}
}

func (s *redisStore) key(k string) string {
	return s.prefix + k
}

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, s.key(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrMissing
		}
		return "", fmt.Errorf("prefs get error: %w", err)
	}
	return val, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, s.key(key), value, 0).Err()
}

func (s *redisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	return s.rdb.Del(ctx, full...).Err()
}
