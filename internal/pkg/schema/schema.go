package schema

import (
	"fmt"

	postModel "rankkings/internal/domain/post/model"
	userModel "rankkings/internal/domain/user/model"
	"rankkings/internal/pkg/prefs"

	"gorm.io/gorm"
)

// Models 本地存储的全部表
func Models() []interface{} {
	return []interface{}{
		&userModel.User{},
		&postModel.Post{},
		&postModel.Album{},
		&postModel.Comment{},
		&prefs.Preference{},
	}
}

// Migrate 设备端建表与补充索引
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate local store: %w", err)
	}

	// 首页按时间倒序读取公开动态
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_posts_public_created ON posts(is_private, created_at DESC)").Error; err != nil {
		return fmt.Errorf("failed to create feed index: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_comments_post_created ON comments(post_id, created_at DESC)").Error; err != nil {
		return fmt.Errorf("failed to create comments index: %w", err)
	}
	return nil
}
