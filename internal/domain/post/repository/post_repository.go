package repository

import (
	"context"
	"fmt"

	"rankkings/internal/domain/post/model"
	"rankkings/internal/pkg/apperr"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository 本地存储：动态、排行条目与评论
type PostRepository interface {
	// Transaction 在同一事务中执行 fn，fn 返回错误时整体回滚
	Transaction(ctx context.Context, fn func(repo PostRepository) error) error

	CreatePost(ctx context.Context, post *model.Post) error
	UpdatePost(ctx context.Context, post *model.Post) error
	UpdateCounterFields(ctx context.Context, postID uint, fields model.CounterFields) error
	SetRemoteID(ctx context.Context, postID, remoteID uint) error
	GetPostByID(ctx context.Context, id uint) (*model.Post, error)
	GetPublicPosts(ctx context.Context) ([]model.Post, error)
	GetAllPosts(ctx context.Context) ([]model.Post, error)
	GetPostsByUserID(ctx context.Context, userID uint) ([]model.Post, error)
	GetSavedPosts(ctx context.Context) ([]model.Post, error)
	UpsertRemotePosts(ctx context.Context, posts []model.Post) error

	CreatePostWithAlbums(ctx context.Context, post *model.Post, albums []model.Album) error
	DeleteCascade(ctx context.Context, postID uint) error

	GetAlbumsByPostID(ctx context.Context, postID uint) ([]model.Album, error)
	RemoveAlbum(ctx context.Context, postID uint, rank int) error

	CreateComment(ctx context.Context, comment *model.Comment) error
	GetCommentsByPostID(ctx context.Context, postID uint) ([]model.Comment, error)
	CountComments(ctx context.Context, postID uint) (int64, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository 创建新的仓库实例
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Transaction(ctx context.Context, fn func(repo PostRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&postRepository{db: tx})
	})
}

// CreatePost 插入动态，不级联写入关联
func (r *postRepository) CreatePost(ctx context.Context, post *model.Post) error {
	return apperr.Translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error)
}

// UpdatePost 按 ID 整行替换
func (r *postRepository) UpdatePost(ctx context.Context, post *model.Post) error {
	res := r.db.WithContext(ctx).Model(&model.Post{}).Where("id = ?", post.ID).
		Select("*").Omit("id", "created_at", clause.Associations).Updates(post)
	if res.Error != nil {
		return apperr.Translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return r.mustExist(ctx, post.ID)
	}
	return nil
}

// mustExist MySQL 的影响行数只统计实际改变的行，值未变时需要再确认一次
func (r *postRepository) mustExist(ctx context.Context, id uint) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Post{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return apperr.Translate(err)
	}
	if n == 0 {
		return apperr.NotFound("post", id)
	}
	return nil
}

// UpdateCounterFields 只更新计数与标记列
func (r *postRepository) UpdateCounterFields(ctx context.Context, postID uint, fields model.CounterFields) error {
	cols := fields.Columns()
	if len(cols) == 0 {
		_, err := r.GetPostByID(ctx, postID)
		return err
	}

	res := r.db.WithContext(ctx).Model(&model.Post{}).Where("id = ?", postID).Updates(cols)
	if res.Error != nil {
		return apperr.Translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return r.mustExist(ctx, postID)
	}
	return nil
}

func (r *postRepository) SetRemoteID(ctx context.Context, postID, remoteID uint) error {
	res := r.db.WithContext(ctx).Model(&model.Post{}).Where("id = ?", postID).Update("remote_id", remoteID)
	if res.Error != nil {
		return apperr.Translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return r.mustExist(ctx, postID)
	}
	return nil
}

func (r *postRepository) GetPostByID(ctx context.Context, id uint) (*model.Post, error) {
	var post model.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		return nil, apperr.Translate(err)
	}
	return &post, nil
}

// GetPublicPosts 非私密动态，最新在前
func (r *postRepository) GetPublicPosts(ctx context.Context) ([]model.Post, error) {
	return r.findPosts(ctx, "is_private = ?", false)
}

func (r *postRepository) GetAllPosts(ctx context.Context) ([]model.Post, error) {
	return r.findPosts(ctx, "")
}

// GetPostsByUserID 包含私密动态，可见性由调用方控制
func (r *postRepository) GetPostsByUserID(ctx context.Context, userID uint) ([]model.Post, error) {
	return r.findPosts(ctx, "user_id = ?", userID)
}

func (r *postRepository) GetSavedPosts(ctx context.Context) ([]model.Post, error) {
	return r.findPosts(ctx, "is_saved = ?", true)
}

func (r *postRepository) findPosts(ctx context.Context, query string, args ...interface{}) ([]model.Post, error) {
	posts := make([]model.Post, 0)
	q := r.db.WithContext(ctx).Model(&model.Post{})
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Order("created_at DESC").Order("id DESC").Find(&posts).Error; err != nil {
		return nil, apperr.Translate(err)
	}
	return posts, nil
}

// UpsertRemotePosts 按 remote_id 合并远端动态
// 冲突时只覆盖远端拥有的字段，本地计数与标记保持不变
func (r *postRepository) UpsertRemotePosts(ctx context.Context, posts []model.Post) error {
	if len(posts) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "remote_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "title", "description", "is_private"}),
	}).Create(&posts).Error
	return apperr.Translate(err)
}

// CreatePostWithAlbums 原子写入动态与全部条目
// 条目的 PostID 会被改写为新动态的 ID
func (r *postRepository) CreatePostWithAlbums(ctx context.Context, post *model.Post, albums []model.Album) error {
	return r.Transaction(ctx, func(repo PostRepository) error {
		tx := repo.(*postRepository).db

		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return apperr.Translate(err)
		}
		if len(albums) == 0 {
			return nil
		}

		rows := make([]model.Album, len(albums))
		for i, a := range albums {
			a.ID = 0
			a.PostID = post.ID
			rows[i] = a
		}
		if err := tx.Create(&rows).Error; err != nil {
			return apperr.Translate(err)
		}
		copy(albums, rows)
		return nil
	})
}

// DeleteCascade 在一个事务中删除评论、条目与动态本身
func (r *postRepository) DeleteCascade(ctx context.Context, postID uint) error {
	return r.Transaction(ctx, func(repo PostRepository) error {
		tx := repo.(*postRepository).db

		if err := tx.Where("post_id = ?", postID).Delete(&model.Album{}).Error; err != nil {
			return apperr.Translate(err)
		}
		if err := tx.Where("post_id = ?", postID).Delete(&model.Comment{}).Error; err != nil {
			return apperr.Translate(err)
		}
		res := tx.Where("id = ?", postID).Delete(&model.Post{})
		if res.Error != nil {
			return apperr.Translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("post", postID)
		}
		return nil
	})
}

// rankAsc rank 在 MySQL 8 中是保留字，列名交给 gorm 引用
var rankAsc = clause.OrderByColumn{Column: clause.Column{Name: "rank"}}

// GetAlbumsByPostID 按名次升序
func (r *postRepository) GetAlbumsByPostID(ctx context.Context, postID uint) ([]model.Album, error) {
	albums := make([]model.Album, 0)
	err := r.db.WithContext(ctx).Where("post_id = ?", postID).Order(rankAsc).Find(&albums).Error
	if err != nil {
		return nil, apperr.Translate(err)
	}
	return albums, nil
}

// RemoveAlbum 删除一个条目并把剩余名次重新压实为 1..n
// 条目数不能因此低于 MinAlbums
func (r *postRepository) RemoveAlbum(ctx context.Context, postID uint, rank int) error {
	return r.Transaction(ctx, func(repo PostRepository) error {
		tx := repo.(*postRepository).db

		var count int64
		if err := tx.Model(&model.Album{}).Where("post_id = ?", postID).Count(&count).Error; err != nil {
			return apperr.Translate(err)
		}
		if count <= model.MinAlbums {
			return apperr.Validation(fmt.Sprintf("a ranking needs at least %d albums", model.MinAlbums))
		}

		res := tx.Where(map[string]interface{}{"post_id": postID, "rank": rank}).Delete(&model.Album{})
		if res.Error != nil {
			return apperr.Translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("album rank", rank)
		}

		var rest []model.Album
		if err := tx.Where("post_id = ?", postID).Order(rankAsc).Find(&rest).Error; err != nil {
			return apperr.Translate(err)
		}
		// 升序逐行下移，目标名次总是已空出，不会撞唯一索引
		for i, a := range rest {
			if a.Rank == i+1 {
				continue
			}
			if err := tx.Model(&model.Album{}).Where("id = ?", a.ID).Update("rank", i+1).Error; err != nil {
				return apperr.Translate(err)
			}
		}
		return nil
	})
}

func (r *postRepository) CreateComment(ctx context.Context, comment *model.Comment) error {
	return apperr.Translate(r.db.WithContext(ctx).Create(comment).Error)
}

// GetCommentsByPostID 最新在前
func (r *postRepository) GetCommentsByPostID(ctx context.Context, postID uint) ([]model.Comment, error) {
	comments := make([]model.Comment, 0)
	err := r.db.WithContext(ctx).Where("post_id = ?", postID).
		Order("created_at DESC").Order("id DESC").Find(&comments).Error
	if err != nil {
		return nil, apperr.Translate(err)
	}
	return comments, nil
}

func (r *postRepository) CountComments(ctx context.Context, postID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Comment{}).Where("post_id = ?", postID).Count(&n).Error
	return n, apperr.Translate(err)
}
