package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rankkings/internal/domain/post/model"
	"rankkings/internal/domain/post/repository"
	"rankkings/internal/pkg/apperr"
	"rankkings/internal/pkg/keylock"
	"rankkings/internal/pkg/remote"
	"rankkings/internal/pkg/watch"
	"rankkings/pkg/logger"
	"rankkings/pkg/metrics"

	"go.uber.org/zap"
)

// PostService 对上层暴露的唯一数据入口，隐藏本地存储与远端来源
type PostService interface {
	GetPublicFeed(ctx context.Context) <-chan []model.Post
	GetPostsByUser(ctx context.Context, userID uint) <-chan []model.Post
	GetSavedPosts(ctx context.Context) <-chan []model.Post
	GetAlbums(ctx context.Context, postID uint) <-chan []model.Album
	GetComments(ctx context.Context, postID uint) <-chan []model.Comment
	GetPost(ctx context.Context, postID uint) (*model.Post, error)

	CreatePostWithAlbums(ctx context.Context, post *model.Post, albums []model.Album) error
	ToggleLike(ctx context.Context, postID uint) (*model.Post, error)
	ToggleSave(ctx context.Context, postID uint) (*model.Post, error)
	TogglePrivacy(ctx context.Context, postID uint) (*model.Post, error)
	DeletePost(ctx context.Context, postID uint) error
	RemoveAlbum(ctx context.Context, postID uint, rank int) error
	AddComment(ctx context.Context, comment *model.Comment) error

	SyncFeed(ctx context.Context) (int, error)
	PushPost(ctx context.Context, postID uint) error
}

type postService struct {
	repo    repository.PostRepository
	remote  remote.PostAPI
	hub     *watch.Hub
	locks   *keylock.KeyLock
	metrics *metrics.MetricsCollector
}

// NewPostService 创建动态服务，remote 为 nil 时同步与推送不可用
func NewPostService(repo repository.PostRepository, api remote.PostAPI, hub *watch.Hub, locks *keylock.KeyLock, m *metrics.MetricsCollector) PostService {
	return &postService{repo: repo, remote: api, hub: hub, locks: locks, metrics: m}
}

// --- 响应式查询 ---

func (s *postService) GetPublicFeed(ctx context.Context) <-chan []model.Post {
	return watch.Stream(ctx, s.hub, s.repo.GetPublicPosts, s.onStreamError("public_feed"), watch.TopicPosts)
}

func (s *postService) GetPostsByUser(ctx context.Context, userID uint) <-chan []model.Post {
	q := func(ctx context.Context) ([]model.Post, error) {
		return s.repo.GetPostsByUserID(ctx, userID)
	}
	return watch.Stream(ctx, s.hub, q, s.onStreamError("user_posts"), watch.TopicPosts)
}

func (s *postService) GetSavedPosts(ctx context.Context) <-chan []model.Post {
	return watch.Stream(ctx, s.hub, s.repo.GetSavedPosts, s.onStreamError("saved_posts"), watch.TopicPosts)
}

func (s *postService) GetAlbums(ctx context.Context, postID uint) <-chan []model.Album {
	q := func(ctx context.Context) ([]model.Album, error) {
		return s.repo.GetAlbumsByPostID(ctx, postID)
	}
	return watch.Stream(ctx, s.hub, q, s.onStreamError("albums"), watch.TopicAlbums)
}

func (s *postService) GetComments(ctx context.Context, postID uint) <-chan []model.Comment {
	q := func(ctx context.Context) ([]model.Comment, error) {
		return s.repo.GetCommentsByPostID(ctx, postID)
	}
	return watch.Stream(ctx, s.hub, q, s.onStreamError("comments"), watch.TopicComments)
}

func (s *postService) GetPost(ctx context.Context, postID uint) (*model.Post, error) {
	return s.repo.GetPostByID(ctx, postID)
}

func (s *postService) onStreamError(name string) func(error) {
	return func(err error) {
		s.metrics.RecordStoreError("stream_" + name)
		logger.L().Error("stream query failed", zap.String("stream", name), zap.Error(err))
	}
}

// --- 写操作 ---

// CreatePostWithAlbums 原子创建，失败时动态与条目都不落库
func (s *postService) CreatePostWithAlbums(ctx context.Context, post *model.Post, albums []model.Album) error {
	post.ID = 0
	post.LikeCount, post.CommentCount, post.SaveCount = 0, 0, 0
	post.IsLiked, post.IsSaved = false, false
	post.RemoteID = nil

	if err := s.repo.CreatePostWithAlbums(ctx, post, albums); err != nil {
		return s.storeError("create_post", err)
	}
	s.hub.Notify(watch.TopicPosts, watch.TopicAlbums)
	return nil
}

func (s *postService) ToggleLike(ctx context.Context, postID uint) (*model.Post, error) {
	return s.mutateCounters(ctx, "toggle_like", postID, func(p *model.Post) model.CounterFields {
		liked := !p.IsLiked
		count := p.LikeCount + 1
		if !liked {
			count = p.LikeCount - 1
		}
		return model.CounterFields{IsLiked: &liked, LikeCount: &count}
	})
}

func (s *postService) ToggleSave(ctx context.Context, postID uint) (*model.Post, error) {
	return s.mutateCounters(ctx, "toggle_save", postID, func(p *model.Post) model.CounterFields {
		saved := !p.IsSaved
		count := p.SaveCount + 1
		if !saved {
			count = p.SaveCount - 1
		}
		return model.CounterFields{IsSaved: &saved, SaveCount: &count}
	})
}

func (s *postService) TogglePrivacy(ctx context.Context, postID uint) (*model.Post, error) {
	return s.mutateCounters(ctx, "toggle_privacy", postID, func(p *model.Post) model.CounterFields {
		private := !p.IsPrivate
		return model.CounterFields{IsPrivate: &private}
	})
}

// mutateCounters 同一动态的读改写串行执行，并在事务内读取最新持久化状态
func (s *postService) mutateCounters(ctx context.Context, op string, postID uint, change func(p *model.Post) model.CounterFields) (*model.Post, error) {
	unlock := s.locks.LockID("post", postID)
	defer unlock()

	var updated *model.Post
	err := s.repo.Transaction(ctx, func(tx repository.PostRepository) error {
		current, err := tx.GetPostByID(ctx, postID)
		if err != nil {
			return err
		}
		if err := tx.UpdateCounterFields(ctx, postID, change(current)); err != nil {
			return err
		}
		updated, err = tx.GetPostByID(ctx, postID)
		return err
	})
	if err != nil {
		return nil, s.storeError(op, err)
	}

	s.hub.Notify(watch.TopicPosts)
	return updated, nil
}

func (s *postService) DeletePost(ctx context.Context, postID uint) error {
	unlock := s.locks.LockID("post", postID)
	defer unlock()

	if err := s.repo.DeleteCascade(ctx, postID); err != nil {
		return s.storeError("delete_post", err)
	}
	s.hub.Notify(watch.TopicPosts, watch.TopicAlbums, watch.TopicComments)
	return nil
}

func (s *postService) RemoveAlbum(ctx context.Context, postID uint, rank int) error {
	unlock := s.locks.LockID("post", postID)
	defer unlock()

	if err := s.repo.RemoveAlbum(ctx, postID, rank); err != nil {
		return s.storeError("remove_album", err)
	}
	s.hub.Notify(watch.TopicAlbums)
	return nil
}

// AddComment 插入评论后按 COUNT(*) 重算评论数并回写
func (s *postService) AddComment(ctx context.Context, comment *model.Comment) error {
	comment.Content = strings.TrimSpace(comment.Content)
	if comment.Content == "" {
		return apperr.Validation("comment content is required")
	}
	if comment.PostID == 0 {
		return apperr.Validation("comment must reference a post")
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}

	unlock := s.locks.LockID("post", comment.PostID)
	defer unlock()

	err := s.repo.Transaction(ctx, func(tx repository.PostRepository) error {
		if err := tx.CreateComment(ctx, comment); err != nil {
			return err
		}
		n, err := tx.CountComments(ctx, comment.PostID)
		if err != nil {
			return err
		}
		count := int(n)
		return tx.UpdateCounterFields(ctx, comment.PostID, model.CounterFields{CommentCount: &count})
	})
	if err != nil {
		return s.storeError("add_comment", err)
	}

	s.hub.Notify(watch.TopicComments, watch.TopicPosts)
	return nil
}

// --- 远端同步 ---

// SyncFeed 拉取远端动态列表并合并进本地存储，返回合并条数
func (s *postService) SyncFeed(ctx context.Context) (int, error) {
	if s.remote == nil {
		return 0, apperr.State("remote client not configured")
	}

	remotePosts, err := s.remote.ListPosts(ctx)
	if err != nil {
		return 0, err
	}

	posts := make([]model.Post, 0, len(remotePosts))
	for _, rp := range remotePosts {
		rid := rp.ID
		p := model.Post{
			UserID:      rp.UserID,
			Name:        rp.Name,
			Title:       rp.Title,
			Description: rp.Description,
			IsPrivate:   rp.IsPrivate,
			RemoteID:    &rid,
		}
		if rp.CreatedAt > 0 {
			p.CreatedAt = time.UnixMilli(rp.CreatedAt)
		}
		posts = append(posts, p)
	}

	if err := s.repo.UpsertRemotePosts(ctx, posts); err != nil {
		return 0, s.storeError("sync_feed", err)
	}
	if len(posts) > 0 {
		s.hub.Notify(watch.TopicPosts)
	}
	logger.L().Info("feed synced", zap.Int("posts", len(posts)))
	return len(posts), nil
}

// PushPost 把本地发布的动态推送到远端，已推送过的直接返回
func (s *postService) PushPost(ctx context.Context, postID uint) error {
	if s.remote == nil {
		return apperr.State("remote client not configured")
	}

	post, err := s.repo.GetPostByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.RemoteID != nil {
		return nil
	}

	created, err := s.remote.CreatePost(ctx, remote.PostRequest{
		UserID:      post.UserID,
		Name:        post.Name,
		Title:       post.Title,
		Description: post.Description,
		IsPrivate:   post.IsPrivate,
	})
	if err != nil {
		return fmt.Errorf("push post %d: %w", postID, err)
	}

	if err := s.repo.SetRemoteID(ctx, postID, created.ID); err != nil {
		return s.storeError("push_post", err)
	}
	s.hub.Notify(watch.TopicPosts)
	return nil
}

func (s *postService) storeError(op string, err error) error {
	if !errors.Is(err, apperr.ErrNotFound) && !errors.Is(err, apperr.ErrValidation) {
		s.metrics.RecordStoreError(op)
		logger.L().Error("store operation failed", zap.String("op", op), zap.Error(err))
	}
	return err
}
