package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"rankkings/internal/domain/post/model"
	"rankkings/internal/domain/post/service"
	"rankkings/internal/pkg/apperr"
	"rankkings/internal/pkg/middleware"
	"rankkings/pkg/response"

	"github.com/gin-gonic/gin"
)

// snapshotTimeout 单次读取等待首个结果的上限
const snapshotTimeout = 5 * time.Second

// PostHandler 动态处理器
type PostHandler struct {
	service service.PostService
	session middleware.SessionSource
}

// NewPostHandler 创建处理器
func NewPostHandler(service service.PostService, session middleware.SessionSource) *PostHandler {
	return &PostHandler{service: service, session: session}
}

// snapshot 取响应式查询的第一次结果
func snapshot[T any](ctx context.Context, open func(context.Context) <-chan []T) ([]T, bool) {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	select {
	case items, ok := <-open(ctx):
		if !ok {
			return nil, false
		}
		if items == nil {
			items = []T{}
		}
		return items, true
	case <-ctx.Done():
		return nil, false
	}
}

func storeUnavailable(c *gin.Context) {
	response.Error(c, http.StatusServiceUnavailable, response.ErrServerInternal, "Store unavailable")
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// GetFeed 公开动态，最新在前
// @Summary 公开动态流
// @Tags Post
// @Produce json
// @Success 200 {object} response.Response
// @Router /posts/feed [get]
func (h *PostHandler) GetFeed(c *gin.Context) {
	posts, ok := snapshot(c.Request.Context(), h.service.GetPublicFeed)
	if !ok {
		storeUnavailable(c)
		return
	}
	response.Success(c, posts)
}

// StreamFeed 以 SSE 推送公开动态，每次变化推送完整列表
func (h *PostHandler) StreamFeed(c *gin.Context) {
	feed := h.service.GetPublicFeed(c.Request.Context())

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		posts, ok := <-feed
		if !ok {
			return false
		}
		c.SSEvent("feed", posts)
		return true
	})
}

// GetSaved 已收藏的动态
func (h *PostHandler) GetSaved(c *gin.Context) {
	posts, ok := snapshot(c.Request.Context(), h.service.GetSavedPosts)
	if !ok {
		storeUnavailable(c)
		return
	}
	response.Success(c, posts)
}

// GetUserPosts 指定用户的动态，非本人只能看到公开的
func (h *PostHandler) GetUserPosts(c *gin.Context) {
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}

	posts, ok := snapshot(c.Request.Context(), func(ctx context.Context) <-chan []model.Post {
		return h.service.GetPostsByUser(ctx, userID)
	})
	if !ok {
		storeUnavailable(c)
		return
	}

	if viewer := h.session.CurrentUser(); viewer == nil || viewer.ID != userID {
		visible := posts[:0]
		for _, p := range posts {
			if !p.IsPrivate {
				visible = append(visible, p)
			}
		}
		posts = visible
	}
	response.Success(c, posts)
}

// Sync 从远端拉取公开动态
func (h *PostHandler) Sync(c *gin.Context) {
	n, err := h.service.SyncFeed(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"synced": n})
}

// GetPost 单条动态
// @Summary 动态详情
// @Tags Post
// @Param id path int true "动态ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /posts/{id} [get]
func (h *PostHandler) GetPost(c *gin.Context) {
	post, ok := h.visiblePost(c)
	if !ok {
		return
	}
	response.Success(c, post)
}

// GetAlbums 按名次升序
func (h *PostHandler) GetAlbums(c *gin.Context) {
	post, ok := h.visiblePost(c)
	if !ok {
		return
	}
	albums, ok := snapshot(c.Request.Context(), func(ctx context.Context) <-chan []model.Album {
		return h.service.GetAlbums(ctx, post.ID)
	})
	if !ok {
		storeUnavailable(c)
		return
	}
	response.Success(c, albums)
}

// GetComments 最新在前
func (h *PostHandler) GetComments(c *gin.Context) {
	post, ok := h.visiblePost(c)
	if !ok {
		return
	}
	comments, ok := snapshot(c.Request.Context(), func(ctx context.Context) <-chan []model.Comment {
		return h.service.GetComments(ctx, post.ID)
	})
	if !ok {
		storeUnavailable(c)
		return
	}
	response.Success(c, comments)
}

// CommentInput 评论输入
type CommentInput struct {
	Content string `json:"content"`
}

// AddComment 以当前用户身份评论
func (h *PostHandler) AddComment(c *gin.Context) {
	post, ok := h.visiblePost(c)
	if !ok {
		return
	}
	var input CommentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	user := h.session.CurrentUser()
	if user == nil {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Not signed in")
		return
	}

	comment := &model.Comment{
		PostID:  post.ID,
		UserID:  user.ID,
		Name:    user.Name,
		Content: input.Content,
	}
	if err := h.service.AddComment(c.Request.Context(), comment); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, comment)
}

func (h *PostHandler) ToggleLike(c *gin.Context) {
	h.toggle(c, h.visiblePost, h.service.ToggleLike)
}

func (h *PostHandler) ToggleSave(c *gin.Context) {
	h.toggle(c, h.visiblePost, h.service.ToggleSave)
}

// TogglePrivacy 仅作者可操作
func (h *PostHandler) TogglePrivacy(c *gin.Context) {
	h.toggle(c, h.ownedPost, h.service.TogglePrivacy)
}

func (h *PostHandler) toggle(c *gin.Context, load func(*gin.Context) (*model.Post, bool), fn func(context.Context, uint) (*model.Post, error)) {
	post, ok := load(c)
	if !ok {
		return
	}
	updated, err := fn(c.Request.Context(), post.ID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, updated)
}

// DeletePost 连同条目与评论一起删除，仅作者可操作
func (h *PostHandler) DeletePost(c *gin.Context) {
	post, ok := h.ownedPost(c)
	if !ok {
		return
	}
	if err := h.service.DeletePost(c.Request.Context(), post.ID); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, true)
}

// RemoveAlbum 删除后其余条目重新编号，仅作者可操作且至少保留 MinAlbums 条
func (h *PostHandler) RemoveAlbum(c *gin.Context) {
	post, ok := h.ownedPost(c)
	if !ok {
		return
	}
	rank, err := strconv.Atoi(c.Param("rank"))
	if err != nil || rank < 1 {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid rank")
		return
	}
	if err := h.service.RemoveAlbum(c.Request.Context(), post.ID, rank); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, true)
}

// visiblePost 解析 :id 并加载动态；他人的私密动态按不存在处理
func (h *PostHandler) visiblePost(c *gin.Context) (*model.Post, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}
	post, err := h.service.GetPost(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return nil, false
	}
	if post.IsPrivate {
		if viewer := h.session.CurrentUser(); viewer == nil || viewer.ID != post.UserID {
			response.FromError(c, apperr.NotFound("post", id))
			return nil, false
		}
	}
	return post, true
}

// ownedPost 在 visiblePost 基础上要求当前用户是作者
func (h *PostHandler) ownedPost(c *gin.Context) (*model.Post, bool) {
	post, ok := h.visiblePost(c)
	if !ok {
		return nil, false
	}
	if userID, signedIn := middleware.CurrentUserID(c); !signedIn || userID != post.UserID {
		response.Error(c, http.StatusForbidden, response.ErrNoPermission, "only the author can change this post")
		return nil, false
	}
	return post, true
}
