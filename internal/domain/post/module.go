package post

import (
	"rankkings/internal/domain/post/handler"
	"rankkings/internal/domain/post/repository"
	"rankkings/internal/domain/post/service"
	"rankkings/internal/pkg/middleware"
	"rankkings/internal/pkg/registry"
	"rankkings/internal/pkg/worker"

	"github.com/gin-gonic/gin"
)

// PostModule 动态模块
type PostModule struct{}

func init() {
	registry.Register(&PostModule{})
}

func (m *PostModule) Name() string {
	return "post"
}

func (m *PostModule) Priority() int {
	// 依赖 auth 模块建立的会话
	return 10
}

func (m *PostModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	postRepo := repository.NewPostRepository(ctx.DB)

	var api service.PostService
	if ctx.Remote != nil {
		api = service.NewPostService(postRepo, ctx.Remote, ctx.Hub, ctx.Locks, ctx.Metrics)
	} else {
		api = service.NewPostService(postRepo, nil, ctx.Hub, ctx.Locks, ctx.Metrics)
	}

	// 2. 后台推送
	var queue service.PushQueue
	if ctx.Remote != nil {
		cfg := ctx.Config.Sync
		pool := worker.NewWorkerPool(api, cfg.Workers, cfg.BufferSize, cfg.MaxRetry, ctx.Metrics)
		pool.Start()
		ctx.OnShutdown(pool.Stop)
		queue = pool
	}

	publisher := service.NewPublisher(api, ctx.Session, queue)
	draft := service.NewDraft(publisher)

	postHandler := handler.NewPostHandler(api, ctx.Session)
	draftHandler := handler.NewDraftHandler(draft)

	// 3. 路由注册
	auth := middleware.AuthMiddleware(ctx.Session)
	setupRoutes(ctx.Router, postHandler, draftHandler, auth)

	return nil
}

func setupRoutes(r *gin.Engine, h *handler.PostHandler, d *handler.DraftHandler, auth gin.HandlerFunc) {
	// 公开读取
	posts := r.Group("/posts")
	{
		posts.GET("/feed", h.GetFeed)
		posts.GET("/feed/stream", h.StreamFeed)
		posts.GET("/feed/ws", h.FeedSocket)
		posts.GET("/:id", h.GetPost)
		posts.GET("/:id/albums", h.GetAlbums)
		posts.GET("/:id/comments", h.GetComments)
	}
	r.GET("/users/:id/posts", h.GetUserPosts)

	// 需要登录
	authorized := r.Group("/posts")
	authorized.Use(auth)
	{
		authorized.GET("/saved", h.GetSaved)
		authorized.POST("/sync", h.Sync)
		authorized.POST("/:id/comments", h.AddComment)
		authorized.POST("/:id/like", h.ToggleLike)
		authorized.POST("/:id/save", h.ToggleSave)
		authorized.POST("/:id/privacy", h.TogglePrivacy)
		authorized.DELETE("/:id", h.DeletePost)
		authorized.DELETE("/:id/albums/:rank", h.RemoveAlbum)
	}

	draft := r.Group("/draft")
	draft.Use(auth)
	{
		draft.GET("", d.GetDraft)
		draft.POST("", d.UpdateDraft)
		draft.POST("/albums", d.AddAlbum)
		draft.DELETE("/albums/:rank", d.RemoveAlbum)
		draft.POST("/publish", d.Publish)
		draft.POST("/reset", d.Reset)
	}
}
