package user

import (
	"rankkings/internal/domain/user/handler"
	"rankkings/internal/domain/user/repository"
	"rankkings/internal/domain/user/service"
	"rankkings/internal/pkg/middleware"
	"rankkings/internal/pkg/registry"
	"rankkings/internal/pkg/remote"
	"rankkings/pkg/cache"

	"github.com/gin-gonic/gin"
)

// UserModule 用户模块
type UserModule struct{}

func init() {
	// 自动注册模块
	registry.Register(&UserModule{})
}

func (m *UserModule) Name() string {
	return "user"
}

func (m *UserModule) Priority() int {
	return 5
}

func (m *UserModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	userRepo := repository.NewUserRepository(ctx.DB)

	var userCache cache.CacheService
	if ctx.Config.Cache.Backend == "redis" && ctx.Redis != nil {
		userCache = cache.NewRedisCache(ctx.Redis, "rankkings:cache:")
	} else {
		userCache = cache.NewMemoryCache()
	}

	var api remote.UserAPI
	if ctx.Remote != nil {
		api = ctx.Remote
	}
	userService := service.NewUserService(userRepo, api, userCache, ctx.Config.Cache.UserTTL)
	userHandler := handler.NewUserHandler(userService, ctx.Session)

	// 2. 路由注册
	setupRoutes(ctx.Router, userHandler, middleware.AuthMiddleware(ctx.Session), api != nil)

	return nil
}

func setupRoutes(r *gin.Engine, h *handler.UserHandler, auth gin.HandlerFunc, directory bool) {
	me := r.Group("/users/me")
	me.Use(auth)
	{
		me.GET("", h.GetMe)
		me.PUT("/interests", h.UpdateInterests)
		me.PUT("/avatar", h.UpdateAvatar)
	}

	if !directory {
		return
	}

	// 远端用户目录，写操作需要管理员
	dir := r.Group("/directory/users")
	dir.Use(auth)
	{
		dir.GET("", h.ListDirectory)
		dir.GET("/:id", h.GetDirectoryUser)

		admin := dir.Group("")
		admin.Use(middleware.AdminMiddleware())
		{
			admin.POST("", h.CreateDirectoryUser)
			admin.PUT("/:id", h.ReplaceDirectoryUser)
			admin.PATCH("/:id", h.PatchDirectoryUser)
			admin.DELETE("/:id", h.DeleteDirectoryUser)
		}
	}
}
