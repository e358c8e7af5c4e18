package auth

import (
	"errors"

	"rankkings/internal/domain/auth/handler"
	"rankkings/internal/pkg/middleware"
	"rankkings/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// AuthModule 会话模块
type AuthModule struct{}

func init() {
	registry.Register(&AuthModule{})
}

func (m *AuthModule) Name() string {
	return "auth"
}

func (m *AuthModule) Priority() int {
	// 其他模块依赖会话
	return 1
}

func (m *AuthModule) Init(ctx *registry.ModuleContext) error {
	if ctx.Session == nil {
		return errors.New("auth module requires a session manager")
	}

	h := handler.NewAuthHandler(ctx.Session)
	setupRoutes(ctx.Router, h, middleware.AuthMiddleware(ctx.Session))
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.AuthHandler, auth gin.HandlerFunc) {
	// 公开路由
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/register", h.Register)
		authGroup.POST("/logout", h.Logout)
		authGroup.POST("/reset", h.Reset)
		authGroup.GET("/state", h.State)
	}

	// 受保护的路由
	welcome := r.Group("/auth/welcome")
	welcome.Use(auth)
	{
		welcome.GET("", h.GetWelcome)
		welcome.POST("", h.MarkWelcome)
	}
}
