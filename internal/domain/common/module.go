package common

import (
	_ "rankkings/docs"
	commonHandler "rankkings/internal/pkg/common"
	"rankkings/internal/pkg/registry"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// CommonModule 通用功能模块
type CommonModule struct{}

func init() {
	registry.Register(&CommonModule{})
}

func (m *CommonModule) Name() string {
	return "common"
}

func (m *CommonModule) Priority() int {
	return 100 // 最后初始化
}

func (m *CommonModule) Init(ctx *registry.ModuleContext) error {
	setupRoutes(ctx.Router, commonHandler.NewHealthHandler(ctx.DB, ctx.Redis), ctx)
	return nil
}

func setupRoutes(r *gin.Engine, h *commonHandler.HealthHandler, ctx *registry.ModuleContext) {
	r.GET("/health", h.Health)
	r.GET("/metrics", commonHandler.Metrics(ctx.Gatherer))

	// 接口文档，release 模式下不暴露
	if gin.Mode() != gin.ReleaseMode {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}
