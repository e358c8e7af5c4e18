package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "rankkings/internal/domain/auth"
	authService "rankkings/internal/domain/auth/service"
	_ "rankkings/internal/domain/common"
	_ "rankkings/internal/domain/post"
	_ "rankkings/internal/domain/user"
	"rankkings/internal/domain/user/repository"
	"rankkings/internal/pkg/config"
	"rankkings/internal/pkg/keylock"
	"rankkings/internal/pkg/middleware"
	"rankkings/internal/pkg/prefs"
	"rankkings/internal/pkg/registry"
	"rankkings/internal/pkg/remote"
	"rankkings/internal/pkg/schema"
	"rankkings/internal/pkg/watch"
	"rankkings/pkg/database"
	"rankkings/pkg/logger"
	"rankkings/pkg/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// 1. 配置与日志
	config.LoadConfig()
	cfg := &config.GlobalConfig

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Debug); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 2. 本地存储
	db, err := database.Open(cfg.Store, cfg.App.Debug)
	if err != nil {
		logger.L().Fatal("failed to open store", zap.Error(err))
	}
	if err := schema.Migrate(db); err != nil {
		logger.L().Fatal("failed to migrate store", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		if rdb, err = database.InitRedis(cfg.Redis); err != nil {
			logger.L().Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	var store prefs.Store
	if cfg.Session.Backend == "redis" {
		store = prefs.NewRedisStore(rdb, "rankkings:prefs:")
	} else {
		store = prefs.NewGormStore(db)
	}

	// 3. 远端与会话
	metrics.InitMetrics()
	collector := metrics.GetGlobalCollector()

	client := remote.NewClient(cfg.Remote, nil, collector)
	session := authService.NewSessionManager(client, repository.NewUserRepository(db), store, cfg.Auth)
	client.SetTokenSource(session.Token)
	defer session.Close()

	restoreCtx, cancelRestore := context.WithTimeout(context.Background(), cfg.Remote.Timeout+5*time.Second)
	if err := session.Restore(restoreCtx); err != nil {
		logger.L().Warn("session restore failed, starting signed out", zap.Error(err))
	}
	cancelRestore()

	// 4. HTTP
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(
		middleware.RecoveryMiddleware(),
		middleware.TraceMiddleware(),
		middleware.LoggerMiddleware(),
		middleware.MetricsMiddleware(collector),
		middleware.SecurityHeadersMiddleware(),
		middleware.RateLimitMiddleware(cfg.Server.RateLimit, cfg.Server.Burst),
		cors.New(corsConfig(cfg.Server.AllowOrigins)),
		// 推送类接口需要逐条 flush，不压缩
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/posts/feed/stream", "/posts/feed/ws"})),
	)

	moduleCtx := &registry.ModuleContext{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Router:   r,
		Remote:   client,
		Session:  session,
		Hub:      watch.NewHub(),
		Locks:    keylock.New(),
		Metrics:  collector,
		Gatherer: prometheus.DefaultGatherer,
	}
	if err := registry.InitModules(moduleCtx); err != nil {
		logger.L().Fatal("failed to init modules", zap.Error(err))
	}

	// 关闭时取消所有请求上下文，SSE 连接随之结束
	baseCtx, cancelBase := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     r,
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}

	go func() {
		logger.L().Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal("server error", zap.Error(err))
		}
	}()

	// 5. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.L().Info("shutting down server...")

	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.L().Error("server forced to shutdown", zap.Error(err))
	}
	moduleCtx.Shutdown()

	logger.L().Info("server exited")
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	c.AllowHeaders = append(c.AllowHeaders, "Authorization", middleware.HeaderTraceID)
	c.ExposeHeaders = []string{middleware.HeaderRequestID, middleware.HeaderTraceID}
	return c
}
