package core

import (
	"net/http"
	"slices"
	"time"

	"github.com/anoixa/image-scraper/api/common"
	handlerImages "github.com/anoixa/image-scraper/api/handler/images"
	"github.com/anoixa/image-scraper/api/middleware"
	"github.com/anoixa/image-scraper/config"
	"github.com/anoixa/image-scraper/database"
	"github.com/anoixa/image-scraper/internal/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var startTime = time.Now()

// ServerDependencies 服务器依赖项
type ServerDependencies struct {
	Config   *config.Config
	Store    database.ImageStore
	Acquirer handlerImages.Acquirer
	Metrics  *metrics.Metrics
}

// SetupRouter 创建 gin 路由，返回的 cleanup 用于停止限流器的后台清理
func SetupRouter(deps *ServerDependencies) (*gin.Engine, func()) {
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	if !config.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// 全局中间件
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(cors.New(corsConfig(cfg.CORSOrigins())))
	_ = router.SetTrustedProxies(nil)

	if deps.Metrics != nil {
		router.Use(middleware.Metrics(deps.Metrics))
	}

	acquireRateLimiter := middleware.NewIPRateLimiter(cfg.ServerAcquireRPS, cfg.ServerAcquireBurst, 10*time.Minute)
	acquireLimiter := middleware.NewConcurrencyLimiter(int64(cfg.ServerAcquireConcurrent))
	cleanup := func() {
		acquireRateLimiter.StopCleanup()
	}

	router.GET("/healthz", func(context *gin.Context) {
		storeStatus := checkStoreHealth(context.Request.Context(), deps.Store)
		httpStatus := http.StatusOK
		if storeStatus != "ok" {
			httpStatus = http.StatusServiceUnavailable
		}
		context.JSON(httpStatus, gin.H{
			"status":  storeStatus,
			"uptime":  time.Since(startTime).Round(time.Second).String(),
			"version": config.Version,
			"checks": gin.H{
				"store": storeStatus,
			},
		})
	})
	router.GET("/version", func(context *gin.Context) {
		common.RespondSuccess(context, gin.H{
			"version": config.Version,
			"commit":  config.CommitHash,
		})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	imageHandler := handlerImages.NewHandler(deps.Store, deps.Acquirer)

	apiGroup := router.Group("/api")
	apiGroup.Use(func(context *gin.Context) { // API 默认禁止缓存
		context.Header("Cache-Control", "no-store")
		context.Next()
	})
	{
		v1 := apiGroup.Group("/v1")
		{
			v1.GET("/images", imageHandler.ListImages)
			v1.GET("/images/:checksum/raw", imageHandler.GetRaw)
			// 采集会触发网络请求，单独限流
			v1.POST("/acquire", acquireRateLimiter.Middleware(), acquireLimiter.Middleware(), imageHandler.Acquire)
		}
	}

	return router, cleanup
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods: []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Length", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

// StartServer 创建 http.Server
func StartServer(deps *ServerDependencies) (*http.Server, func()) {
	router, clean := SetupRouter(deps)

	srv := &http.Server{
		Addr:              deps.Config.Addr(),
		Handler:           router,
		ReadTimeout:       deps.Config.ServerReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      deps.Config.ServerWriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}

	return srv, clean
}
