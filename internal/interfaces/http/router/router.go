// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tender-draft-api/internal/config"
	"tender-draft-api/internal/interfaces/http/handler"
	"tender-draft-api/internal/interfaces/http/middleware"
)

// Handlers 路由依赖的处理器集合
type Handlers struct {
	Health    *handler.HealthHandler
	Project   *handler.ProjectHandler
	Draft     *handler.DraftHandler
	Reference *handler.ReferenceHandler
}

// Router HTTP 路由器
type Router struct {
	engine *gin.Engine
	cfg    *config.Config
}

// New 创建新的路由器
func New(cfg *config.Config, handlers Handlers, limiter middleware.RateLimiter) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	r := &Router{
		engine: engine,
		cfg:    cfg,
	}

	r.setupMiddleware(limiter)
	r.setupRoutes(handlers)

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware(limiter middleware.RateLimiter) {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}

	r.engine.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Enabled:           r.cfg.Security.RateLimit.Enabled,
		RequestsPerSecond: r.cfg.Security.RateLimit.RequestsPerSecond,
	}, limiter))
}

// setupRoutes 配置路由
func (r *Router) setupRoutes(h Handlers) {
	// 系统端点
	r.engine.GET("/health", h.Health.Health)
	r.engine.GET("/ready", h.Health.Ready)
	r.engine.GET("/live", h.Health.Live)

	// Prometheus 指标端点
	if r.cfg.Observability.Metrics.Enabled {
		path := r.cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.engine.Group("/v1")
	{
		projects := v1.Group("/projects")
		{
			projects.GET("", h.Project.ListProjects)
			projects.POST("", h.Project.CreateProject)
			projects.GET("/:pid", h.Project.GetProject)
			projects.PUT("/:pid", h.Project.UpdateProject)
			projects.DELETE("/:pid", h.Project.DeleteProject)

			// 目录树
			projects.GET("/:pid/outline", h.Draft.GetOutline)
			projects.PUT("/:pid/outline", h.Draft.UpdateOutline)
			projects.POST("/:pid/outline/generate", h.Draft.GenerateOutline) // SSE

			// 章节生成
			projects.POST("/:pid/chapters/:cid/generate", h.Draft.GenerateChapter) // SSE
			projects.POST("/:pid/chapters/:cid/expand", h.Draft.ExpandChapter)     // SSE
			projects.PUT("/:pid/chapters/:cid/content", h.Draft.UpdateContent)

			// 批量生成
			projects.POST("/:pid/generate-batch", h.Draft.GenerateBatch) // SSE

			// 参考标书知识库
			projects.POST("/:pid/references", h.Reference.IngestReference)
			projects.DELETE("/:pid/references", h.Reference.PurgeReferences)
		}
	}
}
