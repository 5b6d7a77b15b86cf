// Package wire 提供应用装配
package wire

import (
	"context"

	"github.com/gin-gonic/gin"

	"tender-draft-api/internal/application/draft"
	"tender-draft-api/internal/application/knowledge"
	"tender-draft-api/internal/config"
	"tender-draft-api/internal/infrastructure/embedding"
	"tender-draft-api/internal/infrastructure/genai"
	"tender-draft-api/internal/infrastructure/persistence/milvus"
	"tender-draft-api/internal/infrastructure/persistence/postgres"
	"tender-draft-api/internal/infrastructure/persistence/redis"
	"tender-draft-api/internal/interfaces/http/handler"
	"tender-draft-api/internal/interfaces/http/router"
	"tender-draft-api/pkg/logger"
)

// App 应用依赖容器
type App struct {
	router *router.Router

	pgClient     *postgres.Client
	redisClient  *redis.Client
	milvusClient *milvus.Client
}

// Engine 返回 HTTP 引擎
func (a *App) Engine() *gin.Engine {
	return a.router.Engine()
}

// InitializeApp 装配应用依赖，返回应用与清理函数
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	// 数据层
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		pgClient.Close()
		return nil, nil, err
	}

	// 向量检索为可选能力，连接失败只降级
	var milvusClient *milvus.Client
	if cfg.Vector.Milvus.Enabled {
		milvusClient, err = milvus.NewClient(ctx, &cfg.Vector.Milvus)
		if err != nil {
			logger.Warn(ctx, "milvus unavailable, reference retrieval disabled",
				"error", err.Error())
			milvusClient = nil
		}
	}

	cleanup := func() {
		if milvusClient != nil {
			_ = milvusClient.Close()
		}
		_ = redisClient.Close()
		_ = pgClient.Close()
	}

	projectRepo := postgres.NewProjectRepository(pgClient)
	txManager := postgres.NewTxManager(pgClient)
	cache := redis.NewCache(redisClient)
	rateLimiter := redis.NewRateLimiter(redisClient)

	// 知识库
	var (
		retriever *knowledge.Retriever
		ingestor  *knowledge.Ingestor
	)
	if milvusClient != nil && cfg.Embedding.Endpoint != "" {
		embedder := embedding.NewClient(&cfg.Embedding)
		vectorRepo := milvus.NewRepository(milvusClient, cfg.Embedding.Dimension)
		retriever = knowledge.NewRetriever(embedder, vectorRepo, cfg.Generation.RetrievalTopK)
		ingestor = knowledge.NewIngestor(embedder, vectorRepo)
	}

	// 编排层
	backend := genai.NewClient(&cfg.Generation.Backend)
	workspace := draft.NewWorkspace(projectRepo, cache)

	var retrieverPort draft.ReferenceRetriever
	if retriever != nil {
		retrieverPort = retriever
	}
	draftService := draft.NewService(workspace, backend, retrieverPort, &cfg.Generation)

	// 接口层
	handlers := router.Handlers{
		Health:    handler.NewHealthHandler(pgClient, redisClient, milvusClient),
		Project:   handler.NewProjectHandler(projectRepo, txManager),
		Draft:     handler.NewDraftHandler(draftService),
		Reference: handler.NewReferenceHandler(ingestor),
	}

	app := &App{
		router:       router.New(cfg, handlers, rateLimiter),
		pgClient:     pgClient,
		redisClient:  redisClient,
		milvusClient: milvusClient,
	}

	return app, cleanup, nil
}
