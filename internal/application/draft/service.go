package draft

import (
	"context"

	"tender-draft-api/internal/config"
	"tender-draft-api/internal/domain/outline"
	"tender-draft-api/internal/infrastructure/genai"
)

const (
	defaultWorkerCount      = 3
	defaultMinContentLength = 30
)

// Backend 生成后端端口
type Backend interface {
	StreamOutline(ctx context.Context, req *genai.OutlineRequest) (*genai.Stream, error)
	StreamChapter(ctx context.Context, req *genai.ChapterRequest) (*genai.Stream, error)
	StreamExpand(ctx context.Context, req *genai.ExpandRequest) (*genai.Stream, error)
}

// ReferenceRetriever 参考资料检索端口
type ReferenceRetriever interface {
	Enabled() bool
	ContextFor(ctx context.Context, projectID string, leaf *outline.LeafContext) string
}

// Service 标书生成编排服务
type Service struct {
	workspace *Workspace
	backend   Backend
	retriever ReferenceRetriever

	workerCount      int
	minContentLength int

	// runLeaf 批量生成中单个章节的执行入口，测试中可替换
	runLeaf func(ctx context.Context, projectID string, chapterID string) error
}

// NewService 创建编排服务；retriever 可为 nil
func NewService(workspace *Workspace, backend Backend, retriever ReferenceRetriever, cfg *config.GenerationConfig) *Service {
	workerCount := defaultWorkerCount
	minContentLength := defaultMinContentLength
	if cfg != nil {
		if cfg.WorkerCount > 0 {
			workerCount = cfg.WorkerCount
		}
		if cfg.MinContentLength > 0 {
			minContentLength = cfg.MinContentLength
		}
	}

	s := &Service{
		workspace:        workspace,
		backend:          backend,
		retriever:        retriever,
		workerCount:      workerCount,
		minContentLength: minContentLength,
	}
	s.runLeaf = s.generateChapterBlocking
	return s
}

// Workspace 返回底层工作区
func (s *Service) Workspace() *Workspace {
	return s.workspace
}
