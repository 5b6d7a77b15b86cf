// Package knowledge 提供参考标书知识库的入库与检索能力
package knowledge

import (
	"context"
	"strings"

	"tender-draft-api/internal/domain/outline"
	"tender-draft-api/internal/infrastructure/persistence/milvus"
	"tender-draft-api/pkg/logger"
	"tender-draft-api/pkg/metrics"
)

// Embedder 文本向量化接口
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// VectorStore 向量存储接口
type VectorStore interface {
	EnsureCollection(ctx context.Context) error
	InsertSegments(ctx context.Context, projectID string, segments []*milvus.ReferenceSegment) error
	SearchSegments(ctx context.Context, params *milvus.SearchParams) ([]*milvus.SearchResult, error)
	DropProjectSegments(ctx context.Context, projectID string) error
}

// Retriever 章节生成前的参考资料检索器
// 检索失败只降级为空上下文，不阻断生成
type Retriever struct {
	embedder Embedder
	vector   VectorStore
	topK     int
}

// NewRetriever 创建检索器；embedder 或 vector 为 nil 时检索被禁用
func NewRetriever(embedder Embedder, vector VectorStore, topK int) *Retriever {
	if topK <= 0 {
		topK = 3
	}
	return &Retriever{
		embedder: embedder,
		vector:   vector,
		topK:     topK,
	}
}

// Enabled 检索是否可用
func (r *Retriever) Enabled() bool {
	return r != nil && r.embedder != nil && r.vector != nil
}

// ContextFor 为章节检索参考上下文
// 查询由父章节标题与本章标题、描述拼接而成
func (r *Retriever) ContextFor(ctx context.Context, projectID string, leaf *outline.LeafContext) string {
	if !r.Enabled() || leaf == nil {
		return ""
	}

	query := buildQuery(leaf)
	if query == "" {
		return ""
	}

	vector, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		metrics.ReferenceSearchTotal.WithLabelValues("error").Inc()
		logger.Warn(ctx, "reference embedding failed, generating without references",
			"project_id", projectID,
			"chapter_id", leaf.Node.ID,
			"error", err.Error())
		return ""
	}

	results, err := r.vector.SearchSegments(ctx, &milvus.SearchParams{
		ProjectID:   projectID,
		QueryVector: vector,
		TopK:        r.topK,
	})
	if err != nil {
		metrics.ReferenceSearchTotal.WithLabelValues("error").Inc()
		logger.Warn(ctx, "reference search failed, generating without references",
			"project_id", projectID,
			"chapter_id", leaf.Node.ID,
			"error", err.Error())
		return ""
	}

	metrics.ReferenceSearchTotal.WithLabelValues("ok").Inc()
	if len(results) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, res := range results {
		text := strings.TrimSpace(res.TextContent)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}
	return sb.String()
}

// buildQuery 拼接检索查询
func buildQuery(leaf *outline.LeafContext) string {
	var parts []string
	if n := len(leaf.Ancestors); n > 0 {
		parent := leaf.Ancestors[n-1]
		if t := strings.TrimSpace(parent.Title); t != "" {
			parts = append(parts, t)
		}
	}
	if t := strings.TrimSpace(leaf.Node.Title); t != "" {
		parts = append(parts, t)
	}
	if d := strings.TrimSpace(leaf.Node.Description); d != "" {
		parts = append(parts, d)
	}
	return strings.Join(parts, " ")
}
