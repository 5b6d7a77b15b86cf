package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tender-draft-api/internal/infrastructure/persistence/milvus"
	apperrors "tender-draft-api/pkg/errors"
	"tender-draft-api/pkg/logger"
)

const (
	segmentMaxRunes     = 800
	segmentOverlapRunes = 100
)

// Ingestor 参考标书入库服务
type Ingestor struct {
	embedder Embedder
	vector   VectorStore
}

// NewIngestor 创建入库服务
func NewIngestor(embedder Embedder, vector VectorStore) *Ingestor {
	return &Ingestor{
		embedder: embedder,
		vector:   vector,
	}
}

// Enabled 入库是否可用
func (i *Ingestor) Enabled() bool {
	return i != nil && i.embedder != nil && i.vector != nil
}

// Ingest 切分、向量化并写入参考标书全文，返回写入的片段数
func (i *Ingestor) Ingest(ctx context.Context, projectID, source, text string) (int, error) {
	if !i.Enabled() {
		return 0, apperrors.New(apperrors.CodeServiceUnavailable, "reference knowledge base is not configured")
	}

	chunks := splitByRunes(text, segmentMaxRunes, segmentOverlapRunes)
	if len(chunks) == 0 {
		return 0, apperrors.New(apperrors.CodeInvalidParam, "reference document is empty")
	}

	if err := i.vector.EnsureCollection(ctx); err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeVectorDBError, "failed to prepare collection")
	}

	vectors, err := i.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeEmbeddingFailed, "failed to embed reference document")
	}
	if len(vectors) != len(chunks) {
		return 0, apperrors.New(apperrors.CodeEmbeddingFailed,
			fmt.Sprintf("embedding count mismatch: got %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	source = strings.TrimSpace(source)
	if source == "" {
		source = "unnamed"
	}

	segments := make([]*milvus.ReferenceSegment, 0, len(chunks))
	for idx, chunk := range chunks {
		segments = append(segments, &milvus.ReferenceSegment{
			ID:          uuid.New().String(),
			Vector:      vectors[idx],
			ProjectID:   projectID,
			Source:      source,
			ChunkIndex:  int64(idx),
			TextContent: chunk,
		})
	}

	if err := i.vector.InsertSegments(ctx, projectID, segments); err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeVectorDBError, "failed to insert segments")
	}

	logger.Info(ctx, "reference document ingested",
		"project_id", projectID,
		"source", source,
		"segment_count", len(segments))

	return len(segments), nil
}

// Purge 清空项目的参考知识库
func (i *Ingestor) Purge(ctx context.Context, projectID string) error {
	if !i.Enabled() {
		return apperrors.New(apperrors.CodeServiceUnavailable, "reference knowledge base is not configured")
	}
	if err := i.vector.DropProjectSegments(ctx, projectID); err != nil {
		return apperrors.Wrap(err, apperrors.CodeVectorDBError, "failed to drop reference segments")
	}
	return nil
}
