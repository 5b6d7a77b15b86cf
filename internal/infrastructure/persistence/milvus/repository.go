// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Repository 参考标书片段的向量检索仓储
type Repository struct {
	client    *Client
	dimension int
}

// NewRepository 创建向量检索仓储
func NewRepository(client *Client, dimension int) *Repository {
	return &Repository{client: client, dimension: dimension}
}

// SearchParams 检索参数
type SearchParams struct {
	ProjectID   string
	QueryVector []float32
	TopK        int
}

// SearchResult 检索结果
type SearchResult struct {
	ID          string
	Score       float32
	Source      string
	TextContent string
}

// EnsureCollection 确保集合、索引存在并已加载
func (r *Repository) EnsureCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.EnsureCollection")
	defer span.End()

	collName := r.client.CollectionName(CollectionReferenceSegments)

	has, err := r.client.milvus.HasCollection(ctx, collName)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if !has {
		schema := ReferenceSegmentsSchema(r.dimension)
		schema.CollectionName = collName

		if err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx, err := entity.NewIndexHNSW(
			entity.COSINE,
			r.client.config.HNSWM,
			r.client.config.HNSWEfConstruction,
		)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to build index: %w", err)
		}

		if err := r.client.milvus.CreateIndex(ctx, collName, "vector", idx, false); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := r.client.milvus.LoadCollection(ctx, collName, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to load collection: %w", err)
	}

	return nil
}

// InsertSegments 写入参考标书片段
func (r *Repository) InsertSegments(ctx context.Context, projectID string, segments []*ReferenceSegment) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	if len(segments) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "milvus.InsertSegments",
		trace.WithAttributes(
			attribute.String("project_id", projectID),
			attribute.Int("segment_count", len(segments)),
		))
	defer span.End()

	collName := r.client.CollectionName(CollectionReferenceSegments)
	partitionName := PartitionName(projectID)

	has, err := r.client.milvus.HasPartition(ctx, collName, partitionName)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check partition: %w", err)
	}
	if !has {
		if err := r.client.milvus.CreatePartition(ctx, collName, partitionName); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create partition: %w", err)
		}
	}

	ids := make([]string, 0, len(segments))
	vectors := make([][]float32, 0, len(segments))
	projectIDs := make([]string, 0, len(segments))
	sources := make([]string, 0, len(segments))
	chunkIndexes := make([]int64, 0, len(segments))
	texts := make([]string, 0, len(segments))

	for _, seg := range segments {
		ids = append(ids, seg.ID)
		vectors = append(vectors, seg.Vector)
		projectIDs = append(projectIDs, projectID)
		sources = append(sources, seg.Source)
		chunkIndexes = append(chunkIndexes, seg.ChunkIndex)
		texts = append(texts, seg.TextContent)
	}

	dim := r.dimension
	if dim <= 0 {
		dim = 1024
	}

	_, err = r.client.milvus.Insert(ctx, collName, partitionName,
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnFloatVector("vector", dim, vectors),
		entity.NewColumnVarChar("project_id", projectIDs),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnInt64("chunk_index", chunkIndexes),
		entity.NewColumnVarChar("text_content", texts),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert segments: %w", err)
	}

	return nil
}

// SearchSegments 检索参考标书片段
func (r *Repository) SearchSegments(ctx context.Context, params *SearchParams) ([]*SearchResult, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.SearchSegments",
		trace.WithAttributes(
			attribute.String("project_id", params.ProjectID),
			attribute.Int("top_k", params.TopK),
		))
	defer span.End()

	collName := r.client.CollectionName(CollectionReferenceSegments)
	partitionName := PartitionName(params.ProjectID)

	// 分区尚未创建（项目没有导入参考标书）时直接返回空结果
	if has, err := r.client.milvus.HasPartition(ctx, collName, partitionName); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to check partition: %w", err)
	} else if !has {
		return []*SearchResult{}, nil
	}

	filter := fmt.Sprintf(`project_id == "%s"`, params.ProjectID)

	sp, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := r.client.milvus.Search(ctx,
		collName,
		[]string{partitionName},
		filter,
		[]string{"id", "source", "text_content"},
		[]entity.Vector{entity.FloatVector(params.QueryVector)},
		"vector",
		entity.COSINE,
		params.TopK,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var searchResults []*SearchResult
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			sr := &SearchResult{
				Score: result.Scores[i],
			}

			if idCol, ok := result.Fields.GetColumn("id").(*entity.ColumnVarChar); ok {
				sr.ID = idCol.Data()[i]
			}
			if srcCol, ok := result.Fields.GetColumn("source").(*entity.ColumnVarChar); ok {
				sr.Source = srcCol.Data()[i]
			}
			if textCol, ok := result.Fields.GetColumn("text_content").(*entity.ColumnVarChar); ok {
				sr.TextContent = textCol.Data()[i]
			}

			searchResults = append(searchResults, sr)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(searchResults)))
	return searchResults, nil
}

// DropProjectSegments 删除项目的全部参考标书片段
func (r *Repository) DropProjectSegments(ctx context.Context, projectID string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.DropProjectSegments",
		trace.WithAttributes(attribute.String("project_id", projectID)))
	defer span.End()

	collName := r.client.CollectionName(CollectionReferenceSegments)
	partitionName := PartitionName(projectID)

	has, err := r.client.milvus.HasPartition(ctx, collName, partitionName)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check partition: %w", err)
	}
	if !has {
		return nil
	}

	if err := r.client.milvus.DropPartition(ctx, collName, partitionName); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to drop partition: %w", err)
	}
	return nil
}
