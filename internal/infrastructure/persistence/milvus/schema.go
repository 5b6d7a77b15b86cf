// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionReferenceSegments 参考标书片段集合
	CollectionReferenceSegments = "reference_segments"
)

// ReferenceSegmentsSchema 参考标书片段 Collection Schema
// 维度由 embedding 配置决定，建表时传入
func ReferenceSegmentsSchema(dimension int) *entity.Schema {
	if dimension <= 0 {
		dimension = 1024
	}
	dim := strconv.Itoa(dimension)
	return &entity.Schema{
		CollectionName: CollectionReferenceSegments,
		Description:    "Reference bid document segments for semantic search",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": dim,
				},
			},
			{
				Name:     "project_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "source",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "256",
				},
			},
			{
				Name:     "chunk_index",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "text_content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
		},
	}
}

// ReferenceSegment 参考标书片段数据结构
type ReferenceSegment struct {
	ID          string    `json:"id"`
	Vector      []float32 `json:"vector"`
	ProjectID   string    `json:"project_id"`
	Source      string    `json:"source"`
	ChunkIndex  int64     `json:"chunk_index"`
	TextContent string    `json:"text_content"`
}

// PartitionName 生成项目分区名称
func PartitionName(projectID string) string {
	return "proj_" + projectID
}
