package dto

import (
	"tender-draft-api/internal/domain/outline"
)

// GenerateOutlineRequest 目录生成请求
type GenerateOutlineRequest struct {
	// ReferenceOutline 参考目录文本，可选
	ReferenceOutline string `json:"reference_outline"`
}

// ExpandChapterRequest 章节扩写请求
type ExpandChapterRequest struct {
	Instruction string `json:"instruction"`
}

// UpdateOutlineRequest 目录树整树手动更新请求
type UpdateOutlineRequest struct {
	Outline []*outline.Node `json:"outline" binding:"required"`
}

// UpdateContentRequest 章节内容手动更新请求
type UpdateContentRequest struct {
	Content string `json:"content" binding:"required"`
}

// UpdateContentResponse 章节内容更新结果
type UpdateContentResponse struct {
	ChapterID string `json:"chapter_id"`
	Replaced  bool   `json:"replaced"`
}

// BatchGenerateRequest 批量生成请求
type BatchGenerateRequest struct {
	// Force 为 true 时重新生成所有叶子章节
	Force bool `json:"force"`
}

// OutlineResponse 目录树响应
type OutlineResponse struct {
	Outline []*outline.Node `json:"outline"`
}

// IngestReferenceRequest 参考标书入库请求
type IngestReferenceRequest struct {
	Source string `json:"source" binding:"max=256"`
	Text   string `json:"text" binding:"required"`
}

// IngestReferenceResponse 参考标书入库结果
type IngestReferenceResponse struct {
	SegmentCount int `json:"segment_count"`
}
