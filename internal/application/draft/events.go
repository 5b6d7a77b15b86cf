package draft

import "tender-draft-api/internal/domain/outline"

// StreamEventType 编排层流事件类型
type StreamEventType string

const (
	// StreamChunk 一条内容增量
	StreamChunk StreamEventType = "chunk"
	// StreamComplete 生成成功结束
	StreamComplete StreamEventType = "complete"
	// StreamError 生成失败结束
	StreamError StreamEventType = "error"
)

// StreamEvent 向接口层转发的生成事件
// 每个流以恰好一条 Complete 或 Error 收尾；调用方取消时通道直接关闭
type StreamEvent struct {
	Type      StreamEventType
	ChapterID string
	// Delta 本条增量文本（仅 Chunk）
	Delta string
	// Content 最终全文（仅 Complete）
	Content string
	// Outline 解析后的目录树（仅目录生成的 Complete）
	Outline *outline.Document
	// Err 失败原因（仅 Error）
	Err error
}
