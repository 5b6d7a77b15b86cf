package draft

import (
	"context"
	"strings"
	"time"

	"tender-draft-api/internal/domain/outline"
	"tender-draft-api/internal/infrastructure/genai"
	apperrors "tender-draft-api/pkg/errors"
	"tender-draft-api/pkg/logger"
	"tender-draft-api/pkg/metrics"
)

// GenerateChapter 为单个章节流式生成内容
// 组装祖先链、同级章节与参考资料上下文后调用生成后端，
// 完成时按章节 ID 回写内容
func (s *Service) GenerateChapter(ctx context.Context, projectID, chapterID string) (<-chan StreamEvent, error) {
	project, err := s.workspace.Project(ctx, projectID)
	if err != nil {
		return nil, err
	}

	// 上下文在快照上组装，避免读到流式写入中途的活动树
	doc, err := s.workspace.Snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}

	node := doc.FindByID(chapterID)
	if node == nil {
		return nil, apperrors.ErrChapterNotFound
	}

	ancestors, siblings := doc.ContextFor(chapterID)
	leaf := &outline.LeafContext{Node: node, Ancestors: ancestors, Siblings: siblings}

	var refContext string
	if s.retriever != nil && s.retriever.Enabled() {
		refContext = s.retriever.ContextFor(ctx, projectID, leaf)
	}

	stream, err := s.backend.StreamChapter(ctx, &genai.ChapterRequest{
		Chapter:          node.Summarize(),
		Ancestors:        ancestors,
		Siblings:         siblings,
		ProjectOverview:  project.Overview,
		ReferenceContext: refContext,
	})
	if err != nil {
		metrics.ChapterGenerationTotal.WithLabelValues("chapter", "error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeBackendError, "failed to start chapter generation")
	}

	return s.forwardChapterStream(ctx, projectID, chapterID, "chapter", stream), nil
}

// ExpandChapter 对已有章节内容流式扩写
// 扩写结果整体替换原内容
func (s *Service) ExpandChapter(ctx context.Context, projectID, chapterID, instruction string) (<-chan StreamEvent, error) {
	doc, err := s.workspace.Snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}

	node := doc.FindByID(chapterID)
	if node == nil {
		return nil, apperrors.ErrChapterNotFound
	}
	if strings.TrimSpace(node.Content) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "chapter has no content to expand")
	}

	stream, err := s.backend.StreamExpand(ctx, &genai.ExpandRequest{
		Content:     node.Content,
		Instruction: instruction,
	})
	if err != nil {
		metrics.ChapterGenerationTotal.WithLabelValues("expand", "error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeBackendError, "failed to start content expansion")
	}

	return s.forwardChapterStream(ctx, projectID, chapterID, "expand", stream), nil
}

// forwardChapterStream 将后端事件流转为编排层事件并在完成时回写内容
func (s *Service) forwardChapterStream(ctx context.Context, projectID, chapterID, kind string, stream *genai.Stream) <-chan StreamEvent {
	out := make(chan StreamEvent, 16)
	started := time.Now()

	go func() {
		defer close(out)

		// 消费方随请求断开而离开后，发送方不得阻塞在缓冲已满的通道上
		emit := func(ev StreamEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for ev := range stream.Events() {
			switch ev.Type {
			case genai.EventChunk:
				// 增量实时落入内存树，数据库回写留给终态事件
				s.workspace.ApplyContentTransient(projectID, chapterID, ev.Accumulated)
				if !emit(StreamEvent{Type: StreamChunk, ChapterID: chapterID, Delta: ev.Delta}) {
					return
				}

			case genai.EventComplete:
				replaced, aerr := s.workspace.ApplyContent(ctx, projectID, chapterID, ev.Accumulated)
				if aerr != nil {
					// 内存树已更新，内容不丢失；回写失败单独告警
					logger.Error(ctx, "failed to persist chapter content", aerr,
						"project_id", projectID,
						"chapter_id", chapterID)
				}
				if !replaced {
					logger.Warn(ctx, "generated content arrived after outline rebuild, discarded",
						"project_id", projectID,
						"chapter_id", chapterID)
				}

				metrics.ChapterGenerationTotal.WithLabelValues(kind, "ok").Inc()
				metrics.ChapterGenerationDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
				emit(StreamEvent{Type: StreamComplete, ChapterID: chapterID, Content: ev.Accumulated})
				return

			case genai.EventError:
				metrics.ChapterGenerationTotal.WithLabelValues(kind, "error").Inc()
				emit(StreamEvent{
					Type:      StreamError,
					ChapterID: chapterID,
					Err:       apperrors.Wrap(ev.Err, apperrors.CodeGenerationFailed, "chapter generation failed"),
				})
				return

			case genai.EventCancelled:
				return
			}
		}
	}()

	return out
}

// generateChapterBlocking 同步执行单章节生成，供批量调度使用
func (s *Service) generateChapterBlocking(ctx context.Context, projectID, chapterID string) error {
	events, err := s.GenerateChapter(ctx, projectID, chapterID)
	if err != nil {
		return err
	}

	for ev := range events {
		switch ev.Type {
		case StreamComplete:
			return nil
		case StreamError:
			return ev.Err
		}
	}

	// 通道在没有终态事件的情况下关闭，说明流被取消
	if err := ctx.Err(); err != nil {
		return err
	}
	return apperrors.New(apperrors.CodeStreamAborted, "generation stream aborted")
}
