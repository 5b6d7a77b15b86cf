package draft

import (
	"context"
	"time"

	"tender-draft-api/internal/domain/outline"
	"tender-draft-api/internal/infrastructure/genai"
	apperrors "tender-draft-api/pkg/errors"
	"tender-draft-api/pkg/logger"
	"tender-draft-api/pkg/metrics"
)

// OutlineOptions 目录生成选项
type OutlineOptions struct {
	// ReferenceOutline 参考目录文本，作为生成提示的一部分
	ReferenceOutline string
}

// GenerateOutline 为项目流式生成目录树
// 后端输出整树 JSON，完成后替换项目的目录并回写；旧目录与内容随之废弃
func (s *Service) GenerateOutline(ctx context.Context, projectID string, opts OutlineOptions) (<-chan StreamEvent, error) {
	project, err := s.workspace.Project(ctx, projectID)
	if err != nil {
		return nil, err
	}

	stream, err := s.backend.StreamOutline(ctx, &genai.OutlineRequest{
		Overview:              project.Overview,
		TechnicalRequirements: project.TechnicalRequirements,
		ProjectType:           string(project.ProjectType),
		ReferenceOutline:      opts.ReferenceOutline,
	})
	if err != nil {
		metrics.ChapterGenerationTotal.WithLabelValues("outline", "error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeBackendError, "failed to start outline generation")
	}

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
				if !emit(StreamEvent{Type: StreamChunk, Delta: ev.Delta}) {
					return
				}

			case genai.EventComplete:
				doc, perr := outline.ParseDocument(ev.Accumulated)
				if perr != nil {
					metrics.ChapterGenerationTotal.WithLabelValues("outline", "error").Inc()
					emit(StreamEvent{
						Type: StreamError,
						Err:  apperrors.Wrap(perr, apperrors.CodeOutlineParse, "outline document parse failed"),
					})
					return
				}

				if serr := s.workspace.SetOutline(ctx, projectID, doc); serr != nil {
					// 内存树已替换，生成结果不丢失；回写失败单独告警
					logger.Error(ctx, "failed to persist generated outline", serr,
						"project_id", projectID)
				}

				metrics.ChapterGenerationTotal.WithLabelValues("outline", "ok").Inc()
				metrics.ChapterGenerationDuration.WithLabelValues("outline").Observe(time.Since(started).Seconds())
				emit(StreamEvent{Type: StreamComplete, Content: ev.Accumulated, Outline: doc})
				return

			case genai.EventError:
				metrics.ChapterGenerationTotal.WithLabelValues("outline", "error").Inc()
				emit(StreamEvent{
					Type: StreamError,
					Err:  apperrors.Wrap(ev.Err, apperrors.CodeGenerationFailed, "outline generation failed"),
				})
				return

			case genai.EventCancelled:
				// 取消不产生终态事件，通道关闭即为结束
				return
			}
		}
	}()

	return out, nil
}
