package handler

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"

	"tender-draft-api/internal/application/draft"
	"tender-draft-api/internal/domain/outline"
	"tender-draft-api/internal/interfaces/http/dto"
	apperrors "tender-draft-api/pkg/errors"
	"tender-draft-api/pkg/logger"
)

// DraftHandler 标书生成处理器
type DraftHandler struct {
	service *draft.Service
}

// NewDraftHandler 创建标书生成处理器
func NewDraftHandler(service *draft.Service) *DraftHandler {
	return &DraftHandler{service: service}
}

// GetOutline 获取项目目录树
func (h *DraftHandler) GetOutline(c *gin.Context) {
	snapshot, err := h.service.Workspace().Snapshot(h.requestContext(c), c.Param("pid"))
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.OutlineResponse{Outline: snapshot.Outline})
}

// UpdateOutline 手动整树替换项目目录
// 旧树的全部章节内容随之废弃
func (h *DraftHandler) UpdateOutline(c *gin.Context) {
	var req dto.UpdateOutlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	ctx := h.requestContext(c)
	projectID := c.Param("pid")

	if _, err := h.service.Workspace().Project(ctx, projectID); err != nil {
		dto.AppError(c, err)
		return
	}

	doc := &outline.Document{Outline: req.Outline}
	if err := h.service.Workspace().SetOutline(ctx, projectID, doc); err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.OutlineResponse{Outline: doc.Outline})
}

// GenerateOutline 流式生成项目目录
func (h *DraftHandler) GenerateOutline(c *gin.Context) {
	var req dto.GenerateOutlineRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			dto.BadRequest(c, err.Error())
			return
		}
	}

	events, err := h.service.GenerateOutline(h.requestContext(c), c.Param("pid"), draft.OutlineOptions{
		ReferenceOutline: req.ReferenceOutline,
	})
	if err != nil {
		dto.AppError(c, err)
		return
	}

	h.streamEvents(c, events)
}

// GenerateChapter 流式生成单章节内容
func (h *DraftHandler) GenerateChapter(c *gin.Context) {
	events, err := h.service.GenerateChapter(h.requestContext(c), c.Param("pid"), c.Param("cid"))
	if err != nil {
		dto.AppError(c, err)
		return
	}

	h.streamEvents(c, events)
}

// ExpandChapter 流式扩写章节内容
func (h *DraftHandler) ExpandChapter(c *gin.Context) {
	var req dto.ExpandChapterRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			dto.BadRequest(c, err.Error())
			return
		}
	}

	events, err := h.service.ExpandChapter(h.requestContext(c), c.Param("pid"), c.Param("cid"), req.Instruction)
	if err != nil {
		dto.AppError(c, err)
		return
	}

	h.streamEvents(c, events)
}

// UpdateContent 手动更新章节内容
func (h *DraftHandler) UpdateContent(c *gin.Context) {
	var req dto.UpdateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	chapterID := c.Param("cid")
	replaced, err := h.service.Workspace().ApplyContent(h.requestContext(c), c.Param("pid"), chapterID, req.Content)
	if err != nil {
		dto.AppError(c, err)
		return
	}

	dto.Success(c, dto.UpdateContentResponse{ChapterID: chapterID, Replaced: replaced})
}

// GenerateBatch 批量生成缺内容的章节，进度通过 SSE 推送
func (h *DraftHandler) GenerateBatch(c *gin.Context) {
	var req dto.BatchGenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			dto.BadRequest(c, err.Error())
			return
		}
	}

	ctx := h.requestContext(c)

	progressCh := make(chan draft.BatchProgress, 16)
	outcomeCh := make(chan batchOutcome, 1)

	go func() {
		defer close(progressCh)
		result, err := h.service.GenerateBatch(ctx, c.Param("pid"), draft.BatchOptions{Force: req.Force},
			func(p draft.BatchProgress) {
				select {
				case progressCh <- p:
				case <-ctx.Done():
				}
			})
		outcomeCh <- batchOutcome{result: result, err: err}
	}()

	// 队列为空等启动期错误在第一个进度事件之前就能拿到
	select {
	case p, ok := <-progressCh:
		if !ok {
			outcome := <-outcomeCh
			if outcome.err != nil {
				dto.AppError(c, outcome.err)
				return
			}
			dto.Success(c, outcome.result)
			return
		}
		h.streamBatch(c, p, progressCh, outcomeCh)
	case <-ctx.Done():
		return
	}
}

type batchOutcome struct {
	result *draft.BatchResult
	err    error
}

// streamBatch 推送批量进度与最终汇总
func (h *DraftHandler) streamBatch(c *gin.Context, first draft.BatchProgress, progressCh <-chan draft.BatchProgress, outcomeCh <-chan batchOutcome) {
	setSSEHeaders(c)
	c.SSEvent("progress", first)

	c.Stream(func(w io.Writer) bool {
		select {
		case p, ok := <-progressCh:
			if !ok {
				outcome := <-outcomeCh
				if outcome.err != nil {
					c.SSEvent("error", gin.H{"message": apperrors.AsAppError(outcome.err).Message})
				} else {
					c.SSEvent("result", outcome.result)
				}
				return false
			}
			c.SSEvent("progress", p)
			return true

		case <-c.Request.Context().Done():
			return false
		}
	})
}

// streamEvents 将编排层事件流写为 SSE
// 客户端断开时停止写出，底层生成随请求 context 一起取消
func (h *DraftHandler) streamEvents(c *gin.Context, events <-chan draft.StreamEvent) {
	setSSEHeaders(c)

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			switch ev.Type {
			case draft.StreamChunk:
				c.SSEvent("chunk", gin.H{"chunk": ev.Delta})
				return true
			case draft.StreamComplete:
				payload := gin.H{"content": ev.Content}
				if ev.Outline != nil {
					payload["outline"] = ev.Outline.Outline
				}
				if ev.ChapterID != "" {
					payload["chapter_id"] = ev.ChapterID
				}
				c.SSEvent("complete", payload)
				return false
			case draft.StreamError:
				c.SSEvent("error", gin.H{"message": apperrors.AsAppError(ev.Err).Message})
				return false
			}
			return true

		case <-c.Request.Context().Done():
			return false
		}
	})
}

// requestContext 注入项目与章节标识到日志上下文
func (h *DraftHandler) requestContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if pid := c.Param("pid"); pid != "" {
		ctx = logger.WithContext(ctx, logger.ProjectIDKey, pid)
	}
	if cid := c.Param("cid"); cid != "" {
		ctx = logger.WithContext(ctx, logger.ChapterIDKey, cid)
	}
	return ctx
}

func setSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}
