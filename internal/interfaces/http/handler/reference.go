package handler

import (
	"github.com/gin-gonic/gin"

	"tender-draft-api/internal/application/knowledge"
	"tender-draft-api/internal/interfaces/http/dto"
	apperrors "tender-draft-api/pkg/errors"
	"tender-draft-api/pkg/logger"
)

// ReferenceHandler 参考标书知识库处理器
type ReferenceHandler struct {
	ingestor *knowledge.Ingestor
}

// NewReferenceHandler 创建参考标书知识库处理器
func NewReferenceHandler(ingestor *knowledge.Ingestor) *ReferenceHandler {
	return &ReferenceHandler{ingestor: ingestor}
}

// IngestReference 导入参考标书全文
func (h *ReferenceHandler) IngestReference(c *gin.Context) {
	if h.ingestor == nil || !h.ingestor.Enabled() {
		dto.AppError(c, apperrors.New(apperrors.CodeServiceUnavailable, "reference knowledge base is not configured"))
		return
	}

	var req dto.IngestReferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	projectID := c.Param("pid")
	ctx := logger.WithContext(c.Request.Context(), logger.ProjectIDKey, projectID)

	count, err := h.ingestor.Ingest(ctx, projectID, req.Source, req.Text)
	if err != nil {
		logger.Error(ctx, "failed to ingest reference document", err)
		dto.AppError(c, err)
		return
	}

	dto.Created(c, dto.IngestReferenceResponse{SegmentCount: count})
}

// PurgeReferences 清空项目的参考知识库
func (h *ReferenceHandler) PurgeReferences(c *gin.Context) {
	if h.ingestor == nil || !h.ingestor.Enabled() {
		dto.AppError(c, apperrors.New(apperrors.CodeServiceUnavailable, "reference knowledge base is not configured"))
		return
	}

	projectID := c.Param("pid")
	if err := h.ingestor.Purge(c.Request.Context(), projectID); err != nil {
		logger.Error(c.Request.Context(), "failed to purge references", err, "project_id", projectID)
		dto.AppError(c, err)
		return
	}

	dto.NoContent(c)
}
