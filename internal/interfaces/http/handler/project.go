package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"tender-draft-api/internal/domain/entity"
	"tender-draft-api/internal/domain/repository"
	"tender-draft-api/internal/interfaces/http/dto"
	apperrors "tender-draft-api/pkg/errors"
	"tender-draft-api/pkg/logger"
)

// ProjectHandler 项目管理处理器
type ProjectHandler struct {
	projects repository.ProjectRepository
	tx       repository.Transactor
}

// NewProjectHandler 创建项目管理处理器
func NewProjectHandler(projects repository.ProjectRepository, tx repository.Transactor) *ProjectHandler {
	return &ProjectHandler{projects: projects, tx: tx}
}

// CreateProject 创建项目
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	project := entity.NewProject(req.Name, req.Overview, req.TechnicalRequirements,
		entity.ProjectType(req.ProjectType))

	if err := h.projects.Create(c.Request.Context(), project); err != nil {
		logger.Error(c.Request.Context(), "failed to create project", err)
		dto.AppError(c, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create project"))
		return
	}

	dto.Created(c, dto.ToProjectResponse(project))
}

// GetProject 获取项目
func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, ok := h.loadProject(c)
	if !ok {
		return
	}
	dto.Success(c, dto.ToProjectResponse(project))
}

// UpdateProject 更新项目基础信息
// 读取与写入在同一事务中完成，避免并发更新互相覆盖
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	var req dto.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	var project *entity.Project
	err := h.tx.WithTransaction(c.Request.Context(), func(txCtx context.Context) error {
		var err error
		project, err = h.projects.GetByID(txCtx, c.Param("pid"))
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load project")
		}
		if project == nil {
			return apperrors.ErrProjectNotFound
		}

		if req.Name != nil {
			project.Name = *req.Name
		}
		if req.Overview != nil {
			project.Overview = *req.Overview
		}
		if req.TechnicalRequirements != nil {
			project.TechnicalRequirements = *req.TechnicalRequirements
		}
		if req.ProjectType != nil {
			project.ProjectType = entity.ProjectType(*req.ProjectType)
		}

		if err := h.projects.Update(txCtx, project); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to update project")
		}
		return nil
	})
	if err != nil {
		logger.Error(c.Request.Context(), "failed to update project", err)
		dto.AppError(c, err)
		return
	}

	dto.Success(c, dto.ToProjectResponse(project))
}

// DeleteProject 删除项目
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	projectID := c.Param("pid")
	if err := h.projects.Delete(c.Request.Context(), projectID); err != nil {
		logger.Error(c.Request.Context(), "failed to delete project", err)
		dto.AppError(c, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to delete project"))
		return
	}
	dto.NoContent(c)
}

// ListProjects 项目列表
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	result, err := h.projects.List(c.Request.Context(), repository.NewPagination(page, pageSize))
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list projects", err)
		dto.AppError(c, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list projects"))
		return
	}

	items := make([]*dto.ProjectResponse, 0, len(result.Items))
	for _, p := range result.Items {
		items = append(items, dto.ToProjectResponse(p))
	}

	dto.SuccessWithPage(c, items, dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// loadProject 加载路径参数指定的项目，失败时写出错误响应
func (h *ProjectHandler) loadProject(c *gin.Context) (*entity.Project, bool) {
	projectID := c.Param("pid")

	project, err := h.projects.GetByID(c.Request.Context(), projectID)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to load project", err, "project_id", projectID)
		dto.AppError(c, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load project"))
		return nil, false
	}
	if project == nil {
		dto.AppError(c, apperrors.ErrProjectNotFound)
		return nil, false
	}
	return project, true
}
