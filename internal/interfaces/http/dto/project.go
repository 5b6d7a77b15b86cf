package dto

import (
	"time"

	"tender-draft-api/internal/domain/entity"
)

// CreateProjectRequest 创建项目请求
type CreateProjectRequest struct {
	Name                  string `json:"name" binding:"required,max=256"`
	Overview              string `json:"overview" binding:"required"`
	TechnicalRequirements string `json:"technical_requirements"`
	ProjectType           string `json:"project_type" binding:"omitempty,oneof=engineering service goods general"`
}

// UpdateProjectRequest 更新项目请求
type UpdateProjectRequest struct {
	Name                  *string `json:"name" binding:"omitempty,max=256"`
	Overview              *string `json:"overview"`
	TechnicalRequirements *string `json:"technical_requirements"`
	ProjectType           *string `json:"project_type" binding:"omitempty,oneof=engineering service goods general"`
}

// ProjectResponse 项目响应
type ProjectResponse struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	Overview              string    `json:"overview"`
	TechnicalRequirements string    `json:"technical_requirements"`
	ProjectType           string    `json:"project_type"`
	HasOutline            bool      `json:"has_outline"`
	Version               int       `json:"version"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// ToProjectResponse 实体转响应
func ToProjectResponse(p *entity.Project) *ProjectResponse {
	return &ProjectResponse{
		ID:                    p.ID,
		Name:                  p.Name,
		Overview:              p.Overview,
		TechnicalRequirements: p.TechnicalRequirements,
		ProjectType:           string(p.ProjectType),
		HasOutline:            p.HasOutline(),
		Version:               p.Version,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}
