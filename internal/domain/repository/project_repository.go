// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"tender-draft-api/internal/domain/entity"
)

// ProjectRepository 项目仓储接口
type ProjectRepository interface {
	// Create 创建项目
	Create(ctx context.Context, project *entity.Project) error

	// GetByID 根据 ID 获取项目；不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entity.Project, error)

	// Update 更新项目基础信息
	Update(ctx context.Context, project *entity.Project) error

	// UpdateOutline 替换项目的目录文档并递增版本号
	UpdateOutline(ctx context.Context, id string, outlineDoc string) error

	// Delete 删除项目
	Delete(ctx context.Context, id string) error

	// List 获取项目列表
	List(ctx context.Context, pagination Pagination) (*PagedResult[*entity.Project], error)
}
