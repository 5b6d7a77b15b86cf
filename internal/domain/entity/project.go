// Package entity 定义领域实体
package entity

import (
	"time"
)

// ProjectType 项目类型，影响目录生成的行业侧重
type ProjectType string

const (
	ProjectTypeEngineering ProjectType = "engineering"
	ProjectTypeService     ProjectType = "service"
	ProjectTypeGoods       ProjectType = "goods"
	ProjectTypeGeneral     ProjectType = "general"
)

// Valid 检查项目类型是否合法
func (t ProjectType) Valid() bool {
	switch t {
	case ProjectTypeEngineering, ProjectTypeService, ProjectTypeGoods, ProjectTypeGeneral:
		return true
	}
	return false
}

// Project 标书项目实体
// OutlineDoc 持有整棵目录树的 JSON 文档，内存中的树在终态事件时回写
type Project struct {
	ID                    string      `json:"id"`
	Name                  string      `json:"name"`
	Overview              string      `json:"overview"`
	TechnicalRequirements string      `json:"technical_requirements"`
	ProjectType           ProjectType `json:"project_type"`
	OutlineDoc            string      `json:"outline_doc,omitempty"`
	Version               int         `json:"version"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// NewProject 创建新项目
func NewProject(name, overview, requirements string, projectType ProjectType) *Project {
	if !projectType.Valid() {
		projectType = ProjectTypeGeneral
	}
	now := time.Now()
	return &Project{
		Name:                  name,
		Overview:              overview,
		TechnicalRequirements: requirements,
		ProjectType:           projectType,
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// SetOutline 替换项目的目录文档
func (p *Project) SetOutline(doc string) {
	p.OutlineDoc = doc
	p.Version++
	p.UpdatedAt = time.Now()
}

// HasOutline 检查项目是否已有目录
func (p *Project) HasOutline() bool {
	return p.OutlineDoc != ""
}
