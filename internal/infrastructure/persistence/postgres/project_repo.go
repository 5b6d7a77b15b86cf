// Package postgres 提供 PostgreSQL 数据库访问层实现
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tender-draft-api/internal/domain/entity"
	"tender-draft-api/internal/domain/repository"
)

// projectRepository 项目仓储的 PostgreSQL 实现
type projectRepository struct {
	client *Client
}

// NewProjectRepository 创建项目仓储
func NewProjectRepository(client *Client) repository.ProjectRepository {
	return &projectRepository{client: client}
}

// Create 创建项目
func (r *projectRepository) Create(ctx context.Context, project *entity.Project) error {
	ctx, span := tracer.Start(ctx, "ProjectRepository.Create",
		trace.WithAttributes(attribute.String("project.name", project.Name)))
	defer span.End()

	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	query := `
		INSERT INTO projects (id, name, overview, technical_requirements, project_type, outline_doc, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	q := getQuerier(ctx, r.client.sqlDB)
	_, err := q.ExecContext(ctx, query,
		project.ID, project.Name, project.Overview, project.TechnicalRequirements,
		string(project.ProjectType), project.OutlineDoc, project.Version,
		project.CreatedAt, project.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取项目；不存在时返回 nil, nil
func (r *projectRepository) GetByID(ctx context.Context, id string) (*entity.Project, error) {
	ctx, span := tracer.Start(ctx, "ProjectRepository.GetByID",
		trace.WithAttributes(attribute.String("project.id", id)))
	defer span.End()

	query := `
		SELECT id, name, overview, technical_requirements, project_type, outline_doc, version, created_at, updated_at
		FROM projects
		WHERE id = $1`

	q := getQuerier(ctx, r.client.sqlDB)
	project, err := scanProject(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// Update 更新项目基础信息
func (r *projectRepository) Update(ctx context.Context, project *entity.Project) error {
	ctx, span := tracer.Start(ctx, "ProjectRepository.Update",
		trace.WithAttributes(attribute.String("project.id", project.ID)))
	defer span.End()

	project.UpdatedAt = time.Now()

	query := `
		UPDATE projects
		SET name = $2, overview = $3, technical_requirements = $4, project_type = $5, updated_at = $6
		WHERE id = $1`

	q := getQuerier(ctx, r.client.sqlDB)
	result, err := q.ExecContext(ctx, query,
		project.ID, project.Name, project.Overview, project.TechnicalRequirements,
		string(project.ProjectType), project.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update project: %w", err)
	}
	return checkAffected(result)
}

// UpdateOutline 替换项目的目录文档并递增版本号
func (r *projectRepository) UpdateOutline(ctx context.Context, id string, outlineDoc string) error {
	ctx, span := tracer.Start(ctx, "ProjectRepository.UpdateOutline",
		trace.WithAttributes(attribute.String("project.id", id)))
	defer span.End()

	query := `
		UPDATE projects
		SET outline_doc = $2, version = version + 1, updated_at = $3
		WHERE id = $1`

	q := getQuerier(ctx, r.client.sqlDB)
	result, err := q.ExecContext(ctx, query, id, outlineDoc, time.Now())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update outline: %w", err)
	}
	return checkAffected(result)
}

// Delete 删除项目
func (r *projectRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "ProjectRepository.Delete",
		trace.WithAttributes(attribute.String("project.id", id)))
	defer span.End()

	query := `DELETE FROM projects WHERE id = $1`

	q := getQuerier(ctx, r.client.sqlDB)
	result, err := q.ExecContext(ctx, query, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return checkAffected(result)
}

// List 获取项目列表
func (r *projectRepository) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Project], error) {
	ctx, span := tracer.Start(ctx, "ProjectRepository.List")
	defer span.End()

	q := getQuerier(ctx, r.client.sqlDB)

	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&total); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}

	query := `
		SELECT id, name, overview, technical_requirements, project_type, outline_doc, version, created_at, updated_at
		FROM projects
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := q.QueryContext(ctx, query, pagination.Limit(), pagination.Offset())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]*entity.Project, 0, pagination.Limit())
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}

	return repository.NewPagedResult(projects, total, pagination), nil
}

// rowScanner 统一 sql.Row 与 sql.Rows 的扫描入口
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanProject 扫描一行项目记录
func scanProject(row rowScanner) (*entity.Project, error) {
	var (
		project     entity.Project
		projectType string
		outlineDoc  sql.NullString
	)
	err := row.Scan(
		&project.ID, &project.Name, &project.Overview, &project.TechnicalRequirements,
		&projectType, &outlineDoc, &project.Version,
		&project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return nil, err
	}
	project.ProjectType = entity.ProjectType(projectType)
	project.OutlineDoc = outlineDoc.String
	return &project, nil
}

// checkAffected 校验更新影响的行数
func checkAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
