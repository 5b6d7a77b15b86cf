// Package draft 提供标书内容生成的编排服务
package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"tender-draft-api/internal/domain/entity"
	"tender-draft-api/internal/domain/outline"
	"tender-draft-api/internal/domain/repository"
	"tender-draft-api/internal/infrastructure/persistence/redis"
	apperrors "tender-draft-api/pkg/errors"
	"tender-draft-api/pkg/logger"
)

const projectCacheTTL = 10 * time.Minute

// Workspace 项目目录树的内存工作区
// 生成期间目录树在内存中演进，终态事件触发回写数据库并失效缓存
type Workspace struct {
	projects repository.ProjectRepository
	cache    *redis.Cache

	mu   sync.Mutex
	docs map[string]*outline.Document
}

// NewWorkspace 创建工作区；cache 可为 nil
func NewWorkspace(projects repository.ProjectRepository, cache *redis.Cache) *Workspace {
	return &Workspace{
		projects: projects,
		cache:    cache,
		docs:     make(map[string]*outline.Document),
	}
}

// Project 获取项目，优先走缓存
func (w *Workspace) Project(ctx context.Context, projectID string) (*entity.Project, error) {
	if w.cache != nil {
		data, err := w.cache.GetOrLoad(ctx, redis.ProjectKey(projectID), projectCacheTTL, func() (interface{}, error) {
			return w.loadProject(ctx, projectID)
		})
		if err == nil {
			var project entity.Project
			if uerr := json.Unmarshal(data, &project); uerr == nil {
				return &project, nil
			}
		}
		// 回源产生的业务错误直接向上抛；缓存自身的故障才降级
		if appErr, ok := err.(*apperrors.AppError); ok && appErr.Code != apperrors.CodeCacheError {
			return nil, appErr
		}
		logger.Warn(ctx, "project cache degraded, reading from database",
			"project_id", projectID)
	}
	return w.loadProject(ctx, projectID)
}

func (w *Workspace) loadProject(ctx context.Context, projectID string) (*entity.Project, error) {
	project, err := w.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load project")
	}
	if project == nil {
		return nil, apperrors.ErrProjectNotFound
	}
	return project, nil
}

// ensureLoaded 确保项目的目录树已加载进工作区并返回活动树
// 活动树只能在持有 w.mu 时读写，绝不交给工作区之外的调用方
func (w *Workspace) ensureLoaded(ctx context.Context, projectID string) (*outline.Document, error) {
	w.mu.Lock()
	if doc, ok := w.docs[projectID]; ok {
		w.mu.Unlock()
		return doc, nil
	}
	w.mu.Unlock()

	project, err := w.Project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !project.HasOutline() {
		return nil, apperrors.ErrOutlineNotFound
	}

	var doc outline.Document
	if err := json.Unmarshal([]byte(project.OutlineDoc), &doc); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeOutlineParse, "stored outline document is corrupt")
	}

	w.mu.Lock()
	// 并发加载时保留先到者，保证同一项目只有一棵活动树
	if existing, ok := w.docs[projectID]; ok {
		w.mu.Unlock()
		return existing, nil
	}
	w.docs[projectID] = &doc
	w.mu.Unlock()
	return &doc, nil
}

// Snapshot 返回目录树的深拷贝，所有树的读取都经由此处
// 拷贝在锁内完成，调用方拿到的树与并发写入完全隔离
func (w *Workspace) Snapshot(ctx context.Context, projectID string) (*outline.Document, error) {
	if _, err := w.ensureLoaded(ctx, projectID); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	doc, ok := w.docs[projectID]
	if !ok {
		// 加载后立即被 Evict 的竞争窗口
		return nil, apperrors.ErrOutlineNotFound
	}
	return doc.Clone(), nil
}

// SetOutline 用新目录树整树替换工作区并回写数据库
// 旧树的全部内容随之废弃
func (w *Workspace) SetOutline(ctx context.Context, projectID string, doc *outline.Document) error {
	if doc == nil {
		return fmt.Errorf("outline document is nil")
	}

	w.mu.Lock()
	w.docs[projectID] = doc
	data, err := json.Marshal(doc)
	w.mu.Unlock()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternalError, "failed to serialize outline")
	}

	return w.persist(ctx, projectID, string(data))
}

// ApplyContent 替换指定章节的内容并回写
// 章节不存在（目录已重建）时静默吸收，返回 false 且不回写
func (w *Workspace) ApplyContent(ctx context.Context, projectID, chapterID, content string) (bool, error) {
	if _, err := w.ensureLoaded(ctx, projectID); err != nil {
		return false, err
	}

	w.mu.Lock()
	doc, ok := w.docs[projectID]
	if !ok {
		w.mu.Unlock()
		return false, nil
	}
	replaced := doc.ReplaceContent(chapterID, content)
	if !replaced {
		w.mu.Unlock()
		logger.Warn(ctx, "content update for unknown chapter absorbed",
			"project_id", projectID,
			"chapter_id", chapterID)
		return false, nil
	}
	data, err := json.Marshal(doc)
	w.mu.Unlock()
	if err != nil {
		return true, apperrors.Wrap(err, apperrors.CodeInternalError, "failed to serialize outline")
	}

	if err := w.persist(ctx, projectID, string(data)); err != nil {
		return true, err
	}
	return true, nil
}

// ApplyContentTransient 仅更新内存树，不回写数据库
// 生成中的增量经由此路径落树，持久化留给终态事件；
// 树未加载或章节已不存在时为无害的空操作
func (w *Workspace) ApplyContentTransient(projectID, chapterID, content string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	doc, ok := w.docs[projectID]
	if !ok {
		return false
	}
	return doc.ReplaceContent(chapterID, content)
}

// Evict 丢弃项目的内存树，下次访问时重新从数据库加载
func (w *Workspace) Evict(projectID string) {
	w.mu.Lock()
	delete(w.docs, projectID)
	w.mu.Unlock()
}

func (w *Workspace) persist(ctx context.Context, projectID, outlineDoc string) error {
	if err := w.projects.UpdateOutline(ctx, projectID, outlineDoc); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to persist outline")
	}
	if w.cache != nil {
		if err := w.cache.InvalidateProject(ctx, projectID); err != nil {
			logger.Warn(ctx, "failed to invalidate project cache",
				"project_id", projectID,
				"error", err.Error())
		}
	}
	return nil
}
