package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tender-draft-api/internal/config"
	"tender-draft-api/internal/domain/entity"
	"tender-draft-api/internal/domain/outline"
	"tender-draft-api/internal/domain/repository"
	apperrors "tender-draft-api/pkg/errors"
)

type fakeProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*entity.Project
}

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{projects: make(map[string]*entity.Project)}
}

func (r *fakeProjectRepo) Create(ctx context.Context, project *entity.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[project.ID] = project
	return nil
}

func (r *fakeProjectRepo) GetByID(ctx context.Context, id string) (*entity.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProjectRepo) Update(ctx context.Context, project *entity.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[project.ID] = project
	return nil
}

func (r *fakeProjectRepo) UpdateOutline(ctx context.Context, id string, outlineDoc string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return fmt.Errorf("project %s not found", id)
	}
	p.SetOutline(outlineDoc)
	return nil
}

func (r *fakeProjectRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.projects, id)
	return nil
}

func (r *fakeProjectRepo) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Project], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.Project, 0, len(r.projects))
	for _, p := range r.projects {
		cp := *p
		items = append(items, &cp)
	}
	return repository.NewPagedResult(items, int64(len(items)), pagination), nil
}

func leafNode(id, title, content string) *outline.Node {
	return &outline.Node{ID: id, Title: title, Content: content}
}

func seedProject(t *testing.T, repo *fakeProjectRepo, doc *outline.Document) string {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal outline: %v", err)
	}
	project := entity.NewProject("测试项目", "市政管网改造", "管径 DN800", entity.ProjectTypeEngineering)
	project.ID = "p1"
	project.SetOutline(string(data))
	_ = repo.Create(context.Background(), project)
	return project.ID
}

func newBatchService(repo *fakeProjectRepo, workers int) *Service {
	ws := NewWorkspace(repo, nil)
	return NewService(ws, nil, nil, &config.GenerationConfig{
		WorkerCount:      workers,
		MinContentLength: 30,
	})
}

func sevenLeafDoc() *outline.Document {
	return &outline.Document{Outline: []*outline.Node{
		{ID: "1", Title: "施工组织", Children: []*outline.Node{
			leafNode("1.1", "总体部署", ""),
			leafNode("1.2", "进度计划", ""),
			leafNode("1.3", "资源配置", ""),
		}},
		{ID: "2", Title: "质量保证", Children: []*outline.Node{
			leafNode("2.1", "质量目标", ""),
			leafNode("2.2", "检验制度", ""),
		}},
		leafNode("3", "安全文明", ""),
		leafNode("4", "售后服务", ""),
	}}
}

func TestGenerateBatchRunsAllPendingLeaves(t *testing.T) {
	repo := newFakeProjectRepo()
	projectID := seedProject(t, repo, sevenLeafDoc())
	svc := newBatchService(repo, 3)

	var (
		mu      sync.Mutex
		ran     []string
		active  atomic.Int32
		maxSeen atomic.Int32
	)
	svc.runLeaf = func(ctx context.Context, pid, chapterID string) error {
		cur := active.Add(1)
		for {
			prev := maxSeen.Load()
			if cur <= prev || maxSeen.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)

		mu.Lock()
		ran = append(ran, chapterID)
		mu.Unlock()
		return nil
	}

	result, err := svc.GenerateBatch(context.Background(), projectID, BatchOptions{}, nil)
	if err != nil {
		t.Fatalf("GenerateBatch: %v", err)
	}

	if result.Total != 7 || result.Succeeded != 7 || result.Failed != 0 {
		t.Errorf("result = %+v, want total=7 succeeded=7 failed=0", result)
	}
	if len(ran) != 7 {
		t.Errorf("ran %d chapters, want 7", len(ran))
	}
	if got := maxSeen.Load(); got > 3 {
		t.Errorf("max concurrent workers = %d, want <= 3", got)
	}
	if got := maxSeen.Load(); got < 2 {
		t.Errorf("max concurrent workers = %d, expected parallel execution", got)
	}
}

// 队列构建与上下文组装都在快照上进行，
// 与流式写入的活动树并发执行不应有数据竞争（配合 -race 验证）
func TestGenerateBatchConcurrentWithStreamWrites(t *testing.T) {
	repo := newFakeProjectRepo()
	projectID := seedProject(t, repo, sevenLeafDoc())
	svc := newBatchService(repo, 3)

	// 先加载活动树，保证写入方与批量调度操作同一棵树
	if _, err := svc.workspace.Snapshot(context.Background(), projectID); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	svc.runLeaf = func(ctx context.Context, pid, chapterID string) error {
		svc.workspace.ApplyContentTransient(pid, chapterID, strings.Repeat("章节内容", 16))
		return nil
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for i := 0; i < 200; i++ {
			svc.workspace.ApplyContentTransient(projectID, "1.2", fmt.Sprintf("第 %d 次增量", i))
		}
	}()

	result, err := svc.GenerateBatch(context.Background(), projectID, BatchOptions{Force: true}, nil)
	<-writerDone
	if err != nil {
		t.Fatalf("GenerateBatch: %v", err)
	}
	if result.Total != 7 || result.Succeeded != 7 || result.Failed != 0 {
		t.Errorf("result = %+v, want total=7 succeeded=7 failed=0", result)
	}
}

func TestGenerateBatchIsolatesFailures(t *testing.T) {
	repo := newFakeProjectRepo()
	projectID := seedProject(t, repo, sevenLeafDoc())
	svc := newBatchService(repo, 3)

	svc.runLeaf = func(ctx context.Context, pid, chapterID string) error {
		if chapterID == "2.1" {
			return errors.New("backend unavailable")
		}
		return nil
	}

	result, err := svc.GenerateBatch(context.Background(), projectID, BatchOptions{}, nil)
	if err != nil {
		t.Fatalf("GenerateBatch: %v", err)
	}

	if result.Succeeded != 6 || result.Failed != 1 {
		t.Errorf("result = %+v, want succeeded=6 failed=1", result)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(result.Failures))
	}
	if result.Failures[0].ChapterID != "2.1" {
		t.Errorf("failed chapter = %s, want 2.1", result.Failures[0].ChapterID)
	}
	if !strings.Contains(result.Failures[0].Reason, "backend unavailable") {
		t.Errorf("failure reason = %q, want backend error", result.Failures[0].Reason)
	}
}

func TestGenerateBatchSkipsChaptersWithContent(t *testing.T) {
	longContent := strings.Repeat("本章节内容已经完成编写。", 10)
	doc := &outline.Document{Outline: []*outline.Node{
		leafNode("1", "已完成章节", longContent),
		leafNode("2", "空白章节", ""),
		leafNode("3", "过短章节", "待补充"),
	}}

	repo := newFakeProjectRepo()
	projectID := seedProject(t, repo, doc)
	svc := newBatchService(repo, 3)

	var (
		mu  sync.Mutex
		ran []string
	)
	svc.runLeaf = func(ctx context.Context, pid, chapterID string) error {
		mu.Lock()
		ran = append(ran, chapterID)
		mu.Unlock()
		return nil
	}

	result, err := svc.GenerateBatch(context.Background(), projectID, BatchOptions{}, nil)
	if err != nil {
		t.Fatalf("GenerateBatch: %v", err)
	}
	if result.Total != 2 {
		t.Errorf("total = %d, want 2 (chapter with content skipped)", result.Total)
	}
	mu.Lock()
	for _, id := range ran {
		if id == "1" {
			t.Errorf("chapter 1 has content but was regenerated")
		}
	}
	mu.Unlock()
}

func TestGenerateBatchForceRegeneratesAll(t *testing.T) {
	longContent := strings.Repeat("本章节内容已经完成编写。", 10)
	doc := &outline.Document{Outline: []*outline.Node{
		leafNode("1", "已完成章节", longContent),
		leafNode("2", "空白章节", ""),
	}}

	repo := newFakeProjectRepo()
	projectID := seedProject(t, repo, doc)
	svc := newBatchService(repo, 3)

	svc.runLeaf = func(ctx context.Context, pid, chapterID string) error { return nil }

	result, err := svc.GenerateBatch(context.Background(), projectID, BatchOptions{Force: true}, nil)
	if err != nil {
		t.Fatalf("GenerateBatch: %v", err)
	}
	if result.Total != 2 {
		t.Errorf("total = %d, want 2 with force", result.Total)
	}
}

func TestGenerateBatchNothingToDo(t *testing.T) {
	longContent := strings.Repeat("本章节内容已经完成编写。", 10)
	doc := &outline.Document{Outline: []*outline.Node{
		leafNode("1", "已完成章节", longContent),
	}}

	repo := newFakeProjectRepo()
	projectID := seedProject(t, repo, doc)
	svc := newBatchService(repo, 3)

	_, err := svc.GenerateBatch(context.Background(), projectID, BatchOptions{}, nil)
	if err == nil {
		t.Fatal("expected error when nothing to generate")
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeNothingToDo {
		t.Errorf("error code = %s, want %s", appErr.Code, apperrors.CodeNothingToDo)
	}
}

func TestGenerateBatchReportsProgress(t *testing.T) {
	repo := newFakeProjectRepo()
	projectID := seedProject(t, repo, sevenLeafDoc())
	svc := newBatchService(repo, 2)

	svc.runLeaf = func(ctx context.Context, pid, chapterID string) error {
		if chapterID == "3" {
			return errors.New("boom")
		}
		return nil
	}

	var (
		mu        sync.Mutex
		started   int
		succeeded int
		failed    int
	)
	result, err := svc.GenerateBatch(context.Background(), projectID, BatchOptions{}, func(p BatchProgress) {
		mu.Lock()
		defer mu.Unlock()
		switch p.Type {
		case BatchTaskStarted:
			started++
		case BatchTaskSucceeded:
			succeeded++
		case BatchTaskFailed:
			failed++
			if p.Message == "" {
				t.Errorf("failed progress event missing message")
			}
		}
	})
	if err != nil {
		t.Fatalf("GenerateBatch: %v", err)
	}

	if started != 7 || succeeded != 6 || failed != 1 {
		t.Errorf("progress events started=%d succeeded=%d failed=%d, want 7/6/1", started, succeeded, failed)
	}
	if result.Failed != 1 {
		t.Errorf("result.Failed = %d, want 1", result.Failed)
	}
}
