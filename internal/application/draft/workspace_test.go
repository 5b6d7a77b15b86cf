package draft

import (
	"context"
	"encoding/json"
	"testing"

	"tender-draft-api/internal/domain/outline"
	apperrors "tender-draft-api/pkg/errors"
)

func TestWorkspaceApplyContentPersists(t *testing.T) {
	repo := newFakeProjectRepo()
	doc := &outline.Document{Outline: []*outline.Node{
		leafNode("1", "第一章", ""),
		leafNode("2", "第二章", ""),
	}}
	projectID := seedProject(t, repo, doc)
	ws := NewWorkspace(repo, nil)

	replaced, err := ws.ApplyContent(context.Background(), projectID, "1", "生成的章节内容")
	if err != nil {
		t.Fatalf("ApplyContent: %v", err)
	}
	if !replaced {
		t.Fatal("expected content to be replaced")
	}

	// 回写后的文档应包含新内容
	project, err := repo.GetByID(context.Background(), projectID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	var persisted outline.Document
	if err := json.Unmarshal([]byte(project.OutlineDoc), &persisted); err != nil {
		t.Fatalf("unmarshal persisted outline: %v", err)
	}
	if got := persisted.FindByID("1").Content; got != "生成的章节内容" {
		t.Errorf("persisted content = %q, want updated content", got)
	}
	if got := persisted.FindByID("2").Content; got != "" {
		t.Errorf("untouched chapter content = %q, want empty", got)
	}
}

func TestWorkspaceApplyContentAbsorbsUnknownChapter(t *testing.T) {
	repo := newFakeProjectRepo()
	projectID := seedProject(t, repo, &outline.Document{Outline: []*outline.Node{
		leafNode("1", "第一章", ""),
	}})
	ws := NewWorkspace(repo, nil)

	before, _ := repo.GetByID(context.Background(), projectID)

	replaced, err := ws.ApplyContent(context.Background(), projectID, "ghost", "迟到的内容")
	if err != nil {
		t.Fatalf("ApplyContent: %v", err)
	}
	if replaced {
		t.Fatal("expected unknown chapter update to be a no-op")
	}

	// 无操作不应触发回写
	after, _ := repo.GetByID(context.Background(), projectID)
	if after.Version != before.Version {
		t.Errorf("version changed %d -> %d on no-op update", before.Version, after.Version)
	}
}

func TestWorkspaceApplyContentTransientSkipsPersistence(t *testing.T) {
	repo := newFakeProjectRepo()
	projectID := seedProject(t, repo, &outline.Document{Outline: []*outline.Node{
		leafNode("1", "第一章", ""),
	}})
	ws := NewWorkspace(repo, nil)

	// 树未加载时为空操作
	if ws.ApplyContentTransient(projectID, "1", "增量") {
		t.Fatal("transient apply succeeded before outline was loaded")
	}

	if _, err := ws.Snapshot(context.Background(), projectID); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	before, _ := repo.GetByID(context.Background(), projectID)

	if !ws.ApplyContentTransient(projectID, "1", "增量内容") {
		t.Fatal("expected transient apply to update the loaded tree")
	}

	doc, _ := ws.Snapshot(context.Background(), projectID)
	if got := doc.FindByID("1").Content; got != "增量内容" {
		t.Errorf("in-memory content = %q, want transient update", got)
	}

	// 增量不触发回写
	after, _ := repo.GetByID(context.Background(), projectID)
	if after.Version != before.Version {
		t.Errorf("version changed %d -> %d on transient update", before.Version, after.Version)
	}
}

func TestWorkspaceSetOutlineReplacesTree(t *testing.T) {
	repo := newFakeProjectRepo()
	projectID := seedProject(t, repo, &outline.Document{Outline: []*outline.Node{
		leafNode("old", "旧章节", "旧内容"),
	}})
	ws := NewWorkspace(repo, nil)

	// 先加载旧树进入工作区
	if _, err := ws.Snapshot(context.Background(), projectID); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	newDoc := &outline.Document{Outline: []*outline.Node{
		leafNode("new", "新章节", ""),
	}}
	if err := ws.SetOutline(context.Background(), projectID, newDoc); err != nil {
		t.Fatalf("SetOutline: %v", err)
	}

	doc, err := ws.Snapshot(context.Background(), projectID)
	if err != nil {
		t.Fatalf("Snapshot after replace: %v", err)
	}
	if doc.FindByID("old") != nil {
		t.Error("old chapter survived outline replacement")
	}
	if doc.FindByID("new") == nil {
		t.Error("new chapter missing after outline replacement")
	}
}

func TestWorkspaceOutlineNotFound(t *testing.T) {
	repo := newFakeProjectRepo()
	ws := NewWorkspace(repo, nil)

	_, err := ws.Snapshot(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for missing project")
	}
	if apperrors.AsAppError(err).Code != apperrors.CodeProjectNotFound {
		t.Errorf("error code = %s, want project not found", apperrors.AsAppError(err).Code)
	}
}

func TestWorkspaceSnapshotIsIndependent(t *testing.T) {
	repo := newFakeProjectRepo()
	projectID := seedProject(t, repo, &outline.Document{Outline: []*outline.Node{
		leafNode("1", "第一章", "原始内容"),
	}})
	ws := NewWorkspace(repo, nil)

	snap, err := ws.Snapshot(context.Background(), projectID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	snap.ReplaceContent("1", "篡改后的内容")

	doc, _ := ws.Snapshot(context.Background(), projectID)
	if got := doc.FindByID("1").Content; got != "原始内容" {
		t.Errorf("workspace content = %q, snapshot mutation leaked", got)
	}
}
