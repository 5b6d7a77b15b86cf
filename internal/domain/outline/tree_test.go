package outline

import (
	"reflect"
	"testing"
)

// buildTestDocument 构造一棵三层测试树
//
//	1
//	├── 1.1
//	│   ├── 1.1.1 (叶子)
//	│   └── 1.1.2 (叶子)
//	└── 1.2 (叶子)
//	2 (叶子)
func buildTestDocument() *Document {
	return &Document{
		Outline: []*Node{
			{
				ID: "1", Title: "项目理解", Description: "总体理解",
				Children: []*Node{
					{
						ID: "1.1", Title: "需求分析", Description: "需求",
						Children: []*Node{
							{ID: "1.1.1", Title: "功能需求", Description: "功能"},
							{ID: "1.1.2", Title: "性能需求", Description: "性能"},
						},
					},
					{ID: "1.2", Title: "项目范围", Description: "范围"},
				},
			},
			{ID: "2", Title: "技术方案", Description: "方案"},
		},
	}
}

func TestFindLeaves_preorder(t *testing.T) {
	doc := buildTestDocument()
	leaves := doc.FindLeaves()

	wantIDs := []string{"1.1.1", "1.1.2", "1.2", "2"}
	if len(leaves) != len(wantIDs) {
		t.Fatalf("expected %d leaves, got %d", len(wantIDs), len(leaves))
	}
	for i, want := range wantIDs {
		if leaves[i].Node.ID != want {
			t.Errorf("leaf[%d]: expected id %s, got %s", i, want, leaves[i].Node.ID)
		}
	}
}

// 每个叶子的祖先链接上叶子自身必须构成树中一条合法的根到叶路径
func TestFindLeaves_ancestor_chain_reconstructs_path(t *testing.T) {
	doc := buildTestDocument()

	for _, leaf := range doc.FindLeaves() {
		nodes := doc.Outline
		for _, anc := range leaf.Ancestors {
			found := findAtLevel(nodes, anc.ID)
			if found == nil {
				t.Fatalf("leaf %s: ancestor %s not found at expected level", leaf.Node.ID, anc.ID)
			}
			nodes = found.Children
		}
		if findAtLevel(nodes, leaf.Node.ID) == nil {
			t.Fatalf("leaf %s not found under its ancestor chain", leaf.Node.ID)
		}
	}
}

func findAtLevel(nodes []*Node, id string) *Node {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func TestFindLeaves_siblings_exclude_target(t *testing.T) {
	doc := buildTestDocument()

	for _, leaf := range doc.FindLeaves() {
		for _, sib := range leaf.Siblings {
			if sib.ID == leaf.Node.ID {
				t.Errorf("leaf %s: sibling set contains the leaf itself", leaf.Node.ID)
			}
		}
	}

	leaves := doc.FindLeaves()
	// 1.1.1 的同级应为 1.1.2
	first := leaves[0]
	if len(first.Siblings) != 1 || first.Siblings[0].ID != "1.1.2" {
		t.Errorf("leaf 1.1.1: expected siblings [1.1.2], got %+v", first.Siblings)
	}
}

func TestFindLeaves_stable_after_content_change(t *testing.T) {
	doc := buildTestDocument()
	before := doc.FindLeaves()

	doc.ReplaceContent("1.1.2", "生成的内容")

	after := doc.FindLeaves()
	if len(before) != len(after) {
		t.Fatalf("leaf count changed after content update: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i].Node.ID != after[i].Node.ID {
			t.Errorf("leaf order changed at %d: %s -> %s", i, before[i].Node.ID, after[i].Node.ID)
		}
	}
}

func TestReplaceContent_missing_id_is_noop(t *testing.T) {
	doc := buildTestDocument()
	snapshot := doc.Clone()

	if doc.ReplaceContent("99.99", "stale update") {
		t.Fatal("expected ReplaceContent to report false for missing id")
	}
	if !reflect.DeepEqual(doc, snapshot) {
		t.Fatal("tree changed after no-op replace")
	}
}

func TestReplaceContent_last_write_wins(t *testing.T) {
	a := buildTestDocument()
	a.ReplaceContent("1.2", "x")
	a.ReplaceContent("1.2", "y")

	b := buildTestDocument()
	b.ReplaceContent("1.2", "y")

	if !reflect.DeepEqual(a, b) {
		t.Fatal("sequential replaces not equivalent to the final replace")
	}
}

func TestReplaceContent_preserves_everything_else(t *testing.T) {
	doc := buildTestDocument()
	snapshot := doc.Clone()

	if !doc.ReplaceContent("1.1.1", "新内容") {
		t.Fatal("expected replace to succeed")
	}

	// 除目标节点的 Content 外，树必须与快照完全一致
	snapshot.FindByID("1.1.1").Content = "新内容"
	if !reflect.DeepEqual(doc, snapshot) {
		t.Fatal("replace modified more than the target content")
	}
}

func TestContextFor_example(t *testing.T) {
	doc := &Document{
		Outline: []*Node{
			{
				ID: "1", Title: "总述",
				Children: []*Node{
					{ID: "1.1", Title: "背景"},
					{ID: "1.2", Title: "目标"},
				},
			},
		},
	}

	ancestors, siblings := doc.ContextFor("1.2")
	if len(ancestors) != 1 || ancestors[0].ID != "1" {
		t.Errorf("expected ancestors [1], got %+v", ancestors)
	}
	if len(siblings) != 1 || siblings[0].ID != "1.1" {
		t.Errorf("expected siblings [1.1], got %+v", siblings)
	}
}

func TestContextFor_root_level_node(t *testing.T) {
	doc := buildTestDocument()

	ancestors, siblings := doc.ContextFor("2")
	if len(ancestors) != 0 {
		t.Errorf("root-level node should have no ancestors, got %+v", ancestors)
	}
	if len(siblings) != 1 || siblings[0].ID != "1" {
		t.Errorf("expected siblings [1], got %+v", siblings)
	}
}

func TestContextFor_missing_id(t *testing.T) {
	doc := buildTestDocument()

	ancestors, siblings := doc.ContextFor("nope")
	if len(ancestors) != 0 || len(siblings) != 0 {
		t.Errorf("missing id should yield empty context, got %+v / %+v", ancestors, siblings)
	}
}

func TestValidate_duplicate_id(t *testing.T) {
	doc := &Document{
		Outline: []*Node{
			{ID: "1", Children: []*Node{{ID: "1"}}},
		},
	}
	if err := doc.Validate(); err == nil {
		t.Fatal("expected duplicate id to fail validation")
	}
}

func TestClone_is_independent(t *testing.T) {
	doc := buildTestDocument()
	clone := doc.Clone()

	doc.ReplaceContent("1.2", "mutated")
	if clone.FindByID("1.2").Content != "" {
		t.Fatal("mutating the original leaked into the clone")
	}
}
