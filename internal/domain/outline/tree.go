package outline

import (
	"fmt"
)

// LeafContext 叶子节点及其层级上下文
type LeafContext struct {
	Node *Node
	// Ancestors 从根到直接父节点的祖先链，顺序即叙事层级
	Ancestors []Summary
	// Siblings 同一父节点下的其它章节，保持子节点原有顺序
	Siblings []Summary
}

// FindLeaves 以先序深度优先遍历收集所有叶子节点及其上下文
// 结果顺序只取决于树形结构，与内容无关
func (d *Document) FindLeaves() []LeafContext {
	if d == nil {
		return nil
	}
	var leaves []LeafContext
	collectLeaves(d.Outline, nil, &leaves)
	return leaves
}

func collectLeaves(nodes []*Node, ancestors []Summary, out *[]LeafContext) {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if n.IsLeaf() {
			*out = append(*out, LeafContext{
				Node:      n,
				Ancestors: append([]Summary(nil), ancestors...),
				Siblings:  siblingsOf(nodes, n.ID),
			})
			continue
		}
		collectLeaves(n.Children, append(append([]Summary(nil), ancestors...), n.Summarize()), out)
	}
}

// siblingsOf 返回同级节点摘要，排除目标自身，保持子节点顺序
func siblingsOf(nodes []*Node, excludeID string) []Summary {
	siblings := make([]Summary, 0, len(nodes))
	for _, n := range nodes {
		if n == nil || n.ID == excludeID {
			continue
		}
		siblings = append(siblings, n.Summarize())
	}
	return siblings
}

// FindByID 在整棵树中按 ID 查找节点，未找到返回 nil
func (d *Document) FindByID(id string) *Node {
	if d == nil {
		return nil
	}
	return findNode(d.Outline, id)
}

func findNode(nodes []*Node, id string) *Node {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if n.ID == id {
			return n
		}
		if found := findNode(n.Children, id); found != nil {
			return found
		}
	}
	return nil
}

// ReplaceContent 按 ID 定位节点并替换其内容，不改变树结构与其它字段
// ID 不存在时为无操作并返回 false：目录重建后迟到的内容更新被静默吸收
func (d *Document) ReplaceContent(id string, content string) bool {
	node := d.FindByID(id)
	if node == nil {
		return false
	}
	node.Content = content
	return true
}

// ContextFor 计算目标章节的祖先链（根到父节点）与同级章节集合
// 目标不存在时两者均为空，调用方视作"无结构上下文"而非错误
func (d *Document) ContextFor(id string) (ancestors []Summary, siblings []Summary) {
	if d == nil {
		return nil, nil
	}
	found := searchContext(d.Outline, id, nil, &ancestors, &siblings)
	if !found {
		return nil, nil
	}
	return ancestors, siblings
}

func searchContext(nodes []*Node, id string, path []Summary, ancestors *[]Summary, siblings *[]Summary) bool {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if n.ID == id {
			*ancestors = append([]Summary(nil), path...)
			*siblings = siblingsOf(nodes, id)
			return true
		}
		if searchContext(n.Children, id, append(append([]Summary(nil), path...), n.Summarize()), ancestors, siblings) {
			return true
		}
	}
	return false
}

// Validate 校验树的基本不变量：ID 非空且全树唯一
func (d *Document) Validate() error {
	if d == nil {
		return fmt.Errorf("outline document is nil")
	}
	seen := make(map[string]struct{})
	return validateNodes(d.Outline, seen)
}

func validateNodes(nodes []*Node, seen map[string]struct{}) error {
	for _, n := range nodes {
		if n == nil {
			return fmt.Errorf("outline contains nil node")
		}
		if n.ID == "" {
			return fmt.Errorf("outline node %q has empty id", n.Title)
		}
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("duplicate outline node id: %s", n.ID)
		}
		seen[n.ID] = struct{}{}
		if err := validateNodes(n.Children, seen); err != nil {
			return err
		}
	}
	return nil
}
