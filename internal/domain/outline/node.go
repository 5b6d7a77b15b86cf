// Package outline 定义标书目录树模型
package outline

// Summary 章节摘要信息，用于生成请求的层级上下文
type Summary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Node 目录树节点（章节）
// ID 在整棵树内唯一，是结构更新的唯一标识；Content 仅叶子节点持有
type Node struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Content     string  `json:"content,omitempty"`
	Children    []*Node `json:"children,omitempty"`
}

// IsLeaf 判断是否为叶子节点（内容生成的最小单位）
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Summarize 返回节点摘要
func (n *Node) Summarize() Summary {
	return Summary{
		ID:          n.ID,
		Title:       n.Title,
		Description: n.Description,
	}
}

// Document 整棵目录树；由目录生成结果整体替换
type Document struct {
	Outline []*Node `json:"outline"`
}

// Clone 深拷贝整棵树，用于在锁外安全读取快照
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{Outline: make([]*Node, 0, len(d.Outline))}
	for _, n := range d.Outline {
		out.Outline = append(out.Outline, cloneNode(n))
	}
	return out
}

func cloneNode(n *Node) *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		ID:          n.ID,
		Title:       n.Title,
		Description: n.Description,
		Content:     n.Content,
	}
	if len(n.Children) > 0 {
		c.Children = make([]*Node, 0, len(n.Children))
		for _, child := range n.Children {
			c.Children = append(c.Children, cloneNode(child))
		}
	}
	return c
}
