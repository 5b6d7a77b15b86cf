package outline

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
	jsonFenceRe  = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	plainFenceRe = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
)

// CleanModelJSON 清理模型输出中的 Markdown 代码块标记与推理块
// 生成后端透传的模型原文可能带 ```json 围栏或 <think> 片段
func CleanModelJSON(raw string) string {
	s := thinkBlockRe.ReplaceAllString(raw, "")
	s = jsonFenceRe.ReplaceAllString(s, "$1")
	s = plainFenceRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// ParseDocument 解析目录生成结果为目录树并校验不变量
func ParseDocument(raw string) (*Document, error) {
	cleaned := CleanModelJSON(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty outline document")
	}

	var doc Document
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse outline document: %w", err)
	}
	if len(doc.Outline) == 0 {
		return nil, fmt.Errorf("outline document has no chapters")
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}
