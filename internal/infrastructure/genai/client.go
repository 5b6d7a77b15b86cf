// Package genai 提供生成后端（流式模型服务）客户端
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tender-draft-api/internal/config"
	"tender-draft-api/internal/domain/outline"
)

// OutlineRequest 目录结构生成请求
type OutlineRequest struct {
	Overview              string `json:"overview"`
	TechnicalRequirements string `json:"technical_requirements"`
	ProjectType           string `json:"project_type"`
	ReferenceOutline      string `json:"reference_outline,omitempty"`
}

// ChapterRequest 章节内容生成请求
type ChapterRequest struct {
	Chapter          outline.Summary   `json:"chapter"`
	Ancestors        []outline.Summary `json:"ancestor_chapters"`
	Siblings         []outline.Summary `json:"sibling_chapters"`
	ProjectOverview  string            `json:"project_overview"`
	ReferenceContext string            `json:"reference_context,omitempty"`
}

// ExpandRequest 内容扩写请求
type ExpandRequest struct {
	Content     string `json:"content"`
	Instruction string `json:"instruction"`
}

// Client 生成后端客户端
// 两类生成请求共用同一套流式协议，仅载荷与用途不同
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient 创建生成后端客户端
// 流式请求不设置 http.Client 级别的超时，整体超时由请求级 context 控制
func NewClient(cfg *config.BackendConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
	}
}

// StreamOutline 发起目录结构生成，返回事件流
func (c *Client) StreamOutline(ctx context.Context, req *OutlineRequest) (*Stream, error) {
	if req == nil {
		return nil, fmt.Errorf("outline request is nil")
	}
	return c.open(ctx, "/api/generate/outline", req)
}

// StreamChapter 发起单章节内容生成，返回事件流
func (c *Client) StreamChapter(ctx context.Context, req *ChapterRequest) (*Stream, error) {
	if req == nil {
		return nil, fmt.Errorf("chapter request is nil")
	}
	if req.Chapter.ID == "" {
		return nil, fmt.Errorf("chapter id is required")
	}
	return c.open(ctx, "/api/generate/chapter", req)
}

// StreamExpand 发起内容扩写，返回事件流
func (c *Client) StreamExpand(ctx context.Context, req *ExpandRequest) (*Stream, error) {
	if req == nil {
		return nil, fmt.Errorf("expand request is nil")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("content is required")
	}
	return c.open(ctx, "/api/generate/expand", req)
}

// open 发起流式请求并绑定事件流
// 建连阶段的失败直接返回错误；流建立后的失败通过事件流投递
func (c *Client) open(ctx context.Context, path string, payload any) (*Stream, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("generation backend base_url is empty")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generation request: %w", err)
	}

	var cancel context.CancelFunc
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to reach generation backend: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("generation backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	return newStream(ctx, cancel, resp), nil
}
