package draft

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"tender-draft-api/internal/domain/outline"
	apperrors "tender-draft-api/pkg/errors"
	"tender-draft-api/pkg/logger"
	"tender-draft-api/pkg/metrics"
)

// BatchOptions 批量生成选项
type BatchOptions struct {
	// Force 为 true 时重新生成所有叶子章节，忽略已有内容
	Force bool
}

// BatchProgressType 批量进度事件类型
type BatchProgressType string

const (
	// BatchTaskStarted 单章节开始生成
	BatchTaskStarted BatchProgressType = "started"
	// BatchTaskSucceeded 单章节生成成功
	BatchTaskSucceeded BatchProgressType = "succeeded"
	// BatchTaskFailed 单章节生成失败
	BatchTaskFailed BatchProgressType = "failed"
)

// BatchProgress 批量生成进度事件
type BatchProgress struct {
	Type      BatchProgressType `json:"type"`
	ChapterID string            `json:"chapter_id"`
	Title     string            `json:"title"`
	Done      int               `json:"done"`
	Total     int               `json:"total"`
	Message   string            `json:"message,omitempty"`
}

// BatchFailure 单章节失败记录
type BatchFailure struct {
	ChapterID string `json:"chapter_id"`
	Title     string `json:"title"`
	Reason    string `json:"reason"`
}

// BatchResult 批量生成结果汇总
type BatchResult struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Failures  []BatchFailure `json:"failures,omitempty"`
}

// GenerateBatch 按先序遍历批量生成缺内容的叶子章节
// 固定数量的工作协程并发消费任务队列；单章节失败只记录，
// 不中断其余章节。progress 回调可为 nil
func (s *Service) GenerateBatch(ctx context.Context, projectID string, opts BatchOptions, progress func(BatchProgress)) (*BatchResult, error) {
	// 快照上构建队列，与流式写入的活动树隔离
	doc, err := s.workspace.Snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}

	queue := s.pendingLeaves(doc, opts.Force)
	if len(queue) == 0 {
		return nil, apperrors.ErrNothingToDo
	}

	metrics.BatchRunsTotal.Inc()
	logger.Info(ctx, "batch generation started",
		"project_id", projectID,
		"chapter_count", len(queue),
		"force", opts.Force)

	workers := s.workerCount
	if workers > len(queue) {
		workers = len(queue)
	}

	var (
		mu     sync.Mutex
		done   int
		result = &BatchResult{Total: len(queue)}
	)

	report := func(p BatchProgress) {
		if progress != nil {
			progress(p)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, leaf := range queue {
		leaf := leaf
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			report(BatchProgress{
				Type:      BatchTaskStarted,
				ChapterID: leaf.Node.ID,
				Title:     leaf.Node.Title,
				Total:     result.Total,
			})

			err := s.runLeaf(gctx, projectID, leaf.Node.ID)

			mu.Lock()
			done++
			current := done
			if err != nil {
				result.Failed++
				result.Failures = append(result.Failures, BatchFailure{
					ChapterID: leaf.Node.ID,
					Title:     leaf.Node.Title,
					Reason:    err.Error(),
				})
			} else {
				result.Succeeded++
			}
			mu.Unlock()

			if err != nil {
				metrics.BatchTasksTotal.WithLabelValues("failed").Inc()
				logger.Warn(ctx, "batch chapter generation failed",
					"project_id", projectID,
					"chapter_id", leaf.Node.ID,
					"error", err.Error())
				report(BatchProgress{
					Type:      BatchTaskFailed,
					ChapterID: leaf.Node.ID,
					Title:     leaf.Node.Title,
					Done:      current,
					Total:     result.Total,
					Message:   err.Error(),
				})
				// 单章节失败不中断批次
				return nil
			}

			metrics.BatchTasksTotal.WithLabelValues("succeeded").Inc()
			report(BatchProgress{
				Type:      BatchTaskSucceeded,
				ChapterID: leaf.Node.ID,
				Title:     leaf.Node.Title,
				Done:      current,
				Total:     result.Total,
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	logger.Info(ctx, "batch generation finished",
		"project_id", projectID,
		"total", result.Total,
		"succeeded", result.Succeeded,
		"failed", result.Failed)

	return result, nil
}

// pendingLeaves 收集待生成的叶子章节，保持先序遍历顺序
// 内容去除首尾空白后不足阈值字符数的章节视为缺内容
func (s *Service) pendingLeaves(doc *outline.Document, force bool) []outline.LeafContext {
	leaves := doc.FindLeaves()
	if force {
		return leaves
	}

	pending := make([]outline.LeafContext, 0, len(leaves))
	for _, leaf := range leaves {
		if utf8.RuneCountInString(strings.TrimSpace(leaf.Node.Content)) < s.minContentLength {
			pending = append(pending, leaf)
		}
	}
	return pending
}
