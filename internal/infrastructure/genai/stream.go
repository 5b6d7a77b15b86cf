package genai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"tender-draft-api/pkg/logger"
	"tender-draft-api/pkg/metrics"
)

// EventType 流事件类型
type EventType string

const (
	// EventChunk 一条内容增量
	EventChunk EventType = "chunk"
	// EventComplete 正常完成，携带全部累积文本
	EventComplete EventType = "complete"
	// EventError 传输错误或后端显式错误
	EventError EventType = "error"
	// EventCancelled 调用方主动取消；与错误严格区分
	EventCancelled EventType = "cancelled"
)

// Event 生成流事件
// 每个流产生零或多条 Chunk，随后恰好一条终态事件（Complete 或 Error）；
// 被取消的流只产生 Cancelled，不产生终态事件
type Event struct {
	Type EventType
	// Delta 本条增量文本（仅 Chunk）
	Delta string
	// Accumulated 到当前为止累积的全部文本（Chunk 与 Complete）
	Accumulated string
	// Err 错误原因（仅 Error）
	Err error
}

// Stream 一次生成请求的事件流，单订阅者消费
type Stream struct {
	events    chan Event
	ctx       context.Context
	cancel    context.CancelFunc
	cancelled atomic.Bool
}

// Events 返回事件通道；终态（或取消）后通道关闭
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Cancel 取消请求并立即中断底层传输
// 取消后不再投递 Complete/Error 事件
func (s *Stream) Cancel() {
	s.cancelled.Store(true)
	s.cancel()
}

// emit 投递事件；流被取消后停止投递
func (s *Stream) emit(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// consume 读取响应体并将记录转为事件，保证恰好一条终态事件
func (s *Stream) consume(body io.ReadCloser) {
	defer close(s.events)
	defer s.cancel()
	defer func() { _ = body.Close() }()

	var (
		acc      strings.Builder
		dec      decoder
		buf      = make([]byte, 4096)
		sawDone  bool
		sawErr   string
		finished bool
	)

	handle := func(records []record) {
		for _, rec := range records {
			if finished {
				return
			}
			switch {
			case rec.IsErr:
				sawErr = rec.ErrMsg
				finished = true
			case rec.Done:
				sawDone = true
				finished = true
			case rec.HasChunk:
				// 空增量是心跳，保持连接但不计入累积
				if rec.Chunk == "" {
					continue
				}
				acc.WriteString(rec.Chunk)
				metrics.StreamChunksTotal.Inc()
				s.emit(Event{Type: EventChunk, Delta: rec.Chunk, Accumulated: acc.String()})
			}
		}
	}

	for !finished {
		n, err := body.Read(buf)
		if n > 0 {
			handle(dec.Feed(buf[:n]))
		}
		if err == nil {
			continue
		}

		if s.cancelled.Load() || s.ctx.Err() != nil {
			// 取消方已知道结局，不再投递终态事件
			s.tryEmitCancelled()
			return
		}

		if errors.Is(err, io.EOF) {
			handle(dec.Flush())
			break
		}

		s.emit(Event{Type: EventError, Err: fmt.Errorf("stream read failed: %w", err)})
		return
	}

	if s.cancelled.Load() {
		s.tryEmitCancelled()
		return
	}

	if sawErr != "" {
		s.emit(Event{Type: EventError, Err: errors.New(sawErr)})
		return
	}

	// 无哨兵的干净关闭按成功处理，已累积文本不丢失；
	// 留一条告警便于发现静默死亡的后端
	if !sawDone {
		logger.Warn(s.ctx, "generation stream closed without done sentinel",
			"accumulated_len", acc.Len())
	}
	s.emit(Event{Type: EventComplete, Accumulated: acc.String()})
}

// tryEmitCancelled 尽力投递取消事件；消费方可能已经离开，不阻塞
func (s *Stream) tryEmitCancelled() {
	select {
	case s.events <- Event{Type: EventCancelled}:
	default:
	}
}

// newStream 绑定响应体并启动消费协程
func newStream(ctx context.Context, cancel context.CancelFunc, resp *http.Response) *Stream {
	s := &Stream{
		events: make(chan Event, 16),
		ctx:    ctx,
		cancel: cancel,
	}
	go s.consume(resp.Body)
	return s
}
