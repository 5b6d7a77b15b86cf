package genai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tender-draft-api/internal/config"
	"tender-draft-api/internal/domain/outline"
)

func chapterSummary(id string) outline.Summary {
	return outline.Summary{ID: id, Title: "章节 " + id}
}

// sseServer 构造一个以 SSE 帧回应任何请求的测试后端
func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("response writer does not support flushing")
		}
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n", line)
			flusher.Flush()
		}
	}))
}

func newTestClient(baseURL string) *Client {
	return NewClient(&config.BackendConfig{BaseURL: baseURL})
}

// collect 读取事件直到通道关闭
func collect(t *testing.T, s *Stream) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatal("timed out waiting for stream events")
		}
	}
}

func TestStream_chunks_then_done(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"chunk": "方案"}`,
		`data: {"chunk": "概述"}`,
		`data: [DONE]`,
	})
	defer srv.Close()

	s, err := newTestClient(srv.URL).StreamChapter(context.Background(), &ChapterRequest{
		Chapter: chapterSummary("1.1"),
	})
	if err != nil {
		t.Fatalf("StreamChapter failed: %v", err)
	}

	events := collect(t, s)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %+v", events)
	}
	if events[0].Type != EventChunk || events[0].Delta != "方案" || events[0].Accumulated != "方案" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].Type != EventChunk || events[1].Delta != "概述" || events[1].Accumulated != "方案概述" {
		t.Errorf("unexpected second event: %+v", events[1])
	}
	if events[2].Type != EventComplete || events[2].Accumulated != "方案概述" {
		t.Errorf("unexpected terminal event: %+v", events[2])
	}
}

// 干净关闭但没有结束哨兵：按成功处理，累积文本不丢失
func TestStream_clean_close_without_sentinel(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"chunk": "a"}`,
		`data: {"chunk": "b"}`,
		`data: {"chunk": "c"}`,
	})
	defer srv.Close()

	s, err := newTestClient(srv.URL).StreamExpand(context.Background(), &ExpandRequest{
		Content: "原文", Instruction: "扩写",
	})
	if err != nil {
		t.Fatalf("StreamExpand failed: %v", err)
	}

	events := collect(t, s)
	last := events[len(events)-1]
	if last.Type != EventComplete || last.Accumulated != "abc" {
		t.Fatalf("expected complete with abc, got %+v", last)
	}
}

func TestStream_error_record_terminates(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"chunk": "部分"}`,
		`data: {"chunk": "", "error": true, "message": "后端网关超时"}`,
		`data: {"chunk": "不应到达"}`,
	})
	defer srv.Close()

	s, err := newTestClient(srv.URL).StreamOutline(context.Background(), &OutlineRequest{Overview: "概述"})
	if err != nil {
		t.Fatalf("StreamOutline failed: %v", err)
	}

	events := collect(t, s)
	last := events[len(events)-1]
	if last.Type != EventError {
		t.Fatalf("expected error terminal, got %+v", events)
	}
	if last.Err == nil || last.Err.Error() != "后端网关超时" {
		t.Errorf("unexpected error reason: %v", last.Err)
	}
	for _, ev := range events[:len(events)-1] {
		if ev.Type != EventChunk {
			t.Errorf("unexpected pre-terminal event: %+v", ev)
		}
	}
	for _, ev := range events {
		if ev.Type == EventComplete {
			t.Error("complete must not follow an error record")
		}
	}
}

// 空增量是心跳，不产生 Chunk 事件也不计入累积
func TestStream_heartbeats_ignored(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"chunk": ""}`,
		`data: {"chunk": ""}`,
		`data: {"chunk": "实际内容"}`,
		`data: [DONE]`,
	})
	defer srv.Close()

	s, err := newTestClient(srv.URL).StreamChapter(context.Background(), &ChapterRequest{
		Chapter: chapterSummary("2"),
	})
	if err != nil {
		t.Fatalf("StreamChapter failed: %v", err)
	}

	events := collect(t, s)
	if len(events) != 2 {
		t.Fatalf("expected chunk + complete, got %+v", events)
	}
	if events[1].Accumulated != "实际内容" {
		t.Errorf("heartbeats leaked into accumulation: %q", events[1].Accumulated)
	}
}

func TestStream_malformed_records_do_not_abort(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"chunk": "one"}`,
		`data: {oops`,
		`data: {"chunk": "two"}`,
		`data: [DONE]`,
	})
	defer srv.Close()

	s, err := newTestClient(srv.URL).StreamChapter(context.Background(), &ChapterRequest{
		Chapter: chapterSummary("3"),
	})
	if err != nil {
		t.Fatalf("StreamChapter failed: %v", err)
	}

	events := collect(t, s)
	last := events[len(events)-1]
	if last.Type != EventComplete || last.Accumulated != "onetwo" {
		t.Fatalf("expected complete with onetwo, got %+v", events)
	}
}

// 取消中的请求既不投递 Complete 也不投递 Error
func TestStream_cancel_suppresses_terminal_events(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"chunk\": \"开头\"}\n")
		flusher.Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	s, err := newTestClient(srv.URL).StreamChapter(context.Background(), &ChapterRequest{
		Chapter: chapterSummary("4"),
	})
	if err != nil {
		t.Fatalf("StreamChapter failed: %v", err)
	}

	// 等到第一条增量后取消
	ev := <-s.Events()
	if ev.Type != EventChunk {
		t.Fatalf("expected a chunk before cancelling, got %+v", ev)
	}
	s.Cancel()

	for ev := range s.Events() {
		if ev.Type == EventComplete || ev.Type == EventError {
			t.Fatalf("cancelled stream emitted terminal event: %+v", ev)
		}
	}
}

func TestClient_non_200_is_an_open_error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).StreamOutline(context.Background(), &OutlineRequest{Overview: "x"})
	if err == nil {
		t.Fatal("expected an error for non-200 response")
	}
}

func TestClient_validates_requests(t *testing.T) {
	c := newTestClient("http://localhost:1")
	if _, err := c.StreamChapter(context.Background(), nil); err == nil {
		t.Error("nil chapter request must fail")
	}
	if _, err := c.StreamChapter(context.Background(), &ChapterRequest{}); err == nil {
		t.Error("chapter request without id must fail")
	}
	if _, err := c.StreamExpand(context.Background(), &ExpandRequest{Instruction: "x"}); err == nil {
		t.Error("expand request without content must fail")
	}
}
