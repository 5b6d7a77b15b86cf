package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tender-draft-api/internal/domain/outline"
	"tender-draft-api/internal/infrastructure/persistence/milvus"
)

type fakeEmbedder struct {
	failAll bool
	queries []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.failAll {
		return nil, errors.New("embedding service down")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if f.failAll {
		return nil, errors.New("embedding service down")
	}
	f.queries = append(f.queries, text)
	return []float32{0.1, 0.2}, nil
}

type fakeVectorStore struct {
	failSearch bool
	results    []*milvus.SearchResult
	inserted   []*milvus.ReferenceSegment
}

func (f *fakeVectorStore) EnsureCollection(ctx context.Context) error { return nil }

func (f *fakeVectorStore) InsertSegments(ctx context.Context, projectID string, segments []*milvus.ReferenceSegment) error {
	f.inserted = append(f.inserted, segments...)
	return nil
}

func (f *fakeVectorStore) SearchSegments(ctx context.Context, params *milvus.SearchParams) ([]*milvus.SearchResult, error) {
	if f.failSearch {
		return nil, errors.New("milvus unavailable")
	}
	return f.results, nil
}

func (f *fakeVectorStore) DropProjectSegments(ctx context.Context, projectID string) error {
	return nil
}

func testLeaf() *outline.LeafContext {
	return &outline.LeafContext{
		Node: &outline.Node{ID: "2.1", Title: "质量目标", Description: "明确质量验收标准"},
		Ancestors: []outline.Summary{
			{ID: "2", Title: "质量保证体系"},
		},
	}
}

func TestRetrieverBuildsQueryFromHierarchy(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeVectorStore{results: []*milvus.SearchResult{
		{TextContent: "相关参考片段"},
	}}
	r := NewRetriever(embedder, store, 3)

	got := r.ContextFor(context.Background(), "p1", testLeaf())
	if got != "相关参考片段" {
		t.Errorf("context = %q, want search result text", got)
	}

	if len(embedder.queries) != 1 {
		t.Fatalf("embedded %d queries, want 1", len(embedder.queries))
	}
	query := embedder.queries[0]
	for _, part := range []string{"质量保证体系", "质量目标", "明确质量验收标准"} {
		if !strings.Contains(query, part) {
			t.Errorf("query %q missing %q", query, part)
		}
	}
}

func TestRetrieverJoinsMultipleSegments(t *testing.T) {
	store := &fakeVectorStore{results: []*milvus.SearchResult{
		{TextContent: "片段一"},
		{TextContent: "  "},
		{TextContent: "片段二"},
	}}
	r := NewRetriever(&fakeEmbedder{}, store, 3)

	got := r.ContextFor(context.Background(), "p1", testLeaf())
	if got != "片段一\n\n片段二" {
		t.Errorf("context = %q, want segments joined and blanks dropped", got)
	}
}

func TestRetrieverDegradesOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		embedder *fakeEmbedder
		store    *fakeVectorStore
	}{
		{"embedding_failure", &fakeEmbedder{failAll: true}, &fakeVectorStore{}},
		{"search_failure", &fakeEmbedder{}, &fakeVectorStore{failSearch: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetriever(tt.embedder, tt.store, 3)
			if got := r.ContextFor(context.Background(), "p1", testLeaf()); got != "" {
				t.Errorf("context = %q, want empty on degraded retrieval", got)
			}
		})
	}
}

func TestRetrieverDisabledWithoutDependencies(t *testing.T) {
	r := NewRetriever(nil, nil, 3)
	if r.Enabled() {
		t.Error("retriever without dependencies reports enabled")
	}
	if got := r.ContextFor(context.Background(), "p1", testLeaf()); got != "" {
		t.Errorf("context = %q, want empty when disabled", got)
	}
}

func TestIngestorSplitsAndInserts(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeVectorStore{}
	ing := NewIngestor(embedder, store)

	text := strings.Repeat("参考标书的正文内容。", 200)
	count, err := ing.Ingest(context.Background(), "p1", "历史标书.docx", text)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if count < 2 {
		t.Errorf("segment count = %d, want document split into multiple segments", count)
	}
	if len(store.inserted) != count {
		t.Errorf("inserted %d segments, reported %d", len(store.inserted), count)
	}
	for i, seg := range store.inserted {
		if seg.ID == "" {
			t.Errorf("segment %d missing id", i)
		}
		if seg.Source != "历史标书.docx" {
			t.Errorf("segment %d source = %q", i, seg.Source)
		}
		if seg.ChunkIndex != int64(i) {
			t.Errorf("segment %d chunk index = %d", i, seg.ChunkIndex)
		}
	}
}

func TestIngestorRejectsEmptyDocument(t *testing.T) {
	ing := NewIngestor(&fakeEmbedder{}, &fakeVectorStore{})
	if _, err := ing.Ingest(context.Background(), "p1", "空文档", "   \n  "); err == nil {
		t.Error("expected error for empty document")
	}
}

func TestSplitByRunesOverlap(t *testing.T) {
	text := strings.Repeat("甲", 100)
	chunks := splitByRunes(text, 40, 10)
	if len(chunks) != 3 {
		t.Fatalf("chunk count = %d, want 3", len(chunks))
	}
	for i, c := range chunks[:2] {
		if n := len([]rune(c)); n != 40 {
			t.Errorf("chunk %d rune count = %d, want 40", i, n)
		}
	}
}
