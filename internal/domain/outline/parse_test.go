package outline

import (
	"strings"
	"testing"
)

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "json fence",
			in:   "```json\n{\"outline\": []}\n```",
			want: `{"outline": []}`,
		},
		{
			name: "plain fence",
			in:   "```\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "think block",
			in:   "<think>推理过程...</think>{\"outline\": []}",
			want: `{"outline": []}`,
		},
		{
			name: "surrounding whitespace",
			in:   "  {\"a\": 1}\n",
			want: `{"a": 1}`,
		},
		{
			name: "untouched",
			in:   `{"outline": [{"id": "1"}]}`,
			want: `{"outline": [{"id": "1"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanModelJSON(tt.in); got != tt.want {
				t.Errorf("CleanModelJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDocument(t *testing.T) {
	raw := "```json\n" + `{
		"outline": [
			{"id": "1", "title": "项目理解", "description": "",
			 "children": [{"id": "1.1", "title": "需求分析", "description": ""}]}
		]
	}` + "\n```"

	doc, err := ParseDocument(raw)
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	if len(doc.Outline) != 1 || doc.Outline[0].ID != "1" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	leaves := doc.FindLeaves()
	if len(leaves) != 1 || leaves[0].Node.ID != "1.1" {
		t.Fatalf("unexpected leaves: %+v", leaves)
	}
}

func TestParseDocument_errors(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"not json":     "这不是 JSON",
		"no chapters":  `{"outline": []}`,
		"duplicate id": `{"outline": [{"id": "1"}, {"id": "1"}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseDocument(raw); err == nil {
				t.Fatalf("expected error for %q", name)
			}
		})
	}
}

func TestParseDocument_large_nested(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`{"outline": [`)
	for i := 0; i < 5; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"id": "` + string(rune('1'+i)) + `", "title": "章", "description": "", "children": [`)
		sb.WriteString(`{"id": "` + string(rune('1'+i)) + `.1", "title": "节", "description": ""}]}`)
	}
	sb.WriteString(`]}`)

	doc, err := ParseDocument(sb.String())
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	if got := len(doc.FindLeaves()); got != 5 {
		t.Fatalf("expected 5 leaves, got %d", got)
	}
}
