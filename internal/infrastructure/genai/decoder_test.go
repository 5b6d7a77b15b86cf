package genai

import (
	"reflect"
	"testing"
)

// decodeAll 一次性解码并取回全部记录（含残留行）
func decodeAll(d *decoder, stream []byte) []record {
	records := d.Feed(stream)
	return append(records, d.Flush()...)
}

func TestDecoder_basic_records(t *testing.T) {
	stream := []byte("data: {\"chunk\": \"你好\"}\n" +
		"data: {\"chunk\": \"，世界\"}\n" +
		"data: [DONE]\n")

	var d decoder
	records := decodeAll(&d, stream)

	want := []record{
		{Chunk: "你好", HasChunk: true},
		{Chunk: "，世界", HasChunk: true},
		{Done: true},
	}
	if !reflect.DeepEqual(records, want) {
		t.Fatalf("records = %+v, want %+v", records, want)
	}
}

// 同一逻辑字节流在任意偏移处切成两半，解码结果必须一致
func TestDecoder_split_at_every_offset(t *testing.T) {
	stream := []byte("data: {\"chunk\": \"第一段\"}\n" +
		"data: {\"chunk\": \"second\"}\n" +
		"garbage not a data line\n" +
		"data: {broken json\n" +
		"data: {\"chunk\": \"三\"}\n" +
		"data: [DONE]\n")

	var ref decoder
	want := decodeAll(&ref, stream)

	for i := 0; i <= len(stream); i++ {
		var d decoder
		records := d.Feed(stream[:i])
		records = append(records, d.Feed(stream[i:])...)
		records = append(records, d.Flush()...)

		if !reflect.DeepEqual(records, want) {
			t.Fatalf("split at %d: records = %+v, want %+v", i, records, want)
		}
	}
}

func TestDecoder_multiple_records_in_one_read(t *testing.T) {
	var d decoder
	records := d.Feed([]byte("data: {\"chunk\": \"a\"}\ndata: {\"chunk\": \"b\"}\n"))
	if len(records) != 2 || records[0].Chunk != "a" || records[1].Chunk != "b" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestDecoder_partial_line_rebuffered(t *testing.T) {
	var d decoder
	if got := d.Feed([]byte("data: {\"chu")); len(got) != 0 {
		t.Fatalf("incomplete line must not produce records, got %+v", got)
	}
	records := d.Feed([]byte("nk\": \"合并\"}\n"))
	if len(records) != 1 || records[0].Chunk != "合并" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestDecoder_malformed_records_skipped(t *testing.T) {
	var d decoder
	records := decodeAll(&d, []byte("data: {not json}\ndata: {\"chunk\": \"ok\"}\n"))
	if len(records) != 1 || records[0].Chunk != "ok" {
		t.Fatalf("malformed record should be skipped, got %+v", records)
	}
}

func TestDecoder_error_record(t *testing.T) {
	var d decoder
	records := decodeAll(&d, []byte("data: {\"chunk\": \"\", \"error\": true, \"message\": \"rate limited\"}\n"))
	if len(records) != 1 || !records[0].IsErr || records[0].ErrMsg != "rate limited" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestDecoder_error_record_without_message(t *testing.T) {
	var d decoder
	records := decodeAll(&d, []byte("data: {\"error\": true}\n"))
	if len(records) != 1 || !records[0].IsErr || records[0].ErrMsg == "" {
		t.Fatalf("expected a default error message, got %+v", records)
	}
}

func TestDecoder_ignores_non_data_lines(t *testing.T) {
	var d decoder
	records := decodeAll(&d, []byte(": keepalive comment\nevent: content\ndata: {\"chunk\": \"x\"}\n\n"))
	if len(records) != 1 || records[0].Chunk != "x" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestDecoder_crlf_lines(t *testing.T) {
	var d decoder
	records := decodeAll(&d, []byte("data: {\"chunk\": \"win\"}\r\ndata: [DONE]\r\n"))
	want := []record{{Chunk: "win", HasChunk: true}, {Done: true}}
	if !reflect.DeepEqual(records, want) {
		t.Fatalf("records = %+v, want %+v", records, want)
	}
}

func TestDecoder_flush_trailing_line_without_newline(t *testing.T) {
	var d decoder
	if got := d.Feed([]byte("data: {\"chunk\": \"尾行\"}")); len(got) != 0 {
		t.Fatalf("unterminated line must wait for flush, got %+v", got)
	}
	records := d.Flush()
	if len(records) != 1 || records[0].Chunk != "尾行" {
		t.Fatalf("unexpected flush records: %+v", records)
	}
}
