package genai

import (
	"bytes"
	"encoding/json"
)

// dataPrefix SSE 数据行前缀
var dataPrefix = []byte("data:")

// doneSentinel 流结束哨兵
const doneSentinel = "[DONE]"

// record 一条逻辑流记录
// 三种形态互斥：内容增量、结束哨兵、显式错误
type record struct {
	Chunk    string
	HasChunk bool
	Done     bool
	ErrMsg   string
	IsErr    bool
}

// recordPayload 数据行的 JSON 载荷
type recordPayload struct {
	Chunk   string `json:"chunk"`
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// decoder 按换行切分的流式记录解码器
// 一条逻辑记录可能跨多次网络读取，一次读取也可能包含多条记录；
// 残留的不完整行缓冲到下一次 Feed
type decoder struct {
	rem []byte
}

// Feed 追加一段网络读取的字节，返回其中完整行解析出的记录
func (d *decoder) Feed(p []byte) []record {
	d.rem = append(d.rem, p...)

	var records []record
	for {
		idx := bytes.IndexByte(d.rem, '\n')
		if idx < 0 {
			return records
		}
		line := d.rem[:idx]
		d.rem = d.rem[idx+1:]

		if rec, ok := parseLine(line); ok {
			records = append(records, rec)
		}
	}
}

// Flush 流结束时解析缓冲中最后一行（无换行结尾的残留）
func (d *decoder) Flush() []record {
	if len(d.rem) == 0 {
		return nil
	}
	line := d.rem
	d.rem = nil
	if rec, ok := parseLine(line); ok {
		return []record{rec}
	}
	return nil
}

// parseLine 解析单行记录
// 无法解析的片段静默跳过，不中断流：容忍行边界产生的残缺记录
func parseLine(line []byte) (record, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return record{}, false
	}
	if !bytes.HasPrefix(line, dataPrefix) {
		// 非数据行（注释、event 行等）直接忽略
		return record{}, false
	}
	payload := bytes.TrimSpace(line[len(dataPrefix):])

	if string(payload) == doneSentinel {
		return record{Done: true}, true
	}

	var p recordPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return record{}, false
	}
	if p.Error {
		msg := p.Message
		if msg == "" {
			msg = "generation backend reported an error"
		}
		return record{ErrMsg: msg, IsErr: true}, true
	}
	return record{Chunk: p.Chunk, HasChunk: true}, true
}
