// Package entity 定义领域实体
package entity

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ChartPayload 命盘符号数据
// 保留输入 JSON 在每一层的键顺序，序列化结果稳定，可直接嵌入提示词与调试页。
type ChartPayload struct {
	root *orderedmap.OrderedMap[string, any]
}

// NewChartPayload 创建空的命盘数据
func NewChartPayload() *ChartPayload {
	return &ChartPayload{root: orderedmap.New[string, any]()}
}

// ParseChartPayload 从 JSON 解析命盘数据，顶层必须为对象
func ParseChartPayload(data []byte) (*ChartPayload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("chart payload must be a JSON object")
	}
	v, err := decodeOrdered(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode chart payload: %w", err)
	}
	return &ChartPayload{root: v.(*orderedmap.OrderedMap[string, any])}, nil
}

// decodeOrdered 递归解码，对象保持键顺序
func decodeOrdered(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty value")
	}
	switch trimmed[0] {
	case '{':
		inner := orderedmap.New[string, json.RawMessage]()
		if err := json.Unmarshal(trimmed, inner); err != nil {
			return nil, err
		}
		out := orderedmap.New[string, any](orderedmap.WithCapacity[string, any](inner.Len()))
		for pair := inner.Oldest(); pair != nil; pair = pair.Next() {
			v, err := decodeOrdered(pair.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", pair.Key, err)
			}
			out.Set(pair.Key, v)
		}
		return out, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		out := make([]any, 0, len(items))
		for i, item := range items {
			v, err := decodeOrdered(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, v)
		}
		return out, nil
	default:
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// Set 追加或覆盖顶层字段，新字段排在末尾
func (p *ChartPayload) Set(key string, value any) {
	p.root.Set(key, value)
}

// Get 读取顶层字段
func (p *ChartPayload) Get(key string) (any, bool) {
	return p.root.Get(key)
}

// Keys 返回顶层字段顺序
func (p *ChartPayload) Keys() []string {
	keys := make([]string, 0, p.root.Len())
	for pair := p.root.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Len 顶层字段数
func (p *ChartPayload) Len() int {
	if p == nil || p.root == nil {
		return 0
	}
	return p.root.Len()
}

// MarshalJSON 实现 json.Marshaler
func (p *ChartPayload) MarshalJSON() ([]byte, error) {
	if p == nil || p.root == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.root)
}

// UnmarshalJSON 实现 json.Unmarshaler
func (p *ChartPayload) UnmarshalJSON(data []byte) error {
	parsed, err := ParseChartPayload(data)
	if err != nil {
		return err
	}
	p.root = parsed.root
	return nil
}

// Indented 以指定缩进输出 JSON
func (p *ChartPayload) Indented(indent string) (string, error) {
	compact, err := p.MarshalJSON()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", indent); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PromptText 提示词中嵌入的形式（两空格缩进）
func (p *ChartPayload) PromptText() string {
	s, err := p.Indented("  ")
	if err != nil {
		return "{}"
	}
	return s
}

// DebugText 调试页中展示的形式（四空格缩进）
func (p *ChartPayload) DebugText() string {
	s, err := p.Indented("    ")
	if err != nil {
		return "{}"
	}
	return s
}
