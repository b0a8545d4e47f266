package node

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONObject 尝试从模型输出中截取第一个完整 JSON 对象/数组。
// 模型可能在 JSON 前后夹杂说明文字或 ``` 代码块。
func ExtractJSONObject(s string) string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return raw
	}

	objStart := strings.Index(raw, "{")
	arrStart := strings.Index(raw, "[")
	start := -1
	end := -1
	switch {
	case objStart >= 0 && (arrStart < 0 || objStart < arrStart):
		start = objStart
		end = strings.LastIndex(raw, "}")
	case arrStart >= 0:
		start = arrStart
		end = strings.LastIndex(raw, "]")
	}
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	return raw
}

// DecodeJSONObject 截取并解码模型输出中的 JSON
func DecodeJSONObject(s string, out any) error {
	raw := ExtractJSONObject(s)
	if raw == "" {
		return fmt.Errorf("%w: no json in output", ErrEmptyResponse)
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("unmarshal model json: %w", err)
	}
	return nil
}
