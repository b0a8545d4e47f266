package model

import "time"

// LLMUsageMeta 单次调用的模型与用量信息
type LLMUsageMeta struct {
	Workflow         string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	GeneratedAt      time.Time
}

// Float32Ptr 便捷构造可选温度
func Float32Ptr(v float32) *float32 { return &v }

// IntPtr 便捷构造可选 token 上限
func IntPtr(v int) *int { return &v }
