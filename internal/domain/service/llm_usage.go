package service

import (
	"context"
	"sync"
)

// LLMUsageInput 一次 LLM 调用的可观测数据
type LLMUsageInput struct {
	Workflow string
	Provider string
	Model    string

	PromptTokens     int
	CompletionTokens int
	DurationMs       int
}

// LLMUsageRecorder 记录 LLM 使用量。
// 实现应为 best-effort，不阻塞主流程。
type LLMUsageRecorder interface {
	Record(ctx context.Context, in LLMUsageInput) error
}

// UsageTally 单次整书生成的用量累计，按 workflow 分组
type UsageTally struct {
	mu      sync.Mutex
	calls   int
	prompt  int
	output  int
	byUsage map[string]int
}

// UsageSnapshot 用量快照
type UsageSnapshot struct {
	Calls            int            `json:"calls"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	CallsByWorkflow  map[string]int `json:"calls_by_workflow"`
}

func NewUsageTally() *UsageTally {
	return &UsageTally{byUsage: make(map[string]int)}
}

func (t *UsageTally) add(in LLMUsageInput) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.prompt += in.PromptTokens
	t.output += in.CompletionTokens
	t.byUsage[in.Workflow]++
}

// Snapshot 返回当前累计值的拷贝
func (t *UsageTally) Snapshot() UsageSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	by := make(map[string]int, len(t.byUsage))
	for k, v := range t.byUsage {
		by[k] = v
	}
	return UsageSnapshot{
		Calls:            t.calls,
		PromptTokens:     t.prompt,
		CompletionTokens: t.output,
		CallsByWorkflow:  by,
	}
}

type usageTallyKey struct{}

// WithUsageTally 将累计器挂到 context 上
func WithUsageTally(ctx context.Context, t *UsageTally) context.Context {
	return context.WithValue(ctx, usageTallyKey{}, t)
}

// UsageTallyFromContext 取出累计器，没有时返回 nil
func UsageTallyFromContext(ctx context.Context) *UsageTally {
	if ctx == nil {
		return nil
	}
	t, _ := ctx.Value(usageTallyKey{}).(*UsageTally)
	return t
}

// ContextUsageRecorder 将用量写入 context 中的 UsageTally
type ContextUsageRecorder struct{}

func (ContextUsageRecorder) Record(ctx context.Context, in LLMUsageInput) error {
	if t := UsageTallyFromContext(ctx); t != nil {
		t.add(in)
	}
	return nil
}
