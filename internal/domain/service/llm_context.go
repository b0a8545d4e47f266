package service

import (
	"context"
	"strings"
)

// 调用用途标签，用于指标与 span
const (
	WorkflowDataExtraction = "data_extraction"
	WorkflowSectionWrite   = "section_write"
	WorkflowSectionPart    = "section_part"
	WorkflowFraming        = "framing"
	WorkflowSummary        = "section_summary"
	WorkflowImagePrompt    = "image_prompt"
	WorkflowImage          = "image_generate"
)

const unknownLabel = "unknown"

// callLabels 随 context 传递的一次模型调用的标签
type callLabels struct {
	workflow string
	provider string
}

type callLabelsKey struct{}

func labelsFrom(ctx context.Context) callLabels {
	if ctx == nil {
		return callLabels{}
	}
	l, _ := ctx.Value(callLabelsKey{}).(callLabels)
	return l
}

func withLabels(ctx context.Context, workflow, provider string) context.Context {
	if ctx == nil {
		return nil
	}
	cur := labelsFrom(ctx)
	next := cur
	if w := strings.TrimSpace(workflow); w != "" {
		next.workflow = w
	}
	if p := strings.TrimSpace(provider); p != "" {
		next.provider = p
	}
	if next == cur {
		return ctx
	}
	return context.WithValue(ctx, callLabelsKey{}, next)
}

func WithWorkflow(ctx context.Context, workflow string) context.Context {
	return withLabels(ctx, workflow, "")
}

func WithProvider(ctx context.Context, provider string) context.Context {
	return withLabels(ctx, "", provider)
}

// WithWorkflowProvider 空值保持原标签
func WithWorkflowProvider(ctx context.Context, workflow, provider string) context.Context {
	return withLabels(ctx, workflow, provider)
}

// WorkflowFromContext 缺省为 "unknown"
func WorkflowFromContext(ctx context.Context) string {
	if w := labelsFrom(ctx).workflow; w != "" {
		return w
	}
	return unknownLabel
}

func ProviderFromContext(ctx context.Context) string {
	if p := labelsFrom(ctx).provider; p != "" {
		return p
	}
	return unknownLabel
}
