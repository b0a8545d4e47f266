package chain

import (
	"context"
	"fmt"
	"strings"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	llmctx "natal-book-ai/internal/domain/service"
	wfmodel "natal-book-ai/internal/workflow/model"
	wfnode "natal-book-ai/internal/workflow/node"
	workflowport "natal-book-ai/internal/workflow/port"
	"natal-book-ai/pkg/logger"
)

// CompletionChain 单条 user 消息的文本补全
type CompletionChain struct {
	factory workflowport.ChatModelFactory
	limiter workflowport.RequestLimiter
}

// NewCompletionChain limiter 可为 nil
func NewCompletionChain(factory workflowport.ChatModelFactory, limiter workflowport.RequestLimiter) *CompletionChain {
	return &CompletionChain{factory: factory, limiter: limiter}
}

// Complete 实现 port.TextCompleter
func (c *CompletionChain) Complete(ctx context.Context, in *wfmodel.CompletionInput) (string, error) {
	if c == nil || c.factory == nil {
		return "", fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return "", fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return "", fmt.Errorf("prompt is required")
	}

	provider := strings.TrimSpace(in.Provider)
	ctx = llmctx.WithWorkflowProvider(ctx, in.Workflow, provider)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	chatModel, err := c.factory.Get(ctx, provider)
	if err != nil {
		return "", wfnode.WrapGenerationError(in.Workflow, err)
	}

	msgs := []*schema.Message{schema.UserMessage(in.Prompt)}
	outMsg, err := chatModel.Generate(ctx, msgs, buildCompletionOptions(in, true)...)
	if err != nil && in.ResponseFormat != wfmodel.ResponseFormatText && wfnode.IsResponseFormatUnsupportedError(err) {
		logger.Warn(ctx, "llm response_format not supported, fallback to prompt-only",
			"workflow", in.Workflow,
			"provider", provider,
			"model", strings.TrimSpace(in.Model),
			"error", err.Error(),
		)
		outMsg, err = chatModel.Generate(ctx, msgs, buildCompletionOptions(in, false)...)
	}
	if err != nil {
		if wfnode.IsRateLimitError(err) {
			if p, ok := c.limiter.(workflowport.Pauser); ok {
				p.Pause(0)
			}
		}
		return "", wfnode.WrapGenerationError(in.Workflow, err)
	}
	if outMsg == nil || strings.TrimSpace(outMsg.Content) == "" {
		return "", wfnode.WrapGenerationError(in.Workflow, wfnode.ErrEmptyResponse)
	}
	return strings.TrimSpace(outMsg.Content), nil
}

func buildCompletionOptions(in *wfmodel.CompletionInput, enableFormat bool) []model.Option {
	opts := make([]model.Option, 0, 4)
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if m := strings.TrimSpace(in.Model); m != "" {
		opts = append(opts, model.WithModel(m))
	}
	if !enableFormat {
		return opts
	}

	switch in.ResponseFormat {
	case wfmodel.ResponseFormatJSONObject:
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{"type": "json_object"},
		}))
	case wfmodel.ResponseFormatJSONSchema:
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   in.SchemaName,
					"strict": false,
					"schema": in.Schema,
				},
			},
		}))
	}
	return opts
}
