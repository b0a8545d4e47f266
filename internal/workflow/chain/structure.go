package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/compose"

	"natal-book-ai/internal/domain/entity"
	wfmodel "natal-book-ai/internal/workflow/model"
	wfnode "natal-book-ai/internal/workflow/node"
	workflowport "natal-book-ai/internal/workflow/port"
	workflowprompt "natal-book-ai/internal/workflow/prompt"
	apperrors "natal-book-ai/pkg/errors"
	"natal-book-ai/pkg/logger"
)

// WorkflowStructure 章节结构设计
const WorkflowStructure = "book_structure"

// StructureChain 由模型提出章节结构：template -> llm -> parse
type StructureChain struct {
	compiler  *workflowprompt.Compiler
	completer workflowport.TextCompleter

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.StructureGenerateInput, *wfmodel.StructureGenerateOutput]
	chainErr  error
}

func NewStructureChain(compiler *workflowprompt.Compiler, completer workflowport.TextCompleter) *StructureChain {
	return &StructureChain{compiler: compiler, completer: completer}
}

// Invoke 空结果或无法解析时返回 StructureGenerationFailed
func (c *StructureChain) Invoke(ctx context.Context, in *wfmodel.StructureGenerateInput) (*wfmodel.StructureGenerateOutput, error) {
	if c == nil || c.completer == nil || c.compiler == nil {
		return nil, fmt.Errorf("structure chain not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}

	chain, err := c.getChain()
	if err != nil {
		return nil, err
	}
	out, err := chain.Invoke(ctx, in)
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Wrap(err, apperrors.CodeStructureGenerationFailed, "architect failed to produce structure")
	}
	return out, nil
}

type structureChainState struct {
	In     *wfmodel.StructureGenerateInput
	Prompt string
	Raw    string
}

func (c *StructureChain) getChain() (compose.Runnable[*wfmodel.StructureGenerateInput, *wfmodel.StructureGenerateOutput], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *StructureChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.StructureGenerateInput, *wfmodel.StructureGenerateOutput], error) {
	chain := compose.NewChain[*wfmodel.StructureGenerateInput, *wfmodel.StructureGenerateOutput]()

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, in *wfmodel.StructureGenerateInput) (*structureChainState, error) {
			if in == nil || in.Payload == nil {
				return nil, fmt.Errorf("chart payload is required")
			}
			p, err := c.compiler.BookStructure(ctx, in.Payload, in.TierLabel)
			if err != nil {
				return nil, err
			}
			return &structureChainState{In: in, Prompt: p}, nil
		}),
		compose.WithNodeName("structure.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *structureChainState) (*structureChainState, error) {
			raw, err := c.completer.Complete(ctx, &wfmodel.CompletionInput{
				Workflow:       WorkflowStructure,
				Prompt:         st.Prompt,
				Provider:       st.In.Provider,
				Model:          st.In.Model,
				Temperature:    st.In.Temperature,
				ResponseFormat: wfmodel.ResponseFormatJSONSchema,
				SchemaName:     "book_structure",
				Schema:         structureJSONSchema(),
			})
			if err != nil {
				return nil, err
			}
			st.Raw = raw
			return st, nil
		}),
		compose.WithNodeName("structure.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *structureChainState) (*wfmodel.StructureGenerateOutput, error) {
			sections, err := ParseStructure(st.Raw)
			if err != nil {
				logger.Warn(ctx, "architect output rejected",
					"tier", st.In.TierLabel,
					"preview", wfnode.TruncateByRunes(st.Raw, 200),
					"error", err.Error(),
				)
				return nil, err
			}
			return &wfmodel.StructureGenerateOutput{
				Sections: sections,
				Usage: wfmodel.LLMUsageMeta{
					Workflow: WorkflowStructure,
					Provider: st.In.Provider,
					Model:    st.In.Model,
				},
			}, nil
		}),
		compose.WithNodeName("structure.parse"),
	)

	return chain.Compile(ctx)
}

// ParseStructure 解析 {"chapters": [...]}，丢弃无标题条目
func ParseStructure(raw string) ([]entity.SectionSpec, error) {
	var resp wfmodel.StructureResponse
	if err := wfnode.DecodeJSONObject(raw, &resp); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStructureGenerationFailed, "architect failed to produce structure")
	}

	sections := make([]entity.SectionSpec, 0, len(resp.Chapters))
	for _, ch := range resp.Chapters {
		title := strings.TrimSpace(ch.Title)
		if title == "" {
			continue
		}
		keywords := make([]string, 0, len(ch.Keywords))
		for _, k := range ch.Keywords {
			if k = strings.TrimSpace(k); k != "" {
				keywords = append(keywords, k)
			}
		}
		sections = append(sections, entity.SectionSpec{
			Title:    title,
			Summary:  strings.TrimSpace(ch.Summary),
			Keywords: keywords,
		})
	}
	if len(sections) == 0 {
		return nil, apperrors.New(apperrors.CodeStructureGenerationFailed, "architect failed to produce structure").
			WithDetail("no chapters in response")
	}
	return sections, nil
}

func structureJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"chapters"},
		"properties": map[string]any{
			"chapters": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"theme_title", "summary", "keywords"},
					"properties": map[string]any{
						"theme_title": map[string]any{"type": "string"},
						"summary":     map[string]any{"type": "string"},
						"keywords":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
				},
			},
		},
	}
}
