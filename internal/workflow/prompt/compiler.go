package prompt

import (
	"context"
	"fmt"
	"strings"

	"natal-book-ai/internal/domain/entity"
)

// FramingKind 引言或结语
type FramingKind string

const (
	FramingIntro FramingKind = "introduction"
	FramingOutro FramingKind = "conclusion"
)

var framingTasks = map[FramingKind]string{
	FramingIntro: "Write an overture that sets the stage for the chapters listed above. Touch on the overarching rhythm of the person's nature without anticipating the details each chapter will explore.",
	FramingOutro: "Write a closing reflection that gathers the threads of the chapters listed above. Acknowledge that this book is one interpretation of a vast inner landscape, and return the authorship of the story to the reader.",
}

// SectionInput 章节写作输入
type SectionInput struct {
	Section    entity.SectionSpec
	Payload    *entity.ChartPayload
	WordTarget int
}

// PartInput 分段写作输入，Part 从 1 开始
type PartInput struct {
	SectionInput
	Part  int
	Parts int
}

// FramingInput 引言/结语输入
type FramingInput struct {
	Kind       FramingKind
	Sections   []entity.SectionSpec
	Payload    *entity.ChartPayload
	WordTarget int
}

// Compiler 按用途渲染提示词
// 相同输入总是得到逐字节相同的输出：不读时钟，不用随机数。
type Compiler struct {
	registry *Registry
	rules    string
}

// NewCompiler 创建提示词编译器并预热全部模板
func NewCompiler() (*Compiler, error) {
	rules, err := readEmbeddedText(sectionRulesFile)
	if err != nil {
		return nil, fmt.Errorf("load section rules: %w", err)
	}
	reg := NewRegistry()
	for _, id := range AllPromptIDs {
		if _, err := reg.ChatTemplate(id); err != nil {
			return nil, fmt.Errorf("load prompt %s: %w", id, err)
		}
	}
	return &Compiler{registry: reg, rules: rules}, nil
}

func (c *Compiler) render(ctx context.Context, id PromptID, vars map[string]any) (string, error) {
	tpl, err := c.registry.ChatTemplate(id)
	if err != nil {
		return "", err
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("format prompt %s: %w", id, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("prompt %s rendered no message", id)
	}
	return msgs[0].Content, nil
}

// DataExtraction 从自然语言出生描述中抽取结构化数据
func (c *Compiler) DataExtraction(ctx context.Context, userText string) (string, error) {
	return c.render(ctx, PromptDataExtractionV1, map[string]any{
		"user_prompt": strings.TrimSpace(userText),
	})
}

// BookStructure 让模型按规模档位设计章节结构
func (c *Compiler) BookStructure(ctx context.Context, payload *entity.ChartPayload, tierLabel string) (string, error) {
	return c.render(ctx, PromptBookStructureV1, map[string]any{
		"tier":    tierLabel,
		"payload": payload.PromptText(),
	})
}

// Section 单次写完整章；无摘要与关键词的章节使用固定主题模板
func (c *Compiler) Section(ctx context.Context, in SectionInput) (string, error) {
	if in.Section.Summary == "" && len(in.Section.Keywords) == 0 {
		return c.render(ctx, PromptSectionStaticV1, map[string]any{
			"voice_rules":   c.rules,
			"section_title": in.Section.Title,
			"payload":       in.Payload.PromptText(),
			"word_target":   in.WordTarget,
		})
	}
	return c.render(ctx, PromptSectionDynamicV1, c.sectionVars(in))
}

// SectionPart 分段写作：同一主题，聚焦一个方面
func (c *Compiler) SectionPart(ctx context.Context, in PartInput) (string, error) {
	if in.Part < 1 || in.Part > in.Parts {
		return "", fmt.Errorf("part %d out of range 1..%d", in.Part, in.Parts)
	}
	vars := c.sectionVars(in.SectionInput)
	vars["part_index"] = in.Part
	vars["part_count"] = in.Parts
	return c.render(ctx, PromptSectionPartV1, vars)
}

func (c *Compiler) sectionVars(in SectionInput) map[string]any {
	summary := in.Section.Summary
	if summary == "" {
		summary = "Explore this theme as it appears in the data."
	}
	keywords := "(none specified)"
	if len(in.Section.Keywords) > 0 {
		keywords = strings.Join(in.Section.Keywords, ", ")
	}
	return map[string]any{
		"voice_rules":      c.rules,
		"section_title":    in.Section.Title,
		"section_summary":  summary,
		"section_keywords": keywords,
		"payload":          in.Payload.PromptText(),
		"word_target":      in.WordTarget,
	}
}

// Framing 引言或结语
func (c *Compiler) Framing(ctx context.Context, in FramingInput) (string, error) {
	task, ok := framingTasks[in.Kind]
	if !ok {
		return "", fmt.Errorf("unknown framing kind: %q", in.Kind)
	}
	titles := make([]string, 0, len(in.Sections))
	for i, s := range in.Sections {
		titles = append(titles, fmt.Sprintf("%d. %s", i+1, s.Title))
	}
	return c.render(ctx, PromptFramingV1, map[string]any{
		"voice_rules":    c.rules,
		"framing_kind":   string(in.Kind),
		"framing_task":   task,
		"section_titles": strings.Join(titles, "\n"),
		"payload":        in.Payload.PromptText(),
		"word_target":    in.WordTarget,
	})
}

// Summarization 2-3 句摘要，用于配图
func (c *Compiler) Summarization(ctx context.Context, sectionText string) (string, error) {
	return c.render(ctx, PromptSummarizationV1, map[string]any{
		"section_text": sectionText,
	})
}

// SafeImagePrompt 将摘要转写为不含术语、不含具体人物的图像提示词
func (c *Compiler) SafeImagePrompt(ctx context.Context, summary, imageSize string) (string, error) {
	return c.render(ctx, PromptSafeImagePromptV1, map[string]any{
		"section_summary": summary,
		"image_size":      imageSize,
	})
}
