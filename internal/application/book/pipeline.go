package book

import (
	"context"
	"errors"
	"math"
	"time"

	"natal-book-ai/internal/config"
	"natal-book-ai/internal/domain/entity"
	llmctx "natal-book-ai/internal/domain/service"
	wfmodel "natal-book-ai/internal/workflow/model"
	wfnode "natal-book-ai/internal/workflow/node"
	workflowport "natal-book-ai/internal/workflow/port"
	workflowprompt "natal-book-ai/internal/workflow/prompt"
	apperrors "natal-book-ai/pkg/errors"
	"natal-book-ai/pkg/logger"
	"natal-book-ai/pkg/metrics"
	"natal-book-ai/pkg/tracer"
)

// Sleeper 可取消的等待
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep 默认的 Sleeper
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ImageOutcome 配图结果：Path 与 Reason 恰有一个非空（跳过时两者皆空）
type ImageOutcome struct {
	Path   string
	Reason error
}

func (o ImageOutcome) OK() bool { return o.Path != "" }

// Skipped 未尝试配图
func (o ImageOutcome) Skipped() bool { return o.Path == "" && o.Reason == nil }

// SectionOutput 单章流水线的输出
type SectionOutput struct {
	Result   entity.SectionResult
	Summary  string
	Image    ImageOutcome
	SubCalls int
}

// PipelineOptions 流水线参数
type PipelineOptions struct {
	MinGenerateWords  int
	SingleShotCeiling int
	ChunkSize         int
	ChunkDelay        time.Duration
	ImageSize         string

	Provider    string
	Model       string
	Temperature *float32
}

// PipelineOptionsFromConfig 从配置组装参数
func PipelineOptionsFromConfig(cfg *config.Config) PipelineOptions {
	return PipelineOptions{
		MinGenerateWords:  cfg.Book.MinGenerateWords,
		SingleShotCeiling: cfg.Book.SingleShotCeiling,
		ChunkSize:         cfg.Book.ChunkSize,
		ChunkDelay:        cfg.Pacing.ChunkDelay,
		ImageSize:         cfg.Image.Size,
		Provider:          cfg.LLM.DefaultProvider,
	}
}

// SectionPipeline 单章：写作 -> 摘要 -> 配图提示词 -> 配图
type SectionPipeline struct {
	compiler  *workflowprompt.Compiler
	completer workflowport.TextCompleter
	images    workflowport.ImageGenerator
	opts      PipelineOptions
	sleep     Sleeper
}

// NewSectionPipeline images 为 nil 时不配图，同时跳过摘要
func NewSectionPipeline(compiler *workflowprompt.Compiler, completer workflowport.TextCompleter, images workflowport.ImageGenerator, opts PipelineOptions) *SectionPipeline {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 750
	}
	if opts.SingleShotCeiling < opts.ChunkSize {
		opts.SingleShotCeiling = opts.ChunkSize
	}
	return &SectionPipeline{
		compiler:  compiler,
		completer: completer,
		images:    images,
		opts:      opts,
		sleep:     ContextSleep,
	}
}

// WithSleeper 替换等待实现
func (p *SectionPipeline) WithSleeper(s Sleeper) *SectionPipeline {
	p.sleep = s
	return p
}

// PartCount 超出单次上限时的分段数：round(target/chunk)，至少为 1
func PartCount(target, chunk int) int {
	if chunk <= 0 {
		return 1
	}
	n := int(math.Round(float64(target) / float64(chunk)))
	if n < 1 {
		n = 1
	}
	return n
}

// Run 生成一章。文本阶段的错误直接返回；配图阶段的错误记录在 Image 中
func (p *SectionPipeline) Run(ctx context.Context, section entity.SectionSpec, payload *entity.ChartPayload, target int) (out *SectionOutput, err error) {
	ctx, span := tracer.Start(ctx, "book.section")
	defer func() { tracer.End(span, err) }()

	out = &SectionOutput{Result: entity.SectionResult{Heading: section.Title}}

	if target < p.opts.MinGenerateWords {
		logger.Info(ctx, "section below generation threshold, skipped", "target_words", target)
		return out, nil
	}

	content, subCalls, err := p.write(ctx, section, payload, target)
	if err != nil {
		return nil, err
	}
	out.Result.Content = content
	out.SubCalls = subCalls
	metrics.SectionSubCalls.Observe(float64(subCalls))
	metrics.SectionWordCount.Observe(float64(wfnode.CountWords(content)))

	if p.images == nil {
		return out, nil
	}

	summary, err := p.summarize(ctx, content)
	if err != nil {
		return nil, err
	}
	out.Summary = summary

	out.Image = p.illustrate(ctx, summary)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out.Result.ImagePath = out.Image.Path
	return out, nil
}

func (p *SectionPipeline) write(ctx context.Context, section entity.SectionSpec, payload *entity.ChartPayload, target int) (string, int, error) {
	in := workflowprompt.SectionInput{Section: section, Payload: payload, WordTarget: target}

	if target <= p.opts.SingleShotCeiling {
		prompt, err := p.compiler.Section(ctx, in)
		if err != nil {
			return "", 0, err
		}
		text, err := p.complete(ctx, llmctx.WorkflowSectionWrite, prompt, p.opts.Temperature, nil)
		if err != nil {
			return "", 0, err
		}
		return text, 1, nil
	}

	n := PartCount(target, p.opts.ChunkSize)
	in.WordTarget = target / n
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if i > 1 {
			if err := p.sleep(ctx, p.opts.ChunkDelay); err != nil {
				return "", 0, err
			}
		}
		prompt, err := p.compiler.SectionPart(ctx, workflowprompt.PartInput{SectionInput: in, Part: i, Parts: n})
		if err != nil {
			return "", 0, err
		}
		text, err := p.complete(ctx, llmctx.WorkflowSectionPart, prompt, p.opts.Temperature, nil)
		if err != nil {
			return "", 0, err
		}
		logger.Debug(ctx, "section part written", "part", i, "parts", n, "words", wfnode.CountWords(text))
		parts = append(parts, text)
	}
	return wfnode.JoinParts(parts), n, nil
}

func (p *SectionPipeline) summarize(ctx context.Context, content string) (string, error) {
	prompt, err := p.compiler.Summarization(ctx, content)
	if err != nil {
		return "", err
	}
	return p.complete(ctx, llmctx.WorkflowSummary, prompt, wfmodel.Float32Ptr(0.2), wfmodel.IntPtr(200))
}

func (p *SectionPipeline) illustrate(ctx context.Context, summary string) ImageOutcome {
	outcome := func(reason error) ImageOutcome {
		metrics.ImageGenerationTotal.WithLabelValues("failed").Inc()
		if !errors.Is(reason, context.Canceled) {
			logger.Warn(ctx, "section image skipped", "reason", reason.Error())
		}
		return ImageOutcome{Reason: apperrors.Wrap(reason, apperrors.CodeImageGenerationFailed, "image generation failed")}
	}

	prompt, err := p.compiler.SafeImagePrompt(ctx, summary, p.opts.ImageSize)
	if err != nil {
		return outcome(err)
	}
	imagePrompt, err := p.complete(ctx, llmctx.WorkflowImagePrompt, prompt, wfmodel.Float32Ptr(0.7), wfmodel.IntPtr(300))
	if err != nil {
		return outcome(err)
	}
	imagePrompt = wfnode.StripWrappingQuotes(imagePrompt)
	logger.Debug(ctx, "sanitized image prompt", "prompt", wfnode.TruncateByRunes(imagePrompt, 200))

	path, err := p.images.GenerateImage(ctx, imagePrompt)
	if err != nil {
		return outcome(err)
	}
	if path == "" {
		return outcome(errors.New("image generator returned no path"))
	}
	metrics.ImageGenerationTotal.WithLabelValues("success").Inc()
	return ImageOutcome{Path: path}
}

func (p *SectionPipeline) complete(ctx context.Context, workflow, prompt string, temperature *float32, maxTokens *int) (string, error) {
	return p.completer.Complete(ctx, &wfmodel.CompletionInput{
		Workflow:    workflow,
		Prompt:      prompt,
		Provider:    p.opts.Provider,
		Model:       p.opts.Model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
}
