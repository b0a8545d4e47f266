package book

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"natal-book-ai/internal/application/budget"
	"natal-book-ai/internal/config"
	"natal-book-ai/internal/domain/entity"
	llmctx "natal-book-ai/internal/domain/service"
	wfmodel "natal-book-ai/internal/workflow/model"
	workflowport "natal-book-ai/internal/workflow/port"
	workflowprompt "natal-book-ai/internal/workflow/prompt"
	apperrors "natal-book-ai/pkg/errors"
	"natal-book-ai/pkg/logger"
	"natal-book-ai/pkg/metrics"
	"natal-book-ai/pkg/tracer"
)

// Stage 整书生成的阶段
type Stage string

const (
	StagePlanning   Stage = "planning"
	StageStructure  Stage = "structure_generation"
	StageSections   Stage = "generating_sections"
	StageFraming    Stage = "framing"
	StageAssembling Stage = "assembling"
	StageRendering  Stage = "rendering"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// Progress 进度事件
type Progress struct {
	Stage    Stage
	Section  int // 当前章节，从 1 开始；非章节阶段为 0
	Sections int
	Percent  int
	Message  string
}

// ProgressReporter 接收进度事件，实现不应阻塞
type ProgressReporter interface {
	Report(ctx context.Context, p Progress)
}

// ProgressFunc 函数适配器
type ProgressFunc func(ctx context.Context, p Progress)

func (f ProgressFunc) Report(ctx context.Context, p Progress) { f(ctx, p) }

// Request 一次整书生成的输入
type Request struct {
	Title string
	// Target 页数或字数，字数优先
	Target budget.Target
	Chart  *entity.ChartPayload
	// StructureSource 为空时使用配置值
	StructureSource string
}

// Result 整书生成的输出
type Result struct {
	RunID      string
	Plan       *entity.BookPlan
	Tier       Tier
	Document   *entity.BookDocument
	OutputPath string
	Images     []ImageOutcome
	Usage      llmctx.UsageSnapshot
	Duration   time.Duration
}

// MissingImages 配图失败的章节数
func (r *Result) MissingImages() int {
	n := 0
	for _, img := range r.Images {
		if img.Reason != nil {
			n++
		}
	}
	return n
}

// OrchestratorOptions 编排参数
type OrchestratorOptions struct {
	Title           string
	StructureSource string
	GenerateFraming bool
	SectionDelay    time.Duration
	Provider        string
}

// OrchestratorOptionsFromConfig 从配置组装参数
func OrchestratorOptionsFromConfig(cfg *config.Config) OrchestratorOptions {
	return OrchestratorOptions{
		Title:           cfg.Book.Title,
		StructureSource: cfg.Book.StructureSource,
		GenerateFraming: cfg.Book.GenerateFraming,
		SectionDelay:    cfg.Pacing.SectionDelay,
		Provider:        cfg.LLM.DefaultProvider,
	}
}

// Orchestrator 整书生成状态机：
// Planning -> StructureGeneration? -> GeneratingSections -> Assembling -> Rendering -> Done
type Orchestrator struct {
	allocator *budget.Allocator
	sources   StructureSources
	pipeline  *SectionPipeline
	compiler  *workflowprompt.Compiler
	completer workflowport.TextCompleter
	renderer  workflowport.BookRenderer
	opts      OrchestratorOptions

	sleep Sleeper
	now   func() time.Time
}

func NewOrchestrator(
	allocator *budget.Allocator,
	sources StructureSources,
	pipeline *SectionPipeline,
	compiler *workflowprompt.Compiler,
	completer workflowport.TextCompleter,
	renderer workflowport.BookRenderer,
	opts OrchestratorOptions,
) *Orchestrator {
	if opts.StructureSource == "" {
		opts.StructureSource = config.StructureTiered
	}
	return &Orchestrator{
		allocator: allocator,
		sources:   sources,
		pipeline:  pipeline,
		compiler:  compiler,
		completer: completer,
		renderer:  renderer,
		opts:      opts,
		sleep:     ContextSleep,
		now:       time.Now,
	}
}

// WithSleeper 替换章节间等待，同时作用于流水线
func (o *Orchestrator) WithSleeper(s Sleeper) *Orchestrator {
	o.sleep = s
	o.pipeline.WithSleeper(s)
	return o
}

// WithClock 替换时钟
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Validate 不访问网络的前置检查。对固定结构直接校验预算，
// 对模型生成的结构至少要容纳一章
func (o *Orchestrator) Validate(ctx context.Context, req *Request) error {
	if req == nil || req.Chart == nil || req.Chart.Len() == 0 {
		return apperrors.New(apperrors.CodeInvalidParam, "chart payload is required")
	}
	if req.Target.Pages <= 0 && req.Target.Words <= 0 {
		return apperrors.New(apperrors.CodeInvalidParam, "pages or words must be positive")
	}
	if err := o.allocator.CheckTarget(req.Target); err != nil {
		return err
	}
	src, err := o.source(req)
	if err != nil {
		return err
	}
	if src.RequiresNetwork() {
		requested, least := o.allocator.RequestedPages(req.Target, 1), o.allocator.MinimumPages(1)
		if requested < least {
			return apperrors.New(apperrors.CodeBudgetInfeasible, "budget infeasible").
				WithDetail(fmt.Sprintf("%d pages cannot hold a single section; need at least %d", requested, least))
		}
		return nil
	}
	_, _, err = o.planStatic(ctx, src, req)
	return err
}

// PlanStatic 仅对不需要网络的结构来源计算预算
func (o *Orchestrator) PlanStatic(ctx context.Context, req *Request) (*entity.BookPlan, Tier, error) {
	src, err := o.source(req)
	if err != nil {
		return nil, Tier{}, err
	}
	if src.RequiresNetwork() {
		return nil, Tier{}, apperrors.New(apperrors.CodeInvalidParam, "structure source needs a model call").
			WithDetail(src.Name())
	}
	return o.planStatic(ctx, src, req)
}

func (o *Orchestrator) planStatic(ctx context.Context, src StructureSource, req *Request) (*entity.BookPlan, Tier, error) {
	if err := o.allocator.CheckTarget(req.Target); err != nil {
		return nil, Tier{}, err
	}
	words := o.allocator.TargetWords(req.Target)
	sections, err := src.Sections(ctx, req.Chart, words)
	if err != nil {
		return nil, Tier{}, err
	}
	plan, err := o.allocator.Allocate(req.Target, sections)
	return plan, TierFor(words), err
}

func (o *Orchestrator) source(req *Request) (StructureSource, error) {
	name := strings.TrimSpace(req.StructureSource)
	if name == "" {
		name = o.opts.StructureSource
	}
	return o.sources.Get(name)
}

// Run 执行一次完整生成。任何文本阶段错误都会中止本次运行
func (o *Orchestrator) Run(ctx context.Context, req *Request, reporter ProgressReporter) (res *Result, err error) {
	if err := o.Validate(ctx, req); err != nil {
		return nil, err
	}
	src, err := o.source(req)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	started := o.now()
	tally := llmctx.NewUsageTally()
	ctx = llmctx.WithUsageTally(ctx, tally)
	ctx = logger.WithContext(ctx, logger.RunIDKey, runID)
	ctx, span := tracer.Start(ctx, "book.run")
	span.SetAttributes(
		attribute.String("book.run_id", runID),
		attribute.String("book.structure_source", src.Name()),
	)

	metrics.ActiveRuns.Inc()
	defer func() {
		metrics.ActiveRuns.Dec()
		status := "success"
		if err != nil {
			status = "failed"
			o.report(ctx, reporter, Progress{Stage: StageFailed, Message: err.Error()})
			logger.Error(ctx, "book generation failed", err, "duration_ms", time.Since(started).Milliseconds())
		}
		metrics.BookGenerationTotal.WithLabelValues(src.Name(), status).Inc()
		metrics.BookGenerationDuration.WithLabelValues(src.Name()).Observe(time.Since(started).Seconds())
		tracer.End(span, err)
	}()

	res = &Result{RunID: runID}

	// Planning / StructureGeneration
	o.report(ctx, reporter, Progress{Stage: StagePlanning, Percent: 0})
	words := o.allocator.TargetWords(req.Target)
	res.Tier = TierFor(words)
	if src.RequiresNetwork() {
		o.report(ctx, reporter, Progress{Stage: StageStructure, Percent: 2, Message: res.Tier.Label})
	}
	sections, err := src.Sections(ctx, req.Chart, words)
	if err != nil {
		return nil, err
	}
	plan, err := o.allocator.Allocate(req.Target, sections)
	if err != nil {
		return nil, err
	}
	res.Plan = plan
	logger.Info(ctx, "book planned",
		"structure_source", src.Name(),
		"tier", res.Tier.Label,
		"sections", len(plan.Sections),
		"requested_pages", plan.RequestedPages,
		"overhead_pages", plan.OverheadPages,
		"words_per_section", plan.WordsPerSection,
	)

	// GeneratingSections：严格串行
	n := len(plan.Sections)
	results := make([]entity.SectionResult, 0, n)
	res.Images = make([]ImageOutcome, 0, n)
	for i, section := range plan.Sections {
		o.report(ctx, reporter, Progress{
			Stage:    StageSections,
			Section:  i + 1,
			Sections: n,
			Percent:  5 + i*85/n,
			Message:  section.Title,
		})
		sctx := logger.WithContext(ctx, logger.SectionKey, section.Title)
		out, err := o.pipeline.Run(sctx, section, req.Chart, plan.WordsPerSection[i])
		if err != nil {
			return nil, err
		}
		results = append(results, out.Result)
		res.Images = append(res.Images, out.Image)
		logger.Info(sctx, "section complete",
			"index", i+1,
			"sub_calls", out.SubCalls,
			"has_image", out.Image.OK(),
		)
		if err := o.sleep(ctx, o.opts.SectionDelay); err != nil {
			return nil, err
		}
	}

	// 引言与结语可并发，二者都完成后才装配
	o.report(ctx, reporter, Progress{Stage: StageFraming, Percent: 90})
	intro, outro, err := o.framing(ctx, req.Chart, plan)
	if err != nil {
		return nil, err
	}

	// Assembling
	o.report(ctx, reporter, Progress{Stage: StageAssembling, Percent: 92})
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = o.opts.Title
	}
	if title == "" {
		title = DefaultTitle
	}
	doc := &entity.BookDocument{
		Title:         title,
		PrintDate:     o.now(),
		PrefaceText:   PrefaceText,
		PrologueText:  intro,
		EpilogueText:  outro,
		Sections:      results,
		DebugCallText: DebugCallText,
		DebugPayload:  req.Chart.DebugText(),
	}
	res.Document = doc

	// Rendering
	if o.renderer != nil {
		o.report(ctx, reporter, Progress{Stage: StageRendering, Percent: 95})
		path, err := o.renderer.Render(ctx, doc, runID)
		if err != nil {
			if !apperrors.IsAppError(err) {
				err = apperrors.Wrap(err, apperrors.CodeRenderFailed, "render failed")
			}
			return nil, err
		}
		res.OutputPath = path
	}

	res.Usage = tally.Snapshot()
	res.Duration = o.now().Sub(started)
	o.report(ctx, reporter, Progress{Stage: StageDone, Percent: 100, Message: res.OutputPath})
	logger.Info(ctx, "book generation complete",
		"output", res.OutputPath,
		"sections", len(results),
		"missing_images", res.MissingImages(),
		"llm_calls", res.Usage.Calls,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (o *Orchestrator) framing(ctx context.Context, chart *entity.ChartPayload, plan *entity.BookPlan) (intro, outro string, err error) {
	if !o.opts.GenerateFraming || o.completer == nil {
		return IntroText, OutroText, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		intro, err = o.frame(gctx, workflowprompt.FramingIntro, chart, plan, plan.IntroWords)
		return err
	})
	g.Go(func() error {
		var err error
		outro, err = o.frame(gctx, workflowprompt.FramingOutro, chart, plan, plan.OutroWords)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", "", err
	}
	return intro, outro, nil
}

func (o *Orchestrator) frame(ctx context.Context, kind workflowprompt.FramingKind, chart *entity.ChartPayload, plan *entity.BookPlan, words int) (string, error) {
	prompt, err := o.compiler.Framing(ctx, workflowprompt.FramingInput{
		Kind:       kind,
		Sections:   plan.Sections,
		Payload:    chart,
		WordTarget: words,
	})
	if err != nil {
		return "", err
	}
	return o.completer.Complete(ctx, &wfmodel.CompletionInput{
		Workflow: llmctx.WorkflowFraming,
		Prompt:   prompt,
		Provider: o.opts.Provider,
	})
}

func (o *Orchestrator) report(ctx context.Context, r ProgressReporter, p Progress) {
	logger.Debug(ctx, "book progress", "stage", string(p.Stage), "percent", p.Percent, "section", p.Section)
	if r != nil {
		r.Report(ctx, p)
	}
}
