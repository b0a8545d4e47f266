package wire

import (
	"context"

	"natal-book-ai/internal/application/book"
	"natal-book-ai/internal/application/budget"
	"natal-book-ai/internal/config"
	"natal-book-ai/internal/infrastructure/llm"
	"natal-book-ai/internal/infrastructure/messaging"
	"natal-book-ai/internal/infrastructure/persistence/redis"
	"natal-book-ai/internal/infrastructure/render"
	"natal-book-ai/internal/infrastructure/storage"
	"natal-book-ai/internal/interfaces/http/handler"
	workflowport "natal-book-ai/internal/workflow/port"
	workflowprompt "natal-book-ai/internal/workflow/prompt"
	"natal-book-ai/pkg/logger"
)

// Worker 后台任务进程的依赖
type Worker struct {
	Jobs  *book.JobService
	Redis *redis.Client
}

// Generator 命令行同步生成的依赖
type Generator struct {
	Orchestrator *book.Orchestrator
	Extractor    *book.Extractor
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideOptionalRedisClient 仅在启用共享限速时连接；连接失败退回进程内限速
func ProvideOptionalRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Pacing.Distributed {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Warn(ctx, "redis not available, using in-process pacing", "error", err.Error())
		return nil, func() {}, nil
	}
	return client, func() { client.Close() }, nil
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	return messaging.NewProducer(redisClient.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))
}

// ProvideWindowChecker 共享滑动窗口
func ProvideWindowChecker(limiter *redis.RateLimiter) llm.WindowChecker {
	return limiter
}

func ProvideOptionalWindowChecker(client *redis.Client) llm.WindowChecker {
	if client == nil {
		return nil
	}
	return redis.NewRateLimiter(client)
}

// ProvideRequestLimiter window 为 nil 或未启用共享限速时只用令牌桶
func ProvideRequestLimiter(cfg *config.Config, window llm.WindowChecker) *llm.RequestLimiter {
	limiter := llm.NewRequestLimiterFromConfig(&cfg.Pacing)
	if cfg.Pacing.Distributed && window != nil {
		limiter.WithWindow(window, redis.BuildLLMRateLimitKey(cfg.LLM.DefaultProvider))
	}
	return limiter
}

func ProvideImageStore(cfg *config.Config) *storage.FileStore {
	return storage.NewFileStore(cfg.Output.ImagesDir)
}

// ProvideImageGenerator image.enabled=false 时返回 nil，流水线跳过配图
func ProvideImageGenerator(cfg *config.Config, store *storage.FileStore, limiter *llm.RequestLimiter) workflowport.ImageGenerator {
	if !cfg.Image.Enabled {
		return nil
	}
	if limiter == nil {
		return llm.NewImageClient(&cfg.Image, store, nil)
	}
	return llm.NewImageClient(&cfg.Image, store, limiter)
}

func ProvideAllocator(cfg *config.Config) *budget.Allocator {
	return budget.NewAllocatorFromConfig(&cfg.Book)
}

func ProvideSectionPipeline(cfg *config.Config, compiler *workflowprompt.Compiler, completer workflowport.TextCompleter, images workflowport.ImageGenerator) *book.SectionPipeline {
	return book.NewSectionPipeline(compiler, completer, images, book.PipelineOptionsFromConfig(cfg))
}

func ProvideRenderer(cfg *config.Config) (workflowport.BookRenderer, error) {
	return render.New(&cfg.Output)
}

func ProvideOrchestrator(
	cfg *config.Config,
	allocator *budget.Allocator,
	sources book.StructureSources,
	pipeline *book.SectionPipeline,
	compiler *workflowprompt.Compiler,
	completer workflowport.TextCompleter,
	renderer workflowport.BookRenderer,
) *book.Orchestrator {
	return book.NewOrchestrator(allocator, sources, pipeline, compiler, completer, renderer, book.OrchestratorOptionsFromConfig(cfg))
}

func ProvideExtractor(cfg *config.Config, compiler *workflowprompt.Compiler, completer workflowport.TextCompleter) *book.Extractor {
	return book.NewExtractor(compiler, completer, cfg.LLM.DefaultProvider)
}

// ProvideHealthHandler 就绪检查包含 Redis
func ProvideHealthHandler(cfg *config.Config, redisClient *redis.Client) *handler.HealthHandler {
	return handler.NewHealthHandler(cfg.App.Version, map[string]handler.HealthChecker{
		"redis": redisClient,
	})
}
