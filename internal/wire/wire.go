//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"natal-book-ai/internal/application/book"
	"natal-book-ai/internal/config"
	"natal-book-ai/internal/domain/repository"
	"natal-book-ai/internal/infrastructure/llm"
	"natal-book-ai/internal/infrastructure/messaging"
	"natal-book-ai/internal/infrastructure/persistence/redis"
	"natal-book-ai/internal/interfaces/http/handler"
	"natal-book-ai/internal/interfaces/http/middleware"
	"natal-book-ai/internal/interfaces/http/router"
	"natal-book-ai/internal/workflow/chain"
	workflowport "natal-book-ai/internal/workflow/port"
	workflowprompt "natal-book-ai/internal/workflow/prompt"
)

// InitializeApp 初始化 HTTP 网关
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RedisSet,
		MessagingSet,
		SharedPacingSet,
		GenerationSet,
		JobSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化后台任务进程
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		RedisSet,
		MessagingSet,
		SharedPacingSet,
		GenerationSet,
		JobSet,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// InitializeGenerator 初始化命令行生成，不依赖 Redis
func InitializeGenerator(ctx context.Context, cfg *config.Config) (*Generator, func(), error) {
	wire.Build(
		LocalPacingSet,
		GenerationSet,
		wire.Struct(new(Generator), "*"),
	)
	return nil, nil, nil
}

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewJobStore,
	redis.NewRateLimiter,
	wire.Bind(new(repository.BookJobRepository), new(*redis.JobStore)),
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
	wire.Bind(new(book.JobQueue), new(*messaging.Producer)),
)

// SharedPacingSet 多进程共享限速窗口
var SharedPacingSet = wire.NewSet(
	ProvideWindowChecker,
	ProvideRequestLimiter,
)

// LocalPacingSet 可选 Redis；不可达时只用令牌桶
var LocalPacingSet = wire.NewSet(
	ProvideOptionalRedisClient,
	ProvideOptionalWindowChecker,
	ProvideRequestLimiter,
)

// GenerationSet 生成链路
var GenerationSet = wire.NewSet(
	llm.NewEinoFactory,
	wire.Bind(new(workflowport.ChatModelFactory), new(*llm.EinoFactory)),
	wire.Bind(new(workflowport.RequestLimiter), new(*llm.RequestLimiter)),
	chain.NewCompletionChain,
	wire.Bind(new(workflowport.TextCompleter), new(*chain.CompletionChain)),
	workflowprompt.NewCompiler,
	chain.NewStructureChain,
	wire.Bind(new(book.StructureProposer), new(*chain.StructureChain)),
	book.NewStructureSources,
	ProvideImageStore,
	ProvideImageGenerator,
	ProvideAllocator,
	ProvideSectionPipeline,
	ProvideRenderer,
	ProvideOrchestrator,
	ProvideExtractor,
)

// JobSet 异步任务
var JobSet = wire.NewSet(
	book.NewJobService,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewBookHandler,
	handler.NewExtractHandler,
	wire.Bind(new(handler.BookJobs), new(*book.JobService)),
	wire.Bind(new(handler.BookPlanner), new(*book.Orchestrator)),
	wire.Bind(new(handler.BirthDataExtractor), new(*book.Extractor)),
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)
