// Package main 整书生成任务执行器入口
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"natal-book-ai/internal/config"
	"natal-book-ai/internal/domain/service"
	"natal-book-ai/internal/infrastructure/eino/callback"
	"natal-book-ai/internal/infrastructure/messaging"
	"natal-book-ai/internal/wire"
	"natal-book-ai/pkg/logger"
	"natal-book-ai/pkg/tracer"
)

// dlqAlertThreshold 死信数量告警阈值
const dlqAlertThreshold = 10

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "book-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	callback.Init(service.ContextUsageRecorder{})

	worker, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	streamCfg := cfg.Messaging.RedisStream
	n := streamCfg.WorkerConcurrency
	if n <= 0 {
		n = 1
	}

	handler := func(ctx context.Context, msg *messaging.Message) error {
		var payload messaging.BookJobMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return messaging.Permanent(err)
		}
		if payload.JobID == "" {
			return messaging.Permanent(fmt.Errorf("message %s has no job id", msg.ID))
		}
		return worker.Jobs.Execute(ctx, payload.JobID)
	}

	consumers := make([]*messaging.Consumer, 0, n)
	for i := 0; i < n; i++ {
		consumer := messaging.NewConsumer(worker.Redis.Redis(), messaging.ConsumerConfig{
			Stream:        messaging.StreamBookGen,
			Group:         messaging.ConsumerGroupBookWorker.WithPrefix(streamCfg.ConsumerGroupPrefix),
			ConsumerName:  consumerName(i),
			BlockTimeout:  streamCfg.BlockTimeout,
			ClaimInterval: streamCfg.ClaimInterval,
			RetryLimit:    streamCfg.RetryLimit,
			Backoff:       messaging.BackoffFromConfig(streamCfg.RetryBackoff),
		})
		consumer.RegisterHandler(messaging.MessageTypeBookGenerate, handler)
		if err := consumer.Start(ctx); err != nil {
			logger.Fatal(ctx, "failed to start consumer", err)
		}
		consumers = append(consumers, consumer)
	}
	go consumers[0].Monitor(ctx, dlqAlertThreshold)

	logger.Info(ctx, "book-worker started", "consumers", n)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// 先停止拉取，等正在生成的书完成后再断开
	logger.Info(ctx, "book-worker shutting down")
	for _, c := range consumers {
		c.Stop()
	}
	for _, c := range consumers {
		<-c.Done()
	}
	logger.Info(ctx, "book-worker exited")
}

func consumerName(i int) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%d", host, os.Getpid(), i)
}
