// Package main 命令行同步生成入口
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"natal-book-ai/internal/config"
	"natal-book-ai/internal/domain/service"
	"natal-book-ai/internal/infrastructure/eino/callback"
	"natal-book-ai/internal/interfaces/cli"
	"natal-book-ai/internal/wire"
	"natal-book-ai/pkg/logger"
)

// Version 构建时注入
var Version = "dev"

func main() {
	_ = godotenv.Load()

	var cleanup func()
	defer func() {
		if cleanup != nil {
			cleanup()
		}
	}()

	root := cli.NewRootCmd(cli.Deps{
		Version: Version,
		Load: func(ctx context.Context) (cli.Generator, cli.BirthDataExtractor, error) {
			cfg, err := config.Load()
			if err != nil {
				return nil, nil, fmt.Errorf("load config: %w", err)
			}
			logger.InitWithWriter(os.Stderr, cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
			callback.Init(service.ContextUsageRecorder{})

			gen, c, err := wire.InitializeGenerator(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			cleanup = c
			return gen.Orchestrator, gen.Extractor, nil
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if cleanup != nil {
			cleanup()
		}
		os.Exit(1)
	}
}
