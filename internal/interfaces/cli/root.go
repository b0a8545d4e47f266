// Package cli 命令行入口：同步生成整书、预算试算与出生信息抽取
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"natal-book-ai/internal/application/book"
	"natal-book-ai/internal/domain/entity"
)

// Generator 整书编排
type Generator interface {
	Run(ctx context.Context, req *book.Request, reporter book.ProgressReporter) (*book.Result, error)
	PlanStatic(ctx context.Context, req *book.Request) (*entity.BookPlan, book.Tier, error)
}

// BirthDataExtractor 出生信息抽取
type BirthDataExtractor interface {
	Extract(ctx context.Context, text string) (*entity.BirthData, error)
}

// Deps 命令依赖；Load 在首次执行子命令时调用，使 --help 等不需要配置
type Deps struct {
	Version string
	Load    func(ctx context.Context) (Generator, BirthDataExtractor, error)
}

// NewRootCmd 创建根命令
func NewRootCmd(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "bookgen",
		Short:         "Generate personalised natal-chart interpretation books",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	st := &state{deps: deps}
	root.AddCommand(
		newGenerateCmd(st),
		newPlanCmd(st),
		newExtractCmd(st),
		newVersionCmd(deps.Version),
	)
	return root
}

type state struct {
	deps      Deps
	generator Generator
	extractor BirthDataExtractor
}

func (s *state) load(ctx context.Context) error {
	if s.generator != nil {
		return nil
	}
	if s.deps.Load == nil {
		return fmt.Errorf("services not configured")
	}
	g, e, err := s.deps.Load(ctx)
	if err != nil {
		return err
	}
	s.generator, s.extractor = g, e
	return nil
}

// readChart path 为 "-" 时从标准输入读取
func readChart(cmd *cobra.Command, path string) (*entity.ChartPayload, error) {
	if path == "" {
		return nil, fmt.Errorf("--chart is required")
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read chart: %w", err)
	}
	return entity.ParseChartPayload(data)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("bookgen version %s\n", version)
		},
	}
}
