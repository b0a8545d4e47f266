package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"natal-book-ai/internal/application/book"
	"natal-book-ai/internal/application/budget"
	"natal-book-ai/internal/config"
)

type bookFlags struct {
	chart     string
	pages     int
	words     int
	structure string
	title     string
	json      bool
}

func (f *bookFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.chart, "chart", "c", "", "chart JSON file, or - for stdin")
	cmd.Flags().IntVarP(&f.pages, "pages", "p", 0, "target page count")
	cmd.Flags().IntVarP(&f.words, "words", "w", 0, "target word count (overrides --pages)")
	cmd.Flags().StringVarP(&f.structure, "structure", "s", "", "structure source: static, tiered or generated")
	cmd.Flags().BoolVar(&f.json, "json", false, "output as JSON")
}

func (f *bookFlags) request(cmd *cobra.Command) (*book.Request, error) {
	switch f.structure {
	case "", config.StructureStatic, config.StructureTiered, config.StructureGenerated:
	default:
		return nil, fmt.Errorf("unknown structure source %q", f.structure)
	}
	chart, err := readChart(cmd, f.chart)
	if err != nil {
		return nil, err
	}
	return &book.Request{
		Title:           f.title,
		Target:          budget.Target{Pages: f.pages, Words: f.words},
		Chart:           chart,
		StructureSource: f.structure,
	}, nil
}

type generateSummary struct {
	RunID         string `json:"run_id"`
	Output        string `json:"output"`
	Tier          string `json:"tier"`
	Sections      int    `json:"sections"`
	MissingImages int    `json:"missing_images"`
	LLMCalls      int    `json:"llm_calls"`
	PromptTokens  int    `json:"prompt_tokens"`
	OutputTokens  int    `json:"completion_tokens"`
	DurationMs    int64  `json:"duration_ms"`
}

func newGenerateCmd(st *state) *cobra.Command {
	f := &bookFlags{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a complete book",
		Long: `Generates every section in order, illustrates each one when images are enabled,
and renders the assembled book. Image failures leave a section without artwork;
any text failure aborts the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := f.request(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := st.load(ctx); err != nil {
				return err
			}

			var reporter book.ProgressReporter
			if !f.json {
				reporter = book.ProgressFunc(func(_ context.Context, p book.Progress) {
					if p.Section > 0 {
						cmd.Printf("[%3d%%] %s %d/%d: %s\n", p.Percent, p.Stage, p.Section, p.Sections, p.Message)
						return
					}
					cmd.Printf("[%3d%%] %s\n", p.Percent, p.Stage)
				})
			}

			res, err := st.generator.Run(ctx, req, reporter)
			if err != nil {
				return fmt.Errorf("generation failed: %w", err)
			}

			summary := generateSummary{
				RunID:         res.RunID,
				Output:        res.OutputPath,
				Tier:          res.Tier.Label,
				Sections:      len(res.Plan.Sections),
				MissingImages: res.MissingImages(),
				LLMCalls:      res.Usage.Calls,
				PromptTokens:  res.Usage.PromptTokens,
				OutputTokens:  res.Usage.CompletionTokens,
				DurationMs:    res.Duration.Milliseconds(),
			}
			if f.json {
				return printJSON(cmd, summary)
			}
			cmd.Printf("Book written to %s\n", summary.Output)
			cmd.Printf("  sections: %d, missing images: %d, llm calls: %d\n", summary.Sections, summary.MissingImages, summary.LLMCalls)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "book title")
	return cmd
}
