package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"natal-book-ai/internal/application/book"
	"natal-book-ai/internal/domain/entity"
)

type planOutput struct {
	Tier           string         `json:"tier"`
	RequestedPages int            `json:"requested_pages"`
	OverheadPages  int            `json:"overhead_pages"`
	ContentPages   int            `json:"content_pages"`
	TotalWords     int            `json:"total_words"`
	Sections       []planSection  `json:"sections"`
	Framing        map[string]int `json:"framing"`
}

type planSection struct {
	Title string `json:"title"`
	Words int    `json:"words"`
}

func toPlanOutput(tier book.Tier, p *entity.BookPlan) planOutput {
	out := planOutput{
		Tier:           tier.Label,
		RequestedPages: p.RequestedPages,
		OverheadPages:  p.OverheadPages,
		ContentPages:   p.ContentPages,
		TotalWords:     p.TotalWords(),
		Framing: map[string]int{
			"preface": p.PrefaceWords,
			"intro":   p.IntroWords,
			"outro":   p.OutroWords,
		},
	}
	for i, s := range p.Sections {
		out.Sections = append(out.Sections, planSection{Title: s.Title, Words: p.WordsPerSection[i]})
	}
	return out
}

func newPlanCmd(st *state) *cobra.Command {
	f := &bookFlags{}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the word budget without calling the model",
		Long: `Allocates the page budget across sections for the static or tiered
structure source. The generated source needs a model call and is rejected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := f.request(cmd)
			if err != nil {
				return err
			}
			if err := st.load(cmd.Context()); err != nil {
				return err
			}

			plan, tier, err := st.generator.PlanStatic(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("plan failed: %w", err)
			}
			out := toPlanOutput(tier, plan)
			if f.json {
				return printJSON(cmd, out)
			}

			cmd.Printf("Tier: %s\n", out.Tier)
			cmd.Printf("Pages: %d requested, %d overhead, %d for content\n", out.RequestedPages, out.OverheadPages, out.ContentPages)
			cmd.Println()
			for i, s := range out.Sections {
				cmd.Printf("  [%d] %-32s %6d words\n", i+1, s.Title, s.Words)
			}
			cmd.Println()
			cmd.Printf("Total: %d words\n", out.TotalWords)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}
