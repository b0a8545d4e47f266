package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newExtractCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "extract [description]",
		Short: "Extract structured birth data from free text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.load(cmd.Context()); err != nil {
				return err
			}
			if st.extractor == nil {
				return fmt.Errorf("extractor not configured")
			}
			data, err := st.extractor.Extract(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("extraction failed: %w", err)
			}
			return printJSON(cmd, data)
		},
	}
}
