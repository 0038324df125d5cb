package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for researchstream.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "researchstream",
		Short: "Stream company research reports from a research server",
		Long: `researchstream requests company research reports and renders them while
they stream in.

The server answers GET /research?company=...&criteria=... with a stream of
text chunks: progress messages first, then the report itself after a
<REPORT_STREAM> marker. Every finished run is stored in a local history
database so earlier reports can be shown again.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewResearchCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
