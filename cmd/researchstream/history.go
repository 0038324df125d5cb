package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/researchstream/internal/config"
	"github.com/nao1215/researchstream/internal/database"
	"github.com/nao1215/researchstream/internal/model"
	"github.com/nao1215/researchstream/internal/report"
	"github.com/spf13/cobra"
)

// Report formats accepted by --format.
const (
	formatText     = "text"
	formatMarkdown = "markdown"
	formatJSON     = "json"
	formatHTML     = "html"
)

// errNoHistory is returned when the history database has not been created yet.
var errNoHistory = errors.New("no research history found (run 'researchstream research' first)")

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [company]",
		Short: "List stored research runs",
		Long: `History lists the research runs stored in the history database,
newest first. Give a company to list only its runs.

Examples:
  # List the 20 most recent runs as a Markdown table
  researchstream history

  # List every run for one company as JSON
  researchstream history "Acme Corp" --limit 0 --format json

  # Show a stored report
  researchstream history show 42

  # Show the latest report for a company as Markdown
  researchstream history latest "Acme Corp" -f markdown`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.PersistentFlags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")
	cmd.PersistentFlags().StringP("format", "f", "",
		"Output format: text, markdown, json or html")
	cmd.Flags().IntP("limit", "n", 20,
		"Maximum number of runs to list (0 lists all)")

	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryLatestCmd())
	cmd.AddCommand(newHistoryDeleteCmd())
	cmd.AddCommand(newHistoryCompaniesCmd())

	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored research report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			return withHistory(cmd, func(db *database.HistoryDB) error {
				run, err := db.GetRun(cmd.Context(), id)
				if err != nil {
					return err
				}
				return writeRun(cmd, run)
			})
		},
	}
}

func newHistoryLatestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest <company>",
		Short: "Show the most recent research report for a company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, func(db *database.HistoryDB) error {
				run, err := db.LatestRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeRun(cmd, run)
			})
		},
	}
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored research run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			return withHistory(cmd, func(db *database.HistoryDB) error {
				if err := db.DeleteRun(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted run #%d\n", id)
				return nil
			})
		},
	}
}

func newHistoryCompaniesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "companies",
		Short: "List companies with stored research runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withHistory(cmd, func(db *database.HistoryDB) error {
				companies, err := db.ListCompanies(cmd.Context())
				if err != nil {
					return err
				}
				for _, company := range companies {
					fmt.Fprintln(cmd.OutOrStdout(), company)
				}
				return nil
			})
		},
	}
}

// runHistoryCmd lists stored runs.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	var company string
	if len(args) == 1 {
		company = args[0]
	}

	return withHistory(cmd, func(db *database.HistoryDB) error {
		runs, err := db.ListRuns(cmd.Context(), company, limit)
		if err != nil {
			return err
		}

		w, err := historyWriter(cmd, formatMarkdown)
		if err != nil {
			return err
		}
		_, err = w.WriteSummary(runs)
		return err
	})
}

// withHistory opens the existing history database and calls f with it.
func withHistory(cmd *cobra.Command, f func(db *database.HistoryDB) error) error {
	dir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dir, opts)
	if err != nil {
		return fmt.Errorf("%w: %w", errNoHistory, err)
	}
	defer db.Close()

	return f(db)
}

// writeRun writes one stored run; the default format is plain text.
func writeRun(cmd *cobra.Command, run *model.Run) error {
	w, err := historyWriter(cmd, formatText)
	if err != nil {
		return err
	}
	_, err = w.Write(run)
	return err
}

// historyWriter returns the writer for --format, or for def when the flag
// is empty.
func historyWriter(cmd *cobra.Command, def string) (report.Writer, error) {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = def
	}
	return writerForFormat(format, cmd.OutOrStdout(), getVerboseFlag(cmd))
}

// writerForFormat creates a report writer by format name.
func writerForFormat(format string, w io.Writer, verbose bool) (report.Writer, error) {
	switch format {
	case formatText:
		return report.NewTextWriter(w, report.WithVerbose(verbose)), nil
	case formatMarkdown:
		return report.NewMarkdownWriter(w), nil
	case formatJSON:
		return report.NewJSONWriter(w, report.WithPrettyPrint(), report.WithVersion(getVersion())), nil
	case formatHTML:
		return report.NewHTMLWriter(w), nil
	default:
		return nil, fmt.Errorf("unknown format %q (use text, markdown, json or html)", format)
	}
}

// parseRunID parses a run ID argument.
func parseRunID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid run ID %q", s)
	}
	return id, nil
}
