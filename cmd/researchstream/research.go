package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/researchstream/internal/config"
	"github.com/nao1215/researchstream/internal/database"
	"github.com/nao1215/researchstream/internal/log"
	"github.com/nao1215/researchstream/internal/model"
	"github.com/nao1215/researchstream/internal/page"
	"github.com/nao1215/researchstream/internal/pipeline"
	"github.com/nao1215/researchstream/internal/report"
	"github.com/nao1215/researchstream/internal/research"
	"github.com/nao1215/researchstream/internal/transport"
	"github.com/spf13/cobra"
)

// NewResearchCmd creates the research command.
func NewResearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "research [company...]",
		Short: "Request a research report and render it as it streams",
		Long: `Research enters each company into the research page, checks the selected
criteria and clicks the start button. The streamed answer is rendered live
on standard output.

With the sentinel variant (default) progress messages are shown until the
server sends <REPORT_STREAM>; after that the report is accumulated. With the
replace variant every chunk replaces what is shown.

Examples:
  # Research one company with all built-in topics
  researchstream research "Acme Corp"

  # Select criteria
  researchstream research "Acme Corp" -C background,recent_news

  # Use your own page markup
  researchstream research "Acme Corp" --page research.html

  # Research several companies concurrently and save Markdown reports
  researchstream research "Acme Corp" "Globex" --markdown -o reports/acme.md

  # Reach the server through a SOCKS5 proxy
  researchstream research --proxy 127.0.0.1:9050 "Acme Corp"`,
		Args: cobra.ArbitraryArgs,
		RunE: runResearchCmd,
	}

	// Server flags
	cmd.Flags().StringP("server", "s", config.DefaultServerURL,
		"Base URL of the research server")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for one research request including the whole stream")
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false,
		"Route requests through an embedded Tor daemon")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Page flags
	cmd.Flags().StringSliceP("criteria", "C", nil,
		"Criteria checkbox IDs to check (default: all built-in topics)")
	cmd.Flags().String("page", "",
		"Research page markup to load instead of the built-in page")

	// Rendering flags
	cmd.Flags().String("variant", string(config.DefaultVariant),
		`Rendering variant: "sentinel" or "replace"`)
	cmd.Flags().Int("buffer-size", config.DefaultBufferSize,
		"Maximum size of one read from the response body")
	cmd.Flags().Bool("cancel-previous", false,
		"Cancel an in-flight research request when a new one starts")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of companies researched concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .researchstream in current or home directory)")

	// Report flags
	cmd.Flags().Bool("text", false,
		"Output a plain text report")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output a Markdown report")
	cmd.Flags().BoolP("json", "j", false,
		"Output a JSON report")
	cmd.Flags().Bool("sanitize", false,
		"Sanitize report HTML before writing it")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to the specified file path (creates directories if needed)")
	cmd.Flags().BoolP("quiet", "q", false,
		"Do not render the stream live")
	cmd.Flags().Bool("no-history", false,
		"Do not save the run to the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	cmd.MarkFlagsMutuallyExclusive("text", "markdown", "json")
	cmd.MarkFlagsMutuallyExclusive("proxy", "tor")

	return cmd
}

// runResearchCmd executes the research command.
func runResearchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runResearch(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags and the
// configuration file. Flags given on the command line win over the file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error

	cfg.ServerURL, err = flags.GetString("server")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = flags.GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.ProxyAddress, err = flags.GetString("proxy")
	if err != nil {
		return nil, err
	}

	cfg.UseTor, err = flags.GetBool("tor")
	if err != nil {
		return nil, err
	}

	cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout")
	if err != nil {
		return nil, err
	}

	if flags.Changed("criteria") {
		cfg.Criteria, err = flags.GetStringSlice("criteria")
		if err != nil {
			return nil, err
		}
	}

	cfg.PagePath, err = flags.GetString("page")
	if err != nil {
		return nil, err
	}

	variant, err := flags.GetString("variant")
	if err != nil {
		return nil, err
	}
	cfg.Variant = model.Variant(variant)

	cfg.BufferSize, err = flags.GetInt("buffer-size")
	if err != nil {
		return nil, err
	}

	cfg.CancelPrevious, err = flags.GetBool("cancel-previous")
	if err != nil {
		return nil, err
	}

	cfg.BatchSize, err = flags.GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicitly given config file must exist. Without one, a missing
	// file means an empty configuration.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.ServerConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.ServerConfigs = &config.File{
			Servers: make(map[string]config.ServerConfig),
		}
	}

	if !flags.Changed("server") && cfg.ServerConfigs.Server != "" {
		cfg.ServerURL = cfg.ServerConfigs.Server
	}

	settings := cfg.ServerSettings()
	if !flags.Changed("criteria") && len(settings.Criteria) > 0 {
		cfg.Criteria = settings.Criteria
	}
	if !flags.Changed("variant") && settings.Variant != "" {
		cfg.Variant = model.Variant(settings.Variant)
	}

	cfg.TextReport, err = flags.GetBool("text")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = flags.GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.JSONReport, err = flags.GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.Sanitize, err = flags.GetBool("sanitize")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = flags.GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.Quiet, err = flags.GetBool("quiet")
	if err != nil {
		return nil, err
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory

	cfg.DBDir, err = flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Companies = args

	return cfg, nil
}

// setupLogger creates a structured logger that masks sensitive values.
func setupLogger(w io.Writer, verbose bool) *slog.Logger {
	return log.NewSecureLogger(w, verbose)
}

// runResearch executes the research.
func runResearch(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	if len(cfg.Companies) == 0 {
		return errors.New("no companies provided (specify one or more company names as arguments)")
	}

	logger.Info("starting research",
		"companies", cfg.Companies,
		"server", cfg.ServerURL,
		"variant", cfg.Variant,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.HistoryDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
		logger.Info("history database opened", "path", db.Path())
	}

	newDocument, err := documentFactory(cfg, logger)
	if err != nil {
		return err
	}

	client, stop, err := newClient(ctx, cfg, logger, stderr)
	if err != nil {
		return err
	}
	defer stop()

	output, closeOutput, err := openReportOutput(cfg, stdout)
	if err != nil {
		return err
	}
	defer closeOutput()

	var writer report.Writer
	if wantsReport(cfg) {
		writer = newReportWriter(cfg, output)
	}

	if len(cfg.Companies) == 1 {
		return runSingle(ctx, cfg, client, db, newDocument, writer, logger, stdout, stderr)
	}
	return runBatch(ctx, cfg, client, db, newDocument, writer, logger, stderr)
}

// runSingle researches one company by clicking the page's start button.
// The stream is mirrored to the terminal while it arrives.
func runSingle(
	ctx context.Context,
	cfg *config.Config,
	client *transport.Client,
	db *database.HistoryDB,
	newDocument func() (*page.Document, error),
	writer report.Writer,
	logger *slog.Logger,
	stdout, stderr io.Writer,
) error {
	company := cfg.Companies[0]

	prepare := &pipeline.PreparePageStep{
		NewDocument: newDocument,
		Criteria:    model.Criteria(cfg.Criteria),
	}
	job := pipeline.NewJob(company)
	if err := prepare.Do(ctx, job); err != nil {
		return err
	}
	doc := job.Document

	var (
		mu     sync.Mutex
		run    *model.Run
		runErr error
	)
	renderer, err := research.New(doc, client, append(rendererOptions(cfg, logger),
		research.WithRunCallback(func(r *model.Run) {
			mu.Lock()
			defer mu.Unlock()
			run = r
		}),
		research.WithErrorHandler(func(err error) {
			mu.Lock()
			defer mu.Unlock()
			runErr = err
		}),
	)...)
	if err != nil {
		return err
	}
	renderer.Bind()

	var live *page.TerminalSink
	if !cfg.Quiet {
		// A report written to stdout must not be mixed with the live view.
		liveOut := stdout
		if writer != nil && cfg.ReportFile == "" {
			liveOut = stderr
		}
		live = page.NewTerminalSink(liveOut)
		doc.Report().Mirror(live)
		fmt.Fprintf(stderr, "Researching %s...\n", company)
	}

	doc.Button().Click(ctx)
	doc.Button().Wait()

	if live != nil {
		if err := live.Finish(); err != nil {
			logger.Warn("failed to render stream", "error", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()

	if run == nil {
		return runErr
	}

	if !cfg.Quiet {
		fmt.Fprintf(stderr, "Research %s in %s (%d chunks)\n",
			outcome(run), run.Duration().Round(time.Millisecond), run.Chunks)
	}

	if db != nil {
		saveRun(ctx, db, run, logger, stderr, cfg.Quiet)
	}

	if writer != nil {
		if _, err := writer.Write(run); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	return runErr
}

// runBatch researches several companies concurrently, each on its own page.
func runBatch(
	ctx context.Context,
	cfg *config.Config,
	client *transport.Client,
	db *database.HistoryDB,
	newDocument func() (*page.Document, error),
	writer report.Writer,
	logger *slog.Logger,
	stderr io.Writer,
) error {
	if !cfg.Quiet {
		fmt.Fprintf(stderr, "Starting batch research of %d companies (concurrency: %d)...\n\n",
			len(cfg.Companies), cfg.BatchSize)
	}
	startTime := time.Now()

	// Shared by every job so concurrent reports do not interleave.
	var writeStep *pipeline.WriteReportStep
	if writer != nil {
		writeStep = &pipeline.WriteReportStep{Writer: writer}
	}

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			p := pipeline.New(
				pipeline.WithLogger(logger),
				pipeline.WithContinueOnError(true),
			)
			p.AddSteps(
				&pipeline.PreparePageStep{
					NewDocument: newDocument,
					Criteria:    model.Criteria(cfg.Criteria),
				},
				&pipeline.RenderStep{
					NewRenderer: func(doc *page.Document) (*research.Renderer, error) {
						return research.New(doc, client, rendererOptions(cfg, logger)...)
					},
				},
			)
			if db != nil {
				p.AddStep(&pipeline.SaveHistoryStep{DB: db})
			}
			if writeStep != nil {
				p.AddStep(writeStep)
			}
			return p
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	var (
		mu     sync.Mutex
		failed int
	)
	err := bp.ProcessBatchWithCallback(ctx, cfg.Companies, func(job *pipeline.Job, index int) {
		mu.Lock()
		defer mu.Unlock()

		if job.Err() != nil {
			failed++
		}
		if cfg.Quiet {
			return
		}
		if job.Run == nil {
			fmt.Fprintf(stderr, "[%d/%d] %s: %v\n", index+1, len(cfg.Companies), job.Company, job.Err())
			return
		}
		fmt.Fprintf(stderr, "[%d/%d] %s: %s (%d chunks)\n",
			index+1, len(cfg.Companies), job.Company, outcome(job.Run), job.Run.Chunks)
	})

	if !cfg.Quiet {
		fmt.Fprintf(stderr, "\nBatch research completed in %s\n", time.Since(startTime).Round(time.Millisecond))
	}

	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d research runs failed", failed, len(cfg.Companies))
	}
	return nil
}

// rendererOptions returns the renderer options shared by every run.
func rendererOptions(cfg *config.Config, logger *slog.Logger) []research.Option {
	return []research.Option{
		research.WithVariant(cfg.Variant),
		research.WithBufferSize(cfg.BufferSize),
		research.WithCancelPrevious(cfg.CancelPrevious),
		research.WithServer(cfg.ServerURL),
		research.WithLogger(logger),
	}
}

// documentFactory returns a function creating a fresh research page for
// every run. A page file is read once; the built-in page has one checkbox
// per known topic plus one for every unknown criterion.
func documentFactory(cfg *config.Config, logger *slog.Logger) (func() (*page.Document, error), error) {
	if cfg.PagePath != "" {
		data, err := os.ReadFile(cfg.PagePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read page: %w", err)
		}
		if _, err := page.Load(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("invalid page %s: %w", cfg.PagePath, err)
		}
		return func() (*page.Document, error) {
			return page.Load(bytes.NewReader(data))
		}, nil
	}

	if cfg.Criteria == nil {
		cfg.Criteria = model.TopicIDs()
	}

	var unknown []string
	seen := make(map[string]bool)
	for _, id := range model.Criteria(cfg.Criteria).Unknown(model.TopicIDs()) {
		if !seen[id] {
			seen[id] = true
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		logger.Warn("criteria are not built-in topics; sending them anyway", "criteria", unknown)
	}

	return func() (*page.Document, error) {
		doc := page.NewDocument(model.TopicIDs()...)
		for _, id := range unknown {
			if err := doc.AddCheckbox(id, false); err != nil {
				return nil, err
			}
		}
		return doc, nil
	}, nil
}

// newClient creates the research client. The returned stop function
// releases an embedded Tor daemon when one was started.
func newClient(ctx context.Context, cfg *config.Config, logger *slog.Logger, stderr io.Writer) (*transport.Client, func(), error) {
	settings := cfg.ServerSettings()
	opts := []transport.Option{
		transport.WithTimeout(cfg.Timeout),
		transport.WithResearchPath(cfg.ResearchPath),
		transport.WithUserAgent(cfg.UserAgent),
		transport.WithCookie(settings.Cookie),
		transport.WithHeaders(settings.Headers),
		transport.WithLogger(logger),
	}

	if cfg.UseTor {
		return startEmbeddedTor(ctx, cfg, opts, logger, stderr)
	}

	if cfg.ProxyAddress != "" {
		opts = append(opts, transport.WithProxy(cfg.ProxyAddress))
	}

	client, err := transport.New(cfg.ServerURL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create research client: %w", err)
	}

	if cfg.ProxyAddress != "" {
		status := client.CheckProxy(ctx)
		if status != transport.ProxyStatusOK {
			return nil, nil, fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)",
				status.Err(), cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
	}

	return client, func() {}, nil
}

// startEmbeddedTor starts an embedded Tor daemon using tornago and returns
// a client routed through it.
func startEmbeddedTor(
	ctx context.Context,
	cfg *config.Config,
	opts []transport.Option,
	logger *slog.Logger,
	stderr io.Writer,
) (*transport.Client, func(), error) {
	if !cfg.Quiet {
		fmt.Fprintln(stderr, "Starting embedded Tor daemon...")
		fmt.Fprintf(stderr, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")
	}

	embeddedTor := transport.NewEmbeddedTor(
		transport.WithStartupTimeout(cfg.TorStartupTimeout),
	)
	if err := embeddedTor.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	logger.Info("embedded Tor daemon started",
		"socksAddr", embeddedTor.SocksAddr(),
		"controlAddr", embeddedTor.ControlAddr(),
	)

	stop := func() {
		logger.Info("stopping embedded Tor daemon...")
		if err := embeddedTor.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	client, err := embeddedTor.NewClient(cfg.ServerURL, opts...)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("failed to create research client: %w", err)
	}
	return client, stop, nil
}

// wantsReport reports whether a formatted report was requested.
func wantsReport(cfg *config.Config) bool {
	return cfg.TextReport || cfg.MarkdownReport || cfg.JSONReport || cfg.ReportFile != ""
}

// newReportWriter creates the report writer for the configured format.
// Without a format flag the report HTML is written as received.
func newReportWriter(cfg *config.Config, w io.Writer) report.Writer {
	var sanitizer *report.Sanitizer
	if cfg.Sanitize {
		sanitizer = report.NewSanitizer()
	}

	if cfg.JSONReport {
		opts := []report.JSONWriterOption{
			report.WithPrettyPrint(),
			report.WithVersion(getVersion()),
		}
		if sanitizer != nil {
			opts = append(opts, report.WithJSONSanitizer(sanitizer))
		}
		return report.NewJSONWriter(w, opts...)
	}

	opts := []report.Option{report.WithVerbose(cfg.Verbose)}
	if sanitizer != nil {
		opts = append(opts, report.WithSanitizer(sanitizer))
	}

	switch {
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w, opts...)
	case cfg.TextReport:
		return report.NewTextWriter(w, opts...)
	default:
		return report.NewHTMLWriter(w, opts...)
	}
}

// openReportOutput returns the report destination: the report file when
// one is configured, stdout otherwise.
func openReportOutput(cfg *config.Config, stdout io.Writer) (io.Writer, func(), error) {
	if cfg.ReportFile == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may contain sensitive information that should only be readable by the owner.
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil //nolint:errcheck // Best effort close after writes
}

// saveRun stores a finished run in the history database.
func saveRun(ctx context.Context, db *database.HistoryDB, run *model.Run, logger *slog.Logger, stderr io.Writer, quiet bool) {
	id, err := db.SaveRun(ctx, run)
	if err != nil {
		logger.Error("failed to save research run", "company", run.Query.Company, "error", err)
		return
	}
	logger.Info("research run saved", "id", id, "company", run.Query.Company)
	if !quiet {
		fmt.Fprintf(stderr, "Saved to history as run #%d\n", id)
	}
}

// outcome is a one-word description of how a run ended.
func outcome(run *model.Run) string {
	switch {
	case run.Failed():
		return "failed"
	case run.StatusCode != 0 && (run.StatusCode < 200 || run.StatusCode > 299):
		return fmt.Sprintf("completed with HTTP %d", run.StatusCode)
	default:
		return "completed"
	}
}
