package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/researchstream/internal/config"
	"github.com/nao1215/researchstream/internal/database"
	"github.com/nao1215/researchstream/internal/model"
	"github.com/nao1215/researchstream/internal/page"
	"github.com/nao1215/researchstream/internal/report"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// researchServer answers every research request with status and the body
// returned by body, in a single write. Received queries are sent on the
// returned channel.
func researchServer(t *testing.T, status int, body func(q url.Values) string) (*httptest.Server, <-chan url.Values) {
	t.Helper()

	queries := make(chan url.Values, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != config.DefaultResearchPath {
			http.NotFound(w, r)
			return
		}
		queries <- r.URL.Query()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body(r.URL.Query()))) //nolint:errcheck // test server
	}))
	t.Cleanup(srv.Close)
	return srv, queries
}

// emptyConfig writes an empty configuration file so tests do not pick up
// one from the environment.
func emptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".researchstream")
	if err := os.WriteFile(path, []byte("defaults: {}\n"), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// executeResearch runs "researchstream research" with args.
func executeResearch(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr syncBuffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"research"}, args...))

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func receiveQuery(t *testing.T, queries <-chan url.Values) url.Values {
	t.Helper()
	select {
	case q := <-queries:
		return q
	case <-time.After(5 * time.Second):
		t.Fatal("server received no request")
		return nil
	}
}

// TestNewResearchCmd tests the research command creation.
func TestNewResearchCmd(t *testing.T) {
	t.Parallel()

	cmd := NewResearchCmd()

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{name: "server", shorthand: "s", defValue: config.DefaultServerURL},
		{name: "timeout", shorthand: "t", defValue: config.DefaultTimeout.String()},
		{name: "proxy", defValue: ""},
		{name: "tor", defValue: "false"},
		{name: "tor-timeout", shorthand: "T", defValue: config.DefaultTorStartupTimeout.String()},
		{name: "criteria", shorthand: "C", defValue: "[]"},
		{name: "page", defValue: ""},
		{name: "variant", defValue: "sentinel"},
		{name: "buffer-size", defValue: "32768"},
		{name: "cancel-previous", defValue: "false"},
		{name: "batch", shorthand: "b", defValue: "4"},
		{name: "config", shorthand: "c", defValue: ""},
		{name: "text", defValue: "false"},
		{name: "markdown", shorthand: "m", defValue: "false"},
		{name: "json", shorthand: "j", defValue: "false"},
		{name: "sanitize", defValue: "false"},
		{name: "output", shorthand: "o", defValue: ""},
		{name: "quiet", shorthand: "q", defValue: "false"},
		{name: "no-history", defValue: "false"},
		{name: "db-dir", defValue: config.XDGDataDir()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("flags", func(t *testing.T) {
		t.Parallel()

		cmd := NewResearchCmd()
		if err := cmd.ParseFlags([]string{
			"-c", emptyConfig(t),
			"--server", "https://research.example.com",
			"-C", "background,recent_news",
			"--variant", "replace",
			"--timeout", "30s",
			"--batch", "2",
			"--markdown",
			"--no-history",
			"--cancel-previous",
		}); err != nil {
			t.Fatal(err)
		}

		cfg, err := buildConfig(cmd, []string{"Acme Corp", "Globex"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("unexpected validation error: %v", err)
		}

		if cfg.ServerURL != "https://research.example.com" {
			t.Errorf("ServerURL = %q", cfg.ServerURL)
		}
		if strings.Join(cfg.Criteria, ",") != "background,recent_news" {
			t.Errorf("Criteria = %v", cfg.Criteria)
		}
		if cfg.Variant != model.VariantReplace {
			t.Errorf("Variant = %q", cfg.Variant)
		}
		if cfg.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v", cfg.Timeout)
		}
		if cfg.BatchSize != 2 {
			t.Errorf("BatchSize = %d", cfg.BatchSize)
		}
		if !cfg.MarkdownReport || cfg.SaveToDB || !cfg.CancelPrevious {
			t.Errorf("unexpected report settings: %+v", cfg)
		}
		if len(cfg.Companies) != 2 {
			t.Errorf("Companies = %v", cfg.Companies)
		}
	})

	t.Run("criteria default to nil", func(t *testing.T) {
		t.Parallel()

		cmd := NewResearchCmd()
		if err := cmd.ParseFlags([]string{"-c", emptyConfig(t)}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Criteria != nil {
			t.Errorf("expected nil criteria, got %v", cfg.Criteria)
		}
		if !cfg.SaveToDB {
			t.Error("expected history to be saved by default")
		}
	})

	t.Run("config file fills unset flags", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `server: "http://files.example:9000"
defaults:
  criteria: [recent_news]
servers:
  files.example:9000:
    cookie: "session=abc"
    variant: replace
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cmd := NewResearchCmd()
		if err := cmd.ParseFlags([]string{"-c", path}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.ServerURL != "http://files.example:9000" {
			t.Errorf("ServerURL = %q", cfg.ServerURL)
		}
		if strings.Join(cfg.Criteria, ",") != "recent_news" {
			t.Errorf("Criteria = %v", cfg.Criteria)
		}
		if cfg.Variant != model.VariantReplace {
			t.Errorf("Variant = %q", cfg.Variant)
		}
		if got := cfg.ServerSettings().Cookie; got != "session=abc" {
			t.Errorf("Cookie = %q", got)
		}
	})

	t.Run("flags win over config file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `server: "http://files.example:9000"
defaults:
  criteria: [recent_news]
  variant: replace
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cmd := NewResearchCmd()
		if err := cmd.ParseFlags([]string{
			"-c", path,
			"--server", "http://flag.example",
			"-C", "background",
			"--variant", "sentinel",
		}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.ServerURL != "http://flag.example" {
			t.Errorf("ServerURL = %q", cfg.ServerURL)
		}
		if strings.Join(cfg.Criteria, ",") != "background" {
			t.Errorf("Criteria = %v", cfg.Criteria)
		}
		if cfg.Variant != model.VariantSentinel {
			t.Errorf("Variant = %q", cfg.Variant)
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()

		cmd := NewResearchCmd()
		missing := filepath.Join(t.TempDir(), "missing.yaml")
		if err := cmd.ParseFlags([]string{"-c", missing}); err != nil {
			t.Fatal(err)
		}
		if _, err := buildConfig(cmd, nil); err == nil {
			t.Error("expected error for missing config file")
		}
	})
}

func TestRunResearchCmd(t *testing.T) {
	t.Parallel()

	const body = "<h2>Acme Corp</h2><p>Stable outlook.</p>"
	staticBody := func(url.Values) string { return body }

	t.Run("renders the report and sends the query", func(t *testing.T) {
		t.Parallel()

		srv, queries := researchServer(t, http.StatusOK, staticBody)
		stdout, _, err := executeResearch(t,
			"-c", emptyConfig(t),
			"--server", srv.URL,
			"--no-history",
			"-C", "recent_news,background",
			"Acme Corp",
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if stdout != body+"\n" {
			t.Errorf("stdout = %q, want %q", stdout, body+"\n")
		}

		q := receiveQuery(t, queries)
		if got := q.Get("company"); got != "Acme Corp" {
			t.Errorf("company = %q", got)
		}
		// Page order, not flag order.
		if got := q.Get("criteria"); got != "background;recent_news" {
			t.Errorf("criteria = %q", got)
		}
	})

	t.Run("checks every built-in topic by default", func(t *testing.T) {
		t.Parallel()

		srv, queries := researchServer(t, http.StatusOK, staticBody)
		if _, _, err := executeResearch(t,
			"-c", emptyConfig(t),
			"--server", srv.URL,
			"--no-history",
			"-q",
			"Acme Corp",
		); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		q := receiveQuery(t, queries)
		want := strings.Join(model.TopicIDs(), ";")
		if got := q.Get("criteria"); got != want {
			t.Errorf("criteria = %q, want %q", got, want)
		}
	})

	t.Run("sends unknown criteria with a warning", func(t *testing.T) {
		t.Parallel()

		srv, queries := researchServer(t, http.StatusOK, staticBody)
		_, stderr, err := executeResearch(t,
			"-c", emptyConfig(t),
			"--server", srv.URL,
			"--no-history",
			"-q",
			"-C", "esg,background",
			"Acme Corp",
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		q := receiveQuery(t, queries)
		if got := q.Get("criteria"); got != "background;esg" {
			t.Errorf("criteria = %q", got)
		}
		if !strings.Contains(stderr, "criteria are not built-in topics") {
			t.Errorf("expected warning in stderr, got %q", stderr)
		}
	})

	t.Run("empty criteria", func(t *testing.T) {
		t.Parallel()

		srv, queries := researchServer(t, http.StatusOK, staticBody)
		if _, _, err := executeResearch(t,
			"-c", emptyConfig(t),
			"--server", srv.URL,
			"--no-history",
			"-q",
			"--criteria=",
			"Acme Corp",
		); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		q := receiveQuery(t, queries)
		if !q.Has("criteria") || q.Get("criteria") != "" {
			t.Errorf("expected empty criteria parameter, got %v", q)
		}
	})

	t.Run("replace variant", func(t *testing.T) {
		t.Parallel()

		srv, _ := researchServer(t, http.StatusOK, staticBody)
		stdout, _, err := executeResearch(t,
			"-c", emptyConfig(t),
			"--server", srv.URL,
			"--no-history",
			"--variant", "replace",
			"Acme Corp",
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stdout != body+"\n" {
			t.Errorf("stdout = %q", stdout)
		}
	})

	t.Run("non-OK status is rendered", func(t *testing.T) {
		t.Parallel()

		srv, _ := researchServer(t, http.StatusInternalServerError, func(url.Values) string {
			return "<p>maintenance</p>"
		})
		stdout, stderr, err := executeResearch(t,
			"-c", emptyConfig(t),
			"--server", srv.URL,
			"--no-history",
			"Acme Corp",
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "<p>maintenance</p>") {
			t.Errorf("stdout = %q", stdout)
		}
		if !strings.Contains(stderr, "HTTP 500") {
			t.Errorf("expected HTTP 500 in stderr, got %q", stderr)
		}
	})

	t.Run("unreachable server", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		serverURL := srv.URL
		srv.Close()

		stdout, _, err := executeResearch(t,
			"-c", emptyConfig(t),
			"--server", serverURL,
			"--no-history",
			"Acme Corp",
		)
		if err == nil {
			t.Fatal("expected error for unreachable server")
		}
		if !strings.Contains(err.Error(), "failed to fetch research report") {
			t.Errorf("unexpected error: %v", err)
		}
		if stdout != "" {
			t.Errorf("expected no report output, got %q", stdout)
		}
	})

	t.Run("page markup", func(t *testing.T) {
		t.Parallel()

		pagePath := filepath.Join(t.TempDir(), "research.html")
		markup := `<html><body>
<h1 id="fadeInHeader">Research</h1>
<input id="userInput" type="text">
<input type="checkbox" id="leadership" checked>
<input type="checkbox" id="esg">
<button id="startResearch">Start</button>
<div id="report"></div>
</body></html>`
		if err := os.WriteFile(pagePath, []byte(markup), 0600); err != nil {
			t.Fatal(err)
		}

		srv, queries := researchServer(t, http.StatusOK, staticBody)
		if _, _, err := executeResearch(t,
			"-c", emptyConfig(t),
			"--server", srv.URL,
			"--no-history",
			"-q",
			"--page", pagePath,
			"-C", "esg",
			"Acme Corp",
		); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		q := receiveQuery(t, queries)
		if got := q.Get("criteria"); got != "leadership;esg" {
			t.Errorf("criteria = %q", got)
		}

		_, _, err := executeResearch(t,
			"-c", emptyConfig(t),
			"--server", srv.URL,
			"--no-history",
			"-q",
			"--page", pagePath,
			"-C", "background",
			"Acme Corp",
		)
		if !errors.Is(err, page.ErrUnknownCheckbox) {
			t.Errorf("expected ErrUnknownCheckbox, got %v", err)
		}
	})

	t.Run("saves history and writes JSON report", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		reportPath := filepath.Join(t.TempDir(), "reports", "acme.json")

		srv, _ := researchServer(t, http.StatusOK, staticBody)
		if _, _, err := executeResearch(t,
			"-c", emptyConfig(t),
			"--server", srv.URL,
			"--db-dir", dbDir,
			"--json",
			"-o", reportPath,
			"-q",
			"Acme Corp",
		); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("expected report file: %v", err)
		}
		var jr report.JSONReport
		if err := json.Unmarshal(data, &jr); err != nil {
			t.Fatalf("invalid JSON report: %v", err)
		}
		if jr.Run == nil || jr.Run.Query.Company != "Acme Corp" || jr.Run.Content != body {
			t.Errorf("unexpected run in report: %+v", jr.Run)
		}
		if jr.Run.ID == 0 {
			t.Error("expected the stored run ID in the report")
		}

		db, err := database.Open(dbDir, database.DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()

		runs, err := db.ListRuns(t.Context(), "Acme Corp", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 1 || runs[0].Content != body {
			t.Errorf("unexpected stored runs: %+v", runs)
		}
	})

	t.Run("batch", func(t *testing.T) {
		t.Parallel()

		reportPath := filepath.Join(t.TempDir(), "batch.md")
		srv, _ := researchServer(t, http.StatusOK, func(q url.Values) string {
			return "<p>" + q.Get("company") + " report</p>"
		})
		_, stderr, err := executeResearch(t,
			"-c", emptyConfig(t),
			"--server", srv.URL,
			"--no-history",
			"--markdown",
			"-o", reportPath,
			"Acme Corp", "Globex",
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stderr, "Batch research completed") {
			t.Errorf("expected batch summary in stderr, got %q", stderr)
		}

		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatal(err)
		}
		for _, want := range []string{"Research Report: Acme Corp", "Research Report: Globex", "Globex report"} {
			if !strings.Contains(string(data), want) {
				t.Errorf("expected %q in batch report", want)
			}
		}
	})

	t.Run("batch reports failures", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		serverURL := srv.URL
		srv.Close()

		_, _, err := executeResearch(t,
			"-c", emptyConfig(t),
			"--server", serverURL,
			"--no-history",
			"-q",
			"Acme Corp", "Globex",
		)
		if err == nil || !strings.Contains(err.Error(), "2 of 2 research runs failed") {
			t.Errorf("expected batch failure, got %v", err)
		}
	})

	t.Run("configuration errors", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			args []string
		}{
			{name: "no companies", args: []string{"--no-history"}},
			{name: "invalid variant", args: []string{"--variant", "append", "Acme"}},
			{name: "invalid server", args: []string{"--server", "ftp://example.com", "Acme"}},
			{name: "conflicting formats", args: []string{"--text", "--json", "Acme"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				args := append([]string{"-c", emptyConfig(t), "--no-history"}, tt.args...)
				if _, _, err := executeResearch(t, args...); err == nil {
					t.Error("expected error")
				}
			})
		}
	})
}

func TestNewReportWriter(t *testing.T) {
	t.Parallel()

	run := model.NewRun(model.Query{Company: "Acme Corp"}, model.VariantSentinel)
	run.Content = `<h2>Overview</h2><script>alert(1)</script>`
	run.Finish(nil)

	tests := []struct {
		name  string
		cfg   func(*config.Config)
		want  string
		avoid string
	}{
		{name: "html", cfg: func(*config.Config) {}, want: "<script>"},
		{name: "sanitized html", cfg: func(c *config.Config) { c.Sanitize = true }, want: "<h2>Overview</h2>", avoid: "<script>"},
		{name: "text", cfg: func(c *config.Config) { c.TextReport = true }, want: "RESEARCH REPORT"},
		{name: "markdown", cfg: func(c *config.Config) { c.MarkdownReport = true }, want: "# Research Report: Acme Corp"},
		{name: "json", cfg: func(c *config.Config) { c.JSONReport = true }, want: `"company": "Acme Corp"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.NewConfig()
			tt.cfg(cfg)

			var buf bytes.Buffer
			if _, err := newReportWriter(cfg, &buf).Write(run); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("expected %q in output, got %q", tt.want, buf.String())
			}
			if tt.avoid != "" && strings.Contains(buf.String(), tt.avoid) {
				t.Errorf("unexpected %q in output", tt.avoid)
			}
		})
	}
}
