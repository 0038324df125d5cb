package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/researchstream/internal/database"
	"github.com/nao1215/researchstream/internal/model"
	"github.com/nao1215/researchstream/internal/report"
)

// seedHistory creates a history database with three runs and returns its
// directory. Run IDs are 1 and 2 for Acme Corp (2 is newer) and 3 for Globex.
func seedHistory(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	seeds := []struct {
		company string
		content string
		err     error
	}{
		{company: "Acme Corp", content: "<h2>First</h2><p>Old news.</p>"},
		{company: "Acme Corp", content: "<h2>Second</h2><p>Fresh news.</p>"},
		{company: "Globex", err: errors.New("connection reset")},
	}

	for i, s := range seeds {
		run := model.NewRun(model.Query{
			Company:  s.company,
			Criteria: model.Criteria{"background"},
		}, model.VariantSentinel)
		run.Content = s.content
		run.StatusCode = 200
		run.Finish(s.err)
		run.StartedAt = base.Add(time.Duration(i) * time.Hour)
		run.FinishedAt = run.StartedAt.Add(time.Minute)

		if _, err := db.SaveRun(t.Context(), run); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// executeHistory runs "researchstream history" with args.
func executeHistory(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"history"}, args...))

	err := cmd.Execute()
	return stdout.String(), err
}

func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		want := []string{"show <id>", "latest <company>", "delete <id>", "companies"}
		for _, use := range want {
			found := false
			for _, sub := range cmd.Commands() {
				if sub.Use == use {
					found = true
				}
			}
			if !found {
				t.Errorf("expected subcommand %q", use)
			}
		}
	})

	t.Run("has format flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.PersistentFlags().Lookup("format")
		if flag == nil {
			t.Fatal("expected format flag")
		}
		if flag.Shorthand != "f" {
			t.Errorf("expected shorthand 'f', got %q", flag.Shorthand)
		}
	})

	t.Run("has limit flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("limit")
		if flag == nil {
			t.Fatal("expected limit flag")
		}
		if flag.DefValue != "20" {
			t.Errorf("expected default '20', got %q", flag.DefValue)
		}
	})
}

func TestHistoryList(t *testing.T) {
	t.Parallel()

	// Subtests share one database file and run sequentially.
	dir := seedHistory(t)

	t.Run("markdown by default", func(t *testing.T) {
		out, err := executeHistory(t, "--db-dir", dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"# Research Runs", "Acme Corp", "Globex", "connection reset"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
	})

	t.Run("filters by company", func(t *testing.T) {
		out, err := executeHistory(t, "--db-dir", dir, "-f", "text", "Acme Corp")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "TOTAL: 2 runs, 0 failed") {
			t.Errorf("unexpected output:\n%s", out)
		}
		if strings.Contains(out, "Globex") {
			t.Error("expected Globex to be filtered out")
		}
	})

	t.Run("limit", func(t *testing.T) {
		out, err := executeHistory(t, "--db-dir", dir, "-f", "json", "-n", "1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var reports []report.JSONReport
		if err := json.Unmarshal([]byte(out), &reports); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if len(reports) != 1 || reports[0].Run.Query.Company != "Globex" {
			t.Errorf("expected newest run only, got %+v", reports)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, err := executeHistory(t, "--db-dir", dir, "-f", "pdf"); err == nil {
			t.Error("expected error for unknown format")
		}
	})

	t.Run("missing database", func(t *testing.T) {
		_, err := executeHistory(t, "--db-dir", filepath.Join(t.TempDir(), "none"))
		if !errors.Is(err, errNoHistory) {
			t.Errorf("expected errNoHistory, got %v", err)
		}
	})
}

func TestHistoryShow(t *testing.T) {
	t.Parallel()

	// Subtests share one database file and run sequentially.
	dir := seedHistory(t)

	t.Run("text by default", func(t *testing.T) {
		out, err := executeHistory(t, "show", "1", "--db-dir", dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"RESEARCH REPORT", "Company:   Acme Corp", "Old news."} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		out, err := executeHistory(t, "show", "3", "--db-dir", dir, "--format", "json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var jr report.JSONReport
		if err := json.Unmarshal([]byte(out), &jr); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if jr.Run.ID != 3 || jr.Run.Error != "connection reset" {
			t.Errorf("unexpected run: %+v", jr.Run)
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := executeHistory(t, "show", "999", "--db-dir", dir)
		if !errors.Is(err, database.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		if _, err := executeHistory(t, "show", "abc", "--db-dir", dir); err == nil {
			t.Error("expected error for invalid ID")
		}
	})
}

func TestHistoryLatest(t *testing.T) {
	t.Parallel()

	dir := seedHistory(t)

	out, err := executeHistory(t, "latest", "Acme Corp", "--db-dir", dir, "-f", "html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "<h2>Second</h2><p>Fresh news.</p>\n" {
		t.Errorf("unexpected output %q", out)
	}

	_, err = executeHistory(t, "latest", "Initech", "--db-dir", dir)
	if !errors.Is(err, database.ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestHistoryDeleteAndCompanies(t *testing.T) {
	t.Parallel()

	dir := seedHistory(t)

	out, err := executeHistory(t, "companies", "--db-dir", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Acme Corp\nGlobex\n" {
		t.Errorf("unexpected companies %q", out)
	}

	out, err = executeHistory(t, "delete", "3", "--db-dir", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Deleted run #3") {
		t.Errorf("unexpected output %q", out)
	}

	out, err = executeHistory(t, "companies", "--db-dir", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Acme Corp\n" {
		t.Errorf("unexpected companies after delete %q", out)
	}

	_, err = executeHistory(t, "delete", "3", "--db-dir", dir)
	if !errors.Is(err, database.ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestParseRunID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "1", want: 1},
		{in: "42", want: 42},
		{in: "0", wantErr: true},
		{in: "-3", wantErr: true},
		{in: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := parseRunID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseRunID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseRunID(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
