package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/logflow/procmap/pkg/config"
	lferrors "github.com/logflow/procmap/pkg/errors"
)

const orderLog = `case_id,activity_name,timestamp
c1,Receive,2024-01-01 09:00:00
c1,Check,2024-01-01 10:00:00
c1,Ship,2024-01-01 12:00:00
c2,Receive,2024-01-02 09:00:00
c2,Ship,2024-01-02 11:00:00
`

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr, _, err := executeWithFlags(t, args...)
	return stdout, stderr, err
}

func executeWithFlags(t *testing.T, args ...string) (string, string, *globalFlags, error) {
	t.Helper()
	// Keep user and project config files out of the test.
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	var stdout, stderr bytes.Buffer
	flags := &globalFlags{}
	root := newRootCmd(flags)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), flags, err
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_WritesOutputs(t *testing.T) {
	input := writeInput(t, orderLog)
	out := filepath.Join(t.TempDir(), "out")

	stdout, _, err := execute(t, "run", "-i", input, "-o", out, "-f", "json,csv,dot", "--log-level", "error")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout, "ANALYSIS COMPLETE") {
		t.Errorf("stdout missing summary:\n%s", stdout)
	}

	for _, name := range []string{"kpi.json", "edges.csv", "dfg.dot"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "summary.txt")); !os.IsNotExist(err) {
		t.Error("summary.txt should not be written when text is not selected")
	}

	data, err := os.ReadFile(filepath.Join(out, "kpi.json"))
	if err != nil {
		t.Fatal(err)
	}
	var kpi struct {
		Cases  int `json:"cases"`
		Events int `json:"events"`
	}
	if err := json.Unmarshal(data, &kpi); err != nil {
		t.Fatal(err)
	}
	if kpi.Cases != 2 || kpi.Events != 5 {
		t.Errorf("kpi = %+v, want 2 cases and 5 events", kpi)
	}
}

func TestRun_CustomColumns(t *testing.T) {
	input := writeInput(t, strings.Replace(orderLog, "case_id,activity_name,timestamp", "order,step,at", 1))
	out := t.TempDir()

	_, _, err := execute(t, "run", "-i", input, "-o", out, "-f", "csv",
		"--case-col", "order", "--activity-col", "step", "--timestamp-col", "at")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(out, "edges.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Receive,Check,1") {
		t.Errorf("edges.csv = %q", data)
	}
}

func TestRun_MissingColumnWritesNothing(t *testing.T) {
	input := writeInput(t, "case_id,timestamp\nc1,2024-01-01\n")
	out := filepath.Join(t.TempDir(), "out")

	_, _, err := execute(t, "run", "-i", input, "-o", out)
	if !lferrors.IsCode(err, lferrors.CodeMissingColumn) {
		t.Fatalf("run error = %v, want E104", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("output directory should not be created")
	}
}

func TestRun_RequiresInput(t *testing.T) {
	_, _, err := execute(t, "run")
	if !lferrors.IsCode(err, lferrors.CodeInvalidConfig) {
		t.Fatalf("run error = %v, want E405", err)
	}
}

func TestRun_UnknownFormat(t *testing.T) {
	input := writeInput(t, orderLog)
	_, _, err := execute(t, "run", "-i", input, "-f", "pdf")
	if !lferrors.IsCode(err, lferrors.CodeInvalidConfig) {
		t.Fatalf("run error = %v, want E405", err)
	}
}

func TestInfo(t *testing.T) {
	input := writeInput(t, orderLog)
	stdout, _, err := execute(t, "info", "-i", input)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	for _, want := range []string{"VALID", "5 events in 2 cases", "CSV"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("info output missing %q:\n%s", want, stdout)
		}
	}
}

func TestInfo_InvalidInput(t *testing.T) {
	input := writeInput(t, "case_id,activity_name,timestamp\nc1,A,not-a-date\n")
	stdout, _, err := execute(t, "info", "-i", input)
	if !errors.Is(err, errReported) {
		t.Fatalf("info error = %v, want errReported", err)
	}
	if !strings.Contains(stdout, "INVALID") {
		t.Errorf("info output should report the problem:\n%s", stdout)
	}
}

func TestBuildSinks_Order(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()
	cfg.Output.Formats = []string{"dot", "json", "parquet", "xlsx", "duckdb", "text", "csv"}

	s, err := buildSinks(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if len(s.exporters) != len(cfg.Output.Formats) {
		t.Fatalf("got %d exporters, want %d", len(s.exporters), len(cfg.Output.Formats))
	}
	for i, want := range cfg.Output.Formats {
		if got := s.exporters[i].Name(); got != want {
			t.Errorf("exporter %d = %s, want %s", i, got, want)
		}
	}
}

func TestGlobalFlags_OnlyChangedApply(t *testing.T) {
	flags := &globalFlags{}
	cmd := &cobra.Command{Use: "x"}
	flags.register(cmd)
	if err := cmd.ParseFlags([]string{"-o", "/tmp/x", "--concurrent"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	flags.apply(cmd, cfg)

	if cfg.Output.Dir != "/tmp/x" {
		t.Errorf("Output.Dir = %q", cfg.Output.Dir)
	}
	if !cfg.Pipeline.Concurrent {
		t.Error("Concurrent should be set")
	}
	if cfg.Columns.CaseID != "case_id" {
		t.Errorf("CaseID = %q, unset flags must not override", cfg.Columns.CaseID)
	}
	if len(cfg.Output.Formats) != 3 {
		t.Errorf("Formats = %v, want defaults", cfg.Output.Formats)
	}
}

func TestRun_DebugLevelEnablesStack(t *testing.T) {
	input := writeInput(t, "case_id,timestamp\nc1,2024-01-01\n")

	_, _, flags, err := executeWithFlags(t, "run", "-i", input, "--log-level", "debug")
	if err == nil {
		t.Fatal("expected missing column error")
	}
	if !flags.debug {
		t.Error("debug should be set for --log-level debug")
	}

	_, _, flags, _ = executeWithFlags(t, "run", "-i", input)
	if flags.debug {
		t.Error("debug should be off at the default level")
	}
}
