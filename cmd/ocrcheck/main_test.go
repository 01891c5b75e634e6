package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags restores every flag of the command tree to its default so each
// Execute starts from a clean command line.
func resetFlags(t *testing.T, cmd *cobra.Command) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		if err := f.Value.Set(f.DefValue); err != nil {
			t.Fatalf("reset --%s: %v", f.Name, err)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(t, c)
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	for _, k := range []string{"REDIS_URL", "REPORT_S3_URI", "METRICS_ADDR", "METRICS_TEXTFILE", "LOG_FILE", "SEND_LOGS_TO_AXIOM"} {
		t.Setenv(k, "")
	}
	resetFlags(t, rootCmd)
	t.Cleanup(func() { resetFlags(t, rootCmd) })
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestScanWritesReportAndCSV(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.pdf"), []byte("plain text, not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	csvPath := filepath.Join(t.TempDir(), "report.csv")

	out, _, err := execute(t, "scan", dir, "--backend", "none", "--csv", csvPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	for _, want := range []string{"Total files:              1", "Files requiring OCR:      1", "notes.pdf", "[ERROR]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "notes.pdf,,,True") {
		t.Errorf("csv = %q", data)
	}
}

func TestScanEmptyDir(t *testing.T) {
	csvPath := filepath.Join(t.TempDir(), "report.csv")
	out, _, err := execute(t, "scan", t.TempDir(), "--backend", "none", "--csv", csvPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "No PDF files found") {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(csvPath); !os.IsNotExist(err) {
		t.Error("csv written for empty directory")
	}
}

func TestScanMissingDir(t *testing.T) {
	_, _, err := execute(t, "scan", filepath.Join(t.TempDir(), "missing"), "--backend", "none")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v", err)
	}
}

func TestDoctorWithoutBackend(t *testing.T) {
	out, _, err := execute(t, "doctor", "--backend", "none", "-o", "text")
	if err == nil {
		t.Error("doctor should fail without a raster backend")
	}
	if !strings.Contains(out, "WARNING: no raster backend available") {
		t.Errorf("output = %s", out)
	}
}

func TestFlagsDoNotLeakBetweenRuns(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.pdf"), []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}
	csvPath := filepath.Join(t.TempDir(), "first.csv")
	if _, _, err := execute(t, "scan", dir, "--backend", "none", "--csv", csvPath, "-o", "json"); err != nil {
		t.Fatal(err)
	}
	if cfg.Analysis.Backend != "none" || cfg.Output.Format != "json" {
		t.Fatalf("first run config = %+v", cfg.Analysis)
	}

	t.Setenv("RASTER_BACKEND", "mupdf")
	out, _, err := execute(t, "scan", dir, "--no-csv")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Analysis.Backend != "mupdf" {
		t.Errorf("backend = %q, want env value once --backend is gone", cfg.Analysis.Backend)
	}
	if !strings.Contains(out, "Total files:") {
		t.Errorf("-o json leaked into the second run:\n%s", out)
	}
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil || !strings.HasPrefix(out, "ocrcheck dev") {
		t.Errorf("version = %q, %v", out, err)
	}
}
