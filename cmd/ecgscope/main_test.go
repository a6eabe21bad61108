package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/ecgscope/internal/config"
	"github.com/verte-zerg/ecgscope/internal/model"
)

type fakeExporter struct {
	body string
	name string
	err  error
}

func (f fakeExporter) DownloadExport(_ context.Context, w io.Writer) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.WriteString(w, f.body); err != nil {
		return "", err
	}
	return f.name, nil
}

func TestWriteExportExplicitOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "nested", "rr.txt")

	path, err := writeExport(context.Background(), fakeExporter{body: "0.81\n0.79\n", name: "server.txt"}, out)
	if err != nil {
		t.Fatalf("writeExport error: %v", err)
	}
	if path != out {
		t.Fatalf("expected %s, got %s", out, path)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(data) != "0.81\n0.79\n" {
		t.Fatalf("unexpected export contents %q", data)
	}
	assertNoTempFiles(t, filepath.Dir(out))
}

func TestWriteExportUsesServerName(t *testing.T) {
	dir := t.TempDir()
	chdirForTest(t, dir)

	path, err := writeExport(context.Background(), fakeExporter{body: "1\n", name: "../patient_rr.txt"}, "")
	if err != nil {
		t.Fatalf("writeExport error: %v", err)
	}
	if path != "patient_rr.txt" {
		t.Fatalf("expected server name without directories, got %s", path)
	}
	if _, err := os.Stat(filepath.Join(dir, "patient_rr.txt")); err != nil {
		t.Fatalf("export missing: %v", err)
	}
}

func TestWriteExportFallbackName(t *testing.T) {
	dir := t.TempDir()
	chdirForTest(t, dir)

	path, err := writeExport(context.Background(), fakeExporter{body: "1\n"}, "")
	if err != nil {
		t.Fatalf("writeExport error: %v", err)
	}
	if path != defaultExportName {
		t.Fatalf("expected %s, got %s", defaultExportName, path)
	}
}

func TestWriteExportFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "rr.txt")

	_, err := writeExport(context.Background(), fakeExporter{err: errors.New("boom")}, out)
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("expected no output file, got %v", err)
	}
	assertNoTempFiles(t, dir)
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".export-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)
	path := filepath.Join(dir, "config.toml")

	if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("commented template should decode: %v", err)
	}
	if cfg.Server.URL != nil || cfg.View.Window != nil {
		t.Fatalf("commented template should set nothing: %+v", cfg)
	}

	var lines []string
	for _, line := range strings.Split(defaultConfigTemplate(), "\n") {
		if strings.HasPrefix(line, "# ") && strings.Contains(line, " = ") {
			line = strings.TrimPrefix(line, "# ")
		}
		lines = append(lines, line)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err = config.LoadConfig(path)
	if err != nil {
		t.Fatalf("uncommented template should decode: %v", err)
	}
	if cfg.Server.URL == nil || *cfg.Server.URL != defaultServerURL {
		t.Fatalf("unexpected url: %+v", cfg.Server.URL)
	}
	if cfg.Server.Timeout == nil || cfg.Server.Timeout.Duration != defaultTimeout {
		t.Fatalf("unexpected timeout: %+v", cfg.Server.Timeout)
	}
	if cfg.View.Window == nil || *cfg.View.Window != model.DefaultWindowLength {
		t.Fatalf("unexpected window: %+v", cfg.View.Window)
	}
	if cfg.View.WindowPolicy == nil || *cfg.View.WindowPolicy != "keep" {
		t.Fatalf("unexpected policy: %+v", cfg.View.WindowPolicy)
	}
	if cfg.Log.Level == nil || *cfg.Log.Level != defaultLogLevel {
		t.Fatalf("unexpected level: %+v", cfg.Log.Level)
	}
}

func TestLoadConfigFlagsWin(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	cfgPath := filepath.Join(dir, "ecgscope", "config.toml")
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	contents := `[server]
url = "http://ecg.example:8080"
timeout = "5s"

[view]
window = 30.0
window-policy = "rollback"
`
	if err := os.WriteFile(cfgPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--window", "60"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if _, err := loadConfig(cmd); err != nil {
		t.Fatalf("loadConfig error: %v", err)
	}
	if serverURL != "http://ecg.example:8080" {
		t.Fatalf("expected url from config, got %s", serverURL)
	}
	if serverTimeout != 5*time.Second {
		t.Fatalf("expected timeout from config, got %v", serverTimeout)
	}
	if viewWindow != 60 {
		t.Fatalf("expected --window to win, got %v", viewWindow)
	}
	if windowPolicy != "rollback" {
		t.Fatalf("expected policy from config, got %s", windowPolicy)
	}
}

func TestParseLevel(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"info+2", slog.LevelInfo + 2},
	} {
		got, err := parseLevel(tc.in)
		if err != nil || got != tc.want {
			t.Fatalf("parseLevel(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}
	if _, err := parseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewLoggerTagsRun(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn")
	if err != nil {
		t.Fatalf("newLogger error: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "file", "a.edf")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "run_id=") {
		t.Fatalf("unexpected log line: %q", out)
	}

	if _, err := newLogger(&buf, "verbose"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

// chdirForTest mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("restore cwd: %v", err)
		}
	})
}
