// Package main provides the CLI entrypoint for ecgscope.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/ecgscope/internal/api"
	"github.com/verte-zerg/ecgscope/internal/config"
	"github.com/verte-zerg/ecgscope/internal/model"
	"github.com/verte-zerg/ecgscope/internal/session"
	"github.com/verte-zerg/ecgscope/internal/store"
	"github.com/verte-zerg/ecgscope/internal/tui"
)

const (
	defaultServerURL = "http://localhost:5001"
	defaultTimeout   = 60 * time.Second
	defaultLogLevel  = "info"
)

var (
	serverURL     string
	serverTimeout time.Duration
	logFile       string
	logLevel      string

	browseFile    string
	viewWindow    float64
	windowPolicy  string
	saveStatusTTL time.Duration
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	rootCmd := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ecgscope",
		Short:         "Terminal browser for annotating ECG recordings",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE:          runBrowseCmd,
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL, "backend base URL")
	rootCmd.PersistentFlags().DurationVar(&serverTimeout, "timeout", defaultTimeout, "per-request timeout")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file used by the browser (default: XDG state dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "log level: debug, info, warn, error")

	rootCmd.Flags().StringVar(&browseFile, "file", "", "recording to open on start")
	rootCmd.Flags().Float64Var(&viewWindow, "window", model.DefaultWindowLength, "initial window length in seconds")
	rootCmd.Flags().StringVar(&windowPolicy, "window-policy", "keep", "on a rejected window change: keep or rollback")
	rootCmd.Flags().DurationVar(&saveStatusTTL, "save-status-ttl", session.DefaultSaveStatusTTL, "how long the save result stays visible")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newFilesCmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newHistoryCmd())

	return rootCmd
}

// loadConfig merges the config file into flags the user did not set.
func loadConfig(cmd *cobra.Command) (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "server", &serverURL, fileCfg.Server.URL)
	applyDurationConfig(cmd, "timeout", &serverTimeout, fileCfg.Server.Timeout)
	applyStringConfig(cmd, "log-file", &logFile, fileCfg.Log.File)
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	applyFloatConfig(cmd, "window", &viewWindow, fileCfg.View.Window)
	applyStringConfig(cmd, "window-policy", &windowPolicy, fileCfg.View.WindowPolicy)
	applyDurationConfig(cmd, "save-status-ttl", &saveStatusTTL, fileCfg.View.SaveStatusTTL)
	return fileCfg, nil
}

func newClient() (*api.Client, error) {
	client, err := api.New(serverURL, api.Options{Timeout: serverTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

func runBrowseCmd(cmd *cobra.Command, _ []string) error {
	if _, err := loadConfig(cmd); err != nil {
		return err
	}
	if viewWindow <= 0 {
		return fmt.Errorf("--window must be > 0")
	}
	policy, err := session.ParseWindowPolicy(windowPolicy)
	if err != nil {
		return fmt.Errorf("invalid --window-policy: %w", err)
	}

	logPath := logFile
	if logPath == "" {
		logPath = config.DefaultLogPath()
	}
	logPath = config.ExpandHome(logPath)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logOut, err := tea.LogToFile(logPath, "ecgscope")
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() {
		if cerr := logOut.Close(); cerr != nil {
			_ = cerr
		}
	}()
	logger, err := newLogger(logOut, logLevel)
	if err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	opts := session.Options{
		WindowLength:  viewWindow,
		WindowPolicy:  policy,
		SaveStatusTTL: saveStatusTTL,
		Logger:        logger,
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		logger.Warn("edit journal disabled", "err", err)
		logErrln("warning: edit journal disabled:", err)
	} else {
		opts.Journal = st
		defer func() {
			if cerr := st.Close(); cerr != nil {
				logErrf("failed to close db: %v\n", cerr)
			}
		}()
	}

	logger.Info("browser starting", "server", serverURL, "window", viewWindow, "policy", policy)
	sess := session.New(client, opts)
	defer sess.Close()

	m := tui.NewModel(sess, tui.Options{InitialFile: browseFile})
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := ensureConfigFile(path); err != nil {
		return err
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func ensureConfigFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *config.Duration) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = value.Duration
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# ecgscope configuration
# Uncomment a value to enable it. CLI flags override config values.

[server]
# url = %q   # Backend base URL
# timeout = %q             # Per-request timeout

[view]
# window = %.1f              # Initial window length in seconds
# window-policy = "keep"      # keep | rollback a window change the server rejects
# save-status-ttl = %q       # How long the save result stays visible

[log]
# file = %q
# level = %q               # debug | info | warn | error
`,
		defaultServerURL,
		defaultTimeout.String(),
		float64(model.DefaultWindowLength),
		session.DefaultSaveStatusTTL.String(),
		config.DefaultLogPath(),
		defaultLogLevel,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
