package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/ecgscope/internal/config"
	"github.com/verte-zerg/ecgscope/internal/model"
	"github.com/verte-zerg/ecgscope/internal/report"
	"github.com/verte-zerg/ecgscope/internal/store"
)

const defaultExportName = "rr_intervals.txt"

var (
	infoFormat string
	exportOut  string

	historyFile   string
	historyLast   int
	historySince  string
	historyRecent int
)

type exporter interface {
	DownloadExport(ctx context.Context, w io.Writer) (string, error)
}

func newFilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List recordings available on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := loadConfig(cmd); err != nil {
				return err
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			files, err := client.ListFiles(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list files: %w", err)
			}
			return report.Files(cmd.OutOrStdout(), files)
		},
	}
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info PATH",
		Short: "Load a recording and print its metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfoCmd,
	}
	cmd.Flags().StringVar(&infoFormat, "format", "text", "output format: text or yaml")
	return cmd
}

func runInfoCmd(cmd *cobra.Command, args []string) error {
	if infoFormat != "text" && infoFormat != "yaml" {
		return fmt.Errorf("--format must be text or yaml")
	}
	if _, err := loadConfig(cmd); err != nil {
		return err
	}
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if _, err := client.LoadFile(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to load %s: %w", args[0], err)
	}
	md, err := client.Metadata(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch metadata: %w", err)
	}
	return writeMetadata(cmd.OutOrStdout(), md, infoFormat)
}

func writeMetadata(w io.Writer, md model.Metadata, format string) error {
	if format == "text" {
		return report.Metadata(w, md)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(md); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	return enc.Close()
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export PATH",
		Short: "Download the RR-interval export of a recording",
		Args:  cobra.ExactArgs(1),
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVarP(&exportOut, "output", "o", "", "output file (default: name suggested by the server)")
	return cmd
}

func runExportCmd(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(cmd); err != nil {
		return err
	}
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if _, err := client.LoadFile(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to load %s: %w", args[0], err)
	}
	path, err := writeExport(ctx, client, exportOut)
	if err != nil {
		return err
	}
	logErrf("Saved export to %s\n", path)
	return nil
}

// writeExport downloads into a temp file next to the target and renames it
// into place once the download completes.
func writeExport(ctx context.Context, src exporter, out string) (string, error) {
	dir := "."
	if out != "" {
		dir = filepath.Dir(out)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if _, err := os.Stat(tmpName); err == nil {
			if rerr := os.Remove(tmpName); rerr != nil {
				_ = rerr
			}
		}
	}()

	writer := bufio.NewWriter(tmp)
	name, err := src.DownloadExport(ctx, writer)
	if err != nil {
		if cerr := tmp.Close(); cerr != nil {
			_ = cerr
		}
		return "", fmt.Errorf("failed to download export: %w", err)
	}
	if err := writer.Flush(); err != nil {
		if cerr := tmp.Close(); cerr != nil {
			_ = cerr
		}
		return "", fmt.Errorf("failed to flush export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close export: %w", err)
	}

	if out == "" {
		name = filepath.Base(name)
		if name == "" || name == "." || name == string(filepath.Separator) {
			name = defaultExportName
		}
		out = filepath.Join(dir, name)
	}
	if err := os.Rename(tmpName, out); err != nil {
		return "", fmt.Errorf("failed to move export: %w", err)
	}
	return out, nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the local journal of annotation edits",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historyFile, "file", "", "only edits of this recording")
	cmd.Flags().IntVar(&historyLast, "last", 0, "only the N most recent edits (0 for all)")
	cmd.Flags().StringVar(&historySince, "since", "", "only edits on or after this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyRecent, "recent", 0, "list the N most recently opened recordings instead")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	if historyLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if historyRecent < 0 {
		return fmt.Errorf("--recent must be >= 0")
	}
	filter := model.EditFilter{File: historyFile, Last: historyLast}
	if historySince != "" {
		since, err := time.ParseInLocation("2006-01-02", historySince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		filter.Since = &since
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	if historyRecent > 0 {
		files, err := st.RecentFiles(ctx, historyRecent)
		if err != nil {
			return fmt.Errorf("failed to load recent files: %w", err)
		}
		return report.RecentFiles(out, files)
	}

	edits, err := st.ListEdits(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to load edits: %w", err)
	}
	return report.Edits(out, edits)
}
