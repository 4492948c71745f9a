package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hylla/kanplan/internal/adapters/server/common"
	"github.com/hylla/kanplan/internal/app"
	"github.com/hylla/kanplan/internal/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	doneStyle   = cellStyle.Foreground(lipgloss.Color("10"))
)

// newListCommand prints stored items as a table.
func newListCommand(opts *rootOptions) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			normalized, err := common.NormalizeKind(kind)
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			items, err := rt.svc.List(cmd.Context(), domain.Kind(normalized))
			if err != nil {
				return fmt.Errorf("list items: %w", err)
			}
			return renderItems(cmd.OutOrStdout(), items)
		},
	}
	cmd.Flags().StringVarP(&kind, "type", "t", "", "only list one type: "+strings.ToLower(strings.Join(common.SupportedKinds(), ", ")))
	return cmd
}

// newPrioritizedCommand prints scheduled items by start time.
func newPrioritizedCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prioritized",
		Short: "List scheduled items ordered by start time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			items, err := rt.svc.Prioritized(cmd.Context())
			if err != nil {
				return fmt.Errorf("list prioritized items: %w", err)
			}
			return renderItems(cmd.OutOrStdout(), items)
		},
	}
}

// renderItems writes items as a bordered table, or a short note when there are none.
func renderItems(out io.Writer, items []domain.Item) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(out, "no items")
		return err
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		view := common.MapItem(item)
		parent := ""
		switch {
		case view.EpicID > 0:
			parent = strconv.Itoa(view.EpicID)
		case len(view.SubtaskIDs) > 0:
			parent = joinIDs(view.SubtaskIDs)
		}
		rows = append(rows, []string{
			strconv.Itoa(view.ID),
			view.Type,
			view.Name,
			view.Status,
			view.StartTime,
			view.EndTime,
			parent,
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("ID", "TYPE", "NAME", "STATUS", "START", "END", "EPIC/SUBTASKS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 3 && row >= 0 && row < len(rows) && rows[row][3] == string(domain.StatusDone) {
				return doneStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(out, t.Render())
	return err
}

// joinIDs renders ids as a comma-separated list.
func joinIDs(ids []int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, ",")
}

// newExportCommand writes a snapshot of the store.
func newExportCommand(opts *rootOptions) *cobra.Command {
	var (
		outPath string
		format  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the store as JSON, YAML, or CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			rt.logger.Info("command flow start", "command", "export", "format", format)
			if err := runExport(cmd.Context(), rt.svc, format, outPath, cmd.OutOrStdout()); err != nil {
				rt.logger.Error("command flow failed", "command", "export", "err", err)
				return fmt.Errorf("run export command: %w", err)
			}
			rt.logger.Info("command flow complete", "command", "export")
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output file path ('-' for stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json, yaml, or csv")
	return cmd
}

// runExport encodes the current snapshot in the requested format.
func runExport(ctx context.Context, svc *app.Service, format, outPath string, stdout io.Writer) error {
	snap, err := svc.ExportSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	encoded, err := encodeSnapshot(snap, format)
	if err != nil {
		return err
	}

	if outPath == "-" {
		if _, err := stdout.Write(encoded); err != nil {
			return fmt.Errorf("write snapshot to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

// encodeSnapshot renders one snapshot as json, yaml, or csv.
func encodeSnapshot(snap app.Snapshot, format string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		encoded, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode snapshot json: %w", err)
		}
		return append(encoded, '\n'), nil
	case "yaml", "yml":
		encoded, err := yaml.Marshal(snap)
		if err != nil {
			return nil, fmt.Errorf("encode snapshot yaml: %w", err)
		}
		return encoded, nil
	case "csv":
		var b strings.Builder
		w := csv.NewWriter(&b)
		if err := w.Write(domain.RecordHeader); err != nil {
			return nil, fmt.Errorf("encode snapshot csv: %w", err)
		}
		for _, rec := range snap.Items {
			if err := w.Write(rec.Fields()); err != nil {
				return nil, fmt.Errorf("encode snapshot csv: %w", err)
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, fmt.Errorf("encode snapshot csv: %w", err)
		}
		return []byte(b.String()), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// newImportCommand replaces the store with a snapshot file.
func newImportCommand(opts *rootOptions) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the store with a JSON, YAML, or CSV snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return errors.New("--in is required")
			}
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			rt.logger.Info("command flow start", "command", "import", "path", inPath)
			report, err := runImport(cmd.Context(), rt.svc, inPath)
			if err != nil {
				rt.logger.Error("command flow failed", "command", "import", "err", err)
				return fmt.Errorf("run import command: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d items, skipped %d\n", report.Loaded, report.Skipped)
			rt.logger.Info("command flow complete", "command", "import")
			return nil
		},
	}
	cmd.Flags().StringVarP(&inPath, "in", "i", "", "input snapshot file (.json, .yaml, or .csv)")
	return cmd
}

// runImport decodes one snapshot file by extension and imports it.
func runImport(ctx context.Context, svc *app.Service, inPath string) (app.LoadReport, error) {
	content, err := os.ReadFile(inPath)
	if err != nil {
		return app.LoadReport{}, fmt.Errorf("read import file: %w", err)
	}
	snap, err := decodeSnapshot(content, filepath.Ext(inPath))
	if err != nil {
		return app.LoadReport{}, err
	}
	report, err := svc.ImportSnapshot(ctx, snap)
	if err != nil {
		return report, fmt.Errorf("import snapshot: %w", err)
	}
	return report, nil
}

// decodeSnapshot parses snapshot content. CSV input carries records only.
func decodeSnapshot(content []byte, ext string) (app.Snapshot, error) {
	var snap app.Snapshot
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &snap); err != nil {
			return app.Snapshot{}, fmt.Errorf("decode snapshot yaml: %w", err)
		}
	case ".csv":
		reader := csv.NewReader(strings.NewReader(string(content)))
		reader.FieldsPerRecord = -1
		rows, err := reader.ReadAll()
		if err != nil {
			return app.Snapshot{}, fmt.Errorf("decode snapshot csv: %w", err)
		}
		snap.Version = app.SnapshotVersion
		for i, row := range rows {
			if i == 0 {
				continue
			}
			rec, err := domain.RecordFromFields(row)
			if err != nil {
				return app.Snapshot{}, fmt.Errorf("decode snapshot csv line %d: %w", i+1, err)
			}
			snap.Items = append(snap.Items, rec)
		}
	default:
		if err := json.Unmarshal(content, &snap); err != nil {
			return app.Snapshot{}, fmt.Errorf("decode snapshot json: %w", err)
		}
	}
	return snap, nil
}
