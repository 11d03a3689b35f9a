// Package main provides the CLI entrypoint for dropstats.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/dropstats/internal/config"
	"github.com/verte-zerg/dropstats/internal/dataset"
	"github.com/verte-zerg/dropstats/internal/export"
	"github.com/verte-zerg/dropstats/internal/fetch"
	"github.com/verte-zerg/dropstats/internal/model"
	"github.com/verte-zerg/dropstats/internal/stagecode"
	"github.com/verte-zerg/dropstats/internal/stats"
	"github.com/verte-zerg/dropstats/internal/statsui"
	"github.com/verte-zerg/dropstats/internal/store"
)

const (
	defaultSource   = string(model.SourceGlobal)
	defaultDir      = string(stats.Asc)
	defaultLogLevel = "info"
	bestRowCount    = 3
)

var (
	dbPath   string
	logLevel string

	viewItem   string
	viewStage  string
	viewSource string
	viewSort   string
	viewDir    string

	tableItem   string
	tableStage  string
	tableSource string
	tableSort   string
	tableDir    string
	tableXLSX   string

	fetchURL string

	fileCfg config.FileConfig
	logger  = zerolog.Nop()
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "dropstats",
		Short:             "Drop-rate statistics browser",
		SilenceUsage:      true,
		SilenceErrors:     false,
		PersistentPreRunE: loadSettings,
		RunE:              runResultsCmd,
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultDBPath(), "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")

	rootCmd.Flags().StringVar(&viewItem, "item", "", "initial item ID")
	rootCmd.Flags().StringVar(&viewStage, "stage", "", "initial stage ID")
	rootCmd.Flags().StringVar(&viewSource, "source", defaultSource, "data source (global or personal)")
	rootCmd.Flags().StringVar(&viewSort, "sort", "", "initial sort column")
	rootCmd.Flags().StringVar(&viewDir, "dir", defaultDir, "initial sort direction (asc or desc)")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newItemsCmd())
	rootCmd.AddCommand(newStagesCmd())
	rootCmd.AddCommand(newTableCmd())

	return rootCmd
}

// loadSettings reads the config file and builds the logger before any
// command runs. Flags given on the command line win over config values.
func loadSettings(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	fileCfg = cfg
	applyStringConfig(cmd, "db", &dbPath, fileCfg.Data.DB)
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)

	l, err := newLogger(cmd.ErrOrStderr(), logLevel)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

func runResultsCmd(cmd *cobra.Command, _ []string) error {
	applyStringConfig(cmd, "item", &viewItem, fileCfg.View.Item)
	applyStringConfig(cmd, "stage", &viewStage, fileCfg.View.Stage)
	applyStringConfig(cmd, "source", &viewSource, fileCfg.View.Source)
	applyStringConfig(cmd, "sort", &viewSort, fileCfg.View.Sort)
	applyStringConfig(cmd, "dir", &viewDir, fileCfg.View.Direction)
	if strings.TrimSpace(viewDir) == "" {
		viewDir = defaultDir
	}

	source, err := parseSource(viewSource)
	if err != nil {
		return err
	}
	if _, err := stats.ParseDirection(viewDir); err != nil {
		return err
	}
	if viewSort != "" && !stats.ValidColumn(stats.ViewItem, viewSort) && !stats.ValidColumn(stats.ViewStage, viewSort) {
		return fmt.Errorf("unknown sort column %q (available: %s)", viewSort, strings.Join(allColumnKeys(), ", "))
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("stdout is not a terminal; use: dropstats table --item <id>")
	}

	parser, err := newParser()
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	cfg := model.ViewConfig{
		ItemID:    viewItem,
		StageID:   viewStage,
		Source:    source,
		Sort:      viewSort,
		Direction: viewDir,
	}
	ui := statsui.NewModel(st, parser, cfg)
	program := tea.NewProgram(ui, tea.WithAltScreen())
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

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a drop dataset (.json or .msgpack)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return importDataset(cmd.Context(), cmd.ErrOrStderr(), args[0])
		},
	}
}

func importDataset(ctx context.Context, progressOut io.Writer, path string) error {
	ds, err := dataset.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	bar := progressbar.NewOptions(len(ds.Matrix),
		progressbar.OptionSetWriter(progressOut),
		progressbar.OptionSetDescription("importing drops"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	if err := st.ReplaceDataset(ctx, ds, func() { _ = bar.Add(1) }); err != nil {
		return fmt.Errorf("failed to import dataset: %w", err)
	}
	_ = bar.Finish()

	logger.Info().
		Str("path", path).
		Int("chapters", len(ds.Chapters)).
		Int("stages", ds.StageCount()).
		Int("items", len(ds.Items)).
		Str("records", humanize.Comma(int64(len(ds.Matrix)))).
		Msg("dataset imported")
	return nil
}

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Replace personal drop data with an upload file",
		Args:  cobra.ExactArgs(1),
		RunE:  runUploadCmd,
	}
}

func runUploadCmd(cmd *cobra.Command, args []string) error {
	personal, err := dataset.LoadPersonal(args[0])
	if err != nil {
		return err
	}
	entries, err := personal.Entries()
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := cmd.Context()
	chapters, err := st.ListChapters(ctx)
	if err != nil {
		return err
	}
	items, err := st.ListItems(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no dataset imported yet; run: dropstats import <file>")
	}
	if err := dataset.ValidateAgainst(entries, chapters, items); err != nil {
		return err
	}
	upload, err := st.ReplacePersonal(ctx, entries)
	if err != nil {
		return fmt.Errorf("failed to store personal data: %w", err)
	}
	logger.Info().Str("upload", upload.ID).Int("records", upload.Records).Msg("personal data uploaded")
	return nil
}

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the latest dataset and import it",
		Args:  cobra.NoArgs,
		RunE:  runFetchCmd,
	}
	cmd.Flags().StringVar(&fetchURL, "url", fetch.DefaultURL, "dataset URL")
	return cmd
}

func runFetchCmd(cmd *cobra.Command, _ []string) error {
	applyStringConfig(cmd, "url", &fetchURL, fileCfg.Data.URL)
	dl, err := fetch.New(logger).Download(cmd.Context(), fetchURL, config.DefaultCacheDir())
	if err != nil {
		return fmt.Errorf("failed to fetch dataset: %w", err)
	}
	return importDataset(cmd.Context(), cmd.ErrOrStderr(), dl.Path)
}

func newItemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "items",
		Short: "List imported items",
		Args:  cobra.NoArgs,
		RunE:  runItemsCmd,
	}
}

func runItemsCmd(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	items, err := st.ListItems(cmd.Context())
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no items imported; run: dropstats import <file>")
	}
	out := cmd.OutOrStdout()
	for _, it := range items {
		if _, err := fmt.Fprintf(out, "%-10s %s\n", it.ID, it.Name); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newStagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List imported stages by chapter",
		Args:  cobra.NoArgs,
		RunE:  runStagesCmd,
	}
}

func runStagesCmd(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	chapters, err := st.ListChapters(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, ch := range chapters {
		if len(ch.Stages) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(out, "%s\n", ch.Name); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		for _, s := range ch.Stages {
			if _, err := fmt.Fprintf(out, "  %-12s %-16s %s AP\n", s.Code, s.ID, humanize.Ftoa(s.APCost)); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
	}
	return nil
}

func newTableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Print the ranked drop table of an item or a stage",
		Args:  cobra.NoArgs,
		RunE:  runTableCmd,
	}
	cmd.Flags().StringVar(&tableItem, "item", "", "item ID")
	cmd.Flags().StringVar(&tableStage, "stage", "", "stage ID")
	cmd.Flags().StringVar(&tableSource, "source", defaultSource, "data source (global or personal)")
	cmd.Flags().StringVar(&tableSort, "sort", "", "sort column")
	cmd.Flags().StringVar(&tableDir, "dir", defaultDir, "sort direction (asc or desc)")
	cmd.Flags().StringVar(&tableXLSX, "xlsx", "", "also write the table to an .xlsx file")
	return cmd
}

func runTableCmd(cmd *cobra.Command, _ []string) error {
	applyStringConfig(cmd, "source", &tableSource, fileCfg.View.Source)
	applyStringConfig(cmd, "sort", &tableSort, fileCfg.View.Sort)
	applyStringConfig(cmd, "dir", &tableDir, fileCfg.View.Direction)
	if strings.TrimSpace(tableDir) == "" {
		tableDir = defaultDir
	}

	if (tableItem == "") == (tableStage == "") {
		return fmt.Errorf("exactly one of --item or --stage is required")
	}
	view := stats.ViewItem
	if tableStage != "" {
		view = stats.ViewStage
	}
	source, err := parseSource(tableSource)
	if err != nil {
		return err
	}
	var req *stats.SortRequest
	if tableSort != "" {
		if !stats.ValidColumn(view, tableSort) {
			return fmt.Errorf("unknown sort column %q (available: %s)", tableSort, strings.Join(columnKeys(view), ", "))
		}
		dir, err := stats.ParseDirection(tableDir)
		if err != nil {
			return err
		}
		req = &stats.SortRequest{Column: tableSort, Direction: dir}
	}

	parser, err := newParser()
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	engine := stats.NewEngine(parser)
	var report stats.Report
	if view == stats.ViewItem {
		report, err = stats.BuildItemReport(cmd.Context(), st, engine, source, tableItem, req)
	} else {
		report, err = stats.BuildStageReport(cmd.Context(), st, engine, source, tableStage, req)
	}
	if err != nil {
		return resultError(err)
	}

	out := cmd.OutOrStdout()
	if err := stats.RenderRows(out, report.Title, report.View, report.Rows, report.Sort, report.Sorted); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if view == stats.ViewItem && len(report.Best) > 0 {
		if err := writeBest(out, report.Best); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if tableXLSX != "" {
		if err := export.WriteReportXLSX(tableXLSX, report); err != nil {
			return err
		}
		logger.Info().Str("path", tableXLSX).Int("rows", len(report.Rows)).Msg("table exported")
	}
	return nil
}

func writeBest(w io.Writer, best []stats.ResultRow) error {
	parts := make([]string, 0, len(best))
	for _, r := range best {
		parts = append(parts, fmt.Sprintf("%s (%s)", r.Code, stats.FormatCell(stats.ColumnExpectation, r)))
	}
	_, err := fmt.Fprintf(w, "\nBest AP per item: %s\n", strings.Join(parts, ", "))
	return err
}

func resultError(err error) error {
	switch {
	case errors.Is(err, store.ErrNoPersonalData):
		return fmt.Errorf("%w; run: dropstats upload <file>", err)
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w; list IDs with: dropstats items / dropstats stages", err)
	default:
		return err
	}
}

func openStore() (*store.Store, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	logger.Debug().Str("path", dbPath).Msg("database opened")
	return st, nil
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close db")
	}
}

func newParser() (*stagecode.Parser, error) {
	var delimiter, locale string
	if fileCfg.Parser.Delimiter != nil {
		delimiter = *fileCfg.Parser.Delimiter
	}
	if fileCfg.Parser.Locale != nil {
		locale = *fileCfg.Parser.Locale
	}
	parser, err := stagecode.New(delimiter, locale)
	if err != nil {
		return nil, fmt.Errorf("invalid [parser] config: %w", err)
	}
	return parser, nil
}

func parseSource(s string) (model.DataSource, error) {
	switch model.DataSource(strings.ToLower(strings.TrimSpace(s))) {
	case model.SourceGlobal:
		return model.SourceGlobal, nil
	case model.SourcePersonal:
		return model.SourcePersonal, nil
	default:
		return "", fmt.Errorf("invalid source %q (use global or personal)", s)
	}
}

func columnKeys(view stats.View) []string {
	cols := stats.Columns(view)
	keys := make([]string, 0, len(cols))
	for _, c := range cols {
		keys = append(keys, c.Key)
	}
	return keys
}

func allColumnKeys() []string {
	keys := columnKeys(stats.ViewItem)
	for _, k := range columnKeys(stats.ViewStage) {
		if !stats.ValidColumn(stats.ViewItem, k) {
			keys = append(keys, k)
		}
	}
	return keys
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

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# dropstats configuration
# Uncomment a value to enable it. CLI flags override config values.

[view]
# item = ""               # Initial item ID
# stage = ""              # Initial stage ID
# source = %q         # Data source: global or personal
# sort = ""               # Initial sort column (%s)
# direction = %q         # Sort direction: asc or desc

[parser]
# delimiter = %q           # Separator between the two stage code parts
# locale = %q             # Locale for ordering non-numeric code parts

[data]
# url = %q
# db = %q

[log]
# level = %q            # debug, info, warn or error
`,
		defaultSource,
		strings.Join(allColumnKeys(), ", "),
		defaultDir,
		stagecode.DefaultDelimiter,
		stagecode.DefaultLocale,
		fetch.DefaultURL,
		config.DefaultDBPath(),
		defaultLogLevel,
	)
}
