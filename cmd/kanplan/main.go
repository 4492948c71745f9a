package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	serveradapter "github.com/hylla/kanplan/internal/adapters/server"
	servercommon "github.com/hylla/kanplan/internal/adapters/server/common"
	"github.com/hylla/kanplan/internal/adapters/storage/csvfile"
	"github.com/hylla/kanplan/internal/adapters/storage/sqlite"
	"github.com/hylla/kanplan/internal/app"
	"github.com/hylla/kanplan/internal/config"
	"github.com/hylla/kanplan/internal/platform"
	"github.com/spf13/cobra"
)

// version stores a package-level helper value.
var version = "dev"

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

// main handles main.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(os.Stdin, os.Stdout, os.Stderr)
	if err := fang.Execute(ctx, root, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

// run executes one command line without fang's styled error rendering.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	root := newRootCommand(stdin, stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// rootOptions holds global flags shared by every command.
type rootOptions struct {
	configPath string
	dbPath     string
	csvPath    string
	backend    string
	appName    string
	devMode    bool
	assumeYes  bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// newRootCommand builds the kanplan command tree.
func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	opts := &rootOptions{stdin: stdin, stdout: stdout, stderr: stderr}

	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("KANPLAN_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	appName := platform.DefaultAppName
	if envApp := strings.TrimSpace(os.Getenv("KANPLAN_APP_NAME")); envApp != "" {
		appName = envApp
	}

	root := &cobra.Command{
		Use:           "kanplan",
		Short:         "Plan tasks, epics, and subtasks on a conflict-free schedule",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.csvPath, "csv", "", "path to CSV store (csv backend)")
	flags.StringVar(&opts.backend, "backend", "", "storage backend: sqlite or csv")
	flags.StringVar(&opts.appName, "app", appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	flags.BoolVarP(&opts.assumeYes, "yes", "y", false, "continue with an empty store when stored data is unreadable")

	root.AddCommand(
		newBoardCommand(opts),
		newServeCommand(opts),
		newListCommand(opts),
		newPrioritizedCommand(opts),
		newExportCommand(opts),
		newImportCommand(opts),
		newDemoCommand(opts),
		newPathsCommand(opts),
	)
	return root
}

// newPathsCommand prints resolved config and data paths.
func newPathsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: opts.appName, DevMode: opts.devMode})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "csv: %s\n", paths.CSVPath)
			return nil
		},
	}
}

// newServeCommand runs the HTTP API and MCP server over the configured store.
func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		httpBind    string
		apiEndpoint string
		mcpEndpoint string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and MCP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			cfg := serveradapter.Config{
				HTTPBind:      firstNonEmpty(httpBind, rt.cfg.Server.Bind),
				APIEndpoint:   firstNonEmpty(apiEndpoint, rt.cfg.Server.APIEndpoint),
				MCPEndpoint:   firstNonEmpty(mcpEndpoint, rt.cfg.Server.MCPEndpoint),
				ServerName:    opts.appName,
				ServerVersion: version,
			}
			rt.logger.Info("command flow start", "command", "serve", "http", cfg.HTTPBind)
			err = serveCommandRunner(cmd.Context(), cfg, serveradapter.Dependencies{
				Items:  servercommon.NewAppServiceAdapter(rt.svc),
				Logger: rt.logger,
			})
			if err != nil {
				rt.logger.Error("command flow failed", "command", "serve", "err", err)
				return fmt.Errorf("run serve command: %w", err)
			}
			rt.logger.Info("command flow complete", "command", "serve")
			return nil
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (defaults to config server.bind)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "HTTP API base endpoint")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP endpoint")
	return cmd
}

// session bundles the opened store, service, and logger for one command.
type session struct {
	cfg    config.Config
	svc    *app.Service
	logger *runtimeLogger
	closer func() error
}

// Close releases the store and log sinks.
func (r *session) Close() {
	if r == nil {
		return
	}
	if r.closer != nil {
		if err := r.closer(); err != nil {
			r.logger.Warn("store close failed", "err", err)
		}
	}
	_ = r.logger.Close()
}

// openRuntime resolves config, opens the configured store, and loads it.
func openRuntime(ctx context.Context, opts *rootOptions) (*session, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: opts.appName, DevMode: opts.devMode})
	if err != nil {
		return nil, err
	}

	configPath := opts.configPath
	if configPath == "" {
		configPath = firstNonEmpty(strings.TrimSpace(os.Getenv("KANPLAN_CONFIG")), paths.ConfigPath)
	}
	dbPath := strings.TrimSpace(opts.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("KANPLAN_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	if b := strings.TrimSpace(opts.backend); b != "" {
		cfg.Storage.Backend = config.StorageBackend(strings.ToLower(b))
	}
	if p := strings.TrimSpace(opts.csvPath); p != "" {
		cfg.Storage.CSVPath = p
		if strings.TrimSpace(opts.backend) == "" {
			cfg.Storage.Backend = config.StorageBackendCSV
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := newRuntimeLogger(opts.stderr, opts.appName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.Info("configuration loaded", "config_path", configPath, "backend", cfg.Storage.Backend, "log_level", cfg.Logging.Level)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	persister, closer, err := openPersister(cfg)
	if err != nil {
		logger.Error("store open failed", "backend", cfg.Storage.Backend, "err", err)
		_ = logger.Close()
		return nil, err
	}
	rt := &session{
		cfg:    cfg,
		svc:    app.NewService(nil, persister, app.ServiceConfig{Logger: logger}),
		logger: logger,
		closer: closer,
	}
	if err := loadStore(ctx, rt, opts); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// openPersister opens the configured storage backend.
func openPersister(cfg config.Config) (app.Persister, func() error, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendCSV:
		store, err := csvfile.Open(cfg.CSVPath())
		if err != nil {
			return nil, nil, fmt.Errorf("open csv store: %w", err)
		}
		return store, nil, nil
	default:
		repo, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite repository: %w", err)
		}
		return repo, repo.Close, nil
	}
}

// loadStore replays persisted items. Unreadable storage is replaced with an
// empty store only after the operator agrees.
func loadStore(ctx context.Context, rt *session, opts *rootOptions) error {
	report, err := rt.svc.Load(ctx)
	if err == nil {
		rt.logger.Debug("store ready", "loaded", report.Loaded, "skipped", report.Skipped, "counter", report.Counter)
		return nil
	}
	if !errors.Is(err, app.ErrLoadCorruption) {
		return fmt.Errorf("load store: %w", err)
	}
	rt.logger.Warn("stored data is unreadable", "err", err)

	proceed := opts.assumeYes
	if !proceed {
		answer, promptErr := promptYesNo(bufio.NewReader(opts.stdin), opts.stderr, "Stored data is unreadable. Continue with an empty store and overwrite it? [y/N] ")
		if promptErr != nil && !errors.Is(promptErr, io.EOF) {
			return fmt.Errorf("confirm reset: %w", promptErr)
		}
		proceed = answer
	}
	if !proceed {
		return fmt.Errorf("load store: %w", err)
	}
	if err := rt.svc.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	rt.logger.Warn("continuing with an empty store")
	return nil
}

// promptYesNo reads a y/n answer. Anything other than yes means no.
func promptYesNo(reader *bufio.Reader, output io.Writer, prompt string) (bool, error) {
	if _, err := fmt.Fprint(output, prompt); err != nil {
		return false, fmt.Errorf("write prompt: %w", err)
	}
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read prompt value: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, err
	}
}

// parseBoolEnv parses input into a normalized form.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// firstNonEmpty returns the first value that is not blank.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
