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
	"time"

	tea "charm.land/bubbletea/v2"
	serveradapter "github.com/hylla/kanplan/internal/adapters/server"
	"github.com/hylla/kanplan/internal/adapters/storage/sqlite"
	"github.com/hylla/kanplan/internal/app"
	"github.com/hylla/kanplan/internal/config"
	"github.com/hylla/kanplan/internal/domain"
	"github.com/hylla/kanplan/internal/tui"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("KANPLAN_DEV_MODE", "false")
	os.Exit(m.Run())
}

// testEnv holds isolated config and storage paths for one CLI test.
type testEnv struct {
	dir        string
	dbPath     string
	configPath string
}

// newTestEnv returns paths inside a temp dir. The config file does not exist.
func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	return testEnv{
		dir:        dir,
		dbPath:     filepath.Join(dir, "kanplan.db"),
		configPath: filepath.Join(dir, "missing.toml"),
	}
}

// args prefixes command args with the isolated global flags.
func (e testEnv) args(args ...string) []string {
	return append([]string{"--config", e.configPath, "--db", e.dbPath}, args...)
}

// runCLI runs one command line and returns stdout and stderr.
func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

// seedSQLite writes one task and one epic with a subtask into a sqlite store.
func seedSQLite(t *testing.T, dbPath string) {
	t.Helper()
	repo, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	defer func() { _ = repo.Close() }()

	ctx := context.Background()
	svc := app.NewService(nil, repo, app.ServiceConfig{})
	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	if _, err := svc.Create(ctx, domain.ItemInput{Kind: domain.KindTask, Name: "Write report", Window: domain.NewWindow(start, time.Hour)}); err != nil {
		t.Fatalf("Create(task) error = %v", err)
	}
	epic, err := svc.Create(ctx, domain.ItemInput{Kind: domain.KindEpic, Name: "Release"})
	if err != nil {
		t.Fatalf("Create(epic) error = %v", err)
	}
	if _, err := svc.Create(ctx, domain.ItemInput{Kind: domain.KindSubtask, Name: "Tag build", EpicID: epic.ID, Window: domain.NewWindow(start.Add(2*time.Hour), 30*time.Minute)}); err != nil {
		t.Fatalf("Create(subtask) error = %v", err)
	}
}

// TestRunVersion verifies the root command reports the build version.
func TestRunVersion(t *testing.T) {
	stdout, _, err := runCLI(t, "", "--version")
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(stdout, version) {
		t.Fatalf("expected version %q in output, got %q", version, stdout)
	}
}

// TestRunPaths verifies resolved paths are printed for the selected app name.
func TestRunPaths(t *testing.T) {
	stdout, _, err := runCLI(t, "", "--app", "kanplan-test", "paths")
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	for _, want := range []string{"app: kanplan-test", "dev_mode: false", "config: ", "db: ", "csv: "} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("expected %q in paths output, got %q", want, stdout)
		}
	}
}

// TestRunDemo verifies the walkthrough completes and shows the epic finishing.
func TestRunDemo(t *testing.T) {
	stdout, _, err := runCLI(t, "", "demo")
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	for _, want := range []string{
		`TASK #1 "Task name" [IN_PROGRESS]`,
		`EPIC #2 "Epic name" [IN_PROGRESS]`,
		`EPIC #2 "Epic name" [DONE]`,
		"schedule conflict",
		"history after removal:",
		"All items after removing everything:",
	} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("expected %q in demo output, got:\n%s", want, stdout)
		}
	}
	tail := stdout[strings.LastIndex(stdout, "All items after removing everything:"):]
	if strings.Contains(tail, "#") {
		t.Fatalf("expected no items after removing everything, got:\n%s", tail)
	}
}

// TestRunListAndPrioritized verifies table rendering over a seeded sqlite store.
func TestRunListAndPrioritized(t *testing.T) {
	env := newTestEnv(t)
	seedSQLite(t, env.dbPath)

	stdout, _, err := runCLI(t, "", env.args("list")...)
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	for _, want := range []string{"Write report", "Release", "Tag build", "EPIC/SUBTASKS"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("expected %q in list output, got:\n%s", want, stdout)
		}
	}

	stdout, _, err = runCLI(t, "", env.args("list", "--type", "subtask")...)
	if err != nil {
		t.Fatalf("list --type error = %v", err)
	}
	if !strings.Contains(stdout, "Tag build") || strings.Contains(stdout, "Write report") {
		t.Fatalf("expected only subtasks, got:\n%s", stdout)
	}

	if _, _, err := runCLI(t, "", env.args("list", "--type", "story")...); err == nil {
		t.Fatal("expected unknown type to fail")
	}

	stdout, _, err = runCLI(t, "", env.args("prioritized")...)
	if err != nil {
		t.Fatalf("prioritized error = %v", err)
	}
	if strings.Index(stdout, "Write report") > strings.Index(stdout, "Release") {
		t.Fatalf("expected earliest item first, got:\n%s", stdout)
	}
}

// TestRunListEmpty verifies an empty store prints a short note.
func TestRunListEmpty(t *testing.T) {
	env := newTestEnv(t)
	stdout, _, err := runCLI(t, "", env.args("list")...)
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if strings.TrimSpace(stdout) != "no items" {
		t.Fatalf("expected empty note, got %q", stdout)
	}
}

// TestRunExportImportRoundTrip verifies every snapshot format restores the same items.
func TestRunExportImportRoundTrip(t *testing.T) {
	for _, format := range []string{"json", "yaml", "csv"} {
		t.Run(format, func(t *testing.T) {
			src := newTestEnv(t)
			seedSQLite(t, src.dbPath)
			outPath := filepath.Join(src.dir, "export", "snapshot."+format)
			if _, _, err := runCLI(t, "", src.args("export", "--format", format, "--out", outPath)...); err != nil {
				t.Fatalf("export error = %v", err)
			}

			dst := newTestEnv(t)
			stdout, _, err := runCLI(t, "", dst.args("import", "--in", outPath)...)
			if err != nil {
				t.Fatalf("import error = %v", err)
			}
			if !strings.Contains(stdout, "imported 3 items, skipped 0") {
				t.Fatalf("unexpected import output %q", stdout)
			}

			stdout, _, err = runCLI(t, "", dst.args("list")...)
			if err != nil {
				t.Fatalf("list error = %v", err)
			}
			for _, want := range []string{"Write report", "Release", "Tag build"} {
				if !strings.Contains(stdout, want) {
					t.Fatalf("expected %q after import, got:\n%s", want, stdout)
				}
			}
		})
	}
}

// TestRunExportStdout verifies json export to stdout decodes as a snapshot.
func TestRunExportStdout(t *testing.T) {
	env := newTestEnv(t)
	seedSQLite(t, env.dbPath)
	stdout, _, err := runCLI(t, "", env.args("export")...)
	if err != nil {
		t.Fatalf("export error = %v", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal([]byte(stdout), &snap); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(snap.Items) != 3 || snap.Counter != 3 {
		t.Fatalf("unexpected snapshot %#v", snap)
	}

	if _, _, err := runCLI(t, "", env.args("export", "--format", "xml")...); err == nil {
		t.Fatal("expected unsupported format to fail")
	}
}

// TestRunImportRequiresInput verifies --in is mandatory.
func TestRunImportRequiresInput(t *testing.T) {
	env := newTestEnv(t)
	if _, _, err := runCLI(t, "", env.args("import")...); err == nil || !strings.Contains(err.Error(), "--in") {
		t.Fatalf("expected --in error, got %v", err)
	}
}

// TestRunCSVBackend verifies --csv selects the csv store and persists across runs.
func TestRunCSVBackend(t *testing.T) {
	env := newTestEnv(t)
	seedSQLite(t, env.dbPath)
	snapPath := filepath.Join(env.dir, "seed.json")
	if _, _, err := runCLI(t, "", env.args("export", "--out", snapPath)...); err != nil {
		t.Fatalf("export error = %v", err)
	}

	csvPath := filepath.Join(env.dir, "items.csv")
	if _, _, err := runCLI(t, "", env.args("--csv", csvPath, "import", "--in", snapPath)...); err != nil {
		t.Fatalf("import error = %v", err)
	}
	content, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("read csv store: %v", err)
	}
	if !strings.HasPrefix(string(content), strings.Join(domain.RecordHeader, ",")) {
		t.Fatalf("expected csv header, got %q", content)
	}

	stdout, _, err := runCLI(t, "", env.args("--csv", csvPath, "list")...)
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(stdout, "Tag build") {
		t.Fatalf("expected csv-backed items, got:\n%s", stdout)
	}
}

// TestRunCorruptStore verifies unreadable storage needs confirmation before it is replaced.
func TestRunCorruptStore(t *testing.T) {
	env := newTestEnv(t)
	csvPath := filepath.Join(env.dir, "items.csv")
	if err := os.WriteFile(csvPath, []byte("not,a,header\n"), 0o644); err != nil {
		t.Fatalf("write corrupt csv: %v", err)
	}

	_, stderr, err := runCLI(t, "n\n", env.args("--csv", csvPath, "list")...)
	if !errors.Is(err, app.ErrLoadCorruption) {
		t.Fatalf("expected ErrLoadCorruption, got %v", err)
	}
	if !strings.Contains(stderr, "Continue with an empty store") {
		t.Fatalf("expected prompt on stderr, got %q", stderr)
	}

	stdout, _, err := runCLI(t, "y\n", env.args("--csv", csvPath, "list")...)
	if err != nil {
		t.Fatalf("list after confirm error = %v", err)
	}
	if strings.TrimSpace(stdout) != "no items" {
		t.Fatalf("expected empty store, got %q", stdout)
	}

	if err := os.WriteFile(csvPath, []byte("garbage\n"), 0o644); err != nil {
		t.Fatalf("write corrupt csv: %v", err)
	}
	if _, _, err := runCLI(t, "", env.args("--csv", csvPath, "--yes", "list")...); err != nil {
		t.Fatalf("list --yes error = %v", err)
	}
	content, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("read csv store: %v", err)
	}
	if !strings.HasPrefix(string(content), "id,type,") {
		t.Fatalf("expected rewritten csv store, got %q", content)
	}
}

// TestRunServe verifies serve wiring passes resolved config and dependencies to the runner.
func TestRunServe(t *testing.T) {
	env := newTestEnv(t)
	var got serveradapter.Config
	var gotDeps serveradapter.Dependencies
	orig := serveCommandRunner
	serveCommandRunner = func(_ context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
		got = cfg
		gotDeps = deps
		return nil
	}
	t.Cleanup(func() { serveCommandRunner = orig })

	if _, _, err := runCLI(t, "", env.args("serve", "--http", "127.0.0.1:9999", "--mcp-endpoint", "/agents")...); err != nil {
		t.Fatalf("serve error = %v", err)
	}
	if got.HTTPBind != "127.0.0.1:9999" || got.MCPEndpoint != "/agents" || got.APIEndpoint != "/api/v1" {
		t.Fatalf("unexpected serve config %#v", got)
	}
	if got.ServerVersion != version {
		t.Fatalf("expected server version %q, got %q", version, got.ServerVersion)
	}
	if gotDeps.Items == nil || gotDeps.Logger == nil {
		t.Fatalf("expected serve dependencies to be wired, got %#v", gotDeps)
	}

	serveCommandRunner = func(context.Context, serveradapter.Config, serveradapter.Dependencies) error {
		return errors.New("boom")
	}
	if _, _, err := runCLI(t, "", env.args("serve")...); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected runner error, got %v", err)
	}
}

// TestRunRejectsInvalidBackend verifies config validation runs before the store opens.
func TestRunRejectsInvalidBackend(t *testing.T) {
	env := newTestEnv(t)
	if _, _, err := runCLI(t, "", env.args("--backend", "redis", "list")...); err == nil {
		t.Fatal("expected invalid backend to fail")
	}
}

// TestRuntimeLoggerDevFile verifies dev mode adds a logfmt file sink.
func TestRuntimeLoggerDevFile(t *testing.T) {
	dir := t.TempDir()
	now := func() time.Time { return time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC) }
	cfg := config.LoggingConfig{Level: "debug", DevFile: config.DevFileConfig{Enabled: true, Dir: dir}}

	var stderr bytes.Buffer
	logger, err := newRuntimeLogger(&stderr, "kanplan test", true, cfg, now)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	wantPath := filepath.Join(dir, "kanplan-test-20250304.log")
	if logger.DevLogPath() != wantPath {
		t.Fatalf("expected dev log path %q, got %q", wantPath, logger.DevLogPath())
	}

	logger.SetConsoleEnabled(false)
	logger.Info("item saved", "id", 7)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if stderr.Len() != 0 {
		t.Fatalf("expected console sink to be muted, got %q", stderr.String())
	}
	content, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("read dev log: %v", err)
	}
	if !strings.Contains(string(content), "item saved") || !strings.Contains(string(content), "id=7") {
		t.Fatalf("unexpected dev log content %q", content)
	}
}

// TestRuntimeLoggerRejectsLevel verifies unknown levels fail fast.
func TestRuntimeLoggerRejectsLevel(t *testing.T) {
	if _, err := newRuntimeLogger(nil, "kanplan", false, config.LoggingConfig{Level: "loud"}, nil); err == nil {
		t.Fatal("expected invalid level error")
	}
}

// TestSanitizeLogFileStem verifies app names become safe file stems.
func TestSanitizeLogFileStem(t *testing.T) {
	cases := map[string]string{
		"":            "kanplan",
		" kan/plan ":  "kan-plan",
		"a:b\\c d":    "a-b-c-d",
		"--kanplan--": "kanplan",
	}
	for in, want := range cases {
		if got := sanitizeLogFileStem(in); got != want {
			t.Fatalf("sanitizeLogFileStem(%q) = %q, want %q", in, got, want)
		}
	}
}

// fakeProgram represents fake program data used by this package.
type fakeProgram struct {
	runErr error
}

// Run runs the requested command flow.
func (f fakeProgram) Run() (tea.Model, error) {
	return nil, f.runErr
}

// TestRunBoard verifies the board command builds a model and reports program failures.
func TestRunBoard(t *testing.T) {
	env := newTestEnv(t)
	var got tea.Model
	orig := programFactory
	t.Cleanup(func() { programFactory = orig })

	programFactory = func(m tea.Model) program {
		got = m
		return fakeProgram{}
	}
	if _, _, err := runCLI(t, "", env.args("board")...); err != nil {
		t.Fatalf("board error = %v", err)
	}
	if _, ok := got.(tui.Model); !ok {
		t.Fatalf("expected tui.Model, got %T", got)
	}

	programFactory = func(tea.Model) program { return fakeProgram{runErr: errors.New("tty lost")} }
	if _, _, err := runCLI(t, "", env.args("board")...); err == nil || !strings.Contains(err.Error(), "tty lost") {
		t.Fatalf("expected program error, got %v", err)
	}
}
