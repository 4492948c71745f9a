package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
)

type StorageBackend string

const (
	StorageBackendSQLite StorageBackend = "sqlite"
	StorageBackendCSV    StorageBackend = "csv"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Storage  StorageConfig  `toml:"storage"`
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
	Board    BoardConfig    `toml:"board"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type StorageConfig struct {
	Backend StorageBackend `toml:"backend"`
	CSVPath string         `toml:"csv_path"` // defaults to tasks.csv next to the database
}

type ServerConfig struct {
	Bind        string `toml:"bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

// LoggingConfig holds runtime log sink settings.
type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

// DevFileConfig holds the optional dev-mode log file sink.
type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// BoardConfig controls what the terminal board shows on each card.
type BoardConfig struct {
	ShowWindow      bool   `toml:"show_window"`
	ShowDescription bool   `toml:"show_description"`
	MarkdownStyle   string `toml:"markdown_style"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Storage: StorageConfig{
			Backend: StorageBackendSQLite,
		},
		Server: ServerConfig{
			Bind:        "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".kanplan/log",
			},
		},
		Board: BoardConfig{
			ShowWindow:    true,
			MarkdownStyle: "dark",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	c.Database.Path = strings.TrimSpace(c.Database.Path)
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	switch c.Storage.Backend {
	case StorageBackendSQLite, StorageBackendCSV:
	default:
		return fmt.Errorf("invalid storage.backend: %q", c.Storage.Backend)
	}

	api := strings.Trim(strings.TrimSpace(c.Server.APIEndpoint), "/")
	mcp := strings.Trim(strings.TrimSpace(c.Server.MCPEndpoint), "/")
	if api != "" && api == mcp {
		return fmt.Errorf("server.api_endpoint and server.mcp_endpoint must differ: %q", c.Server.APIEndpoint)
	}

	if _, err := log.ParseLevel(strings.TrimSpace(c.Logging.Level)); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	switch strings.TrimSpace(c.Board.MarkdownStyle) {
	case "", "dark", "light", "notty", "ascii":
	default:
		return fmt.Errorf("invalid board.markdown_style: %q", c.Board.MarkdownStyle)
	}
	return nil
}

// CSVPath resolves the CSV store path, defaulting to tasks.csv beside the database.
func (c Config) CSVPath() string {
	if p := strings.TrimSpace(c.Storage.CSVPath); p != "" {
		return p
	}
	return filepath.Join(filepath.Dir(c.Database.Path), "tasks.csv")
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
